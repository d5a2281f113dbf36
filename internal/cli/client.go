package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// --- Response types (дублируются из api/dto.go, CLI не импортирует internal/api) ---

// ServerResponse — сервер из API.
type ServerResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Host      string `json:"host"`
	Port      int    `json:"port"`
	Username  string `json:"username,omitempty"`
	Status    string `json:"status"`
	IsLocal   bool   `json:"is_local"`
	CreatedAt string `json:"created_at"`
}

// ProjectResponse — проект из API.
type ProjectResponse struct {
	ID                   string            `json:"id"`
	Name                 string            `json:"name"`
	Slug                 string            `json:"slug"`
	ServerID             string            `json:"server_id,omitempty"`
	Server               *ServerResponse   `json:"server,omitempty"`
	RepositoryURL        string            `json:"repository_url"`
	Branch               string            `json:"branch"`
	Environment          string            `json:"environment,omitempty"`
	EnvVariables         map[string]string `json:"env_variables,omitempty"`
	AutoDeploy           bool              `json:"auto_deploy"`
	DeployCron           string            `json:"deploy_cron,omitempty"`
	NextAutoDeployAt     string            `json:"next_auto_deploy_at,omitempty"`
	CurrentCommitHash    string            `json:"current_commit_hash,omitempty"`
	CurrentCommitMessage string            `json:"current_commit_message,omitempty"`
	LastDeployedAt       string            `json:"last_deployed_at,omitempty"`
	CreatedAt            string            `json:"created_at"`
}

// DeploymentResponse — deployment из API.
type DeploymentResponse struct {
	ID                   string `json:"id"`
	ProjectID            string `json:"project_id"`
	Status               string `json:"status"`
	TriggeredBy          string `json:"triggered_by"`
	Branch               string `json:"branch"`
	CommitHash           string `json:"commit_hash,omitempty"`
	CommitMessage        string `json:"commit_message,omitempty"`
	RollbackDeploymentID string `json:"rollback_deployment_id,omitempty"`
	StartedAt            string `json:"started_at,omitempty"`
	CompletedAt          string `json:"completed_at,omitempty"`
	DurationSeconds      *int64 `json:"duration_seconds,omitempty"`
	ErrorLog             string `json:"error_log,omitempty"`
	CreatedAt            string `json:"created_at"`
}

// StageResponse — pipeline stage из API.
type StageResponse struct {
	ID                string   `json:"id"`
	ProjectID         string   `json:"project_id"`
	Name              string   `json:"name"`
	Type              string   `json:"type"`
	Order             int      `json:"order"`
	Commands          []string `json:"commands"`
	IsEnabled         bool     `json:"is_enabled"`
	ContinueOnFailure bool     `json:"continue_on_failure"`
	TimeoutSec        int      `json:"timeout_sec,omitempty"`
	CreatedAt         string   `json:"created_at"`
}

// StatsResponse — статистика deployments из API.
type StatsResponse struct {
	Total       int     `json:"total"`
	Successful  int     `json:"successful"`
	Failed      int     `json:"failed"`
	SuccessRate float64 `json:"success_rate"`
	AvgDuration float64 `json:"avg_duration"`
}

// UpdateStatusResponse — результат проверки обновлений из API.
type UpdateStatusResponse struct {
	HasUpdates    bool   `json:"has_updates"`
	CommitsBehind int    `json:"commits_behind"`
	LocalCommit   string `json:"local_commit,omitempty"`
	RemoteCommit  string `json:"remote_commit,omitempty"`
	Error         string `json:"error,omitempty"`
}

// ValidationResponse — результат проверки готовности к deploy.
type ValidationResponse struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors,omitempty"`
}

// LogsResponse — логи deployment из API.
type LogsResponse struct {
	DeploymentID string `json:"deployment_id"`
	Logs         string `json:"logs"`
}

// BatchDeployResponse — результат массового deploy из API.
type BatchDeployResponse struct {
	Successful  int                  `json:"successful"`
	Failed      int                  `json:"failed"`
	Deployments []DeploymentResponse `json:"deployments"`
}

// --- Request types ---

// CreateProjectRequest — создание проекта.
type CreateProjectRequest struct {
	Name          string            `json:"name"`
	Slug          string            `json:"slug"`
	ServerID      string            `json:"server_id,omitempty"`
	RepositoryURL string            `json:"repository_url"`
	Branch        string            `json:"branch"`
	Environment   string            `json:"environment,omitempty"`
	EnvVariables  map[string]string `json:"env_variables,omitempty"`
	AutoDeploy    bool              `json:"auto_deploy,omitempty"`
	DeployCron    string            `json:"deploy_cron,omitempty"`
}

// UpdateProjectRequest — обновление проекта.
type UpdateProjectRequest struct {
	Name          *string `json:"name,omitempty"`
	ServerID      *string `json:"server_id,omitempty"`
	RepositoryURL *string `json:"repository_url,omitempty"`
	Branch        *string `json:"branch,omitempty"`
	AutoDeploy    *bool   `json:"auto_deploy,omitempty"`
	DeployCron    *string `json:"deploy_cron,omitempty"`
}

// CreateServerRequest — создание сервера.
type CreateServerRequest struct {
	Name     string `json:"name"`
	Host     string `json:"host,omitempty"`
	Port     int    `json:"port,omitempty"`
	Username string `json:"username,omitempty"`
	IsLocal  bool   `json:"is_local,omitempty"`
}

// CreateStageRequest — создание stage.
type CreateStageRequest struct {
	Name              string   `json:"name"`
	Type              string   `json:"type"`
	Order             int      `json:"order"`
	Commands          []string `json:"commands"`
	ContinueOnFailure bool     `json:"continue_on_failure,omitempty"`
	TimeoutSec        int      `json:"timeout_sec,omitempty"`
}

// UpdateStageRequest — обновление stage.
type UpdateStageRequest struct {
	Name              *string   `json:"name,omitempty"`
	Type              *string   `json:"type,omitempty"`
	Order             *int      `json:"order,omitempty"`
	Commands          *[]string `json:"commands,omitempty"`
	ContinueOnFailure *bool     `json:"continue_on_failure,omitempty"`
	TimeoutSec        *int      `json:"timeout_sec,omitempty"`
}

// RollbackRequest — запрос на rollback.
type RollbackRequest struct {
	TargetDeploymentID string `json:"target_deployment_id,omitempty"`
}

// BatchDeployRequest — запрос на массовый deploy.
type BatchDeployRequest struct {
	ProjectIDs []string `json:"project_ids"`
}

// --- API response wrappers ---

type dataResponse struct {
	Data json.RawMessage `json:"data"`
}

type listResponse struct {
	Data  json.RawMessage `json:"data"`
	Total int             `json:"total"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// --- Client ---

// Client — HTTP-клиент для DevFlow API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient создаёт клиент для API.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// --- Servers ---

// ListServers возвращает все серверы.
func (c *Client) ListServers() ([]ServerResponse, error) {
	var servers []ServerResponse
	err := c.list("/api/v1/servers", nil, &servers)
	return servers, err
}

// CreateServer создаёт новый сервер.
func (c *Client) CreateServer(req CreateServerRequest) (*ServerResponse, error) {
	var server ServerResponse
	err := c.post("/api/v1/servers", req, &server)
	return &server, err
}

// GetServer возвращает сервер по ID.
func (c *Client) GetServer(id string) (*ServerResponse, error) {
	var server ServerResponse
	err := c.get("/api/v1/servers/"+id, &server)
	return &server, err
}

// --- Projects ---

// ListProjects возвращает все проекты.
func (c *Client) ListProjects() ([]ProjectResponse, error) {
	var projects []ProjectResponse
	err := c.list("/api/v1/projects", nil, &projects)
	return projects, err
}

// CreateProject создаёт новый проект.
func (c *Client) CreateProject(req CreateProjectRequest) (*ProjectResponse, error) {
	var project ProjectResponse
	err := c.post("/api/v1/projects", req, &project)
	return &project, err
}

// GetProject возвращает проект по ID.
func (c *Client) GetProject(id string) (*ProjectResponse, error) {
	var project ProjectResponse
	err := c.get("/api/v1/projects/"+id, &project)
	return &project, err
}

// UpdateProject обновляет проект.
func (c *Client) UpdateProject(id string, req UpdateProjectRequest) (*ProjectResponse, error) {
	var project ProjectResponse
	err := c.put("/api/v1/projects/"+id, req, &project)
	return &project, err
}

// ValidateProject проверяет готовность проекта к deploy.
func (c *Client) ValidateProject(id string) (*ValidationResponse, error) {
	var result ValidationResponse
	err := c.get("/api/v1/projects/"+id+"/validate", &result)
	return &result, err
}

// CheckUpdates сравнивает рабочую копию проекта с origin.
func (c *Client) CheckUpdates(id string) (*UpdateStatusResponse, error) {
	var status UpdateStatusResponse
	err := c.get("/api/v1/projects/"+id+"/updates", &status)
	return &status, err
}

// GetStats возвращает статистику deployments проекта.
func (c *Client) GetStats(id string, days int) (*StatsResponse, error) {
	path := "/api/v1/projects/" + id + "/stats"
	if days > 0 {
		path += "?days=" + strconv.Itoa(days)
	}
	var stats StatsResponse
	err := c.get(path, &stats)
	return &stats, err
}

// --- Deployments ---

// ListDeployments возвращает последние deployments проекта.
func (c *Client) ListDeployments(projectID string, limit int) ([]DeploymentResponse, error) {
	params := url.Values{}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}

	var deployments []DeploymentResponse
	err := c.list("/api/v1/projects/"+projectID+"/deployments", params, &deployments)
	return deployments, err
}

// Deploy запускает deployment проекта.
func (c *Client) Deploy(projectID string) (*DeploymentResponse, error) {
	var d DeploymentResponse
	err := c.post("/api/v1/projects/"+projectID+"/deployments", nil, &d)
	return &d, err
}

// Rollback откатывает проект. Пустой targetID — на последний успешный.
func (c *Client) Rollback(projectID, targetID string) (*DeploymentResponse, error) {
	var d DeploymentResponse
	err := c.post("/api/v1/projects/"+projectID+"/rollback", RollbackRequest{TargetDeploymentID: targetID}, &d)
	return &d, err
}

// BatchDeploy запускает deploy нескольких проектов.
func (c *Client) BatchDeploy(projectIDs []string) (*BatchDeployResponse, error) {
	var result BatchDeployResponse
	err := c.post("/api/v1/deployments/batch", BatchDeployRequest{ProjectIDs: projectIDs}, &result)
	return &result, err
}

// GetDeployment возвращает deployment по ID.
func (c *Client) GetDeployment(id string) (*DeploymentResponse, error) {
	var d DeploymentResponse
	err := c.get("/api/v1/deployments/"+id, &d)
	return &d, err
}

// CancelDeployment отменяет deployment.
func (c *Client) CancelDeployment(id string) (*DeploymentResponse, error) {
	var d DeploymentResponse
	err := c.post("/api/v1/deployments/"+id+"/cancel", nil, &d)
	return &d, err
}

// GetLogs возвращает логи deployment.
func (c *Client) GetLogs(id string) (*LogsResponse, error) {
	var logs LogsResponse
	err := c.get("/api/v1/deployments/"+id+"/logs", &logs)
	return &logs, err
}

// --- Pipeline stages ---

// ListStages возвращает stages проекта.
func (c *Client) ListStages(projectID string) ([]StageResponse, error) {
	var stages []StageResponse
	err := c.list("/api/v1/projects/"+projectID+"/stages", nil, &stages)
	return stages, err
}

// CreateStage создаёт stage для проекта.
func (c *Client) CreateStage(projectID string, req CreateStageRequest) (*StageResponse, error) {
	var stage StageResponse
	err := c.post("/api/v1/projects/"+projectID+"/stages", req, &stage)
	return &stage, err
}

// UpdateStage обновляет stage.
func (c *Client) UpdateStage(id string, req UpdateStageRequest) (*StageResponse, error) {
	var stage StageResponse
	err := c.put("/api/v1/stages/"+id, req, &stage)
	return &stage, err
}

// DeleteStage удаляет stage.
func (c *Client) DeleteStage(id string) error {
	return c.delete("/api/v1/stages/" + id)
}

// EnableStage включает stage.
func (c *Client) EnableStage(id string) (*StageResponse, error) {
	var stage StageResponse
	body := map[string]bool{"enabled": true}
	err := c.put("/api/v1/stages/"+id+"/enabled", body, &stage)
	return &stage, err
}

// DisableStage выключает stage.
func (c *Client) DisableStage(id string) (*StageResponse, error) {
	var stage StageResponse
	body := map[string]bool{"enabled": false}
	err := c.put("/api/v1/stages/"+id+"/enabled", body, &stage)
	return &stage, err
}

// --- HTTP helpers ---

func (c *Client) get(path string, result any) error {
	return c.doData(http.MethodGet, path, nil, result)
}

func (c *Client) post(path string, body any, result any) error {
	return c.doData(http.MethodPost, path, body, result)
}

func (c *Client) put(path string, body any, result any) error {
	return c.doData(http.MethodPut, path, body, result)
}

func (c *Client) delete(path string) error {
	resp, err := c.do(http.MethodDelete, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return c.checkError(resp)
}

func (c *Client) list(path string, params url.Values, result any) error {
	if len(params) > 0 {
		path = path + "?" + params.Encode()
	}

	resp, err := c.do(http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	var lr listResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if len(lr.Data) == 0 || string(lr.Data) == "null" {
		return nil
	}

	return json.Unmarshal(lr.Data, result)
}

func (c *Client) doData(method, path string, body any, result any) error {
	resp, err := c.do(method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	// 204 No Content
	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	var dr dataResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if result != nil {
		return json.Unmarshal(dr.Data, result)
	}
	return nil
}

func (c *Client) do(method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.httpClient.Do(req)
}

func (c *Client) checkError(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	var er errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		return fmt.Errorf("API error: HTTP %d", resp.StatusCode)
	}

	return fmt.Errorf("%s: %s", er.Error.Code, er.Error.Message)
}
