package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/devflow/devflow/internal/domain"
)

// Server DTOs

// CreateServerRequest — запрос на создание сервера.
type CreateServerRequest struct {
	Name     string `json:"name"`
	Host     string `json:"host"`
	Port     int    `json:"port,omitempty"`
	Username string `json:"username,omitempty"`
	IsLocal  bool   `json:"is_local,omitempty"`
}

// ServerResponse — ответ с сервером.
type ServerResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Host      string    `json:"host"`
	Port      int       `json:"port"`
	Username  string    `json:"username,omitempty"`
	Status    string    `json:"status"`
	IsLocal   bool      `json:"is_local"`
	CreatedAt time.Time `json:"created_at"`
}

// ServerFromDomain конвертирует domain.Server в ServerResponse.
func ServerFromDomain(s domain.Server) ServerResponse {
	return ServerResponse{
		ID:        s.ID,
		Name:      s.Name,
		Host:      s.Host,
		Port:      s.Port,
		Username:  s.Username,
		Status:    string(s.Status),
		IsLocal:   s.IsLocal,
		CreatedAt: s.CreatedAt,
	}
}

// Project DTOs

// CreateProjectRequest — запрос на создание проекта.
type CreateProjectRequest struct {
	Name          string            `json:"name"`
	Slug          string            `json:"slug"`
	ServerID      *uuid.UUID        `json:"server_id,omitempty"`
	RepositoryURL string            `json:"repository_url"`
	Branch        string            `json:"branch"`
	Environment   string            `json:"environment,omitempty"`
	PHPVersion    string            `json:"php_version,omitempty"`
	Framework     string            `json:"framework,omitempty"`
	EnvVariables  map[string]string `json:"env_variables,omitempty"`
	AutoDeploy    bool              `json:"auto_deploy,omitempty"`
	DeployCron    string            `json:"deploy_cron,omitempty"`
}

// UpdateProjectRequest — запрос на обновление проекта.
// Nil-поля не изменяются.
type UpdateProjectRequest struct {
	Name          *string            `json:"name,omitempty"`
	ServerID      *uuid.UUID         `json:"server_id,omitempty"`
	RepositoryURL *string            `json:"repository_url,omitempty"`
	Branch        *string            `json:"branch,omitempty"`
	Environment   *string            `json:"environment,omitempty"`
	PHPVersion    *string            `json:"php_version,omitempty"`
	Framework     *string            `json:"framework,omitempty"`
	EnvVariables  *map[string]string `json:"env_variables,omitempty"`
	AutoDeploy    *bool              `json:"auto_deploy,omitempty"`
	DeployCron    *string            `json:"deploy_cron,omitempty"`
}

// ProjectResponse — ответ с проектом.
type ProjectResponse struct {
	ID                   uuid.UUID         `json:"id"`
	Name                 string            `json:"name"`
	Slug                 string            `json:"slug"`
	ServerID             *uuid.UUID        `json:"server_id,omitempty"`
	Server               *ServerResponse   `json:"server,omitempty"`
	RepositoryURL        string            `json:"repository_url"`
	Branch               string            `json:"branch"`
	Environment          string            `json:"environment,omitempty"`
	PHPVersion           string            `json:"php_version,omitempty"`
	Framework            string            `json:"framework,omitempty"`
	EnvVariables         map[string]string `json:"env_variables,omitempty"`
	AutoDeploy           bool              `json:"auto_deploy"`
	DeployCron           string            `json:"deploy_cron,omitempty"`
	NextAutoDeployAt     *time.Time        `json:"next_auto_deploy_at,omitempty"`
	CurrentCommitHash    string            `json:"current_commit_hash,omitempty"`
	CurrentCommitMessage string            `json:"current_commit_message,omitempty"`
	LastDeployedAt       *time.Time        `json:"last_deployed_at,omitempty"`
	CreatedAt            time.Time         `json:"created_at"`
}

// ProjectFromDomain конвертирует domain.Project в ProjectResponse.
func ProjectFromDomain(p domain.Project) ProjectResponse {
	resp := ProjectResponse{
		ID:                   p.ID,
		Name:                 p.Name,
		Slug:                 p.Slug,
		ServerID:             p.ServerID,
		RepositoryURL:        p.RepositoryURL,
		Branch:               p.Branch,
		Environment:          p.Environment,
		PHPVersion:           p.PHPVersion,
		Framework:            p.Framework,
		EnvVariables:         p.EnvVariables,
		AutoDeploy:           p.AutoDeploy,
		DeployCron:           p.DeployCron,
		NextAutoDeployAt:     p.NextAutoDeployAt,
		CurrentCommitHash:    p.CurrentCommitHash,
		CurrentCommitMessage: p.CurrentCommitMessage,
		LastDeployedAt:       p.LastDeployedAt,
		CreatedAt:            p.CreatedAt,
	}
	if p.Server != nil {
		srv := ServerFromDomain(*p.Server)
		resp.Server = &srv
	}
	return resp
}

// Deployment DTOs

// CreateDeploymentRequest — запрос на запуск deployment.
type CreateDeploymentRequest struct {
	UserID *uuid.UUID `json:"user_id,omitempty"`
}

// RollbackRequest — запрос на rollback.
// Без TargetDeploymentID откатывает на последний успешный deployment.
type RollbackRequest struct {
	TargetDeploymentID *uuid.UUID `json:"target_deployment_id,omitempty"`
	UserID             *uuid.UUID `json:"user_id,omitempty"`
}

// BatchDeployRequest — запрос на массовый deploy.
type BatchDeployRequest struct {
	ProjectIDs []uuid.UUID `json:"project_ids"`
	UserID     *uuid.UUID  `json:"user_id,omitempty"`
}

// BatchDeployResponse — результат массового deploy.
type BatchDeployResponse struct {
	Successful  int                  `json:"successful"`
	Failed      int                  `json:"failed"`
	Deployments []DeploymentResponse `json:"deployments"`
}

// DeploymentResponse — ответ с deployment.
type DeploymentResponse struct {
	ID                   uuid.UUID  `json:"id"`
	ProjectID            uuid.UUID  `json:"project_id"`
	UserID               *uuid.UUID `json:"user_id,omitempty"`
	Status               string     `json:"status"`
	TriggeredBy          string     `json:"triggered_by"`
	Branch               string     `json:"branch"`
	CommitHash           string     `json:"commit_hash,omitempty"`
	CommitMessage        string     `json:"commit_message,omitempty"`
	RollbackDeploymentID *uuid.UUID `json:"rollback_deployment_id,omitempty"`
	StartedAt            *time.Time `json:"started_at,omitempty"`
	CompletedAt          *time.Time `json:"completed_at,omitempty"`
	DurationSeconds      *int64     `json:"duration_seconds,omitempty"`
	ErrorLog             string     `json:"error_log,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
}

// DeploymentFromDomain конвертирует domain.Deployment в DeploymentResponse.
func DeploymentFromDomain(d domain.Deployment) DeploymentResponse {
	return DeploymentResponse{
		ID:                   d.ID,
		ProjectID:            d.ProjectID,
		UserID:               d.UserID,
		Status:               string(d.Status),
		TriggeredBy:          string(d.TriggeredBy),
		Branch:               d.Branch,
		CommitHash:           d.CommitHash,
		CommitMessage:        d.CommitMessage,
		RollbackDeploymentID: d.RollbackDeploymentID,
		StartedAt:            d.StartedAt,
		CompletedAt:          d.CompletedAt,
		DurationSeconds:      d.DurationSeconds,
		ErrorLog:             d.ErrorLog,
		CreatedAt:            d.CreatedAt,
	}
}

// PipelineStage DTOs

// CreateStageRequest — запрос на создание stage.
type CreateStageRequest struct {
	Name              string   `json:"name"`
	Type              string   `json:"type"`
	Order             int      `json:"order"`
	Commands          []string `json:"commands"`
	IsEnabled         *bool    `json:"is_enabled,omitempty"`
	ContinueOnFailure bool     `json:"continue_on_failure,omitempty"`
	TimeoutSec        int      `json:"timeout_sec,omitempty"`
}

// UpdateStageRequest — запрос на обновление stage.
type UpdateStageRequest struct {
	Name              *string   `json:"name,omitempty"`
	Type              *string   `json:"type,omitempty"`
	Order             *int      `json:"order,omitempty"`
	Commands          *[]string `json:"commands,omitempty"`
	IsEnabled         *bool     `json:"is_enabled,omitempty"`
	ContinueOnFailure *bool     `json:"continue_on_failure,omitempty"`
	TimeoutSec        *int      `json:"timeout_sec,omitempty"`
}

// StageResponse — ответ со stage.
type StageResponse struct {
	ID                uuid.UUID `json:"id"`
	ProjectID         uuid.UUID `json:"project_id"`
	Name              string    `json:"name"`
	Type              string    `json:"type"`
	Order             int       `json:"order"`
	Commands          []string  `json:"commands"`
	IsEnabled         bool      `json:"is_enabled"`
	ContinueOnFailure bool      `json:"continue_on_failure"`
	TimeoutSec        int       `json:"timeout_sec,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}

// StageFromDomain конвертирует domain.PipelineStage в StageResponse.
func StageFromDomain(s domain.PipelineStage) StageResponse {
	return StageResponse{
		ID:                s.ID,
		ProjectID:         s.ProjectID,
		Name:              s.Name,
		Type:              string(s.Type),
		Order:             s.Order,
		Commands:          s.Commands,
		IsEnabled:         s.IsEnabled,
		ContinueOnFailure: s.ContinueOnFailure,
		TimeoutSec:        s.TimeoutSec,
		CreatedAt:         s.CreatedAt,
	}
}

// PipelineRun DTOs

// PipelineRunResponse — ответ с pipeline run.
type PipelineRunResponse struct {
	ID           uuid.UUID  `json:"id"`
	ProjectID    uuid.UUID  `json:"project_id"`
	DeploymentID *uuid.UUID `json:"deployment_id,omitempty"`
	Status       string     `json:"status"`
	TriggeredBy  string     `json:"triggered_by"`
	CommitHash   string     `json:"commit_hash,omitempty"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
	Error        string     `json:"error,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// PipelineRunFromDomain конвертирует domain.PipelineRun в PipelineRunResponse.
func PipelineRunFromDomain(r domain.PipelineRun) PipelineRunResponse {
	return PipelineRunResponse{
		ID:           r.ID,
		ProjectID:    r.ProjectID,
		DeploymentID: r.DeploymentID,
		Status:       string(r.Status),
		TriggeredBy:  string(r.TriggeredBy),
		CommitHash:   r.CommitHash,
		StartedAt:    r.StartedAt,
		FinishedAt:   r.FinishedAt,
		Error:        r.Error,
		CreatedAt:    r.CreatedAt,
	}
}

// StageRunResponse — ответ со stage run.
type StageRunResponse struct {
	ID              uuid.UUID  `json:"id"`
	PipelineRunID   uuid.UUID  `json:"pipeline_run_id"`
	PipelineStageID uuid.UUID  `json:"pipeline_stage_id"`
	Name            string     `json:"name"`
	Status          string     `json:"status"`
	Output          string     `json:"output,omitempty"`
	Error           string     `json:"error,omitempty"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	FinishedAt      *time.Time `json:"finished_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// StageRunFromDomain конвертирует domain.PipelineStageRun в StageRunResponse.
func StageRunFromDomain(sr domain.PipelineStageRun) StageRunResponse {
	return StageRunResponse{
		ID:              sr.ID,
		PipelineRunID:   sr.PipelineRunID,
		PipelineStageID: sr.PipelineStageID,
		Name:            sr.Name,
		Status:          string(sr.Status),
		Output:          sr.Output,
		Error:           sr.Error,
		StartedAt:       sr.StartedAt,
		FinishedAt:      sr.FinishedAt,
		CreatedAt:       sr.CreatedAt,
	}
}

// Misc DTOs

// LogsResponse — ответ с логами deployment.
type LogsResponse struct {
	DeploymentID uuid.UUID `json:"deployment_id"`
	Logs         string    `json:"logs"`
}

// ValidationResponse — результат проверки готовности проекта к deploy.
type ValidationResponse struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors,omitempty"`
}
