package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/devflow/devflow/internal/deploy"
	"github.com/devflow/devflow/internal/domain"
	"github.com/devflow/devflow/internal/scheduler"
)

// ListProjects возвращает список проектов.
// GET /api/v1/projects
func (h *Handler) ListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := h.projectRepo.List(r.Context())
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]ProjectResponse, len(projects))
	for i, p := range projects {
		result[i] = ProjectFromDomain(p)
	}

	List(w, result, len(result))
}

// CreateProject создаёт новый проект.
// POST /api/v1/projects
func (h *Handler) CreateProject(w http.ResponseWriter, r *http.Request) {
	var req CreateProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	if req.Name == "" || req.Slug == "" {
		BadRequest(w, "name and slug are required")
		return
	}

	if req.AutoDeploy {
		if err := scheduler.ValidateCronExpr(req.DeployCron); err != nil {
			BadRequest(w, err.Error())
			return
		}
	}

	now := time.Now()
	project := &domain.Project{
		ID:            uuid.New(),
		Name:          req.Name,
		Slug:          req.Slug,
		ServerID:      req.ServerID,
		RepositoryURL: req.RepositoryURL,
		Branch:        req.Branch,
		Environment:   req.Environment,
		PHPVersion:    req.PHPVersion,
		Framework:     req.Framework,
		EnvVariables:  req.EnvVariables,
		AutoDeploy:    req.AutoDeploy,
		DeployCron:    req.DeployCron,
		CreatedAt:     now,
	}

	if project.AutoDeploy {
		next, err := scheduler.CalculateNextDue(project.DeployCron, now)
		if err == nil {
			project.NextAutoDeployAt = &next
		}
	}

	if err := h.projectRepo.Create(r.Context(), project); HandleRepoError(w, h.logger, err, "") {
		return
	}

	Created(w, ProjectFromDomain(*project))
}

// GetProject возвращает проект по ID.
// GET /api/v1/projects/{id}
func (h *Handler) GetProject(w http.ResponseWriter, r *http.Request) {
	project, ok := h.loadProject(w, r)
	if !ok {
		return
	}
	Success(w, ProjectFromDomain(*project))
}

// UpdateProject обновляет проект.
// PUT /api/v1/projects/{id}
func (h *Handler) UpdateProject(w http.ResponseWriter, r *http.Request) {
	project, ok := h.loadProject(w, r)
	if !ok {
		return
	}

	var req UpdateProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	if req.Name != nil {
		project.Name = *req.Name
	}
	if req.ServerID != nil {
		project.ServerID = req.ServerID
		project.Server = nil
	}
	if req.RepositoryURL != nil {
		project.RepositoryURL = *req.RepositoryURL
	}
	if req.Branch != nil {
		project.Branch = *req.Branch
	}
	if req.Environment != nil {
		project.Environment = *req.Environment
	}
	if req.PHPVersion != nil {
		project.PHPVersion = *req.PHPVersion
	}
	if req.Framework != nil {
		project.Framework = *req.Framework
	}
	if req.EnvVariables != nil {
		project.EnvVariables = *req.EnvVariables
	}
	if req.DeployCron != nil {
		project.DeployCron = *req.DeployCron
	}
	if req.AutoDeploy != nil {
		project.AutoDeploy = *req.AutoDeploy
	}

	if project.AutoDeploy && (req.AutoDeploy != nil || req.DeployCron != nil) {
		if err := scheduler.ValidateCronExpr(project.DeployCron); err != nil {
			BadRequest(w, err.Error())
			return
		}
		next, err := scheduler.CalculateNextDue(project.DeployCron, time.Now())
		if err == nil {
			project.NextAutoDeployAt = &next
		}
	}
	if !project.AutoDeploy {
		project.NextAutoDeployAt = nil
	}

	if err := h.projectRepo.Update(r.Context(), project); HandleRepoError(w, h.logger, err, "project not found") {
		return
	}

	Success(w, ProjectFromDomain(*project))
}

// ValidateProject проверяет готовность проекта к deploy.
// GET /api/v1/projects/{id}/validate
func (h *Handler) ValidateProject(w http.ResponseWriter, r *http.Request) {
	project, ok := h.loadProject(w, r)
	if !ok {
		return
	}

	result := deploy.ValidateDeploymentPrerequisites(project)
	Success(w, ValidationResponse{Valid: result.Valid, Errors: result.Errors})
}

// CheckProjectUpdates сравнивает рабочую копию проекта с origin.
// GET /api/v1/projects/{id}/updates
func (h *Handler) CheckProjectUpdates(w http.ResponseWriter, r *http.Request) {
	project, ok := h.loadProject(w, r)
	if !ok {
		return
	}

	Success(w, h.coordinator.CheckForUpdates(r.Context(), project))
}

// GetProjectStats возвращает статистику deployments проекта.
// GET /api/v1/projects/{id}/stats?days=30
func (h *Handler) GetProjectStats(w http.ResponseWriter, r *http.Request) {
	project, ok := h.loadProject(w, r)
	if !ok {
		return
	}

	days := 30
	if daysStr := r.URL.Query().Get("days"); daysStr != "" {
		n, err := strconv.Atoi(daysStr)
		if err != nil || n <= 0 {
			BadRequest(w, "invalid days")
			return
		}
		days = n
	}

	stats, err := h.coordinator.Stats(r.Context(), project.ID, days)
	if err != nil {
		InternalError(w, h.logger, err)
		return
	}

	Success(w, stats)
}

// loadProject достаёт проект из path-параметра {id}.
func (h *Handler) loadProject(w http.ResponseWriter, r *http.Request) (*domain.Project, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid project id")
		return nil, false
	}

	project, err := h.projectRepo.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "project not found") {
		return nil, false
	}
	return project, true
}
