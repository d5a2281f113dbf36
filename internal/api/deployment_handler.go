package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/devflow/devflow/internal/deploy"
	"github.com/devflow/devflow/internal/domain"
	"github.com/devflow/devflow/internal/repo"
)

// CreateDeployment запускает deployment проекта.
// POST /api/v1/projects/{id}/deployments
func (h *Handler) CreateDeployment(w http.ResponseWriter, r *http.Request) {
	project, ok := h.loadProject(w, r)
	if !ok {
		return
	}

	var req CreateDeploymentRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			BadRequest(w, "invalid request body")
			return
		}
	}

	if result := deploy.ValidateDeploymentPrerequisites(project); !result.Valid {
		JSON(w, http.StatusUnprocessableEntity, ValidationResponse{
			Valid:  false,
			Errors: result.Errors,
		})
		return
	}

	d, err := h.coordinator.Deploy(r.Context(), project, req.UserID, domain.TriggeredByManual, "")
	if err != nil {
		if errors.Is(err, deploy.ErrDeploymentInProgress) {
			Conflict(w, err.Error())
			return
		}
		InternalError(w, h.logger, err)
		return
	}

	Created(w, DeploymentFromDomain(*d))
}

// RollbackDeployment откатывает проект на предыдущий deployment.
// POST /api/v1/projects/{id}/rollback
//
// Без target_deployment_id в теле откатывает на последний успешный.
func (h *Handler) RollbackDeployment(w http.ResponseWriter, r *http.Request) {
	project, ok := h.loadProject(w, r)
	if !ok {
		return
	}

	var req RollbackRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			BadRequest(w, "invalid request body")
			return
		}
	}

	var d *domain.Deployment
	var err error

	if req.TargetDeploymentID != nil {
		var target *domain.Deployment
		target, err = h.deploymentRepo.GetByID(r.Context(), *req.TargetDeploymentID)
		if HandleRepoError(w, h.logger, err, "target deployment not found") {
			return
		}
		d, err = h.coordinator.Rollback(r.Context(), project, target, req.UserID)
	} else {
		d, err = h.coordinator.RollbackToLastSuccess(r.Context(), project, time.Now(), req.UserID)
	}

	if err != nil {
		switch {
		case errors.Is(err, deploy.ErrDeploymentInProgress):
			Conflict(w, err.Error())
		case errors.Is(err, deploy.ErrRollbackWrongProject),
			errors.Is(err, deploy.ErrRollbackNotSuccessful),
			errors.Is(err, deploy.ErrRollbackNoCommit),
			errors.Is(err, deploy.ErrNoSuccessfulDeployment):
			InvalidState(w, err.Error())
		default:
			InternalError(w, h.logger, err)
		}
		return
	}

	Created(w, DeploymentFromDomain(*d))
}

// BatchDeploy запускает deploy нескольких проектов.
// POST /api/v1/deployments/batch
//
// Неудача одного проекта не прерывает остальные.
func (h *Handler) BatchDeploy(w http.ResponseWriter, r *http.Request) {
	var req BatchDeployRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	if len(req.ProjectIDs) == 0 {
		BadRequest(w, "project_ids is required")
		return
	}

	var projects []domain.Project
	for _, id := range req.ProjectIDs {
		p, err := h.projectRepo.GetByID(r.Context(), id)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				NotFound(w, "project not found: "+id.String())
				return
			}
			InternalError(w, h.logger, err)
			return
		}
		projects = append(projects, *p)
	}

	result := h.coordinator.BatchDeploy(r.Context(), projects, req.UserID)

	resp := BatchDeployResponse{
		Successful:  result.Successful,
		Failed:      result.Failed,
		Deployments: make([]DeploymentResponse, len(result.Deployments)),
	}
	for i, d := range result.Deployments {
		resp.Deployments[i] = DeploymentFromDomain(d)
	}

	Success(w, resp)
}

// ListDeployments возвращает последние deployments проекта.
// GET /api/v1/projects/{id}/deployments?limit=10
func (h *Handler) ListDeployments(w http.ResponseWriter, r *http.Request) {
	project, ok := h.loadProject(w, r)
	if !ok {
		return
	}

	limit := 10
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		n, err := strconv.Atoi(limitStr)
		if err != nil || n <= 0 {
			BadRequest(w, "invalid limit")
			return
		}
		limit = n
	}

	deployments, err := h.coordinator.RecentDeployments(r.Context(), project.ID, limit)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]DeploymentResponse, len(deployments))
	for i, d := range deployments {
		result[i] = DeploymentFromDomain(d)
	}

	List(w, result, len(result))
}

// GetDeployment возвращает deployment по ID.
// GET /api/v1/deployments/{id}
func (h *Handler) GetDeployment(w http.ResponseWriter, r *http.Request) {
	d, ok := h.loadDeployment(w, r)
	if !ok {
		return
	}
	Success(w, DeploymentFromDomain(*d))
}

// CancelDeployment отменяет активный deployment.
// POST /api/v1/deployments/{id}/cancel
func (h *Handler) CancelDeployment(w http.ResponseWriter, r *http.Request) {
	d, ok := h.loadDeployment(w, r)
	if !ok {
		return
	}

	cancelled, err := h.coordinator.CancelDeployment(r.Context(), d)
	if err != nil {
		InternalError(w, h.logger, err)
		return
	}
	if !cancelled {
		InvalidState(w, "deployment is already finished")
		return
	}

	// Останавливаем связанный pipeline run, если он есть
	if h.orchestrator != nil {
		run, err := h.pipelineRepo.GetRunByDeployment(r.Context(), d.ID)
		if err == nil {
			if _, err := h.orchestrator.CancelPipeline(r.Context(), run.ID); err != nil {
				h.logger.Warn("failed to cancel pipeline run",
					"deployment_id", d.ID, "run_id", run.ID, "error", err)
			}
		} else if !errors.Is(err, repo.ErrNotFound) {
			h.logger.Warn("failed to look up pipeline run",
				"deployment_id", d.ID, "error", err)
		}
	}

	Success(w, DeploymentFromDomain(*d))
}

// GetDeploymentLogs возвращает логи deployment.
// GET /api/v1/deployments/{id}/logs
func (h *Handler) GetDeploymentLogs(w http.ResponseWriter, r *http.Request) {
	d, ok := h.loadDeployment(w, r)
	if !ok {
		return
	}

	Success(w, LogsResponse{DeploymentID: d.ID, Logs: d.FormatLogs()})
}

// loadDeployment достаёт deployment из path-параметра {id}.
func (h *Handler) loadDeployment(w http.ResponseWriter, r *http.Request) (*domain.Deployment, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid deployment id")
		return nil, false
	}

	d, err := h.deploymentRepo.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "deployment not found") {
		return nil, false
	}
	return d, true
}
