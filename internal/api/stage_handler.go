package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/devflow/devflow/internal/domain"
)

// ListStages возвращает pipeline stages проекта.
// GET /api/v1/projects/{id}/stages
func (h *Handler) ListStages(w http.ResponseWriter, r *http.Request) {
	project, ok := h.loadProject(w, r)
	if !ok {
		return
	}

	stages, err := h.pipelineRepo.ListStages(r.Context(), project.ID)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]StageResponse, len(stages))
	for i, s := range stages {
		result[i] = StageFromDomain(s)
	}

	List(w, result, len(result))
}

// CreateStage создаёт pipeline stage.
// POST /api/v1/projects/{id}/stages
func (h *Handler) CreateStage(w http.ResponseWriter, r *http.Request) {
	project, ok := h.loadProject(w, r)
	if !ok {
		return
	}

	var req CreateStageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	if req.Name == "" {
		BadRequest(w, "name is required")
		return
	}

	stageType := domain.StageType(req.Type)
	if !stageType.Valid() {
		BadRequest(w, "invalid stage type")
		return
	}

	enabled := true
	if req.IsEnabled != nil {
		enabled = *req.IsEnabled
	}

	stage := &domain.PipelineStage{
		ID:                uuid.New(),
		ProjectID:         project.ID,
		Name:              req.Name,
		Type:              stageType,
		Order:             req.Order,
		Commands:          req.Commands,
		IsEnabled:         enabled,
		ContinueOnFailure: req.ContinueOnFailure,
		TimeoutSec:        req.TimeoutSec,
		CreatedAt:         time.Now(),
	}

	if err := h.pipelineRepo.CreateStage(r.Context(), stage); err != nil {
		InternalError(w, h.logger, err)
		return
	}

	Created(w, StageFromDomain(*stage))
}

// UpdateStage обновляет pipeline stage.
// PUT /api/v1/stages/{id}
func (h *Handler) UpdateStage(w http.ResponseWriter, r *http.Request) {
	stage, ok := h.loadStage(w, r)
	if !ok {
		return
	}

	var req UpdateStageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	if req.Name != nil {
		stage.Name = *req.Name
	}
	if req.Type != nil {
		stageType := domain.StageType(*req.Type)
		if !stageType.Valid() {
			BadRequest(w, "invalid stage type")
			return
		}
		stage.Type = stageType
	}
	if req.Order != nil {
		stage.Order = *req.Order
	}
	if req.Commands != nil {
		stage.Commands = *req.Commands
	}
	if req.IsEnabled != nil {
		stage.IsEnabled = *req.IsEnabled
	}
	if req.ContinueOnFailure != nil {
		stage.ContinueOnFailure = *req.ContinueOnFailure
	}
	if req.TimeoutSec != nil {
		stage.TimeoutSec = *req.TimeoutSec
	}

	if err := h.pipelineRepo.UpdateStage(r.Context(), stage); HandleRepoError(w, h.logger, err, "stage not found") {
		return
	}

	Success(w, StageFromDomain(*stage))
}

// DeleteStage удаляет pipeline stage.
// DELETE /api/v1/stages/{id}
func (h *Handler) DeleteStage(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid stage id")
		return
	}

	if err := h.pipelineRepo.DeleteStage(r.Context(), id); HandleRepoError(w, h.logger, err, "stage not found") {
		return
	}

	NoContent(w)
}

// SetStageEnabled включает или выключает stage.
// PUT /api/v1/stages/{id}/enabled
func (h *Handler) SetStageEnabled(w http.ResponseWriter, r *http.Request) {
	stage, ok := h.loadStage(w, r)
	if !ok {
		return
	}

	var req struct {
		Enabled bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	stage.IsEnabled = req.Enabled

	if err := h.pipelineRepo.UpdateStage(r.Context(), stage); HandleRepoError(w, h.logger, err, "stage not found") {
		return
	}

	Success(w, StageFromDomain(*stage))
}

// loadStage достаёт stage из path-параметра {id}.
func (h *Handler) loadStage(w http.ResponseWriter, r *http.Request) (*domain.PipelineStage, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid stage id")
		return nil, false
	}

	stage, err := h.pipelineRepo.GetStage(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "stage not found") {
		return nil, false
	}
	return stage, true
}
