package api

import (
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/devflow/devflow/internal/pipeline"
)

// GetPipelineRun возвращает pipeline run по ID.
// GET /api/v1/pipeline-runs/{id}
func (h *Handler) GetPipelineRun(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid run id")
		return
	}

	run, err := h.pipelineRepo.GetRun(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "pipeline run not found") {
		return
	}

	Success(w, PipelineRunFromDomain(*run))
}

// ListPipelineStageRuns возвращает stage runs одного pipeline run.
// GET /api/v1/pipeline-runs/{id}/stages
func (h *Handler) ListPipelineStageRuns(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid run id")
		return
	}

	if _, err := h.pipelineRepo.GetRun(r.Context(), id); HandleRepoError(w, h.logger, err, "pipeline run not found") {
		return
	}

	stageRuns, err := h.pipelineRepo.ListStageRuns(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]StageRunResponse, len(stageRuns))
	for i, sr := range stageRuns {
		result[i] = StageRunFromDomain(sr)
	}

	List(w, result, len(result))
}

// CancelPipelineRun отменяет выполняющийся pipeline run.
// POST /api/v1/pipeline-runs/{id}/cancel
func (h *Handler) CancelPipelineRun(w http.ResponseWriter, r *http.Request) {
	if h.orchestrator == nil {
		InvalidState(w, "pipeline cancellation is not available on this node")
		return
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid run id")
		return
	}

	cancelled, err := h.orchestrator.CancelPipeline(r.Context(), id)
	if err != nil {
		if errors.Is(err, pipeline.ErrRunNotFound) {
			NotFound(w, "pipeline run not found")
			return
		}
		InternalError(w, h.logger, err)
		return
	}
	if !cancelled {
		InvalidState(w, "pipeline run is already finished")
		return
	}

	run, err := h.pipelineRepo.GetRun(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "pipeline run not found") {
		return
	}

	Success(w, PipelineRunFromDomain(*run))
}
