package api

import (
	"net/http"
)

// RegisterRoutes регистрирует все маршруты API.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Middleware chain
	chain := Chain(
		Recovery(h.logger),
		Logging(h.logger),
	)

	// Servers
	mux.Handle("GET /api/v1/servers", chain(http.HandlerFunc(h.ListServers)))
	mux.Handle("POST /api/v1/servers", chain(http.HandlerFunc(h.CreateServer)))
	mux.Handle("GET /api/v1/servers/{id}", chain(http.HandlerFunc(h.GetServer)))
	mux.Handle("PUT /api/v1/servers/{id}/status", chain(http.HandlerFunc(h.SetServerStatus)))

	// Projects
	mux.Handle("GET /api/v1/projects", chain(http.HandlerFunc(h.ListProjects)))
	mux.Handle("POST /api/v1/projects", chain(http.HandlerFunc(h.CreateProject)))
	mux.Handle("GET /api/v1/projects/{id}", chain(http.HandlerFunc(h.GetProject)))
	mux.Handle("PUT /api/v1/projects/{id}", chain(http.HandlerFunc(h.UpdateProject)))
	mux.Handle("GET /api/v1/projects/{id}/validate", chain(http.HandlerFunc(h.ValidateProject)))
	mux.Handle("GET /api/v1/projects/{id}/updates", chain(http.HandlerFunc(h.CheckProjectUpdates)))
	mux.Handle("GET /api/v1/projects/{id}/stats", chain(http.HandlerFunc(h.GetProjectStats)))

	// Deployments
	mux.Handle("GET /api/v1/projects/{id}/deployments", chain(http.HandlerFunc(h.ListDeployments)))
	mux.Handle("POST /api/v1/projects/{id}/deployments", chain(http.HandlerFunc(h.CreateDeployment)))
	mux.Handle("POST /api/v1/projects/{id}/rollback", chain(http.HandlerFunc(h.RollbackDeployment)))
	mux.Handle("POST /api/v1/deployments/batch", chain(http.HandlerFunc(h.BatchDeploy)))
	mux.Handle("GET /api/v1/deployments/{id}", chain(http.HandlerFunc(h.GetDeployment)))
	mux.Handle("POST /api/v1/deployments/{id}/cancel", chain(http.HandlerFunc(h.CancelDeployment)))
	mux.Handle("GET /api/v1/deployments/{id}/logs", chain(http.HandlerFunc(h.GetDeploymentLogs)))

	// Pipeline stages
	mux.Handle("GET /api/v1/projects/{id}/stages", chain(http.HandlerFunc(h.ListStages)))
	mux.Handle("POST /api/v1/projects/{id}/stages", chain(http.HandlerFunc(h.CreateStage)))
	mux.Handle("PUT /api/v1/stages/{id}", chain(http.HandlerFunc(h.UpdateStage)))
	mux.Handle("DELETE /api/v1/stages/{id}", chain(http.HandlerFunc(h.DeleteStage)))
	mux.Handle("PUT /api/v1/stages/{id}/enabled", chain(http.HandlerFunc(h.SetStageEnabled)))

	// Pipeline runs
	mux.Handle("GET /api/v1/pipeline-runs/{id}", chain(http.HandlerFunc(h.GetPipelineRun)))
	mux.Handle("GET /api/v1/pipeline-runs/{id}/stages", chain(http.HandlerFunc(h.ListPipelineStageRuns)))
	mux.Handle("POST /api/v1/pipeline-runs/{id}/cancel", chain(http.HandlerFunc(h.CancelPipelineRun)))
}
