package api

import (
	"log/slog"

	"github.com/devflow/devflow/internal/deploy"
	"github.com/devflow/devflow/internal/pipeline"
	"github.com/devflow/devflow/internal/repo"
)

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	projectRepo    *repo.ProjectRepo
	serverRepo     *repo.ServerRepo
	deploymentRepo *repo.DeploymentRepo
	pipelineRepo   *repo.PipelineRepo
	coordinator    *deploy.Coordinator
	orchestrator   *pipeline.Orchestrator
	logger         *slog.Logger
}

// Config — конфигурация для создания Handler.
type Config struct {
	ProjectRepo    *repo.ProjectRepo
	ServerRepo     *repo.ServerRepo
	DeploymentRepo *repo.DeploymentRepo
	PipelineRepo   *repo.PipelineRepo
	Coordinator    *deploy.Coordinator

	// Orchestrator — опционально. Без него отмена pipeline run
	// недоступна через API.
	Orchestrator *pipeline.Orchestrator

	Logger *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	return &Handler{
		projectRepo:    cfg.ProjectRepo,
		serverRepo:     cfg.ServerRepo,
		deploymentRepo: cfg.DeploymentRepo,
		pipelineRepo:   cfg.PipelineRepo,
		coordinator:    cfg.Coordinator,
		orchestrator:   cfg.Orchestrator,
		logger:         cfg.Logger,
	}
}
