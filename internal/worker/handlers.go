package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/devflow/devflow/internal/domain"
	"github.com/devflow/devflow/internal/mq"
	"github.com/devflow/devflow/internal/pipeline"
	"github.com/devflow/devflow/internal/repo"
	"github.com/devflow/devflow/internal/telemetry"
)

// handleDeploymentPending обрабатывает событие из очереди deployments.pending.
func (w *Worker) handleDeploymentPending(ctx context.Context, delivery *mq.Delivery) error {
	payload, err := mq.ParsePayload[mq.DeploymentPendingPayload](&delivery.Message)
	if err != nil {
		w.logger.Error("failed to parse deployment.pending payload", "error", err)
		return err
	}

	w.logger.Debug("received deployment.pending event",
		"deployment_id", payload.DeploymentID,
		"project_id", payload.ProjectID,
	)

	if err := w.processDeployment(ctx, payload.DeploymentID); err != nil {
		// Ожидаемые ситуации — не возвращаем ошибку (ack):
		// deployment уже подхвачен polling'ом или отменён
		if errors.Is(err, ErrDeploymentNotFound) || errors.Is(err, ErrDeploymentNotPending) {
			w.logger.Debug("deployment not processed",
				"deployment_id", payload.DeploymentID, "reason", err)
			return nil
		}
		w.logger.Error("failed to process deployment",
			"deployment_id", payload.DeploymentID, "error", err)
		return err
	}

	return nil
}

// processDeployment выполняет один deployment от подхвата до финализации.
//
// Неудача выполнения — не ошибка обработки: она записывается в
// deployment (статус failed, error_log), а сообщение подтверждается.
func (w *Worker) processDeployment(ctx context.Context, deploymentID uuid.UUID) error {
	d, err := w.deployments.GetByID(ctx, deploymentID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrDeploymentNotFound, deploymentID)
		}
		return fmt.Errorf("get deployment: %w", err)
	}

	if d.Status != domain.DeploymentStatusPending {
		return ErrDeploymentNotPending
	}

	project, err := w.projects.GetByID(ctx, d.ProjectID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrProjectNotFound, d.ProjectID)
		}
		return fmt.Errorf("get project: %w", err)
	}

	// pending → running в момент подхвата. Условный UPDATE: consumer
	// и polling (или второй воркер) не могут подхватить один
	// deployment дважды.
	d.MarkRunning()
	claimed, err := w.deployments.ClaimPending(ctx, d.ID, *d.StartedAt)
	if err != nil {
		return fmt.Errorf("claim deployment: %w", err)
	}
	if !claimed {
		return ErrDeploymentNotPending
	}

	telemetry.DeploymentsStarted.Inc()

	logger := telemetry.WithDeploymentID(w.logger, d.ID.String())
	logger.Info("deployment started",
		"project_id", project.ID,
		"triggered_by", d.TriggeredBy,
		"commit_hash", d.CommitHash,
	)

	execErr := w.execute(ctx, d, project)

	// Deployment мог быть отменён, пока выполнялся. Перечитываем
	// и не перетираем терминальный статус.
	current, err := w.deployments.GetByID(ctx, d.ID)
	if err != nil {
		return fmt.Errorf("reload deployment: %w", err)
	}
	if current.IsFinished() {
		logger.Info("deployment finished externally, skipping finalization",
			"status", current.Status)
		return nil
	}

	if execErr != nil {
		d.MarkFailed(execErr.Error())
		if err := w.deployments.Update(ctx, d); err != nil {
			return fmt.Errorf("update deployment to failed: %w", err)
		}

		w.observeFinished(d)
		logger.Warn("deployment failed", "error", execErr)
		return nil
	}

	d.MarkSuccess()
	if err := w.deployments.Update(ctx, d); err != nil {
		return fmt.Errorf("update deployment to success: %w", err)
	}

	w.observeFinished(d)
	w.updateProjectCommitInfo(ctx, project, d)

	logger.Info("deployment succeeded", "duration_seconds", d.DurationSeconds)
	return nil
}

// execute выбирает путь выполнения deployment.
func (w *Worker) execute(ctx context.Context, d *domain.Deployment, project *domain.Project) error {
	hasStages, err := w.stages.HasEnabledStages(ctx, project.ID)
	if err != nil {
		return fmt.Errorf("check pipeline stages: %w", err)
	}

	if hasStages {
		return w.executePipeline(ctx, d, project)
	}

	return w.executeDirect(ctx, d, project)
}

// executePipeline выполняет deployment через pipeline оркестратор.
func (w *Worker) executePipeline(ctx context.Context, d *domain.Deployment, project *domain.Project) error {
	var env map[string]string
	if d.EnvironmentSnapshot != nil {
		env = d.EnvironmentSnapshot.EnvVariables
	}

	deploymentID := d.ID
	run, err := w.pipeline.ExecutePipeline(ctx, pipeline.ExecContext{
		Project:      project,
		DeploymentID: &deploymentID,
		TriggeredBy:  d.TriggeredBy,
		CommitHash:   d.CommitHash,
		Env:          env,
	})
	if err != nil {
		return fmt.Errorf("pipeline execution: %w", err)
	}

	d.AppendOutput(fmt.Sprintf("Pipeline run %s finished: %s", run.ID, run.Status))

	switch run.Status {
	case domain.RunStatusSuccess:
		return nil
	case domain.RunStatusCancelled:
		// Отмену финализирует CancelDeployment, здесь только фиксируем
		return fmt.Errorf("pipeline cancelled")
	default:
		if run.Error != "" {
			return fmt.Errorf("pipeline failed: %s", run.Error)
		}
		return fmt.Errorf("pipeline failed")
	}
}

// executeDirect — прямой путь deploy без pipeline stages:
// git sync и, при наличии docker-compose.yml, пересборка контейнеров.
func (w *Worker) executeDirect(ctx context.Context, d *domain.Deployment, project *domain.Project) error {
	d.AppendOutput("=== Updating Repository ===")

	out, err := w.git.Sync(ctx, project)
	if out != "" {
		d.AppendOutput(out)
	}
	if err != nil {
		return fmt.Errorf("repository sync: %w", err)
	}

	// Commit-информация могла быть неизвестна при создании
	if d.CommitHash == "" {
		if info, err := w.git.CurrentCommit(ctx, project); err == nil {
			d.CommitHash = info.Hash
			d.CommitMessage = info.Message
			d.AppendOutput(fmt.Sprintf("Commit: %s (%s)", info.ShortHash, info.Message))
		} else {
			w.logger.Warn("failed to read commit after sync",
				"project_id", project.ID, "error", err)
		}
	}

	usesCompose, err := w.compose.UsesCompose(ctx, project)
	if err != nil {
		return fmt.Errorf("detect docker compose: %w", err)
	}

	if !usesCompose {
		d.AppendOutput("No docker-compose.yml, skipping container restart")
		return nil
	}

	d.AppendOutput("=== Building Containers ===")
	out, err = w.compose.Build(ctx, project)
	if out != "" {
		d.AppendOutput(out)
	}
	if err != nil {
		return fmt.Errorf("container build: %w", err)
	}

	d.AppendOutput("=== Starting Containers ===")
	out, err = w.compose.Up(ctx, project)
	if out != "" {
		d.AppendOutput(out)
	}
	if err != nil {
		return fmt.Errorf("container start: %w", err)
	}

	return nil
}

// updateProjectCommitInfo переносит commit-информацию успешного
// deployment на проект. Неудача записи не отменяет успех deploy.
func (w *Worker) updateProjectCommitInfo(ctx context.Context, project *domain.Project, d *domain.Deployment) {
	if d.CommitHash != "" {
		project.CurrentCommitHash = d.CommitHash
		project.CurrentCommitMessage = d.CommitMessage
	}
	now := time.Now()
	project.LastDeployedAt = &now

	if err := w.projects.Update(ctx, project); err != nil {
		w.logger.Warn("failed to update project commit info",
			"project_id", project.ID, "error", err)
	}
}

// observeFinished обновляет метрики завершённого deployment.
func (w *Worker) observeFinished(d *domain.Deployment) {
	telemetry.DeploymentsFinished.WithLabelValues(string(d.Status)).Inc()
	if d.DurationSeconds != nil {
		telemetry.DeploymentDuration.Observe(float64(*d.DurationSeconds))
	}
}
