package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/devflow/devflow/internal/domain"
	"github.com/devflow/devflow/internal/runner"
	"github.com/devflow/devflow/internal/telemetry"
)

// Store — хранилище stages и runs, нужное оркестратору.
// Реализуется repo.PipelineRepo; в тестах — in-memory фейком.
type Store interface {
	ListEnabledStages(ctx context.Context, projectID uuid.UUID) ([]domain.PipelineStage, error)

	CreateRun(ctx context.Context, run *domain.PipelineRun) error
	GetRun(ctx context.Context, id uuid.UUID) (*domain.PipelineRun, error)
	UpdateRun(ctx context.Context, run *domain.PipelineRun) error

	CreateStageRun(ctx context.Context, sr *domain.PipelineStageRun) error
	UpdateStageRun(ctx context.Context, sr *domain.PipelineStageRun) error
	ListStageRuns(ctx context.Context, runID uuid.UUID) ([]domain.PipelineStageRun, error)
}

// ExecContext — контекст одного pipeline-выполнения.
type ExecContext struct {
	// Project — проект, чей pipeline выполняется. Сервер должен
	// быть предзагружен.
	Project *domain.Project

	// DeploymentID — deployment, в рамках которого идёт run.
	// Nil для ad-hoc запусков.
	DeploymentID *uuid.UUID

	// TriggeredBy — источник запуска.
	TriggeredBy domain.TriggeredBy

	// CommitHash — commit, для которого выполняется pipeline.
	CommitHash string

	// Env — переменные окружения для команд (снимок deployment,
	// не текущие настройки проекта).
	Env map[string]string
}

// runState — кооперативный флаг отмены активного run.
type runState struct {
	cancelled atomic.Bool
}

// Orchestrator выполняет pipelines проектов.
type Orchestrator struct {
	store  Store
	runner runner.CommandRunner
	logger *slog.Logger

	// Активные runs для кооперативной отмены (runID → state)
	mu     sync.Mutex
	active map[uuid.UUID]*runState
}

// Config — конфигурация Orchestrator.
type Config struct {
	Store  Store
	Runner runner.CommandRunner
	Logger *slog.Logger
}

// New создаёт Orchestrator.
func New(cfg Config) *Orchestrator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Orchestrator{
		store:  cfg.Store,
		runner: cfg.Runner,
		logger: logger,
		active: make(map[uuid.UUID]*runState),
	}
}

// ExecutePipeline выполняет pipeline проекта от начала до конца.
//
// Блокируется до завершения всех stages. Stages выполняются строго
// последовательно; неудача stage без continue_on_failure прерывает
// выполнение — оставшиеся stages не получают stage run вовсе.
func (o *Orchestrator) ExecutePipeline(ctx context.Context, ec ExecContext) (*domain.PipelineRun, error) {
	stages, err := o.store.ListEnabledStages(ctx, ec.Project.ID)
	if err != nil {
		return nil, fmt.Errorf("load stages: %w", err)
	}
	sortStages(stages)

	run := &domain.PipelineRun{
		ID:           uuid.New(),
		ProjectID:    ec.Project.ID,
		DeploymentID: ec.DeploymentID,
		Status:       domain.RunStatusPending,
		TriggeredBy:  ec.TriggeredBy,
		CommitHash:   ec.CommitHash,
		CreatedAt:    time.Now(),
	}
	run.MarkRunning()
	if err := o.store.CreateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}

	state := &runState{}
	o.mu.Lock()
	o.active[run.ID] = state
	o.mu.Unlock()
	defer func() {
		o.mu.Lock()
		delete(o.active, run.ID)
		o.mu.Unlock()
	}()

	logger := o.logger.With("run_id", run.ID, "project_id", ec.Project.ID)
	logger.Info("pipeline started", "stages", len(stages))

	for i := range stages {
		stage := &stages[i]

		if state.cancelled.Load() {
			// Статусы выставил CancelPipeline, здесь только выходим
			logger.Info("pipeline cancelled, stopping")
			return o.reloadRun(ctx, run.ID)
		}

		ok, cancelled := o.executeStage(ctx, state, run, stage, ec)
		if cancelled {
			logger.Info("pipeline cancelled during stage", "stage", stage.Name)
			return o.reloadRun(ctx, run.ID)
		}

		if !ok && !stage.ContinueOnFailure {
			run.MarkFailed(fmt.Sprintf("stage %q failed", stage.Name))
			if err := o.store.UpdateRun(ctx, run); err != nil {
				return nil, fmt.Errorf("update run: %w", err)
			}
			logger.Warn("pipeline failed", "stage", stage.Name)
			return run, nil
		}

		if !ok {
			logger.Warn("stage failed, continuing", "stage", stage.Name)
		}
	}

	if state.cancelled.Load() {
		return o.reloadRun(ctx, run.ID)
	}

	run.MarkSuccess()
	if err := o.store.UpdateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("update run: %w", err)
	}

	logger.Info("pipeline succeeded", "duration", run.Duration())
	return run, nil
}

// executeStage выполняет один stage.
//
// Возвращает (ok, cancelled): ok=true, если stage успешен или skipped;
// cancelled=true, если выполнение прервано отменой run.
func (o *Orchestrator) executeStage(ctx context.Context, state *runState, run *domain.PipelineRun, stage *domain.PipelineStage, ec ExecContext) (bool, bool) {
	sr := &domain.PipelineStageRun{
		ID:              uuid.New(),
		PipelineRunID:   run.ID,
		PipelineStageID: stage.ID,
		Name:            stage.Name,
		Status:          domain.StageRunStatusPending,
		CreatedAt:       time.Now(),
	}

	// Stage без команд — skipped, для pipeline считается успехом
	if len(stage.Commands) == 0 {
		sr.MarkSkipped()
		if err := o.store.CreateStageRun(ctx, sr); err != nil {
			o.logger.Error("failed to persist skipped stage run", "error", err)
		}
		return true, false
	}

	sr.MarkRunning()
	if err := o.store.CreateStageRun(ctx, sr); err != nil {
		o.logger.Error("failed to persist stage run", "error", err)
		return false, false
	}

	target := runner.Target{
		Server:  ec.Project.Server,
		WorkDir: ec.Project.DeployPath(),
		Env:     envList(ec.Env),
	}

	var output strings.Builder
	for _, command := range stage.Commands {
		// Безопасная точка отмены между командами. Свой stage run
		// закрываем сами: CancelPipeline мог пройтись по stage runs
		// раньше, чем этот был записан.
		if state.cancelled.Load() {
			sr.MarkCancelled()
			o.updateStageRun(ctx, sr)
			return false, true
		}

		res, err := o.runner.Run(ctx, target, command, stage.Timeout())
		if err != nil {
			// Транспортная ошибка эквивалентна ненулевому exit
			sr.MarkFailed(output.String(), fmt.Sprintf("command %q: %v", command, err))
			o.updateStageRun(ctx, sr)
			return false, false
		}

		if res.Stdout != "" {
			output.WriteString(res.Stdout)
			if !strings.HasSuffix(res.Stdout, "\n") {
				output.WriteString("\n")
			}
		}

		if !res.Success() {
			errMsg := fmt.Sprintf("command %q exited with %d", command, res.ExitCode)
			if res.Stderr != "" {
				errMsg += ": " + res.Stderr
			}
			sr.MarkFailed(output.String(), errMsg)
			o.updateStageRun(ctx, sr)
			return false, false
		}
	}

	sr.MarkSuccess(output.String())
	o.updateStageRun(ctx, sr)
	return true, false
}

// CancelPipeline отменяет выполняющийся run.
//
// Статусы: run → cancelled, running stage runs → cancelled, pending
// stage runs → skipped. Уже завершённые stage runs не трогаются.
// Для завершённого run возвращает false без ошибки.
func (o *Orchestrator) CancelPipeline(ctx context.Context, runID uuid.UUID) (bool, error) {
	run, err := o.store.GetRun(ctx, runID)
	if err != nil {
		return false, err
	}
	if run == nil {
		return false, ErrRunNotFound
	}
	if run.IsFinished() {
		o.logger.Info("cancel requested for finished run",
			"run_id", runID, "status", run.Status)
		return false, nil
	}

	// Сначала флаг: выполняющий цикл перестанет стартовать команды
	o.mu.Lock()
	if state, ok := o.active[runID]; ok {
		state.cancelled.Store(true)
	}
	o.mu.Unlock()

	stageRuns, err := o.store.ListStageRuns(ctx, runID)
	if err != nil {
		return false, err
	}

	for i := range stageRuns {
		sr := &stageRuns[i]
		switch sr.Status {
		case domain.StageRunStatusRunning:
			sr.MarkCancelled()
		case domain.StageRunStatusPending:
			sr.MarkSkipped()
		default:
			continue
		}
		if err := o.store.UpdateStageRun(ctx, sr); err != nil {
			return false, err
		}
	}

	run.MarkCancelled()
	if err := o.store.UpdateRun(ctx, run); err != nil {
		return false, err
	}

	o.logger.Info("pipeline cancelled", "run_id", runID)
	return true, nil
}

// updateStageRun сохраняет stage run, логируя неудачу записи.
// Исход выполнения важнее исхода записи: выполнение продолжается.
func (o *Orchestrator) updateStageRun(ctx context.Context, sr *domain.PipelineStageRun) {
	telemetry.StageRunsFinished.WithLabelValues(string(sr.Status)).Inc()

	if err := o.store.UpdateStageRun(ctx, sr); err != nil {
		o.logger.Error("failed to persist stage run outcome",
			"stage_run_id", sr.ID, "error", err)
	}
}

// reloadRun перечитывает run после отмены, чтобы вернуть
// актуальные статусы.
func (o *Orchestrator) reloadRun(ctx context.Context, runID uuid.UUID) (*domain.PipelineRun, error) {
	run, err := o.store.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, ErrRunNotFound
	}
	return run, nil
}

// envList переводит map окружения в формат KEY=VALUE.
func envList(env map[string]string) []string {
	if len(env) == 0 {
		return nil
	}
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	return out
}
