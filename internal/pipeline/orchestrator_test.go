package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/devflow/devflow/internal/domain"
	"github.com/devflow/devflow/internal/runner"
)

// memStore — in-memory реализация Store для тестов.
type memStore struct {
	mu        sync.Mutex
	stages    []domain.PipelineStage
	runs      map[uuid.UUID]*domain.PipelineRun
	stageRuns []*domain.PipelineStageRun

	// onCreateStageRun выполняется после записи stage run,
	// имитирует события между записью и первой командой
	onCreateStageRun func(sr *domain.PipelineStageRun)
}

func newMemStore(stages ...domain.PipelineStage) *memStore {
	return &memStore{
		stages: stages,
		runs:   make(map[uuid.UUID]*domain.PipelineRun),
	}
}

func (s *memStore) ListEnabledStages(ctx context.Context, projectID uuid.UUID) ([]domain.PipelineStage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.PipelineStage
	for _, st := range s.stages {
		if st.IsEnabled {
			out = append(out, st)
		}
	}
	return out, nil
}

func (s *memStore) CreateRun(ctx context.Context, run *domain.PipelineRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *run
	s.runs[run.ID] = &cp
	return nil
}

func (s *memStore) GetRun(ctx context.Context, id uuid.UUID) (*domain.PipelineRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[id]
	if !ok {
		return nil, nil
	}
	cp := *run
	return &cp, nil
}

func (s *memStore) UpdateRun(ctx context.Context, run *domain.PipelineRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *run
	s.runs[run.ID] = &cp
	return nil
}

func (s *memStore) CreateStageRun(ctx context.Context, sr *domain.PipelineStageRun) error {
	s.mu.Lock()
	cp := *sr
	s.stageRuns = append(s.stageRuns, &cp)
	s.mu.Unlock()
	if s.onCreateStageRun != nil {
		s.onCreateStageRun(sr)
	}
	return nil
}

func (s *memStore) UpdateStageRun(ctx context.Context, sr *domain.PipelineStageRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.stageRuns {
		if existing.ID == sr.ID {
			cp := *sr
			s.stageRuns[i] = &cp
			return nil
		}
	}
	return errors.New("stage run not found")
}

func (s *memStore) ListStageRuns(ctx context.Context, runID uuid.UUID) ([]domain.PipelineStageRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.PipelineStageRun
	for _, sr := range s.stageRuns {
		if sr.PipelineRunID == runID {
			out = append(out, *sr)
		}
	}
	return out, nil
}

// scriptedRunner отвечает по подстроке команды; по умолчанию успех.
type scriptedRunner struct {
	mu        sync.Mutex
	failures  map[string]*runner.Result
	transport map[string]error
	commands  []string
}

func (r *scriptedRunner) Run(ctx context.Context, target runner.Target, command string, timeout time.Duration) (*runner.Result, error) {
	r.mu.Lock()
	r.commands = append(r.commands, command)
	r.mu.Unlock()

	for substr, err := range r.transport {
		if strings.Contains(command, substr) {
			return nil, err
		}
	}
	for substr, res := range r.failures {
		if strings.Contains(command, substr) {
			return res, nil
		}
	}
	return &runner.Result{ExitCode: 0, Stdout: "ok\n"}, nil
}

func enabledStage(name string, typ domain.StageType, order int, commands ...string) domain.PipelineStage {
	return domain.PipelineStage{
		ID:        uuid.New(),
		Name:      name,
		Type:      typ,
		Order:     order,
		Commands:  commands,
		IsEnabled: true,
		CreatedAt: time.Now(),
	}
}

func execContext() ExecContext {
	return ExecContext{
		Project: &domain.Project{
			ID:     uuid.New(),
			Slug:   "shop",
			Branch: "main",
			Server: &domain.Server{ID: uuid.New(), IsLocal: true},
		},
		TriggeredBy: domain.TriggeredByManual,
		CommitHash:  "abc123",
	}
}

func TestExecutePipelineRunsStagesInOrder(t *testing.T) {
	// Нарочно перемешанный порядок создания
	store := newMemStore(
		enabledStage("restart", domain.StageTypePostDeploy, 1, "docker compose restart"),
		enabledStage("checks", domain.StageTypePreDeploy, 1, "composer validate"),
		enabledStage("release", domain.StageTypeDeploy, 1, "docker compose up -d"),
	)
	o := New(Config{Store: store, Runner: &scriptedRunner{}})

	run, err := o.ExecutePipeline(context.Background(), execContext())
	if err != nil {
		t.Fatalf("ExecutePipeline failed: %v", err)
	}

	if run.Status != domain.RunStatusSuccess {
		t.Errorf("run status = %s, want success", run.Status)
	}

	if len(store.stageRuns) != 3 {
		t.Fatalf("stage runs = %d, want 3", len(store.stageRuns))
	}

	// Порядок создания stage runs = порядок выполнения
	want := []string{"checks", "release", "restart"}
	for i, sr := range store.stageRuns {
		if sr.Name != want[i] {
			t.Errorf("stage run %d = %q, want %q", i, sr.Name, want[i])
		}
		if sr.Status != domain.StageRunStatusSuccess {
			t.Errorf("stage run %q status = %s", sr.Name, sr.Status)
		}
	}
}

func TestExecutePipelineAbortsOnFailure(t *testing.T) {
	store := newMemStore(
		enabledStage("first", domain.StageTypePreDeploy, 1, "false-command"),
		enabledStage("second", domain.StageTypePreDeploy, 2, "echo never"),
	)
	r := &scriptedRunner{failures: map[string]*runner.Result{
		"false-command": {ExitCode: 1, Stderr: "boom"},
	}}
	o := New(Config{Store: store, Runner: r})

	run, err := o.ExecutePipeline(context.Background(), execContext())
	if err != nil {
		t.Fatalf("ExecutePipeline failed: %v", err)
	}

	if run.Status != domain.RunStatusFailed {
		t.Errorf("run status = %s, want failed", run.Status)
	}

	// Второй stage не должен получить stage run вовсе
	if len(store.stageRuns) != 1 {
		t.Fatalf("stage runs = %d, want 1", len(store.stageRuns))
	}
	sr := store.stageRuns[0]
	if sr.Status != domain.StageRunStatusFailed {
		t.Errorf("stage run status = %s", sr.Status)
	}
	if !strings.Contains(sr.Error, "boom") {
		t.Errorf("expected stderr in stage run error, got %q", sr.Error)
	}
}

func TestExecutePipelineContinueOnFailure(t *testing.T) {
	failing := enabledStage("first", domain.StageTypePreDeploy, 1, "false-command")
	failing.ContinueOnFailure = true

	store := newMemStore(
		failing,
		enabledStage("second", domain.StageTypePreDeploy, 2, "echo hi"),
	)
	r := &scriptedRunner{failures: map[string]*runner.Result{
		"false-command": {ExitCode: 1},
	}}
	o := New(Config{Store: store, Runner: r})

	run, err := o.ExecutePipeline(context.Background(), execContext())
	if err != nil {
		t.Fatalf("ExecutePipeline failed: %v", err)
	}

	if run.Status != domain.RunStatusSuccess {
		t.Errorf("run status = %s, want success", run.Status)
	}
	if len(store.stageRuns) != 2 {
		t.Fatalf("stage runs = %d, want 2", len(store.stageRuns))
	}

	// Stage run неудачного stage остаётся failed, меняется только
	// исход pipeline
	if store.stageRuns[0].Status != domain.StageRunStatusFailed {
		t.Errorf("first stage run status = %s, want failed", store.stageRuns[0].Status)
	}
	if store.stageRuns[1].Status != domain.StageRunStatusSuccess {
		t.Errorf("second stage run status = %s", store.stageRuns[1].Status)
	}
}

func TestExecutePipelineSkipsEmptyCommands(t *testing.T) {
	store := newMemStore(
		enabledStage("empty", domain.StageTypePreDeploy, 1),
		enabledStage("release", domain.StageTypeDeploy, 1, "docker compose up -d"),
	)
	o := New(Config{Store: store, Runner: &scriptedRunner{}})

	run, err := o.ExecutePipeline(context.Background(), execContext())
	if err != nil {
		t.Fatalf("ExecutePipeline failed: %v", err)
	}

	if run.Status != domain.RunStatusSuccess {
		t.Errorf("run status = %s, want success", run.Status)
	}
	if store.stageRuns[0].Status != domain.StageRunStatusSkipped {
		t.Errorf("empty stage status = %s, want skipped", store.stageRuns[0].Status)
	}
	if store.stageRuns[1].Status != domain.StageRunStatusSuccess {
		t.Errorf("release stage status = %s", store.stageRuns[1].Status)
	}
}

func TestExecutePipelineIgnoresDisabledStages(t *testing.T) {
	disabled := enabledStage("disabled", domain.StageTypePreDeploy, 1, "echo off")
	disabled.IsEnabled = false

	store := newMemStore(
		disabled,
		enabledStage("release", domain.StageTypeDeploy, 1, "echo on"),
	)
	o := New(Config{Store: store, Runner: &scriptedRunner{}})

	run, err := o.ExecutePipeline(context.Background(), execContext())
	if err != nil {
		t.Fatalf("ExecutePipeline failed: %v", err)
	}

	if run.Status != domain.RunStatusSuccess {
		t.Errorf("run status = %s", run.Status)
	}
	if len(store.stageRuns) != 1 {
		t.Fatalf("disabled stage must leave no stage run, got %d", len(store.stageRuns))
	}
}

func TestExecutePipelineTransportErrorFailsStage(t *testing.T) {
	store := newMemStore(
		enabledStage("release", domain.StageTypeDeploy, 1, "docker compose up -d"),
	)
	r := &scriptedRunner{transport: map[string]error{
		"docker": errors.New("connection refused"),
	}}
	o := New(Config{Store: store, Runner: r})

	run, err := o.ExecutePipeline(context.Background(), execContext())
	if err != nil {
		t.Fatalf("transport error must not crash the run: %v", err)
	}

	if run.Status != domain.RunStatusFailed {
		t.Errorf("run status = %s, want failed", run.Status)
	}
	if !strings.Contains(store.stageRuns[0].Error, "connection refused") {
		t.Errorf("expected transport error captured, got %q", store.stageRuns[0].Error)
	}
}

func TestExecutePipelineLogicalANDAcrossCommands(t *testing.T) {
	store := newMemStore(
		enabledStage("release", domain.StageTypeDeploy, 1,
			"echo one", "bad-command", "echo three"),
	)
	r := &scriptedRunner{failures: map[string]*runner.Result{
		"bad-command": {ExitCode: 2},
	}}
	o := New(Config{Store: store, Runner: r})

	run, err := o.ExecutePipeline(context.Background(), execContext())
	if err != nil {
		t.Fatalf("ExecutePipeline failed: %v", err)
	}

	if run.Status != domain.RunStatusFailed {
		t.Errorf("run status = %s, want failed", run.Status)
	}

	// Третья команда не должна была выполниться
	for _, cmd := range r.commands {
		if strings.Contains(cmd, "echo three") {
			t.Error("commands after a failed one must not run")
		}
	}
}

func TestCancelPipeline(t *testing.T) {
	store := newMemStore()
	o := New(Config{Store: store, Runner: &scriptedRunner{}})

	run := &domain.PipelineRun{ID: uuid.New(), ProjectID: uuid.New()}
	run.MarkRunning()
	store.CreateRun(context.Background(), run)

	running := &domain.PipelineStageRun{
		ID:            uuid.New(),
		PipelineRunID: run.ID,
		Name:          "release",
		Status:        domain.StageRunStatusRunning,
	}
	pending := &domain.PipelineStageRun{
		ID:            uuid.New(),
		PipelineRunID: run.ID,
		Name:          "restart",
		Status:        domain.StageRunStatusPending,
	}
	finished := &domain.PipelineStageRun{
		ID:            uuid.New(),
		PipelineRunID: run.ID,
		Name:          "checks",
		Status:        domain.StageRunStatusSuccess,
	}
	store.CreateStageRun(context.Background(), finished)
	store.CreateStageRun(context.Background(), running)
	store.CreateStageRun(context.Background(), pending)

	ok, err := o.CancelPipeline(context.Background(), run.ID)
	if err != nil {
		t.Fatalf("CancelPipeline failed: %v", err)
	}
	if !ok {
		t.Fatal("expected cancellation to succeed")
	}

	got, _ := store.GetRun(context.Background(), run.ID)
	if got.Status != domain.RunStatusCancelled {
		t.Errorf("run status = %s, want cancelled", got.Status)
	}

	stageRuns, _ := store.ListStageRuns(context.Background(), run.ID)
	byName := make(map[string]domain.StageRunStatus)
	for _, sr := range stageRuns {
		byName[sr.Name] = sr.Status
	}

	if byName["release"] != domain.StageRunStatusCancelled {
		t.Errorf("running stage = %s, want cancelled", byName["release"])
	}
	if byName["restart"] != domain.StageRunStatusSkipped {
		t.Errorf("pending stage = %s, want skipped", byName["restart"])
	}
	if byName["checks"] != domain.StageRunStatusSuccess {
		t.Errorf("finished stage must stay untouched, got %s", byName["checks"])
	}
}

func TestCancelBetweenStageRunCreateAndFirstCommand(t *testing.T) {
	store := newMemStore(
		enabledStage("release", domain.StageTypeDeploy, 0, "php artisan migrate", "php artisan config:cache"),
	)
	r := &scriptedRunner{}
	o := New(Config{Store: store, Runner: r})

	// Отмена приходит ровно в момент записи running stage run:
	// sweep отмены перечислил stage runs раньше и этот не увидел
	store.onCreateStageRun = func(sr *domain.PipelineStageRun) {
		o.mu.Lock()
		if state, ok := o.active[sr.PipelineRunID]; ok {
			state.cancelled.Store(true)
		}
		o.mu.Unlock()
	}

	run, err := o.ExecutePipeline(context.Background(), execContext())
	if err != nil {
		t.Fatalf("ExecutePipeline failed: %v", err)
	}

	if len(r.commands) != 0 {
		t.Errorf("commands ran after cancellation: %v", r.commands)
	}

	stageRuns, _ := store.ListStageRuns(context.Background(), run.ID)
	if len(stageRuns) != 1 {
		t.Fatalf("stage runs = %d, want 1", len(stageRuns))
	}
	if stageRuns[0].Status != domain.StageRunStatusCancelled {
		t.Errorf("in-flight stage run = %s, want cancelled", stageRuns[0].Status)
	}
}

func TestCancelFinishedRunReturnsFalse(t *testing.T) {
	store := newMemStore()
	o := New(Config{Store: store, Runner: &scriptedRunner{}})

	run := &domain.PipelineRun{ID: uuid.New(), ProjectID: uuid.New()}
	run.MarkRunning()
	run.MarkSuccess()
	store.CreateRun(context.Background(), run)

	ok, err := o.CancelPipeline(context.Background(), run.ID)
	if err != nil {
		t.Fatalf("cancel of finished run must not error: %v", err)
	}
	if ok {
		t.Error("expected false for finished run")
	}
}

func TestCancelUnknownRun(t *testing.T) {
	store := newMemStore()
	o := New(Config{Store: store, Runner: &scriptedRunner{}})

	_, err := o.CancelPipeline(context.Background(), uuid.New())
	if !errors.Is(err, ErrRunNotFound) {
		t.Fatalf("expected ErrRunNotFound, got: %v", err)
	}
}
