package worker

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/devflow/devflow/internal/domain"
	"github.com/devflow/devflow/internal/git"
	"github.com/devflow/devflow/internal/pipeline"
	"github.com/devflow/devflow/internal/repo"
)

// --- fakes ---

type memDeployments struct {
	mu    sync.Mutex
	items map[uuid.UUID]*domain.Deployment

	// beforeClaim выполняется перед ClaimPending, имитирует
	// конкурирующий воркер между чтением и подхватом
	beforeClaim func()
}

func newMemDeployments() *memDeployments {
	return &memDeployments{items: make(map[uuid.UUID]*domain.Deployment)}
}

func (m *memDeployments) put(d *domain.Deployment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *d
	m.items[d.ID] = &cp
}

func (m *memDeployments) GetByID(_ context.Context, id uuid.UUID) (*domain.Deployment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.items[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (m *memDeployments) Update(_ context.Context, d *domain.Deployment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *d
	m.items[d.ID] = &cp
	return nil
}

func (m *memDeployments) ClaimPending(_ context.Context, id uuid.UUID, startedAt time.Time) (bool, error) {
	if m.beforeClaim != nil {
		m.beforeClaim()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.items[id]
	if !ok || d.Status != domain.DeploymentStatusPending {
		return false, nil
	}
	d.Status = domain.DeploymentStatusRunning
	d.StartedAt = &startedAt
	return true, nil
}

func (m *memDeployments) ListPending(_ context.Context, limit int) ([]domain.Deployment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Deployment
	for _, d := range m.items {
		if d.Status == domain.DeploymentStatusPending {
			out = append(out, *d)
		}
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

type memProjects struct {
	mu    sync.Mutex
	items map[uuid.UUID]*domain.Project
}

func newMemProjects() *memProjects {
	return &memProjects{items: make(map[uuid.UUID]*domain.Project)}
}

func (m *memProjects) put(p *domain.Project) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.items[p.ID] = &cp
}

func (m *memProjects) GetByID(_ context.Context, id uuid.UUID) (*domain.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.items[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memProjects) Update(_ context.Context, p *domain.Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.items[p.ID] = &cp
	return nil
}

type fakeStages struct {
	hasStages bool
}

func (f *fakeStages) HasEnabledStages(_ context.Context, _ uuid.UUID) (bool, error) {
	return f.hasStages, nil
}

type fakePipeline struct {
	run *domain.PipelineRun
	err error

	// hook выполняется перед возвратом, имитирует события во
	// время выполнения pipeline (например, отмену deployment)
	hook func()

	gotCtx *pipeline.ExecContext
}

func (f *fakePipeline) ExecutePipeline(_ context.Context, ec pipeline.ExecContext) (*domain.PipelineRun, error) {
	f.gotCtx = &ec
	if f.hook != nil {
		f.hook()
	}
	return f.run, f.err
}

type fakeGit struct {
	syncOut string
	syncErr error
	commit  *git.CommitInfo
}

func (f *fakeGit) Sync(_ context.Context, _ *domain.Project) (string, error) {
	return f.syncOut, f.syncErr
}

func (f *fakeGit) CurrentCommit(_ context.Context, _ *domain.Project) (*git.CommitInfo, error) {
	if f.commit == nil {
		return nil, errors.New("no commit")
	}
	return f.commit, nil
}

type fakeCompose struct {
	uses     bool
	buildOut string
	buildErr error
	upOut    string
	upErr    error
}

func (f *fakeCompose) UsesCompose(_ context.Context, _ *domain.Project) (bool, error) {
	return f.uses, nil
}

func (f *fakeCompose) Build(_ context.Context, _ *domain.Project) (string, error) {
	return f.buildOut, f.buildErr
}

func (f *fakeCompose) Up(_ context.Context, _ *domain.Project) (string, error) {
	return f.upOut, f.upErr
}

// --- helpers ---

type testEnv struct {
	worker      *Worker
	deployments *memDeployments
	projects    *memProjects
	stages      *fakeStages
	pipeline    *fakePipeline
	git         *fakeGit
	compose     *fakeCompose
}

func newTestWorker(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		deployments: newMemDeployments(),
		projects:    newMemProjects(),
		stages:      &fakeStages{},
		pipeline:    &fakePipeline{},
		git:         &fakeGit{},
		compose:     &fakeCompose{},
	}

	env.worker = New(Config{
		Deployments: env.deployments,
		Projects:    env.projects,
		Stages:      env.stages,
		Pipeline:    env.pipeline,
		Git:         env.git,
		Compose:     env.compose,
	})

	return env
}

func seedDeployment(env *testEnv, status domain.DeploymentStatus) (*domain.Project, *domain.Deployment) {
	project := &domain.Project{
		ID:            uuid.New(),
		Name:          "shop-backend",
		Slug:          "shop-backend",
		RepositoryURL: "git@example.com:acme/shop.git",
		Branch:        "main",
		EnvVariables:  map[string]string{"APP_ENV": "production"},
	}

	d := &domain.Deployment{
		ID:                  uuid.New(),
		ProjectID:           project.ID,
		Status:              status,
		TriggeredBy:         domain.TriggeredByManual,
		Branch:              project.Branch,
		CommitHash:          "abc123def4567890",
		EnvironmentSnapshot: project.Snapshot(time.Now()),
		CreatedAt:           time.Now(),
	}

	env.projects.put(project)
	env.deployments.put(d)
	return project, d
}

// --- tests ---

func TestProcessDeploymentDirectPathSuccess(t *testing.T) {
	env := newTestWorker(t)
	project, d := seedDeployment(env, domain.DeploymentStatusPending)

	env.git.syncOut = "Updating abc..def\nFast-forward"
	env.compose.uses = false

	if err := env.worker.processDeployment(context.Background(), d.ID); err != nil {
		t.Fatalf("processDeployment: %v", err)
	}

	got, _ := env.deployments.GetByID(context.Background(), d.ID)
	if got.Status != domain.DeploymentStatusSuccess {
		t.Fatalf("status = %s, want success", got.Status)
	}
	if got.StartedAt == nil || got.CompletedAt == nil || got.DurationSeconds == nil {
		t.Errorf("timestamps not filled: started=%v completed=%v duration=%v",
			got.StartedAt, got.CompletedAt, got.DurationSeconds)
	}
	if !strings.Contains(got.OutputLog, "Fast-forward") {
		t.Errorf("output log missing git output: %q", got.OutputLog)
	}
	if !strings.Contains(got.OutputLog, "skipping container restart") {
		t.Errorf("output log missing compose skip note: %q", got.OutputLog)
	}

	// Commit-информация перенесена на проект
	p, _ := env.projects.GetByID(context.Background(), project.ID)
	if p.CurrentCommitHash != d.CommitHash {
		t.Errorf("project commit = %q, want %q", p.CurrentCommitHash, d.CommitHash)
	}
	if p.LastDeployedAt == nil {
		t.Error("project LastDeployedAt not set")
	}
}

func TestProcessDeploymentDirectPathWithCompose(t *testing.T) {
	env := newTestWorker(t)
	_, d := seedDeployment(env, domain.DeploymentStatusPending)

	env.compose.uses = true
	env.compose.buildOut = "Building app"
	env.compose.upOut = "Container app Started"

	if err := env.worker.processDeployment(context.Background(), d.ID); err != nil {
		t.Fatalf("processDeployment: %v", err)
	}

	got, _ := env.deployments.GetByID(context.Background(), d.ID)
	if got.Status != domain.DeploymentStatusSuccess {
		t.Fatalf("status = %s, want success", got.Status)
	}
	for _, want := range []string{"=== Building Containers ===", "Building app", "=== Starting Containers ===", "Container app Started"} {
		if !strings.Contains(got.OutputLog, want) {
			t.Errorf("output log missing %q:\n%s", want, got.OutputLog)
		}
	}
}

func TestProcessDeploymentSyncFailure(t *testing.T) {
	env := newTestWorker(t)
	_, d := seedDeployment(env, domain.DeploymentStatusPending)

	env.git.syncOut = "fetching origin"
	env.git.syncErr = errors.New("could not resolve host")

	if err := env.worker.processDeployment(context.Background(), d.ID); err != nil {
		t.Fatalf("processDeployment: %v", err)
	}

	got, _ := env.deployments.GetByID(context.Background(), d.ID)
	if got.Status != domain.DeploymentStatusFailed {
		t.Fatalf("status = %s, want failed", got.Status)
	}
	if !strings.Contains(got.ErrorLog, "could not resolve host") {
		t.Errorf("error log = %q, want sync error", got.ErrorLog)
	}
	// Output до ошибки сохранён
	if !strings.Contains(got.OutputLog, "fetching origin") {
		t.Errorf("output log missing partial output: %q", got.OutputLog)
	}
}

func TestProcessDeploymentFillsCommitAfterSync(t *testing.T) {
	env := newTestWorker(t)
	_, d := seedDeployment(env, domain.DeploymentStatusPending)
	d.CommitHash = ""
	d.CommitMessage = ""
	env.deployments.put(d)

	env.git.commit = &git.CommitInfo{
		Hash:      "feedface12345678",
		ShortHash: "feedface",
		Message:   "Fix login redirect",
	}

	if err := env.worker.processDeployment(context.Background(), d.ID); err != nil {
		t.Fatalf("processDeployment: %v", err)
	}

	got, _ := env.deployments.GetByID(context.Background(), d.ID)
	if got.CommitHash != "feedface12345678" {
		t.Errorf("commit hash = %q, want feedface12345678", got.CommitHash)
	}
	if got.CommitMessage != "Fix login redirect" {
		t.Errorf("commit message = %q", got.CommitMessage)
	}
}

func TestProcessDeploymentPipelinePath(t *testing.T) {
	env := newTestWorker(t)
	project, d := seedDeployment(env, domain.DeploymentStatusPending)

	env.stages.hasStages = true
	env.pipeline.run = &domain.PipelineRun{
		ID:     uuid.New(),
		Status: domain.RunStatusSuccess,
	}

	if err := env.worker.processDeployment(context.Background(), d.ID); err != nil {
		t.Fatalf("processDeployment: %v", err)
	}

	got, _ := env.deployments.GetByID(context.Background(), d.ID)
	if got.Status != domain.DeploymentStatusSuccess {
		t.Fatalf("status = %s, want success", got.Status)
	}

	ec := env.pipeline.gotCtx
	if ec == nil {
		t.Fatal("pipeline was not executed")
	}
	if ec.Project.ID != project.ID {
		t.Errorf("exec context project = %s, want %s", ec.Project.ID, project.ID)
	}
	if ec.DeploymentID == nil || *ec.DeploymentID != d.ID {
		t.Errorf("exec context deployment id = %v, want %s", ec.DeploymentID, d.ID)
	}
	if ec.Env["APP_ENV"] != "production" {
		t.Errorf("exec context env = %v, want snapshot env vars", ec.Env)
	}
}

func TestProcessDeploymentPipelineFailure(t *testing.T) {
	env := newTestWorker(t)
	_, d := seedDeployment(env, domain.DeploymentStatusPending)

	env.stages.hasStages = true
	env.pipeline.run = &domain.PipelineRun{
		ID:     uuid.New(),
		Status: domain.RunStatusFailed,
		Error:  `stage "migrate" failed`,
	}

	if err := env.worker.processDeployment(context.Background(), d.ID); err != nil {
		t.Fatalf("processDeployment: %v", err)
	}

	got, _ := env.deployments.GetByID(context.Background(), d.ID)
	if got.Status != domain.DeploymentStatusFailed {
		t.Fatalf("status = %s, want failed", got.Status)
	}
	if !strings.Contains(got.ErrorLog, `stage "migrate" failed`) {
		t.Errorf("error log = %q, want pipeline error", got.ErrorLog)
	}
}

func TestProcessDeploymentNotFound(t *testing.T) {
	env := newTestWorker(t)

	err := env.worker.processDeployment(context.Background(), uuid.New())
	if !errors.Is(err, ErrDeploymentNotFound) {
		t.Fatalf("err = %v, want ErrDeploymentNotFound", err)
	}
}

func TestProcessDeploymentNotPending(t *testing.T) {
	env := newTestWorker(t)
	_, d := seedDeployment(env, domain.DeploymentStatusRunning)

	err := env.worker.processDeployment(context.Background(), d.ID)
	if !errors.Is(err, ErrDeploymentNotPending) {
		t.Fatalf("err = %v, want ErrDeploymentNotPending", err)
	}
}

func TestProcessDeploymentLostClaimIsSkipped(t *testing.T) {
	env := newTestWorker(t)
	_, d := seedDeployment(env, domain.DeploymentStatusPending)

	// Конкурент подхватывает deployment между чтением и claim
	env.deployments.beforeClaim = func() {
		env.deployments.mu.Lock()
		env.deployments.items[d.ID].Status = domain.DeploymentStatusRunning
		env.deployments.mu.Unlock()
		env.deployments.beforeClaim = nil
	}

	err := env.worker.processDeployment(context.Background(), d.ID)
	if !errors.Is(err, ErrDeploymentNotPending) {
		t.Fatalf("err = %v, want ErrDeploymentNotPending", err)
	}

	if env.pipeline.gotCtx != nil {
		t.Error("pipeline executed for a deployment claimed elsewhere")
	}
	got, _ := env.deployments.GetByID(context.Background(), d.ID)
	if got.Status != domain.DeploymentStatusRunning || got.OutputLog != "" {
		t.Errorf("claimed deployment touched: status=%s output=%q", got.Status, got.OutputLog)
	}
}

func TestProcessDeploymentDoesNotOverwriteCancellation(t *testing.T) {
	env := newTestWorker(t)
	_, d := seedDeployment(env, domain.DeploymentStatusPending)

	env.stages.hasStages = true
	env.pipeline.run = &domain.PipelineRun{
		ID:     uuid.New(),
		Status: domain.RunStatusCancelled,
	}
	// Пока pipeline "выполнялся", пользователь отменил deployment
	env.pipeline.hook = func() {
		cur, _ := env.deployments.GetByID(context.Background(), d.ID)
		cur.MarkCancelled("Deployment cancelled by user")
		_ = env.deployments.Update(context.Background(), cur)
	}

	if err := env.worker.processDeployment(context.Background(), d.ID); err != nil {
		t.Fatalf("processDeployment: %v", err)
	}

	got, _ := env.deployments.GetByID(context.Background(), d.ID)
	if got.Status != domain.DeploymentStatusCancelled {
		t.Fatalf("status = %s, want cancelled preserved", got.Status)
	}
	if got.ErrorLog != "Deployment cancelled by user" {
		t.Errorf("error log = %q, want cancel reason preserved", got.ErrorLog)
	}
}
