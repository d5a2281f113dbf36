package deploy

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/devflow/devflow/internal/domain"
	"github.com/devflow/devflow/internal/git"
)

// memStore — in-memory реализация DeploymentStore для тестов.
type memStore struct {
	mu          sync.Mutex
	deployments map[uuid.UUID]*domain.Deployment
	order       []uuid.UUID
}

func newMemStore() *memStore {
	return &memStore{deployments: make(map[uuid.UUID]*domain.Deployment)}
}

func (s *memStore) Create(ctx context.Context, d *domain.Deployment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *d
	s.deployments[d.ID] = &cp
	s.order = append(s.order, d.ID)
	return nil
}

func (s *memStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Deployment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.deployments[id]
	if !ok {
		return nil, ErrDeploymentNotFound
	}
	cp := *d
	return &cp, nil
}

func (s *memStore) Update(ctx context.Context, d *domain.Deployment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.deployments[d.ID]; !ok {
		return ErrDeploymentNotFound
	}
	cp := *d
	s.deployments[d.ID] = &cp
	return nil
}

func (s *memStore) GetActive(ctx context.Context, projectID uuid.UUID) (*domain.Deployment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.order {
		d := s.deployments[id]
		if d.ProjectID == projectID && d.IsActive() {
			cp := *d
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *memStore) HasActive(ctx context.Context, projectID uuid.UUID) (bool, error) {
	d, err := s.GetActive(ctx, projectID)
	return d != nil, err
}

func (s *memStore) ListByProject(ctx context.Context, projectID uuid.UUID, limit int) ([]domain.Deployment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Deployment
	for i := len(s.order) - 1; i >= 0 && len(out) < limit; i-- {
		d := s.deployments[s.order[i]]
		if d.ProjectID == projectID {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (s *memStore) LastSuccessful(ctx context.Context, projectID uuid.UUID, before time.Time) (*domain.Deployment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.order) - 1; i >= 0; i-- {
		d := s.deployments[s.order[i]]
		if d.ProjectID == projectID && d.IsSuccess() && d.CreatedAt.Before(before) {
			cp := *d
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *memStore) StatsSince(ctx context.Context, projectID uuid.UUID, since time.Time) (total, successful, failed int, avgDuration float64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var durSum float64
	var durCount int
	for _, id := range s.order {
		d := s.deployments[id]
		if d.ProjectID != projectID || d.CreatedAt.Before(since) {
			continue
		}
		total++
		switch d.Status {
		case domain.DeploymentStatusSuccess:
			successful++
		case domain.DeploymentStatusFailed:
			failed++
		}
		if d.DurationSeconds != nil {
			durSum += float64(*d.DurationSeconds)
			durCount++
		}
	}
	if durCount > 0 {
		avgDuration = durSum / float64(durCount)
	}
	return total, successful, failed, avgDuration, nil
}

// fakeGit — заглушка git-инспекции.
type fakeGit struct {
	commit *git.CommitInfo
	check  *git.UpdateCheck
	err    error
}

func (f *fakeGit) CurrentCommit(ctx context.Context, p *domain.Project) (*git.CommitInfo, error) {
	return f.commit, f.err
}

func (f *fakeGit) CheckForUpdates(ctx context.Context, p *domain.Project) (*git.UpdateCheck, error) {
	return f.check, f.err
}

func onlineProject() *domain.Project {
	serverID := uuid.New()
	return &domain.Project{
		ID:            uuid.New(),
		Name:          "Shop",
		Slug:          "shop",
		ServerID:      &serverID,
		Server:        &domain.Server{ID: serverID, Status: domain.ServerStatusOnline},
		RepositoryURL: "git@example.com:acme/shop.git",
		Branch:        "main",
		Environment:   "production",
		EnvVariables:  map[string]string{"APP_ENV": "production"},
	}
}

func newTestCoordinator(store DeploymentStore, g GitInspector) *Coordinator {
	return New(Config{Deployments: store, Git: g})
}

func TestDeployCreatesPendingDeployment(t *testing.T) {
	store := newMemStore()
	g := &fakeGit{commit: &git.CommitInfo{Hash: "abc123", Message: "Add checkout"}}
	c := newTestCoordinator(store, g)
	project := onlineProject()

	d, err := c.Deploy(context.Background(), project, nil, domain.TriggeredByManual, "")
	if err != nil {
		t.Fatalf("Deploy failed: %v", err)
	}

	if d.Status != domain.DeploymentStatusPending {
		t.Errorf("expected pending status, got %s", d.Status)
	}
	if d.CommitHash != "abc123" || d.CommitMessage != "Add checkout" {
		t.Errorf("expected resolved commit, got %q %q", d.CommitHash, d.CommitMessage)
	}
	if d.EnvironmentSnapshot == nil {
		t.Fatal("expected environment snapshot")
	}
	if d.EnvironmentSnapshot.Branch != "main" {
		t.Errorf("snapshot branch = %q", d.EnvironmentSnapshot.Branch)
	}
}

func TestDeploySnapshotIsPointInTime(t *testing.T) {
	store := newMemStore()
	c := newTestCoordinator(store, nil)
	project := onlineProject()

	d, err := c.Deploy(context.Background(), project, nil, domain.TriggeredByManual, "abc")
	if err != nil {
		t.Fatalf("Deploy failed: %v", err)
	}

	// Правки проекта после deploy не должны менять снимок
	project.EnvVariables["APP_ENV"] = "staging"
	project.EnvVariables["DEBUG"] = "true"
	project.Branch = "develop"

	if d.EnvironmentSnapshot.Branch != "main" {
		t.Errorf("snapshot branch changed to %q", d.EnvironmentSnapshot.Branch)
	}
	if got := d.EnvironmentSnapshot.EnvVariables["APP_ENV"]; got != "production" {
		t.Errorf("snapshot APP_ENV changed to %q", got)
	}
	if _, ok := d.EnvironmentSnapshot.EnvVariables["DEBUG"]; ok {
		t.Error("variable added after deploy leaked into snapshot")
	}
}

func TestRollbackSnapshotIndependentOfTarget(t *testing.T) {
	store := newMemStore()
	c := newTestCoordinator(store, nil)
	project := onlineProject()

	target := &domain.Deployment{
		ID:         uuid.New(),
		ProjectID:  project.ID,
		Status:     domain.DeploymentStatusSuccess,
		CommitHash: "abc123",
		Branch:     "main",
		EnvironmentSnapshot: &domain.EnvironmentSnapshot{
			Branch:       "main",
			EnvVariables: map[string]string{"APP_ENV": "production"},
		},
	}

	d, err := c.Rollback(context.Background(), project, target, nil)
	if err != nil {
		t.Fatalf("Rollback failed: %v", err)
	}

	// Снимки двух deployment не должны делить одну карту
	d.EnvironmentSnapshot.EnvVariables["APP_ENV"] = "staging"
	if got := target.EnvironmentSnapshot.EnvVariables["APP_ENV"]; got != "production" {
		t.Errorf("target snapshot mutated through rollback copy: APP_ENV = %q", got)
	}
}

func TestDeployGitFailureDoesNotAbort(t *testing.T) {
	store := newMemStore()
	g := &fakeGit{err: errors.New("repository unreachable")}
	c := newTestCoordinator(store, g)

	d, err := c.Deploy(context.Background(), onlineProject(), nil, domain.TriggeredByManual, "")
	if err != nil {
		t.Fatalf("Deploy must not abort on git failure: %v", err)
	}

	if d.CommitHash != "" {
		t.Errorf("expected empty commit hash, got %q", d.CommitHash)
	}
}

func TestSecondDeployConflicts(t *testing.T) {
	store := newMemStore()
	c := newTestCoordinator(store, nil)
	project := onlineProject()

	if _, err := c.Deploy(context.Background(), project, nil, domain.TriggeredByManual, "abc"); err != nil {
		t.Fatalf("first Deploy failed: %v", err)
	}

	_, err := c.Deploy(context.Background(), project, nil, domain.TriggeredByManual, "def")
	if !errors.Is(err, ErrDeploymentInProgress) {
		t.Fatalf("expected ErrDeploymentInProgress, got: %v", err)
	}
}

func TestRollbackToFailedDeployment(t *testing.T) {
	store := newMemStore()
	c := newTestCoordinator(store, nil)
	project := onlineProject()

	target := &domain.Deployment{
		ID:         uuid.New(),
		ProjectID:  project.ID,
		Status:     domain.DeploymentStatusFailed,
		CommitHash: "abc",
	}

	_, err := c.Rollback(context.Background(), project, target, nil)
	if !errors.Is(err, ErrRollbackNotSuccessful) {
		t.Fatalf("expected ErrRollbackNotSuccessful, got: %v", err)
	}
}

func TestRollbackWrongProject(t *testing.T) {
	store := newMemStore()
	c := newTestCoordinator(store, nil)

	target := &domain.Deployment{
		ID:         uuid.New(),
		ProjectID:  uuid.New(), // другой проект
		Status:     domain.DeploymentStatusSuccess,
		CommitHash: "abc",
	}

	_, err := c.Rollback(context.Background(), onlineProject(), target, nil)
	if !errors.Is(err, ErrRollbackWrongProject) {
		t.Fatalf("expected ErrRollbackWrongProject, got: %v", err)
	}
}

func TestRollbackCreatesLinkedDeployment(t *testing.T) {
	store := newMemStore()
	c := newTestCoordinator(store, nil)
	project := onlineProject()

	target := &domain.Deployment{
		ID:            uuid.New(),
		ProjectID:     project.ID,
		Status:        domain.DeploymentStatusSuccess,
		Branch:        "main",
		CommitHash:    "abc123",
		CommitMessage: "Add checkout",
		EnvironmentSnapshot: &domain.EnvironmentSnapshot{
			Branch:       "main",
			EnvVariables: map[string]string{"APP_ENV": "production"},
		},
	}

	d, err := c.Rollback(context.Background(), project, target, nil)
	if err != nil {
		t.Fatalf("Rollback failed: %v", err)
	}

	if d.TriggeredBy != domain.TriggeredByRollback {
		t.Errorf("triggered_by = %s", d.TriggeredBy)
	}
	if d.RollbackDeploymentID == nil || *d.RollbackDeploymentID != target.ID {
		t.Error("expected rollback_deployment_id to reference target")
	}
	if d.CommitHash != "abc123" {
		t.Errorf("commit hash = %q", d.CommitHash)
	}
	if d.CommitMessage != "Rollback to: Add checkout" {
		t.Errorf("commit message = %q", d.CommitMessage)
	}
	if d.EnvironmentSnapshot.EnvVariables["APP_ENV"] != "production" {
		t.Error("expected snapshot copied from target")
	}
}

func TestRollbackMessageFallsBackToHash(t *testing.T) {
	store := newMemStore()
	c := newTestCoordinator(store, nil)
	project := onlineProject()

	target := &domain.Deployment{
		ID:         uuid.New(),
		ProjectID:  project.ID,
		Status:     domain.DeploymentStatusSuccess,
		CommitHash: "abc123",
	}

	d, err := c.Rollback(context.Background(), project, target, nil)
	if err != nil {
		t.Fatalf("Rollback failed: %v", err)
	}

	if d.CommitMessage != "Rollback to: abc123" {
		t.Errorf("commit message = %q", d.CommitMessage)
	}
}

func TestRollbackBlockedByActiveDeployment(t *testing.T) {
	store := newMemStore()
	c := newTestCoordinator(store, nil)
	project := onlineProject()

	if _, err := c.Deploy(context.Background(), project, nil, domain.TriggeredByManual, "abc"); err != nil {
		t.Fatalf("Deploy failed: %v", err)
	}

	target := &domain.Deployment{
		ID:         uuid.New(),
		ProjectID:  project.ID,
		Status:     domain.DeploymentStatusSuccess,
		CommitHash: "old",
	}

	_, err := c.Rollback(context.Background(), project, target, nil)
	if !errors.Is(err, ErrDeploymentInProgress) {
		t.Fatalf("expected ErrDeploymentInProgress, got: %v", err)
	}
}

func TestBatchDeployIsolatesFailures(t *testing.T) {
	store := newMemStore()
	c := newTestCoordinator(store, nil)

	valid := onlineProject()
	noServer := onlineProject()
	noServer.ServerID = nil
	noServer.Server = nil
	busy := onlineProject()

	// У busy уже есть активный deployment
	if _, err := c.Deploy(context.Background(), busy, nil, domain.TriggeredByManual, "abc"); err != nil {
		t.Fatalf("Deploy failed: %v", err)
	}

	result := c.BatchDeploy(context.Background(), []domain.Project{*valid, *noServer, *busy}, nil)

	if result.Successful != 1 {
		t.Errorf("successful = %d, want 1", result.Successful)
	}
	if result.Failed != 2 {
		t.Errorf("failed = %d, want 2", result.Failed)
	}
	if len(result.Deployments) != 1 {
		t.Fatalf("deployments = %d, want 1", len(result.Deployments))
	}
	if result.Deployments[0].ProjectID != valid.ID {
		t.Error("expected the created deployment to belong to the valid project")
	}
}

func TestCancelDeployment(t *testing.T) {
	store := newMemStore()
	c := newTestCoordinator(store, nil)
	project := onlineProject()

	d, err := c.Deploy(context.Background(), project, nil, domain.TriggeredByManual, "abc")
	if err != nil {
		t.Fatalf("Deploy failed: %v", err)
	}

	ok, err := c.CancelDeployment(context.Background(), d)
	if err != nil {
		t.Fatalf("CancelDeployment failed: %v", err)
	}
	if !ok {
		t.Fatal("expected cancellation of pending deployment to succeed")
	}

	if d.Status != domain.DeploymentStatusCancelled {
		t.Errorf("status = %s", d.Status)
	}
	if d.ErrorLog != "Deployment cancelled by user" {
		t.Errorf("error log = %q", d.ErrorLog)
	}
	if d.CompletedAt == nil {
		t.Error("expected completed_at to be set")
	}
}

func TestCancelFinishedDeploymentReturnsFalse(t *testing.T) {
	store := newMemStore()
	c := newTestCoordinator(store, nil)

	d := &domain.Deployment{
		ID:        uuid.New(),
		ProjectID: uuid.New(),
		Status:    domain.DeploymentStatusSuccess,
	}

	ok, err := c.CancelDeployment(context.Background(), d)
	if err != nil {
		t.Fatalf("cancel of finished deployment must not error: %v", err)
	}
	if ok {
		t.Error("expected false for finished deployment")
	}
}

func TestMarkAsSuccessIsTerminalOnce(t *testing.T) {
	store := newMemStore()
	c := newTestCoordinator(store, nil)
	project := onlineProject()

	d, err := c.Deploy(context.Background(), project, nil, domain.TriggeredByManual, "abc")
	if err != nil {
		t.Fatalf("Deploy failed: %v", err)
	}
	d.MarkRunning()

	ok, err := c.MarkAsSuccess(context.Background(), d)
	if err != nil || !ok {
		t.Fatalf("MarkAsSuccess failed: ok=%v err=%v", ok, err)
	}
	if d.DurationSeconds == nil {
		t.Error("expected duration to be computed")
	}

	// Повторный вызов по уже завершённому
	ok, err = c.MarkAsFailed(context.Background(), d, "late failure")
	if err != nil {
		t.Fatalf("MarkAsFailed on finished must not error: %v", err)
	}
	if ok {
		t.Error("expected false on finished deployment")
	}
	if d.Status != domain.DeploymentStatusSuccess {
		t.Errorf("status changed to %s", d.Status)
	}
}

func TestStats(t *testing.T) {
	store := newMemStore()
	c := newTestCoordinator(store, nil)
	projectID := uuid.New()

	dur := int64(120)
	for i := 0; i < 7; i++ {
		store.Create(context.Background(), &domain.Deployment{
			ID:              uuid.New(),
			ProjectID:       projectID,
			Status:          domain.DeploymentStatusSuccess,
			DurationSeconds: &dur,
			CreatedAt:       time.Now(),
		})
	}
	for i := 0; i < 3; i++ {
		store.Create(context.Background(), &domain.Deployment{
			ID:        uuid.New(),
			ProjectID: projectID,
			Status:    domain.DeploymentStatusFailed,
			CreatedAt: time.Now(),
		})
	}

	stats, err := c.Stats(context.Background(), projectID, 30)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}

	if stats.Total != 10 || stats.Successful != 7 || stats.Failed != 3 {
		t.Errorf("unexpected counts: %+v", stats)
	}
	if stats.SuccessRate != 70.0 {
		t.Errorf("success rate = %v, want 70.0", stats.SuccessRate)
	}
	if stats.AvgDuration != 120.0 {
		t.Errorf("avg duration = %v, want 120.0", stats.AvgDuration)
	}
}

func TestStatsEmptyWindow(t *testing.T) {
	store := newMemStore()
	c := newTestCoordinator(store, nil)

	stats, err := c.Stats(context.Background(), uuid.New(), 30)
	if err != nil {
		t.Fatalf("Stats on empty window must not error: %v", err)
	}

	if stats.Total != 0 || stats.Successful != 0 || stats.Failed != 0 {
		t.Errorf("expected zero counts: %+v", stats)
	}
	if stats.SuccessRate != 0 || stats.AvgDuration != 0 {
		t.Errorf("expected zero rates: %+v", stats)
	}
}

func TestStatsRounding(t *testing.T) {
	store := newMemStore()
	c := newTestCoordinator(store, nil)
	projectID := uuid.New()

	// 1 из 3 — 33.333…% → 33.3
	store.Create(context.Background(), &domain.Deployment{
		ID: uuid.New(), ProjectID: projectID,
		Status: domain.DeploymentStatusSuccess, CreatedAt: time.Now(),
	})
	for i := 0; i < 2; i++ {
		store.Create(context.Background(), &domain.Deployment{
			ID: uuid.New(), ProjectID: projectID,
			Status: domain.DeploymentStatusFailed, CreatedAt: time.Now(),
		})
	}

	stats, err := c.Stats(context.Background(), projectID, 30)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.SuccessRate != 33.3 {
		t.Errorf("success rate = %v, want 33.3", stats.SuccessRate)
	}
}

func TestCheckForUpdatesPropagatesErrorInResult(t *testing.T) {
	store := newMemStore()
	g := &fakeGit{err: errors.New("fetch failed")}
	c := newTestCoordinator(store, g)

	status := c.CheckForUpdates(context.Background(), onlineProject())
	if status.HasUpdates {
		t.Error("expected has_updates=false on git failure")
	}
	if status.Error == "" {
		t.Error("expected error to be propagated in result")
	}
}

func TestCheckForUpdates(t *testing.T) {
	store := newMemStore()
	g := &fakeGit{check: &git.UpdateCheck{
		LocalHash:     "aaa",
		RemoteHash:    "bbb",
		HasUpdates:    true,
		CommitsBehind: 2,
	}}
	c := newTestCoordinator(store, g)

	status := c.CheckForUpdates(context.Background(), onlineProject())
	if !status.HasUpdates || status.CommitsBehind != 2 {
		t.Errorf("unexpected status: %+v", status)
	}
	if status.LocalCommit != "aaa" || status.RemoteCommit != "bbb" {
		t.Errorf("unexpected commits: %+v", status)
	}
}

func TestRollbackToLastSuccess(t *testing.T) {
	store := newMemStore()
	c := newTestCoordinator(store, nil)
	project := onlineProject()

	store.Create(context.Background(), &domain.Deployment{
		ID:         uuid.New(),
		ProjectID:  project.ID,
		Status:     domain.DeploymentStatusSuccess,
		CommitHash: "good",
		CreatedAt:  time.Now().Add(-time.Hour),
	})

	d, err := c.RollbackToLastSuccess(context.Background(), project, time.Now(), nil)
	if err != nil {
		t.Fatalf("RollbackToLastSuccess failed: %v", err)
	}

	if d.CommitHash != "good" {
		t.Errorf("commit hash = %q", d.CommitHash)
	}
	if d.TriggeredBy != domain.TriggeredByRollback {
		t.Errorf("triggered_by = %s", d.TriggeredBy)
	}
}

func TestRollbackToLastSuccessWithoutCandidates(t *testing.T) {
	store := newMemStore()
	c := newTestCoordinator(store, nil)

	_, err := c.RollbackToLastSuccess(context.Background(), onlineProject(), time.Now(), nil)
	if !errors.Is(err, ErrNoSuccessfulDeployment) {
		t.Fatalf("expected ErrNoSuccessfulDeployment, got: %v", err)
	}
}
