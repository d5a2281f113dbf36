package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/devflow/devflow/internal/deploy"
	"github.com/devflow/devflow/internal/domain"
)

type fakeProjects struct {
	due     []domain.Project
	updated map[uuid.UUID]*domain.Project
}

func (f *fakeProjects) ListAutoDeployDue(_ context.Context, _ time.Time, _ int) ([]domain.Project, error) {
	return f.due, nil
}

func (f *fakeProjects) Update(_ context.Context, p *domain.Project) error {
	if f.updated == nil {
		f.updated = make(map[uuid.UUID]*domain.Project)
	}
	cp := *p
	f.updated[p.ID] = &cp
	return nil
}

type fakeCoordinator struct {
	statuses  map[uuid.UUID]*deploy.UpdateStatus
	deployErr map[uuid.UUID]error
	deployed  []uuid.UUID
}

func (f *fakeCoordinator) CheckForUpdates(_ context.Context, p *domain.Project) *deploy.UpdateStatus {
	if st, ok := f.statuses[p.ID]; ok {
		return st
	}
	return &deploy.UpdateStatus{}
}

func (f *fakeCoordinator) Deploy(_ context.Context, p *domain.Project, _ *uuid.UUID, triggeredBy domain.TriggeredBy, commitHash string) (*domain.Deployment, error) {
	if err := f.deployErr[p.ID]; err != nil {
		return nil, err
	}
	f.deployed = append(f.deployed, p.ID)
	return &domain.Deployment{
		ID:          uuid.New(),
		ProjectID:   p.ID,
		Status:      domain.DeploymentStatusPending,
		TriggeredBy: triggeredBy,
		CommitHash:  commitHash,
	}, nil
}

func dueProject(cronExpr string) domain.Project {
	past := time.Now().Add(-time.Minute)
	return domain.Project{
		ID:               uuid.New(),
		Name:             "api-gateway",
		Slug:             "api-gateway",
		RepositoryURL:    "git@example.com:acme/gateway.git",
		Branch:           "main",
		AutoDeploy:       true,
		DeployCron:       cronExpr,
		NextAutoDeployAt: &past,
	}
}

func TestTickDeploysProjectWithUpdates(t *testing.T) {
	behind := dueProject("*/5 * * * *")
	upToDate := dueProject("*/5 * * * *")

	projects := &fakeProjects{due: []domain.Project{behind, upToDate}}
	coordinator := &fakeCoordinator{
		statuses: map[uuid.UUID]*deploy.UpdateStatus{
			behind.ID: {
				HasUpdates:    true,
				CommitsBehind: 3,
				RemoteCommit:  "bbb222",
			},
			upToDate.ID: {},
		},
	}

	s := New(Config{Projects: projects, Coordinator: coordinator})
	if err := s.Tick(context.Background()); err != nil {
		t.Fatalf("Tick: %v", err)
	}

	if len(coordinator.deployed) != 1 || coordinator.deployed[0] != behind.ID {
		t.Fatalf("deployed = %v, want only %s", coordinator.deployed, behind.ID)
	}

	// next_auto_deploy_at перенесён у обоих проектов
	for _, id := range []uuid.UUID{behind.ID, upToDate.ID} {
		p := projects.updated[id]
		if p == nil {
			t.Fatalf("project %s was not rescheduled", id)
		}
		if p.NextAutoDeployAt == nil || !p.NextAutoDeployAt.After(time.Now().Add(-time.Second)) {
			t.Errorf("project %s next due = %v, want in the future", id, p.NextAutoDeployAt)
		}
	}
}

func TestTickSkipsFailedUpdateCheck(t *testing.T) {
	broken := dueProject("*/5 * * * *")

	projects := &fakeProjects{due: []domain.Project{broken}}
	coordinator := &fakeCoordinator{
		statuses: map[uuid.UUID]*deploy.UpdateStatus{
			broken.ID: {Error: "fetch failed: could not resolve host"},
		},
	}

	s := New(Config{Projects: projects, Coordinator: coordinator})
	if err := s.Tick(context.Background()); err != nil {
		t.Fatalf("Tick: %v", err)
	}

	if len(coordinator.deployed) != 0 {
		t.Errorf("deployed = %v, want none", coordinator.deployed)
	}
	// Расписание всё равно перенесено
	if projects.updated[broken.ID] == nil {
		t.Error("project with failed check was not rescheduled")
	}
}

func TestTickToleratesActiveDeployment(t *testing.T) {
	busy := dueProject("*/5 * * * *")

	projects := &fakeProjects{due: []domain.Project{busy}}
	coordinator := &fakeCoordinator{
		statuses: map[uuid.UUID]*deploy.UpdateStatus{
			busy.ID: {HasUpdates: true, RemoteCommit: "ccc333"},
		},
		deployErr: map[uuid.UUID]error{
			busy.ID: deploy.ErrDeploymentInProgress,
		},
	}

	s := New(Config{Projects: projects, Coordinator: coordinator})
	if err := s.Tick(context.Background()); err != nil {
		t.Fatalf("Tick: %v", err)
	}
}

func TestTickIsolatesProjectFailures(t *testing.T) {
	failing := dueProject("*/5 * * * *")
	healthy := dueProject("*/5 * * * *")

	projects := &fakeProjects{due: []domain.Project{failing, healthy}}
	coordinator := &fakeCoordinator{
		statuses: map[uuid.UUID]*deploy.UpdateStatus{
			failing.ID: {HasUpdates: true, RemoteCommit: "ddd444"},
			healthy.ID: {HasUpdates: true, RemoteCommit: "eee555"},
		},
		deployErr: map[uuid.UUID]error{
			failing.ID: errors.New("database connection lost"),
		},
	}

	s := New(Config{Projects: projects, Coordinator: coordinator})
	if err := s.Tick(context.Background()); err != nil {
		t.Fatalf("Tick: %v", err)
	}

	if len(coordinator.deployed) != 1 || coordinator.deployed[0] != healthy.ID {
		t.Errorf("deployed = %v, want only %s", coordinator.deployed, healthy.ID)
	}
}

func TestRescheduleDisablesInvalidCron(t *testing.T) {
	bad := dueProject("not a cron")

	projects := &fakeProjects{due: []domain.Project{bad}}
	coordinator := &fakeCoordinator{}

	s := New(Config{Projects: projects, Coordinator: coordinator})
	if err := s.Tick(context.Background()); err != nil {
		t.Fatalf("Tick: %v", err)
	}

	p := projects.updated[bad.ID]
	if p == nil {
		t.Fatal("project was not updated")
	}
	if p.AutoDeploy {
		t.Error("auto_deploy still enabled for invalid cron")
	}
	if p.NextAutoDeployAt != nil {
		t.Errorf("next due = %v, want nil", p.NextAutoDeployAt)
	}
}
