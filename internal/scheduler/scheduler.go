package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/devflow/devflow/internal/deploy"
	"github.com/devflow/devflow/internal/domain"
)

// ProjectStore — хранилище проектов, нужное планировщику.
type ProjectStore interface {
	ListAutoDeployDue(ctx context.Context, now time.Time, limit int) ([]domain.Project, error)
	Update(ctx context.Context, p *domain.Project) error
}

// DeployCoordinator — операции deploy-координатора, используемые
// планировщиком.
type DeployCoordinator interface {
	CheckForUpdates(ctx context.Context, project *domain.Project) *deploy.UpdateStatus
	Deploy(ctx context.Context, project *domain.Project, userID *uuid.UUID, triggeredBy domain.TriggeredBy, commitHash string) (*domain.Deployment, error)
}

// Scheduler — планировщик auto-deploy проверок.
type Scheduler struct {
	projects    ProjectStore
	coordinator DeployCoordinator
	logger      *slog.Logger
	batchSize   int
}

// Config — конфигурация Scheduler.
type Config struct {
	Projects    ProjectStore
	Coordinator DeployCoordinator
	Logger      *slog.Logger
	BatchSize   int // количество проектов за один тик (default: 50)
}

// New создаёт новый Scheduler.
func New(cfg Config) *Scheduler {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 50
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Scheduler{
		projects:    cfg.Projects,
		coordinator: cfg.Coordinator,
		logger:      logger,
		batchSize:   batchSize,
	}
}

// Tick выполняет один тик планировщика.
//
// 1. Находит проекты с auto_deploy=true и next_auto_deploy_at <= now
// 2. Для каждого проверяет наличие новых commits в origin
// 3. При наличии обновлений запускает automatic deployment
// 4. Переносит next_auto_deploy_at по cron-выражению проекта
//
// Ошибки одного проекта не блокируют обработку остальных.
func (s *Scheduler) Tick(ctx context.Context) error {
	now := time.Now()

	due, err := s.projects.ListAutoDeployDue(ctx, now, s.batchSize)
	if err != nil {
		return fmt.Errorf("list auto-deploy due projects: %w", err)
	}

	if len(due) == 0 {
		return nil
	}

	s.logger.Debug("found due projects", "count", len(due))

	var processed, deployed int
	for i := range due {
		project := &due[i]

		created, err := s.processProject(ctx, project, now)
		if err != nil {
			s.logger.Error("failed to process project",
				"project_id", project.ID,
				"project_name", project.Name,
				"error", err,
			)
			// Продолжаем обработку остальных
			continue
		}

		processed++
		if created {
			deployed++
		}
	}

	s.logger.Info("scheduler tick completed",
		"due", len(due),
		"processed", processed,
		"deployments_created", deployed,
	)

	return nil
}

// processProject обрабатывает один due-проект.
// Возвращает true, если deployment был создан.
func (s *Scheduler) processProject(ctx context.Context, project *domain.Project, now time.Time) (bool, error) {
	// 1. Переносим next_auto_deploy_at независимо от результата
	// проверки, иначе упавший проект попадает в каждый тик
	if err := s.reschedule(ctx, project, now); err != nil {
		return false, err
	}

	// 2. Проверяем, есть ли новые commits
	status := s.coordinator.CheckForUpdates(ctx, project)
	if status.Error != "" {
		s.logger.Warn("update check failed, skipping project",
			"project_id", project.ID,
			"error", status.Error,
		)
		return false, nil
	}

	if !status.HasUpdates {
		s.logger.Debug("project up to date",
			"project_id", project.ID,
			"commit", status.LocalCommit,
		)
		return false, nil
	}

	s.logger.Info("updates found, starting auto-deploy",
		"project_id", project.ID,
		"project_name", project.Name,
		"commits_behind", status.CommitsBehind,
	)

	// 3. Запускаем automatic deployment (без пользователя)
	d, err := s.coordinator.Deploy(ctx, project, nil, domain.TriggeredByAutomatic, status.RemoteCommit)
	if err != nil {
		if errors.Is(err, deploy.ErrDeploymentInProgress) {
			// У проекта уже идёт deployment — не ошибка тика
			s.logger.Debug("project already has active deployment",
				"project_id", project.ID)
			return false, nil
		}
		return false, fmt.Errorf("start auto-deploy: %w", err)
	}

	s.logger.Info("auto-deploy created",
		"project_id", project.ID,
		"deployment_id", d.ID,
		"commit_hash", d.CommitHash,
	)

	return true, nil
}

// reschedule вычисляет и сохраняет следующее время проверки.
// При невалидном cron-выражении auto-deploy отключается, иначе
// проект будет попадать в каждый тик до исправления.
func (s *Scheduler) reschedule(ctx context.Context, project *domain.Project, now time.Time) error {
	next, err := CalculateNextDue(project.DeployCron, now)
	if err != nil {
		s.logger.Error("invalid deploy cron, disabling auto-deploy",
			"project_id", project.ID,
			"cron", project.DeployCron,
			"error", err,
		)
		project.AutoDeploy = false
		project.NextAutoDeployAt = nil
	} else {
		project.NextAutoDeployAt = &next
	}

	if err := s.projects.Update(ctx, project); err != nil {
		return fmt.Errorf("update project schedule: %w", err)
	}
	return nil
}
