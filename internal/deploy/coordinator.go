package deploy

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/devflow/devflow/internal/domain"
	"github.com/devflow/devflow/internal/git"
)

// DeploymentStore — хранилище deployments, нужное координатору.
// Реализуется repo.DeploymentRepo; в тестах — in-memory фейком.
type DeploymentStore interface {
	Create(ctx context.Context, d *domain.Deployment) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Deployment, error)
	Update(ctx context.Context, d *domain.Deployment) error
	GetActive(ctx context.Context, projectID uuid.UUID) (*domain.Deployment, error)
	HasActive(ctx context.Context, projectID uuid.UUID) (bool, error)
	ListByProject(ctx context.Context, projectID uuid.UUID, limit int) ([]domain.Deployment, error)
	LastSuccessful(ctx context.Context, projectID uuid.UUID, before time.Time) (*domain.Deployment, error)
	StatsSince(ctx context.Context, projectID uuid.UUID, since time.Time) (total, successful, failed int, avgDuration float64, err error)
}

// GitInspector — внешняя git-инспекция.
type GitInspector interface {
	CurrentCommit(ctx context.Context, p *domain.Project) (*git.CommitInfo, error)
	CheckForUpdates(ctx context.Context, p *domain.Project) (*git.UpdateCheck, error)
}

// Enqueuer публикует deployment на асинхронное выполнение.
// Реализуется mq.Publisher.
type Enqueuer interface {
	PublishDeploymentPending(ctx context.Context, deploymentID, projectID uuid.UUID) error
}

// Coordinator владеет жизненным циклом deployments.
type Coordinator struct {
	deployments DeploymentStore
	git         GitInspector
	queue       Enqueuer
	locks       *keyedMutex
	logger      *slog.Logger
}

// Config — конфигурация Coordinator.
type Config struct {
	Deployments DeploymentStore

	// Git — опционально. Без него deploy создаётся с пустыми
	// commit-полями, CheckForUpdates возвращает ошибку в результате.
	Git GitInspector

	// Queue — опционально. Без него deployments подхватываются
	// только polling'ом воркера.
	Queue Enqueuer

	Logger *slog.Logger
}

// New создаёт Coordinator.
func New(cfg Config) *Coordinator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Coordinator{
		deployments: cfg.Deployments,
		git:         cfg.Git,
		queue:       cfg.Queue,
		locks:       newKeyedMutex(),
		logger:      logger,
	}
}

// Deploy создаёт новый deployment проекта и ставит его на выполнение.
//
// Возвращается сразу после создания записи, не дожидаясь pipeline.
// Если commitHash пуст, commit разрешается через git-инспекцию;
// её неудача не прерывает создание — commit-поля остаются пустыми.
func (c *Coordinator) Deploy(ctx context.Context, project *domain.Project, userID *uuid.UUID, triggeredBy domain.TriggeredBy, commitHash string) (*domain.Deployment, error) {
	c.locks.Lock(project.ID)
	defer c.locks.Unlock(project.ID)

	active, err := c.deployments.HasActive(ctx, project.ID)
	if err != nil {
		return nil, err
	}
	if active {
		return nil, ErrDeploymentInProgress
	}

	commitMessage := ""
	if commitHash == "" && c.git != nil {
		info, err := c.git.CurrentCommit(ctx, project)
		if err != nil {
			c.logger.Warn("commit resolution failed, deploying without commit info",
				"project_id", project.ID, "error", err)
		} else {
			commitHash = info.Hash
			commitMessage = info.Message
		}
	}

	now := time.Now()
	d := &domain.Deployment{
		ID:                  uuid.New(),
		ProjectID:           project.ID,
		UserID:              userID,
		ServerID:            project.ServerID,
		Status:              domain.DeploymentStatusPending,
		TriggeredBy:         triggeredBy,
		Branch:              project.Branch,
		CommitHash:          commitHash,
		CommitMessage:       commitMessage,
		EnvironmentSnapshot: project.Snapshot(now),
		CreatedAt:           now,
	}

	if err := c.deployments.Create(ctx, d); err != nil {
		return nil, err
	}

	c.enqueue(ctx, d)

	c.logger.Info("deployment created",
		"deployment_id", d.ID,
		"project_id", project.ID,
		"triggered_by", triggeredBy,
		"commit_hash", commitHash,
	)

	return d, nil
}

// Rollback создаёт deployment, возвращающий проект на commit ранее
// успешного deployment.
func (c *Coordinator) Rollback(ctx context.Context, project *domain.Project, target *domain.Deployment, userID *uuid.UUID) (*domain.Deployment, error) {
	if target.ProjectID != project.ID {
		return nil, ErrRollbackWrongProject
	}
	if !target.IsSuccess() {
		return nil, ErrRollbackNotSuccessful
	}
	if target.CommitHash == "" {
		return nil, ErrRollbackNoCommit
	}

	c.locks.Lock(project.ID)
	defer c.locks.Unlock(project.ID)

	active, err := c.deployments.HasActive(ctx, project.ID)
	if err != nil {
		return nil, err
	}
	if active {
		return nil, ErrDeploymentInProgress
	}

	message := target.CommitMessage
	if message == "" {
		message = target.CommitHash
	}

	// Снимок окружения берётся из целевого deployment: rollback
	// возвращает то состояние, а не текущие настройки проекта.
	// Копия, чтобы два deployment не делили одну карту переменных.
	snapshot := target.EnvironmentSnapshot.Clone()
	if snapshot == nil {
		snapshot = project.Snapshot(time.Now())
	}

	targetID := target.ID
	d := &domain.Deployment{
		ID:                   uuid.New(),
		ProjectID:            project.ID,
		UserID:               userID,
		ServerID:             project.ServerID,
		Status:               domain.DeploymentStatusPending,
		TriggeredBy:          domain.TriggeredByRollback,
		Branch:               target.Branch,
		CommitHash:           target.CommitHash,
		CommitMessage:        "Rollback to: " + message,
		EnvironmentSnapshot:  snapshot,
		RollbackDeploymentID: &targetID,
		CreatedAt:            time.Now(),
	}

	if err := c.deployments.Create(ctx, d); err != nil {
		return nil, err
	}

	c.enqueue(ctx, d)

	c.logger.Info("rollback created",
		"deployment_id", d.ID,
		"project_id", project.ID,
		"target_deployment_id", target.ID,
		"target_commit", target.CommitHash,
	)

	return d, nil
}

// RollbackToLastSuccess откатывает проект на последний успешный
// deployment, созданный до before.
func (c *Coordinator) RollbackToLastSuccess(ctx context.Context, project *domain.Project, before time.Time, userID *uuid.UUID) (*domain.Deployment, error) {
	target, err := c.deployments.LastSuccessful(ctx, project.ID, before)
	if err != nil {
		return nil, err
	}
	if target == nil {
		return nil, ErrNoSuccessfulDeployment
	}

	return c.Rollback(ctx, project, target, userID)
}

// BatchResult — итог batch deploy.
type BatchResult struct {
	// Successful — число созданных deployments.
	Successful int `json:"successful"`

	// Failed — число проектов, пропущенных или отклонённых.
	Failed int `json:"failed"`

	// Deployments — созданные deployments.
	Deployments []domain.Deployment `json:"deployments"`
}

// BatchDeploy создаёт deployments для каждого проекта независимо.
// Неудача одного проекта не прерывает обработку остальных.
func (c *Coordinator) BatchDeploy(ctx context.Context, projects []domain.Project, userID *uuid.UUID) *BatchResult {
	result := &BatchResult{}

	for i := range projects {
		p := &projects[i]

		if !p.HasServer() {
			c.logger.Warn("batch deploy: project has no server", "project_id", p.ID)
			result.Failed++
			continue
		}

		d, err := c.Deploy(ctx, p, userID, domain.TriggeredByManual, "")
		if err != nil {
			c.logger.Warn("batch deploy: project skipped",
				"project_id", p.ID, "error", err)
			result.Failed++
			continue
		}

		result.Successful++
		result.Deployments = append(result.Deployments, *d)
	}

	return result
}

// HasActiveDeployment проверяет, есть ли у проекта активный deployment.
func (c *Coordinator) HasActiveDeployment(ctx context.Context, projectID uuid.UUID) (bool, error) {
	return c.deployments.HasActive(ctx, projectID)
}

// GetActiveDeployment возвращает активный deployment проекта или nil.
func (c *Coordinator) GetActiveDeployment(ctx context.Context, projectID uuid.UUID) (*domain.Deployment, error) {
	return c.deployments.GetActive(ctx, projectID)
}

// CancelDeployment отменяет pending/running deployment.
// Для уже завершённых возвращает false и не возвращает ошибку.
func (c *Coordinator) CancelDeployment(ctx context.Context, d *domain.Deployment) (bool, error) {
	if d.IsFinished() {
		c.logger.Info("cancel requested for finished deployment",
			"deployment_id", d.ID, "status", d.Status)
		return false, nil
	}

	d.MarkCancelled("Deployment cancelled by user")
	if err := c.deployments.Update(ctx, d); err != nil {
		return false, err
	}

	c.logger.Info("deployment cancelled", "deployment_id", d.ID)
	return true, nil
}

// MarkAsSuccess вручную переводит deployment в success.
// Используется, когда выполнение завершилось вне оркестратора.
func (c *Coordinator) MarkAsSuccess(ctx context.Context, d *domain.Deployment) (bool, error) {
	if d.IsFinished() {
		c.logger.Info("mark-success requested for finished deployment",
			"deployment_id", d.ID, "status", d.Status)
		return false, nil
	}

	d.MarkSuccess()
	if err := c.deployments.Update(ctx, d); err != nil {
		return false, err
	}

	c.logger.Info("deployment manually marked as success", "deployment_id", d.ID)
	return true, nil
}

// MarkAsFailed вручную переводит deployment в failed.
func (c *Coordinator) MarkAsFailed(ctx context.Context, d *domain.Deployment, errMsg string) (bool, error) {
	if d.IsFinished() {
		c.logger.Info("mark-failed requested for finished deployment",
			"deployment_id", d.ID, "status", d.Status)
		return false, nil
	}

	d.MarkFailed(errMsg)
	if err := c.deployments.Update(ctx, d); err != nil {
		return false, err
	}

	c.logger.Info("deployment manually marked as failed",
		"deployment_id", d.ID, "error", errMsg)
	return true, nil
}

// Stats возвращает статистику deployments проекта за trailing-окно.
// Для проекта без deployments возвращает нулевые поля, не ошибку.
func (c *Coordinator) Stats(ctx context.Context, projectID uuid.UUID, windowDays int) (*domain.DeploymentStats, error) {
	since := time.Now().AddDate(0, 0, -windowDays)

	total, successful, failed, avgDuration, err := c.deployments.StatsSince(ctx, projectID, since)
	if err != nil {
		return nil, err
	}

	stats := &domain.DeploymentStats{
		Total:       total,
		Successful:  successful,
		Failed:      failed,
		AvgDuration: avgDuration,
	}

	if total > 0 {
		rate := float64(successful) / float64(total) * 100
		stats.SuccessRate = math.Round(rate*10) / 10
	}

	return stats, nil
}

// UpdateStatus — результат проверки удалённых обновлений.
type UpdateStatus struct {
	HasUpdates    bool   `json:"has_updates"`
	CommitsBehind int    `json:"commits_behind"`
	LocalCommit   string `json:"local_commit,omitempty"`
	RemoteCommit  string `json:"remote_commit,omitempty"`
	Error         string `json:"error,omitempty"`
}

// CheckForUpdates сравнивает рабочую копию проекта с origin.
// Неудача git-инспекции возвращается в поле Error, не как ошибка вызова.
func (c *Coordinator) CheckForUpdates(ctx context.Context, project *domain.Project) *UpdateStatus {
	if c.git == nil {
		return &UpdateStatus{Error: "git inspection is not configured"}
	}

	check, err := c.git.CheckForUpdates(ctx, project)
	if err != nil {
		return &UpdateStatus{Error: err.Error()}
	}

	return &UpdateStatus{
		HasUpdates:    check.HasUpdates,
		CommitsBehind: check.CommitsBehind,
		LocalCommit:   check.LocalHash,
		RemoteCommit:  check.RemoteHash,
	}
}

// RecentDeployments возвращает последние deployments проекта.
func (c *Coordinator) RecentDeployments(ctx context.Context, projectID uuid.UUID, limit int) ([]domain.Deployment, error) {
	if limit <= 0 {
		limit = 10
	}
	return c.deployments.ListByProject(ctx, projectID, limit)
}

// DeploymentLogs возвращает логи deployment для показа пользователю.
func (c *Coordinator) DeploymentLogs(ctx context.Context, id uuid.UUID) (string, error) {
	d, err := c.deployments.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	return d.FormatLogs(), nil
}

// enqueue публикует deployment в очередь. Без очереди или при
// неудаче публикации deployment подхватит polling воркера.
func (c *Coordinator) enqueue(ctx context.Context, d *domain.Deployment) {
	if c.queue == nil {
		return
	}

	if err := c.queue.PublishDeploymentPending(ctx, d.ID, d.ProjectID); err != nil {
		c.logger.Warn("failed to publish deployment, polling will pick it up",
			"deployment_id", d.ID, "error", err)
	}
}
