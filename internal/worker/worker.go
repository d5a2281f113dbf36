package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/devflow/devflow/internal/domain"
	"github.com/devflow/devflow/internal/git"
	"github.com/devflow/devflow/internal/mq"
	"github.com/devflow/devflow/internal/pipeline"
)

// Default configuration values.
const (
	defaultPollInterval = 10 * time.Second
	defaultBatchSize    = 20
	defaultPrefetch     = 1
)

// DeploymentStore — хранилище deployments, нужное воркеру.
type DeploymentStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Deployment, error)
	Update(ctx context.Context, d *domain.Deployment) error
	ListPending(ctx context.Context, limit int) ([]domain.Deployment, error)
	ClaimPending(ctx context.Context, id uuid.UUID, startedAt time.Time) (bool, error)
}

// ProjectStore — хранилище проектов.
type ProjectStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Project, error)
	Update(ctx context.Context, p *domain.Project) error
}

// StageStore — проверка наличия pipeline stages у проекта.
type StageStore interface {
	HasEnabledStages(ctx context.Context, projectID uuid.UUID) (bool, error)
}

// PipelineExecutor — оркестратор pipeline.
type PipelineExecutor interface {
	ExecutePipeline(ctx context.Context, ec pipeline.ExecContext) (*domain.PipelineRun, error)
}

// GitSyncer — git-операции прямого пути deploy.
type GitSyncer interface {
	Sync(ctx context.Context, p *domain.Project) (string, error)
	CurrentCommit(ctx context.Context, p *domain.Project) (*git.CommitInfo, error)
}

// Composer — docker compose операции прямого пути deploy.
type Composer interface {
	UsesCompose(ctx context.Context, p *domain.Project) (bool, error)
	Build(ctx context.Context, p *domain.Project) (string, error)
	Up(ctx context.Context, p *domain.Project) (string, error)
}

// Worker выполняет deployments.
type Worker struct {
	deployments DeploymentStore
	projects    ProjectStore
	stages      StageStore
	pipeline    PipelineExecutor
	git         GitSyncer
	compose     Composer

	// MQ
	conn     *mq.Connection
	consumer *mq.Consumer

	// Configuration
	pollInterval time.Duration
	batchSize    int

	// Lifecycle
	logger     *slog.Logger
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
	stopped    bool
	stoppedMu  sync.RWMutex
}

// Config — конфигурация Worker.
type Config struct {
	Deployments DeploymentStore
	Projects    ProjectStore
	Stages      StageStore
	Pipeline    PipelineExecutor

	// Git и Compose нужны только прямому пути deploy.
	Git     GitSyncer
	Compose Composer

	// Conn — опционально. Без RabbitMQ deployments подхватываются
	// только polling'ом.
	Conn *mq.Connection

	// Polling configuration
	PollInterval time.Duration // интервал polling (default: 10s)
	BatchSize    int           // количество deployments за один poll (default: 20)

	// Logger
	Logger *slog.Logger
}

// New создаёт новый Worker.
func New(cfg Config) *Worker {
	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Worker{
		deployments:  cfg.Deployments,
		projects:     cfg.Projects,
		stages:       cfg.Stages,
		pipeline:     cfg.Pipeline,
		git:          cfg.Git,
		compose:      cfg.Compose,
		conn:         cfg.Conn,
		pollInterval: pollInterval,
		batchSize:    batchSize,
		logger:       logger,
	}
}

// Start запускает Worker.
//
// Запускает:
//   - Consumer для deployments.pending (если есть соединение с MQ)
//   - Polling горутину для fallback
func (w *Worker) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	w.cancelFunc = cancel

	w.logger.Info("starting worker",
		"poll_interval", w.pollInterval,
		"batch_size", w.batchSize,
	)

	if w.conn != nil {
		w.consumer = mq.NewConsumer(w.conn, w.logger, mq.ConsumerConfig{
			Queue:    string(mq.QueueDeploymentsPending),
			Handler:  w.handleDeploymentPending,
			Prefetch: defaultPrefetch,
		})

		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			if err := w.consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				w.logger.Error("deployment consumer error", "error", err)
			}
		}()
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.pollLoop(ctx)
	}()

	w.logger.Info("worker started")
	return nil
}

// Stop останавливает Worker.
func (w *Worker) Stop() {
	w.stoppedMu.Lock()
	w.stopped = true
	w.stoppedMu.Unlock()

	w.logger.Info("stopping worker...")

	if w.cancelFunc != nil {
		w.cancelFunc()
	}

	if w.consumer != nil {
		w.consumer.Stop()
	}

	// Ждём завершения горутин
	w.wg.Wait()

	w.logger.Info("worker stopped")
}

// IsStopped проверяет, остановлен ли Worker.
func (w *Worker) IsStopped() bool {
	w.stoppedMu.RLock()
	defer w.stoppedMu.RUnlock()
	return w.stopped
}

// pollLoop — цикл polling для fallback.
func (w *Worker) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	// Первый poll сразу при старте (подхватываем deployments,
	// созданные пока воркер был выключен)
	w.poll(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.poll(ctx)
		}
	}
}

// poll выполняет один цикл polling.
func (w *Worker) poll(ctx context.Context) {
	pending, err := w.deployments.ListPending(ctx, w.batchSize)
	if err != nil {
		w.logger.Error("failed to list pending deployments", "error", err)
		return
	}

	if len(pending) == 0 {
		return
	}

	w.logger.Debug("poll found pending deployments", "count", len(pending))

	for i := range pending {
		d := &pending[i]

		if err := w.processDeployment(ctx, d.ID); err != nil {
			w.logger.Error("failed to process deployment from poll",
				"deployment_id", d.ID,
				"error", err,
			)
		}
	}
}
