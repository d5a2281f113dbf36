package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/devflow/devflow/internal/domain"
)

const deploymentColumns = `
	id, project_id, user_id, server_id, status, triggered_by, branch,
	commit_hash, commit_message, environment_snapshot,
	rollback_deployment_id, started_at, completed_at, duration_seconds,
	output_log, error_log, created_at
`

// DeploymentRepo — репозиторий для работы с deployments.
type DeploymentRepo struct {
	pool *pgxpool.Pool
}

// NewDeploymentRepo создаёт новый DeploymentRepo.
func NewDeploymentRepo(pool *pgxpool.Pool) *DeploymentRepo {
	return &DeploymentRepo{pool: pool}
}

// Create создаёт новый deployment.
//
// Нарушение partial unique index uq_deployments_active (второй
// активный deployment проекта) возвращается как ErrActiveDeployment.
func (r *DeploymentRepo) Create(ctx context.Context, d *domain.Deployment) error {
	var snapshotJSON []byte
	if d.EnvironmentSnapshot != nil {
		var err error
		snapshotJSON, err = json.Marshal(d.EnvironmentSnapshot)
		if err != nil {
			return fmt.Errorf("marshal environment snapshot: %w", err)
		}
	}

	query := `
		INSERT INTO deployments (` + deploymentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`
	_, err := r.pool.Exec(ctx, query,
		d.ID,
		d.ProjectID,
		d.UserID,
		d.ServerID,
		d.Status,
		d.TriggeredBy,
		d.Branch,
		nullString(d.CommitHash),
		nullString(d.CommitMessage),
		snapshotJSON,
		d.RollbackDeploymentID,
		d.StartedAt,
		d.CompletedAt,
		d.DurationSeconds,
		nullString(d.OutputLog),
		nullString(d.ErrorLog),
		d.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == "uq_deployments_active" {
			return ErrActiveDeployment
		}
		return fmt.Errorf("insert deployment: %w", err)
	}
	return nil
}

// GetByID возвращает deployment по ID.
func (r *DeploymentRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Deployment, error) {
	query := `SELECT ` + deploymentColumns + ` FROM deployments WHERE id = $1`
	return scanDeployment(r.pool.QueryRow(ctx, query, id))
}

// Update обновляет изменяемые поля deployment.
func (r *DeploymentRepo) Update(ctx context.Context, d *domain.Deployment) error {
	query := `
		UPDATE deployments
		SET status = $2, commit_hash = $3, commit_message = $4,
		    started_at = $5, completed_at = $6, duration_seconds = $7,
		    output_log = $8, error_log = $9
		WHERE id = $1
	`
	result, err := r.pool.Exec(ctx, query,
		d.ID,
		d.Status,
		nullString(d.CommitHash),
		nullString(d.CommitMessage),
		d.StartedAt,
		d.CompletedAt,
		d.DurationSeconds,
		nullString(d.OutputLog),
		nullString(d.ErrorLog),
	)
	if err != nil {
		return fmt.Errorf("update deployment: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ClaimPending атомарно переводит deployment из pending в running.
// Возвращает false, если deployment уже подхвачен другим воркером
// или покинул статус pending.
func (r *DeploymentRepo) ClaimPending(ctx context.Context, id uuid.UUID, startedAt time.Time) (bool, error) {
	query := `
		UPDATE deployments
		SET status = 'running', started_at = $2
		WHERE id = $1 AND status = 'pending'
	`
	result, err := r.pool.Exec(ctx, query, id, startedAt)
	if err != nil {
		return false, fmt.Errorf("claim deployment: %w", err)
	}
	return result.RowsAffected() > 0, nil
}

// GetActive возвращает активный (pending/running) deployment проекта.
// ErrNotFound, если активного deployment нет.
func (r *DeploymentRepo) GetActive(ctx context.Context, projectID uuid.UUID) (*domain.Deployment, error) {
	query := `
		SELECT ` + deploymentColumns + `
		FROM deployments
		WHERE project_id = $1 AND status IN ('pending', 'running')
		ORDER BY created_at DESC
		LIMIT 1
	`
	return scanDeployment(r.pool.QueryRow(ctx, query, projectID))
}

// HasActive проверяет, есть ли у проекта активный deployment.
func (r *DeploymentRepo) HasActive(ctx context.Context, projectID uuid.UUID) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM deployments
			WHERE project_id = $1 AND status IN ('pending', 'running')
		)
	`
	var exists bool
	if err := r.pool.QueryRow(ctx, query, projectID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check active deployment: %w", err)
	}
	return exists, nil
}

// ListByProject возвращает последние deployments проекта.
func (r *DeploymentRepo) ListByProject(ctx context.Context, projectID uuid.UUID, limit int) ([]domain.Deployment, error) {
	if limit <= 0 {
		limit = 10
	}
	query := `
		SELECT ` + deploymentColumns + `
		FROM deployments
		WHERE project_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	return r.list(ctx, query, projectID, limit)
}

// ListPending возвращает deployments в статусе pending.
// Используется polling-fallback'ом worker'а.
func (r *DeploymentRepo) ListPending(ctx context.Context, limit int) ([]domain.Deployment, error) {
	query := `
		SELECT ` + deploymentColumns + `
		FROM deployments
		WHERE status = 'pending'
		ORDER BY created_at ASC
		LIMIT $1
	`
	return r.list(ctx, query, limit)
}

// LastSuccessful возвращает самый свежий успешный deployment проекта.
// before ограничивает поиск deployments, созданными раньше указанного
// (для rollback после неудачи — исключает сам неудавшийся deployment).
func (r *DeploymentRepo) LastSuccessful(ctx context.Context, projectID uuid.UUID, before time.Time) (*domain.Deployment, error) {
	query := `
		SELECT ` + deploymentColumns + `
		FROM deployments
		WHERE project_id = $1 AND status = 'success' AND created_at < $2
		ORDER BY created_at DESC
		LIMIT 1
	`
	return scanDeployment(r.pool.QueryRow(ctx, query, projectID, before))
}

// StatsSince возвращает агрегаты по deployments, созданным после since.
func (r *DeploymentRepo) StatsSince(ctx context.Context, projectID uuid.UUID, since time.Time) (total, successful, failed int, avgDuration float64, err error) {
	query := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'success'),
			COUNT(*) FILTER (WHERE status = 'failed'),
			COALESCE(AVG(duration_seconds), 0)
		FROM deployments
		WHERE project_id = $1 AND created_at >= $2
	`
	err = r.pool.QueryRow(ctx, query, projectID, since).Scan(&total, &successful, &failed, &avgDuration)
	if err != nil {
		return 0, 0, 0, 0, fmt.Errorf("deployment stats: %w", err)
	}
	return total, successful, failed, avgDuration, nil
}

// list выполняет запрос и сканирует все строки.
func (r *DeploymentRepo) list(ctx context.Context, query string, args ...any) ([]domain.Deployment, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list deployments: %w", err)
	}
	defer rows.Close()

	var deployments []domain.Deployment
	for rows.Next() {
		d, err := scanDeployment(rows)
		if err != nil {
			return nil, err
		}
		deployments = append(deployments, *d)
	}
	return deployments, rows.Err()
}

// scanDeployment сканирует одну строку в Deployment.
func scanDeployment(row pgx.Row) (*domain.Deployment, error) {
	var d domain.Deployment
	var snapshotJSON []byte
	var commitHash, commitMessage, outputLog, errorLog *string

	err := row.Scan(
		&d.ID,
		&d.ProjectID,
		&d.UserID,
		&d.ServerID,
		&d.Status,
		&d.TriggeredBy,
		&d.Branch,
		&commitHash,
		&commitMessage,
		&snapshotJSON,
		&d.RollbackDeploymentID,
		&d.StartedAt,
		&d.CompletedAt,
		&d.DurationSeconds,
		&outputLog,
		&errorLog,
		&d.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan deployment: %w", err)
	}

	if snapshotJSON != nil {
		if err := json.Unmarshal(snapshotJSON, &d.EnvironmentSnapshot); err != nil {
			return nil, fmt.Errorf("unmarshal environment snapshot: %w", err)
		}
	}

	d.CommitHash = fromNull(commitHash)
	d.CommitMessage = fromNull(commitMessage)
	d.OutputLog = fromNull(outputLog)
	d.ErrorLog = fromNull(errorLog)

	return &d, nil
}

// --- Helpers ---

// nullString возвращает nil для пустой строки (для NULL в БД).
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// fromNull возвращает пустую строку для NULL.
func fromNull(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
