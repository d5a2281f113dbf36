package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/devflow/devflow/internal/domain"
)

// PipelineRepo — репозиторий для pipeline stages, runs и stage runs.
type PipelineRepo struct {
	pool *pgxpool.Pool
}

// NewPipelineRepo создаёт новый PipelineRepo.
func NewPipelineRepo(pool *pgxpool.Pool) *PipelineRepo {
	return &PipelineRepo{pool: pool}
}

// --- Stages ---

const stageColumns = `
	id, project_id, name, type, stage_order, commands, is_enabled,
	continue_on_failure, timeout_sec, created_at
`

// CreateStage создаёт новый stage.
func (r *PipelineRepo) CreateStage(ctx context.Context, s *domain.PipelineStage) error {
	commandsJSON, err := json.Marshal(s.Commands)
	if err != nil {
		return fmt.Errorf("marshal commands: %w", err)
	}

	query := `
		INSERT INTO pipeline_stages (` + stageColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err = r.pool.Exec(ctx, query,
		s.ID, s.ProjectID, s.Name, s.Type, s.Order, commandsJSON,
		s.IsEnabled, s.ContinueOnFailure, s.TimeoutSec, s.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert pipeline stage: %w", err)
	}
	return nil
}

// GetStage возвращает stage по ID.
func (r *PipelineRepo) GetStage(ctx context.Context, id uuid.UUID) (*domain.PipelineStage, error) {
	query := `SELECT ` + stageColumns + ` FROM pipeline_stages WHERE id = $1`
	return scanStage(r.pool.QueryRow(ctx, query, id))
}

// ListStages возвращает все stages проекта в порядке создания.
func (r *PipelineRepo) ListStages(ctx context.Context, projectID uuid.UUID) ([]domain.PipelineStage, error) {
	query := `
		SELECT ` + stageColumns + `
		FROM pipeline_stages
		WHERE project_id = $1
		ORDER BY created_at ASC, id ASC
	`
	return r.listStages(ctx, query, projectID)
}

// ListEnabledStages возвращает включённые stages проекта в порядке
// создания. Итоговую сортировку по фазе и order делает оркестратор.
func (r *PipelineRepo) ListEnabledStages(ctx context.Context, projectID uuid.UUID) ([]domain.PipelineStage, error) {
	query := `
		SELECT ` + stageColumns + `
		FROM pipeline_stages
		WHERE project_id = $1 AND is_enabled = true
		ORDER BY created_at ASC, id ASC
	`
	return r.listStages(ctx, query, projectID)
}

// UpdateStage обновляет stage.
func (r *PipelineRepo) UpdateStage(ctx context.Context, s *domain.PipelineStage) error {
	commandsJSON, err := json.Marshal(s.Commands)
	if err != nil {
		return fmt.Errorf("marshal commands: %w", err)
	}

	query := `
		UPDATE pipeline_stages
		SET name = $2, type = $3, stage_order = $4, commands = $5,
		    is_enabled = $6, continue_on_failure = $7, timeout_sec = $8
		WHERE id = $1
	`
	result, err := r.pool.Exec(ctx, query,
		s.ID, s.Name, s.Type, s.Order, commandsJSON,
		s.IsEnabled, s.ContinueOnFailure, s.TimeoutSec,
	)
	if err != nil {
		return fmt.Errorf("update pipeline stage: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteStage удаляет stage.
func (r *PipelineRepo) DeleteStage(ctx context.Context, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM pipeline_stages WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete pipeline stage: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// HasEnabledStages проверяет, настроен ли у проекта pipeline.
func (r *PipelineRepo) HasEnabledStages(ctx context.Context, projectID uuid.UUID) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM pipeline_stages
			WHERE project_id = $1 AND is_enabled = true
		)
	`
	var exists bool
	if err := r.pool.QueryRow(ctx, query, projectID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check enabled stages: %w", err)
	}
	return exists, nil
}

func (r *PipelineRepo) listStages(ctx context.Context, query string, args ...any) ([]domain.PipelineStage, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list pipeline stages: %w", err)
	}
	defer rows.Close()

	var stages []domain.PipelineStage
	for rows.Next() {
		s, err := scanStage(rows)
		if err != nil {
			return nil, err
		}
		stages = append(stages, *s)
	}
	return stages, rows.Err()
}

func scanStage(row pgx.Row) (*domain.PipelineStage, error) {
	var s domain.PipelineStage
	var commandsJSON []byte

	err := row.Scan(
		&s.ID, &s.ProjectID, &s.Name, &s.Type, &s.Order, &commandsJSON,
		&s.IsEnabled, &s.ContinueOnFailure, &s.TimeoutSec, &s.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan pipeline stage: %w", err)
	}

	if commandsJSON != nil {
		if err := json.Unmarshal(commandsJSON, &s.Commands); err != nil {
			return nil, fmt.Errorf("unmarshal commands: %w", err)
		}
	}
	return &s, nil
}

// --- Runs ---

const runColumns = `
	id, project_id, deployment_id, status, triggered_by, commit_hash,
	started_at, finished_at, error, created_at
`

// CreateRun создаёт новый pipeline run.
func (r *PipelineRepo) CreateRun(ctx context.Context, run *domain.PipelineRun) error {
	query := `
		INSERT INTO pipeline_runs (` + runColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := r.pool.Exec(ctx, query,
		run.ID, run.ProjectID, run.DeploymentID, run.Status, run.TriggeredBy,
		nullString(run.CommitHash), run.StartedAt, run.FinishedAt,
		nullString(run.Error), run.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert pipeline run: %w", err)
	}
	return nil
}

// GetRun возвращает run по ID.
func (r *PipelineRepo) GetRun(ctx context.Context, id uuid.UUID) (*domain.PipelineRun, error) {
	query := `SELECT ` + runColumns + ` FROM pipeline_runs WHERE id = $1`
	return scanRun(r.pool.QueryRow(ctx, query, id))
}

// GetRunByDeployment возвращает run, привязанный к deployment.
func (r *PipelineRepo) GetRunByDeployment(ctx context.Context, deploymentID uuid.UUID) (*domain.PipelineRun, error) {
	query := `
		SELECT ` + runColumns + `
		FROM pipeline_runs
		WHERE deployment_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`
	return scanRun(r.pool.QueryRow(ctx, query, deploymentID))
}

// UpdateRun обновляет run.
func (r *PipelineRepo) UpdateRun(ctx context.Context, run *domain.PipelineRun) error {
	query := `
		UPDATE pipeline_runs
		SET status = $2, started_at = $3, finished_at = $4, error = $5
		WHERE id = $1
	`
	result, err := r.pool.Exec(ctx, query,
		run.ID, run.Status, run.StartedAt, run.FinishedAt, nullString(run.Error),
	)
	if err != nil {
		return fmt.Errorf("update pipeline run: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanRun(row pgx.Row) (*domain.PipelineRun, error) {
	var run domain.PipelineRun
	var commitHash, runError *string

	err := row.Scan(
		&run.ID, &run.ProjectID, &run.DeploymentID, &run.Status, &run.TriggeredBy,
		&commitHash, &run.StartedAt, &run.FinishedAt, &runError, &run.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan pipeline run: %w", err)
	}

	run.CommitHash = fromNull(commitHash)
	run.Error = fromNull(runError)
	return &run, nil
}

// --- Stage runs ---

const stageRunColumns = `
	id, pipeline_run_id, pipeline_stage_id, name, status, output, error,
	started_at, finished_at, created_at
`

// CreateStageRun создаёт stage run.
func (r *PipelineRepo) CreateStageRun(ctx context.Context, sr *domain.PipelineStageRun) error {
	query := `
		INSERT INTO pipeline_stage_runs (` + stageRunColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := r.pool.Exec(ctx, query,
		sr.ID, sr.PipelineRunID, sr.PipelineStageID, sr.Name, sr.Status,
		nullString(sr.Output), nullString(sr.Error),
		sr.StartedAt, sr.FinishedAt, sr.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert stage run: %w", err)
	}
	return nil
}

// UpdateStageRun обновляет stage run.
func (r *PipelineRepo) UpdateStageRun(ctx context.Context, sr *domain.PipelineStageRun) error {
	query := `
		UPDATE pipeline_stage_runs
		SET status = $2, output = $3, error = $4, started_at = $5, finished_at = $6
		WHERE id = $1
	`
	result, err := r.pool.Exec(ctx, query,
		sr.ID, sr.Status, nullString(sr.Output), nullString(sr.Error),
		sr.StartedAt, sr.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("update stage run: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListStageRuns возвращает stage runs одного run в порядке создания
// (он же — порядок выполнения).
func (r *PipelineRepo) ListStageRuns(ctx context.Context, runID uuid.UUID) ([]domain.PipelineStageRun, error) {
	query := `
		SELECT ` + stageRunColumns + `
		FROM pipeline_stage_runs
		WHERE pipeline_run_id = $1
		ORDER BY created_at ASC, id ASC
	`
	rows, err := r.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("list stage runs: %w", err)
	}
	defer rows.Close()

	var stageRuns []domain.PipelineStageRun
	for rows.Next() {
		var sr domain.PipelineStageRun
		var output, errMsg *string
		err := rows.Scan(
			&sr.ID, &sr.PipelineRunID, &sr.PipelineStageID, &sr.Name, &sr.Status,
			&output, &errMsg, &sr.StartedAt, &sr.FinishedAt, &sr.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan stage run: %w", err)
		}
		sr.Output = fromNull(output)
		sr.Error = fromNull(errMsg)
		stageRuns = append(stageRuns, sr)
	}
	return stageRuns, rows.Err()
}
