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

// ProjectRepo — репозиторий для работы с проектами.
// Сервер проекта подгружается LEFT JOIN'ом одним запросом.
type ProjectRepo struct {
	pool *pgxpool.Pool
}

// NewProjectRepo создаёт новый ProjectRepo.
func NewProjectRepo(pool *pgxpool.Pool) *ProjectRepo {
	return &ProjectRepo{pool: pool}
}

const projectSelect = `
	SELECT p.id, p.name, p.slug, p.server_id, p.repository_url, p.branch,
	       p.environment, p.php_version, p.framework, p.env_variables,
	       p.auto_deploy, p.deploy_cron, p.next_auto_deploy_at,
	       p.current_commit_hash, p.current_commit_message,
	       p.last_deployed_at, p.created_at,
	       s.id, s.name, s.host, s.port, s.username, s.status, s.is_local, s.created_at
	FROM projects p
	LEFT JOIN servers s ON s.id = p.server_id
`

// Create создаёт новый проект.
func (r *ProjectRepo) Create(ctx context.Context, p *domain.Project) error {
	envJSON, err := json.Marshal(p.EnvVariables)
	if err != nil {
		return fmt.Errorf("marshal env variables: %w", err)
	}

	query := `
		INSERT INTO projects (
			id, name, slug, server_id, repository_url, branch, environment,
			php_version, framework, env_variables, auto_deploy, deploy_cron,
			next_auto_deploy_at, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	_, err = r.pool.Exec(ctx, query,
		p.ID,
		p.Name,
		p.Slug,
		p.ServerID,
		p.RepositoryURL,
		p.Branch,
		nullString(p.Environment),
		nullString(p.PHPVersion),
		nullString(p.Framework),
		envJSON,
		p.AutoDeploy,
		nullString(p.DeployCron),
		p.NextAutoDeployAt,
		p.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrAlreadyExists
		}
		return fmt.Errorf("insert project: %w", err)
	}
	return nil
}

// GetByID возвращает проект по ID вместе с сервером.
func (r *ProjectRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Project, error) {
	query := projectSelect + ` WHERE p.id = $1`
	return scanProject(r.pool.QueryRow(ctx, query, id))
}

// List возвращает все проекты.
func (r *ProjectRepo) List(ctx context.Context) ([]domain.Project, error) {
	query := projectSelect + ` ORDER BY p.created_at DESC`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	var projects []domain.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, *p)
	}
	return projects, rows.Err()
}

// ListAutoDeployDue возвращает проекты с включённым auto-deploy,
// у которых подошло время проверки.
func (r *ProjectRepo) ListAutoDeployDue(ctx context.Context, now time.Time, limit int) ([]domain.Project, error) {
	query := projectSelect + `
		WHERE p.auto_deploy = true
		  AND p.next_auto_deploy_at IS NOT NULL
		  AND p.next_auto_deploy_at <= $1
		ORDER BY p.next_auto_deploy_at ASC
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("list auto-deploy due projects: %w", err)
	}
	defer rows.Close()

	var projects []domain.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, *p)
	}
	return projects, rows.Err()
}

// Update обновляет изменяемые поля проекта.
func (r *ProjectRepo) Update(ctx context.Context, p *domain.Project) error {
	envJSON, err := json.Marshal(p.EnvVariables)
	if err != nil {
		return fmt.Errorf("marshal env variables: %w", err)
	}

	query := `
		UPDATE projects
		SET name = $2, slug = $3, server_id = $4, repository_url = $5,
		    branch = $6, environment = $7, php_version = $8, framework = $9,
		    env_variables = $10, auto_deploy = $11, deploy_cron = $12,
		    next_auto_deploy_at = $13, current_commit_hash = $14,
		    current_commit_message = $15, last_deployed_at = $16
		WHERE id = $1
	`
	result, err := r.pool.Exec(ctx, query,
		p.ID,
		p.Name,
		p.Slug,
		p.ServerID,
		p.RepositoryURL,
		p.Branch,
		nullString(p.Environment),
		nullString(p.PHPVersion),
		nullString(p.Framework),
		envJSON,
		p.AutoDeploy,
		nullString(p.DeployCron),
		p.NextAutoDeployAt,
		nullString(p.CurrentCommitHash),
		nullString(p.CurrentCommitMessage),
		p.LastDeployedAt,
	)
	if err != nil {
		return fmt.Errorf("update project: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// scanProject сканирует одну строку projectSelect в Project.
func scanProject(row pgx.Row) (*domain.Project, error) {
	var p domain.Project
	var envJSON []byte
	var environment, phpVersion, framework, deployCron *string
	var commitHash, commitMessage *string

	// Поля сервера из LEFT JOIN — все nullable.
	var srvID *uuid.UUID
	var srvName, srvHost, srvUsername *string
	var srvPort *int
	var srvStatus *domain.ServerStatus
	var srvIsLocal *bool
	var srvCreatedAt *time.Time

	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Slug,
		&p.ServerID,
		&p.RepositoryURL,
		&p.Branch,
		&environment,
		&phpVersion,
		&framework,
		&envJSON,
		&p.AutoDeploy,
		&deployCron,
		&p.NextAutoDeployAt,
		&commitHash,
		&commitMessage,
		&p.LastDeployedAt,
		&p.CreatedAt,
		&srvID,
		&srvName,
		&srvHost,
		&srvPort,
		&srvUsername,
		&srvStatus,
		&srvIsLocal,
		&srvCreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan project: %w", err)
	}

	if envJSON != nil {
		if err := json.Unmarshal(envJSON, &p.EnvVariables); err != nil {
			return nil, fmt.Errorf("unmarshal env variables: %w", err)
		}
	}

	p.Environment = fromNull(environment)
	p.PHPVersion = fromNull(phpVersion)
	p.Framework = fromNull(framework)
	p.DeployCron = fromNull(deployCron)
	p.CurrentCommitHash = fromNull(commitHash)
	p.CurrentCommitMessage = fromNull(commitMessage)

	if srvID != nil {
		p.Server = &domain.Server{
			ID:        *srvID,
			Name:      fromNull(srvName),
			Host:      fromNull(srvHost),
			Username:  fromNull(srvUsername),
			CreatedAt: *srvCreatedAt,
		}
		if srvPort != nil {
			p.Server.Port = *srvPort
		}
		if srvStatus != nil {
			p.Server.Status = *srvStatus
		}
		if srvIsLocal != nil {
			p.Server.IsLocal = *srvIsLocal
		}
	}

	return &p, nil
}
