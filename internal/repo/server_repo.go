package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/devflow/devflow/internal/domain"
)

// ServerRepo — репозиторий для работы с серверами.
type ServerRepo struct {
	pool *pgxpool.Pool
}

// NewServerRepo создаёт новый ServerRepo.
func NewServerRepo(pool *pgxpool.Pool) *ServerRepo {
	return &ServerRepo{pool: pool}
}

// Create создаёт новый сервер.
func (r *ServerRepo) Create(ctx context.Context, s *domain.Server) error {
	query := `
		INSERT INTO servers (id, name, host, port, username, status, is_local, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.pool.Exec(ctx, query,
		s.ID, s.Name, s.Host, s.Port, s.Username, s.Status, s.IsLocal, s.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert server: %w", err)
	}
	return nil
}

// GetByID возвращает сервер по ID.
func (r *ServerRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Server, error) {
	query := `
		SELECT id, name, host, port, username, status, is_local, created_at
		FROM servers
		WHERE id = $1
	`
	var s domain.Server
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&s.ID, &s.Name, &s.Host, &s.Port, &s.Username, &s.Status, &s.IsLocal, &s.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan server: %w", err)
	}
	return &s, nil
}

// List возвращает все серверы.
func (r *ServerRepo) List(ctx context.Context) ([]domain.Server, error) {
	query := `
		SELECT id, name, host, port, username, status, is_local, created_at
		FROM servers
		ORDER BY created_at
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list servers: %w", err)
	}
	defer rows.Close()

	var servers []domain.Server
	for rows.Next() {
		var s domain.Server
		if err := rows.Scan(
			&s.ID, &s.Name, &s.Host, &s.Port, &s.Username, &s.Status, &s.IsLocal, &s.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan server: %w", err)
		}
		servers = append(servers, s)
	}
	return servers, rows.Err()
}

// UpdateStatus обновляет статус сервера (online/offline).
func (r *ServerRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.ServerStatus) error {
	result, err := r.pool.Exec(ctx, `UPDATE servers SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("update server status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
