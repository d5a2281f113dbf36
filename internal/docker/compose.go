// Package docker управляет контейнерами проектов через docker compose.
// Команды выполняются на сервере проекта через runner.CommandRunner.
package docker

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/devflow/devflow/internal/domain"
	"github.com/devflow/devflow/internal/runner"
)

// Таймауты docker-операций. Build может тянуть базовые образы.
const (
	detectTimeout = 10 * time.Second
	buildTimeout  = 10 * time.Minute
	upTimeout     = 2 * time.Minute
	downTimeout   = 2 * time.Minute
)

// ComposeManager выполняет docker compose операции для проекта.
type ComposeManager struct {
	runner runner.CommandRunner
	logger *slog.Logger
}

// NewComposeManager создаёт ComposeManager.
func NewComposeManager(r runner.CommandRunner, logger *slog.Logger) *ComposeManager {
	return &ComposeManager{runner: r, logger: logger}
}

func target(p *domain.Project) runner.Target {
	return runner.Target{
		Server:  p.Server,
		WorkDir: p.DeployPath(),
	}
}

// UsesCompose проверяет, есть ли у проекта docker-compose.yml.
func (m *ComposeManager) UsesCompose(ctx context.Context, p *domain.Project) (bool, error) {
	cmd := "test -f docker-compose.yml && echo compose || echo standalone"
	res, err := m.runner.Run(ctx, target(p), cmd, detectTimeout)
	if err != nil {
		return false, fmt.Errorf("detect compose: %w", err)
	}
	return strings.TrimSpace(res.Stdout) == "compose", nil
}

// Build пересобирает образы проекта.
func (m *ComposeManager) Build(ctx context.Context, p *domain.Project) (string, error) {
	res, err := m.runner.Run(ctx, target(p), "docker compose build --pull", buildTimeout)
	if err != nil {
		return "", fmt.Errorf("compose build: %w", err)
	}
	if !res.Success() {
		return res.Stdout, fmt.Errorf("compose build exited with %d: %s", res.ExitCode, res.Stderr)
	}

	m.logger.Info("images built", "project", p.Slug, "duration", res.Duration)
	return res.Stdout, nil
}

// Up поднимает контейнеры проекта.
func (m *ComposeManager) Up(ctx context.Context, p *domain.Project) (string, error) {
	res, err := m.runner.Run(ctx, target(p), "docker compose up -d --remove-orphans", upTimeout)
	if err != nil {
		return "", fmt.Errorf("compose up: %w", err)
	}
	if !res.Success() {
		return res.Stdout, fmt.Errorf("compose up exited with %d: %s", res.ExitCode, res.Stderr)
	}

	m.logger.Info("containers started", "project", p.Slug)
	return res.Stdout, nil
}

// Down останавливает контейнеры проекта.
func (m *ComposeManager) Down(ctx context.Context, p *domain.Project) (string, error) {
	res, err := m.runner.Run(ctx, target(p), "docker compose down --remove-orphans", downTimeout)
	if err != nil {
		return "", fmt.Errorf("compose down: %w", err)
	}
	if !res.Success() {
		return res.Stdout, fmt.Errorf("compose down exited with %d: %s", res.ExitCode, res.Stderr)
	}

	m.logger.Info("containers stopped", "project", p.Slug)
	return res.Stdout, nil
}
