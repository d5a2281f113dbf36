// Package git инспектирует и синхронизирует git-репозитории проектов
// на их серверах. Все операции идут через runner.CommandRunner, поэтому
// одинаково работают локально и по SSH.
package git

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/devflow/devflow/internal/domain"
	"github.com/devflow/devflow/internal/runner"
)

// Таймауты git-операций.
const (
	fetchTimeout = 30 * time.Second
	logTimeout   = 15 * time.Second
	revTimeout   = 10 * time.Second
	pullTimeout  = 120 * time.Second
	cloneTimeout = 300 * time.Second
)

// branchPattern — допустимый формат имени ветки.
var branchPattern = regexp.MustCompile(`^[a-zA-Z0-9._/-]+$`)

// CommitInfo — информация о commit.
type CommitInfo struct {
	Hash      string
	ShortHash string
	Author    string
	Timestamp time.Time
	Message   string
}

// UpdateCheck — результат сравнения локального и удалённого HEAD.
type UpdateCheck struct {
	LocalHash     string
	RemoteHash    string
	HasUpdates    bool
	CommitsBehind int
}

// Inspector выполняет git-операции для проекта.
type Inspector struct {
	runner runner.CommandRunner
	logger *slog.Logger
}

// NewInspector создаёт Inspector.
func NewInspector(r runner.CommandRunner, logger *slog.Logger) *Inspector {
	return &Inspector{runner: r, logger: logger}
}

// target собирает цель выполнения для проекта.
func target(p *domain.Project) runner.Target {
	return runner.Target{
		Server:  p.Server,
		WorkDir: p.DeployPath(),
	}
}

// CurrentCommit возвращает HEAD репозитория проекта.
func (i *Inspector) CurrentCommit(ctx context.Context, p *domain.Project) (*CommitInfo, error) {
	cmd := `git log -1 --pretty=format:'%H|%an|%at|%s'`
	res, err := i.runner.Run(ctx, target(p), cmd, logTimeout)
	if err != nil {
		return nil, fmt.Errorf("git log: %w", err)
	}
	if !res.Success() {
		return nil, fmt.Errorf("git log exited with %d: %s", res.ExitCode, res.Stderr)
	}

	return parseCommitLine(strings.TrimSpace(res.Stdout))
}

// CheckForUpdates сравнивает локальный HEAD с origin/<branch>.
func (i *Inspector) CheckForUpdates(ctx context.Context, p *domain.Project) (*UpdateCheck, error) {
	if !branchPattern.MatchString(p.Branch) {
		return nil, fmt.Errorf("invalid branch name: %q", p.Branch)
	}

	tgt := target(p)

	fetch := fmt.Sprintf("git fetch origin %s", p.Branch)
	if res, err := i.runner.Run(ctx, tgt, fetch, fetchTimeout); err != nil {
		return nil, fmt.Errorf("git fetch: %w", err)
	} else if !res.Success() {
		return nil, fmt.Errorf("git fetch exited with %d: %s", res.ExitCode, res.Stderr)
	}

	local, err := i.revParse(ctx, tgt, "HEAD")
	if err != nil {
		return nil, err
	}

	remote, err := i.revParse(ctx, tgt, "origin/"+p.Branch)
	if err != nil {
		return nil, err
	}

	check := &UpdateCheck{
		LocalHash:  local,
		RemoteHash: remote,
		HasUpdates: local != remote,
	}

	if check.HasUpdates {
		count := fmt.Sprintf("git rev-list --count HEAD..origin/%s", p.Branch)
		res, err := i.runner.Run(ctx, tgt, count, revTimeout)
		if err == nil && res.Success() {
			if n, perr := strconv.Atoi(strings.TrimSpace(res.Stdout)); perr == nil {
				check.CommitsBehind = n
			}
		}
	}

	return check, nil
}

// Sync приводит рабочую копию проекта в соответствие с origin/<branch>.
// Если репозитория нет — клонирует, иначе fetch + reset --hard.
// Возвращает вывод git для логов деплоя.
func (i *Inspector) Sync(ctx context.Context, p *domain.Project) (string, error) {
	if !branchPattern.MatchString(p.Branch) {
		return "", fmt.Errorf("invalid branch name: %q", p.Branch)
	}

	// Проверяем наличие репозитория. WorkDir не используем: директории
	// может ещё не существовать.
	bare := runner.Target{Server: p.Server}
	check := fmt.Sprintf("test -d %s/.git && echo exists || echo missing", p.DeployPath())
	res, err := i.runner.Run(ctx, bare, check, revTimeout)
	if err != nil {
		return "", fmt.Errorf("check repository: %w", err)
	}

	if strings.TrimSpace(res.Stdout) == "exists" {
		cmd := fmt.Sprintf("git fetch origin %s && git reset --hard origin/%s", p.Branch, p.Branch)
		res, err = i.runner.Run(ctx, target(p), cmd, pullTimeout)
		if err != nil {
			return "", fmt.Errorf("git pull: %w", err)
		}
		if !res.Success() {
			return res.Stdout, fmt.Errorf("git pull exited with %d: %s", res.ExitCode, res.Stderr)
		}
		i.logger.Info("repository updated", "project", p.Slug, "branch", p.Branch)
		return res.Stdout, nil
	}

	cmd := fmt.Sprintf("git clone --branch %s %s %s", p.Branch, p.RepositoryURL, p.DeployPath())
	res, err = i.runner.Run(ctx, bare, cmd, cloneTimeout)
	if err != nil {
		return "", fmt.Errorf("git clone: %w", err)
	}
	if !res.Success() {
		return res.Stdout, fmt.Errorf("git clone exited with %d: %s", res.ExitCode, res.Stderr)
	}
	i.logger.Info("repository cloned", "project", p.Slug, "branch", p.Branch)
	return res.Stdout, nil
}

// revParse возвращает hash указанного ref.
func (i *Inspector) revParse(ctx context.Context, tgt runner.Target, ref string) (string, error) {
	res, err := i.runner.Run(ctx, tgt, "git rev-parse "+ref, revTimeout)
	if err != nil {
		return "", fmt.Errorf("git rev-parse %s: %w", ref, err)
	}
	if !res.Success() {
		return "", fmt.Errorf("git rev-parse %s exited with %d: %s", ref, res.ExitCode, res.Stderr)
	}
	return strings.TrimSpace(res.Stdout), nil
}

// parseCommitLine разбирает строку формата %H|%an|%at|%s.
func parseCommitLine(line string) (*CommitInfo, error) {
	parts := strings.SplitN(line, "|", 4)
	if len(parts) != 4 {
		return nil, fmt.Errorf("unexpected git log output: %q", line)
	}

	unix, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse commit timestamp: %w", err)
	}

	hash := parts[0]
	short := hash
	if len(short) > 8 {
		short = short[:8]
	}

	return &CommitInfo{
		Hash:      hash,
		ShortHash: short,
		Author:    parts[1],
		Timestamp: time.Unix(unix, 0),
		Message:   parts[3],
	}, nil
}
