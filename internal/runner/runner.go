package runner

import (
	"context"
	"errors"
	"time"

	"github.com/devflow/devflow/internal/domain"
)

// Сентинельные ошибки пакета.
var (
	// ErrNoTarget — команда требует сервер, но он не задан.
	ErrNoTarget = errors.New("no target server")

	// ErrTimeout — команда не уложилась в таймаут.
	ErrTimeout = errors.New("command timed out")
)

// Target — где выполнять команду.
type Target struct {
	// Server — сервер назначения. nil или IsLocal означает локальную машину.
	Server *domain.Server

	// WorkDir — рабочая директория для команды.
	WorkDir string

	// Env — дополнительные переменные окружения KEY=VALUE.
	Env []string
}

// IsLocal сообщает, выполняется ли команда на локальной машине.
func (t Target) IsLocal() bool {
	return t.Server == nil || t.Server.IsLocal
}

// Result — результат выполнения одной команды.
type Result struct {
	// ExitCode — код завершения. 0 — успех.
	ExitCode int

	// Stdout — стандартный вывод.
	Stdout string

	// Stderr — поток ошибок.
	Stderr string

	// Duration — время выполнения.
	Duration time.Duration
}

// Success сообщает, завершилась ли команда с кодом 0.
func (r *Result) Success() bool {
	return r.ExitCode == 0
}

// CommandRunner выполняет shell-команды на цели.
//
// Реализации: LocalRunner (os/exec), SSHRunner (golang.org/x/crypto/ssh).
type CommandRunner interface {
	Run(ctx context.Context, target Target, command string, timeout time.Duration) (*Result, error)
}
