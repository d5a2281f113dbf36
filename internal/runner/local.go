package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"
)

// LocalRunner выполняет команды на локальной машине через sh -c.
type LocalRunner struct{}

// NewLocalRunner создаёт LocalRunner.
func NewLocalRunner() *LocalRunner {
	return &LocalRunner{}
}

// Run выполняет команду локально.
func (r *LocalRunner) Run(ctx context.Context, target Target, command string, timeout time.Duration) (*Result, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	if target.WorkDir != "" {
		cmd.Dir = target.WorkDir
	}
	if len(target.Env) > 0 {
		cmd.Env = append(os.Environ(), target.Env...)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start)

	result := &Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: elapsed,
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			// Команда выполнилась, но вернула ненулевой код
			result.ExitCode = exitErr.ExitCode()
			return result, nil
		}

		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w after %s", ErrTimeout, timeout)
		}

		return nil, fmt.Errorf("run command: %w", err)
	}

	return result, nil
}
