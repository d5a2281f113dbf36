package runner

import (
	"context"
	"time"
)

// Dispatcher выбирает исполнителя по цели: локальные серверы — через
// LocalRunner, удалённые — через SSHRunner.
type Dispatcher struct {
	local  CommandRunner
	remote CommandRunner
}

// NewDispatcher создаёт Dispatcher.
func NewDispatcher(local, remote CommandRunner) *Dispatcher {
	return &Dispatcher{local: local, remote: remote}
}

// Run выполняет команду на подходящем исполнителе.
func (d *Dispatcher) Run(ctx context.Context, target Target, command string, timeout time.Duration) (*Result, error) {
	if target.IsLocal() {
		return d.local.Run(ctx, target, command, timeout)
	}
	return d.remote.Run(ctx, target, command, timeout)
}
