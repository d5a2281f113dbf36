package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"golang.org/x/crypto/ssh"
)

// SSHRunner выполняет команды на удалённых серверах по SSH.
//
// Соединение устанавливается на каждую команду: деплой состоит из
// небольшого числа команд, а короткоживущие соединения избавляют от
// необходимости следить за разрывами.
type SSHRunner struct {
	logger *slog.Logger

	// keyPath — путь к приватному ключу. Если пуст, берётся SSH_KEY_PATH.
	keyPath string

	// dialTimeout — таймаут установки соединения.
	dialTimeout time.Duration
}

// SSHRunnerConfig — конфигурация SSHRunner.
type SSHRunnerConfig struct {
	Logger      *slog.Logger
	KeyPath     string
	DialTimeout time.Duration
}

// NewSSHRunner создаёт SSHRunner.
func NewSSHRunner(cfg SSHRunnerConfig) *SSHRunner {
	keyPath := cfg.KeyPath
	if keyPath == "" {
		keyPath = os.Getenv("SSH_KEY_PATH")
	}

	dialTimeout := cfg.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = 10 * time.Second
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &SSHRunner{
		logger:      logger,
		keyPath:     keyPath,
		dialTimeout: dialTimeout,
	}
}

// Run выполняет команду на удалённом сервере.
func (r *SSHRunner) Run(ctx context.Context, target Target, command string, timeout time.Duration) (*Result, error) {
	if target.Server == nil {
		return nil, ErrNoTarget
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	client, err := r.dial(target)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	session, err := client.NewSession()
	if err != nil {
		return nil, fmt.Errorf("new session: %w", err)
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	remote := buildRemoteCommand(target, command)

	start := time.Now()

	done := make(chan error, 1)
	go func() {
		done <- session.Run(remote)
	}()

	select {
	case <-ctx.Done():
		// Прерываем удалённый процесс и закрываем сессию
		session.Signal(ssh.SIGTERM)
		session.Close()
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w after %s", ErrTimeout, timeout)
		}
		return nil, ctx.Err()

	case err := <-done:
		elapsed := time.Since(start)

		result := &Result{
			Stdout:   stdout.String(),
			Stderr:   stderr.String(),
			Duration: elapsed,
		}

		if err != nil {
			var exitErr *ssh.ExitError
			if errors.As(err, &exitErr) {
				result.ExitCode = exitErr.ExitStatus()
				return result, nil
			}
			return nil, fmt.Errorf("run remote command: %w", err)
		}

		return result, nil
	}
}

// dial устанавливает SSH соединение с сервером.
func (r *SSHRunner) dial(target Target) (*ssh.Client, error) {
	srv := target.Server

	auth, err := r.authMethods()
	if err != nil {
		return nil, err
	}

	config := &ssh.ClientConfig{
		User:            srv.Username,
		Auth:            auth,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         r.dialTimeout,
	}

	client, err := ssh.Dial("tcp", srv.Addr(), config)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", srv.Addr(), err)
	}

	return client, nil
}

// authMethods собирает методы аутентификации.
func (r *SSHRunner) authMethods() ([]ssh.AuthMethod, error) {
	if r.keyPath == "" {
		return nil, fmt.Errorf("ssh key path is not configured")
	}

	keyData, err := os.ReadFile(r.keyPath)
	if err != nil {
		return nil, fmt.Errorf("read ssh key: %w", err)
	}

	signer, err := ssh.ParsePrivateKey(keyData)
	if err != nil {
		return nil, fmt.Errorf("parse ssh key: %w", err)
	}

	return []ssh.AuthMethod{ssh.PublicKeys(signer)}, nil
}

// buildRemoteCommand собирает команду с учётом рабочей директории и окружения.
func buildRemoteCommand(target Target, command string) string {
	var buf bytes.Buffer

	for _, kv := range target.Env {
		buf.WriteString("export ")
		buf.WriteString(kv)
		buf.WriteString(" && ")
	}

	if target.WorkDir != "" {
		buf.WriteString("cd ")
		buf.WriteString(target.WorkDir)
		buf.WriteString(" && ")
	}

	buf.WriteString(command)
	return buf.String()
}
