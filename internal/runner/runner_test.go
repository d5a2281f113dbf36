package runner

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestLocalRunnerSuccess(t *testing.T) {
	r := NewLocalRunner()

	result, err := r.Run(context.Background(), Target{}, "echo hello", 0)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if result.ExitCode != 0 {
		t.Errorf("expected exit code 0, got %d", result.ExitCode)
	}
	if !result.Success() {
		t.Error("expected Success() to be true")
	}
	if strings.TrimSpace(result.Stdout) != "hello" {
		t.Errorf("expected stdout 'hello', got %q", result.Stdout)
	}
}

func TestLocalRunnerNonZeroExit(t *testing.T) {
	r := NewLocalRunner()

	result, err := r.Run(context.Background(), Target{}, "echo oops >&2; exit 3", 0)
	if err != nil {
		t.Fatalf("non-zero exit must not be a transport error, got: %v", err)
	}

	if result.ExitCode != 3 {
		t.Errorf("expected exit code 3, got %d", result.ExitCode)
	}
	if result.Success() {
		t.Error("expected Success() to be false")
	}
	if !strings.Contains(result.Stderr, "oops") {
		t.Errorf("expected stderr to contain 'oops', got %q", result.Stderr)
	}
}

func TestLocalRunnerEnv(t *testing.T) {
	r := NewLocalRunner()

	target := Target{Env: []string{"APP_ENV=production"}}
	result, err := r.Run(context.Background(), target, "echo $APP_ENV", 0)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if strings.TrimSpace(result.Stdout) != "production" {
		t.Errorf("expected env to be passed, got %q", result.Stdout)
	}
}

func TestLocalRunnerWorkDir(t *testing.T) {
	r := NewLocalRunner()

	target := Target{WorkDir: t.TempDir()}
	result, err := r.Run(context.Background(), target, "pwd", 0)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if !strings.Contains(result.Stdout, target.WorkDir) {
		t.Errorf("expected pwd %q, got %q", target.WorkDir, result.Stdout)
	}
}

func TestLocalRunnerTimeout(t *testing.T) {
	r := NewLocalRunner()

	_, err := r.Run(context.Background(), Target{}, "sleep 5", 100*time.Millisecond)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got: %v", err)
	}
}

func TestBuildRemoteCommand(t *testing.T) {
	target := Target{
		WorkDir: "/var/www/app",
		Env:     []string{"APP_ENV=production", "APP_DEBUG=false"},
	}

	got := buildRemoteCommand(target, "php artisan migrate")
	want := "export APP_ENV=production && export APP_DEBUG=false && cd /var/www/app && php artisan migrate"
	if got != want {
		t.Errorf("unexpected remote command:\n got: %s\nwant: %s", got, want)
	}
}

func TestBuildRemoteCommandBare(t *testing.T) {
	got := buildRemoteCommand(Target{}, "uptime")
	if got != "uptime" {
		t.Errorf("expected bare command, got %q", got)
	}
}
