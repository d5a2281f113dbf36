package git

import (
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/devflow/devflow/internal/domain"
	"github.com/devflow/devflow/internal/runner"
)

// fakeRunner отвечает заранее заданными результатами по подстроке команды.
type fakeRunner struct {
	responses map[string]*runner.Result
	commands  []string
}

func (f *fakeRunner) Run(ctx context.Context, target runner.Target, command string, timeout time.Duration) (*runner.Result, error) {
	f.commands = append(f.commands, command)
	for substr, res := range f.responses {
		if strings.Contains(command, substr) {
			return res, nil
		}
	}
	return &runner.Result{ExitCode: 0}, nil
}

func testProject() *domain.Project {
	return &domain.Project{
		Name:          "Shop",
		Slug:          "shop",
		RepositoryURL: "git@example.com:acme/shop.git",
		Branch:        "main",
	}
}

func TestParseCommitLine(t *testing.T) {
	info, err := parseCommitLine("a1b2c3d4e5f6a1b2c3d4|Alice|1700000000|Fix checkout | edge case")
	if err != nil {
		t.Fatalf("parseCommitLine failed: %v", err)
	}

	if info.Hash != "a1b2c3d4e5f6a1b2c3d4" {
		t.Errorf("unexpected hash: %s", info.Hash)
	}
	if info.ShortHash != "a1b2c3d4" {
		t.Errorf("unexpected short hash: %s", info.ShortHash)
	}
	if info.Author != "Alice" {
		t.Errorf("unexpected author: %s", info.Author)
	}
	// Сообщение может содержать разделитель
	if info.Message != "Fix checkout | edge case" {
		t.Errorf("unexpected message: %s", info.Message)
	}
	if info.Timestamp.Unix() != 1700000000 {
		t.Errorf("unexpected timestamp: %v", info.Timestamp)
	}
}

func TestParseCommitLineMalformed(t *testing.T) {
	if _, err := parseCommitLine("garbage"); err == nil {
		t.Fatal("expected error for malformed line")
	}
}

func TestCheckForUpdates(t *testing.T) {
	fr := &fakeRunner{responses: map[string]*runner.Result{
		"rev-parse HEAD":        {Stdout: "aaa\n"},
		"rev-parse origin/main": {Stdout: "bbb\n"},
		"rev-list --count":      {Stdout: "4\n"},
	}}
	insp := NewInspector(fr, slog.Default())

	check, err := insp.CheckForUpdates(context.Background(), testProject())
	if err != nil {
		t.Fatalf("CheckForUpdates failed: %v", err)
	}

	if !check.HasUpdates {
		t.Error("expected updates when local != remote")
	}
	if check.LocalHash != "aaa" || check.RemoteHash != "bbb" {
		t.Errorf("unexpected hashes: %+v", check)
	}
	if check.CommitsBehind != 4 {
		t.Errorf("expected 4 commits behind, got %d", check.CommitsBehind)
	}
}

func TestCheckForUpdatesUpToDate(t *testing.T) {
	fr := &fakeRunner{responses: map[string]*runner.Result{
		"rev-parse": {Stdout: "same\n"},
	}}
	insp := NewInspector(fr, slog.Default())

	check, err := insp.CheckForUpdates(context.Background(), testProject())
	if err != nil {
		t.Fatalf("CheckForUpdates failed: %v", err)
	}

	if check.HasUpdates {
		t.Error("expected no updates when hashes match")
	}
}

func TestCheckForUpdatesRejectsBadBranch(t *testing.T) {
	p := testProject()
	p.Branch = "main; rm -rf /"

	insp := NewInspector(&fakeRunner{}, slog.Default())
	if _, err := insp.CheckForUpdates(context.Background(), p); err == nil {
		t.Fatal("expected error for invalid branch name")
	}
}

func TestSyncExistingRepo(t *testing.T) {
	fr := &fakeRunner{responses: map[string]*runner.Result{
		"test -d":   {Stdout: "exists\n"},
		"git fetch": {Stdout: "Updating aaa..bbb\n"},
	}}
	insp := NewInspector(fr, slog.Default())

	out, err := insp.Sync(context.Background(), testProject())
	if err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	if !strings.Contains(out, "Updating") {
		t.Errorf("expected git output, got %q", out)
	}

	for _, cmd := range fr.commands {
		if strings.Contains(cmd, "git clone") {
			t.Error("clone must not run when repository exists")
		}
	}
}

func TestSyncClonesMissingRepo(t *testing.T) {
	fr := &fakeRunner{responses: map[string]*runner.Result{
		"test -d": {Stdout: "missing\n"},
	}}
	insp := NewInspector(fr, slog.Default())

	if _, err := insp.Sync(context.Background(), testProject()); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}

	cloned := false
	for _, cmd := range fr.commands {
		if strings.Contains(cmd, "git clone --branch main") {
			cloned = true
		}
	}
	if !cloned {
		t.Error("expected clone for missing repository")
	}
}
