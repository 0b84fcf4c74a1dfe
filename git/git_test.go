package git

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// setupRepo creates a minimal git repository without importing testutil
// (which would create an import cycle for this package's tests).
func setupRepo(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	runner := NewExecRunner()

	run := func(args ...string) {
		t.Helper()
		if _, err := runner.Run(dir, "git", args...); err != nil {
			t.Fatalf("git %v: %v", args, err)
		}
	}

	run("init", "-b", "main")
	run("config", "user.email", "test@test.com")
	run("config", "user.name", "Test User")

	if err := os.WriteFile(filepath.Join(dir, "README.md"), []byte("# test\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	run("add", ".")
	run("commit", "-m", "Initial commit")

	return dir
}

func TestNewContext(t *testing.T) {
	dir := setupRepo(t)

	g, err := NewContext(dir)
	if err != nil {
		t.Fatalf("NewContext() error = %v", err)
	}

	if g.RepoPath() != dir {
		t.Errorf("RepoPath() = %q, want %q", g.RepoPath(), dir)
	}
	if g.Remote() != "origin" {
		t.Errorf("Remote() = %q, want %q", g.Remote(), "origin")
	}
}

func TestNewContext_NotARepo(t *testing.T) {
	_, err := NewContext(t.TempDir())
	if !errors.Is(err, ErrNotGitRepo) {
		t.Errorf("NewContext() error = %v, want ErrNotGitRepo", err)
	}
}

func TestCurrentBranch(t *testing.T) {
	g, err := NewContext(setupRepo(t))
	if err != nil {
		t.Fatal(err)
	}

	branch, err := g.CurrentBranch()
	if err != nil {
		t.Fatalf("CurrentBranch() error = %v", err)
	}
	if branch != "main" {
		t.Errorf("CurrentBranch() = %q, want %q", branch, "main")
	}
}

func TestCreateAndDeleteBranch(t *testing.T) {
	g, err := NewContext(setupRepo(t))
	if err != nil {
		t.Fatal(err)
	}

	if err := g.CreateBranch("issue/qx-1-test"); err != nil {
		t.Fatalf("CreateBranch() error = %v", err)
	}
	if !g.BranchExists("issue/qx-1-test") {
		t.Error("branch should exist after creation")
	}

	if err := g.CreateBranch("issue/qx-1-test"); !errors.Is(err, ErrBranchExists) {
		t.Errorf("duplicate CreateBranch() error = %v, want ErrBranchExists", err)
	}

	if err := g.DeleteBranch("issue/qx-1-test", true); err != nil {
		t.Fatalf("DeleteBranch() error = %v", err)
	}
	if g.BranchExists("issue/qx-1-test") {
		t.Error("branch should not exist after deletion")
	}

	if err := g.DeleteBranch("issue/qx-1-test", true); !errors.Is(err, ErrBranchNotFound) {
		t.Errorf("second DeleteBranch() error = %v, want ErrBranchNotFound", err)
	}
}

func TestCommit_NothingToCommit(t *testing.T) {
	g, err := NewContext(setupRepo(t))
	if err != nil {
		t.Fatal(err)
	}

	if err := g.Commit("empty"); !errors.Is(err, ErrNothingToCommit) {
		t.Errorf("Commit() error = %v, want ErrNothingToCommit", err)
	}
}

func TestIsClean(t *testing.T) {
	dir := setupRepo(t)
	g, err := NewContext(dir)
	if err != nil {
		t.Fatal(err)
	}

	clean, err := g.IsClean()
	if err != nil {
		t.Fatalf("IsClean() error = %v", err)
	}
	if !clean {
		t.Error("fresh repo should be clean")
	}

	if err := os.WriteFile(filepath.Join(dir, "dirty.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	clean, err = g.IsClean()
	if err != nil {
		t.Fatalf("IsClean() error = %v", err)
	}
	if clean {
		t.Error("repo with untracked file should not be clean")
	}
}

func TestWorktreeLifecycle(t *testing.T) {
	g, err := NewContext(setupRepo(t))
	if err != nil {
		t.Fatal(err)
	}

	path, err := g.CreateWorktree("issue/qx-2-wt")
	if err != nil {
		t.Fatalf("CreateWorktree() error = %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("worktree path missing: %v", err)
	}

	if _, err := g.CreateWorktree("issue/qx-2-wt"); !errors.Is(err, ErrWorktreeExists) {
		t.Errorf("duplicate CreateWorktree() error = %v, want ErrWorktreeExists", err)
	}

	wt, err := g.FindWorktree("issue/qx-2-wt")
	if err != nil {
		t.Fatalf("FindWorktree() error = %v", err)
	}
	if wt.Branch != "issue/qx-2-wt" {
		t.Errorf("FindWorktree().Branch = %q, want %q", wt.Branch, "issue/qx-2-wt")
	}

	if err := g.RemoveWorktree(path); err != nil {
		t.Fatalf("RemoveWorktree() error = %v", err)
	}
	if err := g.RemoveWorktree(path); !errors.Is(err, ErrWorktreeNotFound) {
		t.Errorf("second RemoveWorktree() error = %v, want ErrWorktreeNotFound", err)
	}
}

func TestDeleteRemoteBranch_AbsentDetection(t *testing.T) {
	runner := NewMockRunner()
	runner.Stub("push origin --delete issue/qx-3-gone", "",
		errors.New("error: unable to delete 'issue/qx-3-gone': remote ref does not exist"))

	dir := setupRepo(t)
	g, err := NewContext(dir, WithRunner(runner))
	if err != nil {
		t.Fatal(err)
	}

	if err := g.DeleteRemoteBranch("issue/qx-3-gone"); !errors.Is(err, ErrRemoteBranchNotFound) {
		t.Errorf("DeleteRemoteBranch() error = %v, want ErrRemoteBranchNotFound", err)
	}
}

func TestIsAbsent(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"branch not found", ErrBranchNotFound, true},
		{"remote branch not found", ErrRemoteBranchNotFound, true},
		{"worktree not found", ErrWorktreeNotFound, true},
		{"other error", errors.New("boom"), false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsAbsent(tt.err); got != tt.want {
				t.Errorf("IsAbsent(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestSanitizeBranchName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"issue/qx-7-foo", "issue-qx-7-foo"},
		{"Feature/ABC_123", "feature-abc123"},
		{"--weird--", "weird"},
	}

	for _, tt := range tests {
		if got := SanitizeBranchName(tt.in); got != tt.want {
			t.Errorf("SanitizeBranchName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
