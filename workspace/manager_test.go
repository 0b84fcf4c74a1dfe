package workspace

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/randalmurphal/issueflow/git"
	"github.com/randalmurphal/issueflow/testutil"
)

func newManager(t *testing.T) (*Manager, *git.Context, string, string) {
	t.Helper()

	repoDir, remoteDir := testutil.SetupTestRepoWithRemote(t)
	gitCtx, err := git.NewContext(repoDir)
	if err != nil {
		t.Fatalf("git.NewContext() error = %v", err)
	}
	return NewManager(gitCtx), gitCtx, repoDir, remoteDir
}

func TestAcquire_CreatesWorkspace(t *testing.T) {
	m, _, _, _ := newManager(t)

	ws, err := m.Acquire(context.Background(), "QX-7", "Fix foo handling")
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}

	if ws.Branch != "issue/qx-7-fix-foo-handling" {
		t.Errorf("Branch = %q, want %q", ws.Branch, "issue/qx-7-fix-foo-handling")
	}
	if ws.Lifecycle != LifecycleCreated {
		t.Errorf("Lifecycle = %q, want %q", ws.Lifecycle, LifecycleCreated)
	}
	if _, err := os.Stat(ws.Path); err != nil {
		t.Errorf("worktree path missing: %v", err)
	}
}

func TestAcquire_Idempotent(t *testing.T) {
	m, _, _, _ := newManager(t)
	ctx := context.Background()

	first, err := m.Acquire(ctx, "QX-7", "Fix foo handling")
	if err != nil {
		t.Fatalf("first Acquire() error = %v", err)
	}

	second, err := m.Acquire(ctx, "QX-7", "Fix foo handling")
	if err != nil {
		t.Fatalf("second Acquire() error = %v", err)
	}

	if first.Path != second.Path || first.Branch != second.Branch {
		t.Errorf("second Acquire returned different workspace: %+v vs %+v", first, second)
	}
}

func TestAcquire_ResumesAfterRestart(t *testing.T) {
	m, gitCtx, _, _ := newManager(t)
	ctx := context.Background()

	first, err := m.Acquire(ctx, "QX-7", "Fix foo handling")
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}

	// A fresh manager simulates a process restart.
	restarted := NewManager(gitCtx)
	resumed, err := restarted.Acquire(ctx, "QX-7", "Fix foo handling")
	if err != nil {
		t.Fatalf("Acquire() after restart error = %v", err)
	}

	if resumed.Path != first.Path {
		t.Errorf("resumed Path = %q, want %q", resumed.Path, first.Path)
	}
	if resumed.Lifecycle != LifecycleActive {
		t.Errorf("resumed Lifecycle = %q, want %q", resumed.Lifecycle, LifecycleActive)
	}
}

func TestAcquire_ConflictWhenBranchCheckedOutElsewhere(t *testing.T) {
	m, _, repoDir, _ := newManager(t)

	// Someone created and checked out the issue branch in the base repo.
	testutil.CreateBranch(t, repoDir, "issue/qx-9-taken")

	_, err := m.Acquire(context.Background(), "QX-9", "Taken")
	if !errors.Is(err, ErrConflict) {
		t.Errorf("Acquire() error = %v, want ErrConflict", err)
	}
}

func TestRelease_LocalOnly(t *testing.T) {
	m, _, repoDir, _ := newManager(t)
	ctx := context.Background()

	ws, err := m.Acquire(ctx, "QX-7", "Fix foo handling")
	if err != nil {
		t.Fatal(err)
	}

	report, err := m.Release(ctx, ws, MutationProgress{})
	if err != nil {
		t.Fatalf("Release() error = %v (failed steps: %+v)", err, report.Failed())
	}

	if _, err := os.Stat(ws.Path); !os.IsNotExist(err) {
		t.Error("worktree directory should be gone")
	}
	if testutil.BranchExists(t, repoDir, ws.Branch) {
		t.Error("local branch should be gone")
	}
	if ws.Lifecycle != LifecycleCleaned {
		t.Errorf("Lifecycle = %q, want %q", ws.Lifecycle, LifecycleCleaned)
	}
	if testutil.GetCurrentBranch(t, repoDir) != "main" {
		t.Errorf("base repo on %q, want main", testutil.GetCurrentBranch(t, repoDir))
	}
}

func TestRelease_OrphanBranchDeleted(t *testing.T) {
	m, gitCtx, _, remoteDir := newManager(t)
	ctx := context.Background()

	ws, err := m.Acquire(ctx, "QX-7", "Fix foo handling")
	if err != nil {
		t.Fatal(err)
	}

	// Simulate the mutation phase reaching "pushed" before failing.
	testutil.CommitFile(t, ws.Path, "work.txt", "done", "implement QX-7")
	if err := gitCtx.InWorktree(ws.Path).Push(ws.Branch, true); err != nil {
		t.Fatalf("push failed: %v", err)
	}
	if !testutil.RemoteBranchExists(t, remoteDir, ws.Branch) {
		t.Fatal("remote branch should exist after push")
	}

	report, err := m.Release(ctx, ws, MutationProgress{Committed: true, Pushed: true})
	if err != nil {
		t.Fatalf("Release() error = %v (failed steps: %+v)", err, report.Failed())
	}

	if testutil.RemoteBranchExists(t, remoteDir, ws.Branch) {
		t.Error("orphaned remote branch should be deleted")
	}
}

func TestRelease_OpenPRKeepsRemoteBranch(t *testing.T) {
	m, gitCtx, _, remoteDir := newManager(t)
	ctx := context.Background()

	ws, err := m.Acquire(ctx, "QX-7", "Fix foo handling")
	if err != nil {
		t.Fatal(err)
	}

	testutil.CommitFile(t, ws.Path, "work.txt", "done", "implement QX-7")
	if err := gitCtx.InWorktree(ws.Path).Push(ws.Branch, true); err != nil {
		t.Fatalf("push failed: %v", err)
	}

	progress := MutationProgress{Committed: true, Pushed: true, PRCreated: true, PRRef: "#123"}
	report, err := m.Release(ctx, ws, progress)
	if err != nil {
		t.Fatalf("Release() error = %v (failed steps: %+v)", err, report.Failed())
	}

	// Deleting the branch would orphan the open PR.
	if !testutil.RemoteBranchExists(t, remoteDir, ws.Branch) {
		t.Error("remote branch behind the open PR must survive cleanup")
	}
	if report.OpenPR != "#123" {
		t.Errorf("OpenPR = %q, want %q", report.OpenPR, "#123")
	}

	// Local filesystem is still clean.
	if _, err := os.Stat(ws.Path); !os.IsNotExist(err) {
		t.Error("worktree directory should be gone")
	}
}

func TestRelease_Idempotent(t *testing.T) {
	m, gitCtx, repoDir, remoteDir := newManager(t)
	ctx := context.Background()

	ws, err := m.Acquire(ctx, "QX-7", "Fix foo handling")
	if err != nil {
		t.Fatal(err)
	}

	testutil.CommitFile(t, ws.Path, "work.txt", "done", "implement QX-7")
	if err := gitCtx.InWorktree(ws.Path).Push(ws.Branch, true); err != nil {
		t.Fatalf("push failed: %v", err)
	}

	progress := MutationProgress{Committed: true, Pushed: true}
	if _, err := m.Release(ctx, ws, progress); err != nil {
		t.Fatalf("first Release() error = %v", err)
	}

	// A crash between cleanup steps means Release runs again on retry;
	// the second pass must converge on the same final state.
	report, err := m.Release(ctx, ws, progress)
	if err != nil {
		t.Fatalf("second Release() error = %v (failed steps: %+v)", err, report.Failed())
	}

	if _, err := os.Stat(ws.Path); !os.IsNotExist(err) {
		t.Error("worktree directory should still be gone")
	}
	if testutil.BranchExists(t, repoDir, ws.Branch) {
		t.Error("local branch should still be gone")
	}
	if testutil.RemoteBranchExists(t, remoteDir, ws.Branch) {
		t.Error("remote branch should still be gone")
	}

	for _, s := range report.Steps {
		if s.Err != nil {
			t.Errorf("step %s failed on second release: %v", s.Step, s.Err)
		}
	}
}

func TestRelease_NilWorkspace(t *testing.T) {
	m, _, _, _ := newManager(t)

	report, err := m.Release(context.Background(), nil, MutationProgress{})
	if err != nil {
		t.Errorf("Release(nil) error = %v", err)
	}
	if len(report.Steps) != 0 {
		t.Errorf("Release(nil) ran %d steps, want 0", len(report.Steps))
	}
}

func TestCleanupReport_Err(t *testing.T) {
	report := &CleanupReport{
		Steps: []StepResult{
			{Step: StepCheckoutTrunk},
			{Step: StepRemoveWorktree, Skipped: true},
			{Step: StepDeleteLocalBranch, Err: errors.New("boom")},
		},
	}

	if report.OK() {
		t.Error("report with a failed step should not be OK")
	}
	err := report.Err()
	if err == nil {
		t.Fatal("Err() should be non-nil")
	}
	if got := err.Error(); got != "cleanup partially failed: delete-local-branch: boom" {
		t.Errorf("Err() = %q", got)
	}
}
