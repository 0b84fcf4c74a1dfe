// Package workspace manages the disposable git worktree + branch bound to
// one issue: idempotent acquisition keyed by issue ID, and a compensating
// Release that leaves remote and PR state consistent with however far the
// mutation phase got.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/randalmurphal/issueflow/git"
)

// ErrConflict indicates the branch for an issue exists but is not
// associated with that issue. Nothing was acquired; no cleanup is owed.
var ErrConflict = errors.New("workspace branch exists under different ownership")

// Manager creates and destroys issue workspaces.
//
// The trunk checkout is shared across all issues and is only ever
// navigated (checked out, pulled) during cleanup; trunkMu enforces the
// single-writer discipline.
type Manager struct {
	git    *git.Context
	namer  *git.BranchNamer
	trunk  string
	logger *slog.Logger

	trunkMu sync.Mutex // serializes cleanup navigation of the shared trunk checkout

	mu     sync.Mutex // guards active
	active map[string]*Workspace
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithTrunk sets the trunk branch cleanup navigates back to. Default "main".
func WithTrunk(trunk string) ManagerOption {
	return func(m *Manager) { m.trunk = trunk }
}

// WithBranchNamer overrides the branch naming convention.
func WithBranchNamer(namer *git.BranchNamer) ManagerOption {
	return func(m *Manager) { m.namer = namer }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) ManagerOption {
	return func(m *Manager) { m.logger = logger }
}

// NewManager creates a workspace manager for the repository.
func NewManager(gitCtx *git.Context, opts ...ManagerOption) *Manager {
	m := &Manager{
		git:    gitCtx,
		namer:  git.DefaultBranchNamer(),
		trunk:  "main",
		logger: slog.Default(),
		active: make(map[string]*Workspace),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Trunk returns the trunk branch name.
func (m *Manager) Trunk() string {
	return m.trunk
}

// BranchFor returns the deterministic branch name for an issue.
func (m *Manager) BranchFor(issueID, title string) string {
	return m.namer.ForIssue(issueID, title)
}

// Acquire returns the workspace for the issue, creating it if needed.
//
// Acquire is idempotent: when a worktree already exists for the issue's
// branch (a run resumed after a crash), the existing workspace is returned
// rather than a duplicate created. It returns ErrConflict when the branch
// exists but is not associated with this issue.
func (m *Manager) Acquire(ctx context.Context, issueID, title string) (*Workspace, error) {
	if issueID == "" {
		return nil, fmt.Errorf("issue id is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if ws, ok := m.active[issueID]; ok && ws.Lifecycle != LifecycleCleaned {
		return ws, nil
	}

	branch := m.namer.ForIssue(issueID, title)

	// Resume path: the worktree survived a restart.
	if wt, err := m.git.FindWorktree(branch); err == nil {
		ws := &Workspace{
			IssueID:   issueID,
			Branch:    branch,
			Path:      wt.Path,
			Lifecycle: LifecycleActive,
		}
		m.active[issueID] = ws
		m.logger.Info("resumed existing workspace",
			"issue_id", issueID, "branch", branch, "path", wt.Path)
		return ws, nil
	}

	// The branch existing without a worktree is fine when it carries this
	// issue's name (crash between worktree removal and branch deletion);
	// anything checked out elsewhere is foreign ownership.
	if m.git.BranchExists(branch) {
		if cur, err := m.git.CurrentBranch(); err == nil && cur == branch {
			return nil, fmt.Errorf("%w: %s is checked out in the base repository", ErrConflict, branch)
		}
	}

	// Rerun behind surviving remote state (an open PR keeps its remote
	// branch through cleanup): branch from the remote tip so the rerun's
	// push fast-forwards instead of fighting the open PR.
	var path string
	var err error
	if !m.git.BranchExists(branch) && m.git.RemoteBranchExists(branch) {
		path, err = m.git.CreateWorktreeFrom(branch, m.git.Remote()+"/"+branch)
	} else {
		path, err = m.git.CreateWorktree(branch)
	}
	if err != nil {
		if errors.Is(err, git.ErrWorktreeExists) {
			// Worktree dir exists but holds some other branch.
			return nil, fmt.Errorf("%w: worktree path for %s already in use", ErrConflict, branch)
		}
		return nil, fmt.Errorf("acquire workspace for %s: %w", issueID, err)
	}

	ws := &Workspace{
		IssueID:   issueID,
		Branch:    branch,
		Path:      path,
		Lifecycle: LifecycleCreated,
	}
	m.active[issueID] = ws
	m.logger.Info("created workspace",
		"issue_id", issueID, "branch", branch, "path", path)
	return ws, nil
}

// Get returns the in-memory workspace for an issue, or nil.
func (m *Manager) Get(issueID string) *Workspace {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active[issueID]
}

// Release tears the workspace down with the minimal correct cleanup for
// the given mutation progress:
//
//   - merged:          delete the remote branch, then full local cleanup
//   - PR open:         keep the remote branch (deleting it would orphan the
//     PR), local cleanup only, report the PR for manual resolution
//   - pushed, no PR:   delete the orphaned remote branch, then local cleanup
//   - nothing pushed:  local cleanup only
//
// Local cleanup always runs: checkout trunk, pull with prune, remove the
// worktree, prune worktree metadata, force-delete the local branch, prune
// remote-tracking refs, and verify the trunk checkout is clean.
//
// Release is idempotent: every sub-step treats "already absent" as a skip,
// so retrying after a crash mid-cleanup converges on the same final state.
// Real failures are collected in the report, never discarded.
func (m *Manager) Release(ctx context.Context, ws *Workspace, progress MutationProgress) (*CleanupReport, error) {
	report := &CleanupReport{}
	if ws == nil {
		return report, nil
	}

	m.trunkMu.Lock()
	defer m.trunkMu.Unlock()

	// Remote phase: decided by how far mutation got.
	switch {
	case progress.Merged:
		m.step(report, StepDeleteRemoteBranch, func() error {
			return m.git.DeleteRemoteBranch(ws.Branch)
		})
	case progress.PRCreated:
		// Leave the remote branch intact behind the open PR.
		report.OpenPR = progress.PRRef
		m.logger.Warn("leaving remote branch for open PR",
			"issue_id", ws.IssueID, "branch", ws.Branch, "pr", progress.PRRef)
	case progress.Pushed:
		m.step(report, StepDeleteRemoteBranch, func() error {
			return m.git.DeleteRemoteBranch(ws.Branch)
		})
	}

	// Local phase: always.
	m.step(report, StepCheckoutTrunk, func() error {
		return m.git.Checkout(m.trunk)
	})
	m.step(report, StepPullPrune, func() error {
		return m.git.PullPrune()
	})
	m.step(report, StepRemoveWorktree, func() error {
		return m.git.RemoveWorktree(ws.Path)
	})
	m.step(report, StepPruneWorktrees, func() error {
		return m.git.PruneWorktrees()
	})
	m.step(report, StepDeleteLocalBranch, func() error {
		return m.git.DeleteBranch(ws.Branch, true)
	})
	m.step(report, StepPruneRemoteRefs, func() error {
		return m.git.PruneRemote()
	})

	// Cleanup must never leave uncommitted changes on the shared trunk.
	m.step(report, StepVerifyTrunkClean, func() error {
		clean, err := m.git.IsClean()
		if err != nil {
			return err
		}
		if !clean {
			return git.ErrGitDirty
		}
		return nil
	})

	ws.Lifecycle = LifecycleCleaned

	m.mu.Lock()
	delete(m.active, ws.IssueID)
	m.mu.Unlock()

	if err := report.Err(); err != nil {
		m.logger.Error("workspace cleanup incomplete",
			"issue_id", ws.IssueID, "branch", ws.Branch, "error", err)
		return report, err
	}

	m.logger.Info("workspace released",
		"issue_id", ws.IssueID, "branch", ws.Branch, "open_pr", report.OpenPR)
	return report, nil
}

// step runs one cleanup sub-step, classifying "already absent" as a skip
// and recording everything else verbatim.
func (m *Manager) step(report *CleanupReport, name string, fn func() error) {
	err := fn()
	switch {
	case err == nil:
		report.Steps = append(report.Steps, StepResult{Step: name})
	case git.IsAbsent(err):
		report.Steps = append(report.Steps, StepResult{Step: name, Skipped: true})
	default:
		report.Steps = append(report.Steps, StepResult{Step: name, Err: err})
	}
}
