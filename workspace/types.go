package workspace

import (
	"fmt"
	"strings"
)

// Lifecycle tracks where a workspace is in its life.
type Lifecycle string

const (
	// LifecycleCreated means the worktree and branch exist but no stage has run in them yet.
	LifecycleCreated Lifecycle = "created"
	// LifecycleActive means stage work is (or was) running in the worktree.
	LifecycleActive Lifecycle = "active"
	// LifecycleCleaned means Release has torn the workspace down.
	LifecycleCleaned Lifecycle = "cleaned"
)

// Workspace is the ephemeral branch + checkout directory bound to one issue.
// Exactly one workspace exists per issue at any time.
type Workspace struct {
	IssueID   string
	Branch    string
	Path      string
	Lifecycle Lifecycle
}

// MutationProgress records how far the terminal mutation phase got.
// Release consults it to pick the minimal correct cleanup.
type MutationProgress struct {
	Committed bool   `json:"committed"`
	Pushed    bool   `json:"pushed"`
	PRCreated bool   `json:"prCreated"`
	PRRef     string `json:"prRef,omitempty"`
	Merged    bool   `json:"merged"`
}

// Cleanup step names, in the order Release attempts them.
const (
	StepDeleteRemoteBranch = "delete-remote-branch"
	StepCheckoutTrunk      = "checkout-trunk"
	StepPullPrune          = "pull-prune"
	StepRemoveWorktree     = "remove-worktree"
	StepPruneWorktrees     = "prune-worktrees"
	StepDeleteLocalBranch  = "delete-local-branch"
	StepPruneRemoteRefs    = "prune-remote-refs"
	StepVerifyTrunkClean   = "verify-trunk-clean"
)

// StepResult records the outcome of one cleanup sub-step.
type StepResult struct {
	Step    string // Which sub-step ran
	Skipped bool   // True when the resource was already absent
	Err     error  // Non-nil only for real failures
}

// CleanupReport is the structured outcome of Release.
// A failed sub-step never discards information about which step failed.
type CleanupReport struct {
	Steps []StepResult

	// OpenPR holds the PR reference left open for manual resolution,
	// set only on the pr-created-but-unmerged path.
	OpenPR string
}

// Failed returns the sub-steps that genuinely failed.
func (r *CleanupReport) Failed() []StepResult {
	var failed []StepResult
	for _, s := range r.Steps {
		if s.Err != nil {
			failed = append(failed, s)
		}
	}
	return failed
}

// OK reports whether every sub-step succeeded or was safely skipped.
func (r *CleanupReport) OK() bool {
	return len(r.Failed()) == 0
}

// Err returns an aggregate error naming each failed step, or nil.
func (r *CleanupReport) Err() error {
	failed := r.Failed()
	if len(failed) == 0 {
		return nil
	}

	parts := make([]string, len(failed))
	for i, s := range failed {
		parts[i] = fmt.Sprintf("%s: %v", s.Step, s.Err)
	}
	return fmt.Errorf("cleanup partially failed: %s", strings.Join(parts, "; "))
}
