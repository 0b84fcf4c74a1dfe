package issueflow

import (
	"fmt"
	"time"

	"github.com/randalmurphal/issueflow/workspace"
)

// ReportKind is the single terminal classification of a pipeline run.
type ReportKind string

const (
	// ReportDone means the full pipeline completed and was merged.
	ReportDone ReportKind = "done"
	// ReportPartialOpenPR means a PR was created but not merged; the
	// remote branch survives and the PR awaits manual resolution.
	ReportPartialOpenPR ReportKind = "partial_open_pr"
	// ReportPartialOrphanBranch means the branch was pushed but no PR was
	// created; the orphaned remote branch was deleted during cleanup.
	ReportPartialOrphanBranch ReportKind = "partial_orphan_branch"
	// ReportHardFailure means a non-retryable fault stopped the pipeline.
	ReportHardFailure ReportKind = "hard_failure"
	// ReportGateExhausted means the quality gate ran out of attempts; the
	// workspace is preserved for human inspection.
	ReportGateExhausted ReportKind = "quality_gate_exhausted"
)

// RunReport is the exit contract of one orchestrator run. Exactly one is
// produced per run.
type RunReport struct {
	RunID   string     `json:"runId"`
	IssueID string     `json:"issueId"`
	Kind    ReportKind `json:"kind"`

	// PRRef is set for done and partial_open_pr outcomes.
	PRRef string `json:"prRef,omitempty"`

	// Reason carries the hard-failure reason or gate-exhaustion detail.
	Reason string `json:"reason,omitempty"`

	// Cleanup is the workspace teardown report, when cleanup ran.
	Cleanup *workspace.CleanupReport `json:"-"`

	FinishedAt time.Time `json:"finishedAt"`
}

// String returns a one-line summary for logs and tracker comments.
func (r *RunReport) String() string {
	switch r.Kind {
	case ReportDone:
		if r.PRRef != "" {
			return fmt.Sprintf("run %s: %s merged via %s", r.RunID, r.IssueID, r.PRRef)
		}
		return fmt.Sprintf("run %s: %s done", r.RunID, r.IssueID)
	case ReportPartialOpenPR:
		return fmt.Sprintf("run %s: %s has PR %s open, awaiting manual merge", r.RunID, r.IssueID, r.PRRef)
	case ReportPartialOrphanBranch:
		return fmt.Sprintf("run %s: %s pushed but no PR was created; remote branch cleaned up", r.RunID, r.IssueID)
	case ReportGateExhausted:
		return fmt.Sprintf("run %s: %s quality gate exhausted: %s", r.RunID, r.IssueID, r.Reason)
	default:
		return fmt.Sprintf("run %s: %s failed: %s", r.RunID, r.IssueID, r.Reason)
	}
}
