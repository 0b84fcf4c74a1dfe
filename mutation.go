package issueflow

import (
	"errors"
	"fmt"
	"time"

	"github.com/randalmurphal/flowgraph/pkg/flowgraph"

	"github.com/randalmurphal/issueflow/git"
	"github.com/randalmurphal/issueflow/notify"
	"github.com/randalmurphal/issueflow/pr"
	"github.com/randalmurphal/issueflow/workspace"
)

// mutationNode is the in-review stage: the only part of the pipeline that
// mutates shared systems. It runs in two phases. Phase one is read-only
// guards; a guard failure aborts with no cleanup owed. Phase two is the
// ordered commit, push, PR, merge sequence; once it starts, every exit
// path runs the compensating workspace teardown exactly once, driven by
// how far the sequence got.
func (o *Orchestrator) mutationNode(ctx flowgraph.Context, rs RunState) (RunState, error) {
	if rs.halted() {
		return rs, nil
	}
	if o.store.Cancelled(rs.Issue.ID) {
		return o.cancelRun(ctx, rs)
	}

	rs.State.Enter(StageInReview)
	rs.State.AttemptCount++
	if err := o.store.SaveState(rs.Issue.ID, rs.State); err != nil {
		return o.failHard(ctx, rs, fmt.Sprintf("persist state: %v", err), true)
	}
	o.transition(ctx, rs.Issue.ID, StageInReview)

	wt := o.git.InWorktree(rs.Workspace.Path)

	// Phase one: guards. Nothing has mutated yet.
	branch, err := wt.CurrentBranch()
	if err != nil {
		return o.failPrecondition(ctx, rs, fmt.Sprintf("read current branch: %v", err))
	}
	if branch == o.workspaces.Trunk() {
		return o.failPrecondition(ctx, rs, "workspace is on the trunk branch, refusing to mutate")
	}
	if branch != rs.Workspace.Branch {
		return o.failPrecondition(ctx, rs,
			fmt.Sprintf("workspace on branch %q, want %q", branch, rs.Workspace.Branch))
	}

	// Phase two: commit, push, PR, merge. From here on cleanup is owed.
	var progress workspace.MutationProgress

	msg := git.NewCommitMessage(git.CommitTypeFeat, rs.Issue.Title).
		WithIssueRef(rs.Issue.ID).
		String()

	if err := wt.StageAll(); err != nil {
		return o.failMutation(ctx, rs, StepCommit, err, progress)
	}
	switch err := wt.Commit(msg); {
	case errors.Is(err, git.ErrNothingToCommit):
		// Resumed run: the commit already landed before the interruption.
	case err != nil:
		return o.failMutation(ctx, rs, StepCommit, err, progress)
	}
	progress.Committed = true
	o.progress(rs.Issue.ID, StageInReview, "committed: "+rs.Issue.Title)

	if err := wt.Push(rs.Workspace.Branch, true); err != nil {
		return o.failMutation(ctx, rs, StepPush, err, progress)
	}
	progress.Pushed = true
	o.progress(rs.Issue.ID, StageInReview, "pushed "+rs.Workspace.Branch)

	pull, err := o.openPullRequest(ctx, rs)
	if err != nil {
		return o.failMutation(ctx, rs, StepCreatePR, err, progress)
	}
	progress.PRCreated = true
	progress.PRRef = pull.Ref()
	o.progress(rs.Issue.ID, StageInReview, "opened PR "+pull.Ref())

	decision, err := o.hosting.ReviewDecision(ctx, pull.ID)
	if err != nil {
		return o.reportOpenPR(ctx, rs, pull, progress,
			fmt.Sprintf("review decision for %s unavailable: %v", pull.Ref(), err))
	}
	if decision != pr.DecisionApproved {
		return o.reportOpenPR(ctx, rs, pull, progress,
			fmt.Sprintf("PR %s open, awaiting manual merge", pull.Ref()))
	}

	switch err := o.hosting.MergePR(ctx, pull.ID, pr.MergeOptions{Method: pr.MergeMethodSquash}); {
	case errors.Is(err, pr.ErrMerged):
		// Resumed run: already merged.
	case err != nil:
		return o.reportOpenPR(ctx, rs, pull, progress,
			fmt.Sprintf("merge of %s failed: %v", pull.Ref(), err))
	}
	progress.Merged = true
	o.progress(rs.Issue.ID, StageInReview, "merged "+pull.Ref())

	cleanup, err := o.workspaces.Release(ctx, rs.Workspace, progress)
	if err != nil {
		o.logger.Warn("post-merge cleanup incomplete", "issue_id", rs.Issue.ID, "error", err)
	}

	rs.State.Enter(StageDone)
	rs.State.Complete()
	o.saveState(rs.Issue.ID, rs.State)
	o.transition(ctx, rs.Issue.ID, StageDone)
	o.progress(rs.Issue.ID, StageDone, "merged via "+pull.Ref())

	rs.Report = &RunReport{
		RunID:      rs.RunID,
		IssueID:    rs.Issue.ID,
		Kind:       ReportDone,
		PRRef:      pull.Ref(),
		Cleanup:    cleanup,
		FinishedAt: time.Now(),
	}
	return rs, nil
}

// openPullRequest opens the PR for the workspace branch, reusing an
// existing open PR on resume.
func (o *Orchestrator) openPullRequest(ctx flowgraph.Context, rs RunState) (*pr.PullRequest, error) {
	if o.hosting == nil {
		return nil, pr.ErrNoProvider
	}

	var changes []string
	if tasks, err := o.store.LoadTasks(rs.Issue.ID); err == nil && len(tasks.Tasks) > 0 {
		for _, t := range tasks.Tasks {
			changes = append(changes, t.Description)
		}
	}

	opts := pr.NewBuilder(rs.Issue.Title).
		WithIssue(rs.Issue.ID).
		WithHead(rs.Workspace.Branch).
		WithBase(o.workspaces.Trunk()).
		WithSummary(rs.Issue.Description, changes, "Verified by the quality gate.").
		WithLabels(rs.Issue.Labels...).
		Build()

	pull, err := o.hosting.CreatePR(ctx, opts)
	if errors.Is(err, pr.ErrExists) {
		existing, listErr := o.hosting.ListPRs(ctx, pr.Filter{
			State: pr.StateOpen,
			Head:  rs.Workspace.Branch,
		})
		if listErr == nil && len(existing) > 0 {
			return existing[0], nil
		}
		return nil, err
	}
	return pull, err
}

// reportOpenPR ends the run with the PR left open: the remote branch is
// kept alive for it, local state is cleaned, and a human is asked to
// finish the merge.
func (o *Orchestrator) reportOpenPR(ctx flowgraph.Context, rs RunState, pull *pr.PullRequest, progress workspace.MutationProgress, reason string) (RunState, error) {
	rs.State.Fail(reason)
	o.saveState(rs.Issue.ID, rs.State)
	o.progress(rs.Issue.ID, StageInReview, reason)
	o.notify(ctx, notify.Event{
		Type:     notify.EventManualMergeNeeded,
		Channel:  notify.ChannelEmail,
		RunID:    rs.RunID,
		IssueID:  rs.Issue.ID,
		Stage:    string(StageInReview),
		Message:  reason,
		Severity: notify.SeverityWarning,
	})

	cleanup, err := o.workspaces.Release(ctx, rs.Workspace, progress)
	if err != nil {
		o.logger.Warn("open-PR cleanup incomplete", "issue_id", rs.Issue.ID, "error", err)
	}

	rs.Report = &RunReport{
		RunID:      rs.RunID,
		IssueID:    rs.Issue.ID,
		Kind:       ReportPartialOpenPR,
		PRRef:      pull.Ref(),
		Reason:     reason,
		Cleanup:    cleanup,
		FinishedAt: time.Now(),
	}
	return rs, nil
}

// failPrecondition aborts before anything mutated. No cleanup runs; the
// workspace stays exactly as the guards found it.
func (o *Orchestrator) failPrecondition(ctx flowgraph.Context, rs RunState, reason string) (RunState, error) {
	perr := &PreconditionError{Reason: reason}
	rs.State.Fail(perr.Error())
	o.saveState(rs.Issue.ID, rs.State)
	o.progress(rs.Issue.ID, StageInReview, perr.Error())

	rs.Report = &RunReport{
		RunID:      rs.RunID,
		IssueID:    rs.Issue.ID,
		Kind:       ReportHardFailure,
		Reason:     perr.Error(),
		FinishedAt: time.Now(),
	}
	return rs, nil
}

// failMutation ends the run after a failed mutation step. The
// compensating teardown always runs, keyed off how far the sequence got:
// a branch pushed with no PR is an orphan and gets deleted remotely.
func (o *Orchestrator) failMutation(ctx flowgraph.Context, rs RunState, step string, cause error, progress workspace.MutationProgress) (RunState, error) {
	merr := &MutationFailure{Step: step, Err: cause}
	rs.State.Fail(merr.Error())
	o.saveState(rs.Issue.ID, rs.State)
	o.progress(rs.Issue.ID, StageInReview, merr.Error())

	cleanup, err := o.workspaces.Release(ctx, rs.Workspace, progress)
	if err != nil {
		o.logger.Warn("mutation-failure cleanup incomplete", "issue_id", rs.Issue.ID, "error", err)
	}

	kind := ReportHardFailure
	if progress.Pushed && !progress.PRCreated {
		kind = ReportPartialOrphanBranch
	}
	rs.Report = &RunReport{
		RunID:      rs.RunID,
		IssueID:    rs.Issue.ID,
		Kind:       kind,
		Reason:     merr.Error(),
		Cleanup:    cleanup,
		FinishedAt: time.Now(),
	}
	return rs, nil
}
