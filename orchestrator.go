package issueflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	nanoid "github.com/matoous/go-nanoid/v2"
	"github.com/randalmurphal/flowgraph/pkg/flowgraph"

	"github.com/randalmurphal/issueflow/git"
	"github.com/randalmurphal/issueflow/notify"
	"github.com/randalmurphal/issueflow/pr"
	"github.com/randalmurphal/issueflow/workspace"
)

// Orchestrator drives one issue at a time through the pipeline. It owns
// every stage-state mutation; workers only report outcomes.
type Orchestrator struct {
	store      *SessionStore
	git        *git.Context
	workspaces *workspace.Manager
	workers    *WorkerRegistry
	gate       *QualityGate
	hosting    pr.Provider
	tracker    IssueTracker
	notifier   notify.Notifier
	logger     *slog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithGate overrides the quality gate (e.g. a different retry budget).
func WithGate(gate *QualityGate) Option {
	return func(o *Orchestrator) { o.gate = gate }
}

// WithHosting sets the code hosting provider used by the review stage.
// Without one, the pipeline pushes the branch but cannot open a PR.
func WithHosting(p pr.Provider) Option {
	return func(o *Orchestrator) { o.hosting = p }
}

// WithTracker sets the external issue tracker to mirror progress into.
func WithTracker(t IssueTracker) Option {
	return func(o *Orchestrator) { o.tracker = t }
}

// WithNotifier sets the escalation notifier.
func WithNotifier(n notify.Notifier) Option {
	return func(o *Orchestrator) { o.notifier = n }
}

// WithWorkspaceManager overrides the default workspace manager.
func WithWorkspaceManager(m *workspace.Manager) Option {
	return func(o *Orchestrator) { o.workspaces = m }
}

// WithOrchestratorLogger sets the logger.
func WithOrchestratorLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = logger }
}

// NewOrchestrator creates an orchestrator over the given session store,
// git repository, and worker registry.
func NewOrchestrator(store *SessionStore, gitCtx *git.Context, workers *WorkerRegistry, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:   store,
		git:     gitCtx,
		workers: workers,
		gate:    NewQualityGate(),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.workspaces == nil {
		o.workspaces = workspace.NewManager(gitCtx, workspace.WithLogger(o.logger))
	}
	return o
}

// Run executes the pipeline for one issue, resuming from persisted state
// when a previous run was interrupted. Exactly one RunReport is produced;
// the error return is reserved for faults in the orchestrator itself.
func (o *Orchestrator) Run(ctx context.Context, issue *Issue) (*RunReport, error) {
	if issue == nil || issue.ID == "" {
		return nil, errors.New("issue with an ID is required")
	}

	runID, err := nanoid.New()
	if err != nil {
		return nil, fmt.Errorf("generate run ID: %w", err)
	}

	state, err := o.store.LoadState(issue.ID)
	switch {
	case errors.Is(err, ErrStateNotFound):
		state = NewStageState()
		if err := o.store.SaveState(issue.ID, state); err != nil {
			return nil, fmt.Errorf("initialize state: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("load state: %w", err)
	}

	logger := o.logger.With("run_id", runID, "issue_id", issue.ID)
	logger.Info("starting run", "stage", state.CurrentStage, "status", state.Status)

	if state.CurrentStage.Terminal() {
		return o.finishRun(ctx, &RunReport{
			RunID:      runID,
			IssueID:    issue.ID,
			Kind:       ReportDone,
			Reason:     "already complete",
			FinishedAt: time.Now(),
		}), nil
	}

	rs := RunState{RunID: runID, Issue: issue, State: state}

	if o.store.Cancelled(issue.ID) {
		rs, _ = o.cancelRun(ctx, rs)
		return o.finishRun(ctx, rs.Report), nil
	}

	ws, err := o.workspaces.Acquire(ctx, issue.ID, issue.Title)
	if err != nil {
		if errors.Is(err, workspace.ErrConflict) {
			err = &ResourceConflict{IssueID: issue.ID, Err: err}
		}
		// Nothing was acquired, so nothing needs cleaning up.
		rs, _ = o.failHard(ctx, rs, fmt.Sprintf("acquire workspace: %v", err), false)
		return o.finishRun(ctx, rs.Report), nil
	}
	rs.Workspace = ws

	entry := entryStage(state, issue)
	if entry.Terminal() {
		// State says every stage completed but the done marker never
		// landed; only the terminal transition is owed.
		return o.finishRun(ctx, o.sealDone(ctx, rs)), nil
	}

	final, err := o.runPipeline(ctx, rs, entry)
	if err != nil {
		// The graph itself broke. Tear the workspace down and report.
		final, _ = o.failHard(ctx, rs, fmt.Sprintf("pipeline: %v", err), true)
	}
	if final.Report == nil {
		final, _ = o.failHard(ctx, final, "pipeline ended without a terminal report", true)
	}

	return o.finishRun(ctx, final.Report), nil
}

// Cancel marks an issue for cancellation. The running pipeline observes
// the marker at its next stage boundary.
func (o *Orchestrator) Cancel(issueID string) error {
	return o.store.Cancel(issueID)
}

// finishRun posts the report to the tracker, archives finished issues,
// and logs the outcome.
func (o *Orchestrator) finishRun(ctx context.Context, report *RunReport) *RunReport {
	if o.tracker != nil {
		if err := o.tracker.PostComment(ctx, report.IssueID, report.String()); err != nil {
			o.logger.Warn("post tracker comment", "issue_id", report.IssueID, "error", err)
		}
	}
	if report.Kind == ReportDone {
		if err := o.store.Archive(report.IssueID); err != nil {
			o.logger.Warn("archive issue", "issue_id", report.IssueID, "error", err)
		}
	}
	o.logger.Info("run finished", "run_id", report.RunID, "issue_id", report.IssueID,
		"kind", report.Kind, "summary", report.String())
	return report
}

// sealDone records the terminal transition for a run whose last real
// stage already completed before a crash.
func (o *Orchestrator) sealDone(ctx context.Context, rs RunState) *RunReport {
	rs.State.Enter(StageDone)
	rs.State.Complete()
	o.saveState(rs.Issue.ID, rs.State)
	o.transition(ctx, rs.Issue.ID, StageDone)
	return &RunReport{
		RunID:      rs.RunID,
		IssueID:    rs.Issue.ID,
		Kind:       ReportDone,
		FinishedAt: time.Now(),
	}
}

// stageNode returns the node function for one worker-backed stage.
func (o *Orchestrator) stageNode(stage Stage) func(flowgraph.Context, RunState) (RunState, error) {
	return func(ctx flowgraph.Context, rs RunState) (RunState, error) {
		if rs.halted() {
			return rs, nil
		}
		if o.store.Cancelled(rs.Issue.ID) {
			return o.cancelRun(ctx, rs)
		}

		rs.State.Enter(stage)
		rs.State.AttemptCount++
		if err := o.store.SaveState(rs.Issue.ID, rs.State); err != nil {
			return o.failHard(ctx, rs, fmt.Sprintf("persist state: %v", err), true)
		}
		o.transition(ctx, rs.Issue.ID, stage)

		outcome, err := o.dispatch(ctx, rs, stage, rs.State.AttemptCount)
		if err != nil {
			return o.failHard(ctx, rs, fmt.Sprintf("%s: %v", stage, err), true)
		}

		if outcome.Kind != OutcomeComplete {
			return o.failHard(ctx, rs, fmt.Sprintf("%s: %s", stage, outcome.Detail), true)
		}

		rs.State.Complete()
		if err := o.store.SaveState(rs.Issue.ID, rs.State); err != nil {
			return o.failHard(ctx, rs, fmt.Sprintf("persist state: %v", err), true)
		}
		detail := outcome.Detail
		if detail == "" {
			detail = "completed"
		}
		o.progress(rs.Issue.ID, stage, detail)
		return rs, nil
	}
}

// gateNode runs one quality-gate verification attempt and records the
// decision. The consumed budget lives in StageState.GateAttempts and is
// only advanced after a failed attempt, so a crash mid-verification does
// not burn budget.
func (o *Orchestrator) gateNode(ctx flowgraph.Context, rs RunState) (RunState, error) {
	if rs.halted() {
		return rs, nil
	}
	if o.store.Cancelled(rs.Issue.ID) {
		return o.cancelRun(ctx, rs)
	}

	// A previous run already spent the whole budget. Until an explicit
	// reset (SessionStore.ResetGate), no further verification runs: the
	// exhausted report is re-emitted without invoking the worker, without
	// consuming budget, and without escalating again.
	if rs.State.GateAttempts >= o.gate.Budget() {
		o.progress(rs.Issue.ID, StageQAGate,
			fmt.Sprintf("budget already exhausted (%d/%d); reset required before another attempt",
				rs.State.GateAttempts, o.gate.Budget()))
		rs.Report = &RunReport{
			RunID:      rs.RunID,
			IssueID:    rs.Issue.ID,
			Kind:       ReportGateExhausted,
			Reason:     rs.State.LastError,
			FinishedAt: time.Now(),
		}
		return rs, nil
	}

	rs.State.Enter(StageQAGate)
	rs.State.AttemptCount++
	attempt := rs.State.GateAttempts + 1
	if err := o.store.SaveState(rs.Issue.ID, rs.State); err != nil {
		return o.failHard(ctx, rs, fmt.Sprintf("persist state: %v", err), true)
	}
	o.transition(ctx, rs.Issue.ID, StageQAGate)

	outcome, err := o.dispatch(ctx, rs, StageQAGate, attempt)
	if err != nil {
		return o.failHard(ctx, rs, fmt.Sprintf("%s: %v", StageQAGate, err), true)
	}
	if outcome.Kind == OutcomeFatal {
		return o.failHard(ctx, rs, fmt.Sprintf("%s: %s", StageQAGate, outcome.Detail), true)
	}

	// A clean verification run still fails the gate if the task plan has
	// tasks not verified as passing.
	if outcome.Kind == OutcomeComplete {
		tasks, err := o.store.LoadTasks(rs.Issue.ID)
		if err != nil {
			return o.failHard(ctx, rs, fmt.Sprintf("load tasks: %v", err), true)
		}
		if !tasks.AllPassing() {
			outcome = Failed("tasks not passing: " + tasks.FailingSummary())
		}
	}

	decision := o.gate.Decide(attempt, outcome)
	rs.Gate = decision

	switch decision.Status {
	case GatePassed:
		rs.State.GateAttempts = 0
		rs.State.Complete()
		if err := o.store.SaveState(rs.Issue.ID, rs.State); err != nil {
			return o.failHard(ctx, rs, fmt.Sprintf("persist state: %v", err), true)
		}
		o.progress(rs.Issue.ID, StageQAGate,
			fmt.Sprintf("quality gate passed on attempt %d/%d", attempt, o.gate.Budget()))

	case GateRetry:
		vf := &ValidationFailure{Detail: decision.Detail, Attempt: attempt}
		rs.State.GateAttempts = attempt
		rs.State.LastError = vf.Error()
		if err := o.store.SaveState(rs.Issue.ID, rs.State); err != nil {
			return o.failHard(ctx, rs, fmt.Sprintf("persist state: %v", err), true)
		}
		o.progress(rs.Issue.ID, StageQAGate,
			fmt.Sprintf("attempt %d/%d failed: %s; returning to implementing",
				attempt, o.gate.Budget(), decision.Detail))

	case GateExhausted:
		vf := &ValidationFailure{Detail: decision.Detail, Attempt: attempt}
		rs.State.GateAttempts = attempt
		reason := "quality gate exhausted: " + decision.Detail
		rs.State.Fail(vf.Error())
		o.saveState(rs.Issue.ID, rs.State)
		o.progress(rs.Issue.ID, StageQAGate,
			fmt.Sprintf("attempt %d/%d failed: %s; budget exhausted, escalating",
				attempt, o.gate.Budget(), decision.Detail))
		o.notify(ctx, notify.Event{
			Type:     notify.EventGateExhausted,
			Channel:  notify.ChannelSMS,
			RunID:    rs.RunID,
			IssueID:  rs.Issue.ID,
			Stage:    string(StageQAGate),
			Message:  reason,
			Severity: notify.SeverityCritical,
		})
		// The workspace is deliberately left in place for inspection.
		rs.Report = &RunReport{
			RunID:      rs.RunID,
			IssueID:    rs.Issue.ID,
			Kind:       ReportGateExhausted,
			Reason:     decision.Detail,
			FinishedAt: time.Now(),
		}
	}
	return rs, nil
}

// dispatch invokes the registered worker for a stage's capability.
func (o *Orchestrator) dispatch(ctx context.Context, rs RunState, stage Stage, attempt int) (Outcome, error) {
	worker, ok := o.workers.Lookup(stage.Capability())
	if !ok {
		return Outcome{}, fmt.Errorf("%w: %s", ErrNoWorker, stage.Capability())
	}
	return worker.Work(ctx, WorkRequest{
		RunID:     rs.RunID,
		Issue:     rs.Issue,
		Stage:     stage,
		Attempt:   attempt,
		Workspace: rs.Workspace,
	})
}

// cancelRun honors an operator cancellation marker: the run fails hard
// and the workspace is torn down (nothing was pushed, so only local
// cleanup runs).
func (o *Orchestrator) cancelRun(ctx context.Context, rs RunState) (RunState, error) {
	o.progress(rs.Issue.ID, rs.State.CurrentStage, "cancelled by operator")
	return o.failHard(ctx, rs, "cancelled by operator", true)
}

// failHard records a non-retryable failure, optionally tears the
// workspace down, and sets the terminal report.
func (o *Orchestrator) failHard(ctx context.Context, rs RunState, reason string, release bool) (RunState, error) {
	rs.State.Fail(reason)
	o.saveState(rs.Issue.ID, rs.State)

	var cleanup *workspace.CleanupReport
	if release && rs.Workspace != nil {
		var err error
		cleanup, err = o.workspaces.Release(ctx, rs.Workspace, workspace.MutationProgress{})
		if err != nil {
			o.logger.Warn("workspace cleanup failed", "issue_id", rs.Issue.ID, "error", err)
		}
	}

	rs.Report = &RunReport{
		RunID:      rs.RunID,
		IssueID:    rs.Issue.ID,
		Kind:       ReportHardFailure,
		Reason:     reason,
		Cleanup:    cleanup,
		FinishedAt: time.Now(),
	}
	return rs, nil
}

// saveState persists state where failure is only worth a log line.
func (o *Orchestrator) saveState(issueID string, state StageState) {
	if err := o.store.SaveState(issueID, state); err != nil {
		o.logger.Warn("persist state", "issue_id", issueID, "error", err)
	}
}

// progress appends to the issue's narrative log, best-effort.
func (o *Orchestrator) progress(issueID string, stage Stage, text string) {
	if err := o.store.AppendProgress(issueID, stage, text); err != nil {
		o.logger.Warn("append progress", "issue_id", issueID, "error", err)
	}
}

// transition mirrors a stage change into the external tracker, best-effort.
func (o *Orchestrator) transition(ctx context.Context, issueID string, stage Stage) {
	if o.tracker == nil {
		return
	}
	if err := o.tracker.TransitionState(ctx, issueID, string(stage)); err != nil {
		o.logger.Warn("tracker transition", "issue_id", issueID, "stage", stage, "error", err)
	}
}

// notify emits an escalation event, best-effort.
func (o *Orchestrator) notify(ctx context.Context, event notify.Event) {
	if o.notifier == nil {
		return
	}
	event.Timestamp = time.Now()
	if err := o.notifier.Notify(ctx, event); err != nil {
		o.logger.Warn("notify", "event_type", event.Type, "issue_id", event.IssueID, "error", err)
	}
}
