package issueflow

import (
	"context"
	"fmt"

	"github.com/randalmurphal/flowgraph/pkg/flowgraph"

	"github.com/randalmurphal/issueflow/workspace"
)

// RunState is the state threaded through the pipeline graph for one run.
// Durable facts live in the session store; RunState only carries what the
// next node needs in memory.
type RunState struct {
	RunID     string
	Issue     *Issue
	Workspace *workspace.Workspace

	// State mirrors the persisted stage state. Nodes mutate it and save
	// through the store at every stage boundary.
	State StageState

	// Gate is the latest quality-gate decision, consulted by the gate
	// router to pick between retry and review.
	Gate GateResult

	// Report, once set, halts the pipeline: every router returns END and
	// every node passes the state through untouched.
	Report *RunReport
}

// halted reports whether a terminal report has been produced.
func (rs RunState) halted() bool {
	return rs.Report != nil
}

// runPipeline builds the stage graph, compiles it, and runs it to
// completion from the given entry stage.
//
// The graph is linear except for two conditional pieces: the router after
// architecting skips the designing stage for issues without design labels,
// and the router after the quality gate either loops back to implementing
// or releases the run into review. Terminal outcomes are signalled by
// setting RunState.Report, which short-circuits every router to END.
func (o *Orchestrator) runPipeline(ctx context.Context, rs RunState, entry Stage) (RunState, error) {
	graph := flowgraph.NewGraph[RunState]().
		AddNode(string(StageRefining), o.stageNode(StageRefining)).
		AddNode(string(StageArchitecting), o.stageNode(StageArchitecting)).
		AddNode(string(StageDesigning), o.stageNode(StageDesigning)).
		AddNode(string(StageImplementing), o.stageNode(StageImplementing)).
		AddNode(string(StageTesting), o.stageNode(StageTesting)).
		AddNode(string(StageQAGate), o.gateNode).
		AddNode(string(StageInReview), o.mutationNode).
		AddConditionalEdge(string(StageRefining), o.forwardRouter(StageRefining)).
		AddConditionalEdge(string(StageArchitecting), o.forwardRouter(StageArchitecting)).
		AddConditionalEdge(string(StageDesigning), o.forwardRouter(StageDesigning)).
		AddConditionalEdge(string(StageImplementing), o.forwardRouter(StageImplementing)).
		AddConditionalEdge(string(StageTesting), o.forwardRouter(StageTesting)).
		AddConditionalEdge(string(StageQAGate), o.gateRouter).
		AddEdge(string(StageInReview), flowgraph.END).
		SetEntry(string(entry))

	compiled, err := graph.Compile()
	if err != nil {
		return rs, fmt.Errorf("compile pipeline: %w", err)
	}

	return compiled.Run(flowgraph.NewContext(ctx), rs)
}

// forwardRouter advances to the next stage in pipeline order, applying
// the designing-skip predicate and recording the skip when it fires.
func (o *Orchestrator) forwardRouter(from Stage) func(flowgraph.Context, RunState) string {
	return func(ctx flowgraph.Context, rs RunState) string {
		if rs.halted() {
			return flowgraph.END
		}
		next, skipped := NextStage(from, rs.Issue)
		if skipped {
			o.progress(rs.Issue.ID, StageDesigning, "skipped: issue carries no design-relevant labels")
		}
		return string(next)
	}
}

// gateRouter sends a failed-but-in-budget gate decision back to
// implementing and a passed gate into review.
func (o *Orchestrator) gateRouter(ctx flowgraph.Context, rs RunState) string {
	if rs.halted() {
		return flowgraph.END
	}
	if rs.Gate.Status == GateRetry {
		return string(StageImplementing)
	}
	return string(StageInReview)
}

// entryStage maps persisted state to the stage the pipeline should enter
// at. In-progress stages are re-entered, never skipped: a crash mid-stage
// leaves the worker outcome unknown. Returns StageDone when there is
// nothing left to run.
func entryStage(state StageState, issue *Issue) Stage {
	stage := state.CurrentStage
	if stage.Terminal() {
		return StageDone
	}
	if stage == StageQueued {
		return StageRefining
	}

	switch state.Status {
	case StatusComplete:
		next, _ := NextStage(stage, issue)
		if next == "" {
			return StageDone
		}
		return next
	default:
		// pending, in_progress, failed: (re)run the recorded stage
		return stage
	}
}
