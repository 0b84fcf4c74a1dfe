package issueflow

import (
	"context"
	"sync"

	"github.com/randalmurphal/issueflow/workspace"
)

// Capability names the kind of work a stage dispatches to a worker.
type Capability string

const (
	CapabilityRefine    Capability = "refine"
	CapabilityArchitect Capability = "architect"
	CapabilityDesign    Capability = "design"
	CapabilityImplement Capability = "implement"
	CapabilityTest      Capability = "test"
	CapabilityVerify    Capability = "verify"
)

// OutcomeKind tags a worker outcome.
type OutcomeKind string

const (
	// OutcomeComplete means the stage's work is done.
	OutcomeComplete OutcomeKind = "complete"
	// OutcomeFailed means the work failed in a way worth retrying
	// (the quality gate consumes these for its retry budget).
	OutcomeFailed OutcomeKind = "failed"
	// OutcomeFatal means a non-retryable fault, e.g. missing credentials.
	OutcomeFatal OutcomeKind = "fatal"
)

// Outcome is what a worker reports back to the orchestrator. Workers never
// write stage state themselves.
type Outcome struct {
	Kind   OutcomeKind
	Detail string
}

// Complete returns a successful outcome.
func Complete(detail string) Outcome {
	return Outcome{Kind: OutcomeComplete, Detail: detail}
}

// Failed returns a retryable failure outcome.
func Failed(detail string) Outcome {
	return Outcome{Kind: OutcomeFailed, Detail: detail}
}

// Fatal returns a non-retryable failure outcome.
func Fatal(detail string) Outcome {
	return Outcome{Kind: OutcomeFatal, Detail: detail}
}

// WorkRequest is everything a worker gets for one stage invocation.
// Workers may be invoked more than once for the same stage (crash
// recovery); they should resume from the progress log and task list
// rather than redo finished sub-work.
type WorkRequest struct {
	RunID     string
	Issue     *Issue
	Stage     Stage
	Attempt   int
	Workspace *workspace.Workspace
}

// StageWorker performs the work of one stage capability.
//
// A returned error means the worker infrastructure itself broke and is
// treated as fatal; domain-level success or failure travels in the
// Outcome.
type StageWorker interface {
	Work(ctx context.Context, req WorkRequest) (Outcome, error)
}

// WorkerFunc adapts a function to StageWorker.
type WorkerFunc func(ctx context.Context, req WorkRequest) (Outcome, error)

func (f WorkerFunc) Work(ctx context.Context, req WorkRequest) (Outcome, error) {
	return f(ctx, req)
}

// WorkerRegistry maps capabilities to workers.
type WorkerRegistry struct {
	mu      sync.RWMutex
	workers map[Capability]StageWorker
}

// NewWorkerRegistry creates an empty registry.
func NewWorkerRegistry() *WorkerRegistry {
	return &WorkerRegistry{workers: make(map[Capability]StageWorker)}
}

// Register binds a worker to a capability, replacing any previous binding.
func (r *WorkerRegistry) Register(cap Capability, w StageWorker) *WorkerRegistry {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.workers[cap] = w
	return r
}

// Lookup returns the worker for a capability.
func (r *WorkerRegistry) Lookup(cap Capability) (StageWorker, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.workers[cap]
	return w, ok
}

// Capabilities returns the registered capabilities.
func (r *WorkerRegistry) Capabilities() []Capability {
	r.mu.RLock()
	defer r.mu.RUnlock()
	caps := make([]Capability, 0, len(r.workers))
	for c := range r.workers {
		caps = append(caps, c)
	}
	return caps
}
