package issueflow

import (
	"errors"
	"fmt"
)

// Pipeline errors.
var (
	// ErrTaskNotFound indicates a task ID is not in the task list.
	ErrTaskNotFound = errors.New("task not found")

	// ErrCancelled indicates the issue was cancelled by an operator.
	ErrCancelled = errors.New("issue cancelled")

	// ErrNoWorker indicates no worker is registered for a capability.
	ErrNoWorker = errors.New("no worker registered for capability")
)

// Mutation step names, in the fixed order they execute.
const (
	StepCommit   = "commit"
	StepPush     = "push"
	StepCreatePR = "create-pr"
	StepMerge    = "merge"
)

// PreconditionError indicates a read-only guard failed before anything
// mutated. No cleanup is owed; the run aborts immediately.
type PreconditionError struct {
	Reason string
}

func (e *PreconditionError) Error() string {
	return "precondition failed: " + e.Reason
}

// ValidationFailure is a quality-gate check failure. It is retried up to
// the gate budget, then escalated with the workspace preserved.
type ValidationFailure struct {
	Detail  string
	Attempt int
}

func (e *ValidationFailure) Error() string {
	return fmt.Sprintf("validation failed (attempt %d): %s", e.Attempt, e.Detail)
}

// MutationFailure is a failed commit/push/PR/merge step. Cleanup always
// follows; Step identifies which compensating branch fires.
type MutationFailure struct {
	Step string
	Err  error
}

func (e *MutationFailure) Error() string {
	return fmt.Sprintf("mutation step %s failed: %v", e.Step, e.Err)
}

func (e *MutationFailure) Unwrap() error {
	return e.Err
}

// ResourceConflict indicates the issue's workspace exists under different
// ownership. Fatal, and nothing was acquired, so no cleanup runs.
type ResourceConflict struct {
	IssueID string
	Err     error
}

func (e *ResourceConflict) Error() string {
	return fmt.Sprintf("workspace conflict for issue %s: %v", e.IssueID, e.Err)
}

func (e *ResourceConflict) Unwrap() error {
	return e.Err
}
