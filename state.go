package issueflow

import "time"

// Status is the execution status of the current stage.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusComplete   Status = "complete"
	StatusFailed     Status = "failed"
)

// StageState is the machine-readable persisted state of one issue's
// pipeline run. It is mutated only by the orchestrator at stage-entry and
// stage-exit boundaries; workers report outcomes and never touch it.
type StageState struct {
	CurrentStage Stage  `json:"currentStage"`
	Status       Status `json:"status"`

	// AttemptCount is the attempt counter for the current stage. It only
	// increases within a stage and resets to zero on transition.
	AttemptCount int `json:"attemptCount"`

	// GateAttempts is the quality-gate retry budget consumed so far. It
	// survives the QAGate -> Implementing feedback loop (unlike
	// AttemptCount, which resets on every stage transition) and resets
	// only when the gate passes.
	GateAttempts int `json:"gateAttempts,omitempty"`

	LastError string    `json:"lastError,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewStageState returns the initial state for a fresh issue.
func NewStageState() StageState {
	return StageState{
		CurrentStage: StageQueued,
		Status:       StatusPending,
		UpdatedAt:    time.Now(),
	}
}

// Enter records entry into a stage: in_progress, attempts reset when the
// stage actually changed (re-entry after a crash keeps the count).
func (s *StageState) Enter(stage Stage) {
	if s.CurrentStage != stage {
		s.AttemptCount = 0
	}
	s.CurrentStage = stage
	s.Status = StatusInProgress
	s.LastError = ""
	s.UpdatedAt = time.Now()
}

// Complete records a successful stage exit.
func (s *StageState) Complete() {
	s.Status = StatusComplete
	s.UpdatedAt = time.Now()
}

// Fail records a failed stage exit with the reason.
func (s *StageState) Fail(reason string) {
	s.Status = StatusFailed
	s.LastError = reason
	s.UpdatedAt = time.Now()
}

// Resuming reports whether this state represents a run interrupted
// mid-stage: the worker outcome is unknown and the stage must be
// re-invoked, never skipped.
func (s *StageState) Resuming() bool {
	return s.Status == StatusInProgress
}
