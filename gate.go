package issueflow

// DefaultGateAttempts is the default quality-gate retry budget.
const DefaultGateAttempts = 5

// GateStatus tags a quality-gate decision.
type GateStatus string

const (
	GatePassed    GateStatus = "passed"
	GateRetry     GateStatus = "retry"
	GateExhausted GateStatus = "exhausted"
)

// GateResult is the decision for one quality-gate attempt.
type GateResult struct {
	Status  GateStatus
	Detail  string
	Attempt int
}

// QualityGate bounds retries of the pre-mutation verification stage.
//
// The budget is a closed loop shared across the whole QAGate stage, not
// per individual check; the consumed count lives in StageState so a
// process restart mid-retry does not reset it.
type QualityGate struct {
	// MaxAttempts is the total attempt budget. Zero means the default.
	MaxAttempts int
}

// NewQualityGate returns a gate with the default budget.
func NewQualityGate() *QualityGate {
	return &QualityGate{MaxAttempts: DefaultGateAttempts}
}

// Budget returns the effective attempt budget.
func (g *QualityGate) Budget() int {
	if g.MaxAttempts <= 0 {
		return DefaultGateAttempts
	}
	return g.MaxAttempts
}

// Decide maps the outcome of verification attempt number attempt (1-based)
// to a gate decision: passed, retry (budget remains), or exhausted.
func (g *QualityGate) Decide(attempt int, outcome Outcome) GateResult {
	if outcome.Kind == OutcomeComplete {
		return GateResult{Status: GatePassed, Attempt: attempt}
	}
	if attempt < g.Budget() {
		return GateResult{Status: GateRetry, Detail: outcome.Detail, Attempt: attempt}
	}
	return GateResult{Status: GateExhausted, Detail: outcome.Detail, Attempt: attempt}
}
