package issueflow

import "testing"

func TestQualityGate_Budget(t *testing.T) {
	if got := NewQualityGate().Budget(); got != DefaultGateAttempts {
		t.Errorf("Budget() = %d, want %d", got, DefaultGateAttempts)
	}
	gate := &QualityGate{MaxAttempts: 3}
	if got := gate.Budget(); got != 3 {
		t.Errorf("Budget() = %d, want 3", got)
	}
}

func TestQualityGate_Decide(t *testing.T) {
	gate := NewQualityGate()

	tests := []struct {
		name    string
		attempt int
		outcome Outcome
		want    GateStatus
	}{
		{"pass on first attempt", 1, Complete("all checks green"), GatePassed},
		{"pass on last attempt", 5, Complete(""), GatePassed},
		{"fail with budget left", 1, Failed("lint errors"), GateRetry},
		{"fail on fourth attempt", 4, Failed("tests red"), GateRetry},
		{"fail on final attempt", 5, Failed("tests red"), GateExhausted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := gate.Decide(tt.attempt, tt.outcome)
			if got.Status != tt.want {
				t.Errorf("Decide(%d, %s) = %q, want %q", tt.attempt, tt.outcome.Kind, got.Status, tt.want)
			}
			if got.Attempt != tt.attempt {
				t.Errorf("Attempt = %d, want %d", got.Attempt, tt.attempt)
			}
		})
	}
}

func TestQualityGate_DecideCarriesDetail(t *testing.T) {
	gate := &QualityGate{MaxAttempts: 1}
	got := gate.Decide(1, Failed("task T-3 failing"))
	if got.Status != GateExhausted {
		t.Fatalf("Status = %q, want exhausted", got.Status)
	}
	if got.Detail != "task T-3 failing" {
		t.Errorf("Detail = %q", got.Detail)
	}
}
