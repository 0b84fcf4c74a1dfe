package issueflow

import "testing"

func TestStage_Valid(t *testing.T) {
	for _, s := range Stages {
		if !s.Valid() {
			t.Errorf("%q should be valid", s)
		}
	}
	if Stage("reviewing").Valid() {
		t.Error("unknown stage should not be valid")
	}
}

func TestStage_Capability(t *testing.T) {
	tests := []struct {
		stage Stage
		want  Capability
	}{
		{StageRefining, CapabilityRefine},
		{StageArchitecting, CapabilityArchitect},
		{StageDesigning, CapabilityDesign},
		{StageImplementing, CapabilityImplement},
		{StageTesting, CapabilityTest},
		{StageQAGate, CapabilityVerify},
		{StageQueued, ""},
		{StageInReview, ""},
		{StageDone, ""},
	}
	for _, tt := range tests {
		if got := tt.stage.Capability(); got != tt.want {
			t.Errorf("%s.Capability() = %q, want %q", tt.stage, got, tt.want)
		}
	}
}

func TestNextStage_LinearOrder(t *testing.T) {
	issue := &Issue{ID: "QX-1", Labels: []string{"ui"}}

	got, skipped := NextStage(StageArchitecting, issue)
	if got != StageDesigning || skipped {
		t.Errorf("NextStage(architecting) = %q, skipped %v; want designing, false", got, skipped)
	}

	got, _ = NextStage(StageTesting, issue)
	if got != StageQAGate {
		t.Errorf("NextStage(testing) = %q, want qa-gate", got)
	}

	got, _ = NextStage(StageQAGate, issue)
	if got != StageInReview {
		t.Errorf("NextStage(qa-gate) = %q, want in-review", got)
	}
}

func TestNextStage_SkipsDesigningWithoutDesignLabels(t *testing.T) {
	issue := &Issue{ID: "QX-2", Labels: []string{"backend", "bug"}}

	got, skipped := NextStage(StageArchitecting, issue)
	if got != StageImplementing {
		t.Errorf("NextStage(architecting) = %q, want implementing", got)
	}
	if !skipped {
		t.Error("skip should be reported so it can be recorded")
	}
}

func TestEntryStage(t *testing.T) {
	issue := &Issue{ID: "QX-3", Labels: []string{"ux"}}

	tests := []struct {
		name  string
		state StageState
		want  Stage
	}{
		{"fresh issue", StageState{CurrentStage: StageQueued, Status: StatusPending}, StageRefining},
		{"crashed mid-stage", StageState{CurrentStage: StageTesting, Status: StatusInProgress}, StageTesting},
		{"stage completed", StageState{CurrentStage: StageTesting, Status: StatusComplete}, StageQAGate},
		{"failed stage reruns", StageState{CurrentStage: StageImplementing, Status: StatusFailed}, StageImplementing},
		{"done", StageState{CurrentStage: StageDone, Status: StatusComplete}, StageDone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := entryStage(tt.state, issue); got != tt.want {
				t.Errorf("entryStage() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEntryStage_AppliesDesignSkipAfterArchitecting(t *testing.T) {
	issue := &Issue{ID: "QX-4", Labels: []string{"backend"}}
	state := StageState{CurrentStage: StageArchitecting, Status: StatusComplete}

	if got := entryStage(state, issue); got != StageImplementing {
		t.Errorf("entryStage() = %q, want implementing", got)
	}
}
