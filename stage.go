package issueflow

// Stage is one named phase of the pipeline.
type Stage string

const (
	StageQueued       Stage = "queued"
	StageRefining     Stage = "refining"
	StageArchitecting Stage = "architecting"
	StageDesigning    Stage = "designing"
	StageImplementing Stage = "implementing"
	StageTesting      Stage = "testing"
	StageQAGate       Stage = "qa-gate"
	StageInReview     Stage = "in-review"
	StageDone         Stage = "done"
)

// Stages lists the pipeline stages in execution order. The only non-linear
// edge is the bounded QAGate -> Implementing feedback loop.
var Stages = []Stage{
	StageQueued,
	StageRefining,
	StageArchitecting,
	StageDesigning,
	StageImplementing,
	StageTesting,
	StageQAGate,
	StageInReview,
	StageDone,
}

// Valid reports whether s is a known stage.
func (s Stage) Valid() bool {
	for _, known := range Stages {
		if s == known {
			return true
		}
	}
	return false
}

// Terminal reports whether the stage ends the pipeline.
func (s Stage) Terminal() bool {
	return s == StageDone
}

// Capability returns the worker capability a stage dispatches to.
// Stages handled by the orchestrator itself (Queued, InReview, Done)
// have no capability.
func (s Stage) Capability() Capability {
	switch s {
	case StageRefining:
		return CapabilityRefine
	case StageArchitecting:
		return CapabilityArchitect
	case StageDesigning:
		return CapabilityDesign
	case StageImplementing:
		return CapabilityImplement
	case StageTesting:
		return CapabilityTest
	case StageQAGate:
		return CapabilityVerify
	}
	return ""
}

// next returns the linear successor of s, or "" past the end.
func (s Stage) next() Stage {
	for i, known := range Stages {
		if s == known && i+1 < len(Stages) {
			return Stages[i+1]
		}
	}
	return ""
}

// NextStage returns the stage that follows cur for the given issue,
// applying the Designing skip predicate. The second return is true when
// a stage was skipped, so the caller can record the skip.
func NextStage(cur Stage, issue *Issue) (Stage, bool) {
	n := cur.next()
	if n == StageDesigning && !issue.NeedsDesign() {
		return n.next(), true
	}
	return n, false
}
