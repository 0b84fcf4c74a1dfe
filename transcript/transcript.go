package transcript

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	issueflow "github.com/randalmurphal/issueflow"
	"github.com/randalmurphal/issueflow/artifact"
)

// FileName is the artifact each run's transcript is stored under.
const FileName = "transcript.json"

// ErrNotFound is returned when a run has no transcript.
var ErrNotFound = errors.New("transcript not found")

// Entry is one agent invocation within a run.
type Entry struct {
	Stage      issueflow.Stage       `json:"stage"`
	Attempt    int                   `json:"attempt"`
	Model      string                `json:"model,omitempty"`
	Outcome    issueflow.OutcomeKind `json:"outcome"`
	Detail     string                `json:"detail,omitempty"`
	TokensIn   int                   `json:"tokensIn,omitempty"`
	TokensOut  int                   `json:"tokensOut,omitempty"`
	Cost       float64               `json:"cost,omitempty"`
	DurationMs int64                 `json:"durationMs,omitempty"`
	Timestamp  time.Time             `json:"timestamp"`
}

// Transcript is the full stage record of one run.
type Transcript struct {
	RunID   string  `json:"runId"`
	IssueID string  `json:"issueId,omitempty"`
	Entries []Entry `json:"entries"`
}

// TokensIn sums input tokens across all entries.
func (t *Transcript) TokensIn() int {
	var n int
	for _, e := range t.Entries {
		n += e.TokensIn
	}
	return n
}

// TokensOut sums output tokens across all entries.
func (t *Transcript) TokensOut() int {
	var n int
	for _, e := range t.Entries {
		n += e.TokensOut
	}
	return n
}

// Cost sums cost across all entries.
func (t *Transcript) Cost() float64 {
	var c float64
	for _, e := range t.Entries {
		c += e.Cost
	}
	return c
}

// Duration sums agent wall time across all entries.
func (t *Transcript) Duration() time.Duration {
	var ms int64
	for _, e := range t.Entries {
		ms += e.DurationMs
	}
	return time.Duration(ms) * time.Millisecond
}

// Recorder appends stage entries to per-run transcripts stored as
// artifacts. Safe for concurrent use.
type Recorder struct {
	artifacts *artifact.Manager
	mu        sync.Mutex
}

// NewRecorder creates a recorder over the artifact store.
func NewRecorder(artifacts *artifact.Manager) *Recorder {
	return &Recorder{artifacts: artifacts}
}

// Record appends an entry to the run's transcript, creating it on
// first use.
func (r *Recorder) Record(runID, issueID string, entry Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, err := r.load(runID)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			return err
		}
		t = &Transcript{RunID: runID, IssueID: issueID}
	}

	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	t.Entries = append(t.Entries, entry)

	if err := r.artifacts.SaveJSON(runID, FileName, t); err != nil {
		return err
	}

	// First entry also establishes the run's metadata record.
	if _, err := r.artifacts.ReadMetadata(runID); err != nil {
		return r.artifacts.WriteMetadata(artifact.RunMetadata{
			RunID:     runID,
			IssueID:   issueID,
			Status:    "running",
			StartedAt: entry.Timestamp,
		})
	}
	return nil
}

// Finish stamps the run's metadata with its terminal status.
func (r *Recorder) Finish(runID, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	meta, err := r.artifacts.ReadMetadata(runID)
	if err != nil {
		return err
	}
	meta.Status = status
	meta.EndedAt = time.Now()
	return r.artifacts.WriteMetadata(*meta)
}

// Load returns the run's transcript, or ErrNotFound.
func (r *Recorder) Load(runID string) (*Transcript, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.load(runID)
}

func (r *Recorder) load(runID string) (*Transcript, error) {
	data, err := r.artifacts.Load(runID, FileName)
	if err != nil {
		if errors.Is(err, artifact.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var t Transcript
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, err
	}
	return &t, nil
}
