package agent

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	issueflow "github.com/randalmurphal/issueflow"
	"github.com/randalmurphal/issueflow/artifact"
	"github.com/randalmurphal/issueflow/prompt"
	"github.com/randalmurphal/issueflow/transcript"
	"github.com/randalmurphal/issueflow/workspace"
)

// stubAgent writes a shell script that prints the given stdout and
// returns its path.
func stubAgent(t *testing.T, stdout string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fake-agent")
	script := "#!/bin/sh\ncat <<'EOF'\n" + stdout + "\nEOF\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestNewCLI_MissingBinary(t *testing.T) {
	_, err := NewCLI(Config{BinaryPath: "no-such-agent-binary"})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestCLI_RunParsesJSON(t *testing.T) {
	bin := stubAgent(t, `{"result":"all tasks done","input_tokens":120,"output_tokens":40,"cost_usd":0.02,"session_id":"s-1"}`)

	cli, err := NewCLI(Config{BinaryPath: bin, Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("NewCLI() error = %v", err)
	}

	result, err := cli.Run(context.Background(), "do the thing")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.Output != "all tasks done" {
		t.Errorf("Output = %q", result.Output)
	}
	if result.TokensIn != 120 || result.TokensOut != 40 {
		t.Errorf("tokens = %d/%d", result.TokensIn, result.TokensOut)
	}
	if result.SessionID != "s-1" {
		t.Errorf("SessionID = %q", result.SessionID)
	}
}

func TestCLI_RunFallsBackToRawOutput(t *testing.T) {
	bin := stubAgent(t, "not json at all")

	cli, err := NewCLI(Config{BinaryPath: bin, Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("NewCLI() error = %v", err)
	}

	result, err := cli.Run(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.Output != "not json at all" {
		t.Errorf("Output = %q", result.Output)
	}
}

func TestCLI_RunReportsFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fake-agent")
	script := "#!/bin/sh\necho 'credentials missing' >&2\nexit 1\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}

	cli, err := NewCLI(Config{BinaryPath: path, Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("NewCLI() error = %v", err)
	}

	_, err = cli.Run(context.Background(), "hello")
	if !errors.Is(err, ErrFailed) {
		t.Fatalf("error = %v, want ErrFailed", err)
	}
	if !strings.Contains(err.Error(), "credentials missing") {
		t.Errorf("error = %v, want stderr detail", err)
	}
}

func TestParseOutput_ToleratesNoise(t *testing.T) {
	result, err := parseOutput([]byte("warning: something\n{\"result\":\"done\",\"session_id\":\"s-2\"}\ntrailing"))
	if err != nil {
		t.Fatalf("parseOutput() error = %v", err)
	}
	if result.Output != "done" || result.SessionID != "s-2" {
		t.Errorf("result = %+v", result)
	}
}

func TestOutcomeFromOutput(t *testing.T) {
	tests := []struct {
		name   string
		output string
		want   issueflow.OutcomeKind
		detail string
	}{
		{"explicit ok", "did work\nRESULT: ok all tests pass", issueflow.OutcomeComplete, "all tests pass"},
		{"explicit fail", "tried\nRESULT: fail two tests broken", issueflow.OutcomeFailed, "two tests broken"},
		{"blocked", "RESULT: blocked no API key", issueflow.OutcomeFatal, "no API key"},
		{"no verdict", "implemented the handler\nmore detail", issueflow.OutcomeComplete, "implemented the handler"},
		{"case insensitive", "RESULT: FAIL lint errors", issueflow.OutcomeFailed, "lint errors"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := outcomeFromOutput(tt.output)
			if got.Kind != tt.want {
				t.Errorf("Kind = %q, want %q", got.Kind, tt.want)
			}
			if got.Detail != tt.detail {
				t.Errorf("Detail = %q, want %q", got.Detail, tt.detail)
			}
		})
	}
}

func TestSelectModel(t *testing.T) {
	if SelectModel(issueflow.CapabilityRefine) != SelectModel(issueflow.CapabilityArchitect) {
		t.Error("refine and architect should use the same reasoning model")
	}
	if SelectModel(issueflow.CapabilityRefine) == SelectModel(issueflow.CapabilityImplement) {
		t.Error("refine should use a stronger model than implement")
	}
	if SelectModel(issueflow.Capability("unknown")) != SelectModel(issueflow.CapabilityImplement) {
		t.Error("unknown capability should fall back to the default model")
	}
}

func TestWorker_MapsVerdictToOutcome(t *testing.T) {
	bin := stubAgent(t, `{"result":"checked everything\nRESULT: fail task T-2 regressed"}`)

	cli, err := NewCLI(Config{BinaryPath: bin, Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("NewCLI() error = %v", err)
	}

	artifacts := artifact.NewManager(t.TempDir())
	worker := NewWorker(cli, prompt.NewLoader(t.TempDir()), WithArtifacts(artifacts))

	outcome, err := worker.Work(context.Background(), issueflow.WorkRequest{
		RunID:     "run-1",
		Issue:     &issueflow.Issue{ID: "QX-7", Title: "Fix foo handling"},
		Stage:     issueflow.StageQAGate,
		Attempt:   2,
		Workspace: &workspace.Workspace{Path: t.TempDir()},
	})
	if err != nil {
		t.Fatalf("Work() error = %v", err)
	}
	if outcome.Kind != issueflow.OutcomeFailed {
		t.Errorf("Kind = %q, want failed", outcome.Kind)
	}
	if !strings.Contains(outcome.Detail, "T-2") {
		t.Errorf("Detail = %q", outcome.Detail)
	}

	saved, err := artifacts.Load("run-1", "qa-gate-attempt-2.txt")
	if err != nil {
		t.Fatalf("transcript not saved: %v", err)
	}
	if !strings.Contains(string(saved), "checked everything") {
		t.Errorf("transcript = %q", saved)
	}
}

func TestWorker_RecordsTranscriptEntry(t *testing.T) {
	bin := stubAgent(t, `{"result":"RESULT: ok","input_tokens":1200,"output_tokens":300,"cost_usd":0.42}`)

	cli, err := NewCLI(Config{BinaryPath: bin, Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("NewCLI() error = %v", err)
	}

	artifacts := artifact.NewManager(t.TempDir())
	recorder := transcript.NewRecorder(artifacts)
	worker := NewWorker(cli, prompt.NewLoader(t.TempDir()), WithRecorder(recorder))

	_, err = worker.Work(context.Background(), issueflow.WorkRequest{
		RunID:     "run-3",
		Issue:     &issueflow.Issue{ID: "QX-7", Title: "Fix foo handling"},
		Stage:     issueflow.StageImplementing,
		Attempt:   1,
		Workspace: &workspace.Workspace{Path: t.TempDir()},
	})
	if err != nil {
		t.Fatalf("Work() error = %v", err)
	}

	tr, err := recorder.Load("run-3")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(tr.Entries) != 1 {
		t.Fatalf("Entries = %d, want 1", len(tr.Entries))
	}
	e := tr.Entries[0]
	if e.Stage != issueflow.StageImplementing || e.Attempt != 1 {
		t.Errorf("entry = %+v", e)
	}
	if e.Outcome != issueflow.OutcomeComplete {
		t.Errorf("Outcome = %q, want complete", e.Outcome)
	}
	if e.TokensIn != 1200 || e.TokensOut != 300 {
		t.Errorf("tokens = %d/%d, want 1200/300", e.TokensIn, e.TokensOut)
	}
	if e.Model == "" {
		t.Error("model not recorded")
	}
}

func TestWorker_CompleteWithoutVerdict(t *testing.T) {
	bin := stubAgent(t, `{"result":"refined the issue into five acceptance criteria"}`)

	cli, err := NewCLI(Config{BinaryPath: bin, Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("NewCLI() error = %v", err)
	}

	worker := NewWorker(cli, prompt.NewLoader(t.TempDir()))
	outcome, err := worker.Work(context.Background(), issueflow.WorkRequest{
		RunID:     "run-2",
		Issue:     &issueflow.Issue{ID: "QX-8", Title: "Add bar"},
		Stage:     issueflow.StageRefining,
		Attempt:   1,
		Workspace: &workspace.Workspace{Path: t.TempDir()},
	})
	if err != nil {
		t.Fatalf("Work() error = %v", err)
	}
	if outcome.Kind != issueflow.OutcomeComplete {
		t.Errorf("Kind = %q", outcome.Kind)
	}
}

func TestWorker_RegisterAllCoversEveryCapability(t *testing.T) {
	bin := stubAgent(t, `{}`)
	cli, err := NewCLI(Config{BinaryPath: bin})
	if err != nil {
		t.Fatalf("NewCLI() error = %v", err)
	}

	registry := issueflow.NewWorkerRegistry()
	NewWorker(cli, prompt.NewLoader(t.TempDir())).RegisterAll(registry)

	if got := len(registry.Capabilities()); got != 6 {
		t.Errorf("capabilities registered = %d, want 6", got)
	}
}
