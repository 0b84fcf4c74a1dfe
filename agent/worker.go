package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	issueflow "github.com/randalmurphal/issueflow"
	"github.com/randalmurphal/issueflow/artifact"
	"github.com/randalmurphal/issueflow/prompt"
	"github.com/randalmurphal/issueflow/transcript"
)

// Verdict markers the stage prompts ask the agent to end its output
// with. Anything else counts as success.
const (
	verdictPrefix  = "RESULT:"
	verdictOK      = "ok"
	verdictFail    = "fail"
	verdictBlocked = "blocked"
)

// Worker runs the agent CLI for every stage capability. It implements
// issueflow.StageWorker.
type Worker struct {
	cli       *CLI
	prompts   *prompt.Loader
	artifacts *artifact.Manager
	recorder  *transcript.Recorder
	logger    *slog.Logger
}

// WorkerOption configures a Worker.
type WorkerOption func(*Worker)

// WithArtifacts stores agent transcripts under the run's artifact
// directory.
func WithArtifacts(m *artifact.Manager) WorkerOption {
	return func(w *Worker) { w.artifacts = m }
}

// WithRecorder records a per-stage transcript entry for every agent
// invocation.
func WithRecorder(r *transcript.Recorder) WorkerOption {
	return func(w *Worker) { w.recorder = r }
}

// WithLogger sets the worker's logger.
func WithLogger(logger *slog.Logger) WorkerOption {
	return func(w *Worker) { w.logger = logger }
}

// NewWorker creates a stage worker around the agent CLI.
func NewWorker(cli *CLI, prompts *prompt.Loader, opts ...WorkerOption) *Worker {
	w := &Worker{
		cli:     cli,
		prompts: prompts,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// RegisterAll binds the worker to every stage capability in the
// registry.
func (w *Worker) RegisterAll(registry *issueflow.WorkerRegistry) {
	for _, c := range []issueflow.Capability{
		issueflow.CapabilityRefine,
		issueflow.CapabilityArchitect,
		issueflow.CapabilityDesign,
		issueflow.CapabilityImplement,
		issueflow.CapabilityTest,
		issueflow.CapabilityVerify,
	} {
		registry.Register(c, w)
	}
}

// Work renders the stage prompt, runs the agent inside the issue
// workspace, and maps its verdict to an outcome.
func (w *Worker) Work(ctx context.Context, req issueflow.WorkRequest) (issueflow.Outcome, error) {
	stagePrompt, err := w.prompts.ForStage(req.Stage, req.Issue, req.Attempt)
	if err != nil {
		return issueflow.Outcome{}, fmt.Errorf("stage prompt: %w", err)
	}

	capability := req.Stage.Capability()
	model := string(SelectModel(capability))
	result, err := w.cli.Run(ctx, stagePrompt,
		WithWorkDir(req.Workspace.Path),
		WithModel(model),
	)
	if err != nil {
		if errors.Is(err, ErrTimeout) {
			return issueflow.Failed(err.Error()), nil
		}
		return issueflow.Outcome{}, err
	}

	w.saveTranscript(req, result)

	w.logger.Info("agent stage finished",
		"issue", req.Issue.ID,
		"stage", req.Stage,
		"attempt", req.Attempt,
		"tokens_in", result.TokensIn,
		"tokens_out", result.TokensOut,
		"duration", result.Duration,
	)

	outcome := outcomeFromOutput(result.Output)
	w.recordEntry(req, result, model, outcome)
	return outcome, nil
}

// recordEntry appends the invocation to the run's transcript, best
// effort.
func (w *Worker) recordEntry(req issueflow.WorkRequest, result *Result, model string, outcome issueflow.Outcome) {
	if w.recorder == nil {
		return
	}
	err := w.recorder.Record(req.RunID, req.Issue.ID, transcript.Entry{
		Stage:      req.Stage,
		Attempt:    req.Attempt,
		Model:      model,
		Outcome:    outcome.Kind,
		Detail:     outcome.Detail,
		TokensIn:   result.TokensIn,
		TokensOut:  result.TokensOut,
		Cost:       result.Cost,
		DurationMs: result.Duration.Milliseconds(),
	})
	if err != nil {
		w.logger.Warn("record transcript entry failed", "run", req.RunID, "error", err)
	}
}

// saveTranscript stores the agent output as a run artifact, best
// effort.
func (w *Worker) saveTranscript(req issueflow.WorkRequest, result *Result) {
	if w.artifacts == nil {
		return
	}
	name := fmt.Sprintf("%s-attempt-%d.txt", req.Stage, req.Attempt)
	if err := w.artifacts.Save(req.RunID, name, []byte(result.Output)); err != nil {
		w.logger.Warn("save transcript failed", "run", req.RunID, "artifact", name, "error", err)
	}
}

// outcomeFromOutput reads the agent's verdict from the last RESULT:
// line of its output. Output without a verdict counts as complete.
func outcomeFromOutput(output string) issueflow.Outcome {
	lines := strings.Split(strings.TrimSpace(output), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if !strings.HasPrefix(line, verdictPrefix) {
			continue
		}

		verdict := strings.TrimSpace(strings.TrimPrefix(line, verdictPrefix))
		word, detail, _ := strings.Cut(verdict, " ")
		detail = strings.TrimSpace(detail)

		switch strings.ToLower(word) {
		case verdictOK:
			return issueflow.Complete(detail)
		case verdictFail:
			return issueflow.Failed(detail)
		case verdictBlocked:
			return issueflow.Fatal(detail)
		}
		break
	}
	return issueflow.Complete(summarize(output))
}

// summarize returns the first non-empty line of the output.
func summarize(output string) string {
	for _, line := range strings.Split(output, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}
