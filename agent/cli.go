package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// Agent CLI errors.
var (
	// ErrNotFound indicates the agent binary was not found on PATH.
	ErrNotFound = errors.New("agent CLI not found")

	// ErrTimeout indicates the agent run exceeded its timeout.
	ErrTimeout = errors.New("agent CLI timed out")

	// ErrFailed indicates the agent exited with an error.
	ErrFailed = errors.New("agent CLI failed")
)

// CLI wraps the agent binary for structured invocation.
type CLI struct {
	binaryPath string
	extraArgs  []string
	model      string
	timeout    time.Duration
	maxTurns   int
}

// Config configures the agent CLI wrapper.
type Config struct {
	BinaryPath string        // default "claude"
	Args       []string      // extra arguments on every run
	Model      string        // default model, empty = agent default
	Timeout    time.Duration // default 30m
	MaxTurns   int           // default 25
}

// NewCLI creates an agent CLI wrapper. Returns ErrNotFound when the
// binary is not installed.
func NewCLI(cfg Config) (*CLI, error) {
	binaryPath := cfg.BinaryPath
	if binaryPath == "" {
		binaryPath = "claude"
	}
	if _, err := exec.LookPath(binaryPath); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, binaryPath)
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Minute
	}
	maxTurns := cfg.MaxTurns
	if maxTurns == 0 {
		maxTurns = 25
	}

	return &CLI{
		binaryPath: binaryPath,
		extraArgs:  cfg.Args,
		model:      cfg.Model,
		timeout:    timeout,
		maxTurns:   maxTurns,
	}, nil
}

// Result holds the output of one agent run.
type Result struct {
	Output    string
	TokensIn  int
	TokensOut int
	Cost      float64
	SessionID string
	Duration  time.Duration
	ExitCode  int
}

type runConfig struct {
	systemPrompt string
	workDir      string
	model        string
	timeout      time.Duration
	maxTurns     int
	sessionID    string
}

// RunOption configures one Run invocation.
type RunOption func(*runConfig)

// WithSystemPrompt sets the system prompt.
func WithSystemPrompt(prompt string) RunOption {
	return func(cfg *runConfig) { cfg.systemPrompt = prompt }
}

// WithWorkDir sets the working directory the agent runs in.
func WithWorkDir(dir string) RunOption {
	return func(cfg *runConfig) { cfg.workDir = dir }
}

// WithModel overrides the model for this run.
func WithModel(model string) RunOption {
	return func(cfg *runConfig) { cfg.model = model }
}

// WithTimeout overrides the timeout for this run.
func WithTimeout(d time.Duration) RunOption {
	return func(cfg *runConfig) { cfg.timeout = d }
}

// WithSession resumes a previous agent session.
func WithSession(sessionID string) RunOption {
	return func(cfg *runConfig) { cfg.sessionID = sessionID }
}

// Run executes the agent with the given prompt.
func (c *CLI) Run(ctx context.Context, prompt string, opts ...RunOption) (*Result, error) {
	cfg := &runConfig{
		model:    c.model,
		timeout:  c.timeout,
		maxTurns: c.maxTurns,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	args := c.buildArgs(cfg, prompt)

	ctx, cancel := context.WithTimeout(ctx, cfg.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, c.binaryPath, args...)
	if cfg.workDir != "" {
		cmd.Dir = cfg.workDir
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	duration := time.Since(start)

	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: after %v", ErrTimeout, cfg.timeout)
		}
		if errors.Is(ctx.Err(), context.Canceled) {
			return nil, ctx.Err()
		}
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%w: %s", ErrFailed, msg)
		}
		return nil, fmt.Errorf("%w: %v", ErrFailed, err)
	}

	result, err := parseOutput(stdout.Bytes())
	if err != nil {
		result = &Result{Output: strings.TrimSpace(stdout.String())}
	}
	result.Duration = duration
	if cmd.ProcessState != nil {
		result.ExitCode = cmd.ProcessState.ExitCode()
	}
	return result, nil
}

func (c *CLI) buildArgs(cfg *runConfig, prompt string) []string {
	args := []string{"--print", "--output-format", "json"}
	args = append(args, c.extraArgs...)

	if cfg.model != "" {
		args = append(args, "--model", cfg.model)
	}
	if cfg.systemPrompt != "" {
		args = append(args, "--system-prompt", cfg.systemPrompt)
	}
	if cfg.maxTurns > 0 {
		args = append(args, "--max-turns", fmt.Sprintf("%d", cfg.maxTurns))
	}
	if cfg.sessionID != "" {
		args = append(args, "--resume", cfg.sessionID)
	}

	return append(args, "-p", prompt)
}

type jsonOutput struct {
	Result       string  `json:"result"`
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	CostUSD      float64 `json:"cost_usd"`
	SessionID    string  `json:"session_id"`
}

// parseOutput parses the agent's JSON output, tolerating leading or
// trailing non-JSON noise.
func parseOutput(data []byte) (*Result, error) {
	data = bytes.TrimSpace(data)

	var output jsonOutput
	if err := json.Unmarshal(data, &output); err != nil {
		start := bytes.Index(data, []byte("{"))
		end := bytes.LastIndex(data, []byte("}"))
		if start < 0 || end <= start {
			return nil, fmt.Errorf("no json found in output")
		}
		if err := json.Unmarshal(data[start:end+1], &output); err != nil {
			return nil, fmt.Errorf("parse json output: %w", err)
		}
	}

	return &Result{
		Output:    output.Result,
		TokensIn:  output.InputTokens,
		TokensOut: output.OutputTokens,
		Cost:      output.CostUSD,
		SessionID: output.SessionID,
	}, nil
}
