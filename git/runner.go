package git

import (
	"fmt"
	"os/exec"
	"strings"
)

// CommandRunner executes external commands.
// The production implementation shells out; tests inject a mock.
type CommandRunner interface {
	// Run executes the command in dir and returns trimmed stdout.
	// On failure the error includes the combined output.
	Run(dir, name string, args ...string) (string, error)
}

// ExecRunner runs commands via os/exec.
type ExecRunner struct{}

// NewExecRunner creates the default command runner.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{}
}

// Run implements CommandRunner.
func (r *ExecRunner) Run(dir, name string, args ...string) (string, error) {
	cmd := exec.Command(name, args...)
	cmd.Dir = dir

	output, err := cmd.CombinedOutput()
	out := strings.TrimSpace(string(output))
	if err != nil {
		if out != "" {
			return out, fmt.Errorf("%s %s: %s: %w", name, strings.Join(args, " "), out, err)
		}
		return out, fmt.Errorf("%s %s: %w", name, strings.Join(args, " "), err)
	}
	return out, nil
}

// MockRunner records commands and replays scripted responses.
// Responses are keyed by the joined argument string (e.g. "push origin feature/x").
type MockRunner struct {
	Responses map[string]MockResponse
	Calls     []MockCall
}

// MockResponse is a scripted result for a command.
type MockResponse struct {
	Output string
	Err    error
}

// MockCall records one invocation.
type MockCall struct {
	Dir  string
	Name string
	Args []string
}

// NewMockRunner creates an empty mock runner.
func NewMockRunner() *MockRunner {
	return &MockRunner{Responses: make(map[string]MockResponse)}
}

// Stub registers a response for the given argument string.
func (r *MockRunner) Stub(args string, output string, err error) {
	r.Responses[args] = MockResponse{Output: output, Err: err}
}

// Run implements CommandRunner.
func (r *MockRunner) Run(dir, name string, args ...string) (string, error) {
	r.Calls = append(r.Calls, MockCall{Dir: dir, Name: name, Args: args})
	key := strings.Join(args, " ")
	if resp, ok := r.Responses[key]; ok {
		return resp.Output, resp.Err
	}
	return "", nil
}

// CallCount returns how many times a command matching the argument string ran.
func (r *MockRunner) CallCount(args string) int {
	count := 0
	for _, c := range r.Calls {
		if strings.Join(c.Args, " ") == args {
			count++
		}
	}
	return count
}
