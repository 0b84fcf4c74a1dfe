package git

import (
	"fmt"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
)

// Context manages git operations for a repository.
type Context struct {
	repoPath    string        // Path to the main repository
	worktreeDir string        // Directory where worktrees are created
	workDir     string        // Current working directory for commands (defaults to repoPath)
	remote      string        // Remote name (defaults to "origin")
	runner      CommandRunner // Command runner (defaults to ExecRunner)
}

// Option configures Context.
type Option func(*Context)

// NewContext creates a new git context for the repository.
// It validates that the path is a git repository and applies any options.
func NewContext(repoPath string, opts ...Option) (*Context, error) {
	absPath, err := filepath.Abs(repoPath)
	if err != nil {
		return nil, fmt.Errorf("resolve path: %w", err)
	}

	cmd := exec.Command("git", "rev-parse", "--git-dir")
	cmd.Dir = absPath
	if err := cmd.Run(); err != nil {
		return nil, ErrNotGitRepo
	}

	g := &Context{
		repoPath:    absPath,
		worktreeDir: ".worktrees",
		workDir:     absPath,
		remote:      "origin",
		runner:      NewExecRunner(),
	}

	for _, opt := range opts {
		opt(g)
	}

	return g, nil
}

// WithWorktreeDir sets the directory where worktrees are created.
// Default is ".worktrees" relative to the repository root.
func WithWorktreeDir(dir string) Option {
	return func(g *Context) {
		g.worktreeDir = dir
	}
}

// WithRemote sets the remote name used by push/pull/delete operations.
func WithRemote(remote string) Option {
	return func(g *Context) {
		g.remote = remote
	}
}

// WithRunner sets a custom command runner for git operations.
// This is primarily used for testing to inject mock command execution.
func WithRunner(runner CommandRunner) Option {
	return func(g *Context) {
		g.runner = runner
	}
}

// RepoPath returns the path to the main repository.
func (g *Context) RepoPath() string {
	return g.repoPath
}

// WorkDir returns the current working directory for git commands.
// This is the repo path unless working in a worktree.
func (g *Context) WorkDir() string {
	return g.workDir
}

// Remote returns the remote name used by this context.
func (g *Context) Remote() string {
	return g.remote
}

// WorktreeDir returns the path to the worktrees directory.
func (g *Context) WorktreeDir() string {
	return filepath.Join(g.repoPath, g.worktreeDir)
}

// InWorktree returns a new Context that operates in the specified worktree.
func (g *Context) InWorktree(worktreePath string) *Context {
	return &Context{
		repoPath:    g.repoPath,
		worktreeDir: g.worktreeDir,
		workDir:     worktreePath,
		remote:      g.remote,
		runner:      g.runner,
	}
}

// CurrentBranch returns the current branch name.
func (g *Context) CurrentBranch() (string, error) {
	branch, err := g.runGit("rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", &Error{Op: "get current branch", Err: err}
	}
	return branch, nil
}

// Checkout switches to the specified ref (branch, tag, or commit).
func (g *Context) Checkout(ref string) error {
	if _, err := g.runGit("checkout", ref); err != nil {
		return &Error{Op: "checkout", Err: err}
	}
	return nil
}

// CreateBranch creates a new branch at HEAD.
func (g *Context) CreateBranch(name string) error {
	if _, err := g.runGit("branch", name); err != nil {
		if strings.Contains(err.Error(), "already exists") {
			return ErrBranchExists
		}
		return &Error{Op: "create branch", Err: err}
	}
	return nil
}

// DeleteBranch deletes a local branch. If force is true, uses -D instead of -d.
// Returns ErrBranchNotFound if the branch is already gone.
func (g *Context) DeleteBranch(name string, force bool) error {
	flag := "-d"
	if force {
		flag = "-D"
	}
	if _, err := g.runGit("branch", flag, name); err != nil {
		if strings.Contains(err.Error(), "not found") {
			return ErrBranchNotFound
		}
		return &Error{Op: "delete branch", Err: err}
	}
	return nil
}

// DeleteRemoteBranch deletes a branch on the remote.
// Returns ErrRemoteBranchNotFound if the branch is already gone.
func (g *Context) DeleteRemoteBranch(name string) error {
	if _, err := g.runGit("push", g.remote, "--delete", name); err != nil {
		if strings.Contains(err.Error(), "remote ref does not exist") {
			return ErrRemoteBranchNotFound
		}
		return &Error{Op: "delete remote branch", Err: err}
	}
	return nil
}

// BranchExists checks if a local branch exists.
func (g *Context) BranchExists(name string) bool {
	_, err := g.runGit("rev-parse", "--verify", "refs/heads/"+name)
	return err == nil
}

// RemoteBranchExists checks if the branch exists on the remote-tracking refs.
func (g *Context) RemoteBranchExists(name string) bool {
	_, err := g.runGit("rev-parse", "--verify", "refs/remotes/"+g.remote+"/"+name)
	return err == nil
}

// BranchTip returns the commit SHA a branch points at.
func (g *Context) BranchTip(name string) (string, error) {
	sha, err := g.runGit("rev-parse", "--verify", "refs/heads/"+name)
	if err != nil {
		return "", ErrBranchNotFound
	}
	return sha, nil
}

// StageAll stages all changes (git add -A).
func (g *Context) StageAll() error {
	if _, err := g.runGit("add", "-A"); err != nil {
		return &Error{Op: "stage all", Err: err}
	}
	return nil
}

// Commit creates a commit with the given message.
// Returns ErrNothingToCommit if there are no staged changes.
func (g *Context) Commit(message string) error {
	output, err := g.runGit("commit", "-m", message)
	if err != nil {
		if strings.Contains(output, "nothing to commit") ||
			strings.Contains(err.Error(), "nothing to commit") {
			return ErrNothingToCommit
		}
		return &Error{Op: "commit", Output: output, Err: err}
	}
	return nil
}

// Push pushes the branch to the remote.
// If setUpstream is true, uses -u to set upstream tracking.
func (g *Context) Push(branch string, setUpstream bool) error {
	args := []string{"push"}
	if setUpstream {
		args = append(args, "-u")
	}
	args = append(args, g.remote, branch)

	if _, err := g.runGit(args...); err != nil {
		return &Error{Op: "push", Err: err}
	}
	return nil
}

// Pull pulls changes from the remote for the current branch.
func (g *Context) Pull() error {
	if _, err := g.runGit("pull", g.remote); err != nil {
		return &Error{Op: "pull", Err: err}
	}
	return nil
}

// PullPrune pulls and prunes stale remote-tracking refs in one step.
func (g *Context) PullPrune() error {
	if _, err := g.runGit("pull", "--prune", g.remote); err != nil {
		return &Error{Op: "pull prune", Err: err}
	}
	return nil
}

// PruneRemote removes stale remote-tracking refs.
func (g *Context) PruneRemote() error {
	if _, err := g.runGit("remote", "prune", g.remote); err != nil {
		return &Error{Op: "prune remote", Err: err}
	}
	return nil
}

// Fetch fetches updates from the remote.
func (g *Context) Fetch() error {
	if _, err := g.runGit("fetch", g.remote); err != nil {
		return &Error{Op: "fetch", Err: err}
	}
	return nil
}

// Status returns the working tree status in short format.
func (g *Context) Status() (string, error) {
	status, err := g.runGit("status", "--short")
	if err != nil {
		return "", &Error{Op: "status", Err: err}
	}
	return status, nil
}

// IsClean returns true if the working tree has no uncommitted changes.
func (g *Context) IsClean() (bool, error) {
	status, err := g.Status()
	if err != nil {
		return false, err
	}
	return status == "", nil
}

// HeadCommit returns the current HEAD commit SHA.
func (g *Context) HeadCommit() (string, error) {
	sha, err := g.runGit("rev-parse", "HEAD")
	if err != nil {
		return "", &Error{Op: "get HEAD commit", Err: err}
	}
	return sha, nil
}

// GetRemoteURL returns the URL of the configured remote.
func (g *Context) GetRemoteURL() (string, error) {
	url, err := g.runGit("remote", "get-url", g.remote)
	if err != nil {
		return "", &Error{Op: "get remote URL", Err: err}
	}
	return url, nil
}

// runGit executes a git command and returns stdout.
func (g *Context) runGit(args ...string) (string, error) {
	return g.runner.Run(g.workDir, "git", args...)
}

// SanitizeBranchName converts a branch name to a safe directory name.
func SanitizeBranchName(branch string) string {
	safe := strings.ReplaceAll(branch, "/", "-")
	safe = strings.ToLower(safe)
	safe = regexp.MustCompile(`[^a-z0-9-]`).ReplaceAllString(safe, "")
	safe = regexp.MustCompile(`-+`).ReplaceAllString(safe, "-")
	safe = strings.Trim(safe, "-")
	return safe
}
