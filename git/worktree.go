package git

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// WorktreeInfo represents an active git worktree.
type WorktreeInfo struct {
	Path   string // Filesystem path to the worktree
	Branch string // Branch checked out in the worktree
	Commit string // HEAD commit SHA
}

// CreateWorktree creates an isolated worktree for the branch.
// If the branch doesn't exist, it is created at HEAD.
// Returns the path to the worktree directory.
func (g *Context) CreateWorktree(branch string) (string, error) {
	safeName := SanitizeBranchName(branch)
	worktreePath := filepath.Join(g.repoPath, g.worktreeDir, safeName)

	if _, err := os.Stat(worktreePath); err == nil {
		return "", ErrWorktreeExists
	}

	worktreesDir := filepath.Join(g.repoPath, g.worktreeDir)
	if err := os.MkdirAll(worktreesDir, 0755); err != nil {
		return "", fmt.Errorf("create worktrees dir: %w", err)
	}

	// Try to create worktree with a new branch; fall back to an existing one.
	_, err := g.runGit("worktree", "add", "-b", branch, worktreePath, "HEAD")
	if err != nil {
		_, err = g.runGit("worktree", "add", worktreePath, branch)
		if err != nil {
			if strings.Contains(err.Error(), "not a valid reference") ||
				strings.Contains(err.Error(), "invalid reference") {
				return "", fmt.Errorf("branch %q does not exist and could not be created: %w", branch, err)
			}
			return "", &Error{Op: "create worktree", Err: err}
		}
	}

	return worktreePath, nil
}

// CreateWorktreeFrom creates a worktree with a new branch starting at
// startRef instead of HEAD. Used when resuming from a surviving remote
// branch so local work continues from the pushed tip.
func (g *Context) CreateWorktreeFrom(branch, startRef string) (string, error) {
	safeName := SanitizeBranchName(branch)
	worktreePath := filepath.Join(g.repoPath, g.worktreeDir, safeName)

	if _, err := os.Stat(worktreePath); err == nil {
		return "", ErrWorktreeExists
	}

	worktreesDir := filepath.Join(g.repoPath, g.worktreeDir)
	if err := os.MkdirAll(worktreesDir, 0755); err != nil {
		return "", fmt.Errorf("create worktrees dir: %w", err)
	}

	if _, err := g.runGit("worktree", "add", "-b", branch, worktreePath, startRef); err != nil {
		return "", &Error{Op: "create worktree", Err: err}
	}

	return worktreePath, nil
}

// RemoveWorktree removes a worktree and its registration.
// Removing an already-removed worktree returns ErrWorktreeNotFound.
func (g *Context) RemoveWorktree(worktreePath string) error {
	if _, err := os.Stat(worktreePath); os.IsNotExist(err) {
		return ErrWorktreeNotFound
	}

	_, err := g.runGit("worktree", "remove", worktreePath)
	if err != nil {
		// Force remove if normal fails (uncommitted changes, etc.)
		_, err = g.runGit("worktree", "remove", "--force", worktreePath)
		if err != nil {
			return &Error{Op: "remove worktree", Err: err}
		}
	}

	return nil
}

// ListWorktrees returns all active worktrees.
func (g *Context) ListWorktrees() ([]WorktreeInfo, error) {
	output, err := g.runGit("worktree", "list", "--porcelain")
	if err != nil {
		return nil, &Error{Op: "list worktrees", Err: err}
	}

	var worktrees []WorktreeInfo
	var current WorktreeInfo

	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			if current.Path != "" {
				worktrees = append(worktrees, current)
				current = WorktreeInfo{}
			}
			continue
		}

		switch {
		case strings.HasPrefix(line, "worktree "):
			current.Path = strings.TrimPrefix(line, "worktree ")
		case strings.HasPrefix(line, "HEAD "):
			current.Commit = strings.TrimPrefix(line, "HEAD ")
		case strings.HasPrefix(line, "branch "):
			// Format: branch refs/heads/branch-name
			ref := strings.TrimPrefix(line, "branch ")
			current.Branch = strings.TrimPrefix(ref, "refs/heads/")
		case line == "detached":
			current.Branch = "(detached)"
		}
	}

	if current.Path != "" {
		worktrees = append(worktrees, current)
	}

	return worktrees, nil
}

// FindWorktree returns information about the worktree holding a branch.
func (g *Context) FindWorktree(branch string) (*WorktreeInfo, error) {
	worktrees, err := g.ListWorktrees()
	if err != nil {
		return nil, err
	}

	for _, wt := range worktrees {
		if wt.Branch == branch {
			return &wt, nil
		}
	}

	return nil, ErrWorktreeNotFound
}

// PruneWorktrees removes stale worktree administrative files.
func (g *Context) PruneWorktrees() error {
	if _, err := g.runGit("worktree", "prune"); err != nil {
		return &Error{Op: "prune worktrees", Err: err}
	}
	return nil
}
