// Package git provides the source-control operations the issue pipeline
// depends on: worktree lifecycle, branch management, commits, pushes, and
// remote cleanup.
//
// Core types:
//   - Context: Git operations bound to one repository (and optionally one worktree)
//   - CommandRunner: Interface for executing git commands (with mock for testing)
//   - BranchNamer: Deterministic issue branch names
//   - CommitMessage: Conventional commit message builder
//
// All operations shell out to the git binary; no libgit2 binding is required.
package git
