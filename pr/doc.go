// Package pr provides code-hosting operations for the pipeline's terminal
// phase: creating pull requests, polling review decisions, and merging.
//
// Core types:
//   - Provider: interface for creating, reviewing, and merging pull requests
//   - Options: configuration for creating a pull request
//   - PullRequest: a created pull request with URL and number
//   - Decision: the review decision (pending, approved, rejected)
//   - Builder: fluent builder for constructing PR options
//
// Implementations:
//   - GitHubProvider: GitHub via go-github
//   - GitLabProvider: GitLab merge requests via go-gitlab
//   - MockProvider: in-memory provider for tests
package pr
