package issueflow

import "context"

// IssueTracker mirrors pipeline progress into the external tracker the
// issue came from. Calls are best-effort: the pipeline never blocks or
// fails on tracker errors.
//
// The jira package provides the Jira implementation.
type IssueTracker interface {
	// TransitionState moves the tracker issue to the named state.
	TransitionState(ctx context.Context, issueID, state string) error

	// PostComment adds a comment to the tracker issue.
	PostComment(ctx context.Context, issueID, text string) error
}
