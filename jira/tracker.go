package jira

import (
	"context"

	issueflow "github.com/randalmurphal/issueflow"
)

// DefaultTransitionNames maps pipeline stages to the transition names
// of a stock Jira software workflow. Stages without an entry are not
// mirrored.
var DefaultTransitionNames = map[issueflow.Stage]string{
	issueflow.StageRefining: "In Progress",
	issueflow.StageInReview: "In Review",
	issueflow.StageDone:     "Done",
}

// Tracker mirrors pipeline progress into Jira. It implements
// issueflow.IssueTracker.
type Tracker struct {
	client      *Client
	transitions map[issueflow.Stage]string
}

// TrackerOption configures a Tracker.
type TrackerOption func(*Tracker)

// WithTransitionNames overrides the stage-to-transition mapping, for
// projects with customized workflows.
func WithTransitionNames(names map[issueflow.Stage]string) TrackerOption {
	return func(t *Tracker) {
		t.transitions = names
	}
}

// NewTracker creates a Tracker backed by the given client.
func NewTracker(client *Client, opts ...TrackerOption) *Tracker {
	t := &Tracker{
		client:      client,
		transitions: DefaultTransitionNames,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// TransitionState moves the Jira issue to the workflow state mapped to
// the pipeline stage. Unmapped stages are a no-op.
func (t *Tracker) TransitionState(ctx context.Context, issueID, state string) error {
	name, ok := t.transitions[issueflow.Stage(state)]
	if !ok {
		return nil
	}
	return t.client.TransitionIssueByName(ctx, issueID, name)
}

// PostComment adds a comment to the Jira issue.
func (t *Tracker) PostComment(ctx context.Context, issueID, text string) error {
	_, err := t.client.AddComment(ctx, issueID, text)
	return err
}
