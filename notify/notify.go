// Package notify delivers human-escalation events raised by the pipeline:
// quality-gate exhaustion, pull requests stuck awaiting manual merge, and
// terminal run outcomes.
package notify

import (
	"context"
	"time"
)

// EventType represents the type of pipeline event.
type EventType string

// Event type constants.
const (
	EventRunCompleted      EventType = "run_completed"
	EventRunFailed         EventType = "run_failed"
	EventGateExhausted     EventType = "gate_exhausted"
	EventManualMergeNeeded EventType = "manual_merge_needed"
)

// Channel hints which delivery transport an event should ride. A
// MultiNotifier routes on it; single-transport notifiers ignore it.
type Channel string

const (
	ChannelSMS   Channel = "sms"
	ChannelEmail Channel = "email"
)

// Severity constants for notification events.
const (
	SeverityCritical = "critical"
	SeverityError    = "error"
	SeverityWarning  = "warning"
	SeverityInfo     = "info"
)

// Event describes a pipeline event for notification.
type Event struct {
	Type      EventType      `json:"type"`
	Channel   Channel        `json:"channel,omitempty"`
	RunID     string         `json:"run_id"`
	IssueID   string         `json:"issue_id"`
	Stage     string         `json:"stage,omitempty"`
	Message   string         `json:"message"`
	Severity  string         `json:"severity"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Notifier sends notifications about pipeline events.
type Notifier interface {
	// Notify sends a notification. Implementations should be non-blocking
	// and handle errors gracefully (log, don't crash).
	Notify(ctx context.Context, event Event) error
}

type serviceContextKey string

const notifierServiceKey serviceContextKey = "issueflow.notifier"

// WithNotifier adds a Notifier to the context.
func WithNotifier(ctx context.Context, n Notifier) context.Context {
	return context.WithValue(ctx, notifierServiceKey, n)
}

// NotifierFromContext extracts the Notifier from context.
// Returns nil if no notifier is configured.
func NotifierFromContext(ctx context.Context) Notifier {
	if n, ok := ctx.Value(notifierServiceKey).(Notifier); ok {
		return n
	}
	return nil
}

// MustNotifierFromContext extracts the Notifier or panics.
func MustNotifierFromContext(ctx context.Context) Notifier {
	n := NotifierFromContext(ctx)
	if n == nil {
		panic("issueflow: Notifier not found in context")
	}
	return n
}
