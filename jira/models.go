package jira

import (
	"regexp"
	"time"

	issueflow "github.com/randalmurphal/issueflow"
)

// Issue represents a Jira issue.
type Issue struct {
	ID     string      `json:"id"`
	Key    string      `json:"key"`
	Self   string      `json:"self"`
	Fields IssueFields `json:"fields"`
}

// IssueFields holds the fields of an issue. Description is untyped
// because Cloud (v3) returns an ADF tree while Server (v2) returns a
// plain string.
type IssueFields struct {
	Summary     string     `json:"summary"`
	Description any        `json:"description,omitempty"`
	Status      *Status    `json:"status,omitempty"`
	Priority    *Priority  `json:"priority,omitempty"`
	IssueType   *IssueType `json:"issuetype,omitempty"`
	Reporter    *User      `json:"reporter,omitempty"`
	Labels      []string   `json:"labels,omitempty"`
	Created     string     `json:"created,omitempty"`
	Updated     string     `json:"updated,omitempty"`
}

// User represents a Jira user.
type User struct {
	AccountID    string `json:"accountId,omitempty"`
	Name         string `json:"name,omitempty"` // Server only
	EmailAddress string `json:"emailAddress,omitempty"`
	DisplayName  string `json:"displayName,omitempty"`
}

// Status represents an issue status.
type Status struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	StatusCategory *StatusCategory `json:"statusCategory,omitempty"`
}

// StatusCategory groups statuses: "new", "indeterminate", "done".
type StatusCategory struct {
	ID   int    `json:"id"`
	Key  string `json:"key"`
	Name string `json:"name"`
}

// Priority represents an issue priority.
type Priority struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// IssueType represents an issue type.
type IssueType struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Subtask bool   `json:"subtask,omitempty"`
}

// Transition represents an available workflow transition.
type Transition struct {
	ID   string  `json:"id"`
	Name string  `json:"name"`
	To   *Status `json:"to,omitempty"`
}

// TransitionsResponse is the response from the transitions endpoint.
type TransitionsResponse struct {
	Transitions []Transition `json:"transitions"`
}

// TransitionRequest performs a workflow transition.
type TransitionRequest struct {
	Transition TransitionRef `json:"transition"`
}

// TransitionRef identifies a transition by ID.
type TransitionRef struct {
	ID string `json:"id"`
}

// Comment represents an issue comment.
type Comment struct {
	ID      string `json:"id"`
	Author  *User  `json:"author,omitempty"`
	Body    any    `json:"body"` // ADF on v3, string on v2
	Created string `json:"created,omitempty"`
}

// CommentsResponse is the paginated comment list response.
type CommentsResponse struct {
	StartAt    int       `json:"startAt"`
	MaxResults int       `json:"maxResults"`
	Total      int       `json:"total"`
	Comments   []Comment `json:"comments"`
}

// SearchResponse is the response from a JQL search.
type SearchResponse struct {
	StartAt    int     `json:"startAt"`
	MaxResults int     `json:"maxResults"`
	Total      int     `json:"total"`
	Issues     []Issue `json:"issues"`
}

var issueKeyPattern = regexp.MustCompile(`^[A-Z][A-Z0-9]*-\d+$`)

// ValidateIssueKey checks that the key matches the PROJECT-123 format.
func ValidateIssueKey(key string) error {
	if !issueKeyPattern.MatchString(key) {
		return ErrIssueKeyInvalid
	}
	return nil
}

// Jira timestamp formats. Cloud returns RFC3339-ish with numeric zone
// and milliseconds; Server sometimes omits the milliseconds.
var timeFormats = []string{
	"2006-01-02T15:04:05.000-0700",
	"2006-01-02T15:04:05-0700",
	time.RFC3339,
}

// ParseTime parses a Jira timestamp.
func ParseTime(s string) (time.Time, error) {
	var err error
	for _, format := range timeFormats {
		var t time.Time
		if t, err = time.Parse(format, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, err
}

// FormatTime formats a time in the Jira Cloud timestamp format.
func FormatTime(t time.Time) string {
	return t.Format(timeFormats[0])
}

// PlainDescription returns the issue description as plain text
// regardless of API version.
func (i *Issue) PlainDescription() string {
	return adfPlainText(i.Fields.Description)
}

// ToPipelineIssue converts a Jira issue into the pipeline's issue type.
func (i *Issue) ToPipelineIssue() *issueflow.Issue {
	out := &issueflow.Issue{
		ID:          i.Key,
		Title:       i.Fields.Summary,
		Description: i.PlainDescription(),
		Labels:      i.Fields.Labels,
		URL:         i.Self,
	}
	if i.Fields.Priority != nil {
		out.Priority = i.Fields.Priority.Name
	}
	if i.Fields.Reporter != nil {
		out.Reporter = i.Fields.Reporter.DisplayName
	}
	if i.Fields.Status != nil {
		out.Metadata = map[string]string{"jira_status": i.Fields.Status.Name}
	}
	return out
}
