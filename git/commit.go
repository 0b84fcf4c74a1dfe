package git

import (
	"fmt"
	"strings"
)

// CommitType represents the type of change in a commit.
type CommitType string

const (
	CommitTypeFeat     CommitType = "feat"
	CommitTypeFix      CommitType = "fix"
	CommitTypeDocs     CommitType = "docs"
	CommitTypeRefactor CommitType = "refactor"
	CommitTypeTest     CommitType = "test"
	CommitTypeChore    CommitType = "chore"
)

// CommitMessage represents a structured commit message following conventional commits.
type CommitMessage struct {
	Type      CommitType // Required: type of change (feat, fix, etc.)
	Scope     string     // Optional: area of codebase affected
	Subject   string     // Required: short description (imperative mood)
	Body      string     // Optional: detailed explanation
	IssueRefs []string   // Optional: issue references (QX-7, TK-421)
}

// NewCommitMessage creates a commit message.
func NewCommitMessage(typ CommitType, subject string) *CommitMessage {
	return &CommitMessage{
		Type:    typ,
		Subject: subject,
	}
}

// WithScope adds a scope to the commit message.
func (c *CommitMessage) WithScope(scope string) *CommitMessage {
	c.Scope = scope
	return c
}

// WithBody adds a body to the commit message.
func (c *CommitMessage) WithBody(body string) *CommitMessage {
	c.Body = body
	return c
}

// WithIssueRef adds an issue reference trailer.
func (c *CommitMessage) WithIssueRef(ref string) *CommitMessage {
	c.IssueRefs = append(c.IssueRefs, ref)
	return c
}

// String formats the commit message following conventional commit format.
func (c *CommitMessage) String() string {
	var b strings.Builder

	b.WriteString(string(c.Type))
	if c.Scope != "" {
		b.WriteString("(")
		b.WriteString(c.Scope)
		b.WriteString(")")
	}
	b.WriteString(": ")
	b.WriteString(c.Subject)

	if c.Body != "" {
		b.WriteString("\n\n")
		b.WriteString(c.Body)
	}

	if len(c.IssueRefs) > 0 {
		b.WriteString("\n\n")
		for i, ref := range c.IssueRefs {
			if i > 0 {
				b.WriteString("\n")
			}
			b.WriteString("Refs: ")
			b.WriteString(ref)
		}
	}

	return b.String()
}

// Validate checks the message has the required parts.
func (c *CommitMessage) Validate() error {
	if c.Type == "" {
		return fmt.Errorf("commit type is required")
	}
	if c.Subject == "" {
		return fmt.Errorf("commit subject is required")
	}
	if len(c.Subject) > 72 {
		return fmt.Errorf("commit subject exceeds 72 characters")
	}
	return nil
}
