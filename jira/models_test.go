package jira

import (
	"errors"
	"testing"
	"time"
)

func TestValidateIssueKey(t *testing.T) {
	valid := []string{"QX-1", "PROJ-123", "A2B-9999"}
	for _, key := range valid {
		if err := ValidateIssueKey(key); err != nil {
			t.Errorf("ValidateIssueKey(%q) = %v, want nil", key, err)
		}
	}

	invalid := []string{"", "qx-1", "QX", "QX-", "-123", "1QX-2", "QX 7"}
	for _, key := range invalid {
		if err := ValidateIssueKey(key); !errors.Is(err, ErrIssueKeyInvalid) {
			t.Errorf("ValidateIssueKey(%q) = %v, want ErrIssueKeyInvalid", key, err)
		}
	}
}

func TestParseTime(t *testing.T) {
	tests := []string{
		"2026-08-20T14:30:00.000+0200",
		"2026-08-20T14:30:00+0200",
		"2026-08-20T14:30:00+02:00",
	}
	for _, s := range tests {
		parsed, err := ParseTime(s)
		if err != nil {
			t.Errorf("ParseTime(%q) error = %v", s, err)
			continue
		}
		if parsed.Hour() != 14 || parsed.Minute() != 30 {
			t.Errorf("ParseTime(%q) = %v", s, parsed)
		}
	}

	if _, err := ParseTime("yesterday"); err == nil {
		t.Error("ParseTime(\"yesterday\") should fail")
	}
}

func TestFormatTimeRoundTrips(t *testing.T) {
	now := time.Date(2026, 8, 20, 14, 30, 0, 0, time.UTC)
	parsed, err := ParseTime(FormatTime(now))
	if err != nil {
		t.Fatalf("ParseTime() error = %v", err)
	}
	if !parsed.Equal(now) {
		t.Errorf("round trip = %v, want %v", parsed, now)
	}
}

func TestPlainDescription(t *testing.T) {
	adf := map[string]any{
		"version": 1,
		"type":    "doc",
		"content": []any{
			map[string]any{
				"type": "paragraph",
				"content": []any{
					map[string]any{"type": "text", "text": "First line."},
				},
			},
			map[string]any{
				"type": "paragraph",
				"content": []any{
					map[string]any{"type": "text", "text": "Second line."},
				},
			},
		},
	}

	issue := &Issue{Fields: IssueFields{Description: adf}}
	if got := issue.PlainDescription(); got != "First line.\nSecond line." {
		t.Errorf("PlainDescription() = %q", got)
	}

	issue = &Issue{Fields: IssueFields{Description: "plain text body"}}
	if got := issue.PlainDescription(); got != "plain text body" {
		t.Errorf("PlainDescription() = %q", got)
	}

	issue = &Issue{}
	if got := issue.PlainDescription(); got != "" {
		t.Errorf("PlainDescription() = %q, want empty", got)
	}
}

func TestADFDocumentPlainText(t *testing.T) {
	doc := NewADFDocument()
	doc.AddParagraph("Run complete.")
	doc.AddCodeBlock("go test ./...", "bash")

	got := doc.PlainText()
	want := "Run complete.\ngo test ./..."
	if got != want {
		t.Errorf("PlainText() = %q, want %q", got, want)
	}
}

func TestTextDocumentSplitsLines(t *testing.T) {
	doc := TextDocument("line one\nline two")
	if len(doc.Content) != 2 {
		t.Fatalf("len(Content) = %d, want 2", len(doc.Content))
	}
	if doc.Content[0].Type != "paragraph" {
		t.Errorf("Content[0].Type = %q", doc.Content[0].Type)
	}
}

func TestToPipelineIssue(t *testing.T) {
	issue := &Issue{
		Key:  "QX-7",
		Self: "https://example.atlassian.net/rest/api/3/issue/10001",
		Fields: IssueFields{
			Summary:     "Fix foo handling",
			Description: "The foo handler drops requests.",
			Labels:      []string{"backend"},
			Priority:    &Priority{Name: "High"},
			Reporter:    &User{DisplayName: "Dana"},
			Status:      &Status{Name: "To Do"},
		},
	}

	out := issue.ToPipelineIssue()
	if out.ID != "QX-7" {
		t.Errorf("ID = %q", out.ID)
	}
	if out.Title != "Fix foo handling" {
		t.Errorf("Title = %q", out.Title)
	}
	if out.Priority != "High" {
		t.Errorf("Priority = %q", out.Priority)
	}
	if out.Metadata["jira_status"] != "To Do" {
		t.Errorf("Metadata = %v", out.Metadata)
	}
}
