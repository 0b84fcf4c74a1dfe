package pr

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestBuilder(t *testing.T) {
	opts := NewBuilder("Fix foo handling").
		WithIssue("QX-7").
		WithHead("issue/qx-7-fix-foo-handling").
		WithBase("main").
		WithLabels("bug").
		Build()

	if opts.Title != "[QX-7] Fix foo handling" {
		t.Errorf("Title = %q, want %q", opts.Title, "[QX-7] Fix foo handling")
	}
	if opts.Head != "issue/qx-7-fix-foo-handling" {
		t.Errorf("Head = %q", opts.Head)
	}
	if opts.Base != "main" {
		t.Errorf("Base = %q, want main", opts.Base)
	}
	if len(opts.Labels) != 1 || opts.Labels[0] != "bug" {
		t.Errorf("Labels = %v", opts.Labels)
	}
}

func TestBuilder_WithSummary(t *testing.T) {
	opts := NewBuilder("Add retry budget").
		WithSummary("Adds a bounded retry budget.", []string{"gate.go"}, "go test ./...").
		Build()

	for _, want := range []string{"## Summary", "## Changes", "- gate.go", "## Test Plan"} {
		if !strings.Contains(opts.Body, want) {
			t.Errorf("body missing %q:\n%s", want, opts.Body)
		}
	}
}

func TestBuilder_AsDraft(t *testing.T) {
	opts := NewBuilder("WIP").AsDraft().Build()
	if !opts.Draft {
		t.Error("Draft should be true")
	}
}

func TestDetectProvider(t *testing.T) {
	tests := []struct {
		url     string
		want    string
		wantErr bool
	}{
		{"https://github.com/owner/repo.git", "github", false},
		{"git@github.com:owner/repo.git", "github", false},
		{"https://gitlab.com/group/project.git", "gitlab", false},
		{"https://gitlab.example.com/group/project.git", "gitlab", false},
		{"https://bitbucket.org/owner/repo.git", "bitbucket", false},
		{"https://example.com/owner/repo.git", "", true},
	}

	for _, tt := range tests {
		got, err := DetectProvider(tt.url)
		if (err != nil) != tt.wantErr {
			t.Errorf("DetectProvider(%q) error = %v, wantErr %v", tt.url, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("DetectProvider(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}

func TestParseRepoFromURL(t *testing.T) {
	tests := []struct {
		url       string
		wantOwner string
		wantRepo  string
		wantErr   bool
	}{
		{"https://github.com/octo/hello.git", "octo", "hello", false},
		{"git@github.com:octo/hello.git", "octo", "hello", false},
		{"https://github.com/octo/hello", "octo", "hello", false},
		{"not-a-url", "", "", true},
	}

	for _, tt := range tests {
		owner, repo, err := ParseRepoFromURL(tt.url)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseRepoFromURL(%q) error = %v, wantErr %v", tt.url, err, tt.wantErr)
			continue
		}
		if owner != tt.wantOwner || repo != tt.wantRepo {
			t.Errorf("ParseRepoFromURL(%q) = %q, %q, want %q, %q",
				tt.url, owner, repo, tt.wantOwner, tt.wantRepo)
		}
	}
}

func TestMockProvider_Lifecycle(t *testing.T) {
	m := NewMockProvider()
	ctx := context.Background()

	pull, err := m.CreatePR(ctx, Options{Title: "Fix", Head: "issue/qx-1", Base: "main"})
	if err != nil {
		t.Fatalf("CreatePR() error = %v", err)
	}
	if pull.Ref() != "#1" {
		t.Errorf("Ref() = %q, want #1", pull.Ref())
	}

	decision, err := m.ReviewDecision(ctx, pull.ID)
	if err != nil {
		t.Fatalf("ReviewDecision() error = %v", err)
	}
	if decision != DecisionApproved {
		t.Errorf("decision = %q, want approved", decision)
	}

	if err := m.MergePR(ctx, pull.ID, MergeOptions{}); err != nil {
		t.Fatalf("MergePR() error = %v", err)
	}

	got, err := m.GetPR(ctx, pull.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.State != StateMerged {
		t.Errorf("State = %q, want merged", got.State)
	}
	if len(m.Merged()) != 1 {
		t.Errorf("Merged() = %v, want one entry", m.Merged())
	}
}

func TestMockProvider_DuplicateHead(t *testing.T) {
	m := NewMockProvider()
	ctx := context.Background()

	first, err := m.CreatePR(ctx, Options{Title: "Fix", Head: "issue/qx-1", Base: "main"})
	if err != nil {
		t.Fatalf("CreatePR() error = %v", err)
	}
	if _, err := m.CreatePR(ctx, Options{Title: "Fix again", Head: "issue/qx-1", Base: "main"}); !errors.Is(err, ErrExists) {
		t.Fatalf("CreatePR() error = %v, want ErrExists", err)
	}

	open, err := m.ListPRs(ctx, Filter{State: StateOpen, Head: "issue/qx-1"})
	if err != nil {
		t.Fatalf("ListPRs() error = %v", err)
	}
	if len(open) != 1 || open[0].ID != first.ID {
		t.Errorf("ListPRs() = %v, want the original PR", open)
	}

	// Merging frees the head branch for a fresh PR.
	if err := m.MergePR(ctx, first.ID, MergeOptions{}); err != nil {
		t.Fatal(err)
	}
	if _, err := m.CreatePR(ctx, Options{Title: "Follow-up", Head: "issue/qx-1", Base: "main"}); err != nil {
		t.Errorf("CreatePR() after merge error = %v", err)
	}
}

func TestMockProvider_NotFound(t *testing.T) {
	m := NewMockProvider()

	if _, err := m.GetPR(context.Background(), 99); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetPR() error = %v, want ErrNotFound", err)
	}
	if err := m.MergePR(context.Background(), 99, MergeOptions{}); !errors.Is(err, ErrNotFound) {
		t.Errorf("MergePR() error = %v, want ErrNotFound", err)
	}
}

func TestMockProvider_DecisionOverride(t *testing.T) {
	m := NewMockProvider()
	m.Decision = DecisionPending

	decision, err := m.ReviewDecision(context.Background(), 1)
	if err != nil {
		t.Fatal(err)
	}
	if decision != DecisionPending {
		t.Errorf("decision = %q, want pending", decision)
	}
}
