package pr

import (
	"context"
	"strconv"
	"sync"
)

// MockProvider is an in-memory Provider for tests. The Func fields
// override individual operations; without overrides it behaves as a
// permissive hosting service that approves everything.
type MockProvider struct {
	CreatePRFunc       func(ctx context.Context, opts Options) (*PullRequest, error)
	GetPRFunc          func(ctx context.Context, id int) (*PullRequest, error)
	UpdatePRFunc       func(ctx context.Context, id int, opts UpdateOptions) (*PullRequest, error)
	ReviewDecisionFunc func(ctx context.Context, id int) (Decision, error)
	MergePRFunc        func(ctx context.Context, id int, opts MergeOptions) error
	AddCommentFunc     func(ctx context.Context, id int, body string) error
	RequestReviewFunc  func(ctx context.Context, id int, reviewers []string) error
	ListPRsFunc        func(ctx context.Context, filter Filter) ([]*PullRequest, error)

	// Decision is returned by ReviewDecision when no override is set.
	Decision Decision

	mu      sync.Mutex
	nextID  int
	created []*PullRequest
	merged  []int
}

// NewMockProvider returns a mock that approves and merges everything.
func NewMockProvider() *MockProvider {
	return &MockProvider{Decision: DecisionApproved}
}

// Created returns the PRs created through this mock.
func (m *MockProvider) Created() []*PullRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*PullRequest(nil), m.created...)
}

// Merged returns the IDs merged through this mock.
func (m *MockProvider) Merged() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int(nil), m.merged...)
}

// CreatePR implements Provider.
func (m *MockProvider) CreatePR(ctx context.Context, opts Options) (*PullRequest, error) {
	if m.CreatePRFunc != nil {
		return m.CreatePRFunc(ctx, opts)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	// Real hosting services reject a second PR for the same head branch.
	for _, pull := range m.created {
		if pull.State == StateOpen && pull.Head == opts.Head {
			return nil, ErrExists
		}
	}
	m.nextID++
	pull := &PullRequest{
		ID:    m.nextID,
		URL:   "https://example.com/pr/" + strconv.Itoa(m.nextID),
		Title: opts.Title,
		Body:  opts.Body,
		State: StateOpen,
		Draft: opts.Draft,
		Head:  opts.Head,
		Base:  opts.Base,
	}
	m.created = append(m.created, pull)
	return pull, nil
}

// GetPR implements Provider.
func (m *MockProvider) GetPR(ctx context.Context, id int) (*PullRequest, error) {
	if m.GetPRFunc != nil {
		return m.GetPRFunc(ctx, id)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, pull := range m.created {
		if pull.ID == id {
			return pull, nil
		}
	}
	return nil, ErrNotFound
}

// UpdatePR implements Provider.
func (m *MockProvider) UpdatePR(ctx context.Context, id int, opts UpdateOptions) (*PullRequest, error) {
	if m.UpdatePRFunc != nil {
		return m.UpdatePRFunc(ctx, id, opts)
	}
	return m.GetPR(ctx, id)
}

// ReviewDecision implements Provider.
func (m *MockProvider) ReviewDecision(ctx context.Context, id int) (Decision, error) {
	if m.ReviewDecisionFunc != nil {
		return m.ReviewDecisionFunc(ctx, id)
	}
	if m.Decision == "" {
		return DecisionApproved, nil
	}
	return m.Decision, nil
}

// MergePR implements Provider.
func (m *MockProvider) MergePR(ctx context.Context, id int, opts MergeOptions) error {
	if m.MergePRFunc != nil {
		return m.MergePRFunc(ctx, id, opts)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, pull := range m.created {
		if pull.ID == id {
			pull.State = StateMerged
			m.merged = append(m.merged, id)
			return nil
		}
	}
	return ErrNotFound
}

// AddComment implements Provider.
func (m *MockProvider) AddComment(ctx context.Context, id int, body string) error {
	if m.AddCommentFunc != nil {
		return m.AddCommentFunc(ctx, id, body)
	}
	return nil
}

// RequestReview implements Provider.
func (m *MockProvider) RequestReview(ctx context.Context, id int, reviewers []string) error {
	if m.RequestReviewFunc != nil {
		return m.RequestReviewFunc(ctx, id, reviewers)
	}
	return nil
}

// ListPRs implements Provider.
func (m *MockProvider) ListPRs(ctx context.Context, filter Filter) ([]*PullRequest, error) {
	if m.ListPRsFunc != nil {
		return m.ListPRsFunc(ctx, filter)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*PullRequest
	for _, pull := range m.created {
		if filter.State != "" && pull.State != filter.State {
			continue
		}
		if filter.Head != "" && pull.Head != filter.Head {
			continue
		}
		out = append(out, pull)
	}
	return out, nil
}
