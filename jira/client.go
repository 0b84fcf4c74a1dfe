package jira

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	issueflow "github.com/randalmurphal/issueflow"
	flowhttp "github.com/randalmurphal/issueflow/http"
)

// Client is a Jira REST API client.
type Client struct {
	config *Config
	http   *flowhttp.Client
}

// NewClient creates a Jira client from the given configuration.
func NewClient(cfg *Config) (*Client, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("jira config: %w", err)
	}

	c := &Client{config: cfg}
	c.http = flowhttp.NewClient(flowhttp.ClientConfig{
		BaseURL:       strings.TrimRight(cfg.URL, "/"),
		ServiceName:   "jira",
		MaxRetries:    cfg.MaxRetries,
		RetryWaitMin:  cfg.RetryWaitMin,
		RetryWaitMax:  cfg.RetryWaitMax,
		BeforeRequest: c.setAuth,
	})
	return c, nil
}

// setAuth applies the configured authentication scheme to a request.
func (c *Client) setAuth(req *http.Request) {
	switch c.config.Auth.Type {
	case AuthAPIToken:
		cred := c.config.Auth.Email + ":" + c.config.Auth.Token
		req.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(cred)))
	case AuthBasic:
		cred := c.config.Auth.Username + ":" + c.config.Auth.Password
		req.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(cred)))
	case AuthPAT:
		req.Header.Set("Authorization", "Bearer "+c.config.Auth.Token)
	}
}

// apiPath builds a REST API path for the configured version.
func (c *Client) apiPath(format string, args ...any) string {
	version := "3"
	if c.config.Version() == APIVersionV2 {
		version = "2"
	}
	return fmt.Sprintf("/rest/api/%s%s", version, fmt.Sprintf(format, args...))
}

// GetIssue fetches an issue by key.
func (c *Client) GetIssue(ctx context.Context, key string) (*Issue, error) {
	if err := ValidateIssueKey(key); err != nil {
		return nil, err
	}

	var issue Issue
	err := c.http.Get(ctx, c.apiPath("/issue/%s", key), &issue)
	if err != nil {
		if flowhttp.IsNotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrIssueNotFound, key)
		}
		return nil, err
	}
	return &issue, nil
}

// FetchIssue fetches an issue and converts it to the pipeline's issue
// type.
func (c *Client) FetchIssue(ctx context.Context, key string) (*issueflow.Issue, error) {
	issue, err := c.GetIssue(ctx, key)
	if err != nil {
		return nil, err
	}
	return issue.ToPipelineIssue(), nil
}

// SearchIssues runs a JQL query.
func (c *Client) SearchIssues(ctx context.Context, jql string, maxResults int) (*SearchResponse, error) {
	if maxResults <= 0 {
		maxResults = 50
	}
	path := c.apiPath("/search?jql=%s&maxResults=%d", url.QueryEscape(jql), maxResults)

	var result SearchResponse
	if err := c.http.Get(ctx, path, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetTransitions lists the workflow transitions available for an issue.
func (c *Client) GetTransitions(ctx context.Context, key string) ([]Transition, error) {
	if err := ValidateIssueKey(key); err != nil {
		return nil, err
	}

	var result TransitionsResponse
	err := c.http.Get(ctx, c.apiPath("/issue/%s/transitions", key), &result)
	if err != nil {
		if flowhttp.IsNotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrIssueNotFound, key)
		}
		return nil, err
	}
	return result.Transitions, nil
}

// TransitionIssue performs a workflow transition by transition ID.
func (c *Client) TransitionIssue(ctx context.Context, key, transitionID string) error {
	if err := ValidateIssueKey(key); err != nil {
		return err
	}
	if transitionID == "" {
		return ErrTransitionIDRequired
	}

	req := TransitionRequest{Transition: TransitionRef{ID: transitionID}}
	return c.http.Post(ctx, c.apiPath("/issue/%s/transitions", key), req, nil)
}

// TransitionIssueByName looks up a transition by its display name
// (case-insensitive) and performs it.
func (c *Client) TransitionIssueByName(ctx context.Context, key, name string) error {
	transitions, err := c.GetTransitions(ctx, key)
	if err != nil {
		return err
	}

	for _, t := range transitions {
		if strings.EqualFold(t.Name, name) {
			return c.TransitionIssue(ctx, key, t.ID)
		}
	}
	return fmt.Errorf("%w: %q on %s", ErrTransitionNotFound, name, key)
}

// GetComments lists the comments on an issue.
func (c *Client) GetComments(ctx context.Context, key string) (*CommentsResponse, error) {
	if err := ValidateIssueKey(key); err != nil {
		return nil, err
	}

	var result CommentsResponse
	err := c.http.Get(ctx, c.apiPath("/issue/%s/comment", key), &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// AddComment adds a plain-text comment to an issue. The body is sent
// as ADF on v3 and as a string on v2.
func (c *Client) AddComment(ctx context.Context, key, text string) (*Comment, error) {
	if err := ValidateIssueKey(key); err != nil {
		return nil, err
	}

	var body any
	if c.config.Version() == APIVersionV3 {
		body = TextDocument(text)
	} else {
		body = text
	}

	var comment Comment
	err := c.http.Post(ctx, c.apiPath("/issue/%s/comment", key), map[string]any{"body": body}, &comment)
	if err != nil {
		if flowhttp.IsNotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrIssueNotFound, key)
		}
		return nil, err
	}
	return &comment, nil
}

// IssueExists reports whether the issue exists and is readable.
func (c *Client) IssueExists(ctx context.Context, key string) (bool, error) {
	_, err := c.GetIssue(ctx, key)
	if err != nil {
		if errors.Is(err, ErrIssueNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
