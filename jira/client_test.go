package jira

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func testConfig(url string) *Config {
	return &Config{
		URL: url,
		Auth: AuthConfig{
			Type:  AuthAPIToken,
			Email: "bot@example.com",
			Token: "secret",
		},
		MaxRetries:   1,
		RetryWaitMin: time.Millisecond,
		RetryWaitMax: 5 * time.Millisecond,
	}
}

func testClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(testConfig(server.URL))
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	return client, server
}

func TestClient_GetIssue(t *testing.T) {
	client, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rest/api/3/issue/QX-7" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth == "" {
			t.Error("missing Authorization header")
		}
		w.Write([]byte(`{
			"id": "10001",
			"key": "QX-7",
			"self": "https://example.atlassian.net/rest/api/3/issue/10001",
			"fields": {
				"summary": "Fix foo handling",
				"labels": ["backend"],
				"priority": {"id": "2", "name": "High"},
				"status": {"id": "3", "name": "In Progress"}
			}
		}`))
	})

	issue, err := client.GetIssue(context.Background(), "QX-7")
	if err != nil {
		t.Fatalf("GetIssue() error = %v", err)
	}
	if issue.Key != "QX-7" {
		t.Errorf("Key = %q, want %q", issue.Key, "QX-7")
	}
	if issue.Fields.Summary != "Fix foo handling" {
		t.Errorf("Summary = %q", issue.Fields.Summary)
	}
	if issue.Fields.Priority.Name != "High" {
		t.Errorf("Priority = %q", issue.Fields.Priority.Name)
	}
}

func TestClient_GetIssueNotFound(t *testing.T) {
	client, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"errorMessages":["Issue does not exist"]}`))
	})

	_, err := client.GetIssue(context.Background(), "QX-404")
	if !errors.Is(err, ErrIssueNotFound) {
		t.Fatalf("error = %v, want ErrIssueNotFound", err)
	}
	if !IsNotFound(err) {
		t.Error("IsNotFound() = false")
	}
}

func TestClient_GetIssueRejectsBadKey(t *testing.T) {
	client, err := NewClient(testConfig("https://example.atlassian.net"))
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	if _, err := client.GetIssue(context.Background(), "not a key"); !errors.Is(err, ErrIssueKeyInvalid) {
		t.Errorf("error = %v, want ErrIssueKeyInvalid", err)
	}
}

func TestClient_FetchIssueConverts(t *testing.T) {
	client, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"key": "QX-9",
			"self": "https://example.atlassian.net/rest/api/3/issue/10009",
			"fields": {
				"summary": "Add dark mode toggle",
				"description": {
					"version": 1,
					"type": "doc",
					"content": [
						{"type": "paragraph", "content": [{"type": "text", "text": "Users want a dark theme."}]}
					]
				},
				"labels": ["ui"],
				"reporter": {"displayName": "Dana"}
			}
		}`))
	})

	issue, err := client.FetchIssue(context.Background(), "QX-9")
	if err != nil {
		t.Fatalf("FetchIssue() error = %v", err)
	}
	if issue.ID != "QX-9" {
		t.Errorf("ID = %q", issue.ID)
	}
	if issue.Title != "Add dark mode toggle" {
		t.Errorf("Title = %q", issue.Title)
	}
	if issue.Description != "Users want a dark theme." {
		t.Errorf("Description = %q", issue.Description)
	}
	if issue.Reporter != "Dana" {
		t.Errorf("Reporter = %q", issue.Reporter)
	}
	if !issue.NeedsDesign() {
		t.Error("ui-labelled issue should need design")
	}
}

func TestClient_TransitionIssueByName(t *testing.T) {
	var transitioned string
	client, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			w.Write([]byte(`{"transitions":[
				{"id": "11", "name": "To Do"},
				{"id": "21", "name": "In Progress"},
				{"id": "31", "name": "Done"}
			]}`))
		case http.MethodPost:
			var req TransitionRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Fatalf("decode transition request: %v", err)
			}
			transitioned = req.Transition.ID
			w.WriteHeader(http.StatusNoContent)
		}
	})

	if err := client.TransitionIssueByName(context.Background(), "QX-7", "in progress"); err != nil {
		t.Fatalf("TransitionIssueByName() error = %v", err)
	}
	if transitioned != "21" {
		t.Errorf("transition id = %q, want %q", transitioned, "21")
	}
}

func TestClient_TransitionIssueByNameNotFound(t *testing.T) {
	client, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"transitions":[{"id": "11", "name": "To Do"}]}`))
	})

	err := client.TransitionIssueByName(context.Background(), "QX-7", "Shipped")
	if !errors.Is(err, ErrTransitionNotFound) {
		t.Errorf("error = %v, want ErrTransitionNotFound", err)
	}
}

func TestClient_AddCommentV3SendsADF(t *testing.T) {
	var body map[string]any
	client, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode comment body: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id": "20001"}`))
	})

	comment, err := client.AddComment(context.Background(), "QX-7", "run complete")
	if err != nil {
		t.Fatalf("AddComment() error = %v", err)
	}
	if comment.ID != "20001" {
		t.Errorf("ID = %q", comment.ID)
	}

	doc, ok := body["body"].(map[string]any)
	if !ok {
		t.Fatalf("body is %T, want ADF document", body["body"])
	}
	if doc["type"] != "doc" {
		t.Errorf("doc type = %v", doc["type"])
	}
}

func TestClient_AddCommentV2SendsString(t *testing.T) {
	var body map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rest/api/2/issue/QX-7/comment" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode comment body: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id": "20002"}`))
	}))
	defer server.Close()

	cfg := testConfig(server.URL)
	cfg.APIVersion = APIVersionV2
	client, err := NewClient(cfg)
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	if _, err := client.AddComment(context.Background(), "QX-7", "run complete"); err != nil {
		t.Fatalf("AddComment() error = %v", err)
	}
	if body["body"] != "run complete" {
		t.Errorf("body = %v, want plain string", body["body"])
	}
}

func TestClient_SearchIssues(t *testing.T) {
	client, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("jql"); got != `project = QX AND status = "To Do"` {
			t.Errorf("jql = %q", got)
		}
		w.Write([]byte(`{"total": 1, "issues": [{"key": "QX-7", "fields": {"summary": "Fix foo handling"}}]}`))
	})

	result, err := client.SearchIssues(context.Background(), `project = QX AND status = "To Do"`, 10)
	if err != nil {
		t.Fatalf("SearchIssues() error = %v", err)
	}
	if result.Total != 1 || len(result.Issues) != 1 {
		t.Fatalf("Total = %d, len = %d", result.Total, len(result.Issues))
	}
	if result.Issues[0].Key != "QX-7" {
		t.Errorf("Key = %q", result.Issues[0].Key)
	}
}
