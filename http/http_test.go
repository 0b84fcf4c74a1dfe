package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestClient_GetDecodesJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Accept") != "application/json" {
			t.Errorf("Accept = %q", r.Header.Get("Accept"))
		}
		w.Write([]byte(`{"name":"QX-7"}`))
	}))
	defer server.Close()

	c := NewClient(ClientConfig{BaseURL: server.URL, ServiceName: "test"})

	var result struct {
		Name string `json:"name"`
	}
	if err := c.Get(context.Background(), "/thing", &result); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if result.Name != "QX-7" {
		t.Errorf("Name = %q", result.Name)
	}
}

func TestClient_BeforeRequestSetsAuth(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	c := NewClient(ClientConfig{
		BaseURL:     server.URL,
		ServiceName: "test",
		BeforeRequest: func(req *http.Request) {
			req.Header.Set("Authorization", "Bearer tok")
		},
	})
	if err := c.Get(context.Background(), "/", nil); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if gotAuth != "Bearer tok" {
		t.Errorf("Authorization = %q", gotAuth)
	}
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	c := NewClient(ClientConfig{
		BaseURL:      server.URL,
		ServiceName:  "test",
		MaxRetries:   3,
		RetryWaitMin: time.Millisecond,
		RetryWaitMax: 5 * time.Millisecond,
	})

	var result struct {
		OK bool `json:"ok"`
	}
	if err := c.Get(context.Background(), "/flaky", &result); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !result.OK {
		t.Error("expected success after retries")
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
}

func TestClient_ParsesAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Request-Id", "req-1")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"errorMessages":["Issue does not exist"]}`))
	}))
	defer server.Close()

	c := NewClient(ClientConfig{BaseURL: server.URL, ServiceName: "jira"})

	err := c.Get(context.Background(), "/issue/QX-404", nil)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error %T is not APIError", err)
	}
	if apiErr.Message != "Issue does not exist" {
		t.Errorf("Message = %q", apiErr.Message)
	}
	if apiErr.RequestID != "req-1" {
		t.Errorf("RequestID = %q", apiErr.RequestID)
	}
}

func TestClient_PostSendsBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":"10001"}`))
	}))
	defer server.Close()

	c := NewClient(ClientConfig{BaseURL: server.URL, ServiceName: "test"})

	var result struct {
		ID string `json:"id"`
	}
	err := c.Post(context.Background(), "/comment", map[string]string{"body": "hello"}, &result)
	if err != nil {
		t.Fatalf("Post() error = %v", err)
	}
	if result.ID != "10001" {
		t.Errorf("ID = %q", result.ID)
	}
}

func TestAPIError_Unwrap(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{400, ErrBadRequest},
		{401, ErrUnauthorized},
		{403, ErrForbidden},
		{404, ErrNotFound},
		{429, ErrRateLimited},
		{500, ErrServerError},
		{503, ErrServerError},
	}
	for _, tt := range tests {
		err := &APIError{Service: "test", StatusCode: tt.status}
		if !errors.Is(err, tt.want) {
			t.Errorf("status %d should unwrap to %v", tt.status, tt.want)
		}
	}
}

func TestIsRetryable(t *testing.T) {
	if !IsRetryable(&APIError{StatusCode: 502}) {
		t.Error("502 should be retryable")
	}
	if IsRetryable(&APIError{StatusCode: 404}) {
		t.Error("404 should not be retryable")
	}
	if !IsRetryable(&RateLimitError{Service: "test"}) {
		t.Error("rate limit should be retryable")
	}
}
