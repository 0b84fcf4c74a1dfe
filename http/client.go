package http

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	cleanhttp "github.com/hashicorp/go-cleanhttp"
	retryablehttp "github.com/hashicorp/go-retryablehttp"
)

// DefaultTimeout is the default HTTP request timeout.
const DefaultTimeout = 30 * time.Second

// DefaultMaxRetries is the default number of retry attempts.
const DefaultMaxRetries = 3

// DefaultRetryWait is the default initial wait between retries.
const DefaultRetryWait = 1 * time.Second

// Client wraps a retrying HTTP client with JSON encoding, auth injection,
// and API error parsing for the integration clients.
//
// Retries of 429 and 5xx responses (with Retry-After support and
// exponential backoff) are delegated to retryablehttp.
type Client struct {
	retry       *retryablehttp.Client
	baseURL     string
	serviceName string

	// beforeRequest is called before each request (for auth headers, etc.)
	beforeRequest func(req *http.Request)
}

// ClientConfig holds configuration for Client.
type ClientConfig struct {
	Client        *http.Client
	BaseURL       string
	ServiceName   string
	MaxRetries    int
	RetryWaitMin  time.Duration
	RetryWaitMax  time.Duration
	BeforeRequest func(req *http.Request)
}

// NewClient creates a new Client with the given configuration.
func NewClient(cfg ClientConfig) *Client {
	retry := retryablehttp.NewClient()
	retry.Logger = nil

	retry.RetryMax = cfg.MaxRetries
	if retry.RetryMax <= 0 {
		retry.RetryMax = DefaultMaxRetries
	}
	retry.RetryWaitMin = cfg.RetryWaitMin
	if retry.RetryWaitMin <= 0 {
		retry.RetryWaitMin = DefaultRetryWait
	}
	retry.RetryWaitMax = cfg.RetryWaitMax
	if retry.RetryWaitMax <= 0 {
		retry.RetryWaitMax = 30 * time.Second
	}

	if cfg.Client != nil {
		retry.HTTPClient = cfg.Client
	} else {
		retry.HTTPClient = cleanhttp.DefaultPooledClient()
		retry.HTTPClient.Timeout = DefaultTimeout
	}

	return &Client{
		retry:         retry,
		baseURL:       cfg.BaseURL,
		serviceName:   cfg.ServiceName,
		beforeRequest: cfg.BeforeRequest,
	}
}

// Request executes an HTTP request with retries for transient errors.
func (c *Client) Request(ctx context.Context, method, path string, body any) (*http.Response, error) {
	return c.RequestWithHeaders(ctx, method, path, body, nil)
}

// RequestWithHeaders executes an HTTP request with custom headers.
func (c *Client) RequestWithHeaders(
	ctx context.Context,
	method, path string,
	body any,
	headers map[string]string,
) (*http.Response, error) {
	var payload []byte
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		payload = data
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, method, c.baseURL+path, payload)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	if c.beforeRequest != nil {
		c.beforeRequest(req.Request)
	}

	resp, err := c.retry.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s request failed: %w", c.serviceName, err)
	}
	return resp, nil
}

// Get performs a GET request and decodes the response into result.
func (c *Client) Get(ctx context.Context, path string, result any) error {
	resp, err := c.Request(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return c.handleResponse(resp, path, result)
}

// Post performs a POST request and decodes the response into result.
func (c *Client) Post(ctx context.Context, path string, body, result any) error {
	resp, err := c.Request(ctx, http.MethodPost, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return c.handleResponse(resp, path, result)
}

// Put performs a PUT request and decodes the response into result.
func (c *Client) Put(ctx context.Context, path string, body, result any) error {
	resp, err := c.Request(ctx, http.MethodPut, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return c.handleResponse(resp, path, result)
}

// Delete performs a DELETE request.
func (c *Client) Delete(ctx context.Context, path string) error {
	resp, err := c.Request(ctx, http.MethodDelete, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return c.handleResponse(resp, path, nil)
}

// GetRaw performs a GET request and returns the raw response body.
func (c *Client) GetRaw(ctx context.Context, path string) ([]byte, error) {
	resp, err := c.Request(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, c.parseError(resp, path)
	}

	return io.ReadAll(resp.Body)
}

// handleResponse checks status and decodes the response body.
func (c *Client) handleResponse(resp *http.Response, path string, result any) error {
	if resp.StatusCode >= 400 {
		return c.parseError(resp, path)
	}

	if result == nil {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("decode %s response: %w", c.serviceName, err)
	}

	return nil
}

// parseError parses an error response into an APIError.
func (c *Client) parseError(resp *http.Response, path string) error {
	body, _ := io.ReadAll(resp.Body)

	apiErr := &APIError{
		Service:    c.serviceName,
		StatusCode: resp.StatusCode,
		Endpoint:   path,
		RequestID:  resp.Header.Get("X-Request-Id"),
	}

	// Try common error body shapes before falling back to the status text.
	var errResp struct {
		Message       string   `json:"message"`
		Error         string   `json:"error"`
		ErrorMessages []string `json:"errorMessages"`
	}
	if json.Unmarshal(body, &errResp) == nil {
		switch {
		case errResp.Message != "":
			apiErr.Message = errResp.Message
		case errResp.Error != "":
			apiErr.Message = errResp.Error
		case len(errResp.ErrorMessages) > 0:
			apiErr.Message = errResp.ErrorMessages[0]
		}
	}

	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}

	return apiErr
}
