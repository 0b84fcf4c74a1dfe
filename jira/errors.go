package jira

import (
	"errors"

	flowhttp "github.com/randalmurphal/issueflow/http"
)

// Configuration errors.
var (
	ErrConfigURLRequired       = errors.New("jira url is required")
	ErrConfigAuthTypeRequired  = errors.New("jira auth type is required")
	ErrConfigAuthTypeInvalid   = errors.New("jira auth type must be api_token, basic, or pat")
	ErrConfigAPITokenAuth      = errors.New("api_token auth requires email and token")
	ErrConfigBasicAuth         = errors.New("basic auth requires username and password")
	ErrConfigPATAuth           = errors.New("pat auth requires token")
	ErrConfigAPIVersionInvalid = errors.New("api_version must be v2 or v3")
)

// Issue errors.
var (
	ErrIssueNotFound   = errors.New("jira issue not found")
	ErrIssueKeyInvalid = errors.New("invalid issue key format")
)

// Transition errors.
var (
	ErrTransitionNotFound   = errors.New("transition not found for issue")
	ErrTransitionIDRequired = errors.New("transition id is required")
)

// Webhook errors.
var (
	ErrWebhookInvalidSignature = errors.New("invalid webhook signature")
	ErrWebhookInvalidPayload   = errors.New("invalid webhook payload")
	ErrWebhookInvalidJWT       = errors.New("invalid webhook jwt")
)

// IsNotFound reports whether the error indicates a resource was not found.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrIssueNotFound) || flowhttp.IsNotFound(err)
}

// IsUnauthorized reports whether the error indicates authentication failed.
func IsUnauthorized(err error) bool {
	return flowhttp.IsUnauthorized(err)
}

// IsRetryable reports whether the error is transient and should be retried.
func IsRetryable(err error) bool {
	return flowhttp.IsRetryable(err)
}
