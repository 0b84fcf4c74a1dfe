package jira

import "time"

// AuthType represents the type of authentication to use.
type AuthType string

// Authentication types supported by the Jira client.
const (
	AuthAPIToken AuthType = "api_token" // Cloud: email + API token
	AuthBasic    AuthType = "basic"     // Server: username + password
	AuthPAT      AuthType = "pat"       // Server/DC: Personal Access Token
)

// APIVersion represents the Jira REST API version.
type APIVersion string

// API versions supported by the Jira REST API.
const (
	APIVersionV2 APIVersion = "v2" // Server/Data Center
	APIVersionV3 APIVersion = "v3" // Cloud
)

// Config holds the configuration for the Jira client.
type Config struct {
	// URL is the base URL of the Jira instance.
	// For Cloud: https://your-domain.atlassian.net
	// For Server: https://jira.your-company.com
	URL string `yaml:"url"`

	// APIVersion selects the REST API version: v3 for Cloud, v2 for
	// Server/DC. Defaults to v3.
	APIVersion APIVersion `yaml:"api_version"`

	// Auth contains authentication configuration.
	Auth AuthConfig `yaml:"auth"`

	// WebhookSecret verifies inbound webhook signatures.
	WebhookSecret string `yaml:"webhook_secret"`

	// MaxRetries bounds retries of rate-limited or failing requests.
	MaxRetries int `yaml:"max_retries"`

	// RetryWaitMin is the minimum wait between retries.
	RetryWaitMin time.Duration `yaml:"retry_wait_min"`

	// RetryWaitMax is the maximum wait between retries.
	RetryWaitMax time.Duration `yaml:"retry_wait_max"`
}

// AuthConfig holds authentication configuration.
type AuthConfig struct {
	// Type is the authentication method to use.
	Type AuthType `yaml:"type"`

	// Email is required for api_token auth (Cloud).
	Email string `yaml:"email"`

	// Token is the API token (Cloud) or PAT (Server/DC).
	Token string `yaml:"token"`

	// Username is required for basic auth.
	Username string `yaml:"username"`

	// Password is required for basic auth.
	Password string `yaml:"password"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		APIVersion:   APIVersionV3,
		MaxRetries:   3,
		RetryWaitMin: 1 * time.Second,
		RetryWaitMax: 30 * time.Second,
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.URL == "" {
		return ErrConfigURLRequired
	}

	if c.Auth.Type == "" {
		return ErrConfigAuthTypeRequired
	}

	switch c.Auth.Type {
	case AuthAPIToken:
		if c.Auth.Email == "" || c.Auth.Token == "" {
			return ErrConfigAPITokenAuth
		}
	case AuthBasic:
		if c.Auth.Username == "" || c.Auth.Password == "" {
			return ErrConfigBasicAuth
		}
	case AuthPAT:
		if c.Auth.Token == "" {
			return ErrConfigPATAuth
		}
	default:
		return ErrConfigAuthTypeInvalid
	}

	if c.APIVersion != "" && c.APIVersion != APIVersionV2 && c.APIVersion != APIVersionV3 {
		return ErrConfigAPIVersionInvalid
	}

	return nil
}

// Version returns the effective API version.
func (c *Config) Version() APIVersion {
	if c.APIVersion == "" {
		return APIVersionV3
	}
	return c.APIVersion
}
