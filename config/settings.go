package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/randalmurphal/issueflow/jira"
)

// Settings holds the full pipeline configuration.
type Settings struct {
	// SessionDir is the directory where per-issue session state lives.
	SessionDir string `yaml:"session_dir"`

	// ArtifactDir is the directory where run artifacts are stored.
	ArtifactDir string `yaml:"artifact_dir"`

	// GateAttempts bounds the quality gate retry loop. Zero means the
	// built-in default.
	GateAttempts int `yaml:"gate_attempts"`

	// Jira configures the issue tracker integration.
	Jira jira.Config `yaml:"jira"`

	// Hosting configures the code hosting provider.
	Hosting HostingSettings `yaml:"hosting"`

	// Notify configures escalation channels.
	Notify NotifySettings `yaml:"notify"`

	// Agent configures the CLI agent that executes stage work.
	Agent AgentSettings `yaml:"agent"`
}

// HostingSettings configures the pull request provider.
type HostingSettings struct {
	// Provider is "github" or "gitlab". Empty means detect from the
	// repository's origin URL.
	Provider string `yaml:"provider"`

	// Token authenticates API calls.
	Token string `yaml:"token"`

	// BaseURL overrides the API endpoint for self-hosted instances.
	BaseURL string `yaml:"base_url"`

	// Repo is the owner/name slug of the repository.
	Repo string `yaml:"repo"`
}

// NotifySettings configures where escalations go.
type NotifySettings struct {
	// SMSWebhookURL is the SMS gateway endpoint for critical events.
	SMSWebhookURL string `yaml:"sms_webhook_url"`

	// SMTP configures email delivery for warning events.
	SMTP SMTPSettings `yaml:"smtp"`
}

// SMTPSettings configures the email notifier.
type SMTPSettings struct {
	Addr     string   `yaml:"addr"` // host:port
	From     string   `yaml:"from"`
	To       []string `yaml:"to"`
	Username string   `yaml:"username"`
	Password string   `yaml:"password"`
}

// AgentSettings configures the stage agent subprocess.
type AgentSettings struct {
	// Command is the agent binary to invoke.
	Command string `yaml:"command"`

	// Args are extra arguments passed on every invocation.
	Args []string `yaml:"args"`

	// Timeout bounds a single stage invocation.
	Timeout time.Duration `yaml:"timeout"`
}

// Configuration errors.
var (
	ErrSessionDirRequired = errors.New("session_dir is required")
	ErrHostingProvider    = errors.New("hosting provider must be github or gitlab")
)

// DefaultSettings returns settings with built-in defaults applied.
func DefaultSettings() *Settings {
	return &Settings{
		SessionDir:  ".issueflow/sessions",
		ArtifactDir: ".issueflow/artifacts",
		Jira:        *jira.DefaultConfig(),
		Agent: AgentSettings{
			Command: "claude",
			Timeout: 30 * time.Minute,
		},
	}
}

// Validate checks the settings for basic consistency. The Jira section
// is validated only when a URL is set, so purely local runs need no
// tracker configuration.
func (s *Settings) Validate() error {
	if s.SessionDir == "" {
		return ErrSessionDirRequired
	}
	if s.GateAttempts < 0 {
		return fmt.Errorf("gate_attempts must not be negative, got %d", s.GateAttempts)
	}

	switch s.Hosting.Provider {
	case "", "github", "gitlab":
	default:
		return fmt.Errorf("%w, got %q", ErrHostingProvider, s.Hosting.Provider)
	}

	if s.Jira.URL != "" {
		if err := s.Jira.Validate(); err != nil {
			return err
		}
	}
	return nil
}
