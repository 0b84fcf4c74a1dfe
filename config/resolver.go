package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/randalmurphal/issueflow/jira"
)

// Source indicates where a layer of configuration came from.
type Source string

// Configuration layer sources.
const (
	SourceDefault Source = "default"
	SourceGlobal  Source = "global"
	SourceLocal   Source = "local"
	SourceEnv     Source = "env"
)

// EnvPrefix is the prefix for environment variable overrides.
const EnvPrefix = "ISSUEFLOW_"

// Resolver merges the configuration layers into Settings.
type Resolver struct {
	globalPath string
	localPath  string

	// Warnings collects non-fatal issues found during resolution, such
	// as unparsable config files that were skipped.
	Warnings []string
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithGlobalPath overrides the global config file location.
func WithGlobalPath(path string) ResolverOption {
	return func(r *Resolver) { r.globalPath = path }
}

// WithLocalPath overrides the local config file location.
func WithLocalPath(path string) ResolverOption {
	return func(r *Resolver) { r.localPath = path }
}

// NewResolver creates a resolver. The global path defaults to
// ~/.config/issueflow/config.yaml and the local path to .issueflow.yaml
// in the enclosing git repository root, when one exists.
func NewResolver(opts ...ResolverOption) *Resolver {
	r := &Resolver{}

	if home, err := os.UserHomeDir(); err == nil {
		r.globalPath = filepath.Join(home, ".config", "issueflow", "config.yaml")
	}
	if root := findGitRoot("."); root != "" {
		r.localPath = filepath.Join(root, ".issueflow.yaml")
	}

	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve merges defaults, the global file, the local file, and
// environment overrides, in that order.
func (r *Resolver) Resolve() (*Settings, error) {
	settings := DefaultSettings()

	r.applyFile(settings, r.globalPath)
	r.applyFile(settings, r.localPath)
	applyEnv(settings)

	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return settings, nil
}

// Sources reports which layers contributed, in precedence order from
// lowest to highest.
func (r *Resolver) Sources() []Source {
	sources := []Source{SourceDefault}
	if fileExists(r.globalPath) {
		sources = append(sources, SourceGlobal)
	}
	if fileExists(r.localPath) {
		sources = append(sources, SourceLocal)
	}
	sources = append(sources, SourceEnv)
	return sources
}

// GlobalPath returns the path of the global config file.
func (r *Resolver) GlobalPath() string { return r.globalPath }

// LocalPath returns the path of the local config file.
func (r *Resolver) LocalPath() string { return r.localPath }

// applyFile overlays one YAML file onto the settings. A missing file is
// fine; an unparsable one is skipped with a warning.
func (r *Resolver) applyFile(settings *Settings, path string) {
	if path == "" {
		return
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}
	if err := yaml.Unmarshal(data, settings); err != nil {
		r.Warnings = append(r.Warnings, fmt.Sprintf("could not parse %s: %v", path, err))
	}
}

// applyEnv overlays ISSUEFLOW_* environment variables. Only the values
// that make sense to inject per-environment are covered, chiefly
// secrets and CI paths.
func applyEnv(s *Settings) {
	setString := func(key string, dst *string) {
		if v := os.Getenv(EnvPrefix + key); v != "" {
			*dst = v
		}
	}

	setString("SESSION_DIR", &s.SessionDir)
	setString("ARTIFACT_DIR", &s.ArtifactDir)

	setString("JIRA_URL", &s.Jira.URL)
	setString("JIRA_EMAIL", &s.Jira.Auth.Email)
	setString("JIRA_TOKEN", &s.Jira.Auth.Token)
	setString("JIRA_WEBHOOK_SECRET", &s.Jira.WebhookSecret)
	if v := os.Getenv(EnvPrefix + "JIRA_AUTH_TYPE"); v != "" {
		s.Jira.Auth.Type = jira.AuthType(v)
	}

	setString("HOSTING_PROVIDER", &s.Hosting.Provider)
	setString("HOSTING_TOKEN", &s.Hosting.Token)
	setString("HOSTING_REPO", &s.Hosting.Repo)

	setString("SMS_WEBHOOK_URL", &s.Notify.SMSWebhookURL)
	setString("SMTP_PASSWORD", &s.Notify.SMTP.Password)

	setString("AGENT_COMMAND", &s.Agent.Command)
	if v := os.Getenv(EnvPrefix + "AGENT_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			s.Agent.Timeout = d
		}
	}
	if v := os.Getenv(EnvPrefix + "GATE_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			s.GateAttempts = n
		}
	}
}

// WriteLocal writes settings as the local config file under dir.
func WriteLocal(dir string, settings *Settings) error {
	data, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}
	return os.WriteFile(filepath.Join(dir, ".issueflow.yaml"), data, 0o644)
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}

// findGitRoot walks up from startDir looking for a .git directory.
func findGitRoot(startDir string) string {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return ""
	}
	for {
		if info, err := os.Stat(filepath.Join(dir, ".git")); err == nil && info.IsDir() {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}
