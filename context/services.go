package context

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"

	issueflow "github.com/randalmurphal/issueflow"
	"github.com/randalmurphal/issueflow/agent"
	"github.com/randalmurphal/issueflow/artifact"
	"github.com/randalmurphal/issueflow/config"
	"github.com/randalmurphal/issueflow/git"
	"github.com/randalmurphal/issueflow/jira"
	"github.com/randalmurphal/issueflow/notify"
	"github.com/randalmurphal/issueflow/pr"
	"github.com/randalmurphal/issueflow/prompt"
	"github.com/randalmurphal/issueflow/transcript"
	"github.com/randalmurphal/issueflow/workspace"
)

// Services bundles every pipeline dependency for one repository.
type Services struct {
	Git        *git.Context
	Store      *issueflow.SessionStore
	Workspaces *workspace.Manager
	Hosting    pr.Provider             // nil when no hosting is configured
	Tracker    issueflow.IssueTracker  // nil when no tracker is configured
	Notifier   notify.Notifier
	Agent      *agent.CLI // nil when the agent binary is not installed
	Prompts    *prompt.Loader
	Artifacts  *artifact.Manager
	Recorder   *transcript.Recorder
	Settings   *config.Settings
	Logger     *slog.Logger
}

// NewServices assembles the service set for a repository from resolved
// settings. Optional integrations (tracker, hosting, agent) are left
// nil when their settings are absent.
func NewServices(repoPath string, settings *config.Settings) (*Services, error) {
	if settings == nil {
		settings = config.DefaultSettings()
	}

	s := &Services{
		Settings: settings,
		Logger:   slog.Default(),
	}

	gitCtx, err := git.NewContext(repoPath)
	if err != nil {
		return nil, fmt.Errorf("open repository: %w", err)
	}
	s.Git = gitCtx

	store, err := issueflow.NewSessionStore(settings.SessionDir)
	if err != nil {
		return nil, fmt.Errorf("open session store: %w", err)
	}
	s.Store = store

	s.Workspaces = workspace.NewManager(gitCtx, workspace.WithLogger(s.Logger))
	s.Prompts = prompt.NewLoader(repoPath)
	s.Artifacts = artifact.NewManager(settings.ArtifactDir)
	s.Recorder = transcript.NewRecorder(s.Artifacts)

	if settings.Jira.URL != "" {
		client, err := jira.NewClient(&settings.Jira)
		if err != nil {
			return nil, err
		}
		s.Tracker = jira.NewTracker(client)
	}

	hosting, err := buildHosting(settings.Hosting)
	if err != nil {
		return nil, err
	}
	s.Hosting = hosting

	s.Notifier = buildNotifier(settings.Notify, s.Logger)

	cli, err := agent.NewCLI(agent.Config{
		BinaryPath: settings.Agent.Command,
		Args:       settings.Agent.Args,
		Timeout:    settings.Agent.Timeout,
	})
	switch {
	case err == nil:
		s.Agent = cli
	case errors.Is(err, agent.ErrNotFound):
		s.Logger.Warn("agent binary not installed, stage workers must be registered manually",
			"command", settings.Agent.Command)
	default:
		return nil, err
	}

	return s, nil
}

// buildHosting creates the pull request provider from settings, or nil
// when none is configured.
func buildHosting(cfg config.HostingSettings) (pr.Provider, error) {
	if cfg.Token == "" || cfg.Repo == "" {
		return nil, nil
	}

	switch cfg.Provider {
	case "gitlab":
		return pr.NewGitLabProvider(cfg.Token, cfg.BaseURL, cfg.Repo)
	case "github", "":
		owner, name, ok := strings.Cut(cfg.Repo, "/")
		if !ok {
			return nil, fmt.Errorf("hosting repo must be owner/name, got %q", cfg.Repo)
		}
		return pr.NewGitHubProvider(cfg.Token, owner, name)
	default:
		return nil, fmt.Errorf("unknown hosting provider %q", cfg.Provider)
	}
}

// buildNotifier wires the escalation channels: critical events go to
// the SMS gateway, warnings to email, and everything is logged.
func buildNotifier(cfg config.NotifySettings, logger *slog.Logger) notify.Notifier {
	notifiers := []notify.Notifier{notify.NewLogNotifier(logger)}

	if cfg.SMSWebhookURL != "" {
		sms := notify.NewWebhookNotifier(cfg.SMSWebhookURL, nil)
		notifiers = append(notifiers, notify.NewChannelNotifier(notify.ChannelSMS, sms))
	}

	if cfg.SMTP.Addr != "" && cfg.SMTP.From != "" && len(cfg.SMTP.To) > 0 {
		var auth smtp.Auth
		if cfg.SMTP.Username != "" {
			host, _, _ := strings.Cut(cfg.SMTP.Addr, ":")
			auth = smtp.PlainAuth("", cfg.SMTP.Username, cfg.SMTP.Password, host)
		}
		email := notify.NewEmailNotifier(cfg.SMTP.Addr, cfg.SMTP.From, cfg.SMTP.To, auth)
		notifiers = append(notifiers, notify.NewChannelNotifier(notify.ChannelEmail, email))
	}

	if len(notifiers) == 1 {
		return notifiers[0]
	}
	return notify.NewMultiNotifier(notifiers...)
}

// Orchestrator builds a ready-to-run orchestrator from the services.
// The agent worker is registered for every capability when the agent
// CLI is available; callers can override individual capabilities on the
// returned registry before running.
func (s *Services) Orchestrator() (*issueflow.Orchestrator, *issueflow.WorkerRegistry) {
	registry := issueflow.NewWorkerRegistry()
	if s.Agent != nil {
		worker := agent.NewWorker(s.Agent, s.Prompts,
			agent.WithArtifacts(s.Artifacts),
			agent.WithRecorder(s.Recorder),
			agent.WithLogger(s.Logger),
		)
		worker.RegisterAll(registry)
	}

	gate := issueflow.NewQualityGate()
	if s.Settings != nil && s.Settings.GateAttempts > 0 {
		gate.MaxAttempts = s.Settings.GateAttempts
	}

	opts := []issueflow.Option{
		issueflow.WithGate(gate),
		issueflow.WithNotifier(s.Notifier),
		issueflow.WithWorkspaceManager(s.Workspaces),
		issueflow.WithOrchestratorLogger(s.Logger),
	}
	if s.Hosting != nil {
		opts = append(opts, issueflow.WithHosting(s.Hosting))
	}
	if s.Tracker != nil {
		opts = append(opts, issueflow.WithTracker(s.Tracker))
	}

	return issueflow.NewOrchestrator(s.Store, s.Git, registry, opts...), registry
}

// InjectAll adds every configured service to the context.
func (s *Services) InjectAll(ctx context.Context) context.Context {
	if s.Git != nil {
		ctx = WithGit(ctx, s.Git)
	}
	if s.Store != nil {
		ctx = WithStore(ctx, s.Store)
	}
	if s.Workspaces != nil {
		ctx = WithWorkspaces(ctx, s.Workspaces)
	}
	if s.Hosting != nil {
		ctx = WithHosting(ctx, s.Hosting)
	}
	if s.Tracker != nil {
		ctx = WithTracker(ctx, s.Tracker)
	}
	if s.Notifier != nil {
		ctx = notify.WithNotifier(ctx, s.Notifier)
	}
	if s.Agent != nil {
		ctx = WithAgent(ctx, s.Agent)
	}
	if s.Prompts != nil {
		ctx = WithPrompts(ctx, s.Prompts)
	}
	if s.Artifacts != nil {
		ctx = WithArtifacts(ctx, s.Artifacts)
	}
	return ctx
}
