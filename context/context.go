package context

import (
	"context"

	issueflow "github.com/randalmurphal/issueflow"
	"github.com/randalmurphal/issueflow/agent"
	"github.com/randalmurphal/issueflow/artifact"
	"github.com/randalmurphal/issueflow/git"
	"github.com/randalmurphal/issueflow/pr"
	"github.com/randalmurphal/issueflow/prompt"
	"github.com/randalmurphal/issueflow/workspace"
)

// serviceContextKey is a private key type to avoid collisions.
type serviceContextKey string

const (
	gitServiceKey       serviceContextKey = "issueflow.git"
	storeServiceKey     serviceContextKey = "issueflow.store"
	workspaceServiceKey serviceContextKey = "issueflow.workspaces"
	hostingServiceKey   serviceContextKey = "issueflow.hosting"
	trackerServiceKey   serviceContextKey = "issueflow.tracker"
	agentServiceKey     serviceContextKey = "issueflow.agent"
	promptServiceKey    serviceContextKey = "issueflow.prompts"
	artifactServiceKey  serviceContextKey = "issueflow.artifacts"
)

// WithGit adds a git context.
func WithGit(ctx context.Context, gitCtx *git.Context) context.Context {
	return context.WithValue(ctx, gitServiceKey, gitCtx)
}

// Git extracts the git context, or nil.
func Git(ctx context.Context) *git.Context {
	if gitCtx, ok := ctx.Value(gitServiceKey).(*git.Context); ok {
		return gitCtx
	}
	return nil
}

// MustGit extracts the git context or panics.
func MustGit(ctx context.Context) *git.Context {
	gitCtx := Git(ctx)
	if gitCtx == nil {
		panic("issueflow/context: git.Context not found in context")
	}
	return gitCtx
}

// WithStore adds the session store.
func WithStore(ctx context.Context, store *issueflow.SessionStore) context.Context {
	return context.WithValue(ctx, storeServiceKey, store)
}

// Store extracts the session store, or nil.
func Store(ctx context.Context) *issueflow.SessionStore {
	if store, ok := ctx.Value(storeServiceKey).(*issueflow.SessionStore); ok {
		return store
	}
	return nil
}

// MustStore extracts the session store or panics.
func MustStore(ctx context.Context) *issueflow.SessionStore {
	store := Store(ctx)
	if store == nil {
		panic("issueflow/context: SessionStore not found in context")
	}
	return store
}

// WithWorkspaces adds the workspace manager.
func WithWorkspaces(ctx context.Context, mgr *workspace.Manager) context.Context {
	return context.WithValue(ctx, workspaceServiceKey, mgr)
}

// Workspaces extracts the workspace manager, or nil.
func Workspaces(ctx context.Context) *workspace.Manager {
	if mgr, ok := ctx.Value(workspaceServiceKey).(*workspace.Manager); ok {
		return mgr
	}
	return nil
}

// WithHosting adds the pull request provider.
func WithHosting(ctx context.Context, provider pr.Provider) context.Context {
	return context.WithValue(ctx, hostingServiceKey, provider)
}

// Hosting extracts the pull request provider, or nil.
func Hosting(ctx context.Context) pr.Provider {
	if provider, ok := ctx.Value(hostingServiceKey).(pr.Provider); ok {
		return provider
	}
	return nil
}

// WithTracker adds the issue tracker.
func WithTracker(ctx context.Context, tracker issueflow.IssueTracker) context.Context {
	return context.WithValue(ctx, trackerServiceKey, tracker)
}

// Tracker extracts the issue tracker, or nil.
func Tracker(ctx context.Context) issueflow.IssueTracker {
	if tracker, ok := ctx.Value(trackerServiceKey).(issueflow.IssueTracker); ok {
		return tracker
	}
	return nil
}

// WithAgent adds the agent CLI.
func WithAgent(ctx context.Context, cli *agent.CLI) context.Context {
	return context.WithValue(ctx, agentServiceKey, cli)
}

// Agent extracts the agent CLI, or nil.
func Agent(ctx context.Context) *agent.CLI {
	if cli, ok := ctx.Value(agentServiceKey).(*agent.CLI); ok {
		return cli
	}
	return nil
}

// MustAgent extracts the agent CLI or panics.
func MustAgent(ctx context.Context) *agent.CLI {
	cli := Agent(ctx)
	if cli == nil {
		panic("issueflow/context: agent.CLI not found in context")
	}
	return cli
}

// WithPrompts adds the prompt loader.
func WithPrompts(ctx context.Context, loader *prompt.Loader) context.Context {
	return context.WithValue(ctx, promptServiceKey, loader)
}

// Prompts extracts the prompt loader, or nil.
func Prompts(ctx context.Context) *prompt.Loader {
	if loader, ok := ctx.Value(promptServiceKey).(*prompt.Loader); ok {
		return loader
	}
	return nil
}

// WithArtifacts adds the artifact manager.
func WithArtifacts(ctx context.Context, mgr *artifact.Manager) context.Context {
	return context.WithValue(ctx, artifactServiceKey, mgr)
}

// Artifacts extracts the artifact manager, or nil.
func Artifacts(ctx context.Context) *artifact.Manager {
	if mgr, ok := ctx.Value(artifactServiceKey).(*artifact.Manager); ok {
		return mgr
	}
	return nil
}
