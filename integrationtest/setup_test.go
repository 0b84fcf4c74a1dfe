package integrationtest

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	issueflow "github.com/randalmurphal/issueflow"
	"github.com/randalmurphal/issueflow/git"
	"github.com/randalmurphal/issueflow/pr"
	"github.com/randalmurphal/issueflow/testutil"
	"github.com/randalmurphal/issueflow/workspace"
)

// harness holds one fully wired pipeline over a real git repository
// with a local bare remote.
type harness struct {
	orch      *issueflow.Orchestrator
	store     *issueflow.SessionStore
	git       *git.Context
	workers   *issueflow.WorkerRegistry
	hosting   *pr.MockProvider
	repoDir   string
	remoteDir string
	calls     map[issueflow.Capability]int
}

func newHarness(t *testing.T, sessionDir string) *harness {
	t.Helper()

	repoDir, remoteDir := testutil.SetupTestRepoWithRemote(t)

	gitCtx, err := git.NewContext(repoDir)
	require.NoError(t, err)

	store, err := issueflow.NewSessionStore(sessionDir)
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	h := &harness{
		store:     store,
		git:       gitCtx,
		workers:   issueflow.NewWorkerRegistry(),
		hosting:   pr.NewMockProvider(),
		repoDir:   repoDir,
		remoteDir: remoteDir,
		calls:     make(map[issueflow.Capability]int),
	}
	h.hosting.Decision = pr.DecisionApproved

	for _, capability := range []issueflow.Capability{
		issueflow.CapabilityRefine,
		issueflow.CapabilityArchitect,
		issueflow.CapabilityDesign,
		issueflow.CapabilityImplement,
		issueflow.CapabilityTest,
		issueflow.CapabilityVerify,
	} {
		capability := capability
		h.workers.Register(capability, issueflow.WorkerFunc(
			func(ctx context.Context, req issueflow.WorkRequest) (issueflow.Outcome, error) {
				h.calls[capability]++
				if capability == issueflow.CapabilityImplement {
					testutil.WriteFile(t, req.Workspace.Path, "feature.txt", "implemented")
				}
				return issueflow.Complete(""), nil
			}))
	}

	h.orch = issueflow.NewOrchestrator(store, gitCtx, h.workers,
		issueflow.WithHosting(h.hosting),
		issueflow.WithWorkspaceManager(workspace.NewManager(gitCtx, workspace.WithLogger(logger))),
		issueflow.WithOrchestratorLogger(logger),
	)
	return h
}

func (h *harness) register(capability issueflow.Capability, fn issueflow.WorkerFunc) {
	h.workers.Register(capability, fn)
}
