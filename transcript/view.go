package transcript

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/randalmurphal/issueflow/artifact"
)

// Viewer renders transcripts for humans.
type Viewer struct{}

// NewViewer creates a viewer.
func NewViewer() *Viewer {
	return &Viewer{}
}

// Summary writes a one-line-per-stage view of the run.
func (v *Viewer) Summary(w io.Writer, t *Transcript) error {
	sep := strings.Repeat("=", 60)

	fmt.Fprintln(w, sep)
	fmt.Fprintf(w, "Run: %s", t.RunID)
	if t.IssueID != "" {
		fmt.Fprintf(w, " | Issue: %s", t.IssueID)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Stages: %d | Tokens: %d in / %d out | Cost: $%.2f | Agent time: %s\n",
		len(t.Entries), t.TokensIn(), t.TokensOut(), t.Cost(),
		t.Duration().Round(time.Second))
	fmt.Fprintln(w, sep)

	for _, e := range t.Entries {
		line := fmt.Sprintf("  %s %-14s attempt %d  %s",
			e.Timestamp.Format("15:04:05"), e.Stage, e.Attempt, e.Outcome)
		if e.Detail != "" {
			line += ": " + truncate(e.Detail, 60)
		}
		fmt.Fprintln(w, line)
	}
	return nil
}

// Markdown writes the run as a markdown report.
func (v *Viewer) Markdown(w io.Writer, t *Transcript) error {
	fmt.Fprintf(w, "# Run %s\n\n", t.RunID)
	if t.IssueID != "" {
		fmt.Fprintf(w, "Issue: %s\n\n", t.IssueID)
	}

	fmt.Fprintf(w, "| Stage | Attempt | Outcome | Tokens | Cost |\n")
	fmt.Fprintf(w, "|-------|---------|---------|--------|------|\n")
	for _, e := range t.Entries {
		fmt.Fprintf(w, "| %s | %d | %s | %d/%d | $%.2f |\n",
			e.Stage, e.Attempt, e.Outcome, e.TokensIn, e.TokensOut, e.Cost)
	}

	fmt.Fprintf(w, "\nTotals: %d in / %d out tokens, $%.2f, %s agent time\n",
		t.TokensIn(), t.TokensOut(), t.Cost(), t.Duration().Round(time.Second))

	for _, e := range t.Entries {
		if e.Detail == "" {
			continue
		}
		fmt.Fprintf(w, "\n## %s (attempt %d)\n\n%s\n", e.Stage, e.Attempt, e.Detail)
	}
	return nil
}

// FormatRunList writes a table of run metadata.
func (v *Viewer) FormatRunList(w io.Writer, metas []artifact.RunMetadata) error {
	if len(metas) == 0 {
		fmt.Fprintln(w, "No runs found.")
		return nil
	}

	fmt.Fprintf(w, "%-24s %-12s %-10s %-16s\n", "RUN ID", "ISSUE", "STATUS", "STARTED")
	fmt.Fprintln(w, strings.Repeat("-", 66))
	for _, m := range metas {
		fmt.Fprintf(w, "%-24s %-12s %-10s %-16s\n",
			truncate(m.RunID, 24), m.IssueID, m.Status,
			m.StartedAt.Format("2006-01-02 15:04"))
	}
	fmt.Fprintf(w, "\nTotal: %d runs\n", len(metas))
	return nil
}

// FormatStats writes aggregated statistics.
func (v *Viewer) FormatStats(w io.Writer, stats *Statistics) error {
	fmt.Fprintln(w, "Run Statistics:")
	fmt.Fprintln(w, strings.Repeat("-", 40))
	fmt.Fprintf(w, "Total Runs:      %d\n", stats.TotalRuns)
	fmt.Fprintf(w, "  Done:          %d\n", stats.DoneRuns)
	fmt.Fprintf(w, "  Failed:        %d\n", stats.FailedRuns)
	fmt.Fprintf(w, "Gate Retries:    %d\n", stats.GateRetries)
	fmt.Fprintf(w, "Total Tokens:    %d in / %d out\n", stats.TotalTokensIn, stats.TotalTokensOut)
	fmt.Fprintf(w, "Avg Tokens/Run:  %d in / %d out\n", stats.AvgTokensIn, stats.AvgTokensOut)
	fmt.Fprintf(w, "Total Cost:      $%.2f\n", stats.TotalCost)
	fmt.Fprintf(w, "Avg Cost/Run:    $%.2f\n", stats.AvgCost)
	return nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}
