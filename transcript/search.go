package transcript

import (
	"bufio"
	"bytes"
	"errors"
	"sort"
	"strings"

	issueflow "github.com/randalmurphal/issueflow"
	"github.com/randalmurphal/issueflow/artifact"
)

// Searcher queries recorded runs and their transcripts.
type Searcher struct {
	artifacts *artifact.Manager
	recorder  *Recorder
}

// NewSearcher creates a searcher over the artifact store.
func NewSearcher(artifacts *artifact.Manager) *Searcher {
	return &Searcher{
		artifacts: artifacts,
		recorder:  NewRecorder(artifacts),
	}
}

// FindByIssue returns run metadata for every run of an issue, newest
// first.
func (s *Searcher) FindByIssue(issueID string) ([]artifact.RunMetadata, error) {
	return s.find(func(m *artifact.RunMetadata) bool {
		return m.IssueID == issueID
	})
}

// FindByStatus returns run metadata for every run with the given
// status, newest first.
func (s *Searcher) FindByStatus(status string) ([]artifact.RunMetadata, error) {
	return s.find(func(m *artifact.RunMetadata) bool {
		return m.Status == status
	})
}

func (s *Searcher) find(predicate func(*artifact.RunMetadata) bool) ([]artifact.RunMetadata, error) {
	runs, err := s.artifacts.Runs()
	if err != nil {
		return nil, err
	}

	var results []artifact.RunMetadata
	for _, runID := range runs {
		meta, err := s.artifacts.ReadMetadata(runID)
		if err != nil {
			continue
		}
		if predicate(meta) {
			results = append(results, *meta)
		}
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].StartedAt.After(results[j].StartedAt)
	})
	return results, nil
}

// Match is one line of agent output matching a Grep query.
type Match struct {
	RunID    string
	Artifact string
	Line     int
	Text     string
}

// GrepOptions configures content search.
type GrepOptions struct {
	CaseSensitive bool
	MaxResults    int
}

// Grep scans every run's stage output artifacts for a substring.
func (s *Searcher) Grep(query string, opts GrepOptions) ([]Match, error) {
	if !opts.CaseSensitive {
		query = strings.ToLower(query)
	}

	runs, err := s.artifacts.Runs()
	if err != nil {
		return nil, err
	}

	var matches []Match
	for _, runID := range runs {
		names, err := s.artifacts.List(runID)
		if err != nil {
			continue
		}
		for _, name := range names {
			if !strings.HasSuffix(name, ".txt") {
				continue
			}
			data, err := s.artifacts.Load(runID, name)
			if err != nil {
				continue
			}

			scanner := bufio.NewScanner(bytes.NewReader(data))
			scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
			line := 0
			for scanner.Scan() {
				line++
				text := scanner.Text()
				haystack := text
				if !opts.CaseSensitive {
					haystack = strings.ToLower(text)
				}
				if !strings.Contains(haystack, query) {
					continue
				}
				matches = append(matches, Match{
					RunID:    runID,
					Artifact: name,
					Line:     line,
					Text:     strings.TrimSpace(text),
				})
				if opts.MaxResults > 0 && len(matches) >= opts.MaxResults {
					return matches, nil
				}
			}
		}
	}
	return matches, nil
}

// Statistics aggregates token and cost usage across runs.
type Statistics struct {
	TotalRuns      int
	DoneRuns       int
	FailedRuns     int
	GateRetries    int
	TotalTokensIn  int
	TotalTokensOut int
	TotalCost      float64
	AvgTokensIn    int
	AvgTokensOut   int
	AvgCost        float64
}

// Stats aggregates every recorded transcript.
func (s *Searcher) Stats() (*Statistics, error) {
	runs, err := s.artifacts.Runs()
	if err != nil {
		return nil, err
	}

	stats := &Statistics{}
	for _, runID := range runs {
		t, err := s.recorder.Load(runID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return nil, err
		}

		stats.TotalRuns++
		stats.TotalTokensIn += t.TokensIn()
		stats.TotalTokensOut += t.TokensOut()
		stats.TotalCost += t.Cost()

		for _, e := range t.Entries {
			if e.Outcome == issueflow.OutcomeFailed {
				stats.GateRetries++
			}
		}

		if meta, err := s.artifacts.ReadMetadata(runID); err == nil {
			switch meta.Status {
			case "done":
				stats.DoneRuns++
			case "failed":
				stats.FailedRuns++
			}
		}
	}

	if stats.TotalRuns > 0 {
		stats.AvgTokensIn = stats.TotalTokensIn / stats.TotalRuns
		stats.AvgTokensOut = stats.TotalTokensOut / stats.TotalRuns
		stats.AvgCost = stats.TotalCost / float64(stats.TotalRuns)
	}
	return stats, nil
}
