package issueflow

import "strings"

// Issue represents a unit of work accepted from an issue tracker.
type Issue struct {
	ID          string            `json:"id"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Labels      []string          `json:"labels,omitempty"`
	Repo        string            `json:"repo,omitempty"`
	Priority    string            `json:"priority,omitempty"`
	Reporter    string            `json:"reporter,omitempty"`
	URL         string            `json:"url,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// Labels that mark an issue as carrying UI work.
var designLabels = []string{"ui", "frontend", "design", "ux"}

// HasLabel reports whether the issue carries the label (case-insensitive).
func (i *Issue) HasLabel(name string) bool {
	for _, l := range i.Labels {
		if strings.EqualFold(l, name) {
			return true
		}
	}
	return false
}

// NeedsDesign reports whether the issue's labels indicate UI work.
// Issues without a design label skip the Designing stage entirely.
func (i *Issue) NeedsDesign() bool {
	for _, l := range designLabels {
		if i.HasLabel(l) {
			return true
		}
	}
	return false
}
