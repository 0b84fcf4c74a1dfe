package git

import (
	"regexp"
	"strings"
)

// BranchNamer generates deterministic branch names for issues.
// Determinism matters: a restarted pipeline must derive the same branch
// name for the same issue so workspace acquisition can find it again.
type BranchNamer struct {
	Prefix    string // Branch prefix (default: "issue")
	MaxLength int    // Maximum branch name length
}

// DefaultBranchNamer returns a namer with default settings.
func DefaultBranchNamer() *BranchNamer {
	return &BranchNamer{
		Prefix:    "issue",
		MaxLength: 100,
	}
}

// ForIssue generates a branch name from an issue ID and title.
// Example: "QX-7", "Fix foo handling" -> "issue/qx-7-fix-foo-handling"
func (n *BranchNamer) ForIssue(issueID, title string) string {
	parts := []string{strings.ToLower(issueID)}

	if title != "" {
		slug := Slugify(title)
		if len(slug) > 50 {
			slug = strings.TrimRight(slug[:50], "-")
		}
		parts = append(parts, slug)
	}

	branch := n.Prefix + "/" + strings.Join(parts, "-")

	if n.MaxLength > 0 && len(branch) > n.MaxLength {
		branch = branch[:n.MaxLength]
	}

	return CleanBranch(branch)
}

var (
	slugInvalid  = regexp.MustCompile(`[^a-z0-9-]`)
	slugCollapse = regexp.MustCompile(`-+`)
)

// Slugify converts arbitrary text to a lowercase hyphenated slug.
func Slugify(s string) string {
	slug := strings.ToLower(strings.TrimSpace(s))
	slug = strings.ReplaceAll(slug, " ", "-")
	slug = slugInvalid.ReplaceAllString(slug, "")
	slug = slugCollapse.ReplaceAllString(slug, "-")
	return strings.Trim(slug, "-")
}

// CleanBranch removes characters git refuses in ref names and
// trims trailing separators left over from truncation.
func CleanBranch(branch string) string {
	branch = strings.ReplaceAll(branch, "..", "-")
	branch = strings.ReplaceAll(branch, "~", "")
	branch = strings.ReplaceAll(branch, "^", "")
	branch = strings.ReplaceAll(branch, ":", "")
	branch = strings.ReplaceAll(branch, " ", "-")
	return strings.Trim(branch, "-/.")
}
