package prompt

import (
	"bytes"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	issueflow "github.com/randalmurphal/issueflow"
)

// Default prompts for every pipeline stage, compiled into the binary.
//
//go:embed prompts/*.txt
var embeddedPrompts embed.FS

// Loader loads and renders prompt templates.
type Loader struct {
	dirs    []string
	cache   map[string]*template.Template
	funcMap template.FuncMap
}

// NewLoader creates a prompt loader for the given project directory.
// Search order:
//  1. .issueflow/prompts/ in the project
//  2. prompts/ in the project
//  3. embedded defaults
func NewLoader(projectDir string) *Loader {
	return &Loader{
		dirs: []string{
			filepath.Join(projectDir, ".issueflow", "prompts"),
			filepath.Join(projectDir, "prompts"),
		},
		cache:   make(map[string]*template.Template),
		funcMap: defaultFuncMap(),
	}
}

// AddSearchDir prepends a directory to the search order.
func (l *Loader) AddSearchDir(dir string) {
	l.dirs = append([]string{dir}, l.dirs...)
}

// AddFunc adds a custom template function.
func (l *Loader) AddFunc(name string, fn any) {
	l.funcMap[name] = fn
}

// ForStage renders the prompt for a pipeline stage with the issue and
// attempt wired in as template variables.
func (l *Loader) ForStage(stage issueflow.Stage, issue *issueflow.Issue, attempt int) (string, error) {
	return l.Render(string(stage), map[string]any{
		"Issue":   issue,
		"Stage":   string(stage),
		"Attempt": attempt,
	})
}

// Load loads a prompt by name without variable substitution.
func (l *Loader) Load(name string) (string, error) {
	return l.Render(name, nil)
}

// Render loads a prompt and substitutes the given variables.
func (l *Loader) Render(name string, vars map[string]any) (string, error) {
	tmpl, err := l.getTemplate(name)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, vars); err != nil {
		return "", fmt.Errorf("render prompt %s: %w", name, err)
	}
	return buf.String(), nil
}

// Exists reports whether a prompt with this name can be resolved.
func (l *Loader) Exists(name string) bool {
	_, err := l.loadRaw(name)
	return err == nil
}

// List returns all available prompt names, overrides and embedded
// defaults combined.
func (l *Loader) List() []string {
	names := make(map[string]bool)

	for _, dir := range l.dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, entry := range entries {
			if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".txt") {
				names[strings.TrimSuffix(entry.Name(), ".txt")] = true
			}
		}
	}

	entries, err := embeddedPrompts.ReadDir("prompts")
	if err == nil {
		for _, entry := range entries {
			names[strings.TrimSuffix(entry.Name(), ".txt")] = true
		}
	}

	result := make([]string, 0, len(names))
	for name := range names {
		result = append(result, name)
	}
	return result
}

// ClearCache drops all cached templates so edited overrides are
// re-read.
func (l *Loader) ClearCache() {
	l.cache = make(map[string]*template.Template)
}

func (l *Loader) getTemplate(name string) (*template.Template, error) {
	if tmpl, ok := l.cache[name]; ok {
		return tmpl, nil
	}

	content, err := l.loadRaw(name)
	if err != nil {
		return nil, err
	}

	tmpl, err := template.New(name).Funcs(l.funcMap).Parse(content)
	if err != nil {
		return nil, fmt.Errorf("parse prompt template %s: %w", name, err)
	}

	l.cache[name] = tmpl
	return tmpl, nil
}

func (l *Loader) loadRaw(name string) (string, error) {
	filename := name + ".txt"

	for _, dir := range l.dirs {
		data, err := os.ReadFile(filepath.Join(dir, filename))
		if err == nil {
			return string(data), nil
		}
	}

	data, err := embeddedPrompts.ReadFile("prompts/" + filename)
	if err != nil {
		return "", fmt.Errorf("prompt not found: %s", name)
	}
	return string(data), nil
}

func defaultFuncMap() template.FuncMap {
	return template.FuncMap{
		"join":     strings.Join,
		"trim":     strings.TrimSpace,
		"upper":    strings.ToUpper,
		"lower":    strings.ToLower,
		"title":    cases.Title(language.English).String,
		"contains": strings.Contains,
		"indent":   indentString,
		"quote":    func(s string) string { return fmt.Sprintf("%q", s) },
	}
}

func indentString(indent int, s string) string {
	if s == "" {
		return s
	}
	prefix := strings.Repeat(" ", indent)
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		if line != "" {
			lines[i] = prefix + line
		}
	}
	return strings.Join(lines, "\n")
}

// Builder assembles a prompt from markdown sections.
type Builder struct {
	parts []string
}

// NewBuilder creates an empty prompt builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Add appends raw text.
func (b *Builder) Add(text string) *Builder {
	b.parts = append(b.parts, text)
	return b
}

// AddSection appends a markdown section with a header.
func (b *Builder) AddSection(header, content string) *Builder {
	b.parts = append(b.parts, fmt.Sprintf("## %s\n\n%s", header, content))
	return b
}

// AddList appends a bulleted list, optionally with a header.
func (b *Builder) AddList(header string, items []string) *Builder {
	var buf strings.Builder
	if header != "" {
		buf.WriteString("## ")
		buf.WriteString(header)
		buf.WriteString("\n\n")
	}
	for _, item := range items {
		buf.WriteString("- ")
		buf.WriteString(item)
		buf.WriteString("\n")
	}
	b.parts = append(b.parts, buf.String())
	return b
}

// AddFile appends file content wrapped in XML-style tags.
func (b *Builder) AddFile(path, content string) *Builder {
	b.parts = append(b.parts, fmt.Sprintf("<file path=%q>\n%s\n</file>", path, content))
	return b
}

// Build returns the assembled prompt.
func (b *Builder) Build() string {
	return strings.Join(b.parts, "\n\n")
}
