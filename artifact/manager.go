package artifact

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// ErrNotFound is returned when a run or artifact does not exist.
var ErrNotFound = errors.New("artifact not found")

// DefaultCompressAbove is the size in bytes above which artifacts are
// stored gzip-compressed.
const DefaultCompressAbove = 64 * 1024

// RunMetadata describes one pipeline run's artifact directory.
type RunMetadata struct {
	RunID     string    `json:"run_id"`
	IssueID   string    `json:"issue_id"`
	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at,omitempty"`
}

// Manager saves and loads artifacts for pipeline runs.
type Manager struct {
	baseDir       string
	compressAbove int
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithCompressAbove sets the compression threshold in bytes. Zero
// disables compression.
func WithCompressAbove(n int) ManagerOption {
	return func(m *Manager) { m.compressAbove = n }
}

// NewManager creates a Manager rooted at baseDir.
func NewManager(baseDir string, opts ...ManagerOption) *Manager {
	m := &Manager{
		baseDir:       baseDir,
		compressAbove: DefaultCompressAbove,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// RunDir returns the directory of a run's artifacts.
func (m *Manager) RunDir(runID string) string {
	return filepath.Join(m.baseDir, "runs", runID)
}

// Save stores an artifact for a run. Large payloads are written
// gzip-compressed with a .gz suffix; Load reverses this transparently.
func (m *Manager) Save(runID, name string, data []byte) error {
	dir := m.RunDir(runID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create run dir: %w", err)
	}

	if m.compressAbove > 0 && len(data) > m.compressAbove {
		var buf bytes.Buffer
		gz := gzip.NewWriter(&buf)
		if _, err := gz.Write(data); err != nil {
			return err
		}
		if err := gz.Close(); err != nil {
			return err
		}
		return os.WriteFile(filepath.Join(dir, name+".gz"), buf.Bytes(), 0o644)
	}

	return os.WriteFile(filepath.Join(dir, name), data, 0o644)
}

// SaveJSON stores a value as an indented JSON artifact.
func (m *Manager) SaveJSON(runID, name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", name, err)
	}
	return m.Save(runID, name, data)
}

// Load reads an artifact, decompressing it if it was stored compressed.
func (m *Manager) Load(runID, name string) ([]byte, error) {
	dir := m.RunDir(runID)

	if data, err := os.ReadFile(filepath.Join(dir, name)); err == nil {
		return data, nil
	}

	f, err := os.Open(filepath.Join(dir, name + ".gz"))
	if err != nil {
		return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, runID, name)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer gz.Close()

	return io.ReadAll(gz)
}

// List returns the artifact names of a run, with compression suffixes
// stripped. metadata.json is not listed.
func (m *Manager) List(runID string) ([]string, error) {
	entries, err := os.ReadDir(m.RunDir(runID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: run %s", ErrNotFound, runID)
		}
		return nil, err
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || entry.Name() == "metadata.json" {
			continue
		}
		names = append(names, strings.TrimSuffix(entry.Name(), ".gz"))
	}
	sort.Strings(names)
	return names, nil
}

// WriteMetadata records the run metadata.
func (m *Manager) WriteMetadata(meta RunMetadata) error {
	dir := m.RunDir(meta.RunID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create run dir: %w", err)
	}
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "metadata.json"), data, 0o644)
}

// ReadMetadata loads the run metadata.
func (m *Manager) ReadMetadata(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(m.RunDir(runID), "metadata.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: run %s", ErrNotFound, runID)
		}
		return nil, err
	}
	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("parse metadata for %s: %w", runID, err)
	}
	return &meta, nil
}

// Runs lists all run IDs with artifacts on disk.
func (m *Manager) Runs() ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(m.baseDir, "runs"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var ids []string
	for _, entry := range entries {
		if entry.IsDir() {
			ids = append(ids, entry.Name())
		}
	}
	sort.Strings(ids)
	return ids, nil
}
