package issueflow

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Store errors.
var (
	// ErrStateNotFound indicates no persisted state exists for the issue.
	ErrStateNotFound = errors.New("stage state not found")
)

// Per-issue file names.
const (
	stateFile    = "stage-state.json"
	tasksFile    = "tasks.json"
	progressFile = "progress.md"
	cancelFile   = "cancelled"
)

// SessionStore persists the three durable artifacts of one issue's run in
// a single directory: stage-state.json (machine-readable), progress.md
// (append-only narrative), and tasks.json (task plan). These three files
// are the orchestrator's entire durable state for an issue.
//
// All whole-file writes go through a temp-file-then-rename so a crash
// mid-write never leaves a torn file. The progress log is append-only and
// never rewritten.
type SessionStore struct {
	baseDir string
	mu      sync.Mutex
	titler  cases.Caser
}

// NewSessionStore creates a store rooted at baseDir.
func NewSessionStore(baseDir string) (*SessionStore, error) {
	if err := os.MkdirAll(filepath.Join(baseDir, "issues"), 0755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}
	return &SessionStore{
		baseDir: baseDir,
		titler:  cases.Title(language.English),
	}, nil
}

// BaseDir returns the store's root directory.
func (s *SessionStore) BaseDir() string {
	return s.baseDir
}

// IssueDir returns the directory holding one issue's artifacts.
func (s *SessionStore) IssueDir(issueID string) string {
	return filepath.Join(s.baseDir, "issues", issueID)
}

// SaveState atomically writes the issue's stage state.
func (s *SessionStore) SaveState(issueID string, state StageState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.IssueDir(issueID), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}
	return writeFileAtomic(filepath.Join(s.IssueDir(issueID), stateFile), data, 0644)
}

// LoadState reads the issue's stage state. Returns ErrStateNotFound when
// the issue has never been started.
func (s *SessionStore) LoadState(issueID string) (StageState, error) {
	data, err := os.ReadFile(filepath.Join(s.IssueDir(issueID), stateFile))
	if err != nil {
		if os.IsNotExist(err) {
			return StageState{}, ErrStateNotFound
		}
		return StageState{}, err
	}
	var state StageState
	if err := json.Unmarshal(data, &state); err != nil {
		return StageState{}, fmt.Errorf("parse %s: %w", stateFile, err)
	}
	return state, nil
}

// SaveTasks atomically writes the issue's task list.
func (s *SessionStore) SaveTasks(issueID string, tasks *TaskList) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.IssueDir(issueID), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(tasks, "", "  ")
	if err != nil {
		return err
	}
	return writeFileAtomic(filepath.Join(s.IssueDir(issueID), tasksFile), data, 0644)
}

// LoadTasks reads the issue's task list. A missing file yields an empty
// list, not an error.
func (s *SessionStore) LoadTasks(issueID string) (*TaskList, error) {
	data, err := os.ReadFile(filepath.Join(s.IssueDir(issueID), tasksFile))
	if err != nil {
		if os.IsNotExist(err) {
			return NewTaskList(), nil
		}
		return nil, err
	}
	tasks := NewTaskList()
	if err := json.Unmarshal(data, tasks); err != nil {
		return nil, fmt.Errorf("parse %s: %w", tasksFile, err)
	}
	return tasks, nil
}

// AppendProgress appends one timestamped entry under a title-cased stage
// heading to the issue's progress narrative. Entries are only ever
// appended, never rewritten, so the narrative survives as
// session-continuity context for resumed workers.
func (s *SessionStore) AppendProgress(issueID string, stage Stage, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.IssueDir(issueID), 0755); err != nil {
		return err
	}

	heading := s.titler.String(string(stage))
	entry := fmt.Sprintf("### %s [%s]\n\n%s\n\n",
		time.Now().UTC().Format(time.RFC3339), heading, text)

	f, err := os.OpenFile(filepath.Join(s.IssueDir(issueID), progressFile),
		os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.WriteString(entry); err != nil {
		return err
	}
	return f.Sync()
}

// LoadProgress returns the full progress narrative, or "" if none exists.
func (s *SessionStore) LoadProgress(issueID string) (string, error) {
	data, err := os.ReadFile(filepath.Join(s.IssueDir(issueID), progressFile))
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	return string(data), nil
}

// Cancel sets the issue's cancellation marker. The orchestrator checks it
// at every stage boundary.
func (s *SessionStore) Cancel(issueID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.IssueDir(issueID), 0755); err != nil {
		return err
	}
	stamp := time.Now().UTC().Format(time.RFC3339) + "\n"
	return writeFileAtomic(filepath.Join(s.IssueDir(issueID), cancelFile), []byte(stamp), 0644)
}

// Cancelled reports whether the issue carries a cancellation marker.
func (s *SessionStore) Cancelled(issueID string) bool {
	_, err := os.Stat(filepath.Join(s.IssueDir(issueID), cancelFile))
	return err == nil
}

// ClearCancellation removes the cancellation marker so the issue can be
// re-run after an explicit reset.
func (s *SessionStore) ClearCancellation(issueID string) error {
	err := os.Remove(filepath.Join(s.IssueDir(issueID), cancelFile))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// ResetGate zeroes the issue's consumed quality-gate budget. This is the
// explicit operator reset required before an exhausted issue gets another
// round of verification; without it, reruns re-emit the exhausted report
// without invoking any worker.
func (s *SessionStore) ResetGate(issueID string) error {
	state, err := s.LoadState(issueID)
	if err != nil {
		return err
	}
	state.GateAttempts = 0
	if state.CurrentStage == StageQAGate && state.Status == StatusFailed {
		state.Status = StatusPending
		state.LastError = ""
	}
	state.UpdatedAt = time.Now()
	return s.SaveState(issueID, state)
}

// Archive moves a finished issue's directory out of the active set.
func (s *SessionStore) Archive(issueID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	archiveDir := filepath.Join(s.baseDir, "archive")
	if err := os.MkdirAll(archiveDir, 0755); err != nil {
		return err
	}
	src := s.IssueDir(issueID)
	if _, err := os.Stat(src); os.IsNotExist(err) {
		return nil
	}
	return os.Rename(src, filepath.Join(archiveDir, issueID))
}

// writeFileAtomic writes data to a temp file in the target directory and
// renames it into place, so readers never observe a partial write.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
