package issueflow

import (
	"fmt"
	"strings"
	"time"
)

// Task is one unit of the implementation plan for an issue.
type Task struct {
	ID          string    `json:"id"`
	Description string    `json:"description"`
	Passing     bool      `json:"passing"`
	OwningFiles []string  `json:"owningFiles,omitempty"`
	VerifiedAt  time.Time `json:"verifiedAt,omitempty"`
}

// TaskList is the ordered task plan for an issue. Created by the planning
// stages, mutated by implementation and testing, read by the quality gate.
//
// Passing may only flip to true through RecordVerification, which requires
// the verification to have actually run in the current session. Loading a
// persisted list never re-verifies anything: stale Passing values from a
// previous session are visible but cannot be refreshed optimistically.
type TaskList struct {
	Tasks []Task `json:"tasks"`

	// verified tracks which tasks had their verification run in this
	// session. Not persisted.
	verified map[string]bool
}

// NewTaskList returns an empty task list.
func NewTaskList() *TaskList {
	return &TaskList{verified: make(map[string]bool)}
}

// Add appends a task in pending (not passing) state.
func (l *TaskList) Add(id, description string, owningFiles ...string) {
	l.Tasks = append(l.Tasks, Task{
		ID:          id,
		Description: description,
		OwningFiles: owningFiles,
	})
}

// Get returns the task with the given ID, or nil.
func (l *TaskList) Get(id string) *Task {
	for i := range l.Tasks {
		if l.Tasks[i].ID == id {
			return &l.Tasks[i]
		}
	}
	return nil
}

// RecordVerification records the result of a verification run for one task
// in the current session and updates its Passing flag accordingly.
func (l *TaskList) RecordVerification(id string, passed bool) error {
	t := l.Get(id)
	if t == nil {
		return fmt.Errorf("task %s: %w", id, ErrTaskNotFound)
	}
	if l.verified == nil {
		l.verified = make(map[string]bool)
	}
	l.verified[id] = true
	t.Passing = passed
	t.VerifiedAt = time.Now()
	return nil
}

// Verified reports whether the task's verification ran in this session.
func (l *TaskList) Verified(id string) bool {
	return l.verified[id]
}

// AllPassing reports whether every task is passing. An empty list passes.
func (l *TaskList) AllPassing() bool {
	for _, t := range l.Tasks {
		if !t.Passing {
			return false
		}
	}
	return true
}

// Failing returns the tasks that are not passing.
func (l *TaskList) Failing() []Task {
	var failing []Task
	for _, t := range l.Tasks {
		if !t.Passing {
			failing = append(failing, t)
		}
	}
	return failing
}

// Summary returns a one-line human-readable summary.
func (l *TaskList) Summary() string {
	passing := 0
	for _, t := range l.Tasks {
		if t.Passing {
			passing++
		}
	}
	return fmt.Sprintf("%d/%d tasks passing", passing, len(l.Tasks))
}

// FailingSummary names the failing tasks for progress-log entries.
func (l *TaskList) FailingSummary() string {
	failing := l.Failing()
	if len(failing) == 0 {
		return ""
	}
	ids := make([]string, len(failing))
	for i, t := range failing {
		ids[i] = t.ID
	}
	return strings.Join(ids, ", ")
}
