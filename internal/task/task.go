// Package task defines the task record model shared by the storage engine,
// the archive store, and the codec layer.
//
// The JSON tags use camelCase to stay wire-compatible with snapshots written
// by earlier versions of the plugin.
package task

import "time"

// Status is the lifecycle state of a task.
type Status string

const (
	// StatusTodo marks a task that still needs doing.
	StatusTodo Status = "todo"

	// StatusDone marks a task whose current occurrence is completed.
	StatusDone Status = "done"

	// StatusCancelled marks a task that was abandoned without completion.
	StatusCancelled Status = "cancelled"
)

// ValidStatuses returns all valid status values.
func ValidStatuses() []Status {
	return []Status{StatusTodo, StatusDone, StatusCancelled}
}

// IsValidStatus returns true if s is a known status value.
func IsValidStatus(s Status) bool {
	switch s {
	case StatusTodo, StatusDone, StatusCancelled:
		return true
	default:
		return false
	}
}

// Priority is the optional urgency classification of a task.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityNormal Priority = "normal"
	PriorityLow    Priority = "low"
)

// ValidPriorities returns all valid priority values.
func ValidPriorities() []Priority {
	return []Priority{PriorityHigh, PriorityNormal, PriorityLow}
}

// IsValidPriority returns true if p is a known priority value.
// The empty string is valid because priority is optional.
func IsValidPriority(p Priority) bool {
	switch p {
	case "", PriorityHigh, PriorityNormal, PriorityLow:
		return true
	default:
		return false
	}
}

// Task is a single recurring or one-off task record.
//
// A task lives in the active table while it is being worked, and moves to the
// chunked archive once it is disabled with a completion timestamp recorded.
type Task struct {
	// ID uniquely identifies the task within the active table.
	ID string `json:"id"`

	// Name is the human-readable task description.
	Name string `json:"name"`

	// DueAt is the instant the task is due.
	DueAt time.Time `json:"dueAt"`

	// Enabled controls whether the task participates in due-date lookups.
	// Disabled tasks are invisible to the due index.
	Enabled bool `json:"enabled"`

	// Status is the lifecycle state (todo, done, cancelled).
	Status Status `json:"status,omitempty"`

	// Priority is the optional urgency classification.
	Priority Priority `json:"priority,omitempty"`

	// LinkedBlockID references an external editor block mirroring this task.
	// Empty means the task is not linked to any block.
	LinkedBlockID string `json:"linkedBlockId,omitempty"`

	// Version increases by one on every successful save. A save carrying a
	// version at or below the stored one is rejected as a conflict.
	Version int64 `json:"version"`

	// UpdatedAt is when the task was last saved.
	UpdatedAt time.Time `json:"updatedAt,omitempty"`

	// LastCompletedAt is when the task was most recently completed.
	// Nil if the task has never been completed.
	LastCompletedAt *time.Time `json:"lastCompletedAt,omitempty"`

	// Metadata holds arbitrary per-task key-value data.
	Metadata map[string]string `json:"metadata,omitempty"`
}

// dueDateKeyLayout is the calendar-date truncation used by the due index.
const dueDateKeyLayout = "2006-01-02"

// DueDateKey returns the UTC calendar date of DueAt as the due-index key.
func (t *Task) DueDateKey() string {
	return t.DueAt.UTC().Format(dueDateKeyLayout)
}

// DateKey truncates an arbitrary instant to the due-index key format.
func DateKey(at time.Time) string {
	return at.UTC().Format(dueDateKeyLayout)
}

// CompletionTime returns the timestamp used to bucket this task in the
// archive: LastCompletedAt when set, else UpdatedAt, else DueAt.
//
// The fallback order is load-bearing: a task archived without ever being
// completed buckets by DueAt even when that misplaces it relative to the
// year it was actually archived. Existing archives are laid out this way,
// so changing the order would strand previously written chunks.
func (t *Task) CompletionTime() time.Time {
	if t.LastCompletedAt != nil {
		return *t.LastCompletedAt
	}
	if !t.UpdatedAt.IsZero() {
		return t.UpdatedAt
	}
	return t.DueAt
}

// Archivable returns true if the task is eligible to leave the active table:
// disabled with a completion timestamp recorded.
func (t *Task) Archivable() bool {
	return !t.Enabled && t.LastCompletedAt != nil
}

// Clone returns a deep copy of the task.
func (t *Task) Clone() *Task {
	c := *t
	if t.LastCompletedAt != nil {
		at := *t.LastCompletedAt
		c.LastCompletedAt = &at
	}
	if t.Metadata != nil {
		c.Metadata = make(map[string]string, len(t.Metadata))
		for k, v := range t.Metadata {
			c.Metadata[k] = v
		}
	}
	return &c
}
