package task

import (
	"errors"
	"fmt"
)

// ErrConflict is the sentinel for optimistic-concurrency failures.
// Match with errors.Is; the concrete error is always a *ConflictError.
var ErrConflict = errors.New("task version conflict")

// ConflictError reports a save that carried a stale version. The caller is
// expected to re-read the task and retry; the stored task is left unchanged.
type ConflictError struct {
	// TaskID is the id of the task whose save was rejected.
	TaskID string

	// Stored is the version currently held in the active table.
	Stored int64

	// Requested is the version carried by the rejected save.
	Requested int64
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("task %s: stored version %d is not older than requested version %d",
		e.TaskID, e.Stored, e.Requested)
}

// Is reports ErrConflict so callers can match without the concrete type.
func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}
