// Package active persists the snapshot of currently active tasks.
//
// The snapshot is one blob under a fixed key, written as a unit: at the
// expected working-set sizes a whole-snapshot write is cheaper and simpler
// than per-task blobs. The Controller in this package decides when that
// write actually happens.
package active

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/Drmusab/taskstore/internal/blob"
	"github.com/Drmusab/taskstore/internal/codec"
	"github.com/Drmusab/taskstore/internal/task"
)

const (
	// SnapshotKey is the blob key of the active-task snapshot.
	SnapshotKey = "taskstore-active"

	// LegacyKey is the unversioned key used before snapshots were keyed.
	// Read exactly once, during migration.
	LegacyKey = "tasks"

	// LegacyBackupKey receives a copy of the legacy blob before migration
	// rewrites anything, so a bad migration is recoverable by hand.
	LegacyBackupKey = "tasks-backup"
)

// SnapshotStore loads and saves the active-task snapshot as a single unit.
type SnapshotStore struct {
	blobs  blob.Store
	codec  *codec.FastCodec
	logger *log.Logger
}

// NewSnapshotStore creates a snapshot store over the given blob backend.
// A nil logger falls back to a stderr logger with an [active] prefix.
func NewSnapshotStore(blobs blob.Store, fc *codec.FastCodec, logger *log.Logger) *SnapshotStore {
	if logger == nil {
		logger = log.New(os.Stderr, "[active] ", log.LstdFlags)
	}
	return &SnapshotStore{blobs: blobs, codec: fc, logger: logger}
}

// Load reads the active snapshot.
//
// Returns an empty map when no snapshot has been written yet. Malformed
// individual records are dropped with a logged reason; only blob-level
// failures are returned as errors.
func (s *SnapshotStore) Load(ctx context.Context) (map[string]*task.Task, error) {
	data, err := s.blobs.Load(ctx, SnapshotKey)
	if err != nil {
		return nil, fmt.Errorf("load active snapshot: %w", err)
	}
	if data == nil {
		return make(map[string]*task.Task), nil
	}

	tasks, err := s.codec.Deserialize(string(data), true)
	if err != nil {
		return nil, fmt.Errorf("parse active snapshot: %w", err)
	}
	return tasks, nil
}

// Save writes the full snapshot, replacing whatever was stored before.
func (s *SnapshotStore) Save(ctx context.Context, tasks map[string]*task.Task) error {
	text, err := s.codec.Serialize(tasks, codec.SerializeOptions{})
	if err != nil {
		return fmt.Errorf("serialize active snapshot: %w", err)
	}
	if err := s.blobs.Save(ctx, SnapshotKey, []byte(text)); err != nil {
		return fmt.Errorf("save active snapshot: %w", err)
	}
	return nil
}

// Migrate performs the one-time move from the legacy unversioned key.
//
// Runs only while the versioned snapshot key is absent, so it is inherently
// one-shot. The legacy blob is backed up first; tasks that look completed
// and disabled are handed to archiveFn instead of joining the new snapshot.
//
// Returns true if a migration was performed.
func (s *SnapshotStore) Migrate(ctx context.Context, archiveFn func(context.Context, []*task.Task) error) (bool, error) {
	current, err := s.blobs.Load(ctx, SnapshotKey)
	if err != nil {
		return false, fmt.Errorf("probe active snapshot: %w", err)
	}
	if current != nil {
		return false, nil
	}

	legacy, err := s.blobs.Load(ctx, LegacyKey)
	if err != nil {
		return false, fmt.Errorf("probe legacy snapshot: %w", err)
	}
	if legacy == nil {
		return false, nil
	}

	if err := s.blobs.Save(ctx, LegacyBackupKey, legacy); err != nil {
		return false, fmt.Errorf("back up legacy snapshot: %w", err)
	}

	tasks, err := s.codec.Deserialize(string(legacy), true)
	if err != nil {
		return false, fmt.Errorf("parse legacy snapshot: %w", err)
	}

	var toArchive []*task.Task
	remaining := make(map[string]*task.Task, len(tasks))
	for id, t := range tasks {
		if t.Archivable() {
			toArchive = append(toArchive, t)
			continue
		}
		remaining[id] = t
	}

	if len(toArchive) > 0 && archiveFn != nil {
		if err := archiveFn(ctx, toArchive); err != nil {
			return false, fmt.Errorf("archive legacy tasks: %w", err)
		}
	}

	if err := s.Save(ctx, remaining); err != nil {
		return false, err
	}

	s.logger.Printf("migrated legacy snapshot: %d active, %d archived", len(remaining), len(toArchive))
	return true, nil
}
