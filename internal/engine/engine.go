// Package engine implements the task storage engine: the authoritative
// in-memory task table, its secondary indices, and the routing of completed
// tasks into the archive.
//
// The engine is the only writer of the active table, the block index, and
// the due index. Index mutations happen synchronously before the debounced
// snapshot save is even requested, so readers always observe index state
// consistent with the table regardless of what has reached disk yet. Disk
// is a durability target, not a read path.
package engine

import (
	"context"
	"fmt"
	"log"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/Drmusab/taskstore/internal/active"
	"github.com/Drmusab/taskstore/internal/archive"
	"github.com/Drmusab/taskstore/internal/blob"
	"github.com/Drmusab/taskstore/internal/codec"
	"github.com/Drmusab/taskstore/internal/mirror"
	"github.com/Drmusab/taskstore/internal/task"
	"github.com/Drmusab/taskstore/internal/timeutil"
)

// Config assembles an Engine.
type Config struct {
	// Blobs is the persistence backend. Required.
	Blobs blob.Store

	// Clock drives timestamps and debounce timers. Nil means wall time.
	Clock timeutil.Clock

	// Debounce overrides the snapshot write quiet period. Zero means the
	// controller default.
	Debounce time.Duration

	// Filter excludes tasks outside the current workspace scope, applied
	// once at load time. Nil includes everything.
	Filter func(*task.Task) bool

	// Sink receives best-effort block-attribute mirrors. Nil disables
	// mirroring.
	Sink mirror.Sink

	// Logger receives engine diagnostics. Nil means stderr.
	Logger *log.Logger
}

// Engine owns the canonical in-memory task table plus two secondary
// indices: the bidirectional block-linkage index and the due-date index.
//
// All mutation goes through the public methods; the table and indices must
// never be touched from outside.
type Engine struct {
	mu sync.Mutex

	// tasks is the active table, keyed by task ID. Source of truth for
	// all reads.
	tasks map[string]*task.Task

	// blockToTask and taskToBlock form the bidirectional block index.
	// A block maps to at most one task.
	blockToTask map[string]string
	taskToBlock map[string]string

	// dueIndex maps a truncated due date to the set of enabled task IDs
	// due that day.
	dueIndex map[string]map[string]struct{}

	snapshots  *active.SnapshotStore
	controller *active.Controller
	archives   *archive.Store
	mirrors    *mirror.Mirror
	clock      timeutil.Clock
	filter     func(*task.Task) bool
	logger     *log.Logger

	initialized bool
}

// New assembles an engine and its collaborators. Codec instances are
// constructed here and injected downward; nothing in the engine shares
// process-wide codec state.
func New(cfg Config) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "[engine] ", log.LstdFlags)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = timeutil.Real()
	}

	comp := codec.NewCompressor()
	fc := codec.NewFastCodec(logger)

	snapshots := active.NewSnapshotStore(cfg.Blobs, fc, logger)

	e := &Engine{
		tasks:       make(map[string]*task.Task),
		blockToTask: make(map[string]string),
		taskToBlock: make(map[string]string),
		dueIndex:    make(map[string]map[string]struct{}),
		snapshots:   snapshots,
		controller:  active.NewController(snapshots, clock, cfg.Debounce, logger),
		archives:    archive.NewStore(cfg.Blobs, comp, fc, logger),
		clock:       clock,
		filter:      cfg.Filter,
		logger:      logger,
	}
	if cfg.Sink != nil {
		e.mirrors = mirror.New(cfg.Sink, clock, logger)
	}
	return e
}

// Init runs the legacy migration, loads the active snapshot, applies the
// inclusion filter, and rebuilds both secondary indices.
//
// Blob-level load failures are returned; individually malformed records
// were already dropped by the codec with a logged reason.
func (e *Engine) Init(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, err := e.snapshots.Migrate(ctx, e.archives.ArchiveTasks); err != nil {
		return fmt.Errorf("migrate legacy snapshot: %w", err)
	}

	loaded, err := e.snapshots.Load(ctx)
	if err != nil {
		return err
	}

	excluded := 0
	e.tasks = make(map[string]*task.Task, len(loaded))
	for id, t := range loaded {
		if e.filter != nil && !e.filter(t) {
			excluded++
			continue
		}
		e.tasks[id] = t
	}
	if excluded > 0 {
		e.logger.Printf("excluded %d tasks outside workspace scope", excluded)
	}

	e.rebuildIndicesLocked()
	e.initialized = true
	return nil
}

// rebuildIndicesLocked reconstructs both secondary indices from the active
// table. Caller holds e.mu.
func (e *Engine) rebuildIndicesLocked() {
	e.blockToTask = make(map[string]string)
	e.taskToBlock = make(map[string]string)
	e.dueIndex = make(map[string]map[string]struct{})

	for id, t := range e.tasks {
		if t.LinkedBlockID != "" {
			e.linkBlockLocked(id, t.LinkedBlockID)
		}
		if t.Enabled {
			e.addDueLocked(t.DueDateKey(), id)
		}
	}
}

// SaveTask stores a task, enforcing optimistic concurrency.
//
// If a stored task with the same ID carries a version at or above the
// incoming one, the save fails with a *task.ConflictError and nothing
// changes. Otherwise the incoming task's version is bumped, its UpdatedAt
// stamped, both indices maintained eagerly, and a debounced snapshot save
// requested. A block-linked task additionally gets a fire-and-forget
// mirror write.
func (e *Engine) SaveTask(ctx context.Context, t *task.Task) error {
	if t == nil || t.ID == "" {
		return fmt.Errorf("task id is required")
	}
	if !task.IsValidStatus(t.Status) && t.Status != "" {
		return fmt.Errorf("task %s: invalid status %q", t.ID, t.Status)
	}

	e.mu.Lock()

	existing := e.tasks[t.ID]
	if existing != nil && existing.Version >= t.Version {
		stored, requested := existing.Version, t.Version
		e.mu.Unlock()
		return &task.ConflictError{TaskID: t.ID, Stored: stored, Requested: requested}
	}

	t.Version++
	t.UpdatedAt = e.clock.Now().UTC()

	stored := t.Clone()

	// Block index: unlink the previous block first if the link changed.
	if existing != nil && existing.LinkedBlockID != "" && existing.LinkedBlockID != stored.LinkedBlockID {
		e.unlinkBlockLocked(stored.ID, existing.LinkedBlockID)
	}
	if stored.LinkedBlockID != "" {
		e.linkBlockLocked(stored.ID, stored.LinkedBlockID)
	}

	// Due index: drop the stale date key before adding the current one.
	if existing != nil && existing.Enabled {
		if !stored.Enabled || existing.DueDateKey() != stored.DueDateKey() {
			e.removeDueLocked(existing.DueDateKey(), stored.ID)
		}
	}
	if stored.Enabled {
		e.addDueLocked(stored.DueDateKey(), stored.ID)
	}

	e.tasks[stored.ID] = stored
	e.requestSaveLocked()

	blockID := stored.LinkedBlockID
	e.mu.Unlock()

	if blockID != "" && e.mirrors != nil {
		e.mirrors.Write(blockID, mirrorAttrs(stored))
	}

	return nil
}

// DeleteTask removes a task from the active table and both indices.
// It does not archive; deletion is loss of the record by design of the
// caller. Deleting an absent task is a no-op.
func (e *Engine) DeleteTask(ctx context.Context, id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	t, ok := e.tasks[id]
	if !ok {
		return nil
	}

	if t.LinkedBlockID != "" {
		e.unlinkBlockLocked(id, t.LinkedBlockID)
	}
	e.removeDueLocked(t.DueDateKey(), id)
	delete(e.tasks, id)

	e.requestSaveLocked()
	return nil
}

// ArchiveTask moves a task from the active table into the archive.
//
// The task must be archivable: disabled with a completion timestamp. The
// archive write happens first; the task leaves the table and both indices
// only once the archive holds it, so a failed write leaves the active
// record untouched.
func (e *Engine) ArchiveTask(ctx context.Context, t *task.Task) error {
	if t == nil || t.ID == "" {
		return fmt.Errorf("task id is required")
	}
	if !t.Archivable() {
		return fmt.Errorf("task %s is not archivable: requires enabled=false and a completion timestamp", t.ID)
	}

	if err := e.archives.ArchiveTasks(ctx, []*task.Task{t.Clone()}); err != nil {
		return fmt.Errorf("archive task %s: %w", t.ID, err)
	}

	e.mu.Lock()
	if current, ok := e.tasks[t.ID]; ok {
		if current.LinkedBlockID != "" {
			e.unlinkBlockLocked(t.ID, current.LinkedBlockID)
		}
		e.removeDueLocked(current.DueDateKey(), t.ID)
		delete(e.tasks, t.ID)
		e.requestSaveLocked()
	}
	e.mu.Unlock()
	return nil
}

// LoadArchive queries archived task snapshots.
func (e *Engine) LoadArchive(ctx context.Context, q archive.Query) ([]*task.Task, error) {
	return e.archives.Load(ctx, q)
}

// ArchiveStats returns the archive index metadata.
func (e *Engine) ArchiveStats(ctx context.Context) (archive.Index, error) {
	return e.archives.Stats(ctx)
}

// GetTask returns a copy of the task with the given ID, or nil when it is
// not in the active table.
func (e *Engine) GetTask(id string) *task.Task {
	e.mu.Lock()
	defer e.mu.Unlock()

	t, ok := e.tasks[id]
	if !ok {
		return nil
	}
	return t.Clone()
}

// AllTasks returns copies of every task in the active table, ordered by ID.
func (e *Engine) AllTasks() []*task.Task {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]*task.Task, 0, len(e.tasks))
	for _, t := range e.tasks {
		out = append(out, t.Clone())
	}
	sortByID(out)
	return out
}

// EnabledTasks returns copies of all enabled tasks, ordered by ID.
func (e *Engine) EnabledTasks() []*task.Task {
	e.mu.Lock()
	defer e.mu.Unlock()

	var out []*task.Task
	for _, t := range e.tasks {
		if t.Enabled {
			out = append(out, t.Clone())
		}
	}
	sortByID(out)
	return out
}

// TasksInRange returns copies of tasks whose due instant falls within
// [start, end], ordered by due time then ID. The active set is small
// enough that a full scan beats maintaining another index.
func (e *Engine) TasksInRange(start, end time.Time) []*task.Task {
	e.mu.Lock()
	defer e.mu.Unlock()

	var out []*task.Task
	for _, t := range e.tasks {
		if t.DueAt.Before(start) || t.DueAt.After(end) {
			continue
		}
		out = append(out, t.Clone())
	}
	sortByDue(out)
	return out
}

// TasksDueOn returns copies of the enabled tasks due on the calendar date
// of the given instant (UTC).
//
// Index entries whose task is missing, disabled, or re-dated are stale:
// they are removed on the spot and excluded from results. This lazy
// self-healing backs up the eager maintenance in SaveTask and DeleteTask.
func (e *Engine) TasksDueOn(date time.Time) []*task.Task {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := e.collectDueLocked(task.DateKey(date))
	sortByID(out)
	return out
}

// TasksDueOnOrBefore returns copies of the enabled tasks due on or before
// the calendar date of the given instant (UTC), ordered by due time.
func (e *Engine) TasksDueOnOrBefore(date time.Time) []*task.Task {
	e.mu.Lock()
	defer e.mu.Unlock()

	cutoff := task.DateKey(date)

	// Date keys are ISO calendar dates, so string order is date order.
	keys := make([]string, 0, len(e.dueIndex))
	for key := range e.dueIndex {
		if key <= cutoff {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	var out []*task.Task
	for _, key := range keys {
		out = append(out, e.collectDueLocked(key)...)
	}
	sortByDue(out)
	return out
}

// collectDueLocked returns clones of the live tasks under one due-index
// key, pruning stale entries as it goes. Caller holds e.mu.
func (e *Engine) collectDueLocked(key string) []*task.Task {
	ids, ok := e.dueIndex[key]
	if !ok {
		return nil
	}

	var out []*task.Task
	for id := range ids {
		t, live := e.tasks[id]
		if !live || !t.Enabled || t.DueDateKey() != key {
			delete(ids, id)
			continue
		}
		out = append(out, t.Clone())
	}

	if len(ids) == 0 {
		delete(e.dueIndex, key)
	}
	return out
}

// LinkedTaskID returns the task currently linked to a block, if any.
func (e *Engine) LinkedTaskID(blockID string) (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	id, ok := e.blockToTask[blockID]
	return id, ok
}

// Flush blocks until the pending snapshot, if any, is durably written.
func (e *Engine) Flush(ctx context.Context) error {
	return e.controller.Flush(ctx)
}

// Close stops the debounce timer and the mirror's retry timers. It does
// not flush; call Flush first when the pending snapshot matters.
func (e *Engine) Close() {
	e.controller.Close()
	if e.mirrors != nil {
		e.mirrors.Close()
	}
}

// MirrorDisabled reports whether the block-attribute mirror shut itself
// off after the sink declared the capability unsupported.
func (e *Engine) MirrorDisabled() bool {
	if e.mirrors == nil {
		return true
	}
	return e.mirrors.Disabled()
}

// requestSaveLocked hands the controller a snapshot of the table. The map
// is copied because the controller serializes asynchronously; the task
// values themselves are never mutated in place after storing, only
// replaced. Caller holds e.mu.
func (e *Engine) requestSaveLocked() {
	snapshot := make(map[string]*task.Task, len(e.tasks))
	for id, t := range e.tasks {
		snapshot[id] = t
	}
	e.controller.RequestSave(snapshot)
}

// linkBlockLocked points a block at a task, displacing any previous owner
// so a block never maps to more than one task. Caller holds e.mu.
func (e *Engine) linkBlockLocked(taskID, blockID string) {
	if prev, ok := e.blockToTask[blockID]; ok && prev != taskID {
		delete(e.taskToBlock, prev)
	}
	e.blockToTask[blockID] = taskID
	e.taskToBlock[taskID] = blockID
}

// unlinkBlockLocked removes a block mapping in both directions.
// Caller holds e.mu.
func (e *Engine) unlinkBlockLocked(taskID, blockID string) {
	if e.blockToTask[blockID] == taskID {
		delete(e.blockToTask, blockID)
	}
	if e.taskToBlock[taskID] == blockID {
		delete(e.taskToBlock, taskID)
	}
}

// addDueLocked inserts a task into a due-index bucket. Caller holds e.mu.
func (e *Engine) addDueLocked(key, id string) {
	ids, ok := e.dueIndex[key]
	if !ok {
		ids = make(map[string]struct{})
		e.dueIndex[key] = ids
	}
	ids[id] = struct{}{}
}

// removeDueLocked drops a task from a due-index bucket. Caller holds e.mu.
func (e *Engine) removeDueLocked(key, id string) {
	if ids, ok := e.dueIndex[key]; ok {
		delete(ids, id)
		if len(ids) == 0 {
			delete(e.dueIndex, key)
		}
	}
}

// mirrorAttrs flattens a task into the attribute map pushed to the block
// sink.
func mirrorAttrs(t *task.Task) map[string]string {
	attrs := map[string]string{
		"taskId":  t.ID,
		"name":    t.Name,
		"dueAt":   t.DueAt.UTC().Format(time.RFC3339),
		"enabled": fmt.Sprintf("%t", t.Enabled),
		"version": fmt.Sprintf("%d", t.Version),
	}
	if t.Status != "" {
		attrs["status"] = string(t.Status)
	}
	return attrs
}

// sortByID orders tasks by ID.
func sortByID(tasks []*task.Task) {
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].ID < tasks[j].ID })
}

// sortByDue orders tasks by due instant, breaking ties by ID.
func sortByDue(tasks []*task.Task) {
	sort.Slice(tasks, func(i, j int) bool {
		if tasks[i].DueAt.Equal(tasks[j].DueAt) {
			return tasks[i].ID < tasks[j].ID
		}
		return tasks[i].DueAt.Before(tasks[j].DueAt)
	})
}
