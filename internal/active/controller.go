package active

import (
	"context"
	"log"
	"os"
	"sync"
	"time"

	"github.com/Drmusab/taskstore/internal/task"
	"github.com/Drmusab/taskstore/internal/timeutil"
)

// DefaultDebounce is the quiet period a burst of save requests must outlast
// before the snapshot is actually written.
const DefaultDebounce = 50 * time.Millisecond

// Controller serializes and debounces writes of the active-task snapshot.
//
// It holds at most one pending snapshot (last write wins) and guarantees at
// most one write is ever in flight. A burst of RequestSave calls during a
// slow write collapses to a single extra write carrying the newest state.
//
// Writes that fail are retried once inline; if both attempts fail the
// unwritten state goes back to the pending slot and a fresh debounce timer
// is armed. The retry loop at this level is unbounded: eventually persisting
// the latest state outranks bounding attempts.
type Controller struct {
	mu       sync.Mutex
	store    *SnapshotStore
	clock    timeutil.Clock
	debounce time.Duration
	logger   *log.Logger

	// pending is the single most-recently-requested snapshot.
	// hasPending distinguishes "no request" from an empty snapshot.
	pending    map[string]*task.Task
	hasPending bool

	// inFlight is true exactly while a write is executing.
	inFlight bool

	// timer is the armed debounce timer, nil when none is scheduled.
	timer timeutil.Timer

	// waiters are Flush callers to release when the queue drains.
	waiters []chan struct{}

	closed bool
}

// NewController creates a persistence controller for the given snapshot
// store. A nil clock uses wall time, a zero debounce uses DefaultDebounce,
// and a nil logger falls back to stderr with a [persist] prefix.
func NewController(store *SnapshotStore, clock timeutil.Clock, debounce time.Duration, logger *log.Logger) *Controller {
	if clock == nil {
		clock = timeutil.Real()
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = log.New(os.Stderr, "[persist] ", log.LstdFlags)
	}
	return &Controller{
		store:    store,
		clock:    clock,
		debounce: debounce,
		logger:   logger,
	}
}

// RequestSave records state as the snapshot to persist and arms the
// debounce timer if neither a timer nor a write is already active.
//
// Non-blocking: the actual write happens after the debounce interval.
// A newer request simply replaces the pending snapshot.
func (c *Controller) RequestSave(state map[string]*task.Task) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	c.pending = state
	c.hasPending = true

	if !c.inFlight && c.timer == nil {
		c.timer = c.clock.AfterFunc(c.debounce, c.drain)
	}
}

// drain writes pending snapshots until none remain.
//
// Runs on the debounce timer goroutine (or a Flush kick). The loop keeps
// going while newer state arrived during a write, so the written state is
// always the newest one requested before that write began.
func (c *Controller) drain() {
	c.mu.Lock()
	c.timer = nil

	if c.inFlight {
		// The in-flight writer's loop will pick up whatever is pending.
		c.mu.Unlock()
		return
	}

	for c.hasPending {
		state := c.pending
		c.pending = nil
		c.hasPending = false
		c.inFlight = true
		c.mu.Unlock()

		// The write itself is never cancelled; durability of the latest
		// state is the controller's whole job.
		err := c.store.Save(context.Background(), state)
		if err != nil {
			c.logger.Printf("snapshot write failed, retrying once: %v", err)
			err = c.store.Save(context.Background(), state)
		}

		c.mu.Lock()
		c.inFlight = false

		if err != nil {
			c.logger.Printf("snapshot write failed twice, requeueing: %v", err)
			// Newer state requested during the failed write wins over the
			// state we failed to persist.
			if !c.hasPending {
				c.pending = state
				c.hasPending = true
			}
			if c.timer == nil && !c.closed {
				c.timer = c.clock.AfterFunc(c.debounce, c.drain)
			}
			c.mu.Unlock()
			return
		}
	}

	waiters := c.waiters
	c.waiters = nil
	c.mu.Unlock()

	for _, w := range waiters {
		close(w)
	}
}

// Flush blocks until the pending snapshot, if any, has been durably
// written, or until ctx is done.
//
// Concurrent Flush callers all observe the same drain: every waiter is
// released together once the queue empties. Flush short-circuits the
// debounce interval; it never waits out a timer that could be fired now.
func (c *Controller) Flush(ctx context.Context) error {
	c.mu.Lock()
	if !c.hasPending && !c.inFlight {
		c.mu.Unlock()
		return nil
	}

	done := make(chan struct{})
	c.waiters = append(c.waiters, done)

	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	kick := !c.inFlight
	c.mu.Unlock()

	if kick {
		go c.drain()
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close cancels any armed debounce timer and stops accepting save requests.
// Call Flush first if the pending snapshot must not be dropped.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}
