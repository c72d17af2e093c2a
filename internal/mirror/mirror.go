// Package mirror pushes task state to an external block-attribute sink on a
// best-effort basis.
//
// The mirror is strictly fire-and-forget: storage correctness never depends
// on it. Failed pushes are retried a bounded number of times per block on a
// growing delay, then dropped with a warning. A sink that reports itself
// unsupported disables mirroring for the rest of the session.
package mirror

import (
	"context"
	"errors"
	"log"
	"os"
	"sync"
	"time"

	"github.com/Drmusab/taskstore/internal/timeutil"
)

// ErrUnsupported is returned by a Sink whose host lacks the block-attribute
// API entirely. It is a permanent condition: the mirror shuts itself off
// for the session instead of retrying.
var ErrUnsupported = errors.New("block attribute API unsupported")

// Sink receives mirrored task attributes for an external block.
type Sink interface {
	// SetBlockAttrs writes attrs onto the block. Returning ErrUnsupported
	// (directly or wrapped) marks the capability as permanently missing;
	// any other error is treated as transient and retried.
	SetBlockAttrs(ctx context.Context, blockID string, attrs map[string]string) error
}

const (
	// baseRetryDelay scales with the attempt number: 2s, then 4s.
	baseRetryDelay = 2 * time.Second

	// maxAttempts bounds deliveries per block before the update is dropped.
	maxAttempts = 3
)

// Mirror queues best-effort attribute writes with per-block retry state.
type Mirror struct {
	mu     sync.Mutex
	sink   Sink
	clock  timeutil.Clock
	logger *log.Logger

	// retries holds in-progress deliveries keyed by block ID.
	// A newer write for the same block replaces the queued attributes.
	retries map[string]*retryState

	disabled bool
	closed   bool
}

// retryState tracks one block's pending delivery.
type retryState struct {
	attrs   map[string]string
	attempt int
	timer   timeutil.Timer
}

// New creates a mirror over the given sink. A nil clock uses wall time and
// a nil logger falls back to stderr with a [mirror] prefix.
func New(sink Sink, clock timeutil.Clock, logger *log.Logger) *Mirror {
	if clock == nil {
		clock = timeutil.Real()
	}
	if logger == nil {
		logger = log.New(os.Stderr, "[mirror] ", log.LstdFlags)
	}
	return &Mirror{
		sink:    sink,
		clock:   clock,
		logger:  logger,
		retries: make(map[string]*retryState),
	}
}

// Write queues a best-effort attribute push for a block and returns
// immediately. A write for a block that already has a delivery pending
// replaces the queued attributes; the existing retry schedule stands.
func (m *Mirror) Write(blockID string, attrs map[string]string) {
	if m == nil || m.sink == nil {
		return
	}

	m.mu.Lock()
	if m.disabled || m.closed {
		m.mu.Unlock()
		return
	}

	if st, ok := m.retries[blockID]; ok {
		st.attrs = attrs
		m.mu.Unlock()
		return
	}

	m.retries[blockID] = &retryState{attrs: attrs}
	m.mu.Unlock()

	go m.deliver(blockID)
}

// deliver makes one delivery attempt for a block and schedules a retry on
// transient failure.
func (m *Mirror) deliver(blockID string) {
	m.mu.Lock()
	st, ok := m.retries[blockID]
	if !ok || m.disabled || m.closed {
		m.mu.Unlock()
		return
	}
	st.timer = nil
	st.attempt++
	attrs := st.attrs
	m.mu.Unlock()

	err := m.sink.SetBlockAttrs(context.Background(), blockID, attrs)

	m.mu.Lock()
	defer m.mu.Unlock()

	if err == nil {
		delete(m.retries, blockID)
		return
	}

	if errors.Is(err, ErrUnsupported) {
		m.logger.Printf("block attribute API unsupported, disabling mirror for this session")
		m.disableLocked()
		return
	}

	if st.attempt >= maxAttempts {
		m.logger.Printf("dropping attribute update for block %s after %d attempts: %v", blockID, st.attempt, err)
		delete(m.retries, blockID)
		return
	}

	if m.closed {
		return
	}

	delay := baseRetryDelay * time.Duration(st.attempt)
	st.timer = m.clock.AfterFunc(delay, func() { m.deliver(blockID) })
}

// Disabled reports whether the sink declared itself unsupported.
func (m *Mirror) Disabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.disabled
}

// PendingCount returns the number of blocks with a delivery in progress.
func (m *Mirror) PendingCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.retries)
}

// Close cancels all retry timers. Queued updates are dropped; the mirror
// is best-effort by contract.
func (m *Mirror) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.stopTimersLocked()
	m.retries = make(map[string]*retryState)
}

// disableLocked turns the mirror off for the session and drops all state.
// Caller holds m.mu.
func (m *Mirror) disableLocked() {
	m.disabled = true
	m.stopTimersLocked()
	m.retries = make(map[string]*retryState)
}

// stopTimersLocked cancels every armed retry timer. Caller holds m.mu.
func (m *Mirror) stopTimersLocked() {
	for _, st := range m.retries {
		if st.timer != nil {
			st.timer.Stop()
		}
	}
}
