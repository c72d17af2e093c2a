// Package blob provides the key/value blob store the task engine persists
// through.
//
// The engine only ever sees this small contract; how blobs land on disk is a
// backend concern. All backends must treat a missing key as (nil, nil), not
// as an error, because the engine probes for optional keys during startup
// and migration.
package blob

import "context"

// Store is the persistence contract consumed by the task storage engine.
//
// Implementations must ensure Save is atomic per key: a crashed write leaves
// either the old value or the new value, never a torn blob.
type Store interface {
	// Load returns the value stored under key, or (nil, nil) when the key
	// has never been written.
	//
	// Returns an error only for storage-level failures (I/O, connection),
	// never for absence.
	Load(ctx context.Context, key string) ([]byte, error)

	// Save stores value under key, replacing any previous value.
	Save(ctx context.Context, key string, value []byte) error

	// Close releases backend resources. Safe to call more than once.
	Close() error
}
