// Package archive implements the chunked, year-partitioned store for
// completed task snapshots.
//
// History is append-only: tasks that leave the active table land in the
// chunk for their completion year. Chunks are capped at ChunkCapacity
// records and described by a separate lightweight index, so date-range
// queries can skip whole chunks without loading their payloads.
package archive

import "time"

// ChunkCapacity is the maximum number of task snapshots per chunk.
const ChunkCapacity = 1000

// Chunk describes one storage unit of the archive. The payload itself lives
// in a separate blob and is loaded lazily; the metadata here is enough to
// decide whether a query needs the payload at all.
type Chunk struct {
	// Key is the blob key of the chunk payload.
	Key string `json:"key"`

	// Year is the completion year the chunk belongs to.
	Year int `json:"year"`

	// Sequence orders chunks within a year, starting at 1.
	Sequence int `json:"sequence"`

	// Count is the number of task snapshots in the payload.
	// Never exceeds ChunkCapacity.
	Count int `json:"count"`

	// Start is the earliest completion timestamp among member tasks.
	Start time.Time `json:"start"`

	// End is the latest completion timestamp among member tasks.
	End time.Time `json:"end"`
}

// Index is the lightweight catalog of all chunks.
type Index struct {
	// Version increases on every index rewrite.
	Version int64 `json:"version"`

	// TotalCount is the sum of Count over all chunks.
	TotalCount int `json:"totalCount"`

	// Chunks lists all chunk metadata, ordered by (year, sequence).
	Chunks []*Chunk `json:"chunks"`
}

// Query selects archived tasks. Zero-valued fields are ignored.
type Query struct {
	// From bounds results to completion timestamps at or after this instant.
	From *time.Time

	// To bounds results to completion timestamps at or before this instant.
	To *time.Time

	// TaskID restricts results to snapshots of a single task.
	TaskID string

	// Limit caps the number of results after filtering. Zero means no cap.
	Limit int

	// Offset skips results after filtering, across chunk boundaries.
	Offset int
}

// overlaps reports whether the chunk's [Start, End] window can contain a
// completion timestamp in the query's [From, To] range. Chunks that fail
// this check are skipped without any payload I/O.
func (c *Chunk) overlaps(q Query) bool {
	if q.From != nil && c.End.Before(*q.From) {
		return false
	}
	if q.To != nil && c.Start.After(*q.To) {
		return false
	}
	return true
}
