package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/Drmusab/taskstore/internal/blob"
	"github.com/Drmusab/taskstore/internal/codec"
	"github.com/Drmusab/taskstore/internal/task"
)

// DefaultKeyPrefix is the blob key prefix for archive data. Chunk payloads
// live under "{prefix}-{year}-{sequence}" and the index under "{prefix}-index".
const DefaultKeyPrefix = "taskstore-archive"

// Store is the chunked archive store.
//
// A single Store owns the archive index for its key prefix. The index is
// cached after the first load; every mutation rewrites it through the blob
// store. Safe for concurrent use.
type Store struct {
	mu     sync.Mutex
	blobs  blob.Store
	comp   *codec.Compressor
	codec  *codec.FastCodec
	prefix string
	logger *log.Logger

	// index is the cached catalog; nil until first loaded.
	index *Index
}

// NewStore creates an archive store over the given blob backend.
//
// The compressor and codec are injected rather than shared process-wide so
// tests and callers can control them. A nil logger falls back to a stderr
// logger with an [archive] prefix.
func NewStore(blobs blob.Store, comp *codec.Compressor, fc *codec.FastCodec, logger *log.Logger) *Store {
	if logger == nil {
		logger = log.New(os.Stderr, "[archive] ", log.LstdFlags)
	}
	return &Store{
		blobs:  blobs,
		comp:   comp,
		codec:  fc,
		prefix: DefaultKeyPrefix,
		logger: logger,
	}
}

// indexKey returns the blob key of the archive index.
func (s *Store) indexKey() string {
	return s.prefix + "-index"
}

// chunkKey returns the blob key of a chunk payload.
func (s *Store) chunkKey(year, sequence int) string {
	return fmt.Sprintf("%s-%d-%d", s.prefix, year, sequence)
}

// loadIndex returns the archive index, reading it from the blob store on
// first use. A missing index blob means an empty archive.
//
// Index load failures are surfaced to the caller, unlike chunk payload
// failures which only degrade query results.
func (s *Store) loadIndex(ctx context.Context) (*Index, error) {
	if s.index != nil {
		return s.index, nil
	}

	data, err := s.blobs.Load(ctx, s.indexKey())
	if err != nil {
		return nil, fmt.Errorf("load archive index: %w", err)
	}

	idx := &Index{}
	if data != nil {
		if err := json.Unmarshal(data, idx); err != nil {
			return nil, fmt.Errorf("parse archive index: %w", err)
		}
	}

	s.index = idx
	return idx, nil
}

// saveIndex persists the index and bumps its version.
func (s *Store) saveIndex(ctx context.Context, idx *Index) error {
	idx.Version++

	total := 0
	for _, c := range idx.Chunks {
		total += c.Count
	}
	idx.TotalCount = total

	data, err := json.Marshal(idx)
	if err != nil {
		return fmt.Errorf("marshal archive index: %w", err)
	}
	if err := s.blobs.Save(ctx, s.indexKey(), data); err != nil {
		return fmt.Errorf("save archive index: %w", err)
	}

	s.index = idx
	return nil
}

// ArchiveTasks appends task snapshots to the archive.
//
// Tasks are grouped by the year of their completion timestamp
// (lastCompletedAt, falling back to updatedAt, then dueAt). Within a year,
// the last chunk with spare capacity is topped up first; further snapshots
// open new chunks with the next sequence number. Each touched chunk is
// rewritten with updated start/end/count, and the index total is recomputed.
func (s *Store) ArchiveTasks(ctx context.Context, tasks []*task.Task) error {
	if len(tasks) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx, err := s.loadIndex(ctx)
	if err != nil {
		return err
	}

	byYear := make(map[int][]*task.Task)
	for _, t := range tasks {
		year := t.CompletionTime().Year()
		byYear[year] = append(byYear[year], t)
	}

	years := make([]int, 0, len(byYear))
	for year := range byYear {
		years = append(years, year)
	}
	sort.Ints(years)

	for _, year := range years {
		if err := s.appendToYear(ctx, idx, year, byYear[year]); err != nil {
			return err
		}
	}

	return s.saveIndex(ctx, idx)
}

// appendToYear distributes incoming snapshots over the chunks of one year.
func (s *Store) appendToYear(ctx context.Context, idx *Index, year int, incoming []*task.Task) error {
	last := lastChunkOfYear(idx, year)

	// Top up the last chunk while it has spare capacity.
	if last != nil && last.Count < ChunkCapacity {
		members, err := s.loadChunkTasks(ctx, last)
		if err != nil {
			// The chunk payload is unreadable; appending to it would lose
			// the records already there. Leave it sealed and start a new
			// chunk instead.
			s.logger.Printf("chunk %s unreadable, sealing it: %v", last.Key, err)
		} else {
			room := ChunkCapacity - len(members)
			if room > len(incoming) {
				room = len(incoming)
			}
			members = append(members, incoming[:room]...)
			incoming = incoming[room:]

			if err := s.writeChunk(ctx, last, members); err != nil {
				return err
			}
		}
	}

	// Open fresh chunks for whatever is left.
	sequence := 0
	if last != nil {
		sequence = last.Sequence
	}
	for len(incoming) > 0 {
		sequence++
		size := len(incoming)
		if size > ChunkCapacity {
			size = ChunkCapacity
		}

		chunk := &Chunk{
			Key:      s.chunkKey(year, sequence),
			Year:     year,
			Sequence: sequence,
		}
		if err := s.writeChunk(ctx, chunk, incoming[:size]); err != nil {
			return err
		}

		idx.Chunks = append(idx.Chunks, chunk)
		incoming = incoming[size:]
	}

	return nil
}

// lastChunkOfYear returns the chunk with the highest sequence in a year,
// or nil when the year has no chunks yet.
func lastChunkOfYear(idx *Index, year int) *Chunk {
	var last *Chunk
	for _, c := range idx.Chunks {
		if c.Year != year {
			continue
		}
		if last == nil || c.Sequence > last.Sequence {
			last = c
		}
	}
	return last
}

// writeChunk serializes, compresses, and stores a chunk payload, then
// refreshes the chunk metadata from its members.
func (s *Store) writeChunk(ctx context.Context, chunk *Chunk, members []*task.Task) error {
	text, err := s.codec.SerializeList(members, codec.SerializeOptions{})
	if err != nil {
		return fmt.Errorf("serialize chunk %s: %w", chunk.Key, err)
	}

	encoded := s.comp.Compress(text)
	if err := s.blobs.Save(ctx, chunk.Key, []byte(encoded)); err != nil {
		return fmt.Errorf("save chunk %s: %w", chunk.Key, err)
	}

	chunk.Count = len(members)
	chunk.Start, chunk.End = completionBounds(members)
	return nil
}

// completionBounds returns the earliest and latest completion timestamps
// among the given tasks.
func completionBounds(tasks []*task.Task) (start, end time.Time) {
	for _, t := range tasks {
		at := t.CompletionTime()
		if start.IsZero() || at.Before(start) {
			start = at
		}
		if end.IsZero() || at.After(end) {
			end = at
		}
	}
	return start, end
}

// Load returns archived task snapshots matching the query.
//
// Chunks whose [start, end] window falls fully outside the requested range
// are skipped without I/O. Corrupt or unreadable chunks are logged and
// skipped so a single bad chunk never takes down the whole query. Offset
// and Limit apply to the post-filter result set across all chunks.
func (s *Store) Load(ctx context.Context, q Query) ([]*task.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, err := s.loadIndex(ctx)
	if err != nil {
		return nil, err
	}

	var matched []*task.Task
	for _, chunk := range idx.Chunks {
		if !chunk.overlaps(q) {
			continue
		}

		members, err := s.loadChunkTasks(ctx, chunk)
		if err != nil {
			s.logger.Printf("skipping chunk %s: %v", chunk.Key, err)
			continue
		}

		for _, t := range members {
			if matchesQuery(t, q) {
				matched = append(matched, t)
			}
		}
	}

	sort.SliceStable(matched, func(i, j int) bool {
		ti, tj := matched[i].CompletionTime(), matched[j].CompletionTime()
		if ti.Equal(tj) {
			return matched[i].ID < matched[j].ID
		}
		return ti.Before(tj)
	})

	if q.Offset > 0 {
		if q.Offset >= len(matched) {
			return nil, nil
		}
		matched = matched[q.Offset:]
	}
	if q.Limit > 0 && len(matched) > q.Limit {
		matched = matched[:q.Limit]
	}

	return matched, nil
}

// matchesQuery applies the per-task filters of a query.
func matchesQuery(t *task.Task, q Query) bool {
	if q.TaskID != "" && t.ID != q.TaskID {
		return false
	}

	at := t.CompletionTime()
	if q.From != nil && at.Before(*q.From) {
		return false
	}
	if q.To != nil && at.After(*q.To) {
		return false
	}
	return true
}

// loadChunkTasks reads and decodes one chunk payload.
//
// The payload envelope is decided once here: prefixed strings go through
// the compressor, anything else is a legacy bare JSON document written
// before compression existed.
func (s *Store) loadChunkTasks(ctx context.Context, chunk *Chunk) ([]*task.Task, error) {
	raw, err := s.blobs.Load(ctx, chunk.Key)
	if err != nil {
		return nil, fmt.Errorf("load payload: %w", err)
	}
	if raw == nil {
		return nil, fmt.Errorf("payload missing")
	}

	text, err := decodePayload(s.comp, string(raw))
	if err != nil {
		return nil, err
	}

	return s.codec.DeserializeList(text, true)
}

// Stats returns a copy of the current index for diagnostics.
func (s *Store) Stats(ctx context.Context) (Index, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, err := s.loadIndex(ctx)
	if err != nil {
		return Index{}, err
	}

	out := Index{
		Version:    idx.Version,
		TotalCount: idx.TotalCount,
		Chunks:     make([]*Chunk, len(idx.Chunks)),
	}
	for i, c := range idx.Chunks {
		chunk := *c
		out.Chunks[i] = &chunk
	}
	return out, nil
}
