package codec

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/Drmusab/taskstore/internal/task"
)

// BatchDecoder deserializes a task collection in fixed-size batches so that
// very large histories never have to be materialized in one allocation and a
// caller on a shared scheduler can interleave other work between batches.
//
// A decoder is finite and not restartable: once NextBatch returns io.EOF the
// underlying document is drained.
type BatchDecoder struct {
	dec       *json.Decoder
	batchSize int
	started   bool
	done      bool
}

// DefaultBatchSize is the batch size used when a caller passes zero.
const DefaultBatchSize = 100

// NewBatchDecoder prepares a streaming decoder over a task collection.
// Accepts the same two document shapes as Deserialize: a bare array or
// {"tasks": [...]}.
func (c *FastCodec) NewBatchDecoder(data string, batchSize int) *BatchDecoder {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &BatchDecoder{
		dec:       json.NewDecoder(strings.NewReader(data)),
		batchSize: batchSize,
	}
}

// NextBatch returns the next slice of up to batchSize tasks.
//
// Returns io.EOF once the document is drained. Any other error means the
// document is malformed; the decoder is unusable afterwards.
func (d *BatchDecoder) NextBatch() ([]*task.Task, error) {
	if d.done {
		return nil, io.EOF
	}

	if !d.started {
		if err := d.seekArray(); err != nil {
			d.done = true
			return nil, err
		}
		d.started = true
	}

	batch := make([]*task.Task, 0, d.batchSize)
	for len(batch) < d.batchSize && d.dec.More() {
		var t task.Task
		if err := d.dec.Decode(&t); err != nil {
			d.done = true
			return nil, fmt.Errorf("decode task record: %w", err)
		}
		batch = append(batch, &t)
	}

	if !d.dec.More() {
		d.done = true
	}

	if len(batch) == 0 {
		return nil, io.EOF
	}
	return batch, nil
}

// seekArray positions the decoder just inside the task array, handling both
// accepted document shapes.
func (d *BatchDecoder) seekArray() error {
	tok, err := d.dec.Token()
	if err != nil {
		if err == io.EOF {
			return io.EOF
		}
		return fmt.Errorf("read document start: %w", err)
	}

	delim, ok := tok.(json.Delim)
	if !ok {
		return fmt.Errorf("unexpected document start token %v", tok)
	}

	// Bare array: already positioned.
	if delim == '[' {
		return nil
	}

	if delim != '{' {
		return fmt.Errorf("unexpected document delimiter %q", delim.String())
	}

	// Object shape: scan keys until the tasks array.
	for {
		keyTok, err := d.dec.Token()
		if err != nil {
			return fmt.Errorf("scan for tasks array: %w", err)
		}

		if delim, ok := keyTok.(json.Delim); ok && delim == '}' {
			return io.EOF
		}

		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("unexpected object key token %v", keyTok)
		}

		if key == "tasks" {
			openTok, err := d.dec.Token()
			if err != nil {
				return fmt.Errorf("read tasks array start: %w", err)
			}
			if delim, ok := openTok.(json.Delim); !ok || delim != '[' {
				return fmt.Errorf("tasks field is not an array")
			}
			return nil
		}

		// Skip the value of an unrelated key.
		var skip json.RawMessage
		if err := d.dec.Decode(&skip); err != nil {
			return fmt.Errorf("skip field %q: %w", key, err)
		}
	}
}
