package codec

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"

	"github.com/Drmusab/taskstore/internal/task"
)

// taskFields is the canonical field set of a serialized task record, used
// when IncludeNulls asks for absent optional fields to appear as null.
var taskFields = []string{
	"id", "name", "dueAt", "enabled", "status", "priority",
	"linkedBlockId", "version", "updatedAt", "lastCompletedAt", "metadata",
}

// SerializeOptions control the output shape of FastCodec.Serialize.
type SerializeOptions struct {
	// Pretty emits indented JSON instead of the compact default.
	Pretty bool

	// IncludeNulls keeps absent optional fields as explicit nulls.
	// By default they are stripped to minimize payload size.
	IncludeNulls bool

	// ExcludeFields lists field names to omit from every record.
	ExcludeFields []string
}

// FastCodec serializes and deserializes task collections.
//
// The wire shape is {"tasks": [...]}; Deserialize additionally accepts a
// bare array for payloads written by older versions. Construct explicit
// instances and inject them; there is no package-level shared codec.
type FastCodec struct {
	logger *log.Logger
}

// NewFastCodec returns a FastCodec. A nil logger falls back to a stderr
// logger with a [codec] prefix.
func NewFastCodec(logger *log.Logger) *FastCodec {
	if logger == nil {
		logger = log.New(os.Stderr, "[codec] ", log.LstdFlags)
	}
	return &FastCodec{logger: logger}
}

// Serialize encodes the task map as a {"tasks": [...]} document.
//
// Records are ordered by task ID so that identical states always produce
// identical bytes. Optional fields with empty values are stripped unless
// IncludeNulls is set.
func (c *FastCodec) Serialize(tasks map[string]*task.Task, opts SerializeOptions) (string, error) {
	ids := make([]string, 0, len(tasks))
	for id := range tasks {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	records := make([]map[string]any, 0, len(tasks))
	for _, id := range ids {
		record, err := taskRecord(tasks[id], opts)
		if err != nil {
			return "", fmt.Errorf("serialize task %s: %w", id, err)
		}
		records = append(records, record)
	}

	doc := map[string]any{"tasks": records}

	var data []byte
	var err error
	if opts.Pretty {
		data, err = json.MarshalIndent(doc, "", "  ")
	} else {
		data, err = json.Marshal(doc)
	}
	if err != nil {
		return "", fmt.Errorf("marshal task collection: %w", err)
	}

	return string(data), nil
}

// taskRecord converts a task to its serialized field map, applying the
// null-stripping and field-exclusion options.
func taskRecord(t *task.Task, opts SerializeOptions) (map[string]any, error) {
	raw, err := json.Marshal(t)
	if err != nil {
		return nil, err
	}

	record := make(map[string]any)
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, err
	}

	if opts.IncludeNulls {
		for _, field := range taskFields {
			if _, ok := record[field]; !ok {
				record[field] = nil
			}
		}
	} else {
		for field, value := range record {
			if value == nil {
				delete(record, field)
			}
		}
	}

	for _, field := range opts.ExcludeFields {
		delete(record, field)
	}

	return record, nil
}

// SerializeList encodes an ordered task slice as a {"tasks": [...]} document.
// Unlike Serialize it preserves the caller's ordering; the archive store
// uses it for chunk payloads, where append order is part of the layout.
func (c *FastCodec) SerializeList(tasks []*task.Task, opts SerializeOptions) (string, error) {
	records := make([]map[string]any, 0, len(tasks))
	for _, t := range tasks {
		record, err := taskRecord(t, opts)
		if err != nil {
			return "", fmt.Errorf("serialize task %s: %w", t.ID, err)
		}
		records = append(records, record)
	}

	doc := map[string]any{"tasks": records}

	var data []byte
	var err error
	if opts.Pretty {
		data, err = json.MarshalIndent(doc, "", "  ")
	} else {
		data, err = json.Marshal(doc)
	}
	if err != nil {
		return "", fmt.Errorf("marshal task collection: %w", err)
	}

	return string(data), nil
}

// Deserialize decodes a task collection back into a map keyed by task ID.
//
// Accepts either the {"tasks": [...]} document shape or a bare array.
// With validate set, records missing required fields (id, name, dueAt, or a
// boolean enabled) are dropped with a logged reason instead of aborting the
// whole load; without validate, the first malformed record fails the load.
func (c *FastCodec) Deserialize(data string, validate bool) (map[string]*task.Task, error) {
	list, err := c.DeserializeList(data, validate)
	if err != nil {
		return nil, err
	}

	tasks := make(map[string]*task.Task, len(list))
	for _, t := range list {
		tasks[t.ID] = t
	}
	return tasks, nil
}

// DeserializeList decodes a task collection preserving record order.
// Validation semantics match Deserialize.
func (c *FastCodec) DeserializeList(data string, validate bool) ([]*task.Task, error) {
	raws, err := splitRecords(data)
	if err != nil {
		return nil, err
	}

	tasks := make([]*task.Task, 0, len(raws))
	for i, raw := range raws {
		if validate {
			if reason := validateRecord(raw); reason != "" {
				c.logger.Printf("skipping task record %d: %s", i, reason)
				continue
			}
		}

		var t task.Task
		if err := json.Unmarshal(raw, &t); err != nil {
			if validate {
				c.logger.Printf("skipping task record %d: %v", i, err)
				continue
			}
			return nil, fmt.Errorf("decode task record %d: %w", i, err)
		}

		tasks = append(tasks, &t)
	}

	return tasks, nil
}

// splitRecords extracts the raw task records from either accepted shape.
func splitRecords(data string) ([]json.RawMessage, error) {
	trimmed := strings.TrimSpace(data)
	if trimmed == "" {
		return nil, nil
	}

	if strings.HasPrefix(trimmed, "[") {
		var records []json.RawMessage
		if err := json.Unmarshal([]byte(trimmed), &records); err != nil {
			return nil, fmt.Errorf("decode task array: %w", err)
		}
		return records, nil
	}

	var doc struct {
		Tasks []json.RawMessage `json:"tasks"`
	}
	if err := json.Unmarshal([]byte(trimmed), &doc); err != nil {
		return nil, fmt.Errorf("decode task collection: %w", err)
	}
	return doc.Tasks, nil
}

// validateRecord checks the required fields of a raw task record.
// Returns an empty string when the record is acceptable, otherwise the
// reason it must be skipped.
func validateRecord(raw json.RawMessage) string {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return fmt.Sprintf("not an object: %v", err)
	}

	var id string
	if rawID, ok := fields["id"]; !ok || json.Unmarshal(rawID, &id) != nil || id == "" {
		return "missing or empty id"
	}

	var name string
	if rawName, ok := fields["name"]; !ok || json.Unmarshal(rawName, &name) != nil {
		return "missing name"
	}

	if _, ok := fields["dueAt"]; !ok {
		return "missing dueAt"
	}

	var enabled bool
	if rawEnabled, ok := fields["enabled"]; !ok || json.Unmarshal(rawEnabled, &enabled) != nil {
		return "missing or non-boolean enabled"
	}

	return ""
}
