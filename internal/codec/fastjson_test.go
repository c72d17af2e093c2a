package codec

import (
	"encoding/json"
	"io"
	"log"
	"strings"
	"testing"
	"time"

	"github.com/Drmusab/taskstore/internal/task"
)

// ---------------------------------------------------------------------------
// Test helpers
// ---------------------------------------------------------------------------

// quietCodec returns a codec whose skip diagnostics go nowhere.
func quietCodec() *FastCodec {
	return NewFastCodec(log.New(io.Discard, "", 0))
}

// sampleTask returns a minimal valid task due on the given date.
func sampleTask(id, name string, due time.Time) *task.Task {
	return &task.Task{
		ID:      id,
		Name:    name,
		DueAt:   due,
		Enabled: true,
		Version: 1,
	}
}

// ---------------------------------------------------------------------------
// Serialize
// ---------------------------------------------------------------------------

func Test_FastCodec_Serialize_Cases(t *testing.T) {
	t.Parallel()
	c := quietCodec()
	due := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	tasks := map[string]*task.Task{
		"t2": sampleTask("t2", "second", due),
		"t1": sampleTask("t1", "first", due),
	}

	t.Run("records ordered by id", func(t *testing.T) {
		t.Parallel()
		out, err := c.Serialize(tasks, SerializeOptions{})
		if err != nil {
			t.Fatalf("serialize: %v", err)
		}
		if strings.Index(out, `"t1"`) > strings.Index(out, `"t2"`) {
			t.Errorf("expected t1 before t2 in output: %s", out)
		}
		if !strings.Contains(out, `"tasks":`) {
			t.Errorf("expected document shape with tasks field: %s", out)
		}
	})

	t.Run("empty map produces empty collection", func(t *testing.T) {
		t.Parallel()
		out, err := c.Serialize(map[string]*task.Task{}, SerializeOptions{})
		if err != nil {
			t.Fatalf("serialize: %v", err)
		}
		if !strings.Contains(out, `"tasks":[]`) {
			t.Errorf("expected empty tasks array, got %s", out)
		}
	})

	t.Run("pretty output is indented", func(t *testing.T) {
		t.Parallel()
		out, err := c.Serialize(tasks, SerializeOptions{Pretty: true})
		if err != nil {
			t.Fatalf("serialize: %v", err)
		}
		if !strings.Contains(out, "\n  ") {
			t.Errorf("expected indented output, got %s", out)
		}
	})

	t.Run("exclude fields drops them from every record", func(t *testing.T) {
		t.Parallel()
		out, err := c.Serialize(tasks, SerializeOptions{ExcludeFields: []string{"version"}})
		if err != nil {
			t.Fatalf("serialize: %v", err)
		}
		if strings.Contains(out, `"version"`) {
			t.Errorf("excluded field still present: %s", out)
		}
	})

	t.Run("include nulls keeps absent optional fields", func(t *testing.T) {
		t.Parallel()
		out, err := c.Serialize(tasks, SerializeOptions{IncludeNulls: true})
		if err != nil {
			t.Fatalf("serialize: %v", err)
		}
		if !strings.Contains(out, `"lastCompletedAt":null`) {
			t.Errorf("expected explicit null for lastCompletedAt: %s", out)
		}
	})
}

// ---------------------------------------------------------------------------
// Deserialize
// ---------------------------------------------------------------------------

func Test_FastCodec_Deserialize_Cases(t *testing.T) {
	t.Parallel()
	c := quietCodec()

	validRecord := `{"id":"t1","name":"water plants","dueAt":"2026-03-14T09:00:00Z","enabled":true,"version":3}`

	tests := []struct {
		name     string
		data     string
		validate bool
		wantIDs  []string
		wantErr  bool
	}{
		{
			name:    "document shape",
			data:    `{"tasks":[` + validRecord + `]}`,
			wantIDs: []string{"t1"},
		},
		{
			name:    "bare array shape",
			data:    `[` + validRecord + `]`,
			wantIDs: []string{"t1"},
		},
		{
			name:    "empty input yields empty map",
			data:    "",
			wantIDs: nil,
		},
		{
			name:     "validate skips record missing id",
			data:     `{"tasks":[` + validRecord + `,{"name":"no id","dueAt":"2026-01-01T00:00:00Z","enabled":true}]}`,
			validate: true,
			wantIDs:  []string{"t1"},
		},
		{
			name:     "validate skips record with non-boolean enabled",
			data:     `{"tasks":[{"id":"bad","name":"x","dueAt":"2026-01-01T00:00:00Z","enabled":"yes"},` + validRecord + `]}`,
			validate: true,
			wantIDs:  []string{"t1"},
		},
		{
			name:    "malformed document fails",
			data:    `{"tasks": not json`,
			wantErr: true,
		},
		{
			name:    "strict mode fails on malformed record",
			data:    `{"tasks":[{"id":"t1","dueAt":12,"enabled":true,"name":"x","version":"not a number"}]}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := c.Deserialize(tt.data, tt.validate)

			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if len(got) != len(tt.wantIDs) {
				t.Fatalf("got %d tasks, want %d", len(got), len(tt.wantIDs))
			}
			for _, id := range tt.wantIDs {
				if got[id] == nil {
					t.Errorf("missing task %s", id)
				}
			}
		})
	}
}

func Test_FastCodec_RoundTrip(t *testing.T) {
	t.Parallel()
	c := quietCodec()

	completed := time.Date(2026, 2, 1, 18, 30, 0, 0, time.UTC)
	in := map[string]*task.Task{
		"t1": {
			ID:              "t1",
			Name:            "water plants",
			DueAt:           time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC),
			Enabled:         false,
			Status:          task.StatusDone,
			Priority:        task.PriorityHigh,
			LinkedBlockID:   "block-9",
			Version:         7,
			UpdatedAt:       completed,
			LastCompletedAt: &completed,
			Metadata:        map[string]string{"source": "import"},
		},
	}

	text, err := c.Serialize(in, SerializeOptions{})
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	out, err := c.Deserialize(text, false)
	if err != nil {
		t.Fatalf("deserialize: %v", err)
	}

	got := out["t1"]
	if got == nil {
		t.Fatal("task t1 missing after round trip")
	}
	if got.Name != "water plants" || got.Version != 7 || got.Status != task.StatusDone {
		t.Errorf("fields altered: %+v", got)
	}
	if got.LastCompletedAt == nil || !got.LastCompletedAt.Equal(completed) {
		t.Errorf("lastCompletedAt altered: %v", got.LastCompletedAt)
	}
	if got.Metadata["source"] != "import" {
		t.Errorf("metadata altered: %v", got.Metadata)
	}
}

// ---------------------------------------------------------------------------
// DeserializeList ordering
// ---------------------------------------------------------------------------

func Test_FastCodec_DeserializeList_PreservesOrder(t *testing.T) {
	t.Parallel()
	c := quietCodec()

	due := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	in := []*task.Task{
		sampleTask("z-last", "z", due),
		sampleTask("a-first", "a", due),
	}

	text, err := c.SerializeList(in, SerializeOptions{})
	if err != nil {
		t.Fatalf("serialize list: %v", err)
	}
	out, err := c.DeserializeList(text, false)
	if err != nil {
		t.Fatalf("deserialize list: %v", err)
	}

	if len(out) != 2 || out[0].ID != "z-last" || out[1].ID != "a-first" {
		ids := make([]string, len(out))
		for i, tk := range out {
			ids[i] = tk.ID
		}
		t.Errorf("order not preserved: %v", ids)
	}
}

// sanity check that stripped nulls still parse as valid JSON
func Test_FastCodec_Serialize_ValidJSON(t *testing.T) {
	t.Parallel()
	c := quietCodec()

	text, err := c.Serialize(map[string]*task.Task{
		"t1": sampleTask("t1", "x", time.Now().UTC()),
	}, SerializeOptions{})
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}

	var doc map[string]any
	if err := json.Unmarshal([]byte(text), &doc); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
}
