package codec

import (
	"fmt"
	"io"
	"strings"
	"testing"
)

// buildCollection returns a document-shaped collection with n records.
func buildCollection(n int) string {
	records := make([]string, n)
	for i := range records {
		records[i] = fmt.Sprintf(`{"id":"t%03d","name":"task %d","dueAt":"2026-01-01T00:00:00Z","enabled":true}`, i, i)
	}
	return `{"schemaHint":"ignored","tasks":[` + strings.Join(records, ",") + `]}`
}

func Test_BatchDecoder_NextBatch_Cases(t *testing.T) {
	t.Parallel()
	c := quietCodec()

	tests := []struct {
		name      string
		data      string
		batchSize int
		wantSizes []int
		wantIDs   []string
	}{
		{
			name:      "even batches then EOF",
			data:      buildCollection(6),
			batchSize: 3,
			wantSizes: []int{3, 3},
		},
		{
			name:      "ragged final batch",
			data:      buildCollection(7),
			batchSize: 3,
			wantSizes: []int{3, 3, 1},
		},
		{
			name:      "single batch larger than input",
			data:      buildCollection(2),
			batchSize: 10,
			wantSizes: []int{2},
			wantIDs:   []string{"t000", "t001"},
		},
		{
			name:      "bare array shape",
			data:      `[{"id":"a","name":"a","dueAt":"2026-01-01T00:00:00Z","enabled":true}]`,
			batchSize: 5,
			wantSizes: []int{1},
			wantIDs:   []string{"a"},
		},
		{
			name:      "empty collection drains immediately",
			data:      `{"tasks":[]}`,
			batchSize: 5,
			wantSizes: nil,
		},
		{
			name:      "object without tasks field drains immediately",
			data:      `{"other":1}`,
			batchSize: 5,
			wantSizes: nil,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			d := c.NewBatchDecoder(tt.data, tt.batchSize)

			var sizes []int
			var ids []string
			for {
				batch, err := d.NextBatch()
				if err == io.EOF {
					break
				}
				if err != nil {
					t.Fatalf("NextBatch: %v", err)
				}
				sizes = append(sizes, len(batch))
				for _, tk := range batch {
					ids = append(ids, tk.ID)
				}
			}

			if len(sizes) != len(tt.wantSizes) {
				t.Fatalf("got %d batches %v, want %v", len(sizes), sizes, tt.wantSizes)
			}
			for i, want := range tt.wantSizes {
				if sizes[i] != want {
					t.Errorf("batch %d has %d tasks, want %d", i, sizes[i], want)
				}
			}
			if tt.wantIDs != nil {
				if len(ids) != len(tt.wantIDs) {
					t.Fatalf("got ids %v, want %v", ids, tt.wantIDs)
				}
				for i, want := range tt.wantIDs {
					if ids[i] != want {
						t.Errorf("id %d is %s, want %s", i, ids[i], want)
					}
				}
			}

			// A drained decoder stays drained.
			if _, err := d.NextBatch(); err != io.EOF {
				t.Errorf("expected io.EOF after drain, got %v", err)
			}
		})
	}
}

func Test_BatchDecoder_ZeroBatchSizeUsesDefault(t *testing.T) {
	t.Parallel()
	c := quietCodec()

	d := c.NewBatchDecoder(buildCollection(DefaultBatchSize+1), 0)

	first, err := d.NextBatch()
	if err != nil {
		t.Fatalf("NextBatch: %v", err)
	}
	if len(first) != DefaultBatchSize {
		t.Errorf("first batch has %d tasks, want %d", len(first), DefaultBatchSize)
	}
}

func Test_BatchDecoder_MalformedDocument(t *testing.T) {
	t.Parallel()
	c := quietCodec()

	d := c.NewBatchDecoder(`{"tasks":[{"id":`, 5)
	if _, err := d.NextBatch(); err == nil || err == io.EOF {
		t.Fatalf("expected decode error, got %v", err)
	}
}
