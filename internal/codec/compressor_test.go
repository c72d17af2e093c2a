package codec

import (
	"errors"
	"strings"
	"testing"
)

// ---------------------------------------------------------------------------
// Test helpers
// ---------------------------------------------------------------------------

// repetitiveText returns a payload whose base64 form carries long runs,
// so the run-length pass wins enough to trigger the COMPRESSED form.
func repetitiveText(n int) string {
	return strings.Repeat("\x00", n)
}

// ---------------------------------------------------------------------------
// Compress
// ---------------------------------------------------------------------------

func Test_Compressor_Compress_Cases(t *testing.T) {
	t.Parallel()
	c := NewCompressor()

	tests := []struct {
		name           string
		input          string
		wantCompressed bool
	}{
		{
			name:           "empty input stays uncompressed",
			input:          "",
			wantCompressed: false,
		},
		{
			name:           "short varied text does not shrink",
			input:          `{"id":"t1","name":"water plants"}`,
			wantCompressed: false,
		},
		{
			name:           "highly repetitive payload compresses",
			input:          repetitiveText(4096),
			wantCompressed: true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := c.Compress(tt.input)

			if tt.wantCompressed {
				if !strings.HasPrefix(got, CompressedPrefix) {
					t.Fatalf("expected COMPRESSED form, got %q", got[:min(len(got), 40)])
				}
				if len(got) >= len(tt.input) {
					t.Errorf("compressed form is not smaller: %d >= %d", len(got), len(tt.input))
				}
			} else {
				if !strings.HasPrefix(got, UncompressedPrefix) {
					t.Fatalf("expected UNCOMPRESSED form, got %q", got[:min(len(got), 40)])
				}
				if body := strings.TrimPrefix(got, UncompressedPrefix); body != tt.input {
					t.Errorf("uncompressed body altered: got %q want %q", body, tt.input)
				}
			}
		})
	}
}

func Test_Compressor_RoundTrip_Cases(t *testing.T) {
	t.Parallel()
	c := NewCompressor()

	inputs := []string{
		"",
		"plain text",
		`{"tasks":[{"id":"t1","name":"n","dueAt":"2026-03-14T09:00:00Z","enabled":true}]}`,
		repetitiveText(2000),
		strings.Repeat("abcdef", 500),
		"text with the literal marker ~ and runs aaaaaaaaaa inside",
	}

	for _, input := range inputs {
		got, err := c.Decompress(c.Compress(input))
		if err != nil {
			t.Fatalf("round trip failed for %d-byte input: %v", len(input), err)
		}
		if got != input {
			t.Errorf("round trip altered %d-byte input", len(input))
		}
	}
}

// ---------------------------------------------------------------------------
// Decompress
// ---------------------------------------------------------------------------

func Test_Compressor_Decompress_Cases(t *testing.T) {
	t.Parallel()
	c := NewCompressor()

	tests := []struct {
		name          string
		input         string
		want          string
		wantIntegrity bool
	}{
		{
			name:  "legacy payload without marker passes through",
			input: `{"tasks":[]}`,
			want:  `{"tasks":[]}`,
		},
		{
			name:  "uncompressed marker strips to body",
			input: UncompressedPrefix + "hello",
			want:  "hello",
		},
		{
			name:  "empty uncompressed payload",
			input: UncompressedPrefix,
			want:  "",
		},
		{
			name:          "compressed marker with invalid base64",
			input:         CompressedPrefix + "!!!not-base64!!!",
			wantIntegrity: true,
		},
		{
			name:          "compressed marker with unterminated run",
			input:         CompressedPrefix + "a~12",
			wantIntegrity: true,
		},
		{
			name:          "compressed marker with bare run marker",
			input:         CompressedPrefix + "~5~",
			wantIntegrity: true,
		},
		{
			name:          "compressed marker with run below minimum",
			input:         CompressedPrefix + "a~2~",
			wantIntegrity: true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := c.Decompress(tt.input)

			if tt.wantIntegrity {
				if !errors.Is(err, ErrDataIntegrity) {
					t.Fatalf("expected data integrity error, got %v", err)
				}
				var die *DataIntegrityError
				if !errors.As(err, &die) {
					t.Errorf("expected *DataIntegrityError, got %T", err)
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func Test_Compressor_IsCompressed(t *testing.T) {
	t.Parallel()
	c := NewCompressor()

	if !c.IsCompressed(CompressedPrefix + "abc") {
		t.Error("COMPRESSED payload not recognized")
	}
	if c.IsCompressed(UncompressedPrefix + "abc") {
		t.Error("UNCOMPRESSED payload misrecognized as compressed")
	}
	if c.IsCompressed("legacy body") {
		t.Error("legacy payload misrecognized as compressed")
	}
}
