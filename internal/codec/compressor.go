// Package codec implements the compact on-disk formats used by the task
// store: a reversible text compressor with a format marker, and a
// schema-aware JSON codec with a streaming deserialize mode.
package codec

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	// CompressedPrefix marks a payload written through the compressor.
	CompressedPrefix = "COMPRESSED:"

	// UncompressedPrefix marks a payload the compressor left as plain text
	// because encoding did not shrink it enough.
	UncompressedPrefix = "UNCOMPRESSED:"
)

// minGainRatio is the fraction of the input size the encoded form must save
// before the compressed representation is preferred.
const minGainRatio = 0.05

// rleMinRun is the shortest run worth collapsing. A collapsed run costs at
// least four characters ("c~n~"), so shorter runs are emitted verbatim.
const rleMinRun = 5

// rleMarker delimits run-length escapes. It never appears in base64 output,
// which makes the encoding unambiguous.
const rleMarker = '~'

// ErrDataIntegrity is the sentinel for unrecoverable payload corruption.
// Match with errors.Is; the concrete error is always a *DataIntegrityError.
var ErrDataIntegrity = errors.New("data integrity error")

// DataIntegrityError reports a payload that claims to be compressed but
// cannot be decoded. It is surfaced rather than swallowed: silently losing
// task history is worse than a visible failure.
type DataIntegrityError struct {
	// Op describes the decode step that failed.
	Op string

	// Cause is the underlying decode error, if any.
	Cause error
}

func (e *DataIntegrityError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("corrupt payload: %s: %v", e.Op, e.Cause)
	}
	return fmt.Sprintf("corrupt payload: %s", e.Op)
}

func (e *DataIntegrityError) Unwrap() error {
	return e.Cause
}

// Is reports ErrDataIntegrity so callers can match without the concrete type.
func (e *DataIntegrityError) Is(target error) bool {
	return target == ErrDataIntegrity
}

// Compressor reversibly shrinks text payloads before they reach the blob
// store. Construct explicit instances and inject them where needed; there is
// no package-level shared compressor.
type Compressor struct{}

// NewCompressor returns a ready-to-use Compressor.
func NewCompressor() *Compressor {
	return &Compressor{}
}

// Compress encodes text and returns it with a format marker.
//
// The encoded form is standard base64 of the UTF-8 bytes followed by a
// run-length pass over the base64 text. The compressed representation is
// only used when it is at least 5% smaller than the input; otherwise the
// original text is returned behind the UNCOMPRESSED marker so that
// Decompress can always round-trip.
func (c *Compressor) Compress(text string) string {
	if text == "" {
		return UncompressedPrefix
	}

	encoded := rleEncode(base64.StdEncoding.EncodeToString([]byte(text)))

	saved := len(text) - len(encoded)
	if saved > 0 && float64(saved) >= minGainRatio*float64(len(text)) {
		return CompressedPrefix + encoded
	}

	return UncompressedPrefix + text
}

// Decompress reverses Compress, dispatching on the format marker.
//
// Payloads without a recognized marker predate the compressor and are
// returned unchanged. A payload that carries the COMPRESSED marker but
// fails to decode returns a *DataIntegrityError.
func (c *Compressor) Decompress(encoded string) (string, error) {
	switch {
	case strings.HasPrefix(encoded, CompressedPrefix):
		body := strings.TrimPrefix(encoded, CompressedPrefix)

		expanded, err := rleDecode(body)
		if err != nil {
			return "", &DataIntegrityError{Op: "run-length decode", Cause: err}
		}

		raw, err := base64.StdEncoding.DecodeString(expanded)
		if err != nil {
			return "", &DataIntegrityError{Op: "base64 decode", Cause: err}
		}

		return string(raw), nil

	case strings.HasPrefix(encoded, UncompressedPrefix):
		return strings.TrimPrefix(encoded, UncompressedPrefix), nil

	default:
		// Legacy payload written before the compressor existed.
		return encoded, nil
	}
}

// IsCompressed reports whether s carries the COMPRESSED marker.
// It is a pure prefix check and never inspects the payload body.
func (c *Compressor) IsCompressed(s string) bool {
	return strings.HasPrefix(s, CompressedPrefix)
}

// rleEncode collapses character runs of rleMinRun or longer into the escape
// form "c~n~" where n is the decimal run length.
func rleEncode(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	for i := 0; i < len(s); {
		j := i
		for j < len(s) && s[j] == s[i] {
			j++
		}

		run := j - i
		if run >= rleMinRun {
			b.WriteByte(s[i])
			b.WriteByte(rleMarker)
			b.WriteString(strconv.Itoa(run))
			b.WriteByte(rleMarker)
		} else {
			for k := 0; k < run; k++ {
				b.WriteByte(s[i])
			}
		}
		i = j
	}

	return b.String()
}

// rleDecode expands the escape form produced by rleEncode.
func rleDecode(s string) (string, error) {
	var b strings.Builder
	b.Grow(len(s))

	for i := 0; i < len(s); {
		ch := s[i]
		if ch == rleMarker {
			return "", fmt.Errorf("unexpected run marker at offset %d", i)
		}

		if i+1 < len(s) && s[i+1] == rleMarker {
			end := strings.IndexByte(s[i+2:], rleMarker)
			if end < 0 {
				return "", fmt.Errorf("unterminated run at offset %d", i)
			}

			count, err := strconv.Atoi(s[i+2 : i+2+end])
			if err != nil || count < rleMinRun {
				return "", fmt.Errorf("invalid run length %q at offset %d", s[i+2:i+2+end], i)
			}

			for k := 0; k < count; k++ {
				b.WriteByte(ch)
			}
			i += 2 + end + 1
			continue
		}

		b.WriteByte(ch)
		i++
	}

	return b.String(), nil
}
