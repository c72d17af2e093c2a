package archive

import (
	"strings"

	"github.com/Drmusab/taskstore/internal/codec"
)

// payloadFormat classifies a chunk payload envelope. The format is decided
// exactly once, when the payload is first read back; everything downstream
// works on plain JSON text.
type payloadFormat int

const (
	// formatEncoded is a payload written through the compressor, carrying
	// either the COMPRESSED or UNCOMPRESSED marker.
	formatEncoded payloadFormat = iota

	// formatLegacy is a bare JSON document written before compression
	// existed.
	formatLegacy
)

// detectFormat classifies a raw chunk payload.
func detectFormat(raw string) payloadFormat {
	if strings.HasPrefix(raw, codec.CompressedPrefix) || strings.HasPrefix(raw, codec.UncompressedPrefix) {
		return formatEncoded
	}
	return formatLegacy
}

// decodePayload turns a raw chunk payload into JSON text, routing encoded
// payloads through the compressor and passing legacy documents through
// untouched.
func decodePayload(comp *codec.Compressor, raw string) (string, error) {
	switch detectFormat(raw) {
	case formatEncoded:
		return comp.Decompress(raw)
	default:
		return raw, nil
	}
}
