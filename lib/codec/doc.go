// Package codec converts documents and keys between their application form and
// the binary form stored by an engine.
//
// Both codec kinds are selected by identifier from a closed lookup table. An unknown
// identifier fails with ErrUnknownCodec, nothing is loaded dynamically.
//
// Document codecs (value codecs):
//
//   - compressed-document: compact JSON text in a standard gzip envelope (default)
//   - zstd-document: compact JSON text in a single zstd frame
//   - plain-document: compact JSON text, uncompressed
//
// Key codecs:
//
//   - numeric-path: decimal 64-bit integer, 8 bytes big-endian (default)
//   - numeric-int-path: decimal 32-bit integer, 4 bytes big-endian
//   - raw-path: the UTF-8 bytes of the key, the empty key is rejected
//
// Errors wrap one of the sentinels ErrInvalidDocument, ErrInvalidKey and
// ErrUnknownCodec, so callers can classify them with errors.Is.
package codec

import "errors"

var (
	// ErrInvalidDocument reports invalid JSON text or a corrupt payload.
	ErrInvalidDocument = errors.New("codec: invalid document")
	// ErrInvalidKey reports a key that the key codec cannot represent.
	ErrInvalidKey = errors.New("codec: invalid key")
	// ErrUnknownCodec reports an identifier missing from the lookup tables.
	ErrUnknownCodec = errors.New("codec: unknown codec")
)
