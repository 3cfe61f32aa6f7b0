package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// maxDocumentSize caps the compact JSON text of a single document. Encode rejects
// larger documents and Decode rejects payloads that expand beyond it.
var maxDocumentSize = 64 << 20

// zstdEnc and zstdDec are package-level and safe for concurrent use.
var (
	zstdEnc *zstd.Encoder
	zstdDec *zstd.Decoder
)

func init() {
	var err error
	zstdEnc, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("codec: init zstd encoder: " + err.Error())
	}
	zstdDec, err = zstd.NewReader(nil,
		zstd.WithDecoderConcurrency(0),
		zstd.WithDecoderMaxMemory(uint64(maxDocumentSize)),
	)
	if err != nil {
		panic("codec: init zstd decoder: " + err.Error())
	}
}

// DocumentCodec converts JSON text to the byte payload stored by the engine.
// A nil document encodes to nil and a nil payload decodes to nil.
type DocumentCodec interface {
	ID() string
	Encode(doc []byte) ([]byte, error)
	Decode(data []byte) ([]byte, error)
}

// --------------------------------------------------------------------------
// Lookup
// --------------------------------------------------------------------------

const (
	CompressedDocument = "compressed-document"
	ZstdDocument       = "zstd-document"
	PlainDocument      = "plain-document"
)

var documentCodecs = map[string]DocumentCodec{
	CompressedDocument: gzipDocument{},
	ZstdDocument:       zstdDocument{},
	PlainDocument:      plainDocument{},
}

// DocumentCodecByID returns the document codec registered under id.
func DocumentCodecByID(id string) (DocumentCodec, error) {
	c, ok := documentCodecs[id]
	if !ok {
		return nil, fmt.Errorf("%w: value codec %q", ErrUnknownCodec, id)
	}
	return c, nil
}

// --------------------------------------------------------------------------
// Shared helpers
// --------------------------------------------------------------------------

// compact turns doc into its compact JSON text and rejects invalid JSON
func compact(doc []byte) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(len(doc))
	if err := json.Compact(&buf, doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if buf.Len() > maxDocumentSize {
		return nil, tooLarge(buf.Len())
	}
	return buf.Bytes(), nil
}

func tooLarge(n int) error {
	return fmt.Errorf("%w: document of %d bytes exceeds the limit of %d bytes", ErrInvalidDocument, n, maxDocumentSize)
}

func validate(text []byte) ([]byte, error) {
	if len(text) > maxDocumentSize {
		return nil, tooLarge(len(text))
	}
	if !json.Valid(text) {
		return nil, fmt.Errorf("%w: payload is not valid JSON", ErrInvalidDocument)
	}
	return text, nil
}

// --------------------------------------------------------------------------
// Codecs
// --------------------------------------------------------------------------

// gzipDocument is the default wire format: gzip-compressed UTF-8 JSON text
type gzipDocument struct{}

func (gzipDocument) ID() string { return CompressedDocument }

func (gzipDocument) Encode(doc []byte) ([]byte, error) {
	if doc == nil {
		return nil, nil
	}
	text, err := compact(doc)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(text); err != nil {
		return nil, fmt.Errorf("%w: gzip: %v", ErrInvalidDocument, err)
	}
	if err := gz.Close(); err != nil {
		return nil, fmt.Errorf("%w: gzip: %v", ErrInvalidDocument, err)
	}
	return buf.Bytes(), nil
}

func (gzipDocument) Decode(data []byte) ([]byte, error) {
	if data == nil {
		return nil, nil
	}
	gz, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: open gzip reader: %v", ErrInvalidDocument, err)
	}
	defer func() { _ = gz.Close() }()

	// one byte past the limit tells a full document from a cut off one
	text, err := io.ReadAll(io.LimitReader(gz, int64(maxDocumentSize)+1))
	if err != nil {
		return nil, fmt.Errorf("%w: gunzip: %v", ErrInvalidDocument, err)
	}
	return validate(text)
}

// zstdDocument stores the compact JSON text in a single zstd frame
type zstdDocument struct{}

func (zstdDocument) ID() string { return ZstdDocument }

func (zstdDocument) Encode(doc []byte) ([]byte, error) {
	if doc == nil {
		return nil, nil
	}
	text, err := compact(doc)
	if err != nil {
		return nil, err
	}
	return zstdEnc.EncodeAll(text, nil), nil
}

func (zstdDocument) Decode(data []byte) ([]byte, error) {
	if data == nil {
		return nil, nil
	}
	text, err := zstdDec.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: decompress zstd: %v", ErrInvalidDocument, err)
	}
	return validate(text)
}

// plainDocument stores the compact JSON text as is
type plainDocument struct{}

func (plainDocument) ID() string { return PlainDocument }

func (plainDocument) Encode(doc []byte) ([]byte, error) {
	if doc == nil {
		return nil, nil
	}
	return compact(doc)
}

func (plainDocument) Decode(data []byte) ([]byte, error) {
	if data == nil {
		return nil, nil
	}
	text := make([]byte, len(data))
	copy(text, data)
	return validate(text)
}
