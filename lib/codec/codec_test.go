package codec

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/klauspost/compress/gzip"
)

func unmarshal(t *testing.T, text []byte) any {
	t.Helper()
	var v any
	if err := json.Unmarshal(text, &v); err != nil {
		t.Fatalf("invalid JSON %q: %v", text, err)
	}
	return v
}

func TestDocumentRoundTrip(t *testing.T) {
	docs := []string{
		`{"x":1}`,
		`{ "nested": {"a": [1, 2, {"b": null}]}, "s": "ünïcödé ✓" }`,
		`[1,2,3]`,
		`"just a string"`,
		`42.5`,
		`true`,
		`null`,
		`{}`,
	}

	for id := range documentCodecs {
		c, err := DocumentCodecByID(id)
		if err != nil {
			t.Fatalf("lookup %s: %v", id, err)
		}
		t.Run(id, func(t *testing.T) {
			for _, doc := range docs {
				encoded, err := c.Encode([]byte(doc))
				if err != nil {
					t.Fatalf("Encode(%s) failed: %v", doc, err)
				}
				decoded, err := c.Decode(encoded)
				if err != nil {
					t.Fatalf("Decode(%s) failed: %v", doc, err)
				}
				if diff := cmp.Diff(unmarshal(t, []byte(doc)), unmarshal(t, decoded)); diff != "" {
					t.Errorf("round trip mismatch (-want +got):\n%s", diff)
				}
			}
		})
	}
}

func TestDocumentNil(t *testing.T) {
	for id, c := range documentCodecs {
		if out, err := c.Encode(nil); out != nil || err != nil {
			t.Errorf("%s: Encode(nil) = %v, %v", id, out, err)
		}
		if out, err := c.Decode(nil); out != nil || err != nil {
			t.Errorf("%s: Decode(nil) = %v, %v", id, out, err)
		}
	}
}

func TestDocumentInvalid(t *testing.T) {
	for id, c := range documentCodecs {
		if _, err := c.Encode([]byte(`{"x":`)); !errors.Is(err, ErrInvalidDocument) {
			t.Errorf("%s: expected ErrInvalidDocument for invalid JSON, got %v", id, err)
		}
		if _, err := c.Decode([]byte("definitely not a payload")); !errors.Is(err, ErrInvalidDocument) {
			t.Errorf("%s: expected ErrInvalidDocument for a corrupt payload, got %v", id, err)
		}
	}
}

func TestCompressedDocumentIsStandardGzip(t *testing.T) {
	c, _ := DocumentCodecByID(CompressedDocument)
	encoded, err := c.Encode([]byte(`{ "x" : 1 }`))
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	gz, err := gzip.NewReader(bytes.NewReader(encoded))
	if err != nil {
		t.Fatalf("payload is not gzip: %v", err)
	}
	text, err := io.ReadAll(gz)
	if err != nil {
		t.Fatalf("gunzip failed: %v", err)
	}
	if string(text) != `{"x":1}` {
		t.Errorf("expected compact JSON text, got %s", text)
	}

	// valid gzip around invalid JSON is still a codec error
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	w.Write([]byte("{oops"))
	w.Close()
	if _, err := c.Decode(buf.Bytes()); !errors.Is(err, ErrInvalidDocument) {
		t.Errorf("expected ErrInvalidDocument, got %v", err)
	}
}

// limitDocumentSize lowers the document size cap for the duration of the test
func limitDocumentSize(t *testing.T, n int) {
	t.Helper()
	prev := maxDocumentSize
	maxDocumentSize = n
	t.Cleanup(func() { maxDocumentSize = prev })
}

func TestDocumentSizeLimit(t *testing.T) {
	const limit = 100
	atLimit := []byte(strings.Repeat("7", limit))
	overLimit := []byte(strings.Repeat("7", limit+10))

	// payloads written while the cap was higher
	encoded := map[string][]byte{}
	for id, c := range documentCodecs {
		data, err := c.Encode(overLimit)
		if err != nil {
			t.Fatalf("%s: Encode under the default limit failed: %v", id, err)
		}
		encoded[id] = data
	}

	limitDocumentSize(t, limit)

	for id, c := range documentCodecs {
		t.Run(id, func(t *testing.T) {
			if _, err := c.Decode(encoded[id]); !errors.Is(err, ErrInvalidDocument) {
				t.Errorf("expected ErrInvalidDocument decoding %d bytes, got %v", len(overLimit), err)
			}
			if _, err := c.Encode(overLimit); !errors.Is(err, ErrInvalidDocument) {
				t.Errorf("expected ErrInvalidDocument encoding %d bytes, got %v", len(overLimit), err)
			}

			data, err := c.Encode(atLimit)
			if err != nil {
				t.Fatalf("Encode at the limit failed: %v", err)
			}
			decoded, err := c.Decode(data)
			if err != nil {
				t.Fatalf("Decode at the limit failed: %v", err)
			}
			if !bytes.Equal(decoded, atLimit) {
				t.Errorf("expected the full document back, got %d bytes", len(decoded))
			}
		})
	}
}

func TestKeyCodecs(t *testing.T) {
	tests := []struct {
		codec   string
		key     string
		want    []byte
		canonic string
	}{
		{NumericPath, "42", []byte{0, 0, 0, 0, 0, 0, 0, 42}, "42"},
		{NumericPath, "-1", []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}, "-1"},
		{NumericPath, "+7", []byte{0, 0, 0, 0, 0, 0, 0, 7}, "7"},
		{NumericIntPath, "258", []byte{0, 0, 1, 2}, "258"},
		{NumericIntPath, "-2147483648", []byte{0x80, 0, 0, 0}, "-2147483648"},
		{RawPath, "orders/2024", []byte("orders/2024"), "orders/2024"},
	}

	for _, tt := range tests {
		t.Run(tt.codec+"/"+tt.key, func(t *testing.T) {
			c, err := KeyCodecByID(tt.codec)
			if err != nil {
				t.Fatalf("lookup failed: %v", err)
			}
			got, err := c.ToBinary(tt.key)
			if err != nil {
				t.Fatalf("ToBinary failed: %v", err)
			}
			if !bytes.Equal(got, tt.want) {
				t.Errorf("ToBinary(%q) = %v, want %v", tt.key, got, tt.want)
			}
			back, err := c.FromBinary(got)
			if err != nil {
				t.Fatalf("FromBinary failed: %v", err)
			}
			if back != tt.canonic {
				t.Errorf("FromBinary = %q, want %q", back, tt.canonic)
			}
		})
	}
}

func TestKeyFormatErrors(t *testing.T) {
	tests := []struct {
		codec string
		key   string
	}{
		{NumericPath, "abc"},
		{NumericPath, ""},
		{NumericPath, "1.5"},
		{NumericPath, "9223372036854775808"},
		{NumericIntPath, "2147483648"},
		{NumericIntPath, "12a"},
		{RawPath, ""},
		{RawPath, string([]byte{0xff, 0xfe})},
	}

	for _, tt := range tests {
		c, _ := KeyCodecByID(tt.codec)
		if _, err := c.ToBinary(tt.key); !errors.Is(err, ErrInvalidKey) {
			t.Errorf("%s: expected ErrInvalidKey for %q, got %v", tt.codec, tt.key, err)
		}
	}

	c, _ := KeyCodecByID(NumericPath)
	if _, err := c.FromBinary([]byte{1, 2, 3}); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("expected ErrInvalidKey for a short binary key, got %v", err)
	}
}

func TestUnknownCodecs(t *testing.T) {
	if _, err := KeyCodecByID("string-path"); !errors.Is(err, ErrUnknownCodec) {
		t.Errorf("expected ErrUnknownCodec, got %v", err)
	}
	if _, err := DocumentCodecByID("java.io.Serializable"); !errors.Is(err, ErrUnknownCodec) {
		t.Errorf("expected ErrUnknownCodec, got %v", err)
	}
}
