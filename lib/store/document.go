package store

import (
	"encoding/json"

	jsonpatch "github.com/evanphx/json-patch"
)

// Document is a JSON value held as its UTF-8 text.
// A nil Document means "no document". Equality is structural, see Equal.
type Document []byte

// ParseDocument checks that text is valid JSON and returns it as a Document.
func ParseDocument(text []byte) (Document, error) {
	if !json.Valid(text) {
		return nil, NewError(RetCCodec, "document is not valid JSON")
	}
	doc := make(Document, len(text))
	copy(doc, text)
	return doc, nil
}

// Equal reports whether d and other are structurally equal JSON values.
// Key order and insignificant whitespace are ignored.
func (d Document) Equal(other Document) bool {
	if d == nil || other == nil {
		return d == nil && other == nil
	}
	return jsonpatch.Equal(d, other)
}

// MergePatch applies an RFC 7386 merge patch and returns the patched document.
// A missing document is patched as if it were {}.
func (d Document) MergePatch(patch []byte) (Document, error) {
	original := []byte(d)
	if original == nil {
		original = []byte("{}")
	}
	patched, err := jsonpatch.MergePatch(original, patch)
	if err != nil {
		return nil, WrapError(RetCCodec, err, "merge patch failed")
	}
	return patched, nil
}

// ApplyPatch applies an RFC 6902 JSON patch (a list of operations).
func (d Document) ApplyPatch(patch []byte) (Document, error) {
	ops, err := jsonpatch.DecodePatch(patch)
	if err != nil {
		return nil, WrapError(RetCCodec, err, "invalid json patch")
	}
	original := []byte(d)
	if original == nil {
		original = []byte("{}")
	}
	patched, err := ops.Apply(original)
	if err != nil {
		return nil, WrapError(RetCCodec, err, "json patch failed")
	}
	return patched, nil
}

// MarshalJSON embeds the document as is, a nil document becomes null.
func (d Document) MarshalJSON() ([]byte, error) {
	if d == nil {
		return []byte("null"), nil
	}
	return d, nil
}

// UnmarshalJSON stores a copy of the raw JSON value.
func (d *Document) UnmarshalJSON(data []byte) error {
	*d = append((*d)[0:0], data...)
	return nil
}

func (d Document) String() string {
	return string(d)
}
