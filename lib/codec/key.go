package codec

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"unicode/utf8"
)

// KeyCodec converts application keys to the binary keys stored by the engine.
type KeyCodec interface {
	ID() string
	ToBinary(key string) ([]byte, error)
	FromBinary(data []byte) (string, error)
}

const (
	NumericPath    = "numeric-path"
	NumericIntPath = "numeric-int-path"
	RawPath        = "raw-path"
)

var keyCodecs = map[string]KeyCodec{
	NumericPath:    int64Key{},
	NumericIntPath: int32Key{},
	RawPath:        rawKey{},
}

// KeyCodecByID returns the key codec registered under id.
func KeyCodecByID(id string) (KeyCodec, error) {
	c, ok := keyCodecs[id]
	if !ok {
		return nil, fmt.Errorf("%w: key codec %q", ErrUnknownCodec, id)
	}
	return c, nil
}

// --------------------------------------------------------------------------
// Numeric keys
// --------------------------------------------------------------------------

// int64Key parses decimal keys into 8 big-endian bytes.
// Non-canonical spellings like "+7" or "007" are accepted and read back as "7".
type int64Key struct{}

func (int64Key) ID() string { return NumericPath }

func (int64Key) ToBinary(key string) ([]byte, error) {
	n, err := strconv.ParseInt(key, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %q is not a 64-bit integer", ErrInvalidKey, key)
	}
	return binary.BigEndian.AppendUint64(make([]byte, 0, 8), uint64(n)), nil
}

func (int64Key) FromBinary(data []byte) (string, error) {
	if len(data) != 8 {
		return "", fmt.Errorf("%w: expected 8 bytes, got %d", ErrInvalidKey, len(data))
	}
	return strconv.FormatInt(int64(binary.BigEndian.Uint64(data)), 10), nil
}

// int32Key parses decimal keys into 4 big-endian bytes
type int32Key struct{}

func (int32Key) ID() string { return NumericIntPath }

func (int32Key) ToBinary(key string) ([]byte, error) {
	n, err := strconv.ParseInt(key, 10, 32)
	if err != nil {
		return nil, fmt.Errorf("%w: %q is not a 32-bit integer", ErrInvalidKey, key)
	}
	return binary.BigEndian.AppendUint32(make([]byte, 0, 4), uint32(int32(n))), nil
}

func (int32Key) FromBinary(data []byte) (string, error) {
	if len(data) != 4 {
		return "", fmt.Errorf("%w: expected 4 bytes, got %d", ErrInvalidKey, len(data))
	}
	return strconv.FormatInt(int64(int32(binary.BigEndian.Uint32(data))), 10), nil
}

// --------------------------------------------------------------------------
// Raw keys
// --------------------------------------------------------------------------

// rawKey stores the UTF-8 bytes of the key
type rawKey struct{}

func (rawKey) ID() string { return RawPath }

func (rawKey) ToBinary(key string) ([]byte, error) {
	if key == "" {
		return nil, fmt.Errorf("%w: key must not be empty", ErrInvalidKey)
	}
	if !utf8.ValidString(key) {
		return nil, fmt.Errorf("%w: key is not valid UTF-8", ErrInvalidKey)
	}
	return []byte(key), nil
}

func (rawKey) FromBinary(data []byte) (string, error) {
	if !utf8.Valid(data) {
		return "", fmt.Errorf("%w: stored key is not valid UTF-8", ErrInvalidKey)
	}
	return string(data), nil
}
