package store

import (
	"errors"
	"fmt"

	"github.com/ValentinKolb/jstore/lib/codec"
	"github.com/ValentinKolb/jstore/lib/db"
)

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// IStore is the Store Handle: one engine-backed persistent map from string keys
// to JSON documents. Every method except Open, Close, IsOpen, GetInfo and
// CanonicalKey fails with RetCClosed while the handle is closed.
type IStore interface {
	// Get returns the document stored for key. loaded is false if there is none.
	Get(key string) (doc Document, loaded bool, err error)
	// Put stores doc under key (replace semantics) and returns the document it replaced.
	Put(key string, doc Document) (previous Document, loaded bool, err error)
	// Delete removes key and returns the document it held.
	Delete(key string) (previous Document, loaded bool, err error)
	// Iterate calls fn for every entry until fn returns false.
	// The order is not sorted. Every call starts from the beginning.
	Iterate(fn func(key string, doc Document) bool) (err error)
	// CanonicalKey returns the spelling key is read back as, e.g. "7" for "007"
	// under numeric keys. It works on closed handles too.
	CanonicalKey(key string) (canonical string, err error)

	// Persist flushes pending in-memory writes to the engine files without fsync.
	Persist() (err error)
	// Sync is a full durable checkpoint: every write made before it survives a crash.
	Sync() (err error)
	// Capacity returns the configured, advisory maximum number of entries.
	Capacity() int

	// Open makes a closed handle available again, on-disk state is kept.
	// Opening an open handle is a no-op.
	Open() (err error)
	// Close syncs and releases the engine. Closing a closed handle is a no-op.
	Close() (err error)
	// IsOpen reports whether the handle is open.
	IsOpen() bool

	// GetInfo returns statistics about the handle and its engine.
	// It is not guaranteed that all fields are filled in or that the information is up-to-date!
	GetInfo() (info StoreInfo)
}

// StoreInfo holds the statistics reported by IStore.GetInfo
type StoreInfo struct {
	Capacity int             `json:"capacity"`
	Open     bool            `json:"open"`
	Config   StoreConfig     `json:"config"`
	Gets     int64           `json:"gets"`
	Puts     int64           `json:"puts"`
	Deletes  int64           `json:"deletes"`
	Persists int64           `json:"persists"`
	Syncs    int64           `json:"syncs"`
	SyncMean float64         `json:"sync_mean_ms"`
	Engine   db.DatabaseInfo `json:"engine"`
}

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error is a custom error type that wraps a return code (of type RetCode),
// an error message and optionally the underlying cause.
type Error struct {
	Code RetCode // The return code
	Msg  string  // The error message.
	Err  error   // The cause, may be nil.
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("StoreError (code %s): %s: %v", e.Code, e.Msg, e.Err)
	}
	return fmt.Sprintf("StoreError (code %s): %s", e.Code, e.Msg)
}

// Unwrap returns the cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error with the same code,
// so errors.Is(err, store.ErrNotFound) matches every not-found error.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// NewError creates a new Error with the given code and message.
func NewError(code RetCode, msg string) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
	}
}

// WrapError creates a new Error with the given code and message wrapping err.
func WrapError(code RetCode, err error, format string, args ...any) *Error {
	return &Error{
		Code: code,
		Msg:  fmt.Sprintf(format, args...),
		Err:  err,
	}
}

// CodecErr classifies an error of the codec package.
// Key errors become RetCKeyFormat, unknown codecs RetCConfig and everything else RetCCodec.
func CodecErr(err error, format string, args ...any) *Error {
	code := RetCCodec
	switch {
	case errors.Is(err, codec.ErrInvalidKey):
		code = RetCKeyFormat
	case errors.Is(err, codec.ErrUnknownCodec):
		code = RetCConfig
	}
	return WrapError(code, err, format, args...)
}

// CodeOf returns the code of the first *Error in err's chain.
// nil yields RetCSuccess and foreign errors RetCInternalError.
func CodeOf(err error) RetCode {
	if err == nil {
		return RetCSuccess
	}
	var se *Error
	if errors.As(err, &se) {
		return se.Code
	}
	return RetCInternalError
}

// Sentinel errors for use with errors.Is
var (
	ErrNotFound         = NewError(RetCNotFound, "not found")
	ErrCodec            = NewError(RetCCodec, "codec error")
	ErrKeyFormat        = NewError(RetCKeyFormat, "key format error")
	ErrConfig           = NewError(RetCConfig, "config error")
	ErrIO               = NewError(RetCIO, "io error")
	ErrClosed           = NewError(RetCClosed, "store is closed")
	ErrInvalidOperation = NewError(RetCInvalidOperation, "invalid operation")
)

// --------------------------------------------------------------------------
// Return Codes
// --------------------------------------------------------------------------

type RetCode uint64

const (
	RetCSuccess              RetCode = iota // 0: Command executed successfully.
	RetCInternalError                       // 1: Command failed due to an internal error.
	RetCUnsupportedOperation                // 2: Operation is not supported by underlying database.
	RetCInvalidOperation                    // 3: Invalid operation (e.g. an invalid source name).
	RetCNotFound                            // 4: Source or key absent where presence was assumed.
	RetCCodec                               // 5: Malformed payload or invalid document text.
	RetCKeyFormat                           // 6: Key unparsable under the configured key codec.
	RetCConfig                              // 7: Invalid config text or unsupported identifier.
	RetCIO                                  // 8: Disk failure.
	RetCClosed                              // 9: Operation on a closed store handle.
)

func (c RetCode) String() string {
	switch c {
	case RetCSuccess:
		return "Success"
	case RetCInternalError:
		return "InternalError"
	case RetCUnsupportedOperation:
		return "UnsupportedOperation"
	case RetCInvalidOperation:
		return "InvalidOperation"
	case RetCNotFound:
		return "NotFound"
	case RetCCodec:
		return "Codec"
	case RetCKeyFormat:
		return "KeyFormat"
	case RetCConfig:
		return "Config"
	case RetCIO:
		return "IO"
	case RetCClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}
