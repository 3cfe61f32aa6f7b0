package db

import "errors"

// --------------------------------------------------------------------------
// Helper Types
// --------------------------------------------------------------------------

type Implementation string

const (
	ImplBadger Implementation = "badger"
)

// SegmentStrategy selects how an engine stages writes before they reach its files.
type SegmentStrategy string

const (
	// StrategyBufferedWrite stages writes in an in-memory write buffer that is flushed
	// to the engine files once it holds BatchSize entries.
	StrategyBufferedWrite SegmentStrategy = "buffered-write"
	// StrategyDirectWrite commits every write to the engine files immediately.
	StrategyDirectWrite SegmentStrategy = "direct-write"
	// StrategyInMemory keeps all data in memory, nothing is written to disk.
	StrategyInMemory SegmentStrategy = "in-memory"
)

// Strategies is the closed set of supported segment strategies.
var Strategies = map[SegmentStrategy]struct{}{
	StrategyBufferedWrite: {},
	StrategyDirectWrite:   {},
	StrategyInMemory:      {},
}

// Feature represents database features as bit flags
type Feature uint64

const (
	FeatureGet      Feature = 1 << iota // Support for Get operations
	FeatureSet                          // Support for Set operations
	FeatureDelete                       // Support for Delete operations
	FeatureIterate                      // Support for Iterate operations
	FeaturePersist                      // Support for Persist operations
	FeatureSync                         // Support for durable Sync operations
	FeatureReopen                       // Data survives Close followed by a new Factory call
)

func (f Feature) String() string {
	switch f {
	case FeatureGet:
		return "Get"
	case FeatureSet:
		return "Set"
	case FeatureDelete:
		return "Delete"
	case FeatureIterate:
		return "Iterate"
	case FeaturePersist:
		return "Persist"
	case FeatureSync:
		return "Sync"
	case FeatureReopen:
		return "Reopen"
	default:
		return "Unknown"
	}
}

type DatabaseInfo struct {
	SizeBytes         int64          `json:"size_bytes"`
	DbType            Implementation `json:"db_type"`
	SupportedFeatures []Feature      `json:"supported_features"`
	Metadata          interface{}    `json:"metadata"`
}

// Options are the resolved parameters an engine is opened with.
type Options struct {
	Dir               string          // directory owned by the engine (ignored for StrategyInMemory)
	Capacity          int             // advisory maximum number of entries
	BatchSize         int             // number of writes forming one batch
	NumSyncBatches    int             // number of batches between two automatic fsyncs
	SegmentFileSizeMB int             // size of one engine segment file
	Strategy          SegmentStrategy // how writes are staged
}

// Factory opens an engine instance with the given options.
type Factory func(opts Options) (KVDB, error)

// ErrClosed is returned by every operation on an engine after Close.
var ErrClosed = errors.New("db: engine is closed")

// --------------------------------------------------------------------------
// Database Interface
// --------------------------------------------------------------------------

// KVDB defines the contract of a persistent binary-key to binary-value engine.
// All methods must be safe for concurrent use.
type KVDB interface {

	// --------------------------------------------------------------------------
	// Write Operations
	// --------------------------------------------------------------------------

	// Set inserts or replaces the value for key.
	// The previous value is returned, loaded reports whether one existed.
	Set(key, value []byte) (previous []byte, loaded bool, err error)

	// Delete removes key.
	// The removed value is returned, loaded reports whether one existed.
	Delete(key []byte) (previous []byte, loaded bool, err error)

	// --------------------------------------------------------------------------
	// Query Operations
	// --------------------------------------------------------------------------

	// Get retrieves the value for an exact key.
	// The returned slice is a copy and safe to modify.
	Get(key []byte) (value []byte, loaded bool, err error)

	// Iterate calls fn for every entry until fn returns false.
	// The order is implementation-defined. Entries written while the iteration runs
	// may or may not be visited.
	Iterate(fn func(key, value []byte) bool) (err error)

	// --------------------------------------------------------------------------
	// Durability Operations
	// --------------------------------------------------------------------------

	// Persist moves all pending in-memory writes into the engine files.
	// It does not fsync, a crash right after may need engine recovery on the next open.
	Persist() (err error)

	// Sync persists pending writes and fsyncs data and index.
	// Every write made before a successful Sync survives a crash.
	Sync() (err error)

	// --------------------------------------------------------------------------
	// Metadata
	// --------------------------------------------------------------------------

	// Capacity returns the configured (advisory) maximum number of entries.
	Capacity() int

	// SupportsFeature checks if the database implementation supports the specified feature.
	// Multiple features can be checked at once using bitwise OR (|) operator.
	SupportsFeature(feature Feature) (ok bool)

	// GetInfo returns information about the database.
	GetInfo() (info DatabaseInfo)

	// Close syncs and closes the database. Further calls fail with ErrClosed.
	Close() (err error)
}
