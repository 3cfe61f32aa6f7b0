package badgerdb

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ValentinKolb/jstore/lib/db"
	"github.com/dgraph-io/badger/v4"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("engine")

// --------------------------------------------------------------------------
// Constants
// --------------------------------------------------------------------------

const (
	minSegmentFileSizeMB = 1    // badger rejects value log files below 1 MB
	maxSegmentFileSizeMB = 2047 // badger rejects value log files of 2 GB and more
	memTableSize         = 16 << 20
	blockCacheSize       = 32 << 20
)

// --------------------------------------------------------------------------
// Core database structure
// --------------------------------------------------------------------------

// pending is one staged write of the write buffer
type pending struct {
	value   []byte
	deleted bool
}

// badgerImpl implements db.KVDB on top of a badger database
type badgerImpl struct {
	opts db.Options
	bdb  *badger.DB

	// mu guards the write path, the write buffer and the counters.
	// Reads take it shared, writes and flushes exclusively.
	mu     sync.RWMutex
	buffer map[string]pending
	writes uint64 // writes since open (direct strategies)
	batch  uint64 // batches since open
	syncs  uint64 // fsyncs since open
	closed bool

	// iterMu keeps Close from running underneath an iteration without blocking
	// writes issued from inside the iteration callback.
	iterMu sync.RWMutex
}

// --------------------------------------------------------------------------
// Initialization and Setup
// --------------------------------------------------------------------------

// Validate checks the options without opening anything.
func Validate(opts db.Options) error {
	if _, ok := db.Strategies[opts.Strategy]; !ok {
		return fmt.Errorf("unknown segment strategy %q", opts.Strategy)
	}
	if opts.Strategy != db.StrategyInMemory && opts.Dir == "" {
		return errors.New("a directory is required for persistent strategies")
	}
	if opts.SegmentFileSizeMB < minSegmentFileSizeMB || opts.SegmentFileSizeMB > maxSegmentFileSizeMB {
		return fmt.Errorf("segment file size must be within [%d, %d] MB, got %d",
			minSegmentFileSizeMB, maxSegmentFileSizeMB, opts.SegmentFileSizeMB)
	}
	if opts.BatchSize <= 0 || opts.NumSyncBatches <= 0 || opts.Capacity <= 0 {
		return errors.New("capacity, batch size and number of sync batches must be positive")
	}
	return nil
}

// Open opens (or creates) a badger backed engine with the given options.
// It satisfies db.Factory.
//
// Thread-safety: Two engines must never be opened on the same directory at once.
// Badger refuses this with a directory lock error.
func Open(opts db.Options) (db.KVDB, error) {
	if err := Validate(opts); err != nil {
		return nil, err
	}

	var bopts badger.Options
	if opts.Strategy == db.StrategyInMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		bopts = badger.DefaultOptions(opts.Dir).
			WithValueLogFileSize(int64(opts.SegmentFileSizeMB) << 20).
			WithSyncWrites(false)
	}
	bopts = bopts.
		WithLogger(Logger).
		WithNumVersionsToKeep(1).
		WithMemTableSize(memTableSize).
		WithBlockCacheSize(blockCacheSize)

	bdb, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %q: %w", opts.Dir, err)
	}

	return &badgerImpl{
		opts:   opts,
		bdb:    bdb,
		buffer: make(map[string]pending),
	}, nil
}

// --------------------------------------------------------------------------
// KVDB Interface Methods - Write Operations
// --------------------------------------------------------------------------

// Set stores value under key and returns the value it replaced.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (e *badgerImpl) Set(key, value []byte) ([]byte, bool, error) {
	valueCopy := make([]byte, len(value))
	copy(valueCopy, value)
	return e.write(key, pending{value: valueCopy})
}

// Delete removes key and returns the value it held.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (e *badgerImpl) Delete(key []byte) ([]byte, bool, error) {
	return e.write(key, pending{deleted: true})
}

// write is the shared implementation of Set and Delete for all strategies
func (e *badgerImpl) write(key []byte, p pending) ([]byte, bool, error) {
	if len(key) == 0 {
		return nil, false, errors.New("key must not be empty")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil, false, db.ErrClosed
	}

	// case buffered: stage the write, the buffer answers reads until it is flushed
	if e.opts.Strategy == db.StrategyBufferedWrite {
		prev, loaded, err := e.getLocked(key)
		if err != nil {
			return nil, false, err
		}
		// deleting a key that exists nowhere needs no tombstone
		if p.deleted && !loaded {
			return nil, false, nil
		}
		e.buffer[string(key)] = p
		if len(e.buffer) >= e.opts.BatchSize {
			if err := e.flushLocked(); err != nil {
				return prev, loaded, err
			}
		}
		return prev, loaded, nil
	}

	// case direct: read the previous value and write in one transaction
	var (
		prev   []byte
		loaded bool
	)
	err := e.bdb.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		switch {
		case err == nil:
			if prev, err = item.ValueCopy(nil); err != nil {
				return err
			}
			loaded = true
		case !errors.Is(err, badger.ErrKeyNotFound):
			return err
		}

		if p.deleted {
			if !loaded {
				return nil
			}
			return txn.Delete(key)
		}
		return txn.Set(key, p.value)
	})
	if err != nil {
		return nil, false, err
	}

	e.writes++
	if e.writes%uint64(e.opts.BatchSize) == 0 {
		if err := e.batchDoneLocked(); err != nil {
			return prev, loaded, err
		}
	}
	return prev, loaded, nil
}

// --------------------------------------------------------------------------
// KVDB Interface Methods - Read Operations
// --------------------------------------------------------------------------

// Get retrieves a copy of the value stored for key.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (e *badgerImpl) Get(key []byte) ([]byte, bool, error) {
	if len(key) == 0 {
		return nil, false, nil
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.closed {
		return nil, false, db.ErrClosed
	}
	return e.getLocked(key)
}

// getLocked looks up key in the write buffer first and then in badger.
// The caller must hold mu (shared or exclusive).
func (e *badgerImpl) getLocked(key []byte) ([]byte, bool, error) {
	if p, ok := e.buffer[string(key)]; ok {
		if p.deleted {
			return nil, false, nil
		}
		value := make([]byte, len(p.value))
		copy(value, p.value)
		return value, true, nil
	}

	var value []byte
	err := e.bdb.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

// Iterate visits the engine files first and then the write buffer.
// Keys staged in the buffer shadow their on-disk version.
//
// Thread-safety: This method is thread-safe. fn may write to the engine but must not close it.
func (e *badgerImpl) Iterate(fn func(key, value []byte) bool) error {
	e.iterMu.RLock()
	defer e.iterMu.RUnlock()

	// snapshot the write buffer so fn runs without holding mu
	e.mu.RLock()
	if e.closed {
		e.mu.RUnlock()
		return db.ErrClosed
	}
	staged := make(map[string]pending, len(e.buffer))
	for k, p := range e.buffer {
		staged[k] = p
	}
	e.mu.RUnlock()

	stopped := false
	err := e.bdb.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			if _, shadowed := staged[string(item.Key())]; shadowed {
				continue
			}
			value, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if !fn(item.KeyCopy(nil), value) {
				stopped = true
				return nil
			}
		}
		return nil
	})
	if err != nil || stopped {
		return err
	}

	for k, p := range staged {
		if p.deleted {
			continue
		}
		if !fn([]byte(k), p.value) {
			return nil
		}
	}
	return nil
}

// --------------------------------------------------------------------------
// Durability Operations
// --------------------------------------------------------------------------

// Persist flushes the write buffer into badger without fsync.
func (e *badgerImpl) Persist() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return db.ErrClosed
	}
	return e.flushLocked()
}

// Sync flushes the write buffer and fsyncs badger.
func (e *badgerImpl) Sync() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return db.ErrClosed
	}
	if err := e.flushLocked(); err != nil {
		return err
	}
	return e.fsyncLocked()
}

// flushLocked writes the write buffer as one badger write batch.
// The caller must hold mu exclusively.
func (e *badgerImpl) flushLocked() error {
	if len(e.buffer) == 0 {
		return nil
	}

	wb := e.bdb.NewWriteBatch()
	defer wb.Cancel()

	for k, p := range e.buffer {
		var err error
		if p.deleted {
			err = wb.Delete([]byte(k))
		} else {
			err = wb.Set([]byte(k), p.value)
		}
		if err != nil {
			return fmt.Errorf("stage batch entry: %w", err)
		}
	}
	if err := wb.Flush(); err != nil {
		return fmt.Errorf("flush write batch: %w", err)
	}

	clear(e.buffer)
	return e.batchDoneLocked()
}

// batchDoneLocked counts a completed batch and fsyncs every NumSyncBatches batches
func (e *badgerImpl) batchDoneLocked() error {
	e.batch++
	if e.batch%uint64(e.opts.NumSyncBatches) == 0 {
		return e.fsyncLocked()
	}
	return nil
}

// fsyncLocked forces badger's files to stable storage
func (e *badgerImpl) fsyncLocked() error {
	if e.opts.Strategy == db.StrategyInMemory {
		return nil
	}
	if err := e.bdb.Sync(); err != nil {
		return fmt.Errorf("sync badger: %w", err)
	}
	e.syncs++
	return nil
}

// --------------------------------------------------------------------------
// KVDB Interface Implementation - Features and Metadata
// --------------------------------------------------------------------------

func (e *badgerImpl) Capacity() int {
	return e.opts.Capacity
}

// GetInfo returns statistics about the database
func (e *badgerImpl) GetInfo() db.DatabaseInfo {
	e.mu.RLock()
	defer e.mu.RUnlock()

	meta := &struct {
		Strategy       db.SegmentStrategy `json:"strategy"`
		BufferedWrites int                `json:"buffered_writes"`
		Batches        uint64             `json:"batches"`
		Syncs          uint64             `json:"syncs"`
		LSMSizeBytes   int64              `json:"lsm_size_bytes"`
		VlogSizeBytes  int64              `json:"vlog_size_bytes"`
		Closed         bool               `json:"closed"`
	}{
		Strategy:       e.opts.Strategy,
		BufferedWrites: len(e.buffer),
		Batches:        e.batch,
		Syncs:          e.syncs,
		Closed:         e.closed,
	}
	if !e.closed {
		meta.LSMSizeBytes, meta.VlogSizeBytes = e.bdb.Size()
	}

	features := []db.Feature{
		db.FeatureGet, db.FeatureSet, db.FeatureDelete, db.FeatureIterate,
		db.FeaturePersist, db.FeatureSync,
	}
	if e.opts.Strategy != db.StrategyInMemory {
		features = append(features, db.FeatureReopen)
	}

	return db.DatabaseInfo{
		SizeBytes:         meta.LSMSizeBytes + meta.VlogSizeBytes,
		DbType:            db.ImplBadger,
		SupportedFeatures: features,
		Metadata:          meta,
	}
}

// SupportsFeature checks if this implementation supports a specific KVDB feature
func (e *badgerImpl) SupportsFeature(feature db.Feature) bool {
	supported := db.FeatureGet |
		db.FeatureSet |
		db.FeatureDelete |
		db.FeatureIterate |
		db.FeaturePersist |
		db.FeatureSync
	if e.opts.Strategy != db.StrategyInMemory {
		supported |= db.FeatureReopen
	}
	return supported&feature == feature
}

// Close syncs pending writes and closes badger.
// Closing twice is a no-op.
func (e *badgerImpl) Close() error {
	e.iterMu.Lock()
	defer e.iterMu.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.closed = true

	syncErr := e.flushLocked()
	if syncErr == nil {
		syncErr = e.fsyncLocked()
	}
	return errors.Join(syncErr, e.bdb.Close())
}
