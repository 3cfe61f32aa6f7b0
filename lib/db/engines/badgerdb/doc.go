// Package badgerdb provides the db.KVDB implementation used by every store handle.
// It wraps a github.com/dgraph-io/badger/v4 database that owns one source directory.
//
// Segment Strategies:
//
//	The db.Options.Strategy field decides how writes reach badger:
//
//	- buffered-write: Writes are staged in an in-memory write buffer. Reads consult
//	  the buffer before badger, so a staged write is immediately visible. Once the
//	  buffer holds BatchSize entries it is applied as a single badger WriteBatch.
//
//	- direct-write: Every write runs in its own badger transaction. The previous
//	  value is read in the same transaction, making Set and Delete atomic. BatchSize
//	  writes count as one batch.
//
//	- in-memory: Badger runs in in-memory mode. Writes behave like direct-write,
//	  nothing is written to disk and the data is lost on Close.
//
// Durability:
//
//	- Every NumSyncBatches completed batches the engine fsyncs badger.
//	- Persist applies the write buffer to badger without fsync.
//	- Sync applies the write buffer and fsyncs (badger.DB.Sync).
//	- Close implies Sync and then closes badger, releasing its directory lock.
//
// Segment Files:
//
//	SegmentFileSizeMB becomes badger's value log file size. Badger accepts values
//	between 1 MB and 2 GB (exclusive), Validate rejects everything else.
//
// Thread Safety:
//
//	All methods are safe for concurrent use. Writes are serialized per engine, reads
//	run concurrently with each other. Iterate does not hold the write lock while
//	calling back, so the callback may write to the same engine. Iteration is weakly
//	consistent: it sees badger through a read transaction plus a snapshot of the
//	write buffer taken when the iteration starts.
//
// Logging:
//
//	Badger's internal logger is bridged to the "engine" logger of
//	github.com/lni/dragonboat/v4/logger.
//
// Usage Example:
//
//	kv, err := badgerdb.Open(db.Options{
//		Dir:               "/data/orders",
//		Capacity:          1_000_000,
//		BatchSize:         1000,
//		NumSyncBatches:    10,
//		SegmentFileSizeMB: 128,
//		Strategy:          db.StrategyBufferedWrite,
//	})
//	if err != nil {
//		// handle error
//	}
//	defer kv.Close()
package badgerdb
