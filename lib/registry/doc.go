// Package registry implements the Store Registry: the owner of every store handle
// of a process.
//
// A Registry maps source names to open store.IStore handles. Each source is a
// directory below the home directory (see package home) holding the engine files
// and the config.json and schema.json sidecars.
//
// Lifecycle:
//
//   - Create is idempotent. The first call for a source creates its directory,
//     resolves its config (sidecar text, else defaults, missing fields filled in),
//     writes the resolved config back and opens the engine. Later calls return the
//     registered handle.
//   - Open reopens a registered handle or rehydrates a closed source from disk.
//   - Close deregisters and closes a handle, the directory stays.
//   - Remove closes the source and deletes its directory in two phases (move to
//     trash, then purge). After Remove the source is unknown.
//
// Concurrency:
//
//	Lifecycle and sidecar writes are serialized per source through a lockmgr
//	keyed lock, so concurrent Create calls for one source open exactly one engine
//	while different sources never wait for each other. The handle map is a
//	github.com/puzpuzpuz/xsync/v3 MapOf and needs no external locking.
//
// Recovery and Shutdown:
//
//	New purges interrupted removals and recovers every source directory on a bounded
//	errgroup pool. A source that fails to recover is logged and skipped. Shutdown
//	syncs and closes every handle, failures are logged and not retried.
//
// Metrics:
//
//	Every registry owns a github.com/VictoriaMetrics/metrics Set with lifecycle
//	counters and the jstore_open_stores gauge, written by WriteMetrics.
package registry
