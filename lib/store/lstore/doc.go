// Package lstore implements the store.IStore interface for a single source on top of
// any db.KVDB engine.
//
// A handle owns one directory and the resolved store.StoreConfig it was created with.
// Keys pass through the configured key codec and documents through the configured
// value codec before they reach the engine.
//
// Implementation Details:
//
//   - Lifecycle: the db.Factory is kept, so Close releases the engine (including its
//     directory lock) and Open creates a fresh engine on the same directory.
//
//   - Feature Detection: before executing operations, the handle checks if the engine
//     supports the requested feature through SupportsFeature. Unsupported operations
//     return RetCUnsupportedOperation.
//
//   - Statistics: operation counters and persist/sync timers are kept with
//     github.com/rcrowley/go-metrics and reported by GetInfo.
//
// Thread Safety:
//
//	All operations are thread-safe. The handle only locks while swapping or reading
//	its engine reference. An operation racing with Close either completes or fails
//	with RetCClosed.
//
// Usage Example:
//
//	cfg := store.StoreConfig{KeyCodec: codec.RawPath}.Resolve()
//	s, err := lstore.NewLocalStore("/data/orders", cfg, badgerdb.Open)
//	if err != nil {
//		// handle error
//	}
//	defer s.Close()
//
//	prev, replaced, err := s.Put("42", store.Document(`{"x":1}`))
package lstore
