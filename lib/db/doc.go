// Package db defines the contract of the persistent key-value engines that back
// every store handle.
//
// An engine maps binary keys to binary values. It knows nothing about documents,
// key formats or sources: the store layer encodes keys and documents before they
// reach the engine and decodes them on the way back.
//
// Key Components:
//
//   - KVDB Interface: CRUD on binary keys, a restartable Iterate, and the two
//     durability operations Persist and Sync.
//
//   - Options / Factory: the resolved parameters (capacity, batch size, sync cadence,
//     segment file size, segment strategy) an engine is opened with, and the function
//     type that opens one. Store handles keep the factory so a closed handle can be
//     reopened on the same directory.
//
//   - Feature Flags: engines advertise what they support through SupportsFeature.
//     The in-memory strategy, for example, does not support FeatureReopen.
//
// Note on Durability:
//
//   - Persist moves pending writes (e.g. a write buffer) into the engine files
//     without forcing them to stable storage.
//   - Sync is the hard durability boundary: after it returns nil every write made
//     before the call is recoverable after a crash.
//   - Close implies Sync.
//
// Related Packages:
//
// The engines/badgerdb package provides the implementation on top of
// github.com/dgraph-io/badger/v4. The testing package provides a conformance suite
// (RunKVDBTests) every implementation should pass.
package db
