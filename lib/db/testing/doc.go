// Package testing provides standardised tests and benchmarks for
// engine implementations that satisfy the db.KVDB interface.
//
// The package contains:
//   - testing: A conformance suite for the KVDB contract (copy semantics of Get and Set,
//     previous values, restartable iteration, durability across Close and reopen,
//     behaviour after Close, concurrent read-your-writes)
//   - benchmark: Performance tests for measuring throughput of common engine operations
//
// Example usage:
//
//	// Creating a factory function for your implementation
//	factory := func(dir string) (db.KVDB, error) {
//		return myengine.Open(db.Options{Dir: dir, ...})
//	}
//
//	// Running the standard test suite
//	dbtesting.RunKVDBTests(t, "MyEngine", factory)
//
//	// Running performance benchmarks
//	dbtesting.RunKVDBBenchmarks(b, "MyEngine", factory)
package testing
