package testing

import (
	"fmt"
	"math/rand"
	"sync/atomic"
	"testing"

	"github.com/ValentinKolb/jstore/lib/db"
)

// RunKVDBBenchmarks runs all benchmarks for a key-value database implementation
func RunKVDBBenchmarks(b *testing.B, name string, factory DBFactory) {
	b.Run(name, func(b *testing.B) {
		b.Run("Set", func(b *testing.B) {
			benchmarkSet(b, open(b, factory, b.TempDir()))
		})

		b.Run("SetExisting", func(b *testing.B) {
			benchmarkSetExisting(b, open(b, factory, b.TempDir()))
		})

		b.Run("Get", func(b *testing.B) {
			benchmarkGet(b, open(b, factory, b.TempDir()))
		})

		b.Run("Delete", func(b *testing.B) {
			benchmarkDelete(b, open(b, factory, b.TempDir()))
		})

		b.Run("Iterate", func(b *testing.B) {
			benchmarkIterate(b, open(b, factory, b.TempDir()))
		})

		b.Run("MixedUsage", func(b *testing.B) {
			benchmarkMixedUsage(b, open(b, factory, b.TempDir()))
		})
	})
}

// --------------------------------------------------------------------------
// Benchmark functions
// --------------------------------------------------------------------------

// fill writes n small entries named test-key-<i>
func fill(b *testing.B, database db.KVDB, n int) {
	b.Helper()
	for i := 0; i < n; i++ {
		key := []byte(fmt.Sprintf("test-key-%d", i))
		value := []byte(fmt.Sprintf(`{"n":%d}`, i))
		if _, _, err := database.Set(key, value); err != nil {
			b.Fatalf("Set failed: %v", err)
		}
	}
}

// Benchmark for Set operation
func benchmarkSet(b *testing.B, database db.KVDB) {

	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureSet)

	var counter int64
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			i := atomic.AddInt64(&counter, 1)
			database.Set([]byte(fmt.Sprintf("test-key-%d", i)), []byte(fmt.Sprintf(`{"n":%d}`, i)))
		}
	})
}

// Benchmark for Set operation with existing keys
func benchmarkSetExisting(b *testing.B, database db.KVDB) {

	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureSet)

	numKeys := 10000
	fill(b, database, numKeys)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		counter := 0
		for pb.Next() {
			key := []byte(fmt.Sprintf("test-key-%d", counter%numKeys))
			database.Set(key, []byte(fmt.Sprintf(`{"v":%d}`, counter)))
			counter++
		}
	})
}

// Parallel benchmarking for Get operation
func benchmarkGet(b *testing.B, database db.KVDB) {

	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureSet|db.FeatureGet)

	numKeys := 10000
	fill(b, database, numKeys)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		counter := 0
		for pb.Next() {
			database.Get([]byte(fmt.Sprintf("test-key-%d", counter%numKeys)))
			counter++
		}
	})
}

// Parallel benchmarking for Delete operation
func benchmarkDelete(b *testing.B, database db.KVDB) {

	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureSet|db.FeatureDelete)

	numKeys := 100000
	if b.N < numKeys {
		numKeys = b.N
	}
	fill(b, database, numKeys)

	var counter int64
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			i := atomic.AddInt64(&counter, 1) % int64(numKeys)
			database.Delete([]byte(fmt.Sprintf("test-key-%d", i)))
		}
	})
}

// Benchmark for a full scan
func benchmarkIterate(b *testing.B, database db.KVDB) {

	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureSet|db.FeatureIterate)

	fill(b, database, 10000)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		count := 0
		database.Iterate(func(_, _ []byte) bool {
			count++
			return true
		})
	}
}

// Benchmark for a read heavy mix of operations
func benchmarkMixedUsage(b *testing.B, database db.KVDB) {

	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureSet|db.FeatureGet|db.FeatureDelete)

	numKeys := 10000
	fill(b, database, numKeys)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		r := rand.New(rand.NewSource(rand.Int63()))
		for pb.Next() {
			key := []byte(fmt.Sprintf("test-key-%d", r.Intn(numKeys)))
			switch op := r.Intn(100); {
			case op < 70:
				database.Get(key)
			case op < 95:
				database.Set(key, []byte(`{"mixed":true}`))
			default:
				database.Delete(key)
			}
		}
	})
}
