package testing

import (
	"bytes"
	"fmt"
	"sync"
	"testing"

	"github.com/ValentinKolb/jstore/lib/db"
)

// DBFactory opens an instance of a KVDB implementation on dir.
// Calling it twice with the same dir (after Close) must reopen the same data
// if the implementation supports db.FeatureReopen.
type DBFactory func(dir string) (db.KVDB, error)

// RunKVDBTests runs a comprehensive test suite for a KVDB implementation.
func RunKVDBTests(t *testing.T, name string, factory DBFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("Set&Get", func(t *testing.T) {
			testSetGet(t, open(t, factory, t.TempDir()))
		})

		t.Run("Delete", func(t *testing.T) {
			testDelete(t, open(t, factory, t.TempDir()))
		})

		t.Run("Iterate", func(t *testing.T) {
			testIterate(t, open(t, factory, t.TempDir()))
		})

		t.Run("IterateEarlyStop", func(t *testing.T) {
			testIterateEarlyStop(t, open(t, factory, t.TempDir()))
		})

		t.Run("PersistSync", func(t *testing.T) {
			testPersistSync(t, open(t, factory, t.TempDir()))
		})

		t.Run("Reopen", func(t *testing.T) {
			testReopen(t, factory)
		})

		t.Run("Closed", func(t *testing.T) {
			testClosed(t, open(t, factory, t.TempDir()))
		})

		t.Run("Concurrent", func(t *testing.T) {
			testConcurrent(t, open(t, factory, t.TempDir()))
		})
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

// open creates a database or fails the test
func open(t testing.TB, factory DBFactory, dir string) db.KVDB {
	t.Helper()
	database, err := factory(dir)
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	return database
}

// Checks if the database supports the specified feature
// Skip the test if it is not supported
func requireFeature(t testing.TB, database db.KVDB, feature db.Feature) {
	if !database.SupportsFeature(feature) {
		t.Skipf("feature %s not supported", feature)
	}
}

func mustSet(t testing.TB, database db.KVDB, key, value string) {
	t.Helper()
	if _, _, err := database.Set([]byte(key), []byte(value)); err != nil {
		t.Fatalf("Set(%s) failed: %v", key, err)
	}
}

func collect(t testing.TB, database db.KVDB) map[string]string {
	t.Helper()
	entries := make(map[string]string)
	err := database.Iterate(func(key, value []byte) bool {
		entries[string(key)] = string(value)
		return true
	})
	if err != nil {
		t.Fatalf("Iterate failed: %v", err)
	}
	return entries
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testSetGet(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet|db.FeatureGet)

	key := []byte("test-key")
	value1 := []byte("test-value1")
	value2 := []byte("test-value2")

	prev, loaded, err := database.Set(key, value1)
	if err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if loaded || prev != nil {
		t.Errorf("Expected no previous value for a new key, got %q", prev)
	}

	result, ok, err := database.Get(key)
	if err != nil || !ok {
		t.Fatalf("Expected key to exist after Set (ok=%v, err=%v)", ok, err)
	}
	if !bytes.Equal(result, value1) {
		t.Errorf("Expected value %s, got %s", value1, result)
	}

	prev, loaded, err = database.Set(key, value2)
	if err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if !loaded || !bytes.Equal(prev, value1) {
		t.Errorf("Expected previous value %s, got %s (loaded=%v)", value1, prev, loaded)
	}

	result, _, _ = database.Get(key)
	if !bytes.Equal(result, value2) {
		t.Errorf("Expected value %s, got %s", value2, result)
	}

	if _, ok, _ := database.Get([]byte("nonexistent-key")); ok {
		t.Errorf("Expected nonexistent key to return ok=false")
	}

	// returned values must be copies
	result[0] = 'X'
	original, _, _ := database.Get(key)
	if bytes.Equal(result, original) {
		t.Errorf("Get should return a copy, not a reference to the stored value")
	}

	// the caller may reuse its value slice after Set
	reused := []byte("reused")
	mustSet(t, database, "reuse", string(reused))
	reused[0] = 'X'
	if got, _, _ := database.Get([]byte("reuse")); string(got) != "reused" {
		t.Errorf("Set must copy the value, got %s", got)
	}
}

func testDelete(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet|db.FeatureGet|db.FeatureDelete)

	mustSet(t, database, "delete-me", "value")

	prev, loaded, err := database.Delete([]byte("delete-me"))
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if !loaded || string(prev) != "value" {
		t.Errorf("Expected deleted value 'value', got %q (loaded=%v)", prev, loaded)
	}

	if _, ok, _ := database.Get([]byte("delete-me")); ok {
		t.Errorf("Key should not exist after Delete")
	}

	prev, loaded, err = database.Delete([]byte("delete-me"))
	if err != nil {
		t.Fatalf("Second Delete failed: %v", err)
	}
	if loaded || prev != nil {
		t.Errorf("Deleting a missing key should report loaded=false, got %q", prev)
	}

	// delete, flush and set again
	mustSet(t, database, "cycle", "v1")
	if _, _, err := database.Delete([]byte("cycle")); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := database.Persist(); err != nil {
		t.Fatalf("Persist failed: %v", err)
	}
	if _, ok, _ := database.Get([]byte("cycle")); ok {
		t.Errorf("Deleted key must stay deleted after Persist")
	}
	mustSet(t, database, "cycle", "v2")
	if got, ok, _ := database.Get([]byte("cycle")); !ok || string(got) != "v2" {
		t.Errorf("Expected v2 after re-set, got %q", got)
	}
}

func testIterate(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureIterate)

	want := make(map[string]string)
	for i := 0; i < 50; i++ {
		k, v := fmt.Sprintf("key-%03d", i), fmt.Sprintf("value-%d", i)
		mustSet(t, database, k, v)
		want[k] = v
		// flush half of the entries so both the files and any buffer are visited
		if i == 24 {
			if err := database.Persist(); err != nil {
				t.Fatalf("Persist failed: %v", err)
			}
		}
	}
	// overwrite a flushed key and delete another one without flushing
	mustSet(t, database, "key-000", "updated")
	want["key-000"] = "updated"
	if _, _, err := database.Delete([]byte("key-001")); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	delete(want, "key-001")

	got := collect(t, database)
	if len(got) != len(want) {
		t.Fatalf("Expected %d entries, got %d", len(want), len(got))
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("Entry %s: expected %s, got %s", k, v, got[k])
		}
	}

	// a fresh call restarts from the beginning
	if again := collect(t, database); len(again) != len(want) {
		t.Errorf("Second iteration returned %d entries, expected %d", len(again), len(want))
	}
}

func testIterateEarlyStop(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureIterate)

	for i := 0; i < 10; i++ {
		mustSet(t, database, fmt.Sprintf("k%d", i), "v")
	}

	visited := 0
	err := database.Iterate(func(_, _ []byte) bool {
		visited++
		return visited < 3
	})
	if err != nil {
		t.Fatalf("Iterate failed: %v", err)
	}
	if visited != 3 {
		t.Errorf("Expected iteration to stop after 3 entries, visited %d", visited)
	}

	// writing from inside the callback must not deadlock
	err = database.Iterate(func(key, _ []byte) bool {
		_, _, err := database.Set(key, []byte("rewritten"))
		return err == nil
	})
	if err != nil {
		t.Fatalf("Iterate with writes failed: %v", err)
	}
}

func testPersistSync(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeaturePersist|db.FeatureSync)

	mustSet(t, database, "a", "1")
	if err := database.Persist(); err != nil {
		t.Errorf("Persist failed: %v", err)
	}
	mustSet(t, database, "b", "2")
	if err := database.Sync(); err != nil {
		t.Errorf("Sync failed: %v", err)
	}
	// flushing an empty buffer is fine
	if err := database.Sync(); err != nil {
		t.Errorf("Second Sync failed: %v", err)
	}

	for k, v := range map[string]string{"a": "1", "b": "2"} {
		if got, ok, _ := database.Get([]byte(k)); !ok || string(got) != v {
			t.Errorf("Expected %s=%s after sync, got %q", k, v, got)
		}
	}

	if database.Capacity() <= 0 {
		t.Errorf("Capacity should be positive, got %d", database.Capacity())
	}
}

func testReopen(t *testing.T, factory DBFactory) {
	dir := t.TempDir()
	database := open(t, factory, dir)

	requireFeature(t, database, db.FeatureReopen)

	for i := 0; i < 25; i++ {
		mustSet(t, database, fmt.Sprintf("persisted-%d", i), fmt.Sprintf("%d", i))
	}
	if _, _, err := database.Delete([]byte("persisted-0")); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	// no explicit sync: Close must flush
	if err := database.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened := open(t, factory, dir)
	defer reopened.Close()

	got := collect(t, reopened)
	if len(got) != 24 {
		t.Errorf("Expected 24 entries after reopen, got %d", len(got))
	}
	if _, ok := got["persisted-0"]; ok {
		t.Errorf("Deleted entry came back after reopen")
	}
	if got["persisted-24"] != "24" {
		t.Errorf("Expected persisted-24=24, got %q", got["persisted-24"])
	}
}

func testClosed(t *testing.T, database db.KVDB) {
	mustSet(t, database, "k", "v")
	if err := database.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := database.Close(); err != nil {
		t.Errorf("Closing twice should be a no-op, got %v", err)
	}

	if _, _, err := database.Get([]byte("k")); err == nil {
		t.Errorf("Get on a closed database should fail")
	}
	if _, _, err := database.Set([]byte("k"), []byte("v")); err == nil {
		t.Errorf("Set on a closed database should fail")
	}
	if err := database.Iterate(func(_, _ []byte) bool { return true }); err == nil {
		t.Errorf("Iterate on a closed database should fail")
	}
	if err := database.Sync(); err == nil {
		t.Errorf("Sync on a closed database should fail")
	}
}

func testConcurrent(t *testing.T, database db.KVDB) {
	defer database.Close()

	const (
		workers = 8
		perW    = 200
	)

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perW; i++ {
				key := []byte(fmt.Sprintf("w%d-%d", w, i))
				if _, _, err := database.Set(key, key); err != nil {
					t.Errorf("Set failed: %v", err)
					return
				}
				if got, ok, err := database.Get(key); err != nil || !ok || !bytes.Equal(got, key) {
					t.Errorf("Read-your-write failed for %s: %q %v %v", key, got, ok, err)
					return
				}
			}
		}(w)
	}
	wg.Wait()

	if got := collect(t, database); len(got) != workers*perW {
		t.Errorf("Expected %d entries, got %d", workers*perW, len(got))
	}
}
