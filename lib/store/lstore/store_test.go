package lstore

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/ValentinKolb/jstore/lib/codec"
	"github.com/ValentinKolb/jstore/lib/db"
	"github.com/ValentinKolb/jstore/lib/db/engines/badgerdb"
	"github.com/ValentinKolb/jstore/lib/store"
)

func testConfig(keyCodec, valueCodec string) store.StoreConfig {
	return store.StoreConfig{
		InitialCapacity:   100,
		BatchSize:         8,
		NumSyncBatches:    2,
		SegmentFileSizeMB: 1,
		KeyCodec:          keyCodec,
		ValueCodec:        valueCodec,
	}.Resolve()
}

func newStore(t *testing.T, cfg store.StoreConfig) (store.IStore, string) {
	t.Helper()
	dir := t.TempDir()
	s, err := NewLocalStore(dir, cfg, badgerdb.Open)
	if err != nil {
		t.Fatalf("NewLocalStore failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s, dir
}

func TestCRUD(t *testing.T) {
	for _, valueCodec := range []string{codec.CompressedDocument, codec.ZstdDocument, codec.PlainDocument} {
		t.Run(valueCodec, func(t *testing.T) {
			s, _ := newStore(t, testConfig(codec.NumericPath, valueCodec))

			if !s.IsOpen() {
				t.Fatalf("a new store must be open")
			}

			prev, loaded, err := s.Put("42", store.Document(`{"x": 1}`))
			if err != nil || loaded || prev != nil {
				t.Fatalf("first Put = %s, %v, %v", prev, loaded, err)
			}

			doc, ok, err := s.Get("42")
			if err != nil || !ok {
				t.Fatalf("Get failed: %v (ok=%v)", err, ok)
			}
			if !doc.Equal(store.Document(`{"x":1}`)) {
				t.Errorf("expected {\"x\":1}, got %s", doc)
			}

			prev, loaded, err = s.Put("42", store.Document(`{"x": 2}`))
			if err != nil || !loaded || !prev.Equal(store.Document(`{"x":1}`)) {
				t.Errorf("replace Put = %s, %v, %v", prev, loaded, err)
			}

			prev, loaded, err = s.Delete("42")
			if err != nil || !loaded || !prev.Equal(store.Document(`{"x":2}`)) {
				t.Errorf("Delete = %s, %v, %v", prev, loaded, err)
			}
			if _, ok, _ := s.Get("42"); ok {
				t.Errorf("document still present after Delete")
			}
			if _, loaded, err := s.Delete("42"); loaded || err != nil {
				t.Errorf("deleting a missing key = %v, %v", loaded, err)
			}
		})
	}
}

func TestKeyAndCodecErrors(t *testing.T) {
	s, _ := newStore(t, testConfig(codec.NumericPath, codec.CompressedDocument))

	if _, _, err := s.Put("not-a-number", store.Document(`{}`)); !errors.Is(err, store.ErrKeyFormat) {
		t.Errorf("expected a key format error, got %v", err)
	}
	if _, _, err := s.Get("1.5"); !errors.Is(err, store.ErrKeyFormat) {
		t.Errorf("expected a key format error, got %v", err)
	}
	if _, _, err := s.Put("1", store.Document(`{"broken":`)); !errors.Is(err, store.ErrCodec) {
		t.Errorf("expected a codec error, got %v", err)
	}
	if _, _, err := s.Put("1", nil); !errors.Is(err, store.ErrCodec) {
		t.Errorf("expected a codec error for a nil document, got %v", err)
	}
}

func TestCanonicalKey(t *testing.T) {
	tests := []struct {
		keyCodec string
		key      string
		want     string
	}{
		{codec.NumericPath, "007", "7"},
		{codec.NumericPath, "+42", "42"},
		{codec.NumericPath, "-3", "-3"},
		{codec.NumericIntPath, "0012", "12"},
		{codec.RawPath, "007", "007"},
	}
	for _, tt := range tests {
		t.Run(tt.keyCodec+"/"+tt.key, func(t *testing.T) {
			s, _ := newStore(t, testConfig(tt.keyCodec, codec.PlainDocument))
			got, err := s.CanonicalKey(tt.key)
			if err != nil {
				t.Fatalf("CanonicalKey(%q) failed: %v", tt.key, err)
			}
			if got != tt.want {
				t.Errorf("CanonicalKey(%q) = %q, want %q", tt.key, got, tt.want)
			}
		})
	}

	s, _ := newStore(t, testConfig(codec.NumericPath, codec.PlainDocument))
	if _, err := s.CanonicalKey("seven"); !errors.Is(err, store.ErrKeyFormat) {
		t.Errorf("expected a key format error, got %v", err)
	}

	// the canonical spelling is what Iterate reports
	if _, _, err := s.Put("007", store.Document(`{}`)); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if got, err := s.CanonicalKey("007"); err != nil || got != "7" {
		t.Errorf("CanonicalKey on a closed handle = %q, %v", got, err)
	}
	if err := s.Open(); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	var keys []string
	if err := s.Iterate(func(key string, _ store.Document) bool {
		keys = append(keys, key)
		return true
	}); err != nil {
		t.Fatalf("Iterate failed: %v", err)
	}
	if len(keys) != 1 || keys[0] != "7" {
		t.Errorf("expected Iterate to report [7], got %v", keys)
	}
}

func TestIterate(t *testing.T) {
	s, _ := newStore(t, testConfig(codec.RawPath, codec.CompressedDocument))

	want := make(map[string]string)
	for i := 0; i < 20; i++ {
		key := fmt.Sprintf("doc/%d", i)
		text := fmt.Sprintf(`{"n":%d}`, i)
		if _, _, err := s.Put(key, store.Document(text)); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
		want[key] = text
	}

	for round := 0; round < 2; round++ {
		got := make(map[string]string)
		err := s.Iterate(func(key string, doc store.Document) bool {
			got[key] = doc.String()
			return true
		})
		if err != nil {
			t.Fatalf("Iterate failed: %v", err)
		}
		if len(got) != len(want) {
			t.Fatalf("round %d: expected %d entries, got %d", round, len(want), len(got))
		}
		for k, v := range want {
			if !store.Document(got[k]).Equal(store.Document(v)) {
				t.Errorf("entry %s: expected %s, got %s", k, v, got[k])
			}
		}
	}
}

func TestCloseOpen(t *testing.T) {
	s, _ := newStore(t, testConfig(codec.NumericPath, codec.CompressedDocument))

	for i := 0; i < 5; i++ {
		s.Put(fmt.Sprint(i), store.Document(fmt.Sprintf(`{"i":%d}`, i)))
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if s.IsOpen() {
		t.Errorf("IsOpen must be false after Close")
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close must be a no-op, got %v", err)
	}

	if _, _, err := s.Get("1"); !errors.Is(err, store.ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
	if _, _, err := s.Put("1", store.Document(`{}`)); !errors.Is(err, store.ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
	if err := s.Sync(); !errors.Is(err, store.ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
	if info := s.GetInfo(); info.Open {
		t.Errorf("GetInfo must report a closed handle")
	}

	if err := s.Open(); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	doc, ok, err := s.Get("3")
	if err != nil || !ok || !doc.Equal(store.Document(`{"i":3}`)) {
		t.Errorf("data lost across close/open: %s, %v, %v", doc, ok, err)
	}
}

func TestReopenFromDirectory(t *testing.T) {
	cfg := testConfig(codec.NumericIntPath, codec.ZstdDocument)
	s, dir := newStore(t, cfg)

	s.Put("7", store.Document(`{"seven":7}`))
	if err := s.Sync(); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	s.Close()

	again, err := NewLocalStore(dir, cfg, badgerdb.Open)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer again.Close()

	doc, ok, err := again.Get("7")
	if err != nil || !ok || !doc.Equal(store.Document(`{"seven":7}`)) {
		t.Errorf("expected the synced document after reopen, got %s, %v, %v", doc, ok, err)
	}
}

func TestPersistSyncInfo(t *testing.T) {
	s, _ := newStore(t, testConfig(codec.NumericPath, codec.CompressedDocument))

	s.Put("1", store.Document(`{}`))
	s.Get("1")
	s.Get("2")
	if err := s.Persist(); err != nil {
		t.Fatalf("Persist failed: %v", err)
	}
	if err := s.Sync(); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}

	info := s.GetInfo()
	if !info.Open || info.Capacity != 100 || s.Capacity() != 100 {
		t.Errorf("unexpected info %+v", info)
	}
	if info.Gets != 2 || info.Puts != 1 || info.Persists != 1 || info.Syncs != 1 {
		t.Errorf("unexpected counters %+v", info)
	}
	if info.Engine.DbType != db.ImplBadger {
		t.Errorf("expected badger engine info, got %+v", info.Engine)
	}
}

func TestInvalidConfig(t *testing.T) {
	cfg := testConfig(codec.NumericPath, codec.CompressedDocument)
	cfg.ValueCodec = "xml-document"
	if _, err := NewLocalStore(t.TempDir(), cfg, badgerdb.Open); !errors.Is(err, store.ErrConfig) {
		t.Errorf("expected a config error, got %v", err)
	}
}

func TestFactoryFailure(t *testing.T) {
	failing := func(db.Options) (db.KVDB, error) { return nil, errors.New("no space left") }
	_, err := NewLocalStore(t.TempDir(), testConfig(codec.NumericPath, codec.CompressedDocument), failing)
	if !errors.Is(err, store.ErrIO) {
		t.Errorf("expected an io error, got %v", err)
	}
}

func TestConcurrentAccess(t *testing.T) {
	s, _ := newStore(t, testConfig(codec.NumericPath, codec.CompressedDocument))

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				key := fmt.Sprint(w*1000 + i)
				if _, _, err := s.Put(key, store.Document(`{"ok":true}`)); err != nil {
					t.Errorf("Put failed: %v", err)
					return
				}
				if _, ok, err := s.Get(key); err != nil || !ok {
					t.Errorf("Get failed: %v (ok=%v)", err, ok)
					return
				}
			}
		}(w)
	}
	wg.Wait()

	count := 0
	s.Iterate(func(string, store.Document) bool {
		count++
		return true
	})
	if count != 200 {
		t.Errorf("expected 200 documents, got %d", count)
	}
}
