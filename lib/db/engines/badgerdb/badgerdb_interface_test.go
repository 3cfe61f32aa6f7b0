package badgerdb

import (
	"testing"

	"github.com/ValentinKolb/jstore/lib/db"
	dbtesting "github.com/ValentinKolb/jstore/lib/db/testing"
)

func factory(strategy db.SegmentStrategy) dbtesting.DBFactory {
	return func(dir string) (db.KVDB, error) {
		return Open(db.Options{
			Dir:               dir,
			Capacity:          1000,
			BatchSize:         16,
			NumSyncBatches:    2,
			SegmentFileSizeMB: 1,
			Strategy:          strategy,
		})
	}
}

func Test(t *testing.T) {
	dbtesting.RunKVDBTests(t, "BufferedWrite", factory(db.StrategyBufferedWrite))
	dbtesting.RunKVDBTests(t, "DirectWrite", factory(db.StrategyDirectWrite))
	dbtesting.RunKVDBTests(t, "InMemory", factory(db.StrategyInMemory))
}

func Benchmark(b *testing.B) {
	dbtesting.RunKVDBBenchmarks(b, "BufferedWrite", factory(db.StrategyBufferedWrite))
	dbtesting.RunKVDBBenchmarks(b, "DirectWrite", factory(db.StrategyDirectWrite))
}

func TestValidate(t *testing.T) {
	valid := db.Options{
		Dir:               t.TempDir(),
		Capacity:          10,
		BatchSize:         1,
		NumSyncBatches:    1,
		SegmentFileSizeMB: 128,
		Strategy:          db.StrategyBufferedWrite,
	}
	if err := Validate(valid); err != nil {
		t.Fatalf("valid options rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(o *db.Options)
	}{
		{"unknown strategy", func(o *db.Options) { o.Strategy = "log-structured" }},
		{"missing dir", func(o *db.Options) { o.Dir = "" }},
		{"segment too small", func(o *db.Options) { o.SegmentFileSizeMB = 0 }},
		{"segment too large", func(o *db.Options) { o.SegmentFileSizeMB = 4096 }},
		{"zero batch size", func(o *db.Options) { o.BatchSize = 0 }},
		{"negative sync batches", func(o *db.Options) { o.NumSyncBatches = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := valid
			tt.mutate(&opts)
			if err := Validate(opts); err == nil {
				t.Errorf("expected %+v to be rejected", opts)
			}
		})
	}

	inMemory := valid
	inMemory.Dir = ""
	inMemory.Strategy = db.StrategyInMemory
	if err := Validate(inMemory); err != nil {
		t.Errorf("in-memory strategy must not need a directory: %v", err)
	}
}

func TestBufferedWriteFlushesAtBatchSize(t *testing.T) {
	kv, err := factory(db.StrategyBufferedWrite)(t.TempDir())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer kv.Close()

	for i := 0; i < 15; i++ {
		kv.Set([]byte{byte('a' + i)}, []byte("v"))
	}
	info := kv.GetInfo()
	buffered := kv.(*badgerImpl)

	buffered.mu.RLock()
	staged, batches := len(buffered.buffer), buffered.batch
	buffered.mu.RUnlock()
	if staged != 15 || batches != 0 {
		t.Errorf("expected 15 staged writes and no batch, got %d and %d", staged, batches)
	}
	if info.DbType != db.ImplBadger {
		t.Errorf("unexpected db type %q", info.DbType)
	}

	kv.Set([]byte("p"), []byte("v"))

	buffered.mu.RLock()
	staged, batches = len(buffered.buffer), buffered.batch
	buffered.mu.RUnlock()
	if staged != 0 || batches != 1 {
		t.Errorf("expected the 16th write to flush one batch, got %d staged and %d batches", staged, batches)
	}
}
