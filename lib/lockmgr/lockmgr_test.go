package lockmgr

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestLockIsExclusivePerKey(t *testing.T) {
	lm := NewLockManager()

	var (
		inside  atomic.Int32
		maxSeen atomic.Int32
		wg      sync.WaitGroup
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := lm.Lock("orders")
			defer unlock()

			n := inside.Add(1)
			if n > maxSeen.Load() {
				maxSeen.Store(n)
			}
			time.Sleep(time.Millisecond)
			inside.Add(-1)
		}()
	}
	wg.Wait()

	if maxSeen.Load() != 1 {
		t.Errorf("expected at most one holder, saw %d", maxSeen.Load())
	}
	if lm.Len() != 0 {
		t.Errorf("expected all entries to be released, %d left", lm.Len())
	}
}

func TestDifferentKeysDoNotBlock(t *testing.T) {
	lm := NewLockManager()

	unlockA := lm.Lock("a")
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlock := lm.Lock("b")
		unlock()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("locking b blocked while a was held")
	}
}

func TestTryLock(t *testing.T) {
	lm := NewLockManager()

	unlock, ok := lm.TryLock("k")
	if !ok {
		t.Fatal("expected TryLock on a free key to succeed")
	}
	if _, ok := lm.TryLock("k"); ok {
		t.Error("expected TryLock on a held key to fail")
	}
	if lm.Len() != 1 {
		t.Errorf("a failed TryLock must not leak an entry, got %d", lm.Len())
	}

	unlock()
	unlock() // no-op

	unlock, ok = lm.TryLock("k")
	if !ok {
		t.Fatal("expected TryLock after release to succeed")
	}
	unlock()
	if lm.Len() != 0 {
		t.Errorf("expected no entries, got %d", lm.Len())
	}
}
