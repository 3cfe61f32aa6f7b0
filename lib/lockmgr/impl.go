package lockmgr

import (
	"sync"

	"github.com/puzpuzpuz/xsync/v3"
)

// entry is the mutex of one key. refs counts holders and waiters so the entry
// can be dropped once nobody uses it.
type entry struct {
	mu   sync.Mutex
	refs int
}

type lockMgrImpl struct {
	locks *xsync.MapOf[string, *entry]
}

func NewLockManager() ILockManager {
	return &lockMgrImpl{
		locks: xsync.NewMapOf[string, *entry](),
	}
}

// acquireRef returns the entry of key with one more reference
func (lm *lockMgrImpl) acquireRef(key string) *entry {
	e, _ := lm.locks.Compute(key, func(old *entry, loaded bool) (*entry, bool) {
		if !loaded {
			old = &entry{}
		}
		old.refs++
		return old, false
	})
	return e
}

// releaseRef drops one reference and removes the entry when it was the last
func (lm *lockMgrImpl) releaseRef(key string) {
	lm.locks.Compute(key, func(old *entry, loaded bool) (*entry, bool) {
		if !loaded {
			return nil, true
		}
		old.refs--
		return old, old.refs <= 0
	})
}

func (lm *lockMgrImpl) Lock(key string) func() {
	e := lm.acquireRef(key)
	e.mu.Lock()
	return lm.unlocker(key, e)
}

func (lm *lockMgrImpl) TryLock(key string) (func(), bool) {
	e := lm.acquireRef(key)
	if !e.mu.TryLock() {
		lm.releaseRef(key)
		return nil, false
	}
	return lm.unlocker(key, e), true
}

// unlocker builds the release function, calling it twice is a no-op
func (lm *lockMgrImpl) unlocker(key string, e *entry) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Unlock()
			lm.releaseRef(key)
		})
	}
}

func (lm *lockMgrImpl) Len() int {
	return lm.locks.Size()
}
