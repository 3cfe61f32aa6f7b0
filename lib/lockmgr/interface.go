package lockmgr

// ILockManager defines the interface for a keyed lock provider.
type ILockManager interface {
	// Lock blocks until the lock for key is held by the caller.
	// The returned function releases it and must be called exactly once.
	Lock(key string) (unlock func())

	// TryLock acquires the lock for key if it is free.
	// Return a boolean indicating whether the lock was acquired, and the release function if so.
	TryLock(key string) (unlock func(), ok bool)

	// Len returns the number of keys that are currently locked or waited for.
	Len() int
}
