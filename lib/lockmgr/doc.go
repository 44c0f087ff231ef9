// Package lockmgr implements advisory locks on top of any store.IStore.
//
// The lock manager only ever stores in the provided IStore and has no other
// internal state. It is therefore safe to create it multiple times on the
// same store, even once per acquire or release.
//
// Implementation Approach:
//
//	- Lock Acquisition: PutIfNotExists writes the lock value only if the key
//	  holds none. The value is an 8 byte deadline (unix nanos, 0 without
//	  timeout) followed by a random 256 bit owner ID.
//
//	- Lock Verification: a successful write is followed by a Get. The lock
//	  is held only if the key holds exactly our value. Concurrent writers of a
//	  replicated database show up as additional values, in which case nobody
//	  holds the lock until it is released.
//
//	- Timeouts: the database never expires keys by itself. A lock whose
//	  holders are all past their deadline is deleted by the next AcquireLock.
//
//	- Safe Release: ReleaseLock deletes the key only if one of its values
//	  carries the owner ID of the caller.
//
// Usage Example:
//
//	lockProvider := lockmgr.NewLockManager(store)
//
//	acquired, ownerID, err := lockProvider.AcquireLock("resource/123", 30)
//	if err == nil && acquired {
//	    // ...
//	    released, err := lockProvider.ReleaseLock("resource/123", ownerID)
//	}
//
// Locks are advisory: anyone with write access to the store can overwrite
// them directly.
package lockmgr
