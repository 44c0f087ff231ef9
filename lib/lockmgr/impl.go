package lockmgr

import (
	"bytes"
	"time"

	"github.com/ValentinKolb/aodb/lib/store"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("lockmgr")

type lockMgrImpl struct {
	store store.IStore
	now   func() time.Time
}

func NewLockManager(store store.IStore) ILockManager {
	return &lockMgrImpl{
		store: store,
		now:   time.Now,
	}
}

func (lp *lockMgrImpl) AcquireLock(key string, timeout uint64) (bool, []byte, error) {
	// Generate owner id (256 bit random value)
	ownerID, err := generateOwnerID()
	if err != nil {
		return false, nil, err
	}

	var deadline time.Time
	if timeout > 0 {
		deadline = lp.now().Add(time.Duration(timeout) * time.Second)
	}
	value := encodeLock(deadline, ownerID)

	// Try to acquire the lock (by writing the value only if the key holds none)
	written, err := lp.store.PutIfNotExists(key, value)
	if err != nil {
		return false, nil, err
	}

	if !written {
		// a lock whose holders all timed out is removed and acquired again
		values, found, err := lp.store.Get(key)
		if err != nil {
			return false, nil, err
		}
		if found && !lp.allExpired(values) {
			return false, nil, nil
		}
		if found {
			Logger.Debugf("lock %s expired, taking over", key)
			if err := lp.store.Delete(key); err != nil {
				return false, nil, err
			}
		}
		if written, err = lp.store.PutIfNotExists(key, value); err != nil || !written {
			return false, nil, err
		}
	}

	// Check if the lock was acquired BY US. Concurrent writes of other
	// writers show up as additional values.
	values, found, err := lp.store.Get(key)
	if err != nil {
		return false, nil, err
	}
	if found && len(values) == 1 && bytes.Equal(values[0], value) {
		return true, ownerID, nil
	}
	return false, nil, nil
}

func (lp *lockMgrImpl) ReleaseLock(key string, ownerID []byte) (bool, error) {
	// Check if the lock exists
	values, ok, err := lp.store.Get(key)
	if err != nil || !ok {
		return err == nil, err
	}

	// Check if the lock is owned by us
	owned := false
	for _, v := range values {
		if _, owner, ok := decodeLock(v); ok && bytes.Equal(owner, ownerID) {
			owned = true
		}
	}
	if !owned {
		return false, nil
	}

	// Release the lock
	err = lp.store.Delete(key)
	return err == nil, err
}

// allExpired reports whether every holder of a lock timed out. Values that
// are not locks never expire.
func (lp *lockMgrImpl) allExpired(values [][]byte) bool {
	now := lp.now()
	for _, v := range values {
		deadline, _, ok := decodeLock(v)
		if !ok || deadline.IsZero() || now.Before(deadline) {
			return false
		}
	}
	return true
}
