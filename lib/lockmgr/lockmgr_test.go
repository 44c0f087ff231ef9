package lockmgr

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ValentinKolb/aodb/lib/aodb"
	"github.com/ValentinKolb/aodb/lib/feed"
	"github.com/ValentinKolb/aodb/lib/store"
	"github.com/ValentinKolb/aodb/lib/store/lstore"
)

func newStore(t *testing.T) store.IStore {
	t.Helper()
	db, err := aodb.Open(context.Background(), feed.NewMemoryStore(), aodb.DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return lstore.FromDB(db, 5*time.Second)
}

func TestAcquireRelease(t *testing.T) {
	lm := NewLockManager(newStore(t))

	ok, owner, err := lm.AcquireLock("resource", 0)
	if err != nil || !ok {
		t.Fatalf("expected to acquire the lock, got ok=%v err=%v", ok, err)
	}
	if len(owner) != bitLength/8 {
		t.Errorf("expected owner id of %d bytes, got %d", bitLength/8, len(owner))
	}

	ok, _, err = lm.AcquireLock("resource", 0)
	if err != nil || ok {
		t.Errorf("expected the second acquire to fail, got ok=%v err=%v", ok, err)
	}

	released, err := lm.ReleaseLock("resource", []byte("someone else"))
	if err != nil || released {
		t.Errorf("expected release by a foreign owner to fail, got released=%v err=%v", released, err)
	}

	released, err = lm.ReleaseLock("resource", owner)
	if err != nil || !released {
		t.Fatalf("expected release by the owner to succeed, got released=%v err=%v", released, err)
	}

	ok, _, err = lm.AcquireLock("resource", 0)
	if err != nil || !ok {
		t.Errorf("expected to acquire the released lock, got ok=%v err=%v", ok, err)
	}
}

func TestReleaseMissing(t *testing.T) {
	lm := NewLockManager(newStore(t))
	released, err := lm.ReleaseLock("missing", []byte("owner"))
	if err != nil || !released {
		t.Errorf("expected releasing a missing lock to succeed, got released=%v err=%v", released, err)
	}
}

func TestTimeout(t *testing.T) {
	now := time.Now()
	lm := &lockMgrImpl{
		store: newStore(t),
		now:   func() time.Time { return now },
	}

	tests := map[string]struct {
		timeout  uint64
		advance  time.Duration
		acquired bool
	}{
		"not expired": {timeout: 10, advance: 5 * time.Second, acquired: false},
		"expired":     {timeout: 10, advance: 11 * time.Second, acquired: true},
		"no timeout":  {timeout: 0, advance: time.Hour, acquired: false},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			start := now
			defer func() { now = start }()

			ok, _, err := lm.AcquireLock("timeout/"+name, tt.timeout)
			if err != nil || !ok {
				t.Fatalf("expected to acquire the lock, got ok=%v err=%v", ok, err)
			}

			now = now.Add(tt.advance)
			ok, _, err = lm.AcquireLock("timeout/"+name, tt.timeout)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if ok != tt.acquired {
				t.Errorf("expected acquired=%v after %s, got %v", tt.acquired, tt.advance, ok)
			}
		})
	}
}

func TestForeignValueNeverExpires(t *testing.T) {
	s := newStore(t)
	if err := s.Put("plain", []byte("x")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	lm := NewLockManager(s)
	if ok, _, err := lm.AcquireLock("plain", 1); err != nil || ok {
		t.Errorf("expected a plain value to block the lock, got ok=%v err=%v", ok, err)
	}
}

func TestConcurrentAcquire(t *testing.T) {
	lm := NewLockManager(newStore(t))

	var wg sync.WaitGroup
	var winners atomic.Int32
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, _, err := lm.AcquireLock("contended", 0)
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if ok {
				winners.Add(1)
			}
		}()
	}
	wg.Wait()

	if n := winners.Load(); n != 1 {
		t.Errorf("expected exactly one winner, got %d", n)
	}
}

func TestEncodeLock(t *testing.T) {
	deadline := time.Unix(0, 1234567890)
	owner := []byte("owner")

	d, o, ok := decodeLock(encodeLock(deadline, owner))
	if !ok || !d.Equal(deadline) || string(o) != "owner" {
		t.Errorf("unexpected decode: deadline=%v owner=%s ok=%v", d, o, ok)
	}

	d, _, ok = decodeLock(encodeLock(time.Time{}, owner))
	if !ok || !d.IsZero() {
		t.Errorf("expected a zero deadline, got %v", d)
	}

	if _, _, ok := decodeLock([]byte("short")); ok {
		t.Errorf("expected short values to be rejected")
	}
}
