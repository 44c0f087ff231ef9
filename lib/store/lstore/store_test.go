package lstore

import (
	"context"
	"testing"
	"time"

	"github.com/ValentinKolb/aodb/lib/aodb"
	"github.com/ValentinKolb/aodb/lib/feed"
	"github.com/ValentinKolb/aodb/lib/store"
	storetesting "github.com/ValentinKolb/aodb/lib/store/testing"
)

func memoryFactory(t testing.TB) storetesting.StoreFactory {
	return func() store.IStore {
		s, err := NewLocalStore(func() (*aodb.DB, error) {
			return aodb.Open(context.Background(), feed.NewMemoryStore(), aodb.DefaultOptions())
		}, 5*time.Second)
		if err != nil {
			t.Fatalf("failed to create store: %v", err)
		}
		return s
	}
}

func pebbleFactory(t testing.TB) storetesting.StoreFactory {
	return func() store.IStore {
		fs, err := feed.NewPebbleStore(t.TempDir())
		if err != nil {
			t.Fatalf("failed to open pebble: %v", err)
		}
		t.Cleanup(func() { _ = fs.Close() })

		db, err := aodb.Open(context.Background(), fs, aodb.DefaultOptions())
		if err != nil {
			t.Fatalf("failed to open database: %v", err)
		}
		t.Cleanup(func() { _ = db.Close() })
		return FromDB(db, 5*time.Second)
	}
}

func TestLocalStore(t *testing.T) {
	storetesting.RunIStoreTests(t, "memory", memoryFactory(t))
	storetesting.RunIStoreTests(t, "pebble", pebbleFactory(t))
}

func TestFactoryError(t *testing.T) {
	_, err := NewLocalStore(func() (*aodb.DB, error) {
		return nil, aodb.ErrClosed
	}, 0)

	storeErr, ok := err.(*store.Error)
	if !ok {
		t.Fatalf("expected *store.Error, got %T", err)
	}
	if storeErr.Code != store.RetCClosed {
		t.Errorf("expected RetCClosed, got %s", storeErr.Code)
	}
}

func TestClosedDatabase(t *testing.T) {
	db, err := aodb.Open(context.Background(), feed.NewMemoryStore(), aodb.DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	s := FromDB(db, 0)
	_ = db.Close()

	err = s.Put("key", []byte("value"))
	storeErr, ok := err.(*store.Error)
	if !ok || storeErr.Code != store.RetCClosed {
		t.Errorf("expected RetCClosed after close, got %v", err)
	}
}

func BenchmarkLocalStore(b *testing.B) {
	storetesting.RunIStoreBenchmarks(b, "memory", memoryFactory(b))
}
