package testing

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/ValentinKolb/aodb/lib/aodb"
	"github.com/ValentinKolb/aodb/lib/feed"
	"github.com/ValentinKolb/aodb/lib/store"
)

// StoreFactory is a function that creates a new, empty store
type StoreFactory func() store.IStore

// RunIStoreTests runs a comprehensive test suite for an IStore implementation.
func RunIStoreTests(t *testing.T, name string, factory StoreFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("Put&Get", func(t *testing.T) {
			testPutGet(t, factory())
		})

		t.Run("PutIfNotExists", func(t *testing.T) {
			testPutIfNotExists(t, factory())
		})

		t.Run("Delete", func(t *testing.T) {
			testDelete(t, factory())
		})

		t.Run("Has", func(t *testing.T) {
			testHas(t, factory())
		})

		t.Run("List", func(t *testing.T) {
			testList(t, factory())
		})

		t.Run("History", func(t *testing.T) {
			testHistory(t, factory())
		})

		t.Run("Version", func(t *testing.T) {
			testVersion(t, factory())
		})

		t.Run("Authorize", func(t *testing.T) {
			testAuthorize(t, factory())
		})

		t.Run("Replication", func(t *testing.T) {
			testReplication(t, factory())
		})

		t.Run("EdgeCases", func(t *testing.T) {
			testEdgeCases(t, factory())
		})

		t.Run("RealisticUsage", func(t *testing.T) {
			testRealisticUsage(t, factory())
		})
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

// single returns the only value of a key and fails if there is none or more
func single(t testing.TB, s store.IStore, key string) []byte {
	t.Helper()
	values, exists, err := s.Get(key)
	if err != nil {
		t.Fatalf("Unexpected error during Get(%s): %v", key, err)
	}
	if !exists {
		t.Fatalf("Expected key %s to exist", key)
	}
	if len(values) != 1 {
		t.Fatalf("Expected one value for %s, got %d", key, len(values))
	}
	return values[0]
}

func mustPut(t testing.TB, s store.IStore, key string, value []byte) {
	t.Helper()
	if err := s.Put(key, value); err != nil {
		t.Fatalf("Unexpected error during Put(%s): %v", key, err)
	}
}

func sourceKey(t testing.TB, s store.IStore) feed.Key {
	t.Helper()
	stats, err := s.Stats()
	if err != nil {
		t.Fatalf("Unexpected error during Stats: %v", err)
	}
	key, err := feed.ParseKey(stats.Key)
	if err != nil {
		t.Fatalf("Stats returned an invalid key %q: %v", stats.Key, err)
	}
	return key
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testPutGet(t *testing.T, s store.IStore) {
	testKey := "test/key"
	testValue1 := []byte("test-value1")
	testValue2 := []byte("test-value2")

	mustPut(t, s, testKey, testValue1)
	if result := single(t, s, testKey); !bytes.Equal(result, testValue1) {
		t.Errorf("Expected value %s, got %s", testValue1, result)
	}

	mustPut(t, s, testKey, testValue2)
	if result := single(t, s, testKey); !bytes.Equal(result, testValue2) {
		t.Errorf("Expected value %s, got %s", testValue2, result)
	}

	if _, exists, err := s.Get("nonexistent/key"); err != nil || exists {
		t.Errorf("Expected nonexistent key to return exists=false, got exists=%v err=%v", exists, err)
	}

	retrievedValue := single(t, s, testKey)
	retrievedValue[0] = 'X'

	originalValue := single(t, s, testKey)
	if bytes.Equal(retrievedValue, originalValue) {
		t.Errorf("Get should return a copy, not a reference to the stored value")
	}
}

func testPutIfNotExists(t *testing.T, s store.IStore) {
	written, err := s.PutIfNotExists("once", []byte("first"))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !written {
		t.Errorf("Expected the first PutIfNotExists to write")
	}

	written, err = s.PutIfNotExists("once", []byte("second"))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if written {
		t.Errorf("Expected the second PutIfNotExists to be skipped")
	}
	if result := single(t, s, "once"); string(result) != "first" {
		t.Errorf("Expected value first, got %s", result)
	}

	// a deleted key holds no value
	if err := s.Delete("once"); err != nil {
		t.Fatalf("Unexpected error during Delete: %v", err)
	}
	written, err = s.PutIfNotExists("once", []byte("third"))
	if err != nil || !written {
		t.Errorf("Expected PutIfNotExists to write after delete, got written=%v err=%v", written, err)
	}
}

func testDelete(t *testing.T, s store.IStore) {
	mustPut(t, s, "a", []byte("1"))
	mustPut(t, s, "b", []byte("2"))

	if err := s.Delete("a"); err != nil {
		t.Fatalf("Unexpected error during Delete: %v", err)
	}
	if _, exists, _ := s.Get("a"); exists {
		t.Errorf("Expected key a to be deleted")
	}
	if result := single(t, s, "b"); string(result) != "2" {
		t.Errorf("Expected key b to be unaffected, got %s", result)
	}

	// deleting a missing key is not an error
	if err := s.Delete("missing"); err != nil {
		t.Errorf("Unexpected error deleting a missing key: %v", err)
	}

	mustPut(t, s, "a", []byte("3"))
	if result := single(t, s, "a"); string(result) != "3" {
		t.Errorf("Expected key a to be writable after delete, got %s", result)
	}
}

func testHas(t *testing.T, s store.IStore) {
	tests := map[string]struct {
		prepare func()
		key     string
		want    bool
	}{
		"missing": {
			prepare: func() {},
			key:     "has/missing",
			want:    false,
		},
		"present": {
			prepare: func() { mustPut(t, s, "has/present", []byte("x")) },
			key:     "has/present",
			want:    true,
		},
		"deleted": {
			prepare: func() {
				mustPut(t, s, "has/deleted", []byte("x"))
				_ = s.Delete("has/deleted")
			},
			key:  "has/deleted",
			want: false,
		},
		"folder": {
			prepare: func() { mustPut(t, s, "has/folder/child", []byte("x")) },
			key:     "has/folder",
			want:    false,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			tt.prepare()
			got, err := s.Has(tt.key)
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Has(%s) = %v, want %v", tt.key, got, tt.want)
			}
		})
	}
}

func testList(t *testing.T, s store.IStore) {
	keys := []string{"users/alice", "users/bob", "users/admins/carol", "groups/dev", "readme"}
	for _, k := range keys {
		mustPut(t, s, k, []byte(k))
	}
	if err := s.Delete("users/bob"); err != nil {
		t.Fatalf("Unexpected error during Delete: %v", err)
	}

	listed := func(prefix string, recursive bool) []string {
		entries, err := s.List(prefix, recursive)
		if err != nil {
			t.Fatalf("Unexpected error during List(%s): %v", prefix, err)
		}
		var out []string
		for _, e := range entries {
			if e.Deleted {
				t.Errorf("List returned deleted key %s", e.Key)
			}
			if len(e.Values) != 1 || string(e.Values[0]) != e.Key {
				t.Errorf("Unexpected values for %s: %q", e.Key, e.Values)
			}
			out = append(out, e.Key)
		}
		sort.Strings(out)
		return out
	}

	tests := map[string]struct {
		prefix    string
		recursive bool
		want      []string
	}{
		"all":          {prefix: "", recursive: true, want: []string{"groups/dev", "readme", "users/admins/carol", "users/alice"}},
		"folder":       {prefix: "users", recursive: true, want: []string{"users/admins/carol", "users/alice"}},
		"slashes":      {prefix: "/users/", recursive: true, want: []string{"users/admins/carol", "users/alice"}},
		"nested":       {prefix: "users/admins", recursive: true, want: []string{"users/admins/carol"}},
		"missing":      {prefix: "nobody", recursive: true, want: nil},
		"no sibling":   {prefix: "user", recursive: true, want: nil},
		"nonrecursive": {prefix: "users", recursive: false, want: []string{"users/admins/carol", "users/alice"}},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			got := listed(tt.prefix, tt.recursive)
			if fmt.Sprint(got) != fmt.Sprint(tt.want) {
				t.Errorf("List(%q, %v) = %v, want %v", tt.prefix, tt.recursive, got, tt.want)
			}
		})
	}
}

func testHistory(t *testing.T, s store.IStore) {
	mustPut(t, s, "doc", []byte("v1"))
	mustPut(t, s, "doc", []byte("v2"))
	if err := s.Delete("doc"); err != nil {
		t.Fatalf("Unexpected error during Delete: %v", err)
	}
	mustPut(t, s, "doc", []byte("v3"))
	mustPut(t, s, "other", []byte("x"))

	entries, err := s.History("doc")
	if err != nil {
		t.Fatalf("Unexpected error during History: %v", err)
	}
	if len(entries) != 4 {
		t.Fatalf("Expected 4 versions, got %d", len(entries))
	}

	want := []string{"v3", "", "v2", "v1"}
	for i, e := range entries {
		if e.Key != "doc" {
			t.Errorf("Version %d has key %s", i, e.Key)
		}
		if want[i] == "" {
			if !e.Deleted {
				t.Errorf("Version %d should be a deletion", i)
			}
			continue
		}
		if e.Deleted || len(e.Values) != 1 || string(e.Values[0]) != want[i] {
			t.Errorf("Version %d: expected %s, got %q (deleted=%v)", i, want[i], e.Values, e.Deleted)
		}
	}

	entries, err = s.History("never-written")
	if err != nil {
		t.Fatalf("Unexpected error during History: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("Expected no versions for a missing key, got %d", len(entries))
	}
}

func testVersion(t *testing.T, s store.IStore) {
	empty, err := s.Version()
	if err != nil {
		t.Fatalf("Unexpected error during Version: %v", err)
	}

	mustPut(t, s, "counter", []byte("1"))
	v1, err := s.Version()
	if err != nil {
		t.Fatalf("Unexpected error during Version: %v", err)
	}
	mustPut(t, s, "counter", []byte("2"))

	values, exists, err := s.GetAt(v1, "counter")
	if err != nil {
		t.Fatalf("Unexpected error during GetAt: %v", err)
	}
	if !exists || len(values) != 1 || string(values[0]) != "1" {
		t.Errorf("Expected counter=1 at the first version, got %q (exists=%v)", values, exists)
	}

	if _, exists, err := s.GetAt(empty, "counter"); err != nil || exists {
		t.Errorf("Expected counter to be missing at the empty version, got exists=%v err=%v", exists, err)
	}

	if result := single(t, s, "counter"); string(result) != "2" {
		t.Errorf("Expected the current value 2, got %s", result)
	}

	_, _, err = s.GetAt([]byte{1, 2, 3}, "counter")
	var storeErr *store.Error
	if !errors.As(err, &storeErr) || storeErr.Code != store.RetCInvalidOperation {
		t.Errorf("Expected RetCInvalidOperation for a malformed version, got %v", err)
	}
}

func testAuthorize(t *testing.T, s store.IStore) {
	source := sourceKey(t, s)
	if ok, err := s.Authorized(source); err != nil || !ok {
		t.Errorf("Expected the source writer to be authorized, got ok=%v err=%v", ok, err)
	}

	kp, err := feed.GenerateKeyPair()
	if err != nil {
		t.Fatalf("Unexpected error generating a key: %v", err)
	}
	if ok, err := s.Authorized(kp.Public); err != nil || ok {
		t.Errorf("Expected a new writer to be unauthorized, got ok=%v err=%v", ok, err)
	}
	if err := s.Authorize(kp.Public); err != nil {
		t.Fatalf("Unexpected error during Authorize: %v", err)
	}
	if ok, err := s.Authorized(kp.Public); err != nil || !ok {
		t.Errorf("Expected the writer to be authorized, got ok=%v err=%v", ok, err)
	}
}

func testReplication(t *testing.T, s store.IStore) {
	numKeys := 100
	for i := 0; i < numKeys; i++ {
		mustPut(t, s, fmt.Sprintf("replicated/%d", i), []byte(fmt.Sprintf("value-%d", i)))
	}

	feeds, err := s.Feeds()
	if err != nil {
		t.Fatalf("Unexpected error during Feeds: %v", err)
	}
	source := sourceKey(t, s)
	found := false
	for _, f := range feeds {
		if f.Key == source {
			found = true
			if f.Length < uint64(numKeys) {
				t.Errorf("Expected at least %d blocks, got %d", numKeys, f.Length)
			}
		}
	}
	if !found {
		t.Fatalf("Feeds does not list the source writer")
	}

	if _, err := s.Blocks(source, 0, 1); err != nil {
		t.Errorf("Unexpected error during Blocks: %v", err)
	}

	ctx := context.Background()
	replica, err := aodb.Open(ctx, feed.NewMemoryStore(), aodb.Options{Key: &source})
	if err != nil {
		t.Fatalf("Unexpected error opening the replica: %v", err)
	}
	defer replica.Close()

	if _, err := replica.Pull(ctx, store.AsPeer(s)); err != nil {
		t.Fatalf("Unexpected error during Pull: %v", err)
	}
	for i := 0; i < numKeys; i++ {
		key := fmt.Sprintf("replicated/%d", i)
		nodes, err := replica.Get(ctx, key, nil)
		if err != nil {
			t.Fatalf("Unexpected error reading %s from the replica: %v", key, err)
		}
		if len(nodes) != 1 || string(nodes[0].Value) != fmt.Sprintf("value-%d", i) {
			t.Errorf("Replica has wrong value for %s: %v", key, nodes)
		}
	}

	// the replica writes to its own feed, which the source does not serve
	if _, err := replica.Put(ctx, "replicated/0", []byte("local"), nil); err != nil {
		t.Fatalf("Unexpected error writing to the replica: %v", err)
	}
	if _, err := s.Blocks(replica.LocalKey(), 0, 1); err == nil {
		t.Errorf("Expected an error requesting blocks of an unknown writer")
	}
}

func testEdgeCases(t *testing.T, s store.IStore) {
	mustPut(t, s, "empty-value-key", nil)
	values, exists, err := s.Get("empty-value-key")
	if err != nil || !exists {
		t.Fatalf("Key for empty value not found after Put (err=%v)", err)
	}
	if len(values) != 1 || len(values[0]) != 0 {
		t.Errorf("Empty value mismatch: %q", values)
	}

	// leading and trailing slashes are ignored
	mustPut(t, s, "/slashes/key/", []byte("x"))
	if result := single(t, s, "slashes/key"); string(result) != "x" {
		t.Errorf("Expected normalized key to hold x, got %s", result)
	}

	deep := ""
	for i := 0; i < 40; i++ {
		deep += fmt.Sprintf("level%d/", i)
	}
	deep += "leaf"
	mustPut(t, s, deep, []byte("deep"))
	if result := single(t, s, deep); string(result) != "deep" {
		t.Errorf("Expected deep key to hold deep, got %s", result)
	}

	largeValue := make([]byte, 1024*1024)
	for i := range largeValue {
		largeValue[i] = byte(i % 256)
	}
	mustPut(t, s, "large-value-key", largeValue)
	if result := single(t, s, "large-value-key"); !bytes.Equal(result, largeValue) {
		t.Errorf("Large value mismatch (got %d bytes)", len(result))
	}
}

func testRealisticUsage(t *testing.T, s store.IStore) {
	numWorkers := 8
	opsPerWorker := 100

	var wg sync.WaitGroup
	var errorCount atomic.Int32
	wg.Add(numWorkers)

	for w := 0; w < numWorkers; w++ {
		go func(workerId int) {
			defer wg.Done()
			for i := 0; i < opsPerWorker; i++ {
				key := fmt.Sprintf("workers/%d/%d", workerId, i%20)
				var err error
				switch i % 10 {
				case 0, 1, 2, 3, 4, 5:
					err = s.Put(key, []byte(fmt.Sprintf("%d-%d", workerId, i)))
				case 6, 7, 8:
					_, _, err = s.Get(key)
				case 9:
					err = s.Delete(key)
				}
				if err != nil {
					errorCount.Add(1)
				}
			}
		}(w)
	}
	wg.Wait()

	if n := errorCount.Load(); n > 0 {
		t.Fatalf("Test had %d errors during parallel operations", n)
	}

	// the final state is readable and consistent with a listing
	entries, err := s.List("workers", true)
	if err != nil {
		t.Fatalf("Unexpected error during List: %v", err)
	}
	for _, e := range entries {
		values, exists, err := s.Get(e.Key)
		if err != nil || !exists {
			t.Errorf("Listed key %s is not readable (err=%v)", e.Key, err)
			continue
		}
		if len(values) != 1 {
			t.Errorf("Single writer key %s has %d values", e.Key, len(values))
		}
	}
}
