package aodb

import (
	"context"
	"testing"
)

// listKeys returns the keys yielded by an iterator in order
func listKeys(t *testing.T, db *DB, prefix string, opts *IteratorOptions) []string {
	t.Helper()
	groups, err := db.List(context.Background(), prefix, opts)
	if err != nil {
		t.Fatalf("List(%q) failed: %v", prefix, err)
	}
	var keys []string
	for _, g := range groups {
		if len(g) == 0 {
			t.Fatalf("Iterator yielded an empty group")
		}
		keys = append(keys, g[0].Key)
	}
	return keys
}

func indexOf(keys []string, key string) int {
	for i, k := range keys {
		if k == key {
			return i
		}
	}
	return -1
}

func TestIteratorAllKeys(t *testing.T) {
	db := newDB(t)

	keys := []string{"a", "b", "c", "d", "e", "a/b", "b/c", "users/1", "users/2"}
	for _, key := range keys {
		mustPut(t, db, key, key)
	}
	mustPut(t, db, "a", "again")

	got := listKeys(t, db, "", nil)
	if len(got) != len(keys) {
		t.Fatalf("Expected %d keys, got %v", len(keys), got)
	}
	for _, key := range keys {
		if indexOf(got, key) < 0 {
			t.Errorf("Expected key %q in iteration, got %v", key, got)
		}
	}
}

func TestIteratorFolderOrder(t *testing.T) {
	db := newDB(t)

	for _, key := range []string{"b/c", "a/b/c", "a", "c", "a/b", "a/d", "b"} {
		mustPut(t, db, key, key)
	}
	got := listKeys(t, db, "", nil)

	a, ab, abc, ad := indexOf(got, "a"), indexOf(got, "a/b"), indexOf(got, "a/b/c"), indexOf(got, "a/d")
	if !(a < ab && ab < abc) {
		t.Errorf("Expected a, a/b, a/b/c in order, got %v", got)
	}

	// the folder a is visited completely before any sibling
	last := max(abc, ad)
	for _, sibling := range []string{"b", "b/c", "c"} {
		i := indexOf(got, sibling)
		if i > a && i < last {
			t.Errorf("Sibling %q was visited inside folder a: %v", sibling, got)
		}
	}
}

func TestIteratorReverse(t *testing.T) {
	db := newDB(t)

	for _, key := range []string{"a", "a/b", "a/b/c", "b", "b/c", "c", "d/e/f"} {
		mustPut(t, db, key, key)
	}

	forward := listKeys(t, db, "", nil)
	reverse := listKeys(t, db, "", &IteratorOptions{Reverse: true})

	if len(forward) != len(reverse) {
		t.Fatalf("Expected same number of keys, got %v and %v", forward, reverse)
	}
	for i := range forward {
		if forward[i] != reverse[len(reverse)-1-i] {
			t.Fatalf("Expected reverse iteration to mirror %v, got %v", forward, reverse)
		}
	}
}

func TestIteratorPrefix(t *testing.T) {
	db := newDB(t)

	for _, key := range []string{"users", "users/1", "users/2", "users/2/posts", "usersx", "groups/1"} {
		mustPut(t, db, key, key)
	}

	tests := map[string]struct {
		prefix   string
		opts     *IteratorOptions
		expected []string
	}{
		"Recursive": {
			prefix:   "users",
			expected: []string{"users", "users/1", "users/2", "users/2/posts"},
		},
		"NonRecursive": {
			prefix:   "users",
			opts:     &IteratorOptions{NonRecursive: true},
			expected: []string{"users/1", "users/2"},
		},
		"Nested": {
			prefix:   "/users/2/",
			expected: []string{"users/2", "users/2/posts"},
		},
		"Missing": {
			prefix:   "nothing",
			expected: nil,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			got := listKeys(t, db, tc.prefix, tc.opts)
			if len(got) != len(tc.expected) {
				t.Fatalf("Expected %v, got %v", tc.expected, got)
			}
			for _, key := range tc.expected {
				if indexOf(got, key) < 0 {
					t.Errorf("Expected key %q, got %v", key, got)
				}
			}
		})
	}
}

func TestIteratorNonRecursiveRoot(t *testing.T) {
	db := newDB(t)

	for _, key := range []string{"a", "a/b", "a/b/c", "b/c", "d"} {
		mustPut(t, db, key, key)
	}

	got := listKeys(t, db, "", &IteratorOptions{NonRecursive: true})
	if len(got) != 3 {
		t.Fatalf("Expected one key per top level folder, got %v", got)
	}
	for _, key := range []string{"a", "d"} {
		if indexOf(got, key) < 0 {
			t.Errorf("Expected key %q, got %v", key, got)
		}
	}
	if indexOf(got, "b/c") < 0 {
		t.Errorf("Expected b/c to represent folder b, got %v", got)
	}
}

func TestIteratorNext(t *testing.T) {
	db := newDB(t)
	ctx := context.Background()
	mustPut(t, db, "a", "1")

	it, err := db.Iterator(ctx, "", nil)
	if err != nil {
		t.Fatalf("Iterator failed: %v", err)
	}

	mustPut(t, db, "b", "2")

	first, err := it.Next(ctx)
	if err != nil || len(first) != 1 || first[0].Key != "a" {
		t.Fatalf("Expected key a, got %v (err: %v)", first, err)
	}
	// the iterator is pinned to the heads it was created with
	next, err := it.Next(ctx)
	if err != nil || next != nil {
		t.Errorf("Expected end of iteration, got %v (err: %v)", next, err)
	}
	next, err = it.Next(ctx)
	if err != nil || next != nil {
		t.Errorf("Expected exhausted iterator to stay exhausted, got %v (err: %v)", next, err)
	}
}
