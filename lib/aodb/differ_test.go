package aodb

import (
	"context"
	"testing"
)

func diffMap(t *testing.T, d *Differ) map[string]*Diff {
	t.Helper()
	diffs, err := d.List(context.Background())
	if err != nil {
		t.Fatalf("Diff failed: %v", err)
	}
	m := make(map[string]*Diff)
	for _, diff := range diffs {
		if _, ok := m[diff.Key]; ok {
			t.Errorf("Key %q was reported twice", diff.Key)
		}
		m[diff.Key] = diff
	}
	return m
}

func TestDiff(t *testing.T) {
	db := newDB(t)
	ctx := context.Background()

	mustPut(t, db, "x", "1")
	mustPut(t, db, "y", "1")
	mustPut(t, db, "users/1", "1")
	before, err := db.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}

	mustPut(t, db, "y", "2")
	mustPut(t, db, "z", "1")
	mustDelete(t, db, "x")
	after, err := db.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}

	diffs := diffMap(t, after.Diff(before, "", nil))
	if len(diffs) != 3 {
		t.Fatalf("Expected 3 changed keys, got %v", diffs)
	}

	tests := map[string]struct {
		left, right []string
	}{
		"x": {left: nil, right: []string{"1"}},
		"y": {left: []string{"2"}, right: []string{"1"}},
		"z": {left: []string{"1"}, right: nil},
	}
	for key, tc := range tests {
		d, ok := diffs[key]
		if !ok {
			t.Errorf("Expected a diff for %q", key)
			continue
		}
		if !equalStrings(values(d.Left), tc.left) || !equalStrings(values(d.Right), tc.right) {
			t.Errorf("Key %q: expected %v / %v, got %v / %v", key, tc.left, tc.right, values(d.Left), values(d.Right))
		}
	}

	if diffs := diffMap(t, after.Diff(after, "", nil)); len(diffs) != 0 {
		t.Errorf("Expected no diff against itself, got %v", diffs)
	}
}

func TestDiffDeletes(t *testing.T) {
	db := newDB(t)
	ctx := context.Background()

	mustPut(t, db, "x", "1")
	before, _ := db.Snapshot(ctx)
	mustDelete(t, db, "x")
	after, _ := db.Snapshot(ctx)

	diffs := diffMap(t, after.Diff(before, "", &DiffOptions{Deletes: true}))
	d, ok := diffs["x"]
	if !ok || len(d.Left) != 1 || !d.Left[0].Deleted || len(d.Right) != 1 {
		t.Errorf("Expected the deletion on the left side, got %v", diffs)
	}
}

func TestDiffEmpty(t *testing.T) {
	db := newDB(t)
	ctx := context.Background()

	mustPut(t, db, "users/1", "1")
	mustPut(t, db, "users/2", "1")
	mustPut(t, db, "groups/1", "1")

	d, err := db.Diff(ctx, nil, "users", nil)
	if err != nil {
		t.Fatalf("Diff failed: %v", err)
	}
	diffs := diffMap(t, d)
	if len(diffs) != 2 {
		t.Fatalf("Expected 2 keys below users, got %v", diffs)
	}
	for key, diff := range diffs {
		if diff.Right != nil || len(diff.Left) != 1 {
			t.Errorf("Key %q: expected absent right side, got %v", key, diff)
		}
	}

	empty, err := db.Checkout(ctx, nil)
	if err != nil {
		t.Fatalf("Checkout failed: %v", err)
	}
	if diffs := diffMap(t, empty.Diff(nil, "", nil)); len(diffs) != 0 {
		t.Errorf("Expected empty diff of two empty checkouts, got %v", diffs)
	}
}
