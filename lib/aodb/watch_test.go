package aodb

import (
	"context"
	"testing"
	"time"
)

func TestWatch(t *testing.T) {
	db := newDB(t)
	ctx := context.Background()

	calls := make(chan struct{}, 16)
	w, err := db.Watch(ctx, "users", func() { calls <- struct{}{} })
	if err != nil {
		t.Fatalf("Watch failed: %v", err)
	}
	defer w.Close()

	mustPut(t, db, "users/1", "alice")
	select {
	case <-calls:
	case <-time.After(5 * time.Second):
		t.Fatalf("Expected a change below users to be reported")
	}

	mustPut(t, db, "groups/1", "admins")
	select {
	case <-calls:
		t.Errorf("Expected changes outside the prefix to be ignored")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestWatchRemote(t *testing.T) {
	owner := newDB(t)
	replica := newReplica(t, owner)
	ctx := context.Background()

	calls := make(chan struct{}, 16)
	w, err := replica.Watch(ctx, "", func() { calls <- struct{}{} })
	if err != nil {
		t.Fatalf("Watch failed: %v", err)
	}

	mustPut(t, owner, "a", "1")
	replicate(t, owner, replica)

	select {
	case <-calls:
	case <-time.After(5 * time.Second):
		t.Fatalf("Expected a replicated change to be reported")
	}

	w.Close()
	w.Close()
}
