package aodb

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ValentinKolb/aodb/lib/feed"
	"github.com/ValentinKolb/aodb/lib/hash"
	"github.com/ValentinKolb/aodb/lib/messages"
)

func TestReplicateReadOnly(t *testing.T) {
	owner := newDB(t)
	replica := newReplica(t, owner)

	if replica.Writable() || !owner.Writable() {
		t.Fatalf("Expected only the owner to be writable")
	}
	if replica.Key() != owner.Key() {
		t.Fatalf("Expected replica to share the database key")
	}

	mustPut(t, owner, "hello", "world")
	replicate(t, owner, replica)

	if got := getValues(t, replica, "hello", nil); !equalStrings(got, []string{"world"}) {
		t.Errorf("Expected replicated value [world], got %v", got)
	}
}

func TestReplicateOverwrite(t *testing.T) {
	a := newDB(t)
	b := authorizedReplica(t, a)

	mustPut(t, a, "a", "a")
	replicate(t, a, b)
	if got := getValues(t, b, "a", nil); !equalStrings(got, []string{"a"}) {
		t.Fatalf("Expected [a] on b, got %v", got)
	}

	mustPut(t, b, "a", "b")
	replicate(t, a, b)

	for name, db := range map[string]*DB{"A": a, "B": b} {
		if got := getValues(t, db, "a", nil); !equalStrings(got, []string{"b"}) {
			t.Errorf("%s: expected both instances to converge to [b], got %v", name, got)
		}
	}
}

func TestReplicateConflict(t *testing.T) {
	a := newDB(t)
	b := authorizedReplica(t, a)

	mustPut(t, a, "key", "from a")
	mustPut(t, b, "key", "from b")
	replicate(t, a, b)

	for name, db := range map[string]*DB{"A": a, "B": b} {
		if got := getValues(t, db, "key", nil); !equalStrings(got, []string{"from a", "from b"}) {
			t.Errorf("%s: expected both concurrent values, got %v", name, got)
		}
	}

	first := func(db *DB) string {
		got := getValues(t, db, "key", &GetOptions{Reduce: ReduceFirst})
		if len(got) != 1 {
			t.Fatalf("Expected reduce to yield one value, got %v", got)
		}
		return got[0]
	}
	if first(a) != first(b) {
		t.Errorf("Expected reduce to pick the same value on both instances")
	}

	// a later write resolves the conflict
	mustPut(t, a, "key", "resolved")
	replicate(t, a, b)
	if got := getValues(t, b, "key", nil); !equalStrings(got, []string{"resolved"}) {
		t.Errorf("Expected [resolved], got %v", got)
	}
}

func TestReplicateCollisions(t *testing.T) {
	a := newDB(t)
	b := authorizedReplica(t, a)
	ctx := context.Background()

	// both keys share the whole hash path
	if string(hash.Path("idgcmnmna", true)) != string(hash.Path("mpomeiehc", true)) {
		t.Fatalf("Expected test keys to collide")
	}

	mustPut(t, a, "idgcmnmna", "a")
	mustPut(t, b, "mpomeiehc", "b")
	replicate(t, a, b)

	for name, db := range map[string]*DB{"A": a, "B": b} {
		if got := getValues(t, db, "idgcmnmna", nil); !equalStrings(got, []string{"a"}) {
			t.Errorf("%s: expected [a], got %v", name, got)
		}
		if got := getValues(t, db, "mpomeiehc", nil); !equalStrings(got, []string{"b"}) {
			t.Errorf("%s: expected [b], got %v", name, got)
		}

		groups, err := db.List(ctx, "", nil)
		if err != nil {
			t.Fatalf("%s: List failed: %v", name, err)
		}
		if len(groups) != 2 {
			t.Errorf("%s: expected both keys exactly once, got %v", name, groups)
		}
	}
}

func TestCollisionsSingleWriter(t *testing.T) {
	db := newDB(t)

	mustPut(t, db, "idgcmnmna", "a")
	mustPut(t, db, "mpomeiehc", "b")
	mustPut(t, db, "other", "c")

	if got := getValues(t, db, "idgcmnmna", nil); !equalStrings(got, []string{"a"}) {
		t.Errorf("Expected [a], got %v", got)
	}
	if got := getValues(t, db, "mpomeiehc", nil); !equalStrings(got, []string{"b"}) {
		t.Errorf("Expected [b], got %v", got)
	}

	mustPut(t, db, "idgcmnmna", "a2")
	keys := listKeys(t, db, "", nil)
	if len(keys) != 3 || indexOf(keys, "idgcmnmna") < 0 || indexOf(keys, "mpomeiehc") < 0 {
		t.Errorf("Expected all three keys once, got %v", keys)
	}
	if got := getValues(t, db, "mpomeiehc", nil); !equalStrings(got, []string{"b"}) {
		t.Errorf("Expected overwrite of the colliding key to keep [b], got %v", got)
	}
}

func TestUnauthorizedWriter(t *testing.T) {
	owner := newDB(t)
	replica := newReplica(t, owner)
	ctx := context.Background()

	mustPut(t, replica, "intruder", "1")
	replicate(t, owner, replica)

	if got := getValues(t, owner, "intruder", nil); len(got) != 0 {
		t.Errorf("Expected writes of an unauthorized writer not to replicate, got %v", got)
	}
	// the local write is still visible locally
	if got := getValues(t, replica, "intruder", nil); !equalStrings(got, []string{"1"}) {
		t.Errorf("Expected [1] on the replica, got %v", got)
	}

	ok, err := replica.Authorized(ctx, replica.LocalKey())
	if err != nil || ok {
		t.Errorf("Expected local writer to be unauthorized, got %v (err: %v)", ok, err)
	}
	if _, err := owner.Blocks(ctx, replica.LocalKey(), 0, 1); !errors.Is(err, ErrUnknownWriter) {
		t.Errorf("Expected ErrUnknownWriter, got %v", err)
	}
}

func TestAuthorize(t *testing.T) {
	owner := newDB(t)
	replica := newReplica(t, owner)
	ctx := context.Background()

	mustPut(t, replica, "early", "1")

	if _, err := owner.Authorize(ctx, replica.LocalKey()); err != nil {
		t.Fatalf("Authorize failed: %v", err)
	}
	ok, err := owner.Authorized(ctx, replica.LocalKey())
	if err != nil || !ok {
		t.Errorf("Expected owner to authorize the writer, got %v (err: %v)", ok, err)
	}

	replicate(t, owner, replica)

	ok, err = replica.Authorized(ctx, replica.LocalKey())
	if err != nil || !ok {
		t.Errorf("Expected replica to learn its authorization, got %v (err: %v)", ok, err)
	}
	// writes made before the authorization replicate as well
	if got := getValues(t, owner, "early", nil); !equalStrings(got, []string{"1"}) {
		t.Errorf("Expected [1] on the owner, got %v", got)
	}

	mustPut(t, replica, "late", "2")
	replicate(t, owner, replica)
	if got := getValues(t, owner, "late", nil); !equalStrings(got, []string{"2"}) {
		t.Errorf("Expected [2] on the owner, got %v", got)
	}
}

func TestAuthorizeTransitive(t *testing.T) {
	a := newDB(t)
	b := authorizedReplica(t, a)
	c := newReplica(t, a)
	ctx := context.Background()

	// b authorizes c, the owner learns about it through b
	if _, err := b.Authorize(ctx, c.LocalKey()); err != nil {
		t.Fatalf("Authorize failed: %v", err)
	}
	mustPut(t, c, "from c", "1")

	replicate(t, a, b)
	replicate(t, b, c)
	replicate(t, a, b)

	ok, err := a.Authorized(ctx, c.LocalKey())
	if err != nil || !ok {
		t.Errorf("Expected c to be authorized on a, got %v (err: %v)", ok, err)
	}
	if got := getValues(t, a, "from c", nil); !equalStrings(got, []string{"1"}) {
		t.Errorf("Expected [1] on a, got %v", got)
	}
}

func TestOnRemoteEntry(t *testing.T) {
	owner := newDB(t)
	rejected := errors.New("rejected")
	replica := newReplica(t, owner, func(o *Options) {
		o.OnRemoteEntry = func(n *Node) error {
			if string(n.Value) == "bad" {
				return rejected
			}
			return nil
		}
	})
	ctx := context.Background()

	mustPut(t, owner, "good", "ok")
	replicate(t, owner, replica)
	if got := getValues(t, replica, "good", nil); !equalStrings(got, []string{"ok"}) {
		t.Fatalf("Expected [ok], got %v", got)
	}

	mustPut(t, owner, "evil", "bad")
	if _, err := replica.Pull(ctx, owner); !errors.Is(err, rejected) {
		t.Fatalf("Expected Pull to fail with the hook error, got %v", err)
	}
	if got := getValues(t, replica, "evil", nil); len(got) != 0 {
		t.Errorf("Expected rejected entry not to be stored, got %v", got)
	}
	if got := getValues(t, replica, "good", nil); !equalStrings(got, []string{"ok"}) {
		t.Errorf("Expected accepted entries to survive, got %v", got)
	}
}

func TestOnRemoteEntryConcurrentPut(t *testing.T) {
	owner := newDB(t)
	rejected := errors.New("rejected")
	ctx := context.Background()

	var replica *DB
	var putErr error
	replica = newReplica(t, owner, func(o *Options) {
		o.OnRemoteEntry = func(n *Node) error {
			if string(n.Value) != "bad" {
				return nil
			}
			// a local write while the entry is still being validated
			_, putErr = replica.Put(ctx, "other", []byte("mine"), nil)
			return rejected
		}
	})

	mustPut(t, owner, "good", "ok")
	replicate(t, owner, replica)

	mustPut(t, owner, "evil", "bad")
	if _, err := replica.Pull(ctx, owner); !errors.Is(err, rejected) {
		t.Fatalf("Expected Pull to fail with the hook error, got %v", err)
	}
	if putErr != nil {
		t.Fatalf("Put during validation failed: %v", putErr)
	}

	local, err := replica.local.head(ctx)
	if err != nil {
		t.Fatalf("head failed: %v", err)
	}
	if src := local.Clock[replica.source.id]; src != 2 {
		t.Errorf("Expected the local entry to see 2 blocks of the source, got %d", src)
	}

	if got := getValues(t, replica, "evil", nil); len(got) != 0 {
		t.Errorf("Expected rejected entry not to be stored, got %v", got)
	}
	if got := getValues(t, replica, "other", nil); !equalStrings(got, []string{"mine"}) {
		t.Errorf("Expected [mine], got %v", got)
	}
	if got := getValues(t, replica, "good", nil); !equalStrings(got, []string{"ok"}) {
		t.Errorf("Expected [ok], got %v", got)
	}
	list, err := replica.List(ctx, "", nil)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(list) != 2 {
		t.Errorf("Expected 2 keys, got %d", len(list))
	}
}

func TestWaitForUpdate(t *testing.T) {
	owner := newDB(t)
	replica := newReplica(t, owner, func(o *Options) { o.WaitForUpdate = true })

	mustPut(t, owner, "a", "1")

	result := make(chan []string, 1)
	go func() {
		nodes, err := replica.Get(context.Background(), "a", nil)
		if err != nil {
			result <- []string{err.Error()}
			return
		}
		result <- values(nodes)
	}()

	select {
	case got := <-result:
		t.Fatalf("Expected Get on an empty replica to wait, got %v", got)
	case <-time.After(50 * time.Millisecond):
	}

	replicate(t, owner, replica)
	select {
	case got := <-result:
		if !equalStrings(got, []string{"1"}) {
			t.Errorf("Expected [1] after the update, got %v", got)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("Expected Get to return after the update")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	empty := newReplica(t, owner, func(o *Options) { o.WaitForUpdate = true })
	if _, err := empty.Get(ctx, "a", nil); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected the wait to honor the context, got %v", err)
	}
}

func TestContentFeed(t *testing.T) {
	contentFeed := bytes.Repeat([]byte{7}, 32)
	opts := DefaultOptions()
	opts.ContentFeed = contentFeed
	owner := openDB(t, feed.NewMemoryStore(), opts)
	replica := newReplica(t, owner)

	n := mustPut(t, owner, "a", "1")
	if !bytes.Equal(n.ContentFeed, contentFeed) {
		t.Fatalf("Expected the written node to carry the content feed, got %x", n.ContentFeed)
	}

	replicate(t, owner, replica)
	nodes, err := replica.Get(context.Background(), "a", nil)
	if err != nil || len(nodes) != 1 {
		t.Fatalf("Get failed: %v (%d nodes)", err, len(nodes))
	}
	if !bytes.Equal(nodes[0].ContentFeed, contentFeed) {
		t.Errorf("Expected the content feed to replicate, got %x", nodes[0].ContentFeed)
	}
}

// rewritingPeer serves the blocks of a database after passing each through
// rewrite
type rewritingPeer struct {
	*DB
	rewrite func(seq uint64, buf []byte) []byte
}

func (p rewritingPeer) Blocks(ctx context.Context, key feed.Key, from, to uint64) ([][]byte, error) {
	blocks, err := p.DB.Blocks(ctx, key, from, to)
	if err != nil {
		return nil, err
	}
	for i := range blocks {
		blocks[i] = p.rewrite(from+uint64(i), blocks[i])
	}
	return blocks, nil
}

func TestCorruptFeedTable(t *testing.T) {
	owner := newDB(t)
	ctx := context.Background()

	mustPut(t, owner, "a", "1")
	other, err := feed.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair failed: %v", err)
	}
	if _, err := owner.Authorize(ctx, other.Public); err != nil {
		t.Fatalf("Authorize failed: %v", err)
	}
	b := mustPut(t, owner, "b", "2")
	if b.Seq != 3 || b.Inflate != 2 {
		t.Fatalf("Expected b at 3 with the table of 2, got %d with %d", b.Seq, b.Inflate)
	}

	// points b back at the first table, which lists fewer feeds than b's clock
	peer := rewritingPeer{DB: owner, rewrite: func(seq uint64, buf []byte) []byte {
		if seq != 3 {
			return buf
		}
		e, err := messages.DecodeEntry(buf)
		if err != nil {
			t.Errorf("DecodeEntry failed: %v", err)
			return buf
		}
		e.Inflate = 1
		return messages.EncodeEntry(e)
	}}

	replica := newReplica(t, owner)
	_, err = replica.Pull(ctx, peer)
	if !errors.Is(err, ErrMissingFeedMappings) {
		t.Fatalf("Expected Pull to fail with ErrMissingFeedMappings, got %v", err)
	}
	if !IsCorruption(err) {
		t.Errorf("Expected Pull error to be a corruption, got %v", err)
	}

	_, err = replica.Get(ctx, "b", nil)
	if !errors.Is(err, ErrMissingFeedMappings) {
		t.Fatalf("Expected Get to fail with ErrMissingFeedMappings, got %v", err)
	}
	if !IsCorruption(err) {
		t.Errorf("Expected Get error to be a corruption, got %v", err)
	}
}
