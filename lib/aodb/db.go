package aodb

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
	"golang.org/x/sync/errgroup"

	"github.com/ValentinKolb/aodb/lib/feed"
	"github.com/ValentinKolb/aodb/lib/messages"
	"github.com/ValentinKolb/aodb/lib/trie"
	"github.com/ValentinKolb/aodb/lib/util"
)

var Logger = logger.GetLogger("aodb")

const (
	sourceKeyPair = "source"
	localKeyPair  = "local"
)

// EventType is the kind of a database event
type EventType = feed.Event

const (
	EventAppend       = feed.EventAppend
	EventRemoteUpdate = feed.EventRemoteUpdate
)

// Event is emitted to database observers whenever one of its feeds changes
type Event struct {
	Type   EventType
	Writer int
}

// DB is a multi-writer key value database over append-only feeds
type DB struct {
	opts  Options
	store feed.IStore
	key   feed.Key

	mu      sync.RWMutex
	writers []*Writer
	byKey   *xsync.MapOf[feed.Key, *Writer]
	cancels []func()

	source *Writer
	local  *Writer
	localK feed.Key

	lock     chan struct{}
	batching *batchState // owned by the holder of lock

	observers *xsync.MapOf[uint64, func(Event)]
	nextObs   atomic.Uint64

	pullMu sync.Mutex // one pull at a time

	updateMu sync.Mutex
	updated  chan struct{} // closed and replaced on every remote update

	closed    chan struct{}
	closeOnce sync.Once

	sizes *util.SizeHistogram // sizes of locally written values
}

// Open opens the database stored in store. Without opts.Key the database
// is owned by the store's source key pair, which is created if missing.
// With opts.Key the database is a replica of that key and writes go to a
// separate local feed until the owner authorizes it.
func Open(ctx context.Context, store feed.IStore, opts Options) (*DB, error) {
	defaults := DefaultOptions()
	if opts.CacheSize <= 0 {
		opts.CacheSize = defaults.CacheSize
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaults.Timeout
	}

	db := &DB{
		opts:      opts,
		store:     store,
		byKey:     xsync.NewMapOf[feed.Key, *Writer](),
		lock:      make(chan struct{}, 1),
		observers: xsync.NewMapOf[uint64, func(Event)](),
		updated:   make(chan struct{}),
		closed:    make(chan struct{}),
		sizes:     util.NewSizeHistogram(),
	}

	source, err := loadOrCreateKeyPair(store, sourceKeyPair, opts.Key == nil)
	if err != nil {
		return nil, err
	}

	var sourceWritable bool
	switch {
	case opts.Key == nil:
		db.key, sourceWritable = source.Public, true
	default:
		db.key = *opts.Key
		sourceWritable = source.Private != nil && source.Public == db.key
	}

	db.localK = db.key
	if !sourceWritable {
		local, err := loadOrCreateKeyPair(store, localKeyPair, true)
		if err != nil {
			return nil, err
		}
		db.localK = local.Public
	}

	if db.source, err = db.addWriter(db.key); err != nil {
		return nil, err
	}
	if db.local, err = db.addWriter(db.localK); err != nil {
		return nil, err
	}
	db.source.authorize()

	if db.local.feed.Len() == 0 {
		if _, err := db.local.feed.Append(messages.EncodeHeader(messages.Header{Protocol: messages.Protocol})); err != nil {
			return nil, fmt.Errorf("failed to write header: %w", err)
		}
	}

	// loads the latest feed table of the local writer
	if _, err := db.local.head(ctx); err != nil {
		return nil, fmt.Errorf("failed to load local head: %w", err)
	}

	Logger.Debugf("opened database %s (local writer %s)", db.key.Short(), db.localK.Short())
	return db, nil
}

func loadOrCreateKeyPair(store feed.IStore, name string, create bool) (feed.KeyPair, error) {
	kp, ok, err := store.LoadKeyPair(name)
	if err != nil {
		return kp, err
	}
	if ok || !create {
		return kp, nil
	}
	if kp, err = feed.GenerateKeyPair(); err != nil {
		return kp, err
	}
	if err := store.SaveKeyPair(name, kp); err != nil {
		return kp, fmt.Errorf("failed to save key pair %q: %w", name, err)
	}
	return kp, nil
}

// Key returns the key of the database: the key of its source feed
func (db *DB) Key() feed.Key { return db.key }

// LocalKey returns the key of the feed local writes go to
func (db *DB) LocalKey() feed.Key { return db.localK }

// Writable reports whether the local writer is the source
func (db *DB) Writable() bool { return db.local == db.source }

// Close closes all feeds and wakes everything waiting on the database.
// The store is left open.
func (db *DB) Close() error {
	db.closeOnce.Do(func() {
		close(db.closed)
		db.mu.Lock()
		defer db.mu.Unlock()
		for _, cancel := range db.cancels {
			cancel()
		}
		for _, w := range db.writers {
			w.feed.Close()
		}
	})
	return nil
}

func (db *DB) isClosed() bool {
	select {
	case <-db.closed:
		return true
	default:
		return false
	}
}

// --------------------------------------------------------------------------
// Writers
// --------------------------------------------------------------------------

// addWriter returns the writer of key, registering it on first use.
// Concurrent calls for the same key converge on one writer.
func (db *DB) addWriter(key feed.Key) (*Writer, error) {
	if w, ok := db.byKey.Load(key); ok {
		return w, nil
	}
	if db.isClosed() {
		return nil, ErrClosed
	}

	var openErr error
	w, _ := db.byKey.Compute(key, func(old *Writer, loaded bool) (*Writer, bool) {
		if loaded {
			return old, false
		}
		f, err := feed.Open(db.store, key, key == db.localK)
		if err != nil {
			openErr = err
			return nil, true
		}

		db.mu.Lock()
		defer db.mu.Unlock()
		w := newWriter(db, len(db.writers), f)
		db.writers = append(db.writers, w)
		db.cancels = append(db.cancels, f.Subscribe(func(e feed.Event) {
			db.emit(Event{Type: e, Writer: w.id})
		}))
		Logger.Debugf("added writer %s as %d", key.Short(), w.id)
		return w, false
	})
	if openErr != nil {
		return nil, openErr
	}
	return w, nil
}

// writer returns the writer with the given index
func (db *DB) writer(id int) *Writer {
	db.mu.RLock()
	defer db.mu.RUnlock()
	if id < 0 || id >= len(db.writers) {
		return nil
	}
	return db.writers[id]
}

func (db *DB) snapshotWriters() []*Writer {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return append([]*Writer(nil), db.writers...)
}

func (db *DB) writerCount() int {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return len(db.writers)
}

func (db *DB) writerKeys() []feed.Key {
	db.mu.RLock()
	defer db.mu.RUnlock()
	keys := make([]feed.Key, len(db.writers))
	for i, w := range db.writers {
		keys[i] = w.Key()
	}
	return keys
}

// Writers returns all writers known to the database in index order
func (db *DB) Writers() []*Writer {
	return db.snapshotWriters()
}

// --------------------------------------------------------------------------
// Heads and clocks
// --------------------------------------------------------------------------

// heads returns the current head set. With update set and WaitForUpdate
// enabled, an empty replica first waits for remote data.
func (db *DB) heads(ctx context.Context, update bool) ([]*Node, error) {
	for {
		if db.isClosed() {
			return nil, ErrClosed
		}
		if update && db.opts.WaitForUpdate {
			updated := db.nextUpdate()
			if db.waitForUpdate() {
				if err := db.awaitUpdate(ctx, updated); err != nil {
					return nil, err
				}
				continue
			}
		}

		writers := db.snapshotWriters()
		nodes := make([]*Node, len(writers))

		g, gctx := errgroup.WithContext(ctx)
		for i, w := range writers {
			g.Go(func() error {
				n, err := w.head(gctx)
				nodes[i] = n
				return err
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}

		// decoding the heads may have discovered new writers
		if len(writers) != db.writerCount() {
			continue
		}

		if len(nodes) == 1 {
			if nodes[0] == nil {
				return nil, nil
			}
			return nodes, nil
		}
		return filterHeads(nodes), nil
	}
}

func (db *DB) waitForUpdate() bool {
	return db.source.length() == 0 && db.local.feed.Len() < 2
}

// nextUpdate returns a channel closed by the next remote update
func (db *DB) nextUpdate() <-chan struct{} {
	db.updateMu.Lock()
	defer db.updateMu.Unlock()
	return db.updated
}

func (db *DB) awaitUpdate(ctx context.Context, updated <-chan struct{}) error {
	select {
	case <-updated:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-db.closed:
		return ErrClosed
	}
}

// clock returns the vector clock of the next local entry
func (db *DB) clock() []uint64 {
	writers := db.snapshotWriters()
	clock := make([]uint64, len(writers))
	for i, w := range writers {
		if w == db.local {
			clock[i] = w.nextSeq()
		} else {
			clock[i] = w.length()
		}
	}
	return clock
}

// getPointer resolves ptr. Inside a batch, entries staged by the batch
// are visible to the writing side.
func (db *DB) getPointer(ctx context.Context, ptr trie.Pointer, isPut bool) (*Node, error) {
	if isPut && db.batching != nil && ptr.Feed == uint64(db.local.id) && ptr.Seq >= db.batching.base {
		i := ptr.Seq - db.batching.base
		if i < uint64(len(db.batching.nodes)) {
			return db.batching.nodes[i], nil
		}
	}
	w := db.writer(int(ptr.Feed))
	if w == nil {
		return nil, fmt.Errorf("%w: pointer to unknown feed %d", ErrMissingFeedMappings, ptr.Feed)
	}
	return w.get(ctx, ptr.Seq)
}

// --------------------------------------------------------------------------
// Lock
// --------------------------------------------------------------------------

// acquire enters the write critical section. Waiters are served in order.
func (db *DB) acquire(ctx context.Context) error {
	select {
	case db.lock <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-db.closed:
		return ErrClosed
	}
}

func (db *DB) release() {
	<-db.lock
}

// --------------------------------------------------------------------------
// Events
// --------------------------------------------------------------------------

// Subscribe registers fn for all database events. Observers run
// synchronously and must not block.
func (db *DB) Subscribe(fn func(Event)) (cancel func()) {
	id := db.nextObs.Add(1)
	db.observers.Store(id, fn)
	return func() { db.observers.Delete(id) }
}

func (db *DB) emit(e Event) {
	if e.Type == EventRemoteUpdate {
		db.updateMu.Lock()
		close(db.updated)
		db.updated = make(chan struct{})
		db.updateMu.Unlock()
	}
	db.observers.Range(func(_ uint64, fn func(Event)) bool {
		fn(e)
		return true
	})
}

// --------------------------------------------------------------------------
// Authorization
// --------------------------------------------------------------------------

// Authorize allows the writer with the given key to write to the database
// by declaring it in the local feed table
func (db *DB) Authorize(ctx context.Context, key feed.Key) (*Node, error) {
	if err := db.acquire(ctx); err != nil {
		return nil, err
	}
	defer db.release()

	// loads all feed tables so the new writer is appended after them
	if _, err := db.heads(ctx, false); err != nil {
		return nil, err
	}
	if _, err := db.addWriter(key); err != nil {
		return nil, err
	}

	nodes, err := db.batchLocked(ctx, []BatchOp{{Type: OpPut, Key: ""}})
	if err != nil {
		return nil, fmt.Errorf("failed to authorize %s: %w", key.Short(), err)
	}
	return nodes[0], nil
}

// Authorized reports whether key is reachable from the source writer
func (db *DB) Authorized(ctx context.Context, key feed.Key) (bool, error) {
	if _, err := db.heads(ctx, false); err != nil {
		return false, err
	}
	return db.source.authorizes(key, make(map[int]bool)), nil
}
