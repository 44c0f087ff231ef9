package aodb

import (
	"context"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/ValentinKolb/aodb/lib/feed"
	"github.com/ValentinKolb/aodb/lib/hash"
	"github.com/ValentinKolb/aodb/lib/messages"
	"github.com/ValentinKolb/aodb/lib/trie"
)

// feedTable is the feed mapping declared by one inflated entry. It never
// changes once loaded.
type feedTable struct {
	seq         uint64
	keys        []feed.Key
	decodeMap   []uint64 // writer local index -> database index
	contentFeed []byte
}

// Writer wraps one feed of the database
type Writer struct {
	id   int
	db   *DB
	feed *feed.Feed

	cache     *lru.Cache[uint64, *Node]
	snapshots *xsync.MapOf[uint64, *feedTable]

	mu         sync.Mutex
	writes     map[uint64][]byte // replicated blocks awaiting validation
	clock      uint64            // next sequence number of the open batch
	table      *feedTable
	encodeMap  []uint64 // database index -> writer local index
	authorized bool
}

func newWriter(db *DB, id int, f *feed.Feed) *Writer {
	cache, _ := lru.New[uint64, *Node](db.opts.CacheSize)
	return &Writer{
		id:        id,
		db:        db,
		feed:      f,
		cache:     cache,
		snapshots: xsync.NewMapOf[uint64, *feedTable](),
		writes:    make(map[uint64][]byte),
	}
}

// Key returns the public key of the writer's feed
func (w *Writer) Key() feed.Key { return w.feed.Key() }

// ID returns the database local index of the writer
func (w *Writer) ID() int { return w.id }

// length returns the number of blocks the writer has or is about to have.
// Staged blocks do not count until they passed validation.
func (w *Writer) length() uint64 {
	return max(w.feed.Len(), w.feed.RemoteLen())
}

// head returns the latest entry, or nil if the log holds no entries yet
func (w *Writer) head(ctx context.Context) (*Node, error) {
	n := w.length()
	if n < 2 {
		return nil, nil
	}
	return w.get(ctx, n-1)
}

// get returns the decoded entry at seq
func (w *Writer) get(ctx context.Context, seq uint64) (*Node, error) {
	if n, ok := w.cache.Get(seq); ok {
		cacheHits.Inc()
		return n, nil
	}
	cacheMisses.Inc()

	buf, err := w.block(ctx, seq)
	if err != nil {
		return nil, err
	}
	return w.decode(ctx, seq, buf)
}

// block returns raw bytes, preferring blocks staged for validation
func (w *Writer) block(ctx context.Context, seq uint64) ([]byte, error) {
	w.mu.Lock()
	buf, ok := w.writes[seq]
	w.mu.Unlock()
	if ok {
		return buf, nil
	}
	return w.feed.Get(ctx, seq)
}

func (w *Writer) decode(ctx context.Context, seq uint64, buf []byte) (*Node, error) {
	if seq == 0 {
		return nil, fmt.Errorf("%w: sequence 0 of %s is the header", messages.ErrCorrupt, w.Key().Short())
	}

	e, err := messages.DecodeEntry(buf)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %d@%s: %w", seq, w.Key().Short(), err)
	}
	decodes.Inc()

	table, err := w.loadTable(ctx, seq, e.Inflate, buf)
	if err != nil {
		return nil, err
	}
	if len(e.Clock) > len(table.decodeMap) {
		return nil, fmt.Errorf("%w: entry %d@%s", ErrMissingFeedMappings, seq, w.Key().Short())
	}
	tr, err := trie.Decode(e.Trie, table.decodeMap)
	if err != nil {
		return nil, fmt.Errorf("failed to decode trie of %d@%s: %w", seq, w.Key().Short(), err)
	}

	n := &Node{
		Key:         e.Key,
		Value:       e.Value,
		Deleted:     e.Deleted,
		Seq:         seq,
		Feed:        w.id,
		WriterKey:   w.Key(),
		Clock:       mapList(e.Clock, table.decodeMap),
		Trie:        tr,
		Path:        hash.Path(e.Key, true),
		Inflate:     e.Inflate,
		IsSchema:    e.IsSchema,
		Pointer:     e.Pointer,
		NoUpdate:    e.NoUpdate,
		PointerKey:  e.PointerKey,
		SchemaKey:   e.SchemaKey,
		ContentFeed: table.contentFeed,
	}
	w.cache.Add(seq, n)
	return n, nil
}

// loadTable returns the feed table an entry was written against. Every
// writer listed in the table is registered with the database.
func (w *Writer) loadTable(ctx context.Context, seq, inflate uint64, buf []byte) (*feedTable, error) {
	if t, ok := w.snapshots.Load(inflate); ok {
		return t, nil
	}
	if inflate == 0 || inflate > seq {
		return nil, fmt.Errorf("%w: entry %d@%s inflates from %d", messages.ErrCorrupt, seq, w.Key().Short(), inflate)
	}

	raw := buf
	if inflate != seq {
		var err error
		if raw, err = w.block(ctx, inflate); err != nil {
			return nil, fmt.Errorf("failed to load feed table %d@%s: %w", inflate, w.Key().Short(), err)
		}
	}
	inflated, err := messages.DecodeInflatedEntry(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to decode feed table %d@%s: %w", inflate, w.Key().Short(), err)
	}

	t := &feedTable{
		seq:         inflate,
		keys:        make([]feed.Key, len(inflated.Feeds)),
		decodeMap:   make([]uint64, len(inflated.Feeds)),
		contentFeed: inflated.ContentFeed,
	}
	for i, raw := range inflated.Feeds {
		key, err := feed.KeyFromBytes(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: feed table %d@%s: %v", messages.ErrCorrupt, inflate, w.Key().Short(), err)
		}
		other, err := w.db.addWriter(key)
		if err != nil {
			return nil, err
		}
		t.keys[i] = key
		t.decodeMap[i] = uint64(other.id)
	}

	t, _ = w.snapshots.LoadOrStore(inflate, t)
	w.updateTable(t)
	return t, nil
}

// updateTable makes t the latest table if it is newer than the current one
func (w *Writer) updateTable(t *feedTable) {
	w.mu.Lock()
	if w.table != nil && w.table.seq >= t.seq {
		w.mu.Unlock()
		return
	}
	w.setTableLocked(t)
	authorized := w.authorized
	w.mu.Unlock()

	if authorized {
		w.authorizeTable(t)
	}
}

// setTableLocked must be called with w.mu held
func (w *Writer) setTableLocked(t *feedTable) {
	w.table = t
	size := 0
	for _, id := range t.decodeMap {
		size = max(size, int(id)+1)
	}
	w.encodeMap = make([]uint64, size)
	for i := range w.encodeMap {
		w.encodeMap[i] = uint64(i)
	}
	for local, id := range t.decodeMap {
		w.encodeMap[id] = uint64(local)
	}
	Logger.Debugf("writer %s loaded feed table %d with %d feeds", w.Key().Short(), t.seq, len(t.keys))
}

// authorize marks the writer and every writer it declares as authorized
func (w *Writer) authorize() {
	w.mu.Lock()
	if w.authorized {
		w.mu.Unlock()
		return
	}
	w.authorized = true
	t := w.table
	w.mu.Unlock()

	Logger.Debugf("writer %s authorized", w.Key().Short())
	if t != nil {
		w.authorizeTable(t)
	}
}

func (w *Writer) authorizeTable(t *feedTable) {
	for _, id := range t.decodeMap {
		if other := w.db.writer(int(id)); other != nil {
			other.authorize()
		}
	}
}

func (w *Writer) isAuthorized() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.authorized
}

// authorizes reports whether key is reachable from this writer through
// the latest feed tables
func (w *Writer) authorizes(key feed.Key, visited map[int]bool) bool {
	if w.Key() == key {
		return true
	}
	w.mu.Lock()
	t := w.table
	w.mu.Unlock()
	if t == nil || visited[w.id] {
		return false
	}
	visited[w.id] = true

	for _, k := range t.keys {
		if k == key {
			return true
		}
		if other, ok := w.db.byKey.Load(k); ok && other.authorizes(key, visited) {
			return true
		}
	}
	return false
}

// --------------------------------------------------------------------------
// Local writes
// --------------------------------------------------------------------------

// writerState is the part of a writer a failed batch has to restore
type writerState struct {
	table     *feedTable
	encodeMap []uint64
}

// begin opens a batch on the local writer
func (w *Writer) begin() writerState {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.clock = w.feed.Len()
	return writerState{table: w.table, encodeMap: w.encodeMap}
}

// rollback discards everything encoded since begin
func (w *Writer) rollback(st writerState) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for seq := w.feed.Len(); seq < w.clock; seq++ {
		w.snapshots.Delete(seq)
	}
	w.clock = w.feed.Len()
	w.table = st.table
	w.encodeMap = st.encodeMap
}

// nextSeq returns the sequence number the next local entry will get
func (w *Writer) nextSeq() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.clock
}

// encode assigns the next sequence number to n and encodes it. If the
// database knows writers the latest feed table does not list, a new table
// is embedded in the entry.
func (w *Writer) encode(n *Node, writers []feed.Key) []byte {
	w.mu.Lock()
	defer w.mu.Unlock()

	seq := w.clock
	w.clock++

	n.Seq = seq
	n.Feed = w.id
	n.WriterKey = w.Key()
	for len(n.Clock) <= w.id {
		n.Clock = append(n.Clock, 0)
	}
	n.Clock[w.id] = seq + 1

	inflate := w.table == nil || len(w.table.keys) != len(writers)
	if inflate {
		t := w.nextTableLocked(seq, writers)
		w.snapshots.Store(seq, t)
		w.setTableLocked(t)
	}
	n.Inflate = w.table.seq
	n.ContentFeed = w.table.contentFeed

	e := messages.Entry{
		Key:        n.Key,
		Value:      n.Value,
		Deleted:    n.Deleted,
		Trie:       trie.Encode(n.Trie, w.encodeMap),
		Clock:      mapClock(n.Clock, w.encodeMap, len(w.table.keys)),
		Inflate:    n.Inflate,
		IsSchema:   n.IsSchema,
		Pointer:    n.Pointer,
		NoUpdate:   n.NoUpdate,
		PointerKey: n.PointerKey,
		SchemaKey:  n.SchemaKey,
	}
	if !inflate {
		return messages.EncodeEntry(&e)
	}

	feeds := make([][]byte, len(w.table.keys))
	for i, k := range w.table.keys {
		feeds[i] = append([]byte(nil), k[:]...)
	}
	inflates.Inc()
	return messages.EncodeInflatedEntry(&messages.InflatedEntry{
		Entry:       e,
		Feeds:       feeds,
		ContentFeed: w.table.contentFeed,
	})
}

// nextTableLocked keeps the local order of the current table and appends
// all writers it does not list in database order
func (w *Writer) nextTableLocked(seq uint64, writers []feed.Key) *feedTable {
	t := &feedTable{seq: seq, contentFeed: w.db.opts.ContentFeed}
	listed := make(map[feed.Key]bool)
	if w.table != nil {
		for _, k := range w.table.keys {
			listed[k] = true
			t.keys = append(t.keys, k)
		}
	}
	for _, k := range writers {
		if !listed[k] {
			t.keys = append(t.keys, k)
		}
	}
	t.decodeMap = make([]uint64, len(t.keys))
	for i, k := range t.keys {
		other, _ := w.db.byKey.Load(k)
		t.decodeMap[i] = uint64(other.id)
	}
	return t
}

// stage makes a replicated block readable by seq before it is stored. The
// writer's length is left alone, so no head or new entry can reach it.
func (w *Writer) stage(seq uint64, buf []byte) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.writes[seq] = buf
}

// unstage drops staged blocks. Rejected entries are evicted from the cache.
func (w *Writer) unstage(from, to uint64, rejected bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for seq := from; seq < to; seq++ {
		delete(w.writes, seq)
		if rejected {
			w.cache.Remove(seq)
			w.snapshots.Delete(seq)
		}
	}
	if !rejected {
		return
	}

	// falls back to the latest table that was not rejected
	if w.table != nil && w.table.seq >= from {
		var latest *feedTable
		w.snapshots.Range(func(seq uint64, t *feedTable) bool {
			if seq < from && (latest == nil || seq > latest.seq) {
				latest = t
			}
			return true
		})
		if latest != nil {
			w.setTableLocked(latest)
		} else {
			w.table, w.encodeMap = nil, nil
		}
	}
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// mapList translates a clock from writer local to database indices
func mapList(list []uint64, decodeMap []uint64) []uint64 {
	size := 0
	for i := range list {
		size = max(size, int(decodeMap[i])+1)
	}
	mapped := make([]uint64, size)
	for i, v := range list {
		mapped[decodeMap[i]] = v
	}
	return mapped
}

// mapClock translates a clock from database to writer local indices
func mapClock(clock []uint64, encodeMap []uint64, size int) []uint64 {
	mapped := make([]uint64, size)
	for i, v := range clock {
		if v == 0 {
			continue
		}
		local := uint64(i)
		if i < len(encodeMap) {
			local = encodeMap[i]
		}
		mapped[local] = v
	}
	return mapped
}
