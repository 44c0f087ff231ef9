package aodb

import (
	"context"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/ValentinKolb/aodb/lib/feed"
	"github.com/ValentinKolb/aodb/lib/hash"
)

// Checkout is a read-only view of the database pinned to a head set
type Checkout struct {
	db    *DB
	heads []*Node
}

// Snapshot pins the current head set
func (db *DB) Snapshot(ctx context.Context) (*Checkout, error) {
	heads, err := db.heads(ctx, true)
	if err != nil {
		return nil, err
	}
	return &Checkout{db: db, heads: heads}, nil
}

// CheckoutHeads pins an explicit head set
func (db *DB) CheckoutHeads(heads []*Node) *Checkout {
	return &Checkout{db: db, heads: heads}
}

// Checkout pins the head set encoded in version. An empty version is the
// empty database.
func (db *DB) Checkout(ctx context.Context, version []byte) (*Checkout, error) {
	var heads []*Node
	for len(version) > 0 {
		if len(version) < feed.KeySize {
			return nil, fmt.Errorf("%w: truncated writer key", ErrInvalidVersion)
		}
		key, _ := feed.KeyFromBytes(version[:feed.KeySize])
		seq, n := protowire.ConsumeVarint(version[feed.KeySize:])
		if n < 0 {
			return nil, fmt.Errorf("%w: %v", ErrInvalidVersion, protowire.ParseError(n))
		}
		version = version[feed.KeySize+n:]

		w, ok := db.byKey.Load(key)
		if !ok {
			return nil, fmt.Errorf("%w: unknown writer %s", ErrInvalidVersion, key.Short())
		}
		node, err := w.get(ctx, seq)
		if err != nil {
			return nil, fmt.Errorf("failed to load version head %d@%s: %w", seq, key.Short(), err)
		}
		heads = append(heads, node)
	}
	return &Checkout{db: db, heads: heads}, nil
}

// Version returns the token of the current head set
func (db *DB) Version(ctx context.Context) ([]byte, error) {
	c, err := db.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return c.Version(), nil
}

// Heads returns the current head set
func (db *DB) Heads(ctx context.Context) ([]*Node, error) {
	return db.heads(ctx, true)
}

// Get returns the current nodes of key. An absent key yields no nodes.
func (db *DB) Get(ctx context.Context, key string, opts *GetOptions) ([]*Node, error) {
	c, err := db.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return c.Get(ctx, key, opts)
}

// Iterator returns an iterator over the current keys below prefix
func (db *DB) Iterator(ctx context.Context, prefix string, opts *IteratorOptions) (*Iterator, error) {
	c, err := db.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return c.Iterator(prefix, opts), nil
}

// List returns all current keys below prefix
func (db *DB) List(ctx context.Context, prefix string, opts *IteratorOptions) ([][]*Node, error) {
	it, err := db.Iterator(ctx, prefix, opts)
	if err != nil {
		return nil, err
	}
	return it.List(ctx)
}

// History returns an iterator over all entries in causal order
func (db *DB) History(ctx context.Context, opts *HistoryOptions) (*History, error) {
	c, err := db.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return c.History(ctx, opts)
}

// KeyHistory returns an iterator over all versions of key
func (db *DB) KeyHistory(ctx context.Context, key string, opts *KeyHistoryOptions) (*KeyHistory, error) {
	c, err := db.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return c.KeyHistory(ctx, key, opts)
}

// Diff compares the current state with other below prefix. A nil other
// is the empty database.
func (db *DB) Diff(ctx context.Context, other *Checkout, prefix string, opts *DiffOptions) (*Differ, error) {
	c, err := db.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return c.Diff(other, prefix, opts), nil
}

// --------------------------------------------------------------------------
// Checkout reads
// --------------------------------------------------------------------------

// Heads returns the pinned head set
func (c *Checkout) Heads() []*Node {
	return c.heads
}

// Version returns the token of the pinned head set: the writer key and
// varint sequence number of every head
func (c *Checkout) Version() []byte {
	var buf []byte
	for _, h := range c.heads {
		buf = append(buf, h.WriterKey[:]...)
		buf = protowire.AppendVarint(buf, h.Seq)
	}
	return buf
}

// Get returns the nodes of key in this checkout
func (c *Checkout) Get(ctx context.Context, key string, opts *GetOptions) ([]*Node, error) {
	return c.db.get(ctx, c.heads, hash.Normalize(key), c.db.getOptions(opts), false)
}

// Iterator returns an iterator over the keys below prefix
func (c *Checkout) Iterator(prefix string, opts *IteratorOptions) *Iterator {
	return newIterator(c.db, c.heads, prefix, c.db.iteratorOptions(opts))
}

// List returns all keys below prefix
func (c *Checkout) List(ctx context.Context, prefix string, opts *IteratorOptions) ([][]*Node, error) {
	return c.Iterator(prefix, opts).List(ctx)
}

func (db *DB) getOptions(opts *GetOptions) *GetOptions {
	o := GetOptions{Reduce: db.opts.Reduce, Map: db.opts.Map}
	if opts != nil {
		o.IncludeDeleted = opts.IncludeDeleted
		o.OnLookup = opts.OnLookup
		if opts.Reduce != nil {
			o.Reduce = opts.Reduce
		}
		if opts.Map != nil {
			o.Map = opts.Map
		}
	}
	return &o
}

func (db *DB) iteratorOptions(opts *IteratorOptions) IteratorOptions {
	o := IteratorOptions{Reduce: db.opts.Reduce, Map: db.opts.Map}
	if opts != nil {
		o.Reverse = opts.Reverse
		o.NonRecursive = opts.NonRecursive
		o.Deletes = opts.Deletes
		if opts.Reduce != nil {
			o.Reduce = opts.Reduce
		}
		if opts.Map != nil {
			o.Map = opts.Map
		}
	}
	return o
}
