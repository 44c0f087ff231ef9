package aodb

import (
	"context"
	"sort"

	"github.com/ValentinKolb/aodb/lib/hash"
)

var (
	forwardOrder = [hash.Buckets]byte{4, 0, 1, 2, 3}
	reverseOrder = [hash.Buckets]byte{3, 2, 1, 0, 4}
)

// frame is a pending subtree of the iteration: the nodes whose paths agree
// up to depth. A terminal frame holds the keys ending at depth-1.
type frame struct {
	depth    int
	nodes    []*Node
	terminal bool
}

// Iterator enumerates keys depth first along the hash trie. A folder is
// visited completely before its siblings. Each call to Next yields the
// current nodes of one key.
type Iterator struct {
	db     *DB
	heads  []*Node
	prefix string
	opts   IteratorOptions

	started bool
	base    int
	stack   []frame
	pending [][]*Node
}

func newIterator(db *DB, heads []*Node, prefix string, opts IteratorOptions) *Iterator {
	return &Iterator{
		db:     db,
		heads:  heads,
		prefix: hash.Normalize(prefix),
		opts:   opts,
	}
}

// Next returns the nodes of the next key, or nil once all keys were visited
func (it *Iterator) Next(ctx context.Context) ([]*Node, error) {
	if !it.started {
		if err := it.start(ctx); err != nil {
			return nil, err
		}
	}

	for len(it.pending) > 0 || len(it.stack) > 0 {
		if len(it.pending) > 0 {
			next := it.pending[0]
			it.pending = it.pending[1:]
			return next, nil
		}

		f := it.stack[len(it.stack)-1]
		it.stack = it.stack[:len(it.stack)-1]

		if f.terminal {
			it.pending = it.collect(f.nodes)
			if it.opts.NonRecursive && len(it.pending) > 0 {
				it.pending = it.pending[:1]
				it.prune()
			}
			continue
		}

		children, err := it.expand(ctx, f)
		if err != nil {
			return nil, err
		}
		for i := len(children) - 1; i >= 0; i-- {
			it.stack = append(it.stack, children[i])
		}
	}
	return nil, nil
}

// List drains the iterator
func (it *Iterator) List(ctx context.Context) ([][]*Node, error) {
	var all [][]*Node
	for {
		nodes, err := it.Next(ctx)
		if err != nil {
			return nil, err
		}
		if nodes == nil {
			return all, nil
		}
		all = append(all, nodes)
	}
}

func (it *Iterator) start(ctx context.Context) error {
	it.started = true
	nodes := it.heads
	if it.prefix != "" {
		path := hash.Path(it.prefix, false)
		var err error
		if nodes, err = it.db.lookup(ctx, it.heads, path, 0, false, nil); err != nil {
			return err
		}
		it.base = len(path)
	}
	if len(nodes) > 0 {
		it.stack = append(it.stack, frame{depth: it.base, nodes: nodes})
	}
	return nil
}

// prune drops the rest of the child folder a key was just yielded from
func (it *Iterator) prune() {
	limit := it.base + hash.SegmentLength
	for len(it.stack) > 0 && it.stack[len(it.stack)-1].depth > limit {
		it.stack = it.stack[:len(it.stack)-1]
	}
}

// expand splits f into one frame per path value at f.depth
func (it *Iterator) expand(ctx context.Context, f frame) ([]frame, error) {
	d := f.depth
	var buckets [hash.Buckets]nodeSet

	for _, n := range f.nodes {
		own := n.pathAt(d)
		for b := byte(0); b < hash.Buckets; b++ {
			if own == b {
				buckets[b].add(n)
				continue
			}
			for _, ptr := range n.Trie.Get(d, b) {
				if buckets[b].has(ptr) {
					continue
				}
				m, err := it.db.getPointer(ctx, ptr, false)
				if err != nil {
					return nil, err
				}
				buckets[b].add(m)
			}
		}
	}

	// keys colliding with a key ending here
	term := &buckets[hash.Terminal]
	for i := 0; i < len(term.nodes); i++ {
		for _, ptr := range term.nodes[i].Trie.Get(d, hash.Terminal) {
			if term.has(ptr) {
				continue
			}
			m, err := it.db.getPointer(ctx, ptr, false)
			if err != nil {
				return nil, err
			}
			term.add(m)
		}
	}

	order := forwardOrder
	if it.opts.Reverse {
		order = reverseOrder
	}

	children := make([]frame, 0, hash.Buckets)
	for _, b := range order {
		if len(buckets[b].nodes) == 0 {
			continue
		}
		children = append(children, frame{
			depth:    d + 1,
			nodes:    buckets[b].nodes,
			terminal: b == hash.Terminal,
		})
	}
	return children, nil
}

// collect groups the nodes of a terminal frame by key and resolves every
// key to its current nodes
func (it *Iterator) collect(nodes []*Node) [][]*Node {
	byKey := make(map[string][]*Node)
	var keys []string
	for _, n := range nodes {
		if _, ok := byKey[n.Key]; !ok {
			keys = append(keys, n.Key)
		}
		byKey[n.Key] = append(byKey[n.Key], n)
	}

	sort.Strings(keys)
	if it.opts.Reverse {
		sort.Sort(sort.Reverse(sort.StringSlice(keys)))
	}

	opts := &GetOptions{Reduce: it.opts.Reduce, Map: it.opts.Map, IncludeDeleted: it.opts.Deletes}
	var groups [][]*Node
	for _, key := range keys {
		if key == "" || !hash.HasPrefix(key, it.prefix) {
			continue
		}
		if it.opts.NonRecursive && key == it.prefix {
			continue
		}
		if result := finish(filterHeads(byKey[key]), opts); len(result) > 0 {
			groups = append(groups, result)
		}
	}
	return groups
}
