package aodb

import (
	"context"

	"github.com/ValentinKolb/aodb/lib/hash"
	"github.com/ValentinKolb/aodb/lib/trie"
)

// lookup walks the tries of nodes along path, starting at depth, and
// returns every node whose path equals path up to its end. At each depth
// nodes matching the path value are kept and the others are replaced by
// their pointers in the matching bucket. If path is terminated, colliding
// nodes are collected from the terminal buckets. onLookup, if set, sees
// the start nodes and then every pointer before it is followed.
func (db *DB) lookup(ctx context.Context, nodes []*Node, path []byte, depth int, isPut bool, onLookup func(trie.Pointer)) ([]*Node, error) {
	var set nodeSet
	for _, n := range nodes {
		if onLookup != nil {
			onLookup(n.ptr())
		}
		set.add(n)
	}

	for d := depth; d < len(path) && len(set.nodes) > 0; d++ {
		val := path[d]
		var next nodeSet
		for _, n := range set.nodes {
			if n.pathAt(d) == val {
				next.add(n)
				continue
			}
			for _, ptr := range n.Trie.Get(d, val) {
				if next.has(ptr) {
					continue
				}
				if onLookup != nil {
					onLookup(ptr)
				}
				m, err := db.getPointer(ctx, ptr, isPut)
				if err != nil {
					return nil, err
				}
				next.add(m)
			}
		}
		set = next
	}

	if len(path) == 0 || path[len(path)-1] != hash.Terminal {
		return set.nodes, nil
	}

	last := len(path) - 1
	for i := 0; i < len(set.nodes); i++ {
		for _, ptr := range set.nodes[i].Trie.Get(last, hash.Terminal) {
			if set.has(ptr) {
				continue
			}
			if onLookup != nil {
				onLookup(ptr)
			}
			m, err := db.getPointer(ctx, ptr, isPut)
			if err != nil {
				return nil, err
			}
			set.add(m)
		}
	}
	return set.nodes, nil
}

// get returns the current nodes of key reachable from heads
func (db *DB) get(ctx context.Context, heads []*Node, key string, opts *GetOptions, isPut bool) ([]*Node, error) {
	lookups.Inc()

	candidates, err := db.lookup(ctx, heads, hash.Path(key, true), 0, isPut, opts.OnLookup)
	if err != nil {
		return nil, err
	}

	var found []*Node
	for _, n := range candidates {
		if n.Key == key {
			found = append(found, n)
		}
	}
	return finish(filterHeads(found), opts), nil
}

// finish orders the current nodes of one key and applies reduce, map and
// deletion filtering
func finish(nodes []*Node, opts *GetOptions) []*Node {
	if len(nodes) == 0 {
		return nil
	}
	sortNodes(nodes)

	if opts.Reduce != nil {
		r := nodes[0]
		for _, n := range nodes[1:] {
			r = opts.Reduce(r, n)
		}
		nodes = []*Node{r}
	}

	out := nodes[:0:0]
	for _, n := range nodes {
		if n == nil || (n.Deleted && !opts.IncludeDeleted) {
			continue
		}
		if opts.Map != nil {
			n = opts.Map(n)
		}
		out = append(out, n)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
