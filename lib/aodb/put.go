package aodb

import (
	"context"

	"github.com/ValentinKolb/aodb/lib/hash"
	"github.com/ValentinKolb/aodb/lib/trie"
)

// Put writes value under key and returns the new node. With
// opts.IfNotExists set and an existing value, nothing is written and the
// returned node is nil.
func (db *DB) Put(ctx context.Context, key string, value []byte, opts *PutOptions) (*Node, error) {
	op := BatchOp{Type: OpPut, Key: key, Value: value}
	if value == nil {
		op.Value = []byte{}
	}
	if opts != nil {
		op.Options = *opts
	}
	nodes, err := db.Batch(ctx, []BatchOp{op})
	if err != nil {
		return nil, err
	}
	return nodes[0], nil
}

// Delete writes a deletion marker for key
func (db *DB) Delete(ctx context.Context, key string) (*Node, error) {
	nodes, err := db.Batch(ctx, []BatchOp{{Type: OpDelete, Key: key}})
	if err != nil {
		return nil, err
	}
	return nodes[0], nil
}

// put stages one entry for key on top of heads
func (db *DB) put(ctx context.Context, clock []uint64, heads []*Node, op BatchOp) (*Node, error) {
	key := hash.Normalize(op.Key)

	if op.Options.IfNotExists {
		existing, err := db.get(ctx, heads, key, &GetOptions{}, true)
		if err != nil {
			return nil, err
		}
		if len(existing) > 0 {
			return nil, nil
		}
	}

	path := hash.Path(key, true)
	t, err := db.buildTrie(ctx, heads, key, path)
	if err != nil {
		return nil, err
	}

	n := &Node{
		Key:        key,
		Value:      op.Value,
		Deleted:    op.Type == OpDelete,
		Clock:      append([]uint64(nil), clock...),
		Trie:       t,
		Path:       path,
		IsSchema:   op.Options.IsSchema,
		Pointer:    op.Options.Pointer,
		NoUpdate:   op.Options.NoUpdate,
		PointerKey: op.Options.PointerKey,
		SchemaKey:  op.Options.SchemaKey,
	}
	if n.Deleted {
		n.Value = nil
	}

	buf := db.local.encode(n, db.writerKeys())
	db.batching.add(n, buf)
	return n, nil
}

// buildTrie computes the trie of a new entry for key. Every head is walked
// along the new path: at the first depth where a node's path diverges the
// node itself is indexed, and its pointers in the new path's bucket are
// followed, since those nodes share the new path further down. Buckets of
// other values are inherited unchanged.
func (db *DB) buildTrie(ctx context.Context, heads []*Node, key string, path []byte) (trie.Trie, error) {
	var t trie.Trie
	last := len(path) - 1
	visited := make(map[trie.Pointer]int)

	var visit func(n *Node, depth int) error
	visit = func(n *Node, depth int) error {
		p := n.ptr()
		if d, ok := visited[p]; ok && d <= depth {
			return nil
		}
		visited[p] = depth

		for i := depth; i <= last; i++ {
			val := path[i]
			for v, bucket := range n.Trie.Level(i) {
				if byte(v) != val {
					t = t.Merge(i, byte(v), bucket)
				}
			}

			if n.pathAt(i) == val {
				if i == last {
					// colliding keys stay reachable through the terminal bucket
					if n.Key != key {
						t = t.Add(i, hash.Terminal, p)
					}
					t = t.Merge(i, hash.Terminal, n.Trie.Get(i, hash.Terminal))
				}
				continue
			}

			t = t.Add(i, n.pathAt(i), p)
			for _, ptr := range n.Trie.Get(i, val) {
				m, err := db.getPointer(ctx, ptr, true)
				if err != nil {
					return err
				}
				if err := visit(m, i); err != nil {
					return err
				}
			}
			return nil
		}
		return nil
	}

	for _, h := range heads {
		if err := visit(h, 0); err != nil {
			return nil, err
		}
	}
	return t, nil
}
