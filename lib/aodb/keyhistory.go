package aodb

import (
	"context"

	"github.com/ValentinKolb/aodb/lib/hash"
	"github.com/ValentinKolb/aodb/lib/trie"
)

// KeyHistory enumerates every version of one key, newest first. Versions
// written concurrently are yielded together as one group. Deleted versions
// are part of the history.
type KeyHistory struct {
	db      *DB
	key     string
	reverse bool

	group  []*Node
	groups [][]*Node // all groups, oldest first, only used in reverse
	loaded bool
}

// KeyHistory returns an iterator over the versions of key reachable from
// the checkout
func (c *Checkout) KeyHistory(ctx context.Context, key string, opts *KeyHistoryOptions) (*KeyHistory, error) {
	h := &KeyHistory{
		db:      c.db,
		key:     hash.Normalize(key),
		reverse: opts != nil && opts.Reverse,
	}
	group, err := h.versions(ctx, c.heads)
	if err != nil {
		return nil, err
	}
	h.group = group
	return h, nil
}

// Next returns the next group of versions, or nil once all were visited
func (h *KeyHistory) Next(ctx context.Context) ([]*Node, error) {
	if !h.reverse {
		return h.step(ctx)
	}

	if !h.loaded {
		h.loaded = true
		for {
			group, err := h.step(ctx)
			if err != nil {
				return nil, err
			}
			if group == nil {
				break
			}
			h.groups = append(h.groups, group)
		}
	}
	if len(h.groups) == 0 {
		return nil, nil
	}
	last := h.groups[len(h.groups)-1]
	h.groups = h.groups[:len(h.groups)-1]
	return last, nil
}

// List drains the iterator
func (h *KeyHistory) List(ctx context.Context) ([][]*Node, error) {
	var all [][]*Node
	for {
		group, err := h.Next(ctx)
		if err != nil {
			return nil, err
		}
		if group == nil {
			return all, nil
		}
		all = append(all, group)
	}
}

// step yields the current group and moves to the versions the group
// replaced
func (h *KeyHistory) step(ctx context.Context) ([]*Node, error) {
	group := h.group
	if len(group) == 0 {
		return nil, nil
	}

	var older nodeSet
	for _, n := range group {
		heads, err := h.before(ctx, n)
		if err != nil {
			return nil, err
		}
		versions, err := h.versions(ctx, heads)
		if err != nil {
			return nil, err
		}
		for _, v := range versions {
			older.add(v)
		}
	}

	h.group = filterHeads(older.nodes)
	sortNodes(h.group)
	return group, nil
}

// versions returns the current versions of the key at heads
func (h *KeyHistory) versions(ctx context.Context, heads []*Node) ([]*Node, error) {
	return h.db.get(ctx, heads, h.key, &GetOptions{IncludeDeleted: true}, false)
}

// before returns the head set of everything n has seen, excluding n
func (h *KeyHistory) before(ctx context.Context, n *Node) ([]*Node, error) {
	var heads []*Node
	for g, v := range n.Clock {
		if g == n.Feed {
			v = n.Seq
		}
		if v < 2 {
			continue
		}
		m, err := h.db.getPointer(ctx, trie.Pointer{Feed: uint64(g), Seq: v - 1}, false)
		if err != nil {
			return nil, err
		}
		heads = append(heads, m)
	}
	return filterHeads(heads), nil
}
