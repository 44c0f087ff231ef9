package aodb

import (
	"context"
	"fmt"
	"math"

	"github.com/ValentinKolb/aodb/lib/messages"
	"github.com/ValentinKolb/aodb/lib/trie"
	"github.com/ValentinKolb/aodb/lib/util"
)

// History enumerates every entry of a head set in causal order. An entry is
// yielded only after everything its clock has seen, or with Reverse, only
// after everything that has seen it. Concurrent entries are ordered by
// writer index.
type History struct {
	db      *DB
	reverse bool

	// next[f] is the sequence number of the next entry of writer f, end[f]
	// the first sequence number that is not part of the history. In
	// reverse the cursor counts down and end is the header.
	next []uint64
	end  []uint64

	pending []*Node // loaded entry at next[f], nil if not loaded yet
	ready   *util.MapHeap
}

// History returns an iterator over all entries reachable from the checkout
func (c *Checkout) History(ctx context.Context, opts *HistoryOptions) (*History, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// a writer's history ends where the latest head that has seen it ends
	var bounds []uint64
	for _, h := range c.heads {
		for f, v := range h.Clock {
			for len(bounds) <= f {
				bounds = append(bounds, 0)
			}
			bounds[f] = max(bounds[f], v)
		}
	}

	h := &History{
		db:      c.db,
		reverse: opts != nil && opts.Reverse,
		next:    make([]uint64, len(bounds)),
		end:     make([]uint64, len(bounds)),
		pending: make([]*Node, len(bounds)),
		ready:   util.NewMapHeap(),
	}
	for f, bound := range bounds {
		switch {
		case bound < 2:
			h.next[f], h.end[f] = 1, 1
		case h.reverse:
			h.next[f], h.end[f] = bound-1, 0
		default:
			h.next[f], h.end[f] = 1, bound
		}
	}
	return h, nil
}

// Next returns the next entry, or nil once the history is exhausted
func (h *History) Next(ctx context.Context) (*Node, error) {
	remaining := false
	for f := range h.next {
		if h.done(f) {
			continue
		}
		remaining = true
		if h.ready.Contains(uint64(f)) {
			continue
		}
		n, err := h.load(ctx, f)
		if err != nil {
			return nil, err
		}
		if h.eligible(ctx, n) {
			h.ready.AddItem(uint64(f), h.priority(f))
		}
	}
	if !remaining {
		return nil, nil
	}

	key, _, ok := h.ready.PopItem()
	if !ok {
		return nil, fmt.Errorf("%w: entries of the history are not causally ordered", messages.ErrCorrupt)
	}

	f := int(key)
	n := h.pending[f]
	h.pending[f] = nil
	if h.reverse {
		h.next[f]--
	} else {
		h.next[f]++
	}
	return n, nil
}

// List drains the iterator
func (h *History) List(ctx context.Context) ([]*Node, error) {
	var all []*Node
	for {
		n, err := h.Next(ctx)
		if err != nil {
			return nil, err
		}
		if n == nil {
			return all, nil
		}
		all = append(all, n)
	}
}

func (h *History) done(f int) bool {
	if h.reverse {
		return h.next[f] == h.end[f]
	}
	return h.next[f] >= h.end[f]
}

func (h *History) priority(f int) uint64 {
	if h.reverse {
		return math.MaxUint64 - uint64(f)
	}
	return uint64(f)
}

func (h *History) load(ctx context.Context, f int) (*Node, error) {
	if n := h.pending[f]; n != nil {
		return n, nil
	}
	n, err := h.db.getPointer(ctx, trie.Pointer{Feed: uint64(f), Seq: h.next[f]}, false)
	if err != nil {
		return nil, err
	}
	h.pending[f] = n
	return n, nil
}

// eligible reports whether n can be yielded. Going forward every entry n
// has seen must be yielded already. In reverse no remaining entry of
// another writer may have seen n, which only has to be checked against the
// newest remaining entry of every writer.
func (h *History) eligible(ctx context.Context, n *Node) bool {
	for g := range h.next {
		if g == n.Feed {
			continue
		}
		if !h.reverse {
			seen := min(clockAt(n.Clock, g), max(h.end[g], 1))
			if seen > h.next[g] {
				return false
			}
			continue
		}
		if h.done(g) {
			continue
		}
		tip, err := h.load(ctx, g)
		if err != nil {
			// surfaced again when g itself is loaded
			continue
		}
		if clockAt(tip.Clock, n.Feed) > n.Seq {
			return false
		}
	}
	return true
}
