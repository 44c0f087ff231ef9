package aodb

import (
	"context"
	"fmt"
	"time"
)

// batchState collects the entries of an open batch until they are appended
type batchState struct {
	base  uint64
	nodes []*Node
	bufs  [][]byte
}

func (b *batchState) add(n *Node, buf []byte) {
	b.nodes = append(b.nodes, n)
	b.bufs = append(b.bufs, buf)
}

// Batch applies ops in order as one atomic append to the local feed. Every
// op sees the result of the previous one. The result holds one node per op;
// skipped IfNotExists puts yield nil. If any op fails, nothing is written.
func (db *DB) Batch(ctx context.Context, ops []BatchOp) ([]*Node, error) {
	if err := db.acquire(ctx); err != nil {
		return nil, err
	}
	defer db.release()
	return db.batchLocked(ctx, ops)
}

func (db *DB) batchLocked(ctx context.Context, ops []BatchOp) (nodes []*Node, err error) {
	start := time.Now()
	local := db.local

	state := local.begin()
	db.batching = &batchState{base: local.feed.Len()}
	defer func() {
		db.batching = nil
		if err != nil {
			local.rollback(state)
		}
	}()

	clock := db.clock()
	heads, err := db.heads(ctx, false)
	if err != nil {
		return nil, err
	}

	nodes = make([]*Node, len(ops))
	for i, op := range ops {
		if op.Type != OpPut && op.Type != OpDelete {
			return nil, fmt.Errorf("%w: op %d has type %d", ErrInvalidOp, i, op.Type)
		}
		n, err := db.put(ctx, clock, heads, op)
		if err != nil {
			return nil, fmt.Errorf("batch op %d (%s %q) failed: %w", i, op.Type, op.Key, err)
		}
		nodes[i] = n
		if n != nil {
			heads = []*Node{n}
		}
	}

	staged := db.batching
	if len(staged.bufs) == 0 {
		return nodes, nil
	}
	if _, err := local.feed.Append(staged.bufs...); err != nil {
		return nil, err
	}

	for _, n := range staged.nodes {
		local.cache.Add(n.Seq, n)
		if !n.Deleted {
			db.sizes.AddSample(len(n.Value))
		}
	}
	if local.isAuthorized() {
		local.mu.Lock()
		t := local.table
		local.mu.Unlock()
		local.authorizeTable(t)
	}

	puts.Add(len(staged.nodes))
	batches.Inc()
	batchDuration.UpdateDuration(start)
	return nodes, nil
}
