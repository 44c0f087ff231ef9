package aodb

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/ValentinKolb/aodb/lib/feed"
	"github.com/ValentinKolb/aodb/lib/messages"
)

// maxBlocksPerRequest bounds the number of blocks fetched at once
const maxBlocksPerRequest = 256

// FeedInfo describes one feed a peer can serve
type FeedInfo struct {
	Key    feed.Key
	Length uint64
}

// Peer is the remote side of a replication. *DB implements it, and so
// does the RPC client.
type Peer interface {
	// Feeds lists the authorized writers of the peer's database
	Feeds(ctx context.Context) ([]FeedInfo, error)
	// Blocks returns the raw blocks [from, to) of a feed
	Blocks(ctx context.Context, key feed.Key, from, to uint64) ([][]byte, error)
}

// Feeds lists all authorized writers holding data
func (db *DB) Feeds(ctx context.Context) ([]FeedInfo, error) {
	// loads the latest feed tables, which authorize new writers
	if _, err := db.heads(ctx, false); err != nil {
		return nil, err
	}

	var infos []FeedInfo
	for _, w := range db.snapshotWriters() {
		if n := w.feed.Len(); n > 0 && w.isAuthorized() {
			infos = append(infos, FeedInfo{Key: w.Key(), Length: n})
		}
	}
	return infos, nil
}

// Blocks returns the stored blocks [from, to) of an authorized writer
func (db *DB) Blocks(ctx context.Context, key feed.Key, from, to uint64) ([][]byte, error) {
	w, ok := db.byKey.Load(key)
	if !ok || !w.isAuthorized() {
		return nil, fmt.Errorf("%w: %s", ErrUnknownWriter, key.Short())
	}
	to = min(to, w.feed.Len(), from+maxBlocksPerRequest)
	if from >= to {
		return nil, nil
	}

	blocks := make([][]byte, 0, to-from)
	for seq := from; seq < to; seq++ {
		buf, err := w.feed.Get(ctx, seq)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, buf)
	}
	return blocks, nil
}

// Pull downloads everything peer holds for the writers this database
// authorizes, and repeats until a round yields nothing new. It returns the
// number of blocks downloaded. Concurrent pulls run one after another.
func (db *DB) Pull(ctx context.Context, peer Peer) (int, error) {
	db.pullMu.Lock()
	defer db.pullMu.Unlock()

	total := 0
	for {
		if db.isClosed() {
			return total, ErrClosed
		}
		infos, err := peer.Feeds(ctx)
		if err != nil {
			return total, fmt.Errorf("failed to list remote feeds: %w", err)
		}

		g, gctx := errgroup.WithContext(ctx)
		counts := make([]int, len(infos))
		for i, info := range infos {
			w, ok := db.byKey.Load(info.Key)
			if !ok || w.feed.Writable() || !w.isAuthorized() || info.Length <= w.feed.Len() {
				continue
			}
			g.Go(func() error {
				n, err := db.download(gctx, peer, w, info.Length)
				counts[i] = n
				return err
			})
		}
		err = g.Wait()

		round := 0
		for _, n := range counts {
			round += n
		}
		total += round
		if err != nil {
			return total, err
		}
		if round == 0 {
			return total, nil
		}

		Logger.Debugf("pulled %d blocks into %s", round, db.key.Short())

		// decoding the new heads registers and authorizes new writers
		if _, err := db.heads(ctx, false); err != nil {
			return total, err
		}
	}
}

// download fetches the blocks of w up to length
func (db *DB) download(ctx context.Context, peer Peer, w *Writer, length uint64) (int, error) {
	count := 0
	for from := w.feed.Len(); from < length; {
		blocks, err := peer.Blocks(ctx, w.Key(), from, min(length, from+maxBlocksPerRequest))
		if err != nil {
			return count, fmt.Errorf("failed to fetch blocks of %s: %w", w.Key().Short(), err)
		}
		if len(blocks) == 0 {
			return count, fmt.Errorf("peer returned no blocks of %s at %d", w.Key().Short(), from)
		}
		to := from + uint64(len(blocks))

		if err := db.validate(ctx, w, from, blocks); err != nil {
			return count, err
		}
		w.feed.SetRemoteLen(to)
		err = w.feed.Put(from, blocks...)
		w.unstage(from, to, false)
		if err != nil {
			return count, err
		}

		downloaded.Add(len(blocks))
		count += len(blocks)
		from = to
	}
	return count, nil
}

// validate checks the header and runs the OnRemoteEntry hook over the
// decoded entries. The blocks stay staged until they are stored.
func (db *DB) validate(ctx context.Context, w *Writer, from uint64, blocks [][]byte) error {
	for i, buf := range blocks {
		w.stage(from+uint64(i), buf)
	}

	for i, buf := range blocks {
		seq := from + uint64(i)
		if seq == 0 {
			h, err := messages.DecodeHeader(buf)
			if err == nil && h.Protocol != messages.Protocol {
				err = fmt.Errorf("%w: unknown protocol %q", messages.ErrCorrupt, h.Protocol)
			}
			if err != nil {
				w.unstage(from, from+uint64(len(blocks)), true)
				return fmt.Errorf("invalid header of %s: %w", w.Key().Short(), err)
			}
			continue
		}
		if db.opts.OnRemoteEntry == nil {
			continue
		}

		n, err := w.decode(ctx, seq, buf)
		if err == nil {
			err = db.opts.OnRemoteEntry(n)
		}
		if err != nil {
			w.unstage(from, from+uint64(len(blocks)), true)
			return fmt.Errorf("entry %d@%s rejected: %w", seq, w.Key().Short(), err)
		}
	}
	return nil
}

// Replicate pulls a into b and b into a until both hold the same data
func Replicate(ctx context.Context, a, b *DB) error {
	for {
		n1, err := a.Pull(ctx, b)
		if err != nil {
			return err
		}
		n2, err := b.Pull(ctx, a)
		if err != nil {
			return err
		}
		if n1+n2 == 0 {
			return nil
		}
	}
}
