package feed

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var Logger = logger.GetLogger("feed")

// Event is emitted to subscribers when a feed changes
type Event int

const (
	// EventAppend is emitted after blocks were appended locally
	EventAppend Event = iota + 1

	// EventRemoteUpdate is emitted after replicated blocks were stored
	EventRemoteUpdate
)

func (e Event) String() string {
	switch e {
	case EventAppend:
		return "append"
	case EventRemoteUpdate:
		return "remote-update"
	default:
		return fmt.Sprintf("event(%d)", int(e))
	}
}

// Feed is a single writer append-only log with random access by sequence
// number. Only the owner of the private key can append; replicas receive
// blocks through Put.
type Feed struct {
	key      Key
	writable bool
	storage  IStorage

	mu        sync.Mutex
	length    uint64
	remoteLen uint64
	wait      chan struct{} // closed and replaced whenever length grows
	closed    bool

	observers *xsync.MapOf[uint64, func(Event)]
	nextID    atomic.Uint64
}

// New creates a feed over storage. The feed is writable if writable is set,
// which requires the caller to hold the private key of the feed.
func New(key Key, storage IStorage, writable bool) *Feed {
	return &Feed{
		key:       key,
		writable:  writable,
		storage:   storage,
		length:    storage.Len(),
		wait:      make(chan struct{}),
		observers: xsync.NewMapOf[uint64, func(Event)](),
	}
}

// Open opens the feed with the given key from store
func Open(store IStore, key Key, writable bool) (*Feed, error) {
	storage, err := store.Open(key)
	if err != nil {
		return nil, fmt.Errorf("failed to open feed %s: %w", key.Short(), err)
	}
	return New(key, storage, writable), nil
}

// Key returns the public key of the feed
func (f *Feed) Key() Key { return f.key }

// Writable reports whether blocks can be appended
func (f *Feed) Writable() bool { return f.writable }

// Len returns the number of locally stored blocks
func (f *Feed) Len() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.length
}

// RemoteLen returns the number of blocks known to exist on remote peers
func (f *Feed) RemoteLen() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.remoteLen
}

// SetRemoteLen announces that a peer holds n blocks. Reads below n wait for
// the blocks to arrive instead of failing.
func (f *Feed) SetRemoteLen(n uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if n > f.remoteLen {
		f.remoteLen = n
	}
}

// Get returns the block at seq. If the block is announced but not yet
// stored, Get waits until it arrives or ctx is done.
func (f *Feed) Get(ctx context.Context, seq uint64) ([]byte, error) {
	for {
		f.mu.Lock()
		if f.closed {
			f.mu.Unlock()
			return nil, ErrClosed
		}
		if seq < f.length {
			f.mu.Unlock()
			return f.storage.Get(seq)
		}
		if seq >= f.remoteLen {
			f.mu.Unlock()
			return nil, fmt.Errorf("%w: %d in feed %s", ErrNotFound, seq, f.key.Short())
		}
		wait := f.wait
		f.mu.Unlock()

		select {
		case <-wait:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Append appends blocks atomically and returns the sequence number of the
// first one
func (f *Feed) Append(blocks ...[]byte) (uint64, error) {
	if !f.writable {
		return 0, ErrNotWritable
	}

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return 0, ErrClosed
	}
	seq := f.length
	if err := f.storage.Write(seq, blocks); err != nil {
		f.mu.Unlock()
		return 0, fmt.Errorf("failed to append to feed %s: %w", f.key.Short(), err)
	}
	f.grow(uint64(len(blocks)))
	f.mu.Unlock()

	f.emit(EventAppend)
	return seq, nil
}

// Put stores replicated blocks starting at seq. Blocks already stored are
// skipped; a gap fails with ErrNotContiguous.
func (f *Feed) Put(seq uint64, blocks ...[]byte) error {
	if f.writable {
		return ErrNotWritable
	}

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return ErrClosed
	}
	if seq > f.length {
		f.mu.Unlock()
		return fmt.Errorf("%w: got %d, have %d", ErrNotContiguous, seq, f.length)
	}
	skip := f.length - seq
	if skip >= uint64(len(blocks)) {
		f.mu.Unlock()
		return nil
	}
	blocks = blocks[skip:]
	if err := f.storage.Write(f.length, blocks); err != nil {
		f.mu.Unlock()
		return fmt.Errorf("failed to store blocks of feed %s: %w", f.key.Short(), err)
	}
	f.grow(uint64(len(blocks)))
	f.mu.Unlock()

	f.emit(EventRemoteUpdate)
	return nil
}

// grow must be called with f.mu held
func (f *Feed) grow(n uint64) {
	f.length += n
	if f.remoteLen < f.length {
		f.remoteLen = f.length
	}
	close(f.wait)
	f.wait = make(chan struct{})
}

// Subscribe registers fn for all future events. Observers run
// synchronously on the goroutine that changed the feed.
func (f *Feed) Subscribe(fn func(Event)) (cancel func()) {
	id := f.nextID.Add(1)
	f.observers.Store(id, fn)
	return func() { f.observers.Delete(id) }
}

func (f *Feed) emit(e Event) {
	f.observers.Range(func(_ uint64, fn func(Event)) bool {
		fn(e)
		return true
	})
}

// Close wakes all waiting readers. Further operations fail with ErrClosed.
func (f *Feed) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil
	}
	f.closed = true
	close(f.wait)
	return nil
}
