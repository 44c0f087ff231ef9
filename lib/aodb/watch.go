package aodb

import (
	"context"
	"sync"

	"github.com/ValentinKolb/aodb/lib/hash"
)

// Watcher calls a function whenever keys below a prefix change
type Watcher struct {
	db     *DB
	prefix string
	fn     func()

	last   *Checkout
	kick   chan struct{}
	stop   chan struct{}
	done   chan struct{}
	cancel func()
	once   sync.Once
}

// Watch calls fn after local or replicated writes changed a key below
// prefix. Changes are detected by diffing snapshots, so several writes may
// result in one call. fn runs on the watcher's goroutine.
func (db *DB) Watch(ctx context.Context, prefix string, fn func()) (*Watcher, error) {
	last, err := db.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		db:     db,
		prefix: hash.Normalize(prefix),
		fn:     fn,
		last:   last,
		kick:   make(chan struct{}, 1),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	w.cancel = db.Subscribe(func(Event) {
		select {
		case w.kick <- struct{}{}:
		default:
		}
	})

	go w.run()
	return w, nil
}

// Close stops the watcher and waits for a running callback to return
func (w *Watcher) Close() {
	w.once.Do(func() {
		w.cancel()
		close(w.stop)
	})
	<-w.done
}

func (w *Watcher) run() {
	defer close(w.done)
	for {
		select {
		case <-w.stop:
			return
		case <-w.db.closed:
			return
		case <-w.kick:
		}

		changed, err := w.check()
		if err != nil {
			Logger.Warningf("watch %q: %v", w.prefix, err)
			continue
		}
		if changed {
			w.fn()
		}
	}
}

// check diffs a new snapshot against the previous one
func (w *Watcher) check() (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), w.db.opts.Timeout)
	defer cancel()

	next, err := w.db.Snapshot(ctx)
	if err != nil {
		return false, err
	}
	diff, err := next.Diff(w.last, w.prefix, &DiffOptions{Deletes: true}).Next(ctx)
	if err != nil {
		return false, err
	}
	w.last = next
	return diff != nil, nil
}
