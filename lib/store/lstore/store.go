package lstore

import (
	"context"
	"time"

	"github.com/ValentinKolb/aodb/lib/aodb"
	"github.com/ValentinKolb/aodb/lib/feed"
	"github.com/ValentinKolb/aodb/lib/store"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("store")

// DefaultTimeout bounds every store operation
const DefaultTimeout = 10 * time.Second

type storeImpl struct {
	db      *aodb.DB
	timeout time.Duration
}

// NewLocalStore creates a new local store instance.
// The store works directly on the database returned by the factory.
// Every operation is bounded by timeout (DefaultTimeout if timeout <= 0).
func NewLocalStore(factory store.DBFactory, timeout time.Duration) (store.IStore, error) {
	db, err := factory()
	if err != nil {
		return nil, store.FromError(err)
	}
	return FromDB(db, timeout), nil
}

// FromDB wraps an already opened database
func FromDB(db *aodb.DB, timeout time.Duration) store.IStore {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	Logger.Debugf("serving database %s", db.Key().Short())
	return &storeImpl{
		db:      db,
		timeout: timeout,
	}
}

// ctx returns the context of a single store operation
func (s *storeImpl) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.timeout)
}

// --------------------------------------------------------------------------
// Interface Methods (docu see store/interface.go)
// --------------------------------------------------------------------------

func (s *storeImpl) Put(key string, value []byte) error {
	ctx, cancel := s.ctx()
	defer cancel()
	_, err := s.db.Put(ctx, key, value, nil)
	return store.FromError(err)
}

func (s *storeImpl) PutIfNotExists(key string, value []byte) (bool, error) {
	ctx, cancel := s.ctx()
	defer cancel()
	n, err := s.db.Put(ctx, key, value, &aodb.PutOptions{IfNotExists: true})
	if err != nil {
		return false, store.FromError(err)
	}
	return n != nil, nil
}

func (s *storeImpl) Delete(key string) error {
	ctx, cancel := s.ctx()
	defer cancel()
	_, err := s.db.Delete(ctx, key)
	return store.FromError(err)
}

func (s *storeImpl) Get(key string) ([][]byte, bool, error) {
	ctx, cancel := s.ctx()
	defer cancel()
	nodes, err := s.db.Get(ctx, key, nil)
	if err != nil {
		return nil, false, store.FromError(err)
	}
	values := valuesOf(nodes)
	return values, len(values) > 0, nil
}

func (s *storeImpl) Has(key string) (bool, error) {
	_, ok, err := s.Get(key)
	return ok, err
}

func (s *storeImpl) List(prefix string, recursive bool) ([]store.Entry, error) {
	ctx, cancel := s.ctx()
	defer cancel()
	list, err := s.db.List(ctx, prefix, &aodb.IteratorOptions{NonRecursive: !recursive})
	if err != nil {
		return nil, store.FromError(err)
	}
	entries := make([]store.Entry, 0, len(list))
	for _, nodes := range list {
		entries = append(entries, entryOf(nodes))
	}
	return entries, nil
}

func (s *storeImpl) History(key string) ([]store.Entry, error) {
	ctx, cancel := s.ctx()
	defer cancel()
	h, err := s.db.KeyHistory(ctx, key, nil)
	if err != nil {
		return nil, store.FromError(err)
	}
	groups, err := h.List(ctx)
	if err != nil {
		return nil, store.FromError(err)
	}
	entries := make([]store.Entry, 0, len(groups))
	for _, nodes := range groups {
		entries = append(entries, entryOf(nodes))
	}
	return entries, nil
}

func (s *storeImpl) Version() ([]byte, error) {
	ctx, cancel := s.ctx()
	defer cancel()
	v, err := s.db.Version(ctx)
	return v, store.FromError(err)
}

func (s *storeImpl) GetAt(version []byte, key string) ([][]byte, bool, error) {
	ctx, cancel := s.ctx()
	defer cancel()
	c, err := s.db.Checkout(ctx, version)
	if err != nil {
		return nil, false, store.FromError(err)
	}
	nodes, err := c.Get(ctx, key, nil)
	if err != nil {
		return nil, false, store.FromError(err)
	}
	values := valuesOf(nodes)
	return values, len(values) > 0, nil
}

func (s *storeImpl) Authorize(key feed.Key) error {
	ctx, cancel := s.ctx()
	defer cancel()
	_, err := s.db.Authorize(ctx, key)
	return store.FromError(err)
}

func (s *storeImpl) Authorized(key feed.Key) (bool, error) {
	ctx, cancel := s.ctx()
	defer cancel()
	ok, err := s.db.Authorized(ctx, key)
	return ok, store.FromError(err)
}

func (s *storeImpl) Feeds() ([]aodb.FeedInfo, error) {
	ctx, cancel := s.ctx()
	defer cancel()
	feeds, err := s.db.Feeds(ctx)
	return feeds, store.FromError(err)
}

func (s *storeImpl) Blocks(key feed.Key, from, to uint64) ([][]byte, error) {
	ctx, cancel := s.ctx()
	defer cancel()
	blocks, err := s.db.Blocks(ctx, key, from, to)
	return blocks, store.FromError(err)
}

func (s *storeImpl) Stats() (aodb.Stats, error) {
	ctx, cancel := s.ctx()
	defer cancel()
	stats, err := s.db.Stats(ctx)
	return stats, store.FromError(err)
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// valuesOf copies the values of nodes, callers may modify the result
func valuesOf(nodes []*aodb.Node) [][]byte {
	var values [][]byte
	for _, n := range nodes {
		if n.Deleted {
			continue
		}
		v := make([]byte, len(n.Value))
		copy(v, n.Value)
		values = append(values, v)
	}
	return values
}

func entryOf(nodes []*aodb.Node) store.Entry {
	e := store.Entry{Values: valuesOf(nodes)}
	if len(nodes) > 0 {
		e.Key = nodes[0].Key
	}
	e.Deleted = len(e.Values) == 0
	return e
}
