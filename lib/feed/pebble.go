package feed

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/cockroachdb/pebble"
)

// key prefixes of the pebble store
const (
	prefixBlock   byte = 'b' // 'b' + discovery key + seq -> block
	prefixFeed    byte = 'f' // 'f' + key -> length
	prefixKeyPair byte = 'k' // 'k' + name -> private key
)

// --------------------------------------------------------------------------
// Pebble Store
// --------------------------------------------------------------------------

type pebbleStore struct {
	db *pebble.DB

	mu       sync.Mutex
	storages map[Key]*pebbleStorage
}

// NewPebbleStore opens (or creates) a persistent store in dir
func NewPebbleStore(dir string) (IStore, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open pebble database: %w", err)
	}
	Logger.Debugf("opened pebble store at %s", dir)
	return &pebbleStore{
		db:       db,
		storages: make(map[Key]*pebbleStorage),
	}, nil
}

func (s *pebbleStore) Open(key Key) (IStorage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if st, ok := s.storages[key]; ok {
		return st, nil
	}

	st := &pebbleStorage{
		db:     s.db,
		key:    key,
		prefix: append([]byte{prefixBlock}, DiscoveryKey(key)...),
	}

	value, closer, err := s.db.Get(feedKey(key))
	switch {
	case errors.Is(err, pebble.ErrNotFound):
	case err != nil:
		return nil, fmt.Errorf("failed to read feed length: %w", err)
	default:
		st.length.Store(binary.BigEndian.Uint64(value))
		closer.Close()
	}

	s.storages[key] = st
	return st, nil
}

func (s *pebbleStore) Feeds() ([]Key, error) {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte{prefixFeed},
		UpperBound: []byte{prefixFeed + 1},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create iterator: %w", err)
	}
	defer iter.Close()

	var keys []Key
	for iter.First(); iter.Valid(); iter.Next() {
		k, err := KeyFromBytes(iter.Key()[1:])
		if err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, iter.Error()
}

func (s *pebbleStore) LoadKeyPair(name string) (KeyPair, bool, error) {
	value, closer, err := s.db.Get(append([]byte{prefixKeyPair}, name...))
	if errors.Is(err, pebble.ErrNotFound) {
		return KeyPair{}, false, nil
	}
	if err != nil {
		return KeyPair{}, false, fmt.Errorf("failed to load key pair %q: %w", name, err)
	}
	defer closer.Close()

	kp, err := KeyPairFromPrivate(value)
	if err != nil {
		return KeyPair{}, false, err
	}
	return kp, true, nil
}

func (s *pebbleStore) SaveKeyPair(name string, kp KeyPair) error {
	return s.db.Set(append([]byte{prefixKeyPair}, name...), kp.Private, pebble.Sync)
}

func (s *pebbleStore) Close() error {
	return s.db.Close()
}

// --------------------------------------------------------------------------
// Pebble Storage
// --------------------------------------------------------------------------

type pebbleStorage struct {
	db     *pebble.DB
	key    Key
	prefix []byte
	length atomic.Uint64
}

func (p *pebbleStorage) Len() uint64 {
	return p.length.Load()
}

func (p *pebbleStorage) Get(seq uint64) ([]byte, error) {
	value, closer, err := p.db.Get(p.blockKey(seq))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, fmt.Errorf("%w: %d", ErrNotFound, seq)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read block %d: %w", seq, err)
	}
	defer closer.Close()
	return append([]byte(nil), value...), nil
}

func (p *pebbleStorage) Write(seq uint64, blocks [][]byte) error {
	if seq != p.length.Load() {
		return fmt.Errorf("%w: write at %d, length %d", ErrNotContiguous, seq, p.length.Load())
	}

	batch := p.db.NewBatch()
	defer batch.Close()

	for i, b := range blocks {
		if err := batch.Set(p.blockKey(seq+uint64(i)), b, nil); err != nil {
			return err
		}
	}

	length := seq + uint64(len(blocks))
	if err := batch.Set(feedKey(p.key), binary.BigEndian.AppendUint64(nil, length), nil); err != nil {
		return err
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("failed to commit blocks: %w", err)
	}

	p.length.Store(length)
	return nil
}

func (p *pebbleStorage) blockKey(seq uint64) []byte {
	k := make([]byte, len(p.prefix), len(p.prefix)+8)
	copy(k, p.prefix)
	return binary.BigEndian.AppendUint64(k, seq)
}

func feedKey(key Key) []byte {
	return append([]byte{prefixFeed}, key[:]...)
}
