package feed

import (
	"fmt"
	"sync"
)

// --------------------------------------------------------------------------
// Memory Store
// --------------------------------------------------------------------------

type memoryStore struct {
	mu       sync.Mutex
	feeds    map[Key]*memoryStorage
	keyPairs map[string]KeyPair
	closed   bool
}

// NewMemoryStore returns a store keeping all data in memory. Feeds opened
// twice share their blocks, so a database can be reopened on the same store.
func NewMemoryStore() IStore {
	return &memoryStore{
		feeds:    make(map[Key]*memoryStorage),
		keyPairs: make(map[string]KeyPair),
	}
}

func (s *memoryStore) Open(key Key) (IStorage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	st, ok := s.feeds[key]
	if !ok {
		st = &memoryStorage{}
		s.feeds[key] = st
	}
	return st, nil
}

func (s *memoryStore) Feeds() ([]Key, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]Key, 0, len(s.feeds))
	for k, st := range s.feeds {
		if st.Len() > 0 {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

func (s *memoryStore) LoadKeyPair(name string) (KeyPair, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kp, ok := s.keyPairs[name]
	return kp, ok, nil
}

func (s *memoryStore) SaveKeyPair(name string, kp KeyPair) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keyPairs[name] = kp
	return nil
}

func (s *memoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// --------------------------------------------------------------------------
// Memory Storage
// --------------------------------------------------------------------------

type memoryStorage struct {
	mu     sync.RWMutex
	blocks [][]byte
}

func (m *memoryStorage) Len() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return uint64(len(m.blocks))
}

func (m *memoryStorage) Get(seq uint64) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if seq >= uint64(len(m.blocks)) {
		return nil, fmt.Errorf("%w: %d", ErrNotFound, seq)
	}
	return m.blocks[seq], nil
}

func (m *memoryStorage) Write(seq uint64, blocks [][]byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if seq != uint64(len(m.blocks)) {
		return fmt.Errorf("%w: write at %d, length %d", ErrNotContiguous, seq, len(m.blocks))
	}
	for _, b := range blocks {
		m.blocks = append(m.blocks, append([]byte(nil), b...))
	}
	return nil
}
