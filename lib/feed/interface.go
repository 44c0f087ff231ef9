package feed

import "errors"

var (
	// ErrNotFound is returned when a block is neither stored nor announced
	ErrNotFound = errors.New("block not found")

	// ErrNotWritable is returned when appending to a feed without its
	// private key
	ErrNotWritable = errors.New("feed is not writable")

	// ErrNotContiguous is returned when replicated blocks would leave a gap
	ErrNotContiguous = errors.New("blocks are not contiguous")

	// ErrClosed is returned by operations on a closed feed or store
	ErrClosed = errors.New("feed is closed")
)

// IStorage stores the blocks of a single feed
type IStorage interface {
	// Len returns the number of stored blocks
	Len() uint64

	// Get returns the block at seq or ErrNotFound
	Get(seq uint64) ([]byte, error)

	// Write stores blocks at seq, seq+1, ... atomically. seq must equal Len().
	Write(seq uint64, blocks [][]byte) error
}

// IStore opens feed storages and persists key pairs
type IStore interface {
	// Open returns the storage of the feed with the given key. Opening the
	// same key twice returns the same storage.
	Open(key Key) (IStorage, error)

	// Feeds lists all feeds holding data
	Feeds() ([]Key, error)

	// LoadKeyPair returns the key pair stored under name
	LoadKeyPair(name string) (KeyPair, bool, error)

	// SaveKeyPair stores kp under name
	SaveKeyPair(name string, kp KeyPair) error

	// Close releases all resources
	Close() error
}
