package aodb

import (
	"time"

	"github.com/ValentinKolb/aodb/lib/feed"
	"github.com/ValentinKolb/aodb/lib/trie"
)

// ReduceFunc folds two concurrent nodes of the same key into one
type ReduceFunc func(a, b *Node) *Node

// MapFunc transforms a result node before it is returned
type MapFunc func(n *Node) *Node

// ReduceFirst keeps the first node. Nodes are ordered by writer key before
// they are folded, so the result is deterministic.
func ReduceFirst(a, _ *Node) *Node {
	return a
}

// Options configures a database
type Options struct {
	// Key of the database to replicate. Nil creates (or reopens) a database
	// owned by the store's source key pair.
	Key *feed.Key

	// Reduce and Map are the defaults of all reads
	Reduce ReduceFunc
	Map    MapFunc

	// WaitForUpdate makes reads on an empty replica block until the first
	// remote data arrives
	WaitForUpdate bool

	// ContentFeed is stored in the feed table of the local writer
	ContentFeed []byte

	// OnRemoteEntry validates replicated entries before they are stored.
	// Returning an error rejects the download of the writer.
	OnRemoteEntry func(n *Node) error

	// CacheSize is the number of decoded nodes cached per writer
	CacheSize int

	// Timeout bounds internal background work like watch diffs
	Timeout time.Duration
}

// DefaultOptions returns the default database options
func DefaultOptions() Options {
	return Options{
		CacheSize: 4096,
		Timeout:   10 * time.Second,
	}
}

// PutOptions are the flags of a single write
type PutOptions struct {
	// IfNotExists skips the write if the key holds a value
	IfNotExists bool

	IsSchema   bool
	Pointer    bool
	NoUpdate   bool
	PointerKey string
	SchemaKey  string
}

// OpType is the kind of a batch operation
type OpType uint8

const (
	OpPut OpType = iota + 1
	OpDelete
)

func (t OpType) String() string {
	switch t {
	case OpPut:
		return "put"
	case OpDelete:
		return "del"
	default:
		return "unknown"
	}
}

// BatchOp is one operation of a batch
type BatchOp struct {
	Type    OpType
	Key     string
	Value   []byte
	Options PutOptions
}

// GetOptions configures a lookup. Nil options use the database defaults.
type GetOptions struct {
	Reduce         ReduceFunc
	Map            MapFunc
	IncludeDeleted bool
	// OnLookup is called with every entry the lookup visits, heads first
	OnLookup func(trie.Pointer)
}

// IteratorOptions configures an iterator
type IteratorOptions struct {
	Reverse bool
	// NonRecursive yields one key per immediate child folder of the prefix
	NonRecursive bool
	// Deletes includes deleted keys
	Deletes bool
	Reduce  ReduceFunc
	Map     MapFunc
}

// HistoryOptions configures a history iterator
type HistoryOptions struct {
	Reverse bool
}

// KeyHistoryOptions configures a key history iterator
type KeyHistoryOptions struct {
	// Reverse yields the oldest versions first
	Reverse bool
}

// DiffOptions configures a differ
type DiffOptions struct {
	// Deletes includes deleted keys on both sides
	Deletes bool
}
