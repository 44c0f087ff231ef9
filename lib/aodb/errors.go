package aodb

import (
	"errors"

	"github.com/ValentinKolb/aodb/lib/messages"
	"github.com/ValentinKolb/aodb/lib/trie"
)

var (
	// ErrInvalidVersion is returned by Checkout for tokens referencing
	// unknown writers or malformed tokens
	ErrInvalidVersion = errors.New("invalid version")

	// ErrClosed is returned by operations on a closed database
	ErrClosed = errors.New("database is closed")

	// ErrUnknownWriter is returned when a peer asks for a writer that is
	// not known or not authorized
	ErrUnknownWriter = errors.New("unknown writer")

	// ErrInvalidOp is returned for batch operations of unknown type
	ErrInvalidOp = errors.New("invalid batch operation")

	// ErrMissingFeedMappings is returned when an entry references a feed
	// its log never declared
	ErrMissingFeedMappings = trie.ErrMissingFeedMappings
)

// IsCorruption reports whether err signals damaged or inconsistent stored
// data, as opposed to a missing key or a transient failure
func IsCorruption(err error) bool {
	return errors.Is(err, messages.ErrCorrupt) ||
		errors.Is(err, trie.ErrCorrupt) ||
		errors.Is(err, trie.ErrMissingFeedMappings)
}
