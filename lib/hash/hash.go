package hash

import (
	"strings"

	"github.com/dchest/siphash"
)

const (
	// Terminal is the path value appended to a terminated path. It never
	// occurs inside a segment, so it marks the end of a key in the trie.
	Terminal byte = 4

	// Buckets is the number of distinct path values (0..3 plus Terminal)
	Buckets = 5

	// SegmentLength is the number of path values produced per key segment
	SegmentLength = 32
)

// Normalize strips leading and trailing slashes from a key
func Normalize(key string) string {
	return strings.Trim(key, "/")
}

// Split returns the segments of a normalized key. The empty key has one
// empty segment.
func Split(key string) []string {
	return strings.Split(Normalize(key), "/")
}

// Path maps a key to its hash path. Every segment is hashed with
// SipHash-2-4 keyed by the segment index and expanded into 32 two bit
// values, least significant bits first. If terminate is set, Terminal is
// appended.
func Path(key string, terminate bool) []byte {
	segments := Split(key)

	n := len(segments) * SegmentLength
	if terminate {
		n++
	}
	path := make([]byte, 0, n)

	for i, seg := range segments {
		path = appendSegment(path, i, seg)
	}

	if terminate {
		path = append(path, Terminal)
	}
	return path
}

// appendSegment appends the expanded hash of one segment to path
func appendSegment(path []byte, index int, segment string) []byte {
	h := siphash.Hash(uint64(index), 0, []byte(segment))
	for pos := 0; pos < SegmentLength; pos++ {
		path = append(path, byte(h>>(2*pos))&3)
	}
	return path
}

// HasPrefix reports whether key equals prefix or lies below it in the
// key hierarchy. Both arguments must be normalized.
func HasPrefix(key, prefix string) bool {
	if prefix == "" || key == prefix {
		return true
	}
	return strings.HasPrefix(key, prefix) && key[len(prefix)] == '/'
}
