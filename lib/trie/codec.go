package trie

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

var (
	// ErrMissingFeedMappings is returned when an encoded trie references a
	// feed index the decode map does not know
	ErrMissingFeedMappings = errors.New("missing feed mappings")

	// ErrCorrupt is returned for malformed trie bytes
	ErrCorrupt = errors.New("corrupt trie")
)

// maxDepth bounds decoded depths, far above any real key
const maxDepth = 1 << 16

// Encode serializes t. Every populated depth is written as
// varint(depth), varint(bucket bitfield), followed by the pointers of each
// populated bucket. A pointer is varint(feed<<1 | more) and varint(seq),
// where more is set if another pointer of the same bucket follows.
// Feed indices are translated through feedMap; indices beyond the map are
// written unchanged. Decode rejects a stored index its own map does not
// cover, so such bytes only decode once the reader's map is wide enough.
// Writers inflate a feed table listing every feed they point to before
// encoding against it.
func Encode(t Trie, feedMap []uint64) []byte {
	var buf []byte

	for depth, level := range t {
		var bits uint64
		for v, b := range level {
			if len(b) > 0 {
				bits |= 1 << v
			}
		}
		if bits == 0 {
			continue
		}

		buf = protowire.AppendVarint(buf, uint64(depth))
		buf = protowire.AppendVarint(buf, bits)

		for _, b := range level {
			for i, ptr := range b {
				feed := ptr.Feed
				if feed < uint64(len(feedMap)) {
					feed = feedMap[feed]
				}
				var more uint64
				if i < len(b)-1 {
					more = 1
				}
				buf = protowire.AppendVarint(buf, feed<<1|more)
				buf = protowire.AppendVarint(buf, ptr.Seq)
			}
		}
	}

	return buf
}

// Decode is the inverse of Encode. Stored feed indices are translated
// through feedMap; an index beyond the map fails with
// ErrMissingFeedMappings.
func Decode(buf []byte, feedMap []uint64) (Trie, error) {
	var t Trie

	next := func() (uint64, error) {
		v, n := protowire.ConsumeVarint(buf)
		if n < 0 {
			return 0, fmt.Errorf("%w: %v", ErrCorrupt, protowire.ParseError(n))
		}
		buf = buf[n:]
		return v, nil
	}

	for len(buf) > 0 {
		depth, err := next()
		if err != nil {
			return nil, err
		}
		if depth > maxDepth || (len(t) > 0 && int(depth) < len(t)) {
			return nil, fmt.Errorf("%w: unexpected depth %d", ErrCorrupt, depth)
		}
		bits, err := next()
		if err != nil {
			return nil, err
		}
		if bits == 0 || bits>>Buckets != 0 {
			return nil, fmt.Errorf("%w: invalid bucket bitfield %b", ErrCorrupt, bits)
		}

		t = t.grow(int(depth))
		for v := byte(0); v < Buckets; v++ {
			if bits&(1<<v) == 0 {
				continue
			}
			var b Bucket
			for {
				feed, err := next()
				if err != nil {
					return nil, err
				}
				seq, err := next()
				if err != nil {
					return nil, err
				}
				stored := feed >> 1
				if stored >= uint64(len(feedMap)) {
					return nil, fmt.Errorf("%w: feed %d", ErrMissingFeedMappings, stored)
				}
				b = append(b, Pointer{Feed: feedMap[stored], Seq: seq})
				if feed&1 == 0 {
					break
				}
			}
			t[depth][v] = b
		}
	}

	return t, nil
}
