package trie

import (
	"fmt"
	"strings"
)

// Buckets is the number of values a single trie depth can hold
const Buckets = 5

// Pointer references one entry in one writer's log
type Pointer struct {
	Feed uint64
	Seq  uint64
}

func (p Pointer) String() string {
	return fmt.Sprintf("%d@%d", p.Seq, p.Feed)
}

// Bucket is the ordered list of pointers stored under one trie slot
type Bucket []Pointer

// Trie is a sparse index: Trie[depth][value] holds pointers to prior
// entries whose hash path has value at depth. Nil levels and buckets are
// empty.
type Trie [][]Bucket

// Get returns the bucket at depth and value, or nil
func (t Trie) Get(depth int, value byte) Bucket {
	if depth >= len(t) || t[depth] == nil || int(value) >= len(t[depth]) {
		return nil
	}
	return t[depth][value]
}

// Level returns all buckets at depth, or nil
func (t Trie) Level(depth int) []Bucket {
	if depth >= len(t) {
		return nil
	}
	return t[depth]
}

// Set replaces the bucket at depth and value, growing the trie as needed
func (t Trie) Set(depth int, value byte, bucket Bucket) Trie {
	t = t.grow(depth)
	t[depth][value] = bucket
	return t
}

// Add inserts ptr at depth and value. A bucket keeps at most one pointer
// per feed: the one with the highest sequence number.
func (t Trie) Add(depth int, value byte, ptr Pointer) Trie {
	t = t.grow(depth)
	b := t[depth][value]
	for i := range b {
		if b[i].Feed == ptr.Feed {
			if ptr.Seq > b[i].Seq {
				b[i].Seq = ptr.Seq
			}
			return t
		}
	}
	t[depth][value] = append(b, ptr)
	return t
}

// Merge adds all pointers of bucket at depth and value
func (t Trie) Merge(depth int, value byte, bucket Bucket) Trie {
	for _, ptr := range bucket {
		t = t.Add(depth, value, ptr)
	}
	return t
}

func (t Trie) grow(depth int) Trie {
	for len(t) <= depth {
		t = append(t, nil)
	}
	if t[depth] == nil {
		t[depth] = make([]Bucket, Buckets)
	}
	return t
}

// Equal reports whether two tries hold the same pointers in the same order.
// Nil and empty levels or buckets are equal.
func Equal(a, b Trie) bool {
	n := max(len(a), len(b))
	for d := 0; d < n; d++ {
		for v := byte(0); v < Buckets; v++ {
			x, y := a.Get(d, v), b.Get(d, v)
			if len(x) != len(y) {
				return false
			}
			for i := range x {
				if x[i] != y[i] {
					return false
				}
			}
		}
	}
	return true
}

func (t Trie) String() string {
	var sb strings.Builder
	for d, level := range t {
		for v, b := range level {
			if len(b) == 0 {
				continue
			}
			if sb.Len() > 0 {
				sb.WriteByte(' ')
			}
			fmt.Fprintf(&sb, "%d/%d:%v", d, v, []Pointer(b))
		}
	}
	return sb.String()
}
