package aodb

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/ValentinKolb/aodb/lib/feed"
	"github.com/ValentinKolb/aodb/lib/trie"
)

// Node is a decoded entry. Clock and Trie use the feed indices of the
// database that decoded it. Nodes are shared and must not be modified.
type Node struct {
	Key     string
	Value   []byte
	Deleted bool

	Seq       uint64
	Feed      int
	WriterKey feed.Key

	Clock   []uint64
	Trie    trie.Trie
	Path    []byte
	Inflate uint64

	IsSchema    bool
	Pointer     bool
	NoUpdate    bool
	PointerKey  string
	SchemaKey   string
	ContentFeed []byte
}

func (n *Node) String() string {
	return fmt.Sprintf("Node{key=%q value=%q deleted=%v seq=%d feed=%d clock=%v}",
		n.Key, n.Value, n.Deleted, n.Seq, n.Feed, n.Clock)
}

// ptr returns the trie pointer referencing n
func (n *Node) ptr() trie.Pointer {
	return trie.Pointer{Feed: uint64(n.Feed), Seq: n.Seq}
}

// pathAt returns the path value at depth, or a value matching nothing past
// the end of the path
func (n *Node) pathAt(depth int) byte {
	if depth < len(n.Path) {
		return n.Path[depth]
	}
	return 0xff
}

// clockAt returns clock[i], treating missing slots as zero
func clockAt(clock []uint64, i int) uint64 {
	if i < len(clock) {
		return clock[i]
	}
	return 0
}

// isHead reports whether no other node of list has seen node
func isHead(node *Node, list []*Node) bool {
	if node == nil {
		return false
	}
	clock := node.Seq + 1
	for _, other := range list {
		if other == nil || other == node {
			continue
		}
		if clockAt(other.Clock, node.Feed) >= clock {
			return false
		}
	}
	return true
}

// filterHeads returns the nodes of list that no other node has seen
func filterHeads(list []*Node) []*Node {
	heads := make([]*Node, 0, len(list))
	for _, n := range list {
		if isHead(n, list) {
			heads = append(heads, n)
		}
	}
	return heads
}

// sortNodes orders nodes by writer key, then sequence number, so that
// results do not depend on the local feed index order
func sortNodes(nodes []*Node) {
	sort.Slice(nodes, func(i, j int) bool {
		if c := bytes.Compare(nodes[i].WriterKey[:], nodes[j].WriterKey[:]); c != 0 {
			return c < 0
		}
		return nodes[i].Seq < nodes[j].Seq
	})
}

// sameNodes reports whether a and b reference the same entries
func sameNodes(a, b []*Node) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].WriterKey != b[i].WriterKey || a[i].Seq != b[i].Seq {
			return false
		}
	}
	return true
}

// nodeSet collects nodes without duplicates, keeping insertion order
type nodeSet struct {
	seen  map[trie.Pointer]bool
	nodes []*Node
}

func (s *nodeSet) add(n *Node) bool {
	if s.seen == nil {
		s.seen = make(map[trie.Pointer]bool)
	}
	p := n.ptr()
	if s.seen[p] {
		return false
	}
	s.seen[p] = true
	s.nodes = append(s.nodes, n)
	return true
}

func (s *nodeSet) has(p trie.Pointer) bool {
	return s.seen[p]
}
