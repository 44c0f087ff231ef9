package aodb

import (
	"testing"
)

func TestFilterHeads(t *testing.T) {
	// a and b are concurrent, c has seen a
	a := &Node{Key: "a", Feed: 0, Seq: 1, Clock: []uint64{2, 0}}
	b := &Node{Key: "b", Feed: 1, Seq: 1, Clock: []uint64{0, 2}}
	c := &Node{Key: "c", Feed: 1, Seq: 2, Clock: []uint64{2, 3}}
	d := &Node{Key: "d", Feed: 0, Seq: 5, Clock: []uint64{6, 1}}

	tests := map[string]struct {
		nodes    []*Node
		expected []string
	}{
		"Empty":        {nodes: nil, expected: nil},
		"Single":       {nodes: []*Node{a}, expected: []string{"a"}},
		"Concurrent":   {nodes: []*Node{a, b}, expected: []string{"a", "b"}},
		"Superseded":   {nodes: []*Node{a, c}, expected: []string{"c"}},
		"SameFeed":     {nodes: []*Node{b, c}, expected: []string{"c"}},
		"Mixed":        {nodes: []*Node{a, b, c, d}, expected: []string{"c", "d"}},
		"NilIgnored":   {nodes: []*Node{nil, a}, expected: []string{"a"}},
		"ShorterClock": {nodes: []*Node{d, &Node{Key: "e", Feed: 2, Seq: 1, Clock: []uint64{0, 0, 2}}}, expected: []string{"d", "e"}},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			heads := filterHeads(tc.nodes)
			var keys []string
			for _, h := range heads {
				keys = append(keys, h.Key)
			}
			if !equalStrings(keys, tc.expected) {
				t.Errorf("Expected heads %v, got %v", tc.expected, keys)
			}
		})
	}
}

func TestSortNodes(t *testing.T) {
	a := &Node{Seq: 2, WriterKey: [32]byte{2}}
	b := &Node{Seq: 1, WriterKey: [32]byte{1}}
	c := &Node{Seq: 3, WriterKey: [32]byte{1}}

	nodes := []*Node{a, c, b}
	sortNodes(nodes)
	if nodes[0] != b || nodes[1] != c || nodes[2] != a {
		t.Errorf("Expected order by writer key then seq, got %v", nodes)
	}

	if !sameNodes([]*Node{b, c}, []*Node{b, c}) {
		t.Errorf("Expected equal lists to be the same")
	}
	if sameNodes([]*Node{b}, []*Node{c}) || sameNodes([]*Node{b}, nil) {
		t.Errorf("Expected different lists to differ")
	}
}
