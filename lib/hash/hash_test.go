package hash

import (
	"bytes"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := map[string]string{
		"":        "",
		"/":       "",
		"a":       "a",
		"/a":      "a",
		"a/":      "a",
		"//a/b//": "a/b",
	}

	for in, expected := range tests {
		if got := Normalize(in); got != expected {
			t.Errorf("Normalize(%q) = %q, expected %q", in, got, expected)
		}
	}
}

func TestPathLength(t *testing.T) {
	tests := map[string]struct {
		key       string
		terminate bool
		length    int
	}{
		"empty key":             {"", false, 32},
		"empty key terminated":  {"", true, 33},
		"one segment":           {"hello", false, 32},
		"two segments":          {"a/b", true, 65},
		"three segments":        {"/a/b/c/", true, 97},
		"leading slash ignored": {"/hello", true, 33},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			path := Path(tc.key, tc.terminate)
			if len(path) != tc.length {
				t.Errorf("Expected path length %d, got %d", tc.length, len(path))
			}
			for i, v := range path {
				if i == len(path)-1 && tc.terminate {
					if v != Terminal {
						t.Errorf("Expected terminal value %d at end, got %d", Terminal, v)
					}
					continue
				}
				if v > 3 {
					t.Errorf("Path value %d at position %d out of range", v, i)
				}
			}
		})
	}
}

func TestPathDeterministic(t *testing.T) {
	a := Path("some/key", true)
	b := Path("/some/key/", true)
	if !bytes.Equal(a, b) {
		t.Errorf("Expected identical paths for equal normalized keys")
	}
}

func TestPathSharesFolderPrefix(t *testing.T) {
	parent := Path("a", false)
	child := Path("a/b", true)
	if !bytes.Equal(parent, child[:len(parent)]) {
		t.Errorf("Expected child path to start with the parent path")
	}
}

func TestPathMixesSegmentIndex(t *testing.T) {
	// same segment at different depths must hash differently
	p := Path("x/x", false)
	if bytes.Equal(p[:SegmentLength], p[SegmentLength:]) {
		t.Errorf("Expected segment index to be mixed into the hash")
	}
}

func TestKnownCollision(t *testing.T) {
	a := Path("idgcmnmna", true)
	b := Path("mpomeiehc", true)
	if !bytes.Equal(a, b) {
		t.Errorf("Expected %v and %v to collide", a, b)
	}
}

func TestHasPrefix(t *testing.T) {
	tests := []struct {
		key, prefix string
		expected    bool
	}{
		{"a", "", true},
		{"a", "a", true},
		{"a/b", "a", true},
		{"ab", "a", false},
		{"b/a", "a", false},
		{"a", "a/b", false},
	}

	for _, tc := range tests {
		if got := HasPrefix(tc.key, tc.prefix); got != tc.expected {
			t.Errorf("HasPrefix(%q, %q) = %v, expected %v", tc.key, tc.prefix, got, tc.expected)
		}
	}
}
