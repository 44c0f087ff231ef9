package util

import (
	"reflect"
	"strings"
	"testing"
)

func TestWrapString(t *testing.T) {
	tests := map[string]struct {
		in string
	}{
		"short":     {in: "fits on one line"},
		"long":      {in: strings.Repeat("word ", 40)},
		"long word": {in: strings.Repeat("x", Wrap+10) + " tail"},
		"empty":     {in: ""},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			out := WrapString(tc.in)
			for _, line := range strings.Split(out, "\n") {
				// a single word longer than Wrap is kept on its own line
				if len(line) > Wrap && strings.Contains(line, " ") {
					t.Errorf("line %q is longer than %d", line, Wrap)
				}
			}
			if strings.Join(strings.Fields(out), " ") != strings.Join(strings.Fields(tc.in), " ") {
				t.Errorf("wrapping changed the words of %q", tc.in)
			}
		})
	}
}

func TestSplitList(t *testing.T) {
	tests := map[string]struct {
		in   string
		want []string
	}{
		"single":   {in: "a", want: []string{"a"}},
		"multiple": {in: "a,b,c", want: []string{"a", "b", "c"}},
		"spaces":   {in: " a , b ", want: []string{"a", "b"}},
		"empty":    {in: "", want: nil},
		"trailing": {in: "a,", want: []string{"a"}},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			if got := SplitList(tc.in); !reflect.DeepEqual(got, tc.want) {
				t.Errorf("SplitList(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}
