package messages

import (
	"bytes"
	"errors"
	"reflect"
	"testing"
)

func TestHeader(t *testing.T) {
	h, err := DecodeHeader(EncodeHeader(Header{Protocol: Protocol}))
	if err != nil {
		t.Fatalf("DecodeHeader failed: %v", err)
	}
	if h.Protocol != Protocol {
		t.Errorf("Expected protocol %q, got %q", Protocol, h.Protocol)
	}
}

func TestEntry(t *testing.T) {
	tests := map[string]Entry{
		"minimal":     {Key: "a", Clock: []uint64{1}},
		"empty key":   {Key: "", Clock: []uint64{0, 4}},
		"empty value": {Key: "a", Value: []byte{}, Clock: []uint64{2}},
		"deleted":     {Key: "hello", Deleted: true, Clock: []uint64{3, 0, 1}, Inflate: 1},
		"all fields": {
			Key:        "a/b/c",
			Value:      []byte("value"),
			Trie:       []byte{0, 1, 0, 0},
			Clock:      []uint64{300, 1, 0, 1 << 33},
			Inflate:    12,
			IsSchema:   true,
			Pointer:    true,
			NoUpdate:   true,
			PointerKey: "ptr/key",
			SchemaKey:  "schema/*",
		},
	}

	for name, e := range tests {
		t.Run(name, func(t *testing.T) {
			decoded, err := DecodeEntry(EncodeEntry(&e))
			if err != nil {
				t.Fatalf("DecodeEntry failed: %v", err)
			}
			if !reflect.DeepEqual(*decoded, e) {
				t.Errorf("Entry doesn't match after round trip:\nOriginal: %+v\nResult:   %+v", e, *decoded)
			}
		})
	}
}

func TestValuePresence(t *testing.T) {
	absent, _ := DecodeEntry(EncodeEntry(&Entry{Key: "a"}))
	if absent.Value != nil {
		t.Errorf("Expected absent value, got %v", absent.Value)
	}

	empty, _ := DecodeEntry(EncodeEntry(&Entry{Key: "a", Value: []byte{}}))
	if empty.Value == nil || len(empty.Value) != 0 {
		t.Errorf("Expected empty value, got %v", empty.Value)
	}
}

func TestInflatedEntry(t *testing.T) {
	e := &InflatedEntry{
		Entry:       Entry{Key: "", Clock: []uint64{2, 1}, Inflate: 1},
		Feeds:       [][]byte{bytes.Repeat([]byte{1}, 32), bytes.Repeat([]byte{2}, 32)},
		ContentFeed: bytes.Repeat([]byte{3}, 32),
	}
	buf := EncodeInflatedEntry(e)

	decoded, err := DecodeInflatedEntry(buf)
	if err != nil {
		t.Fatalf("DecodeInflatedEntry failed: %v", err)
	}
	if !reflect.DeepEqual(decoded, e) {
		t.Errorf("InflatedEntry doesn't match after round trip:\nOriginal: %+v\nResult:   %+v", e, decoded)
	}

	// the plain decoder ignores the feed table
	plain, err := DecodeEntry(buf)
	if err != nil {
		t.Fatalf("DecodeEntry failed: %v", err)
	}
	if !reflect.DeepEqual(*plain, e.Entry) {
		t.Errorf("Expected %+v, got %+v", e.Entry, *plain)
	}
}

func TestDecodeCorrupt(t *testing.T) {
	valid := EncodeEntry(&Entry{Key: "hello", Value: []byte("world"), Clock: []uint64{1}})

	tests := map[string][]byte{
		"truncated":     valid[:len(valid)-2],
		"invalid tag":   {0x00},
		"bad length":    {0x0a, 0x7f, 'a'},
		"bad clock":     {0x2a, 0x01, 0x80},
		"truncated tag": {0x80},
	}

	for name, buf := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := DecodeEntry(buf); !errors.Is(err, ErrCorrupt) {
				t.Errorf("Expected ErrCorrupt, got %v", err)
			}
		})
	}
}
