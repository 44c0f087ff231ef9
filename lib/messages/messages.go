package messages

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// Protocol is the tag written into the header of every log
const Protocol = "aodb"

// ErrCorrupt is returned for malformed message bytes
var ErrCorrupt = errors.New("corrupt message")

// --------------------------------------------------------------------------
// Field numbers
// --------------------------------------------------------------------------

const (
	fieldKey         protowire.Number = 1
	fieldValue       protowire.Number = 2
	fieldDeleted     protowire.Number = 3
	fieldTrie        protowire.Number = 4
	fieldClock       protowire.Number = 5
	fieldInflate     protowire.Number = 6
	fieldFeeds       protowire.Number = 7
	fieldContentFeed protowire.Number = 8
	fieldIsSchema    protowire.Number = 9
	fieldPointer     protowire.Number = 10
	fieldNoUpdate    protowire.Number = 11
	fieldPointerKey  protowire.Number = 12
	fieldSchemaKey   protowire.Number = 13

	fieldHeaderProtocol protowire.Number = 1
	fieldFeedKey        protowire.Number = 1
)

// --------------------------------------------------------------------------
// Types
// --------------------------------------------------------------------------

// Header is the record stored at sequence 0 of every log
type Header struct {
	Protocol string
}

// Entry is one record of a log as it is stored. Clock and Trie use the
// feed indices of the writing log.
type Entry struct {
	Key        string
	Value      []byte // nil if absent
	Deleted    bool
	Trie       []byte
	Clock      []uint64
	Inflate    uint64
	IsSchema   bool
	Pointer    bool
	NoUpdate   bool
	PointerKey string
	SchemaKey  string
}

// InflatedEntry is an Entry that also carries the feed table of its log:
// the public key of every writer, in the log's local index order
type InflatedEntry struct {
	Entry
	Feeds       [][]byte
	ContentFeed []byte
}

// --------------------------------------------------------------------------
// Encoding
// --------------------------------------------------------------------------

// EncodeHeader encodes h
func EncodeHeader(h Header) []byte {
	var buf []byte
	buf = protowire.AppendTag(buf, fieldHeaderProtocol, protowire.BytesType)
	buf = protowire.AppendString(buf, h.Protocol)
	return buf
}

// EncodeEntry encodes e
func EncodeEntry(e *Entry) []byte {
	return appendEntry(nil, e)
}

// EncodeInflatedEntry encodes e including its feed table
func EncodeInflatedEntry(e *InflatedEntry) []byte {
	buf := appendEntry(nil, &e.Entry)
	for _, key := range e.Feeds {
		var feed []byte
		feed = protowire.AppendTag(feed, fieldFeedKey, protowire.BytesType)
		feed = protowire.AppendBytes(feed, key)

		buf = protowire.AppendTag(buf, fieldFeeds, protowire.BytesType)
		buf = protowire.AppendBytes(buf, feed)
	}
	if e.ContentFeed != nil {
		buf = protowire.AppendTag(buf, fieldContentFeed, protowire.BytesType)
		buf = protowire.AppendBytes(buf, e.ContentFeed)
	}
	return buf
}

func appendEntry(buf []byte, e *Entry) []byte {
	buf = protowire.AppendTag(buf, fieldKey, protowire.BytesType)
	buf = protowire.AppendString(buf, e.Key)

	if e.Value != nil {
		buf = protowire.AppendTag(buf, fieldValue, protowire.BytesType)
		buf = protowire.AppendBytes(buf, e.Value)
	}
	buf = appendBool(buf, fieldDeleted, e.Deleted)

	if len(e.Trie) > 0 {
		buf = protowire.AppendTag(buf, fieldTrie, protowire.BytesType)
		buf = protowire.AppendBytes(buf, e.Trie)
	}

	if len(e.Clock) > 0 {
		var packed []byte
		for _, c := range e.Clock {
			packed = protowire.AppendVarint(packed, c)
		}
		buf = protowire.AppendTag(buf, fieldClock, protowire.BytesType)
		buf = protowire.AppendBytes(buf, packed)
	}

	if e.Inflate > 0 {
		buf = protowire.AppendTag(buf, fieldInflate, protowire.VarintType)
		buf = protowire.AppendVarint(buf, e.Inflate)
	}

	buf = appendBool(buf, fieldIsSchema, e.IsSchema)
	buf = appendBool(buf, fieldPointer, e.Pointer)
	buf = appendBool(buf, fieldNoUpdate, e.NoUpdate)

	if e.PointerKey != "" {
		buf = protowire.AppendTag(buf, fieldPointerKey, protowire.BytesType)
		buf = protowire.AppendString(buf, e.PointerKey)
	}
	if e.SchemaKey != "" {
		buf = protowire.AppendTag(buf, fieldSchemaKey, protowire.BytesType)
		buf = protowire.AppendString(buf, e.SchemaKey)
	}
	return buf
}

func appendBool(buf []byte, num protowire.Number, v bool) []byte {
	if !v {
		return buf
	}
	buf = protowire.AppendTag(buf, num, protowire.VarintType)
	return protowire.AppendVarint(buf, protowire.EncodeBool(v))
}

// --------------------------------------------------------------------------
// Decoding
// --------------------------------------------------------------------------

// DecodeHeader decodes a header record
func DecodeHeader(buf []byte) (Header, error) {
	var h Header
	err := walk(buf, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num == fieldHeaderProtocol && typ == protowire.BytesType {
			v, n := protowire.ConsumeBytes(b)
			h.Protocol = string(v)
			return n, nil
		}
		return protowire.ConsumeFieldValue(num, typ, b), nil
	})
	return h, err
}

// DecodeEntry decodes the entry fields of buf. Feed tables are skipped.
func DecodeEntry(buf []byte) (*Entry, error) {
	e := &InflatedEntry{}
	if err := decode(buf, e, false); err != nil {
		return nil, err
	}
	return &e.Entry, nil
}

// DecodeInflatedEntry decodes buf including its feed table
func DecodeInflatedEntry(buf []byte) (*InflatedEntry, error) {
	e := &InflatedEntry{}
	if err := decode(buf, e, true); err != nil {
		return nil, err
	}
	return e, nil
}

func decode(buf []byte, e *InflatedEntry, feeds bool) error {
	return walk(buf, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case typ == protowire.BytesType && num != fieldFeeds && num != fieldContentFeed:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return n, nil
			}
			switch num {
			case fieldKey:
				e.Key = string(v)
			case fieldValue:
				e.Value = append(make([]byte, 0, len(v)), v...)
			case fieldTrie:
				e.Trie = append([]byte(nil), v...)
			case fieldClock:
				clock, err := decodePacked(v)
				if err != nil {
					return 0, err
				}
				e.Clock = clock
			case fieldPointerKey:
				e.PointerKey = string(v)
			case fieldSchemaKey:
				e.SchemaKey = string(v)
			}
			return n, nil

		case typ == protowire.BytesType && feeds:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return n, nil
			}
			if num == fieldContentFeed {
				e.ContentFeed = append([]byte(nil), v...)
				return n, nil
			}
			key, err := decodeFeed(v)
			if err != nil {
				return 0, err
			}
			e.Feeds = append(e.Feeds, key)
			return n, nil

		case typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return n, nil
			}
			switch num {
			case fieldDeleted:
				e.Deleted = protowire.DecodeBool(v)
			case fieldInflate:
				e.Inflate = v
			case fieldIsSchema:
				e.IsSchema = protowire.DecodeBool(v)
			case fieldPointer:
				e.Pointer = protowire.DecodeBool(v)
			case fieldNoUpdate:
				e.NoUpdate = protowire.DecodeBool(v)
			}
			return n, nil
		}
		return protowire.ConsumeFieldValue(num, typ, b), nil
	})
}

func decodeFeed(buf []byte) ([]byte, error) {
	var key []byte
	err := walk(buf, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num == fieldFeedKey && typ == protowire.BytesType {
			v, n := protowire.ConsumeBytes(b)
			key = append([]byte(nil), v...)
			return n, nil
		}
		return protowire.ConsumeFieldValue(num, typ, b), nil
	})
	return key, err
}

func decodePacked(buf []byte) ([]uint64, error) {
	var out []uint64
	for len(buf) > 0 {
		v, n := protowire.ConsumeVarint(buf)
		if n < 0 {
			return nil, fmt.Errorf("%w: clock: %v", ErrCorrupt, protowire.ParseError(n))
		}
		out = append(out, v)
		buf = buf[n:]
	}
	return out, nil
}

// walk calls fn for every field of buf. fn returns the number of bytes it
// consumed after the tag, or a negative protowire error code.
func walk(buf []byte, fn func(num protowire.Number, typ protowire.Type, b []byte) (int, error)) error {
	for len(buf) > 0 {
		num, typ, n := protowire.ConsumeTag(buf)
		if n < 0 {
			return fmt.Errorf("%w: %v", ErrCorrupt, protowire.ParseError(n))
		}
		buf = buf[n:]

		m, err := fn(num, typ, buf)
		if err != nil {
			return err
		}
		if m < 0 {
			return fmt.Errorf("%w: field %d: %v", ErrCorrupt, num, protowire.ParseError(m))
		}
		buf = buf[m:]
	}
	return nil
}
