package common

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ValentinKolb/aodb/lib/store"
)

// --------------------------------------------------------------------------
// Message Structure
// --------------------------------------------------------------------------

// Message represents a single message used for both requests and responses.
// Which fields are used depends on the type of message.
type Message struct {
	// Type of message
	MsgType MessageType `json:"msg_type"`

	// General fields
	Key       string   `json:"key,omitempty"`       // Used for: all key operations, Authorize, Blocks, Acquire, Release
	Value     []byte   `json:"value,omitempty"`     // Used for: Put (request), Acquire (response), Release (request)
	Values    [][]byte `json:"values,omitempty"`    // Used for: Get, GetAt (response), Blocks (response)
	Version   []byte   `json:"version,omitempty"`   // Used for: Version (response), GetAt (request)
	From      uint64   `json:"from,omitempty"`      // Used for: Blocks
	To        uint64   `json:"to,omitempty"`        // Used for: Blocks
	Timeout   uint64   `json:"timeout,omitempty"`   // Used for: Acquire
	Recursive bool     `json:"recursive,omitempty"` // Used for: List
	Entries   []Entry  `json:"entries,omitempty"`   // Used for: List, History, Feeds (responses)

	// Response only fields
	Ok   bool          `json:"ok,omitempty"`   // Used for: PutIfNotExists, Get, Has, GetAt, Authorized, Acquire, Release responses
	Err  string        `json:"err,omitempty"`  // Empty if no error, otherwise contains the error message
	Code store.RetCode `json:"code,omitempty"` // Return code of the error

	// Meta information
	Meta []byte `json:"meta,omitempty"` // Used for: Stats (json), custom Adapters
}

// Entry is one element of a listing, a key history or a feed list
type Entry struct {
	Key     string   `json:"key"`
	Values  [][]byte `json:"values,omitempty"`
	Deleted bool     `json:"deleted,omitempty"`
	Length  uint64   `json:"length,omitempty"`
}

// Error returns the error carried by a response, nil if there is none.
// The error is always a *store.Error.
func (m *Message) Error() error {
	if m.Err == "" {
		return nil
	}
	code := m.Code
	if code == store.RetCSuccess {
		code = store.RetCInternalError
	}
	return store.NewError(code, m.Err)
}

// setErr stores err in a response
func (m *Message) setErr(err error) *Message {
	if err == nil {
		return m
	}
	var storeErr *store.Error
	if errors.As(err, &storeErr) {
		m.Err = storeErr.Msg
		m.Code = storeErr.Code
	} else {
		m.Err = err.Error()
		m.Code = store.RetCInternalError
	}
	return m
}

// --------------------------------------------------------------------------
// Message Factory Functions
// --------------------------------------------------------------------------

// NewPutRequest creates a new Put request
func NewPutRequest(key string, value []byte) *Message {
	if value == nil {
		value = []byte{}
	}
	return &Message{
		MsgType: MsgTKVPut,
		Key:     key,
		Value:   value,
	}
}

// NewPutResponse creates a new Put response
func NewPutResponse(err error) *Message {
	return (&Message{MsgType: MsgTKVPut}).setErr(err)
}

// NewPutIfNotExistsRequest creates a new PutIfNotExists request
func NewPutIfNotExistsRequest(key string, value []byte) *Message {
	msg := NewPutRequest(key, value)
	msg.MsgType = MsgTKVPutIfNotExists
	return msg
}

// NewPutIfNotExistsResponse creates a new PutIfNotExists response
func NewPutIfNotExistsResponse(written bool, err error) *Message {
	return (&Message{MsgType: MsgTKVPutIfNotExists, Ok: written}).setErr(err)
}

// NewDeleteRequest creates a new Delete request
func NewDeleteRequest(key string) *Message {
	return &Message{
		MsgType: MsgTKVDelete,
		Key:     key,
	}
}

// NewDeleteResponse creates a new Delete response
func NewDeleteResponse(err error) *Message {
	return (&Message{MsgType: MsgTKVDelete}).setErr(err)
}

// NewGetRequest creates a new Get request
func NewGetRequest(key string) *Message {
	return &Message{
		MsgType: MsgTKVGet,
		Key:     key,
	}
}

// NewGetResponse creates a new Get response
func NewGetResponse(values [][]byte, ok bool, err error) *Message {
	return (&Message{MsgType: MsgTKVGet, Values: values, Ok: ok}).setErr(err)
}

// NewHasRequest creates a new Has request
func NewHasRequest(key string) *Message {
	return &Message{
		MsgType: MsgTKVHas,
		Key:     key,
	}
}

// NewHasResponse creates a new Has response
func NewHasResponse(ok bool, err error) *Message {
	return (&Message{MsgType: MsgTKVHas, Ok: ok}).setErr(err)
}

// NewListRequest creates a new List request
func NewListRequest(prefix string, recursive bool) *Message {
	return &Message{
		MsgType:   MsgTKVList,
		Key:       prefix,
		Recursive: recursive,
	}
}

// NewListResponse creates a new List response
func NewListResponse(entries []store.Entry, err error) *Message {
	return (&Message{MsgType: MsgTKVList, Entries: FromStoreEntries(entries)}).setErr(err)
}

// NewHistoryRequest creates a new History request
func NewHistoryRequest(key string) *Message {
	return &Message{
		MsgType: MsgTKVHistory,
		Key:     key,
	}
}

// NewHistoryResponse creates a new History response
func NewHistoryResponse(entries []store.Entry, err error) *Message {
	return (&Message{MsgType: MsgTKVHistory, Entries: FromStoreEntries(entries)}).setErr(err)
}

// NewVersionRequest creates a new Version request
func NewVersionRequest() *Message {
	return &Message{MsgType: MsgTKVVersion}
}

// NewVersionResponse creates a new Version response
func NewVersionResponse(version []byte, err error) *Message {
	return (&Message{MsgType: MsgTKVVersion, Version: version}).setErr(err)
}

// NewGetAtRequest creates a new GetAt request
func NewGetAtRequest(version []byte, key string) *Message {
	if version == nil {
		version = []byte{}
	}
	return &Message{
		MsgType: MsgTKVGetAt,
		Key:     key,
		Version: version,
	}
}

// NewGetAtResponse creates a new GetAt response
func NewGetAtResponse(values [][]byte, ok bool, err error) *Message {
	return (&Message{MsgType: MsgTKVGetAt, Values: values, Ok: ok}).setErr(err)
}

// NewAuthorizeRequest creates a new Authorize request. The writer key is hex encoded.
func NewAuthorizeRequest(writer string) *Message {
	return &Message{
		MsgType: MsgTKVAuthorize,
		Key:     writer,
	}
}

// NewAuthorizeResponse creates a new Authorize response
func NewAuthorizeResponse(err error) *Message {
	return (&Message{MsgType: MsgTKVAuthorize}).setErr(err)
}

// NewAuthorizedRequest creates a new Authorized request. The writer key is hex encoded.
func NewAuthorizedRequest(writer string) *Message {
	return &Message{
		MsgType: MsgTKVAuthorized,
		Key:     writer,
	}
}

// NewAuthorizedResponse creates a new Authorized response
func NewAuthorizedResponse(ok bool, err error) *Message {
	return (&Message{MsgType: MsgTKVAuthorized, Ok: ok}).setErr(err)
}

// NewStatsRequest creates a new Stats request
func NewStatsRequest() *Message {
	return &Message{MsgType: MsgTKVStats}
}

// NewStatsResponse creates a new Stats response, the stats travel as json in Meta
func NewStatsResponse(stats []byte, err error) *Message {
	return (&Message{MsgType: MsgTKVStats, Meta: stats}).setErr(err)
}

// NewFeedsRequest creates a new Feeds request
func NewFeedsRequest() *Message {
	return &Message{MsgType: MsgTREPFeeds}
}

// NewFeedsResponse creates a new Feeds response. Each entry carries the hex
// encoded writer key and its length.
func NewFeedsResponse(entries []Entry, err error) *Message {
	return (&Message{MsgType: MsgTREPFeeds, Entries: entries}).setErr(err)
}

// NewBlocksRequest creates a new Blocks request
func NewBlocksRequest(writer string, from, to uint64) *Message {
	return &Message{
		MsgType: MsgTREPBlocks,
		Key:     writer,
		From:    from,
		To:      to,
	}
}

// NewBlocksResponse creates a new Blocks response
func NewBlocksResponse(blocks [][]byte, err error) *Message {
	return (&Message{MsgType: MsgTREPBlocks, Values: blocks}).setErr(err)
}

// NewAcquireRequest creates a new Acquire request
func NewAcquireRequest(key string, timeout uint64) *Message {
	return &Message{
		MsgType: MsgTLCKAcquire,
		Key:     key,
		Timeout: timeout,
	}
}

// NewAcquireResponse creates a new Acquire response
func NewAcquireResponse(ok bool, ownerID []byte, err error) *Message {
	return (&Message{MsgType: MsgTLCKAcquire, Ok: ok, Value: ownerID}).setErr(err)
}

// NewReleaseRequest creates a new Release request
func NewReleaseRequest(key string, ownerID []byte) *Message {
	return &Message{
		MsgType: MsgTLCKRelease,
		Key:     key,
		Value:   ownerID,
	}
}

// NewReleaseResponse creates a new Release response
func NewReleaseResponse(ok bool, err error) *Message {
	return (&Message{MsgType: MsgTLCKRelease, Ok: ok}).setErr(err)
}

// NewErrorResponse creates a new Error response
func NewErrorResponse(err error) *Message {
	msg := (&Message{MsgType: MsgTError}).setErr(err)
	if msg.Err == "" {
		msg.Err = "unknown error"
		msg.Code = store.RetCInternalError
	}
	return msg
}

// FromStoreEntries converts store entries to message entries
func FromStoreEntries(entries []store.Entry) []Entry {
	if entries == nil {
		return nil
	}
	out := make([]Entry, len(entries))
	for i, e := range entries {
		out[i] = Entry{Key: e.Key, Values: e.Values, Deleted: e.Deleted}
	}
	return out
}

// ToStoreEntries converts message entries to store entries
func ToStoreEntries(entries []Entry) []store.Entry {
	out := make([]store.Entry, len(entries))
	for i, e := range entries {
		out[i] = store.Entry{Key: e.Key, Values: e.Values, Deleted: e.Deleted}
	}
	return out
}

// --------------------------------------------------------------------------
// Message Type Definition
// --------------------------------------------------------------------------

// MessageType defines the type of message used in RPC communication.
type MessageType uint8

var messageTypeNames = map[MessageType]string{
	MsgTSuccess:          "success",
	MsgTError:            "error",
	MsgTKVPut:            "put",
	MsgTKVPutIfNotExists: "putIfNotExists",
	MsgTKVDelete:         "delete",
	MsgTKVGet:            "get",
	MsgTKVHas:            "has",
	MsgTKVList:           "list",
	MsgTKVHistory:        "history",
	MsgTKVVersion:        "version",
	MsgTKVGetAt:          "getAt",
	MsgTKVAuthorize:      "authorize",
	MsgTKVAuthorized:     "authorized",
	MsgTKVStats:          "stats",
	MsgTREPFeeds:         "feeds",
	MsgTREPBlocks:        "blocks",
	MsgTLCKAcquire:       "acquire",
	MsgTLCKRelease:       "release",
}

// String returns the string representation of a MessageType.
func (t MessageType) String() string {
	if name, ok := messageTypeNames[t]; ok {
		return name
	}
	return "unknown"
}

// MarshalJSON implements the json.Marshaller interface for MessageType.
// This allows MessageType to be serialized as a string in JSON.
func (t MessageType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON implements the json.Unmarshaler interface for MessageType.
// This allows MessageType to be deserialized from a string in JSON.
func (t *MessageType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	for mt, name := range messageTypeNames {
		if name == s {
			*t = mt
			return nil
		}
	}
	return fmt.Errorf("unknown message type: %s", s)
}

// --------------------------------------------------------------------------
// Message Type Constants
// --------------------------------------------------------------------------

const (
	// General message types

	MsgTUnknown MessageType = iota
	MsgTSuccess             // Indicates a successful operation
	MsgTError               // Indicates an error occurred

	// IStore operations

	MsgTKVPut            // Put a key-value pair
	MsgTKVPutIfNotExists // Put a key-value pair if the key holds no value
	MsgTKVDelete         // Delete a key
	MsgTKVGet            // Get the values of a key
	MsgTKVHas            // Check if a key holds a value
	MsgTKVList           // List the keys below a prefix
	MsgTKVHistory        // List the versions of a key
	MsgTKVVersion        // Get the current version token
	MsgTKVGetAt          // Get the values of a key at a version
	MsgTKVAuthorize      // Authorize a writer
	MsgTKVAuthorized     // Check if a writer is authorized
	MsgTKVStats          // Get database statistics

	// Replication operations

	MsgTREPFeeds  // List the authorized writers and their lengths
	MsgTREPBlocks // Get raw blocks of a writer

	// ILockManager operations

	MsgTLCKAcquire // Acquire a lock
	MsgTLCKRelease // Release a lock
)
