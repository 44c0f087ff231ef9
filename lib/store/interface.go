package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/ValentinKolb/aodb/lib/aodb"
	"github.com/ValentinKolb/aodb/lib/feed"
)

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// DBFactory is a function type that opens the database used by the store.
// This is used to abstract the storage backend (memory or pebble) and the
// database key from the store implementation.
type DBFactory func() (*aodb.DB, error)

// Entry is one key of a listing or one version of a key history.
// Values holds the values of all concurrent versions that are not deleted.
type Entry struct {
	Key     string
	Values  [][]byte
	Deleted bool
}

// IStore is the generic interface for interacting with a replicated
// key–value database. Keys are slash separated paths. Concurrent writes of
// different writers are kept side by side, so reads return all of them.
type IStore interface {
	// Put inserts or updates a key–value pair.
	Put(key string, value []byte) (err error)
	// PutIfNotExists inserts a key–value pair if the key holds no value.
	// No error is returned if the key already exists, written reports whether a write happened.
	PutIfNotExists(key string, value []byte) (written bool, err error)
	// Delete writes a deletion marker for the key.
	Delete(key string) (err error)
	// Get returns the values of all concurrent versions of a key. The boolean return value
	// indicates whether a value for the key was found.
	Get(key string) (values [][]byte, loaded bool, err error)
	// Has returns whether a key holds a value.
	Has(key string) (loaded bool, err error)
	// List returns all keys below prefix. Without recursive only one key per
	// immediate child folder of the prefix is returned.
	List(prefix string, recursive bool) (entries []Entry, err error)
	// History returns the versions of a key, newest first.
	History(key string) (entries []Entry, err error)

	// Version returns a token identifying the current state of the database.
	Version() (version []byte, err error)
	// GetAt returns the values of a key as they were at version.
	GetAt(version []byte, key string) (values [][]byte, loaded bool, err error)

	// Authorize makes key a writer of the database. Only the source writer or
	// an authorized writer can authorize other writers.
	Authorize(key feed.Key) (err error)
	// Authorized reports whether key is an authorized writer.
	Authorized(key feed.Key) (ok bool, err error)

	// Feeds lists the authorized writers and their lengths (replication).
	Feeds() (feeds []aodb.FeedInfo, err error)
	// Blocks returns the raw blocks [from, to) of a writer (replication).
	Blocks(key feed.Key, from, to uint64) (blocks [][]byte, err error)

	// Stats returns metadata about the database underlying the store.
	Stats() (stats aodb.Stats, err error)
}

// --------------------------------------------------------------------------
// Replication adapter
// --------------------------------------------------------------------------

type peerAdapter struct {
	store IStore
}

// AsPeer exposes a store as a replication peer, so that a local database can
// pull from any store, including remote ones.
func AsPeer(s IStore) aodb.Peer {
	return &peerAdapter{store: s}
}

func (p *peerAdapter) Feeds(_ context.Context) ([]aodb.FeedInfo, error) {
	return p.store.Feeds()
}

func (p *peerAdapter) Blocks(_ context.Context, key feed.Key, from, to uint64) ([][]byte, error) {
	return p.store.Blocks(key, from, to)
}

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error is a custom error type that wraps a return code (of type RetCode)
// and an error message.
type Error struct {
	Code RetCode // The return code
	Msg  string  // The error message.
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("StoreError (code %s): %s", e.Code, e.Msg)
}

// NewError creates a new Error with the given code and message.
func NewError(code RetCode, msg string) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
	}
}

// FromError translates a database error into an *Error. Errors caused by
// the arguments of the caller become RetCInvalidOperation, everything
// else RetCInternalError. Nil stays nil.
func FromError(err error) error {
	if err == nil {
		return nil
	}
	var storeErr *Error
	if errors.As(err, &storeErr) {
		return storeErr
	}
	switch {
	case errors.Is(err, aodb.ErrInvalidVersion),
		errors.Is(err, aodb.ErrUnknownWriter),
		errors.Is(err, aodb.ErrInvalidOp):
		return NewError(RetCInvalidOperation, err.Error())
	case errors.Is(err, aodb.ErrClosed):
		return NewError(RetCClosed, err.Error())
	default:
		return NewError(RetCInternalError, err.Error())
	}
}

// --------------------------------------------------------------------------
// Return Codes
// --------------------------------------------------------------------------

type RetCode uint64

const (
	RetCSuccess              RetCode = iota // 0: Command executed successfully.
	RetCInternalError                       // 1: Command failed due to an internal error.
	RetCUnsupportedOperation                // 2: Operation is not supported by the store.
	RetCInvalidOperation                    // 3: Invalid operation (bad version, unknown writer, ...).
	RetCClosed                              // 4: The database is closed.
)

func (c RetCode) String() string {
	switch c {
	case RetCSuccess:
		return "Success"
	case RetCInternalError:
		return "InternalError"
	case RetCUnsupportedOperation:
		return "UnsupportedOperation"
	case RetCInvalidOperation:
		return "InvalidOperation"
	case RetCClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}
