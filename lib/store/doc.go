// Package store provides a high-level interface for operating a replicated,
// append-only key-value database with unified error handling. It serves as
// an abstraction layer over aodb.DB that can be implemented locally or by a
// remote client, so servers, CLIs and the lock manager do not care where
// the database lives.
//
// Key Components:
//
//   - IStore Interface: reads and writes of keys, listings, key histories,
//     versions and checkouts, writer authorization and the serving half of
//     replication (Feeds and Blocks).
//
//   - AsPeer: adapts any IStore to aodb.Peer. A local database pulls from a
//     remote one with db.Pull(ctx, store.AsPeer(remote)).
//
//   - Error System: errors crossing the store boundary are *Error values with
//     a RetCode, so they survive serialization. FromError maps database errors
//     to codes.
//
// Implementations:
//
//   - Local Store (lstore): wraps an aodb.DB opened by a DBFactory.
//     Available in the "github.com/ValentinKolb/aodb/lib/store/lstore" package.
//
//   - Remote Store: the RPC client in "github.com/ValentinKolb/aodb/rpc/client".
//
// A conformance suite for implementations lives in lib/store/testing.
package store
