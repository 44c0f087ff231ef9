// Package feed provides the append-only logs the database is built on.
//
// A Feed is owned by exactly one writer, identified by an ed25519 public
// key. The owner appends blocks; other replicas download them with Put
// after announcing their existence with SetRemoteLen. Readers asking for an
// announced block wait until it arrives.
//
// Blocks are kept in an IStorage. Two stores are available:
//
//   - NewMemoryStore keeps everything in memory, for tests and ephemeral
//     databases.
//   - NewPebbleStore persists feeds in a pebble database. Blocks are stored
//     under their feed's discovery key, so keys never appear in the data
//     directory layout.
package feed
