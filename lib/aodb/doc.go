// Package aodb implements a multi-writer key value database on top of
// append-only feeds.
//
// Every writer appends entries to its own feed. An entry carries the key
// and value, a vector clock of everything the writer had seen when it was
// written, and a trie indexing earlier entries by the hash path of their
// keys. Reads start from the head set, the latest entries no other entry
// has seen, and follow the tries along the hash path of the key. Writes
// that did not see each other both survive as concurrent values of a key
// until a later write, or a reduce function, resolves them.
//
// A database is owned by the writer of its source feed. Other writers are
// allowed to write once an authorized writer lists them in its feed table
// (see Authorize). Replicas are kept in sync with Pull and Replicate.
//
// Reads never take the write lock: Snapshot pins a head set, and all
// reads of a Checkout are answered from it.
//
// Example usage:
//
//	db, err := aodb.Open(ctx, feed.NewMemoryStore(), aodb.DefaultOptions())
//	if err != nil {
//		return err
//	}
//	defer db.Close()
//
//	if _, err := db.Put(ctx, "hello", []byte("world"), nil); err != nil {
//		return err
//	}
//	nodes, err := db.Get(ctx, "hello", nil)
package aodb
