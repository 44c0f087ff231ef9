// Package lstore implements the store.IStore interface on top of a local
// aodb.DB. The database is either kept in memory or persisted with pebble,
// depending on the feed store passed to aodb.Open by the factory.
//
// Every store operation runs with its own context that is cancelled after
// the configured timeout, so a read on an empty replica that waits for its
// first update cannot block a caller forever.
//
// Values returned by Get, GetAt, List and History are copies. Errors of the
// database are translated to *store.Error with store.FromError.
//
// Usage Example:
//
//	factory := func() (*aodb.DB, error) {
//	    return aodb.Open(context.Background(), feed.NewMemoryStore(), aodb.DefaultOptions())
//	}
//	s, err := lstore.NewLocalStore(factory, 5*time.Second)
//
//	err = s.Put("users/alice", []byte("admin"))
//	values, exists, err := s.Get("users/alice")
package lstore
