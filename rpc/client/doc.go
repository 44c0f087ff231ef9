// Package client implements the RPC clients of an aodb server. NewRPCStore
// returns a store.IStore and NewRPCLockMgr a lockmgr.ILockManager, both
// forwarding every call to the shard they were created for.
//
// Errors reported by the server arrive as *store.Error carrying the return
// code of the server, so callers can tell invalid operations from internal
// failures. Transport errors (timeouts, refused connections) are returned
// unchanged.
//
// Usage:
//
//	config := common.ClientConfig{
//	  TimeoutSecond: 5,
//	  Transport: common.ClientTransportConfig{
//	    Endpoints:  []string{"localhost:8080"},
//	    RetryCount: 3,
//	  },
//	}
//
//	s, err := client.NewRPCStore(common.ShardID("users"), config,
//	  tcp.NewTCPClientTransport(), serializer.NewBinarySerializer())
//	if err != nil {
//	  return err
//	}
//	defer s.Close()
//
//	s.Put("users/alice", []byte("admin"))
//	values, ok, err := s.Get("users/alice")
//
// Since the store implements the replication calls (Feeds and Blocks), a local
// database can pull from a server with db.Pull(ctx, store.AsPeer(s)).
//
// Both clients are safe for concurrent use.
package client
