// Package server implements the RPC server of aodb. A server hosts any number
// of databases, each addressed by a shard id derived from its name, and
// serves them over a pluggable transport and serializer.
//
// Every shard is backed by its own database, stored in memory or in a pebble
// directory below the data directory. Two shard types exist:
//
//   - store: the database is served through the store adapter, which maps
//     the key-value, version, authorization and replication requests onto a
//     store.IStore
//   - lockmgr: the database backs a lock manager and only lock requests are
//     accepted
//
// A store shard configured with the key of a database owned elsewhere is a
// replica. When peers are configured the server pulls all store shards from
// every peer periodically, using the RPC client of package client as the
// remote side of the pull. Writers of the replica become visible to the
// owner once the owner authorized them and pulls in turn.
//
// Usage:
//
//	config := common.ServerConfig{
//	  Shards: []common.ServerShard{
//	    {Name: "users", ShardID: common.ShardID("users"), Type: common.ShardTypeStore},
//	    {Name: "locks", ShardID: common.ShardID("locks"), Type: common.ShardTypeLockManager},
//	  },
//	  StorageType:   common.StoragePebble,
//	  DataDir:       "/var/lib/aodb",
//	  TimeoutSecond: 5,
//	  Transport:     common.ServerTransportConfig{Endpoint: "0.0.0.0:8080"},
//	}
//
//	s := server.NewRPCServer(config, tcp.NewTCPDefaultServerTransport(), serializer.NewBinarySerializer())
//	go s.WaitForSignal()
//	if err := s.Serve(); err != nil {
//	  log.Fatalf("server error: %v", err)
//	}
package server
