// Package transport defines how RPC requests travel between clients and a
// server hosting one or more databases. Requests are opaque byte slices
// produced by a serializer; the transport only routes them by shard id.
//
// Implementations live in the sub packages:
//
//   - tcp and unix build on the framed, multiplexed protocol of package base
//   - http posts every request to /{shardId} and additionally exposes the
//     server metrics on /metrics
package transport
