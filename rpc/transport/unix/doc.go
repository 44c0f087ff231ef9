// Package unix implements the RPC transport over Unix domain sockets for
// clients running on the same machine as the server. It provides the
// connectors for package base and inherits its connection pooling and
// request multiplexing.
//
// The default server read buffer is 64 KB. A stale socket file left behind by
// a previous server is removed before listening.
package unix
