// Package base implements the framed RPC protocol shared by the stream
// transports (tcp and unix). It is independent of the network protocol,
// which is plugged in through IClientConnector and IServerConnector.
//
// Every request and response is one frame:
//
//	8 bytes shard id | 8 bytes request id | 4 bytes length | payload
//
// A connection carries many requests at once. The client matches responses
// to waiting requests by their request id, the server processes up to
// WorkersPerConn requests of one connection concurrently and answers them in
// completion order.
//
// Client side:
//
//   - several connections per endpoint, used round robin
//   - failed requests are retried with exponential backoff
//   - a broken connection fails its pending requests and is re-established
//
// Server side:
//
//   - read buffers are pooled with a sync.Pool
//   - request counts and durations are recorded as metrics per transport
//   - Close stops the accept loop and closes all open connections
package base
