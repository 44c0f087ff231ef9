// Package tcp implements the RPC transport over TCP sockets. It provides the
// TCP specific connectors for package base, which contributes connection
// pooling, request multiplexing and buffer reuse.
//
// Both sides apply the configured socket options (buffer sizes, no delay,
// keep alive and linger) to every connection. The default server read buffer
// is 512 KB.
package tcp
