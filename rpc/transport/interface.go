package transport

import (
	"github.com/ValentinKolb/aodb/rpc/common"
)

// --------------------------------------------------------------------------
// Server Transport
// --------------------------------------------------------------------------

// ServerHandleFunc is called by a server transport for every request it
// receives. shardId names the database the request is addressed to.
type ServerHandleFunc func(shardId uint64, req []byte) (resp []byte)

// IRPCServerTransport is the interface for the server side of the RPC
// transport layer
type IRPCServerTransport interface {
	// RegisterHandler registers the function every request is passed to.
	// It must be called before Listen.
	RegisterHandler(handler ServerHandleFunc)
	// Listen serves requests until Close is called. It returns nil after
	// Close and an error if the listener could not be created.
	Listen(config common.ServerConfig) error
	// Close stops accepting requests and closes the listener
	Close() error
}

// --------------------------------------------------------------------------
// Client Transport
// --------------------------------------------------------------------------

// IRPCClientTransport is the interface for the RPC client transport
type IRPCClientTransport interface {
	// Connect initializes the transport with the given configuration
	Connect(config common.ClientConfig) error
	// Send sends a request to the server and returns the response
	Send(shardId uint64, req []byte) (resp []byte, err error)
	// Close closes the transport connection
	Close() error
}
