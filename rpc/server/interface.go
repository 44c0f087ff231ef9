package server

import (
	"github.com/ValentinKolb/aodb/lib/store"
	"github.com/ValentinKolb/aodb/rpc/common"
)

// IRPCServerAdapter is the interface for all RPC server adapters.
// It translates a request into calls on the store of a shard.
type IRPCServerAdapter interface {
	// Handle handles a request and returns a response. Errors are reported
	// in the response, Handle never returns nil.
	Handle(req *common.Message, store store.IStore) (resp *common.Message)
}
