package client

import (
	"github.com/ValentinKolb/aodb/lib/lockmgr"
	"github.com/ValentinKolb/aodb/rpc/common"
	"github.com/ValentinKolb/aodb/rpc/serializer"
	"github.com/ValentinKolb/aodb/rpc/transport"
)

// RPCLockMgr is a lockmgr.ILockManager served by a remote server
type RPCLockMgr interface {
	lockmgr.ILockManager
	// Close closes the connection to the server
	Close() error
}

// NewRPCLockMgr connects the transport and returns a lock manager for the
// lock database served as shardId.
func NewRPCLockMgr(
	shardId uint64,
	config common.ClientConfig,
	transport transport.IRPCClientTransport,
	serializer serializer.IRPCSerializer,
) (RPCLockMgr, error) {
	if err := transport.Connect(config); err != nil {
		return nil, err
	}

	return &rpcLockMgr{
		rpcClientAdapter{
			shardId:    shardId,
			config:     config,
			transport:  transport,
			serializer: serializer,
		},
	}, nil
}

type rpcLockMgr struct {
	rpcClientAdapter
}

// --------------------------------------------------------------------------
// Interface Methods (docu see the lockmgr package in interface.go)
// --------------------------------------------------------------------------

func (i *rpcLockMgr) AcquireLock(key string, timeout uint64) (ok bool, ownerID []byte, err error) {
	resp, err := i.invoke(common.NewAcquireRequest(key, timeout))
	if err != nil {
		return false, nil, err
	}
	return resp.Ok, resp.Value, nil
}

func (i *rpcLockMgr) ReleaseLock(key string, ownerID []byte) (ok bool, err error) {
	resp, err := i.invoke(common.NewReleaseRequest(key, ownerID))
	if err != nil {
		return false, err
	}
	return resp.Ok, nil
}
