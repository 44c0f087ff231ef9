package client

import (
	"encoding/json"
	"fmt"

	"github.com/ValentinKolb/aodb/lib/aodb"
	"github.com/ValentinKolb/aodb/lib/feed"
	"github.com/ValentinKolb/aodb/lib/store"
	"github.com/ValentinKolb/aodb/rpc/common"
	"github.com/ValentinKolb/aodb/rpc/serializer"
	"github.com/ValentinKolb/aodb/rpc/transport"
)

// RPCStore is a store.IStore served by a remote server
type RPCStore interface {
	store.IStore
	// Close closes the connection to the server
	Close() error
}

// NewRPCStore connects the transport and returns a store for the database
// served as shardId.
func NewRPCStore(
	shardId uint64,
	config common.ClientConfig,
	transport transport.IRPCClientTransport,
	serializer serializer.IRPCSerializer,
) (RPCStore, error) {
	if err := transport.Connect(config); err != nil {
		return nil, err
	}

	return &rpcStore{
		rpcClientAdapter{
			shardId:    shardId,
			config:     config,
			transport:  transport,
			serializer: serializer,
		},
	}, nil
}

type rpcStore struct {
	rpcClientAdapter
}

// --------------------------------------------------------------------------
// Interface Methods (docu see the store package in interface.go)
// --------------------------------------------------------------------------

func (i *rpcStore) Put(key string, value []byte) error {
	_, err := i.invoke(common.NewPutRequest(key, value))
	return err
}

func (i *rpcStore) PutIfNotExists(key string, value []byte) (bool, error) {
	resp, err := i.invoke(common.NewPutIfNotExistsRequest(key, value))
	if err != nil {
		return false, err
	}
	return resp.Ok, nil
}

func (i *rpcStore) Delete(key string) error {
	_, err := i.invoke(common.NewDeleteRequest(key))
	return err
}

func (i *rpcStore) Get(key string) ([][]byte, bool, error) {
	resp, err := i.invoke(common.NewGetRequest(key))
	if err != nil {
		return nil, false, err
	}
	return resp.Values, resp.Ok, nil
}

func (i *rpcStore) Has(key string) (bool, error) {
	resp, err := i.invoke(common.NewHasRequest(key))
	if err != nil {
		return false, err
	}
	return resp.Ok, nil
}

func (i *rpcStore) List(prefix string, recursive bool) ([]store.Entry, error) {
	resp, err := i.invoke(common.NewListRequest(prefix, recursive))
	if err != nil {
		return nil, err
	}
	return common.ToStoreEntries(resp.Entries), nil
}

func (i *rpcStore) History(key string) ([]store.Entry, error) {
	resp, err := i.invoke(common.NewHistoryRequest(key))
	if err != nil {
		return nil, err
	}
	return common.ToStoreEntries(resp.Entries), nil
}

func (i *rpcStore) Version() ([]byte, error) {
	resp, err := i.invoke(common.NewVersionRequest())
	if err != nil {
		return nil, err
	}
	if resp.Version == nil {
		return []byte{}, nil
	}
	return resp.Version, nil
}

func (i *rpcStore) GetAt(version []byte, key string) ([][]byte, bool, error) {
	resp, err := i.invoke(common.NewGetAtRequest(version, key))
	if err != nil {
		return nil, false, err
	}
	return resp.Values, resp.Ok, nil
}

func (i *rpcStore) Authorize(key feed.Key) error {
	_, err := i.invoke(common.NewAuthorizeRequest(key.String()))
	return err
}

func (i *rpcStore) Authorized(key feed.Key) (bool, error) {
	resp, err := i.invoke(common.NewAuthorizedRequest(key.String()))
	if err != nil {
		return false, err
	}
	return resp.Ok, nil
}

func (i *rpcStore) Feeds() ([]aodb.FeedInfo, error) {
	resp, err := i.invoke(common.NewFeedsRequest())
	if err != nil {
		return nil, err
	}

	feeds := make([]aodb.FeedInfo, 0, len(resp.Entries))
	for _, e := range resp.Entries {
		key, err := feed.ParseKey(e.Key)
		if err != nil {
			return nil, fmt.Errorf("RPC client - invalid feed key %q: %w", e.Key, err)
		}
		feeds = append(feeds, aodb.FeedInfo{Key: key, Length: e.Length})
	}
	return feeds, nil
}

func (i *rpcStore) Blocks(key feed.Key, from, to uint64) ([][]byte, error) {
	resp, err := i.invoke(common.NewBlocksRequest(key.String(), from, to))
	if err != nil {
		return nil, err
	}
	return resp.Values, nil
}

func (i *rpcStore) Stats() (aodb.Stats, error) {
	resp, err := i.invoke(common.NewStatsRequest())
	if err != nil {
		return aodb.Stats{}, err
	}

	var stats aodb.Stats
	if err := json.Unmarshal(resp.Meta, &stats); err != nil {
		return aodb.Stats{}, fmt.Errorf("RPC client - invalid stats: %w", err)
	}
	return stats, nil
}
