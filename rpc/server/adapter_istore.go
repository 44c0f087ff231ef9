package server

import (
	"encoding/json"
	"fmt"

	"github.com/ValentinKolb/aodb/lib/feed"
	"github.com/ValentinKolb/aodb/lib/store"
	"github.com/ValentinKolb/aodb/rpc/common"
)

func NewIStoreServerAdapter() IRPCServerAdapter {
	return &iStoreServerAdapterImpl{}
}

type iStoreServerAdapterImpl struct{}

func (adapter *iStoreServerAdapterImpl) Handle(req *common.Message, s store.IStore) *common.Message {
	if s == nil {
		return common.NewErrorResponse(store.NewError(store.RetCInternalError, "handler: store is nil"))
	}

	switch req.MsgType {
	case common.MsgTKVPut:
		return common.NewPutResponse(s.Put(req.Key, req.Value))
	case common.MsgTKVPutIfNotExists:
		written, err := s.PutIfNotExists(req.Key, req.Value)
		return common.NewPutIfNotExistsResponse(written, err)
	case common.MsgTKVDelete:
		return common.NewDeleteResponse(s.Delete(req.Key))
	case common.MsgTKVGet:
		values, ok, err := s.Get(req.Key)
		return common.NewGetResponse(values, ok, err)
	case common.MsgTKVHas:
		ok, err := s.Has(req.Key)
		return common.NewHasResponse(ok, err)
	case common.MsgTKVList:
		entries, err := s.List(req.Key, req.Recursive)
		return common.NewListResponse(entries, err)
	case common.MsgTKVHistory:
		entries, err := s.History(req.Key)
		return common.NewHistoryResponse(entries, err)
	case common.MsgTKVVersion:
		version, err := s.Version()
		return common.NewVersionResponse(version, err)
	case common.MsgTKVGetAt:
		values, ok, err := s.GetAt(req.Version, req.Key)
		return common.NewGetAtResponse(values, ok, err)
	case common.MsgTKVAuthorize:
		key, err := parseWriter(req.Key)
		if err != nil {
			return common.NewAuthorizeResponse(err)
		}
		return common.NewAuthorizeResponse(s.Authorize(key))
	case common.MsgTKVAuthorized:
		key, err := parseWriter(req.Key)
		if err != nil {
			return common.NewAuthorizedResponse(false, err)
		}
		ok, err := s.Authorized(key)
		return common.NewAuthorizedResponse(ok, err)
	case common.MsgTKVStats:
		stats, err := s.Stats()
		if err != nil {
			return common.NewStatsResponse(nil, err)
		}
		buf, err := json.Marshal(stats)
		return common.NewStatsResponse(buf, err)
	case common.MsgTREPFeeds:
		feeds, err := s.Feeds()
		if err != nil {
			return common.NewFeedsResponse(nil, err)
		}
		entries := make([]common.Entry, len(feeds))
		for i, f := range feeds {
			entries[i] = common.Entry{Key: f.Key.String(), Length: f.Length}
		}
		return common.NewFeedsResponse(entries, nil)
	case common.MsgTREPBlocks:
		key, err := parseWriter(req.Key)
		if err != nil {
			return common.NewBlocksResponse(nil, err)
		}
		blocks, err := s.Blocks(key, req.From, req.To)
		return common.NewBlocksResponse(blocks, err)
	default:
		return common.NewErrorResponse(store.NewError(store.RetCUnsupportedOperation,
			fmt.Sprintf("RPC IStoreAdapter - Unsupported message type: %s", req.MsgType)))
	}
}

// parseWriter decodes a hex encoded writer key of a request
func parseWriter(hex string) (feed.Key, error) {
	key, err := feed.ParseKey(hex)
	if err != nil {
		return feed.Key{}, store.NewError(store.RetCInvalidOperation, fmt.Sprintf("invalid writer key %q: %v", hex, err))
	}
	return key, nil
}
