package server

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/ValentinKolb/aodb/lib/aodb"
	"github.com/ValentinKolb/aodb/lib/feed"
	"github.com/ValentinKolb/aodb/lib/store"
	"github.com/ValentinKolb/aodb/lib/store/lstore"
	"github.com/ValentinKolb/aodb/rpc/client"
	"github.com/ValentinKolb/aodb/rpc/common"
	"github.com/ValentinKolb/aodb/rpc/serializer"
	"github.com/ValentinKolb/aodb/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
	"golang.org/x/sync/errgroup"
)

var Logger = logger.GetLogger("rpc")

// maxParallelPulls bounds the pulls of one sync round
const maxParallelPulls = 8

// serverShard is one database served by the server together with the
// adapter that handles its requests
type serverShard struct {
	Name    string
	Type    common.ServerShardType
	DB      *aodb.DB
	Feeds   feed.IStore
	Store   store.IStore
	Adapter IRPCServerAdapter
}

// peerKey identifies the connection to one shard of a peer
type peerKey struct {
	endpoint string
	shardID  uint64
}

// PeerTransportFactory creates the client transport used to pull from peers
type PeerTransportFactory func() transport.IRPCClientTransport

// Option configures an RPCServer
type Option func(s *RPCServer)

// WithPeerTransport sets the transport used to reach the configured peers.
// Without it the server does not replicate.
func WithPeerTransport(factory PeerTransportFactory) Option {
	return func(s *RPCServer) {
		s.peerTransport = factory
	}
}

// RPCServer serves one database per configured shard
type RPCServer struct {
	config     common.ServerConfig
	transport  transport.IRPCServerTransport
	serializer serializer.IRPCSerializer
	shards     *xsync.MapOf[uint64, serverShard]

	peerTransport PeerTransportFactory
	peersMu       sync.Mutex
	peers         map[peerKey]client.RPCStore

	cancel    context.CancelFunc
	syncDone  chan struct{}
	closeOnce sync.Once
}

// NewRPCServer creates a new RPC server
//
// Usage:
//
//	s := server.NewRPCServer(
//		config,
//		tcp.NewTCPDefaultServerTransport(),
//		serializer.NewBinarySerializer(),
//		server.WithPeerTransport(tcp.NewTCPClientTransport),
//	)
//
//	if err := s.Serve(); err != nil {
//		panic(err)
//	}
func NewRPCServer(
	config common.ServerConfig,
	transport transport.IRPCServerTransport,
	serializer serializer.IRPCSerializer,
	opts ...Option,
) *RPCServer {
	// https://github.com/golang/go/issues/17393
	if runtime.GOOS == "darwin" {
		signal.Ignore(syscall.Signal(0xd))
	}

	s := &RPCServer{
		config:     config,
		transport:  transport,
		serializer: serializer,
		shards:     xsync.NewMapOf[uint64, serverShard](),
		peers:      make(map[peerKey]client.RPCStore),
	}
	for _, opt := range opts {
		opt(s)
	}

	Logger.Infof("Created RPC Server")
	Logger.Infof(config.String())

	return s
}

// Serve opens the databases of all shards, starts the replication with the
// peers and serves requests until Close is called.
func (s *RPCServer) Serve() error {
	if err := s.Init(); err != nil {
		return err
	}
	return s.transport.Listen(s.config)
}

// Init opens the databases of all shards and registers the request handler.
// Serve calls it, it is exported for callers that drive the transport
// themselves.
func (s *RPCServer) Init() error {
	for _, shardConfig := range s.config.Shards {
		shard, err := s.openShard(shardConfig)
		if err != nil {
			s.closeShards()
			return fmt.Errorf("failed to open shard %s: %w", shardConfig.Name, err)
		}
		s.shards.Store(shardConfig.ShardID, shard)
		Logger.Infof("opened %s shard %s (%d) with database %s", shard.Type, shard.Name, shardConfig.ShardID, shard.DB.Key())
	}

	s.registerTransportHandler()

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.syncDone = make(chan struct{})
	go s.syncLoop(ctx)

	Logger.Infof("aodb setup completed successfully")
	return nil
}

// Close stops the transport and the replication and closes all databases
func (s *RPCServer) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.transport.Close()

		if s.cancel != nil {
			s.cancel()
			<-s.syncDone
		}

		s.peersMu.Lock()
		for k, peer := range s.peers {
			peer.Close()
			delete(s.peers, k)
		}
		s.peersMu.Unlock()

		s.closeShards()
	})
	return err
}

// Store returns the store of a shard
func (s *RPCServer) Store(shardID uint64) (store.IStore, bool) {
	shard, ok := s.shards.Load(shardID)
	return shard.Store, ok
}

// DB returns the database of a shard
func (s *RPCServer) DB(shardID uint64) (*aodb.DB, bool) {
	shard, ok := s.shards.Load(shardID)
	return shard.DB, ok
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

func (s *RPCServer) timeout() time.Duration {
	if t := s.config.Timeout(); t > 0 {
		return t
	}
	return lstore.DefaultTimeout
}

// openShard opens the database of a shard
func (s *RPCServer) openShard(shardConfig common.ServerShard) (serverShard, error) {
	var adapter IRPCServerAdapter
	switch shardConfig.Type {
	case common.ShardTypeStore:
		adapter = NewIStoreServerAdapter()
	case common.ShardTypeLockManager:
		adapter = NewLockManagerServerAdapter()
	default:
		return serverShard{}, fmt.Errorf("invalid shard type: %s", shardConfig.Type)
	}

	var feeds feed.IStore
	switch s.config.StorageType {
	case common.StorageMemory, "":
		feeds = feed.NewMemoryStore()
	case common.StoragePebble:
		var err error
		if feeds, err = feed.NewPebbleStore(filepath.Join(s.config.DataDir, shardConfig.Name)); err != nil {
			return serverShard{}, err
		}
	default:
		return serverShard{}, fmt.Errorf("invalid storage type: %s", s.config.StorageType)
	}

	opts := aodb.DefaultOptions()
	opts.Timeout = s.timeout()
	if shardConfig.Key != "" {
		key, err := feed.ParseKey(shardConfig.Key)
		if err != nil {
			feeds.Close()
			return serverShard{}, fmt.Errorf("invalid database key: %w", err)
		}
		opts.Key = &key
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout())
	defer cancel()

	db, err := aodb.Open(ctx, feeds, opts)
	if err != nil {
		feeds.Close()
		return serverShard{}, err
	}

	return serverShard{
		Name:    shardConfig.Name,
		Type:    shardConfig.Type,
		DB:      db,
		Feeds:   feeds,
		Store:   lstore.FromDB(db, s.timeout()),
		Adapter: adapter,
	}, nil
}

func (s *RPCServer) closeShards() {
	s.shards.Range(func(id uint64, shard serverShard) bool {
		if err := shard.DB.Close(); err != nil {
			Logger.Errorf("failed to close shard %s: %v", shard.Name, err)
		}
		// the database leaves its storage open
		if err := shard.Feeds.Close(); err != nil {
			Logger.Errorf("failed to close storage of shard %s: %v", shard.Name, err)
		}
		s.shards.Delete(id)
		return true
	})
}

func (s *RPCServer) registerTransportHandler() {
	s.transport.RegisterHandler(func(shardId uint64, req []byte) []byte {
		var msg common.Message
		var respMsg *common.Message

		shard, ok := s.shards.Load(shardId)
		if !ok {
			respMsg = common.NewErrorResponse(store.NewError(store.RetCInvalidOperation,
				fmt.Sprintf("shard %d not found", shardId)))
		} else if err := s.serializer.Deserialize(req, &msg); err != nil {
			respMsg = common.NewErrorResponse(store.NewError(store.RetCInvalidOperation,
				fmt.Sprintf("failed to deserialize request: %s", err)))
		} else {
			respMsg = shard.Adapter.Handle(&msg, shard.Store)
		}

		resp, err := s.serializer.Serialize(*respMsg)
		if err != nil {
			Logger.Errorf("failed to serialize response: %v", err)
			resp, _ = s.serializer.Serialize(*common.NewErrorResponse(
				fmt.Errorf("failed to serialize response: %s", err)))
		}
		return resp
	})
}

// --------------------------------------------------------------------------
// Replication
// --------------------------------------------------------------------------

func (s *RPCServer) syncLoop(ctx context.Context) {
	defer close(s.syncDone)

	if len(s.config.Peers) == 0 {
		return
	}
	if s.peerTransport == nil {
		Logger.Warningf("peers configured but no peer transport set, replication is disabled")
		return
	}

	interval := time.Duration(max(s.config.SyncIntervalSec, 1)) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := s.Sync(ctx); err != nil && ctx.Err() == nil {
			Logger.Warningf("sync failed: %v", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Sync pulls every store shard from every peer once and returns the number
// of downloaded blocks. Lock manager shards are not replicated.
func (s *RPCServer) Sync(ctx context.Context) (int, error) {
	var (
		g     errgroup.Group
		mu    sync.Mutex
		total int
		errs  []error
	)
	g.SetLimit(maxParallelPulls)

	s.shards.Range(func(id uint64, shard serverShard) bool {
		if shard.Type != common.ShardTypeStore {
			return true
		}
		for _, endpoint := range s.config.Peers {
			g.Go(func() error {
				n, err := s.pull(ctx, shard, peerKey{endpoint: endpoint, shardID: id})

				mu.Lock()
				defer mu.Unlock()
				total += n
				if err != nil {
					errs = append(errs, fmt.Errorf("%s from %s: %w", shard.Name, endpoint, err))
				}
				return nil
			})
		}
		return true
	})
	g.Wait()

	return total, errors.Join(errs...)
}

// pull downloads one shard from one peer
func (s *RPCServer) pull(ctx context.Context, shard serverShard, key peerKey) (int, error) {
	peer, err := s.peer(key)
	if err != nil {
		return 0, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout())
	defer cancel()

	n, err := shard.DB.Pull(ctx, store.AsPeer(peer))
	if err != nil {
		// reconnect in the next round
		s.dropPeer(key)
		return n, err
	}
	if n > 0 {
		Logger.Infof("pulled %d blocks of %s from %s", n, shard.Name, key.endpoint)
	}
	return n, nil
}

// peer returns the connection to a shard of a peer, connecting on first use
func (s *RPCServer) peer(key peerKey) (client.RPCStore, error) {
	s.peersMu.Lock()
	defer s.peersMu.Unlock()

	if peer, ok := s.peers[key]; ok {
		return peer, nil
	}

	config := common.ClientConfig{
		TimeoutSecond: int(s.timeout() / time.Second),
		Transport: common.ClientTransportConfig{
			Endpoints:  []string{key.endpoint},
			RetryCount: 1,
		},
	}
	peer, err := client.NewRPCStore(key.shardID, config, s.peerTransport(), s.serializer)
	if err != nil {
		return nil, err
	}
	s.peers[key] = peer
	return peer, nil
}

func (s *RPCServer) dropPeer(key peerKey) {
	s.peersMu.Lock()
	defer s.peersMu.Unlock()

	if peer, ok := s.peers[key]; ok {
		peer.Close()
		delete(s.peers, key)
	}
}

// WaitForSignal blocks until the process receives SIGINT or SIGTERM and closes the server
func (s *RPCServer) WaitForSignal() {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
	Logger.Infof("shutting down")
	if err := s.Close(); err != nil {
		Logger.Errorf("failed to close server: %v", err)
	}
}
