package serve

import (
	"fmt"
	"strings"

	cmdUtil "github.com/ValentinKolb/aodb/cmd/util"
	"github.com/ValentinKolb/aodb/lib/feed"
	"github.com/ValentinKolb/aodb/rpc/common"
	"github.com/ValentinKolb/aodb/rpc/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	serveCmdConfig = &common.ServerConfig{}
	ServeCmd       = &cobra.Command{
		Use:   "serve",
		Short: "Start the aodb server",
		Long: `Start the aodb server with the specified configuration. The configuration can be set via command line flags or environment variables. The format of the environment variables is AODB_<flag> (e.g. AODB_TIMEOUT=15).

A server hosts several databases. Each one is named in --shards and addressed by clients with --db <name>. A store shard given the key of a database owned by another server is a replica of it; together with --peers the server keeps it in sync.`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	cobra.OnInitialize(cmdUtil.InitConfig)

	key := "shards"
	ServeCmd.PersistentFlags().String(key, "default=store,locks=lockmgr", cmdUtil.WrapString("Comma-separated list of databases to serve. Format: NAME=TYPE where TYPE is one of: store, lockmgr, store(<hex key>). The last form replicates the database with that key"))

	key = "storage"
	ServeCmd.PersistentFlags().String(key, string(common.StorageMemory), cmdUtil.WrapString("Where the databases are stored (memory, pebble)"))

	key = "data-dir"
	ServeCmd.PersistentFlags().String(key, "data", cmdUtil.WrapString("Directory of the pebble storage, every database gets a sub directory named after it"))

	key = "peers"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("Comma-separated list of other servers to pull the store databases from. They are reached with the transport and serializer of this server"))

	key = "sync-interval"
	ServeCmd.PersistentFlags().Int(key, 10, cmdUtil.WrapString("Seconds between two pulls from the peers"))

	key = "timeout"
	ServeCmd.PersistentFlags().Int64(key, 5, cmdUtil.WrapString("Timeout of a single operation in seconds"))

	key = "endpoint"
	ServeCmd.PersistentFlags().String(key, "0.0.0.0:8080", cmdUtil.WrapString("The address on which the API will listen (e.g. localhost:8080, /tmp/aodb.sock, ...)"))

	key = "workers-per-conn"
	ServeCmd.PersistentFlags().Int(key, 16, cmdUtil.WrapString("Requests of one connection processed concurrently (tcp and unix only)"))

	key = "log-level"
	ServeCmd.PersistentFlags().String(key, "info", cmdUtil.WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))
}

// ParseShards parses the shard list of the --shards flag
func ParseShards(list string) ([]common.ServerShard, error) {
	var shards []common.ServerShard
	seen := make(map[string]bool)

	for _, shardConfig := range cmdUtil.SplitList(list) {
		name, shardType, ok := strings.Cut(shardConfig, "=")
		name, shardType = strings.TrimSpace(name), strings.TrimSpace(shardType)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid shard format: %s (expected NAME=TYPE)", shardConfig)
		}
		if seen[name] {
			return nil, fmt.Errorf("duplicate shard name: %s", name)
		}
		seen[name] = true

		shard := common.ServerShard{Name: name, ShardID: common.ShardID(name)}

		switch {
		case shardType == "store":
			shard.Type = common.ShardTypeStore
		case shardType == "lockmgr":
			shard.Type = common.ShardTypeLockManager
		case strings.HasPrefix(shardType, "store(") && strings.HasSuffix(shardType, ")"):
			key := strings.TrimSuffix(strings.TrimPrefix(shardType, "store("), ")")
			if _, err := feed.ParseKey(key); err != nil {
				return nil, fmt.Errorf("invalid key of shard %s: %v", name, err)
			}
			shard.Type = common.ShardTypeStore
			shard.Key = key
		default:
			return nil, fmt.Errorf("invalid shard type: %s (expected one of: store, lockmgr, store(<hex key>))", shardType)
		}

		shards = append(shards, shard)
	}

	if len(shards) == 0 {
		return nil, fmt.Errorf("no shards configured")
	}
	return shards, nil
}

// processConfig reads the configuration from the command line flags and environment variables and converts them to the server configuration
func processConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	shards, err := ParseShards(viper.GetString("shards"))
	if err != nil {
		return err
	}
	serveCmdConfig.Shards = shards

	serveCmdConfig.StorageType = common.StorageType(viper.GetString("storage"))
	switch serveCmdConfig.StorageType {
	case common.StorageMemory, common.StoragePebble:
	default:
		return fmt.Errorf("invalid storage %s (expected one of: memory, pebble)", serveCmdConfig.StorageType)
	}

	serveCmdConfig.DataDir = viper.GetString("data-dir")
	serveCmdConfig.Peers = cmdUtil.SplitList(viper.GetString("peers"))
	serveCmdConfig.SyncIntervalSec = viper.GetInt("sync-interval")
	serveCmdConfig.TimeoutSecond = viper.GetInt64("timeout")
	serveCmdConfig.Transport.Endpoint = viper.GetString("endpoint")
	serveCmdConfig.Transport.WorkersPerConn = viper.GetInt("workers-per-conn")
	serveCmdConfig.LogLevel = viper.GetString("log-level")

	return common.InitLoggers(serveCmdConfig.LogLevel)
}

// run starts the aodb server
func run(_ *cobra.Command, _ []string) error {
	s, err := cmdUtil.GetSerializer()
	if err != nil {
		return err
	}

	t, err := cmdUtil.GetServerTransport()
	if err != nil {
		return err
	}

	peerTransport, err := cmdUtil.GetTransportFactory()
	if err != nil {
		return err
	}

	serv := server.NewRPCServer(
		*serveCmdConfig,
		t,
		s,
		server.WithPeerTransport(peerTransport),
	)
	defer serv.Close()

	go serv.WaitForSignal()

	return serv.Serve()
}
