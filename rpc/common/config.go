package common

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ValentinKolb/aodb/lib/util"
)

// --------------------------------------------------------------------------
// Transport configuration (shared by server and client)
// --------------------------------------------------------------------------

// SocketConf holds socket level settings. Zero values keep the OS defaults.
type SocketConf struct {
	WriteBufferSize int
	ReadBufferSize  int
}

// TCPConf holds TCP specific settings
type TCPConf struct {
	TCPNoDelay      bool
	TCPKeepAliveSec int
	TCPLingerSec    int // zero keeps the OS default
}

// ServerTransportConfig configures the listening side of a transport
type ServerTransportConfig struct {
	// Endpoint is the address to listen on (host:port, socket path or http url)
	Endpoint string
	// WorkersPerConn limits the concurrent requests of one connection
	WorkersPerConn int
	SocketConf
	TCPConf
}

// ClientTransportConfig configures the connecting side of a transport
type ClientTransportConfig struct {
	Endpoints              []string
	RetryCount             int
	ConnectionsPerEndpoint int
	SocketConf
	TCPConf
}

// --------------------------------------------------------------------------
// RPC server configuration struct
// --------------------------------------------------------------------------

type ServerShardType string

const (
	ShardTypeStore       ServerShardType = "store"
	ShardTypeLockManager ServerShardType = "lockmgr"
)

type StorageType string

const (
	StorageMemory StorageType = "memory"
	StoragePebble StorageType = "pebble"
)

// ServerShard is one database served by the server
type ServerShard struct {
	// Name of the database, the shard id is derived from it
	Name string
	// ShardID is the ID clients address the shard with
	ShardID uint64
	// Type of the adapter serving the shard
	Type ServerShardType
	// Key is the hex key of a remote database to replicate, empty to serve
	// a database owned by this server
	Key string
}

// ShardID returns the shard id of a database name
func ShardID(name string) uint64 {
	return util.HashString(name, 0)
}

// ServerConfig holds all configuration parameters of a server.
type ServerConfig struct {
	// Databases to serve
	Shards []ServerShard

	// Storage of the databases
	StorageType StorageType
	DataDir     string

	// Peers are client endpoints of other servers to replicate the shards with
	Peers           []string
	SyncIntervalSec int

	// Timeout of a single store operation
	TimeoutSecond int64

	// Transport settings
	Transport ServerTransportConfig

	// Logging configuration
	LogLevel string
}

// Timeout returns TimeoutSecond as a duration
func (c *ServerConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecond) * time.Second
}

// String returns a formatted string representation of the configuration
func (c *ServerConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	// RPC settings
	addSection("RPC Server")
	addField("Endpoint", c.Transport.Endpoint)
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	addField("Workers Per Conn", strconv.Itoa(c.Transport.WorkersPerConn))

	// Logging configuration
	addSection("Logging")
	addField("Log Level", c.LogLevel)

	// Storage
	addSection("Storage")
	addField("Type", string(c.StorageType))
	if c.StorageType == StoragePebble {
		addField("Data Directory", c.DataDir)
	}

	// Shards
	addSection("Shards")
	for _, shard := range c.Shards {
		desc := string(shard.Type)
		if shard.Key != "" {
			desc += " (replica of " + shard.Key + ")"
		}
		addField(fmt.Sprintf("%s (%d)", shard.Name, shard.ShardID), desc)
	}

	// Replication
	if len(c.Peers) > 0 {
		addSection("Replication")
		addField("Sync Interval", fmt.Sprintf("%d sec", c.SyncIntervalSec))
		for i, peer := range c.Peers {
			addField("Peer "+strconv.Itoa(i), peer)
		}
	}

	return sb.String()
}

// --------------------------------------------------------------------------
// RPC client configuration struct
// --------------------------------------------------------------------------

type ClientConfig struct {
	TimeoutSecond int
	Transport     ClientTransportConfig
}

// String returns a formatted string representation of the client configuration
func (c *ClientConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	// General Client Settings
	addSection("Client Configuration")
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	addField("Retry Count", strconv.Itoa(c.Transport.RetryCount))
	addField("Connections Per Endpoint", strconv.Itoa(max(1, c.Transport.ConnectionsPerEndpoint)))

	// Endpoints
	addSection("Endpoints")
	for i, endpoint := range c.Transport.Endpoints {
		addField(strconv.Itoa(i), endpoint)
	}

	return sb.String()
}
