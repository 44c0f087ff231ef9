package sync

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ValentinKolb/aodb/cmd/util"
	"github.com/ValentinKolb/aodb/lib/aodb"
	"github.com/ValentinKolb/aodb/lib/feed"
	"github.com/ValentinKolb/aodb/lib/store"
	"github.com/ValentinKolb/aodb/rpc/client"
	"github.com/ValentinKolb/aodb/rpc/common"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// SyncCmd pulls a database from a server into a local replica
var SyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Replicate a database of a server into a local directory",
	Long: `Replicate a database of a server into a local pebble directory. Only new blocks are downloaded, so running the command again continues where the last run stopped.

Without --key the key of the remote database is used. With --interval the command keeps pulling until it is interrupted.`,
	PreRunE: processConfig,
	RunE:    run,
}

func init() {
	cobra.OnInitialize(util.InitConfig)

	util.SetupRPCClientFlags(SyncCmd, "default")

	key := "dir"
	SyncCmd.Flags().String(key, "", util.WrapString("Directory of the local replica (empty keeps it in memory)"))

	key = "key"
	SyncCmd.Flags().String(key, "", util.WrapString("Hex key of the database to replicate (defaults to the key of the remote database)"))

	key = "interval"
	SyncCmd.Flags().Int(key, 0, util.WrapString("Seconds between two pulls, 0 pulls once"))

	key = "log-level"
	SyncCmd.Flags().String(key, "warn", util.WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))
}

func processConfig(cmd *cobra.Command, _ []string) error {
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}
	return common.InitLoggers(viper.GetString("log-level"))
}

func run(_ *cobra.Command, _ []string) error {
	s, err := util.GetSerializer()
	if err != nil {
		return err
	}
	t, err := util.GetTransport()
	if err != nil {
		return err
	}

	remote, err := client.NewRPCStore(util.GetShardID(), *util.GetClientConfig(), t, s)
	if err != nil {
		return err
	}
	defer remote.Close()

	key, err := databaseKey(remote)
	if err != nil {
		return err
	}

	feeds, err := openFeeds(viper.GetString("dir"))
	if err != nil {
		return err
	}
	defer feeds.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := aodb.DefaultOptions()
	opts.Key = &key
	db, err := aodb.Open(ctx, feeds, opts)
	if err != nil {
		return err
	}
	defer db.Close()

	peer := store.AsPeer(remote)
	interval := time.Duration(viper.GetInt("interval")) * time.Second

	for {
		n, err := db.Pull(ctx, peer)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("pull failed: %w", err)
		}
		fmt.Printf("db=%s, key=%s, pulled=%d\n", util.GetDB(), key.Short(), n)

		if interval <= 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(interval):
		}
	}
}

// databaseKey returns the key given with --key or the key of the remote database
func databaseKey(remote store.IStore) (feed.Key, error) {
	if hexKey := viper.GetString("key"); hexKey != "" {
		return feed.ParseKey(hexKey)
	}
	stats, err := remote.Stats()
	if err != nil {
		return feed.Key{}, fmt.Errorf("failed to read the remote key: %w", err)
	}
	return feed.ParseKey(stats.Key)
}

func openFeeds(dir string) (feed.IStore, error) {
	if dir == "" {
		return feed.NewMemoryStore(), nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return feed.NewPebbleStore(dir)
}
