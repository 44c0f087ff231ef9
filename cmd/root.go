package cmd

import (
	"fmt"
	"os"

	"github.com/ValentinKolb/aodb/cmd/kv"
	"github.com/ValentinKolb/aodb/cmd/lock"
	"github.com/ValentinKolb/aodb/cmd/serve"
	"github.com/ValentinKolb/aodb/cmd/sync"
	"github.com/ValentinKolb/aodb/cmd/util"
	"github.com/spf13/cobra"
)

const (
	Version = "0.1.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "aodb",
		Short: "append-only multi-writer key-value database",
		Long: fmt.Sprintf(`aodb (v%s)

An append-only key-value database written in Go. Every writer appends to its
own signed log, replicas pull the logs of each other and merge them into the
same view without coordination.`, Version),
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of aodb",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("aodb v%s\n", Version)
		},
	}
)

func init() {
	// Add Commands
	RootCmd.AddCommand(serve.ServeCmd)
	RootCmd.AddCommand(kv.KeyValueCommands)
	RootCmd.AddCommand(lock.LockCommands)
	RootCmd.AddCommand(sync.SyncCmd)
	RootCmd.AddCommand(versionCmd)

	// Add Flags
	key := "serializer"
	RootCmd.PersistentFlags().String(key, "json", util.WrapString("serializer to use (json, gob, binary)"))
	key = "transport"
	RootCmd.PersistentFlags().String(key, "http", util.WrapString("transport to use (http, tcp, unix)"))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
