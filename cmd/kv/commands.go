package kv

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ValentinKolb/aodb/lib/feed"
	"github.com/ValentinKolb/aodb/lib/store"
	"github.com/spf13/cobra"
)

var (
	listFlat bool

	putCmd = &cobra.Command{
		Use:   "put [key] [value]",
		Short: "Writes a value for a key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rpcStore.Put(args[0], []byte(args[1])); err != nil {
				return err
			}
			fmt.Println("put successfully")
			return nil
		},
	}
	putIfNotExistsCmd = &cobra.Command{
		Use:   "put-if-not-exists [key] [value]",
		Short: "Writes a value for a key unless the key already holds one",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			written, err := rpcStore.PutIfNotExists(args[0], []byte(args[1]))
			if err != nil {
				return err
			}
			fmt.Printf("key=%s, written=%t\n", args[0], written)
			return nil
		},
	}
	getCmd = &cobra.Command{
		Use:   "get [key]",
		Short: "Reads the values of a key",
		Long:  "Reads the values of a key. Concurrent writes of different writers are all printed.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			values, ok, err := rpcStore.Get(args[0])
			if err != nil {
				return err
			}
			fmt.Printf("key=%s, found=%v, values=%s\n", args[0], ok, formatValues(values))
			return nil
		},
	}
	delCmd = &cobra.Command{
		Use:   "del [key]",
		Short: "Deletes a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rpcStore.Delete(args[0]); err != nil {
				return err
			}
			fmt.Println("delete successfully")
			return nil
		},
	}
	hasCmd = &cobra.Command{
		Use:   "has [key]",
		Short: "Checks if a key holds a value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			found, err := rpcStore.Has(args[0])
			if err != nil {
				return err
			}
			fmt.Printf("key=%s, found=%t\n", args[0], found)
			return nil
		},
	}
	listCmd = &cobra.Command{
		Use:   "list [prefix]",
		Short: "Lists the keys below a prefix",
		Long:  "Lists the keys below a prefix. With --flat only one key per immediate child folder of the prefix is printed.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prefix := ""
			if len(args) == 1 {
				prefix = args[0]
			}
			entries, err := rpcStore.List(prefix, !listFlat)
			if err != nil {
				return err
			}
			printEntries(entries)
			return nil
		},
	}
	historyCmd = &cobra.Command{
		Use:   "history [key]",
		Short: "Prints all versions of a key, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := rpcStore.History(args[0])
			if err != nil {
				return err
			}
			printEntries(entries)
			return nil
		},
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Prints the current version of the database",
		Long:  "Prints the current version of the database as hex string. It can be passed to get-at to read the database as it was at that point.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			version, err := rpcStore.Version()
			if err != nil {
				return err
			}
			fmt.Printf("version=%s\n", hex.EncodeToString(version))
			return nil
		},
	}
	getAtCmd = &cobra.Command{
		Use:   "get-at [version] [key]",
		Short: "Reads the values of a key at a version",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			version, err := hex.DecodeString(args[0])
			if err != nil {
				return fmt.Errorf("invalid version format: %v", err)
			}
			values, ok, err := rpcStore.GetAt(version, args[1])
			if err != nil {
				return err
			}
			fmt.Printf("key=%s, found=%v, values=%s\n", args[1], ok, formatValues(values))
			return nil
		},
	}
	authorizeCmd = &cobra.Command{
		Use:   "authorize [writer]",
		Short: "Authorizes a writer",
		Long:  "Authorizes a writer given as hex encoded key. Its writes become visible to all replicas once they pulled them.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := feed.ParseKey(args[0])
			if err != nil {
				return err
			}
			if err := rpcStore.Authorize(key); err != nil {
				return err
			}
			fmt.Println("authorized successfully")
			return nil
		},
	}
	authorizedCmd = &cobra.Command{
		Use:   "authorized [writer]",
		Short: "Checks if a writer is authorized",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := feed.ParseKey(args[0])
			if err != nil {
				return err
			}
			ok, err := rpcStore.Authorized(key)
			if err != nil {
				return err
			}
			fmt.Printf("writer=%s, authorized=%t\n", key, ok)
			return nil
		},
	}
	feedsCmd = &cobra.Command{
		Use:   "feeds",
		Short: "Lists the authorized writers and the length of their logs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			feeds, err := rpcStore.Feeds()
			if err != nil {
				return err
			}
			for _, f := range feeds {
				fmt.Printf("writer=%s, length=%d\n", f.Key, f.Length)
			}
			return nil
		},
	}
	statsCmd = &cobra.Command{
		Use:   "stats",
		Short: "Prints statistics about the database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			stats, err := rpcStore.Stats()
			if err != nil {
				return err
			}
			out, err := json.MarshalIndent(stats, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}
)

func init() {
	listCmd.Flags().BoolVar(&listFlat, "flat", false, "Only list one key per immediate child folder")
}

// formatValues prints the values of a key as [v1 v2 ...]
func formatValues(values [][]byte) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = string(v)
	}
	return "[" + strings.Join(parts, " ") + "]"
}

func printEntries(entries []store.Entry) {
	for _, e := range entries {
		if e.Deleted {
			fmt.Printf("key=%s, deleted=true\n", e.Key)
			continue
		}
		fmt.Printf("key=%s, values=%s\n", e.Key, formatValues(e.Values))
	}
}
