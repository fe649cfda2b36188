package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"loganalyzer/internal/adapter/store"
)

var cachePruneOlderThan time.Duration

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the token count cache",
	Long: `Token counts are cached in .loganalyzer/cache.db so repeated analyses of
the same prompt do not re-encode it.

Examples:
  loganalyzer cache stats
  loganalyzer cache prune --older-than 168h
  loganalyzer cache clear`,
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache statistics",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withCountStore(func(path string, st *store.BoltStore) error {
			stats, err := st.GetStats()
			if err != nil {
				return fmt.Errorf("failed to read cache: %w", err)
			}
			info, err := st.GetSchemaInfo()
			if err != nil {
				return fmt.Errorf("failed to read schema info: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Cache:       %s\n", path)
			fmt.Fprintf(out, "Schema:      v%d (%s)\n", info.Version, info.Fingerprint)
			fmt.Fprintf(out, "Entries:     %d\n", stats.Entries)
			if stats.Entries > 0 {
				fmt.Fprintf(out, "Oldest:      %s\n", stats.Oldest.Format(time.DateTime))
				fmt.Fprintf(out, "Newest:      %s\n", stats.Newest.Format(time.DateTime))
			}
			return nil
		})
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all cached counts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withCountStore(func(path string, st *store.BoltStore) error {
			if err := st.Clear(); err != nil {
				return fmt.Errorf("failed to clear cache: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cleared %s\n", path)
			return nil
		})
	},
}

var cachePruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Remove cached counts older than a duration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cachePruneOlderThan <= 0 {
			return fmt.Errorf("--older-than must be positive")
		}
		return withCountStore(func(path string, st *store.BoltStore) error {
			removed, err := st.PruneBefore(time.Now().Add(-cachePruneOlderThan))
			if err != nil {
				return fmt.Errorf("failed to prune cache: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d entries from %s\n", removed, path)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheStatsCmd, cacheClearCmd, cachePruneCmd)
	cachePruneCmd.Flags().DurationVar(&cachePruneOlderThan, "older-than", 7*24*time.Hour, "age of entries to remove")
}

func withCountStore(fn func(path string, st *store.BoltStore) error) error {
	path := GetConfig().CachePath(GetRootDir())
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return fmt.Errorf("no cache found at %s", path)
	}

	st, err := store.NewBoltStore(path)
	if err != nil {
		return fmt.Errorf("failed to open cache: %w", err)
	}
	defer st.Close()
	return fn(path, st)
}
