// internal/cli/cache.go
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the archive cache",
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete all cached archives",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := engine.CacheClear(); err != nil {
			return err
		}
		fmt.Println("Cache cleared.")
		return nil
	},
}

var cacheSizeCmd = &cobra.Command{
	Use:   "size",
	Short: "Show the total size of cached archives",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		size, err := engine.CacheSize()
		if err != nil {
			return err
		}
		fmt.Printf("%d bytes (%.1f MiB)\n", size, float64(size)/(1<<20))
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cacheClearCmd)
	cacheCmd.AddCommand(cacheSizeCmd)
}
