// internal/cli/search.go
package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var searchCmd = &cobra.Command{
	Use:   "search QUERY",
	Short: "Search local buckets for apps",
	Args:  cobra.ExactArgs(1),
	RunE:  runSearch,
}

func runSearch(cmd *cobra.Command, args []string) error {
	hits, err := engine.Search(args[0])
	if err != nil {
		return err
	}
	if len(hits) == 0 {
		fmt.Printf("No apps matching %q.\n", args[0])
		return nil
	}

	for _, hit := range hits {
		fmt.Printf("%s/%s (%s)\n", hit.Bucket, hit.Name, strings.Join(hit.Versions, ", "))
		if hit.Description != "" {
			fmt.Printf("  %s\n", hit.Description)
		}
	}
	return nil
}
