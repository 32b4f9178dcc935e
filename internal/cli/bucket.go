// internal/cli/bucket.go
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	poks "github.com/poks-tools/poks"
)

var bucketCmd = &cobra.Command{
	Use:   "bucket",
	Short: "Manage registered buckets",
}

var bucketAddCmd = &cobra.Command{
	Use:   "add NAME URL",
	Short: "Register a bucket and clone it",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		b := poks.Bucket{Name: args[0], URL: args[1]}
		if err := engine.AddBucket(cmd.Context(), b); err != nil {
			return err
		}
		fmt.Printf("Added bucket %s (%s)\n", b.Name, b.URL)
		return nil
	},
}

var bucketRemoveCmd = &cobra.Command{
	Use:   "remove NAME",
	Short: "Unregister a bucket and delete its clone",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := engine.RemoveBucket(args[0]); err != nil {
			return err
		}
		fmt.Printf("Removed bucket %s\n", args[0])
		return nil
	},
}

var bucketListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered buckets",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		buckets, err := engine.Buckets()
		if err != nil {
			return err
		}
		if len(buckets) == 0 {
			fmt.Println("No buckets registered.")
			return nil
		}
		for _, b := range buckets {
			fmt.Printf("%s\t%s\n", b.Name, b.URL)
		}
		return nil
	},
}

func init() {
	bucketCmd.AddCommand(bucketAddCmd)
	bucketCmd.AddCommand(bucketRemoveCmd)
	bucketCmd.AddCommand(bucketListCmd)
}
