// internal/cli/list.go
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List installed apps",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

func runList(cmd *cobra.Command, args []string) error {
	apps, err := engine.List()
	if err != nil {
		return err
	}
	if len(apps) == 0 {
		fmt.Println("No apps installed.")
		return nil
	}

	for _, app := range apps {
		fmt.Printf("%s@%s\n", app.Name, app.Version)
		fmt.Printf("  dir: %s\n", app.InstallDir)
		for _, bin := range app.BinDirs {
			fmt.Printf("  bin: %s\n", bin)
		}
		for key, value := range app.Env {
			fmt.Printf("  env: %s=%s\n", key, value)
		}
	}
	return nil
}
