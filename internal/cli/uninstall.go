// internal/cli/uninstall.go
package cli

import (
	"strings"

	"github.com/spf13/cobra"
)

var (
	uninstallAll       bool
	uninstallMissingOK bool
)

var uninstallCmd = &cobra.Command{
	Use:   "uninstall [APP[@VERSION]]",
	Short: "Remove installed apps",
	Long: `Remove one version, every version of an app, or everything.

Examples:
  poks uninstall ripgrep@14.1.0
  poks uninstall ripgrep
  poks uninstall --all`,
	Args: cobra.MaximumNArgs(1),
	RunE: runUninstall,
}

func init() {
	uninstallCmd.Flags().BoolVar(&uninstallAll, "all", false, "uninstall all apps")
	uninstallCmd.Flags().BoolVar(&uninstallMissingOK, "missing-ok", false, "do not fail when the target is not installed")
}

func runUninstall(cmd *cobra.Command, args []string) error {
	if uninstallAll {
		if len(args) > 0 {
			return usagef("--all takes no app argument")
		}
		return engine.UninstallAll()
	}
	if len(args) == 0 {
		return usagef("specify an app to uninstall or use --all")
	}

	name, version, _ := strings.Cut(args[0], "@")
	if name == "" {
		return usagef("invalid app spec %q", args[0])
	}
	return engine.Uninstall(name, version, uninstallMissingOK)
}
