// internal/cli/install.go
package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	poks "github.com/poks-tools/poks"
)

var (
	installConfigFile      string
	installBucket          string
	installManifestFile    string
	installManifestVersion string
)

var installCmd = &cobra.Command{
	Use:   "install [APP@VERSION]",
	Short: "Install apps from a config file, a bucket, or a manifest",
	Long: `Install pre-built tools.

Examples:
  poks install -c poks.json
  poks install ripgrep@14.1.0
  poks install ripgrep@14.1.0 --bucket main
  poks install ripgrep@14.1.0 --bucket https://github.com/example/bucket.git
  poks install --manifest ./ripgrep.json --version 14.1.0`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInstall,
}

func init() {
	installCmd.Flags().StringVarP(&installConfigFile, "config", "c", "", "path to poks.json")
	installCmd.Flags().StringVar(&installBucket, "bucket", "", "bucket name or repository URL")
	installCmd.Flags().StringVar(&installManifestFile, "manifest", "", "install directly from a manifest file")
	installCmd.Flags().StringVar(&installManifestVersion, "version", "", "version to install with --manifest")
}

func runInstall(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	var summary *poks.Summary
	var err error
	switch {
	case installConfigFile != "":
		if len(args) > 0 || installManifestFile != "" {
			return usagef("--config cannot be combined with an app spec or --manifest")
		}
		summary, err = engine.InstallFile(ctx, installConfigFile)

	case installManifestFile != "":
		if installManifestVersion == "" {
			return usagef("--manifest requires --version")
		}
		summary, err = engine.InstallFromManifest(ctx, installManifestFile, installManifestVersion)

	case len(args) == 1:
		name, version, ok := strings.Cut(args[0], "@")
		if !ok || name == "" || version == "" {
			return usagef("invalid app spec %q, use NAME@VERSION", args[0])
		}
		summary, err = engine.InstallApp(ctx, name, version, installBucket)

	default:
		return usagef("nothing to install: pass APP@VERSION, --config, or --manifest")
	}
	if err != nil {
		return err
	}

	printSummary(summary)
	return strongestError(summary.Results)
}

func printSummary(summary *poks.Summary) {
	for _, r := range summary.Results {
		switch r.Status {
		case poks.StatusInstalled:
			fmt.Printf("✓ %s@%s -> %s\n", r.Name, r.Version, r.InstallDir)
		case poks.StatusFailed:
			fmt.Printf("✗ %s@%s: %v\n", r.Name, r.Version, r.Err)
		default:
			fmt.Printf("- %s@%s (%s)\n", r.Name, r.Version, r.Status)
		}
	}

	installed, skipped, failed := summary.Counts()
	fmt.Printf("%d installed, %d skipped, %d failed\n", installed, skipped, failed)

	if len(summary.Env) > 0 && failed == 0 {
		fmt.Println("\nEnvironment updates:")
		if path, ok := summary.Env["PATH"]; ok {
			fmt.Printf("  PATH+=%s\n", path)
		}
		for key, value := range summary.Env {
			if key != "PATH" {
				fmt.Printf("  %s=%s\n", key, value)
			}
		}
	}
}
