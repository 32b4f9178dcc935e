// internal/cli/root.go
package cli

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"

	poks "github.com/poks-tools/poks"
	"github.com/poks-tools/poks/pkg/config"
	"github.com/poks-tools/poks/pkg/progress"
)

var (
	rootDir  string
	cacheDir string
	debug    bool
	noCache  bool

	settings *config.Settings
	engine   *poks.Engine
	logger   *log.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "poks",
	Short: "Cross-platform package manager for pre-built developer tools",
	Long: `poks - a lightweight archive downloader for pre-built binary dependencies.

Fetches, verifies, extracts, and activates tools described by JSON
manifests, pinned to exact versions, under a user-owned root directory.`,
	Version:       "0.1.0",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the CLI with the given context.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	cobra.OnInitialize(initEngine)

	rootCmd.PersistentFlags().StringVar(&rootDir, "root", "", "poks root directory (default $HOME/.poks)")
	rootCmd.PersistentFlags().StringVar(&cacheDir, "cache-dir", "", "archive cache directory (default <root>/cache)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&noCache, "no-cache", false, "always download, skipping cache hits")

	rootCmd.AddCommand(installCmd)
	rootCmd.AddCommand(uninstallCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(cacheCmd)
	rootCmd.AddCommand(bucketCmd)
	rootCmd.AddCommand(versionCmd)
}

func initEngine() {
	var err error
	settings, err = config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading settings: %v\n", err)
		settings = config.DefaultSettings()
	}
	if rootDir != "" {
		settings.Root = rootDir
		if cacheDir == "" {
			settings.CacheDir = ""
		}
	}
	if cacheDir != "" {
		settings.CacheDir = cacheDir
	}
	if debug {
		settings.Debug = true
	}

	if settings.Debug {
		logger = log.New(os.Stderr, "[poks] ", log.LstdFlags)
	} else {
		logger = log.New(io.Discard, "", 0)
	}

	reporter := progress.NewReporter(os.Stdout, settings.NoColor)
	engine, err = poks.NewFromSettings(settings, poks.Options{
		NoCache:    noCache,
		Logger:     logger,
		OnDownload: reporter.Download,
		OnExtract:  reporter.Extract,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
