// pkg/installer/installer.go
package installer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/poks-tools/poks/pkg/bucket"
	"github.com/poks-tools/poks/pkg/config"
	"github.com/poks-tools/poks/pkg/download"
	"github.com/poks-tools/poks/pkg/env"
	"github.com/poks-tools/poks/pkg/extract"
	"github.com/poks-tools/poks/pkg/manifest"
	"github.com/poks-tools/poks/pkg/platform"
	"github.com/poks-tools/poks/pkg/progress"
	"github.com/poks-tools/poks/pkg/resolver"
)

// ManifestFileName is the manifest copy persisted inside every install.
const ManifestFileName = ".manifest.json"

// Error wraps an engine error with operation context.
type Error struct {
	Op  string // Operation that failed
	App string // App name if applicable
	Err error  // Underlying error
}

func (e *Error) Error() string {
	if e.App != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.App, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Status classifies the outcome of one app install.
type Status string

const (
	StatusInstalled        Status = "installed"
	StatusSkippedExisting  Status = "skipped-existing"
	StatusSkippedPlatform  Status = "skipped-platform"
	StatusSkippedCancelled Status = "skipped-cancelled"
	StatusFailed           Status = "failed"
)

// Result is the per-app install outcome.
type Result struct {
	Name       string
	Version    string
	InstallDir string
	Status     Status
	Err        error
	Env        map[string]string
}

// Summary aggregates results in config declaration order plus the merged
// environment updates of everything that is installed.
type Summary struct {
	Results []Result
	Env     map[string]string
}

// Counts tallies results by outcome class.
func (s *Summary) Counts() (installed, skipped, failed int) {
	for _, r := range s.Results {
		switch r.Status {
		case StatusInstalled:
			installed++
		case StatusFailed:
			failed++
		default:
			skipped++
		}
	}
	return
}

// Options configure an Installer.
type Options struct {
	AppsDir     string
	BucketsDir  string
	CacheDir    string
	Parallelism int
	NoCache     bool
	Logger      *log.Logger
	Client      *download.Client
	OnDownload  progress.Func
	OnExtract   progress.Func
}

// Installer drives the install pipeline: bucket sync, manifest lookup,
// archive resolution, download, extraction, and env collection. Apps run
// on a bounded worker pool; the steps within one app are sequential.
type Installer struct {
	appsDir     string
	bucketsDir  string
	cacheDir    string
	parallelism int
	noCache     bool
	logger      *log.Logger
	downloads   *download.Downloader
	onDownload  progress.Func
	onExtract   progress.Func
}

// New creates an Installer, filling unset options with defaults.
func New(opts Options) *Installer {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	parallelism := opts.Parallelism
	if parallelism <= 0 {
		parallelism = config.DefaultParallelism()
	}
	return &Installer{
		appsDir:     opts.AppsDir,
		bucketsDir:  opts.BucketsDir,
		cacheDir:    opts.CacheDir,
		parallelism: parallelism,
		noCache:     opts.NoCache,
		logger:      logger,
		downloads:   download.NewDownloader(opts.Client, logger),
		onDownload:  opts.OnDownload,
		onExtract:   opts.OnExtract,
	}
}

// Install processes every app in the config. Per-app failures land in
// their Result; config and bucket-sync errors abort the whole run.
func (i *Installer) Install(ctx context.Context, cfg *manifest.Config) (*Summary, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	hostOS, hostArch := platform.Current()

	paths, err := bucket.SyncAll(ctx, cfg.Buckets, i.bucketsDir, i.logger)
	if err != nil {
		return nil, err
	}
	order := i.searchOrder(cfg.Buckets, paths)

	results := make([]Result, len(cfg.Apps))
	g := new(errgroup.Group)
	g.SetLimit(i.parallelism)
	for idx := range cfg.Apps {
		g.Go(func() error {
			app := cfg.Apps[idx]
			if ctx.Err() != nil {
				results[idx] = Result{Name: app.Name, Version: app.Version, Status: StatusSkippedCancelled}
				return nil
			}
			results[idx] = i.installOne(ctx, app, order, paths, hostOS, hostArch)
			return nil
		})
	}
	g.Wait()

	return i.summarize(results), nil
}

// InstallApp installs a single name/version pair. bucketRef may be empty
// (search all local buckets), a known bucket name, or a repository URL,
// which is cloned into a slot derived from the URL so repeated installs
// reuse the clone.
func (i *Installer) InstallApp(ctx context.Context, name, version, bucketRef string) (*Summary, error) {
	app := manifest.App{Name: name, Version: version}
	var buckets []manifest.Bucket

	switch {
	case bucketRef == "":
		// No bucket: rely on whatever is already under buckets/.
	case bucket.IsURL(bucketRef):
		b := manifest.Bucket{Name: urlSlot(bucketRef), URL: bucketRef}
		buckets = append(buckets, b)
		app.Bucket = b.Name
	default:
		buckets = append(buckets, manifest.Bucket{Name: bucketRef})
		app.Bucket = bucketRef
	}

	return i.Install(ctx, &manifest.Config{Buckets: buckets, Apps: []manifest.App{app}})
}

// InstallFromManifest installs straight from a manifest file, with no
// bucket involvement or side effects.
func (i *Installer) InstallFromManifest(ctx context.Context, manifestPath, version string) (*Summary, error) {
	m, err := manifest.LoadManifest(manifestPath)
	if err != nil {
		return nil, err
	}
	hostOS, hostArch := platform.Current()
	name := strings.TrimSuffix(filepath.Base(manifestPath), ".json")

	res := i.installResolved(ctx, name, version, m, hostOS, hostArch)
	return i.summarize([]Result{res}), nil
}

// searchOrder is the bucket order for selector lookups: config declaration
// order first, then any other local bucket in name order.
func (i *Installer) searchOrder(declared []manifest.Bucket, paths map[string]string) []string {
	order := make([]string, 0, len(declared))
	seen := make(map[string]bool, len(declared))
	for _, b := range declared {
		order = append(order, b.Name)
		seen[b.Name] = true
	}

	entries, err := os.ReadDir(i.bucketsDir)
	if err != nil {
		return order
	}
	var extra []string
	for _, entry := range entries {
		if entry.IsDir() && !seen[entry.Name()] {
			extra = append(extra, entry.Name())
		}
	}
	sort.Strings(extra)
	for _, name := range extra {
		order = append(order, name)
		paths[name] = filepath.Join(i.bucketsDir, name)
	}
	return order
}

func (i *Installer) installOne(ctx context.Context, app manifest.App, order []string, paths map[string]string, hostOS, hostArch string) Result {
	res := Result{Name: app.Name, Version: app.Version}

	if !app.Supports(hostOS, hostArch) {
		i.logger.Printf("skipping %s: not supported on %s/%s", app.Name, hostOS, hostArch)
		res.Status = StatusSkippedPlatform
		return res
	}

	var manifestPath string
	var err error
	if app.Bucket != "" {
		dir, ok := paths[app.Bucket]
		if !ok {
			dir = filepath.Join(i.bucketsDir, app.Bucket)
		}
		manifestPath, err = bucket.FindManifest(app.Name, dir)
	} else {
		manifestPath, _, err = bucket.FindInBuckets(app.Name, order, paths, i.logger)
	}
	if err != nil {
		return i.fail(res, err)
	}

	m, err := manifest.LoadManifest(manifestPath)
	if err != nil {
		return i.fail(res, err)
	}
	return i.installResolved(ctx, app.Name, app.Version, m, hostOS, hostArch)
}

// installResolved runs the per-app pipeline once the manifest is in hand.
func (i *Installer) installResolved(ctx context.Context, name, version string, m *manifest.Manifest, hostOS, hostArch string) Result {
	res := Result{Name: name, Version: version}

	ver, err := m.SelectVersion(version)
	if err != nil {
		return i.fail(res, err)
	}

	installDir := filepath.Join(i.appsDir, name, version)
	if _, err := os.Stat(filepath.Join(installDir, ManifestFileName)); err == nil {
		i.logger.Printf("skipping %s@%s: already installed", name, version)
		res.Status = StatusSkippedExisting
		res.InstallDir = installDir
		res.Env = i.collectPersistedEnv(installDir, version, ver)
		return res
	}

	archive, err := resolver.SelectArchive(ver, hostOS, hostArch)
	if err != nil {
		return i.fail(res, err)
	}
	url, err := resolver.DownloadURL(ver, archive)
	if err != nil {
		return i.fail(res, err)
	}
	if archive.Ext == "" {
		// No declared ext: the URL itself must name a supported format.
		// Checking up front avoids downloading something unextractable.
		if _, err := resolver.DetectExt(url); err != nil {
			return i.fail(res, err)
		}
	}

	archivePath, err := i.downloads.GetCachedOrDownload(ctx, url, archive.SHA256, i.cacheDir, download.Options{
		App:      name,
		Progress: i.onDownload,
		NoCache:  i.noCache,
	})
	if err != nil {
		return i.fail(res, err)
	}

	// Extraction lands in a staging directory that is renamed into place
	// only on success, so a failed or cancelled install leaves nothing
	// under apps/<name>/<version>/.
	parent := filepath.Join(i.appsDir, name)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return i.fail(res, fmt.Errorf("creating %s: %w", parent, err))
	}
	staging, err := os.MkdirTemp(parent, ".staging-"+version+"-*")
	if err != nil {
		return i.fail(res, fmt.Errorf("creating staging dir: %w", err))
	}
	defer os.RemoveAll(staging)

	if _, err := extract.Extract(ctx, archivePath, staging, extract.Options{
		ExtractDir: ver.ExtractDir,
		App:        name,
		Progress:   i.onExtract,
		Prefix:     installDir,
		Logger:     i.logger,
	}); err != nil {
		return i.fail(res, err)
	}

	if err := manifest.WriteManifest(filepath.Join(staging, ManifestFileName), m); err != nil {
		return i.fail(res, err)
	}

	// A leftover directory without a persisted manifest is a broken
	// install from an older poks; replace it.
	if err := os.RemoveAll(installDir); err != nil {
		return i.fail(res, fmt.Errorf("clearing stale install dir: %w", err))
	}
	if err := os.Rename(staging, installDir); err != nil {
		return i.fail(res, fmt.Errorf("activating install: %w", err))
	}

	i.logger.Printf("installed %s@%s", name, version)
	res.Status = StatusInstalled
	res.InstallDir = installDir
	res.Env = env.Collect(ver, installDir)
	return res
}

// collectPersistedEnv prefers the manifest persisted at install time, so a
// re-run yields the same env even if the bucket has moved on.
func (i *Installer) collectPersistedEnv(installDir, version string, fallback *manifest.AppVersion) map[string]string {
	ver := fallback
	if persisted, err := manifest.LoadManifest(filepath.Join(installDir, ManifestFileName)); err == nil {
		if v := persisted.Version(version); v != nil {
			ver = v
		}
	}
	return env.Collect(ver, installDir)
}

func (i *Installer) fail(res Result, err error) Result {
	if errors.Is(err, context.Canceled) {
		res.Status = StatusSkippedCancelled
		return res
	}
	i.logger.Printf("failed %s@%s: %v", res.Name, res.Version, err)
	res.Status = StatusFailed
	res.Err = &Error{Op: "install", App: res.Name + "@" + res.Version, Err: err}
	return res
}

func (i *Installer) summarize(results []Result) *Summary {
	var updates []map[string]string
	for _, r := range results {
		if len(r.Env) > 0 {
			updates = append(updates, r.Env)
		}
	}
	merged := env.Merge(updates, func(format string, args ...any) {
		i.logger.Printf("warning: "+format, args...)
	})
	return &Summary{Results: results, Env: merged}
}

// urlSlot derives a stable local directory name for an ad-hoc bucket URL.
func urlSlot(url string) string {
	trimmed := strings.TrimSuffix(strings.TrimRight(url, "/"), ".git")
	base := path.Base(strings.ReplaceAll(trimmed, `\`, "/"))
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		default:
			return '-'
		}
	}, base)
	sum := sha256.Sum256([]byte(url))
	return base + "-" + hex.EncodeToString(sum[:4])
}
