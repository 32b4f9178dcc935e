// poks.go
package poks

import (
	"context"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/poks-tools/poks/pkg/bucket"
	"github.com/poks-tools/poks/pkg/config"
	"github.com/poks-tools/poks/pkg/download"
	"github.com/poks-tools/poks/pkg/installer"
	"github.com/poks-tools/poks/pkg/manifest"
	"github.com/poks-tools/poks/pkg/progress"
)

// Re-export the engine types for convenience
type (
	Config       = manifest.Config
	App          = manifest.App
	Bucket       = manifest.Bucket
	Manifest     = manifest.Manifest
	AppVersion   = manifest.AppVersion
	Archive      = manifest.Archive
	InstalledApp = manifest.InstalledApp
	SearchHit    = manifest.SearchHit
	Result       = installer.Result
	Summary      = installer.Summary
	Status       = installer.Status
	Settings     = config.Settings
)

// Re-export install statuses
const (
	StatusInstalled        = installer.StatusInstalled
	StatusSkippedExisting  = installer.StatusSkippedExisting
	StatusSkippedPlatform  = installer.StatusSkippedPlatform
	StatusSkippedCancelled = installer.StatusSkippedCancelled
	StatusFailed           = installer.StatusFailed
)

// Options configure an Engine.
type Options struct {
	// Root is the poks root directory; empty means the default root
	// ($HOME/.poks).
	Root string
	// CacheDir overrides <root>/cache.
	CacheDir string
	// Parallelism caps the install worker pool; 0 means auto.
	Parallelism int
	// NoCache bypasses cache-hit checks on downloads.
	NoCache bool
	// Logger receives engine logging; nil discards.
	Logger *log.Logger
	// OnDownload and OnExtract receive progress updates.
	OnDownload progress.Func
	OnExtract  progress.Func
}

// Engine is a per-process poks instance rooted at one directory. Multiple
// engines with distinct roots can coexist.
type Engine struct {
	root       string
	appsDir    string
	bucketsDir string
	cacheDir   string
	logger     *log.Logger
	installer  *installer.Installer
}

// New creates an Engine for the given root directory.
func New(opts Options) (*Engine, error) {
	root := opts.Root
	if root == "" {
		root = config.DefaultSettings().Root
	}
	cacheDir := opts.CacheDir
	if cacheDir == "" {
		cacheDir = filepath.Join(root, "cache")
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	e := &Engine{
		root:       root,
		appsDir:    filepath.Join(root, "apps"),
		bucketsDir: filepath.Join(root, "buckets"),
		cacheDir:   cacheDir,
		logger:     logger,
	}
	e.installer = installer.New(installer.Options{
		AppsDir:     e.appsDir,
		BucketsDir:  e.bucketsDir,
		CacheDir:    e.cacheDir,
		Parallelism: opts.Parallelism,
		NoCache:     opts.NoCache,
		Logger:      logger,
		OnDownload:  opts.OnDownload,
		OnExtract:   opts.OnExtract,
	})
	return e, nil
}

// NewFromSettings creates an Engine from loaded tool settings.
func NewFromSettings(s *config.Settings, opts Options) (*Engine, error) {
	if opts.Root == "" {
		opts.Root = s.Root
	}
	if opts.CacheDir == "" {
		opts.CacheDir = s.CacheDir
	}
	if opts.Parallelism == 0 {
		opts.Parallelism = s.Parallelism
	}
	return New(opts)
}

// Root returns the engine root directory.
func (e *Engine) Root() string { return e.root }

// AppsDir returns the directory holding installed apps.
func (e *Engine) AppsDir() string { return e.appsDir }

// BucketsDir returns the directory holding bucket clones.
func (e *Engine) BucketsDir() string { return e.bucketsDir }

// CacheDir returns the archive cache directory.
func (e *Engine) CacheDir() string { return e.cacheDir }

// Install processes every app in the config and returns per-app results
// plus the merged environment updates.
func (e *Engine) Install(ctx context.Context, cfg *Config) (*Summary, error) {
	return e.installer.Install(ctx, cfg)
}

// InstallFile reads a poks.json file and installs its apps.
func (e *Engine) InstallFile(ctx context.Context, configPath string) (*Summary, error) {
	cfg, err := manifest.LoadConfig(configPath)
	if err != nil {
		return nil, &Error{Op: "install", Err: err}
	}
	return e.installer.Install(ctx, cfg)
}

// InstallApp installs one name/version pair. bucketRef may be empty, a
// bucket name (local clone or registry entry), or a repository URL.
func (e *Engine) InstallApp(ctx context.Context, name, version, bucketRef string) (*Summary, error) {
	if bucketRef != "" && !bucket.IsURL(bucketRef) {
		// A registered bucket name brings its URL along, so the clone
		// happens on demand.
		if reg, err := bucket.LoadRegistry(e.registryPath()); err == nil {
			if b, ok := reg.Get(bucketRef); ok && b.URL != "" {
				return e.installer.Install(ctx, &Config{
					Buckets: []Bucket{b},
					Apps:    []App{{Name: name, Version: version, Bucket: b.Name}},
				})
			}
		}
	}
	return e.installer.InstallApp(ctx, name, version, bucketRef)
}

// InstallFromManifest installs straight from a manifest file with no
// bucket side effects.
func (e *Engine) InstallFromManifest(ctx context.Context, manifestPath, version string) (*Summary, error) {
	return e.installer.InstallFromManifest(ctx, manifestPath, version)
}

// Uninstall removes one version of an app, or all versions when version is
// empty.
func (e *Engine) Uninstall(name, version string, missingOK bool) error {
	if err := installer.Uninstall(e.appsDir, name, version, missingOK, e.logger); err != nil {
		return &Error{Op: "uninstall", App: appRef(name, version), Err: err}
	}
	return nil
}

// UninstallAll wipes the apps tree.
func (e *Engine) UninstallAll() error {
	if err := installer.UninstallAll(e.appsDir, e.logger); err != nil {
		return &Error{Op: "uninstall", Err: err}
	}
	return nil
}

// List returns every install that carries a persisted manifest.
func (e *Engine) List() ([]InstalledApp, error) {
	return installer.List(e.appsDir, e.logger)
}

// Search scans local buckets for app names containing the query.
func (e *Engine) Search(query string) ([]SearchHit, error) {
	return bucket.Search(e.bucketsDir, query, e.logger)
}

// CacheClear deletes all cached archives.
func (e *Engine) CacheClear() error {
	return download.Clear(e.cacheDir)
}

// CacheSize returns the total size of cached archives in bytes.
func (e *Engine) CacheSize() (int64, error) {
	return download.Size(e.cacheDir)
}

// AddBucket registers a bucket and syncs it.
func (e *Engine) AddBucket(ctx context.Context, b Bucket) error {
	reg, err := bucket.LoadRegistry(e.registryPath())
	if err != nil {
		return &Error{Op: "bucket add", App: b.Name, Err: err}
	}
	if _, err := bucket.Sync(ctx, b, e.bucketsDir, e.logger); err != nil {
		return &Error{Op: "bucket add", App: b.Name, Err: err}
	}
	reg.AddOrUpdate(b)
	if err := reg.Save(); err != nil {
		return &Error{Op: "bucket add", App: b.Name, Err: err}
	}
	return nil
}

// RemoveBucket unregisters a bucket and deletes its local clone.
func (e *Engine) RemoveBucket(name string) error {
	reg, err := bucket.LoadRegistry(e.registryPath())
	if err != nil {
		return &Error{Op: "bucket remove", App: name, Err: err}
	}
	reg.Remove(name)
	if err := reg.Save(); err != nil {
		return &Error{Op: "bucket remove", App: name, Err: err}
	}
	if err := os.RemoveAll(filepath.Join(e.bucketsDir, name)); err != nil {
		return &Error{Op: "bucket remove", App: name, Err: err}
	}
	return nil
}

// Buckets returns the registered buckets.
func (e *Engine) Buckets() ([]Bucket, error) {
	reg, err := bucket.LoadRegistry(e.registryPath())
	if err != nil {
		return nil, err
	}
	return reg.Buckets, nil
}

func (e *Engine) registryPath() string {
	return filepath.Join(e.root, "buckets.json")
}

func appRef(name, version string) string {
	if version == "" {
		return name
	}
	return name + "@" + version
}
