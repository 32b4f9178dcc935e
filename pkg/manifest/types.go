// pkg/manifest/types.go
package manifest

import "encoding/json"

// Bucket is a git repository holding one manifest file per app.
type Bucket struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// App selects a single app at an exact version, optionally pinned to a
// bucket and restricted to a set of platforms.
type App struct {
	Name    string   `json:"name"`
	Version string   `json:"version"`
	Bucket  string   `json:"bucket,omitempty"`
	OS      []string `json:"os,omitempty"`
	Arch    []string `json:"arch,omitempty"`
}

// Supports reports whether the app's platform filters include the given
// os/arch pair. An absent filter matches everything.
func (a *App) Supports(os, arch string) bool {
	return (a.OS == nil || contains(a.OS, os)) &&
		(a.Arch == nil || contains(a.Arch, arch))
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

// Archive is a single downloadable artifact for one (os, arch) pair.
type Archive struct {
	OS     string `json:"os"`
	Arch   string `json:"arch"`
	SHA256 string `json:"sha256"`
	Ext    string `json:"ext,omitempty"`
	URL    string `json:"url,omitempty"`
}

// AppVersion describes one installable version of an app.
type AppVersion struct {
	Version    string            `json:"version"`
	Archives   []Archive         `json:"archives"`
	ExtractDir string            `json:"extract_dir,omitempty"`
	Bin        []string          `json:"bin,omitempty"`
	Env        map[string]string `json:"env,omitempty"`
	License    string            `json:"license,omitempty"`
	Yanked     string            `json:"yanked,omitempty"`
	URL        string            `json:"url,omitempty"`
}

// Manifest is the full description of an app as shipped in a bucket.
//
// Unknown top-level fields are preserved across parse/serialize so that
// manifests written by a newer poks survive a round trip through an older
// one.
type Manifest struct {
	Description   string       `json:"description"`
	Versions      []AppVersion `json:"versions"`
	SchemaVersion string       `json:"schema_version"`
	License       string       `json:"license,omitempty"`
	Homepage      string       `json:"homepage,omitempty"`

	Unknown map[string]json.RawMessage `json:"-"`
}

// Version returns the entry with the exact version string, or nil.
func (m *Manifest) Version(version string) *AppVersion {
	for i := range m.Versions {
		if m.Versions[i].Version == version {
			return &m.Versions[i]
		}
	}
	return nil
}

// Config is the top-level poks.json: buckets to sync and apps to install.
type Config struct {
	Buckets []Bucket `json:"buckets"`
	Apps    []App    `json:"apps"`
}

// InstalledApp describes one apps/<name>/<version>/ directory, resolved
// against its persisted manifest.
type InstalledApp struct {
	Name       string            `json:"name"`
	Version    string            `json:"version"`
	InstallDir string            `json:"install_dir"`
	BinDirs    []string          `json:"bin_dirs,omitempty"`
	Env        map[string]string `json:"env,omitempty"`
}

// SearchHit is one manifest matching a search query.
type SearchHit struct {
	Bucket      string   `json:"bucket"`
	Name        string   `json:"name"`
	Versions    []string `json:"versions"`
	Description string   `json:"description"`
}
