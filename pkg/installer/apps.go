// pkg/installer/apps.go
//
// Filesystem sweeps over the apps tree: listing installs and removing them.
package installer

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"

	"github.com/poks-tools/poks/pkg/env"
	"github.com/poks-tools/poks/pkg/manifest"
)

// ErrNotInstalled indicates an uninstall target that does not exist.
var ErrNotInstalled = errors.New("not installed")

// List yields every apps/<name>/<version>/ directory containing a
// persisted manifest, resolved to its bin dirs and env.
func List(appsDir string, logger *log.Logger) ([]manifest.InstalledApp, error) {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	appEntries, err := os.ReadDir(appsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading apps dir: %w", err)
	}

	var installed []manifest.InstalledApp
	for _, appEntry := range appEntries {
		if !appEntry.IsDir() {
			continue
		}
		name := appEntry.Name()
		versionEntries, err := os.ReadDir(filepath.Join(appsDir, name))
		if err != nil {
			continue
		}
		for _, versionEntry := range versionEntries {
			if !versionEntry.IsDir() {
				continue
			}
			version := versionEntry.Name()
			installDir := filepath.Join(appsDir, name, version)

			m, err := manifest.LoadManifest(filepath.Join(installDir, ManifestFileName))
			if err != nil {
				continue
			}

			app := manifest.InstalledApp{Name: name, Version: version, InstallDir: installDir}
			if v := m.Version(version); v != nil {
				for _, bin := range v.Bin {
					app.BinDirs = append(app.BinDirs, filepath.Join(installDir, filepath.FromSlash(bin)))
				}
				updates := env.Collect(v, installDir)
				delete(updates, env.PathVar)
				if len(updates) > 0 {
					app.Env = updates
				}
			} else {
				logger.Printf("version %s missing from stored manifest of %s", version, name)
			}
			installed = append(installed, app)
		}
	}

	sort.Slice(installed, func(a, b int) bool {
		if installed[a].Name != installed[b].Name {
			return installed[a].Name < installed[b].Name
		}
		return installed[a].Version < installed[b].Version
	})
	return installed, nil
}

// Uninstall removes one version of an app, or every version when version
// is empty. Removing a missing target is an error unless missingOK is set.
func Uninstall(appsDir, name, version string, missingOK bool, logger *log.Logger) error {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	appDir := filepath.Join(appsDir, name)

	if version == "" {
		if _, err := os.Stat(appDir); err != nil {
			if missingOK {
				return nil
			}
			return fmt.Errorf("%w: %s", ErrNotInstalled, name)
		}
		if err := os.RemoveAll(appDir); err != nil {
			return fmt.Errorf("removing %s: %w", appDir, err)
		}
		logger.Printf("removed %s", name)
		return nil
	}

	versionDir := filepath.Join(appDir, version)
	if _, err := os.Stat(versionDir); err != nil {
		if missingOK {
			return nil
		}
		return fmt.Errorf("%w: %s@%s", ErrNotInstalled, name, version)
	}
	if err := os.RemoveAll(versionDir); err != nil {
		return fmt.Errorf("removing %s: %w", versionDir, err)
	}
	logger.Printf("removed %s@%s", name, version)

	// Drop the app directory once its last version is gone.
	if entries, err := os.ReadDir(appDir); err == nil && len(entries) == 0 {
		os.Remove(appDir)
	}
	return nil
}

// UninstallAll wipes the whole apps tree.
func UninstallAll(appsDir string, logger *log.Logger) error {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	entries, err := os.ReadDir(appsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading apps dir: %w", err)
	}
	for _, entry := range entries {
		target := filepath.Join(appsDir, entry.Name())
		if err := os.RemoveAll(target); err != nil {
			return fmt.Errorf("removing %s: %w", target, err)
		}
		logger.Printf("removed %s", entry.Name())
	}
	return nil
}
