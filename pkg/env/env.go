// pkg/env/env.go
package env

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/poks-tools/poks/pkg/manifest"
)

// PathVar is the merged executable-search variable.
const PathVar = "PATH"

// Collect builds the environment updates contributed by one installed
// version: bin entries become a PATH list rooted at installDir, env values
// have ${dir} expanded to installDir.
func Collect(version *manifest.AppVersion, installDir string) map[string]string {
	updates := make(map[string]string)

	if len(version.Bin) > 0 {
		seen := make(map[string]bool, len(version.Bin))
		paths := make([]string, 0, len(version.Bin))
		for _, entry := range version.Bin {
			p := filepath.Join(installDir, filepath.FromSlash(entry))
			if seen[p] {
				continue
			}
			seen[p] = true
			paths = append(paths, p)
		}
		updates[PathVar] = strings.Join(paths, string(os.PathListSeparator))
	}

	for key, value := range version.Env {
		updates[key] = strings.ReplaceAll(value, "${dir}", installDir)
	}
	return updates
}

// Merge combines env updates in list order. PATH entries concatenate with
// the OS path separator, keeping relative order and dropping duplicates.
// Other keys are last-writer-wins; conflicts are reported through warn.
func Merge(updates []map[string]string, warn func(format string, args ...any)) map[string]string {
	if warn == nil {
		warn = func(string, ...any) {}
	}

	merged := make(map[string]string)
	var pathEntries []string
	seenPaths := make(map[string]bool)

	for _, u := range updates {
		for key, value := range u {
			if key == PathVar {
				for _, p := range strings.Split(value, string(os.PathListSeparator)) {
					if p == "" || seenPaths[p] {
						continue
					}
					seenPaths[p] = true
					pathEntries = append(pathEntries, p)
				}
				continue
			}
			if existing, ok := merged[key]; ok && existing != value {
				warn("conflicting env var %q: overwriting %q with %q", key, existing, value)
			}
			merged[key] = value
		}
	}

	if len(pathEntries) > 0 {
		merged[PathVar] = strings.Join(pathEntries, string(os.PathListSeparator))
	}
	return merged
}
