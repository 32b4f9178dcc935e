// pkg/resolver/resolver.go
package resolver

import (
	"errors"
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/poks-tools/poks/pkg/extract"
	"github.com/poks-tools/poks/pkg/manifest"
)

// ErrVariableUnresolved indicates a ${name} placeholder with no mapping.
var ErrVariableUnresolved = errors.New("unresolved variable")

// ErrUnsupportedPlatform indicates no archive matches the host platform.
var ErrUnsupportedPlatform = errors.New("unsupported platform")

var placeholderPattern = regexp.MustCompile(`\$\{(\w+)\}`)

// Expand replaces ${name} placeholders in template with values from vars.
// Expansion is a single pass; values are never re-expanded. An unknown name
// fails with ErrVariableUnresolved.
func Expand(template string, vars map[string]string) (string, error) {
	var missing string
	out := placeholderPattern.ReplaceAllStringFunc(template, func(match string) string {
		name := match[2 : len(match)-1]
		if value, ok := vars[name]; ok {
			return value
		}
		if missing == "" {
			missing = name
		}
		return match
	})
	if missing != "" {
		return "", fmt.Errorf("%w: ${%s} in %q", ErrVariableUnresolved, missing, template)
	}
	return out, nil
}

// SelectArchive returns the first archive whose (os, arch) equals the host
// platform. Selection is deterministic on declaration order.
func SelectArchive(v *manifest.AppVersion, os, arch string) (*manifest.Archive, error) {
	for i := range v.Archives {
		a := &v.Archives[i]
		if a.OS == os && a.Arch == arch {
			return a, nil
		}
	}

	supported := make([]string, 0, len(v.Archives))
	for _, a := range v.Archives {
		supported = append(supported, a.OS+"/"+a.Arch)
	}
	return nil, fmt.Errorf("%w: no archive for %s/%s (available: %v)", ErrUnsupportedPlatform, os, arch, supported)
}

// DownloadURL computes the fully-expanded download URL for an archive.
// An archive-level url overrides the version-level template.
func DownloadURL(v *manifest.AppVersion, a *manifest.Archive) (string, error) {
	template := a.URL
	if template == "" {
		template = v.URL
	}
	if template == "" {
		return "", fmt.Errorf("%w: version %q has no url template for %s/%s",
			manifest.ErrManifestInvalid, v.Version, a.OS, a.Arch)
	}

	vars := map[string]string{
		"version": v.Version,
		"os":      a.OS,
		"arch":    a.Arch,
	}
	if a.Ext != "" {
		vars["ext"] = a.Ext
	}
	return Expand(template, vars)
}

// DetectExt infers the archive extension from a download URL by longest
// matching suffix over the supported-format table. Used when neither the
// archive entry nor the url template carries an ext.
func DetectExt(url string) (string, error) {
	trimmed := url
	if i := strings.IndexByte(trimmed, '?'); i >= 0 {
		trimmed = trimmed[:i]
	}
	base := strings.ToLower(path.Base(strings.TrimRight(trimmed, "/")))
	for _, ext := range extract.Extensions() {
		if strings.HasSuffix(base, ext) {
			return ext, nil
		}
	}
	return "", fmt.Errorf("%w: cannot infer archive format from %q", extract.ErrUnsupportedArchive, url)
}
