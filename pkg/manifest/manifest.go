// pkg/manifest/manifest.go
package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// DefaultSchemaVersion is assumed when a manifest carries no schema_version.
const DefaultSchemaVersion = "1.0.0"

// ErrManifestInvalid indicates a manifest that parsed but violates the schema.
var ErrManifestInvalid = errors.New("invalid manifest")

// ErrVersionNotFound indicates the requested version is not in the manifest.
var ErrVersionNotFound = errors.New("version not found")

// ErrYankedVersion indicates the requested version has been yanked.
var ErrYankedVersion = errors.New("version yanked")

var manifestKeys = []string{"description", "versions", "schema_version", "license", "homepage"}

// UnmarshalJSON decodes a manifest, stashing unrecognized top-level fields
// into Unknown instead of dropping them.
func (m *Manifest) UnmarshalJSON(data []byte) error {
	type plain Manifest
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for _, key := range manifestKeys {
		delete(raw, key)
	}
	if len(raw) > 0 {
		p.Unknown = raw
	}

	*m = Manifest(p)
	return nil
}

// MarshalJSON re-serializes the manifest including any preserved unknown fields.
func (m Manifest) MarshalJSON() ([]byte, error) {
	type plain Manifest
	data, err := json.Marshal(plain(m))
	if err != nil {
		return nil, err
	}
	if len(m.Unknown) == 0 {
		return data, nil
	}

	var merged map[string]json.RawMessage
	if err := json.Unmarshal(data, &merged); err != nil {
		return nil, err
	}
	for key, value := range m.Unknown {
		merged[key] = value
	}
	return json.Marshal(merged)
}

// ParseManifest decodes and validates a manifest document.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrManifestInvalid, err)
	}
	if m.SchemaVersion == "" {
		m.SchemaVersion = DefaultSchemaVersion
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// LoadManifest reads and parses a manifest file.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	m, err := ParseManifest(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// WriteManifest serializes the manifest to path with stable formatting.
func WriteManifest(path string, m *Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("serializing manifest: %w", err)
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

// Validate checks the manifest invariants: at least one version, unique
// version strings, non-empty archive lists, unique (os, arch) pairs, and an
// ext on every archive that has no explicit URL covering it.
func (m *Manifest) Validate() error {
	if len(m.Versions) == 0 {
		return fmt.Errorf("%w: no versions", ErrManifestInvalid)
	}

	seenVersions := make(map[string]bool, len(m.Versions))
	for i := range m.Versions {
		v := &m.Versions[i]
		if v.Version == "" {
			return fmt.Errorf("%w: version entry %d has empty version", ErrManifestInvalid, i)
		}
		if seenVersions[v.Version] {
			return fmt.Errorf("%w: duplicate version %q", ErrManifestInvalid, v.Version)
		}
		seenVersions[v.Version] = true

		if len(v.Archives) == 0 {
			return fmt.Errorf("%w: version %q has no archives", ErrManifestInvalid, v.Version)
		}
		seenPlatforms := make(map[string]bool, len(v.Archives))
		for _, a := range v.Archives {
			key := a.OS + "/" + a.Arch
			if seenPlatforms[key] {
				return fmt.Errorf("%w: version %q has duplicate archive for %s", ErrManifestInvalid, v.Version, key)
			}
			seenPlatforms[key] = true
			if a.SHA256 == "" {
				return fmt.Errorf("%w: version %q archive %s has no sha256", ErrManifestInvalid, v.Version, key)
			}
			if a.Ext == "" && a.URL == "" && v.URL == "" {
				return fmt.Errorf("%w: version %q archive %s has neither ext nor url", ErrManifestInvalid, v.Version, key)
			}
		}
	}
	return nil
}

// SelectVersion returns the version entry for the exact version string,
// failing with ErrVersionNotFound or ErrYankedVersion.
func (m *Manifest) SelectVersion(version string) (*AppVersion, error) {
	v := m.Version(version)
	if v == nil {
		return nil, fmt.Errorf("%w: %q", ErrVersionNotFound, version)
	}
	if v.Yanked != "" {
		return nil, fmt.Errorf("%w: %q: %s", ErrYankedVersion, version, v.Yanked)
	}
	return v, nil
}
