// pkg/bucket/registry.go
package bucket

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/poks-tools/poks/pkg/manifest"
)

// Registry is the persisted list of known buckets (buckets.json in the
// poks root). It lets `poks bucket add` make a bucket available by name
// without writing a config file.
type Registry struct {
	Buckets []manifest.Bucket `json:"buckets"`

	path string
}

// LoadRegistry reads buckets.json, returning an empty registry when the
// file does not exist yet.
func LoadRegistry(path string) (*Registry, error) {
	reg := &Registry{path: path}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return reg, nil
		}
		return nil, fmt.Errorf("reading bucket registry: %w", err)
	}
	if err := json.Unmarshal(data, reg); err != nil {
		return nil, fmt.Errorf("parsing bucket registry %s: %w", path, err)
	}
	return reg, nil
}

// Save writes the registry back to its file.
func (r *Registry) Save() error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return fmt.Errorf("creating registry dir: %w", err)
	}
	return os.WriteFile(r.path, append(data, '\n'), 0o644)
}

// Get finds a bucket by name.
func (r *Registry) Get(name string) (manifest.Bucket, bool) {
	for _, b := range r.Buckets {
		if b.Name == name {
			return b, true
		}
	}
	return manifest.Bucket{}, false
}

// GetByURL finds a bucket by repository URL.
func (r *Registry) GetByURL(url string) (manifest.Bucket, bool) {
	for _, b := range r.Buckets {
		if b.URL == url {
			return b, true
		}
	}
	return manifest.Bucket{}, false
}

// AddOrUpdate registers a bucket, replacing the URL of an existing entry
// with the same name.
func (r *Registry) AddOrUpdate(b manifest.Bucket) {
	for i := range r.Buckets {
		if r.Buckets[i].Name == b.Name {
			r.Buckets[i].URL = b.URL
			return
		}
	}
	r.Buckets = append(r.Buckets, b)
}

// Remove drops a bucket by name and reports whether it was present.
func (r *Registry) Remove(name string) bool {
	for i := range r.Buckets {
		if r.Buckets[i].Name == name {
			r.Buckets = append(r.Buckets[:i], r.Buckets[i+1:]...)
			return true
		}
	}
	return false
}
