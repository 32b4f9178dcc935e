// pkg/manifest/config.go
package manifest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// ErrConfigInvalid indicates a malformed or inconsistent poks.json.
var ErrConfigInvalid = errors.New("invalid config")

// ParseConfig decodes and validates a poks.json document. Unknown fields
// are rejected so that typos surface instead of being silently ignored.
func ParseConfig(data []byte) (*Config, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var cfg Config
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigInvalid, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadConfig reads and parses a poks.json file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg, err := ParseConfig(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks config invariants: unique bucket names, complete app
// entries, and every app bucket reference resolving to a declared bucket.
func (c *Config) Validate() error {
	names := make(map[string]bool, len(c.Buckets))
	for _, b := range c.Buckets {
		if b.Name == "" {
			return fmt.Errorf("%w: bucket with empty name", ErrConfigInvalid)
		}
		if names[b.Name] {
			return fmt.Errorf("%w: duplicate bucket %q", ErrConfigInvalid, b.Name)
		}
		names[b.Name] = true
	}

	for _, app := range c.Apps {
		if app.Name == "" {
			return fmt.Errorf("%w: app with empty name", ErrConfigInvalid)
		}
		if app.Version == "" {
			return fmt.Errorf("%w: app %q has no version", ErrConfigInvalid, app.Name)
		}
		if app.Bucket != "" && !names[app.Bucket] {
			return fmt.Errorf("%w: app %q references undeclared bucket %q", ErrConfigInvalid, app.Name, app.Bucket)
		}
	}
	return nil
}
