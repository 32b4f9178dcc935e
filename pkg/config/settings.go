// pkg/config/settings.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Settings holds tool-level configuration: where poks keeps its state and
// how it behaves. This is distinct from poks.json, which declares what to
// install.
type Settings struct {
	// Root is the poks root directory (apps/, buckets/, cache/).
	Root string `yaml:"root"`
	// CacheDir overrides the default <root>/cache location.
	CacheDir string `yaml:"cache_dir"`
	// Parallelism caps the install worker pool; 0 means auto.
	Parallelism int `yaml:"parallelism"`
	// Debug enables engine logging.
	Debug bool `yaml:"debug"`
	// NoColor disables progress styling.
	NoColor bool `yaml:"no_color"`
}

// DefaultSettings returns settings with the stock root under the home
// directory.
func DefaultSettings() *Settings {
	home, err := os.UserHomeDir()
	if err != nil {
		return &Settings{Root: filepath.Join(os.TempDir(), "poks")}
	}
	return &Settings{Root: filepath.Join(home, ".poks")}
}

// Load reads settings from path (default ~/.config/poks/settings.yaml),
// then applies POKS_* environment overrides. A missing file yields the
// defaults.
func Load(path string) (*Settings, error) {
	s := DefaultSettings()

	if path == "" {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, ".config", "poks", "settings.yaml")
		}
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			if err := yaml.Unmarshal(data, s); err != nil {
				return nil, fmt.Errorf("parsing settings %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading settings: %w", err)
		}
	}

	s.applyEnv()
	if s.Root == "" {
		s.Root = DefaultSettings().Root
	}
	if s.CacheDir == "" {
		s.CacheDir = filepath.Join(s.Root, "cache")
	}
	if s.Parallelism <= 0 {
		s.Parallelism = DefaultParallelism()
	}
	return s, nil
}

func (s *Settings) applyEnv() {
	if v := os.Getenv("POKS_ROOT"); v != "" {
		s.Root = v
		// A root override moves the default cache along with it.
		s.CacheDir = ""
	}
	if v := os.Getenv("POKS_CACHE_DIR"); v != "" {
		s.CacheDir = v
	}
	if v := os.Getenv("POKS_PARALLELISM"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			s.Parallelism = n
		}
	}
	if os.Getenv("POKS_NO_COLOR") != "" {
		s.NoColor = true
	}
}

// DefaultParallelism is the worker-pool size when nothing is configured:
// the hardware thread count, capped.
func DefaultParallelism() int {
	n := runtime.NumCPU()
	if n > 8 {
		n = 8
	}
	if n < 1 {
		n = 1
	}
	return n
}
