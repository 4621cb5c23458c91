// Package config loads callsite settings from a YAML file. Command-line
// flags override whatever the file sets.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/jward/callsite/internal/sexp"
)

// FileName is the config file looked up at the repository root.
const FileName = ".callsite.yaml"

// Config holds every setting the CLI and engine accept.
type Config struct {
	// DB is the index database path. Relative paths are resolved against the
	// repository root.
	DB string `yaml:"db"`

	// Format is the CLI output format: "text" or "json".
	Format string `yaml:"format"`

	// Dialects restricts indexing and searching. Empty means all dialects.
	Dialects []string `yaml:"dialects"`

	// Parallel enables the parallel indexing pipeline.
	Parallel bool `yaml:"parallel"`

	// Workers bounds parallel reading. Zero means GOMAXPROCS.
	Workers int `yaml:"workers"`

	// SkipDirs are directory names never descended into when walking.
	SkipDirs []string `yaml:"skip_dirs"`

	LogLevel    string `yaml:"log_level"`
	MetricsFile string `yaml:"metrics_file"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		DB:       ".callsite/index.db",
		Format:   "text",
		Parallel: true,
		SkipDirs: []string{"node_modules", "vendor", "target", "elpa", ".cask"},
		LogLevel: "warn",
	}
}

// Load reads path over the defaults. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// LoadFromRoot loads FileName from the repository root.
func LoadFromRoot(root string) (Config, error) {
	return Load(filepath.Join(root, FileName))
}

// Validate checks enumerated settings.
func (c Config) Validate() error {
	if c.Format != "text" && c.Format != "json" {
		return fmt.Errorf("invalid format %q (must be text or json)", c.Format)
	}
	known := sexp.DialectNames()
	for _, d := range c.Dialects {
		if !slices.Contains(known, d) {
			return fmt.Errorf("unknown dialect %q (known: %v)", d, known)
		}
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must not be negative, got %d", c.Workers)
	}
	return nil
}

// WorkerCount returns Workers, or GOMAXPROCS when unset.
func (c Config) WorkerCount() int {
	if c.Workers > 0 {
		return c.Workers
	}
	return runtime.GOMAXPROCS(0)
}

// DBPath resolves DB against root unless it is already absolute.
func (c Config) DBPath(root string) string {
	if filepath.IsAbs(c.DB) {
		return c.DB
	}
	return filepath.Join(root, c.DB)
}
