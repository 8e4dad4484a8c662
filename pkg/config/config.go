// Package config handles loading and managing therascope configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/therascope/therascope/pkg/taxonomy"
)

// Config is the top-level configuration for therascope.
type Config struct {
	Engine  EngineConfig  `yaml:"engine"`
	Storage StorageConfig `yaml:"storage"`
	Logging LoggingConfig `yaml:"logging"`
}

// EngineConfig controls evaluation behavior.
type EngineConfig struct {
	Locale      string     `yaml:"locale"`       // BCP-47 collation locale
	DefaultSort string     `yaml:"default_sort"` // severity or alphabetical
	Variant     string     `yaml:"variant"`      // used when a session file carries none
	Thresholds  Thresholds `yaml:"thresholds"`
}

// Thresholds holds per-variant cut-point overrides. Fields omitted from an
// override keep the default cut points.
type Thresholds map[taxonomy.Variant]taxonomy.ThresholdParams

// UnmarshalYAML decodes each override on top of taxonomy.DefaultThreshold.
func (t *Thresholds) UnmarshalYAML(node *yaml.Node) error {
	var raw map[taxonomy.Variant]yaml.Node
	if err := node.Decode(&raw); err != nil {
		return err
	}
	out := make(Thresholds, len(raw))
	for v, n := range raw {
		p := taxonomy.DefaultThreshold()
		if err := n.Decode(&p); err != nil {
			return fmt.Errorf("thresholds.%s: %w", v, err)
		}
		out[v] = p
	}
	*t = out
	return nil
}

// StorageConfig selects where evaluated reports are archived.
type StorageConfig struct {
	Backend   string `yaml:"backend"` // local, s3 or gcs
	LocalPath string `yaml:"local_path"`
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
}

// LoggingConfig controls the process logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // console or json
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Engine: EngineConfig{
			Locale:      "pt-BR",
			DefaultSort: "severity",
			Thresholds:  Thresholds{},
		},
		Storage: StorageConfig{
			Backend:   "local",
			LocalPath: ReportDir(),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load reads a config file from the given path.
// If the file does not exist, it returns the default config.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if cfg.Engine.Thresholds == nil {
		cfg.Engine.Thresholds = Thresholds{}
	}
	return cfg, nil
}

// Taxonomy resolves the taxonomy for a variant with configured threshold
// overrides applied. Overrides for predominant-outcome variants are rejected.
func (c *Config) Taxonomy(v taxonomy.Variant) (*taxonomy.Taxonomy, error) {
	tax, err := taxonomy.Lookup(v)
	if err != nil {
		return nil, err
	}

	if p, ok := c.Engine.Thresholds[tax.Variant]; ok {
		if tax.Strategy != taxonomy.StrategyThreshold {
			return nil, fmt.Errorf("thresholds configured for %s, which does not classify by threshold", tax.Variant)
		}
		tax = tax.WithThreshold(p)
	}

	if err := tax.Validate(); err != nil {
		return nil, fmt.Errorf("configured taxonomy: %w", err)
	}
	return tax, nil
}

// FindConfigFile looks for .therascope/config.yaml in the given directory
// and its parents, returning the path if found, or "" if not.
func FindConfigFile(dir string) string {
	for {
		candidate := filepath.Join(dir, ".therascope", "config.yaml")
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

// CacheDir returns the therascope cache directory, ~/.cache/therascope.
func CacheDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback to temp dir if HOME isn't available
		home = os.TempDir()
	}
	return filepath.Join(home, ".cache", "therascope")
}

// ReportDir returns the default local report archive directory.
func ReportDir() string {
	return filepath.Join(CacheDir(), "reports")
}

// ExpandHome replaces a leading "~/" with the user's home directory.
func ExpandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}
