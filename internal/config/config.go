// Package config handles global configuration for the citation graph
// engine, stored in ~/.config/citegraph/config.yml.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults for tunables not present in the config file. The rate
// budget should track the upstream API's documented quota; these
// values are deliberately conservative.
const (
	DefaultRateLimitMaxRequests = 15
	DefaultRateLimitWindowMS    = 10000
	DefaultCacheTTLHours        = 24
	DefaultEnrichBatchSize      = 50
	DefaultEnrichParallel       = 2
)

// EnrichmentSettings controls batched metadata enrichment.
type EnrichmentSettings struct {
	BatchSize       int `yaml:"batch_size,omitempty"`
	ParallelBatches int `yaml:"parallel_batches,omitempty"`
}

// GlobalConfig represents configuration stored in
// ~/.config/citegraph/config.yml. Every field is optional; zero values
// fall back to defaults via the accessor methods.
type GlobalConfig struct {
	CacheDir             string             `yaml:"cache_dir,omitempty"`
	CacheTTLHours        float64            `yaml:"cache_ttl_hours,omitempty"`
	LibraryPath          string             `yaml:"library_path,omitempty"`
	RateLimitMaxRequests int                `yaml:"rate_limit_max_requests,omitempty"`
	RateLimitWindowMS    int                `yaml:"rate_limit_window_ms,omitempty"`
	CrossRefMailto       string             `yaml:"crossref_mailto,omitempty"`
	Enrichment           EnrichmentSettings `yaml:"enrichment,omitempty"`
}

const (
	// GlobalConfigDir is the directory name under XDG_CONFIG_HOME.
	GlobalConfigDir = "citegraph"
	// GlobalConfigFile is the config file name.
	GlobalConfigFile = "config.yml"
)

// globalConfigCache caches the loaded global config.
var globalConfigCache *GlobalConfig

// GlobalConfigPath returns the path to the global config file.
// Respects XDG_CONFIG_HOME, defaults to ~/.config/citegraph/config.yml.
func GlobalConfigPath() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, GlobalConfigDir, GlobalConfigFile)
}

// LoadGlobalConfig loads the global configuration file. Returns an
// empty config (not an error) if the file doesn't exist.
func LoadGlobalConfig() (*GlobalConfig, error) {
	if globalConfigCache != nil {
		return globalConfigCache, nil
	}

	path := GlobalConfigPath()
	if path == "" {
		return &GlobalConfig{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &GlobalConfig{}, nil
		}
		return nil, fmt.Errorf("reading global config: %w", err)
	}

	var cfg GlobalConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing global config: %w", err)
	}

	cfg.CacheDir = ExpandTilde(cfg.CacheDir)
	cfg.LibraryPath = ExpandTilde(cfg.LibraryPath)

	globalConfigCache = &cfg
	return &cfg, nil
}

// ResetGlobalConfigCache clears the cached config (tests).
func ResetGlobalConfigCache() {
	globalConfigCache = nil
}

// Save writes the configuration file, creating its directory if needed.
func (c *GlobalConfig) Save() error {
	path := GlobalConfigPath()
	if path == "" {
		return fmt.Errorf("cannot determine config path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// RateWindow returns the configured sliding-window length.
func (c *GlobalConfig) RateWindow() time.Duration {
	ms := c.RateLimitWindowMS
	if ms <= 0 {
		ms = DefaultRateLimitWindowMS
	}
	return time.Duration(ms) * time.Millisecond
}

// RateMaxRequests returns the configured per-window quota.
func (c *GlobalConfig) RateMaxRequests() int {
	if c.RateLimitMaxRequests <= 0 {
		return DefaultRateLimitMaxRequests
	}
	return c.RateLimitMaxRequests
}

// TTLHours returns the configured default citation-data TTL.
func (c *GlobalConfig) TTLHours() float64 {
	if c.CacheTTLHours <= 0 {
		return DefaultCacheTTLHours
	}
	return c.CacheTTLHours
}

// EnrichSettings returns enrichment settings with defaults applied.
func (c *GlobalConfig) EnrichSettings() EnrichmentSettings {
	s := c.Enrichment
	if s.BatchSize <= 0 {
		s.BatchSize = DefaultEnrichBatchSize
	}
	if s.ParallelBatches <= 0 {
		s.ParallelBatches = DefaultEnrichParallel
	}
	return s
}

// ExpandTilde expands ~ to the user's home directory. Returns the
// original path unchanged if it doesn't start with ~.
func ExpandTilde(path string) string {
	if len(path) == 0 || path[0] != '~' {
		return path
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return path // Return original if we can't get home directory
	}

	return filepath.Join(home, path[1:])
}
