package main

import (
	"fmt"
	"strconv"

	"github.com/citegraph/citegraph/internal/config"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or change global configuration",
	Long: `Show or change global configuration stored in
~/.config/citegraph/config.yml.

Examples:
  cg config
  cg config set cache_ttl_hours 48
  cg config set library_path ~/physics/library.db`,
	Args: cobra.NoArgs,
	RunE: runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE:  runConfigSet,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configSetCmd)
}

// ConfigResult is the JSON output for the config command, with
// defaults applied.
type ConfigResult struct {
	Path                 string  `json:"path"`
	CacheDir             string  `json:"cache_dir,omitempty"`
	CacheTTLHours        float64 `json:"cache_ttl_hours"`
	LibraryPath          string  `json:"library_path,omitempty"`
	RateLimitMaxRequests int     `json:"rate_limit_max_requests"`
	RateLimitWindowMS    int64   `json:"rate_limit_window_ms"`
	CrossRefMailto       string  `json:"crossref_mailto,omitempty"`
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadGlobalConfig()
	if err != nil {
		exitWithError(ExitConfigError, "loading config: %v", err)
	}

	result := ConfigResult{
		Path:                 config.GlobalConfigPath(),
		CacheDir:             cfg.CacheDir,
		CacheTTLHours:        cfg.TTLHours(),
		LibraryPath:          cfg.LibraryPath,
		RateLimitMaxRequests: cfg.RateMaxRequests(),
		RateLimitWindowMS:    cfg.RateWindow().Milliseconds(),
		CrossRefMailto:       cfg.CrossRefMailto,
	}

	if humanOutput {
		fmt.Printf("Config file: %s\n", result.Path)
		fmt.Printf("  cache_dir: %s\n", orDefault(result.CacheDir, "(default)"))
		fmt.Printf("  cache_ttl_hours: %g\n", result.CacheTTLHours)
		fmt.Printf("  library_path: %s\n", orDefault(result.LibraryPath, "(none)"))
		fmt.Printf("  rate limit: %d requests / %d ms\n", result.RateLimitMaxRequests, result.RateLimitWindowMS)
		fmt.Printf("  crossref_mailto: %s\n", orDefault(result.CrossRefMailto, "(unset)"))
		return nil
	}
	return outputJSON(result)
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key, value := args[0], args[1]

	cfg, err := config.LoadGlobalConfig()
	if err != nil {
		exitWithError(ExitConfigError, "loading config: %v", err)
	}

	switch key {
	case "cache_dir":
		cfg.CacheDir = config.ExpandTilde(value)
	case "library_path":
		cfg.LibraryPath = config.ExpandTilde(value)
	case "crossref_mailto":
		cfg.CrossRefMailto = value
	case "cache_ttl_hours":
		hours, err := strconv.ParseFloat(value, 64)
		if err != nil || hours < 0 {
			exitWithError(ExitDataError, "cache_ttl_hours must be a non-negative number")
		}
		cfg.CacheTTLHours = hours
	case "rate_limit_max_requests":
		n, err := strconv.Atoi(value)
		if err != nil || n <= 0 {
			exitWithError(ExitDataError, "rate_limit_max_requests must be a positive integer")
		}
		cfg.RateLimitMaxRequests = n
	case "rate_limit_window_ms":
		n, err := strconv.Atoi(value)
		if err != nil || n <= 0 {
			exitWithError(ExitDataError, "rate_limit_window_ms must be a positive integer")
		}
		cfg.RateLimitWindowMS = n
	default:
		exitWithError(ExitDataError, "unknown config key %q", key)
	}

	if err := cfg.Save(); err != nil {
		exitWithError(ExitConfigError, "saving config: %v", err)
	}

	if humanOutput {
		fmt.Printf("Set %s = %s\n", key, value)
		return nil
	}
	return outputJSON(UpdateResponse{Status: "updated", Key: key, Value: value})
}
