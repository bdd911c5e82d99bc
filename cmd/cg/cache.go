package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and maintain the on-disk cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache size and per-namespace entry counts",
	Args:  cobra.NoArgs,
	RunE:  runCacheStats,
}

var cachePurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete expired cache entries",
	Args:  cobra.NoArgs,
	RunE:  runCachePurge,
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every cache entry",
	Args:  cobra.NoArgs,
	RunE:  runCacheClear,
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cachePurgeCmd)
	cacheCmd.AddCommand(cacheClearCmd)
}

func runCacheStats(cmd *cobra.Command, args []string) error {
	a := buildApp()
	defer a.close()

	stats := a.cache.Stats()
	if humanOutput {
		fmt.Printf("Cache at %s\n", a.cache.Dir())
		fmt.Printf("  %d files, %s\n", stats.Files, formatBytes(stats.TotalBytes))
		for ns, n := range stats.ByNamespace {
			fmt.Printf("  %s: %d\n", ns, n)
		}
		return nil
	}
	return outputJSON(stats)
}

// PurgeResult is the JSON output for cache purge.
type PurgeResult struct {
	Removed int `json:"removed"`
}

func runCachePurge(cmd *cobra.Command, args []string) error {
	a := buildApp()
	defer a.close()

	removed := a.cache.PurgeExpired()
	if humanOutput {
		fmt.Printf("Removed %d expired entries\n", removed)
		return nil
	}
	return outputJSON(PurgeResult{Removed: removed})
}

func runCacheClear(cmd *cobra.Command, args []string) error {
	a := buildApp()
	defer a.close()

	a.cache.ClearAll()
	if humanOutput {
		fmt.Println("Cache cleared")
		return nil
	}
	return outputJSON(StatusResponse{Status: "cleared", Path: a.cache.Dir()})
}

// formatBytes formats bytes in a human-readable way.
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
