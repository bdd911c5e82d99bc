// Package main provides the cg CLI entry point.
package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// Version is set at build time via ldflags
var Version = "dev"

// humanOutput controls whether to use human-readable output
var humanOutput bool

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(ExitError)
	}
}

var rootCmd = &cobra.Command{
	Use:   "cg",
	Short: "INSPIRE-HEP citation graph explorer",
	Long: `cg builds one-hop citation graphs around high-energy-physics papers.

It fetches references and citing papers from the INSPIRE-HEP literature
API, ranks them, and merges multiple seed papers into one deduplicated
graph. Results are cached on disk so repeated queries are instant and
work offline. All commands output JSON by default for easy integration
with other tools.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	// Load .env if present (CITEGRAPH_LIBRARY, CROSSREF_MAILTO)
	_ = godotenv.Load()

	rootCmd.PersistentFlags().BoolVar(&humanOutput, "human", false, "Use human-readable output instead of JSON")
	rootCmd.Version = Version
}
