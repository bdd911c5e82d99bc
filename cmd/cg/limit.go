package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var limitCmd = &cobra.Command{
	Use:   "limit",
	Short: "Show the configured INSPIRE rate-limit budget",
	Long: `Show the configured INSPIRE rate-limit budget.

The window is per process, so a fresh invocation always reports an
empty window; this command exists to verify what budget a long-running
caller would get.`,
	Args: cobra.NoArgs,
	RunE: runLimit,
}

func init() {
	rootCmd.AddCommand(limitCmd)
}

// LimitResult is the JSON output for the limit command.
type LimitResult struct {
	MaxRequests int       `json:"max_requests"`
	WindowMS    int64     `json:"window_ms"`
	Used        int       `json:"used"`
	Remaining   int       `json:"remaining"`
	Waiting     int       `json:"waiting"`
	ResetAt     time.Time `json:"reset_at,omitempty"`
}

func runLimit(cmd *cobra.Command, args []string) error {
	a := buildApp()
	defer a.close()

	status := a.window.Status()
	result := LimitResult{
		MaxRequests: a.cfg.RateMaxRequests(),
		WindowMS:    a.cfg.RateWindow().Milliseconds(),
		Used:        status.Used,
		Remaining:   status.Remaining,
		Waiting:     status.Waiting,
		ResetAt:     status.ResetAt,
	}

	if humanOutput {
		fmt.Printf("%d requests per %s window\n", result.MaxRequests, a.cfg.RateWindow())
		fmt.Printf("  used %d, remaining %d, waiting %d\n", result.Used, result.Remaining, result.Waiting)
		return nil
	}
	return outputJSON(result)
}
