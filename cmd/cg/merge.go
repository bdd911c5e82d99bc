package main

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/citegraph/citegraph/internal/graph"
	"github.com/citegraph/citegraph/internal/inspire"
	"github.com/spf13/cobra"
)

var (
	mergeMax            int
	mergeSort           string
	mergeIncludeReviews bool
	mergeRefresh        bool
	mergeCachedOnly     bool
)

var mergeCmd = &cobra.Command{
	Use:   "merge <recid>...",
	Short: "Merge the citation graphs of several papers",
	Long: `Merge the one-hop citation graphs of several seed papers into one
deduplicated graph.

Papers connected to more than one seed rank first. Seed papers that
reference each other are reported as seed edges. With --cached-only the
graph is assembled purely from cached data and each seed's coverage is
reported, so the command works offline.

Examples:
  cg merge 451647 1124337
  cg merge 451647 1124337 --sort relevance --max 40
  cg merge 451647 1124337 --cached-only --human`,
	Args: cobra.MinimumNArgs(1),
	RunE: runMerge,
}

func init() {
	rootCmd.AddCommand(mergeCmd)
	mergeCmd.Flags().IntVar(&mergeMax, "max", graph.DefaultMaxPerSide, "Maximum entries per side after merging")
	mergeCmd.Flags().StringVar(&mergeSort, "sort", string(graph.SortCitations), "Sort mode: citations, mostrecent, relevance")
	mergeCmd.Flags().BoolVar(&mergeIncludeReviews, "include-reviews", false, "Include review articles and books")
	mergeCmd.Flags().BoolVar(&mergeRefresh, "refresh", false, "Bypass the cache and refetch every seed")
	mergeCmd.Flags().BoolVar(&mergeCachedOnly, "cached-only", false, "Assemble from cache only, never touching the network")
}

func runMerge(cmd *cobra.Command, args []string) error {
	sortMode, ok := parseSortMode(mergeSort)
	if !ok {
		exitWithError(ExitDataError, "invalid sort mode %q (want citations, mostrecent or relevance)", mergeSort)
	}

	a := buildApp()
	defer a.close()

	res, err := a.engine.MergeSeeds(context.Background(), graph.MergeRequest{
		Recids:         args,
		MaxPerSide:     mergeMax,
		Sort:           sortMode,
		IncludeReviews: mergeIncludeReviews,
		ForceRefresh:   mergeRefresh,
		CachedOnly:     mergeCachedOnly,
	})
	if err != nil {
		switch {
		case errors.Is(err, graph.ErrNoSeeds):
			exitWithError(ExitDataError, "no usable seed identifiers")
		case errors.Is(err, graph.ErrNoCachedData):
			exitWithError(ExitDataError, "no cached data for any seed; run without --cached-only first")
		case inspire.IsRateLimited(err):
			exitWithError(ExitRateLimited, "rate limited by INSPIRE: %v", err)
		default:
			exitWithError(ExitError, "%v", err)
		}
	}

	if humanOutput {
		outputMergeHuman(res)
		return nil
	}
	return outputJSON(res)
}

func outputMergeHuman(res *graph.MultiSeedResult) {
	fmt.Printf("Seeds (%d):\n", len(res.Seeds))
	for _, s := range res.Seeds {
		line := fmt.Sprintf("  [%s] %s", s.Recid, truncateString(s.Title, ListTitleMaxLen))
		if status, ok := res.SeedStatus[s.Recid]; ok && status != graph.SeedStatusOK {
			line += fmt.Sprintf(" (%s)", status)
		}
		fmt.Println(line)
	}

	if len(res.SeedEdges) > 0 {
		fmt.Println("\nSeed edges:")
		for _, e := range res.SeedEdges {
			fmt.Printf("  %s references %s\n", e.Source, e.Target)
		}
	}

	fmt.Printf("\nMerged references (%d of %d):\n", res.Shown.References, res.Totals.References)
	printEntriesHuman(res.References)

	fmt.Printf("\nMerged cited by (%d of %d):\n", res.Shown.CitedBy, res.Totals.CitedBy)
	printEntriesHuman(res.CitedBy)

	fmt.Println("\nPer-seed contribution:")
	recids := make([]string, 0, len(res.BySeed))
	for recid := range res.BySeed {
		recids = append(recids, recid)
	}
	sort.Strings(recids)
	for _, recid := range recids {
		view := res.BySeed[recid]
		fmt.Printf("  %s: %d references, %d citers shown\n",
			recid, view.Shown.References, view.Shown.CitedBy)
	}
}
