package main

import (
	"context"
	"fmt"

	"github.com/citegraph/citegraph/internal/graph"
	"github.com/citegraph/citegraph/internal/inspire"
	"github.com/spf13/cobra"
)

var (
	graphMax            int
	graphSort           string
	graphIncludeReviews bool
	graphRefresh        bool
	graphTitle          string
)

var graphCmd = &cobra.Command{
	Use:   "graph <recid>",
	Short: "Build the one-hop citation graph around a paper",
	Long: `Build the one-hop citation graph around an INSPIRE record.

Fetches the paper's references and the papers citing it, ranks both
sides, and caches the result. Repeated queries are served from cache;
use --refresh to force a refetch.

Examples:
  cg graph 451647
  cg graph 451647 --max 50 --sort relevance
  cg graph 451647 --include-reviews --human`,
	Args: cobra.ExactArgs(1),
	RunE: runGraph,
}

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.Flags().IntVar(&graphMax, "max", graph.DefaultMaxPerSide, "Maximum entries per side")
	graphCmd.Flags().StringVar(&graphSort, "sort", string(graph.SortCitations), "Sort mode: citations, mostrecent, relevance")
	graphCmd.Flags().BoolVar(&graphIncludeReviews, "include-reviews", false, "Include review articles and books")
	graphCmd.Flags().BoolVar(&graphRefresh, "refresh", false, "Bypass the cache and refetch")
	graphCmd.Flags().StringVar(&graphTitle, "title", "", "Override the seed title in the output")
}

// parseSortMode validates a --sort value.
func parseSortMode(s string) (graph.SortMode, bool) {
	switch graph.SortMode(s) {
	case graph.SortCitations, graph.SortMostRecent, graph.SortRelevance:
		return graph.SortMode(s), true
	}
	return "", false
}

func runGraph(cmd *cobra.Command, args []string) error {
	sortMode, ok := parseSortMode(graphSort)
	if !ok {
		exitWithError(ExitDataError, "invalid sort mode %q (want citations, mostrecent or relevance)", graphSort)
	}

	a := buildApp()
	defer a.close()

	res, err := a.engine.FetchOneHop(context.Background(), graph.FetchRequest{
		Recid:          args[0],
		MaxPerSide:     graphMax,
		Sort:           sortMode,
		IncludeReviews: graphIncludeReviews,
		ForceRefresh:   graphRefresh,
		TitleOverride:  graphTitle,
	})
	if err != nil {
		exitGraphError(args[0], err)
	}

	if humanOutput {
		outputOneHopHuman(res)
		return nil
	}
	return outputJSON(res)
}

// exitGraphError maps engine errors onto exit codes.
func exitGraphError(recid string, err error) {
	switch {
	case inspire.IsNotFound(err):
		exitWithError(ExitNotFound, "record %s not found", recid)
	case inspire.IsRateLimited(err):
		exitWithError(ExitRateLimited, "rate limited by INSPIRE: %v", err)
	default:
		exitWithError(ExitError, "%v", err)
	}
}

func outputOneHopHuman(res *graph.OneHopResult) {
	c := res.Center
	fmt.Printf("%s (%d) — %s\n", c.Title, c.Year, c.AuthorLabel)
	fmt.Printf("recid %s, %d citations\n", c.Recid, c.CitationCount)
	if res.Partial {
		fmt.Println("warning: partial result (one side failed to fetch)")
	}

	fmt.Printf("\nReferences (%d of %d):\n", res.Shown.References, res.Totals.References)
	printEntriesHuman(res.References)

	fmt.Printf("\nCited by (%d of %d):\n", res.Shown.CitedBy, res.Totals.CitedBy)
	printEntriesHuman(res.CitedBy)
}

func printEntriesHuman(entries []graph.ReferenceEntry) {
	for i, e := range entries {
		label := e.Recid
		if label == "" {
			label = "unresolved"
		}
		fmt.Printf("%3d. [%s] %s\n", i+1, label, truncateString(e.Title, ListTitleMaxLen))
		line := fmt.Sprintf("     %s", e.AuthorLabel)
		if e.Year > 0 {
			line += fmt.Sprintf(" (%d)", e.Year)
		}
		line += fmt.Sprintf(", %d citations", e.CitationCount)
		if e.ConnectionCount > 1 {
			line += fmt.Sprintf(", %d seeds", e.ConnectionCount)
		}
		if e.LocalItemID != 0 {
			line += " [in library]"
		}
		fmt.Println(line)
	}
}
