package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var recordCmd = &cobra.Command{
	Use:   "record <recid>",
	Short: "Show metadata for a single INSPIRE record",
	Long: `Show metadata for a single INSPIRE record.

Examples:
  cg record 451647
  cg record 451647 --human`,
	Args: cobra.ExactArgs(1),
	RunE: runRecord,
}

func init() {
	rootCmd.AddCommand(recordCmd)
}

// RecordResult is the JSON output for the record command.
type RecordResult struct {
	Recid         string `json:"recid"`
	Title         string `json:"title"`
	AuthorLabel   string `json:"author_label,omitempty"`
	AuthorCount   int    `json:"author_count,omitempty"`
	Year          int    `json:"year,omitempty"`
	CitationCount int    `json:"citation_count"`
	ArxivID       string `json:"arxiv_id,omitempty"`
	DOI           string `json:"doi,omitempty"`
}

func runRecord(cmd *cobra.Command, args []string) error {
	a := buildApp()
	defer a.close()

	rec, err := a.inspire.GetRecord(context.Background(), args[0])
	if err != nil {
		exitGraphError(args[0], err)
	}

	md := &rec.Metadata
	result := RecordResult{
		Recid:         rec.Recid(),
		Title:         md.Title(),
		AuthorLabel:   md.AuthorLabel(),
		AuthorCount:   md.AuthorCount,
		Year:          md.Year(),
		CitationCount: md.CitationCount,
		ArxivID:       md.ArxivID(),
		DOI:           md.DOIValue(),
	}

	if humanOutput {
		fmt.Printf("%s\n", truncateString(result.Title, DetailTitleMaxLen))
		fmt.Printf("  %s", result.AuthorLabel)
		if result.Year > 0 {
			fmt.Printf(" (%d)", result.Year)
		}
		fmt.Println()
		fmt.Printf("  recid %s, %d citations\n", result.Recid, result.CitationCount)
		if result.ArxivID != "" {
			fmt.Printf("  arXiv: %s\n", result.ArxivID)
		}
		if result.DOI != "" {
			fmt.Printf("  DOI: %s\n", result.DOI)
		}
		return nil
	}
	return outputJSON(result)
}
