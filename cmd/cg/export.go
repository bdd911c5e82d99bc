package main

import (
	"context"
	"fmt"
	"os"

	"github.com/citegraph/citegraph/internal/export"
	"github.com/citegraph/citegraph/internal/graph"
	"github.com/spf13/cobra"
)

var (
	exportSide   string
	exportMax    int
	exportOutput string
)

var exportCmd = &cobra.Command{
	Use:   "export <recid>",
	Short: "Export a paper's references or citers as BibTeX",
	Long: `Export a paper's references or citing papers as BibTeX.

Examples:
  cg export 451647
  cg export 451647 --side cited-by --max 50
  cg export 451647 -o refs.bib`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringVar(&exportSide, "side", "references", "Which side to export: references or cited-by")
	exportCmd.Flags().IntVar(&exportMax, "max", graph.DefaultMaxPerSide, "Maximum entries to export")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Output file (default stdout)")
}

func runExport(cmd *cobra.Command, args []string) error {
	if exportSide != "references" && exportSide != "cited-by" {
		exitWithError(ExitDataError, "invalid side %q (want references or cited-by)", exportSide)
	}

	a := buildApp()
	defer a.close()

	res, err := a.engine.FetchOneHop(context.Background(), graph.FetchRequest{
		Recid:      args[0],
		MaxPerSide: exportMax,
	})
	if err != nil {
		exitGraphError(args[0], err)
	}

	entries := res.References
	if exportSide == "cited-by" {
		entries = res.CitedBy
	}
	bib := export.ToBibTeXList(entries)

	if exportOutput == "" {
		fmt.Print(bib)
		return nil
	}
	if err := os.WriteFile(exportOutput, []byte(bib), 0644); err != nil {
		exitWithError(ExitError, "writing %s: %v", exportOutput, err)
	}
	if humanOutput {
		fmt.Printf("Wrote %d entries to %s\n", len(entries), exportOutput)
		return nil
	}
	return outputJSON(StatusResponse{Status: "written", Path: exportOutput})
}
