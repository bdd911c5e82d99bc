package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/citegraph/citegraph/internal/crossref"
	"github.com/spf13/cobra"
)

var crossrefCmd = &cobra.Command{
	Use:   "crossref <doi>",
	Short: "Look up a work on CrossRef by DOI",
	Long: `Look up a work on CrossRef by DOI and print its CSL-JSON metadata.

Set CROSSREF_MAILTO (or crossref_mailto in the config file) to get
polite-pool service.

Examples:
  cg crossref 10.1103/PhysRevLett.19.1264
  cg crossref 10.1016/0370-2693(83)91177-2 --human`,
	Args: cobra.ExactArgs(1),
	RunE: runCrossref,
}

func init() {
	rootCmd.AddCommand(crossrefCmd)
}

func runCrossref(cmd *cobra.Command, args []string) error {
	a := buildApp()
	defer a.close()

	client := newCrossRefClient(a.cfg)
	work, err := client.GetWork(context.Background(), args[0])
	if err != nil {
		switch {
		case errors.Is(err, crossref.ErrNotFound):
			exitWithError(ExitNotFound, "DOI %s not found", args[0])
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			exitWithError(ExitError, "lookup aborted: %v", err)
		default:
			exitWithError(ExitError, "%v", err)
		}
	}

	if humanOutput {
		outputWorkHuman(work)
		return nil
	}
	return outputJSON(work)
}

func outputWorkHuman(w *crossref.Work) {
	fmt.Printf("%s\n", truncateString(w.Title, DetailTitleMaxLen))

	var names []string
	for _, a := range w.Authors {
		if a.Given != "" {
			names = append(names, a.Given+" "+a.Family)
		} else {
			names = append(names, a.Family)
		}
	}
	if len(names) > 0 {
		fmt.Printf("  %s\n", strings.Join(names, ", "))
	}

	venue := w.ContainerTitle
	if w.Volume != "" {
		venue += " " + w.Volume
	}
	if w.Page != "" {
		venue += ", " + w.Page
	}
	if year := w.Issued.Year(); year > 0 {
		venue += fmt.Sprintf(" (%d)", year)
	}
	if venue != "" {
		fmt.Printf("  %s\n", strings.TrimSpace(venue))
	}
	fmt.Printf("  DOI: %s, cited %d times\n", w.DOI, w.ReferencedBy)
}
