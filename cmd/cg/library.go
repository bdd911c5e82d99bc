package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/citegraph/citegraph/internal/inspire"
	"github.com/citegraph/citegraph/internal/library"
	"github.com/spf13/cobra"
)

var libraryCmd = &cobra.Command{
	Use:   "library",
	Short: "Manage the local reference library",
	Long: `Manage the local reference library.

The library maps INSPIRE record ids to item handles in your reference
manager. Graph entries that resolve to a library item are marked in
graph and merge output.`,
}

var libraryAddCmd = &cobra.Command{
	Use:   "add <recid> <item-id>",
	Short: "Add or update a library item",
	Long: `Add or update a library item, fetching the paper's metadata from
INSPIRE to fill in the DOI, arXiv id, title and year.

Examples:
  cg library add 451647 1042
  cg library add 451647 1042 --human`,
	Args: cobra.ExactArgs(2),
	RunE: runLibraryAdd,
}

var libraryRemoveCmd = &cobra.Command{
	Use:   "remove <recid>",
	Short: "Remove a library item",
	Args:  cobra.ExactArgs(1),
	RunE:  runLibraryRemove,
}

var libraryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all library items",
	Args:  cobra.NoArgs,
	RunE:  runLibraryList,
}

var libraryFindCmd = &cobra.Command{
	Use:   "find <id>",
	Short: "Resolve a recid, DOI or arXiv id to a library item",
	Args:  cobra.ExactArgs(1),
	RunE:  runLibraryFind,
}

func init() {
	rootCmd.AddCommand(libraryCmd)
	libraryCmd.AddCommand(libraryAddCmd)
	libraryCmd.AddCommand(libraryRemoveCmd)
	libraryCmd.AddCommand(libraryListCmd)
	libraryCmd.AddCommand(libraryFindCmd)
}

func openLibrary(a *app) *library.Library {
	if a.library == nil {
		mustLibraryPath(a.cfg) // exits with guidance
	}
	return a.library
}

func runLibraryAdd(cmd *cobra.Command, args []string) error {
	recid := args[0]
	itemID, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		exitWithError(ExitDataError, "item id must be an integer: %q", args[1])
	}

	a := buildApp()
	defer a.close()
	lib := openLibrary(a)

	ctx := context.Background()
	item := library.Item{Recid: recid, ItemID: itemID}

	// Metadata enrichment is best-effort: a linked item without a
	// title is still a usable linkage.
	if rec, err := a.inspire.GetRecord(ctx, recid); err != nil {
		if inspire.IsNotFound(err) {
			exitWithError(ExitNotFound, "record %s not found", recid)
		}
		fmt.Fprintf(os.Stderr, "warning: fetching metadata for %s: %v\n", recid, err)
	} else {
		md := &rec.Metadata
		item.DOI = md.DOIValue()
		item.Arxiv = md.ArxivID()
		item.Title = md.Title()
		item.Year = md.Year()
	}

	if err := lib.Upsert(ctx, item); err != nil {
		exitWithError(ExitError, "%v", err)
	}

	if humanOutput {
		fmt.Printf("Added %s as item %d\n", recid, itemID)
		return nil
	}
	return outputJSON(item)
}

func runLibraryRemove(cmd *cobra.Command, args []string) error {
	a := buildApp()
	defer a.close()
	lib := openLibrary(a)

	if err := lib.Remove(context.Background(), args[0]); err != nil {
		exitWithError(ExitError, "%v", err)
	}

	if humanOutput {
		fmt.Printf("Removed %s\n", args[0])
		return nil
	}
	return outputJSON(StatusResponse{Status: "removed"})
}

// LibraryListResult is the JSON output for library list.
type LibraryListResult struct {
	Items []library.Item `json:"items"`
	Total int            `json:"total"`
}

func runLibraryList(cmd *cobra.Command, args []string) error {
	a := buildApp()
	defer a.close()
	lib := openLibrary(a)

	items, err := lib.All(context.Background())
	if err != nil {
		exitWithError(ExitError, "%v", err)
	}

	if humanOutput {
		for _, it := range items {
			title := it.Title
			if title == "" {
				title = "(no title)"
			}
			line := fmt.Sprintf("  [%s -> %d] %s", it.Recid, it.ItemID, truncateString(title, ListTitleMaxLen))
			if it.Year > 0 {
				line += fmt.Sprintf(" (%d)", it.Year)
			}
			fmt.Println(line)
		}
		fmt.Printf("Total: %d items\n", len(items))
		return nil
	}
	if items == nil {
		items = []library.Item{}
	}
	return outputJSON(LibraryListResult{Items: items, Total: len(items)})
}

// LibraryFindResult is the JSON output for library find.
type LibraryFindResult struct {
	Query  string `json:"query"`
	Found  bool   `json:"found"`
	ItemID int64  `json:"item_id,omitempty"`
}

func runLibraryFind(cmd *cobra.Command, args []string) error {
	query := args[0]

	a := buildApp()
	defer a.close()
	lib := openLibrary(a)

	ctx := context.Background()
	var (
		itemID int64
		found  bool
		err    error
	)
	switch {
	case strings.HasPrefix(query, "10."):
		itemID, found, err = lib.LookupByDOI(ctx, query)
	case strings.Contains(query, ".") || strings.Contains(query, "/"):
		// arXiv ids: 2101.01234 or hep-ph/9901234
		itemID, found, err = lib.LookupByArxiv(ctx, query)
	default:
		itemID, found, err = lib.Lookup(ctx, query)
	}
	if err != nil {
		exitWithError(ExitError, "%v", err)
	}

	if humanOutput {
		if found {
			fmt.Printf("%s -> item %d\n", query, itemID)
		} else {
			fmt.Printf("%s not in library\n", query)
		}
		return nil
	}
	return outputJSON(LibraryFindResult{Query: query, Found: found, ItemID: itemID})
}
