// Package graph builds one-hop citation neighborhoods around seed
// papers and merges them into multi-seed graphs, with read-through
// caching and relevance ranking.
package graph

import (
	"errors"

	"github.com/citegraph/citegraph/internal/inspire"
	"github.com/citegraph/citegraph/internal/texttools"
)

// SortMode selects the ordering of graph entries.
type SortMode string

const (
	// SortCitations orders by citation count desc, then year desc.
	SortCitations SortMode = "citations"
	// SortMostRecent orders by year desc, then citation count desc.
	SortMostRecent SortMode = "mostrecent"
	// SortRelevance orders by the blended citation/recency score.
	SortRelevance SortMode = "relevance"
)

// HardCacheCeiling bounds how many entries per side are ever fetched
// and cached, so the cache can serve larger future requests without a
// refetch.
const HardCacheCeiling = 200

// ErrNoSeeds is returned when a multi-seed operation receives no
// usable seed identifiers.
var ErrNoSeeds = errors.New("no usable seed identifiers")

// GraphNode is one paper in the graph.
type GraphNode struct {
	Recid         string `json:"recid"`
	Title         string `json:"title"`
	AuthorLabel   string `json:"author_label,omitempty"`
	Year          int    `json:"year,omitempty"`
	CitationCount int    `json:"citation_count"`
	LocalItemID   int64  `json:"local_item_id,omitempty"`
	IsSeed        bool   `json:"is_seed,omitempty"`
}

// PublicationInfo is the journal coordinates of an entry.
type PublicationInfo struct {
	JournalTitle  string `json:"journal_title,omitempty"`
	JournalVolume string `json:"journal_volume,omitempty"`
	Year          int    `json:"year,omitempty"`
	ArtID         string `json:"artid,omitempty"`
	PageStart     string `json:"page_start,omitempty"`
}

// ReferenceEntry is a graph neighbor with its ranking and presentation
// fields. Entries without a recid cannot be deduplicated and are
// treated as unmergeable singletons.
type ReferenceEntry struct {
	Recid               string            `json:"recid,omitempty"`
	Title               string            `json:"title"`
	AuthorLabel         string            `json:"author_label,omitempty"`
	Year                int               `json:"year,omitempty"`
	EarliestDate        string            `json:"earliest_date,omitempty"`
	CitationCount       int               `json:"citation_count"`
	CitationCountNoSelf int               `json:"citation_count_without_self,omitempty"`
	PublicationInfo     *PublicationInfo  `json:"publication_info,omitempty"`
	Errata              []PublicationInfo `json:"errata,omitempty"`
	ArxivID             string            `json:"arxiv_id,omitempty"`
	DOI                 string            `json:"doi,omitempty"`
	DocumentType        []string          `json:"document_type,omitempty"`
	LocalItemID         int64             `json:"local_item_id,omitempty"`
	ConnectionCount     int               `json:"connection_count,omitempty"`
}

// Totals is a pair of per-side counts.
type Totals struct {
	References int `json:"references"`
	CitedBy    int `json:"cited_by"`
}

// OneHopResult is a seed plus its direct references and citers. The
// two recid lists retain the full (un-truncated) reference sets so
// multi-seed operations can detect edges and recompute connection
// counts without refetching.
type OneHopResult struct {
	Center     GraphNode        `json:"center"`
	References []ReferenceEntry `json:"references"`
	CitedBy    []ReferenceEntry `json:"cited_by"`
	Totals     Totals           `json:"totals"`
	Shown      Totals           `json:"shown"`
	Sort       SortMode         `json:"sort"`

	// ReferencesAllRecids is every resolvable reference recid,
	// before any filtering.
	ReferencesAllRecids []string `json:"references_all_recids"`
	// ReferencesFilteredRecids is the reference recid set after the
	// review filter, before display truncation.
	ReferencesFilteredRecids []string `json:"references_filtered_recids"`

	// Partial marks a result assembled despite a fetch failure on one
	// side. Partial results are never cached.
	Partial bool `json:"partial,omitempty"`
}

// SeedEdge is a directed seed-to-seed edge: Source references Target.
type SeedEdge struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// SeedView is one seed's contribution to a merged graph, filtered to
// the entries that survived global truncation.
type SeedView struct {
	References []ReferenceEntry `json:"references"`
	CitedBy    []ReferenceEntry `json:"cited_by"`
	Totals     Totals           `json:"totals"`
	Shown      Totals           `json:"shown"`
}

// SeedStatus describes cache coverage for a seed in cache-only mode.
type SeedStatus string

const (
	SeedStatusOK      SeedStatus = "ok"
	SeedStatusPartial SeedStatus = "partial" // cached, but fewer entries than requested
	SeedStatusMissing SeedStatus = "missing" // no cached data at all
)

// MultiSeedResult is the deduplicated union of several one-hop graphs.
type MultiSeedResult struct {
	Seeds      []GraphNode           `json:"seeds"`
	SeedEdges  []SeedEdge            `json:"seed_edges"`
	References []ReferenceEntry      `json:"references"`
	CitedBy    []ReferenceEntry      `json:"cited_by"`
	Totals     Totals                `json:"totals"`
	Shown      Totals                `json:"shown"`
	Sort       SortMode              `json:"sort"`
	BySeed     map[string]*SeedView  `json:"by_seed"`
	SeedStatus map[string]SeedStatus `json:"seed_status,omitempty"`
}

// reviewJournals are journals that publish survey articles; entries
// appearing in them are filtered out unless the caller opts in.
var reviewJournals = map[string]bool{
	"Phys.Rept.":                true,
	"Rev.Mod.Phys.":             true,
	"Ann.Rev.Nucl.Part.Sci.":    true,
	"Ann.Rev.Astron.Astrophys.": true,
	"Living Rev.Rel.":           true,
	"Phys.Rept.C":               true,
}

// IsReviewLike reports whether an entry looks like a survey article.
func IsReviewLike(e *ReferenceEntry) bool {
	for _, dt := range e.DocumentType {
		if dt == "review" || dt == "book" {
			return true
		}
	}
	if e.PublicationInfo != nil && reviewJournals[e.PublicationInfo.JournalTitle] {
		return true
	}
	return false
}

// entryFromRecord converts an API record into a graph entry.
func entryFromRecord(rec *inspire.Record) ReferenceEntry {
	md := &rec.Metadata
	e := ReferenceEntry{
		Recid:               rec.Recid(),
		Title:               texttools.CleanMathTitle(md.Title()),
		AuthorLabel:         md.AuthorLabel(),
		Year:                md.Year(),
		EarliestDate:        md.EarliestDate,
		CitationCount:       md.CitationCount,
		CitationCountNoSelf: md.CitationCountNoSelf,
		ArxivID:             md.ArxivID(),
		DOI:                 md.DOIValue(),
		DocumentType:        md.DocumentType,
	}

	for i := range md.PublicationInfo {
		pi := &md.PublicationInfo[i]
		converted := PublicationInfo{
			JournalTitle:  pi.JournalTitle,
			JournalVolume: pi.JournalVolume,
			Year:          pi.Year,
			ArtID:         pi.ArtID,
			PageStart:     pi.PageStart,
		}
		switch pi.Material {
		case "erratum", "addendum":
			e.Errata = append(e.Errata, converted)
		default:
			if e.PublicationInfo == nil {
				e.PublicationInfo = &converted
			}
		}
	}
	return e
}

// entryFromRawReference converts an unresolved bibliography entry
// (one with no linked record) into an unmergeable singleton entry.
func entryFromRawReference(ref *inspire.RawReference) (ReferenceEntry, bool) {
	if ref.Reference == nil {
		return ReferenceEntry{}, false
	}
	e := ReferenceEntry{
		ArxivID: ref.Reference.ArxivEprint,
		DOI:     ref.Reference.DOI,
	}
	if ref.Reference.Title != nil {
		e.Title = texttools.CleanMathTitle(ref.Reference.Title.Title)
	}
	if e.Title == "" && e.ArxivID == "" && e.DOI == "" {
		return ReferenceEntry{}, false
	}
	return e, true
}

// nodeFromRecord converts an API record into a graph node.
func nodeFromRecord(rec *inspire.Record) GraphNode {
	md := &rec.Metadata
	return GraphNode{
		Recid:         rec.Recid(),
		Title:         texttools.CleanMathTitle(md.Title()),
		AuthorLabel:   md.AuthorLabel(),
		Year:          md.Year(),
		CitationCount: md.CitationCount,
	}
}
