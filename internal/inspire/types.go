package inspire

import (
	"strconv"
	"strings"
)

// Record is a single literature record as returned by the API.
type Record struct {
	ID       string   `json:"id"`
	Metadata Metadata `json:"metadata"`
}

// Metadata holds the subset of INSPIRE record metadata the graph
// engine consumes. All fields are optional on the wire; zero values
// mean "absent".
type Metadata struct {
	ControlNumber       int64             `json:"control_number"`
	Titles              []Title           `json:"titles"`
	Authors             []Author          `json:"authors"`
	AuthorCount         int               `json:"author_count"`
	EarliestDate        string            `json:"earliest_date"`
	PreprintDate        string            `json:"preprint_date"`
	CitationCount       int               `json:"citation_count"`
	CitationCountNoSelf int               `json:"citation_count_without_self_citations"`
	PublicationInfo     []PublicationInfo `json:"publication_info"`
	ArxivEprints        []ArxivEprint     `json:"arxiv_eprints"`
	DOIs                []DOI             `json:"dois"`
	DocumentType        []string          `json:"document_type"`
	References          []RawReference    `json:"references"`
}

// Title is a record title.
type Title struct {
	Title string `json:"title"`
}

// Author is a record author.
type Author struct {
	FullName string `json:"full_name"`
}

// PublicationInfo describes one journal publication of a record.
type PublicationInfo struct {
	JournalTitle  string `json:"journal_title"`
	JournalVolume string `json:"journal_volume"`
	Year          int    `json:"year"`
	ArtID         string `json:"artid"`
	PageStart     string `json:"page_start"`
	PageEnd       string `json:"page_end"`
	Material      string `json:"material"` // "publication", "erratum", "addendum"
}

// ArxivEprint is an arXiv identifier attached to a record.
type ArxivEprint struct {
	Value      string   `json:"value"`
	Categories []string `json:"categories"`
}

// DOI is a DOI attached to a record.
type DOI struct {
	Value string `json:"value"`
}

// RawReference is one entry of a record's embedded bibliography. The
// linked record pointer is absent for references INSPIRE could not
// resolve; such entries carry only the free-text reference fields.
type RawReference struct {
	Record    *RecordRef     `json:"record"`
	Reference *ReferenceInfo `json:"reference"`
}

// RecordRef is a JSON reference to another literature record.
type RecordRef struct {
	Ref string `json:"$ref"`
}

// ReferenceInfo is the free-text portion of a bibliography entry.
type ReferenceInfo struct {
	Label       string `json:"label"`
	Title       *Title `json:"title"`
	ArxivEprint string `json:"arxiv_eprint"`
	DOI         string `json:"doi"`
}

// SearchResponse is the envelope of /api/literature search queries.
type SearchResponse struct {
	Hits SearchHits `json:"hits"`
}

// SearchHits carries the matched records and the unpaginated total.
type SearchHits struct {
	Hits  []Record `json:"hits"`
	Total int      `json:"total"`
}

// Recid returns the record's stable identifier as a string, preferring
// the control number over the envelope id.
func (r *Record) Recid() string {
	if r.Metadata.ControlNumber > 0 {
		return strconv.FormatInt(r.Metadata.ControlNumber, 10)
	}
	return r.ID
}

// Title returns the record's primary title, or "" if absent.
func (m *Metadata) Title() string {
	if len(m.Titles) == 0 {
		return ""
	}
	return m.Titles[0].Title
}

// Year returns the best-known publication year: earliest date first,
// then publication info, then preprint date. Zero if unknown.
func (m *Metadata) Year() int {
	if y := yearFromDate(m.EarliestDate); y > 0 {
		return y
	}
	for _, pi := range m.PublicationInfo {
		if pi.Year > 0 {
			return pi.Year
		}
	}
	return yearFromDate(m.PreprintDate)
}

// DOIValue returns the first DOI, or "" if absent.
func (m *Metadata) DOIValue() string {
	if len(m.DOIs) == 0 {
		return ""
	}
	return m.DOIs[0].Value
}

// ArxivID returns the first arXiv eprint value, or "" if absent.
func (m *Metadata) ArxivID() string {
	if len(m.ArxivEprints) == 0 {
		return ""
	}
	return m.ArxivEprints[0].Value
}

// AuthorLabel renders a short author attribution: "Surname" for one
// author, "Surname and Surname" for two, "Surname et al." otherwise.
func (m *Metadata) AuthorLabel() string {
	surname := func(full string) string {
		if i := strings.Index(full, ","); i >= 0 {
			return strings.TrimSpace(full[:i])
		}
		return strings.TrimSpace(full)
	}

	n := len(m.Authors)
	total := m.AuthorCount
	if total < n {
		total = n
	}
	switch {
	case n == 0:
		return ""
	case total == 1:
		return surname(m.Authors[0].FullName)
	case total == 2 && n >= 2:
		return surname(m.Authors[0].FullName) + " and " + surname(m.Authors[1].FullName)
	default:
		return surname(m.Authors[0].FullName) + " et al."
	}
}

// Recid extracts the record identifier from a reference's linked
// record pointer. Returns "" when the reference is unresolved.
func (r *RawReference) Recid() string {
	if r.Record == nil {
		return ""
	}
	return RecidFromRef(r.Record.Ref)
}

// RecidFromRef parses a record identifier out of an API record URL
// such as "https://inspirehep.net/api/literature/451647".
func RecidFromRef(ref string) string {
	ref = strings.TrimRight(ref, "/")
	i := strings.LastIndex(ref, "/")
	if i < 0 {
		return ""
	}
	recid := ref[i+1:]
	if _, err := strconv.ParseInt(recid, 10, 64); err != nil {
		return ""
	}
	return recid
}

func yearFromDate(date string) int {
	if len(date) < 4 {
		return 0
	}
	y, err := strconv.Atoi(date[:4])
	if err != nil {
		return 0
	}
	return y
}
