package graph

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/citegraph/citegraph/internal/inspire"
)

// fakeAPI is an in-memory LiteratureAPI for engine tests.
type fakeAPI struct {
	mu      sync.Mutex
	records map[string]inspire.Record
	refs    map[string][]inspire.RawReference
	citedBy map[string][]string // recids of citing records

	failRecord map[string]error
	failRefs   map[string]error
	failCited  map[string]error

	unionTotal int
	unionErr   error

	calls map[string]int
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		records:    make(map[string]inspire.Record),
		refs:       make(map[string][]inspire.RawReference),
		citedBy:    make(map[string][]string),
		failRecord: make(map[string]error),
		failRefs:   make(map[string]error),
		failCited:  make(map[string]error),
		calls:      make(map[string]int),
	}
}

// addRecord registers a record; recid must be numeric.
func (f *fakeAPI) addRecord(recid, title string, year, cites int, docTypes ...string) {
	n, err := strconv.ParseInt(recid, 10, 64)
	if err != nil {
		panic("fakeAPI recids must be numeric: " + recid)
	}
	if len(docTypes) == 0 {
		docTypes = []string{"article"}
	}
	f.records[recid] = inspire.Record{
		Metadata: inspire.Metadata{
			ControlNumber: n,
			Titles:        []inspire.Title{{Title: title}},
			EarliestDate:  fmt.Sprintf("%04d-01-01", year),
			CitationCount: cites,
			DocumentType:  docTypes,
		},
	}
}

// setRefs wires recid's bibliography to the given target recids.
func (f *fakeAPI) setRefs(recid string, targets ...string) {
	var raw []inspire.RawReference
	for _, t := range targets {
		raw = append(raw, inspire.RawReference{
			Record: &inspire.RecordRef{Ref: "https://inspirehep.net/api/literature/" + t},
		})
	}
	f.refs[recid] = raw
}

// addUnresolvedRef appends a free-text-only bibliography entry.
func (f *fakeAPI) addUnresolvedRef(recid, title string) {
	f.refs[recid] = append(f.refs[recid], inspire.RawReference{
		Reference: &inspire.ReferenceInfo{Title: &inspire.Title{Title: title}},
	})
}

func (f *fakeAPI) count(op string) {
	f.mu.Lock()
	f.calls[op]++
	f.mu.Unlock()
}

func (f *fakeAPI) callCount(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeAPI) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

func (f *fakeAPI) GetRecord(ctx context.Context, recid string) (*inspire.Record, error) {
	f.count("GetRecord")
	if err := f.failRecord[recid]; err != nil {
		return nil, err
	}
	rec, ok := f.records[recid]
	if !ok {
		return nil, inspire.ErrNotFound
	}
	return &rec, nil
}

func (f *fakeAPI) GetReferences(ctx context.Context, recid string) ([]inspire.RawReference, error) {
	f.count("GetReferences")
	if err := f.failRefs[recid]; err != nil {
		return nil, err
	}
	return f.refs[recid], nil
}

func (f *fakeAPI) SearchCitedBy(ctx context.Context, recid string, page, size int, sort string) (*inspire.SearchHits, error) {
	f.count("SearchCitedBy")
	if err := f.failCited[recid]; err != nil {
		return nil, err
	}

	citers := f.citedBy[recid]
	hits := &inspire.SearchHits{Total: len(citers)}
	start := (page - 1) * size
	for i := start; i < len(citers) && i < start+size; i++ {
		if rec, ok := f.records[citers[i]]; ok {
			hits.Hits = append(hits.Hits, rec)
		}
	}
	return hits, nil
}

func (f *fakeAPI) SearchRecids(ctx context.Context, recids []string) ([]inspire.Record, error) {
	f.count("SearchRecids")
	var out []inspire.Record
	for _, r := range recids {
		if rec, ok := f.records[r]; ok {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (f *fakeAPI) CitedByUnionTotal(ctx context.Context, recids []string) (int, error) {
	f.count("CitedByUnionTotal")
	if f.unionErr != nil {
		return 0, f.unionErr
	}
	return f.unionTotal, nil
}
