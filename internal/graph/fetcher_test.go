package graph

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/citegraph/citegraph/internal/cache"
	"github.com/citegraph/citegraph/internal/inspire"
)

func newTestEngine(t *testing.T, api LiteratureAPI, opts ...EngineOption) *Engine {
	t.Helper()
	c := cache.New(t.TempDir(), cache.WithDebounce(5*time.Millisecond))
	return NewEngine(api, c, opts...)
}

// fakeLibrary is an in-memory LocalLibrary.
type fakeLibrary struct {
	items map[string]int64
	err   error
}

func (f *fakeLibrary) LookupBatch(ctx context.Context, recids []string) (map[string]int64, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make(map[string]int64)
	for _, r := range recids {
		if id, ok := f.items[r]; ok {
			out[r] = id
		}
	}
	return out, nil
}

// seedNetwork builds a small citation neighborhood around record 100.
func seedNetwork(api *fakeAPI) {
	api.addRecord("100", "Seed paper", 2015, 300)
	api.addRecord("201", "Heavily cited reference", 2000, 5000)
	api.addRecord("202", "Modest reference", 2010, 40)
	api.addRecord("203", "Survey of the field", 2012, 900, "review")
	api.setRefs("100", "201", "202", "203")
	api.addUnresolvedRef("100", "Obscure unlinked preprint")

	api.addRecord("301", "Follow-up A", 2018, 120)
	api.addRecord("302", "Follow-up B", 2020, 15)
	api.citedBy["100"] = []string{"301", "302"}
}

func TestFetchOneHopBasic(t *testing.T) {
	api := newFakeAPI()
	seedNetwork(api)
	e := newTestEngine(t, api)

	res, err := e.FetchOneHop(context.Background(), FetchRequest{Recid: "100", MaxPerSide: 10})
	if err != nil {
		t.Fatalf("FetchOneHop: %v", err)
	}

	if res.Center.Recid != "100" || !res.Center.IsSeed {
		t.Errorf("Center = %+v", res.Center)
	}
	if res.Center.Title != "Seed paper" {
		t.Errorf("Center.Title = %q", res.Center.Title)
	}

	// Review article filtered out by default; unresolved singleton kept.
	var recids []string
	for _, r := range res.References {
		recids = append(recids, r.Recid)
	}
	want := []string{"201", "202", ""} // citations desc, singleton (0 cites) last
	if !reflect.DeepEqual(recids, want) {
		t.Errorf("reference recids = %v, want %v", recids, want)
	}
	if res.References[2].Title != "Obscure unlinked preprint" {
		t.Errorf("singleton title = %q", res.References[2].Title)
	}

	if res.Totals.References != 4 {
		t.Errorf("Totals.References = %d, want 4 (unfiltered)", res.Totals.References)
	}
	if res.Totals.CitedBy != 2 {
		t.Errorf("Totals.CitedBy = %d, want 2", res.Totals.CitedBy)
	}
	if res.Shown.References != 3 || res.Shown.CitedBy != 2 {
		t.Errorf("Shown = %+v", res.Shown)
	}

	if !reflect.DeepEqual(res.ReferencesAllRecids, []string{"201", "202", "203"}) {
		t.Errorf("ReferencesAllRecids = %v", res.ReferencesAllRecids)
	}
	if !reflect.DeepEqual(res.ReferencesFilteredRecids, []string{"201", "202"}) {
		t.Errorf("ReferencesFilteredRecids = %v", res.ReferencesFilteredRecids)
	}

	// Cited-by sorted by citations desc by default.
	if res.CitedBy[0].Recid != "301" || res.CitedBy[1].Recid != "302" {
		t.Errorf("CitedBy order = %s, %s", res.CitedBy[0].Recid, res.CitedBy[1].Recid)
	}
}

func TestFetchOneHopIncludeReviews(t *testing.T) {
	api := newFakeAPI()
	seedNetwork(api)
	e := newTestEngine(t, api)

	res, err := e.FetchOneHop(context.Background(), FetchRequest{Recid: "100", MaxPerSide: 10, IncludeReviews: true})
	if err != nil {
		t.Fatalf("FetchOneHop: %v", err)
	}
	found := false
	for _, r := range res.References {
		if r.Recid == "203" {
			found = true
		}
	}
	if !found {
		t.Error("review entry should be present when opted in")
	}
}

func TestFetchOneHopCacheHitIdempotent(t *testing.T) {
	api := newFakeAPI()
	seedNetwork(api)
	e := newTestEngine(t, api)

	req := FetchRequest{Recid: "100", MaxPerSide: 10}
	first, err := e.FetchOneHop(context.Background(), req)
	if err != nil {
		t.Fatalf("first FetchOneHop: %v", err)
	}
	callsAfterFirst := api.totalCalls()

	second, err := e.FetchOneHop(context.Background(), req)
	if err != nil {
		t.Fatalf("second FetchOneHop: %v", err)
	}
	if api.totalCalls() != callsAfterFirst {
		t.Errorf("cache hit issued %d extra API calls", api.totalCalls()-callsAfterFirst)
	}

	a, _ := json.Marshal(first)
	b, _ := json.Marshal(second)
	if string(a) != string(b) {
		t.Errorf("cache hit result differs from original fetch:\n%s\n%s", a, b)
	}
}

func TestForceRefreshRefetches(t *testing.T) {
	api := newFakeAPI()
	seedNetwork(api)
	e := newTestEngine(t, api)

	ctx := context.Background()
	if _, err := e.FetchOneHop(ctx, FetchRequest{Recid: "100", MaxPerSide: 10}); err != nil {
		t.Fatalf("FetchOneHop: %v", err)
	}
	before := api.callCount("GetRecord")

	if _, err := e.FetchOneHop(ctx, FetchRequest{Recid: "100", MaxPerSide: 10, ForceRefresh: true}); err != nil {
		t.Fatalf("forced FetchOneHop: %v", err)
	}
	if api.callCount("GetRecord") != before+1 {
		t.Error("ForceRefresh should refetch")
	}
}

func TestLargerRequestRefetchesAndGrowsCache(t *testing.T) {
	api := newFakeAPI()
	api.addRecord("100", "Seed", 2015, 10)
	var citers []string
	for i := 0; i < 8; i++ {
		recid := "40" + string(rune('0'+i))
		api.addRecord(recid, "Citer", 2019, 10+i)
		citers = append(citers, recid)
	}
	api.citedBy["100"] = citers
	api.setRefs("100")
	e := newTestEngine(t, api)

	ctx := context.Background()
	small, err := e.FetchOneHop(ctx, FetchRequest{Recid: "100", MaxPerSide: 2})
	if err != nil {
		t.Fatalf("small fetch: %v", err)
	}
	if len(small.CitedBy) != 2 {
		t.Fatalf("shown cited-by = %d, want 2", len(small.CitedBy))
	}

	// A larger request cannot be served by a 2-entry cache slice.
	big, err := e.FetchOneHop(ctx, FetchRequest{Recid: "100", MaxPerSide: 6})
	if err != nil {
		t.Fatalf("big fetch: %v", err)
	}
	if len(big.CitedBy) != 6 {
		t.Errorf("shown cited-by = %d, want 6", len(big.CitedBy))
	}

	// And now a repeat of the small request is served from the grown
	// cache without network.
	calls := api.totalCalls()
	again, err := e.FetchOneHop(ctx, FetchRequest{Recid: "100", MaxPerSide: 2})
	if err != nil {
		t.Fatalf("repeat small fetch: %v", err)
	}
	if api.totalCalls() != calls {
		t.Error("repeat small request should be a cache hit")
	}
	if len(again.CitedBy) != 2 {
		t.Errorf("repeat shown = %d, want 2", len(again.CitedBy))
	}
}

func TestHalfFailureFallsBackToCache(t *testing.T) {
	api := newFakeAPI()
	seedNetwork(api)
	e := newTestEngine(t, api)

	ctx := context.Background()
	good, err := e.FetchOneHop(ctx, FetchRequest{Recid: "100", MaxPerSide: 10})
	if err != nil {
		t.Fatalf("priming fetch: %v", err)
	}

	api.failRefs["100"] = inspire.ErrNetwork
	res, err := e.FetchOneHop(ctx, FetchRequest{Recid: "100", MaxPerSide: 10, ForceRefresh: true})
	if err != nil {
		t.Fatalf("fallback fetch: %v", err)
	}
	if res.Partial {
		t.Error("cached fallback should not be marked partial")
	}
	if len(res.References) != len(good.References) {
		t.Errorf("fallback references = %d, want %d", len(res.References), len(good.References))
	}
}

func TestHalfFailurePartialUncached(t *testing.T) {
	api := newFakeAPI()
	seedNetwork(api)
	api.failCited["100"] = inspire.ErrNetwork
	e := newTestEngine(t, api)

	ctx := context.Background()
	res, err := e.FetchOneHop(ctx, FetchRequest{Recid: "100", MaxPerSide: 10})
	if err != nil {
		t.Fatalf("FetchOneHop: %v", err)
	}
	if !res.Partial {
		t.Error("half failure with no cache should yield a partial result")
	}
	if len(res.References) == 0 {
		t.Error("partial result should keep the successful half")
	}
	if len(res.CitedBy) != 0 {
		t.Errorf("failed side should be empty, got %d", len(res.CitedBy))
	}

	// Partial results must not be cached: once the API recovers, a new
	// fetch sees the full data.
	delete(api.failCited, "100")
	res2, err := e.FetchOneHop(ctx, FetchRequest{Recid: "100", MaxPerSide: 10})
	if err != nil {
		t.Fatalf("recovered fetch: %v", err)
	}
	if res2.Partial || len(res2.CitedBy) != 2 {
		t.Errorf("recovered fetch = partial:%v cited:%d, want full", res2.Partial, len(res2.CitedBy))
	}
}

func TestTotalFailureReturnsError(t *testing.T) {
	api := newFakeAPI()
	api.failRecord["100"] = inspire.ErrNetwork
	api.failRefs["100"] = inspire.ErrNetwork
	api.failCited["100"] = inspire.ErrNetwork
	e := newTestEngine(t, api)

	_, err := e.FetchOneHop(context.Background(), FetchRequest{Recid: "100"})
	if err == nil {
		t.Fatal("expected error when everything fails and no cache exists")
	}
}

func TestCancellationPropagates(t *testing.T) {
	api := newFakeAPI()
	seedNetwork(api)
	api.failCited["100"] = context.Canceled
	e := newTestEngine(t, api)

	_, err := e.FetchOneHop(context.Background(), FetchRequest{Recid: "100"})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled propagated", err)
	}
}

func TestLegacyKeyMigration(t *testing.T) {
	api := newFakeAPI()
	api.failRecord["100"] = inspire.ErrNetwork
	api.failRefs["100"] = inspire.ErrNetwork
	api.failCited["100"] = inspire.ErrNetwork
	e := newTestEngine(t, api)

	legacy := &OneHopResult{
		Center:     GraphNode{Recid: "100", Title: "From legacy cache", IsSeed: true},
		References: []ReferenceEntry{{Recid: "201", Title: "Ref", CitationCount: 3}},
		Totals:     Totals{References: 1},
		Sort:       SortCitations,
	}
	data, _ := json.Marshal(legacy)
	e.cache.Set(cache.NamespaceGraph, "100", data, "citations-norev-max50", 0)

	res, err := e.FetchOneHop(context.Background(), FetchRequest{Recid: "100", MaxPerSide: 1})
	if err != nil {
		t.Fatalf("FetchOneHop: %v", err)
	}
	if res.Center.Title != "From legacy cache" {
		t.Errorf("Center.Title = %q, want legacy data served", res.Center.Title)
	}

	// Migrated to the current key scheme.
	if _, ok := e.cache.Get(cache.NamespaceGraph, "100", "citations-norev", cache.GetOptions{}); !ok {
		t.Error("legacy entry should be migrated to the current key")
	}
	if _, ok := e.cache.Get(cache.NamespaceGraph, "100", "citations-norev-max50", cache.GetOptions{}); ok {
		t.Error("legacy key should be deleted after migration")
	}
}

func TestLocalLibraryEnrichment(t *testing.T) {
	api := newFakeAPI()
	seedNetwork(api)
	lib := &fakeLibrary{items: map[string]int64{"100": 1, "201": 9}}
	e := newTestEngine(t, api, WithLibrary(lib))

	res, err := e.FetchOneHop(context.Background(), FetchRequest{Recid: "100", MaxPerSide: 10})
	if err != nil {
		t.Fatalf("FetchOneHop: %v", err)
	}
	if res.Center.LocalItemID != 1 {
		t.Errorf("Center.LocalItemID = %d, want 1", res.Center.LocalItemID)
	}
	for _, r := range res.References {
		if r.Recid == "201" && r.LocalItemID != 9 {
			t.Errorf("reference 201 LocalItemID = %d, want 9", r.LocalItemID)
		}
		if r.Recid == "202" && r.LocalItemID != 0 {
			t.Errorf("reference 202 LocalItemID = %d, want 0", r.LocalItemID)
		}
	}
}

func TestTitleOverride(t *testing.T) {
	api := newFakeAPI()
	seedNetwork(api)
	e := newTestEngine(t, api)

	res, err := e.FetchOneHop(context.Background(), FetchRequest{
		Recid:         "100",
		TitleOverride: `My $e^{+}e^{-}$ title`,
	})
	if err != nil {
		t.Fatalf("FetchOneHop: %v", err)
	}
	if res.Center.Title != "My e+e- title" {
		t.Errorf("Center.Title = %q, want cleaned override", res.Center.Title)
	}
}

func TestCitedByPaginationAndOverfetch(t *testing.T) {
	api := newFakeAPI()
	api.addRecord("100", "Seed", 2010, 50)
	api.setRefs("100")

	// 30 citers, every third one a review that gets filtered out.
	var citers []string
	for i := 0; i < 30; i++ {
		recid := fmt30(i)
		if i%3 == 0 {
			api.addRecord(recid, "Review citer", 2015, 100-i, "review")
		} else {
			api.addRecord(recid, "Citer", 2015, 100-i)
		}
		citers = append(citers, recid)
	}
	api.citedBy["100"] = citers
	e := newTestEngine(t, api)

	res, err := e.FetchOneHop(context.Background(), FetchRequest{Recid: "100", MaxPerSide: 15})
	if err != nil {
		t.Fatalf("FetchOneHop: %v", err)
	}
	if len(res.CitedBy) != 15 {
		t.Errorf("shown cited-by = %d, want 15 despite review filtering", len(res.CitedBy))
	}
	for _, c := range res.CitedBy {
		for _, dt := range c.DocumentType {
			if dt == "review" {
				t.Errorf("review citer %s not filtered", c.Recid)
			}
		}
	}
	if res.Totals.CitedBy != 30 {
		t.Errorf("Totals.CitedBy = %d, want unfiltered 30", res.Totals.CitedBy)
	}
}

func fmt30(i int) string {
	return "5" + string(rune('0'+i/10)) + string(rune('0'+i%10))
}
