package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"sync"

	"github.com/citegraph/citegraph/internal/cache"
	"github.com/citegraph/citegraph/internal/config"
	"github.com/citegraph/citegraph/internal/inspire"
	"github.com/citegraph/citegraph/internal/texttools"
)

// DefaultMaxPerSide is the display target when the caller does not ask
// for a specific size.
const DefaultMaxPerSide = 25

// citedByOverfetch scales the cited-by page size when the review
// filter is active, to compensate for filtered-out items.
const citedByOverfetch = 4

// LiteratureAPI is the slice of the INSPIRE client the graph engine
// consumes. *inspire.Client satisfies it.
type LiteratureAPI interface {
	GetRecord(ctx context.Context, recid string) (*inspire.Record, error)
	GetReferences(ctx context.Context, recid string) ([]inspire.RawReference, error)
	SearchCitedBy(ctx context.Context, recid string, page, size int, sort string) (*inspire.SearchHits, error)
	SearchRecids(ctx context.Context, recids []string) ([]inspire.Record, error)
	CitedByUnionTotal(ctx context.Context, recids []string) (int, error)
}

// LocalLibrary resolves external record identifiers to local item
// handles. *library.Library satisfies it.
type LocalLibrary interface {
	LookupBatch(ctx context.Context, recids []string) (map[string]int64, error)
}

// Engine fetches, ranks, caches and merges citation neighborhoods.
type Engine struct {
	api     LiteratureAPI
	cache   *cache.Cache
	library LocalLibrary // nil when no local library is attached
	enrich  config.EnrichmentSettings
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLibrary attaches a local library for item linkage.
func WithLibrary(lib LocalLibrary) EngineOption {
	return func(e *Engine) { e.library = lib }
}

// WithEnrichment overrides batched-enrichment settings.
func WithEnrichment(s config.EnrichmentSettings) EngineOption {
	return func(e *Engine) { e.enrich = s }
}

// NewEngine creates a graph engine over the given API client and cache.
func NewEngine(api LiteratureAPI, c *cache.Cache, opts ...EngineOption) *Engine {
	e := &Engine{
		api:   api,
		cache: c,
		enrich: config.EnrichmentSettings{
			BatchSize:       config.DefaultEnrichBatchSize,
			ParallelBatches: config.DefaultEnrichParallel,
		},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// FetchRequest describes one one-hop retrieval.
type FetchRequest struct {
	Recid          string
	MaxPerSide     int
	Sort           SortMode
	IncludeReviews bool
	ForceRefresh   bool
	TitleOverride  string // replaces the center title if set
}

func (r *FetchRequest) normalize() {
	if r.MaxPerSide <= 0 {
		r.MaxPerSide = DefaultMaxPerSide
	}
	if r.MaxPerSide > HardCacheCeiling {
		r.MaxPerSide = HardCacheCeiling
	}
	if r.Sort == "" {
		r.Sort = SortCitations
	}
}

// cacheVariant derives the cache variant from the request parameters
// that change result content.
func cacheVariant(sort SortMode, includeReviews bool) string {
	if includeReviews {
		return string(sort) + "-rev"
	}
	return string(sort) + "-norev"
}

// legacyMaxSteps are the max-per-side values older cache keys encoded.
var legacyMaxSteps = []int{25, 50, 100, 200}

// FetchOneHop produces the one-hop neighborhood of one seed, serving
// from cache when possible. Failed fetches fall back to cached data;
// with no fallback a partial, uncached result is returned. Caller
// cancellation always propagates.
func (e *Engine) FetchOneHop(ctx context.Context, req FetchRequest) (*OneHopResult, error) {
	req.normalize()
	variant := cacheVariant(req.Sort, req.IncludeReviews)

	cached := e.loadCached(req.Recid, variant, false)
	if cached != nil && !req.ForceRefresh && covers(cached, req.MaxPerSide) {
		return e.finishResult(ctx, cached, req)
	}

	// Fetch at least as much as was already cached so the stored
	// result never shrinks, bounded by the hard ceiling.
	want := req.MaxPerSide
	if cached != nil {
		if n := len(cached.References); n > want {
			want = n
		}
		if n := len(cached.CitedBy); n > want {
			want = n
		}
	}
	if want > HardCacheCeiling {
		want = HardCacheCeiling
	}

	fresh, err := e.fetchFresh(ctx, req, want)
	if err != nil {
		if inspire.IsCancelled(err) {
			return nil, err
		}
		// Prefer a stale cached graph over a partial fresh one, so a
		// transient failure cannot overwrite a good graph with an
		// empty-looking one.
		if fallback := e.loadCached(req.Recid, variant, true); fallback != nil {
			return e.finishResult(ctx, fallback, req)
		}
		if fresh == nil {
			return nil, err
		}
		fresh.Partial = true
		return e.finishResult(ctx, fresh, req)
	}

	e.store(req.Recid, variant, fresh)
	return e.finishResult(ctx, fresh, req)
}

// CachedOneHop reads a one-hop result from cache only, never touching
// the network. The bool reports whether anything was found.
func (e *Engine) CachedOneHop(recid string, sortMode SortMode, includeReviews, ignoreTTL bool) (*OneHopResult, bool) {
	if sortMode == "" {
		sortMode = SortCitations
	}
	res := e.loadCached(recid, cacheVariant(sortMode, includeReviews), ignoreTTL)
	if res == nil {
		return nil, false
	}
	return res, true
}

// covers reports whether a cached result can satisfy a request for
// maxPerSide entries: it has at least that many per side, or fewer
// only because the paper genuinely has fewer.
func covers(res *OneHopResult, maxPerSide int) bool {
	refsOK := len(res.References) >= maxPerSide || len(res.References) >= res.Totals.References
	citedOK := len(res.CitedBy) >= maxPerSide || len(res.CitedBy) >= res.Totals.CitedBy
	return refsOK && citedOK
}

// loadCached reads and decodes a cached one-hop result, trying the
// current key scheme first and then known legacy schemes (older keys
// encoded max-per-side into the variant), migrating on a legacy hit.
func (e *Engine) loadCached(recid, variant string, ignoreTTL bool) *OneHopResult {
	opts := cache.GetOptions{IgnoreTTL: ignoreTTL}

	if res, ok := e.cache.Get(cache.NamespaceGraph, recid, variant, opts); ok {
		return decodeOneHop(res.Data)
	}

	// Legacy key fallback: migrate the largest hit to the new scheme.
	for i := len(legacyMaxSteps) - 1; i >= 0; i-- {
		legacy := variant + "-max" + strconv.Itoa(legacyMaxSteps[i])
		res, ok := e.cache.Get(cache.NamespaceGraph, recid, legacy, opts)
		if !ok {
			continue
		}
		decoded := decodeOneHop(res.Data)
		if decoded == nil {
			continue
		}
		e.cache.Set(cache.NamespaceGraph, recid, res.Data, variant, res.Total)
		e.cache.Delete(cache.NamespaceGraph, recid, legacy)
		return decoded
	}
	return nil
}

func decodeOneHop(data json.RawMessage) *OneHopResult {
	var res OneHopResult
	if err := json.Unmarshal(data, &res); err != nil {
		return nil
	}
	return &res
}

// store persists the full (ceiling-bounded) result in the graph
// namespace and the reference recid sets in the permanent references
// namespace.
func (e *Engine) store(recid, variant string, res *OneHopResult) {
	if data, err := json.Marshal(res); err == nil {
		e.cache.Set(cache.NamespaceGraph, recid, data, variant, res.Totals.CitedBy)
	}

	recids := referenceRecidSets{
		All:      res.ReferencesAllRecids,
		Filtered: res.ReferencesFilteredRecids,
	}
	if data, err := json.Marshal(recids); err == nil {
		e.cache.Set(cache.NamespaceReferences, recid, data, "", len(recids.All))
	}
}

// referenceRecidSets is the persisted form of a seed's reference recid
// lists, kept permanently because bibliographies do not change.
type referenceRecidSets struct {
	All      []string `json:"all"`
	Filtered []string `json:"filtered"`
}

// finishResult applies request-time adjustments to a full result:
// local-library re-linkage, title override, and truncation to the
// requested size. The input is not modified.
func (e *Engine) finishResult(ctx context.Context, full *OneHopResult, req FetchRequest) (*OneHopResult, error) {
	out := *full
	out.References = append([]ReferenceEntry(nil), full.References...)
	out.CitedBy = append([]ReferenceEntry(nil), full.CitedBy...)

	if len(out.References) > req.MaxPerSide {
		out.References = out.References[:req.MaxPerSide]
	}
	if len(out.CitedBy) > req.MaxPerSide {
		out.CitedBy = out.CitedBy[:req.MaxPerSide]
	}
	out.Shown = Totals{References: len(out.References), CitedBy: len(out.CitedBy)}

	if req.TitleOverride != "" {
		out.Center.Title = texttools.CleanMathTitle(req.TitleOverride)
	}
	out.Center.IsSeed = true

	e.relink(ctx, &out)
	return &out, nil
}

// relink refreshes local-library linkage on a result. Library lookups
// are best-effort: failures leave the existing linkage in place.
func (e *Engine) relink(ctx context.Context, res *OneHopResult) {
	if e.library == nil {
		return
	}

	recids := make([]string, 0, len(res.References)+len(res.CitedBy)+1)
	if res.Center.Recid != "" {
		recids = append(recids, res.Center.Recid)
	}
	for i := range res.References {
		if res.References[i].Recid != "" {
			recids = append(recids, res.References[i].Recid)
		}
	}
	for i := range res.CitedBy {
		if res.CitedBy[i].Recid != "" {
			recids = append(recids, res.CitedBy[i].Recid)
		}
	}

	found, err := e.library.LookupBatch(ctx, recids)
	if err != nil {
		fmt.Fprintf(os.Stderr, "graph: local library lookup: %v\n", err)
		return
	}

	res.Center.LocalItemID = found[res.Center.Recid]
	for i := range res.References {
		res.References[i].LocalItemID = found[res.References[i].Recid]
	}
	for i := range res.CitedBy {
		res.CitedBy[i].LocalItemID = found[res.CitedBy[i].Recid]
	}
}

// fetchFresh retrieves seed metadata, the reference list, and the
// cited-by set concurrently and assembles the full (ceiling-bounded)
// result. On a half failure it returns the partial result together
// with the error; the caller decides whether to fall back to cache.
func (e *Engine) fetchFresh(ctx context.Context, req FetchRequest, want int) (*OneHopResult, error) {
	var (
		wg      sync.WaitGroup
		rec     *inspire.Record
		recErr  error
		rawRefs []inspire.RawReference
		refErr  error
		cited   []ReferenceEntry
		cbTotal int
		cbErr   error
	)

	wg.Add(3)
	go func() {
		defer wg.Done()
		rec, recErr = e.api.GetRecord(ctx, req.Recid)
	}()
	go func() {
		defer wg.Done()
		rawRefs, refErr = e.api.GetReferences(ctx, req.Recid)
	}()
	go func() {
		defer wg.Done()
		cited, cbTotal, cbErr = e.fetchCitedBy(ctx, req, want)
	}()
	wg.Wait()

	for _, err := range []error{recErr, refErr, cbErr} {
		if err != nil && inspire.IsCancelled(err) {
			return nil, err
		}
	}
	if recErr != nil && refErr != nil && cbErr != nil {
		return nil, recErr
	}

	res := &OneHopResult{Sort: req.Sort}
	if rec != nil {
		res.Center = nodeFromRecord(rec)
	} else {
		res.Center = GraphNode{Recid: req.Recid}
	}
	res.Center.IsSeed = true

	var refsTotal int
	if refErr == nil {
		refs, all, filtered, total, err := e.buildReferences(ctx, req, rawRefs)
		if err != nil {
			if inspire.IsCancelled(err) {
				return nil, err
			}
			refErr = err
		} else {
			res.ReferencesAllRecids = all
			res.ReferencesFilteredRecids = filtered
			refsTotal = total
			SortEntries(refs, req.Sort, false)
			if len(refs) > want {
				refs = refs[:want]
			}
			res.References = refs
		}
	}

	if cbErr == nil {
		SortEntries(cited, req.Sort, false)
		if len(cited) > want {
			cited = cited[:want]
		}
		res.CitedBy = cited
	}

	res.Totals = Totals{References: refsTotal, CitedBy: cbTotal}
	res.Shown = Totals{References: len(res.References), CitedBy: len(res.CitedBy)}

	var firstErr error
	for _, err := range []error{recErr, refErr, cbErr} {
		if err != nil {
			firstErr = err
			break
		}
	}
	return res, firstErr
}

// buildReferences converts the raw bibliography into ranked entries:
// resolvable references are enriched with metadata in batched OR
// queries; unresolved ones become unmergeable singletons. Returns the
// entries (review-filtered unless opted in), the unfiltered and
// filtered recid sets, and the unfiltered total.
func (e *Engine) buildReferences(ctx context.Context, req FetchRequest, raw []inspire.RawReference) ([]ReferenceEntry, []string, []string, int, error) {
	var allRecids []string
	var singletons []ReferenceEntry
	seen := make(map[string]bool)

	for i := range raw {
		if recid := raw[i].Recid(); recid != "" {
			if recid == req.Recid || seen[recid] {
				continue
			}
			seen[recid] = true
			allRecids = append(allRecids, recid)
			continue
		}
		if entry, ok := entryFromRawReference(&raw[i]); ok {
			singletons = append(singletons, entry)
		}
	}
	total := len(allRecids) + len(singletons)

	enriched, err := e.enrichRecords(ctx, allRecids)
	if err != nil {
		return nil, nil, nil, 0, err
	}

	var entries []ReferenceEntry
	var filtered []string
	for _, recid := range allRecids {
		entry, ok := enriched[recid]
		if !ok {
			// Record not returned by the batch query (deleted or
			// merged upstream); keep the bare identifier.
			entry = ReferenceEntry{Recid: recid}
		}
		if !req.IncludeReviews && IsReviewLike(&entry) {
			continue
		}
		filtered = append(filtered, recid)
		entries = append(entries, entry)
	}
	for i := range singletons {
		if !req.IncludeReviews && IsReviewLike(&singletons[i]) {
			continue
		}
		entries = append(entries, singletons[i])
	}

	return entries, allRecids, filtered, total, nil
}

// enrichRecords fetches metadata for many recids in parallel batched
// OR queries, respecting the configured batch size and parallelism.
func (e *Engine) enrichRecords(ctx context.Context, recids []string) (map[string]ReferenceEntry, error) {
	result := make(map[string]ReferenceEntry, len(recids))
	if len(recids) == 0 {
		return result, nil
	}

	batchSize := e.enrich.BatchSize
	if batchSize <= 0 {
		batchSize = config.DefaultEnrichBatchSize
	}
	var chunks [][]string
	for start := 0; start < len(recids); start += batchSize {
		end := start + batchSize
		if end > len(recids) {
			end = len(recids)
		}
		chunks = append(chunks, recids[start:end])
	}

	parallel := e.enrich.ParallelBatches
	if parallel <= 0 {
		parallel = 1
	}
	if parallel > len(chunks) {
		parallel = len(chunks)
	}

	var (
		mu       sync.Mutex
		firstErr error
		wg       sync.WaitGroup
	)
	work := make(chan []string)

	for i := 0; i < parallel; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for chunk := range work {
				records, err := e.api.SearchRecids(ctx, chunk)
				mu.Lock()
				if err != nil {
					if firstErr == nil {
						firstErr = err
					}
					mu.Unlock()
					continue
				}
				for i := range records {
					entry := entryFromRecord(&records[i])
					if entry.Recid != "" {
						result[entry.Recid] = entry
					}
				}
				mu.Unlock()
			}
		}()
	}
	for _, chunk := range chunks {
		work <- chunk
	}
	close(work)
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	return result, nil
}

// fetchCitedBy pages through the refersto search until enough
// post-filter entries are collected. The page size is scaled up when
// the review filter is active to compensate for removed items.
func (e *Engine) fetchCitedBy(ctx context.Context, req FetchRequest, want int) ([]ReferenceEntry, int, error) {
	pageSize := want
	if !req.IncludeReviews {
		pageSize = want * citedByOverfetch
	}
	if pageSize > inspire.MaxSearchPageSize {
		pageSize = inspire.MaxSearchPageSize
	}

	apiSort := "mostcited"
	if req.Sort == SortMostRecent {
		apiSort = "mostrecent"
	}

	var entries []ReferenceEntry
	total := 0
	for page := 1; ; page++ {
		hits, err := e.api.SearchCitedBy(ctx, req.Recid, page, pageSize, apiSort)
		if err != nil {
			return nil, 0, err
		}
		total = hits.Total

		for i := range hits.Hits {
			entry := entryFromRecord(&hits.Hits[i])
			if entry.Recid == "" || entry.Recid == req.Recid {
				continue
			}
			if !req.IncludeReviews && IsReviewLike(&entry) {
				continue
			}
			entries = append(entries, entry)
		}

		if len(entries) >= want || page*pageSize >= total || len(hits.Hits) == 0 {
			break
		}
	}
	return entries, total, nil
}
