package graph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/citegraph/citegraph/internal/cache"
	"github.com/citegraph/citegraph/internal/inspire"
)

// ErrNoCachedData is returned by cache-only merges when no seed has
// any cached neighborhood.
var ErrNoCachedData = errors.New("no cached data for any seed")

// MergeRequest describes a multi-seed graph retrieval.
type MergeRequest struct {
	Recids         []string
	MaxPerSide     int
	Sort           SortMode
	IncludeReviews bool
	ForceRefresh   bool

	// CachedOnly builds the graph purely from cached data, reporting
	// per-seed coverage so the caller can decide whether to trigger a
	// background refresh.
	CachedOnly bool
}

// seedData is one seed's contribution to a merge.
type seedData struct {
	recid     string
	result    *OneHopResult // nil when nothing was available
	allRecids map[string]bool
	filtered  map[string]bool
	status    SeedStatus
}

// MergeSeeds runs one-hop retrieval for every seed concurrently and
// merges the neighborhoods into one deduplicated, re-ranked graph.
// A single seed's failure degrades that seed to its cached or empty
// contribution; only cancellation and an empty seed set are errors.
func (e *Engine) MergeSeeds(ctx context.Context, req MergeRequest) (*MultiSeedResult, error) {
	seeds := normalizeSeeds(req.Recids)
	if len(seeds) == 0 {
		return nil, ErrNoSeeds
	}
	if req.MaxPerSide <= 0 {
		req.MaxPerSide = DefaultMaxPerSide
	}
	if req.Sort == "" {
		req.Sort = SortCitations
	}

	data, err := e.gatherSeeds(ctx, seeds, req)
	if err != nil {
		return nil, err
	}

	if req.CachedOnly {
		usable := 0
		for _, sd := range data {
			if sd.result != nil {
				usable++
			}
		}
		if usable == 0 {
			return nil, ErrNoCachedData
		}
	}

	return e.assemble(ctx, seeds, data, req)
}

// normalizeSeeds trims, deduplicates and drops empty identifiers,
// preserving first-seen order.
func normalizeSeeds(recids []string) []string {
	seen := make(map[string]bool, len(recids))
	var out []string
	for _, r := range recids {
		r = strings.TrimSpace(r)
		if r == "" || seen[r] {
			continue
		}
		seen[r] = true
		out = append(out, r)
	}
	return out
}

// gatherSeeds produces per-seed data, live or cache-only.
func (e *Engine) gatherSeeds(ctx context.Context, seeds []string, req MergeRequest) ([]*seedData, error) {
	data := make([]*seedData, len(seeds))

	if req.CachedOnly {
		for i, recid := range seeds {
			data[i] = e.cachedSeed(recid, req)
		}
		return data, nil
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		cancelled error
	)
	for i, recid := range seeds {
		wg.Add(1)
		go func(i int, recid string) {
			defer wg.Done()
			res, err := e.FetchOneHop(ctx, FetchRequest{
				Recid:          recid,
				MaxPerSide:     req.MaxPerSide,
				Sort:           req.Sort,
				IncludeReviews: req.IncludeReviews,
				ForceRefresh:   req.ForceRefresh,
			})
			if err != nil {
				if inspire.IsCancelled(err) {
					mu.Lock()
					if cancelled == nil {
						cancelled = err
					}
					mu.Unlock()
					return
				}
				fmt.Fprintf(os.Stderr, "graph: seed %s: %v\n", recid, err)
				data[i] = e.cachedSeed(recid, MergeRequest{
					MaxPerSide:     req.MaxPerSide,
					Sort:           req.Sort,
					IncludeReviews: req.IncludeReviews,
				})
				return
			}
			data[i] = newSeedData(recid, res, req.MaxPerSide)
		}(i, recid)
	}
	wg.Wait()

	if cancelled != nil {
		return nil, cancelled
	}
	return data, nil
}

// cachedSeed reads a seed's contribution from cache alone. Stale data
// is acceptable here: offline availability beats freshness.
func (e *Engine) cachedSeed(recid string, req MergeRequest) *seedData {
	res, ok := e.CachedOneHop(recid, req.Sort, req.IncludeReviews, true)
	if !ok {
		sd := &seedData{recid: recid, status: SeedStatusMissing}
		// The permanent references namespace may still know the
		// reference recid sets even without a full cached graph.
		sd.allRecids, sd.filtered = e.cachedReferenceSets(recid)
		return sd
	}

	sd := newSeedData(recid, res, req.MaxPerSide)
	if !covers(res, req.MaxPerSide) {
		sd.status = SeedStatusPartial
	}
	return sd
}

func newSeedData(recid string, res *OneHopResult, maxPerSide int) *seedData {
	sd := &seedData{
		recid:     recid,
		result:    res,
		status:    SeedStatusOK,
		allRecids: make(map[string]bool, len(res.ReferencesAllRecids)),
		filtered:  make(map[string]bool, len(res.ReferencesFilteredRecids)),
	}
	for _, r := range res.ReferencesAllRecids {
		sd.allRecids[r] = true
	}
	for _, r := range res.ReferencesFilteredRecids {
		sd.filtered[r] = true
	}
	return sd
}

// cachedReferenceSets reads the permanent reference recid sets for a
// seed, if present.
func (e *Engine) cachedReferenceSets(recid string) (all, filtered map[string]bool) {
	res, ok := e.cache.Get(cache.NamespaceReferences, recid, "", cache.GetOptions{IgnoreTTL: true})
	if !ok {
		return nil, nil
	}
	var sets referenceRecidSets
	if err := json.Unmarshal(res.Data, &sets); err != nil {
		return nil, nil
	}
	all = make(map[string]bool, len(sets.All))
	for _, r := range sets.All {
		all[r] = true
	}
	filtered = make(map[string]bool, len(sets.Filtered))
	for _, r := range sets.Filtered {
		filtered[r] = true
	}
	return all, filtered
}

// assemble merges gathered per-seed data into the final result.
func (e *Engine) assemble(ctx context.Context, seeds []string, data []*seedData, req MergeRequest) (*MultiSeedResult, error) {
	isSeed := make(map[string]bool, len(seeds))
	for _, s := range seeds {
		isSeed[s] = true
	}

	out := &MultiSeedResult{
		Sort:       req.Sort,
		BySeed:     make(map[string]*SeedView, len(seeds)),
		SeedStatus: make(map[string]SeedStatus, len(seeds)),
	}

	// Seed nodes.
	for _, sd := range data {
		out.SeedStatus[sd.recid] = sd.status
		if sd.result != nil {
			node := sd.result.Center
			node.IsSeed = true
			out.Seeds = append(out.Seeds, node)
		} else {
			out.Seeds = append(out.Seeds, GraphNode{Recid: sd.recid, IsSeed: true})
		}
	}

	// Seed-to-seed edges from the unfiltered reference sets, so an
	// edge cannot be missed due to display truncation.
	for _, src := range data {
		for _, target := range seeds {
			if target == src.recid {
				continue
			}
			if src.allRecids[target] {
				out.SeedEdges = append(out.SeedEdges, SeedEdge{Source: src.recid, Target: target})
			}
		}
	}

	// Merge, excluding seeds from their own neighbor sets.
	mergedRefs := mergeEntries(data, isSeed, func(sd *seedData) []ReferenceEntry {
		if sd.result == nil {
			return nil
		}
		return sd.result.References
	})
	mergedCited := mergeEntries(data, isSeed, func(sd *seedData) []ReferenceEntry {
		if sd.result == nil {
			return nil
		}
		return sd.result.CitedBy
	})

	// Reference connection counts come from the full filtered recid
	// sets, so a paper cited by several seeds ranks correctly even if
	// one seed's display list was truncated. Cited-by counts are
	// best-effort over the truncated lists.
	for i := range mergedRefs {
		recid := mergedRefs[i].Recid
		if recid == "" {
			mergedRefs[i].ConnectionCount = 1
			continue
		}
		n := 0
		for _, sd := range data {
			if sd.filtered[recid] {
				n++
			}
		}
		if n == 0 {
			n = 1
		}
		mergedRefs[i].ConnectionCount = n
	}
	for i := range mergedCited {
		recid := mergedCited[i].Recid
		n := 0
		for _, sd := range data {
			if sd.result == nil {
				continue
			}
			for j := range sd.result.CitedBy {
				if recid != "" && sd.result.CitedBy[j].Recid == recid {
					n++
					break
				}
			}
		}
		if n == 0 {
			n = 1
		}
		mergedCited[i].ConnectionCount = n
	}

	SortEntries(mergedRefs, req.Sort, true)
	SortEntries(mergedCited, req.Sort, true)
	if len(mergedRefs) > req.MaxPerSide {
		mergedRefs = mergedRefs[:req.MaxPerSide]
	}
	if len(mergedCited) > req.MaxPerSide {
		mergedCited = mergedCited[:req.MaxPerSide]
	}
	out.References = mergedRefs
	out.CitedBy = mergedCited
	out.Shown = Totals{References: len(mergedRefs), CitedBy: len(mergedCited)}

	// Per-seed views filtered down to the global survivors.
	survivingRefs := recidSet(mergedRefs)
	survivingCited := recidSet(mergedCited)
	for _, sd := range data {
		view := &SeedView{}
		if sd.result != nil {
			view.Totals = sd.result.Totals
			for _, entry := range sd.result.References {
				if survivingRefs[entry.Recid] {
					view.References = append(view.References, entry)
				}
			}
			for _, entry := range sd.result.CitedBy {
				if survivingCited[entry.Recid] {
					view.CitedBy = append(view.CitedBy, entry)
				}
			}
		}
		view.Shown = Totals{References: len(view.References), CitedBy: len(view.CitedBy)}
		out.BySeed[sd.recid] = view
	}

	out.Totals = e.mergedTotals(ctx, seeds, data, isSeed, req)
	return out, nil
}

// mergeEntries unions per-seed entry lists keyed by recid, keeping the
// higher-citation duplicate but always preserving a local item link if
// either copy has one. Entries without a recid cannot be merged and
// pass through as singletons.
func mergeEntries(data []*seedData, isSeed map[string]bool, pick func(*seedData) []ReferenceEntry) []ReferenceEntry {
	byRecid := make(map[string]int)
	var out []ReferenceEntry

	for _, sd := range data {
		for _, entry := range pick(sd) {
			if entry.Recid == "" {
				out = append(out, entry)
				continue
			}
			if isSeed[entry.Recid] {
				continue
			}
			if i, ok := byRecid[entry.Recid]; ok {
				existing := &out[i]
				if entry.CitationCount > existing.CitationCount {
					if entry.LocalItemID == 0 {
						entry.LocalItemID = existing.LocalItemID
					}
					*existing = entry
				} else if existing.LocalItemID == 0 {
					existing.LocalItemID = entry.LocalItemID
				}
				continue
			}
			byRecid[entry.Recid] = len(out)
			out = append(out, entry)
		}
	}
	return out
}

// mergedTotals computes the global totals. The reference total is the
// exact size of the union of filtered recid sets; the cited-by total
// prefers one deduplicating OR query against the API, falling back to
// the per-seed sum (which may overcount shared citers). Seeds cited by
// other seeds are subtracted so a seed never counts as its own citer.
func (e *Engine) mergedTotals(ctx context.Context, seeds []string, data []*seedData, isSeed map[string]bool, req MergeRequest) Totals {
	refUnion := make(map[string]bool)
	for _, sd := range data {
		for r := range sd.filtered {
			if !isSeed[r] {
				refUnion[r] = true
			}
		}
	}

	citedTotal := -1
	if !req.CachedOnly {
		if total, err := e.api.CitedByUnionTotal(ctx, seeds); err == nil {
			citedTotal = total
		} else if inspire.IsCancelled(err) {
			citedTotal = -1
		} else {
			fmt.Fprintf(os.Stderr, "graph: union cited-by count: %v\n", err)
		}
	}
	if citedTotal < 0 {
		citedTotal = 0
		for _, sd := range data {
			if sd.result != nil {
				citedTotal += sd.result.Totals.CitedBy
			}
		}
	}

	// Seeds referenced by other seeds are citers of those seeds;
	// exclude them from the neighbor count.
	citedSeeds := make(map[string]bool)
	for _, sd := range data {
		for _, target := range seeds {
			if target != sd.recid && sd.allRecids[target] {
				// sd references target, so sd is a citer of target.
				citedSeeds[sd.recid] = true
			}
		}
	}
	citedTotal -= len(citedSeeds)
	if citedTotal < 0 {
		citedTotal = 0
	}

	return Totals{References: len(refUnion), CitedBy: citedTotal}
}

func recidSet(entries []ReferenceEntry) map[string]bool {
	set := make(map[string]bool, len(entries))
	for i := range entries {
		if entries[i].Recid != "" {
			set[entries[i].Recid] = true
		}
	}
	return set
}
