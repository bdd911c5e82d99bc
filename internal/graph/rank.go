package graph

import (
	"math"
	"sort"
)

// Relevance score weights. Citation impact dominates, recency keeps
// fresh papers visible, and a small bump surfaces papers the user
// already has locally.
const (
	citationWeight = 0.62
	yearWeight     = 0.38
	localBonus     = 0.03
)

// relevanceScores computes the blended score for every entry, with
// log-scaled citations normalized against the set maximum and years
// rescaled linearly across the observed range.
func relevanceScores(entries []ReferenceEntry) []float64 {
	maxCites := 1
	minYear, maxYear := 0, 0
	for i := range entries {
		if c := entries[i].CitationCount; c > maxCites {
			maxCites = c
		}
		y := entries[i].Year
		if y <= 0 {
			continue
		}
		if minYear == 0 || y < minYear {
			minYear = y
		}
		if y > maxYear {
			maxYear = y
		}
	}

	logMax := math.Log1p(float64(maxCites))
	yearSpan := float64(maxYear - minYear)

	scores := make([]float64, len(entries))
	for i := range entries {
		e := &entries[i]

		cites := e.CitationCount
		if cites < 0 {
			cites = 0
		}
		var normLog float64
		if logMax > 0 {
			normLog = math.Log1p(float64(cites)) / logMax
		}

		var normYear float64
		if yearSpan > 0 && e.Year > 0 {
			normYear = float64(e.Year-minYear) / yearSpan
		}

		scores[i] = citationWeight*normLog + yearWeight*normYear
		if e.LocalItemID != 0 {
			scores[i] += localBonus
		}
	}
	return scores
}

// SortEntries orders entries in place by the given mode. When
// multiSeed is set, connection count is the primary key: papers linked
// to more seeds outrank papers with a higher individual score. Ties
// always break by citation count desc, then year desc, then recid asc,
// so the order is a total order and repeated sorts agree.
func SortEntries(entries []ReferenceEntry, mode SortMode, multiSeed bool) {
	var scores []float64
	if mode == SortRelevance {
		scores = relevanceScores(entries)
	}

	idx := make([]int, len(entries))
	for i := range idx {
		idx[i] = i
	}

	less := func(a, b int) bool {
		if multiSeed && entries[a].ConnectionCount != entries[b].ConnectionCount {
			return entries[a].ConnectionCount > entries[b].ConnectionCount
		}
		switch mode {
		case SortRelevance:
			if scores[a] != scores[b] {
				return scores[a] > scores[b]
			}
		case SortMostRecent:
			if entries[a].Year != entries[b].Year {
				return entries[a].Year > entries[b].Year
			}
		}
		if entries[a].CitationCount != entries[b].CitationCount {
			return entries[a].CitationCount > entries[b].CitationCount
		}
		if entries[a].Year != entries[b].Year {
			return entries[a].Year > entries[b].Year
		}
		return entries[a].Recid < entries[b].Recid
	}
	sort.SliceStable(idx, less)

	sorted := make([]ReferenceEntry, len(entries))
	for i, j := range idx {
		sorted[i] = entries[j]
	}
	copy(entries, sorted)
}
