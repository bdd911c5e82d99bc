package viz

import (
	"strconv"

	"github.com/citegraph/citegraph/internal/graph"
)

// BuildOneHop converts a one-hop result into renderable graph data:
// the seed in the center, references on one side, citers on the other.
func BuildOneHop(res *graph.OneHopResult) *GraphData {
	g := &GraphData{}

	g.Nodes = append(g.Nodes, seedNode(res.Center))
	addSide(g, res.Center.Recid, res.References, NodeTypeReference)
	addSide(g, res.Center.Recid, res.CitedBy, NodeTypeCiter)
	return g
}

// BuildMerged converts a multi-seed result into renderable graph data.
// Shared neighbors get one node with edges to every connecting seed;
// seed-to-seed references become their own edge kind.
func BuildMerged(res *graph.MultiSeedResult) *GraphData {
	g := &GraphData{}

	for _, seed := range res.Seeds {
		g.Nodes = append(g.Nodes, seedNode(seed))
	}
	for _, e := range res.SeedEdges {
		g.Edges = append(g.Edges, Edge{Source: e.Source, Target: e.Target, Kind: EdgeKindSeedLink})
	}

	// An entry connects to the seeds whose per-seed view still lists
	// it; a truncated-away connection is invisible anyway.
	for i := range res.References {
		entry := &res.References[i]
		id := entryNodeID(entry, NodeTypeReference, i)
		g.Nodes = append(g.Nodes, entryNode(entry, NodeTypeReference, id))
		for seed, view := range res.BySeed {
			if viewContains(view.References, entry.Recid) {
				g.Edges = append(g.Edges, Edge{Source: seed, Target: id, Kind: EdgeKindReferences})
			}
		}
	}
	for i := range res.CitedBy {
		entry := &res.CitedBy[i]
		id := entryNodeID(entry, NodeTypeCiter, i)
		g.Nodes = append(g.Nodes, entryNode(entry, NodeTypeCiter, id))
		for seed, view := range res.BySeed {
			if viewContains(view.CitedBy, entry.Recid) {
				g.Edges = append(g.Edges, Edge{Source: id, Target: seed, Kind: EdgeKindCites})
			}
		}
	}
	return g
}

// addSide appends one side of a one-hop graph with edges to the seed.
func addSide(g *GraphData, seedID string, entries []graph.ReferenceEntry, nodeType string) {
	for i := range entries {
		entry := &entries[i]
		id := entryNodeID(entry, nodeType, i)
		g.Nodes = append(g.Nodes, entryNode(entry, nodeType, id))
		if nodeType == NodeTypeCiter {
			g.Edges = append(g.Edges, Edge{Source: id, Target: seedID, Kind: EdgeKindCites})
		} else {
			g.Edges = append(g.Edges, Edge{Source: seedID, Target: id, Kind: EdgeKindReferences})
		}
	}
}

// entryNodeID returns a stable-within-render node id. Unresolved
// entries have no recid and get a positional id instead.
func entryNodeID(e *graph.ReferenceEntry, nodeType string, index int) string {
	if e.Recid != "" {
		return e.Recid
	}
	return nodeType + "-unresolved-" + strconv.Itoa(index)
}

func seedNode(n graph.GraphNode) Node {
	return Node{
		ID:        n.Recid,
		Type:      NodeTypeSeed,
		Label:     nodeLabel(n.AuthorLabel, n.Recid),
		Title:     n.Title,
		Authors:   n.AuthorLabel,
		Year:      n.Year,
		Citations: n.CitationCount,
		InLibrary: n.LocalItemID != 0,
	}
}

func entryNode(e *graph.ReferenceEntry, nodeType, id string) Node {
	return Node{
		ID:              id,
		Type:            nodeType,
		Label:           nodeLabel(e.AuthorLabel, e.Recid),
		Title:           e.Title,
		Authors:         e.AuthorLabel,
		Year:            e.Year,
		Citations:       e.CitationCount,
		ConnectionCount: e.ConnectionCount,
		InLibrary:       e.LocalItemID != 0,
	}
}

// nodeLabel prefers the author label ("Weinberg", "Maldacena et al.")
// and falls back to the recid for entries without author data.
func nodeLabel(authorLabel, recid string) string {
	if authorLabel != "" {
		return authorLabel
	}
	if recid != "" {
		return recid
	}
	return "unresolved"
}

func viewContains(entries []graph.ReferenceEntry, recid string) bool {
	if recid == "" {
		return false
	}
	for i := range entries {
		if entries[i].Recid == recid {
			return true
		}
	}
	return false
}
