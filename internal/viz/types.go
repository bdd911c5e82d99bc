// Package viz renders citation graphs as self-contained interactive
// HTML pages.
package viz

// Node type names used by the Cytoscape style sheet.
const (
	NodeTypeSeed      = "seed"
	NodeTypeReference = "reference"
	NodeTypeCiter     = "citer"
)

// Edge kind names used by the Cytoscape style sheet.
const (
	EdgeKindReferences = "references"
	EdgeKindCites      = "cites"
	EdgeKindSeedLink   = "seed-link"
)

// GraphData contains all data needed to render the visualization.
type GraphData struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// Node represents a paper in the graph.
type Node struct {
	ID   string `json:"id"`
	Type string `json:"type"` // "seed", "reference" or "citer"

	// Display
	Label string `json:"label"`

	// Tooltip fields
	Title   string `json:"title,omitempty"`
	Authors string `json:"authors,omitempty"`
	Year    int    `json:"year,omitempty"`

	// Sizing and styling
	Citations       int  `json:"citations"`
	ConnectionCount int  `json:"connectionCount"`
	InLibrary       bool `json:"inLibrary,omitempty"`
}

// Edge represents a citation relationship between two papers.
type Edge struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Kind   string `json:"kind"`
}

// IsEmpty returns true if the graph has no nodes.
func (g *GraphData) IsEmpty() bool {
	return len(g.Nodes) == 0
}
