// Package graph holds the node/edge model published to the rendering surface
// and the change detection used to decide when a new snapshot is worth publishing.
package graph

// Direction is the flow direction handed to layout strategies
type Direction string

const (
	// DirectionLR lays ranks out left to right
	DirectionLR Direction = "LR"
	// DirectionTB lays ranks out top to bottom
	DirectionTB Direction = "TB"
)

// Valid reports whether d is a known direction
func (d Direction) Valid() bool {
	return d == DirectionLR || d == DirectionTB
}

// ViewType discriminates between visualizations of the same records
// (for example "org" and "reporting"). It is opaque to this package.
type ViewType string

// Position is a node's top-left corner in surface coordinates
type Position struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Node represents a graph node
type Node struct {
	ID       string         `json:"id" yaml:"id"`
	Type     string         `json:"type,omitempty" yaml:"type,omitempty"`
	Data     map[string]any `json:"data" yaml:"data"`
	Style    map[string]any `json:"style,omitempty" yaml:"style,omitempty"`
	Position *Position      `json:"position,omitempty" yaml:"position,omitempty"`
}

// Edge represents a graph edge between two nodes by ID
type Edge struct {
	ID     string         `json:"id" yaml:"id"`
	Source string         `json:"source" yaml:"source"`
	Target string         `json:"target" yaml:"target"`
	Type   string         `json:"type,omitempty" yaml:"type,omitempty"`
	Data   map[string]any `json:"data,omitempty" yaml:"data,omitempty"`
	Style  map[string]any `json:"style,omitempty" yaml:"style,omitempty"`
}

// Item accessors used by Changed
func (n Node) ItemID() string { return n.ID }
func (n Node) ItemData() map[string]any { return n.Data }
func (n Node) ItemStyle() map[string]any { return n.Style }
func (e Edge) ItemID() string { return e.ID }
func (e Edge) ItemData() map[string]any { return e.Data }
func (e Edge) ItemStyle() map[string]any { return e.Style }

// Snapshot holds the graph data for one recompute.
// A snapshot is never mutated once built; a recompute produces a new one.
type Snapshot struct {
	Nodes []Node `json:"nodes" yaml:"nodes"`
	Edges []Edge `json:"edges" yaml:"edges"`
}

// Empty returns a snapshot with non-nil, zero-length collections
func Empty() Snapshot {
	return Snapshot{Nodes: []Node{}, Edges: []Edge{}}
}

// Normalize replaces nil collections with empty ones so that a published
// snapshot is never confused with "nothing published yet"
func (s Snapshot) Normalize() Snapshot {
	if s.Nodes == nil {
		s.Nodes = []Node{}
	}
	if s.Edges == nil {
		s.Edges = []Edge{}
	}
	return s
}

// NodeByID returns the node with the given id
func (s Snapshot) NodeByID(id string) (Node, bool) {
	for _, n := range s.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}

// Bounds returns the bounding box of all positioned nodes, treating each node
// as a w×h box anchored at its position. ok is false when no node has a position.
func (s Snapshot) Bounds(w, h float64) (minX, minY, maxX, maxY float64, ok bool) {
	for _, n := range s.Nodes {
		if n.Position == nil {
			continue
		}
		x, y := n.Position.X, n.Position.Y
		if !ok {
			minX, minY, maxX, maxY = x, y, x+w, y+h
			ok = true
			continue
		}
		if x < minX {
			minX = x
		}
		if y < minY {
			minY = y
		}
		if x+w > maxX {
			maxX = x + w
		}
		if y+h > maxY {
			maxY = y + h
		}
	}
	return minX, minY, maxX, maxY, ok
}

// Clone returns a copy of n whose Data, Style and Position share nothing
// with n
func (n Node) Clone() Node {
	n.Data = cloneMap(n.Data)
	n.Style = cloneMap(n.Style)
	if n.Position != nil {
		p := *n.Position
		n.Position = &p
	}
	return n
}

// Clone returns a copy of e whose Data and Style share nothing with e
func (e Edge) Clone() Edge {
	e.Data = cloneMap(e.Data)
	e.Style = cloneMap(e.Style)
	return e
}

// CloneNodes deep-copies a node collection, keeping nil as nil
func CloneNodes(nodes []Node) []Node {
	if nodes == nil {
		return nil
	}
	out := make([]Node, len(nodes))
	for i, n := range nodes {
		out[i] = n.Clone()
	}
	return out
}

// CloneEdges deep-copies an edge collection, keeping nil as nil
func CloneEdges(edges []Edge) []Edge {
	if edges == nil {
		return nil
	}
	out := make([]Edge, len(edges))
	for i, e := range edges {
		out[i] = e.Clone()
	}
	return out
}

// Clone deep-copies both collections
func (s Snapshot) Clone() Snapshot {
	return Snapshot{Nodes: CloneNodes(s.Nodes), Edges: CloneEdges(s.Edges)}
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

// cloneValue copies the container types record decoding produces; anything
// else is treated as immutable
func cloneValue(v any) any {
	switch v := v.(type) {
	case map[string]any:
		return cloneMap(v)
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = cloneValue(item)
		}
		return out
	case []string:
		return append([]string(nil), v...)
	default:
		return v
	}
}
