// Package layout assigns positions to hierarchy graphs. The tree layout works
// in phases: pick roots, rank nodes by depth, give leaves consecutive slots,
// centre parents over their children, then map (rank, slot) to coordinates
// for the requested flow direction.
package layout

import (
	"errors"
	"fmt"

	"github.com/recera/hierview/pkg/graph"
)

// ErrUnknownDirection is returned for directions other than LR and TB
var ErrUnknownDirection = errors.New("unknown layout direction")

// Options sizes nodes and the gaps between them
type Options struct {
	NodeWidth  float64 `json:"nodeWidth" yaml:"nodeWidth"`
	NodeHeight float64 `json:"nodeHeight" yaml:"nodeHeight"`
	// RankSep separates consecutive depths
	RankSep float64 `json:"rankSep" yaml:"rankSep"`
	// NodeSep separates siblings within a depth
	NodeSep float64 `json:"nodeSep" yaml:"nodeSep"`
}

// DefaultOptions returns the card size used by the built-in processors
func DefaultOptions() Options {
	return Options{
		NodeWidth:  220,
		NodeHeight: 80,
		RankSep:    80,
		NodeSep:    40,
	}
}

// Tree is a layered tree layout. Extra parents of a node (DAG edges) and
// back edges are ignored for placement but stay in the edge list.
type Tree struct {
	Options Options
}

// NewTree creates a tree layout, filling zero options from the defaults
func NewTree(opts Options) Tree {
	d := DefaultOptions()
	if opts.NodeWidth <= 0 {
		opts.NodeWidth = d.NodeWidth
	}
	if opts.NodeHeight <= 0 {
		opts.NodeHeight = d.NodeHeight
	}
	if opts.RankSep <= 0 {
		opts.RankSep = d.RankSep
	}
	if opts.NodeSep <= 0 {
		opts.NodeSep = d.NodeSep
	}
	return Tree{Options: opts}
}

// placement is a node's rank and slot before coordinates are assigned
type placement struct {
	rank int
	slot float64
}

// Apply returns a copy of s with every node positioned
func (t Tree) Apply(s graph.Snapshot, dir graph.Direction) (graph.Snapshot, error) {
	if !dir.Valid() {
		return graph.Snapshot{}, fmt.Errorf("%w: %q", ErrUnknownDirection, dir)
	}

	index := make(map[string]int, len(s.Nodes))
	for i, n := range s.Nodes {
		index[n.ID] = i
	}

	children := make(map[string][]string, len(s.Nodes))
	hasParent := make(map[string]bool, len(s.Nodes))
	for _, e := range s.Edges {
		if _, ok := index[e.Source]; !ok {
			continue
		}
		if _, ok := index[e.Target]; !ok {
			continue
		}
		if e.Source == e.Target {
			continue
		}
		children[e.Source] = append(children[e.Source], e.Target)
		hasParent[e.Target] = true
	}

	placed := make(map[string]placement, len(s.Nodes))
	var nextLeaf float64

	var visit func(id string, rank int) placement
	visit = func(id string, rank int) placement {
		// Reserve the node before descending so cycles terminate
		placed[id] = placement{rank: rank, slot: -1}

		var first, last float64
		placedKids := 0
		for _, child := range children[id] {
			if _, seen := placed[child]; seen {
				continue
			}
			p := visit(child, rank+1)
			if placedKids == 0 {
				first = p.slot
			}
			last = p.slot
			placedKids++
		}

		p := placement{rank: rank}
		if placedKids == 0 {
			p.slot = nextLeaf
			nextLeaf++
		} else {
			p.slot = (first + last) / 2
		}
		placed[id] = p
		return p
	}

	// Roots first, in input order, then anything only reachable through a cycle
	for _, n := range s.Nodes {
		if !hasParent[n.ID] {
			if _, seen := placed[n.ID]; !seen {
				visit(n.ID, 0)
			}
		}
	}
	for _, n := range s.Nodes {
		if _, seen := placed[n.ID]; !seen {
			visit(n.ID, 0)
		}
	}

	out := graph.Snapshot{
		Nodes: make([]graph.Node, len(s.Nodes)),
		Edges: append([]graph.Edge(nil), s.Edges...),
	}
	for i, n := range s.Nodes {
		p := placed[n.ID]
		pos := t.position(p, dir)
		n.Position = &pos
		out.Nodes[i] = n
	}
	return out.Normalize(), nil
}

func (t Tree) position(p placement, dir graph.Direction) graph.Position {
	o := t.Options
	if dir == graph.DirectionLR {
		return graph.Position{
			X: float64(p.rank) * (o.NodeWidth + o.RankSep),
			Y: p.slot * (o.NodeHeight + o.NodeSep),
		}
	}
	return graph.Position{
		X: p.slot * (o.NodeWidth + o.NodeSep),
		Y: float64(p.rank) * (o.NodeHeight + o.RankSep),
	}
}
