package layout

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recera/hierview/pkg/graph"
)

func sample() graph.Snapshot {
	return graph.Snapshot{
		Nodes: []graph.Node{{ID: "r"}, {ID: "a"}, {ID: "b"}, {ID: "c"}},
		Edges: []graph.Edge{
			{ID: "r-a", Source: "r", Target: "a"},
			{ID: "r-b", Source: "r", Target: "b"},
			{ID: "a-c", Source: "a", Target: "c"},
		},
	}
}

func positions(s graph.Snapshot) map[string]graph.Position {
	out := make(map[string]graph.Position, len(s.Nodes))
	for _, n := range s.Nodes {
		out[n.ID] = *n.Position
	}
	return out
}

func TestTree_TopToBottom(t *testing.T) {
	tree := NewTree(Options{NodeWidth: 100, NodeHeight: 50, RankSep: 50, NodeSep: 20})

	out, err := tree.Apply(sample(), graph.DirectionTB)
	require.NoError(t, err)

	pos := positions(out)
	// leaves c and b take slots 0 and 1; a sits over c; r centres over a and b
	assert.Equal(t, graph.Position{X: 0, Y: 100}, pos["a"])
	assert.Equal(t, graph.Position{X: 0, Y: 200}, pos["c"])
	assert.Equal(t, graph.Position{X: 120, Y: 100}, pos["b"])
	assert.Equal(t, graph.Position{X: 60, Y: 0}, pos["r"])
}

func TestTree_LeftToRight(t *testing.T) {
	tree := NewTree(Options{NodeWidth: 100, NodeHeight: 50, RankSep: 50, NodeSep: 20})

	out, err := tree.Apply(sample(), graph.DirectionLR)
	require.NoError(t, err)

	pos := positions(out)
	assert.Equal(t, graph.Position{X: 0, Y: 35}, pos["r"])
	assert.Equal(t, graph.Position{X: 150, Y: 0}, pos["a"])
	assert.Equal(t, graph.Position{X: 300, Y: 0}, pos["c"])
	assert.Equal(t, graph.Position{X: 150, Y: 70}, pos["b"])
}

func TestTree_DoesNotMutateInput(t *testing.T) {
	in := sample()
	_, err := NewTree(Options{}).Apply(in, graph.DirectionTB)
	require.NoError(t, err)

	for _, n := range in.Nodes {
		assert.Nil(t, n.Position)
	}
}

func TestTree_CyclesAndForests(t *testing.T) {
	in := graph.Snapshot{
		Nodes: []graph.Node{{ID: "x"}, {ID: "y"}, {ID: "solo"}},
		Edges: []graph.Edge{
			{ID: "x-y", Source: "x", Target: "y"},
			{ID: "y-x", Source: "y", Target: "x"},
			{ID: "dangling", Source: "x", Target: "missing"},
			{ID: "self", Source: "solo", Target: "solo"},
		},
	}

	out, err := NewTree(DefaultOptions()).Apply(in, graph.DirectionTB)
	require.NoError(t, err)

	require.Len(t, out.Nodes, 3)
	for _, n := range out.Nodes {
		assert.NotNil(t, n.Position, n.ID)
	}
	assert.Len(t, out.Edges, 4, "edges are kept even when ignored for placement")
}

func TestTree_UnknownDirection(t *testing.T) {
	_, err := NewTree(DefaultOptions()).Apply(sample(), graph.Direction("RL"))
	assert.ErrorIs(t, err, ErrUnknownDirection)
}

func TestTree_Empty(t *testing.T) {
	out, err := NewTree(DefaultOptions()).Apply(graph.Snapshot{}, graph.DirectionLR)
	require.NoError(t, err)
	assert.NotNil(t, out.Nodes)
	assert.Empty(t, out.Nodes)
}
