package processor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recera/hierview/pkg/graph"
)

func TestFuncs_Defaults(t *testing.T) {
	var f Funcs

	rec := Record{"id": "1"}
	mapped, err := f.MapData(rec)
	require.NoError(t, err)
	assert.Equal(t, rec, mapped)

	_, err = f.ProcessData(nil, "org")
	assert.Error(t, err)

	s := graph.Snapshot{Nodes: []graph.Node{{ID: "a"}}}
	out, err := f.ApplyLayout(s, graph.DirectionTB)
	require.NoError(t, err)
	assert.Equal(t, s, out)
}

func TestFuncs_ImplementsLayouter(t *testing.T) {
	var p Processor = Funcs{}
	_, ok := p.(Layouter)
	assert.True(t, ok)
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	r.Register("b", func() Processor { return Funcs{} })
	r.Register("a", func() Processor { return Funcs{} })

	assert.Equal(t, []string{"a", "b"}, r.Names())

	p, err := r.Lookup("a")
	require.NoError(t, err)
	assert.NotNil(t, p)

	_, err = r.Lookup("missing")
	assert.ErrorIs(t, err, ErrUnknownProcessor)
}
