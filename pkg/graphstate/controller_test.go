package graphstate

import (
	"errors"
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recera/hierview/pkg/graph"
	"github.com/recera/hierview/pkg/metrics"
	"github.com/recera/hierview/pkg/processor"
	"github.com/recera/hierview/pkg/scheduler"
	"github.com/recera/hierview/pkg/viewport"
)

type fakeFitter struct {
	mode  viewport.Mode
	calls int
}

func (f *fakeFitter) RequestFit() viewport.Mode {
	f.calls++
	return f.mode
}

// pairProcessor emits one node per record and one edge per record
func pairProcessor() processor.Funcs {
	return processor.Funcs{
		Process: func(mapped []processor.Mapped, view graph.ViewType) (graph.Snapshot, error) {
			out := graph.Empty()
			for _, m := range mapped {
				rec := m.(processor.Record)
				id := fmt.Sprint(rec["id"])
				out.Nodes = append(out.Nodes, graph.Node{
					ID:   id,
					Data: map[string]any{"label": rec["name"]},
				})
				out.Edges = append(out.Edges, graph.Edge{
					ID:     "e-root-" + id,
					Source: "root",
					Target: id,
					Data:   map[string]any{"view": string(view)},
				})
			}
			return out, nil
		},
	}
}

func scenarioRecords() []processor.Record {
	return []processor.Record{{"id": 1, "name": "A"}}
}

func TestRecompute_LoadingOrAbsentRecords(t *testing.T) {
	s, err := Recompute(scenarioRecords(), true, pairProcessor(), graph.DirectionTB, "org")
	require.NoError(t, err)
	assert.Empty(t, s.Nodes)
	assert.NotNil(t, s.Nodes)
	assert.NotNil(t, s.Edges)

	s, err = Recompute(nil, false, pairProcessor(), graph.DirectionTB, "org")
	require.NoError(t, err)
	assert.Empty(t, s.Nodes)
	assert.Empty(t, s.Edges)

	s, err = Recompute([]processor.Record{}, false, pairProcessor(), graph.DirectionTB, "org")
	require.NoError(t, err)
	assert.Empty(t, s.Nodes, "an empty record list still runs the processor")
}

func TestRecompute_Pure(t *testing.T) {
	a, err := Recompute(scenarioRecords(), false, pairProcessor(), graph.DirectionTB, "org")
	require.NoError(t, err)
	b, err := Recompute(scenarioRecords(), false, pairProcessor(), graph.DirectionTB, "org")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.False(t, graph.NodesChanged(b.Nodes, a.Nodes))
	assert.False(t, graph.EdgesChanged(b.Edges, a.Edges))
}

func TestRecompute_StageOrderAndLayout(t *testing.T) {
	var stages []string
	proc := processor.Funcs{
		Map: func(rec processor.Record) (processor.Mapped, error) {
			stages = append(stages, "map")
			return rec, nil
		},
		Process: func(mapped []processor.Mapped, view graph.ViewType) (graph.Snapshot, error) {
			stages = append(stages, "process")
			return graph.Snapshot{Nodes: []graph.Node{{ID: "1"}}}, nil
		},
		Layout: func(s graph.Snapshot, dir graph.Direction) (graph.Snapshot, error) {
			stages = append(stages, "layout:"+string(dir))
			s.Nodes[0].Position = &graph.Position{X: 10, Y: 20}
			return s, nil
		},
	}

	s, err := Recompute(scenarioRecords(), false, proc, graph.DirectionLR, "org")
	require.NoError(t, err)
	assert.Equal(t, []string{"map", "process", "layout:LR"}, stages)
	require.NotNil(t, s.Nodes[0].Position)
	assert.Equal(t, 10.0, s.Nodes[0].Position.X)
	assert.NotNil(t, s.Edges, "snapshots are normalized")
}

func TestRecompute_Errors(t *testing.T) {
	boom := errors.New("boom")

	_, err := Recompute(scenarioRecords(), false, nil, graph.DirectionTB, "org")
	assert.ErrorIs(t, err, ErrNoProcessor)

	_, err = Recompute(scenarioRecords(), false, processor.Funcs{
		Map: func(processor.Record) (processor.Mapped, error) { return nil, boom },
	}, graph.DirectionTB, "org")
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "map record 0")

	_, err = Recompute(scenarioRecords(), false, processor.Funcs{
		Process: func([]processor.Mapped, graph.ViewType) (graph.Snapshot, error) {
			return graph.Snapshot{}, boom
		},
	}, graph.DirectionTB, "org")
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "process data")

	_, err = Recompute(scenarioRecords(), false, processor.Funcs{
		Process: pairProcessor().Process,
		Layout: func(graph.Snapshot, graph.Direction) (graph.Snapshot, error) {
			return graph.Snapshot{}, boom
		},
	}, graph.DirectionTB, "org")
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "apply layout")
}

func TestReconcile_FirstPublish(t *testing.T) {
	fitter := &fakeFitter{mode: viewport.ModeInitial}
	c := New(Options{Fitter: fitter})

	s, err := c.Recompute(scenarioRecords(), false, pairProcessor(), graph.DirectionTB, "org")
	require.NoError(t, err)

	d := c.Reconcile(s, "org")
	assert.True(t, d.Nodes)
	assert.True(t, d.Edges)
	assert.False(t, d.ForcedByView, "the first reconcile is not a view change")
	assert.True(t, d.FitRequested)
	assert.True(t, d.InitialLoad)
	assert.Equal(t, 1, d.NodeCount)
	assert.Equal(t, 1, fitter.calls)

	pub := c.Published()
	assert.Len(t, pub.Nodes, 1)
	assert.Len(t, pub.Edges, 1)
}

func TestReconcile_UnchangedRecomputeIsNotPublished(t *testing.T) {
	fitter := &fakeFitter{mode: viewport.ModeInitial}
	c := New(Options{Fitter: fitter})

	first, err := c.Recompute(scenarioRecords(), false, pairProcessor(), graph.DirectionTB, "org")
	require.NoError(t, err)
	c.Reconcile(first, "org")

	again, err := c.Recompute(scenarioRecords(), false, pairProcessor(), graph.DirectionTB, "org")
	require.NoError(t, err)
	d := c.Reconcile(again, "org")

	assert.False(t, d.Nodes)
	assert.False(t, d.Edges)
	assert.False(t, d.Published())
	assert.False(t, d.FitRequested)
	assert.Equal(t, 1, fitter.calls)
}

func TestReconcile_ViewChangeForcesBoth(t *testing.T) {
	fitter := &fakeFitter{mode: viewport.ModePlain}
	c := New(Options{Fitter: fitter})

	// A processor that ignores the view, so change detection alone would
	// report nothing.
	proc := processor.Funcs{
		Process: func(mapped []processor.Mapped, _ graph.ViewType) (graph.Snapshot, error) {
			return pairProcessor().Process(mapped, "")
		},
	}

	org, err := c.Recompute(scenarioRecords(), false, proc, graph.DirectionTB, "org")
	require.NoError(t, err)
	c.Reconcile(org, "org")

	reporting, err := c.Recompute(scenarioRecords(), false, proc, graph.DirectionTB, "reporting")
	require.NoError(t, err)
	require.False(t, graph.NodesChanged(reporting.Nodes, org.Nodes))
	require.False(t, graph.EdgesChanged(reporting.Edges, org.Edges))

	d := c.Reconcile(reporting, "reporting")
	assert.True(t, d.ForcedByView)
	assert.True(t, d.Nodes)
	assert.True(t, d.Edges)
	assert.True(t, d.FitRequested)
	assert.False(t, d.InitialLoad)
	assert.Equal(t, 2, fitter.calls)

	d = c.Reconcile(reporting, "reporting")
	assert.False(t, d.Published(), "same view again is not forced")
}

func TestReconcile_EmptyGraphNeverRequestsFit(t *testing.T) {
	fitter := &fakeFitter{mode: viewport.ModeInitial}
	c := New(Options{Fitter: fitter})

	d := c.Reconcile(graph.Empty(), "org")
	assert.True(t, d.Published(), "first snapshot is always published")
	assert.Equal(t, 0, d.NodeCount)
	assert.False(t, d.FitRequested)

	d = c.Reconcile(graph.Snapshot{Edges: []graph.Edge{{ID: "dangling"}}}, "other")
	assert.True(t, d.Edges)
	assert.False(t, d.FitRequested)
	assert.Equal(t, 0, fitter.calls)
}

func TestReconcile_OnlyChangedCollectionIsStored(t *testing.T) {
	c := New(Options{})

	base := graph.Snapshot{
		Nodes: []graph.Node{{ID: "1", Data: map[string]any{"label": "A"}}},
		Edges: []graph.Edge{{ID: "e1", Source: "1", Target: "2"}},
	}
	c.Reconcile(base, "org")

	// Positions alone are not a change
	moved := graph.Snapshot{
		Nodes: []graph.Node{{ID: "1", Data: map[string]any{"label": "A"}, Position: &graph.Position{X: 5}}},
		Edges: []graph.Edge{{ID: "e1", Source: "1", Target: "2", Style: map[string]any{"stroke": "red"}}},
	}
	d := c.Reconcile(moved, "org")
	assert.False(t, d.Nodes)
	assert.True(t, d.Edges)

	pub := c.Published()
	assert.Nil(t, pub.Nodes[0].Position, "unpublished nodes keep the earlier value")
	assert.Equal(t, "red", pub.Edges[0].Style["stroke"])
}

func TestReconcile_NoFitterIsFine(t *testing.T) {
	c := New(Options{})
	d := c.Reconcile(graph.Snapshot{Nodes: []graph.Node{{ID: "1"}}}, "org")
	assert.True(t, d.Nodes)
	assert.False(t, d.FitRequested)
}

func TestReconcile_WithCoordinator(t *testing.T) {
	sched := scheduler.NewManual(scheduler.DefaultDelays())
	coord := viewport.NewCoordinator(sched, viewport.Options{PreserveZoom: true})
	c := New(Options{Fitter: coord})

	d := c.Reconcile(graph.Snapshot{Nodes: []graph.Node{{ID: "1"}}}, "org")
	assert.True(t, d.InitialLoad)
	assert.Equal(t, viewport.StateScheduled, coord.State())

	// The handle never arrived, so the initial fit is still owed
	sched.Flush()
	d = c.Reconcile(graph.Snapshot{Nodes: []graph.Node{{ID: "1"}, {ID: "2"}}}, "org")
	assert.True(t, d.InitialLoad)
	assert.Equal(t, []scheduler.Tag{scheduler.TagFit}, sched.PendingTags())
}

func TestReset(t *testing.T) {
	c := New(Options{})
	s := graph.Snapshot{Nodes: []graph.Node{{ID: "1"}}}
	c.Reconcile(s, "org")
	require.False(t, c.Reconcile(s, "org").Published())

	c.Reset()
	assert.Nil(t, c.Published().Nodes)

	d := c.Reconcile(s, "reporting")
	assert.True(t, d.Nodes)
	assert.False(t, d.ForcedByView)
}

func TestMetrics(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	c := New(Options{Metrics: m})

	_, err := c.Recompute(scenarioRecords(), false, pairProcessor(), graph.DirectionTB, "org")
	require.NoError(t, err)
	c.Reconcile(graph.Snapshot{Nodes: []graph.Node{{ID: "1"}}}, "org")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Recomputes))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Published.WithLabelValues("nodes")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Published.WithLabelValues("edges")))
}
