// Package graphstate owns the published graph snapshot. It recomputes
// snapshots from domain records and decides which collections are worth
// pushing into the rendering surface's controlled state.
package graphstate

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/recera/hierview/pkg/graph"
	"github.com/recera/hierview/pkg/metrics"
	"github.com/recera/hierview/pkg/processor"
	"github.com/recera/hierview/pkg/viewport"
)

// ErrNoProcessor is returned when records arrive without a processor
var ErrNoProcessor = errors.New("no processor configured")

// FitRequester receives the fit request raised by a publish
type FitRequester interface {
	RequestFit() viewport.Mode
}

// Decision records what a reconcile published
type Decision struct {
	// Nodes and Edges report which collections must be pushed
	Nodes bool
	Edges bool
	// ForcedByView is set when a view type change forced both collections
	ForcedByView bool
	// FitRequested is set when a fit-to-content was armed
	FitRequested bool
	// InitialLoad is set when the armed fit is the session's initial fit
	InitialLoad bool
	// NodeCount is the number of published nodes after the reconcile
	NodeCount int
}

// Published reports whether anything was pushed
func (d Decision) Published() bool {
	return d.Nodes || d.Edges
}

// Options configures a Controller
type Options struct {
	Fitter  FitRequester
	Logger  *slog.Logger
	Metrics *metrics.Collectors
}

// Controller holds the last published snapshot. previousNodes and
// previousEdges are nil until first published, and only Reconcile and Reset
// write them.
type Controller struct {
	mu            sync.Mutex
	previousNodes []graph.Node
	previousEdges []graph.Edge
	previousView  graph.ViewType
	hasView       bool

	fitter FitRequester
	logger *slog.Logger
	stats  *metrics.Collectors
}

// New creates a controller with nothing published
func New(opts Options) *Controller {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		fitter: opts.Fitter,
		logger: logger,
		stats:  opts.Metrics,
	}
}

// Recompute builds a snapshot from records. It is pure: identical inputs
// yield snapshots with equal content. Loading or nil records yield an empty
// snapshot. Processor errors are returned, never swallowed.
func (c *Controller) Recompute(records []processor.Record, loading bool, proc processor.Processor, dir graph.Direction, view graph.ViewType) (graph.Snapshot, error) {
	c.stats.Recompute()
	return Recompute(records, loading, proc, dir, view)
}

// Recompute runs MapData, ProcessData and, when proc is a Layouter,
// ApplyLayout, in that order
func Recompute(records []processor.Record, loading bool, proc processor.Processor, dir graph.Direction, view graph.ViewType) (graph.Snapshot, error) {
	if loading || records == nil {
		return graph.Empty(), nil
	}
	if proc == nil {
		return graph.Snapshot{}, ErrNoProcessor
	}

	mapped := make([]processor.Mapped, 0, len(records))
	for i, rec := range records {
		m, err := proc.MapData(rec)
		if err != nil {
			return graph.Snapshot{}, fmt.Errorf("map record %d: %w", i, err)
		}
		mapped = append(mapped, m)
	}

	snapshot, err := proc.ProcessData(mapped, view)
	if err != nil {
		return graph.Snapshot{}, fmt.Errorf("process data: %w", err)
	}

	if l, ok := proc.(processor.Layouter); ok {
		snapshot, err = l.ApplyLayout(snapshot, dir)
		if err != nil {
			return graph.Snapshot{}, fmt.Errorf("apply layout: %w", err)
		}
	}

	return snapshot.Normalize(), nil
}

// Reconcile compares next with the last published snapshot and publishes
// the collections that changed. A view type different from the previous
// reconcile's publishes both regardless. When anything is published and
// nodes exist, a fit is requested.
func (c *Controller) Reconcile(next graph.Snapshot, view graph.ViewType) Decision {
	next = next.Normalize()

	c.mu.Lock()
	forced := c.hasView && view != c.previousView
	d := Decision{
		ForcedByView: forced,
		Nodes:        forced || graph.NodesChanged(next.Nodes, c.previousNodes),
		Edges:        forced || graph.EdgesChanged(next.Edges, c.previousEdges),
	}

	c.previousView = view
	c.hasView = true
	if d.Nodes {
		c.previousNodes = next.Nodes
	}
	if d.Edges {
		c.previousEdges = next.Edges
	}
	d.NodeCount = len(c.previousNodes)
	fitter := c.fitter
	c.mu.Unlock()

	if d.Nodes {
		c.stats.Publish("nodes")
	}
	if d.Edges {
		c.stats.Publish("edges")
	}

	if d.Published() && d.NodeCount > 0 && fitter != nil {
		mode := fitter.RequestFit()
		d.FitRequested = mode != viewport.ModeNone
		d.InitialLoad = mode == viewport.ModeInitial
	}

	c.logger.Debug("reconciled",
		"view", view,
		"nodes", d.Nodes,
		"edges", d.Edges,
		"forced", d.ForcedByView,
		"fit", d.FitRequested,
		"initial", d.InitialLoad,
	)
	return d
}

// Published returns the last published collections. Either may be nil if
// it was never published.
func (c *Controller) Published() graph.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return graph.Snapshot{Nodes: c.previousNodes, Edges: c.previousEdges}
}

// Reset forgets everything published, so the next reconcile publishes in full
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.previousNodes = nil
	c.previousEdges = nil
	c.previousView = ""
	c.hasView = false
}
