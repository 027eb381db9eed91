// Package hierarchy ties the sync engine together for one visualization.
//
// A Session takes domain records through a processor, publishes the result
// into controlled node and edge state, and keeps the rendering surface's
// viewport fitted to the content. It owns one graphstate.Controller, one
// viewport.Coordinator and one zoom.Stepper, all sharing a scheduler.
//
//	s, _ := hierarchy.New(hierarchy.Config{Processor: proc, Scheduler: sched})
//	s.OnInit(surface)
//	s.Update(records, false, "org")
package hierarchy

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/recera/hierview/internal/cache"
	"github.com/recera/hierview/pkg/graph"
	"github.com/recera/hierview/pkg/graphstate"
	"github.com/recera/hierview/pkg/metrics"
	"github.com/recera/hierview/pkg/processor"
	"github.com/recera/hierview/pkg/reactive"
	"github.com/recera/hierview/pkg/scheduler"
	"github.com/recera/hierview/pkg/viewport"
	"github.com/recera/hierview/pkg/zoom"
)

// ErrClosed is returned by Update after Close
var ErrClosed = errors.New("session closed")

// Config configures a Session
type Config struct {
	Processor processor.Processor
	Direction graph.Direction

	// PreserveZoom keeps the user's zoom across refits
	PreserveZoom bool
	Fit          viewport.FitOptions

	// ZoomSteps defaults to zoom.DefaultSteps, in which case ZoomIndex is
	// ignored and zoom.DefaultIndex is used
	ZoomSteps []float64
	ZoomIndex int

	// Scheduler defaults to a manual scheduler with default delays
	Scheduler scheduler.Scheduler
	// MemoSize bounds the recompute memo; zero uses the cache default and a
	// negative value disables it
	MemoSize     int
	MemoStrategy cache.EvictionStrategy

	Logger  *slog.Logger
	Metrics *metrics.Collectors
}

// Session is one live visualization
type Session struct {
	id     string
	logger *slog.Logger
	stats  *metrics.Collectors

	ctrl    *graphstate.Controller
	coord   *viewport.Coordinator
	stepper *zoom.Stepper
	memo    *cache.Cache

	nodes *reactive.State[[]graph.Node]
	edges *reactive.State[[]graph.Edge]

	// updateMu serializes recompute, reconcile and both state writes so the
	// controlled state always holds the controller's latest publish
	updateMu sync.Mutex

	mu           sync.Mutex
	proc         processor.Processor
	dir          graph.Direction
	processed    graph.Snapshot
	defaultIndex int
	closed       bool
}

// New creates a session with nothing published
func New(cfg Config) (*Session, error) {
	if cfg.Direction == "" {
		cfg.Direction = graph.DirectionTB
	}
	if !cfg.Direction.Valid() {
		return nil, errors.New("invalid layout direction: " + string(cfg.Direction))
	}
	if cfg.ZoomSteps == nil {
		cfg.ZoomSteps = zoom.DefaultSteps
		cfg.ZoomIndex = zoom.DefaultIndex
	}
	if cfg.Scheduler == nil {
		cfg.Scheduler = scheduler.NewManual(scheduler.DefaultDelays())
	}

	id := uuid.NewString()
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("session", id)

	coord := viewport.NewCoordinator(cfg.Scheduler, viewport.Options{
		PreserveZoom: cfg.PreserveZoom,
		Fit:          cfg.Fit,
		Logger:       logger,
		Metrics:      cfg.Metrics,
	})

	stepper, err := zoom.New(cfg.ZoomSteps, cfg.ZoomIndex, cfg.Scheduler, coord)
	if err != nil {
		return nil, err
	}
	stepper.SetMetrics(cfg.Metrics)

	s := &Session{
		id:     id,
		logger: logger,
		stats:  cfg.Metrics,
		ctrl: graphstate.New(graphstate.Options{
			Fitter:  coord,
			Logger:  logger,
			Metrics: cfg.Metrics,
		}),
		coord:        coord,
		stepper:      stepper,
		nodes:        reactive.NewState([]graph.Node{}),
		edges:        reactive.NewState([]graph.Edge{}),
		proc:         cfg.Processor,
		dir:          cfg.Direction,
		processed:    graph.Empty(),
		defaultIndex: cfg.ZoomIndex,
	}
	if cfg.MemoSize >= 0 {
		s.memo = cache.New(cache.Config{MaxEntries: cfg.MemoSize, Strategy: cfg.MemoStrategy})
	}
	return s, nil
}

// ID returns the session's unique id
func (s *Session) ID() string {
	return s.id
}

// Update recomputes the snapshot for records and publishes whatever changed.
// A processor error leaves the published state untouched. Concurrent calls
// run one at a time; state listeners must not call Update themselves.
func (s *Session) Update(records []processor.Record, loading bool, view graph.ViewType) (graphstate.Decision, error) {
	s.updateMu.Lock()
	defer s.updateMu.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return graphstate.Decision{}, ErrClosed
	}
	proc, dir := s.proc, s.dir
	s.mu.Unlock()

	next, err := s.recompute(records, loading, proc, dir, view)
	if err != nil {
		s.logger.Error("recompute failed", "view", view, "error", err)
		return graphstate.Decision{}, err
	}

	s.mu.Lock()
	s.processed = next
	s.mu.Unlock()

	d := s.ctrl.Reconcile(next, view)
	pub := s.ctrl.Published()
	// The controlled state gets deep copies so surface edits never reach
	// the published snapshot or the memo
	if d.Nodes {
		s.nodes.Set(graph.CloneNodes(pub.Nodes))
	}
	if d.Edges {
		s.edges.Set(graph.CloneEdges(pub.Edges))
	}

	s.logger.Info("update",
		"records", len(records),
		"loading", loading,
		"view", view,
		"nodes", len(next.Nodes),
		"edges", len(next.Edges),
		"published", d.Published(),
		"fit", d.FitRequested,
	)
	return d, nil
}

// recompute consults the memo before running the pipeline. Inputs that do
// not encode to JSON skip the memo.
func (s *Session) recompute(records []processor.Record, loading bool, proc processor.Processor, dir graph.Direction, view graph.ViewType) (graph.Snapshot, error) {
	if s.memo == nil {
		return s.ctrl.Recompute(records, loading, proc, dir, view)
	}

	key, err := cache.KeyFromValues(records, loading, view, dir)
	if err != nil {
		s.logger.Debug("memo bypassed", "error", err)
		return s.ctrl.Recompute(records, loading, proc, dir, view)
	}
	if snap, ok := s.memo.Get(key); ok {
		s.stats.CacheHit()
		return snap, nil
	}

	snap, err := s.ctrl.Recompute(records, loading, proc, dir, view)
	if err != nil {
		return graph.Snapshot{}, err
	}
	s.memo.Put(key, snap)
	return snap, nil
}

// SetProcessor swaps the processor. The memo is dropped since its entries
// came from the old one.
func (s *Session) SetProcessor(proc processor.Processor) {
	s.mu.Lock()
	s.proc = proc
	s.mu.Unlock()
	if s.memo != nil {
		s.memo.Clear()
	}
}

// SetDirection changes the layout direction for later updates. Positions are
// not part of change detection, so a new direction republishes everything on
// the next update.
func (s *Session) SetDirection(dir graph.Direction) error {
	if !dir.Valid() {
		return errors.New("invalid layout direction: " + string(dir))
	}
	s.updateMu.Lock()
	defer s.updateMu.Unlock()

	s.mu.Lock()
	changed := s.dir != dir
	s.dir = dir
	s.mu.Unlock()
	if changed {
		s.ctrl.Reset()
	}
	return nil
}

// Direction returns the layout direction
func (s *Session) Direction() graph.Direction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dir
}

// Nodes is the controlled node state
func (s *Session) Nodes() *reactive.State[[]graph.Node] {
	return s.nodes
}

// Edges is the controlled edge state
func (s *Session) Edges() *reactive.State[[]graph.Edge] {
	return s.edges
}

// OnNodesChange applies a surface-originated change, such as a drag, to the
// controlled nodes. It does not count as a publish.
func (s *Session) OnNodesChange(apply func([]graph.Node) []graph.Node) {
	s.nodes.Update(apply)
}

// OnEdgesChange applies a surface-originated change to the controlled edges
func (s *Session) OnEdgesChange(apply func([]graph.Edge) []graph.Edge) {
	s.edges.Update(apply)
}

// ProcessedData returns a copy of the snapshot from the latest recompute,
// whether or not it was published
func (s *Session) ProcessedData() graph.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.processed.Clone()
}

// OnInit is the rendering surface's initialization callback
func (s *Session) OnInit(h viewport.Handle) {
	s.coord.SetHandle(h)
}

// Remount attaches a fresh surface. Everything is republished on the next
// update and the initial fit is owed again.
func (s *Session) Remount(h viewport.Handle) {
	s.updateMu.Lock()
	s.ctrl.Reset()
	s.updateMu.Unlock()
	s.coord.Rearm()
	s.coord.SetHandle(h)
	s.logger.Debug("surface remounted")
}

// Coordinator exposes the viewport coordinator for diagnostics
func (s *Session) Coordinator() *viewport.Coordinator {
	return s.coord
}

// ZoomIndex returns the current zoom step index
func (s *Session) ZoomIndex() int {
	return s.stepper.Index()
}

// ZoomSteps returns the zoom step table
func (s *Session) ZoomSteps() []float64 {
	return s.stepper.Steps()
}

// ZoomScale returns the magnification at the current index
func (s *Session) ZoomScale() float64 {
	return s.stepper.Scale()
}

// ZoomIn moves one step up
func (s *Session) ZoomIn() int {
	return s.stepper.ZoomIn()
}

// ZoomOut moves one step down
func (s *Session) ZoomOut() int {
	return s.stepper.ZoomOut()
}

// ResetZoom returns to the configured default index and refits shortly after
func (s *Session) ResetZoom() {
	s.stepper.Reset(s.defaultIndex)
}

// MemoStats reports recompute memo statistics
func (s *Session) MemoStats() cache.Stats {
	if s.memo == nil {
		return cache.Stats{}
	}
	return s.memo.GetStats()
}

// Close cancels every pending viewport task. Listeners stay attached.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.coord.Close()
	s.stepper.Close()
	s.logger.Debug("session closed")
}
