package viewport

import (
	"log/slog"
	"sync"

	"github.com/recera/hierview/pkg/metrics"
	"github.com/recera/hierview/pkg/scheduler"
)

// Mode is the kind of fit a scheduled task performs
type Mode int

const (
	// ModeNone means no fit was armed
	ModeNone Mode = iota
	// ModeInitial fits the first successful population of a session
	ModeInitial
	// ModePreserveZoom fits and then restores the user's zoom
	ModePreserveZoom
	// ModePlain fits unconditionally
	ModePlain
)

// String returns the metric/log label for m
func (m Mode) String() string {
	switch m {
	case ModeInitial:
		return "initial"
	case ModePreserveZoom:
		return "preserve-zoom"
	case ModePlain:
		return "plain"
	default:
		return "none"
	}
}

// State is the coordinator's scheduling state
type State int

const (
	// StateIdle means no fit is armed
	StateIdle State = iota
	// StateScheduled means a fit is armed and has not fired yet
	StateScheduled
)

// Options configures a Coordinator
type Options struct {
	// PreserveZoom keeps the user's zoom across refits after the initial one
	PreserveZoom bool
	Fit          FitOptions
	Logger       *slog.Logger
	Metrics      *metrics.Collectors
}

// Coordinator schedules fit-to-content and zoom restoration. Every operation
// against the handle tolerates it being absent; a task that fires without a
// handle is dropped.
type Coordinator struct {
	mu     sync.Mutex
	sched  scheduler.Scheduler
	opts   Options
	logger *slog.Logger

	handle Handle
	state  State
	closed bool

	// initialPending stays set until an initial fit actually runs
	initialPending bool

	cancelFit scheduler.CancelFunc
	fitGen    uint64

	cancelRestore scheduler.CancelFunc
	restoreGen    uint64
	restoreZoom   float64
	// carryZoom is a restore preempted by a newer request
	carryZoom *float64
}

// NewCoordinator creates a coordinator that defers work through sched
func NewCoordinator(sched scheduler.Scheduler, opts Options) *Coordinator {
	if opts.Fit == (FitOptions{}) {
		opts.Fit = DefaultFitOptions()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		sched:          sched,
		opts:           opts,
		logger:         logger,
		initialPending: true,
	}
}

// SetHandle is the surface's initialization callback. It may be called again
// with a replacement handle, or with nil when the surface goes away.
func (c *Coordinator) SetHandle(h Handle) {
	c.mu.Lock()
	c.handle = h
	c.mu.Unlock()
	c.logger.Debug("viewport handle attached", "present", h != nil)
}

// Handle returns the current handle, which may be nil
func (c *Coordinator) Handle() Handle {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handle
}

// State returns whether a fit is armed
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// InitialPending reports whether the session's initial fit is still owed
func (c *Coordinator) InitialPending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.initialPending
}

// RequestFit arms a fit, replacing any fit or zoom restore that has not fired
// yet. It returns the mode the armed fit plans to use.
func (c *Coordinator) RequestFit() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ModeNone
	}

	if c.cancelFit != nil {
		c.cancelFit()
		c.cancelFit = nil
	}
	if c.cancelRestore != nil {
		c.cancelRestore()
		c.cancelRestore = nil
		c.restoreGen++
		zoom := c.restoreZoom
		c.carryZoom = &zoom
	}

	mode := c.modeLocked()
	tag := scheduler.TagFit
	if mode == ModePreserveZoom {
		tag = scheduler.TagPreserveFit
	}

	c.fitGen++
	gen := c.fitGen
	c.cancelFit = c.sched.Schedule(func() { c.fire(gen) }, tag)
	c.state = StateScheduled

	c.logger.Debug("fit scheduled", "mode", mode, "tag", tag)
	return mode
}

func (c *Coordinator) modeLocked() Mode {
	switch {
	case c.initialPending:
		return ModeInitial
	case c.opts.PreserveZoom:
		return ModePreserveZoom
	default:
		return ModePlain
	}
}

// fire runs an armed fit. gen guards against a cancel racing the timer.
func (c *Coordinator) fire(gen uint64) {
	c.mu.Lock()
	if c.closed || gen != c.fitGen {
		c.mu.Unlock()
		return
	}
	c.cancelFit = nil
	c.state = StateIdle

	h := c.handle
	if h == nil {
		c.mu.Unlock()
		c.logger.Debug("fit dropped, no viewport handle")
		c.opts.Metrics.FitSkipped()
		return
	}

	mode := c.modeLocked()
	if mode == ModeInitial {
		c.initialPending = false
	}
	carry := c.carryZoom
	c.carryZoom = nil
	fit := c.opts.Fit
	c.mu.Unlock()

	switch mode {
	case ModePreserveZoom:
		zoom := h.Viewport().Zoom
		if carry != nil {
			zoom = *carry
		}
		h.FitView(fit)
		if zoom != DefaultZoom {
			c.armRestore(zoom)
		}
	default:
		h.FitView(fit)
	}

	c.opts.Metrics.Fit(mode.String())
	c.logger.Debug("fit executed", "mode", mode)
}

// armRestore schedules re-applying zoom once the fit has settled
func (c *Coordinator) armRestore(zoom float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	if c.cancelRestore != nil {
		c.cancelRestore()
	}
	c.restoreGen++
	gen := c.restoreGen
	c.restoreZoom = zoom
	c.cancelRestore = c.sched.Schedule(func() { c.restore(gen) }, scheduler.TagRestoreZoom)
}

// restore re-applies the recorded zoom, keeping the post-fit pan
func (c *Coordinator) restore(gen uint64) {
	c.mu.Lock()
	if c.closed || gen != c.restoreGen {
		c.mu.Unlock()
		return
	}
	c.cancelRestore = nil
	h := c.handle
	zoom := c.restoreZoom
	c.mu.Unlock()

	if h == nil {
		c.logger.Debug("zoom restore dropped, no viewport handle")
		c.opts.Metrics.FitSkipped()
		return
	}

	vp := h.Viewport()
	h.SetViewport(Viewport{X: vp.X, Y: vp.Y, Zoom: zoom})
	c.logger.Debug("zoom restored", "zoom", zoom)
}

// FitNow performs a plain fit immediately. It reports whether a handle was
// there to receive it.
func (c *Coordinator) FitNow() bool {
	c.mu.Lock()
	h := c.handle
	closed := c.closed
	fit := c.opts.Fit
	c.mu.Unlock()

	if closed {
		return false
	}
	if h == nil {
		c.opts.Metrics.FitSkipped()
		return false
	}
	h.FitView(fit)
	c.opts.Metrics.Fit(ModePlain.String())
	return true
}

// Rearm makes the next fit an initial fit again, for a remounted surface
func (c *Coordinator) Rearm() {
	c.mu.Lock()
	c.initialPending = true
	c.mu.Unlock()
}

// Close cancels every armed task. Later requests are ignored.
func (c *Coordinator) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	if c.cancelFit != nil {
		c.cancelFit()
		c.cancelFit = nil
	}
	if c.cancelRestore != nil {
		c.cancelRestore()
		c.cancelRestore = nil
	}
	c.state = StateIdle
}
