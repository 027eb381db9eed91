package scheduler

import (
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"
)

// Tag names a kind of deferred task. The scheduler maps each tag to a delay,
// so callers never carry millisecond constants around.
type Tag string

const (
	// TagFit defers a fit-to-content after a publish
	TagFit Tag = "fit"
	// TagPreserveFit defers a fit that must keep the user's zoom; the surface
	// needs longer to settle
	TagPreserveFit Tag = "preserve-fit"
	// TagRestoreZoom re-applies a recorded zoom after a fit
	TagRestoreZoom Tag = "restore-zoom"
	// TagZoomReset defers the fit that follows a zoom reset
	TagZoomReset Tag = "zoom-reset"
)

// Delays maps tags to delays
type Delays map[Tag]time.Duration

// DefaultDelays returns the delays used when nothing is configured
func DefaultDelays() Delays {
	return Delays{
		TagFit:         100 * time.Millisecond,
		TagPreserveFit: 300 * time.Millisecond,
		TagRestoreZoom: 100 * time.Millisecond,
		TagZoomReset:   50 * time.Millisecond,
	}
}

// For returns the delay for tag. Unknown tags run on the next turn.
func (d Delays) For(tag Tag) time.Duration {
	if d == nil {
		return 0
	}
	return d[tag]
}

// CancelFunc cancels a scheduled task. Calling it after the task ran, or more
// than once, is a no-op.
type CancelFunc func()

// Scheduler defers work by tag
type Scheduler interface {
	Schedule(fn func(), tag Tag) CancelFunc
}

// ErrorHandler handles panics raised by a task
type ErrorHandler func(tag Tag, err interface{})

// task is a single deferred call
type task struct {
	id        uint64
	tag       Tag
	fn        func()
	timer     *time.Timer
	cancelled atomic.Bool
}

// Loop runs deferred tasks on a single goroutine. Timers only enqueue;
// task bodies never run concurrently with each other.
type Loop struct {
	mu      sync.Mutex
	delays  Delays
	tasks   map[uint64]*task
	nextID  uint64
	wake    chan *task
	stop    chan struct{}
	running atomic.Bool

	onError ErrorHandler
	logger  *slog.Logger
}

// NewLoop creates a new loop scheduler instance
func NewLoop(delays Delays) *Loop {
	if delays == nil {
		delays = DefaultDelays()
	}
	return &Loop{
		delays: delays,
		tasks:  make(map[uint64]*task),
		nextID: 1,
		wake:   make(chan *task, 1024),
		logger: slog.Default(),
	}
}

// SetLogger sets the logger used for debug output
func (l *Loop) SetLogger(logger *slog.Logger) {
	if logger != nil {
		l.logger = logger
	}
}

// SetErrorHandler sets the handler for panicking tasks
func (l *Loop) SetErrorHandler(handler ErrorHandler) {
	l.onError = handler
}

// Schedule arms fn to run after the delay configured for tag
func (l *Loop) Schedule(fn func(), tag Tag) CancelFunc {
	if fn == nil {
		return func() {}
	}

	l.mu.Lock()
	t := &task{id: l.nextID, tag: tag, fn: fn}
	l.nextID++
	l.tasks[t.id] = t
	l.mu.Unlock()

	delay := l.delays.For(tag)
	l.logger.Debug("task scheduled", "task", t.id, "tag", tag, "delay", delay)

	t.timer = time.AfterFunc(delay, func() { l.enqueue(t) })

	return func() { l.cancel(t) }
}

func (l *Loop) cancel(t *task) {
	if !t.cancelled.CompareAndSwap(false, true) {
		return
	}
	if t.timer != nil {
		t.timer.Stop()
	}
	l.mu.Lock()
	delete(l.tasks, t.id)
	l.mu.Unlock()
	l.logger.Debug("task cancelled", "task", t.id, "tag", t.tag)
}

// enqueue hands a due task to the loop goroutine
func (l *Loop) enqueue(t *task) {
	if t.cancelled.Load() {
		return
	}
	if !l.running.Load() {
		l.logger.Debug("loop not running, dropping task", "task", t.id, "tag", t.tag)
		l.forget(t)
		return
	}
	select {
	case l.wake <- t:
	default:
		l.logger.Warn("wake channel full, dropping task", "task", t.id, "tag", t.tag)
		l.forget(t)
	}
}

func (l *Loop) forget(t *task) {
	l.mu.Lock()
	delete(l.tasks, t.id)
	l.mu.Unlock()
}

// Start begins the loop
func (l *Loop) Start() {
	if !l.running.CompareAndSwap(false, true) {
		l.logger.Debug("loop already running")
		return
	}
	stop := make(chan struct{})
	l.mu.Lock()
	l.stop = stop
	l.mu.Unlock()
	go l.loop(stop)
}

// Stop stops the loop and cancels every armed task
func (l *Loop) Stop() {
	if !l.running.CompareAndSwap(true, false) {
		return
	}

	l.mu.Lock()
	stop := l.stop
	pending := make([]*task, 0, len(l.tasks))
	for _, t := range l.tasks {
		pending = append(pending, t)
	}
	l.mu.Unlock()

	for _, t := range pending {
		l.cancel(t)
	}
	if stop != nil {
		close(stop)
	}
}

// IsRunning returns whether the loop is running
func (l *Loop) IsRunning() bool {
	return l.running.Load()
}

// Pending returns the number of armed tasks
func (l *Loop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.tasks)
}

// loop is the main event loop
func (l *Loop) loop(stop chan struct{}) {
	l.logger.Debug("loop started")
	for {
		select {
		case <-stop:
			l.logger.Debug("loop ended")
			return
		case t := <-l.wake:
			batch := []*task{t}

			// Drain whatever else is already due
		drain:
			for {
				select {
				case next := <-l.wake:
					batch = append(batch, next)
				default:
					break drain
				}
			}

			for _, t := range batch {
				l.run(t)
			}
		}
	}
}

// run executes a single task unless it was cancelled while queued
func (l *Loop) run(t *task) {
	if t.cancelled.Load() {
		return
	}
	l.forget(t)

	defer func() {
		if r := recover(); r != nil {
			l.handleTaskError(t, r)
		}
	}()
	t.fn()
}

// handleTaskError reports a panic raised inside a task
func (l *Loop) handleTaskError(t *task, err interface{}) {
	msg := fmt.Sprintf("task %d (%s) panic: %v\n%s", t.id, t.tag, err, debug.Stack())
	if l.onError != nil {
		l.onError(t.tag, msg)
		return
	}
	l.logger.Error("task panicked", "task", t.id, "tag", t.tag, "error", msg)
}
