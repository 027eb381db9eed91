// Package zoom implements discrete zoom levels over a fixed table of
// magnification factors.
package zoom

import (
	"errors"
	"fmt"
	"sync"

	"github.com/recera/hierview/pkg/metrics"
	"github.com/recera/hierview/pkg/scheduler"
)

// DefaultSteps is the default magnification table
var DefaultSteps = []float64{0.25, 0.5, 0.75, 1, 1.25, 1.5, 1.75, 2}

// DefaultIndex points at 1.0 in DefaultSteps
const DefaultIndex = 3

// ErrInvalidSteps is returned for an empty or non-ascending table
var ErrInvalidSteps = errors.New("zoom steps must be non-empty and strictly ascending")

// Fitter receives the fit that follows a zoom reset
type Fitter interface {
	FitNow() bool
}

// Stepper holds a zoom index into an immutable ascending step table
type Stepper struct {
	mu     sync.Mutex
	steps  []float64
	index  int
	sched  scheduler.Scheduler
	fitter Fitter
	stats  *metrics.Collectors

	cancelReset scheduler.CancelFunc
	// resetGen identifies the latest scheduled post-reset fit
	resetGen uint64
	closed   bool
}

// ValidateSteps checks that steps can back a Stepper
func ValidateSteps(steps []float64) error {
	if len(steps) == 0 {
		return ErrInvalidSteps
	}
	for i := 1; i < len(steps); i++ {
		if steps[i] <= steps[i-1] {
			return fmt.Errorf("%w: step %d (%g) <= step %d (%g)", ErrInvalidSteps, i, steps[i], i-1, steps[i-1])
		}
	}
	return nil
}

// New creates a stepper starting at index. The index is taken as given.
// sched and fitter may be nil, in which case Reset only moves the index.
func New(steps []float64, index int, sched scheduler.Scheduler, fitter Fitter) (*Stepper, error) {
	if err := ValidateSteps(steps); err != nil {
		return nil, err
	}
	return &Stepper{
		steps:  append([]float64(nil), steps...),
		index:  index,
		sched:  sched,
		fitter: fitter,
	}, nil
}

// SetMetrics attaches collectors for zoom commands
func (s *Stepper) SetMetrics(m *metrics.Collectors) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats = m
}

// ZoomIn moves one step up, stopping at the last step
func (s *Stepper) ZoomIn() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.index = s.clamp(min(s.index+1, len(s.steps)-1))
	s.stats.Zoom("in")
	return s.index
}

// ZoomOut moves one step down, stopping at the first step
func (s *Stepper) ZoomOut() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.index = s.clamp(max(s.index-1, 0))
	s.stats.Zoom("out")
	return s.index
}

// Reset jumps to index exactly, without bounds checks; the next ZoomIn or
// ZoomOut brings an out-of-range index back into the table. A fit follows
// after the zoom-reset delay so the new scale is applied first. A closed
// stepper still moves the index but schedules nothing.
func (s *Stepper) Reset(index int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.index = index
	if s.closed {
		return
	}
	s.stats.Zoom("reset")

	if s.cancelReset != nil {
		s.cancelReset()
		s.cancelReset = nil
	}
	if s.sched == nil || s.fitter == nil {
		return
	}
	s.resetGen++
	gen := s.resetGen
	s.cancelReset = s.sched.Schedule(func() { s.fitAfterReset(gen) }, scheduler.TagZoomReset)
}

// fitAfterReset runs the fit for reset gen unless a later Reset or Close
// superseded it
func (s *Stepper) fitAfterReset(gen uint64) {
	s.mu.Lock()
	if s.closed || gen != s.resetGen {
		s.mu.Unlock()
		return
	}
	s.cancelReset = nil
	fitter := s.fitter
	s.mu.Unlock()

	fitter.FitNow()
}

// Index returns the current index
func (s *Stepper) Index() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index
}

// Steps returns a copy of the step table
func (s *Stepper) Steps() []float64 {
	return append([]float64(nil), s.steps...)
}

// Scale returns steps[index]. An out-of-range index reads the nearest end of
// the table rather than panicking.
func (s *Stepper) Scale() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.steps[s.clamp(s.index)]
}

// Close cancels a pending post-reset fit
func (s *Stepper) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.resetGen++
	if s.cancelReset != nil {
		s.cancelReset()
		s.cancelReset = nil
	}
}

func (s *Stepper) clamp(i int) int {
	if i < 0 {
		return 0
	}
	if i >= len(s.steps) {
		return len(s.steps) - 1
	}
	return i
}
