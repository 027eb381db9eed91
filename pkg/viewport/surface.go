package viewport

import (
	"math"
	"sync"

	"github.com/recera/hierview/pkg/graph"
)

// Surface is an in-memory rendering surface. It keeps a pan/zoom transform
// over whatever snapshot data returns and implements Handle, so headless
// callers (CLI, terminal viewer, tests) drive the same coordinator code as a
// real canvas.
type Surface struct {
	mu       sync.Mutex
	width    float64
	height   float64
	nodeW    float64
	nodeH    float64
	viewport Viewport
	getData  func() graph.Snapshot

	fits int
	sets int
}

// NewSurface creates a surface of the given pixel size
func NewSurface(width, height float64, data func() graph.Snapshot) *Surface {
	return &Surface{
		width:    width,
		height:   height,
		nodeW:    1,
		nodeH:    1,
		viewport: Viewport{Zoom: DefaultZoom},
		getData:  data,
	}
}

// SetNodeSize sets the box each node occupies when computing bounds
func (s *Surface) SetNodeSize(w, h float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nodeW, s.nodeH = w, h
}

// Resize changes the surface's pixel size
func (s *Surface) Resize(width, height float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.width, s.height = width, height
}

// Size returns the surface's pixel size
func (s *Surface) Size() (width, height float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.width, s.height
}

// FitView centres all nodes and zooms so they fit inside the padding,
// clamped to the option's zoom bounds. With no positioned nodes the
// viewport resets to the origin at unit zoom.
func (s *Surface) FitView(opts FitOptions) {
	var data graph.Snapshot
	if s.getData != nil {
		data = s.getData()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.fits++

	minX, minY, maxX, maxY, ok := data.Bounds(s.nodeW, s.nodeH)
	if !ok {
		s.viewport = Viewport{Zoom: DefaultZoom}
		return
	}

	gw := maxX - minX
	gh := maxY - minY
	if gw <= 0 {
		gw = 1
	}
	if gh <= 0 {
		gh = 1
	}

	pad := 1 + math.Max(opts.Padding, 0)
	zoom := math.Min(s.width/(gw*pad), s.height/(gh*pad))
	if opts.MinZoom > 0 && zoom < opts.MinZoom {
		zoom = opts.MinZoom
	}
	if opts.MaxZoom > 0 && zoom > opts.MaxZoom {
		zoom = opts.MaxZoom
	}
	if zoom <= 0 || math.IsInf(zoom, 0) || math.IsNaN(zoom) {
		zoom = DefaultZoom
	}

	cx := minX + gw/2
	cy := minY + gh/2
	s.viewport = Viewport{
		X:    s.width/2 - cx*zoom,
		Y:    s.height/2 - cy*zoom,
		Zoom: zoom,
	}
}

// Viewport returns the current transform
func (s *Surface) Viewport() Viewport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewport
}

// SetViewport replaces the current transform
func (s *Surface) SetViewport(v Viewport) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sets++
	s.viewport = v
}

// Project converts a graph position to surface coordinates
func (s *Surface) Project(p graph.Position) (x, y float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return p.X*s.viewport.Zoom + s.viewport.X, p.Y*s.viewport.Zoom + s.viewport.Y
}

// Fits returns how many times FitView ran
func (s *Surface) Fits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fits
}

// Sets returns how many times SetViewport ran
func (s *Surface) Sets() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sets
}
