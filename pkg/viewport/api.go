// Package viewport coordinates fit-to-content and zoom restoration against a
// rendering surface that finishes its own layout pass at an unknown time.
package viewport

import "time"

// DefaultZoom is the unscaled zoom level
const DefaultZoom = 1.0

// Viewport is the surface's pan/zoom transform
type Viewport struct {
	X    float64 `json:"x" yaml:"x"`
	Y    float64 `json:"y" yaml:"y"`
	Zoom float64 `json:"zoom" yaml:"zoom"`
}

// FitOptions bounds a fit-to-content
type FitOptions struct {
	// Padding is a fraction of the content size kept free around it
	Padding float64 `json:"padding" yaml:"padding"`
	MinZoom float64 `json:"minZoom" yaml:"minZoom"`
	MaxZoom float64 `json:"maxZoom" yaml:"maxZoom"`
	// Duration asks the surface to animate; zero jumps
	Duration time.Duration `json:"duration,omitempty" yaml:"duration,omitempty"`
}

// DefaultFitOptions returns the padding and zoom bounds of an initial fit
func DefaultFitOptions() FitOptions {
	return FitOptions{
		Padding: 0.2,
		MinZoom: 0.1,
		MaxZoom: 2,
	}
}

// Handle is the live rendering-surface instance. The surface hands one over
// on its initialization callback and may replace or drop it at any time.
type Handle interface {
	FitView(opts FitOptions)
	Viewport() Viewport
	SetViewport(v Viewport)
}
