// Package metrics exposes Prometheus collectors for the graph sync engine.
// A nil *Collectors is valid and records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collectors groups every metric the engine records
type Collectors struct {
	Recomputes  prometheus.Counter
	CacheHits   prometheus.Counter
	Published   *prometheus.CounterVec
	FitsFired   *prometheus.CounterVec
	FitsSkipped prometheus.Counter
	ZoomOps     *prometheus.CounterVec
}

// New creates the collectors and registers them with reg. A nil reg leaves
// them unregistered, which is what tests want.
func New(reg prometheus.Registerer) *Collectors {
	c := &Collectors{
		Recomputes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hierview_recomputes_total",
			Help: "Total number of snapshot recomputes",
		}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hierview_recompute_cache_hits_total",
			Help: "Recomputes answered from the snapshot memo",
		}),
		Published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hierview_published_total",
			Help: "Collections pushed into the controlled state",
		}, []string{"collection"}),
		FitsFired: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hierview_fits_total",
			Help: "Fit-to-content operations executed against the viewport",
		}, []string{"mode"}),
		FitsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hierview_fits_skipped_total",
			Help: "Scheduled viewport tasks dropped because no handle was attached",
		}),
		ZoomOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hierview_zoom_ops_total",
			Help: "Zoom stepper commands",
		}, []string{"op"}),
	}

	if reg != nil {
		reg.MustRegister(c.Recomputes, c.CacheHits, c.Published, c.FitsFired, c.FitsSkipped, c.ZoomOps)
	}
	return c
}

// Recompute records one recompute
func (c *Collectors) Recompute() {
	if c == nil {
		return
	}
	c.Recomputes.Inc()
}

// CacheHit records a memoized recompute
func (c *Collectors) CacheHit() {
	if c == nil {
		return
	}
	c.CacheHits.Inc()
}

// Publish records a published collection ("nodes" or "edges")
func (c *Collectors) Publish(collection string) {
	if c == nil {
		return
	}
	c.Published.WithLabelValues(collection).Inc()
}

// Fit records an executed fit by mode
func (c *Collectors) Fit(mode string) {
	if c == nil {
		return
	}
	c.FitsFired.WithLabelValues(mode).Inc()
}

// FitSkipped records a viewport task dropped for lack of a handle
func (c *Collectors) FitSkipped() {
	if c == nil {
		return
	}
	c.FitsSkipped.Inc()
}

// Zoom records a zoom stepper command
func (c *Collectors) Zoom(op string) {
	if c == nil {
		return
	}
	c.ZoomOps.WithLabelValues(op).Inc()
}
