// Package processor defines the pluggable strategy that turns domain records
// into a graph: a record mapper, a graph builder, and an optional layout.
// Implementations differ per visualization and are passed around as values.
package processor

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/recera/hierview/pkg/graph"
)

// Record is one opaque domain record, keyed by its "id" field
type Record map[string]any

// Mapped is a record in the processor's own attributed form
type Mapped = any

var (
	// ErrInvalidRecord is returned for records a processor cannot map
	ErrInvalidRecord = errors.New("invalid record")
	// ErrUnknownProcessor is returned by Registry.Lookup for unregistered names
	ErrUnknownProcessor = errors.New("unknown processor")
)

// Processor maps records and builds the graph from them
type Processor interface {
	MapData(rec Record) (Mapped, error)
	ProcessData(mapped []Mapped, view graph.ViewType) (graph.Snapshot, error)
}

// Layouter is the optional third capability: assigning positions
type Layouter interface {
	ApplyLayout(s graph.Snapshot, dir graph.Direction) (graph.Snapshot, error)
}

// Funcs adapts plain functions to Processor and Layouter.
// A nil Map passes records through; a nil Layout leaves positions alone.
type Funcs struct {
	Map     func(rec Record) (Mapped, error)
	Process func(mapped []Mapped, view graph.ViewType) (graph.Snapshot, error)
	Layout  func(s graph.Snapshot, dir graph.Direction) (graph.Snapshot, error)
}

// MapData implements Processor
func (f Funcs) MapData(rec Record) (Mapped, error) {
	if f.Map == nil {
		return rec, nil
	}
	return f.Map(rec)
}

// ProcessData implements Processor
func (f Funcs) ProcessData(mapped []Mapped, view graph.ViewType) (graph.Snapshot, error) {
	if f.Process == nil {
		return graph.Snapshot{}, errors.New("processor has no Process function")
	}
	return f.Process(mapped, view)
}

// ApplyLayout implements Layouter
func (f Funcs) ApplyLayout(s graph.Snapshot, dir graph.Direction) (graph.Snapshot, error) {
	if f.Layout == nil {
		return s, nil
	}
	return f.Layout(s, dir)
}

// Factory builds a processor
type Factory func() Processor

// Registry resolves processors by name
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds or replaces a named factory
func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = f
}

// Lookup builds the processor registered under name
func (r *Registry) Lookup(name string) (Processor, error) {
	r.mu.RLock()
	f, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q (known: %v)", ErrUnknownProcessor, name, r.Names())
	}
	return f(), nil
}

// Names returns registered names in sorted order
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
