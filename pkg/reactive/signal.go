package reactive

import (
	"sync"
)

// Listener is notified with the new value after every Set or Update
type Listener[T any] func(T)

// Signal is the interface for reactive values
type Signal[T any] interface {
	Get() T
	Set(T)
	Subscribe(fn Listener[T]) (unsubscribe func())
}

// State represents a reactive state value. It is the controlled state a
// rendering surface reads from: writers call Set, readers either Get or
// subscribe.
type State[T any] struct {
	value T
	mu    sync.RWMutex

	// Listeners keyed by subscription id
	listeners   map[uint64]Listener[T]
	nextID      uint64
	listenersMu sync.RWMutex

	version uint64
}

// NewState creates a new reactive state
func NewState[T any](initial T) *State[T] {
	return &State[T]{
		value:     initial,
		listeners: make(map[uint64]Listener[T]),
	}
}

// Get returns the current value
func (s *State[T]) Get() T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.value
}

// Version returns how many times the value has been written
func (s *State[T]) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Set updates the value and notifies listeners
func (s *State[T]) Set(value T) {
	s.mu.Lock()
	s.value = value
	s.version++
	s.mu.Unlock()

	s.notify(value)
}

// Update atomically reads, modifies, and writes the value
func (s *State[T]) Update(fn func(T) T) {
	s.mu.Lock()
	newValue := fn(s.value)
	s.value = newValue
	s.version++
	s.mu.Unlock()

	s.notify(newValue)
}

// Subscribe registers fn and returns a function that removes it
func (s *State[T]) Subscribe(fn Listener[T]) func() {
	if fn == nil {
		return func() {}
	}

	s.listenersMu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.listenersMu.Unlock()

	return func() {
		s.listenersMu.Lock()
		delete(s.listeners, id)
		s.listenersMu.Unlock()
	}
}

// Listeners returns the number of active subscriptions
func (s *State[T]) Listeners() int {
	s.listenersMu.RLock()
	defer s.listenersMu.RUnlock()
	return len(s.listeners)
}

// notify calls listeners outside the locks so they may read or write the state
func (s *State[T]) notify(value T) {
	s.listenersMu.RLock()
	listeners := make([]Listener[T], 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.listenersMu.RUnlock()

	for _, fn := range listeners {
		fn(value)
	}
}
