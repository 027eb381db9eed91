// Package cache memoizes recomputed graph snapshots by a hash of the inputs
// that produced them, so identical inputs skip the map/process/layout pipeline.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/recera/hierview/pkg/graph"
)

// Cache holds recently computed snapshots
type Cache struct {
	mu         sync.Mutex
	entries    map[string]*Entry
	maxEntries int
	strategy   EvictionStrategy
	stats      Stats
	tick       uint64
}

// Entry represents a single memoized snapshot
type Entry struct {
	Key         string
	Snapshot    graph.Snapshot
	Created     uint64
	LastAccess  uint64
	AccessCount int
}

// Stats tracks cache performance metrics
type Stats struct {
	Hits       int64 `json:"hits"`
	Misses     int64 `json:"misses"`
	Evictions  int64 `json:"evictions"`
	EntryCount int   `json:"entry_count"`
}

// EvictionStrategy defines how cache entries are removed
type EvictionStrategy int

const (
	// LRU removes least recently used entries
	LRU EvictionStrategy = iota
	// LFU removes least frequently used entries
	LFU
	// FIFO removes oldest entries first
	FIFO
)

var strategyNames = map[EvictionStrategy]string{
	LRU:  "lru",
	LFU:  "lfu",
	FIFO: "fifo",
}

// String returns the config name of the strategy
func (s EvictionStrategy) String() string {
	if name, ok := strategyNames[s]; ok {
		return name
	}
	return fmt.Sprintf("EvictionStrategy(%d)", int(s))
}

// ParseStrategy resolves a strategy by its config name, case-insensitively.
// An empty name means LRU.
func ParseStrategy(name string) (EvictionStrategy, error) {
	if name == "" {
		return LRU, nil
	}
	for s, n := range strategyNames {
		if strings.EqualFold(n, name) {
			return s, nil
		}
	}
	return LRU, fmt.Errorf("unknown eviction strategy %q (want lru, lfu or fifo)", name)
}

// Config holds cache configuration
type Config struct {
	MaxEntries int              // Maximum number of snapshots kept (default: 16)
	Strategy   EvictionStrategy // Eviction strategy (default: LRU)
}

// DefaultConfig returns the default cache configuration
func DefaultConfig() Config {
	return Config{
		MaxEntries: 16,
		Strategy:   LRU,
	}
}

// New creates a new cache instance
func New(config Config) *Cache {
	if config.MaxEntries <= 0 {
		config.MaxEntries = DefaultConfig().MaxEntries
	}
	return &Cache{
		entries:    make(map[string]*Entry),
		maxEntries: config.MaxEntries,
		strategy:   config.Strategy,
	}
}

// Get retrieves a snapshot by key
func (c *Cache) Get(key string) (graph.Snapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		c.stats.Misses++
		return graph.Snapshot{}, false
	}

	c.tick++
	entry.LastAccess = c.tick
	entry.AccessCount++
	c.stats.Hits++
	return entry.Snapshot, true
}

// Put stores a snapshot, evicting per strategy when full
func (c *Cache) Put(key string, snapshot graph.Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.tick++
	if entry, ok := c.entries[key]; ok {
		entry.Snapshot = snapshot
		entry.LastAccess = c.tick
		return
	}

	for len(c.entries) >= c.maxEntries {
		if !c.evictOne() {
			break
		}
	}

	c.entries[key] = &Entry{
		Key:        key,
		Snapshot:   snapshot,
		Created:    c.tick,
		LastAccess: c.tick,
	}
	c.stats.EntryCount = len(c.entries)
}

// Delete removes a snapshot from the cache
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	c.stats.EntryCount = len(c.entries)
}

// Clear removes all snapshots
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*Entry)
	c.stats.EntryCount = 0
}

// GetStats returns cache statistics
func (c *Cache) GetStats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// Key generates a cache key from inputs
func Key(inputs ...string) string {
	h := sha256.New()
	for _, input := range inputs {
		h.Write([]byte(input))
		// separator so ("ab","c") and ("a","bc") differ
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// KeyFromValues generates a cache key from the JSON encoding of values
func KeyFromValues(values ...any) (string, error) {
	h := sha256.New()
	for i, v := range values {
		data, err := json.Marshal(v)
		if err != nil {
			return "", fmt.Errorf("failed to encode cache input %d: %w", i, err)
		}
		h.Write(data)
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// evictOne removes a single entry chosen by strategy.
// Caller must hold the lock.
func (c *Cache) evictOne() bool {
	var evictKey string
	var evictEntry *Entry

	switch c.strategy {
	case LFU:
		// Find least frequently used, oldest first on ties
		for key, entry := range c.entries {
			if evictEntry == nil || entry.AccessCount < evictEntry.AccessCount ||
				(entry.AccessCount == evictEntry.AccessCount && entry.LastAccess < evictEntry.LastAccess) {
				evictKey = key
				evictEntry = entry
			}
		}

	case FIFO:
		// Find oldest entry
		for key, entry := range c.entries {
			if evictEntry == nil || entry.Created < evictEntry.Created {
				evictKey = key
				evictEntry = entry
			}
		}

	default:
		// Find least recently used
		for key, entry := range c.entries {
			if evictEntry == nil || entry.LastAccess < evictEntry.LastAccess {
				evictKey = key
				evictEntry = entry
			}
		}
	}

	if evictEntry == nil {
		return false
	}

	delete(c.entries, evictKey)
	c.stats.Evictions++
	c.stats.EntryCount = len(c.entries)
	return true
}
