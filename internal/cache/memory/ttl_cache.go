// Package memory provides in-process TTL caches for broker snapshots.
//
// Entries expire lazily: Get reports a miss once the entry's age exceeds
// the TTL but never deletes it, and the next Set for the same key simply
// overwrites the stale value. There is no background eviction and no bound
// on key growth; the instrument universe served by the app is small and
// fixed.
package memory

import (
	"sync"
	"time"
)

// Default TTLs for the two cache instances the app constructs. Full quotes
// move fast; OHLC summaries only change materially across sessions.
const (
	QuoteTTL = 30 * time.Second
	OHLCTTL  = 5 * time.Minute
)

type entry[V any] struct {
	data     V
	storedAt time.Time
}

// TTLCache is a mutex-guarded map with per-instance TTL. It is shared
// between HTTP handlers and the relay polling loop, so all access goes
// through the lock.
type TTLCache[V any] struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]entry[V]
}

// New creates a TTLCache whose entries are considered fresh for ttl.
func New[V any](ttl time.Duration) *TTLCache[V] {
	return &TTLCache[V]{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]entry[V]),
	}
}

// Get returns the cached value for key when its age is strictly below the
// TTL. Expired entries report a miss and are left in place.
func (c *TTLCache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok || c.now().Sub(e.storedAt) >= c.ttl {
		var zero V
		return zero, false
	}
	return e.data, true
}

// Set stores value under key, replacing any previous entry.
func (c *TTLCache[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry[V]{data: value, storedAt: c.now()}
}

// Len returns the number of stored entries, fresh or stale.
func (c *TTLCache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
