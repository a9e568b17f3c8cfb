// Package relay contains the realtime market-data pipeline: the per
// connection subscription registry and the periodic polling loop that fans
// quote snapshots out to subscribed connections.
package relay

import (
	"sync"

	"github.com/alphadeck/papertrade/internal/domain"
)

// Registry tracks which instruments each live connection wants updates
// for. It is mutated from connection-handling goroutines and read from the
// relay loop, so every operation takes the lock.
type Registry struct {
	mu   sync.RWMutex
	subs map[string]map[domain.InstrumentKey]struct{}
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		subs: make(map[string]map[domain.InstrumentKey]struct{}),
	}
}

// Subscribe atomically replaces the connection's entire interest set with
// keys. Subscribing with the same list twice is a no-op; subscribing with
// an empty list clears the connection's interest without removing it.
func (r *Registry) Subscribe(connID string, keys []domain.InstrumentKey) {
	set := make(map[domain.InstrumentKey]struct{}, len(keys))
	for _, k := range keys {
		set[k] = struct{}{}
	}

	r.mu.Lock()
	r.subs[connID] = set
	r.mu.Unlock()
}

// Unsubscribe removes the connection and its interest entirely. Called on
// disconnect so the next relay tick stops polling instruments nobody
// wants.
func (r *Registry) Unsubscribe(connID string) {
	r.mu.Lock()
	delete(r.subs, connID)
	r.mu.Unlock()
}

// Instruments returns the union of all live connections' interest sets.
func (r *Registry) Instruments() []domain.InstrumentKey {
	r.mu.RLock()
	defer r.mu.RUnlock()

	union := make(map[domain.InstrumentKey]struct{})
	for _, set := range r.subs {
		for k := range set {
			union[k] = struct{}{}
		}
	}

	keys := make([]domain.InstrumentKey, 0, len(union))
	for k := range union {
		keys = append(keys, k)
	}
	return keys
}

// Interests returns a copy of every connection's interest set, taken under
// one lock so the relay never observes a partially-updated union.
func (r *Registry) Interests() map[string]map[domain.InstrumentKey]struct{} {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]map[domain.InstrumentKey]struct{}, len(r.subs))
	for connID, set := range r.subs {
		cp := make(map[domain.InstrumentKey]struct{}, len(set))
		for k := range set {
			cp[k] = struct{}{}
		}
		out[connID] = cp
	}
	return out
}

// ConnectionCount returns the number of live connections.
func (r *Registry) ConnectionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subs)
}
