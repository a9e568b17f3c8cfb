package relay

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/alphadeck/papertrade/internal/cache/memory"
	"github.com/alphadeck/papertrade/internal/domain"
)

// State is the relay's coarse operating state. Transitions:
// Idle -> Polling -> {Delivering, Paused, BackingOff} -> Idle. Paused is
// only cleared by Resume (a fresh broker token); BackingOff clears itself
// after the cool-down.
type State string

const (
	StateIdle       State = "idle"
	StatePolling    State = "polling"
	StateDelivering State = "delivering"
	StatePaused     State = "paused"
	StateBackingOff State = "backing_off"
)

// QuoteFetcher is the slice of the broker gateway the relay needs.
type QuoteFetcher interface {
	GetQuotes(ctx context.Context, keys []domain.InstrumentKey) (map[domain.InstrumentKey]domain.Quote, error)
}

// Broadcaster delivers one batched update to a single connection.
// Delivery is fire-and-forget: a connection that disconnected mid-tick
// simply has its send dropped.
type Broadcaster interface {
	Deliver(connID string, batch domain.QuoteUpdateBatch)
}

// Config holds relay timing parameters.
type Config struct {
	// TickInterval is the polling period. A client that subscribes
	// mid-interval is included starting from the next tick, so this is
	// also the worst-case latency before a new subscriber sees data.
	TickInterval time.Duration

	// Backoff is how long the relay stays in BackingOff after the broker
	// rate-limits a tick.
	Backoff time.Duration
}

// DefaultConfig returns the relay timing defaults.
func DefaultConfig() Config {
	return Config{
		TickInterval: 3 * time.Second,
		Backoff:      15 * time.Second,
	}
}

// Relay runs the periodic poll/fan-out cycle: compute the aggregated
// instrument set, satisfy it cache-first, fetch the remainder from the
// broker, and deliver each connection the subset it subscribed to as one
// batched message.
type Relay struct {
	registry    *Registry
	fetcher     QuoteFetcher
	cache       *memory.TTLCache[domain.Quote]
	broadcaster Broadcaster
	cfg         Config
	logger      *slog.Logger

	mu           sync.Mutex
	state        State
	backoffUntil time.Time
}

// New creates a Relay. The cache is shared with the REST quote path so a
// fresh REST fetch also feeds the next tick.
func New(registry *Registry, fetcher QuoteFetcher, cache *memory.TTLCache[domain.Quote], broadcaster Broadcaster, cfg Config, logger *slog.Logger) *Relay {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultConfig().TickInterval
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = DefaultConfig().Backoff
	}
	return &Relay{
		registry:    registry,
		fetcher:     fetcher,
		cache:       cache,
		broadcaster: broadcaster,
		cfg:         cfg,
		logger:      logger.With(slog.String("component", "relay")),
		state:       StateIdle,
	}
}

// Run drives the tick loop until the context is cancelled. An in-flight
// tick always completes; cancellation takes effect at the next tick
// boundary.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.cfg.TickInterval)
	defer ticker.Stop()

	r.logger.InfoContext(ctx, "relay started",
		slog.Duration("tick_interval", r.cfg.TickInterval),
	)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("relay stopped")
			return ctx.Err()
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}

// State returns the relay's current state.
func (r *Relay) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Pause suspends polling until Resume is called. The relay pauses itself
// when the broker reports an expired session, so it does not spin retrying
// every tick against a dead token.
func (r *Relay) Pause() {
	r.mu.Lock()
	r.state = StatePaused
	r.mu.Unlock()
	r.logger.Warn("relay paused, waiting for re-authentication")
}

// Resume clears the Paused state after a fresh broker token is installed.
func (r *Relay) Resume() {
	r.mu.Lock()
	if r.state == StatePaused {
		r.state = StateIdle
	}
	r.mu.Unlock()
	r.logger.Info("relay resumed")
}

func (r *Relay) setState(s State) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
}

// settle returns the relay to Idle at the end of a tick, unless an error
// branch already moved it to Paused or BackingOff; those states must
// survive past the tick that set them.
func (r *Relay) settle() {
	r.mu.Lock()
	if r.state == StatePolling || r.state == StateDelivering {
		r.state = StateIdle
	}
	r.mu.Unlock()
}

// shouldSkip reports whether this tick must be skipped without polling,
// and clears an elapsed backoff window.
func (r *Relay) shouldSkip() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch r.state {
	case StatePaused:
		return true
	case StateBackingOff:
		if time.Now().Before(r.backoffUntil) {
			return true
		}
		r.state = StateIdle
	}
	return false
}

// tick executes one poll/fan-out cycle. It never returns an error: broker
// failures degrade the tick (skip, pause, or back off) but keep the loop
// alive.
func (r *Relay) tick(ctx context.Context) {
	if r.shouldSkip() {
		return
	}

	keys := r.registry.Instruments()
	if len(keys) == 0 {
		// Nobody is listening; avoid needless broker load.
		return
	}

	r.setState(StatePolling)
	defer r.settle()

	snapshots := make(map[domain.InstrumentKey]domain.Quote, len(keys))
	var misses []domain.InstrumentKey
	for _, k := range keys {
		if q, ok := r.cache.Get(string(k)); ok {
			snapshots[k] = q
		} else {
			misses = append(misses, k)
		}
	}

	if len(misses) > 0 {
		fetched, err := r.fetcher.GetQuotes(ctx, misses)
		switch {
		case err == nil:
			for k, q := range fetched {
				r.cache.Set(string(k), q)
				snapshots[k] = q
			}
		case errors.Is(err, domain.ErrUnauthenticated):
			r.Pause()
			return
		case errors.Is(err, domain.ErrRateLimited):
			r.mu.Lock()
			r.state = StateBackingOff
			r.backoffUntil = time.Now().Add(r.cfg.Backoff)
			r.mu.Unlock()
			r.logger.Warn("broker rate limited, backing off",
				slog.Duration("backoff", r.cfg.Backoff),
			)
			return
		default:
			// Partial degradation: the fetch failed but any cache-fresh
			// snapshots are still delivered below.
			r.logger.Warn("quote fetch failed, delivering cached snapshots only",
				slog.Int("missing", len(misses)),
				slog.String("error", err.Error()),
			)
		}
	}

	if len(snapshots) == 0 {
		return
	}

	r.setState(StateDelivering)
	r.deliver(snapshots)
}

// deliver intersects the fetched snapshots with every connection's
// interest set and pushes one batched message per connection. Fan-out
// order across connections is unspecified.
func (r *Relay) deliver(snapshots map[domain.InstrumentKey]domain.Quote) {
	interests := r.registry.Interests()

	for connID, set := range interests {
		var quotes []domain.Quote
		for k := range set {
			if q, ok := snapshots[k]; ok {
				quotes = append(quotes, q)
			}
		}
		if len(quotes) == 0 {
			continue
		}
		r.broadcaster.Deliver(connID, domain.QuoteUpdateBatch{
			Type:   domain.MessageTypeQuoteUpdate,
			Quotes: quotes,
		})
	}
}
