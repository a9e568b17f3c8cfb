package domain

import (
	"context"
	"time"
)

// SessionStore maps opaque session ids to user ids with a TTL. Sessions
// live server-side so the browser cookie only ever carries the random id.
type SessionStore interface {
	Create(ctx context.Context, sessionID string, userID int64, ttl time.Duration) error
	Lookup(ctx context.Context, sessionID string) (int64, error)
	Destroy(ctx context.Context, sessionID string) error
}

// RateLimiter provides sliding-window rate limiting keyed by caller.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}
