package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alphadeck/papertrade/internal/domain"
)

// SessionStore implements domain.SessionStore on Redis string keys with a
// native TTL. The cookie only ever carries the opaque session id; the
// user id lives server-side here.
type SessionStore struct {
	rdb *redis.Client
}

// NewSessionStore creates a SessionStore backed by the given Client.
func NewSessionStore(c *Client) *SessionStore {
	return &SessionStore{rdb: c.Underlying()}
}

func sessionKey(sessionID string) string {
	return "session:" + sessionID
}

// Create stores the session id -> user id mapping for ttl.
func (ss *SessionStore) Create(ctx context.Context, sessionID string, userID int64, ttl time.Duration) error {
	if err := ss.rdb.Set(ctx, sessionKey(sessionID), userID, ttl).Err(); err != nil {
		return fmt.Errorf("redis: create session: %w", err)
	}
	return nil
}

// Lookup resolves a session id to its user id. Expired or unknown
// sessions return domain.ErrNotFound.
func (ss *SessionStore) Lookup(ctx context.Context, sessionID string) (int64, error) {
	val, err := ss.rdb.Get(ctx, sessionKey(sessionID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, domain.ErrNotFound
		}
		return 0, fmt.Errorf("redis: lookup session: %w", err)
	}

	userID, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("redis: parse session user id: %w", err)
	}
	return userID, nil
}

// Destroy removes a session. Destroying an absent session is not an error.
func (ss *SessionStore) Destroy(ctx context.Context, sessionID string) error {
	if err := ss.rdb.Del(ctx, sessionKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("redis: destroy session: %w", err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.SessionStore = (*SessionStore)(nil)
