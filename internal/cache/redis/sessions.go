package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/oddsrow/oddsrow/internal/domain"
)

// SessionStore implements domain.SessionStore using Redis string keys with a
// TTL. Tokens are opaque UUIDs; the value is the user ID the token resolves
// to. Expiry is enforced by Redis itself.
type SessionStore struct {
	rdb *redis.Client
}

// NewSessionStore creates a SessionStore backed by the given Client.
func NewSessionStore(c *Client) *SessionStore {
	return &SessionStore{rdb: c.Underlying()}
}

func sessionKey(token string) string {
	return "session:" + token
}

// Create issues a new session token for the user.
func (s *SessionStore) Create(ctx context.Context, userID string, ttl time.Duration) (string, error) {
	token := uuid.New().String()
	if err := s.rdb.Set(ctx, sessionKey(token), userID, ttl).Err(); err != nil {
		return "", fmt.Errorf("redis: create session: %w", err)
	}
	return token, nil
}

// Get resolves a token to its user ID, or domain.ErrUnauthorized when the
// token is unknown or expired.
func (s *SessionStore) Get(ctx context.Context, token string) (string, error) {
	userID, err := s.rdb.Get(ctx, sessionKey(token)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", domain.ErrUnauthorized
		}
		return "", fmt.Errorf("redis: get session: %w", err)
	}
	return userID, nil
}

// Delete revokes a session token.
func (s *SessionStore) Delete(ctx context.Context, token string) error {
	if err := s.rdb.Del(ctx, sessionKey(token)).Err(); err != nil {
		return fmt.Errorf("redis: delete session: %w", err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.SessionStore = (*SessionStore)(nil)
