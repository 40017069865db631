package domain

import (
	"context"
	"time"
)

// SignalBus publishes prediction snapshots after state changes and lets
// consumers (the WebSocket hub, external dashboards) subscribe. Delivery is
// best-effort; the ledger never blocks on it and a publish failure never
// rolls anything back.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	StreamAppend(ctx context.Context, stream string, payload []byte) error
}

// LeaderboardCache maintains the balance-ordered leaderboard projection.
type LeaderboardCache interface {
	SetScore(ctx context.Context, userID string, balance int64) error
	Top(ctx context.Context, n int) ([]LeaderboardEntry, error)
}

// LeaderboardEntry is one row of the leaderboard projection.
type LeaderboardEntry struct {
	UserID  string `json:"user_id"`
	Balance int64  `json:"balance"`
}

// SessionStore issues and verifies opaque session tokens. It is the concrete
// form of the authentication collaborator: middleware resolves a token to a
// trusted caller identity before any ledger operation runs.
type SessionStore interface {
	Create(ctx context.Context, userID string, ttl time.Duration) (string, error)
	Get(ctx context.Context, token string) (string, error)
	Delete(ctx context.Context, token string) error
}

// RateLimiter answers whether a request under key is allowed within the
// sliding window.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// LockManager provides distributed locks so only one sweeper instance scans
// for resolvable predictions at a time.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}
