package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/oddsrow/oddsrow/internal/domain"
)

// leaderboardKey is the sorted set holding user balances.
const leaderboardKey = "leaderboard:balance"

// Leaderboard implements domain.LeaderboardCache using a Redis sorted set
// scored by balance. It is a projection rebuilt on every ledger commit, never
// the authoritative balance.
type Leaderboard struct {
	rdb *redis.Client
}

// NewLeaderboard creates a Leaderboard backed by the given Client.
func NewLeaderboard(c *Client) *Leaderboard {
	return &Leaderboard{rdb: c.Underlying()}
}

// SetScore records a user's balance in the sorted set.
func (l *Leaderboard) SetScore(ctx context.Context, userID string, balance int64) error {
	err := l.rdb.ZAdd(ctx, leaderboardKey, redis.Z{
		Score:  float64(balance),
		Member: userID,
	}).Err()
	if err != nil {
		return fmt.Errorf("redis: leaderboard set %s: %w", userID, err)
	}
	return nil
}

// Top returns the n highest balances, best first.
func (l *Leaderboard) Top(ctx context.Context, n int) ([]domain.LeaderboardEntry, error) {
	if n <= 0 {
		n = 10
	}
	zs, err := l.rdb.ZRevRangeWithScores(ctx, leaderboardKey, 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: leaderboard top: %w", err)
	}

	out := make([]domain.LeaderboardEntry, 0, len(zs))
	for _, z := range zs {
		id, ok := z.Member.(string)
		if !ok {
			continue
		}
		out = append(out, domain.LeaderboardEntry{
			UserID:  id,
			Balance: int64(z.Score),
		})
	}
	return out, nil
}

// Compile-time interface check.
var _ domain.LeaderboardCache = (*Leaderboard)(nil)
