package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/oddsrow/oddsrow/internal/domain"
)

const (
	lockPrefix         = "lock:"
	lockReleaseTimeout = 5 * time.Second
)

// releaseScript deletes a lock key only while it still holds the owner's
// token, so a holder whose TTL already expired cannot delete a lock that
// was since re-acquired by someone else.
var releaseScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('DEL', KEYS[1])
end
return 0
`)

// LockManager implements domain.LockManager with SETNX-style locks. Each
// lock carries a random token and expires after its TTL, so a crashed
// holder cannot wedge the system.
type LockManager struct {
	rdb *redis.Client
}

// NewLockManager creates a LockManager backed by the given Client.
func NewLockManager(c *Client) *LockManager {
	return &LockManager{rdb: c.Underlying()}
}

// Acquire takes the lock named by key for at most ttl. It returns
// domain.ErrLockHeld when another holder owns the lock, and otherwise a
// release function that is idempotent and works even after the caller's
// context is cancelled.
func (lm *LockManager) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	h := &lockHolder{
		rdb:   lm.rdb,
		key:   lockPrefix + key,
		token: uuid.New().String(),
	}

	ok, err := lm.rdb.SetNX(ctx, h.key, h.token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, domain.ErrLockHeld
	}
	return h.release, nil
}

type lockHolder struct {
	rdb   *redis.Client
	key   string
	token string
	once  sync.Once
}

func (h *lockHolder) release() {
	h.once.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), lockReleaseTimeout)
		defer cancel()
		_ = releaseScript.Run(ctx, h.rdb, []string{h.key}, h.token).Err()
	})
}

var _ domain.LockManager = (*LockManager)(nil)
