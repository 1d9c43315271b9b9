package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/danielokoye/vestpool/internal/domain"
)

// unlockLua releases a lock only when the stored token matches the holder's.
// A settlement run whose lock TTL lapsed must not delete the lock a newer
// run has since acquired.
const unlockLua = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('DEL', KEYS[1])
end
return 0
`

// LockManager keeps concurrent settlement runs from paying the same matured
// investment twice. Locks are SETNX keys with a TTL so a crashed holder
// cannot wedge the scheduler, and release is token-checked so an expired
// holder cannot release its successor's lock.
type LockManager struct {
	rdb      *redis.Client
	unlockSc *redis.Script
}

// NewLockManager builds a LockManager on the shared client.
func NewLockManager(c *Client) *LockManager {
	return &LockManager{
		rdb:      c.Underlying(),
		unlockSc: redis.NewScript(unlockLua),
	}
}

func lockKey(key string) string {
	return "lock:" + key
}

// Acquire takes the lock for key or returns domain.ErrLockHeld when another
// holder owns it. The returned release function is idempotent.
func (lm *LockManager) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	token := uuid.New().String()
	lk := lockKey(key)

	ok, err := lm.rdb.SetNX(ctx, lk, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, domain.ErrLockHeld
	}

	release := sync.OnceFunc(func() {
		// The caller's context is usually done by release time; give the
		// DEL its own deadline so the lock does not linger until the TTL.
		unlockCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		_ = lm.unlockSc.Run(unlockCtx, lm.rdb, []string{lk}, token).Err()
	})
	return release, nil
}

var _ domain.LockManager = (*LockManager)(nil)
