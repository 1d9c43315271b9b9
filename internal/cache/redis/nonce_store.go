package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/danielokoye/vestpool/internal/domain"
)

// NonceStore implements domain.NonceStore on Redis keys with a TTL. Nonces
// expire on their own; no cleanup pass is needed.
type NonceStore struct {
	rdb *redis.Client
}

// NewNonceStore creates a NonceStore backed by the given Client.
func NewNonceStore(c *Client) *NonceStore {
	return &NonceStore{rdb: c.Underlying()}
}

func nonceKey(nonce string) string {
	return "nonce:" + nonce
}

// Seen atomically records the nonce with the given TTL and reports whether it
// was already present. SETNX keeps the first writer's expiry; replays within
// the window observe the existing key.
func (ns *NonceStore) Seen(ctx context.Context, nonce string, ttl time.Duration) (bool, error) {
	set, err := ns.rdb.SetNX(ctx, nonceKey(nonce), 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis: nonce seen %s: %w", nonce, err)
	}
	return !set, nil
}

// Compile-time interface check.
var _ domain.NonceStore = (*NonceStore)(nil)
