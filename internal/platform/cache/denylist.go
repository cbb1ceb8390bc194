package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// TokenDenylist holds the jti claims of logged-out session tokens until they
// would have expired anyway.
type TokenDenylist struct {
	rdb *redis.Client
}

func NewTokenDenylist(rdb *redis.Client) *TokenDenylist {
	return &TokenDenylist{rdb: rdb}
}

func (d *TokenDenylist) Revoke(ctx context.Context, jti string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil // already expired, nothing to revoke
	}
	return d.rdb.Set(ctx, "denylist:"+jti, "1", ttl).Err()
}

func (d *TokenDenylist) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := d.rdb.Exists(ctx, "denylist:"+jti).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
