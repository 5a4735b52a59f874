package tagging

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRecordTTL = 30 * 24 * time.Hour

// TagRecord remembers the tag bought for an order until the store holds its
// tracking code, so a retried trigger reuses the tag instead of buying another.
type TagRecord interface {
	Bought(ctx context.Context, key string) (tagID string, ok bool, err error)
	Remember(ctx context.Context, key, tagID string) error
}

// RedisTagRecord keeps bought tag ids in Redis.
type RedisTagRecord struct {
	R   redis.Cmdable
	TTL time.Duration
}

func (r RedisTagRecord) Bought(ctx context.Context, key string) (string, bool, error) {
	id, err := r.R.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return id, true, nil
}

// Remember keeps the first id stored for key.
func (r RedisTagRecord) Remember(ctx context.Context, key, tagID string) error {
	ttl := r.TTL
	if ttl <= 0 {
		ttl = defaultRecordTTL
	}
	return r.R.SetNX(ctx, key, tagID, ttl).Err()
}
