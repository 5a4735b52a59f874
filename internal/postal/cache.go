package postal

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "postal:"

// Cache stores resolved places as JSON in Redis.
type Cache struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewCache constructs a cache. A nil client disables caching.
func NewCache(client redis.Cmdable, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

// Get loads the place cached for zip. It reports whether the key existed.
func (c *Cache) Get(ctx context.Context, zip string) (Place, bool, error) {
	var p Place
	if c == nil || c.client == nil || zip == "" {
		return p, false, nil
	}
	data, err := c.client.Get(ctx, keyPrefix+zip).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return p, false, nil
		}
		return p, false, err
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return p, false, err
	}
	return p, true, nil
}

// Set stores p under its zip with the configured TTL.
func (c *Cache) Set(ctx context.Context, p Place) error {
	if c == nil || c.client == nil || p.Zip == "" {
		return nil
	}
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, keyPrefix+p.Zip, data, c.ttl).Err()
}
