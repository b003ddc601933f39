package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLookupCache stores small string lists (distinct equipment values) as JSON.
type RedisLookupCache struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
}

// NewRedisLookupCache stores entries under prefix + "lookup:"; a zero ttl keeps
// entries until invalidated.
func NewRedisLookupCache(client redis.Cmdable, prefix string, ttl time.Duration) *RedisLookupCache {
	return &RedisLookupCache{client: client, prefix: prefix + "lookup:", ttl: ttl}
}

// GetStrings returns the cached list and whether it was present.
func (c *RedisLookupCache) GetStrings(ctx context.Context, key string) ([]string, bool, error) {
	raw, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var values []string
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil, false, err
	}
	return values, true, nil
}

func (c *RedisLookupCache) SetStrings(ctx context.Context, key string, values []string) error {
	raw, err := json.Marshal(values)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.prefix+key, raw, c.ttl).Err()
}

func (c *RedisLookupCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, key := range keys {
		full[i] = c.prefix + key
	}
	return c.client.Del(ctx, full...).Err()
}
