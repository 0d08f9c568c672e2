package redis

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"

	"github.com/tahat-market/shop-api/internal/cache"
)

var _ cache.Deleter = (*PageCache)(nil)

// PageCache removes rendered-page entries from Redis. DEL on an absent key is
// a successful no-op, which gives the invalidation coordinator its
// idempotence.
type PageCache struct {
	client *redis.Client
}

// NewPageCache returns a PageCache over the given client.
func NewPageCache(client *redis.Client) *PageCache {
	return &PageCache{client: client}
}

// Delete removes the given cache keys.
func (c *PageCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return errors.Wrap(err, "delete cache keys")
	}
	return nil
}
