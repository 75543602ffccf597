package catalog

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dukkan/storefront-gateway/internal/domain"
	"github.com/dukkan/storefront-gateway/pkg/logger"
)

// HomepageCache keeps the CMS layout hot for a short TTL so every
// storefront render does not hit the commerce API. Cache failures are
// treated as misses.
type HomepageCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewHomepageCache(client *redis.Client, ttl time.Duration) *HomepageCache {
	return &HomepageCache{client: client, ttl: ttl}
}

const homepageKey = "cache:homepage"

func (c *HomepageCache) Get(ctx context.Context) *domain.Homepage {
	if c.client == nil {
		return nil
	}

	val, err := c.client.Get(ctx, homepageKey).Bytes()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		logger.WarnContext(ctx, "Homepage cache read failed", "error", err)
		return nil
	}

	var homepage domain.Homepage
	if err := json.Unmarshal(val, &homepage); err != nil {
		logger.WarnContext(ctx, "Homepage cache entry corrupt, dropping", "error", err)
		c.client.Del(ctx, homepageKey)
		return nil
	}
	return &homepage
}

func (c *HomepageCache) Set(ctx context.Context, homepage *domain.Homepage) {
	if c.client == nil {
		return
	}

	payload, err := json.Marshal(homepage)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, homepageKey, payload, c.ttl).Err(); err != nil {
		logger.WarnContext(ctx, "Homepage cache write failed", "error", err)
	}
}
