package cache

import (
	"context"
	"errors"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/smallbiznis/railzway-braintree/internal/config"
)

const customerKeyPrefix = "braintree:customer:"

// CustomerIDCache caches the account to gateway customer mapping.
type CustomerIDCache interface {
	Get(ctx context.Context, tenantID, accountID string) (string, bool)
	Set(ctx context.Context, tenantID, accountID, customerID string)
	Delete(ctx context.Context, tenantID, accountID string)
}

type memoryCustomerCache struct {
	items Cache[string, string]
	ttl   time.Duration
}

func NewMemoryCustomerIDCache(ttl time.Duration) CustomerIDCache {
	return &memoryCustomerCache{items: NewTTLCache[string, string](), ttl: ttl}
}

func (c *memoryCustomerCache) Get(_ context.Context, tenantID, accountID string) (string, bool) {
	return c.items.Get(cacheKey(tenantID, accountID))
}

func (c *memoryCustomerCache) Set(_ context.Context, tenantID, accountID, customerID string) {
	c.items.Set(cacheKey(tenantID, accountID), customerID, c.ttl)
}

func (c *memoryCustomerCache) Delete(_ context.Context, tenantID, accountID string) {
	c.items.Delete(cacheKey(tenantID, accountID))
}

type redisCustomerCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCustomerIDCache(client *redis.Client, ttl time.Duration) CustomerIDCache {
	return &redisCustomerCache{client: client, ttl: ttl}
}

// Get treats redis failures as misses so the store stays authoritative.
func (c *redisCustomerCache) Get(ctx context.Context, tenantID, accountID string) (string, bool) {
	value, err := c.client.Get(ctx, customerKeyPrefix+cacheKey(tenantID, accountID)).Result()
	if errors.Is(err, redis.Nil) || err != nil {
		return "", false
	}
	return value, true
}

func (c *redisCustomerCache) Set(ctx context.Context, tenantID, accountID, customerID string) {
	_ = c.client.Set(ctx, customerKeyPrefix+cacheKey(tenantID, accountID), customerID, c.ttl).Err()
}

func (c *redisCustomerCache) Delete(ctx context.Context, tenantID, accountID string) {
	_ = c.client.Del(ctx, customerKeyPrefix+cacheKey(tenantID, accountID)).Err()
}

// NewCustomerIDCache prefers redis when a client is configured.
func NewCustomerIDCache(client *redis.Client, cfg config.Config) CustomerIDCache {
	ttl := cfg.CustomerCacheTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if client != nil {
		return NewRedisCustomerIDCache(client, ttl)
	}
	return NewMemoryCustomerIDCache(ttl)
}

func cacheKey(parts ...string) string {
	values := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		values = append(values, strings.ToLower(trimmed))
	}
	return strings.Join(values, "|")
}
