package auth

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const groupCacheKeyPrefix = "groups:"

// RedisGroupCache caches group memberships in Redis. A cache failure
// is treated as a miss, never as an error, so Redis being down only
// costs extra pool lookups.
type RedisGroupCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisGroupCache creates a new RedisGroupCache
func NewRedisGroupCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) *RedisGroupCache {
	return &RedisGroupCache{
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

// GetGroups returns cached groups for a username, if present
func (c *RedisGroupCache) GetGroups(ctx context.Context, username string) ([]string, bool) {
	raw, err := c.client.Get(ctx, groupCacheKeyPrefix+username).Result()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("group cache read failed", zap.Error(err))
		}
		return nil, false
	}

	var groups []string
	if err := json.Unmarshal([]byte(raw), &groups); err != nil {
		c.logger.Warn("group cache entry malformed", zap.String("username", username))
		return nil, false
	}
	return groups, true
}

// SetGroups caches groups for a username
func (c *RedisGroupCache) SetGroups(ctx context.Context, username string, groups []string) {
	raw, err := json.Marshal(groups)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, groupCacheKeyPrefix+username, raw, c.ttl).Err(); err != nil {
		c.logger.Warn("group cache write failed", zap.Error(err))
	}
}

// Invalidate drops the cached groups for a username
func (c *RedisGroupCache) Invalidate(ctx context.Context, username string) {
	if err := c.client.Del(ctx, groupCacheKeyPrefix+username).Err(); err != nil {
		c.logger.Warn("group cache invalidation failed", zap.Error(err))
	}
}
