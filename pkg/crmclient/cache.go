package crmclient

import (
	"context"
	"encoding/json"

	"github.com/enrollhq/accessgate/pkg/assignment"
)

const redisKeyPrefix = "accessgate:directory:"

// storeDirectory refreshes both cache tiers after a successful read. Redis
// failures are logged and ignored; the shared tier is best-effort.
func (c *Client) storeDirectory(ctx context.Context, endpoint string, users []assignment.User) {
	c.cache.Add(endpoint, users)

	if c.redis == nil {
		return
	}
	payload, err := json.Marshal(users)
	if err != nil {
		return
	}
	if err := c.redis.Set(ctx, redisKeyPrefix+endpoint, payload, c.redisTTL).Err(); err != nil {
		c.log.WithError(err).Warn("failed to write directory to shared cache")
	}
}

// cachedDirectory serves the fallback copy for a directory read: the
// in-process LRU first, then the shared redis tier. A redis hit backfills
// the LRU.
func (c *Client) cachedDirectory(ctx context.Context, endpoint string) ([]assignment.User, bool) {
	if users, ok := c.cache.Get(endpoint); ok {
		c.countCache(c.metricsHit, "lru")
		return users, true
	}
	c.countCache(c.metricsMiss, "lru")

	if c.redis == nil {
		return nil, false
	}
	payload, err := c.redis.Get(ctx, redisKeyPrefix+endpoint).Bytes()
	if err != nil {
		c.countCache(c.metricsMiss, "redis")
		return nil, false
	}
	var users []assignment.User
	if err := json.Unmarshal(payload, &users); err != nil {
		c.countCache(c.metricsMiss, "redis")
		return nil, false
	}
	c.countCache(c.metricsHit, "redis")
	c.cache.Add(endpoint, users)
	return users, true
}

func (c *Client) metricsHit(tier string) {
	c.metrics.CacheHitsTotal.WithLabelValues(tier).Inc()
}

func (c *Client) metricsMiss(tier string) {
	c.metrics.CacheMissesTotal.WithLabelValues(tier).Inc()
}

func (c *Client) countCache(count func(string), tier string) {
	if c.metrics != nil {
		count(tier)
	}
}
