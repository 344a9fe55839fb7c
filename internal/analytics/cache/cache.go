// Package cache memoizes computed analytics views in Redis. The cache is
// strictly best-effort: a miss, a marshalling problem, or a Redis outage all
// fall through to recomputation and never fail the request.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const keyPrefix = "analytics:"

// Default TTLs per view. The heavier the computation, the longer it lives.
const (
	TTLOrdersReport   = 5 * time.Minute
	TTLDemandForecast = time.Hour
	TTLSeasonalTrends = 24 * time.Hour
	TTLFarmerReport   = 15 * time.Minute
)

// ResultCache stores JSON-encoded analytics results under prefixed keys.
// A nil client disables caching entirely.
type ResultCache struct {
	client *redis.Client
	logger *zap.Logger
}

func New(client *redis.Client, log *zap.Logger) *ResultCache {
	if log == nil {
		log = zap.NewNop()
	}
	return &ResultCache{client: client, logger: log}
}

// Get loads a cached result into dest. Returns false on miss or any failure.
func (c *ResultCache) Get(ctx context.Context, key string, dest any) bool {
	if c == nil || c.client == nil {
		return false
	}
	raw, err := c.client.Get(ctx, keyPrefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("analytics cache read failed", zap.String("key", key), zap.Error(err))
		}
		return false
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		c.logger.Warn("analytics cache entry corrupt", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

// Set stores a result with the given TTL, best effort.
func (c *ResultCache) Set(ctx context.Context, key string, value any, ttl time.Duration) {
	if c == nil || c.client == nil {
		return
	}
	raw, err := json.Marshal(value)
	if err != nil {
		c.logger.Warn("analytics cache marshal failed", zap.String("key", key), zap.Error(err))
		return
	}
	if err := c.client.Set(ctx, keyPrefix+key, raw, ttl).Err(); err != nil {
		c.logger.Warn("analytics cache write failed", zap.String("key", key), zap.Error(err))
	}
}
