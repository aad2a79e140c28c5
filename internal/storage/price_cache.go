package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"

	apperrors "github.com/portfolio-risk/internal/errors"
	"github.com/portfolio-risk/internal/models"
)

const priceKeyPrefix = "price"

// PriceCache stores msgpack-encoded quotes in Redis.
// Keys look like price:<namespace>:<key>.
type PriceCache struct {
	redis *RedisCache
}

// NewPriceCache creates a price cache on top of a Redis connection
func NewPriceCache(redis *RedisCache) *PriceCache {
	return &PriceCache{redis: redis}
}

func priceKey(namespace, key string) string {
	return strings.Join([]string{priceKeyPrefix, strings.ToLower(namespace), strings.ToLower(key)}, ":")
}

// GetQuotes returns the cached quotes among keys. Missing or undecodable
// entries are simply absent from the result.
func (c *PriceCache) GetQuotes(ctx context.Context, namespace string, keys []string) (map[string]models.PriceQuote, error) {
	out := make(map[string]models.PriceQuote, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	redisKeys := make([]string, len(keys))
	for i, k := range keys {
		redisKeys[i] = priceKey(namespace, k)
	}

	values, err := c.redis.Client().MGet(ctx, redisKeys...).Result()
	if err != nil {
		return nil, apperrors.NewCacheError("read prices", err)
	}

	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			continue
		}
		var q models.PriceQuote
		if err := msgpack.Unmarshal([]byte(s), &q); err != nil {
			continue
		}
		out[keys[i]] = q
	}
	return out, nil
}

// SetQuotes writes quotes with a shared TTL in one pipeline
func (c *PriceCache) SetQuotes(ctx context.Context, namespace string, quotes map[string]models.PriceQuote, ttl time.Duration) error {
	if len(quotes) == 0 {
		return nil
	}

	_, err := c.redis.Client().Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for k, q := range quotes {
			data, err := msgpack.Marshal(&q)
			if err != nil {
				return fmt.Errorf("failed to encode quote %s: %w", k, err)
			}
			pipe.Set(ctx, priceKey(namespace, k), data, ttl)
		}
		return nil
	})
	if err != nil {
		return apperrors.NewCacheError("write prices", err)
	}
	return nil
}
