package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const cacheKeyPrefix = "toptube:cache:"

// ConnectRedis returns nil when no URL is configured or the server does
// not answer; callers treat a nil client as "caching disabled".
func ConnectRedis(redisURL string, logger zerolog.Logger) *redis.Client {
	if redisURL == "" {
		logger.Info().Msg("redis: no URL configured, caching disabled")
		return nil
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		logger.Warn().Err(err).Msg("redis: invalid URL, caching disabled")
		return nil
	}
	opts.Protocol = 2

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn().Err(err).Msg("redis: connection failed, caching disabled")
		client.Close()
		return nil
	}

	logger.Info().Msg("redis: connected, caching enabled")
	return client
}

// HitRecorder receives cache hit and miss events.
type HitRecorder interface {
	CacheHit(key string)
	CacheMiss(key string)
}

// RedisCache is a cache-aside layer of JSON values. A nil client turns
// every operation into a no-op miss.
type RedisCache struct {
	rdb      *redis.Client
	ttl      time.Duration
	recorder HitRecorder
}

func NewRedisCache(rdb *redis.Client, ttl time.Duration, recorder HitRecorder) *RedisCache {
	return &RedisCache{rdb: rdb, ttl: ttl, recorder: recorder}
}

type Cache interface {
	GetJSON(ctx context.Context, key string, dest any) (bool, error)
	SetJSON(ctx context.Context, key string, value any) error
	InvalidateAll(ctx context.Context) error
}

func (c *RedisCache) GetJSON(ctx context.Context, key string, dest any) (bool, error) {
	if c == nil || c.rdb == nil {
		return false, nil
	}

	data, err := c.rdb.Get(ctx, cacheKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		c.miss(key)
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cache get %s: %w", key, err)
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("cache decode %s: %w", key, err)
	}
	if c.recorder != nil {
		c.recorder.CacheHit(key)
	}
	return true, nil
}

func (c *RedisCache) miss(key string) {
	if c.recorder != nil {
		c.recorder.CacheMiss(key)
	}
}

func (c *RedisCache) SetJSON(ctx context.Context, key string, value any) error {
	if c == nil || c.rdb == nil {
		return nil
	}

	b, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache encode %s: %w", key, err)
	}
	return c.rdb.Set(ctx, cacheKeyPrefix+key, b, c.ttl).Err()
}

// InvalidateAll drops every cached value after the underlying data changed.
func (c *RedisCache) InvalidateAll(ctx context.Context) error {
	if c == nil || c.rdb == nil {
		return nil
	}

	iter := c.rdb.Scan(ctx, 0, cacheKeyPrefix+"*", 200).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("cache scan: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	return c.rdb.Del(ctx, keys...).Err()
}
