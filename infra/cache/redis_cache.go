package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/amirasaad/usdledger/pkg/cache"
	"github.com/amirasaad/usdledger/pkg/config"
	"github.com/redis/go-redis/v9"
)

// RedisCache shares idempotent responses between API instances.
type RedisCache struct {
	client *redis.Client
	prefix string
	logger *slog.Logger
}

// NewRedisCache connects to cfg.URL and pings it.
func NewRedisCache(ctx context.Context, cfg *config.Redis, logger *slog.Logger) (*RedisCache, error) {
	opt, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if cfg.PoolSize > 0 {
		opt.PoolSize = cfg.PoolSize
	}
	opt.DialTimeout = cfg.DialTimeout
	opt.ReadTimeout = cfg.ReadTimeout
	opt.WriteTimeout = cfg.WriteTimeout

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewRedisCacheWithClient(client, cfg.KeyPrefix+"idempotency:", logger), nil
}

func NewRedisCacheWithClient(client *redis.Client, prefix string, logger *slog.Logger) *RedisCache {
	return &RedisCache{client: client, prefix: prefix, logger: logger}
}

func (r *RedisCache) key(key string) string {
	return r.prefix + key
}

func (r *RedisCache) Get(ctx context.Context, key string) (*cache.Response, error) {
	val, err := r.client.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		r.logger.Debug("Redis cache miss", "key", key)
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Redis cache get error", "key", key, "error", err)
		return nil, err
	}
	var resp cache.Response
	if err := json.Unmarshal(val, &resp); err != nil {
		r.logger.Error("Redis cache unmarshal error", "key", key, "error", err)
		return nil, err
	}
	r.logger.Debug("Redis cache hit", "key", key, "status", resp.Status)
	return &resp, nil
}

func (r *RedisCache) Set(ctx context.Context, key string, resp *cache.Response, ttl time.Duration) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, r.key(key), data, ttl).Err(); err != nil {
		r.logger.Error("Redis cache set error", "key", key, "error", err)
		return err
	}
	r.logger.Debug("Redis cache set", "key", key, "ttl", ttl)
	return nil
}

func (r *RedisCache) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.key(key)).Err(); err != nil {
		r.logger.Error("Redis cache delete error", "key", key, "error", err)
		return err
	}
	return nil
}

func (r *RedisCache) Close() error {
	return r.client.Close()
}

var _ cache.ResponseCache = (*RedisCache)(nil)
