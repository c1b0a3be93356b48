// Package cache wraps Redis for read-through caching of single records. Every
// call goes through a circuit breaker so a failing Redis degrades to cache
// misses instead of slow requests.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrCacheMiss = errors.New("cache miss")
	ErrCacheDown = errors.New("cache unavailable")
)

type CacheConfig struct {
	Addr         string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	MaxRetries   int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// KeyPrefix namespaces every key written through the cache.
	KeyPrefix string
	Breaker   *CircuitBreakerConfig
}

func DefaultCacheConfig() *CacheConfig {
	return &CacheConfig{
		Addr:         "localhost:6379",
		Password:     "",
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 5,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		KeyPrefix:    "tasktracker:",
		Breaker:      DefaultCircuitBreakerConfig(),
	}
}

type RedisCache struct {
	client  *redis.Client
	prefix  string
	breaker *CircuitBreaker
	metrics *CacheMetrics
}

func NewRedisCache(config *CacheConfig) *RedisCache {
	if config == nil {
		config = DefaultCacheConfig()
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         config.Addr,
		Password:     config.Password,
		DB:           config.DB,
		PoolSize:     config.PoolSize,
		MinIdleConns: config.MinIdleConns,
		MaxRetries:   config.MaxRetries,
		DialTimeout:  config.DialTimeout,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	})

	return &RedisCache{
		client:  rdb,
		prefix:  config.KeyPrefix,
		breaker: NewCircuitBreaker(config.Breaker),
		metrics: NewCacheMetrics(),
	}
}

// Client exposes the underlying connection pool so other Redis users (the job
// queue) share it.
func (r *RedisCache) Client() *redis.Client {
	return r.client
}

func (r *RedisCache) Metrics() *CacheMetrics {
	return r.metrics
}

func (r *RedisCache) Breaker() *CircuitBreaker {
	return r.breaker
}

func (r *RedisCache) key(key string) string {
	return r.prefix + key
}

func (r *RedisCache) execute(fn func() error) error {
	err := r.breaker.Execute(fn)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrCircuitBreakerOpen):
		r.metrics.RecordRejected()
		return fmt.Errorf("%w: %v", ErrCacheDown, err)
	default:
		r.metrics.RecordError()
		return err
	}
}

func (r *RedisCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}

	err = r.execute(func() error {
		return r.client.Set(ctx, r.key(key), data, expiration).Err()
	})
	if err != nil {
		return fmt.Errorf("failed to set cache: %w", err)
	}

	r.metrics.RecordSet()
	return nil
}

func (r *RedisCache) Get(ctx context.Context, key string, dest interface{}) error {
	var data []byte
	miss := false

	err := r.execute(func() error {
		b, err := r.client.Get(ctx, r.key(key)).Bytes()
		if errors.Is(err, redis.Nil) {
			miss = true
			return nil
		}
		data = b
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to get from cache: %w", err)
	}

	if miss {
		r.metrics.RecordMiss()
		return ErrCacheMiss
	}

	if err := json.Unmarshal(data, dest); err != nil {
		r.metrics.RecordError()
		return fmt.Errorf("failed to unmarshal cached data: %w", err)
	}

	r.metrics.RecordHit()
	return nil
}

func (r *RedisCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	prefixed := make([]string, len(keys))
	for i, k := range keys {
		prefixed[i] = r.key(k)
	}

	err := r.execute(func() error {
		return r.client.Del(ctx, prefixed...).Err()
	})
	if err != nil {
		return fmt.Errorf("failed to delete from cache: %w", err)
	}

	r.metrics.RecordDelete(len(keys))
	return nil
}

// DeletePattern removes every key matching pattern. It walks the keyspace
// with SCAN so large databases are not blocked.
func (r *RedisCache) DeletePattern(ctx context.Context, pattern string) error {
	deleted := 0
	err := r.execute(func() error {
		iter := r.client.Scan(ctx, 0, r.key(pattern), 100).Iterator()
		batch := make([]string, 0, 100)
		for iter.Next(ctx) {
			batch = append(batch, iter.Val())
			if len(batch) == cap(batch) {
				if err := r.client.Del(ctx, batch...).Err(); err != nil {
					return err
				}
				deleted += len(batch)
				batch = batch[:0]
			}
		}
		if err := iter.Err(); err != nil {
			return err
		}
		if len(batch) > 0 {
			if err := r.client.Del(ctx, batch...).Err(); err != nil {
				return err
			}
			deleted += len(batch)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete keys for pattern %s: %w", pattern, err)
	}

	r.metrics.RecordDelete(deleted)
	return nil
}

func (r *RedisCache) Exists(ctx context.Context, key string) (bool, error) {
	var n int64
	err := r.execute(func() error {
		var err error
		n, err = r.client.Exists(ctx, r.key(key)).Result()
		return err
	})
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Health pings Redis directly, bypassing the breaker, so readiness reflects
// the real connection state.
func (r *RedisCache) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	return r.client.Ping(ctx).Err()
}

func (r *RedisCache) Stats() map[string]interface{} {
	poolStats := r.client.PoolStats()
	metrics := r.metrics.GetStats()

	return map[string]interface{}{
		"hits":          metrics.Hits,
		"misses":        metrics.Misses,
		"errors":        metrics.Errors,
		"rejected":      metrics.Rejected,
		"sets":          metrics.Sets,
		"deletes":       metrics.Deletes,
		"hit_rate":      r.metrics.HitRate(),
		"breaker":       r.breaker.GetStats(),
		"pool_hits":     poolStats.Hits,
		"pool_misses":   poolStats.Misses,
		"pool_timeouts": poolStats.Timeouts,
		"pool_total":    poolStats.TotalConns,
		"pool_idle":     poolStats.IdleConns,
		"pool_stale":    poolStats.StaleConns,
	}
}

func (r *RedisCache) Close() error {
	return r.client.Close()
}
