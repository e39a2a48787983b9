package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"vidshare/internal/domain"
	"vidshare/internal/metrics"
	"vidshare/internal/pipeline"
	"vidshare/pkg/logger"
)

// ExistenceCache answers precondition lookups with the CACHE-ASIDE PATTERN:
// 1. Check Redis first
// 2. On a miss, ask the store
// 3. Remember positive answers for ttl
//
// Only "exists" is cached. A negative answer is never stored, so a resource
// created right after a 404 is visible immediately. Deletes must call
// Invalidate.
type ExistenceCache struct {
	client Client
	next   pipeline.Lookup
	ttl    time.Duration
	logger *logger.Logger
}

// Client is the subset of redis.Cmdable the cache uses.
type Client interface {
	Exists(ctx context.Context, keys ...string) *redis.IntCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

var _ pipeline.Lookup = (*ExistenceCache)(nil)

func NewExistenceCache(client Client, next pipeline.Lookup, ttl time.Duration, log *logger.Logger) *ExistenceCache {
	return &ExistenceCache{client: client, next: next, ttl: ttl, logger: log}
}

// Key naming convention: "exists:{collection}:{id}"
func existsKey(coll domain.Collection, id string) string {
	return fmt.Sprintf("exists:%s:%s", coll, id)
}

// Exists never fails because of Redis; a broken cache degrades to the store.
func (c *ExistenceCache) Exists(ctx context.Context, coll domain.Collection, id string) (bool, error) {
	key := existsKey(coll, id)

	start := time.Now()
	n, err := c.client.Exists(ctx, key).Result()
	metrics.CacheOperationDuration.WithLabelValues("get").Observe(time.Since(start).Seconds())
	switch {
	case err != nil:
		c.logger.WithContext(ctx).Warn("existence cache read failed", "key", key, "error", err)
	case n > 0:
		metrics.RecordCacheHit()
		return true, nil
	default:
		metrics.RecordCacheMiss()
	}

	ok, err := c.next.Exists(ctx, coll, id)
	if err != nil || !ok {
		return ok, err
	}

	start = time.Now()
	if err := c.client.Set(ctx, key, 1, c.ttl).Err(); err != nil {
		c.logger.WithContext(ctx).Warn("existence cache write failed", "key", key, "error", err)
	}
	metrics.CacheOperationDuration.WithLabelValues("set").Observe(time.Since(start).Seconds())
	return true, nil
}

// Invalidate forgets a resource. Used when it is deleted.
func (c *ExistenceCache) Invalidate(ctx context.Context, coll domain.Collection, id string) error {
	start := time.Now()
	defer func() {
		metrics.CacheOperationDuration.WithLabelValues("delete").Observe(time.Since(start).Seconds())
	}()

	if err := c.client.Del(ctx, existsKey(coll, id)).Err(); err != nil {
		return fmt.Errorf("redis delete error: %w", err)
	}
	return nil
}

// InitRedis creates a new Redis client
func InitRedis(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,

		// Connection pool settings
		PoolSize:     10,
		MinIdleConns: 2,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return client, nil
}
