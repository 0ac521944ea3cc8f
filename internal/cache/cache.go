// Package cache is the read-through, invalidate-after-commit cache used by the
// catalog and order services. Cache failures never fail a request: reads fall
// back to the store and invalidation failures are logged and counted, leaving
// the entry to expire by TTL.
package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	pkgredis "github.com/angelmondragon/storefront-backend/pkg/redis"
)

// Store is the key/value surface the cache needs. *redis.Client implements
// it; Get must return the go-redis Nil sentinel on a miss.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	DeleteByPattern(ctx context.Context, pattern string) (int64, error)
}

type Options struct {
	Store  Store
	Prefix string
	Config config.CacheConfig
	// PatternAttempts is how many times a failed family delete is tried.
	PatternAttempts int
	Metrics         *metrics.CacheMetrics
	Logger          *logger.Logger
}

type Cache struct {
	store           Store
	prefix          string
	enabled         bool
	policy          Policy
	patternAttempts int
	metrics         *metrics.CacheMetrics
	logg            *logger.Logger
}

// New builds a cache handle. A nil Store or Config.Enabled=false yields a
// pass-through cache that always loads from the store.
func New(opts Options) *Cache {
	prefix := opts.Prefix
	if prefix == "" {
		prefix = "sf:cache"
	}
	attempts := opts.PatternAttempts
	if attempts <= 0 {
		attempts = 2
	}
	return &Cache{
		store:           opts.Store,
		prefix:          prefix,
		enabled:         opts.Store != nil && opts.Config.Enabled,
		policy:          NewPolicy(opts.Config),
		patternAttempts: attempts,
		metrics:         opts.Metrics,
		logg:            opts.Logger,
	}
}

// Disabled returns a pass-through cache, used where no redis is configured.
func Disabled() *Cache {
	return New(Options{})
}

func (c *Cache) Enabled() bool {
	return c != nil && c.enabled
}

func (c *Cache) TTL(family Family) time.Duration {
	return c.policy.TTL(family)
}

func (c *Cache) fullKey(k Key) string {
	return c.prefix + ":" + k.String()
}

// familyPattern matches every key in family and nothing in a family that
// merely shares a textual prefix (product vs products:list).
func (c *Cache) familyPattern(f Family) string {
	return c.prefix + ":" + string(f) + ":*"
}

// ReadThrough returns the cached value for key or calls load, caches the
// result with the family TTL and returns it. Concurrent misses both load and
// the last write wins. Load errors are returned and never cached.
func ReadThrough[T any](ctx context.Context, c *Cache, key Key, load func(context.Context) (T, error)) (T, error) {
	if !c.Enabled() {
		return load(ctx)
	}

	full := c.fullKey(key)
	label := key.Family.Label()

	raw, err := c.store.Get(ctx, full)
	switch {
	case err == nil:
		var cached T
		decodeErr := json.Unmarshal([]byte(raw), &cached)
		if decodeErr == nil {
			c.metrics.Hit(label)
			return cached, nil
		}
		c.warn(ctx, key, "decode", decodeErr)
	case pkgredis.IsNil(err):
		c.metrics.Miss(label)
	default:
		c.warn(ctx, key, "get", err)
	}

	value, err := load(ctx)
	if err != nil {
		return value, err
	}

	payload, err := json.Marshal(value)
	if err != nil {
		c.warn(ctx, key, "encode", err)
		return value, nil
	}
	if err := c.store.Set(ctx, full, payload, c.policy.TTL(key.Family)); err != nil {
		c.warn(ctx, key, "set", err)
	}
	return value, nil
}

func (c *Cache) warn(ctx context.Context, key Key, op string, err error) {
	c.metrics.Error(key.Family.Label(), op)
	if c.logg == nil {
		return
	}
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"cache_family": key.Family.Label(),
		"cache_key":    key.String(),
		"cache_op":     op,
		"error":        err.Error(),
	})
	c.logg.Warn(logCtx, "cache operation failed, falling back to store")
}
