// Package cache holds the console's query cache. Entries live in a scope (one
// console session) and a group (one resource cache key); invalidation drops a
// whole group at once.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Cache interface {
	// Get reports a miss with ok=false and a nil error.
	Get(ctx context.Context, scope, group, key string) (value []byte, ok bool, err error)
	// Version identifies the group's current contents. Take it before
	// fetching what will be stored.
	Version(ctx context.Context, scope, group string) (int64, error)
	// Set stores value unless the group was invalidated or purged since
	// version was taken; such a write is dropped silently.
	Set(ctx context.Context, scope, group, key string, version int64, value []byte) error
	// Invalidate drops every entry of group in scope.
	Invalidate(ctx context.Context, scope, group string) error
	// Purge drops everything in scope.
	Purge(ctx context.Context, scope string) error
}

// Open builds the cache selected by driver.
func Open(ctx context.Context, driver string, ttl time.Duration, opts *redis.Options, logger *zap.Logger) (Cache, error) {
	switch driver {
	case "", "memory":
		return NewMemory(ttl), nil
	case "redis":
		rc := redis.NewClient(opts)
		if err := rc.Ping(ctx).Err(); err != nil {
			rc.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		logger.Info("Query cache connected to redis", zap.String("addr", opts.Addr))
		return NewRedis(rc, ttl), nil
	default:
		return nil, fmt.Errorf("unsupported cache driver %q", driver)
	}
}
