package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisPrefix = "console:cache"

// Redis stores entries under a per-group generation number. Invalidating a
// group bumps the generation, which orphans the old entries until their TTL
// runs out. The generation doubles as the group's version: a write carrying
// an old one lands under keys nobody reads.
type Redis struct {
	rc  *redis.Client
	ttl time.Duration
}

func NewRedis(rc *redis.Client, ttl time.Duration) *Redis {
	return &Redis{rc: rc, ttl: ttl}
}

func (r *Redis) genKey(scope, group string) string {
	return fmt.Sprintf("%s:%s:%s:gen", redisPrefix, scope, group)
}

func (r *Redis) dataKey(scope, group string, gen int64, key string) string {
	return fmt.Sprintf("%s:%s:%s:%d:%s", redisPrefix, scope, group, gen, key)
}

func (r *Redis) generation(ctx context.Context, scope, group string) (int64, error) {
	gen, err := r.rc.Get(ctx, r.genKey(scope, group)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read cache generation: %w", err)
	}
	return gen, nil
}

func (r *Redis) Get(ctx context.Context, scope, group, key string) ([]byte, bool, error) {
	gen, err := r.generation(ctx, scope, group)
	if err != nil {
		return nil, false, err
	}
	value, err := r.rc.Get(ctx, r.dataKey(scope, group, gen, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read cache entry: %w", err)
	}
	return value, true, nil
}

// Version materializes the generation key so a later Purge can move it on.
func (r *Redis) Version(ctx context.Context, scope, group string) (int64, error) {
	if err := r.rc.SetNX(ctx, r.genKey(scope, group), 0, r.ttl).Err(); err != nil {
		return 0, fmt.Errorf("failed to init cache generation: %w", err)
	}
	return r.generation(ctx, scope, group)
}

func (r *Redis) Set(ctx context.Context, scope, group, key string, version int64, value []byte) error {
	// The generation key must outlive every entry written under it.
	_, err := r.rc.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.dataKey(scope, group, version, key), value, r.ttl)
		pipe.Expire(ctx, r.genKey(scope, group), r.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to write cache entry: %w", err)
	}
	return nil
}

func (r *Redis) Invalidate(ctx context.Context, scope, group string) error {
	_, err := r.rc.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, r.genKey(scope, group))
		pipe.Expire(ctx, r.genKey(scope, group), r.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to invalidate cache group: %w", err)
	}
	return nil
}

func (r *Redis) Purge(ctx context.Context, scope string) error {
	iter := r.rc.Scan(ctx, 0, fmt.Sprintf("%s:%s:*", redisPrefix, scope), 100).Iterator()
	var data, gens []string
	for iter.Next(ctx) {
		if key := iter.Val(); strings.HasSuffix(key, ":gen") {
			gens = append(gens, key)
		} else {
			data = append(data, key)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan cache scope: %w", err)
	}
	if len(data) == 0 && len(gens) == 0 {
		return nil
	}
	// Generations move on rather than reset, so versions taken before the
	// purge stay stale.
	_, err := r.rc.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if len(data) > 0 {
			pipe.Del(ctx, data...)
		}
		for _, key := range gens {
			pipe.Incr(ctx, key)
			pipe.Expire(ctx, key, r.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to purge cache scope: %w", err)
	}
	return nil
}
