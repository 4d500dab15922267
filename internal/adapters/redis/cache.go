package redisad

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"kuex/internal/adapters/observability"
)

// Cache wraps one shared go-redis client, constructed at process start and
// reused for the process lifetime.
type Cache struct{ c *redis.Client }

func New(addr, pass string, db int) *Cache {
	return &Cache{c: redis.NewClient(&redis.Options{Addr: addr, Password: pass, DB: db})}
}

// NewFromClient wires an existing client; tests use this with miniredis.
func NewFromClient(c *redis.Client) *Cache { return &Cache{c: c} }

func (r *Cache) Get(ctx context.Context, key string, dst any) (bool, error) {
	v, err := r.c.Get(ctx, key).Bytes()
	if err == redis.Nil {
		observability.ObserveCache("redis", "miss")
		return false, nil
	}
	if err != nil {
		return false, err
	}
	observability.ObserveCache("redis", "hit")
	return true, json.Unmarshal(v, dst)
}

func (r *Cache) Set(ctx context.Context, key string, v any, ttl time.Duration) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	observability.ObserveCache("redis", "set")
	return r.c.Set(ctx, key, b, ttl).Err()
}

func (r *Cache) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	observability.ObserveCache("redis", "del")
	return r.c.Del(ctx, keys...).Err()
}

// DelPattern removes every key matching pattern except those in keep, using
// SCAN rather than KEYS so the sweep doesn't block the server.
func (r *Cache) DelPattern(ctx context.Context, pattern string, keep ...string) (int, error) {
	keepSet := make(map[string]struct{}, len(keep))
	for _, k := range keep {
		keepSet[k] = struct{}{}
	}

	var (
		cursor  uint64
		deleted int
	)
	for {
		keys, next, err := r.c.Scan(ctx, cursor, pattern, 200).Result()
		if err != nil {
			return deleted, err
		}
		batch := make([]string, 0, len(keys))
		for _, k := range keys {
			if _, skip := keepSet[k]; !skip {
				batch = append(batch, k)
			}
		}
		if len(batch) > 0 {
			if err := r.c.Del(ctx, batch...).Err(); err != nil {
				return deleted, err
			}
			deleted += len(batch)
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	if deleted > 0 {
		observability.ObserveCache("redis", "del")
	}
	return deleted, nil
}

func (r *Cache) SAdd(ctx context.Context, key string, ttl time.Duration, members ...string) error {
	if len(members) == 0 {
		return nil
	}
	args := make([]any, len(members))
	for i, m := range members {
		args[i] = m
	}
	if err := r.c.SAdd(ctx, key, args...).Err(); err != nil {
		return err
	}
	observability.ObserveCache("redis", "set")
	return r.c.Expire(ctx, key, ttl).Err()
}

func (r *Cache) SRem(ctx context.Context, key string, member string) error {
	observability.ObserveCache("redis", "del")
	return r.c.SRem(ctx, key, member).Err()
}

func (r *Cache) SMembers(ctx context.Context, key string) ([]string, error) {
	return r.c.SMembers(ctx, key).Result()
}
