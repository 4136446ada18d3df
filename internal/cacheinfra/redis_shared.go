package cacheinfra

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"
)

// RedisShared adapts a redis client to the shared-tier contract. Every
// operation runs under its own deadline, separate from whatever deadline
// the surrounding storage call carries: a slow cache must never make a
// call slower than skipping the cache entirely.
type RedisShared struct {
	r       redis.Cmdable
	prefix  string
	timeout time.Duration
}

// NewRedisShared wraps the client. prefix, when non-empty, namespaces every
// key; timeout bounds each cache operation.
func NewRedisShared(r redis.Cmdable, prefix string, timeout time.Duration) *RedisShared {
	if timeout <= 0 {
		timeout = 3000 * time.Millisecond
	}
	return &RedisShared{r: r, prefix: prefix, timeout: timeout}
}

func (c *RedisShared) namespaced(key string) string {
	if c.prefix == "" {
		return key
	}
	return c.prefix + ":" + key
}

func (c *RedisShared) bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.timeout)
}

// Get fetches one value. redis.Nil maps to a plain miss.
func (c *RedisShared) Get(ctx context.Context, key string) ([]byte, bool, error) {
	ctx, cancel := c.bounded(ctx)
	defer cancel()
	val, err := c.r.Get(ctx, c.namespaced(key)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(err, "redis get")
	}
	return val, true, nil
}

// GetAll fetches a batch; missing keys are absent from the result.
func (c *RedisShared) GetAll(ctx context.Context, keys []string) (map[string][]byte, error) {
	if len(keys) == 0 {
		return map[string][]byte{}, nil
	}
	ctx, cancel := c.bounded(ctx)
	defer cancel()

	namespaced := make([]string, len(keys))
	for i, key := range keys {
		namespaced[i] = c.namespaced(key)
	}
	vals, err := c.r.MGet(ctx, namespaced...).Result()
	if err != nil {
		return nil, errors.Wrap(err, "redis mget")
	}
	result := make(map[string][]byte, len(keys))
	for i, val := range vals {
		if val == nil {
			continue
		}
		if s, ok := val.(string); ok {
			result[keys[i]] = []byte(s)
		}
	}
	return result, nil
}

// Put stores one value with the given expiration.
func (c *RedisShared) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	ctx, cancel := c.bounded(ctx)
	defer cancel()
	return errors.Wrap(c.r.Set(ctx, c.namespaced(key), value, ttl).Err(), "redis set")
}

// PutAll stores a batch in one pipelined round trip so chunked values and
// their index record land together.
func (c *RedisShared) PutAll(ctx context.Context, values map[string][]byte, ttl time.Duration) error {
	if len(values) == 0 {
		return nil
	}
	ctx, cancel := c.bounded(ctx)
	defer cancel()

	pipe := c.r.Pipeline()
	for key, val := range values {
		pipe.Set(ctx, c.namespaced(key), val, ttl)
	}
	_, err := pipe.Exec(ctx)
	return errors.Wrap(err, "redis pipelined set")
}

// Delete removes the given keys.
func (c *RedisShared) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	ctx, cancel := c.bounded(ctx)
	defer cancel()

	namespaced := make([]string, len(keys))
	for i, key := range keys {
		namespaced[i] = c.namespaced(key)
	}
	return errors.Wrap(c.r.Del(ctx, namespaced...).Err(), "redis del")
}

// Contains reports whether the key exists.
func (c *RedisShared) Contains(ctx context.Context, key string) (bool, error) {
	ctx, cancel := c.bounded(ctx)
	defer cancel()
	n, err := c.r.Exists(ctx, c.namespaced(key)).Result()
	if err != nil {
		return false, errors.Wrap(err, "redis exists")
	}
	return n > 0, nil
}

// Clear removes every key under the prefix (or flushes the database when
// no prefix is set).
func (c *RedisShared) Clear(ctx context.Context) error {
	ctx, cancel := c.bounded(ctx)
	defer cancel()

	if c.prefix == "" {
		return errors.Wrap(c.r.FlushDB(ctx).Err(), "redis flushdb")
	}
	iter := c.r.Scan(ctx, 0, c.prefix+":*", 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return errors.Wrap(err, "redis scan")
	}
	if len(keys) == 0 {
		return nil
	}
	return errors.Wrap(c.r.Del(ctx, keys...).Err(), "redis del")
}
