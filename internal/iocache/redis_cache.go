package iocache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/huangsam/ers/internal/contract"
	"github.com/huangsam/ers/schema"
)

// redisKeyPrefix namespaces score entries inside a shared Redis database.
const redisKeyPrefix = "ers:score:"

const (
	redisFieldValue     = "value"
	redisFieldVersion   = "version"
	redisFieldTimestamp = "ts"
)

// RedisScoreCache stores each score entry as a Redis hash.
type RedisScoreCache struct {
	rdb *redis.Client
	ttl time.Duration
}

var _ contract.ScoreCache = &RedisScoreCache{} // Compile-time check

// NewRedisScoreCache connects to the Redis server named by a redis:// URL.
// A zero ttl keeps entries until they are overwritten or cleared.
func NewRedisScoreCache(connStr string, ttl time.Duration) (*RedisScoreCache, error) {
	opts, err := redis.ParseURL(connStr)
	if err != nil {
		return nil, fmt.Errorf("invalid redis connection string: %w", err)
	}
	if opts.DialTimeout == 0 {
		opts.DialTimeout = 5 * time.Second
	}
	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisScoreCache{rdb: rdb, ttl: ttl}, nil
}

func redisKey(key string) string { return redisKeyPrefix + key }

// Get implements the ScoreCache interface.
func (c *RedisScoreCache) Get(ctx context.Context, key string) ([]byte, int, int64, error) {
	vals, err := c.rdb.HMGet(ctx, redisKey(key), redisFieldValue, redisFieldVersion, redisFieldTimestamp).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, 0, 0, schema.ErrCacheMiss
		}
		return nil, 0, 0, err
	}
	if len(vals) != 3 || vals[0] == nil {
		return nil, 0, 0, schema.ErrCacheMiss
	}
	value, _ := vals[0].(string)
	version, err := strconv.Atoi(fmt.Sprint(vals[1]))
	if err != nil {
		return nil, 0, 0, fmt.Errorf("corrupt cache version for %s: %w", key, err)
	}
	ts, err := strconv.ParseInt(fmt.Sprint(vals[2]), 10, 64)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("corrupt cache timestamp for %s: %w", key, err)
	}
	return []byte(value), version, ts, nil
}

// Set implements the ScoreCache interface.
func (c *RedisScoreCache) Set(ctx context.Context, key string, value []byte, version int, timestamp int64) error {
	k := redisKey(key)
	pipe := c.rdb.TxPipeline()
	pipe.HSet(ctx, k, redisFieldValue, value, redisFieldVersion, version, redisFieldTimestamp, timestamp)
	if c.ttl > 0 {
		pipe.Expire(ctx, k, c.ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// Delete implements the ScoreCache interface.
func (c *RedisScoreCache) Delete(ctx context.Context, key string) error {
	return c.rdb.Del(ctx, redisKey(key)).Err()
}

// scanKeys visits every score key in batches.
func (c *RedisScoreCache) scanKeys(ctx context.Context, visit func(keys []string) error) error {
	var cursor uint64
	for {
		keys, next, err := c.rdb.Scan(ctx, cursor, redisKeyPrefix+"*", 500).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := visit(keys); err != nil {
				return err
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

// Clear removes every score key. Other keys in the database are untouched.
func (c *RedisScoreCache) Clear(ctx context.Context) error {
	return c.scanKeys(ctx, func(keys []string) error {
		return c.rdb.Del(ctx, keys...).Err()
	})
}

// GetStatus implements the ScoreCache interface.
func (c *RedisScoreCache) GetStatus(ctx context.Context) (schema.CacheStatus, error) {
	status := schema.CacheStatus{Backend: string(schema.RedisBackend)}
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return status, nil
	}
	status.Connected = true

	var newest, oldest int64
	err := c.scanKeys(ctx, func(keys []string) error {
		pipe := c.rdb.Pipeline()
		tsCmds := make([]*redis.StringCmd, len(keys))
		lenCmds := make([]*redis.IntCmd, len(keys))
		for i, k := range keys {
			tsCmds[i] = pipe.HGet(ctx, k, redisFieldTimestamp)
			lenCmds[i] = pipe.HStrLen(ctx, k, redisFieldValue)
		}
		if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		for i := range keys {
			ts, err := tsCmds[i].Int64()
			if err != nil {
				continue
			}
			status.TotalEntries++
			status.TableSizeBytes += lenCmds[i].Val()
			if newest == 0 || ts > newest {
				newest = ts
			}
			if oldest == 0 || ts < oldest {
				oldest = ts
			}
		}
		return nil
	})
	if err != nil {
		return status, fmt.Errorf("failed to scan cache keys: %w", err)
	}
	if status.TotalEntries > 0 {
		status.LastEntryTime = time.Unix(newest, 0)
		status.OldestEntryTime = time.Unix(oldest, 0)
	}
	return status, nil
}

// Close implements the ScoreCache interface.
func (c *RedisScoreCache) Close() error {
	return c.rdb.Close()
}
