package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisConfig holds connection settings for the remote cache tier.
type RedisConfig struct {
	Address    string        `koanf:"address"`
	Password   string        `koanf:"password"`
	Database   int           `koanf:"database"`
	PoolSize   int           `koanf:"pool_size"`
	KeyPrefix  string        `koanf:"key_prefix"`
	DefaultTTL time.Duration `koanf:"default_ttl"`
}

// RedisStore implements Store on a Redis backend. TTL enforcement is
// delegated to Redis itself; counters are kept locally.
type RedisStore struct {
	client     *redis.Client
	keyPrefix  string
	defaultTTL time.Duration
	logger     *slog.Logger

	hits    int64
	misses  int64
	sets    int64
	deletes int64
	errs    int64
}

// NewRedisStore connects to Redis and returns the store. The connection
// is verified lazily; use Ping to check reachability.
func NewRedisStore(cfg RedisConfig, logger *slog.Logger) *RedisStore {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = 5 * time.Minute
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "aia"
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.Database,
		PoolSize: cfg.PoolSize,
	})
	return &RedisStore{
		client:     client,
		keyPrefix:  cfg.KeyPrefix,
		defaultTTL: cfg.DefaultTTL,
		logger:     logger,
	}
}

// NewRedisStoreWithClient wraps an existing client, mainly for tests.
func NewRedisStoreWithClient(client *redis.Client, keyPrefix string, defaultTTL time.Duration, logger *slog.Logger) *RedisStore {
	if logger == nil {
		logger = slog.Default()
	}
	if keyPrefix == "" {
		keyPrefix = "aia"
	}
	if defaultTTL <= 0 {
		defaultTTL = 5 * time.Minute
	}
	return &RedisStore{client: client, keyPrefix: keyPrefix, defaultTTL: defaultTTL, logger: logger}
}

func (s *RedisStore) prefixed(key string) string {
	return s.keyPrefix + ":" + key
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := s.client.Get(ctx, s.prefixed(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		atomic.AddInt64(&s.misses, 1)
		return nil, false, nil
	}
	if err != nil {
		atomic.AddInt64(&s.errs, 1)
		return nil, false, fmt.Errorf("redis get %s: %w", key, err)
	}
	atomic.AddInt64(&s.hits, 1)
	return val, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	if err := s.client.Set(ctx, s.prefixed(key), value, ttl).Err(); err != nil {
		atomic.AddInt64(&s.errs, 1)
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	atomic.AddInt64(&s.sets, 1)
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Del(ctx, s.prefixed(key)).Result()
	if err != nil {
		atomic.AddInt64(&s.errs, 1)
		return false, fmt.Errorf("redis delete %s: %w", key, err)
	}
	if n > 0 {
		atomic.AddInt64(&s.deletes, n)
	}
	return n > 0, nil
}

func (s *RedisStore) Clear(ctx context.Context, pattern string) (int, error) {
	match := s.keyPrefix + ":"
	if pattern == "" {
		match += "*"
	} else {
		match += pattern
	}

	removed := 0
	iter := s.client.Scan(ctx, 0, match, 100).Iterator()
	var batch []string
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) >= 100 {
			n, err := s.client.Del(ctx, batch...).Result()
			if err != nil {
				atomic.AddInt64(&s.errs, 1)
				return removed, fmt.Errorf("redis clear: %w", err)
			}
			removed += int(n)
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		atomic.AddInt64(&s.errs, 1)
		return removed, fmt.Errorf("redis scan: %w", err)
	}
	if len(batch) > 0 {
		n, err := s.client.Del(ctx, batch...).Result()
		if err != nil {
			atomic.AddInt64(&s.errs, 1)
			return removed, fmt.Errorf("redis clear: %w", err)
		}
		removed += int(n)
	}
	atomic.AddInt64(&s.deletes, int64(removed))
	return removed, nil
}

func (s *RedisStore) Stats(ctx context.Context) (Stats, error) {
	stats := Stats{
		Hits:    atomic.LoadInt64(&s.hits),
		Misses:  atomic.LoadInt64(&s.misses),
		Sets:    atomic.LoadInt64(&s.sets),
		Deletes: atomic.LoadInt64(&s.deletes),
		Errors:  atomic.LoadInt64(&s.errs),
	}

	// Size is the live key count under our prefix.
	iter := s.client.Scan(ctx, 0, s.keyPrefix+":*", 500).Iterator()
	for iter.Next(ctx) {
		stats.Size++
	}
	if err := iter.Err(); err != nil {
		return stats, fmt.Errorf("redis stats scan: %w", err)
	}
	return stats, nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
