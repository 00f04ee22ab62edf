package cache

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

type Config struct {
	Backend    string
	MaxEntries int // memory backend bound
	Prefix     string
}

// NewStore builds the configured backend wrapped in the logging decorator.
// redisClient is only consulted for the redis backend, which is pinged
// before it is returned.
func NewStore(ctx context.Context, cfg Config, redisClient *redis.Client) (Store, error) {
	switch cfg.Backend {
	case BackendRedis:
		if redisClient == nil {
			return nil, fmt.Errorf("cache: redis backend requires a client")
		}
		rs := NewRedisStore(redisClient, RedisConfig{Prefix: cfg.Prefix})
		if err := rs.Ping(ctx); err != nil {
			return nil, fmt.Errorf("cache: redis ping: %w", err)
		}
		return NewLoggingStore(rs, BackendRedis), nil
	case BackendMemory, "":
		return NewLoggingStore(NewMemoryStore(cfg.MaxEntries), BackendMemory), nil
	default:
		return nil, fmt.Errorf("cache: unknown backend %q", cfg.Backend)
	}
}
