package cache

import (
	"context"
	"strings"
	"time"

	"telemetry-chatbot/internal/metrics"
	"telemetry-chatbot/pkg/logging/logging"

	"go.uber.org/zap"
)

// LoggingStore wraps a Store with logging + metrics.
type LoggingStore struct {
	inner   Store
	backend string
}

// NewLoggingStore returns a store that logs and records metrics.
func NewLoggingStore(inner Store, backend string) Store {
	return &LoggingStore{inner: inner, backend: backend}
}

func (c *LoggingStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	start := time.Now()
	value, ok, err := c.inner.Get(ctx, key)
	latencyMs := float64(time.Since(start).Microseconds()) / 1000.0

	result := "miss"
	if err != nil {
		result = "error"
	} else if ok {
		result = "hit"
	}
	metrics.ScriptCacheResultsTotal.WithLabelValues(result).Inc()

	fields := append(c.keyFields(key),
		zap.String("cache_result", result), // hit | miss | error
		zap.Float64("latency_ms", latencyMs),
	)

	logger := logging.L(ctx)
	if err != nil {
		logger.Error("script_cache_get", append(fields, zap.Error(err))...)
	} else {
		logger.Info("script_cache_get", fields...)
	}

	return value, ok, err
}

func (c *LoggingStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	start := time.Now()
	err := c.inner.Set(ctx, key, value, ttl)
	latencyMs := float64(time.Since(start).Microseconds()) / 1000.0

	fields := append(c.keyFields(key),
		zap.Duration("ttl", ttl),
		zap.Int("bytes", len(value)),
		zap.Float64("latency_ms", latencyMs),
	)

	logger := logging.L(ctx)
	if err != nil {
		logger.Error("script_cache_set", append(fields, zap.Error(err))...)
	} else {
		logger.Info("script_cache_set", fields...)
	}

	return err
}

func (c *LoggingStore) keyFields(key string) []zap.Field {
	fields := []zap.Field{
		zap.String("cache_backend", c.backend),
		zap.String("cache_key", key),
	}
	if versionID, hash, ok := parseScriptKey(key); ok {
		fields = append(fields,
			zap.String("version_id", versionID),
			zap.String("hash", hash),
		)
	}
	return fields
}

// Expecting: script:<VERSION_ID>:<HASH>
func parseScriptKey(key string) (versionID, hash string, ok bool) {
	parts := strings.Split(key, ":")
	if len(parts) != 3 || parts[0] != "script" {
		return "", "", false
	}
	return parts[1], parts[2], true
}
