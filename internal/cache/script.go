package cache

import (
	"context"
	"encoding/json"
	"time"

	"telemetry-chatbot/pkg/logging/logging"

	"go.uber.org/zap"
)

const defaultTTL = time.Hour

// CacheEntry is what gets stored per normalized query.
type CacheEntry struct {
	Script    string    `json:"script"`
	CreatedAt time.Time `json:"created_at"`
}

// ScriptCache memoizes generated scripts by normalized query text.
// A lookup is a hit only while now - created_at < TTL, regardless of what
// the backend does with its own expiry.
type ScriptCache struct {
	store     Store
	ttl       time.Duration
	versionID string
	now       func() time.Time
}

func NewScriptCache(store Store, ttl time.Duration, versionID string) *ScriptCache {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &ScriptCache{
		store:     store,
		ttl:       ttl,
		versionID: versionID,
		now:       time.Now,
	}
}

// Key returns the backend key for query.
func (c *ScriptCache) Key(query string) string {
	return BuildScriptCacheKey(query, c.versionID).String()
}

// Get returns the cached script for query. Backend errors and undecodable
// entries are logged and treated as a miss.
func (c *ScriptCache) Get(ctx context.Context, query string) (string, bool) {
	raw, ok, err := c.store.Get(ctx, c.Key(query))
	if err != nil || !ok {
		return "", false
	}

	var entry CacheEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		logging.L(ctx).Warn("script cache entry undecodable", zap.Error(err))
		return "", false
	}

	if age := c.now().Sub(entry.CreatedAt); age >= c.ttl {
		logging.L(ctx).Debug("script cache entry stale", zap.Duration("age", age))
		return "", false
	}

	return entry.Script, true
}

// Put stores script for query, overwriting any earlier entry.
func (c *ScriptCache) Put(ctx context.Context, query, script string) error {
	raw, err := json.Marshal(CacheEntry{Script: script, CreatedAt: c.now()})
	if err != nil {
		return err
	}
	return c.store.Set(ctx, c.Key(query), raw, c.ttl)
}
