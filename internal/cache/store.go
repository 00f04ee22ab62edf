package cache

import (
	"context"
	"fmt"
	"time"
)

// ScriptCacheKey identifies one generated script. Hash is sha256 of the
// normalized query text.
type ScriptCacheKey struct {
	VersionID string
	Hash      string
}

// String converts the structured key into the final string used in Redis/map.
func (k ScriptCacheKey) String() string {
	// script:<VERSION_ID>:<HASH_HEX>
	return fmt.Sprintf("script:%s:%s", k.VersionID, k.Hash)
}

// Store is the byte-level backend behind ScriptCache.
// Implemented by the in-process LRU (default) and Redis (multi-replica).
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}
