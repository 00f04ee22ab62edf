package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// NormalizeQuery is the cache identity of a user question: trimmed and
// lower-cased. "Average Speed " and "average speed" share an entry.
func NormalizeQuery(query string) string {
	return strings.ToLower(strings.TrimSpace(query))
}

// BuildScriptCacheKey hashes the normalized query and scopes it by
// versionID, so bumping the version (e.g. after a prompt change)
// invalidates every cached script at once.
func BuildScriptCacheKey(query, versionID string) ScriptCacheKey {
	sum := sha256.Sum256([]byte(NormalizeQuery(query)))
	return ScriptCacheKey{
		VersionID: strings.TrimSpace(versionID),
		Hash:      hex.EncodeToString(sum[:]),
	}
}
