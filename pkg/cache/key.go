package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strings"
)

// KeyPrefix starts every Redis key written by this package.
const KeyPrefix = "ishmael"

// CacheKey identifies one cached response.
type CacheKey struct {
	// Endpoint is the API path relative to the API root (e.g. "/games")
	Endpoint string

	// QueryParams are the encoded request parameters
	QueryParams url.Values

	// Scope separates callers sharing one Redis, see ScopeFor
	Scope string
}

// ScopeFor derives a short, non-reversible scope from an API key.
func ScopeFor(apiKey string) string {
	sum := sha256.Sum256([]byte(apiKey))
	return hex.EncodeToString(sum[:6])
}

// String generates a deterministic cache key string.
// Format: ishmael:endpoint?query:scope=abc123
//
// The query is url-encoded with keys sorted, so separators inside values are
// escaped and cannot merge two queries into one key. Repeated values keep
// their order: tag=a&tag=b and tag=b&tag=a are different keys.
func (k CacheKey) String() string {
	var b strings.Builder
	b.WriteString(KeyPrefix)

	if endpoint := strings.Trim(k.Endpoint, "/"); endpoint != "" {
		b.WriteString(":")
		b.WriteString(endpoint)
	}

	if len(k.QueryParams) > 0 {
		b.WriteString("?")
		b.WriteString(k.QueryParams.Encode())
	}

	if k.Scope != "" {
		b.WriteString(":scope=")
		b.WriteString(k.Scope)
	}

	return b.String()
}
