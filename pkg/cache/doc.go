// Package cache provides an optional Redis-backed response cache for GET
// requests against the Ishmael Insights API.
//
// Entries are fresh until their Expires time (taken from Cache-Control
// max-age, the Expires header, or the manager's default TTL) and then stay in
// Redis for a further stale window. A stale entry that carries an ETag or
// Last-Modified value is revalidated with a conditional request; a 304
// answer extends it without transferring the body again.
//
// # Basic Usage
//
//	redisClient := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	manager := cache.NewManager(redisClient, cache.DefaultConfig())
//
//	key := cache.CacheKey{
//		Endpoint:    "/predictions",
//		QueryParams: url.Values{"tag": []string{"cbb"}, "time": []string{"1767225600"}},
//		Scope:       cache.ScopeFor(apiKey),
//	}
//
//	entry, err := manager.Get(ctx, key)
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// fetch from the API
//	}
//	if entry != nil && !entry.IsExpired() {
//		resp := cache.EntryToResponse(entry)
//		...
//	}
//
// # Conditional Requests
//
//	if entry.IsExpired() && cache.ShouldMakeConditionalRequest(entry) {
//		cache.AddConditionalHeaders(req, entry)
//	}
//
// # Metrics
//
//   - ishmael_cache_hits_total{state="fresh|stale"}
//   - ishmael_cache_misses_total
//   - ishmael_cache_written_bytes_total
//   - ishmael_conditional_requests_total
//   - ishmael_304_responses_total
//   - ishmael_cache_errors_total{operation}
//
// Keys are scoped by a short hash of the API key so two keys sharing a
// Redis instance never read each other's responses.
package cache
