// Package embedcache provides a bounded in-memory cache for embedding vectors.
//
// Entries are keyed by a deterministic fingerprint of (text, model), expire
// after a configurable TTL, and are evicted in batches of roughly 20% of
// capacity (least recently accessed first) when the cache is full. Batch
// eviction amortizes the cost of sorting entries by access time.
//
//	cache := embedcache.New(10000, 24*time.Hour)
//
//	if vec, ok := cache.Get(text, model); ok {
//	    return vec // cache hit
//	}
//	vec := provider.Embed(ctx, text, model)
//	cache.Put(text, model, vec)
//
// The cache is safe for concurrent use. All operations are total: a Get on an
// expired or absent key is a miss, never an error, and a cache failure can
// only ever degrade to recomputing an embedding.
package embedcache
