package retriever

import (
	"crypto/sha256"
	"fmt"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/kbaldwin/studyrag/pkg/types"
)

const (
	// DefaultQueryCacheSize bounds the number of cached search responses
	DefaultQueryCacheSize = 1000

	// DefaultQueryCacheTTL is how long a cached response stays valid
	DefaultQueryCacheTTL = time.Hour
)

// queryCacheEntry holds a cached search response with its expiration time
type queryCacheEntry struct {
	response  *types.SearchResponse
	expiresAt time.Time
}

// queryCache caches whole search responses keyed by a request hash.
// LRU eviction is handled by the underlying cache; expiry is checked on read.
type queryCache struct {
	mu    sync.RWMutex
	cache *lru.Cache[[32]byte, *queryCacheEntry]
	ttl   time.Duration
}

func newQueryCache(size int, ttl time.Duration) *queryCache {
	if size <= 0 {
		size = DefaultQueryCacheSize
	}
	if ttl <= 0 {
		ttl = DefaultQueryCacheTTL
	}

	cache, err := lru.New[[32]byte, *queryCacheEntry](size)
	if err != nil {
		// Only reachable with a non-positive size, which is guarded above
		panic(fmt.Sprintf("failed to create query cache: %v", err))
	}

	return &queryCache{cache: cache, ttl: ttl}
}

func (q *queryCache) get(req SearchRequest) (*types.SearchResponse, bool) {
	key := hashRequest(req)
	now := time.Now()

	q.mu.RLock()
	entry, found := q.cache.Get(key)
	if !found {
		q.mu.RUnlock()
		return nil, false
	}

	if now.After(entry.expiresAt) {
		q.mu.RUnlock()
		q.mu.Lock()
		q.cache.Remove(key)
		q.mu.Unlock()
		return nil, false
	}

	resp := copyResponse(entry.response)
	q.mu.RUnlock()
	return resp, true
}

func (q *queryCache) put(req SearchRequest, resp *types.SearchResponse) {
	entry := &queryCacheEntry{
		response:  copyResponse(resp),
		expiresAt: time.Now().Add(q.ttl),
	}

	q.mu.Lock()
	q.cache.Add(hashRequest(req), entry)
	q.mu.Unlock()
}

// invalidate drops all cached responses. Called whenever indexed content
// changes, since any cached result set may now be stale.
func (q *queryCache) invalidate() {
	q.mu.Lock()
	q.cache.Purge()
	q.mu.Unlock()
}

// hashRequest computes a deterministic key for a search request
func hashRequest(req SearchRequest) [32]byte {
	var data strings.Builder
	data.WriteString(req.Query)
	data.WriteString("|")
	fmt.Fprintf(&data, "%d|%.4f", req.Limit, req.MinSimilarity)

	if req.Filters != nil {
		fmt.Fprintf(&data, "|%s|%s|%s|%s|%s",
			req.Filters.Topic, req.Filters.Subtopic, req.Filters.Difficulty,
			req.Filters.Kind, req.Filters.OwnerID)
	}

	return sha256.Sum256([]byte(data.String()))
}

// copyResponse creates a copy of a SearchResponse so cached entries cannot
// be mutated by callers. Content items are copied by value; their slices
// are treated as read-only after retrieval.
func copyResponse(src *types.SearchResponse) *types.SearchResponse {
	if src == nil {
		return nil
	}

	dst := &types.SearchResponse{
		Query:          src.Query,
		TotalFound:     src.TotalFound,
		SearchDuration: src.SearchDuration,
		EmbedDuration:  src.EmbedDuration,
		Results:        make([]types.SearchResult, len(src.Results)),
	}

	if src.FiltersApplied != nil {
		dst.FiltersApplied = make(map[string]string, len(src.FiltersApplied))
		for k, v := range src.FiltersApplied {
			dst.FiltersApplied[k] = v
		}
	}

	for i, result := range src.Results {
		dst.Results[i] = result
		if result.Content != nil {
			itemCopy := *result.Content
			dst.Results[i].Content = &itemCopy
		}
	}

	return dst
}
