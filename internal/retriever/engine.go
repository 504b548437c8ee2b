package retriever

import (
	"context"
	"fmt"
	"time"

	"github.com/kbaldwin/studyrag/internal/embedder"
	"github.com/kbaldwin/studyrag/internal/store"
	"github.com/kbaldwin/studyrag/pkg/types"
)

const (
	// DefaultMinSimilarity is the similarity threshold applied when a
	// search request does not specify one
	DefaultMinSimilarity = 0.3

	// DefaultSearchLimit bounds result sets when the caller passes none
	DefaultSearchLimit = 10

	// MaxSearchLimit is the hard cap on result set size
	MaxSearchLimit = 100

	// indexBatchSize is how many items are embedded and persisted per
	// indexing batch
	indexBatchSize = 50
)

// Options configures an Engine
type Options struct {
	DefaultMinSimilarity float64       // Zero means DefaultMinSimilarity
	QueryCacheSize       int           // Zero means DefaultQueryCacheSize
	QueryCacheTTL        time.Duration // Zero means DefaultQueryCacheTTL
}

// Engine executes indexing, search, update, and delete over the content
// store using the batch embedding generator for all vector generation
type Engine struct {
	store      store.Store
	generator  *embedder.BatchGenerator
	queryCache *queryCache
	minSim     float64
}

// New creates an Engine. Both store and generator are required.
func New(s store.Store, gen *embedder.BatchGenerator, opts Options) *Engine {
	minSim := opts.DefaultMinSimilarity
	if minSim == 0 {
		minSim = DefaultMinSimilarity
	}

	return &Engine{
		store:      s,
		generator:  gen,
		queryCache: newQueryCache(opts.QueryCacheSize, opts.QueryCacheTTL),
		minSim:     minSim,
	}
}

// SearchRequest contains parameters for a search operation
type SearchRequest struct {
	Query   string
	Limit   int
	Filters *store.Filters

	// MinSimilarity of zero means the engine default. Scores span
	// [-1, 1], so pass a negative threshold to keep every hit; an exact
	// zero threshold cannot be expressed.
	MinSimilarity float64

	SkipCache bool // Bypass the query-response cache
}

// Search embeds the query and returns content ranked by similarity.
// A failed or empty query embedding yields an empty response, not an error;
// storage failures are surfaced to the caller.
func (e *Engine) Search(ctx context.Context, req SearchRequest) (*types.SearchResponse, error) {
	start := time.Now()
	e.normalizeRequest(&req)

	if req.Query == "" {
		return emptyResponse(req, start), nil
	}

	if !req.SkipCache {
		if resp, ok := e.queryCache.get(req); ok {
			resp.SearchDuration = time.Since(start)
			return resp, nil
		}
	}

	embedStart := time.Now()
	queryVec, err := e.embedQuery(ctx, req.Query)
	embedDuration := time.Since(embedStart)
	if err != nil {
		// Provider outages degrade to zero results, keeping the
		// retrieval path available
		resp := emptyResponse(req, start)
		resp.EmbedDuration = embedDuration
		return resp, nil
	}

	hits, err := e.store.SearchVector(ctx, queryVec, req.Limit, req.Filters, req.MinSimilarity)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}

	results := make([]types.SearchResult, 0, len(hits))
	for _, hit := range hits {
		item, err := e.store.GetItem(ctx, hit.ID)
		if err != nil {
			continue // Skip items that can't be loaded
		}
		results = append(results, types.SearchResult{
			Content:         item,
			SimilarityScore: hit.Similarity,
			Rank:            len(results) + 1,
		})
	}

	resp := &types.SearchResponse{
		Query:          req.Query,
		Results:        results,
		TotalFound:     len(results),
		SearchDuration: time.Since(start),
		EmbedDuration:  embedDuration,
		FiltersApplied: req.Filters.Map(),
	}

	if !req.SkipCache && len(results) > 0 {
		e.queryCache.put(req, resp)
	}

	return resp, nil
}

// embedQuery generates a single query embedding through the same cache and
// retry path as content indexing
func (e *Engine) embedQuery(ctx context.Context, query string) ([]float32, error) {
	batch, err := e.generator.GenerateBatch(ctx, []string{query}, true)
	if err != nil {
		return nil, err
	}
	if len(batch.Results) != 1 {
		return nil, fmt.Errorf("query embedding produced %d results", len(batch.Results))
	}
	if batch.Results[0].Err != nil {
		return nil, fmt.Errorf("query embedding failed: %w", batch.Results[0].Err)
	}
	return batch.Results[0].Vector, nil
}

// IndexStats reports the outcome of one Index call
type IndexStats struct {
	Successful int
	Failed     int
	Errors     []string
	Duration   time.Duration
}

// Index embeds and persists content items in batches. Individual failures
// are recorded and do not stop processing of the remaining items.
func (e *Engine) Index(ctx context.Context, items []*types.ContentItem) (*IndexStats, error) {
	start := time.Now()
	stats := &IndexStats{}

	for batchStart := 0; batchStart < len(items); batchStart += indexBatchSize {
		batchEnd := batchStart + indexBatchSize
		if batchEnd > len(items) {
			batchEnd = len(items)
		}

		if err := e.indexBatch(ctx, items[batchStart:batchEnd], stats); err != nil {
			return nil, err
		}
	}

	e.queryCache.invalidate()
	stats.Duration = time.Since(start)
	return stats, nil
}

// indexBatch embeds one batch of items and persists the successes
func (e *Engine) indexBatch(ctx context.Context, items []*types.ContentItem, stats *IndexStats) error {
	texts := make([]string, len(items))
	for i, item := range items {
		texts[i] = embedder.EnhanceContent(item)
	}

	batch, err := e.generator.GenerateBatch(ctx, texts, true)
	if err != nil {
		return fmt.Errorf("batch embedding failed: %w", err)
	}

	for i, item := range items {
		res := batch.Results[i]
		if res.Err != nil {
			stats.Failed++
			stats.Errors = append(stats.Errors, fmt.Sprintf("%s: %v", itemLabel(item), res.Err))
			continue
		}

		item.Embedding = res.Vector
		item.Dimension = len(res.Vector)
		item.Model = res.Model

		if err := e.store.UpsertItem(ctx, item); err != nil {
			stats.Failed++
			stats.Errors = append(stats.Errors, fmt.Sprintf("%s: %v", itemLabel(item), err))
			continue
		}

		stats.Successful++
	}

	return nil
}

// EmbedPending embeds stored chunks that do not yet carry a vector and
// writes the embeddings back. Ingestion collaborators insert raw chunks;
// this completes them without touching already-embedded items.
func (e *Engine) EmbedPending(ctx context.Context, ownerID string) (*IndexStats, error) {
	start := time.Now()

	items, err := e.store.ListChunks(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list chunks: %w", err)
	}

	pending := make([]*types.ContentItem, 0, len(items))
	for _, item := range items {
		if !item.HasEmbedding() {
			pending = append(pending, item)
		}
	}

	stats := &IndexStats{}
	for batchStart := 0; batchStart < len(pending); batchStart += indexBatchSize {
		batchEnd := batchStart + indexBatchSize
		if batchEnd > len(pending) {
			batchEnd = len(pending)
		}

		if err := e.embedPendingBatch(ctx, pending[batchStart:batchEnd], stats); err != nil {
			return nil, err
		}
	}

	if stats.Successful > 0 {
		e.queryCache.invalidate()
	}
	stats.Duration = time.Since(start)
	return stats, nil
}

func (e *Engine) embedPendingBatch(ctx context.Context, items []*types.ContentItem, stats *IndexStats) error {
	texts := make([]string, len(items))
	for i, item := range items {
		texts[i] = embedder.EnhanceContent(item)
	}

	batch, err := e.generator.GenerateBatch(ctx, texts, true)
	if err != nil {
		return fmt.Errorf("batch embedding failed: %w", err)
	}

	for i, item := range items {
		res := batch.Results[i]
		if res.Err != nil {
			stats.Failed++
			stats.Errors = append(stats.Errors, fmt.Sprintf("%s: %v", itemLabel(item), res.Err))
			continue
		}

		if err := e.store.AttachEmbedding(ctx, item.ID, res.Vector, res.Model); err != nil {
			stats.Failed++
			stats.Errors = append(stats.Errors, fmt.Sprintf("%s: %v", itemLabel(item), err))
			continue
		}

		stats.Successful++
	}

	return nil
}

// UpdateFields holds the fields merged into a stored item by Update.
// Nil pointers leave the stored value unchanged.
type UpdateFields struct {
	Title      *string
	Body       *string
	Topic      *string
	Subtopic   *string
	Difficulty *string
	Kind       *string
	Metadata   map[string]string // Merged key-by-key
}

// Update merges fields into the stored item. When the title or body text
// changes, the item is re-embedded and the stored vector replaced.
func (e *Engine) Update(ctx context.Context, id string, fields UpdateFields) (*types.ContentItem, error) {
	item, err := e.store.GetItem(ctx, id)
	if err != nil {
		return nil, err
	}

	textChanged := false

	if fields.Title != nil && *fields.Title != item.Title {
		item.Title = *fields.Title
		textChanged = true
	}
	if fields.Body != nil && *fields.Body != item.Body {
		item.Body = *fields.Body
		textChanged = true
	}
	if fields.Topic != nil {
		item.Topic = *fields.Topic
	}
	if fields.Subtopic != nil {
		item.Subtopic = *fields.Subtopic
	}
	if fields.Difficulty != nil {
		item.Difficulty = types.Difficulty(*fields.Difficulty)
	}
	if fields.Kind != nil {
		item.Kind = types.ContentKind(*fields.Kind)
	}
	for k, v := range fields.Metadata {
		if item.Metadata == nil {
			item.Metadata = make(map[string]string)
		}
		item.Metadata[k] = v
	}

	if textChanged {
		vec, err := e.embedQuery(ctx, embedder.EnhanceContent(item))
		if err != nil {
			return nil, fmt.Errorf("re-embedding failed: %w", err)
		}
		item.Embedding = vec
		item.Dimension = len(vec)
		item.Model = e.generator.Provider().Model()
	}

	if err := e.store.UpsertItem(ctx, item); err != nil {
		return nil, err
	}

	e.queryCache.invalidate()
	return item, nil
}

// Delete removes items by id and returns the count actually removed
func (e *Engine) Delete(ctx context.Context, ids []string) (int, error) {
	count, err := e.store.DeleteItems(ctx, ids)
	if err != nil {
		return 0, err
	}
	if count > 0 {
		e.queryCache.invalidate()
	}
	return count, nil
}

// Status reports store statistics
func (e *Engine) Status(ctx context.Context) (*store.Status, error) {
	return e.store.Status(ctx)
}

// normalizeRequest applies defaults and caps to a search request
func (e *Engine) normalizeRequest(req *SearchRequest) {
	if req.Limit <= 0 {
		req.Limit = DefaultSearchLimit
	}
	if req.Limit > MaxSearchLimit {
		req.Limit = MaxSearchLimit
	}
	if req.MinSimilarity == 0 {
		req.MinSimilarity = e.minSim
	}
}

// emptyResponse builds the zero-result response returned when a query
// cannot be embedded
func emptyResponse(req SearchRequest, start time.Time) *types.SearchResponse {
	return &types.SearchResponse{
		Query:          req.Query,
		Results:        []types.SearchResult{},
		TotalFound:     0,
		SearchDuration: time.Since(start),
		FiltersApplied: req.Filters.Map(),
	}
}

// itemLabel identifies an item in error messages
func itemLabel(item *types.ContentItem) string {
	if item.ID != "" {
		return item.ID
	}
	return item.Title
}
