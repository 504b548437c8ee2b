package embedder

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/kbaldwin/studyrag/internal/embedcache"
)

// Batch defaults
const (
	DefaultMaxBatchSize    = 20
	DefaultRateLimitDelay  = 100 * time.Millisecond
	DefaultInterBatchDelay = 500 * time.Millisecond
	DefaultRequestTimeout  = 30 * time.Second
)

// BatchConfig configures the batch generator
type BatchConfig struct {
	MaxBatchSize    int           // Upper bound on concurrent in-flight remote calls
	RateLimitDelay  time.Duration // Minimum spacing between remote calls
	InterBatchDelay time.Duration // Pause between consecutive chunks
	RequestTimeout  time.Duration // Per-call timeout, treated as retryable
	Retry           RetryConfig
}

// DefaultBatchConfig returns the default batch configuration
func DefaultBatchConfig() BatchConfig {
	return BatchConfig{
		MaxBatchSize:    DefaultMaxBatchSize,
		RateLimitDelay:  DefaultRateLimitDelay,
		InterBatchDelay: DefaultInterBatchDelay,
		RequestTimeout:  DefaultRequestTimeout,
		Retry:           DefaultRetryConfig(),
	}
}

// BatchGenerator orchestrates many embedding requests against one provider,
// consulting the cache first and bounding remote-call concurrency
type BatchGenerator struct {
	provider Provider
	cache    *embedcache.Cache
	limiter  *rate.Limiter
	config   BatchConfig
}

// NewBatchGenerator creates a batch generator over the given provider and
// cache. The cache may be nil, in which case every request goes remote.
func NewBatchGenerator(provider Provider, cache *embedcache.Cache, config BatchConfig) *BatchGenerator {
	if config.MaxBatchSize <= 0 {
		config.MaxBatchSize = DefaultMaxBatchSize
	}
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = DefaultRequestTimeout
	}

	// A rate-limit delay of d means at most one call per d
	limit := rate.Inf
	if config.RateLimitDelay > 0 {
		limit = rate.Every(config.RateLimitDelay)
	}

	return &BatchGenerator{
		provider: provider,
		cache:    cache,
		limiter:  rate.NewLimiter(limit, 1),
		config:   config,
	}
}

// Provider returns the underlying embedding provider
func (g *BatchGenerator) Provider() Provider {
	return g.provider
}

// Cache returns the embedding cache, which may be nil
func (g *BatchGenerator) Cache() *embedcache.Cache {
	return g.cache
}

// GenerateBatch generates embeddings for all texts, consulting the cache
// when useCache is set. The returned results are index-aligned with the
// input. Individual failures are recorded per item and never abort sibling
// items; the method itself errors only on context cancellation. A nil or
// empty input yields an empty result.
func (g *BatchGenerator) GenerateBatch(ctx context.Context, texts []string, useCache bool) (*BatchResult, error) {
	start := time.Now()
	batch := &BatchResult{
		Results: make([]EmbeddingResult, len(texts)),
	}
	if len(texts) == 0 {
		return batch, nil
	}

	model := g.provider.Model()

	for chunkStart := 0; chunkStart < len(texts); chunkStart += g.config.MaxBatchSize {
		chunkEnd := chunkStart + g.config.MaxBatchSize
		if chunkEnd > len(texts) {
			chunkEnd = len(texts)
		}

		if err := g.processChunk(ctx, texts, chunkStart, chunkEnd, model, useCache, batch); err != nil {
			return nil, err
		}

		// Pause between chunks to respect downstream throughput limits
		if chunkEnd < len(texts) && g.config.InterBatchDelay > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(g.config.InterBatchDelay):
			}
		}
	}

	g.aggregate(batch)
	batch.TotalDuration = time.Since(start)
	return batch, nil
}

// processChunk resolves texts[chunkStart:chunkEnd]: cache hits and invalid
// inputs synchronously, cache misses concurrently against the provider
func (g *BatchGenerator) processChunk(ctx context.Context, texts []string, chunkStart, chunkEnd int, model string, useCache bool, batch *BatchResult) error {
	misses := make([]int, 0, chunkEnd-chunkStart)

	for i := chunkStart; i < chunkEnd; i++ {
		text := texts[i]
		now := time.Now()

		// Permanent input errors are rejected before the retry policy
		if err := ValidateText(text); err != nil {
			batch.Results[i] = EmbeddingResult{
				Text:      text,
				Model:     model,
				CreatedAt: now,
				Err:       err,
			}
			continue
		}

		if useCache && g.cache != nil {
			if vec, ok := g.cache.Get(text, model); ok {
				batch.Results[i] = EmbeddingResult{
					Text:      text,
					Vector:    vec,
					Model:     model,
					CreatedAt: now,
					Duration:  time.Since(now),
					CacheHit:  true,
				}
				continue
			}
		}

		misses = append(misses, i)
	}

	if len(misses) == 0 {
		return nil
	}

	// All misses in a chunk are dispatched concurrently and awaited
	// together; workers record failures per item and always return nil so
	// one failing text cannot fail its siblings.
	grp, gctx := errgroup.WithContext(ctx)
	for _, idx := range misses {
		grp.Go(func() error {
			g.embedOne(gctx, texts[idx], model, useCache, &batch.Results[idx])
			return nil
		})
	}
	if err := grp.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// embedOne performs one rate-limited, retried remote call and records the
// outcome into res
func (g *BatchGenerator) embedOne(ctx context.Context, text, model string, useCache bool, res *EmbeddingResult) {
	start := time.Now()
	res.Text = text
	res.Model = model
	res.CreatedAt = start

	if err := g.limiter.Wait(ctx); err != nil {
		res.Err = err
		return
	}

	vec, err := retryWithBackoff(ctx, g.config.Retry, func() ([]float32, error) {
		callCtx, cancel := context.WithTimeout(ctx, g.config.RequestTimeout)
		defer cancel()
		return g.provider.Embed(callCtx, text, model)
	})

	res.Duration = time.Since(start)

	if err != nil {
		res.Err = wrapProviderErr(err, g.config.Retry.MaxRetries+1)
		return
	}

	res.Vector = vec

	// Only fully-succeeded calls are cached
	if useCache && g.cache != nil {
		g.cache.Put(text, model, vec)
	}
}

// aggregate fills the batch-level counters from per-item outcomes
func (g *BatchGenerator) aggregate(batch *BatchResult) {
	for i := range batch.Results {
		r := &batch.Results[i]
		switch {
		case r.Err != nil:
			batch.Errors = append(batch.Errors, fmt.Sprintf("text %d: %v", i, r.Err))
		case r.CacheHit:
			batch.CacheHits++
		default:
			batch.RemoteCalls++
		}
	}
	batch.TotalProcessed = len(batch.Results)
}
