// Package embedder generates vector embeddings for study content using
// remote or local providers.
//
// The package has three layers: a Provider makes one fallible remote call, a
// retry policy wraps each call with exponential backoff, and a BatchGenerator
// orchestrates many calls with caching, rate limiting, and bounded
// concurrency.
//
// # Batch Processing
//
//	gen := embedder.NewBatchGenerator(provider, cache, embedder.DefaultBatchConfig())
//
//	result, err := gen.GenerateBatch(ctx, texts, true)
//	for i, r := range result.Results {
//	    if r.Err != nil {
//	        // Item i failed; siblings are unaffected
//	        continue
//	    }
//	    // r.Vector is the embedding for texts[i]
//	}
//
// Texts are processed in chunks of at most MaxBatchSize. Within a chunk all
// cache misses go out concurrently; chunks run sequentially with an
// inter-chunk delay so total in-flight calls stay bounded. Cache hits are
// synthesized locally with near-zero latency, which is how BatchResult
// distinguishes CacheHits from RemoteCalls.
//
// # Failure Semantics
//
// A failing text is recorded as a per-item error in its EmbeddingResult and
// in BatchResult.Errors; it never aborts the batch. Empty text is rejected
// immediately without retry. Transient provider failures (timeouts, 5xx) are
// retried up to 1+MaxRetries attempts with BaseDelay*2^attempt backoff and
// surfaced wrapped in ErrProviderFailed only after exhaustion.
//
// # Provider Selection
//
// Providers are selected from configuration or environment:
//
//  1. If STUDYRAG_EMBEDDING_PROVIDER is set → use specified provider
//  2. Else if OPENAI_API_KEY is set → use OpenAI (1536 dims)
//  3. Else if JINA_API_KEY is set → use Jina AI (1024 dims)
//  4. Else → deterministic local provider (384 dims, offline mode)
//
// Providers must be idempotent for identical (text, model) inputs; the
// embedding cache relies on this.
package embedder
