package retriever

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kbaldwin/studyrag/internal/embedcache"
	"github.com/kbaldwin/studyrag/internal/embedder"
	"github.com/kbaldwin/studyrag/internal/store"
	"github.com/kbaldwin/studyrag/pkg/types"
)

// scriptedProvider returns preset vectors for texts containing known
// markers, so similarity to a query vector is fully controlled by the test
type scriptedProvider struct {
	mu         sync.Mutex
	vectors    map[string][]float32 // marker substring -> vector
	failMarker string
	calls      int
}

func (p *scriptedProvider) Embed(ctx context.Context, text, model string) ([]float32, error) {
	if err := embedder.ValidateText(text); err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.calls++
	p.mu.Unlock()

	if p.failMarker != "" && strings.Contains(text, p.failMarker) {
		return nil, errors.New("scripted failure")
	}

	for marker, vec := range p.vectors {
		if strings.Contains(text, marker) {
			return vec, nil
		}
	}
	return []float32{0, 1}, nil
}

func (p *scriptedProvider) Dimension() int { return 2 }
func (p *scriptedProvider) Name() string   { return "scripted" }
func (p *scriptedProvider) Model() string  { return "scripted-model" }
func (p *scriptedProvider) Close() error   { return nil }

func (p *scriptedProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// vecWithCos builds a unit vector whose cosine similarity to (1,0) is c
func vecWithCos(c float64) []float32 {
	return []float32{float32(c), float32(math.Sqrt(1 - c*c))}
}

func newTestEngine(t *testing.T, provider embedder.Provider) (*Engine, store.Store) {
	t.Helper()

	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "engine.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	gen := embedder.NewBatchGenerator(provider, embedcache.New(1000, time.Hour), embedder.BatchConfig{
		MaxBatchSize:    10,
		InterBatchDelay: 0,
		RequestTimeout:  time.Second,
		Retry:           embedder.RetryConfig{MaxRetries: 0, BaseDelay: time.Millisecond},
	})

	return New(s, gen, Options{}), s
}

func contentItem(id, topic, marker string) *types.ContentItem {
	return &types.ContentItem{
		ID:    id,
		Title: "Item " + id,
		Body:  "Body about " + marker,
		Topic: topic,
		Kind:  types.KindExplanation,
	}
}

func TestSearchRanking(t *testing.T) {
	provider := &scriptedProvider{vectors: map[string][]float32{
		"QUERY":    vecWithCos(1.0),
		"strong":   vecWithCos(0.9),
		"weak":     vecWithCos(0.5),
		"moderate": vecWithCos(0.8),
	}}
	engine, _ := newTestEngine(t, provider)
	ctx := context.Background()

	items := []*types.ContentItem{
		contentItem("a", "calculus", "strong"),
		contentItem("b", "calculus", "weak"),
		contentItem("c", "calculus", "moderate"),
	}
	stats, err := engine.Index(ctx, items)
	require.NoError(t, err)
	require.Equal(t, 3, stats.Successful)

	resp, err := engine.Search(ctx, SearchRequest{
		Query:         "QUERY",
		Limit:         10,
		MinSimilarity: 0.6,
	})
	require.NoError(t, err)

	// Scores [0.9, 0.5, 0.8] with threshold 0.6 leave exactly two results,
	// ordered by similarity descending
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "a", resp.Results[0].Content.ID)
	assert.Equal(t, "c", resp.Results[1].Content.ID)
	assert.Equal(t, 1, resp.Results[0].Rank)
	assert.Equal(t, 2, resp.Results[1].Rank)
	assert.InDelta(t, 0.9, resp.Results[0].SimilarityScore, 0.01)
}

func TestSearchNegativeThresholdKeepsAllHits(t *testing.T) {
	provider := &scriptedProvider{vectors: map[string][]float32{
		"QUERY":    vecWithCos(1.0),
		"strong":   vecWithCos(0.9),
		"weak":     vecWithCos(0.5),
		"opposite": {-1, 0},
	}}
	engine, _ := newTestEngine(t, provider)
	ctx := context.Background()

	_, err := engine.Index(ctx, []*types.ContentItem{
		contentItem("a", "calculus", "strong"),
		contentItem("b", "calculus", "weak"),
		contentItem("c", "calculus", "opposite"),
	})
	require.NoError(t, err)

	// A negative threshold disables filtering entirely, admitting even
	// negative similarities
	resp, err := engine.Search(ctx, SearchRequest{
		Query:         "QUERY",
		Limit:         10,
		MinSimilarity: -1,
	})
	require.NoError(t, err)
	require.Len(t, resp.Results, 3)
	assert.Equal(t, "a", resp.Results[0].Content.ID)
	assert.Equal(t, "c", resp.Results[2].Content.ID)
	assert.Less(t, resp.Results[2].SimilarityScore, 0.0)
}

func TestSearchEmptyQuery(t *testing.T) {
	engine, _ := newTestEngine(t, &scriptedProvider{})

	resp, err := engine.Search(context.Background(), SearchRequest{Query: ""})
	require.NoError(t, err)
	assert.Equal(t, 0, resp.TotalFound)
	assert.Empty(t, resp.Results)
}

func TestSearchFailedEmbeddingReturnsEmpty(t *testing.T) {
	provider := &scriptedProvider{failMarker: "QUERY"}
	engine, _ := newTestEngine(t, provider)

	resp, err := engine.Search(context.Background(), SearchRequest{Query: "QUERY about something"})
	require.NoError(t, err, "a provider outage must not surface as a search error")
	assert.Equal(t, 0, resp.TotalFound)
	assert.Empty(t, resp.Results)
}

func TestIndexEndToEnd(t *testing.T) {
	provider := &scriptedProvider{vectors: map[string][]float32{
		"QUERY":  vecWithCos(1.0),
		"body-a": vecWithCos(0.95),
		"body-b": vecWithCos(0.8),
		"body-c": vecWithCos(0.4),
	}}
	engine, _ := newTestEngine(t, provider)
	ctx := context.Background()

	items := []*types.ContentItem{
		contentItem("a", "calculus", "body-a"),
		contentItem("b", "calculus", "body-b"),
		contentItem("c", "calculus", "body-c"),
	}
	stats, err := engine.Index(ctx, items)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Successful)
	assert.Equal(t, 0, stats.Failed)

	resp, err := engine.Search(ctx, SearchRequest{Query: "QUERY", Limit: 2})
	require.NoError(t, err)
	assert.LessOrEqual(t, len(resp.Results), 2)
	for _, r := range resp.Results {
		assert.GreaterOrEqual(t, r.SimilarityScore, DefaultMinSimilarity,
			"default threshold must apply when none is given")
	}
}

func TestIndexPartialFailure(t *testing.T) {
	provider := &scriptedProvider{vectors: map[string][]float32{
		"good": vecWithCos(0.9),
	}}
	engine, _ := newTestEngine(t, provider)

	items := []*types.ContentItem{
		contentItem("ok", "t", "good"),
		{ID: "empty"}, // No text at all: embedding input is invalid
		contentItem("ok2", "t", "good"),
	}
	stats, err := engine.Index(context.Background(), items)
	require.NoError(t, err, "per-item failures must not fail the whole index call")

	assert.Equal(t, 2, stats.Successful)
	assert.Equal(t, 1, stats.Failed)
	require.Len(t, stats.Errors, 1)
	assert.Contains(t, stats.Errors[0], "empty")
}

func TestUpdateReembedsOnTextChange(t *testing.T) {
	provider := &scriptedProvider{vectors: map[string][]float32{
		"original": vecWithCos(0.5),
		"revised":  vecWithCos(0.7),
	}}
	engine, s := newTestEngine(t, provider)
	ctx := context.Background()

	item := contentItem("x", "calculus", "original")
	_, err := engine.Index(ctx, []*types.ContentItem{item})
	require.NoError(t, err)

	before, err := s.GetItem(ctx, "x")
	require.NoError(t, err)

	newBody := "Body about revised"
	updated, err := engine.Update(ctx, "x", UpdateFields{Body: &newBody})
	require.NoError(t, err)
	assert.Equal(t, newBody, updated.Body)

	after, err := s.GetItem(ctx, "x")
	require.NoError(t, err)
	assert.NotEqual(t, before.Embedding, after.Embedding, "body change must replace the stored vector")
}

func TestUpdateMetadataOnlySkipsReembed(t *testing.T) {
	provider := &scriptedProvider{vectors: map[string][]float32{
		"original": vecWithCos(0.5),
	}}
	engine, s := newTestEngine(t, provider)
	ctx := context.Background()

	item := contentItem("x", "calculus", "original")
	_, err := engine.Index(ctx, []*types.ContentItem{item})
	require.NoError(t, err)
	callsAfterIndex := provider.callCount()

	newTopic := "algebra"
	_, err = engine.Update(ctx, "x", UpdateFields{
		Topic:    &newTopic,
		Metadata: map[string]string{"reviewed": "yes"},
	})
	require.NoError(t, err)

	assert.Equal(t, callsAfterIndex, provider.callCount(), "non-text updates must not re-embed")

	after, err := s.GetItem(ctx, "x")
	require.NoError(t, err)
	assert.Equal(t, "algebra", after.Topic)
	assert.Equal(t, "yes", after.Metadata["reviewed"])
}

func TestUpdateMissingItem(t *testing.T) {
	engine, _ := newTestEngine(t, &scriptedProvider{})
	body := "b"
	_, err := engine.Update(context.Background(), "missing", UpdateFields{Body: &body})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestDeleteReturnsCount(t *testing.T) {
	provider := &scriptedProvider{vectors: map[string][]float32{"x": vecWithCos(0.9)}}
	engine, _ := newTestEngine(t, provider)
	ctx := context.Background()

	_, err := engine.Index(ctx, []*types.ContentItem{
		contentItem("a", "t", "x"),
		contentItem("b", "t", "x"),
	})
	require.NoError(t, err)

	count, err := engine.Delete(ctx, []string{"a", "b", "ghost"})
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestEmbedPending(t *testing.T) {
	provider := &scriptedProvider{vectors: map[string][]float32{
		"QUERY": vecWithCos(1.0),
		"raw":   vecWithCos(0.8),
	}}
	engine, s := newTestEngine(t, provider)
	ctx := context.Background()

	// Raw chunks arrive through the ingestion surface without vectors
	id1, err := s.InsertChunk(ctx, &types.ContentItem{
		OwnerID: "user-1", Title: "Chunk one", Body: "Body about raw", Topic: "t",
	})
	require.NoError(t, err)
	_, err = s.InsertChunk(ctx, &types.ContentItem{
		OwnerID: "user-1", Title: "Chunk two", Body: "Body about raw too", Topic: "t",
	})
	require.NoError(t, err)

	stats, err := engine.EmbedPending(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Successful)
	assert.Equal(t, 0, stats.Failed)

	got, err := s.GetItem(ctx, id1)
	require.NoError(t, err)
	assert.True(t, got.HasEmbedding())

	// A second pass finds nothing left to embed
	stats, err = engine.EmbedPending(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Successful)

	resp, err := engine.Search(ctx, SearchRequest{Query: "QUERY"})
	require.NoError(t, err)
	assert.Len(t, resp.Results, 2)
}

func TestIndexInvalidatesQueryCache(t *testing.T) {
	provider := &scriptedProvider{vectors: map[string][]float32{
		"QUERY": vecWithCos(1.0),
		"match": vecWithCos(0.9),
	}}
	engine, _ := newTestEngine(t, provider)
	ctx := context.Background()

	_, err := engine.Index(ctx, []*types.ContentItem{contentItem("a", "t", "match")})
	require.NoError(t, err)

	resp, err := engine.Search(ctx, SearchRequest{Query: "QUERY"})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)

	// Indexing more content must drop cached responses so the new item
	// becomes visible to an identical query
	_, err = engine.Index(ctx, []*types.ContentItem{contentItem("b", "t", "match")})
	require.NoError(t, err)

	resp, err = engine.Search(ctx, SearchRequest{Query: "QUERY"})
	require.NoError(t, err)
	assert.Len(t, resp.Results, 2)
}
