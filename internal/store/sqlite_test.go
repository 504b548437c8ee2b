package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kbaldwin/studyrag/pkg/types"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testItem(id, topic string) *types.ContentItem {
	return &types.ContentItem{
		ID:         id,
		OwnerID:    "owner-1",
		Title:      "Title " + id,
		Body:       "Body text for " + id,
		Topic:      topic,
		Difficulty: types.DifficultyIntro,
		Kind:       types.KindExplanation,
		Metadata:   map[string]string{"origin": "test"},
	}
}

func TestInsertChunkAssignsID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	item := testItem("", "calculus")
	id, err := s.InsertChunk(ctx, item)
	require.NoError(t, err)
	assert.NotEmpty(t, id, "system must assign an id when the caller did not")
	assert.Equal(t, id, item.ID)

	got, err := s.GetItem(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, item.Body, got.Body)
	assert.Equal(t, "test", got.Metadata["origin"])
}

func TestInsertChunkRejectsEmptyBody(t *testing.T) {
	s := newTestStore(t)
	_, err := s.InsertChunk(context.Background(), &types.ContentItem{Title: "no body"})
	assert.Error(t, err)
}

func TestListChunksByOwner(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := testItem("a", "algebra")
	b := testItem("b", "algebra")
	other := testItem("c", "algebra")
	other.OwnerID = "owner-2"

	for _, item := range []*types.ContentItem{a, b, other} {
		_, err := s.InsertChunk(ctx, item)
		require.NoError(t, err)
	}

	items, err := s.ListChunks(ctx, "owner-1")
	require.NoError(t, err)
	assert.Len(t, items, 2)

	items, err = s.ListChunks(ctx, "owner-2")
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestGetItemNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetItem(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpsertItemOverwrites(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	item := testItem("x", "calculus")
	require.NoError(t, s.UpsertItem(ctx, item))

	item.Body = "revised body"
	item.Topic = "linear-algebra"
	require.NoError(t, s.UpsertItem(ctx, item))

	got, err := s.GetItem(ctx, "x")
	require.NoError(t, err)
	assert.Equal(t, "revised body", got.Body)
	assert.Equal(t, "linear-algebra", got.Topic)
}

func TestAttachEmbedding(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	item := testItem("x", "calculus")
	_, err := s.InsertChunk(ctx, item)
	require.NoError(t, err)

	vec := []float32{0.1, 0.2, 0.3}
	require.NoError(t, s.AttachEmbedding(ctx, "x", vec, "test-model"))

	got, err := s.GetItem(ctx, "x")
	require.NoError(t, err)
	assert.Equal(t, vec, got.Embedding)
	assert.Equal(t, 3, got.Dimension)
	assert.Equal(t, "test-model", got.Model)

	err = s.AttachEmbedding(ctx, "missing", vec, "test-model")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteItems(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		_, err := s.InsertChunk(ctx, testItem(id, "topic"))
		require.NoError(t, err)
	}

	count, err := s.DeleteItems(ctx, []string{"a", "c", "missing"})
	require.NoError(t, err)
	assert.Equal(t, 2, count, "count reflects rows actually removed")

	count, err = s.DeleteItems(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	_, err = s.GetItem(ctx, "b")
	assert.NoError(t, err)
}

// seedEmbedded inserts an item with an attached embedding
func seedEmbedded(t *testing.T, s *SQLiteStore, id, topic string, vec []float32) {
	t.Helper()
	ctx := context.Background()
	item := testItem(id, topic)
	_, err := s.InsertChunk(ctx, item)
	require.NoError(t, err)
	require.NoError(t, s.AttachEmbedding(ctx, id, vec, "test-model"))
}

func TestSearchVectorRanking(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// Query vector is (1,0); candidates have descending alignment
	seedEmbedded(t, s, "best", "calculus", []float32{1, 0})
	seedEmbedded(t, s, "good", "calculus", []float32{0.8, 0.6})
	seedEmbedded(t, s, "weak", "calculus", []float32{0.1, 0.995})

	hits, err := s.SearchVector(ctx, []float32{1, 0}, 10, nil, 0)
	require.NoError(t, err)
	require.Len(t, hits, 3)

	assert.Equal(t, "best", hits[0].ID)
	assert.Equal(t, "good", hits[1].ID)
	assert.Equal(t, "weak", hits[2].ID)
	assert.Greater(t, hits[0].Similarity, hits[1].Similarity)
}

func TestSearchVectorMinSimilarity(t *testing.T) {
	s := newTestStore(t)

	seedEmbedded(t, s, "close", "t", []float32{1, 0})
	seedEmbedded(t, s, "far", "t", []float32{0, 1})

	hits, err := s.SearchVector(context.Background(), []float32{1, 0}, 10, nil, 0.5)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "close", hits[0].ID)
}

func TestSearchVectorLimit(t *testing.T) {
	s := newTestStore(t)

	seedEmbedded(t, s, "a", "t", []float32{1, 0})
	seedEmbedded(t, s, "b", "t", []float32{0.9, 0.1})
	seedEmbedded(t, s, "c", "t", []float32{0.8, 0.2})

	hits, err := s.SearchVector(context.Background(), []float32{1, 0}, 2, nil, 0)
	require.NoError(t, err)
	assert.Len(t, hits, 2)
}

func TestSearchVectorFiltersAreConjunctive(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	calc := testItem("calc", "calculus")
	calc.Difficulty = types.DifficultyAdvanced
	_, err := s.InsertChunk(ctx, calc)
	require.NoError(t, err)
	require.NoError(t, s.AttachEmbedding(ctx, "calc", []float32{1, 0}, "m"))

	alg := testItem("alg", "algebra")
	alg.Difficulty = types.DifficultyAdvanced
	_, err = s.InsertChunk(ctx, alg)
	require.NoError(t, err)
	require.NoError(t, s.AttachEmbedding(ctx, "alg", []float32{1, 0}, "m"))

	calcIntro := testItem("calc-intro", "calculus")
	_, err = s.InsertChunk(ctx, calcIntro)
	require.NoError(t, err)
	require.NoError(t, s.AttachEmbedding(ctx, "calc-intro", []float32{1, 0}, "m"))

	// Both topic AND difficulty must match
	hits, err := s.SearchVector(ctx, []float32{1, 0}, 10,
		&Filters{Topic: "calculus", Difficulty: string(types.DifficultyAdvanced)}, 0)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "calc", hits[0].ID)
}

func TestSearchVectorSkipsDimensionMismatch(t *testing.T) {
	s := newTestStore(t)

	seedEmbedded(t, s, "two-dim", "t", []float32{1, 0})
	seedEmbedded(t, s, "three-dim", "t", []float32{1, 0, 0})

	hits, err := s.SearchVector(context.Background(), []float32{1, 0}, 10, nil, 0)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "two-dim", hits[0].ID)
}

func TestStatus(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.InsertChunk(ctx, testItem("a", "t"))
	require.NoError(t, err)
	seedEmbedded(t, s, "b", "t", []float32{1})

	status, err := s.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, status.TotalItems)
	assert.Equal(t, 1, status.EmbeddedItems)
	assert.Greater(t, status.DBSizeBytes, int64(0))
}
