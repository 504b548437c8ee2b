package store

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
)

// SearchVector performs vector similarity search using cosine similarity.
// Results are ordered by similarity descending and truncated to limit;
// hits below minSimilarity are dropped.
func (s *SQLiteStore) SearchVector(ctx context.Context, vector []float32, limit int, filters *Filters, minSimilarity float64) ([]VectorHit, error) {
	if VectorExtensionAvailable {
		return s.searchVectorOptimized(ctx, vector, limit, filters, minSimilarity)
	}
	return s.searchVectorFallback(ctx, vector, limit, filters, minSimilarity)
}

// searchVectorOptimized uses the sqlite-vec extension for SQL-based search.
// vec_distance_cosine returns distance (lower is better); similarity is
// 1 - distance to keep the API consistent with the Go fallback.
func (s *SQLiteStore) searchVectorOptimized(ctx context.Context, vector []float32, limit int, filters *Filters, minSimilarity float64) ([]VectorHit, error) {
	if limit <= 0 {
		return []VectorHit{}, nil
	}

	blob := serializeVector(vector)

	query := `
		SELECT id, 1.0 - vec_distance_cosine(embedding, ?) as similarity
		FROM content_items
		WHERE embedding IS NOT NULL
	`
	args := []interface{}{blob}
	query, args = applyFilters(query, args, filters)

	if minSimilarity > 0 {
		query += " AND (1.0 - vec_distance_cosine(embedding, ?)) >= ?"
		args = append(args, blob, minSimilarity)
	}

	query += " ORDER BY similarity DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute vector search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	hits := make([]VectorHit, 0, limit)
	for rows.Next() {
		var hit VectorHit
		if err := rows.Scan(&hit.ID, &hit.Similarity); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		hits = append(hits, hit)
	}
	return hits, rows.Err()
}

// searchVectorFallback computes cosine similarity in Go, used when the
// sqlite-vec extension is not available (purego builds)
func (s *SQLiteStore) searchVectorFallback(ctx context.Context, vector []float32, limit int, filters *Filters, minSimilarity float64) ([]VectorHit, error) {
	query := `
		SELECT id, embedding
		FROM content_items
		WHERE embedding IS NOT NULL
	`
	args := []interface{}{}
	query, args = applyFilters(query, args, filters)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query embeddings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var hits []VectorHit
	for rows.Next() {
		var id string
		var blob []byte
		if err := rows.Scan(&id, &blob); err != nil {
			return nil, err
		}

		candidate := deserializeVector(blob)
		if len(candidate) != len(vector) {
			continue // Dimension mismatch, skip
		}

		similarity := cosineSimilarity(vector, candidate)
		if minSimilarity > 0 && similarity < minSimilarity {
			continue
		}

		hits = append(hits, VectorHit{ID: id, Similarity: similarity})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(hits, func(i, j int) bool {
		return hits[i].Similarity > hits[j].Similarity
	})

	if limit <= 0 || limit > len(hits) {
		limit = len(hits)
	}
	return hits[:limit], nil
}

// applyFilters adds conjunctive WHERE clause filters
func applyFilters(query string, args []interface{}, filters *Filters) (string, []interface{}) {
	if filters == nil {
		return query, args
	}

	if filters.Topic != "" {
		query += " AND topic = ?"
		args = append(args, filters.Topic)
	}
	if filters.Subtopic != "" {
		query += " AND subtopic = ?"
		args = append(args, filters.Subtopic)
	}
	if filters.Difficulty != "" {
		query += " AND difficulty = ?"
		args = append(args, filters.Difficulty)
	}
	if filters.Kind != "" {
		query += " AND kind = ?"
		args = append(args, filters.Kind)
	}
	if filters.OwnerID != "" {
		query += " AND owner_id = ?"
		args = append(args, filters.OwnerID)
	}

	return query, args
}

// serializeVector converts a float32 slice to a byte blob (little-endian)
func serializeVector(vector []float32) []byte {
	blob := make([]byte, len(vector)*4)
	for i, v := range vector {
		binary.LittleEndian.PutUint32(blob[i*4:], math.Float32bits(v))
	}
	return blob
}

// deserializeVector converts a byte blob back to a float32 slice
func deserializeVector(blob []byte) []float32 {
	vector := make([]float32, len(blob)/4)
	for i := range vector {
		bits := binary.LittleEndian.Uint32(blob[i*4:])
		vector[i] = math.Float32frombits(bits)
	}
	return vector
}

// cosineSimilarity computes the cosine similarity between two vectors
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i] * b[i])
		normA += float64(a[i] * a[i])
		normB += float64(b[i] * b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}

// SerializeVector is an exported helper for testing
func SerializeVector(vector []float32) []byte {
	return serializeVector(vector)
}

// DeserializeVector is an exported helper for testing
func DeserializeVector(blob []byte) []float32 {
	return deserializeVector(blob)
}

// CosineSimilarity is an exported helper for testing
func CosineSimilarity(a, b []float32) float64 {
	return cosineSimilarity(a, b)
}
