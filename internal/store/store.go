package store

import (
	"context"
	"errors"

	"github.com/kbaldwin/studyrag/pkg/types"
)

var (
	// ErrNotFound is returned when a requested item doesn't exist
	ErrNotFound = errors.New("not found")
)

// Filters narrows search and listing results. All non-empty fields must
// match (AND semantics).
type Filters struct {
	Topic      string
	Subtopic   string
	Difficulty string
	Kind       string
	OwnerID    string
}

// Map returns the filters as a key/value map for response metadata
func (f *Filters) Map() map[string]string {
	if f == nil {
		return nil
	}
	m := make(map[string]string)
	if f.Topic != "" {
		m["topic"] = f.Topic
	}
	if f.Subtopic != "" {
		m["subtopic"] = f.Subtopic
	}
	if f.Difficulty != "" {
		m["difficulty"] = f.Difficulty
	}
	if f.Kind != "" {
		m["kind"] = f.Kind
	}
	if f.OwnerID != "" {
		m["owner_id"] = f.OwnerID
	}
	if len(m) == 0 {
		return nil
	}
	return m
}

// VectorHit is one row from a vector similarity search
type VectorHit struct {
	ID         string
	Similarity float64
}

// Status contains statistics about the content store
type Status struct {
	TotalItems    int
	EmbeddedItems int
	DBSizeBytes   int64
}

// Store defines the persistence interface for content items and embeddings
type Store interface {
	// Ingestion surface
	InsertChunk(ctx context.Context, item *types.ContentItem) (string, error)
	ListChunks(ctx context.Context, ownerID string) ([]*types.ContentItem, error)

	// Item operations
	GetItem(ctx context.Context, id string) (*types.ContentItem, error)
	UpsertItem(ctx context.Context, item *types.ContentItem) error
	AttachEmbedding(ctx context.Context, id string, vector []float32, model string) error
	DeleteItems(ctx context.Context, ids []string) (int, error)

	// Search
	SearchVector(ctx context.Context, vector []float32, limit int, filters *Filters, minSimilarity float64) ([]VectorHit, error)

	// Stats
	Status(ctx context.Context) (*Status, error)

	Close() error
}
