package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kbaldwin/studyrag/pkg/types"
)

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db *sql.DB
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// SQLite benefits from a single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// NewSQLiteStore creates a new SQLite store instance
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const itemColumns = `id, owner_id, title, body, topic, subtopic, difficulty, kind,
	source_type, source_ref, metadata, embedding, dimension, model, created_at, updated_at`

// InsertChunk persists a raw content record pushed by an ingestion
// collaborator, assigning an id when the caller did not provide one
func (s *SQLiteStore) InsertChunk(ctx context.Context, item *types.ContentItem) (string, error) {
	if err := item.ValidateContent(); err != nil {
		return "", err
	}

	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now()
	}
	item.UpdatedAt = item.CreatedAt

	if err := s.UpsertItem(ctx, item); err != nil {
		return "", err
	}
	return item.ID, nil
}

// ListChunks returns all content records for an owner
func (s *SQLiteStore) ListChunks(ctx context.Context, ownerID string) ([]*types.ContentItem, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+itemColumns+" FROM content_items WHERE owner_id = ? ORDER BY created_at", ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list chunks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var items []*types.ContentItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// GetItem retrieves a content item by id
func (s *SQLiteStore) GetItem(ctx context.Context, id string) (*types.ContentItem, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+itemColumns+" FROM content_items WHERE id = ?", id)

	item, err := scanItem(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return item, nil
}

// UpsertItem inserts or fully replaces a content item
func (s *SQLiteStore) UpsertItem(ctx context.Context, item *types.ContentItem) error {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	now := time.Now()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	item.UpdatedAt = now

	metadata, err := json.Marshal(orEmpty(item.Metadata))
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	var embedding []byte
	if len(item.Embedding) > 0 {
		embedding = serializeVector(item.Embedding)
		item.Dimension = len(item.Embedding)
	}

	query := `
		INSERT INTO content_items (` + itemColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			owner_id = excluded.owner_id,
			title = excluded.title,
			body = excluded.body,
			topic = excluded.topic,
			subtopic = excluded.subtopic,
			difficulty = excluded.difficulty,
			kind = excluded.kind,
			source_type = excluded.source_type,
			source_ref = excluded.source_ref,
			metadata = excluded.metadata,
			embedding = excluded.embedding,
			dimension = excluded.dimension,
			model = excluded.model,
			updated_at = excluded.updated_at
	`
	_, err = s.db.ExecContext(ctx, query,
		item.ID, item.OwnerID, item.Title, item.Body, item.Topic, item.Subtopic,
		string(item.Difficulty), string(item.Kind),
		item.Source.SourceType, item.Source.Locator,
		string(metadata), embedding, item.Dimension, item.Model,
		item.CreatedAt, item.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert item: %w", err)
	}
	return nil
}

// AttachEmbedding stores the embedding vector for an existing item
func (s *SQLiteStore) AttachEmbedding(ctx context.Context, id string, vector []float32, model string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE content_items
		SET embedding = ?, dimension = ?, model = ?, updated_at = ?
		WHERE id = ?`,
		serializeVector(vector), len(vector), model, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to attach embedding: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteItems removes one or more items, returning the count removed
func (s *SQLiteStore) DeleteItems(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]

	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	result, err := s.db.ExecContext(ctx,
		"DELETE FROM content_items WHERE id IN ("+placeholders+")", args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete items: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(affected), nil
}

// Status returns statistics about the content store
func (s *SQLiteStore) Status(ctx context.Context) (*Status, error) {
	status := &Status{}

	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*), COUNT(embedding) FROM content_items").
		Scan(&status.TotalItems, &status.EmbeddedItems); err != nil {
		return nil, fmt.Errorf("failed to count items: %w", err)
	}

	var pageCount, pageSize int64
	if err := s.db.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount); err == nil {
		if err := s.db.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize); err == nil {
			status.DBSizeBytes = pageCount * pageSize
		}
	}

	return status, nil
}

// rowScanner is implemented by both *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanItem reads one content_items row into a ContentItem
func scanItem(row rowScanner) (*types.ContentItem, error) {
	var (
		item       types.ContentItem
		difficulty string
		kind       string
		metadata   string
		embedding  []byte
	)

	err := row.Scan(
		&item.ID, &item.OwnerID, &item.Title, &item.Body, &item.Topic, &item.Subtopic,
		&difficulty, &kind,
		&item.Source.SourceType, &item.Source.Locator,
		&metadata, &embedding, &item.Dimension, &item.Model,
		&item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return nil, err
	}

	item.Difficulty = types.Difficulty(difficulty)
	item.Kind = types.ContentKind(kind)

	if metadata != "" && metadata != "{}" {
		if err := json.Unmarshal([]byte(metadata), &item.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}

	if len(embedding) > 0 {
		item.Embedding = deserializeVector(embedding)
	}

	return &item, nil
}

// orEmpty never marshals a nil map as JSON null
func orEmpty(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}
