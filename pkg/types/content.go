package types

import (
	"errors"
	"time"
)

// ContentKind represents the type of study content
type ContentKind string

const (
	KindExplanation ContentKind = "explanation"
	KindExample     ContentKind = "example"
	KindExercise    ContentKind = "exercise"
	KindDefinition  ContentKind = "definition"
	KindReference   ContentKind = "reference"
	KindNote        ContentKind = "note"
)

// Difficulty represents the difficulty tier of a content item
type Difficulty string

const (
	DifficultyIntro        Difficulty = "intro"
	DifficultyIntermediate Difficulty = "intermediate"
	DifficultyAdvanced     Difficulty = "advanced"
)

// Provenance identifies where a content item came from
type Provenance struct {
	SourceType string // "upload", "ocr", "curated", "web", ...
	Locator    string // File path, URL, or external identifier
}

// ContentItem represents a unit of indexable content with metadata and
// an optional embedding vector
type ContentItem struct {
	// Identification
	ID      string // Caller- or system-assigned unique identifier
	OwnerID string // Owning user or collection, empty for shared content

	// Content
	Title string
	Body  string

	// Classification
	Topic      string
	Subtopic   string // Optional
	Difficulty Difficulty
	Kind       ContentKind

	// Origin
	Source Provenance

	// Embedding is nil until the item has been indexed
	Embedding []float32
	Dimension int
	Model     string // Embedding model used, empty until indexed

	// Metadata is an open key/value bag persisted alongside the item
	Metadata map[string]string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ValidateContent checks that the item carries indexable text
func (c *ContentItem) ValidateContent() error {
	if c.Body == "" {
		return errors.New("content body cannot be empty")
	}
	return nil
}

// ValidateKind checks if the content kind is valid
func (c *ContentItem) ValidateKind() error {
	switch c.Kind {
	case KindExplanation, KindExample, KindExercise, KindDefinition, KindReference, KindNote:
		return nil
	case "":
		return nil // Kind is optional at ingestion time
	default:
		return errors.New("invalid content kind")
	}
}

// Validate performs comprehensive validation of the content item
func (c *ContentItem) Validate() error {
	if err := c.ValidateContent(); err != nil {
		return err
	}

	if err := c.ValidateKind(); err != nil {
		return err
	}

	if c.Embedding != nil && c.Dimension != len(c.Embedding) {
		return errors.New("embedding dimension mismatch")
	}

	return nil
}

// HasEmbedding reports whether the item has been indexed
func (c *ContentItem) HasEmbedding() bool {
	return len(c.Embedding) > 0
}
