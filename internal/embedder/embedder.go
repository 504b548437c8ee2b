package embedder

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"
)

// Common errors
var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrProviderFailed    = errors.New("embedding provider failed")
	ErrUnsupportedModel  = errors.New("unsupported model")
	ErrEmptyText         = errors.New("text cannot be empty")
	ErrNoProviderEnabled = errors.New("no embedding provider configured")
)

// Provider defines a single fallible remote embedding call.
// Implementations must be idempotent for identical (text, model) inputs;
// the cache relies on this for correctness.
type Provider interface {
	// Embed generates one embedding vector for the given text
	Embed(ctx context.Context, text, model string) ([]float32, error)

	// Dimension returns the embedding dimension for this provider
	Dimension() int

	// Name returns the provider name
	Name() string

	// Model returns the default model name
	Model() string

	// Close releases any resources held by the provider
	Close() error
}

// EmbeddingResult is the per-text outcome of a batch generation.
// Vector is non-empty exactly when Err is nil.
type EmbeddingResult struct {
	Text      string
	Vector    []float32
	Model     string
	CreatedAt time.Time
	Duration  time.Duration
	CacheHit  bool
	Err       error
}

// BatchResult aggregates the outcomes of one GenerateBatch call.
// Results is index-aligned with the input texts.
type BatchResult struct {
	Results        []EmbeddingResult
	TotalProcessed int
	TotalDuration  time.Duration
	Errors         []string
	CacheHits      int
	RemoteCalls    int
}

// ValidateText rejects deterministically invalid input before any remote
// call or retry is attempted
func ValidateText(text string) error {
	if text == "" {
		return ErrEmptyText
	}
	return nil
}

// NormalizeVector normalizes a vector to unit length (for cosine similarity)
func NormalizeVector(v []float32) []float32 {
	var sum float64
	for _, val := range v {
		sum += float64(val * val)
	}

	if sum == 0 {
		return v
	}

	norm := float32(math.Sqrt(sum))
	result := make([]float32, len(v))
	for i, val := range v {
		result[i] = val / norm
	}

	return result
}

// wrapProviderErr annotates a provider failure with retry context
func wrapProviderErr(err error, attempts int) error {
	return fmt.Errorf("%w after %d attempts: %v", ErrProviderFailed, attempts, err)
}
