package types

import "time"

// SearchResult represents a single search result with relevance information
type SearchResult struct {
	Content *ContentItem

	// Scoring
	SimilarityScore float64 // Cosine similarity in [-1, 1]
	Rank            int     // Position in result set (1-based)
}

// SearchResponse contains ranked search results and timing metadata
type SearchResponse struct {
	Query          string
	Results        []SearchResult
	TotalFound     int
	SearchDuration time.Duration
	EmbedDuration  time.Duration
	FiltersApplied map[string]string
}

// Validate checks if the search result is valid
func (sr *SearchResult) Validate() error {
	if sr.Content == nil {
		return ErrMissingContent
	}

	if sr.Rank < 1 {
		return ErrInvalidRank
	}

	if sr.SimilarityScore < -1 || sr.SimilarityScore > 1 {
		return ErrInvalidSimilarity
	}

	return nil
}
