package types

import "errors"

// Domain errors for type validation
var (
	// Search result errors
	ErrMissingContent    = errors.New("content item is required")
	ErrInvalidRank       = errors.New("rank must be >= 1")
	ErrInvalidSimilarity = errors.New("similarity score must be between -1 and 1")

	// Prioritization errors
	ErrUnidentifiedCandidate = errors.New("candidate needs an id or title")
	ErrInvalidScore          = errors.New("score must be between 0 and 1")
)
