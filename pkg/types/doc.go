// Package types provides shared type definitions for the studyrag retrieval engine.
//
// This package defines domain types used across multiple components of studyrag,
// including content items, search results, and source-prioritization candidates.
//
// # Core Types
//
// ContentItem represents a unit of indexable study content with its metadata
// and (once generated) embedding vector:
//
//	item := &types.ContentItem{
//	    Title:      "Integration by parts",
//	    Body:       explanation,
//	    Topic:      "calculus",
//	    Difficulty: types.DifficultyIntermediate,
//	    Kind:       types.KindExplanation,
//	}
//
// SearchResult pairs a content item with its similarity score and rank:
//
//	result := &types.SearchResult{
//	    Content:         item,
//	    SimilarityScore: 0.92,
//	    Rank:            1,
//	}
//
// # Source Prioritization
//
// Candidates from different origins carry a fixed-priority OriginTier.
// First-party user content always outranks curated references, which outrank
// knowledge-base entries, which outrank generic results, regardless of score:
//
//	types.TierFirstParty > types.TierCurated > types.TierKnowledge > types.TierGeneric
//
// # Validation
//
// Domain types implement validation methods to ensure data integrity:
//
//	if err := item.Validate(); err != nil {
//	    log.Fatal(err)
//	}
//
// Similarity scores are cosine similarities in [-1, 1]; prioritization scores
// are normalized to [0, 1].
package types
