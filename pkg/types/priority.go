package types

// OriginTier is a fixed-priority category of a content candidate.
// Higher values always rank above lower values regardless of score.
type OriginTier int

const (
	TierGeneric    OriginTier = 1 // Generic web or uncategorized results
	TierKnowledge  OriginTier = 2 // Indexed knowledge base
	TierCurated    OriginTier = 3 // Curated reference material
	TierFirstParty OriginTier = 4 // The user's own content
)

// String returns the tier name for logging and serialization
func (t OriginTier) String() string {
	switch t {
	case TierFirstParty:
		return "first_party"
	case TierCurated:
		return "curated_reference"
	case TierKnowledge:
		return "knowledge_base"
	case TierGeneric:
		return "generic"
	default:
		return "unknown"
	}
}

// PrioritizedCandidate is the normalized shape every origin tier reduces to
// before merging and ranking
type PrioritizedCandidate struct {
	ID       string
	Title    string
	Tier     OriginTier
	Score    float64 // Normalized to [0, 1]
	Metadata map[string]string
}

// Validate checks if the candidate is well-formed
func (p *PrioritizedCandidate) Validate() error {
	if p.ID == "" && p.Title == "" {
		return ErrUnidentifiedCandidate
	}
	if p.Score < 0 || p.Score > 1 {
		return ErrInvalidScore
	}
	return nil
}
