package retriever

import (
	"sort"

	"github.com/kbaldwin/studyrag/pkg/types"
)

// UserContent is a candidate from the user's own content (highest tier).
// Priority is an explicit [0,1] ranking assigned by the owner.
type UserContent struct {
	ID       string
	Title    string
	Priority float64
	Metadata map[string]string
}

// CuratedReference is a candidate from curated reference material
type CuratedReference struct {
	ID        string
	Title     string
	Relevance float64
	Metadata  map[string]string
}

// KnowledgeEntry is a candidate from the indexed knowledge base, scored by
// retrieval similarity
type KnowledgeEntry struct {
	ID         string
	Title      string
	Similarity float64
	Metadata   map[string]string
}

// GenericResult is a candidate from generic web or uncategorized sources
// (lowest tier)
type GenericResult struct {
	ID       string
	Title    string
	Score    float64
	Metadata map[string]string
}

// DefaultGenericScore is used for generic results that carry no score
const DefaultGenericScore = 0.3

func (u UserContent) normalize() types.PrioritizedCandidate {
	return types.PrioritizedCandidate{
		ID: u.ID, Title: u.Title, Tier: types.TierFirstParty,
		Score: clampScore(u.Priority), Metadata: u.Metadata,
	}
}

func (c CuratedReference) normalize() types.PrioritizedCandidate {
	return types.PrioritizedCandidate{
		ID: c.ID, Title: c.Title, Tier: types.TierCurated,
		Score: clampScore(c.Relevance), Metadata: c.Metadata,
	}
}

func (k KnowledgeEntry) normalize() types.PrioritizedCandidate {
	return types.PrioritizedCandidate{
		ID: k.ID, Title: k.Title, Tier: types.TierKnowledge,
		Score: clampScore(k.Similarity), Metadata: k.Metadata,
	}
}

func (g GenericResult) normalize() types.PrioritizedCandidate {
	score := g.Score
	if score == 0 {
		score = DefaultGenericScore
	}
	return types.PrioritizedCandidate{
		ID: g.ID, Title: g.Title, Tier: types.TierGeneric,
		Score: clampScore(score), Metadata: g.Metadata,
	}
}

// Prioritize merges candidates from all four origin tiers into one ranked,
// deduplicated list. Ordering is lexicographic on (tier rank descending,
// score descending); equal keys preserve input order. Duplicates by id
// (falling back to title) keep the first, highest-priority occurrence.
// Malformed entries are skipped, never fatal. The result is truncated to
// topK when topK is positive.
func Prioritize(user []UserContent, curated []CuratedReference, knowledge []KnowledgeEntry, generic []GenericResult, topK int) []types.PrioritizedCandidate {
	candidates := make([]types.PrioritizedCandidate, 0,
		len(user)+len(curated)+len(knowledge)+len(generic))

	for _, u := range user {
		candidates = appendValid(candidates, u.normalize())
	}
	for _, c := range curated {
		candidates = appendValid(candidates, c.normalize())
	}
	for _, k := range knowledge {
		candidates = appendValid(candidates, k.normalize())
	}
	for _, g := range generic {
		candidates = appendValid(candidates, g.normalize())
	}

	// Stable sort preserves input order on ties
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Tier != candidates[j].Tier {
			return candidates[i].Tier > candidates[j].Tier
		}
		return candidates[i].Score > candidates[j].Score
	})

	deduped := dedupeCandidates(candidates)

	if topK > 0 && topK < len(deduped) {
		deduped = deduped[:topK]
	}
	return deduped
}

// appendValid appends a candidate unless it is malformed
func appendValid(list []types.PrioritizedCandidate, c types.PrioritizedCandidate) []types.PrioritizedCandidate {
	if err := c.Validate(); err != nil {
		return list
	}
	return append(list, c)
}

// dedupeCandidates keeps the first occurrence per id, falling back to title
// for candidates without an id
func dedupeCandidates(candidates []types.PrioritizedCandidate) []types.PrioritizedCandidate {
	seen := make(map[string]bool, len(candidates))
	result := make([]types.PrioritizedCandidate, 0, len(candidates))

	for _, c := range candidates {
		key := c.ID
		if key == "" {
			key = "title:" + c.Title
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		result = append(result, c)
	}

	return result
}

// clampScore bounds a score to [0, 1]
func clampScore(s float64) float64 {
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}
