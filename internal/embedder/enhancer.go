package embedder

import (
	"strings"

	"github.com/kbaldwin/studyrag/pkg/types"
)

// EnhanceContent expands a content item into a single text blob optimized
// for embedding quality. Title, classification, and body are pipe-joined so
// topic and kind terms contribute to the vector alongside the body text.
// The output is deterministic for a given item.
func EnhanceContent(item *types.ContentItem) string {
	parts := make([]string, 0, 5)

	if item.Title != "" {
		parts = append(parts, item.Title)
	}
	if item.Topic != "" {
		parts = append(parts, item.Topic)
	}
	if item.Subtopic != "" {
		parts = append(parts, item.Subtopic)
	}
	if item.Body != "" {
		parts = append(parts, item.Body)
	}
	if item.Kind != "" {
		parts = append(parts, string(item.Kind))
	}

	return strings.Join(parts, " | ")
}
