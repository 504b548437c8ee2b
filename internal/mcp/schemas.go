package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// filterProperties is the shared schema for search and list filters
func filterProperties() map[string]interface{} {
	return map[string]interface{}{
		"topic": map[string]interface{}{
			"type":        "string",
			"description": "Filter by topic (exact match)",
		},
		"subtopic": map[string]interface{}{
			"type":        "string",
			"description": "Filter by subtopic (exact match)",
		},
		"difficulty": map[string]interface{}{
			"type":        "string",
			"description": "Filter by difficulty level",
			"enum":        []string{"intro", "intermediate", "advanced"},
		},
		"kind": map[string]interface{}{
			"type":        "string",
			"description": "Filter by content kind",
			"enum":        []string{"explanation", "example", "exercise", "definition", "reference", "note"},
		},
		"owner_id": map[string]interface{}{
			"type":        "string",
			"description": "Filter by owning user or collection",
		},
	}
}

// candidateItems builds the schema for one prioritizer input tier
func candidateItems(scoreField, scoreDesc string) map[string]interface{} {
	return map[string]interface{}{
		"type": "array",
		"items": map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"id":    map[string]interface{}{"type": "string"},
				"title": map[string]interface{}{"type": "string"},
				scoreField: map[string]interface{}{
					"type":        "number",
					"description": scoreDesc,
					"minimum":     0.0,
					"maximum":     1.0,
				},
				"metadata": map[string]interface{}{"type": "object"},
			},
		},
	}
}

// indexContentTool returns the tool definition for index_content
func indexContentTool() mcp.Tool {
	return mcp.Tool{
		Name:        "index_content",
		Description: "Embed and index study content items to make them searchable",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"items": map[string]interface{}{
					"type":        "array",
					"description": "Content items to index",
					"items": map[string]interface{}{
						"type": "object",
						"properties": map[string]interface{}{
							"id":          map[string]interface{}{"type": "string", "description": "Unique identifier; generated when omitted"},
							"owner_id":    map[string]interface{}{"type": "string"},
							"title":       map[string]interface{}{"type": "string"},
							"body":        map[string]interface{}{"type": "string", "description": "The content text (required)"},
							"topic":       map[string]interface{}{"type": "string"},
							"subtopic":    map[string]interface{}{"type": "string"},
							"difficulty":  map[string]interface{}{"type": "string", "enum": []string{"intro", "intermediate", "advanced"}},
							"kind":        map[string]interface{}{"type": "string", "enum": []string{"explanation", "example", "exercise", "definition", "reference", "note"}},
							"source_type": map[string]interface{}{"type": "string", "description": "Origin of the content (upload, ocr, curated, web)"},
							"source_ref":  map[string]interface{}{"type": "string", "description": "File path, URL, or external identifier"},
							"metadata":    map[string]interface{}{"type": "object", "description": "Open key/value metadata"},
						},
						"required": []string{"body"},
					},
				},
			},
			Required: []string{"items"},
		},
	}
}

// searchContentTool returns the tool definition for search_content
func searchContentTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search_content",
		Description: "Search indexed study content with a natural language query",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Search query",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of results to return (1-100)",
					"default":     10,
					"minimum":     1,
					"maximum":     100,
				},
				"min_similarity": map[string]interface{}{
					"type":        "number",
					"description": "Minimum cosine similarity threshold (0.0-1.0)",
					"minimum":     0.0,
					"maximum":     1.0,
				},
				"skip_cache": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, bypass the query response cache",
					"default":     false,
				},
				"filters": map[string]interface{}{
					"type":        "object",
					"description": "Optional filters to narrow search",
					"properties":  filterProperties(),
				},
			},
			Required: []string{"query"},
		},
	}
}

// updateContentTool returns the tool definition for update_content
func updateContentTool() mcp.Tool {
	return mcp.Tool{
		Name:        "update_content",
		Description: "Update fields of an indexed content item; title or body changes trigger re-embedding",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"id": map[string]interface{}{
					"type":        "string",
					"description": "Identifier of the item to update",
				},
				"title":      map[string]interface{}{"type": "string"},
				"body":       map[string]interface{}{"type": "string"},
				"topic":      map[string]interface{}{"type": "string"},
				"subtopic":   map[string]interface{}{"type": "string"},
				"difficulty": map[string]interface{}{"type": "string", "enum": []string{"intro", "intermediate", "advanced"}},
				"kind":       map[string]interface{}{"type": "string", "enum": []string{"explanation", "example", "exercise", "definition", "reference", "note"}},
				"metadata": map[string]interface{}{
					"type":        "object",
					"description": "Metadata keys to merge into the stored item",
				},
			},
			Required: []string{"id"},
		},
	}
}

// deleteContentTool returns the tool definition for delete_content
func deleteContentTool() mcp.Tool {
	return mcp.Tool{
		Name:        "delete_content",
		Description: "Delete indexed content items by id",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"ids": map[string]interface{}{
					"type":        "array",
					"description": "Identifiers of the items to delete",
					"items":       map[string]interface{}{"type": "string"},
				},
			},
			Required: []string{"ids"},
		},
	}
}

// listContentTool returns the tool definition for list_content
func listContentTool() mcp.Tool {
	return mcp.Tool{
		Name:        "list_content",
		Description: "List stored content items, optionally scoped to an owner",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"owner_id": map[string]interface{}{
					"type":        "string",
					"description": "Restrict listing to this owner",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of items to return (1-500)",
					"default":     100,
					"minimum":     1,
					"maximum":     500,
				},
			},
		},
	}
}

// embedPendingTool returns the tool definition for embed_pending
func embedPendingTool() mcp.Tool {
	return mcp.Tool{
		Name:        "embed_pending",
		Description: "Embed stored content items that do not yet carry a vector",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"owner_id": map[string]interface{}{
					"type":        "string",
					"description": "Restrict to chunks owned by this user or collection",
				},
			},
		},
	}
}

// prioritizeSourcesTool returns the tool definition for prioritize_sources
func prioritizeSourcesTool() mcp.Tool {
	return mcp.Tool{
		Name:        "prioritize_sources",
		Description: "Merge candidate sources from multiple origin tiers into one ranked, deduplicated list",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"user_content":       candidateItems("priority", "Owner-assigned priority"),
				"curated_references": candidateItems("relevance", "Curation relevance score"),
				"knowledge_entries":  candidateItems("similarity", "Retrieval similarity score"),
				"generic_results":    candidateItems("score", "Generic relevance score"),
				"top_k": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of candidates to return; 0 means all",
					"default":     0,
					"minimum":     0,
				},
			},
		},
	}
}

// getStatusTool returns the tool definition for get_status
func getStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_status",
		Description: "Query index statistics: item counts, embedded counts, and database size",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}
