package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kbaldwin/studyrag/internal/retriever"
	"github.com/kbaldwin/studyrag/internal/store"
	"github.com/kbaldwin/studyrag/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams = -32602 // Invalid method parameters
	ErrorCodeInternalError = -32603 // Internal JSON-RPC error
	ErrorCodeNotFound      = -32001 // Referenced content item does not exist
	ErrorCodeEmptyQuery    = -32004 // Query parameter is empty
)

// contentItemInput is the wire shape of an item in index_content requests
type contentItemInput struct {
	ID         string            `json:"id"`
	OwnerID    string            `json:"owner_id"`
	Title      string            `json:"title"`
	Body       string            `json:"body"`
	Topic      string            `json:"topic"`
	Subtopic   string            `json:"subtopic"`
	Difficulty string            `json:"difficulty"`
	Kind       string            `json:"kind"`
	SourceType string            `json:"source_type"`
	SourceRef  string            `json:"source_ref"`
	Metadata   map[string]string `json:"metadata"`
}

func (in *contentItemInput) toItem() *types.ContentItem {
	return &types.ContentItem{
		ID:         in.ID,
		OwnerID:    in.OwnerID,
		Title:      in.Title,
		Body:       in.Body,
		Topic:      in.Topic,
		Subtopic:   in.Subtopic,
		Difficulty: types.Difficulty(in.Difficulty),
		Kind:       types.ContentKind(in.Kind),
		Source: types.Provenance{
			SourceType: in.SourceType,
			Locator:    in.SourceRef,
		},
		Metadata: in.Metadata,
	}
}

// handleIndexContent handles the index_content tool invocation
func (s *Server) handleIndexContent(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	var inputs []contentItemInput
	if err := decodeParam(args["items"], &inputs); err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid items parameter", map[string]interface{}{
			"param":  "items",
			"reason": err.Error(),
		})
	}
	if len(inputs) == 0 {
		return nil, newMCPError(ErrorCodeInvalidParams, "items parameter is required and cannot be empty", map[string]interface{}{
			"param":  "items",
			"reason": "missing or empty",
		})
	}

	items := make([]*types.ContentItem, len(inputs))
	for i := range inputs {
		items[i] = inputs[i].toItem()
	}

	stats, err := s.engine.Index(ctx, items)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "indexing failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"indexed":     stats.Successful,
		"failed":      stats.Failed,
		"duration_ms": stats.Duration.Milliseconds(),
	}
	if len(stats.Errors) > 0 {
		errorCount := len(stats.Errors)
		if errorCount > 5 {
			response["errors"] = stats.Errors[:5]
			response["error_count"] = errorCount
		} else {
			response["errors"] = stats.Errors
		}
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleSearchContent handles the search_content tool invocation
func (s *Server) handleSearchContent(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	query, ok := args["query"].(string)
	if !ok || query == "" {
		return nil, newMCPError(ErrorCodeEmptyQuery, "query parameter is required and cannot be empty", map[string]interface{}{
			"param":  "query",
			"reason": "missing or empty",
		})
	}

	limit := getIntDefault(args, "limit", retriever.DefaultSearchLimit)
	if limit < 1 || limit > retriever.MaxSearchLimit {
		return nil, newMCPError(ErrorCodeInvalidParams, "limit must be between 1 and 100", map[string]interface{}{
			"param": "limit",
			"value": limit,
		})
	}

	minSim := getFloatDefault(args, "min_similarity", 0)
	if minSim < 0 || minSim > 1 {
		return nil, newMCPError(ErrorCodeInvalidParams, "min_similarity must be between 0.0 and 1.0", map[string]interface{}{
			"param": "min_similarity",
			"value": minSim,
		})
	}

	req := retriever.SearchRequest{
		Query:         query,
		Limit:         limit,
		MinSimilarity: minSim,
		SkipCache:     getBoolDefault(args, "skip_cache", false),
		Filters:       parseFilters(args["filters"]),
	}

	resp, err := s.engine.Search(ctx, req)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "search failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	results := make([]map[string]interface{}, 0, len(resp.Results))
	for _, r := range resp.Results {
		results = append(results, map[string]interface{}{
			"rank":       r.Rank,
			"similarity": r.SimilarityScore,
			"item":       formatItem(r.Content, false),
		})
	}

	response := map[string]interface{}{
		"query":       resp.Query,
		"total_found": resp.TotalFound,
		"results":     results,
		"search_ms":   resp.SearchDuration.Milliseconds(),
		"embed_ms":    resp.EmbedDuration.Milliseconds(),
	}
	if len(resp.FiltersApplied) > 0 {
		response["filters_applied"] = resp.FiltersApplied
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleUpdateContent handles the update_content tool invocation
func (s *Server) handleUpdateContent(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	id, ok := args["id"].(string)
	if !ok || id == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "id parameter is required", map[string]interface{}{
			"param":  "id",
			"reason": "missing or empty",
		})
	}

	fields := retriever.UpdateFields{
		Title:      optionalString(args, "title"),
		Body:       optionalString(args, "body"),
		Topic:      optionalString(args, "topic"),
		Subtopic:   optionalString(args, "subtopic"),
		Difficulty: optionalString(args, "difficulty"),
		Kind:       optionalString(args, "kind"),
	}
	if meta, ok := args["metadata"].(map[string]interface{}); ok {
		fields.Metadata = make(map[string]string, len(meta))
		for k, v := range meta {
			fields.Metadata[k] = fmt.Sprintf("%v", v)
		}
	}

	item, err := s.engine.Update(ctx, id, fields)
	if errors.Is(err, store.ErrNotFound) {
		return nil, newMCPError(ErrorCodeNotFound, "content item not found", map[string]interface{}{
			"id": id,
		})
	}
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "update failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"updated": true,
		"item":    formatItem(item, true),
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleDeleteContent handles the delete_content tool invocation
func (s *Server) handleDeleteContent(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	var ids []string
	if err := decodeParam(args["ids"], &ids); err != nil || len(ids) == 0 {
		return nil, newMCPError(ErrorCodeInvalidParams, "ids parameter is required and cannot be empty", map[string]interface{}{
			"param":  "ids",
			"reason": "missing or empty",
		})
	}

	count, err := s.engine.Delete(ctx, ids)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "delete failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"deleted":   count,
		"requested": len(ids),
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleListContent handles the list_content tool invocation
func (s *Server) handleListContent(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		args = map[string]interface{}{}
	}

	ownerID := getStringDefault(args, "owner_id", "")
	limit := getIntDefault(args, "limit", 100)
	if limit < 1 || limit > 500 {
		return nil, newMCPError(ErrorCodeInvalidParams, "limit must be between 1 and 500", map[string]interface{}{
			"param": "limit",
			"value": limit,
		})
	}

	items, err := s.store.ListChunks(ctx, ownerID)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "listing failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
	if len(items) > limit {
		items = items[:limit]
	}

	formatted := make([]map[string]interface{}, 0, len(items))
	for _, item := range items {
		formatted = append(formatted, formatItem(item, false))
	}

	response := map[string]interface{}{
		"count": len(formatted),
		"items": formatted,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleEmbedPending handles the embed_pending tool invocation
func (s *Server) handleEmbedPending(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		args = map[string]interface{}{}
	}

	stats, err := s.engine.EmbedPending(ctx, getStringDefault(args, "owner_id", ""))
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "embedding failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"embedded":    stats.Successful,
		"failed":      stats.Failed,
		"duration_ms": stats.Duration.Milliseconds(),
	}
	if len(stats.Errors) > 0 {
		response["errors"] = stats.Errors
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// prioritizeRequest is the wire shape of a prioritize_sources request
type prioritizeRequest struct {
	UserContent []struct {
		ID       string            `json:"id"`
		Title    string            `json:"title"`
		Priority float64           `json:"priority"`
		Metadata map[string]string `json:"metadata"`
	} `json:"user_content"`
	CuratedReferences []struct {
		ID        string            `json:"id"`
		Title     string            `json:"title"`
		Relevance float64           `json:"relevance"`
		Metadata  map[string]string `json:"metadata"`
	} `json:"curated_references"`
	KnowledgeEntries []struct {
		ID         string            `json:"id"`
		Title      string            `json:"title"`
		Similarity float64           `json:"similarity"`
		Metadata   map[string]string `json:"metadata"`
	} `json:"knowledge_entries"`
	GenericResults []struct {
		ID       string            `json:"id"`
		Title    string            `json:"title"`
		Score    float64           `json:"score"`
		Metadata map[string]string `json:"metadata"`
	} `json:"generic_results"`
	TopK int `json:"top_k"`
}

// handlePrioritizeSources handles the prioritize_sources tool invocation
func (s *Server) handlePrioritizeSources(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	var req prioritizeRequest
	if err := decodeParam(args, &req); err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid candidate lists", map[string]interface{}{
			"reason": err.Error(),
		})
	}

	user := make([]retriever.UserContent, len(req.UserContent))
	for i, c := range req.UserContent {
		user[i] = retriever.UserContent{ID: c.ID, Title: c.Title, Priority: c.Priority, Metadata: c.Metadata}
	}
	curated := make([]retriever.CuratedReference, len(req.CuratedReferences))
	for i, c := range req.CuratedReferences {
		curated[i] = retriever.CuratedReference{ID: c.ID, Title: c.Title, Relevance: c.Relevance, Metadata: c.Metadata}
	}
	knowledge := make([]retriever.KnowledgeEntry, len(req.KnowledgeEntries))
	for i, c := range req.KnowledgeEntries {
		knowledge[i] = retriever.KnowledgeEntry{ID: c.ID, Title: c.Title, Similarity: c.Similarity, Metadata: c.Metadata}
	}
	generic := make([]retriever.GenericResult, len(req.GenericResults))
	for i, c := range req.GenericResults {
		generic[i] = retriever.GenericResult{ID: c.ID, Title: c.Title, Score: c.Score, Metadata: c.Metadata}
	}

	ranked := retriever.Prioritize(user, curated, knowledge, generic, req.TopK)

	results := make([]map[string]interface{}, 0, len(ranked))
	for i, c := range ranked {
		entry := map[string]interface{}{
			"rank":  i + 1,
			"id":    c.ID,
			"title": c.Title,
			"tier":  c.Tier.String(),
			"score": c.Score,
		}
		if len(c.Metadata) > 0 {
			entry["metadata"] = c.Metadata
		}
		results = append(results, entry)
	}

	response := map[string]interface{}{
		"count":      len(results),
		"candidates": results,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleGetStatus handles the get_status tool invocation
func (s *Server) handleGetStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	status, err := s.engine.Status(ctx)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to get status", map[string]interface{}{
			"error": err.Error(),
		})
	}

	cacheStats := s.generator.Cache().Stats()
	response := map[string]interface{}{
		"total_items":    status.TotalItems,
		"embedded_items": status.EmbeddedItems,
		"db_size_mb":     fmt.Sprintf("%.2f", float64(status.DBSizeBytes)/(1024*1024)),
		"provider":       s.provider.Name(),
		"model":          s.provider.Model(),
		"embedding_cache": map[string]interface{}{
			"entries":     cacheStats.Entries,
			"max_entries": cacheStats.MaxEntries,
			"hits":        cacheStats.Hits,
			"misses":      cacheStats.Misses,
			"evictions":   cacheStats.Evictions,
			"expirations": cacheStats.Expirations,
		},
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// Helper functions

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// decodeParam re-marshals a loosely typed argument into a typed value
func decodeParam(raw interface{}, dst interface{}) error {
	if raw == nil {
		return nil
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dst)
}

// parseFilters extracts search filters from a raw argument map
func parseFilters(raw interface{}) *store.Filters {
	m, ok := raw.(map[string]interface{})
	if !ok || len(m) == 0 {
		return nil
	}

	f := &store.Filters{
		Topic:      getStringDefault(m, "topic", ""),
		Subtopic:   getStringDefault(m, "subtopic", ""),
		Difficulty: getStringDefault(m, "difficulty", ""),
		Kind:       getStringDefault(m, "kind", ""),
		OwnerID:    getStringDefault(m, "owner_id", ""),
	}
	if *f == (store.Filters{}) {
		return nil
	}
	return f
}

// formatItem renders a content item for a JSON response. The body is
// included only when full is set, to keep search results compact.
func formatItem(item *types.ContentItem, full bool) map[string]interface{} {
	if item == nil {
		return nil
	}

	out := map[string]interface{}{
		"id":    item.ID,
		"title": item.Title,
	}
	if full {
		out["body"] = item.Body
	} else {
		out["snippet"] = snippet(item.Body, 200)
	}
	if item.OwnerID != "" {
		out["owner_id"] = item.OwnerID
	}
	if item.Topic != "" {
		out["topic"] = item.Topic
	}
	if item.Subtopic != "" {
		out["subtopic"] = item.Subtopic
	}
	if item.Difficulty != "" {
		out["difficulty"] = string(item.Difficulty)
	}
	if item.Kind != "" {
		out["kind"] = string(item.Kind)
	}
	if item.Source.SourceType != "" {
		out["source_type"] = item.Source.SourceType
	}
	if item.Source.Locator != "" {
		out["source_ref"] = item.Source.Locator
	}
	if len(item.Metadata) > 0 {
		out["metadata"] = item.Metadata
	}
	if item.HasEmbedding() {
		out["embedded"] = true
		out["model"] = item.Model
	}
	if !item.UpdatedAt.IsZero() {
		out["updated_at"] = item.UpdatedAt.Format(time.RFC3339)
	}
	return out
}

// snippet truncates text at a rune boundary
func snippet(text string, max int) string {
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max]) + "..."
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getBoolDefault extracts a boolean parameter with a default value
func getBoolDefault(args map[string]interface{}, key string, defaultValue bool) bool {
	if val, ok := args[key].(bool); ok {
		return val
	}
	return defaultValue
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// getFloatDefault extracts a float parameter with a default value
func getFloatDefault(args map[string]interface{}, key string, defaultValue float64) float64 {
	if val, ok := args[key].(float64); ok {
		return val
	}
	return defaultValue
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok {
		return val
	}
	return defaultValue
}

// optionalString returns a pointer to the argument value when present
func optionalString(args map[string]interface{}, key string) *string {
	if val, ok := args[key].(string); ok {
		return &val
	}
	return nil
}
