package mcp

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mark3labs/mcp-go/server"

	"github.com/kbaldwin/studyrag/internal/config"
	"github.com/kbaldwin/studyrag/internal/embedcache"
	"github.com/kbaldwin/studyrag/internal/embedder"
	"github.com/kbaldwin/studyrag/internal/retriever"
	"github.com/kbaldwin/studyrag/internal/store"
)

const (
	// ServerName is the MCP server name
	ServerName = "studyrag"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
)

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp       *server.MCPServer
	store     store.Store
	provider  embedder.Provider
	generator *embedder.BatchGenerator
	engine    *retriever.Engine
}

// NewServer wires storage, the embedding provider, and the retrieval engine
// from configuration and registers the MCP tools
func NewServer(cfg *config.Config) (*Server, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	st, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	provider, err := newProvider(cfg)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	cache := embedcache.New(cfg.Cache.MaxEntries, cfg.Cache.TTL)
	generator := embedder.NewBatchGenerator(provider, cache, embedder.BatchConfig{
		MaxBatchSize:    cfg.Batch.MaxBatchSize,
		RateLimitDelay:  cfg.Batch.RateLimitDelay,
		InterBatchDelay: cfg.Batch.InterBatchDelay,
		RequestTimeout:  cfg.Batch.RequestTimeout,
		Retry: embedder.RetryConfig{
			MaxRetries: cfg.Retry.MaxRetries,
			BaseDelay:  cfg.Retry.BaseDelay,
			MaxDelay:   cfg.Retry.MaxDelay,
		},
	})

	engine := retriever.New(st, generator, retriever.Options{
		DefaultMinSimilarity: cfg.Search.MinSimilarity,
		QueryCacheSize:       cfg.Search.CacheSize,
		QueryCacheTTL:        cfg.Search.CacheTTL,
	})

	mcpServer := server.NewMCPServer(
		ServerName,
		ServerVersion,
	)

	s := &Server{
		mcp:       mcpServer,
		store:     st,
		provider:  provider,
		generator: generator,
		engine:    engine,
	}
	s.registerTools()

	return s, nil
}

// newProvider builds the embedding provider: explicit configuration wins,
// otherwise the environment is probed for API keys
func newProvider(cfg *config.Config) (embedder.Provider, error) {
	if cfg.Embedding.Provider != "" {
		return embedder.New(embedder.Config{
			Provider: cfg.Embedding.Provider,
			APIKey:   cfg.Embedding.APIKey,
			Model:    cfg.Embedding.Model,
		})
	}
	return embedder.NewFromEnv()
}

// Serve starts the MCP server on stdio and blocks until shutdown
func (s *Server) Serve(ctx context.Context) error {
	defer s.Close()
	return server.ServeStdio(s.mcp)
}

// Close releases the server's resources
func (s *Server) Close() {
	_ = s.provider.Close()
	_ = s.store.Close()
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	s.mcp.AddTool(indexContentTool(), s.handleIndexContent)
	s.mcp.AddTool(searchContentTool(), s.handleSearchContent)
	s.mcp.AddTool(updateContentTool(), s.handleUpdateContent)
	s.mcp.AddTool(deleteContentTool(), s.handleDeleteContent)
	s.mcp.AddTool(listContentTool(), s.handleListContent)
	s.mcp.AddTool(embedPendingTool(), s.handleEmbedPending)
	s.mcp.AddTool(prioritizeSourcesTool(), s.handlePrioritizeSources)
	s.mcp.AddTool(getStatusTool(), s.handleGetStatus)
}
