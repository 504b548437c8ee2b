package embedder

import (
	"fmt"
	"os"
	"strings"
)

// Config holds provider configuration
type Config struct {
	Provider string
	APIKey   string
	Model    string
}

// New creates a provider with explicit configuration. A non-empty Model
// replaces the provider's default model.
func New(cfg Config) (Provider, error) {
	provider := strings.ToLower(cfg.Provider)
	switch provider {
	case ProviderOpenAI:
		p, err := NewOpenAIProvider(cfg.APIKey)
		if err != nil {
			return nil, err
		}
		if cfg.Model != "" {
			p.model = cfg.Model
		}
		return p, nil
	case ProviderJina:
		p, err := NewJinaProvider(cfg.APIKey)
		if err != nil {
			return nil, err
		}
		if cfg.Model != "" {
			p.model = cfg.Model
		}
		return p, nil
	case ProviderLocal:
		p, err := NewLocalProvider()
		if err != nil {
			return nil, err
		}
		if cfg.Model != "" {
			p.model = cfg.Model
		}
		return p, nil
	default:
		return nil, fmt.Errorf("%w: unknown provider %s", ErrUnsupportedModel, cfg.Provider)
	}
}

// NewFromEnv creates a provider based on environment variables
// Priority:
// 1. STUDYRAG_EMBEDDING_PROVIDER (openai, jina, local)
// 2. Check for API keys: OPENAI_API_KEY, JINA_API_KEY
// 3. Default to local if no API keys found
func NewFromEnv() (Provider, error) {
	provider := os.Getenv(EnvProvider)
	openaiKey := os.Getenv(EnvOpenAIAPIKey)
	jinaKey := os.Getenv(EnvJinaAPIKey)

	// Explicit provider selection
	if provider != "" {
		return New(Config{Provider: provider})
	}

	// Auto-detect based on available API keys
	if openaiKey != "" {
		return NewOpenAIProvider(openaiKey)
	}
	if jinaKey != "" {
		return NewJinaProvider(jinaKey)
	}

	// Fallback to local provider
	return NewLocalProvider()
}

// DetectProvider returns the provider that would be used based on current
// environment
func DetectProvider() string {
	provider := os.Getenv(EnvProvider)
	if provider != "" {
		return strings.ToLower(provider)
	}

	if os.Getenv(EnvOpenAIAPIKey) != "" {
		return ProviderOpenAI
	}
	if os.Getenv(EnvJinaAPIKey) != "" {
		return ProviderJina
	}

	return ProviderLocal
}
