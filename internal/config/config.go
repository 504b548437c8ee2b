// Package config loads application configuration from defaults, an optional
// YAML file, and STUDYRAG_-prefixed environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the complete application configuration
type Config struct {
	Database  DatabaseConfig  `mapstructure:"database"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Batch     BatchConfig     `mapstructure:"batch"`
	Retry     RetryConfig     `mapstructure:"retry"`
	Search    SearchConfig    `mapstructure:"search"`
}

// DatabaseConfig configures the SQLite content store
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// EmbeddingConfig selects and configures the embedding provider
type EmbeddingConfig struct {
	Provider string `mapstructure:"provider"`
	APIKey   string `mapstructure:"api_key"`
	Model    string `mapstructure:"model"`
}

// CacheConfig configures the embedding cache
type CacheConfig struct {
	MaxEntries int           `mapstructure:"max_entries"`
	TTL        time.Duration `mapstructure:"ttl"`
}

// BatchConfig configures batch embedding generation
type BatchConfig struct {
	MaxBatchSize    int           `mapstructure:"max_batch_size"`
	RateLimitDelay  time.Duration `mapstructure:"rate_limit_delay"`
	InterBatchDelay time.Duration `mapstructure:"inter_batch_delay"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
}

// RetryConfig configures retries for remote embedding calls
type RetryConfig struct {
	MaxRetries int           `mapstructure:"max_retries"`
	BaseDelay  time.Duration `mapstructure:"base_delay"`
	MaxDelay   time.Duration `mapstructure:"max_delay"`
}

// SearchConfig configures retrieval behavior
type SearchConfig struct {
	MinSimilarity float64       `mapstructure:"min_similarity"`
	DefaultLimit  int           `mapstructure:"default_limit"`
	CacheSize     int           `mapstructure:"cache_size"`
	CacheTTL      time.Duration `mapstructure:"cache_ttl"`
}

// Load loads configuration from the optional config file and environment
// variables. The file named by STUDYRAG_CONFIG_FILE is used when set;
// a missing file is not an error since every value has a default.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	configFile := os.Getenv("STUDYRAG_CONFIG_FILE")
	if configFile == "" {
		configFile = "configs/config.yaml"
	}
	v.SetConfigFile(configFile)

	v.SetEnvPrefix("STUDYRAG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(*os.PathError); !ok {
			if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
				return nil, fmt.Errorf("error reading config file: %w", err)
			}
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate checks configuration values for consistency
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database path must not be empty")
	}
	if c.Cache.MaxEntries <= 0 {
		return fmt.Errorf("cache max_entries must be positive, got %d", c.Cache.MaxEntries)
	}
	if c.Batch.MaxBatchSize <= 0 {
		return fmt.Errorf("batch max_batch_size must be positive, got %d", c.Batch.MaxBatchSize)
	}
	if c.Retry.MaxRetries < 0 {
		return fmt.Errorf("retry max_retries must not be negative, got %d", c.Retry.MaxRetries)
	}
	if c.Search.MinSimilarity < 0 || c.Search.MinSimilarity > 1 {
		return fmt.Errorf("search min_similarity must be in [0, 1], got %f", c.Search.MinSimilarity)
	}
	return nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("database.path", defaultDBPath())

	// Embedding defaults; provider is auto-detected from API keys when empty
	v.SetDefault("embedding.provider", "")
	v.SetDefault("embedding.api_key", "")
	v.SetDefault("embedding.model", "")

	v.SetDefault("cache.max_entries", 10000)
	v.SetDefault("cache.ttl", 24*time.Hour)

	v.SetDefault("batch.max_batch_size", 20)
	v.SetDefault("batch.rate_limit_delay", 100*time.Millisecond)
	v.SetDefault("batch.inter_batch_delay", 500*time.Millisecond)
	v.SetDefault("batch.request_timeout", 30*time.Second)

	v.SetDefault("retry.max_retries", 3)
	v.SetDefault("retry.base_delay", time.Second)
	v.SetDefault("retry.max_delay", 30*time.Second)

	v.SetDefault("search.min_similarity", 0.3)
	v.SetDefault("search.default_limit", 10)
	v.SetDefault("search.cache_size", 1000)
	v.SetDefault("search.cache_ttl", time.Hour)
}

// defaultDBPath places the database under the user's home directory,
// falling back to the working directory when home cannot be resolved
func defaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "studyrag.db"
	}
	return filepath.Join(home, ".studyrag", "studyrag.db")
}
