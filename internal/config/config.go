// Package config loads and validates the pipeline configuration.
//
// Configuration is stored as TOML (default ~/.ragpipe/config.toml).
// Secrets may be supplied via environment variables instead of the file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/custodia-labs/ragpipe/internal/core/domain"
)

// Environment variable overrides for secrets.
const (
	EnvOpenAIAPIKey   = "RAGPIPE_OPENAI_API_KEY"
	EnvQdrantAPIKey   = "RAGPIPE_QDRANT_API_KEY"
	EnvRerankerAPIKey = "RAGPIPE_RERANKER_API_KEY"
	EnvRedisPassword  = "RAGPIPE_REDIS_PASSWORD"
)

// Embedding configures the embedding client and provider.
type Embedding struct {
	APIKey       string `toml:"api_key"`
	BaseURL      string `toml:"base_url"`
	Model        string `toml:"model"`
	Dimensions   int    `toml:"dimensions"`
	RateLimitRPM int    `toml:"rate_limit_rpm"`
	MaxRetries   int    `toml:"max_retries"`
	RetryDelayMS int    `toml:"retry_delay_ms"`
	BatchSize    int    `toml:"batch_size"`
	TimeoutSec   int    `toml:"timeout_sec"`
	CacheTTLHrs  int    `toml:"cache_ttl_hours"`
}

// Cache configures the embedding cache backend.
type Cache struct {
	// Backend is "redis" or "memory".
	Backend  string `toml:"backend"`
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
}

// Qdrant configures the remote vector index.
type Qdrant struct {
	Host              string `toml:"host"`
	Port              int    `toml:"port"`
	APIKey            string `toml:"api_key"`
	UseTLS            bool   `toml:"use_tls"`
	Collection        string `toml:"collection"`
	TimeoutSec        int    `toml:"timeout_sec"`
	HNSWM             int    `toml:"hnsw_m"`
	HNSWEfConstruct   int    `toml:"hnsw_ef_construct"`
	FullScanThreshold int    `toml:"full_scan_threshold"`
}

// Rerank configures the cross-encoder stage.
type Rerank struct {
	Enabled    bool   `toml:"enabled"`
	Endpoint   string `toml:"endpoint"`
	Model      string `toml:"model"`
	APIKey     string `toml:"api_key"`
	Workers    int    `toml:"workers"`
	TimeoutSec int    `toml:"timeout_sec"`
}

// Context configures the context builder.
type Context struct {
	MaxTokens         int    `toml:"max_tokens"`
	ReservedTokens    int    `toml:"reserved_tokens"`
	ReservedWithQuery int    `toml:"reserved_with_query"`
	Strategy          string `toml:"strategy"`
}

// Chunking configures the splitter, all sizes in tokens.
type Chunking struct {
	ChunkSize    int `toml:"chunk_size"`
	Overlap      int `toml:"overlap"`
	MinChunkSize int `toml:"min_chunk_size"`
	MaxChunkSize int `toml:"max_chunk_size"`
}

// Config is the full pipeline configuration.
type Config struct {
	Embedding Embedding `toml:"embedding"`
	Cache     Cache     `toml:"cache"`
	Qdrant    Qdrant    `toml:"qdrant"`
	Rerank    Rerank    `toml:"rerank"`
	Context   Context   `toml:"context"`
	Chunking  Chunking  `toml:"chunking"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Embedding: Embedding{
			BaseURL:      "https://api.openai.com/v1",
			Model:        "text-embedding-3-small",
			Dimensions:   1536,
			RateLimitRPM: 300,
			MaxRetries:   3,
			RetryDelayMS: 500,
			BatchSize:    8,
			TimeoutSec:   60,
			CacheTTLHrs:  7 * 24,
		},
		Cache: Cache{
			Backend: "memory",
			Addr:    "localhost:6379",
		},
		Qdrant: Qdrant{
			Host:              "localhost",
			Port:              6333,
			Collection:        "ragpipe_chunks",
			TimeoutSec:        30,
			HNSWM:             16,
			HNSWEfConstruct:   128,
			FullScanThreshold: 10000,
		},
		Rerank: Rerank{
			Model:      "BAAI/bge-reranker-v2-m3",
			Workers:    2,
			TimeoutSec: 30,
		},
		Context: Context{
			MaxTokens:         4000,
			ReservedTokens:    300,
			ReservedWithQuery: 600,
			Strategy:          string(domain.TruncateBalanced),
		},
		Chunking: Chunking{
			ChunkSize:    1000,
			Overlap:      200,
			MinChunkSize: 100,
			MaxChunkSize: 2000,
		},
	}
}

// DefaultPath returns the default config file location.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".ragpipe", "config.toml"), nil
}

// Load reads the config file at path, applying defaults for missing keys
// and environment overrides for secrets. A missing file yields defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		// Defaults plus env overrides.
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv(EnvOpenAIAPIKey); v != "" {
		cfg.Embedding.APIKey = v
	}
	if v := os.Getenv(EnvQdrantAPIKey); v != "" {
		cfg.Qdrant.APIKey = v
	}
	if v := os.Getenv(EnvRerankerAPIKey); v != "" {
		cfg.Rerank.APIKey = v
	}
	if v := os.Getenv(EnvRedisPassword); v != "" {
		cfg.Cache.Password = v
	}
}

// Validate checks the configuration for startup-fatal mistakes.
func (c *Config) Validate() error {
	if c.Embedding.Dimensions <= 0 {
		return fmt.Errorf("%w: embedding dimensions must be positive", domain.ErrInvalidConfig)
	}
	if c.Embedding.RateLimitRPM <= 0 {
		return fmt.Errorf("%w: rate_limit_rpm must be positive", domain.ErrInvalidConfig)
	}
	if c.Embedding.BatchSize <= 0 {
		return fmt.Errorf("%w: batch_size must be positive", domain.ErrInvalidConfig)
	}
	if c.Cache.Backend != "redis" && c.Cache.Backend != "memory" {
		return fmt.Errorf("%w: unknown cache backend %q", domain.ErrInvalidConfig, c.Cache.Backend)
	}
	if c.Qdrant.Host == "" || c.Qdrant.Port <= 0 {
		return fmt.Errorf("%w: qdrant host and port are required", domain.ErrInvalidConfig)
	}
	if c.Qdrant.Collection == "" {
		return fmt.Errorf("%w: qdrant collection name is required", domain.ErrInvalidConfig)
	}
	if c.Rerank.Enabled && c.Rerank.Endpoint == "" {
		return fmt.Errorf("%w: rerank endpoint is required when reranking is enabled", domain.ErrInvalidConfig)
	}
	if c.Rerank.Workers <= 0 {
		return fmt.Errorf("%w: rerank workers must be positive", domain.ErrInvalidConfig)
	}
	switch domain.TruncationStrategy(c.Context.Strategy) {
	case domain.TruncateTopOnly, domain.TruncateBalanced:
	default:
		return fmt.Errorf("%w: unknown truncation strategy %q", domain.ErrInvalidConfig, c.Context.Strategy)
	}
	if c.Context.MaxTokens <= c.Context.ReservedWithQuery {
		return fmt.Errorf("%w: max_tokens must exceed reserved budget", domain.ErrInvalidConfig)
	}
	if c.Chunking.ChunkSize <= 0 || c.Chunking.MaxChunkSize < c.Chunking.ChunkSize {
		return fmt.Errorf("%w: chunk sizes out of order", domain.ErrInvalidConfig)
	}
	return nil
}

// EmbedTimeout returns the provider call timeout.
func (c *Config) EmbedTimeout() time.Duration {
	return time.Duration(c.Embedding.TimeoutSec) * time.Second
}

// RetryDelay returns the base backoff delay.
func (c *Config) RetryDelay() time.Duration {
	return time.Duration(c.Embedding.RetryDelayMS) * time.Millisecond
}

// QdrantTimeout returns the vector index request timeout.
func (c *Config) QdrantTimeout() time.Duration {
	return time.Duration(c.Qdrant.TimeoutSec) * time.Second
}

// RerankTimeout returns the cross-encoder request timeout.
func (c *Config) RerankTimeout() time.Duration {
	return time.Duration(c.Rerank.TimeoutSec) * time.Second
}

// CacheTTL returns the embedding cache TTL.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Embedding.CacheTTLHrs) * time.Hour
}
