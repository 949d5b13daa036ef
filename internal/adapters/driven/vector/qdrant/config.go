package qdrant

import (
	"fmt"
	"time"

	"github.com/custodia-labs/ragpipe/internal/core/domain"
)

// Default configuration values.
const (
	DefaultHost              = "localhost"
	DefaultPort              = 6333
	DefaultTimeout           = 30 * time.Second
	DefaultCollection        = "ragpipe_chunks"
	DefaultHNSWM             = 16
	DefaultHNSWEfConstruct   = 128
	DefaultFullScanThreshold = 10000
	scrollPageSize           = 256
)

// Config holds Qdrant connection and index tuning settings.
type Config struct {
	// Host and Port locate the Qdrant HTTP API.
	Host string
	Port int

	// APIKey is sent in the api-key header when set.
	APIKey string

	// UseTLS switches the scheme to https.
	UseTLS bool

	// Collection is the collection name.
	Collection string

	// Timeout is the per-request timeout.
	Timeout time.Duration

	// HNSWM is the HNSW graph connectivity (edges per node). Higher
	// improves recall at the cost of memory and build time.
	HNSWM int

	// HNSWEfConstruct is the construction-time beam width. Higher improves
	// graph quality at the cost of indexing speed.
	HNSWEfConstruct int

	// FullScanThreshold is the point count (in KB of vectors) below which
	// Qdrant searches exactly instead of through the HNSW graph.
	FullScanThreshold int
}

// DefaultConfig returns a config for a local unauthenticated Qdrant.
func DefaultConfig() Config {
	return Config{
		Host:              DefaultHost,
		Port:              DefaultPort,
		Collection:        DefaultCollection,
		Timeout:           DefaultTimeout,
		HNSWM:             DefaultHNSWM,
		HNSWEfConstruct:   DefaultHNSWEfConstruct,
		FullScanThreshold: DefaultFullScanThreshold,
	}
}

// Validate checks the config for startup-fatal mistakes.
func (c Config) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("%w: qdrant host is required", domain.ErrInvalidConfig)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("%w: qdrant port %d out of range", domain.ErrInvalidConfig, c.Port)
	}
	if c.Collection == "" {
		return fmt.Errorf("%w: qdrant collection is required", domain.ErrInvalidConfig)
	}
	return nil
}

// baseURL returns the HTTP base URL for the configured instance.
func (c Config) baseURL() string {
	scheme := "http"
	if c.UseTLS {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, c.Host, c.Port)
}
