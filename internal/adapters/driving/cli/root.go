// Package cli provides the command-line driving adapter for the
// retrieval pipeline.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	cachememory "github.com/custodia-labs/ragpipe/internal/adapters/driven/cache/memory"
	cacheredis "github.com/custodia-labs/ragpipe/internal/adapters/driven/cache/redis"
	"github.com/custodia-labs/ragpipe/internal/adapters/driven/embedding/openai"
	"github.com/custodia-labs/ragpipe/internal/adapters/driven/rerank/crossencoder"
	"github.com/custodia-labs/ragpipe/internal/adapters/driven/vector/qdrant"
	"github.com/custodia-labs/ragpipe/internal/chunker"
	"github.com/custodia-labs/ragpipe/internal/config"
	"github.com/custodia-labs/ragpipe/internal/core/domain"
	"github.com/custodia-labs/ragpipe/internal/core/ports/driven"
	"github.com/custodia-labs/ragpipe/internal/core/services"
	"github.com/custodia-labs/ragpipe/internal/logger"
	"github.com/custodia-labs/ragpipe/internal/tokenizer"
)

// version is set at build time via -ldflags.
var version = "dev"

var (
	configPath string
	verbose    bool
)

// Wired services, built once per invocation by initServices.
var (
	cfg            *config.Config
	embedProvider  *openai.Provider
	vectorCache    driven.VectorCache
	vectorIndex    driven.VectorIndex
	usageCounters  *services.UsageCounters
	embedClient    *services.EmbeddingClient
	rerankService  *services.Reranker
	ingestService  *services.IngestService
	queryService   *services.QueryService
	contextBuilder *services.ContextBuilder
)

var rootCmd = &cobra.Command{
	Use:   "ragpipe",
	Short: "Retrieval pipeline: chunk, embed, index, search, rerank",
	Long: `ragpipe ingests documents and answers queries by retrieving the most
relevant passages and assembling them into a token-budgeted context window.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		logger.SetVerbose(verbose)
		if skipWiring(cmd) {
			return nil
		}
		return initServices()
	},
}

// skipWiring reports whether a command runs without the full pipeline.
func skipWiring(cmd *cobra.Command) bool {
	switch cmd.Name() {
	case "version", "help", "completion":
		return true
	}
	return false
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.ragpipe/config.toml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// initServices builds the pipeline from configuration.
func initServices() error {
	var err error
	cfg, err = config.Load(configPath)
	if err != nil {
		return err
	}

	embedProvider, err = openai.New(openai.Config{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Timeout:    cfg.EmbedTimeout(),
	})
	if err != nil {
		return err
	}

	switch cfg.Cache.Backend {
	case "redis":
		vectorCache = cacheredis.New(cacheredis.Config{
			Addr:     cfg.Cache.Addr,
			Password: cfg.Cache.Password,
			DB:       cfg.Cache.DB,
		})
	default:
		vectorCache = cachememory.New()
	}

	vectorIndex, err = qdrant.New(qdrant.Config{
		Host:              cfg.Qdrant.Host,
		Port:              cfg.Qdrant.Port,
		APIKey:            cfg.Qdrant.APIKey,
		UseTLS:            cfg.Qdrant.UseTLS,
		Collection:        cfg.Qdrant.Collection,
		Timeout:           cfg.QdrantTimeout(),
		HNSWM:             cfg.Qdrant.HNSWM,
		HNSWEfConstruct:   cfg.Qdrant.HNSWEfConstruct,
		FullScanThreshold: cfg.Qdrant.FullScanThreshold,
	})
	if err != nil {
		return err
	}

	usageCounters = services.NewUsageCounters()
	embedClient = services.NewEmbeddingClient(embedProvider, vectorCache, usageCounters, services.EmbeddingConfig{
		RateLimitRPM: cfg.Embedding.RateLimitRPM,
		MaxRetries:   cfg.Embedding.MaxRetries,
		RetryDelay:   cfg.RetryDelay(),
		BatchSize:    cfg.Embedding.BatchSize,
		CacheTTL:     cfg.CacheTTL(),
	})

	if cfg.Rerank.Enabled {
		scorer, err := crossencoder.New(crossencoder.Config{
			Endpoint: cfg.Rerank.Endpoint,
			Model:    cfg.Rerank.Model,
			APIKey:   cfg.Rerank.APIKey,
			Timeout:  cfg.RerankTimeout(),
		})
		if err != nil {
			return err
		}
		rerankService = services.NewReranker(scorer, cfg.Rerank.Workers)
	}

	tok := tokenizer.New()
	contextBuilder = services.NewContextBuilder(tok, services.ContextConfig{
		MaxTokens:         cfg.Context.MaxTokens,
		ReservedTokens:    cfg.Context.ReservedTokens,
		ReservedWithQuery: cfg.Context.ReservedWithQuery,
		Strategy:          domain.TruncationStrategy(cfg.Context.Strategy),
	})

	ch := chunker.New(tok,
		chunker.WithChunkSize(cfg.Chunking.ChunkSize),
		chunker.WithOverlap(cfg.Chunking.Overlap),
		chunker.WithMinChunkSize(cfg.Chunking.MinChunkSize),
		chunker.WithMaxChunkSize(cfg.Chunking.MaxChunkSize),
	)

	ingestService = services.NewIngestService(ch, embedClient, vectorIndex)
	queryService = services.NewQueryService(embedClient, vectorIndex, rerankService, contextBuilder)
	return nil
}

// requireServices guards commands that need the wired pipeline.
func requireServices() error {
	if ingestService == nil || queryService == nil {
		return fmt.Errorf("pipeline not initialised")
	}
	return nil
}
