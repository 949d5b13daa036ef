package cli

import (
	"context"
	"sort"
	"time"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check connectivity of the configured backends",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

// pinger is implemented by backends with a cheap reachability check.
type pinger interface {
	Ping(ctx context.Context) error
}

func runStatus(cmd *cobra.Command, _ []string) error {
	if err := requireServices(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
	defer cancel()

	cmd.Printf("Embedding provider (%s): %s\n",
		embedProvider.ModelName(), pingStatus(ctx, embedProvider))

	if p, ok := vectorCache.(pinger); ok {
		cmd.Printf("Cache (%s): %s\n", cfg.Cache.Backend, pingStatus(ctx, p))
	} else {
		cmd.Printf("Cache (%s): ok\n", cfg.Cache.Backend)
	}

	if p, ok := vectorIndex.(pinger); ok {
		cmd.Printf("Vector index (%s:%d/%s): %s\n",
			cfg.Qdrant.Host, cfg.Qdrant.Port, cfg.Qdrant.Collection, pingStatus(ctx, p))
	}

	if rerankService != nil {
		cmd.Printf("Reranker (%s): enabled, %d workers\n", cfg.Rerank.Model, cfg.Rerank.Workers)
	} else {
		cmd.Println("Reranker: disabled")
	}

	printUsage(cmd)
	return nil
}

func pingStatus(ctx context.Context, p pinger) string {
	if err := p.Ping(ctx); err != nil {
		return "unreachable: " + err.Error()
	}
	return "ok"
}

func printUsage(cmd *cobra.Command) {
	snapshot := usageCounters.Snapshot()
	if len(snapshot) == 0 {
		return
	}

	models := make([]string, 0, len(snapshot))
	for model := range snapshot {
		models = append(models, model)
	}
	sort.Strings(models)

	cmd.Println("\nEmbedding usage this session:")
	for _, model := range models {
		totals := snapshot[model]
		cmd.Printf("  %s: %d calls, %d tokens\n", model, totals.Calls, totals.Tokens)
	}
}
