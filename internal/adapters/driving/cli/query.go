package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/ragpipe/internal/core/domain"
	"github.com/custodia-labs/ragpipe/internal/core/services"
)

var (
	queryLimit     int
	queryK         int
	queryDocuments []string
	queryFilters   []string
	queryThreshold float64
	queryNoRerank  bool
	queryJSON      bool
	queryTimings   bool
)

var queryCmd = &cobra.Command{
	Use:   "query <text>",
	Short: "Retrieve the most relevant passages for a query",
	Long: `Query embeds the question, searches the vector index, optionally
reranks the candidates with a cross-encoder and assembles the winners
into a token-budgeted context window.

When the reranker is unreachable the command still succeeds, falling
back to vector-similarity ordering.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().IntVarP(&queryLimit, "limit", "n", services.DefaultQueryLimit, "maximum results returned")
	queryCmd.Flags().IntVarP(&queryK, "retrieve", "k", 0, "vector-search depth before reranking (default: limit-derived)")
	queryCmd.Flags().StringSliceVar(&queryDocuments, "document", nil, "restrict to document IDs (repeatable)")
	queryCmd.Flags().StringSliceVar(&queryFilters, "filter", nil, "payload filter key=value (repeatable; same key values are OR'd)")
	queryCmd.Flags().Float64Var(&queryThreshold, "threshold", 0, "minimum similarity score (0 disables)")
	queryCmd.Flags().BoolVar(&queryNoRerank, "no-rerank", false, "skip cross-encoder reranking")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "emit the full response as JSON")
	queryCmd.Flags().BoolVar(&queryTimings, "timings", false, "print per-stage timings")
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	if err := requireServices(); err != nil {
		return err
	}

	filter, err := parseFilters(queryFilters)
	if err != nil {
		return err
	}

	opts := domain.QueryOptions{
		Limit:           queryLimit,
		KRetrieval:      queryK,
		DocumentIDs:     queryDocuments,
		Filter:          filter,
		EnableReranking: !queryNoRerank && cfg.Rerank.Enabled,
	}
	if queryThreshold > 0 {
		opts.ScoreThreshold = &queryThreshold
	}

	resp, err := queryService.Query(cmd.Context(), strings.Join(args, " "), opts)
	if err != nil {
		return err
	}

	if queryJSON {
		out, err := json.MarshalIndent(resp, "", "  ")
		if err != nil {
			return err
		}
		cmd.Println(string(out))
		return nil
	}

	printQueryResponse(cmd, resp)
	return nil
}

func printQueryResponse(cmd *cobra.Command, resp domain.QueryResponse) {
	if len(resp.Results) == 0 {
		cmd.Println("No results.")
		return
	}

	for i, r := range resp.Results {
		cmd.Printf("%d. [%.4f] %s (chunk %d)\n", i+1, r.Score,
			displayName(r.Payload), r.Payload.ChunkIndex)
		cmd.Printf("   %s\n", snippet(r.Text, 200))
	}

	w := resp.Context
	cmd.Printf("\nContext: %d tokens, %d chunks included, %d truncated (%s)\n",
		w.TotalTokens, w.ChunksIncluded, w.ChunksTruncated, w.Strategy)
	if !resp.RerankingEnabled {
		cmd.Println("Ordering: vector similarity (reranking off or unavailable)")
	}

	if refs := services.ExtractReferences(resp.Results); len(refs) > 0 {
		cmd.Println("\nSources:")
		for _, ref := range refs {
			name := ref.Title
			if name == "" {
				name = ref.DocumentID
			}
			cmd.Printf("  %s (%d chunks, best %.4f)\n", name, ref.ChunkCount, ref.BestScore)
		}
	}

	if queryTimings {
		t := resp.Timings
		cmd.Printf("\nTimings [%s]: embed=%s search=%s rerank=%s build=%s total=%s\n",
			t.RequestID, t.Embed, t.Search, t.Rerank, t.Build, t.Total)
	}
}

// parseFilters converts repeated key=value flags into a payload filter.
// Repeating a key accumulates its values.
func parseFilters(raw []string) (domain.Filter, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	filter := make(domain.Filter, len(raw))
	for _, f := range raw {
		key, value, ok := strings.Cut(f, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid filter %q, expected key=value", f)
		}
		filter[key] = append(filter[key], value)
	}
	return filter, nil
}

func displayName(p domain.Payload) string {
	if p.Title != "" {
		return p.Title
	}
	return p.DocumentID
}

func snippet(text string, max int) string {
	text = strings.Join(strings.Fields(text), " ")
	if len(text) <= max {
		return text
	}
	cut := text[:max]
	if idx := strings.LastIndex(cut, " "); idx > 0 {
		cut = cut[:idx]
	}
	return cut + "..."
}
