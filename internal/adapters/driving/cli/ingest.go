package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/ragpipe/internal/core/domain"
)

var (
	ingestID      string
	ingestTitle   string
	ingestType    string
	ingestFormat  string
	ingestSection string
	ingestReindex bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <file>",
	Short: "Chunk, embed and index a document",
	Long: `Ingest reads a text or markdown file, splits it into token-bounded
chunks, embeds each chunk and stores the vectors in the index.

Point IDs are derived from the document ID, chunk index and content, so
re-ingesting an unchanged file overwrites points in place. Use --reindex
when the content changed, to drop stale points first.`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVar(&ingestID, "id", "", "document ID (default: file name)")
	ingestCmd.Flags().StringVar(&ingestTitle, "title", "", "document title stored with each chunk")
	ingestCmd.Flags().StringVar(&ingestType, "type", "", "document type stored with each chunk")
	ingestCmd.Flags().StringVar(&ingestFormat, "format", "", "format hint: text or markdown (default: by extension)")
	ingestCmd.Flags().StringVar(&ingestSection, "section", "", "section label stored with each chunk")
	ingestCmd.Flags().BoolVar(&ingestReindex, "reindex", false, "delete existing points for the document first")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	if err := requireServices(); err != nil {
		return err
	}

	path := args[0]
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read document: %w", err)
	}

	id := ingestID
	if id == "" {
		id = filepath.Base(path)
	}

	req := domain.IngestRequest{
		Text:       string(data),
		DocumentID: id,
		FormatHint: formatHint(path),
		Metadata: domain.ChunkMetadata{
			DocumentID:   id,
			DocumentType: ingestType,
			Title:        ingestTitle,
			Section:      ingestSection,
		},
	}

	var result domain.IngestResult
	if ingestReindex {
		result, err = ingestService.Reindex(cmd.Context(), req)
	} else {
		result, err = ingestService.Ingest(cmd.Context(), req)
	}
	if err != nil {
		return err
	}

	cmd.Printf("Indexed %s: %d chunks, %d vectors stored\n",
		result.DocumentID, result.ChunkCount, result.StoredVectors)
	return nil
}

// formatHint resolves the splitter variant from the flag or, failing
// that, the file extension.
func formatHint(path string) string {
	if ingestFormat != "" {
		return ingestFormat
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown":
		return "markdown"
	}
	return "text"
}
