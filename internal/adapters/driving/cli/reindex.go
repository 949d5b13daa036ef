package cli

import (
	"github.com/spf13/cobra"
)

var reindexCmd = &cobra.Command{
	Use:   "reindex <file>",
	Short: "Drop a document's points and ingest it afresh",
	Long: `Reindex deletes every indexed point of the document and then ingests
the file from scratch. Use it after the document's content changed;
plain ingest would leave stale points behind for chunks whose content
hash moved.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ingestReindex = true
		return runIngest(cmd, args)
	},
}

func init() {
	reindexCmd.Flags().StringVar(&ingestID, "id", "", "document ID (default: file name)")
	reindexCmd.Flags().StringVar(&ingestTitle, "title", "", "document title stored with each chunk")
	reindexCmd.Flags().StringVar(&ingestType, "type", "", "document type stored with each chunk")
	reindexCmd.Flags().StringVar(&ingestFormat, "format", "", "format hint: text or markdown (default: by extension)")
	reindexCmd.Flags().StringVar(&ingestSection, "section", "", "section label stored with each chunk")
	rootCmd.AddCommand(reindexCmd)
}
