package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/custodia-labs/ragpipe/internal/core/domain"
	"github.com/custodia-labs/ragpipe/internal/logger"
)

var watchCmd = &cobra.Command{
	Use:   "watch <dir>",
	Short: "Watch a directory and re-ingest documents on change",
	Long: `Watch monitors a directory for .txt and .md files and re-ingests a
file whenever it is written or created. Deleted files are removed from
the index. The file name is used as the document ID.

Runs until interrupted.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	if err := requireServices(); err != nil {
		return err
	}

	dir := args[0]
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := logger.WithComponent("watch")
	cmd.Printf("Watching %s (Ctrl+C to stop)\n", dir)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !watchable(event.Name) {
				continue
			}
			switch {
			case event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename):
				id := filepath.Base(event.Name)
				if err := ingestService.Delete(ctx, id); err != nil {
					log.WithError(err).WithField("document_id", id).Warn("delete failed")
				}
			case event.Has(fsnotify.Write) || event.Has(fsnotify.Create):
				if err := watchIngest(ctx, event.Name); err != nil {
					log.WithError(err).WithField("path", event.Name).Warn("ingest failed")
				}
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.WithError(err).Warn("watcher error")
		}
	}
}

func watchIngest(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	id := filepath.Base(path)
	result, err := ingestService.Reindex(ctx, domain.IngestRequest{
		Text:       string(data),
		DocumentID: id,
		FormatHint: formatHint(path),
		Metadata:   domain.ChunkMetadata{DocumentID: id},
	})
	// Truncating a file to empty is not worth surfacing as a failure.
	if errors.Is(err, domain.ErrEmptyDocument) {
		return nil
	}
	if err != nil {
		return err
	}

	logger.WithComponent("watch").WithField("document_id", result.DocumentID).
		WithField("chunks", result.ChunkCount).Info("document re-indexed")
	return nil
}

func watchable(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".md", ".markdown":
		return true
	}
	return false
}
