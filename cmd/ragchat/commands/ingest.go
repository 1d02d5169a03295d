package commands

import (
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/olifarhaan/rag-console-chat/internal/logging"
)

// NewIngestCmd constructs the `ragchat ingest` command, which scans a
// directory of documents and indexes them into the vector store.
func NewIngestCmd() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Index the documents in a directory into the vector store",
		Long: `Scan a directory for supported documents (.txt, .md, .pdf, .docx) and
index them: extract text, split into overlapping chunks, embed each chunk,
and store the vectors.

Re-running ingest is cheap: documents whose content is unchanged are
skipped, and changed documents are re-indexed without leaving stale
entries behind. One unreadable file never aborts the run.

Key environment variables:
  DOCS_DIR             Documents directory (default: ./docs)
  EMBEDDING_PROVIDER   Embedding backend: ollama, openai (default: ollama)
  INDEX_BACKEND        Vector index: local, qdrant (default: local)
  INGEST_WORKERS       Concurrent document workers (default: 4)

Examples:
  ragchat ingest
  ragchat ingest --dir ~/papers
  EMBEDDING_PROVIDER=openai ragchat ingest --dir ./notes`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			if dir == "" {
				dir = getEnvOrDefault("DOCS_DIR", "./docs")
			}

			pipe, cleanup, err := buildPipeline(ctx)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			defer cleanup()

			log.Info("ingestion starting", slog.String("dir", dir))

			report, err := pipe.Ingest(ctx, dir)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}

			fmt.Printf("Indexed %d document(s), skipped %d unchanged, %d failed.\n",
				report.Succeeded, report.Skipped, len(report.Failed))
			for _, f := range report.Failed {
				fmt.Printf("  failed: %s: %v\n", f.SourcePath, f.Err)
			}

			return nil
		},
	}

	cmd.Flags().StringVarP(&dir, "dir", "d", "", "Documents directory to ingest (default: $DOCS_DIR or ./docs)")

	return cmd
}
