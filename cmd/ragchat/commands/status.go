package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/olifarhaan/rag-console-chat/internal/logging"
)

// NewStatusCmd constructs the `ragchat status` command, which reports the
// state of the vector index.
func NewStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show vector index statistics",
		Long: `Report the configured index backend, the embedding model the index is
bound to, and how many chunks and documents it currently holds.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			pipe, cleanup, err := buildPipeline(ctx)
			if err != nil {
				return fmt.Errorf("status: %w", err)
			}
			defer cleanup()

			stats, err := pipe.Stats(ctx)
			if err != nil {
				return fmt.Errorf("status: %w", err)
			}

			fmt.Printf("backend:    %s\n", getEnvOrDefault("INDEX_BACKEND", "local"))
			fmt.Printf("model:      %s (%d dimensions)\n", stats.Model, stats.Dimension)
			fmt.Printf("documents:  %d\n", stats.Documents)
			fmt.Printf("chunks:     %d\n", stats.Entries)

			return nil
		},
	}
}
