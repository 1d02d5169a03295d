package commands

import (
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/olifarhaan/rag-console-chat/internal/logging"
)

// NewSummarizeCmd constructs the `ragchat summarize` command, a one-shot
// topic summary over the indexed documents with no session state.
func NewSummarizeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "summarize [topic]",
		Short: "Summarize what the indexed documents say about a topic",
		Long: `Retrieve the document passages most relevant to a topic and produce a
short summary of them. Unlike chat, summarize is stateless: no history is
kept, and a wider slice of the corpus is retrieved.

Examples:
  ragchat summarize "quarterly revenue"
  ragchat summarize deployment process`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			pipe, cleanup, err := buildPipeline(ctx)
			if err != nil {
				return fmt.Errorf("summarize: %w", err)
			}
			defer cleanup()

			topic := strings.Join(args, " ")

			answer, err := pipe.Summarize(ctx, topic)
			if err != nil {
				return fmt.Errorf("summarize: %w", err)
			}

			fmt.Println(answer.Text)
			if answer.Grounded {
				fmt.Printf("\nsources: %s\n", strings.Join(answer.Sources, ", "))
			} else {
				fmt.Println("\n(no matching documents found for this topic)")
			}

			return nil
		},
	}
}
