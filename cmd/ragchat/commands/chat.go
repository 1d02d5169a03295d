package commands

import (
	"bufio"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/olifarhaan/rag-console-chat/internal/logging"
	"github.com/olifarhaan/rag-console-chat/internal/session"
)

// NewChatCmd constructs the `ragchat chat` command, the interactive
// console loop. Each question is answered with retrieved document context;
// typing "exit" ends the session and prints the transcript.
func NewChatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat session over the indexed documents",
		Long: `Start an interactive question-answering session on stdin.

Each question is embedded, matched against the indexed documents, and
answered by the configured chat model using the retrieved passages as
context. The conversation history is carried across turns within the
session. Type "exit" to end the session and print the transcript.

Run 'ragchat ingest' first to populate the index.

Examples:
  ragchat chat
  MODEL_PROVIDER=openai ragchat chat`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			pipe, cleanup, err := buildPipeline(ctx)
			if err != nil {
				return fmt.Errorf("chat: %w", err)
			}
			defer cleanup()

			sess := session.New()
			scanner := bufio.NewScanner(os.Stdin)
			scanner.Buffer(make([]byte, 64*1024), 1024*1024)

			fmt.Println("Ask a question about your documents. Type 'exit' to end the session.")

			for {
				fmt.Print("you> ")
				if !scanner.Scan() {
					break
				}
				line := strings.TrimSpace(scanner.Text())
				if line == "" {
					continue
				}
				if strings.EqualFold(line, "exit") {
					break
				}

				answer, err := pipe.Query(ctx, sess, line)
				if err != nil {
					if ctx.Err() != nil {
						break
					}
					fmt.Fprintf(os.Stderr, "error: %v\n", err)
					continue
				}

				fmt.Printf("\n%s\n", answer.Text)
				if answer.Grounded {
					fmt.Printf("sources: %s\n\n", strings.Join(answer.Sources, ", "))
				} else {
					fmt.Print("(no matching documents found for this question)\n\n")
				}
			}
			if err := scanner.Err(); err != nil {
				return fmt.Errorf("chat: reading stdin: %w", err)
			}

			printTranscript(sess)
			return nil
		},
	}
}

// printTranscript prints the full session exchange after the loop ends,
// mirroring the conversation the user just had.
func printTranscript(sess *session.Session) {
	turns := sess.History(0)
	if len(turns) == 0 {
		return
	}
	fmt.Println("\n--- session transcript ---")
	for _, t := range turns {
		fmt.Printf("%s: %s\n", t.Role, t.Text)
	}
}
