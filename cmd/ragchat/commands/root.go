// Package commands defines all Cobra CLI commands for the ragchat binary.
package commands

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/olifarhaan/rag-console-chat/internal/audit"
	"github.com/olifarhaan/rag-console-chat/internal/config"
	"github.com/olifarhaan/rag-console-chat/internal/logging"
)

// configPath holds the --config flag value for YAML config file override.
var configPath string

// loadedConfigPath stores the resolved config file path for audit logging.
var loadedConfigPath string

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "ragchat",
		Short: "Chat with your local documents from the console",
		Long: `ragchat is a local-first retrieval-augmented chat assistant.

It indexes the text, PDF, and Word documents in a directory into a vector
index, then answers natural language questions about them in an interactive
console session, citing the source files behind each answer.

Model and embedding providers are selected via environment variables
(MODEL_PROVIDER, EMBEDDING_PROVIDER) or a YAML config file
(~/.ragchat/config.yaml). See 'ragchat --help' for available commands.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// .env is optional; absence is not an error.
			_ = godotenv.Load()

			log := logging.New()

			// Load YAML config (env vars always override YAML values).
			path, err := config.Load(configPath, log)
			if err != nil {
				return err
			}
			loadedConfigPath = path

			// Emit structured audit log for every command invocation.
			audit.LogCommandStart(log, cmd.Name(), loadedConfigPath)

			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.ragchat/config.yaml)")

	root.AddCommand(
		NewIngestCmd(),
		NewChatCmd(),
		NewSummarizeCmd(),
		NewStatusCmd(),
		NewVersionCmd(),
	)

	return root
}
