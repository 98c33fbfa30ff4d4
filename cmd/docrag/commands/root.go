// Package commands defines all Cobra CLI commands for the docrag binary.
package commands

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/54b3r/docrag-go/internal/audit"
	"github.com/54b3r/docrag-go/internal/config"
	"github.com/54b3r/docrag-go/internal/logging"
)

// configPath holds the --config flag value for YAML config file override.
var configPath string

// envFile holds the --env-file flag value.
var envFile string

// loadedConfigPath stores the resolved config file path for audit logging.
var loadedConfigPath string

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "docrag",
		Short: "docrag: question answering over your own documents",
		Long: `docrag is a minimal retrieval-augmented generation pipeline.

Documents are split into chunks, embedded and stored in a local collection
(or Qdrant). A question is answered by retrieving the most similar chunks
and asking a chat model to answer from that context only.

Settings come from environment variables, a .env file and an optional
YAML config file (~/.docrag/config.yaml), in that order of precedence.
See 'docrag --help' for available commands.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// .env first so its values take precedence over YAML.
			dotenv, err := config.LoadDotEnv(envFile)
			if err != nil {
				return err
			}

			log := logging.New()
			path, err := config.Load(configPath, log)
			if err != nil {
				return err
			}
			loadedConfigPath = path

			// LOG_LEVEL may have come from a file; rebuild with the final env.
			log = logging.New()
			cmd.SetContext(logging.WithLogger(cmd.Context(), log))

			audit.LogCommandStart(cmd.Context(), log, cmd.Name(), loadedConfigPath,
				slog.Any("dotenv", dotenv),
			)
			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.docrag/config.yaml)")
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Path to a dotenv file loaded before the YAML config")

	root.AddCommand(
		NewQueryCmd(),
		NewEvalCmd(),
		NewIngestCmd(),
		NewServeCmd(),
		NewHistoryCmd(),
		NewVersionCmd(),
	)

	return root
}
