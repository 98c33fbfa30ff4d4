package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/54b3r/docrag-go/internal/logging"
	"github.com/54b3r/docrag-go/internal/pipeline"
	"github.com/54b3r/docrag-go/internal/tracing"
)

// NewQueryCmd constructs the `docrag query` command, which answers one
// question from the indexed collection.
func NewQueryCmd() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "query <query_text>",
		Short: "Answer a question from the document collection",
		Long: `Retrieve the chunks most similar to the question, render them into the
query prompt and print the model's answer followed by the source ids.

The rendered prompt is printed before the answer.

Examples:
  docrag query "How much money does each player start with in Monopoly?"
  docrag query --timeout 60s "How many points is the longest route worth?"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.FromContext(ctx)

			defer tracing.Install(log)()

			retriever, vs, err := buildRetriever(ctx, log)
			if err != nil {
				return fmt.Errorf("query: %w", err)
			}
			defer func() { _ = vs.Close() }()

			m, err := buildChatModel(ctx, log, timeout)
			if err != nil {
				return fmt.Errorf("query: %w", err)
			}

			hs := openHistory(log)
			if hs != nil {
				defer func() { _ = hs.Close() }()
			}

			cfg := pipelineConfig(retriever, m, historyOrNil(hs))
			cfg.Out = cmd.OutOrStdout()
			p, err := pipeline.New(cfg)
			if err != nil {
				return fmt.Errorf("query: %w", err)
			}

			_, err = p.Query(ctx, args[0])
			return err
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Bound each model call (overrides MODEL_TIMEOUT)")

	return cmd
}
