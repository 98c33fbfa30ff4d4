package commands

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/54b3r/docrag-go/internal/eval"
	"github.com/54b3r/docrag-go/internal/logging"
	"github.com/54b3r/docrag-go/internal/pipeline"
	"github.com/54b3r/docrag-go/internal/tracing"
)

// NewEvalCmd constructs the `docrag eval` command, which grades pipeline
// answers against reference answers with a judge model call.
func NewEvalCmd() *cobra.Command {
	var casesPath string
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "eval",
		Short: "Grade pipeline answers against expected answers",
		Long: `Run each evaluation case through the query pipeline, then ask the model
whether the answer matches the expected one. Without --cases the built-in
board-game cases run.

The judge is a generative model, so verdicts can differ between runs.
The command exits non-zero when any case fails or the judge answers with
neither true nor false.

Cases file format:
  cases:
    - name: monopoly_rules
      question: How much total money does a player start with in Monopoly?
      expected: $1500

Examples:
  docrag eval
  docrag eval --cases testdata/cases.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			log := logging.FromContext(ctx)

			cases := eval.DefaultCases
			if casesPath != "" {
				loaded, err := eval.LoadCases(casesPath)
				if err != nil {
					return err
				}
				cases = loaded
			}

			defer tracing.Install(log)()

			retriever, vs, err := buildRetriever(ctx, log)
			if err != nil {
				return fmt.Errorf("eval: %w", err)
			}
			defer func() { _ = vs.Close() }()

			m, err := buildChatModel(ctx, log, timeout)
			if err != nil {
				return fmt.Errorf("eval: %w", err)
			}

			hs := openHistory(log)
			if hs != nil {
				defer func() { _ = hs.Close() }()
			}

			out := cmd.OutOrStdout()
			pcfg := pipelineConfig(retriever, m, historyOrNil(hs))
			pcfg.Out = out
			p, err := pipeline.New(pcfg)
			if err != nil {
				return fmt.Errorf("eval: %w", err)
			}

			h, err := eval.NewHarness(&eval.Config{
				Pipeline: p,
				Judge:    m.client,
				Out:      out,
				History:  historyOrNil(hs),
			})
			if err != nil {
				return err
			}

			sum, runErr := h.Run(ctx, cases)
			if sum != nil {
				fmt.Fprintf(out, "\n%d passed, %d failed\n", sum.Passed, sum.Failed)
				log.Info("eval complete",
					slog.Int("passed", sum.Passed),
					slog.Int("failed", sum.Failed),
					slog.Int("cases", len(cases)),
				)
			}
			if runErr != nil {
				return runErr
			}
			if sum.Failed > 0 {
				return fmt.Errorf("eval: %d of %d cases failed", sum.Failed, len(cases))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&casesPath, "cases", "", "YAML file of evaluation cases (default: built-in cases)")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Bound each model call (overrides MODEL_TIMEOUT)")

	return cmd
}
