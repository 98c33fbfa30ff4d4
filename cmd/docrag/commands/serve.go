package commands

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/54b3r/docrag-go/internal/eval"
	"github.com/54b3r/docrag-go/internal/logging"
	"github.com/54b3r/docrag-go/internal/pipeline"
	"github.com/54b3r/docrag-go/internal/server"
	"github.com/54b3r/docrag-go/internal/tracing"
)

// NewServeCmd constructs the `docrag serve` command, which exposes the query
// pipeline and the evaluation harness over HTTP.
func NewServeCmd() *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the docrag HTTP API",
		Long: `Start the docrag HTTP server.

Routes:
  POST /api/query   {"question": "..."}
  POST /api/eval    {"question": "...", "expected": "..."}
  GET  /api/health  liveness
  GET  /api/ready   dependency readiness (model, vector store, history)
  GET  /metrics     Prometheus metrics

Set DOCRAG_API_KEY to require "Authorization: Bearer <key>" on /api/query
and /api/eval.

Examples:
  docrag serve
  docrag serve --port 9090
  MODEL_PROVIDER=bedrock docrag serve`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.FromContext(ctx)
			log.Info("serve starting", slog.String("provider", os.Getenv("MODEL_PROVIDER")))

			defer tracing.Install(log)()

			retriever, vs, err := buildRetriever(ctx, log)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer func() { _ = vs.Close() }()

			m, err := buildChatModel(ctx, log, 0)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}

			pingers := []server.Pinger{m.pinger, vs.pinger}

			hs := openHistory(log)
			if hs != nil {
				defer func() { _ = hs.Close() }()
				pingers = append(pingers, server.NewStorePinger(hs, "history"))
			}

			p, err := pipeline.New(pipelineConfig(retriever, m, historyOrNil(hs)))
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			h, err := eval.NewHarness(&eval.Config{
				Pipeline: p,
				Judge:    m.client,
				History:  historyOrNil(hs),
			})
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}

			srv, err := server.New(p, h, &server.Config{
				Host:         host,
				Port:         port,
				Logger:       log,
				Pingers:      pingers,
				QueryTimeout: getEnvDuration("DOCRAG_QUERY_TIMEOUT", 0),
				RateLimit:    getEnvFloat("DOCRAG_RATE_LIMIT_RPS", 0),
				RateBurst:    getEnvInt("DOCRAG_RATE_LIMIT_BURST", 0),
				APIKey:       os.Getenv("DOCRAG_API_KEY"),
			})
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}

			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "Host address to bind to")
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "TCP port to listen on")

	return cmd
}
