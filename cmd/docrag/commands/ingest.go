package commands

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/54b3r/docrag-go/internal/ingestion"
	"github.com/54b3r/docrag-go/internal/logging"
)

// NewIngestCmd constructs the `docrag ingest` command, which loads documents,
// splits them into chunks and stores their embeddings.
func NewIngestCmd() *cobra.Command {
	var dataDir string
	var urls []string
	var reset bool

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Load, chunk and embed documents into the vector store",
		Long: `Walk the data directory for .pdf, .txt and .md files (and fetch any
--url pages), split every page into overlapping chunks and upsert them with
their embeddings. Chunk ids are "<source>:<page>:<index>"; chunks already in
the store are skipped, so ingestion can be re-run after adding files.

Environment variables:
  EMBEDDING_PROVIDER     bedrock (default), ollama, openai, azure
  DOCRAG_STORE_BACKEND   sqlite (default) or qdrant
  DOCRAG_STORE_DIR       local collection directory (default: chroma)
  QDRANT_*               Qdrant connection when the backend is qdrant

Examples:
  docrag ingest --data data
  docrag ingest --data data --reset
  docrag ingest --url https://example.com/rules.html`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			log := logging.FromContext(ctx)

			st := storeSettingsFromEnv()
			if reset {
				if st.Backend != storeSQLite {
					return fmt.Errorf("ingest: --reset is only supported for the %s store", storeSQLite)
				}
				if err := ingestion.ResetDir(st.Dir); err != nil {
					return fmt.Errorf("ingest: %w", err)
				}
				log.Info("collection cleared", slog.String("dir", st.Dir))
			}

			emb, embCfg, err := buildEmbedder(ctx, log)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			vs, err := openVectorStore(ctx, log, st, embCfg)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			defer func() { _ = vs.Close() }()

			p, err := ingestion.NewPipeline(emb, vs, nil)
			if err != nil {
				return fmt.Errorf("ingest: failed to create pipeline: %w", err)
			}

			var pages []ingestion.Page
			if dataDir != "" {
				loaded, err := ingestion.LoadDirectory(dataDir)
				if err != nil {
					return fmt.Errorf("ingest: %w", err)
				}
				pages = append(pages, loaded...)
			}
			if len(urls) > 0 {
				fetched, err := p.FetchURLs(ctx, urls)
				if err != nil {
					return fmt.Errorf("ingest: %w", err)
				}
				pages = append(pages, fetched...)
			}
			if len(pages) == 0 {
				return fmt.Errorf("ingest: no documents found (checked --data %q and %d --url values)", dataDir, len(urls))
			}

			log.Info("starting ingestion", slog.Int("pages", len(pages)))

			stats, err := p.Ingest(ctx, pages, func(msg string) {
				log.Info(msg)
			})
			if err != nil {
				return fmt.Errorf("ingest: pipeline failed: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Added %d new chunks (%d already present) from %d pages\n",
				stats.Added, stats.Skipped, stats.Pages)
			return nil
		},
	}

	cmd.Flags().StringVar(&dataDir, "data", "data", "Directory of documents to ingest")
	cmd.Flags().StringArrayVarP(&urls, "url", "u", nil, "Web page to ingest (repeatable)")
	cmd.Flags().BoolVar(&reset, "reset", false, "Delete the local collection before ingesting")

	return cmd
}
