package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/54b3r/docrag-go/internal/budget"
	"github.com/54b3r/docrag-go/internal/embedder"
	"github.com/54b3r/docrag-go/internal/pipeline"
	"github.com/54b3r/docrag-go/internal/provider"
	"github.com/54b3r/docrag-go/internal/rag"
	"github.com/54b3r/docrag-go/internal/server"
	"github.com/54b3r/docrag-go/internal/store"
)

// Vector store backends selectable with DOCRAG_STORE_BACKEND.
const (
	storeSQLite = "sqlite"
	storeQdrant = "qdrant"
)

// defaultStoreDir is the local collection directory.
const defaultStoreDir = "chroma"

// storeSettings is the resolved vector store selection.
type storeSettings struct {
	Backend string
	Dir     string
	TopK    int
}

// storeSettingsFromEnv reads DOCRAG_STORE_BACKEND, DOCRAG_STORE_DIR and DOCRAG_TOP_K.
func storeSettingsFromEnv() storeSettings {
	return storeSettings{
		Backend: getEnvOrDefault("DOCRAG_STORE_BACKEND", storeSQLite),
		Dir:     getEnvOrDefault("DOCRAG_STORE_DIR", defaultStoreDir),
		TopK:    getEnvInt("DOCRAG_TOP_K", rag.DefaultTopK),
	}
}

// vectorStore bundles an opened store with its readiness probe.
type vectorStore struct {
	rag.VectorStore
	pinger server.Pinger
}

// openVectorStore opens the configured vector store for the given embedding
// function. The caller must Close the returned store.
func openVectorStore(ctx context.Context, log *slog.Logger, st storeSettings, embCfg *embedder.Config) (*vectorStore, error) {
	switch st.Backend {
	case storeSQLite:
		vs, err := rag.OpenSQLiteStore(ctx, &rag.SQLiteConfig{
			Dir:         st.Dir,
			EmbeddingID: embedder.Identifier(embCfg),
		})
		if err != nil {
			return nil, err
		}
		log.Info("vector store ready", slog.String("backend", storeSQLite), slog.String("dir", st.Dir))
		return &vectorStore{VectorStore: vs, pinger: server.NewStorePinger(vs, "collection")}, nil

	case storeQdrant:
		host := getEnvOrDefault("QDRANT_HOST", "localhost")
		port := getEnvInt("QDRANT_PORT", 6334)
		collection := getEnvOrDefault("QDRANT_COLLECTION", "docrag")
		vs, err := rag.NewQdrantStore(ctx, &rag.QdrantConfig{
			Host:       host,
			Port:       port,
			Collection: collection,
			VectorSize: uint64(embedder.DefaultDimensions(embCfg)), //nolint:gosec // dimensions are bounded
			APIKey:     os.Getenv("QDRANT_API_KEY"),
			UseTLS:     os.Getenv("QDRANT_TLS") == "true",
		})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to Qdrant at %s:%d: %w", host, port, err)
		}
		log.Info("vector store ready",
			slog.String("backend", storeQdrant),
			slog.String("host", host),
			slog.Int("port", port),
			slog.String("collection", collection),
		)
		return &vectorStore{VectorStore: vs, pinger: server.NewQdrantPinger(vs.Client())}, nil

	default:
		return nil, fmt.Errorf("unknown DOCRAG_STORE_BACKEND %q (want %s or %s)", st.Backend, storeSQLite, storeQdrant)
	}
}

// buildEmbedder validates and constructs the embedding adapter.
func buildEmbedder(ctx context.Context, log *slog.Logger) (rag.Embedder, *embedder.Config, error) {
	cfg := embedder.ConfigFromEnv()
	if err := embedder.Validate(cfg, log); err != nil {
		return nil, nil, err
	}
	emb, err := embedder.New(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialise embedder: %w", err)
	}
	log.Info("embedder initialised", slog.String("embedding_function", embedder.Identifier(cfg)))
	return emb, cfg, nil
}

// buildRetriever wires the embedder and the configured vector store.
func buildRetriever(ctx context.Context, log *slog.Logger) (rag.Retriever, *vectorStore, error) {
	emb, embCfg, err := buildEmbedder(ctx, log)
	if err != nil {
		return nil, nil, err
	}
	st := storeSettingsFromEnv()
	vs, err := openVectorStore(ctx, log, st, embCfg)
	if err != nil {
		return nil, nil, err
	}
	retriever, err := rag.NewRetriever(emb, vs, st.TopK)
	if err != nil {
		_ = vs.Close()
		return nil, nil, err
	}
	return retriever, vs, nil
}

// chatModel is the resolved chat provider.
type chatModel struct {
	client *provider.Client
	cfg    *provider.Config
	pinger server.Pinger
}

// buildChatModel constructs the LLM client. timeout overrides MODEL_TIMEOUT
// when non-zero.
func buildChatModel(ctx context.Context, log *slog.Logger, timeout time.Duration) (*chatModel, error) {
	cfg := provider.ConfigFromEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	m, err := provider.New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialise model provider: %w", err)
	}
	if timeout == 0 {
		timeout = getEnvDuration("MODEL_TIMEOUT", 0)
	}
	client, err := provider.NewClient(m,
		provider.WithName(cfg.ModelName()),
		provider.WithTimeout(timeout),
	)
	if err != nil {
		return nil, err
	}
	log.Info("provider initialised",
		slog.String("provider", string(cfg.Backend)),
		slog.String("model", cfg.ModelName()),
		slog.Duration("timeout", timeout),
	)
	return &chatModel{
		client: client,
		cfg:    cfg,
		pinger: server.NewLLMPinger(m, provider.HealthCheckFor(cfg), string(cfg.Backend)),
	}, nil
}

// openHistory opens the run history database. DOCRAG_HISTORY_DB overrides the
// default path (~/.docrag/history.db); "disabled" turns history off. Failures
// are logged and history is disabled rather than aborting the command.
func openHistory(log *slog.Logger) *store.SQLiteStore {
	dbPath := os.Getenv("DOCRAG_HISTORY_DB")
	if dbPath == "disabled" {
		log.Info("history: disabled via DOCRAG_HISTORY_DB=disabled")
		return nil
	}
	if dbPath == "" {
		var err error
		dbPath, err = store.DefaultDBPath()
		if err != nil {
			log.Warn("history: could not resolve default DB path, disabling", slog.Any("error", err))
			return nil
		}
	}
	hs, err := store.Open(dbPath)
	if err != nil {
		log.Warn("history: failed to open store, disabling", slog.Any("error", err))
		return nil
	}
	log.Debug("history: store opened", slog.String("path", dbPath))
	return hs
}

// historyOrNil converts a possibly nil *store.SQLiteStore to the interface
// without producing a typed nil.
func historyOrNil(hs *store.SQLiteStore) store.HistoryStore {
	if hs == nil {
		return nil
	}
	return hs
}

// pipelineConfig assembles the query pipeline settings shared by query,
// eval and serve.
func pipelineConfig(retriever rag.Retriever, m *chatModel, hs store.HistoryStore) *pipeline.Config {
	return &pipeline.Config{
		Retriever:        retriever,
		Model:            m.client,
		TopK:             getEnvInt("DOCRAG_TOP_K", rag.DefaultTopK),
		History:          hs,
		MaxContextTokens: getEnvInt("MODEL_MAX_CONTEXT_TOKENS", budget.DefaultMaxContextTokens),
	}
}

// getEnvOrDefault returns the value of key or fallback if unset.
func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvInt returns key parsed as an int, or fallback if unset or invalid.
func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

// getEnvFloat returns key parsed as a float64, or fallback if unset or invalid.
func getEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

// getEnvDuration returns key parsed as a time.Duration. A bare integer is
// read as seconds.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	return fallback
}
