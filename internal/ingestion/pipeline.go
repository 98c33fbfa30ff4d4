// Package ingestion loads source documents (PDF rule books, plain text,
// markdown, fetched web pages), splits them into overlapping chunks, embeds
// the chunks and upserts them into the vector store. It is invoked by the
// `docrag ingest` CLI command.
//
// Chunk ids have the form "<source>:<page>:<chunk>" and are stable across
// runs, so re-ingesting the same data only embeds chunks the store has not
// seen before.
package ingestion

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/54b3r/docrag-go/internal/rag"
)

// Metadata keys written on every chunk.
const (
	MetadataSource = "source"
	MetadataPage   = "page"
	MetadataFormat = "format"
	MetadataTitle  = "title"
)

// Config holds the configuration for the ingestion pipeline.
type Config struct {
	// ChunkSize is the maximum number of characters per chunk.
	// Defaults to 800 if zero.
	ChunkSize int

	// ChunkOverlap is the number of characters shared by consecutive chunks.
	// Defaults to 80 if zero.
	ChunkOverlap int

	// BatchSize is the number of chunks embedded per embedder call.
	// Defaults to 64 if zero.
	BatchSize int

	// HTTPTimeout is the timeout for each URL fetch. Defaults to 30s if zero.
	HTTPTimeout time.Duration

	// UserAgent is the HTTP User-Agent header sent with fetch requests.
	UserAgent string
}

// Stats summarises one ingestion run.
type Stats struct {
	Pages   int
	Chunks  int
	Added   int
	Skipped int
}

// Pipeline orchestrates the load → chunk → embed → upsert flow.
type Pipeline struct {
	// embedder converts text chunks into dense vector embeddings.
	embedder rag.Embedder

	// store persists the embedded chunks.
	store rag.VectorStore

	// cfg holds the resolved pipeline configuration.
	cfg *Config

	// httpClient is the HTTP client used for fetching URL sources.
	httpClient *http.Client
}

// NewPipeline constructs a Pipeline from the provided dependencies and config.
func NewPipeline(embedder rag.Embedder, store rag.VectorStore, cfg *Config) (*Pipeline, error) {
	if embedder == nil {
		return nil, fmt.Errorf("ingestion: embedder must not be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("ingestion: store must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 800
	}
	if cfg.ChunkOverlap <= 0 {
		cfg.ChunkOverlap = 80
	}
	if cfg.ChunkOverlap >= cfg.ChunkSize {
		cfg.ChunkOverlap = cfg.ChunkSize / 10
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 64
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 30 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "docrag-go/1.0 (document ingestion)"
	}

	return &Pipeline{
		embedder: embedder,
		store:    store,
		cfg:      cfg,
		httpClient: &http.Client{
			Timeout: cfg.HTTPTimeout,
		},
	}, nil
}

// FetchURLs downloads each URL as a single page.
func (p *Pipeline) FetchURLs(ctx context.Context, urls []string) ([]Page, error) {
	pages := make([]Page, 0, len(urls))
	for _, u := range urls {
		page, err := fetchURL(ctx, p.httpClient, p.cfg.UserAgent, u)
		if err != nil {
			return nil, fmt.Errorf("ingestion: fetch failed for %s: %w", u, err)
		}
		if page.Text != "" {
			pages = append(pages, page)
		}
	}
	return pages, nil
}

// Ingest chunks pages, drops chunks whose id is already stored, then embeds
// and upserts the rest in batches. Progress is reported via the optional
// progress callback.
func (p *Pipeline) Ingest(ctx context.Context, pages []Page, progress func(msg string)) (*Stats, error) {
	if progress == nil {
		progress = func(string) {}
	}

	stats := &Stats{Pages: len(pages)}
	docs := p.Split(pages)
	stats.Chunks = len(docs)
	progress(fmt.Sprintf("split %d pages into %d chunks", len(pages), len(docs)))

	ids := make([]string, len(docs))
	for i, d := range docs {
		ids[i] = d.SourceID()
	}
	existing, err := p.store.ExistingIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("ingestion: lookup existing ids: %w", err)
	}

	fresh := docs[:0:0]
	for _, d := range docs {
		if existing[d.SourceID()] {
			stats.Skipped++
			continue
		}
		fresh = append(fresh, d)
	}
	if len(fresh) == 0 {
		progress("no new chunks to add")
		return stats, nil
	}
	progress(fmt.Sprintf("adding %d new chunks (%d already stored)", len(fresh), stats.Skipped))

	for start := 0; start < len(fresh); start += p.cfg.BatchSize {
		end := min(start+p.cfg.BatchSize, len(fresh))
		batch := fresh[start:end]

		texts := make([]string, len(batch))
		for i, d := range batch {
			texts[i] = d.Content
		}
		embeddings, err := p.embedder.Embed(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("ingestion: embedding failed for %s: %w", batch[0].SourceID(), err)
		}
		if len(embeddings) != len(batch) {
			return nil, fmt.Errorf("ingestion: embedder returned %d vectors for %d chunks", len(embeddings), len(batch))
		}
		if err := p.store.Upsert(ctx, batch, embeddings); err != nil {
			return nil, fmt.Errorf("ingestion: upsert failed for %s: %w", batch[0].SourceID(), err)
		}
		stats.Added += len(batch)
		progress(fmt.Sprintf("ingested %d/%d chunks", stats.Added, len(fresh)))
	}

	return stats, nil
}

// Split chunks every page and attaches id, source and page metadata.
func (p *Pipeline) Split(pages []Page) []rag.Document {
	var docs []rag.Document
	for _, page := range pages {
		meta := InferMetadata(page.Source)
		for i, chunk := range p.chunk(page.Text) {
			docs = append(docs, rag.Document{
				Content: chunk,
				Metadata: map[string]string{
					rag.MetadataID: ChunkID(page.Source, page.Number, i),
					MetadataSource: page.Source,
					MetadataPage:   strconv.Itoa(page.Number),
					MetadataFormat: meta.Format,
					MetadataTitle:  meta.Title,
				},
			})
		}
	}
	return docs
}

// chunk splits text into overlapping chunks of cfg.ChunkSize characters.
// Lengths are counted in runes so multi-byte text is never cut mid-character.
func (p *Pipeline) chunk(text string) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	var chunks []string
	size := p.cfg.ChunkSize
	overlap := p.cfg.ChunkOverlap

	for start := 0; start < len(runes); start += size - overlap {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}

	return chunks
}

// ChunkID returns the stable id of chunk index within page of source.
func ChunkID(source string, page, index int) string {
	return source + ":" + strconv.Itoa(page) + ":" + strconv.Itoa(index)
}

// ResetDir deletes a local collection directory. A missing directory is not
// an error.
func ResetDir(dir string) error {
	if dir == "" || dir == "/" || dir == "." {
		return fmt.Errorf("ingestion: refusing to reset %q", dir)
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("ingestion: reset %s: %w", dir, err)
	}
	return nil
}
