package ingestion

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/54b3r/docrag-go/internal/rag"
)

// countingEmbedder returns a fixed-size vector per text and counts calls.
type countingEmbedder struct {
	calls int
	texts int
	err   error
}

func (e *countingEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	e.calls++
	e.texts += len(texts)
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, float32(i)}
	}
	return out, nil
}

// memStore is an in-memory rag.VectorStore keyed by source id.
type memStore struct {
	docs map[string]rag.Document
}

func newMemStore() *memStore { return &memStore{docs: map[string]rag.Document{}} }

func (m *memStore) Upsert(_ context.Context, docs []rag.Document, _ [][]float32) error {
	for _, d := range docs {
		m.docs[d.SourceID()] = d
	}
	return nil
}

func (m *memStore) Search(context.Context, []float32, int) ([]rag.Document, error) { return nil, nil }

func (m *memStore) ExistingIDs(_ context.Context, ids []string) (map[string]bool, error) {
	out := map[string]bool{}
	for _, id := range ids {
		if _, ok := m.docs[id]; ok {
			out[id] = true
		}
	}
	return out, nil
}

func (m *memStore) Count(context.Context) (int, error) { return len(m.docs), nil }
func (m *memStore) Close() error { return nil }

func TestChunk(t *testing.T) {
	t.Parallel()

	p, err := NewPipeline(&countingEmbedder{}, newMemStore(), &Config{ChunkSize: 10, ChunkOverlap: 3})
	require.NoError(t, err)

	chunks := p.chunk("abcdefghijklmnopqrst")
	assert.Equal(t, []string{"abcdefghij", "hijklmnopq", "opqrst"}, chunks)
	assert.Nil(t, p.chunk(""))

	// Multi-byte runes are counted as one character each.
	chunks = p.chunk(strings.Repeat("é", 12))
	require.Len(t, chunks, 2)
	assert.Equal(t, strings.Repeat("é", 10), chunks[0])
}

func TestNewPipeline_Defaults(t *testing.T) {
	t.Parallel()

	p, err := NewPipeline(&countingEmbedder{}, newMemStore(), nil)
	require.NoError(t, err)
	assert.Equal(t, 800, p.cfg.ChunkSize)
	assert.Equal(t, 80, p.cfg.ChunkOverlap)
	assert.Equal(t, 64, p.cfg.BatchSize)

	_, err = NewPipeline(nil, newMemStore(), nil)
	assert.Error(t, err)
	_, err = NewPipeline(&countingEmbedder{}, nil, nil)
	assert.Error(t, err)
}

func TestSplit_IDsAndMetadata(t *testing.T) {
	t.Parallel()

	p, err := NewPipeline(&countingEmbedder{}, newMemStore(), &Config{ChunkSize: 10, ChunkOverlap: 2})
	require.NoError(t, err)

	docs := p.Split([]Page{
		{Source: "data/monopoly.pdf", Number: 0, Text: "0123456789abcdef"},
		{Source: "data/monopoly.pdf", Number: 1, Text: "short"},
	})
	require.Len(t, docs, 3)
	assert.Equal(t, "data/monopoly.pdf:0:0", docs[0].SourceID())
	assert.Equal(t, "data/monopoly.pdf:0:1", docs[1].SourceID())
	assert.Equal(t, "data/monopoly.pdf:1:0", docs[2].SourceID())
	assert.Equal(t, "data/monopoly.pdf", docs[2].Metadata[MetadataSource])
	assert.Equal(t, "1", docs[2].Metadata[MetadataPage])
	assert.Equal(t, "pdf", docs[2].Metadata[MetadataFormat])
	assert.Equal(t, "monopoly", docs[2].Metadata[MetadataTitle])
}

func TestIngest_SkipsExisting(t *testing.T) {
	t.Parallel()

	emb := &countingEmbedder{}
	st := newMemStore()
	p, err := NewPipeline(emb, st, &Config{ChunkSize: 10, ChunkOverlap: 2, BatchSize: 2})
	require.NoError(t, err)

	pages := []Page{
		{Source: "a.txt", Text: "0123456789abcdefghij"},
		{Source: "b.txt", Text: "hello"},
	}

	var progress []string
	stats, err := p.Ingest(context.Background(), pages, func(msg string) { progress = append(progress, msg) })
	require.NoError(t, err)
	assert.Equal(t, 4, stats.Chunks)
	assert.Equal(t, 4, stats.Added)
	assert.Equal(t, 0, stats.Skipped)
	assert.Equal(t, 2, emb.calls)
	assert.NotEmpty(t, progress)

	stats, err = p.Ingest(context.Background(), pages, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Added)
	assert.Equal(t, 4, stats.Skipped)
	assert.Equal(t, 4, emb.texts)

	n, err := st.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestIngest_EmbedError(t *testing.T) {
	t.Parallel()

	p, err := NewPipeline(&countingEmbedder{err: rag.ErrProviderCommunication}, newMemStore(), nil)
	require.NoError(t, err)

	_, err = p.Ingest(context.Background(), []Page{{Source: "a.txt", Text: "x"}}, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, rag.ErrProviderCommunication))
}

func TestIngest_WithSQLiteStore(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	st, err := rag.OpenSQLiteStore(ctx, &rag.SQLiteConfig{Dir: t.TempDir(), EmbeddingID: "test:fake"})
	require.NoError(t, err)
	defer func() { _ = st.Close() }()

	p, err := NewPipeline(&countingEmbedder{}, st, &Config{ChunkSize: 10, ChunkOverlap: 2})
	require.NoError(t, err)

	stats, err := p.Ingest(ctx, []Page{{Source: "rules.md", Text: "Each player starts with $1500."}}, nil)
	require.NoError(t, err)

	n, err := st.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, stats.Added, n)
}

func TestLoadDirectory(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.txt"), []byte("  second file  "), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "a.md"), []byte("# Rules"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "empty.txt"), []byte("   "), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "image.png"), []byte{0x89}, 0o600))

	pages, err := LoadDirectory(dir)
	require.NoError(t, err)
	require.Len(t, pages, 2)
	assert.Equal(t, filepath.Join(dir, "b.txt"), pages[0].Source)
	assert.Equal(t, "second file", pages[0].Text)
	assert.Equal(t, filepath.Join(dir, "sub", "a.md"), pages[1].Source)
	assert.Equal(t, 0, pages[1].Number)

	_, err = LoadDirectory(filepath.Join(dir, "missing"))
	assert.Error(t, err)
	_, err = LoadDirectory(filepath.Join(dir, "b.txt"))
	assert.Error(t, err)
}

func TestLoadFile_BadPDF(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "broken.pdf")
	require.NoError(t, os.WriteFile(path, []byte("not a pdf"), 0o600))

	_, err := LoadFile(path)
	assert.Error(t, err)
}

func TestFetchURLs(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		assert.Contains(t, r.Header.Get("User-Agent"), "docrag-go")
		_, _ = w.Write([]byte("Longest route earns 10 points.\n"))
	}))
	defer srv.Close()

	p, err := NewPipeline(&countingEmbedder{}, newMemStore(), nil)
	require.NoError(t, err)

	pages, err := p.FetchURLs(context.Background(), []string{srv.URL + "/rules"})
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, "Longest route earns 10 points.", pages[0].Text)

	_, err = p.FetchURLs(context.Background(), []string{srv.URL + "/missing"})
	assert.Error(t, err)
}

func TestResetDir(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "chroma")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, ResetDir(dir))
	_, err := os.Stat(dir)
	assert.True(t, os.IsNotExist(err))

	require.NoError(t, ResetDir(dir))
	assert.Error(t, ResetDir(""))
	assert.Error(t, ResetDir("/"))
}

func TestChunkID(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "data/monopoly.pdf:6:2", ChunkID("data/monopoly.pdf", 6, 2))
}
