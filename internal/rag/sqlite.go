package rag

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	_ "modernc.org/sqlite" // register "sqlite" driver
)

// collectionFile is the database file created inside the collection directory.
const collectionFile = "collection.db"

// metaEmbeddingFunction is the collection_meta key holding the identifier of
// the embedding function the collection was populated with.
const metaEmbeddingFunction = "embedding_function"

// SQLiteConfig holds the settings for a local, file-backed collection.
type SQLiteConfig struct {
	// Dir is the collection directory. It is created if absent.
	Dir string

	// EmbeddingID identifies the embedding function (e.g.
	// "bedrock:amazon.titan-embed-text-v1"). It is recorded on first open and
	// validated on every later open. Empty disables the check.
	EmbeddingID string
}

// SQLiteStore implements VectorStore on a single SQLite database. Search is an
// exhaustive cosine-similarity scan, which is adequate for the document
// counts a local collection holds.
type SQLiteStore struct {
	// db is the underlying database connection pool.
	db *sql.DB

	// path is the resolved database file path, used in error messages.
	path string
}

// OpenSQLiteStore opens (or creates) the collection at cfg.Dir and checks
// that it was populated with the same embedding function.
func OpenSQLiteStore(ctx context.Context, cfg *SQLiteConfig) (*SQLiteStore, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("rag: sqlite: %w: collection directory must not be empty", ErrStoreAccess)
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("rag: sqlite: %w: create %s: %w", ErrStoreAccess, cfg.Dir, err)
	}

	path := filepath.Join(cfg.Dir, collectionFile)
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("rag: sqlite: %w: open %s: %w", ErrStoreAccess, path, err)
	}
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db, path: path}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := s.checkEmbeddingFunction(ctx, cfg.EmbeddingID); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// migrate creates the schema if it does not already exist.
func (s *SQLiteStore) migrate(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS collection_meta (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS documents (
    pk        INTEGER PRIMARY KEY AUTOINCREMENT,
    source_id TEXT UNIQUE,           -- metadata "id"; NULL when absent
    content   TEXT NOT NULL,
    metadata  TEXT NOT NULL,         -- JSON object
    embedding BLOB NOT NULL          -- little-endian float32
);
`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("rag: sqlite: %w: migrate %s: %w", ErrStoreAccess, s.path, err)
	}
	return nil
}

// checkEmbeddingFunction records id on a fresh collection and rejects a
// mismatching id on an existing one.
func (s *SQLiteStore) checkEmbeddingFunction(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}

	var stored string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM collection_meta WHERE key = ?`, metaEmbeddingFunction).Scan(&stored)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := s.db.ExecContext(ctx, `INSERT INTO collection_meta (key, value) VALUES (?, ?)`, metaEmbeddingFunction, id); err != nil {
			return fmt.Errorf("rag: sqlite: %w: record embedding function: %w", ErrStoreAccess, err)
		}
		return nil
	case err != nil:
		return fmt.Errorf("rag: sqlite: %w: read collection metadata: %w", ErrStoreAccess, err)
	case stored != id:
		return fmt.Errorf("rag: sqlite: %w: %w: collection %s was built with %q, opened with %q",
			ErrStoreAccess, ErrEmbeddingMismatch, s.path, stored, id)
	}
	return nil
}

// Upsert inserts documents, replacing any existing row with the same source id.
func (s *SQLiteStore) Upsert(ctx context.Context, docs []Document, embeddings [][]float32) error {
	if len(docs) != len(embeddings) {
		return fmt.Errorf("rag: sqlite: %d documents but %d embeddings", len(docs), len(embeddings))
	}
	if len(docs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("rag: sqlite: %w: begin: %w", ErrStoreAccess, err)
	}
	defer func() { _ = tx.Rollback() }()

	const q = `
INSERT INTO documents (source_id, content, metadata, embedding) VALUES (?, ?, ?, ?)
ON CONFLICT(source_id) DO UPDATE SET
    content   = excluded.content,
    metadata  = excluded.metadata,
    embedding = excluded.embedding`
	stmt, err := tx.PrepareContext(ctx, q)
	if err != nil {
		return fmt.Errorf("rag: sqlite: %w: prepare upsert: %w", ErrStoreAccess, err)
	}
	defer stmt.Close()

	for i, doc := range docs {
		meta := doc.Metadata
		if meta == nil {
			meta = map[string]string{}
		}
		metaJSON, err := json.Marshal(meta)
		if err != nil {
			return fmt.Errorf("rag: sqlite: marshal metadata: %w", err)
		}
		var sourceID any
		if id := doc.SourceID(); id != "" {
			sourceID = id
		}
		if _, err := stmt.ExecContext(ctx, sourceID, doc.Content, string(metaJSON), encodeEmbedding(embeddings[i])); err != nil {
			return fmt.Errorf("rag: sqlite: %w: upsert: %w", ErrStoreAccess, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("rag: sqlite: %w: commit: %w", ErrStoreAccess, err)
	}
	return nil
}

// Search scores every stored vector against queryEmbedding and returns the
// topK best, highest similarity first. Ties keep insertion order.
func (s *SQLiteStore) Search(ctx context.Context, queryEmbedding []float32, topK int) ([]Document, error) {
	if topK <= 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `SELECT content, metadata, embedding FROM documents ORDER BY pk`)
	if err != nil {
		return nil, fmt.Errorf("rag: sqlite: %w: search: %w", ErrStoreAccess, err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var (
			doc      Document
			metaJSON string
			blob     []byte
		)
		if err := rows.Scan(&doc.Content, &metaJSON, &blob); err != nil {
			return nil, fmt.Errorf("rag: sqlite: %w: search scan: %w", ErrStoreAccess, err)
		}
		if err := json.Unmarshal([]byte(metaJSON), &doc.Metadata); err != nil {
			return nil, fmt.Errorf("rag: sqlite: %w: corrupt metadata: %w", ErrStoreAccess, err)
		}
		vec, err := decodeEmbedding(blob)
		if err != nil {
			return nil, fmt.Errorf("rag: sqlite: %w: %w", ErrStoreAccess, err)
		}
		score, err := cosineSimilarity(queryEmbedding, vec)
		if err != nil {
			return nil, fmt.Errorf("rag: sqlite: %w: %w: %w", ErrStoreAccess, ErrEmbeddingMismatch, err)
		}
		doc.Score = score
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rag: sqlite: %w: search rows: %w", ErrStoreAccess, err)
	}

	sort.SliceStable(docs, func(i, j int) bool { return docs[i].Score > docs[j].Score })
	if len(docs) > topK {
		docs = docs[:topK]
	}
	return docs, nil
}

// ExistingIDs reports which of ids already have a stored document.
func (s *SQLiteStore) ExistingIDs(ctx context.Context, ids []string) (map[string]bool, error) {
	found := make(map[string]bool, len(ids))
	if len(ids) == 0 {
		return found, nil
	}

	stmt, err := s.db.PrepareContext(ctx, `SELECT 1 FROM documents WHERE source_id = ?`)
	if err != nil {
		return nil, fmt.Errorf("rag: sqlite: %w: prepare lookup: %w", ErrStoreAccess, err)
	}
	defer stmt.Close()

	for _, id := range ids {
		var one int
		err := stmt.QueryRowContext(ctx, id).Scan(&one)
		switch {
		case errors.Is(err, sql.ErrNoRows):
		case err != nil:
			return nil, fmt.Errorf("rag: sqlite: %w: lookup %q: %w", ErrStoreAccess, id, err)
		default:
			found[id] = true
		}
	}
	return found, nil
}

// Count returns the number of stored documents.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&n); err != nil {
		return 0, fmt.Errorf("rag: sqlite: %w: count: %w", ErrStoreAccess, err)
	}
	return n, nil
}

// Ping verifies the database is reachable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("rag: sqlite: %w: ping: %w", ErrStoreAccess, err)
	}
	return nil
}

// Close releases the database connection pool.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("rag: sqlite: close: %w", err)
	}
	return nil
}
