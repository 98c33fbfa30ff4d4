// Package rag defines the interfaces for retrieval-augmented generation
// components: vector storage, document retrieval, and embedding.
// Concrete implementations (SQLite, Qdrant) satisfy these interfaces so the
// query pipeline never depends on a specific backend.
package rag

import (
	"context"
)

// MetadataID is the metadata key that carries a document's stable source id.
// Ingestion always sets it; stores populated by other tools may not.
const MetadataID = "id"

// DefaultTopK is the number of documents retrieved per query when the caller
// does not ask for a specific count.
const DefaultTopK = 5

// Document represents a unit of retrieved or stored knowledge.
type Document struct {
	// Content is the raw text content of the chunk.
	Content string

	// Metadata holds arbitrary key-value pairs. The "id" key is used for
	// source attribution in query responses.
	Metadata map[string]string

	// Score is the relevance assigned during retrieval (cosine similarity,
	// higher is more relevant). Zero value means the score was not computed.
	Score float32
}

// SourceID returns the document's "id" metadata value, or an empty string
// when the key is absent.
func (d Document) SourceID() string {
	if d.Metadata == nil {
		return ""
	}
	return d.Metadata[MetadataID]
}

// VectorStore is the interface for persisting and searching document embeddings.
type VectorStore interface {
	// Upsert stores or updates a batch of documents with their pre-computed embeddings.
	// The embeddings slice must be parallel to docs: embeddings[i] is the vector for docs[i].
	Upsert(ctx context.Context, docs []Document, embeddings [][]float32) error

	// Search returns up to topK documents closest to the query embedding,
	// ordered by descending relevance, each with Score populated.
	Search(ctx context.Context, queryEmbedding []float32, topK int) ([]Document, error)

	// ExistingIDs reports which of the given source ids are already stored.
	ExistingIDs(ctx context.Context, ids []string) (map[string]bool, error)

	// Count returns the number of stored documents.
	Count(ctx context.Context) (int, error)

	// Close releases any resources held by the store.
	Close() error
}

// Embedder is the interface for converting text into dense vector embeddings.
type Embedder interface {
	// Embed converts a batch of texts into their corresponding embeddings.
	// The returned slice is parallel to the input slice.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Retriever is the high-level interface used by the query pipeline to fetch
// relevant context for a question. It combines embedding and vector search.
type Retriever interface {
	// SimilaritySearchWithScore returns at most topK documents for the query,
	// ordered by descending relevance.
	SimilaritySearchWithScore(ctx context.Context, query string, topK int) ([]Document, error)
}
