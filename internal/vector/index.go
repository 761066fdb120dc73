// Package vector provides in-memory vector indexes and similarity search.
package vector

import "context"

// VectorIndex defines vector storage and similarity search. Indexes are
// append-only: chunks are added when the index is built and live until the
// index is closed.
type VectorIndex interface {
	Name() string
	Add(ctx context.Context, ids []string, vectors [][]float32) error
	Search(ctx context.Context, query []float32, k int) ([]*VectorResult, error)
	Size() int
	Close() error
}

// VectorResult is a single vector search hit (ID is the chunk ID).
type VectorResult struct {
	ID    string
	Score float64 // Inner product; equals cosine similarity for unit vectors.
}
