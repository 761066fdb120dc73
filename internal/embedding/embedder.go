// Package embedding provides text embedding behind a common interface.
// Three providers are available: a local ONNX model (requires CGO), an
// OpenAI-compatible HTTP endpoint, and a deterministic mock for tests.
// All providers return unit-length vectors so that inner product equals
// cosine similarity.
package embedding

import "context"

// Embedder produces vector embeddings for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}
