package embedding

import (
	"context"
	"math"

	"github.com/chalkboard-ai/manabi/pkg/utils"
)

// MockEmbedder derives vectors from a text hash instead of a model. Equal
// texts always map to equal vectors, so routing and similarity are exact
// and repeatable in tests. The CLI also falls back to it when no ONNX
// model file is available.
type MockEmbedder struct {
	dims int
}

// NewMockEmbedder returns a hash-based embedder producing vectors of the
// given dimension, defaulting to 384 to match the MiniLM shape.
func NewMockEmbedder(dimensions int) *MockEmbedder {
	if dimensions <= 0 {
		dimensions = 384
	}
	return &MockEmbedder{dims: dimensions}
}

// Embed returns the unit-length vector seeded by the hash of text.
func (e *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	h := HashString(text)
	vec := make([]float32, e.dims)
	for i := range vec {
		vec[i] = float32(math.Sin(float64(h*(i+1)))*0.1 + 0.01)
	}
	utils.NormalizeL2(vec)
	return vec, nil
}

// EmbedBatch embeds each text in order.
func (e *MockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vecs := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		vecs[i] = vec
	}
	return vecs, nil
}

// Dimensions returns the vector length produced by Embed.
func (e *MockEmbedder) Dimensions() int {
	return e.dims
}

// Close is a no-op; there is no model to release.
func (e *MockEmbedder) Close() error {
	return nil
}
