package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/chalkboard-ai/manabi/pkg/utils"
)

// maxHTTPBatch caps how many inputs go into one embeddings request.
const maxHTTPBatch = 100

// HTTPEmbedder calls an OpenAI-compatible /embeddings endpoint. Vectors are
// L2-normalized after decoding so scores from the in-memory index stay in
// cosine space regardless of what the backend returns.
type HTTPEmbedder struct {
	baseURL    string
	apiKey     string
	model      string
	dimensions int
	cache      *EmbeddingCache
	client     *http.Client
}

type embeddingRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

type embeddingResponse struct {
	Data  []embeddingData `json:"data"`
	Error *apiError       `json:"error,omitempty"`
}

type embeddingData struct {
	Embedding []float32 `json:"embedding"`
	Index     int       `json:"index"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// NewHTTPEmbedder creates an embedder backed by an OpenAI-compatible
// endpoint. An empty baseURL falls back to a local Ollama server. The API
// key is read from the environment variable named by apiKeyEnv; an empty
// key is allowed for local servers that skip auth.
func NewHTTPEmbedder(baseURL, apiKeyEnv, model string, dimensions, cacheSize int) (*HTTPEmbedder, error) {
	if baseURL == "" {
		baseURL = "http://localhost:11434/v1"
	}
	if model == "" {
		return nil, fmt.Errorf("embedding model name is required")
	}
	if dimensions <= 0 {
		return nil, fmt.Errorf("embedding dimensions must be positive, got %d", dimensions)
	}

	var apiKey string
	if apiKeyEnv != "" {
		apiKey = os.Getenv(apiKeyEnv)
	}

	return &HTTPEmbedder{
		baseURL:    baseURL,
		apiKey:     apiKey,
		model:      model,
		dimensions: dimensions,
		cache:      NewEmbeddingCache(cacheSize),
		client:     &http.Client{Timeout: 60 * time.Second},
	}, nil
}

// Embed returns the embedding for text, using cache when available.
func (e *HTTPEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return embeddings[0], nil
}

// EmbedBatch embeds texts, requesting only cache misses from the backend.
func (e *HTTPEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var missing []string
	var missingIdx []int
	for i, text := range texts {
		if cached, ok := e.cache.Get(text); ok {
			out[i] = cached
			continue
		}
		missing = append(missing, text)
		missingIdx = append(missingIdx, i)
	}

	for start := 0; start < len(missing); start += maxHTTPBatch {
		end := start + maxHTTPBatch
		if end > len(missing) {
			end = len(missing)
		}
		vectors, err := e.request(ctx, missing[start:end])
		if err != nil {
			return nil, err
		}
		for j, vec := range vectors {
			if len(vec) != e.dimensions {
				return nil, fmt.Errorf("backend returned %d dimensions, expected %d", len(vec), e.dimensions)
			}
			utils.NormalizeL2(vec)
			idx := missingIdx[start+j]
			out[idx] = vec
			e.cache.Set(texts[idx], vec)
		}
	}
	return out, nil
}

func (e *HTTPEmbedder) request(ctx context.Context, texts []string) ([][]float32, error) {
	jsonData, err := json.Marshal(embeddingRequest{Input: texts, Model: e.model})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/embeddings", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", ErrUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d: %s", ErrUnavailable, resp.StatusCode, utils.Truncate(string(body), 200))
	}

	var embResp embeddingResponse
	if err := json.Unmarshal(body, &embResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if embResp.Error != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnavailable, embResp.Error.Message)
	}

	vectors := make([][]float32, len(texts))
	for _, data := range embResp.Data {
		if data.Index >= 0 && data.Index < len(vectors) {
			vectors[data.Index] = data.Embedding
		}
	}
	for i, vec := range vectors {
		if vec == nil {
			return nil, fmt.Errorf("backend returned no embedding for input %d", i)
		}
	}
	return vectors, nil
}

// Dimensions returns the embedding dimension.
func (e *HTTPEmbedder) Dimensions() int {
	return e.dimensions
}

// Close is a no-op for HTTPEmbedder.
func (e *HTTPEmbedder) Close() error {
	return nil
}
