//go:build cgo
// +build cgo

package embedding

import (
	"context"
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/chalkboard-ai/manabi/pkg/utils"
)

// sessionTensors holds the fixed-shape input and output tensors bound to an
// ONNX session. They are allocated once and reused; Embed copies fresh token
// IDs in before every run.
type sessionTensors struct {
	inputIDs  *ort.Tensor[int64]
	attention *ort.Tensor[int64]
	tokenType *ort.Tensor[int64]
	output    *ort.Tensor[float32]
}

func newSessionTensors(maxTokens, dimensions int) (*sessionTensors, error) {
	seq := ort.NewShape(1, int64(maxTokens))
	t := &sessionTensors{}
	var err error
	if t.inputIDs, err = ort.NewTensor(seq, make([]int64, maxTokens)); err != nil {
		return nil, fmt.Errorf("create input_ids tensor: %w", err)
	}
	if t.attention, err = ort.NewTensor(seq, make([]int64, maxTokens)); err != nil {
		t.destroy()
		return nil, fmt.Errorf("create attention_mask tensor: %w", err)
	}
	if t.tokenType, err = ort.NewTensor(seq, make([]int64, maxTokens)); err != nil {
		t.destroy()
		return nil, fmt.Errorf("create token_type_ids tensor: %w", err)
	}
	if t.output, err = ort.NewTensor(ort.NewShape(1, int64(dimensions)), make([]float32, dimensions)); err != nil {
		t.destroy()
		return nil, fmt.Errorf("create output tensor: %w", err)
	}
	return t, nil
}

// destroy releases whichever tensors exist. Safe to call on partial state.
func (t *sessionTensors) destroy() {
	if t.inputIDs != nil {
		_ = t.inputIDs.Destroy()
		t.inputIDs = nil
	}
	if t.attention != nil {
		_ = t.attention.Destroy()
		t.attention = nil
	}
	if t.tokenType != nil {
		_ = t.tokenType.Destroy()
		t.tokenType = nil
	}
	if t.output != nil {
		_ = t.output.Destroy()
		t.output = nil
	}
}

// ONNXEmbedder runs a local sentence-transformer model through onnxruntime.
// It needs CGO and the onnxruntime shared library at runtime.
type ONNXEmbedder struct {
	session    *ort.AdvancedSession
	tensors    *sessionTensors
	tokenizer  Tokenizer
	cache      *EmbeddingCache
	dimensions int
	maxTokens  int
	mu         sync.Mutex
}

// NewONNXEmbedder loads the model at modelPath. The runtime environment is
// initialized on first use and shared across embedders.
func NewONNXEmbedder(modelPath string, dimensions, maxTokens, cacheSize int) (*ONNXEmbedder, error) {
	if err := ort.InitializeEnvironment(); err != nil {
		return nil, fmt.Errorf("initialize onnxruntime: %w", err)
	}
	tensors, err := newSessionTensors(maxTokens, dimensions)
	if err != nil {
		return nil, err
	}
	session, err := ort.NewAdvancedSession(
		modelPath,
		[]string{"input_ids", "attention_mask", "token_type_ids"},
		[]string{"output"},
		[]ort.ArbitraryTensor{tensors.inputIDs, tensors.attention, tensors.tokenType},
		[]ort.ArbitraryTensor{tensors.output},
		nil,
	)
	if err != nil {
		tensors.destroy()
		return nil, fmt.Errorf("load ONNX model %s: %w", modelPath, err)
	}
	return &ONNXEmbedder{
		session:    session,
		tensors:    tensors,
		tokenizer:  &SimpleTokenizer{},
		cache:      NewEmbeddingCache(cacheSize),
		dimensions: dimensions,
		maxTokens:  maxTokens,
	}, nil
}

// Embed returns the unit-length embedding of text, consulting the cache
// first. The session owns a single set of tensors, so inference runs are
// serialized.
func (e *ONNXEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if vec, ok := e.cache.Get(text); ok {
		return vec, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	inputIDs, attention, tokenTypes := e.tokenizer.Tokenize(text, e.maxTokens)
	copy(e.tensors.inputIDs.GetData(), inputIDs)
	copy(e.tensors.attention.GetData(), attention)
	copy(e.tensors.tokenType.GetData(), tokenTypes)
	if err := e.session.Run(); err != nil {
		return nil, fmt.Errorf("%w: inference failed: %v", ErrUnavailable, err)
	}

	vec := make([]float32, e.dimensions)
	copy(vec, e.tensors.output.GetData()[:e.dimensions])
	utils.NormalizeL2(vec)
	e.cache.Set(text, vec)
	return vec, nil
}

// EmbedBatch embeds each text in order.
func (e *ONNXEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
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
func (e *ONNXEmbedder) Dimensions() int {
	return e.dimensions
}

// Close destroys the session and its tensors.
func (e *ONNXEmbedder) Close() error {
	var err error
	if e.session != nil {
		err = e.session.Destroy()
		e.session = nil
	}
	if e.tensors != nil {
		e.tensors.destroy()
	}
	return err
}
