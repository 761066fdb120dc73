//go:build !cgo
// +build !cgo

package embedding

import (
	"context"
	"errors"
)

var errNoCGO = errors.New("onnx embedder requires cgo and the onnxruntime library; rebuild with CGO_ENABLED=1")

// ONNXEmbedder is a placeholder for builds without CGO. The constructor
// always fails, so the methods are never reached on a live value; they
// exist so this type satisfies Embedder on every platform.
type ONNXEmbedder struct{}

// NewONNXEmbedder always returns an error in builds without CGO.
func NewONNXEmbedder(string, int, int, int) (*ONNXEmbedder, error) {
	return nil, errNoCGO
}

func (e *ONNXEmbedder) Embed(context.Context, string) ([]float32, error) {
	return nil, errNoCGO
}

func (e *ONNXEmbedder) EmbedBatch(context.Context, []string) ([][]float32, error) {
	return nil, errNoCGO
}

func (e *ONNXEmbedder) Dimensions() int { return 0 }

func (e *ONNXEmbedder) Close() error { return nil }
