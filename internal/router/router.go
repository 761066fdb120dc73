// Package router maps a question to the most relevant chapter. The routing
// table is built once at startup from the chapter mapping file and is
// immutable afterwards, so lookups are safe for concurrent use.
package router

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/chalkboard-ai/manabi/internal/embedding"
	"github.com/chalkboard-ai/manabi/internal/vector"
)

// ChapterIndexEntry is one routable chapter: its name, the chapter JSON
// file backing it, and the embedding of the chapter name.
type ChapterIndexEntry struct {
	ChapterName string
	JSONFile    string
	JSONPath    string
	Embedding   []float32
}

// StartupError reports that the routing table could not be built. Without a
// routing table no question can be answered, so callers treat this as fatal.
type StartupError struct {
	Path string
	Err  error
}

func (e *StartupError) Error() string {
	return fmt.Sprintf("chapter router startup failed (%s): %v", e.Path, e.Err)
}

func (e *StartupError) Unwrap() error {
	return e.Err
}

// Router holds the chapter routing table.
type Router struct {
	entries []*ChapterIndexEntry
	logger  *zap.Logger // optional; when set, logs routing decisions
}

// RouterOption configures a Router.
type RouterOption func(*Router)

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) RouterOption {
	return func(r *Router) { r.logger = l }
}

// New builds the routing table from the mapping file at mappingPath.
// Chapter JSON paths in the mapping resolve against contentDir. Every
// chapter name is embedded once, up front, with the given embedder.
func New(ctx context.Context, mappingPath, contentDir string, embedder embedding.Embedder, opts ...RouterOption) (*Router, error) {
	r := &Router{}
	for _, opt := range opts {
		opt(r)
	}

	data, err := os.ReadFile(mappingPath)
	if err != nil {
		return nil, &StartupError{Path: mappingPath, Err: fmt.Errorf("reading mapping: %w", err)}
	}
	docs, err := parseMapping(data)
	if err != nil {
		return nil, &StartupError{Path: mappingPath, Err: err}
	}

	for _, doc := range docs {
		for _, name := range doc.Chapters {
			r.entries = append(r.entries, &ChapterIndexEntry{
				ChapterName: name,
				JSONFile:    doc.JSONFile,
				JSONPath:    filepath.Join(contentDir, doc.JSONFile),
			})
		}
	}
	if len(r.entries) == 0 {
		return nil, &StartupError{Path: mappingPath, Err: fmt.Errorf("mapping lists no chapters")}
	}

	names := make([]string, len(r.entries))
	for i, e := range r.entries {
		names[i] = e.ChapterName
	}
	embeddings, err := embedder.EmbedBatch(ctx, names)
	if err != nil {
		return nil, &StartupError{Path: mappingPath, Err: fmt.Errorf("embedding chapter names: %w", err)}
	}
	for i := range r.entries {
		r.entries[i].Embedding = embeddings[i]
	}

	if r.logger != nil {
		r.logger.Info("chapter routing table ready",
			zap.Int("chapters", len(r.entries)),
			zap.String("mapping", mappingPath))
	}
	return r, nil
}

// Route returns the chapter whose name is most similar to the query
// embedding, with its cosine similarity. Ties go to the chapter listed
// first in the mapping file.
func (r *Router) Route(queryEmbedding []float32) (*ChapterIndexEntry, float64) {
	var best *ChapterIndexEntry
	bestScore := math.Inf(-1)
	for _, e := range r.entries {
		score := vector.Cosine(queryEmbedding, e.Embedding)
		if score > bestScore {
			bestScore = score
			best = e
		}
	}
	if r.logger != nil {
		r.logger.Debug("routed question to chapter",
			zap.String("chapter", best.ChapterName),
			zap.Float64("similarity", bestScore))
	}
	return best, bestScore
}

// Chapters returns chapter names in mapping file order.
func (r *Router) Chapters() []string {
	names := make([]string, len(r.entries))
	for i, e := range r.entries {
		names[i] = e.ChapterName
	}
	return names
}

// Entries returns the routing table entries in mapping file order.
func (r *Router) Entries() []*ChapterIndexEntry {
	out := make([]*ChapterIndexEntry, len(r.entries))
	copy(out, r.entries)
	return out
}
