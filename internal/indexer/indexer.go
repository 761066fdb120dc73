// Package indexer decomposes chapter documents into typed chunks and builds
// per-question vector indexes over them.
package indexer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/chalkboard-ai/manabi/internal/curriculum"
	"github.com/chalkboard-ai/manabi/internal/embedding"
	"github.com/chalkboard-ai/manabi/internal/models"
	"github.com/chalkboard-ai/manabi/internal/vector"
)

// Indexer builds searchable indexes over chapter documents.
type Indexer struct {
	embedder embedding.Embedder
	logger   *zap.Logger // optional; when set, logs build events
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer)

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) IndexerOption {
	return func(idx *Indexer) { idx.logger = l }
}

// NewIndexer creates an indexer that embeds chunks with embedder.
func NewIndexer(embedder embedding.Embedder, opts ...IndexerOption) *Indexer {
	idx := &Indexer{embedder: embedder}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

// ChapterIndex is a searchable vector index over one chapter document,
// together with the chunks it was built from.
type ChapterIndex struct {
	Name       string
	Path       string
	SourceFile string
	Index      vector.VectorIndex
	Chunks     map[string]*models.DocumentChunk

	modTime time.Time
	size    int64
}

// Close releases the underlying vector index.
func (c *ChapterIndex) Close() error {
	return c.Index.Close()
}

// Build loads the chapter document at path and builds a fresh, uniquely
// named index over its chunks. Chunks are embedded in decomposition order,
// so identical input produces identical ranking.
func (idx *Indexer) Build(ctx context.Context, path string) (*ChapterIndex, error) {
	start := time.Now()

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat chapter document: %w", err)
	}
	topics, err := curriculum.LoadDocument(path)
	if err != nil {
		return nil, err
	}

	sourceFile := filepath.Base(path)
	chunks := Decompose(topics, sourceFile)

	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Text
	}
	embeddings, err := idx.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embedding chunks: %w", err)
	}

	name := indexName()
	vidx, err := vector.NewMemoryIndex(name, idx.embedder.Dimensions())
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(chunks))
	byID := make(map[string]*models.DocumentChunk, len(chunks))
	for i, ch := range chunks {
		ch.Embedding = embeddings[i]
		ids[i] = ch.ID
		byID[ch.ID] = ch
	}
	if err := vidx.Add(ctx, ids, embeddings); err != nil {
		return nil, fmt.Errorf("adding chunks to index: %w", err)
	}

	if idx.logger != nil {
		idx.logger.Debug("chapter index built",
			zap.String("index", name),
			zap.String("path", path),
			zap.Int("chunks", len(chunks)),
			zap.Duration("took", time.Since(start)))
	}
	return &ChapterIndex{
		Name:       name,
		Path:       path,
		SourceFile: sourceFile,
		Index:      vidx,
		Chunks:     byID,
		modTime:    info.ModTime(),
		size:       info.Size(),
	}, nil
}

// Get builds a fresh index for path. It gives uncached setups the same
// access shape as Cache.Get.
func (idx *Indexer) Get(ctx context.Context, path string) (*ChapterIndex, error) {
	return idx.Build(ctx, path)
}

// indexName returns a name unique to one build. Millisecond timestamps
// alone can collide under concurrent builds, so a uuid fragment is
// appended.
func indexName() string {
	return fmt.Sprintf("chapter_%d_%s", time.Now().UnixMilli(), uuid.New().String()[:8])
}
