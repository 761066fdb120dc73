// Package query runs the two-stage retrieval pipeline: route a question to
// its chapter, then search an index built over that chapter's chunks.
package query

import (
	"context"
	"fmt"
	"strings"

	"github.com/chalkboard-ai/manabi/internal/config"
	"github.com/chalkboard-ai/manabi/internal/embedding"
	"github.com/chalkboard-ai/manabi/internal/indexer"
	"github.com/chalkboard-ai/manabi/internal/models"
	"github.com/chalkboard-ai/manabi/internal/prompt"
	"github.com/chalkboard-ai/manabi/internal/router"
	"github.com/chalkboard-ai/manabi/pkg/utils"
)

// IndexProvider yields a searchable index for a chapter document path.
// Both indexer.Cache and a bare indexer.Indexer satisfy it; the provider
// owns index lifetimes.
type IndexProvider interface {
	Get(ctx context.Context, path string) (*indexer.ChapterIndex, error)
}

// Engine answers curriculum questions.
type Engine struct {
	router   *router.Router
	indexes  IndexProvider
	embedder embedding.Embedder
	config   *config.RetrievalConfig
}

// NewEngine creates a query engine with the given dependencies. The
// embedder must be the same instance used to build the routing table and
// chapter indexes, otherwise scores are not comparable.
func NewEngine(r *router.Router, indexes IndexProvider, embedder embedding.Embedder, cfg *config.RetrievalConfig) *Engine {
	return &Engine{
		router:   r,
		indexes:  indexes,
		embedder: embedder,
		config:   cfg,
	}
}

// Ask routes the question to a chapter and retrieves the most relevant
// chunks from it. Questions whose best chapter similarity falls below the
// relevance threshold are refused without building an index: the result
// reports chapter "None" with no chunks and no context.
func (e *Engine) Ask(ctx context.Context, req *models.AskRequest) (*models.AskResult, error) {
	if strings.TrimSpace(req.Question) == "" {
		return nil, fmt.Errorf("question is required")
	}
	n := req.NResults
	if n <= 0 {
		n = e.config.DefaultResults
	}
	if e.config.MaxResults > 0 && n > e.config.MaxResults {
		n = e.config.MaxResults
	}

	// One embedding serves both routing and chunk search.
	queryEmbedding, err := e.embedder.Embed(ctx, req.Question)
	if err != nil {
		return nil, fmt.Errorf("embedding question: %w", err)
	}

	entry, score := e.router.Route(queryEmbedding)
	relevance := utils.Round3(score)
	if !prompt.GateDecision(relevance, e.config.RelevanceThreshold) {
		return &models.AskResult{
			Question:         req.Question,
			Chapter:          models.ChapterNone,
			ChapterRelevance: relevance,
			Chunks:           []models.RetrievedChunk{},
		}, nil
	}

	chapterIndex, err := e.indexes.Get(ctx, entry.JSONPath)
	if err != nil {
		return nil, err
	}

	// Over-fetch when filtering by topic; the filter trims back to n.
	k := n
	if req.TopicFilter != "" {
		k = n * 2
	}
	hits, err := chapterIndex.Index.Search(ctx, queryEmbedding, k)
	if err != nil {
		return nil, fmt.Errorf("searching chapter index: %w", err)
	}

	rs := &models.ResultSet{Question: req.Question}
	count := 0
	for _, hit := range hits {
		chunk, ok := chapterIndex.Chunks[hit.ID]
		if !ok {
			continue
		}
		if req.TopicFilter != "" && !strings.EqualFold(chunk.TopicName, req.TopicFilter) {
			continue
		}
		if count >= n {
			break
		}
		count++

		qr := &models.QueryResult{Chunk: chunk, Relevance: utils.Round3(hit.Score)}
		switch chunk.Type {
		case models.DocTypeTopicOverview:
			rs.TopicOverview = append(rs.TopicOverview, qr)
		case models.DocTypeLearningObjective:
			rs.LearningObjectives = append(rs.LearningObjectives, qr)
		case models.DocTypeAllowedConcepts:
			rs.AllowedConcepts = append(rs.AllowedConcepts, qr)
		case models.DocTypeDisallowedConcepts:
			rs.DisallowedConcepts = append(rs.DisallowedConcepts, qr)
		default:
			rs.ContentBlocks = append(rs.ContentBlocks, qr)
		}
		rs.AllResults = append(rs.AllResults, qr)
	}

	chunks := make([]models.RetrievedChunk, 0, len(rs.AllResults))
	for _, qr := range rs.AllResults {
		chunks = append(chunks, models.RetrievedChunk{
			Text:      qr.Chunk.Text,
			Type:      qr.Chunk.Type,
			Topic:     qr.Chunk.TopicName,
			Relevance: qr.Relevance,
		})
	}

	return &models.AskResult{
		Question:         req.Question,
		Chapter:          entry.ChapterName,
		ChapterFile:      entry.JSONFile,
		ChapterRelevance: relevance,
		Chunks:           chunks,
		Context:          prompt.BuildContext(entry.JSONFile, entry.ChapterName, relevance, rs),
	}, nil
}
