// Package integration exercises the assembled retrieval pipeline (router,
// indexer cache, query engine, chat service, history store) against real
// files on disk.
package integration

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chalkboard-ai/manabi/internal/answer"
	"github.com/chalkboard-ai/manabi/internal/config"
	"github.com/chalkboard-ai/manabi/internal/embedding"
	"github.com/chalkboard-ai/manabi/internal/history"
	"github.com/chalkboard-ai/manabi/internal/indexer"
	"github.com/chalkboard-ai/manabi/internal/models"
	"github.com/chalkboard-ai/manabi/internal/query"
	"github.com/chalkboard-ai/manabi/internal/router"
)

const fractionsChapter = `[
  {
    "topic_id": "t1",
    "topic_name": "Understanding Fractions",
    "learning_objectives": ["Identify the numerator and denominator"],
    "allowed_concepts": ["fractions"],
    "disallowed_concepts": [],
    "content_blocks": [
      {"block_id": "b1", "type": "definition", "text": "A fraction names part of a whole."}
    ]
  }
]`

const scienceChapter = `[
  {
    "topic_id": "s1",
    "topic_name": "Photosynthesis",
    "learning_objectives": ["Name the inputs of photosynthesis"],
    "allowed_concepts": ["photosynthesis"],
    "disallowed_concepts": [],
    "content_blocks": [
      {"block_id": "c1", "type": "explanation", "text": "Plants use sunlight, water, and carbon dioxide."}
    ]
  }
]`

type cannedGenerator struct {
	reply string
	calls int
}

func (g *cannedGenerator) Generate(_ context.Context, _, _ string, _ answer.GenerateOptions) (string, error) {
	g.calls++
	return g.reply, nil
}

func TestIntegration_AskAndChat(t *testing.T) {
	dir := t.TempDir()
	mapping := `{
  "math_grade5.pdf": {"chapters": ["Fractions"], "json_file": "fractions.json"},
  "science_grade5.pdf": {"chapters": ["Photosynthesis"], "json_file": "science.json"}
}`
	for name, content := range map[string]string{
		"chapter_mapping.json": mapping,
		"fractions.json":       fractionsChapter,
		"science.json":         scienceChapter,
	} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}

	embedder := embedding.NewMockEmbedder(16)
	defer embedder.Close()

	rt, err := router.New(context.Background(), filepath.Join(dir, "chapter_mapping.json"), dir, embedder)
	if err != nil {
		t.Fatal(err)
	}

	cache := indexer.NewCache(indexer.NewIndexer(embedder), 4)
	defer cache.Close()

	engine := query.NewEngine(rt, cache, embedder, &config.RetrievalConfig{
		RelevanceThreshold: 0.45,
		DefaultResults:     8,
		MaxResults:         50,
	})
	ctx := context.Background()

	result, err := engine.Ask(ctx, &models.AskRequest{Question: "Fractions"})
	if err != nil {
		t.Fatal(err)
	}
	if result.Chapter != "Fractions" {
		t.Fatalf("routed to %q, want Fractions", result.Chapter)
	}
	if len(result.Chunks) == 0 {
		t.Fatal("no chunks retrieved")
	}
	if !strings.Contains(result.Context, "CONTEXT FROM CURRICULUM") {
		t.Error("context block header missing")
	}
	if !strings.Contains(result.Context, "A fraction names part of a whole.") {
		t.Error("context missing the chapter content")
	}

	store, err := history.NewStore(filepath.Join(dir, "history.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	gen := &cannedGenerator{reply: "A fraction describes equal sharing."}
	svc := answer.NewService(engine, gen, store, &config.AnswerConfig{
		Model:       "gpt-4o-mini",
		Temperature: 0.3,
		MaxTokens:   800,
	})

	chatRes, err := svc.Chat(ctx, &models.ChatRequest{Message: "Photosynthesis"})
	if err != nil {
		t.Fatal(err)
	}
	if chatRes.Answer != gen.reply {
		t.Errorf("answer = %q", chatRes.Answer)
	}
	if chatRes.Chapter != "Photosynthesis" {
		t.Errorf("chat routed to %q, want Photosynthesis", chatRes.Chapter)
	}
	if gen.calls != 1 {
		t.Errorf("generator called %d times, want 1", gen.calls)
	}
	if len(chatRes.Sources) == 0 {
		t.Error("chat result has no sources")
	}

	count, err := store.CountExchanges(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("recorded %d exchanges, want 1", count)
	}
}
