package e2e

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chalkboard-ai/manabi/internal/answer"
	"github.com/chalkboard-ai/manabi/internal/config"
	"github.com/chalkboard-ai/manabi/internal/curriculum"
	"github.com/chalkboard-ai/manabi/internal/embedding"
	"github.com/chalkboard-ai/manabi/internal/history"
	"github.com/chalkboard-ai/manabi/internal/indexer"
	"github.com/chalkboard-ai/manabi/internal/models"
	"github.com/chalkboard-ai/manabi/internal/prompt"
	"github.com/chalkboard-ai/manabi/internal/query"
	"github.com/chalkboard-ai/manabi/internal/router"
)

const (
	e2eDimensions = 32
	// e2eResults exceeds every chapter's chunk count so retrieval returns
	// the whole chapter and signature checks cannot miss.
	e2eResults = 50
)

// buildEngine writes the corpus under a temp dir and assembles the full
// retrieval pipeline on top of it.
func buildEngine(t *testing.T, corpus *Corpus, threshold float64) (*query.Engine, *indexer.Cache, string) {
	t.Helper()
	dir := t.TempDir()
	if err := corpus.WriteContentDir(dir); err != nil {
		t.Fatalf("write corpus: %v", err)
	}

	embedder := embedding.NewMockEmbedder(e2eDimensions)
	t.Cleanup(func() { _ = embedder.Close() })

	rt, err := router.New(context.Background(), filepath.Join(dir, "chapter_mapping.json"), dir, embedder)
	if err != nil {
		t.Fatalf("build router: %v", err)
	}

	cache := indexer.NewCache(indexer.NewIndexer(embedder), 16)
	t.Cleanup(func() { _ = cache.Close() })

	engine := query.NewEngine(rt, cache, embedder, &config.RetrievalConfig{
		RelevanceThreshold: threshold,
		DefaultResults:     8,
		MaxResults:         64,
	})
	return engine, cache, dir
}

func TestE2E_AskRoutesEveryChapter(t *testing.T) {
	corpus := BuildCorpus()
	if corpus.TotalChapters == 0 {
		t.Fatal("corpus has no chapters")
	}
	if corpus.TotalQuestions == 0 {
		t.Fatal("corpus has no question cases")
	}
	engine, _, _ := buildEngine(t, corpus, 0.45)
	ctx := context.Background()

	t.Logf("wrote %d chapters; running %d question cases", corpus.TotalChapters, corpus.TotalQuestions)

	for _, tc := range corpus.Cases {
		t.Run(tc.Description, func(t *testing.T) {
			result, err := engine.Ask(ctx, &models.AskRequest{Question: tc.Question, NResults: e2eResults})
			if err != nil {
				t.Fatalf("ask failed: %v", err)
			}
			if result.Chapter != tc.ExpectedChapter {
				t.Fatalf("routed to %q, want %q (relevance %.3f)", result.Chapter, tc.ExpectedChapter, result.ChapterRelevance)
			}
			ch := corpus.ChapterByName(tc.ExpectedChapter)
			if len(result.Chunks) != ch.ChunkCount() {
				t.Errorf("retrieved %d chunks, want the whole chapter (%d)", len(result.Chunks), ch.ChunkCount())
			}
			if !strings.Contains(result.Context, tc.Signature) {
				t.Errorf("context is missing the chapter signature %q", tc.Signature)
			}
			for i := range corpus.Chapters {
				other := &corpus.Chapters[i]
				if other.Name == tc.ExpectedChapter {
					continue
				}
				if strings.Contains(result.Context, other.Signature) {
					t.Errorf("context leaked content from chapter %q", other.Name)
				}
			}
		})
	}
}

// TestE2E_ChapterFileUpdateIsPickedUp rewrites a chapter file on disk and
// asserts the next question sees the new content. The index cache keys on
// file size and modification time, so no explicit invalidation is needed.
func TestE2E_ChapterFileUpdateIsPickedUp(t *testing.T) {
	corpus := BuildCorpus()
	engine, _, dir := buildEngine(t, corpus, 0.45)
	ctx := context.Background()

	target := &corpus.Chapters[0]
	first, err := engine.Ask(ctx, &models.AskRequest{Question: target.Name, NResults: e2eResults})
	if err != nil {
		t.Fatalf("first ask: %v", err)
	}
	if !strings.Contains(first.Context, target.Signature) {
		t.Fatalf("first context missing signature %q", target.Signature)
	}

	const revised = "This chapter was fully revised in the second edition with reworked material."
	replacement := []curriculum.Topic{{
		TopicID:            "rev_1",
		TopicName:          "Revised Overview",
		LearningObjectives: []string{"Summarize the revised chapter"},
		AllowedConcepts:    []string{"Revised Overview"},
		ContentBlocks: []curriculum.ContentBlock{
			{BlockID: "rev_b1", Type: curriculum.BlockExplanation, Text: revised},
		},
	}}
	data, err := json.MarshalIndent(replacement, "", "  ")
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, target.File), data, 0644); err != nil {
		t.Fatalf("rewrite chapter file: %v", err)
	}

	second, err := engine.Ask(ctx, &models.AskRequest{Question: target.Name, NResults: e2eResults})
	if err != nil {
		t.Fatalf("second ask: %v", err)
	}
	if !strings.Contains(second.Context, revised) {
		t.Errorf("second context missing revised content")
	}
	if strings.Contains(second.Context, target.Signature) {
		t.Errorf("second context still serves the replaced content")
	}
	// Overview + one objective + one banner + one block.
	if len(second.Chunks) != 4 {
		t.Errorf("retrieved %d chunks from the revised chapter, want 4", len(second.Chunks))
	}
}

// scriptedGenerator stands in for the language model: rewrite prompts get a
// fixed standalone query, answer prompts get a fixed answer.
type scriptedGenerator struct {
	rewriteTo string
	reply     string
	rewrites  int
	answers   int
}

func (g *scriptedGenerator) Generate(_ context.Context, _, user string, _ answer.GenerateOptions) (string, error) {
	if strings.Contains(user, "REWRITTEN STANDALONE QUERY:") {
		g.rewrites++
		return g.rewriteTo, nil
	}
	g.answers++
	return g.reply, nil
}

func TestE2E_ChatSessionFlow(t *testing.T) {
	corpus := BuildCorpus()
	engine, _, _ := buildEngine(t, corpus, 0.45)
	ctx := context.Background()

	store, err := history.NewStore(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })

	target := &corpus.Chapters[4]
	gen := &scriptedGenerator{rewriteTo: target.Name, reply: "Plants build sugar from light."}
	svc := answer.NewService(engine, gen, store, &config.AnswerConfig{
		Model:              "gpt-4o-mini",
		Temperature:        0.3,
		RewriteTemperature: 0.1,
		MaxTokens:          800,
	})

	turn1, err := svc.Chat(ctx, &models.ChatRequest{Message: target.Name})
	if err != nil {
		t.Fatalf("turn 1: %v", err)
	}
	if turn1.Chapter != target.Name {
		t.Fatalf("turn 1 routed to %q, want %q", turn1.Chapter, target.Name)
	}
	if turn1.Answer != gen.reply {
		t.Errorf("turn 1 answer = %q", turn1.Answer)
	}
	if turn1.SessionID == "" {
		t.Fatal("turn 1: no session ID assigned")
	}
	if len(turn1.Sources) != prompt.DefaultSources {
		t.Errorf("turn 1: %d sources, want %d", len(turn1.Sources), prompt.DefaultSources)
	}
	// A first turn has no history, so nothing to rewrite.
	if gen.rewrites != 0 || gen.answers != 1 {
		t.Errorf("after turn 1: rewrites=%d answers=%d", gen.rewrites, gen.answers)
	}

	turn2, err := svc.Chat(ctx, &models.ChatRequest{Message: "Why does that work?", SessionID: turn1.SessionID})
	if err != nil {
		t.Fatalf("turn 2: %v", err)
	}
	if gen.rewrites != 1 || gen.answers != 2 {
		t.Errorf("after turn 2: rewrites=%d answers=%d", gen.rewrites, gen.answers)
	}
	// The rewritten query carries the follow-up back to the same chapter.
	if turn2.Chapter != target.Name {
		t.Errorf("turn 2 routed to %q, want %q", turn2.Chapter, target.Name)
	}
	if turn2.SessionID != turn1.SessionID {
		t.Errorf("turn 2 session %q, want %q", turn2.SessionID, turn1.SessionID)
	}

	exchanges, err := store.SessionHistory(ctx, turn1.SessionID, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(exchanges) != 2 {
		t.Fatalf("recorded %d exchanges, want 2", len(exchanges))
	}
	if exchanges[0].Question != target.Name || exchanges[1].Question != "Why does that work?" {
		t.Errorf("exchange questions = %q, %q", exchanges[0].Question, exchanges[1].Question)
	}
	for i, ex := range exchanges {
		if ex.Refused {
			t.Errorf("exchange %d unexpectedly marked refused", i)
		}
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Exchanges != 2 || stats.Refusals != 0 || stats.Sessions != 1 {
		t.Errorf("stats = %+v", stats)
	}
}

// TestE2E_ChatRefusalIsRecordedButNotReplayed runs a session where every
// question falls below the relevance gate. Refused turns are recorded for
// analytics yet stay out of later prompt windows, so the second turn still
// sees an empty history and skips the rewrite step.
func TestE2E_ChatRefusalIsRecordedButNotReplayed(t *testing.T) {
	corpus := BuildCorpus()
	// An unreachable threshold refuses every question.
	engine, _, _ := buildEngine(t, corpus, 2)
	ctx := context.Background()

	store, err := history.NewStore(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })

	gen := &scriptedGenerator{rewriteTo: "unused", reply: "unused"}
	svc := answer.NewService(engine, gen, store, &config.AnswerConfig{Model: "gpt-4o-mini"})

	turn1, err := svc.Chat(ctx, &models.ChatRequest{Message: "What is quantum chromodynamics?"})
	if err != nil {
		t.Fatalf("turn 1: %v", err)
	}
	if turn1.Answer != prompt.RefusalMessage {
		t.Errorf("turn 1 answer = %q", turn1.Answer)
	}
	if turn1.Chapter != models.ChapterNone {
		t.Errorf("turn 1 chapter = %q", turn1.Chapter)
	}

	turn2, err := svc.Chat(ctx, &models.ChatRequest{Message: "Are you sure?", SessionID: turn1.SessionID})
	if err != nil {
		t.Fatalf("turn 2: %v", err)
	}
	if turn2.Answer != prompt.RefusalMessage {
		t.Errorf("turn 2 answer = %q", turn2.Answer)
	}
	if gen.rewrites != 0 || gen.answers != 0 {
		t.Errorf("generator was called: rewrites=%d answers=%d", gen.rewrites, gen.answers)
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Exchanges != 2 || stats.Refusals != 2 {
		t.Errorf("stats = %+v", stats)
	}
}
