package indexer

import (
	"context"
	"testing"

	"github.com/chalkboard-ai/manabi/internal/embedding"
)

func TestCacheReusesFreshIndex(t *testing.T) {
	dir := t.TempDir()
	path := writeChapter(t, dir, "fractions.json", testChapterJSON)

	cache := NewCache(NewIndexer(embedding.NewMockEmbedder(4)), 4)
	defer cache.Close()
	ctx := context.Background()

	first, err := cache.Get(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	second, err := cache.Get(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Error("unchanged file should return the cached index")
	}
	if cache.Len() != 1 {
		t.Errorf("cache len = %d, want 1", cache.Len())
	}
}

func TestCacheRebuildsOnFileChange(t *testing.T) {
	dir := t.TempDir()
	path := writeChapter(t, dir, "fractions.json", testChapterJSON)

	cache := NewCache(NewIndexer(embedding.NewMockEmbedder(4)), 4)
	defer cache.Close()
	ctx := context.Background()

	first, err := cache.Get(ctx, path)
	if err != nil {
		t.Fatal(err)
	}

	// Rewrite with different size so the staleness check cannot miss it.
	writeChapter(t, dir, "fractions.json", `[{"topic_name": "Fractions", "learning_objectives": ["One", "Two"]}]`)

	second, err := cache.Get(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	if first == second {
		t.Error("changed file should trigger a rebuild")
	}
	if first.Name == second.Name {
		t.Error("rebuilt index should have a fresh name")
	}
	if cache.Len() != 1 {
		t.Errorf("cache len = %d, want 1", cache.Len())
	}
}

func TestCacheInvalidate(t *testing.T) {
	dir := t.TempDir()
	path := writeChapter(t, dir, "fractions.json", testChapterJSON)

	cache := NewCache(NewIndexer(embedding.NewMockEmbedder(4)), 4)
	defer cache.Close()
	ctx := context.Background()

	first, err := cache.Get(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	cache.Invalidate(path)
	if cache.Len() != 0 {
		t.Errorf("cache len after invalidate = %d, want 0", cache.Len())
	}
	second, err := cache.Get(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	if first == second {
		t.Error("invalidate should force a rebuild")
	}
}

func TestCacheEvictsLeastRecentlyUsed(t *testing.T) {
	dir := t.TempDir()
	a := writeChapter(t, dir, "a.json", testChapterJSON)
	b := writeChapter(t, dir, "b.json", testChapterJSON)
	c := writeChapter(t, dir, "c.json", testChapterJSON)

	cache := NewCache(NewIndexer(embedding.NewMockEmbedder(4)), 2)
	defer cache.Close()
	ctx := context.Background()

	firstA, err := cache.Get(ctx, a)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := cache.Get(ctx, b); err != nil {
		t.Fatal(err)
	}
	if _, err := cache.Get(ctx, c); err != nil { // evicts a
		t.Fatal(err)
	}
	if cache.Len() != 2 {
		t.Errorf("cache len = %d, want 2", cache.Len())
	}
	secondA, err := cache.Get(ctx, a)
	if err != nil {
		t.Fatal(err)
	}
	if firstA == secondA {
		t.Error("evicted entry should have been rebuilt")
	}
}
