package indexer

import (
	"testing"

	"github.com/chalkboard-ai/manabi/internal/curriculum"
	"github.com/chalkboard-ai/manabi/internal/models"
)

func TestDecompose(t *testing.T) {
	topics := []curriculum.Topic{{
		TopicID:   "t1",
		TopicName: "Fractions",
		LearningObjectives: []string{
			"Understand numerators",
			"Compare fractions",
		},
		AllowedConcepts:    []string{"halves", "thirds", "quarters"},
		DisallowedConcepts: nil,
		ContentBlocks: []curriculum.ContentBlock{
			{BlockID: "b1", Type: curriculum.BlockDefinition, Text: "A fraction represents a part of a whole."},
			{BlockID: "b2", Type: curriculum.BlockExplanation, Text: "The top number is the numerator."},
			{BlockID: "b3", Type: curriculum.BlockExample, Text: "   "},
			{BlockID: "b4", Type: curriculum.BlockExample, Text: "Half of a pizza is 1/2."},
		},
	}}

	chunks := Decompose(topics, "fractions.json")

	// 1 overview + 2 objectives + 1 allowed banner + 0 disallowed + 3 non-blank blocks.
	if len(chunks) != 7 {
		t.Fatalf("expected 7 chunks, got %d", len(chunks))
	}

	wantTexts := []string{
		"Topic: Fractions",
		"Learning Objective: Understand numerators",
		"Learning Objective: Compare fractions",
		"Allowed concepts for Fractions: halves, thirds, quarters",
		"A fraction represents a part of a whole.",
		"The top number is the numerator.",
		"Half of a pizza is 1/2.",
	}
	wantTypes := []models.DocType{
		models.DocTypeTopicOverview,
		models.DocTypeLearningObjective,
		models.DocTypeLearningObjective,
		models.DocTypeAllowedConcepts,
		models.DocTypeContentDefinition,
		models.DocTypeContentExplanation,
		models.DocTypeContentExample,
	}
	for i, ch := range chunks {
		if ch.Text != wantTexts[i] {
			t.Errorf("chunk %d text = %q, want %q", i, ch.Text, wantTexts[i])
		}
		if ch.Type != wantTypes[i] {
			t.Errorf("chunk %d type = %s, want %s", i, ch.Type, wantTypes[i])
		}
		if ch.TopicName != "Fractions" || ch.TopicID != "t1" {
			t.Errorf("chunk %d topic metadata = %s/%s", i, ch.TopicID, ch.TopicName)
		}
		if ch.SourceFile != "fractions.json" {
			t.Errorf("chunk %d source file = %s", i, ch.SourceFile)
		}
	}

	// IDs are decimal positions starting at zero.
	for i, ch := range chunks {
		if want := []string{"0", "1", "2", "3", "4", "5", "6"}[i]; ch.ID != want {
			t.Errorf("chunk %d id = %s, want %s", i, ch.ID, want)
		}
	}

	// Block IDs only on content chunks.
	if chunks[4].BlockID != "b1" || chunks[6].BlockID != "b4" {
		t.Errorf("content block ids = %s, %s", chunks[4].BlockID, chunks[6].BlockID)
	}
	if chunks[0].BlockID != "" {
		t.Error("overview chunk should have no block id")
	}
}

func TestDecomposeDisallowedBanner(t *testing.T) {
	topics := []curriculum.Topic{{
		TopicName:          "Fractions",
		DisallowedConcepts: []string{"algebraic fractions", "rationalization"},
	}}
	chunks := Decompose(topics, "fractions.json")
	if len(chunks) != 2 {
		t.Fatalf("expected overview + disallowed banner, got %d chunks", len(chunks))
	}
	want := "Disallowed concepts (too advanced): algebraic fractions, rationalization"
	if chunks[1].Text != want {
		t.Errorf("disallowed banner = %q, want %q", chunks[1].Text, want)
	}
	if chunks[1].Type != models.DocTypeDisallowedConcepts {
		t.Errorf("disallowed banner type = %s", chunks[1].Type)
	}
}

func TestDecomposeCounterSpansTopics(t *testing.T) {
	topics := []curriculum.Topic{
		{TopicName: "Fractions", LearningObjectives: []string{"One"}},
		{TopicName: "Decimals"},
	}
	chunks := Decompose(topics, "math.json")
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	if chunks[2].ID != "2" {
		t.Errorf("second topic's overview id = %s, want 2", chunks[2].ID)
	}
	if chunks[2].TopicName != "Decimals" {
		t.Errorf("second topic's overview topic = %s", chunks[2].TopicName)
	}
}

func TestDecomposeEmpty(t *testing.T) {
	if chunks := Decompose(nil, "empty.json"); len(chunks) != 0 {
		t.Errorf("no topics should yield no chunks, got %d", len(chunks))
	}
}
