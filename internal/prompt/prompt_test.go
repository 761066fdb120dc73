package prompt

import (
	"strings"
	"testing"

	"github.com/chalkboard-ai/manabi/internal/models"
)

func fullResultSet() *models.ResultSet {
	qr := func(text string, typ models.DocType, relevance float64) *models.QueryResult {
		return &models.QueryResult{
			Chunk:     &models.DocumentChunk{Text: text, Type: typ, TopicName: "Fractions"},
			Relevance: relevance,
		}
	}
	return &models.ResultSet{
		Question:           "What is a fraction?",
		TopicOverview:      []*models.QueryResult{qr("Topic: Fractions", models.DocTypeTopicOverview, 0.95)},
		LearningObjectives: []*models.QueryResult{qr("Learning Objective: Understand numerators", models.DocTypeLearningObjective, 0.93)},
		AllowedConcepts:    []*models.QueryResult{qr("Allowed concepts for Fractions: halves, thirds", models.DocTypeAllowedConcepts, 0.91)},
		DisallowedConcepts: []*models.QueryResult{qr("Disallowed concepts (too advanced): algebra", models.DocTypeDisallowedConcepts, 0.88)},
		ContentBlocks: []*models.QueryResult{
			qr("A fraction represents a part of a whole.", models.DocTypeContentDefinition, 0.9),
			qr("Half of a pizza is 1/2.", models.DocTypeContentExample, 0.85),
		},
	}
}

func TestBuildContext(t *testing.T) {
	eq := strings.Repeat("=", 70)
	dash := strings.Repeat("-", 70)
	want := strings.Join([]string{
		eq,
		"CONTEXT FROM CURRICULUM",
		eq,
		"",
		"SOURCE DOCUMENT: fractions.json",
		"CHAPTER: Fractions",
		"RELEVANCE: 87.6%",
		"",
		"QUESTION: What is a fraction?",
		"",
		eq,
		"",
		"TOPICS:",
		dash,
		"• Fractions",
		"",
		"LEARNING OBJECTIVES:",
		dash,
		"• Understand numerators",
		"",
		"CONCEPTS COVERED:",
		dash,
		"• halves, thirds",
		"",
		"CONCEPTS OUT OF SCOPE:",
		dash,
		"• algebra",
		"",
		"RELEVANT CONTENT:",
		dash,
		"",
		"[DEFINITION #1] from topic 'Fractions' (Relevance: 90.0%)",
		"A fraction represents a part of a whole.",
		"",
		"[EXAMPLE #2] from topic 'Fractions' (Relevance: 85.0%)",
		"Half of a pizza is 1/2.",
		"",
		eq,
		"END OF CONTEXT",
		eq,
	}, "\n")

	got := BuildContext("fractions.json", "Fractions", 0.876, fullResultSet())
	if got != want {
		t.Errorf("context mismatch\ngot:\n%s\n\nwant:\n%s", got, want)
	}
}

func TestBuildContextIdempotent(t *testing.T) {
	rs := fullResultSet()
	a := BuildContext("fractions.json", "Fractions", 0.876, rs)
	b := BuildContext("fractions.json", "Fractions", 0.876, rs)
	if a != b {
		t.Error("repeated calls must produce identical output")
	}
}

func TestBuildContextOmitsEmptySections(t *testing.T) {
	rs := &models.ResultSet{
		Question: "What is a fraction?",
		ContentBlocks: []*models.QueryResult{{
			Chunk:     &models.DocumentChunk{Text: "A fraction represents a part of a whole.", Type: models.DocTypeContentDefinition, TopicName: "Fractions"},
			Relevance: 0.9,
		}},
	}
	got := BuildContext("fractions.json", "Fractions", 0.9, rs)
	for _, header := range []string{"TOPICS:", "LEARNING OBJECTIVES:", "CONCEPTS COVERED:", "CONCEPTS OUT OF SCOPE:"} {
		if strings.Contains(got, header) {
			t.Errorf("empty bucket should omit %q entirely", header)
		}
	}
	if !strings.Contains(got, "RELEVANT CONTENT:") {
		t.Error("content section missing")
	}
	if !strings.Contains(got, "[DEFINITION #1]") {
		t.Error("content label missing")
	}
}

func TestGateDecision(t *testing.T) {
	tests := []struct {
		score     float64
		threshold float64
		want      bool
	}{
		{0.44, 0.45, false},
		{0.45, 0.45, true},
		{0.46, 0.45, true},
		{-0.2, 0.45, false},
	}
	for _, tt := range tests {
		if got := GateDecision(tt.score, tt.threshold); got != tt.want {
			t.Errorf("GateDecision(%v, %v) = %v, want %v", tt.score, tt.threshold, got, tt.want)
		}
	}
}

func TestSources(t *testing.T) {
	chunks := []models.RetrievedChunk{
		{Text: "a"}, {Text: "b"}, {Text: "c"}, {Text: "d"},
	}
	if got := Sources(chunks, 0); len(got) != 3 {
		t.Errorf("default sources = %d, want 3", len(got))
	}
	if got := Sources(chunks, 2); len(got) != 2 || got[1].Text != "b" {
		t.Errorf("Sources(2) = %v", got)
	}
	if got := Sources(chunks[:1], 0); len(got) != 1 {
		t.Errorf("short input should pass through, got %d", len(got))
	}
}
