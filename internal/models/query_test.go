package models

import (
	"testing"
)

func TestAskRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		req     *AskRequest
		wantErr bool
	}{
		{"empty question", &AskRequest{Question: ""}, true},
		{"whitespace question", &AskRequest{Question: "   "}, true},
		{"negative n_results", &AskRequest{Question: "x", NResults: -1}, true},
		{"valid question", &AskRequest{Question: "what is a fraction?"}, false},
		{"zero n_results means default", &AskRequest{Question: "x", NResults: 0}, false},
		{"large n_results left for engine clamp", &AskRequest{Question: "x", NResults: 200}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestChatRequest_Validate(t *testing.T) {
	if err := (&ChatRequest{Message: ""}).Validate(); err == nil {
		t.Error("expected error for empty message")
	}
	if err := (&ChatRequest{Message: "hi"}).Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestDocType(t *testing.T) {
	tests := []struct {
		typ       DocType
		isContent bool
		label     string
	}{
		{DocTypeTopicOverview, false, "TOPIC_OVERVIEW"},
		{DocTypeLearningObjective, false, "LEARNING_OBJECTIVE"},
		{DocTypeAllowedConcepts, false, "ALLOWED_CONCEPTS"},
		{DocTypeDisallowedConcepts, false, "DISALLOWED_CONCEPTS"},
		{DocTypeContentDefinition, true, "DEFINITION"},
		{DocTypeContentExplanation, true, "EXPLANATION"},
		{DocTypeContentExample, true, "EXAMPLE"},
	}
	for _, tt := range tests {
		if got := tt.typ.IsContent(); got != tt.isContent {
			t.Errorf("%s: IsContent() = %v, want %v", tt.typ, got, tt.isContent)
		}
		if got := tt.typ.Label(); got != tt.label {
			t.Errorf("%s: Label() = %q, want %q", tt.typ, got, tt.label)
		}
	}
}

func TestAskResultRefused(t *testing.T) {
	r := &AskResult{Chapter: ChapterNone}
	if !r.Refused() {
		t.Error("expected refused result for chapter None")
	}
	r = &AskResult{Chapter: "Fractions"}
	if r.Refused() {
		t.Error("did not expect refusal for a routed chapter")
	}
}
