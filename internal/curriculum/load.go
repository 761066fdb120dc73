package curriculum

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// DataFormatError reports a chapter document that exists but does not parse
// as curriculum JSON. Read failures are ordinary errors, not format errors.
type DataFormatError struct {
	Path string
	Err  error
}

func (e *DataFormatError) Error() string {
	return fmt.Sprintf("malformed chapter document %s: %v", e.Path, e.Err)
}

func (e *DataFormatError) Unwrap() error {
	return e.Err
}

// LoadDocument reads and parses the chapter document at path.
func LoadDocument(path string) ([]Topic, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading chapter document: %w", err)
	}
	topics, err := ParseTopics(data)
	if err != nil {
		return nil, &DataFormatError{Path: path, Err: err}
	}
	return topics, nil
}

// ParseTopics decodes chapter JSON into a topic slice. The document is
// either a single topic object or an array of topics; a single object is
// returned as a one-element slice. Topics are normalized after decoding.
func ParseTopics(data []byte) ([]Topic, error) {
	trimmed := bytes.TrimLeftFunc(data, func(r rune) bool {
		return r == ' ' || r == '\t' || r == '\n' || r == '\r'
	})
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty document")
	}

	var topics []Topic
	switch trimmed[0] {
	case '[':
		if err := json.Unmarshal(trimmed, &topics); err != nil {
			return nil, fmt.Errorf("decoding topic array: %w", err)
		}
	case '{':
		var topic Topic
		if err := json.Unmarshal(trimmed, &topic); err != nil {
			return nil, fmt.Errorf("decoding topic object: %w", err)
		}
		topics = []Topic{topic}
	default:
		return nil, fmt.Errorf("document is neither a topic object nor a topic array")
	}

	for i := range topics {
		normalizeTopic(&topics[i])
	}
	return topics, nil
}

// normalizeTopic cleans a decoded topic in place: blank learning objectives
// are dropped, concept lists are deduplicated case-insensitively keeping the
// first spelling, and unknown content block types become explanations.
// Blank content blocks are kept; the indexer skips them.
func normalizeTopic(t *Topic) {
	objectives := t.LearningObjectives[:0]
	for _, lo := range t.LearningObjectives {
		if strings.TrimSpace(lo) != "" {
			objectives = append(objectives, lo)
		}
	}
	t.LearningObjectives = objectives

	t.AllowedConcepts = dedupeConcepts(t.AllowedConcepts)
	t.DisallowedConcepts = dedupeConcepts(t.DisallowedConcepts)

	for i := range t.ContentBlocks {
		switch t.ContentBlocks[i].Type {
		case BlockDefinition, BlockExplanation, BlockExample:
		default:
			t.ContentBlocks[i].Type = BlockExplanation
		}
	}
}

// dedupeConcepts drops blank entries and case-insensitive duplicates,
// preserving order and the first spelling seen.
func dedupeConcepts(concepts []string) []string {
	seen := make(map[string]struct{}, len(concepts))
	out := concepts[:0]
	for _, c := range concepts {
		if strings.TrimSpace(c) == "" {
			continue
		}
		key := strings.ToLower(c)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, c)
	}
	return out
}
