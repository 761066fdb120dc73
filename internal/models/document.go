// Package models defines core data structures for chunks, queries, and retrieval results.
package models

import "strings"

// DocType tags a chunk with the kind of curriculum content it carries.
type DocType string

const (
	DocTypeTopicOverview      DocType = "topic_overview"
	DocTypeLearningObjective  DocType = "learning_objective"
	DocTypeAllowedConcepts    DocType = "allowed_concepts"
	DocTypeDisallowedConcepts DocType = "disallowed_concepts"
	DocTypeContentDefinition  DocType = "content_definition"
	DocTypeContentExplanation DocType = "content_explanation"
	DocTypeContentExample     DocType = "content_example"
)

const contentPrefix = "content_"

// IsContent reports whether the doc type is one of the content block variants.
func (t DocType) IsContent() bool {
	return strings.HasPrefix(string(t), contentPrefix)
}

// Label returns the display label for a content type: the sub-type uppercased
// with the content_ prefix stripped, e.g. content_definition -> DEFINITION.
func (t DocType) Label() string {
	return strings.ToUpper(strings.TrimPrefix(string(t), contentPrefix))
}

// ContentDocType maps a content block type to its doc type. Unrecognized
// block types are treated as explanations.
func ContentDocType(blockType string) DocType {
	switch blockType {
	case "definition":
		return DocTypeContentDefinition
	case "example":
		return DocTypeContentExample
	default:
		return DocTypeContentExplanation
	}
}

// DocumentChunk is the unit of retrieval: one independently embeddable piece
// of a chapter document. Chunks live only inside the ephemeral index built
// for a single query; they are not persisted.
type DocumentChunk struct {
	ID         string    `json:"id"`
	Text       string    `json:"text"`
	Type       DocType   `json:"type"`
	TopicID    string    `json:"topic_id,omitempty"`
	TopicName  string    `json:"topic_name"`
	SourceFile string    `json:"source_file,omitempty"`
	BlockID    string    `json:"block_id,omitempty"`
	Embedding  []float32 `json:"-"`
}
