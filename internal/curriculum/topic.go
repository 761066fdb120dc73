// Package curriculum loads and normalizes chapter documents produced by the
// content extraction pipeline. A chapter document is a JSON file holding
// either one topic or an array of topics.
package curriculum

// ContentBlock is one extracted piece of chapter text.
type ContentBlock struct {
	BlockID string `json:"block_id"`
	Type    string `json:"type"`
	Text    string `json:"text"`
}

// Content block types produced by the extraction pipeline. Anything else is
// normalized to an explanation.
const (
	BlockDefinition  = "definition"
	BlockExplanation = "explanation"
	BlockExample     = "example"
)

// Topic is one curriculum topic with its scoping vocabulary and content.
type Topic struct {
	TopicID            string         `json:"topic_id"`
	TopicName          string         `json:"topic_name"`
	Unit               string         `json:"unit,omitempty"`
	LearningObjectives []string       `json:"learning_objectives"`
	AllowedConcepts    []string       `json:"allowed_concepts"`
	DisallowedConcepts []string       `json:"disallowed_concepts"`
	ContentBlocks      []ContentBlock `json:"content_blocks"`
}
