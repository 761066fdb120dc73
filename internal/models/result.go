package models

// ChapterNone is the chapter value reported when no chapter clears the
// relevance threshold for a question.
const ChapterNone = "None"

// QueryResult is a single retrieval hit: a chunk with its relevance score.
type QueryResult struct {
	Chunk     *DocumentChunk `json:"chunk"`
	Relevance float64        `json:"relevance"`
}

// RetrievedChunk is the wire form of a retrieval hit.
type RetrievedChunk struct {
	Text      string  `json:"text"`
	Type      DocType `json:"type"`
	Topic     string  `json:"topic"`
	Relevance float64 `json:"relevance"`
}

// ResultSet groups retrieval hits by document type, preserving relevance
// order within each group. AllResults holds the same hits in overall
// relevance order. Content block hits of every sub-type land in
// ContentBlocks together.
type ResultSet struct {
	Question           string
	TopicOverview      []*QueryResult
	LearningObjectives []*QueryResult
	AllowedConcepts    []*QueryResult
	DisallowedConcepts []*QueryResult
	ContentBlocks      []*QueryResult
	AllResults         []*QueryResult
}

// AskResult is the response to a single-shot retrieval request.
type AskResult struct {
	Question         string           `json:"question"`
	Chapter          string           `json:"chapter"`
	ChapterFile      string           `json:"chapter_file"`
	ChapterRelevance float64          `json:"chapter_relevance"`
	Chunks           []RetrievedChunk `json:"chunks"`
	Context          string           `json:"context"`
}

// Refused reports whether the question fell below the relevance threshold,
// meaning no retrieval was performed.
func (r *AskResult) Refused() bool {
	return r.Chapter == ChapterNone
}

// ChatResult is the response to a conversational turn.
type ChatResult struct {
	Answer    string           `json:"answer"`
	Chapter   string           `json:"chapter"`
	Relevance float64          `json:"relevance"`
	Sources   []RetrievedChunk `json:"sources"`
	SessionID string           `json:"session_id,omitempty"`
}
