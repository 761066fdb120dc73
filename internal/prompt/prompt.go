// Package prompt turns retrieval results into LLM-ready text. Everything
// here is a pure function: same results in, byte-identical context out.
package prompt

import (
	"fmt"
	"strings"

	"github.com/chalkboard-ai/manabi/internal/models"
)

// RefusalMessage is returned verbatim when a question falls below the
// relevance threshold.
const RefusalMessage = "I'm sorry, I couldn't find any relevant information in the current curriculum to answer your question. I am strictly limited to the provided curriculum material."

// DefaultSources is how many source chunks a chat answer cites.
const DefaultSources = 3

// GateDecision reports whether a chapter similarity score clears the
// threshold. Scores exactly at the threshold pass.
func GateDecision(score, threshold float64) bool {
	return score >= threshold
}

// Sources returns the top-n retrieved chunks for citation display. n <= 0
// means DefaultSources.
func Sources(chunks []models.RetrievedChunk, n int) []models.RetrievedChunk {
	if n <= 0 {
		n = DefaultSources
	}
	if len(chunks) > n {
		chunks = chunks[:n]
	}
	return chunks
}

const sectionWidth = 70

var (
	border = strings.Repeat("=", sectionWidth)
	dashes = strings.Repeat("-", sectionWidth)
)

// BuildContext renders a result set as a context block for the answer
// model. Sections follow a fixed order and empty buckets are omitted
// entirely, headers included.
func BuildContext(chapterFile, chapter string, relevance float64, rs *models.ResultSet) string {
	lines := []string{
		border,
		"CONTEXT FROM CURRICULUM",
		border,
		"",
		"SOURCE DOCUMENT: " + chapterFile,
		"CHAPTER: " + chapter,
		"RELEVANCE: " + percent(relevance),
		"",
		"QUESTION: " + rs.Question,
		"",
		border,
	}

	lines = appendSection(lines, "TOPICS:", rs.TopicOverview)
	lines = appendSection(lines, "LEARNING OBJECTIVES:", rs.LearningObjectives)
	lines = appendSection(lines, "CONCEPTS COVERED:", rs.AllowedConcepts)
	lines = appendSection(lines, "CONCEPTS OUT OF SCOPE:", rs.DisallowedConcepts)

	if len(rs.ContentBlocks) > 0 {
		lines = append(lines, "", "RELEVANT CONTENT:", dashes)
		for i, qr := range rs.ContentBlocks {
			label := fmt.Sprintf("[%s #%d] from topic '%s' (Relevance: %s)",
				qr.Chunk.Type.Label(), i+1, qr.Chunk.TopicName, percent(qr.Relevance))
			lines = append(lines, "", label, qr.Chunk.Text)
		}
	}

	lines = append(lines, "", border, "END OF CONTEXT", border)
	return strings.Join(lines, "\n")
}

// appendSection adds a bullet section for a bucket, or nothing when the
// bucket is empty.
func appendSection(lines []string, header string, bucket []*models.QueryResult) []string {
	if len(bucket) == 0 {
		return lines
	}
	lines = append(lines, "", header, dashes)
	for _, qr := range bucket {
		lines = append(lines, "• "+stripTypePrefix(qr.Chunk.Text))
	}
	return lines
}

// stripTypePrefix removes the leading banner label ("Topic: ", "Learning
// Objective: ", "Allowed concepts for X: ", ...) so section items read
// as plain values.
func stripTypePrefix(text string) string {
	if parts := strings.SplitN(text, ": ", 2); len(parts) == 2 {
		return parts[1]
	}
	return text
}

func percent(v float64) string {
	return fmt.Sprintf("%.1f%%", v*100)
}
