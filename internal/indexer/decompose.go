package indexer

import (
	"strconv"
	"strings"

	"github.com/chalkboard-ai/manabi/internal/curriculum"
	"github.com/chalkboard-ai/manabi/internal/models"
)

// Decompose flattens topics into typed retrieval chunks. Each topic yields
// its overview, one chunk per learning objective, a banner per non-empty
// concept list, and one chunk per non-blank content block, in that order.
// Chunk IDs are decimal positions in the decomposition, counted across the
// whole document.
func Decompose(topics []curriculum.Topic, sourceFile string) []*models.DocumentChunk {
	var chunks []*models.DocumentChunk
	id := 0
	add := func(topic *curriculum.Topic, text string, typ models.DocType, blockID string) {
		chunks = append(chunks, &models.DocumentChunk{
			ID:         strconv.Itoa(id),
			Text:       text,
			Type:       typ,
			TopicID:    topic.TopicID,
			TopicName:  topic.TopicName,
			SourceFile: sourceFile,
			BlockID:    blockID,
		})
		id++
	}

	for i := range topics {
		topic := &topics[i]

		add(topic, "Topic: "+topic.TopicName, models.DocTypeTopicOverview, "")

		for _, lo := range topic.LearningObjectives {
			add(topic, "Learning Objective: "+lo, models.DocTypeLearningObjective, "")
		}

		if len(topic.AllowedConcepts) > 0 {
			text := "Allowed concepts for " + topic.TopicName + ": " + strings.Join(topic.AllowedConcepts, ", ")
			add(topic, text, models.DocTypeAllowedConcepts, "")
		}

		if len(topic.DisallowedConcepts) > 0 {
			text := "Disallowed concepts (too advanced): " + strings.Join(topic.DisallowedConcepts, ", ")
			add(topic, text, models.DocTypeDisallowedConcepts, "")
		}

		for _, block := range topic.ContentBlocks {
			if strings.TrimSpace(block.Text) == "" {
				continue
			}
			add(topic, block.Text, models.ContentDocType(block.Type), block.BlockID)
		}
	}
	return chunks
}
