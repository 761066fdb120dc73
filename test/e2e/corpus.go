// Package e2e provides end-to-end tests over a generated curriculum corpus
// with one question case per chapter.
package e2e

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/chalkboard-ai/manabi/internal/curriculum"
)

// E2EChapter is one routable chapter in the test curriculum: the source
// document it came from, the chapter name used for routing, the chapter
// JSON file backing it, and its topics. Signature is a phrase that appears
// only in this chapter's content, so retrieval results can be attributed.
type E2EChapter struct {
	Source    string
	Name      string
	File      string
	Signature string
	Topics    []curriculum.Topic
}

// ChunkCount returns how many chunks indexing the chapter file produces:
// per topic, one overview, one per learning objective, one banner per
// non-empty concept list, and one per non-blank content block.
func (ch *E2EChapter) ChunkCount() int {
	n := 0
	for _, t := range ch.Topics {
		n++
		n += len(t.LearningObjectives)
		if len(t.AllowedConcepts) > 0 {
			n++
		}
		if len(t.DisallowedConcepts) > 0 {
			n++
		}
		for _, b := range t.ContentBlocks {
			if strings.TrimSpace(b.Text) != "" {
				n++
			}
		}
	}
	return n
}

// QuestionCase defines a question, the chapter it must route to, and the
// signature phrase that must appear in the retrieved context.
type QuestionCase struct {
	Question        string
	ExpectedChapter string
	Signature       string
	Description     string
}

// Corpus holds chapters and question cases for end-to-end tests.
type Corpus struct {
	Chapters       []E2EChapter
	Cases          []QuestionCase
	TotalChapters  int
	TotalQuestions int
}

// ChapterByName returns the chapter with the given name, or nil.
func (c *Corpus) ChapterByName(name string) *E2EChapter {
	for i := range c.Chapters {
		if c.Chapters[i].Name == name {
			return &c.Chapters[i]
		}
	}
	return nil
}

// BuildCorpus returns a curriculum of twelve chapters across several grade
// documents. Questions use the exact chapter name so routing with mock
// embeddings is deterministic (identical text embeds identically).
func BuildCorpus() *Corpus {
	defs := []struct {
		source    string
		name      string
		file      string
		signature string
		topics    [2]string
	}{
		{"math_g5_unit1.pdf", "Fractions and Decimals", "fractions_decimals.json",
			"A fraction names equal parts of one whole.",
			[2]string{"Understanding Fractions", "Reading Decimals"}},
		{"math_g5_unit2.pdf", "Ratios and Proportions", "ratios_proportions.json",
			"A ratio compares two quantities by division.",
			[2]string{"Writing Ratios", "Solving Proportions"}},
		{"math_g5_unit3.pdf", "Geometry Basics", "geometry_basics.json",
			"Perimeter measures the distance around a shape.",
			[2]string{"Polygons and Angles", "Area and Perimeter"}},
		{"math_g6_unit1.pdf", "Integers and Absolute Value", "integers.json",
			"Absolute value is a number's distance from zero.",
			[2]string{"Positive and Negative Numbers", "Comparing Integers"}},
		{"science_g5_unit1.pdf", "Photosynthesis", "photosynthesis.json",
			"Plants convert sunlight into chemical energy.",
			[2]string{"Inputs of Photosynthesis", "The Role of Chlorophyll"}},
		{"science_g5_unit2.pdf", "The Water Cycle", "water_cycle.json",
			"Evaporation lifts water vapor into the air.",
			[2]string{"Evaporation and Condensation", "Precipitation Patterns"}},
		{"science_g6_unit1.pdf", "Food Chains and Webs", "food_chains.json",
			"Producers make their own food from sunlight.",
			[2]string{"Producers and Consumers", "Energy Flow"}},
		{"science_g6_unit2.pdf", "States of Matter", "states_of_matter.json",
			"Melting changes a solid into a liquid.",
			[2]string{"Solids Liquids and Gases", "Changes of State"}},
		{"history_g6_unit1.pdf", "Ancient Civilizations", "ancient_civilizations.json",
			"Early cities grew along major rivers.",
			[2]string{"Mesopotamia", "Ancient Egypt"}},
		{"history_g6_unit2.pdf", "The Age of Exploration", "age_of_exploration.json",
			"New trade routes connected distant continents.",
			[2]string{"Navigators and Ships", "Trade and Exchange"}},
		{"english_g5_unit1.pdf", "Parts of Speech", "parts_of_speech.json",
			"A noun names a person, place, or thing.",
			[2]string{"Nouns and Verbs", "Adjectives and Adverbs"}},
		{"english_g5_unit2.pdf", "Reading Comprehension", "reading_comprehension.json",
			"The main idea tells what a passage is mostly about.",
			[2]string{"Finding the Main Idea", "Making Inferences"}},
	}

	chapters := make([]E2EChapter, 0, len(defs))
	for i, d := range defs {
		chapters = append(chapters, E2EChapter{
			Source:    d.source,
			Name:      d.name,
			File:      d.file,
			Signature: d.signature,
			Topics:    buildTopics(i, d.name, d.topics, d.signature),
		})
	}
	cases := buildQuestionCases(chapters)
	return &Corpus{
		Chapters:       chapters,
		Cases:          cases,
		TotalChapters:  len(chapters),
		TotalQuestions: len(cases),
	}
}

// buildTopics generates two topics for a chapter. The chapter signature is
// folded into the first topic's first content block.
func buildTopics(n int, chapter string, names [2]string, signature string) []curriculum.Topic {
	topics := make([]curriculum.Topic, 0, len(names))
	for j, name := range names {
		t := curriculum.Topic{
			TopicID:   fmt.Sprintf("t%02d_%d", n+1, j+1),
			TopicName: name,
			LearningObjectives: []string{
				fmt.Sprintf("Explain %s in your own words", strings.ToLower(name)),
				fmt.Sprintf("Apply %s to a worked example", strings.ToLower(name)),
			},
			AllowedConcepts:    []string{name, chapter},
			DisallowedConcepts: []string{"topics from later grades"},
			ContentBlocks: []curriculum.ContentBlock{
				{
					BlockID: fmt.Sprintf("b%02d_%d_1", n+1, j+1),
					Type:    curriculum.BlockDefinition,
					Text:    fmt.Sprintf("%s is introduced in the chapter %s.", name, chapter),
				},
				{
					BlockID: fmt.Sprintf("b%02d_%d_2", n+1, j+1),
					Type:    curriculum.BlockExample,
					Text:    fmt.Sprintf("Worked example for %s with guided steps.", strings.ToLower(name)),
				},
			},
		}
		if j == 0 {
			t.ContentBlocks[0].Text = signature + " " + t.ContentBlocks[0].Text
		}
		topics = append(topics, t)
	}
	return topics
}

// buildQuestionCases returns one case per chapter. The question is the
// chapter name itself so the router scores it 1.0 against that chapter.
func buildQuestionCases(chapters []E2EChapter) []QuestionCase {
	cases := make([]QuestionCase, 0, len(chapters))
	for _, ch := range chapters {
		cases = append(cases, QuestionCase{
			Question:        ch.Name,
			ExpectedChapter: ch.Name,
			Signature:       ch.Signature,
			Description:     fmt.Sprintf("question %q routes to its chapter", ch.Name),
		})
	}
	return cases
}

// WriteContentDir writes the chapter mapping and every chapter file under
// dir, producing a loadable content directory. The mapping is written by
// hand to keep entries in corpus order.
func (c *Corpus) WriteContentDir(dir string) error {
	var b strings.Builder
	b.WriteString("{\n")
	for i, ch := range c.Chapters {
		if i > 0 {
			b.WriteString(",\n")
		}
		fmt.Fprintf(&b, "  %q: {\"chapters\": [%q], \"json_file\": %q}", ch.Source, ch.Name, ch.File)
	}
	b.WriteString("\n}\n")
	if err := os.WriteFile(filepath.Join(dir, "chapter_mapping.json"), []byte(b.String()), 0644); err != nil {
		return err
	}
	for _, ch := range c.Chapters {
		data, err := json.MarshalIndent(ch.Topics, "", "  ")
		if err != nil {
			return err
		}
		if err := os.WriteFile(filepath.Join(dir, ch.File), data, 0644); err != nil {
			return err
		}
	}
	return nil
}
