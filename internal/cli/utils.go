// Package cli provides output formatting for the Manabi command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/chalkboard-ai/manabi/internal/catalog"
	"github.com/chalkboard-ai/manabi/internal/history"
	"github.com/chalkboard-ai/manabi/internal/models"
	"github.com/chalkboard-ai/manabi/internal/prompt"
	"github.com/chalkboard-ai/manabi/pkg/utils"
)

// OutputFormat is the format for result output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseFormat maps an -output flag value to an OutputFormat.
func ParseFormat(s string) (OutputFormat, error) {
	switch s {
	case "", "text":
		return OutputText, nil
	case "json":
		return OutputJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q; use text or json", s)
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteAskResult writes a retrieval result to w in the given format.
// Use OutputJSON for parseable output consumable by other apps.
func WriteAskResult(w io.Writer, result *models.AskResult, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, result)
	}
	writeAskResultText(w, result)
	return nil
}

func writeAskResultText(w io.Writer, result *models.AskResult) {
	if result.Refused() {
		fmt.Fprintf(w, "\n%s\n", prompt.RefusalMessage)
		fmt.Fprintf(w, "(best chapter relevance: %.3f)\n", result.ChapterRelevance)
		return
	}
	fmt.Fprintf(w, "\nChapter: %s (relevance %.3f)\n", result.Chapter, result.ChapterRelevance)
	fmt.Fprintf(w, "Retrieved %d chunk(s) from %s\n\n", len(result.Chunks), result.ChapterFile)
	fmt.Fprintln(w, result.Context)
}

// WriteChatResult writes a conversational answer with its source footer.
func WriteChatResult(w io.Writer, result *models.ChatResult, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, result)
	}
	fmt.Fprintf(w, "\n%s\n", result.Answer)
	if len(result.Sources) > 0 {
		fmt.Fprintln(w, "\nSources found in:")
		for _, src := range result.Sources {
			fmt.Fprintf(w, "  - [%s] %s\n", src.Type.Label(), src.Topic)
		}
	}
	return nil
}

// WriteDocuments writes the catalog listing.
func WriteDocuments(w io.Writer, docs []*catalog.DocumentInfo, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, docs)
	}
	if len(docs) == 0 {
		fmt.Fprintln(w, "No documents in the catalog.")
		return nil
	}
	for _, d := range docs {
		fmt.Fprintf(w, "%s\n", d.Filename)
		fmt.Fprintf(w, "  %s", d.DisplayName)
		if d.Chapter != "" {
			fmt.Fprintf(w, " (chapter: %s)", d.Chapter)
		}
		fmt.Fprintf(w, "\n  %d topic(s): %s\n", d.TopicCount, utils.Truncate(strings.Join(d.Topics, ", "), 80))
	}
	return nil
}

// WriteMatches writes catalog search hits in rank order.
func WriteMatches(w io.Writer, matches []*catalog.Match, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, matches)
	}
	if len(matches) == 0 {
		fmt.Fprintln(w, "No matching documents.")
		return nil
	}
	for i, m := range matches {
		fmt.Fprintf(w, "%2d. %s (score %.3f)\n", i+1, m.Document.Filename, m.Score)
		fmt.Fprintf(w, "    %s", m.Document.DisplayName)
		if m.Document.Chapter != "" {
			fmt.Fprintf(w, " (chapter: %s)", m.Document.Chapter)
		}
		fmt.Fprintln(w)
	}
	return nil
}

// WriteExchanges writes a session transcript, oldest first.
func WriteExchanges(w io.Writer, exchanges []*history.Exchange, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, exchanges)
	}
	if len(exchanges) == 0 {
		fmt.Fprintln(w, "No recorded exchanges.")
		return nil
	}
	for _, ex := range exchanges {
		fmt.Fprintf(w, "USER: %s\n", ex.Question)
		if ex.Refused {
			fmt.Fprintf(w, "ASSISTANT (refused, relevance %.3f): %s\n\n", ex.Relevance, ex.Answer)
		} else {
			fmt.Fprintf(w, "ASSISTANT (%s, relevance %.3f): %s\n\n", ex.Chapter, ex.Relevance, ex.Answer)
		}
	}
	return nil
}
