package router

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// mappingDocument is one source document's entry in the chapter mapping
// file, in the order it appears there.
type mappingDocument struct {
	Source   string
	Chapters []string
	JSONFile string
}

// parseMapping decodes the chapter mapping object while preserving key
// order. encoding/json unmarshals objects into maps with randomized
// iteration, which would make tie-breaking nondeterministic, so the object
// is walked token by token instead.
func parseMapping(data []byte) ([]mappingDocument, error) {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("decoding mapping: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("mapping must be a JSON object, got %v", tok)
	}

	var docs []mappingDocument
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("decoding mapping key: %w", err)
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("mapping key is not a string: %v", keyTok)
		}
		var entry struct {
			Chapters []string `json:"chapters"`
			JSONFile string   `json:"json_file"`
		}
		if err := dec.Decode(&entry); err != nil {
			return nil, fmt.Errorf("decoding mapping entry %q: %w", key, err)
		}
		docs = append(docs, mappingDocument{
			Source:   key,
			Chapters: entry.Chapters,
			JSONFile: entry.JSONFile,
		})
	}
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("decoding mapping: %w", err)
	}
	return docs, nil
}
