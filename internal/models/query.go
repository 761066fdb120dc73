package models

import (
	"errors"
	"strings"
)

// AskRequest is a single-shot retrieval request.
type AskRequest struct {
	Question string `json:"question"`

	// NResults is the number of chunks to retrieve. Zero means the
	// configured default; the query engine clamps values above the
	// configured maximum.
	NResults int `json:"n_results,omitempty"`

	// TopicFilter restricts results to chunks whose topic name matches,
	// compared case-insensitively.
	TopicFilter string `json:"topic_filter,omitempty"`
}

// Validate reports whether the request is usable.
func (r *AskRequest) Validate() error {
	if strings.TrimSpace(r.Question) == "" {
		return errors.New("question is required")
	}
	if r.NResults < 0 {
		return errors.New("n_results must not be negative")
	}
	return nil
}

// ChatRequest is a conversational turn. SessionID groups turns into one
// conversation; an empty ID starts a fresh session.
type ChatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
}

// Validate reports whether the chat request is usable.
func (r *ChatRequest) Validate() error {
	if strings.TrimSpace(r.Message) == "" {
		return errors.New("message is required")
	}
	return nil
}
