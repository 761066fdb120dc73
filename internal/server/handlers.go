package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/chalkboard-ai/manabi/internal/answer"
	"github.com/chalkboard-ai/manabi/internal/curriculum"
	"github.com/chalkboard-ai/manabi/internal/embedding"
	"github.com/chalkboard-ai/manabi/internal/history"
	"github.com/chalkboard-ai/manabi/internal/models"
)

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req models.AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.logger.Debug("ask request", zap.String("question", req.Question), zap.Int("n_results", req.NResults))
	result, err := s.engine.Ask(r.Context(), &req)
	if err != nil {
		s.logger.Error("ask failed", zap.Error(err))
		s.respondError(w, errorStatus(err), err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if s.chat == nil {
		s.respondError(w, http.StatusNotImplemented, "chat not enabled")
		return
	}
	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.logger.Debug("chat request", zap.String("session_id", req.SessionID))
	result, err := s.chat.Chat(r.Context(), &req)
	if err != nil {
		s.logger.Error("chat failed", zap.Error(err))
		s.respondError(w, errorStatus(err), err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, result)
}

type chapterInfo struct {
	Chapter string `json:"chapter"`
	File    string `json:"file"`
}

func (s *Server) handleChapters(w http.ResponseWriter, r *http.Request) {
	entries := s.router.Entries()
	chapters := make([]chapterInfo, len(entries))
	for i, e := range entries {
		chapters[i] = chapterInfo{Chapter: e.ChapterName, File: e.JSONFile}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"chapters": chapters,
		"count":    len(chapters),
	})
}

func (s *Server) handleDocuments(w http.ResponseWriter, r *http.Request) {
	docs := s.catalog.Documents()
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"documents": docs,
		"count":     len(docs),
	})
}

func (s *Server) handleCatalogSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if strings.TrimSpace(q) == "" {
		s.respondError(w, http.StatusBadRequest, "q is required")
		return
	}
	limit, ok := s.limitParam(w, r)
	if !ok {
		return
	}
	matches, err := s.catalog.Search(r.Context(), q, limit)
	if err != nil {
		s.logger.Error("catalog search failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"matches": matches,
		"count":   len(matches),
	})
}

func (s *Server) handleSessionHistory(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.respondError(w, http.StatusNotImplemented, "history not enabled")
		return
	}
	session := chi.URLParam(r, "session")
	limit, ok := s.limitParam(w, r)
	if !ok {
		return
	}
	exchanges, err := s.store.SessionHistory(r.Context(), session, limit)
	if err != nil {
		s.logger.Error("session history failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if exchanges == nil {
		exchanges = []*history.Exchange{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"session_id": session,
		"exchanges":  exchanges,
		"count":      len(exchanges),
	})
}

func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.respondError(w, http.StatusNotImplemented, "history not enabled")
		return
	}
	stats, err := s.store.Stats(r.Context())
	if err != nil {
		s.logger.Error("analytics failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, stats)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{
		"chapters":  len(s.router.Chapters()),
		"documents": s.catalog.Len(),
	}
	if s.cache != nil {
		resp["cached_indexes"] = s.cache.Len()
	}
	if s.store != nil {
		count, err := s.store.CountExchanges(r.Context())
		if err != nil {
			s.logger.Error("status: count exchanges failed", zap.Error(err))
			s.respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		resp["exchanges"] = count
		if diskBytes, err := s.store.DiskUsageBytes(); err == nil {
			resp["disk_usage_bytes"] = diskBytes
		}
	}

	// Add configuration info
	resp["config"] = map[string]interface{}{
		"content_dir":          s.config.Content.Dir,
		"embedding_provider":   s.config.Embedding.Provider,
		"embedding_model":      s.config.Embedding.Model,
		"embedding_dimensions": s.config.Embedding.Dimensions,
		"relevance_threshold":  s.config.Retrieval.RelevanceThreshold,
		"chat_enabled":         s.chat != nil,
		"history_enabled":      s.store != nil,
	}
	s.respondJSON(w, http.StatusOK, resp)
}

// limitParam parses the optional limit query parameter. A response has
// already been written when ok is false.
func (s *Server) limitParam(w http.ResponseWriter, r *http.Request) (limit int, ok bool) {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return 0, true
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		s.respondError(w, http.StatusBadRequest, "limit must be a positive integer")
		return 0, false
	}
	return n, true
}

// errorStatus maps pipeline errors to HTTP status codes. Malformed chapter
// documents are the client's data problem; unreachable model backends are
// upstream failures.
func errorStatus(err error) int {
	var formatErr *curriculum.DataFormatError
	switch {
	case errors.As(err, &formatErr):
		return http.StatusUnprocessableEntity
	case errors.Is(err, embedding.ErrUnavailable), errors.Is(err, answer.ErrUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
