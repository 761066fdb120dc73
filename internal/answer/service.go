package answer

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/chalkboard-ai/manabi/internal/config"
	"github.com/chalkboard-ai/manabi/internal/history"
	"github.com/chalkboard-ai/manabi/internal/models"
	"github.com/chalkboard-ai/manabi/internal/prompt"
)

const (
	// chatResults is how many chunks each conversational turn retrieves.
	chatResults = 5
	// answerHistoryExchanges is the conversation window shown to the
	// answering model; rewriteHistoryExchanges is the tighter window used
	// to resolve follow-up questions.
	answerHistoryExchanges  = 3
	rewriteHistoryExchanges = 2
	// historyFetchLimit over-fetches so refused exchanges, which are
	// excluded from prompts, do not starve the window.
	historyFetchLimit = 12
)

const rewriteSystemPrompt = `You are a query rewriter.
Your task is to rewrite the last user question to be a STANDALONE search query based on the conversation history.
If the question is already standalone, return it exactly as is.
Do NOT answer the question. Just rewrite it for a search engine.`

const answerSystemPrompt = `You are a specialized AI assistant for the uploaded curriculum.

CRITICAL RULES:
1. You function purely as a text-extraction and explanation engine for the provided context.
2. Answer ONLY based on the provided "CONTEXT FROM CURRICULUM".
3. Use the CONVERSATION HISTORY to understand the flow, but prioritize the CONTEXT for facts.
4. If the user asks about a topic NOT in the context, refuse to answer.
5. Formatting: Use Markdown (bolding, lists) for explanations.`

// Asker retrieves curriculum context for a question. *query.Engine
// satisfies it.
type Asker interface {
	Ask(ctx context.Context, req *models.AskRequest) (*models.AskResult, error)
}

// Service runs conversational turns: rewrite the question, retrieve
// context, generate an answer, and record the exchange.
type Service struct {
	engine    Asker
	generator Generator
	store     *history.Store
	config    *config.AnswerConfig
	logger    *zap.Logger
}

// ServiceOption customizes a Service.
type ServiceOption func(*Service)

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(logger *zap.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

// NewService creates a chat service. A nil store disables conversation
// memory: turns are answered statelessly and nothing is recorded.
func NewService(engine Asker, generator Generator, store *history.Store, cfg *config.AnswerConfig, opts ...ServiceOption) *Service {
	s := &Service{
		engine:    engine,
		generator: generator,
		store:     store,
		config:    cfg,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Chat answers one conversational turn. Questions that fall below the
// relevance threshold get the standard refusal message; the exchange is
// still recorded so analytics can count refusals.
func (s *Service) Chat(ctx context.Context, req *models.ChatRequest) (*models.ChatResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.New().String()
	}

	recent := s.recentExchanges(ctx, sessionID)

	searchQuery := s.rewriteQuery(ctx, req.Message, recent)
	if searchQuery != req.Message {
		s.logger.Debug("rewrote follow-up question",
			zap.String("session", sessionID),
			zap.String("query", searchQuery))
	}

	retrieved, err := s.engine.Ask(ctx, &models.AskRequest{Question: searchQuery, NResults: chatResults})
	if err != nil {
		return nil, err
	}

	if retrieved.Refused() {
		result := &models.ChatResult{
			Answer:    prompt.RefusalMessage,
			Chapter:   models.ChapterNone,
			Relevance: retrieved.ChapterRelevance,
			Sources:   []models.RetrievedChunk{},
			SessionID: sessionID,
		}
		s.record(ctx, req.Message, result)
		return result, nil
	}

	// The retrieval query may be rewritten; the model answers the
	// question as the user phrased it.
	answerText, err := s.generator.Generate(ctx, answerSystemPrompt, answerPrompt(retrieved, recent, req.Message), GenerateOptions{
		Temperature: s.config.Temperature,
		MaxTokens:   s.config.MaxTokens,
	})
	if err != nil {
		return nil, err
	}

	result := &models.ChatResult{
		Answer:    answerText,
		Chapter:   retrieved.Chapter,
		Relevance: retrieved.ChapterRelevance,
		Sources:   prompt.Sources(retrieved.Chunks, prompt.DefaultSources),
		SessionID: sessionID,
	}
	s.record(ctx, req.Message, result)
	return result, nil
}

// rewriteQuery turns a follow-up question into a standalone search query.
// Without history there is nothing to resolve; any rewrite failure falls
// back to the original question so retrieval always has a query.
func (s *Service) rewriteQuery(ctx context.Context, question string, recent []*history.Exchange) string {
	if len(recent) == 0 {
		return question
	}
	window := recent
	if len(window) > rewriteHistoryExchanges {
		window = window[len(window)-rewriteHistoryExchanges:]
	}
	user := fmt.Sprintf("CONVERSATION HISTORY:\n%s\n\nLAST USER QUESTION:\n%s\n\nREWRITTEN STANDALONE QUERY:",
		formatHistory(window), question)

	rewritten, err := s.generator.Generate(ctx, rewriteSystemPrompt, user, GenerateOptions{
		Temperature: s.config.RewriteTemperature,
	})
	if err != nil {
		s.logger.Warn("query rewrite failed, using the original question", zap.Error(err))
		return question
	}
	rewritten = strings.ReplaceAll(strings.TrimSpace(rewritten), `"`, "")
	if rewritten == "" {
		return question
	}
	return rewritten
}

func answerPrompt(retrieved *models.AskResult, recent []*history.Exchange, question string) string {
	return fmt.Sprintf("CONTEXT FROM CURRICULUM (Chapter: %s):\n%s\n\nCONVERSATION HISTORY:\n%s\n\nCURRENT QUESTION:\n%s\n\nPlease provide a clear explanation:",
		retrieved.Chapter, retrieved.Context, formatHistory(recent), question)
}

// formatHistory renders exchanges as alternating USER and ASSISTANT lines.
func formatHistory(exchanges []*history.Exchange) string {
	var b strings.Builder
	for i, ex := range exchanges {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString("USER: ")
		b.WriteString(ex.Question)
		b.WriteByte('\n')
		b.WriteString("ASSISTANT: ")
		b.WriteString(ex.Answer)
	}
	return b.String()
}

// recentExchanges returns the latest non-refused exchanges for prompting,
// oldest first. History failures degrade to an empty window.
func (s *Service) recentExchanges(ctx context.Context, sessionID string) []*history.Exchange {
	if s.store == nil {
		return nil
	}
	all, err := s.store.SessionHistory(ctx, sessionID, historyFetchLimit)
	if err != nil {
		s.logger.Warn("failed to load session history", zap.Error(err))
		return nil
	}
	var kept []*history.Exchange
	for _, ex := range all {
		if !ex.Refused {
			kept = append(kept, ex)
		}
	}
	if len(kept) > answerHistoryExchanges {
		kept = kept[len(kept)-answerHistoryExchanges:]
	}
	return kept
}

func (s *Service) record(ctx context.Context, question string, result *models.ChatResult) {
	if s.store == nil {
		return
	}
	ex := &history.Exchange{
		SessionID: result.SessionID,
		Question:  question,
		Answer:    result.Answer,
		Chapter:   result.Chapter,
		Relevance: result.Relevance,
		Refused:   result.Chapter == models.ChapterNone,
	}
	if err := s.store.RecordExchange(ctx, ex); err != nil {
		s.logger.Warn("failed to record exchange", zap.Error(err))
	}
}
