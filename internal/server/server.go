// Package server provides the HTTP API for Manabi.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/chalkboard-ai/manabi/internal/answer"
	"github.com/chalkboard-ai/manabi/internal/catalog"
	"github.com/chalkboard-ai/manabi/internal/config"
	"github.com/chalkboard-ai/manabi/internal/history"
	"github.com/chalkboard-ai/manabi/internal/indexer"
	"github.com/chalkboard-ai/manabi/internal/query"
	"github.com/chalkboard-ai/manabi/internal/router"
)

// Server is the HTTP server for the Manabi API.
type Server struct {
	engine  *query.Engine
	chat    *answer.Service
	catalog *catalog.Catalog
	router  *router.Router
	store   *history.Store
	cache   *indexer.Cache
	config  *config.Config
	logger  *zap.Logger
	server  *http.Server
}

// NewServer creates a server with the given dependencies. chat, store, and
// cache may be nil; endpoints backed by a nil dependency report 501.
func NewServer(
	engine *query.Engine,
	chat *answer.Service,
	cat *catalog.Catalog,
	rt *router.Router,
	store *history.Store,
	cache *indexer.Cache,
	cfg *config.Config,
	logger *zap.Logger,
) *Server {
	return &Server{
		engine:  engine,
		chat:    chat,
		catalog: cat,
		router:  rt,
		store:   store,
		cache:   cache,
		config:  cfg,
		logger:  logger,
	}
}

func (s *Server) routes() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))

	r.Post("/api/v1/ask", s.handleAsk)
	r.Post("/api/v1/chat", s.handleChat)
	r.Get("/api/v1/chapters", s.handleChapters)
	r.Get("/api/v1/documents", s.handleDocuments)
	r.Get("/api/v1/catalog/search", s.handleCatalogSearch)
	r.Get("/api/v1/history/{session}", s.handleSessionHistory)
	r.Get("/api/v1/analytics", s.handleAnalytics)
	r.Get("/api/v1/status", s.handleStatus)
	r.Get("/health", s.handleHealth)
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.routes(),
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
