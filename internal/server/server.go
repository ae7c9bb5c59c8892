// Package server exposes the ingestion queue and search engine over
// HTTP, plus a WebSocket stream of ingestion events.
package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/tessera-search/tessera/internal/embeddings"
	"github.com/tessera-search/tessera/internal/extractor"
	"github.com/tessera-search/tessera/internal/ingest"
	"github.com/tessera-search/tessera/internal/keyword"
	"github.com/tessera-search/tessera/internal/search"
	"github.com/tessera-search/tessera/internal/vectordb"
)

// Config holds server configuration.
type Config struct {
	Port     int
	AllowAll bool // allow all CORS origins (dev mode)
}

// Server is the tessera HTTP server.
type Server struct {
	cfg        Config
	queue      *ingest.Queue
	engine     *search.Engine
	embedder   *embeddings.Service
	store      vectordb.Store
	index      *keyword.Index
	extract    extractor.Extractor
	router     chi.Router
	httpServer *http.Server
}

// New creates a server with all dependencies wired in.
func New(cfg Config, queue *ingest.Queue, engine *search.Engine, embedder *embeddings.Service, store vectordb.Store, index *keyword.Index, extract extractor.Extractor) *Server {
	s := &Server{
		cfg:      cfg,
		queue:    queue,
		engine:   engine,
		embedder: embedder,
		store:    store,
		index:    index,
		extract:  extract,
	}

	s.router = s.buildRouter()
	return s
}

// buildRouter creates and configures the chi router with all routes.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// CORS
	corsOpts := cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "http://127.0.0.1:*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}
	if s.cfg.AllowAll {
		corsOpts.AllowedOrigins = []string{"*"}
	}
	r.Use(cors.Handler(corsOpts))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/documents", s.handleEnqueue)
		r.Post("/search", s.handleSearch)
		r.Get("/status", s.handleStatus)
		r.Get("/health", s.handleHealth)
		r.Get("/failed", s.handleFailed)
		r.Post("/failed/{id}/retry", s.handleRetryFailed)
		r.Delete("/failed/{id}", s.handleClearFailed)
	})

	r.Get("/ws/events", s.handleEvents)

	return r
}

// Router returns the chi router, mainly for tests.
func (s *Server) Router() chi.Router { return s.router }

// Start begins listening on the configured port.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("tessera server listening on %s", addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}
