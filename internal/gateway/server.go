// Package gateway exposes the search core over HTTP: ingestion,
// search, autocomplete, resource CRUD, downloads, category admin,
// stats, health, and metrics. Every data route runs behind the auth
// middleware; tenancy is resolved from the caller identity.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/papertrove/papertrove/internal/auth"
	"github.com/papertrove/papertrove/internal/blob"
	"github.com/papertrove/papertrove/internal/category"
	"github.com/papertrove/papertrove/internal/ingest"
	"github.com/papertrove/papertrove/internal/observability"
	"github.com/papertrove/papertrove/internal/reindex"
	"github.com/papertrove/papertrove/internal/search"
	"github.com/papertrove/papertrove/internal/store"
	"github.com/papertrove/papertrove/internal/suggest"
)

// Config configures the HTTP server.
type Config struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Deps bundles the gateway's dependencies.
type Deps struct {
	Store       store.DocumentStore
	Blobs       blob.Store
	Searcher    *search.Searcher
	Suggestions suggest.Index
	Ingestor    *ingest.Coordinator
	Reindexer   *reindex.Coordinator
	Categories  *category.Service
	Auth        *auth.Service
	Audit       *observability.AuditLogger
	Logger      *observability.Logger
	Metrics     *observability.Metrics
}

// Server is the HTTP gateway.
type Server struct {
	config Config
	deps   Deps
	logger *observability.Logger

	httpServer *http.Server
	listener   net.Listener
}

// New creates a gateway server.
func New(cfg Config, deps Deps) *Server {
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 15 * time.Second
	}
	return &Server{
		config: cfg,
		deps:   deps,
		logger: deps.Logger.WithFields("component", "gateway"),
	}
}

// Start begins serving. It returns after the listener is bound; serving
// continues on a background goroutine.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("http listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error(ctx, "http server error", "error", err)
		}
	}()

	s.logger.Info(ctx, "gateway listening", "addr", addr)
	return nil
}

// Shutdown stops accepting requests and drains in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}

// Addr returns the bound listener address.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// routes builds the mux. Data routes go through the auth middleware;
// health and metrics stay open.
func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.Handle("GET /metrics", promhttp.Handler())

	api := http.NewServeMux()
	api.HandleFunc("GET /api/v1/search", s.handleSearch)
	api.HandleFunc("GET /api/v1/suggest", s.handleSuggest)

	api.HandleFunc("POST /api/v1/resources", s.handleUpload)
	api.HandleFunc("POST /api/v1/snippets", s.handleSnippet)
	api.HandleFunc("GET /api/v1/resources", s.handleListResources)
	api.HandleFunc("GET /api/v1/resources/{id}", s.handleGetResource)
	api.HandleFunc("PATCH /api/v1/resources/{id}", s.handleUpdateResource)
	api.HandleFunc("DELETE /api/v1/resources/{id}", s.handleDeleteResource)
	api.HandleFunc("GET /api/v1/resources/{id}/file", s.handleDownload)

	api.HandleFunc("GET /api/v1/categories", s.handleListCategories)
	api.HandleFunc("GET /api/v1/categories/{type}", s.handleGetCategory)
	api.HandleFunc("PUT /api/v1/categories/{type}", s.handleUpsertCategory)
	api.HandleFunc("POST /api/v1/categories/{type}/entities", s.handleAddEntity)
	api.HandleFunc("DELETE /api/v1/categories/{type}/entities/{entity}", s.handleRemoveEntity)
	api.HandleFunc("PUT /api/v1/categories/{type}/ignored-words", s.handleSetIgnoredWords)
	api.HandleFunc("PUT /api/v1/categories/{type}/trigger-keywords", s.handleSetTriggerKeywords)

	api.HandleFunc("GET /api/v1/stats", s.handleStats)

	mux.Handle("/api/", auth.Middleware(s.deps.Auth, s.logger)(api))
	return mux
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
