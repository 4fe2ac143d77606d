// Package api exposes the analysis pipeline over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/catherinevee/driftscan/internal/analyzer"
	"github.com/catherinevee/driftscan/internal/config"
	"github.com/catherinevee/driftscan/internal/logger"
	"github.com/catherinevee/driftscan/internal/metrics"
	"github.com/catherinevee/driftscan/internal/models"
)

// Server is the HTTP front end. It owns the router and the underlying
// http.Server; the analysis pipeline is injected.
type Server struct {
	router     *mux.Router
	httpServer *http.Server
	analyzer   *analyzer.Analyzer
	cfg        *config.Manager
	metrics    *metrics.Metrics
	gatherer   prometheus.Gatherer
	log        logger.Logger
}

// NewServer wires the router, middleware and handlers. gatherer backs
// the /metrics endpoint; production passes prometheus.DefaultGatherer.
func NewServer(a *analyzer.Analyzer, cfg *config.Manager, m *metrics.Metrics, gatherer prometheus.Gatherer) *Server {
	s := &Server{
		router:   mux.NewRouter(),
		analyzer: a,
		cfg:      cfg,
		metrics:  m,
		gatherer: gatherer,
		log:      logger.New("api"),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(s.requestIDMiddleware)
	s.router.Use(s.loggingMiddleware)

	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.Use(s.rateLimitMiddleware())
	api.HandleFunc("/analyze", s.handleAnalyze).Methods(http.MethodPost)
}

// Handler returns the fully assembled handler chain, CORS included.
// Exposed for httptest servers.
func (s *Server) Handler() http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"*"},
	})
	return c.Handler(s.router)
}

// Start runs the server until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	port := s.cfg.Get().Server.Port

	s.httpServer = &http.Server{
		Addr:    ":" + port,
		Handler: s.Handler(),
		// Analysis requests wait on AI providers; the write timeout has
		// to outlast the provider timeout.
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 180 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.log.Info("server starting", logger.String("addr", s.httpServer.Addr))
	return s.httpServer.ListenAndServe()
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	s.log.Info("server shutting down")
	return s.httpServer.Shutdown(ctx)
}

// handleAnalyze runs one drift analysis. The pipeline never fails for
// well-formed input, so the only error responses here are request
// validation failures.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req models.AnalysisRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if err := validateRequest(&req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "validation_failed", err.Error())
		return
	}

	resp := s.analyzer.Analyze(r.Context(), req)
	writeJSON(w, http.StatusOK, resp)
}

type healthResponse struct {
	Status    string `json:"status"`
	Service   string `json:"service"`
	AIEnabled bool   `json:"ai_enabled"`
	Provider  string `json:"provider,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	env := s.cfg.Get().AI
	aiEnabled := env.Gemini.APIKey != "" || env.Oumi.APIKey != "" || env.Ollama.Available

	writeJSON(w, http.StatusOK, healthResponse{
		Status:    "healthy",
		Service:   "driftscan",
		AIEnabled: aiEnabled,
		Provider:  env.Provider,
	})
}
