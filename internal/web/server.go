package web

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/elys-network/yieldbalancer/internal/alerts"
	"github.com/elys-network/yieldbalancer/internal/logger"
	"github.com/elys-network/yieldbalancer/internal/metrics"
	"github.com/elys-network/yieldbalancer/internal/state"
	"github.com/elys-network/yieldbalancer/internal/types"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

type PoolLister interface {
	Snapshot() []types.PoolMetrics
}

type SentimentService interface {
	Current() types.SentimentState
	Ingest(ctx context.Context, reading types.SentimentReading) error
}

type StrategyRegistry interface {
	Create(ctx context.Context, s types.Strategy) (types.Strategy, error)
	List() []types.Strategy
}

type PerformanceReporter interface {
	Report(ctx context.Context, strategyID string) (types.PerformanceReport, error)
}

type AlertSource interface {
	Subscribe() *alerts.Subscription
}

// CycleHistory serves recent snapshots when no database is configured.
type CycleHistory interface {
	Recent(limit int) []types.CycleSnapshot
}

// CycleStore is the persistent view; *state.Store implements it.
type CycleStore interface {
	Ping(ctx context.Context) error
	GetRecentCycles(ctx context.Context, limit int) ([]types.CycleSnapshot, error)
	GetLatestCycle(ctx context.Context) (types.CycleSnapshot, error)
	GetPortfolioSummary(ctx context.Context) (state.PortfolioSummary, error)
	GetCycleMetrics(ctx context.Context) (state.CycleMetrics, error)
}

type Config struct {
	Port        string
	Catalog     PoolLister
	Sentiment   SentimentService
	Strategies  StrategyRegistry
	Performance PerformanceReporter
	Alerts      AlertSource
	Cycles      CycleHistory
	Store       CycleStore // optional
}

// Server exposes the HTTP and WebSocket API.
type Server struct {
	router *mux.Router
	port   string
	logger zerolog.Logger

	catalog     PoolLister
	sentiment   SentimentService
	strategies  StrategyRegistry
	performance PerformanceReporter
	alerts      AlertSource
	cycles      CycleHistory
	store       CycleStore
	started     time.Time
}

func NewServer(cfg Config) (*Server, error) {
	if cfg.Catalog == nil || cfg.Sentiment == nil || cfg.Strategies == nil ||
		cfg.Performance == nil || cfg.Alerts == nil || cfg.Cycles == nil {
		return nil, errors.New("web server: every collaborator except Store is required")
	}
	if cfg.Port == "" {
		cfg.Port = "8080"
	}

	s := &Server{
		router:      mux.NewRouter(),
		port:        cfg.Port,
		logger:      logger.GetForComponent("web_server"),
		catalog:     cfg.Catalog,
		sentiment:   cfg.Sentiment,
		strategies:  cfg.Strategies,
		performance: cfg.Performance,
		alerts:      cfg.Alerts,
		cycles:      cfg.Cycles,
		store:       cfg.Store,
		started:     time.Now(),
	}
	s.setupRoutes()
	return s, nil
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
	s.router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", s.handleHealth).Methods("GET")
	api.HandleFunc("/optimize", s.handleOptimize).Methods("POST")
	api.HandleFunc("/sentiment", s.handleGetSentiment).Methods("GET")
	api.HandleFunc("/sentiment", s.handleIngestSentiment).Methods("POST")
	api.HandleFunc("/strategy", s.handleCreateStrategy).Methods("POST")
	api.HandleFunc("/strategies", s.handleListStrategies).Methods("GET")
	api.HandleFunc("/alerts", s.handleAlertStream).Methods("GET")
	api.HandleFunc("/alerts/ws", s.handleAlertSocket).Methods("GET")
	api.HandleFunc("/performance/{id}", s.handleGetPerformance).Methods("GET")
	api.HandleFunc("/cycles", s.handleGetCycles).Methods("GET")
	api.HandleFunc("/cycles/latest", s.handleGetLatestCycle).Methods("GET")
	api.HandleFunc("/analytics", s.handleGetAnalytics).Methods("GET")

	s.router.Use(s.corsMiddleware)
	s.router.Use(s.loggingMiddleware)
}

// Handler returns the routed handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info().Str("port", s.port).Msg("Starting web server")

	server := &http.Server{
		Addr:        ":" + s.port,
		Handler:     s.router,
		ReadTimeout: 15 * time.Second,
		// no WriteTimeout: the alert stream is long-lived
		IdleTimeout: 60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- server.ListenAndServe() }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("web server failed: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.logger.Info().Msg("Shutting down web server")
		return server.Shutdown(shutdownCtx)
	}
}

func (s *Server) writeJSONResponse(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (s *Server) writeErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	s.writeJSONResponse(w, statusCode, map[string]any{
		"error":     true,
		"message":   message,
		"timestamp": time.Now().UTC(),
	})
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs every request and records its latency by route template.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapper := &responseWriterWrapper{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapper, r)

		duration := time.Since(start)
		route := r.URL.Path
		if cur := mux.CurrentRoute(r); cur != nil {
			if tpl, err := cur.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		metrics.HTTPLatency.WithLabelValues(route, r.Method).Observe(duration.Seconds())

		s.logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote_addr", r.RemoteAddr).
			Int("status", wrapper.statusCode).
			Dur("duration", duration).
			Msg("HTTP request")
	})
}

// responseWriterWrapper captures the status code. It forwards Flush and
// Hijack so that streaming and WebSocket handlers keep working behind it.
type responseWriterWrapper struct {
	http.ResponseWriter
	statusCode int
}

func (w *responseWriterWrapper) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *responseWriterWrapper) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *responseWriterWrapper) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	return h.Hijack()
}

func (w *responseWriterWrapper) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
