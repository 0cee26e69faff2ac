// Package api exposes the optional HTTP status interface for a running
// crawl: liveness, a live progress snapshot, and Prometheus metrics.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/scrapeworks/wormy/internal/progress/sinks"
)

// Server wires HTTP handlers to the live crawl stats and metrics registry.
type Server struct {
	router chi.Router
	stats  *sinks.StatsSink
	logger *zap.Logger
}

// NewServer constructs a Server with middleware and routes. The gatherer
// serves /metrics; pass the registry the progress sink was registered on.
func NewServer(stats *sinks.StatsSink, gatherer prometheus.Gatherer, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		stats:  stats,
		logger: logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", s.healthz)
	r.Get("/progress", s.progress)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) progress(w http.ResponseWriter, _ *http.Request) {
	if s.stats == nil {
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "progress tracking disabled"})
		return
	}
	s.writeJSON(w, http.StatusOK, s.stats.Snapshot())
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Warn("response write failed", zap.Error(err))
	}
}
