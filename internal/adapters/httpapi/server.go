package httpapi

import (
	"encoding/json"
	"net/http"

	"log/slog"

	"github.com/aretw0/sessiond/internal/logging"
	"github.com/aretw0/sessiond/pkg/manager"
	"github.com/aretw0/sessiond/pkg/monitor"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server exposes the administrative surface of the session core: stats,
// per-user counts, bulk invalidation and manual cleanup. It is meant for
// operators and server-side collaborators, not for end users.
type Server struct {
	mgr      *manager.Manager
	mon      *monitor.Monitor
	logger   *slog.Logger
	gatherer prometheus.Gatherer
}

// Option configures the Server.
type Option func(*Server)

// WithLogger configures request logging.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithGatherer sets the Prometheus gatherer backing /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gatherer = g
	}
}

// NewHandler builds the admin router.
func NewHandler(mgr *manager.Manager, mon *monitor.Monitor, opts ...Option) http.Handler {
	s := &Server{
		mgr:      mgr,
		mon:      mon,
		logger:   logging.NewNop(),
		gatherer: prometheus.DefaultGatherer,
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Get("/healthz", s.handleHealth)
	r.Get("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}).ServeHTTP)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/sessions/stats", s.handleStats)
		r.Post("/cleanup", s.handleCleanup)
		r.Get("/users/{userID}/sessions/count", s.handleUserCount)
		r.Delete("/users/{userID}/sessions", s.handleInvalidateUser)
		r.Get("/monitor/metrics", s.handleMonitorMetrics)
		r.Get("/monitor/report", s.handleReport)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if s.mon != nil {
		stats, err := s.mon.GetDetailedStats(r.Context())
		if err != nil {
			s.fail(w, err)
			return
		}
		writeJSON(w, http.StatusOK, stats)
		return
	}

	snap, err := s.mgr.SessionStats(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleCleanup(w http.ResponseWriter, r *http.Request) {
	var (
		cleaned int
		err     error
	)
	if s.mon != nil {
		cleaned, err = s.mon.TriggerCleanup(r.Context())
	} else {
		cleaned, err = s.mgr.CleanupExpiredSessions(r.Context())
	}
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"cleanedCount": cleaned})
}

func (s *Server) handleUserCount(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	count, err := s.mgr.UserSessionCount(r.Context(), userID)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"userId": userID, "count": count})
}

func (s *Server) handleInvalidateUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if err := s.mgr.InvalidateUserSessions(r.Context(), userID); err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"userId": userID, "status": "invalidated"})
}

func (s *Server) handleMonitorMetrics(w http.ResponseWriter, r *http.Request) {
	if s.mon == nil {
		http.Error(w, "monitor not running", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, s.mon.GetMetrics())
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	if s.mon == nil {
		http.Error(w, "monitor not running", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, s.mon.GenerateReport())
}

func (s *Server) fail(w http.ResponseWriter, err error) {
	s.logger.Error("admin request failed", "err", err)
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
