// Package api provides the HTTP server for Lock In.
// It exposes the progression engine as a JSON REST API under /api/v1.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lockin-app/lockin/internal/app/engagement"
	"github.com/lockin-app/lockin/internal/domain"
	"github.com/lockin-app/lockin/internal/health"
	"github.com/lockin-app/lockin/internal/infra/metrics"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// Server is the Lock In HTTP API server.
type Server struct {
	engine         *engagement.Engine
	checker        *health.Checker
	limiter        *rateLimiter
	metricsEnabled bool
	timeout        time.Duration
}

// NewServer creates a new API server over engine.
func NewServer(engine *engagement.Engine) *Server {
	return &Server{engine: engine, timeout: 30 * time.Second}
}

// EnableMetrics enables the /metrics Prometheus endpoint.
func (s *Server) EnableMetrics() { s.metricsEnabled = true }

// SetHealthChecker reports checker results on /health.
func (s *Server) SetHealthChecker(c *health.Checker) { s.checker = c }

// SetRateLimit limits each client to rps requests per second with the
// given burst. rps <= 0 disables limiting.
func (s *Server) SetRateLimit(rps float64, burst int) {
	if rps <= 0 {
		s.limiter = nil
		return
	}
	s.limiter = newRateLimiter(rps, burst)
}

// SetTimeout overrides the per-request timeout.
func (s *Server) SetTimeout(d time.Duration) {
	if d > 0 {
		s.timeout = d
	}
}

// RunJanitor evicts idle rate limiter entries until ctx is done.
func (s *Server) RunJanitor(ctx context.Context) {
	if s.limiter != nil {
		s.limiter.cleanup(ctx, time.Minute, 3*time.Minute)
	}
}

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(metricsMiddleware)
	r.Use(middleware.Timeout(s.timeout))
	r.Use(corsMiddleware)

	r.Get("/health", s.handleHealth)

	if s.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		if s.limiter != nil {
			r.Use(s.limiter.middleware)
		}

		r.Get("/levels/{xp}", s.handleLevel)
		r.Get("/badges", s.handleCatalog)

		r.Route("/users/{userID}", func(r chi.Router) {
			r.Post("/", s.handleCreateUser)
			r.Get("/", s.handleProfile)
			r.Delete("/", s.handleDeleteUser)
			r.Put("/settings", s.handleSettings)

			r.Post("/sessions", s.handleRecordSession)
			r.Get("/sessions/today", s.handleTodaySessions)
			r.Patch("/sessions/{sessionID}", s.handleSessionMood)

			r.Post("/xp", s.handleAwardXP)
			r.Post("/streak", s.handleStreak)

			r.Get("/quests", s.handleListQuests)
			r.Post("/quests", s.handleAssignQuest)
			r.Post("/quests/{questID}/complete", s.handleCompleteQuest)
			r.Get("/quests/daily", s.handleDailyQuests)
			r.Post("/quests/daily/{questID}/check", s.handleCheckDailyQuest)

			r.Get("/badges", s.handleBadges)
			r.Post("/badges/check", s.handleCheckBadges)

			r.Post("/activities", s.handleActivity)
		})
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.checker == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}
	status, code := "ok", http.StatusOK
	if !s.checker.IsHealthy() {
		status, code = "degraded", http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{
		"status": status,
		"checks": s.checker.Statuses(),
	})
}

// ─── Helpers ────────────────────────────────────────────────────────────────

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errorType(status),
		},
	})
}

// writeErr maps an engine error to its HTTP status.
func writeErr(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		var se *domain.StoreError
		if errors.As(err, &se) {
			metrics.StoreErrors.WithLabelValues(se.Op).Inc()
		}
		log.Printf("[api] %s %s: %v", r.Method, r.URL.Path, err)
		msg = "internal error"
	}
	writeError(w, status, msg)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrUserNotFound),
		errors.Is(err, domain.ErrSessionNotFound),
		errors.Is(err, domain.ErrQuestNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrQuestAlreadyCompleted),
		errors.Is(err, domain.ErrUserExists),
		errors.Is(err, domain.ErrXPLimitReached):
		return http.StatusConflict
	case errors.Is(err, domain.ErrInvalidDuration),
		errors.Is(err, domain.ErrInvalidXPAmount),
		errors.Is(err, domain.ErrInvalidMood),
		errors.Is(err, domain.ErrInvalidActivity),
		errors.Is(err, domain.ErrInvalidQuest),
		errors.Is(err, domain.ErrInvalidSettings),
		errors.Is(err, domain.ErrInvalidUserID):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func errorType(status int) string {
	switch {
	case status == http.StatusNotFound:
		return "not_found"
	case status == http.StatusConflict:
		return "conflict"
	case status == http.StatusTooManyRequests:
		return "rate_limited"
	case status < 500:
		return "invalid_request"
	}
	return "server_error"
}

// decodeJSON reads a JSON body into v, writing a 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

// corsMiddleware adds CORS headers for the mobile and web clients.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// metricsMiddleware records request counts and latency by route pattern.
func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		metrics.HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		metrics.HTTPDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
