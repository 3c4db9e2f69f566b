package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/scrollprobe/internal/config"
	"github.com/JakeFAU/scrollprobe/internal/metrics"
	"github.com/JakeFAU/scrollprobe/internal/probe"
	"github.com/JakeFAU/scrollprobe/internal/store"
)

// ProgressSource exposes the latest per-element progress. probe.Tracker
// satisfies it.
type ProgressSource interface {
	View() probe.View
	Get(element string) (probe.Sample, bool)
}

// ReadinessCheck reports whether a downstream dependency is usable.
type ReadinessCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

const (
	requestTimeout = 60 * time.Second
	readyTimeout   = 2 * time.Second
)

// Server wires HTTP handlers to the tracker and the progress repository.
type Server struct {
	router   chi.Router
	source   ProgressSource
	progress *ProgressHandler
	metrics  *metrics.Collectors
	checks   []ReadinessCheck
	logger   *zap.Logger
}

// NewServer constructs a Server with middleware and routes. A nil repo makes
// the run history endpoints answer 503; nil collectors disable /metrics.
func NewServer(
	source ProgressSource,
	repo store.ProgressRepository,
	collectors *metrics.Collectors,
	cfg config.Config,
	logger *zap.Logger,
	checks ...ReadinessCheck,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		source:   source,
		progress: NewProgressHandler(repo, logger.Named("progress")),
		metrics:  collectors,
		checks:   checks,
		logger:   logger,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	if collectors != nil {
		r.Use(collectors.Middleware)
	}
	r.Use(timeoutMiddleware(requestTimeout))
	if cfg.Auth.Enabled {
		r.Use(apiKeyMiddleware(cfg.Auth.APIKey))
	}

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	if collectors != nil {
		r.Method(http.MethodGet, "/metrics", collectors.Handler())
	}

	r.Route("/v1", func(r chi.Router) {
		r.Route("/progress", func(r chi.Router) {
			r.Get("/", s.latestProgress)
			r.Get("/{element}", s.elementProgress)
		})
		r.Route("/runs", func(r chi.Router) {
			r.Get("/", s.progress.ListRuns)
			r.Route("/{run_id}", func(r chi.Router) {
				r.Get("/", s.progress.GetRun)
				r.Get("/elements", s.progress.ListRunElements)
			})
		})
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()
	failed := map[string]string{}
	for _, c := range s.checks {
		if err := c.Check(ctx); err != nil {
			s.logger.Warn("readiness check failed", zap.String("check", c.Name), zap.Error(err))
			failed[c.Name] = err.Error()
		}
	}
	if len(failed) > 0 {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "unavailable", "failed": failed})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) latestProgress(w http.ResponseWriter, _ *http.Request) {
	if s.source == nil {
		writeError(w, http.StatusServiceUnavailable, "progress tracker unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"run": toLiveRunDTO(s.source.View())})
}

func (s *Server) elementProgress(w http.ResponseWriter, r *http.Request) {
	if s.source == nil {
		writeError(w, http.StatusServiceUnavailable, "progress tracker unavailable")
		return
	}
	element := chi.URLParam(r, "element")
	sample, ok := s.source.Get(element)
	if !ok {
		writeError(w, http.StatusNotFound, "element not tracked")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"element": sample})
}

type liveRunDTO struct {
	RunID      string         `json:"run_id,omitempty"`
	Source     string         `json:"source"`
	Status     string         `json:"status"`
	StartedAt  *time.Time     `json:"started_at,omitempty"`
	FinishedAt *time.Time     `json:"finished_at,omitempty"`
	Error      string         `json:"error,omitempty"`
	Elements   []probe.Sample `json:"elements"`
}

func toLiveRunDTO(v probe.View) liveRunDTO {
	dto := liveRunDTO{
		Source:     v.Source,
		Status:     string(v.Status),
		FinishedAt: v.FinishedAt,
		Error:      v.Error,
		Elements:   v.Elements,
	}
	if v.RunID != uuid.Nil {
		dto.RunID = v.RunID.String()
	}
	if !v.StartedAt.IsZero() {
		started := v.StartedAt
		dto.StartedAt = &started
	}
	if dto.Elements == nil {
		dto.Elements = []probe.Sample{}
	}
	return dto
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func loggingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			logger.Info("request completed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.status),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", requestID(r.Context())),
			)
		})
	}
}

func recoverMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rec),
						zap.String("path", r.URL.Path),
						zap.String("request_id", requestID(r.Context())),
					)
					writeError(w, http.StatusInternalServerError, "internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("write response: %w", err)
	}
	return n, nil
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := rw.ResponseWriter.(http.Hijacker); ok {
		conn, buf, err := h.Hijack()
		if err != nil {
			return nil, nil, fmt.Errorf("hijack connection: %w", err)
		}
		return conn, buf, nil
	}
	return nil, nil, errors.New("hijacker not supported")
}

type requestIDKey struct{}

func apiKeyMiddleware(expected string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-API-Key")
			if key == "" {
				key = r.URL.Query().Get("api_key")
			}
			if key != expected {
				writeError(w, http.StatusForbidden, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
