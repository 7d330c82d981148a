package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/stockwatcher/internal/metrics"
	"github.com/JakeFAU/stockwatcher/internal/middleware"
	"github.com/JakeFAU/stockwatcher/internal/stock"
)

// Runner executes one stock check.
type Runner interface {
	Run(ctx context.Context) stock.Result
}

// Config controls Server behavior.
type Config struct {
	// ReportFailures answers failed runs with 500 instead of 200.
	ReportFailures bool
	RequestTimeout time.Duration
}

// Server wires HTTP handlers to the stock checker.
type Server struct {
	router chi.Router
	runner Runner
	cfg    Config
	logger *zap.Logger
}

// triggerEvent is the subset of a scheduler payload worth logging. Both
// Cloud Scheduler style "type" and EventBridge style "detail-type" are read.
type triggerEvent struct {
	Type       string `json:"type"`
	DetailType string `json:"detail-type"`
	Source     string `json:"source"`
}

// checkResponse is returned by POST /v1/check.
type checkResponse struct {
	RunID     string            `json:"run_id"`
	Outcome   stock.Outcome     `json:"outcome"`
	InStock   map[string]string `json:"in_stock,omitempty"`
	MessageID string            `json:"message_id,omitempty"`
	Error     string            `json:"error,omitempty"`
}

// NewServer constructs a Server with middleware and routes.
func NewServer(runner Runner, cfg Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 5 * time.Minute
	}
	s := &Server{
		runner: runner,
		cfg:    cfg,
		logger: logger,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(middleware.Metrics)

	r.Get("/healthz", s.healthz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())
	r.With(timeoutMiddleware(cfg.RequestTimeout)).Post("/v1/check", s.check)

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

func (s *Server) check(w http.ResponseWriter, r *http.Request) {
	var event triggerEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	s.logger.Info("check triggered",
		zap.String("request_id", requestID(r.Context())),
		zap.String("event_type", event.kind()),
		zap.String("event_source", event.Source),
	)

	res := s.runner.Run(r.Context())

	status := http.StatusOK
	if res.Failed() && s.cfg.ReportFailures {
		status = http.StatusInternalServerError
	}
	resp := checkResponse{
		RunID:     res.RunID,
		Outcome:   res.Outcome,
		InStock:   res.InStock,
		MessageID: res.MessageID,
	}
	if res.Err != nil {
		resp.Error = res.Err.Error()
	}
	writeJSON(w, status, resp)
}

func (e triggerEvent) kind() string {
	switch {
	case e.Type != "":
		return e.Type
	case e.DetailType != "":
		return e.DetailType
	default:
		return "unknown"
	}
}

type requestIDKey struct{}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewStatusRecorder(w)
		next.ServeHTTP(ww, r)
		s.logger.Info("request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", zap.Any("error", rec), zap.Stack("stacktrace"))
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
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
