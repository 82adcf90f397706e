package handler

import (
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"analytics-intake/internal/metrics"
	"analytics-intake/internal/usecase"
)

const defaultMaxBodyBytes = 1 << 20

// RouterConfig tunes the local HTTP surface.
type RouterConfig struct {
	RateLimitRequests int
	RateLimitWindow   time.Duration
	MaxBodyBytes      int64
}

// NewRouter exposes the intake handler over plain HTTP for local runs:
// POST /v1/events, GET /healthz and GET /metrics.
func NewRouter(h *Handler, cfg RouterConfig) http.Handler {
	if cfg.RateLimitWindow <= 0 {
		cfg.RateLimitWindow = time.Minute
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(h.requestLogging)
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, []byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		if cfg.RateLimitRequests > 0 {
			r.Use(rateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))
		}
		r.Post("/events", h.serveEvent(cfg.MaxBodyBytes))
	})
	return r
}

func (h *Handler) serveEvent(maxBytes int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		correlationID := w.Header().Get(correlationHeader)

		body, err := io.ReadAll(io.LimitReader(r.Body, maxBytes+1))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, mustJSON(errorResponse{Error: string(usecase.ErrorInvalidInput), Reason: "unreadable_body"}))
			return
		}
		if int64(len(body)) > maxBytes {
			writeJSON(w, http.StatusRequestEntityTooLarge, mustJSON(errorResponse{Error: string(usecase.ErrorInvalidInput), Reason: "body_too_large"}))
			return
		}

		status, payload := h.process(r.Context(), correlationID, body)
		writeJSON(w, status, payload)
	}
}

func rateLimit(requests int, window time.Duration) func(http.Handler) http.Handler {
	return httprate.Limit(
		requests,
		window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Retry-After", "60")
			writeJSON(w, http.StatusTooManyRequests, mustJSON(errorResponse{Error: string(usecase.ErrorRateLimited), Reason: "rate_limit_exceeded"}))
		}),
	)
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    int64
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.written += int64(n)
	return n, err
}

// requestLogging assigns the correlation id, then logs and measures each request.
func (h *Handler) requestLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		correlationID := r.Header.Get(correlationHeader)
		if correlationID == "" {
			correlationID = uuid.NewString()
		}
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		wrapped.Header().Set(correlationHeader, correlationID)

		next.ServeHTTP(wrapped, r)

		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			path = rctx.RoutePattern()
		}
		duration := time.Since(start)
		metrics.RecordRequest(r.Method, path, strconv.Itoa(wrapped.statusCode), duration)
		h.logger.Info("request completed",
			"method", r.Method,
			"path", path,
			"status", wrapped.statusCode,
			"bytes", wrapped.written,
			"duration_ms", duration.Milliseconds(),
			"correlation_id", correlationID,
			"request_id", chimiddleware.GetReqID(r.Context()),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
