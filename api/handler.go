// Package api provides the HTTP boundary of beacon: the delivery outcome
// callback endpoint and the webhook administration API.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/xraph/beacon"
)

// maxBodyBytes bounds request bodies, callbacks included.
const maxBodyBytes = 1 << 20

// Handler is the root HTTP handler for the beacon API.
type Handler struct {
	beacon   *beacon.Beacon
	gatherer prometheus.Gatherer
	logger   *slog.Logger
	mux      *http.ServeMux
}

// NewHandler creates a new API handler. A nil gatherer disables /metrics.
func NewHandler(b *beacon.Beacon, gatherer prometheus.Gatherer, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}

	h := &Handler{
		beacon:   b,
		gatherer: gatherer,
		logger:   logger,
		mux:      http.NewServeMux(),
	}

	h.registerRoutes()
	return h
}

func (h *Handler) registerRoutes() {
	// Delivery outcomes
	h.mux.HandleFunc("POST /callback", h.handleCallback)

	// Webhooks
	h.mux.HandleFunc("POST /webhooks", h.createWebhook)
	h.mux.HandleFunc("GET /webhooks", h.listWebhooks)
	h.mux.HandleFunc("GET /webhooks/{id}", h.getWebhook)
	h.mux.HandleFunc("PUT /webhooks/{id}", h.updateWebhook)
	h.mux.HandleFunc("DELETE /webhooks/{id}", h.deleteWebhook)
	h.mux.HandleFunc("POST /webhooks/{id}/enable", h.enableWebhook)
	h.mux.HandleFunc("POST /webhooks/{id}/disable", h.disableWebhook)
	h.mux.HandleFunc("POST /webhooks/{id}/rotate-secret", h.rotateSecret)
	h.mux.HandleFunc("POST /webhooks/{id}/test", h.sendTestEvent)
	h.mux.HandleFunc("GET /webhooks/{id}/events", h.listEvents)

	// Workspaces
	h.mux.HandleFunc("PUT /workspaces/{id}", h.putWorkspace)

	// Triggers
	h.mux.HandleFunc("GET /triggers", h.listTriggers)
	h.mux.HandleFunc("GET /triggers/{trigger}/schema", h.getTriggerSchema)
	h.mux.HandleFunc("GET /triggers/{trigger}/sample", h.getTriggerSample)

	// DLQ
	h.mux.HandleFunc("GET /dlq", h.listDLQ)
	h.mux.HandleFunc("POST /dlq/{id}/replay", h.replayDLQ)
	h.mux.HandleFunc("POST /dlq/replay", h.replayBulkDLQ)

	// Stats
	h.mux.HandleFunc("GET /stats", h.getStats)

	if h.gatherer != nil {
		h.mux.Handle("GET /metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))
	}
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.withMiddleware(h.mux).ServeHTTP(w, r)
}

func (h *Handler) withMiddleware(next http.Handler) http.Handler {
	return h.panicRecovery(h.logging(next))
}

func (h *Handler) logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		h.logger.InfoContext(r.Context(), "api request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rw.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

func (h *Handler) panicRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				h.logger.ErrorContext(r.Context(), "panic recovered",
					"error", rec,
					"stack", string(debug.Stack()),
				)
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

// JSON helpers.

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best effort
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes)).Decode(v)
}

// queryParam returns a query parameter value, or empty string if not present.
func queryParam(r *http.Request, key string) string {
	return r.URL.Query().Get(key)
}

// queryInt returns a non-negative query parameter as int or a default value.
func queryInt(r *http.Request, key string, defaultVal int) int {
	n, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || n < 0 {
		return defaultVal
	}
	return n
}
