// Package http serves the optional observability sidecar: /health and
// /metrics on a separate listener. The MCP tools themselves run over stdio.
package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/tianqi-tools/weather-mcp/internal/observability"
)

// Handler holds dependencies for the sidecar endpoints.
type Handler struct {
	logger    *zap.Logger
	startTime time.Time
	// cachePing, when set, is called to check cache reachability.
	// Used when the backend is memcached.
	cachePing func() error
}

// NewHandler returns a new Handler. cachePing may be nil.
func NewHandler(logger *zap.Logger, startTime time.Time, cachePing func() error) *Handler {
	return &Handler{
		logger:    logger,
		startTime: startTime,
		cachePing: cachePing,
	}
}

// NewRouter builds the sidecar router.
func NewRouter(h *Handler) *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/health", h.GetHealth).Methods("GET")
	router.Handle("/metrics", observability.MetricsHandler())
	return router
}

// GetHealth handles GET /health. The process is healthy as long as its
// cache backend (if remote) is reachable; upstream API health is not probed
// here to avoid burning quota on health checks.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	statusCode := http.StatusOK
	checks := map[string]string{}

	if h.cachePing != nil {
		if err := h.cachePing(); err != nil {
			h.logger.Warn("health: cache unreachable", zap.Error(err))
			checks["cache"] = "unhealthy"
			status = "degraded"
		} else {
			checks["cache"] = "healthy"
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":        status,
		"uptimeSeconds": int64(time.Since(h.startTime).Seconds()),
		"checks":        checks,
	})
}
