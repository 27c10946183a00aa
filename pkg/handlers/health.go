package handlers

import (
	"context"
	"net/http"
	"os"
	"runtime"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-quality/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-quality/pkg/config"
	"github.com/ekaya-inc/ekaya-quality/pkg/logging"
)

// readyTimeout bounds the datasource round trip made by /ready.
const readyTimeout = 5 * time.Second

// PingResponse contains service status and version information.
type PingResponse struct {
	Status      string                   `json:"status"`
	Version     string                   `json:"version"`
	Service     string                   `json:"service"`
	GoVersion   string                   `json:"go_version"`
	Hostname    string                   `json:"hostname"`
	Environment string                   `json:"environment"`
	Dialect     string                   `json:"dialect"`
	Adapters    []datasource.AdapterInfo `json:"adapters"`
}

// HealthHandler handles liveness, readiness and ping endpoints.
type HealthHandler struct {
	cfg      *config.Config
	executor datasource.QueryExecutor
	logger   *zap.Logger
}

// NewHealthHandler creates a HealthHandler. executor may be nil, in which
// case /ready always reports unavailable.
func NewHealthHandler(cfg *config.Config, executor datasource.QueryExecutor, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{cfg: cfg, executor: executor, logger: logger}
}

// RegisterRoutes registers the health handler's routes on the given mux.
func (h *HealthHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /ready", h.Ready)
	mux.HandleFunc("GET /ping", h.Ping)
}

// Health handles GET /health requests.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Ready handles GET /ready requests by running a trivial query against the
// configured datasource.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.executor == nil {
		if err := ErrorResponse(w, http.StatusServiceUnavailable, "not_ready", "No datasource configured"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	if _, err := h.executor.Query(ctx, "SELECT 1"); err != nil {
		h.logger.Warn("Datasource not ready",
			zap.String("dialect", string(h.executor.Dialect())),
			zap.String("error", logging.SanitizeError(err)))
		if err := ErrorResponse(w, http.StatusServiceUnavailable, "not_ready", "Datasource is unreachable"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Message: "ready"}); err != nil {
		h.logger.Error("Failed to encode ready response", zap.Error(err))
	}
}

// Ping handles GET /ping requests.
// Returns service information including version, configured dialect and
// the adapters compiled into the binary.
func (h *HealthHandler) Ping(w http.ResponseWriter, r *http.Request) {
	hostname, err := os.Hostname()
	if err != nil {
		http.Error(w, "failed to get hostname", http.StatusInternalServerError)
		return
	}

	response := PingResponse{
		Status:      "ok",
		Version:     h.cfg.Version,
		Service:     "ekaya-quality",
		GoVersion:   runtime.Version(),
		Hostname:    hostname,
		Environment: h.cfg.Env,
		Dialect:     h.cfg.Datasource.Type,
		Adapters:    datasource.RegisteredAdapters(),
	}

	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to encode ping response", zap.Error(err))
	}
}
