package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/ClareAI/astra-voice-tools/pkg/logger"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

const bannerText = "AI Voice Agent Scheduler + SMS is running!"

// Pinger reports whether a backing store is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler serves liveness endpoints
type HealthHandler struct {
	db Pinger
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(db Pinger) *HealthHandler {
	return &HealthHandler{db: db}
}

// SetupHealthRoutes registers the health routes
func (h *HealthHandler) SetupHealthRoutes(router *mux.Router) {
	router.HandleFunc("/", h.Banner).Methods(http.MethodGet)
	router.HandleFunc("/healthz", h.Healthz).Methods(http.MethodGet)
}

// Banner answers with the service banner
func (h *HealthHandler) Banner(w http.ResponseWriter, r *http.Request) {
	writeText(w, http.StatusOK, bannerText)
}

// Healthz reports service and database status
func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status, database, code := "ok", "ok", http.StatusOK
	if h.db != nil {
		if err := h.db.Ping(ctx); err != nil {
			logger.Warn(ctx, "database health check failed", zap.Error(err))
			status, database, code = "degraded", "unavailable", http.StatusServiceUnavailable
		}
	}
	writeJSON(w, code, map[string]string{"status": status, "database": database})
}
