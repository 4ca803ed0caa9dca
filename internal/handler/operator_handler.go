package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/ClareAI/astra-voice-tools/internal/core/outbox"
	"github.com/ClareAI/astra-voice-tools/internal/domain"
	"github.com/ClareAI/astra-voice-tools/pkg/logger"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// NotificationOutbox is the operator view of the notification outbox
type NotificationOutbox interface {
	Drain(ctx context.Context) (outbox.DrainReport, error)
	Pending(ctx context.Context) (int64, error)
	DeadLetters(ctx context.Context) ([]outbox.Entry, error)
}

// ToolCatalog lists the function definitions exposed to the voice assistant
type ToolCatalog interface {
	GetToolDefinitions() []map[string]interface{}
}

// OperatorHandler serves the authenticated operator API
type OperatorHandler struct {
	onboarding OnboardingService
	outbox     NotificationOutbox
	tools      ToolCatalog
}

// clientView is a client record with its derived lifecycle state
type clientView struct {
	*domain.ClientRecord
	State domain.OnboardingState `json:"state"`
}

// outboxView summarizes the outbox
type outboxView struct {
	Pending     int64          `json:"pending"`
	DeadLetters []outbox.Entry `json:"deadLetters"`
}

// NewOperatorHandler creates a new operator handler
func NewOperatorHandler(svc OnboardingService, box NotificationOutbox, tools ToolCatalog) *OperatorHandler {
	return &OperatorHandler{onboarding: svc, outbox: box, tools: tools}
}

// SetupOperatorRoutes registers the operator routes on the API subrouter
func (h *OperatorHandler) SetupOperatorRoutes(router *mux.Router) {
	router.HandleFunc("/clients/{clientId}", h.GetClient).Methods(http.MethodGet)
	router.HandleFunc("/outbox", h.GetOutbox).Methods(http.MethodGet)
	router.HandleFunc("/outbox/drain", h.DrainOutbox).Methods(http.MethodPost)
	router.HandleFunc("/tools", h.ListTools).Methods(http.MethodGet)
}

// GetClient returns one client record
func (h *OperatorHandler) GetClient(w http.ResponseWriter, r *http.Request) {
	clientID := mux.Vars(r)["clientId"]

	record, err := h.onboarding.Get(r.Context(), clientID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Client not found")
			return
		}
		logger.Error(r.Context(), "failed to load client", zap.String("client_id", clientID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, clientView{ClientRecord: record, State: record.State()})
}

// GetOutbox reports pending and dead-lettered notifications
func (h *OperatorHandler) GetOutbox(w http.ResponseWriter, r *http.Request) {
	pending, err := h.outbox.Pending(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	dead, err := h.outbox.DeadLetters(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if dead == nil {
		dead = []outbox.Entry{}
	}
	writeJSON(w, http.StatusOK, outboxView{Pending: pending, DeadLetters: dead})
}

// DrainOutbox redelivers pending notifications now
func (h *OperatorHandler) DrainOutbox(w http.ResponseWriter, r *http.Request) {
	report, err := h.outbox.Drain(r.Context())
	if err != nil {
		logger.Error(r.Context(), "outbox drain failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// ListTools returns the tool definitions to configure on the voice assistant
func (h *OperatorHandler) ListTools(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"tools": h.tools.GetToolDefinitions()})
}
