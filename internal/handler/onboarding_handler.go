package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/ClareAI/astra-voice-tools/internal/domain"
	"github.com/ClareAI/astra-voice-tools/internal/services/onboarding"
	"github.com/ClareAI/astra-voice-tools/pkg/logger"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// OnboardingService runs the client onboarding lifecycle
type OnboardingService interface {
	Initiate(ctx context.Context, profile domain.ClientProfile, amount domain.Amount) (*onboarding.InitiationResult, error)
	ConfirmPayment(ctx context.Context, clientID, paymentIntentID string) (*onboarding.ConfirmationResult, error)
	Get(ctx context.Context, clientID string) (*domain.ClientRecord, error)
}

// OnboardingHandler serves payment link creation and payment confirmation
type OnboardingHandler struct {
	onboarding OnboardingService
}

// NewOnboardingHandler creates a new onboarding handler
func NewOnboardingHandler(svc OnboardingService) *OnboardingHandler {
	return &OnboardingHandler{onboarding: svc}
}

// SetupOnboardingRoutes registers the onboarding routes
func (h *OnboardingHandler) SetupOnboardingRoutes(router *mux.Router) {
	router.HandleFunc("/create-payment-link", h.CreatePaymentLink).Methods(http.MethodPost)
	router.HandleFunc("/webhook/payment-confirmed", h.PaymentConfirmed).Methods(http.MethodPost)
}

// CreatePaymentLink creates a client record and texts the payment link
func (h *OnboardingHandler) CreatePaymentLink(w http.ResponseWriter, r *http.Request) {
	var req domain.CreatePaymentLinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	result, err := h.onboarding.Initiate(r.Context(), req.ClientProfile, req.Amount)
	if err != nil {
		var validationErr *domain.ValidationError
		if errors.As(err, &validationErr) {
			writeError(w, http.StatusBadRequest, validationErr.Error())
			return
		}
		logger.Error(r.Context(), "Error creating payment link", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to create payment link")
		return
	}

	if result.NoticeError != nil {
		logger.Warn(r.Context(), "payment link created but SMS failed",
			zap.String("client_id", result.ClientID),
			zap.Bool("queued", result.NoticeQueued),
			zap.Error(result.NoticeError))
	}

	writeJSON(w, http.StatusOK, domain.CreatePaymentLinkResponse{
		Success:     true,
		ClientID:    result.ClientID,
		PaymentLink: result.PaymentLink,
		Message:     "Payment link sent to " + req.ClientPhone,
	})
}

// PaymentConfirmed marks a client as paid and provisions their workflow
func (h *OnboardingHandler) PaymentConfirmed(w http.ResponseWriter, r *http.Request) {
	var req domain.PaymentConfirmedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.ClientID) == "" {
		writeError(w, http.StatusBadRequest, "Missing clientId")
		return
	}

	result, err := h.onboarding.ConfirmPayment(r.Context(), req.ClientID, req.PaymentIntentID)
	if err != nil {
		status, message := confirmationErrorStatus(err)
		if status == http.StatusInternalServerError {
			logger.Error(r.Context(), "Webhook processing failed", zap.String("client_id", req.ClientID), zap.Error(err))
		}
		writeError(w, status, message)
		return
	}

	writeJSON(w, http.StatusOK, domain.PaymentConfirmedResponse{
		Success:  true,
		ClientID: req.ClientID,
		Status:   result.Record.PaymentStatus,
	})
}

func confirmationErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "Client not found"
	case errors.Is(err, domain.ErrAlreadyConfirmed):
		return http.StatusConflict, "Payment already confirmed"
	case errors.Is(err, domain.ErrConcurrentUpdate):
		return http.StatusConflict, "Client is being updated, retry later"
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest, err.Error()
	default:
		return http.StatusInternalServerError, "Webhook processing failed"
	}
}
