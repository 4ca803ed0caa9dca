package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/ClareAI/astra-voice-tools/internal/domain"
	"github.com/ClareAI/astra-voice-tools/pkg/logger"
	"github.com/gorilla/mux"
	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/webhook"
	"go.uber.org/zap"
)

const (
	maxStripePayload = 65536
	clientIDMetadata = "clientId"
)

// StripeWebhookHandler confirms payments reported by Stripe
type StripeWebhookHandler struct {
	onboarding OnboardingService
	secret     string
}

// NewStripeWebhookHandler creates a new Stripe webhook handler
func NewStripeWebhookHandler(svc OnboardingService, secret string) *StripeWebhookHandler {
	return &StripeWebhookHandler{onboarding: svc, secret: secret}
}

// SetupStripeRoutes registers the Stripe webhook route
func (h *StripeWebhookHandler) SetupStripeRoutes(router *mux.Router) {
	router.HandleFunc("/webhook/stripe", h.HandleEvent).Methods(http.MethodPost)
}

// HandleEvent verifies the Stripe signature and confirms the client named in the
// payment intent metadata. Events that cannot be acted on are acknowledged so Stripe stops retrying.
func (h *StripeWebhookHandler) HandleEvent(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxStripePayload))
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "failed to read body")
		return
	}

	event, err := webhook.ConstructEventWithOptions(payload, r.Header.Get("Stripe-Signature"), h.secret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		logger.Warn(r.Context(), "stripe signature verification failed", zap.Error(err))
		writeError(w, http.StatusBadRequest, "invalid signature")
		return
	}

	ctx := logger.WithFields(r.Context(), zap.String("stripe_event_id", event.ID), zap.String("stripe_event_type", string(event.Type)))
	if event.Type != stripe.EventTypePaymentIntentSucceeded {
		logger.Debug(ctx, "ignoring stripe event")
		writeJSON(w, http.StatusOK, map[string]bool{"received": true})
		return
	}

	var intent stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		logger.Warn(ctx, "malformed payment intent", zap.Error(err))
		writeError(w, http.StatusBadRequest, "malformed payment intent")
		return
	}

	clientID := intent.Metadata[clientIDMetadata]
	if clientID == "" {
		logger.Warn(ctx, "payment intent without clientId metadata", zap.String("payment_intent_id", intent.ID))
		writeJSON(w, http.StatusOK, map[string]bool{"received": true})
		return
	}

	result, err := h.onboarding.ConfirmPayment(ctx, clientID, intent.ID)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, domain.PaymentConfirmedResponse{
			Success:  true,
			ClientID: clientID,
			Status:   result.Record.PaymentStatus,
		})
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrAlreadyConfirmed):
		logger.Warn(ctx, "stripe payment not applied", zap.String("client_id", clientID), zap.Error(err))
		writeJSON(w, http.StatusOK, map[string]bool{"received": true})
	default:
		logger.Error(ctx, "stripe payment confirmation failed", zap.String("client_id", clientID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Webhook processing failed")
	}
}
