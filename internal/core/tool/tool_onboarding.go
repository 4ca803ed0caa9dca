package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ClareAI/astra-voice-tools/internal/domain"
	"github.com/ClareAI/astra-voice-tools/internal/services/onboarding"
)

var errOnboardingUnavailable = errors.New("onboarding is not configured")

// ExecuteCreatePaymentLink starts onboarding and reports the payment link in the sales register
func (m *ToolManager) ExecuteCreatePaymentLink(ctx context.Context, params json.RawMessage) (string, error) {
	var req domain.CreatePaymentLinkRequest
	if err := decodeParams(params, &req); err != nil {
		return "", fmt.Errorf("Could not create payment link: %w", err)
	}
	result, err := m.initiate(ctx, req)
	if err != nil {
		return "", fmt.Errorf("Could not create payment link: %w", err)
	}
	return fmt.Sprintf("Payment link created and sent to %s at %s. Client ID: %s. Amount: $%s",
		req.ClientName, req.ClientPhone, result.ClientID, req.Amount), nil
}

// ExecuteInitiateOnboarding starts onboarding for a new client
func (m *ToolManager) ExecuteInitiateOnboarding(ctx context.Context, params json.RawMessage) (string, error) {
	var req domain.CreatePaymentLinkRequest
	if err := decodeParams(params, &req); err != nil {
		return "", fmt.Errorf("Could not start onboarding: %w", err)
	}
	result, err := m.initiate(ctx, req)
	if err != nil {
		return "", fmt.Errorf("Could not start onboarding: %w", err)
	}
	return fmt.Sprintf("Onboarding started for %s. Client ID: %s. Payment link: %s",
		req.ClientName, result.ClientID, result.PaymentLink), nil
}

// ExecuteConfirmPayment confirms a client's payment and reports the workflow state
func (m *ToolManager) ExecuteConfirmPayment(ctx context.Context, params json.RawMessage) (string, error) {
	var p domain.ConfirmPaymentParams
	if err := decodeParams(params, &p); err != nil {
		return "", fmt.Errorf("Could not confirm payment: %w", err)
	}
	if strings.TrimSpace(p.ClientID) == "" {
		return "", fmt.Errorf("Could not confirm payment: %w", domain.NewValidationError("clientId"))
	}
	if m.deps.Onboarding == nil {
		return "", fmt.Errorf("Could not confirm payment: %w", errOnboardingUnavailable)
	}

	result, err := m.deps.Onboarding.ConfirmPayment(ctx, p.ClientID, p.PaymentIntentID)
	if err != nil {
		return "", fmt.Errorf("Could not confirm payment: %w", err)
	}
	return fmt.Sprintf("Payment confirmed for %s. Status: %s. Workflow: %s",
		p.ClientID, result.Record.PaymentStatus, result.State()), nil
}

func (m *ToolManager) initiate(ctx context.Context, req domain.CreatePaymentLinkRequest) (*onboarding.InitiationResult, error) {
	if m.deps.Onboarding == nil {
		return nil, errOnboardingUnavailable
	}
	return m.deps.Onboarding.Initiate(ctx, req.ClientProfile, req.Amount)
}
