package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ClareAI/astra-voice-tools/internal/calendarlink"
	"github.com/ClareAI/astra-voice-tools/internal/domain"
	"github.com/ClareAI/astra-voice-tools/pkg/logger"
	"go.uber.org/zap"
)

const defaultPropertyAddress = "Customer Property"

var errMissingSMSContent = errors.New(`Missing SMS parameters. Need either "body" or appointment details.`)

// ExecuteSendSMS sends a plain SMS or, when appointment details are present, a customer
// confirmation followed by an owner notification. A failed owner notification does not fail the call.
func (m *ToolManager) ExecuteSendSMS(ctx context.Context, params json.RawMessage) (string, error) {
	var p domain.SendSMSParams
	if err := decodeParams(params, &p); err != nil {
		return "", fmt.Errorf("Could not send SMS: %w", err)
	}
	if strings.TrimSpace(p.To) == "" {
		return "", &domain.ValidationError{Fields: []string{"to"}, Reason: `Missing SMS "to" parameter.`}
	}
	if m.deps.SMS == nil {
		return "", fmt.Errorf("Could not send SMS: %w",
			domain.NewCollaboratorError("sms", errors.New("SMS is not configured")))
	}

	appointment := p.IsAppointmentConfirmation()
	body := p.Body
	if appointment {
		body = m.customerConfirmation(p)
	} else if body == "" {
		return "", fmt.Errorf("Could not send SMS: %w", &domain.ValidationError{
			Fields: []string{"body"},
			Reason: errMissingSMSContent.Error(),
		})
	}

	customerSID, err := m.sendSMS(ctx, p.To, body)
	if err != nil {
		return "", fmt.Errorf("Could not send SMS: %w", domain.NewCollaboratorError("sms", err))
	}

	var ownerSID string
	if appointment {
		ownerSID = m.notifyOwner(ctx, p)
	}

	if p.CustomerName == "" {
		return "SMS sent successfully! SID: " + customerSID, nil
	}
	ownerStatus := " (Owner notification failed)"
	if ownerSID != "" {
		ownerStatus = " Owner notified: " + ownerSID
	}
	return fmt.Sprintf("Appointment SMS sent to %s! Customer SID: %s.%s", p.CustomerName, customerSID, ownerStatus), nil
}

func (m *ToolManager) sendSMS(ctx context.Context, to, body string) (string, error) {
	callCtx, cancel := m.withTimeout(ctx)
	defer cancel()
	return m.deps.SMS.Send(callCtx, to, body)
}

func (m *ToolManager) notifyOwner(ctx context.Context, p domain.SendSMSParams) string {
	if m.deps.Business.OwnerPhone == "" {
		logger.Warn(ctx, "Owner phone not configured, skipping owner notification")
		return ""
	}
	sid, err := m.sendSMS(ctx, m.deps.Business.OwnerPhone, m.ownerNotification(p))
	if err != nil {
		logger.Error(ctx, "Error sending owner notification SMS", zap.Error(err))
		return ""
	}
	return sid
}

func (m *ToolManager) customerConfirmation(p domain.SendSMSParams) string {
	business := m.deps.Business.Name
	link := m.deps.Links.BuildLink(calendarlink.Event{
		Title:       fmt.Sprintf("%s - %s", business, p.AppointmentType),
		Description: fmt.Sprintf("%s appointment with %s. Our professional will arrive 15 minutes early to survey your property.", p.AppointmentType, business),
		Location:    propertyAddress(p),
		StartDate:   p.SelectedDate,
		StartTime:   p.SelectedTime,
	})

	var b strings.Builder
	fmt.Fprintf(&b, "%s Confirmation!\n\n", business)
	fmt.Fprintf(&b, "Hi %s! Your %s is confirmed for %s at %s.\n\n", p.CustomerName, p.AppointmentType, p.SelectedDate, p.SelectedTime)
	b.WriteString("Our team arrives 15 min early to survey your property.\n\n")
	fmt.Fprintf(&b, "Add to Calendar: %s\n\n", link)
	b.WriteString("Questions? Call us anytime!\n")
	fmt.Fprintf(&b, "- %s at %s", m.deps.Business.AssistantName, business)
	return b.String()
}

func (m *ToolManager) ownerNotification(p domain.SendSMSParams) string {
	business := m.deps.Business.Name
	address := propertyAddress(p)
	link := m.deps.Links.BuildLink(calendarlink.Event{
		Title:       fmt.Sprintf("%s - %s", business, p.AppointmentType),
		Description: fmt.Sprintf("%s appointment with %s. Customer: %s. Address: %s", p.AppointmentType, business, p.CustomerName, address),
		Location:    address,
		StartDate:   p.SelectedDate,
		StartTime:   p.SelectedTime,
	})

	var b strings.Builder
	b.WriteString("New Appointment Scheduled!\n\n")
	fmt.Fprintf(&b, "Customer: %s\n", p.CustomerName)
	fmt.Fprintf(&b, "Service: %s\n", p.AppointmentType)
	fmt.Fprintf(&b, "Date: %s at %s\n", p.SelectedDate, p.SelectedTime)
	fmt.Fprintf(&b, "Address: %s\n\n", address)
	fmt.Fprintf(&b, "Add to Calendar: %s\n\n", link)
	fmt.Fprintf(&b, "- %s Scheduling System", business)
	return b.String()
}

func propertyAddress(p domain.SendSMSParams) string {
	if p.PropertyAddress == "" {
		return defaultPropertyAddress
	}
	return p.PropertyAddress
}
