package tool

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ClareAI/astra-voice-tools/internal/domain"
)

const defaultAppointmentSummary = "New Appointment"

// ExecuteScheduleAppointment creates an event in the business calendar
func (m *ToolManager) ExecuteScheduleAppointment(ctx context.Context, params json.RawMessage) (string, error) {
	var p domain.ScheduleAppointmentParams
	if err := decodeParams(params, &p); err != nil {
		return "", fmt.Errorf("Could not schedule appointment: %w", err)
	}
	if m.deps.Calendar == nil {
		return "", fmt.Errorf("Could not schedule appointment: %w",
			domain.NewCollaboratorError("calendar", fmt.Errorf("calendar is not configured")))
	}

	summary := p.Summary
	if summary == "" {
		summary = defaultAppointmentSummary
	}
	event := domain.CalendarEvent{
		Summary:     summary,
		Location:    p.Location,
		Description: p.Description,
		StartTime:   p.StartTime,
		EndTime:     p.EndTime,
		TimeZone:    m.deps.TimeZone,
	}

	callCtx, cancel := m.withTimeout(ctx)
	defer cancel()
	link, err := m.deps.Calendar.InsertEvent(callCtx, event)
	if err != nil {
		return "", fmt.Errorf("Could not schedule appointment: %w", domain.NewCollaboratorError("calendar", err))
	}
	if link == "" {
		return "Appointment scheduled, but no event link available.", nil
	}
	return "Appointment scheduled successfully! See details: " + link, nil
}
