package domain

import (
	"encoding/json"
)

// ToolKind is the closed set of tools the voice assistant may invoke
type ToolKind string

const (
	ToolScheduleAppointment ToolKind = "scheduleAppointment"
	ToolSendSMS             ToolKind = "sendSMS"
	ToolCreatePaymentLink   ToolKind = "createPaymentLink"
	ToolSummarizeClientCall ToolKind = "summarizeClientCall"
	ToolInitiateOnboarding  ToolKind = "initiateOnboarding"
	ToolConfirmPayment      ToolKind = "confirmPayment"
)

// AllToolKinds lists every ToolKind; the tool manager requires an executor for each
var AllToolKinds = []ToolKind{
	ToolScheduleAppointment,
	ToolSendSMS,
	ToolCreatePaymentLink,
	ToolSummarizeClientCall,
	ToolInitiateOnboarding,
	ToolConfirmPayment,
}

// ParseToolKind maps a function name to its ToolKind
func ParseToolKind(name string) (ToolKind, bool) {
	for _, kind := range AllToolKinds {
		if string(kind) == name {
			return kind, true
		}
	}
	return "", false
}

// ToolCallRequest is the inbound body of POST /tool-call
type ToolCallRequest struct {
	Message struct {
		FunctionCall FunctionCall `json:"functionCall"`
	} `json:"message"`
}

// FunctionCall names a tool and carries its raw parameters
type FunctionCall struct {
	ID         string          `json:"id,omitempty"`
	Name       string          `json:"name"`
	Parameters json.RawMessage `json:"parameters,omitempty"`
}

// ToolResult is one entry of the response envelope; ToolCallID is null on handler failure
type ToolResult struct {
	ToolCallID *string `json:"toolCallId"`
	Result     string  `json:"result"`
}

// ToolCallResponse is the response envelope of POST /tool-call
type ToolCallResponse struct {
	Results []ToolResult `json:"results"`
}

// ScheduleAppointmentParams are the parameters of scheduleAppointment
type ScheduleAppointmentParams struct {
	Summary     string `json:"summary"`
	Location    string `json:"location"`
	Description string `json:"description"`
	StartTime   string `json:"startTime"`
	EndTime     string `json:"endTime"`
}

// SendSMSParams are the parameters of sendSMS
type SendSMSParams struct {
	To              string `json:"to"`
	Body            string `json:"body"`
	CustomerName    string `json:"customerName"`
	AppointmentType string `json:"appointmentType"`
	SelectedDate    string `json:"selectedDate"`
	SelectedTime    string `json:"selectedTime"`
	PropertyAddress string `json:"propertyAddress"`
}

// IsAppointmentConfirmation reports whether all appointment fields are present
func (p SendSMSParams) IsAppointmentConfirmation() bool {
	return p.CustomerName != "" && p.AppointmentType != "" && p.SelectedDate != "" && p.SelectedTime != ""
}

// ConfirmPaymentParams are the parameters of confirmPayment
type ConfirmPaymentParams struct {
	ClientID        string `json:"clientId"`
	PaymentIntentID string `json:"paymentIntentId"`
}

// CalendarEvent is handed to the calendar collaborator and discarded
type CalendarEvent struct {
	Summary     string
	Location    string
	Description string
	StartTime   string
	EndTime     string
	TimeZone    string
}
