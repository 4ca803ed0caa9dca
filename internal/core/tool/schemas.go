package tool

func stringProp(description string) map[string]interface{} {
	return map[string]interface{}{"type": "string", "description": description}
}

// ScheduleAppointmentSchema defines the parameters of scheduleAppointment
var ScheduleAppointmentSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"summary":     stringProp("Event title"),
		"location":    stringProp("Event location"),
		"description": stringProp("Event details"),
		"startTime":   stringProp("Start as an RFC 3339 date-time"),
		"endTime":     stringProp("End as an RFC 3339 date-time"),
	},
	"required": []string{"startTime", "endTime"},
}

// SendSMSSchema defines the parameters of sendSMS
var SendSMSSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"to":              stringProp("Recipient phone number in E.164 format"),
		"body":            stringProp("Message text for a plain SMS"),
		"customerName":    stringProp("Customer name for an appointment confirmation"),
		"appointmentType": stringProp("Service booked"),
		"selectedDate":    stringProp("Appointment date as spoken, e.g. June 5th 2025"),
		"selectedTime":    stringProp("Appointment time as spoken, e.g. 2:30 PM"),
		"propertyAddress": stringProp("Service address"),
	},
	"required": []string{"to"},
}

// CreatePaymentLinkSchema defines the parameters of createPaymentLink and initiateOnboarding
var CreatePaymentLinkSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"clientName":   stringProp("Client full name"),
		"clientPhone":  stringProp("Client mobile number in E.164 format"),
		"clientEmail":  stringProp("Client email"),
		"amount":       map[string]interface{}{"type": "number", "description": "Amount to charge in USD"},
		"businessName": stringProp("Client business name"),
		"businessType": stringProp("Client business type"),
	},
	"required": []string{"clientName", "clientPhone", "amount"},
}

// SummarizeClientCallSchema defines the parameters of summarizeClientCall
var SummarizeClientCallSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"clientName":   stringProp("Client name"),
		"businessName": stringProp("Client business name"),
		"businessType": stringProp("Client business type"),
		"services": map[string]interface{}{
			"type":  "array",
			"items": map[string]interface{}{"type": "string"},
		},
		"budget":   stringProp("Budget mentioned by the client"),
		"timeline": stringProp("Desired timeline"),
		"notes":    stringProp("Anything else worth remembering"),
	},
}

// ConfirmPaymentSchema defines the parameters of confirmPayment
var ConfirmPaymentSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"clientId":        stringProp("Client id returned when the payment link was created"),
		"paymentIntentId": stringProp("Payment reference"),
	},
	"required": []string{"clientId"},
}
