package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// PaymentStatus is the payment state of an onboarding client
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
)

// WorkflowStatusFailed marks a client whose workflow provisioning raised an error
const WorkflowStatusFailed = "failed"

// OnboardingState is the lifecycle state derived from a ClientRecord
type OnboardingState string

const (
	StateCreated          OnboardingState = "created"
	StatePaymentPending   OnboardingState = "payment_pending"
	StatePaymentCompleted OnboardingState = "payment_completed"
	StateWorkflowActive   OnboardingState = "workflow_active"
	StateWorkflowFailed   OnboardingState = "workflow_failed"
)

// ClientRecord is one onboarding attempt for a prospective client
type ClientRecord struct {
	ClientID             string        `json:"clientId" gorm:"column:client_id;type:varchar(64);primaryKey"`
	ClientName           string        `json:"clientName" gorm:"column:client_name;type:varchar(255);not null"`
	ClientPhone          string        `json:"clientPhone" gorm:"column:client_phone;type:varchar(32);not null"`
	ClientEmail          string        `json:"clientEmail,omitempty" gorm:"column:client_email;type:varchar(255)"`
	BusinessName         string        `json:"businessName,omitempty" gorm:"column:business_name;type:varchar(255)"`
	BusinessType         string        `json:"businessType,omitempty" gorm:"column:business_type;type:varchar(255)"`
	Amount               Amount        `json:"amount" gorm:"column:amount;not null"`
	PaymentLink          string        `json:"paymentLink,omitempty" gorm:"column:payment_link;type:text"`
	PaymentStatus        PaymentStatus `json:"paymentStatus" gorm:"column:payment_status;type:varchar(16);not null;index"`
	PaymentIntentID      string        `json:"paymentIntentId,omitempty" gorm:"column:payment_intent_id;type:varchar(255)"`
	WorkflowID           string        `json:"workflowId,omitempty" gorm:"column:workflow_id;type:varchar(255)"`
	AssignedPhoneNumber  string        `json:"assignedPhoneNumber,omitempty" gorm:"column:assigned_phone_number;type:varchar(32)"`
	WorkflowStatus       string        `json:"workflowStatus,omitempty" gorm:"column:workflow_status;type:varchar(16)"`
	WorkflowError        string        `json:"workflowError,omitempty" gorm:"column:workflow_error;type:text"`
	CreatedAt            time.Time     `json:"createdAt" gorm:"column:created_at"`
	PaidAt               *time.Time    `json:"paidAt,omitempty" gorm:"column:paid_at"`
	ActivationNotifiedAt *time.Time    `json:"activationNotifiedAt,omitempty" gorm:"column:activation_notified_at"`
	UpdatedAt            time.Time     `json:"updatedAt" gorm:"column:updated_at"`
	Revision             int64         `json:"revision" gorm:"column:revision;not null;default:0"`
}

// TableName sets the table name for ClientRecord
func (ClientRecord) TableName() string {
	return "onboarding_clients"
}

// DisplayBusinessName returns the business name, defaulting to "<clientName>'s Business"
func (c *ClientRecord) DisplayBusinessName() string {
	return DefaultBusinessName(c.BusinessName, c.ClientName)
}

// State derives the onboarding state from the persisted fields
func (c *ClientRecord) State() OnboardingState {
	switch {
	case c.PaymentStatus == PaymentStatusPending:
		return StatePaymentPending
	case c.PaymentStatus != PaymentStatusCompleted:
		return StateCreated
	case c.WorkflowID != "":
		return StateWorkflowActive
	case c.WorkflowStatus == WorkflowStatusFailed:
		return StateWorkflowFailed
	default:
		return StatePaymentCompleted
	}
}

// ClientProfile is the caller-supplied part of a ClientRecord
type ClientProfile struct {
	ClientName   string `json:"clientName"`
	ClientPhone  string `json:"clientPhone"`
	ClientEmail  string `json:"clientEmail,omitempty"`
	BusinessName string `json:"businessName,omitempty"`
	BusinessType string `json:"businessType,omitempty"`
}

// CreatePaymentLinkRequest is the body of POST /create-payment-link
type CreatePaymentLinkRequest struct {
	ClientProfile
	Amount Amount `json:"amount"`
}

// CreatePaymentLinkResponse is the success body of POST /create-payment-link
type CreatePaymentLinkResponse struct {
	Success     bool   `json:"success"`
	ClientID    string `json:"clientId"`
	PaymentLink string `json:"paymentLink"`
	Message     string `json:"message"`
}

// PaymentConfirmedRequest is the body of POST /webhook/payment-confirmed
type PaymentConfirmedRequest struct {
	ClientID        string `json:"clientId"`
	PaymentIntentID string `json:"paymentIntentId"`
}

// PaymentConfirmedResponse is the success body of POST /webhook/payment-confirmed
type PaymentConfirmedResponse struct {
	Success  bool          `json:"success"`
	ClientID string        `json:"clientId"`
	Status   PaymentStatus `json:"status"`
}

// DefaultBusinessName falls back to "<clientName>'s Business" when businessName is empty
func DefaultBusinessName(businessName, clientName string) string {
	if strings.TrimSpace(businessName) != "" {
		return businessName
	}
	return clientName + "'s Business"
}

// Amount is a charge amount that accepts both JSON numbers and numeric strings
type Amount float64

// UnmarshalJSON implements json.Unmarshaler
func (a *Amount) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" || raw == "" {
		*a = 0
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		s = strings.TrimPrefix(strings.TrimSpace(s), "$")
		if s == "" {
			*a = 0
			return nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil || !Amount(v).IsFinite() {
			return fmt.Errorf("invalid amount %q", s)
		}
		*a = Amount(v)
		return nil
	}

	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("invalid amount %s", raw)
	}
	*a = Amount(f)
	return nil
}

// IsFinite reports whether the amount is neither NaN nor infinite
func (a Amount) IsFinite() bool {
	f := float64(a)
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// String formats the amount the way it appears in customer messages (no trailing zeros)
func (a Amount) String() string {
	return strconv.FormatFloat(float64(a), 'f', -1, 64)
}
