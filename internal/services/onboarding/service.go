package onboarding

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ClareAI/astra-voice-tools/internal/config"
	"github.com/ClareAI/astra-voice-tools/internal/core/outbox"
	"github.com/ClareAI/astra-voice-tools/internal/domain"
	"github.com/ClareAI/astra-voice-tools/internal/prompts"
	"github.com/ClareAI/astra-voice-tools/internal/repository"
	"github.com/ClareAI/astra-voice-tools/pkg/logger"
	"github.com/ClareAI/astra-voice-tools/pkg/pubsub"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Lifecycle event types
const (
	EventOnboardingInitiated = "onboarding.initiated"
	EventPaymentConfirmed    = "payment.confirmed"
	EventWorkflowActivated   = "workflow.activated"
	EventWorkflowFailed      = "workflow.failed"
	EventNotificationFailed  = "notification.failed"
)

// Collaborator names used in CollaboratorError
const (
	CollaboratorSMS          = "sms"
	CollaboratorProvisioning = "provisioning"
	CollaboratorPhoneNumber  = "phone_number"
)

// MaxSequentialCalls is the longest chain of collaborator calls one ConfirmPayment makes:
// event, archive, workflow, phone number, event, activation SMS, failure event.
// Each call is bounded by the collaborator timeout.
const MaxSequentialCalls = 7

// errNoChange aborts a repository update without writing
var errNoChange = errors.New("no change")

// Notifier sends a text message and returns the provider message id
type Notifier interface {
	Send(ctx context.Context, to, body string) (string, error)
}

// WorkflowProvisioner creates the client's call-flow workflow
type WorkflowProvisioner interface {
	CreateWorkflow(ctx context.Context, spec *prompts.WorkflowSpec) (string, error)
}

// PhoneNumberAssigner attaches a phone number to a provisioned workflow
type PhoneNumberAssigner interface {
	AssignPhoneNumber(ctx context.Context, workflowID, businessName string) (string, error)
}

// WorkflowArchiver keeps a copy of each submitted workflow spec
type WorkflowArchiver interface {
	ArchiveWorkflow(ctx context.Context, clientID string, spec interface{}) (string, error)
}

// NotificationQueue stores notifications whose delivery failed
type NotificationQueue interface {
	Enqueue(ctx context.Context, entry outbox.Entry) (outbox.Entry, error)
}

// EventPublisher publishes lifecycle events
type EventPublisher interface {
	Publish(ctx context.Context, event pubsub.Event) error
}

// Config controls onboarding behavior
type Config struct {
	PaymentLinkBaseURL  string
	ReconfirmPolicy     string
	CollaboratorTimeout time.Duration
}

// Dependencies are the collaborators of the onboarding service.
// Archive, Events and Outbox are optional.
type Dependencies struct {
	Clients      repository.ClientRepository
	Notifier     Notifier
	Provisioner  WorkflowProvisioner
	PhoneNumbers PhoneNumberAssigner
	Workflows    *prompts.WorkflowBuilder
	Archive      WorkflowArchiver
	Events       EventPublisher
	Outbox       NotificationQueue
}

// InitiationResult is the outcome of Initiate
type InitiationResult struct {
	ClientID    string
	PaymentLink string
	Record      *domain.ClientRecord
	// NoticeSID is the message id of the payment-link SMS when it was delivered
	NoticeSID string
	// NoticeError is set when the payment-link SMS failed; the record is still created
	NoticeError error
	// NoticeQueued reports whether the failed SMS was queued for redelivery
	NoticeQueued bool
}

// ConfirmationResult is the outcome of ConfirmPayment
type ConfirmationResult struct {
	Record *domain.ClientRecord
	// AlreadyConfirmed is true when the payment had been completed before this call
	AlreadyConfirmed bool
	// ProvisioningAttempted is false when the reconfirmation policy skipped provisioning
	ProvisioningAttempted bool
	ProvisioningError     error
	NoticeSID             string
	NoticeError           error
	NoticeQueued          bool
}

// State returns the derived lifecycle state of the confirmed record
func (r *ConfirmationResult) State() domain.OnboardingState {
	if r == nil || r.Record == nil {
		return ""
	}
	return r.Record.State()
}

// Service runs the client onboarding lifecycle: payment requested, payment confirmed,
// workflow provisioned, client notified.
type Service struct {
	clients      repository.ClientRepository
	notifier     Notifier
	provisioner  WorkflowProvisioner
	phoneNumbers PhoneNumberAssigner
	workflows    *prompts.WorkflowBuilder
	archive      WorkflowArchiver
	events       EventPublisher
	outbox       NotificationQueue

	paymentLinkBaseURL string
	reconfirmPolicy    string
	timeout            time.Duration

	now   func() time.Time
	newID func() string
}

// NewService creates the onboarding service
func NewService(cfg Config, deps Dependencies) (*Service, error) {
	if deps.Clients == nil || deps.Notifier == nil || deps.Provisioner == nil || deps.PhoneNumbers == nil || deps.Workflows == nil {
		return nil, fmt.Errorf("onboarding service requires clients, notifier, provisioner, phone numbers and workflow builder")
	}

	policy := cfg.ReconfirmPolicy
	switch policy {
	case "":
		policy = config.ReconfirmRetryUnprovisioned
	case config.ReconfirmRerun, config.ReconfirmRetryUnprovisioned, config.ReconfirmReject:
	default:
		return nil, fmt.Errorf("unknown reconfirm policy %q", policy)
	}

	timeout := cfg.CollaboratorTimeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}

	baseURL := strings.TrimRight(cfg.PaymentLinkBaseURL, "/")
	if baseURL == "" {
		baseURL = "https://checkout.stripe.com/pay"
	}

	return &Service{
		clients:            deps.Clients,
		notifier:           deps.Notifier,
		provisioner:        deps.Provisioner,
		phoneNumbers:       deps.PhoneNumbers,
		workflows:          deps.Workflows,
		archive:            deps.Archive,
		events:             deps.Events,
		outbox:             deps.Outbox,
		paymentLinkBaseURL: baseURL,
		reconfirmPolicy:    policy,
		timeout:            timeout,
		now:                func() time.Time { return time.Now().UTC() },
		newID:              func() string { return "client_" + uuid.New().String() },
	}, nil
}

// ReconfirmPolicy returns the active reconfirmation policy
func (s *Service) ReconfirmPolicy() string {
	return s.reconfirmPolicy
}

// Initiate validates the profile, creates a pending client record and texts the payment link.
// A failed SMS does not fail the call.
func (s *Service) Initiate(ctx context.Context, profile domain.ClientProfile, amount domain.Amount) (*InitiationResult, error) {
	if err := validateInitiation(profile, amount); err != nil {
		return nil, err
	}

	clientID := s.newID()
	ctx = logger.WithFields(ctx, zap.String("client_id", clientID))

	record := &domain.ClientRecord{
		ClientID:      clientID,
		ClientName:    strings.TrimSpace(profile.ClientName),
		ClientPhone:   strings.TrimSpace(profile.ClientPhone),
		ClientEmail:   profile.ClientEmail,
		BusinessName:  profile.BusinessName,
		BusinessType:  profile.BusinessType,
		Amount:        amount,
		PaymentStatus: domain.PaymentStatusPending,
		PaymentLink:   s.paymentLink(clientID),
		CreatedAt:     s.now(),
	}
	if err := s.clients.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to create client record: %w", err)
	}
	logger.Info(ctx, "Client onboarding initiated", zap.String("amount", record.Amount.String()))

	s.publish(ctx, EventOnboardingInitiated, clientID, map[string]string{"amount": record.Amount.String()})

	result := &InitiationResult{
		ClientID:    clientID,
		PaymentLink: record.PaymentLink,
		Record:      record,
	}

	sid, err := s.send(ctx, record.ClientPhone, paymentLinkMessage(record))
	if err != nil {
		result.NoticeError = err
		result.NoticeQueued = s.queueNotification(ctx, outbox.KindPaymentLink, record, paymentLinkMessage(record), err)
		return result, nil
	}
	result.NoticeSID = sid
	logger.Info(ctx, "Payment link SMS sent", zap.String("sid", sid))
	return result, nil
}

// ConfirmPayment marks the client paid and provisions the workflow.
// Payment completion is persisted before provisioning starts and is never rolled back;
// provisioning and notification outcomes are reported in the result, not as errors.
func (s *Service) ConfirmPayment(ctx context.Context, clientID, paymentIntentID string) (*ConfirmationResult, error) {
	if strings.TrimSpace(clientID) == "" {
		return nil, domain.NewValidationError("clientId")
	}
	ctx = logger.WithFields(ctx, zap.String("client_id", clientID))

	var current *domain.ClientRecord
	alreadyCompleted := false
	updated, err := s.clients.Update(ctx, clientID, func(r *domain.ClientRecord) error {
		current = r
		if r.PaymentStatus == domain.PaymentStatusCompleted {
			alreadyCompleted = true
			return errNoChange
		}
		now := s.now()
		r.PaymentStatus = domain.PaymentStatusCompleted
		r.PaidAt = &now
		r.PaymentIntentID = paymentIntentID
		return nil
	})
	switch {
	case errors.Is(err, errNoChange):
		updated = current
	case err != nil:
		return nil, fmt.Errorf("failed to record payment: %w", err)
	}

	result := &ConfirmationResult{Record: updated, AlreadyConfirmed: alreadyCompleted}

	if alreadyCompleted {
		switch s.reconfirmPolicy {
		case config.ReconfirmReject:
			return nil, fmt.Errorf("client %s: %w", clientID, domain.ErrAlreadyConfirmed)
		case config.ReconfirmRetryUnprovisioned:
			if updated.WorkflowID != "" {
				logger.Info(ctx, "Payment already confirmed and workflow active, nothing to do", zap.String("workflow_id", updated.WorkflowID))
				return result, nil
			}
		}
		logger.Info(ctx, "Payment already confirmed, re-running provisioning", zap.String("policy", s.reconfirmPolicy))
	} else {
		logger.Info(ctx, "Payment confirmed", zap.String("payment_intent_id", paymentIntentID))
		s.publish(ctx, EventPaymentConfirmed, clientID, map[string]string{"payment_intent_id": paymentIntentID})
	}

	result.ProvisioningAttempted = true
	if err := s.provision(ctx, result); err != nil {
		return nil, err
	}
	return result, nil
}

// Get returns the client record
func (s *Service) Get(ctx context.Context, clientID string) (*domain.ClientRecord, error) {
	if strings.TrimSpace(clientID) == "" {
		return nil, domain.NewValidationError("clientId")
	}
	return s.clients.Get(ctx, clientID)
}

// MarkActivationNotified records delivery of the activation SMS; used by the outbox after redelivery
func (s *Service) MarkActivationNotified(ctx context.Context, clientID string) error {
	_, err := s.clients.Update(ctx, clientID, func(r *domain.ClientRecord) error {
		if r.ActivationNotifiedAt != nil {
			return errNoChange
		}
		now := s.now()
		r.ActivationNotifiedAt = &now
		return nil
	})
	if errors.Is(err, errNoChange) {
		return nil
	}
	return err
}

// HandleRedelivered is an outbox hook that stamps the activation notice time
func (s *Service) HandleRedelivered(ctx context.Context, entry outbox.Entry, messageID string) {
	if entry.Kind != outbox.KindActivation {
		return
	}
	if err := s.MarkActivationNotified(ctx, entry.ClientID); err != nil {
		logger.Warn(ctx, "Failed to record activation notice", zap.String("client_id", entry.ClientID), zap.Error(err))
	}
}

func (s *Service) provision(ctx context.Context, result *ConfirmationResult) error {
	record := result.Record

	workflowID, phoneNumber, provErr := s.createWorkflow(ctx, record)
	if provErr != nil {
		logger.Error(ctx, "Workflow provisioning failed", zap.Error(provErr))
		// A failed rerun drops the previous workflow so the record reads as workflow_failed
		updated, err := s.clients.Update(ctx, record.ClientID, func(r *domain.ClientRecord) error {
			r.WorkflowID = ""
			r.AssignedPhoneNumber = ""
			r.WorkflowStatus = domain.WorkflowStatusFailed
			r.WorkflowError = provErr.Error()
			return nil
		})
		if err != nil {
			return fmt.Errorf("failed to record provisioning failure: %w", err)
		}
		result.Record = updated
		result.ProvisioningError = provErr
		s.publish(ctx, EventWorkflowFailed, record.ClientID, map[string]string{"error": provErr.Error()})
		return nil
	}

	updated, err := s.clients.Update(ctx, record.ClientID, func(r *domain.ClientRecord) error {
		r.WorkflowID = workflowID
		r.AssignedPhoneNumber = phoneNumber
		r.WorkflowStatus = ""
		r.WorkflowError = ""
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to record provisioned workflow %s: %w", workflowID, err)
	}
	result.Record = updated
	logger.Info(ctx, "Client workflow activated", zap.String("workflow_id", workflowID), zap.String("phone_number", phoneNumber))
	s.publish(ctx, EventWorkflowActivated, record.ClientID, map[string]string{
		"workflow_id":  workflowID,
		"phone_number": phoneNumber,
	})

	body := activationMessage(updated)
	sid, err := s.send(ctx, updated.ClientPhone, body)
	if err != nil {
		result.NoticeError = err
		result.NoticeQueued = s.queueNotification(ctx, outbox.KindActivation, updated, body, err)
		return nil
	}
	result.NoticeSID = sid
	logger.Info(ctx, "Activation SMS sent", zap.String("sid", sid))

	if err := s.MarkActivationNotified(ctx, updated.ClientID); err != nil {
		logger.Warn(ctx, "Failed to record activation notice", zap.Error(err))
		return nil
	}
	if refreshed, err := s.clients.Get(ctx, updated.ClientID); err == nil {
		result.Record = refreshed
	}
	return nil
}

// createWorkflow builds, archives and submits the workflow spec, then assigns a number
func (s *Service) createWorkflow(ctx context.Context, record *domain.ClientRecord) (string, string, error) {
	businessName := record.DisplayBusinessName()
	spec, err := s.workflows.Build(businessName)
	if err != nil {
		return "", "", err
	}

	if s.archive != nil {
		actx, cancel := context.WithTimeout(ctx, s.timeout)
		if _, err := s.archive.ArchiveWorkflow(actx, record.ClientID, spec); err != nil {
			logger.Warn(ctx, "Failed to archive workflow spec", zap.Error(err))
		}
		cancel()
	}

	wctx, cancel := context.WithTimeout(ctx, s.timeout)
	workflowID, err := s.provisioner.CreateWorkflow(wctx, spec)
	cancel()
	if err != nil {
		return "", "", domain.NewCollaboratorError(CollaboratorProvisioning, err)
	}

	pctx, cancel := context.WithTimeout(ctx, s.timeout)
	phoneNumber, err := s.phoneNumbers.AssignPhoneNumber(pctx, workflowID, businessName)
	cancel()
	if err != nil {
		return "", "", domain.NewCollaboratorError(CollaboratorPhoneNumber, err)
	}
	return workflowID, phoneNumber, nil
}

func (s *Service) send(ctx context.Context, to, body string) (string, error) {
	sctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	sid, err := s.notifier.Send(sctx, to, body)
	if err != nil {
		return "", domain.NewCollaboratorError(CollaboratorSMS, err)
	}
	return sid, nil
}

// queueNotification logs the failure, queues the message and publishes notification.failed.
// It reports whether the message was queued.
func (s *Service) queueNotification(ctx context.Context, kind outbox.Kind, record *domain.ClientRecord, body string, sendErr error) bool {
	logger.Error(ctx, "Notification failed", zap.String("kind", string(kind)), zap.Error(sendErr))
	s.publish(ctx, EventNotificationFailed, record.ClientID, map[string]string{
		"kind":  string(kind),
		"error": sendErr.Error(),
	})

	if s.outbox == nil {
		return false
	}
	entry, err := s.outbox.Enqueue(ctx, outbox.Entry{
		Kind:      kind,
		ClientID:  record.ClientID,
		To:        record.ClientPhone,
		Body:      body,
		Attempts:  1,
		LastError: sendErr.Error(),
	})
	if err != nil {
		logger.Error(ctx, "Failed to queue notification", zap.String("kind", string(kind)), zap.Error(err))
		return false
	}
	logger.Info(ctx, "Notification queued", zap.String("outbox_id", entry.ID))
	return true
}

func (s *Service) publish(ctx context.Context, eventType, clientID string, attributes map[string]string) {
	if s.events == nil {
		return
	}
	pctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	err := s.events.Publish(pctx, pubsub.Event{
		ID:         uuid.New().String(),
		Type:       eventType,
		ClientID:   clientID,
		OccurredAt: s.now(),
		Attributes: attributes,
	})
	if err != nil {
		logger.Warn(ctx, "Failed to publish lifecycle event", zap.String("type", eventType), zap.Error(err))
	}
}

func (s *Service) paymentLink(clientID string) string {
	return fmt.Sprintf("%s/mock-%s", s.paymentLinkBaseURL, clientID)
}

func validateInitiation(profile domain.ClientProfile, amount domain.Amount) error {
	var missing []string
	if strings.TrimSpace(profile.ClientName) == "" {
		missing = append(missing, "clientName")
	}
	if strings.TrimSpace(profile.ClientPhone) == "" {
		missing = append(missing, "clientPhone")
	}
	if amount == 0 {
		missing = append(missing, "amount")
	}
	if len(missing) > 0 {
		return domain.NewValidationError(missing...)
	}
	if !amount.IsFinite() {
		return &domain.ValidationError{Fields: []string{"amount"}, Reason: "Amount must be a finite number"}
	}
	if amount < 0 {
		return &domain.ValidationError{Fields: []string{"amount"}, Reason: "Amount must be greater than zero"}
	}
	return nil
}
