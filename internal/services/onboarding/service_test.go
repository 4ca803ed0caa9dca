package onboarding

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ClareAI/astra-voice-tools/internal/config"
	"github.com/ClareAI/astra-voice-tools/internal/core/outbox"
	"github.com/ClareAI/astra-voice-tools/internal/domain"
	"github.com/ClareAI/astra-voice-tools/internal/prompts"
	"github.com/ClareAI/astra-voice-tools/internal/repository"
	"github.com/ClareAI/astra-voice-tools/pkg/pubsub"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeNotifier struct {
	mu     sync.Mutex
	sent   []string
	failOn func(body string) error
}

func (f *fakeNotifier) Send(ctx context.Context, to, body string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failOn != nil {
		if err := f.failOn(body); err != nil {
			return "", err
		}
	}
	f.sent = append(f.sent, body)
	return fmt.Sprintf("SM%d", len(f.sent)), nil
}

func (f *fakeNotifier) bodies() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

type fakeProvisioner struct {
	mu    sync.Mutex
	calls int
	err   error
	block bool
}

func (f *fakeProvisioner) CreateWorkflow(ctx context.Context, spec *prompts.WorkflowSpec) (string, error) {
	f.mu.Lock()
	f.calls++
	n, err, block := f.calls, f.err, f.block
	f.mu.Unlock()

	if block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("wf_%d", n), nil
}

func (f *fakeProvisioner) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakePhones struct{}

func (fakePhones) AssignPhoneNumber(ctx context.Context, workflowID, businessName string) (string, error) {
	return "+18551234567", nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []pubsub.Event
}

func (p *recordingPublisher) Publish(ctx context.Context, event pubsub.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type harness struct {
	svc         *Service
	clients     *repository.MemoryClientRepository
	notifier    *fakeNotifier
	provisioner *fakeProvisioner
	events      *recordingPublisher
	outbox      *outbox.Outbox
}

func newHarness(t *testing.T, policy string) *harness {
	t.Helper()
	h := &harness{
		clients:     repository.NewMemoryClientRepository(),
		notifier:    &fakeNotifier{},
		provisioner: &fakeProvisioner{},
		events:      &recordingPublisher{},
	}
	h.outbox = outbox.New(outbox.NewMemoryStore(), h.notifier, 3, time.Second)

	svc, err := NewService(Config{
		PaymentLinkBaseURL:  "https://pay.example.com/",
		ReconfirmPolicy:     policy,
		CollaboratorTimeout: time.Second,
	}, Dependencies{
		Clients:      h.clients,
		Notifier:     h.notifier,
		Provisioner:  h.provisioner,
		PhoneNumbers: fakePhones{},
		Workflows:    prompts.NewWorkflowBuilder("tool-1", ""),
		Events:       h.events,
		Outbox:       h.outbox,
	})
	require.NoError(t, err)
	h.outbox.OnDelivered(svc.HandleRedelivered)
	h.svc = svc
	return h
}

func (h *harness) initiate(t *testing.T) string {
	t.Helper()
	res, err := h.svc.Initiate(context.Background(), domain.ClientProfile{
		ClientName:   "Dana",
		ClientPhone:  "+15550100",
		BusinessName: "Glow Co",
	}, 299)
	require.NoError(t, err)
	return res.ClientID
}

func TestNewServiceRejectsUnknownPolicy(t *testing.T) {
	_, err := NewService(Config{ReconfirmPolicy: "sometimes"}, Dependencies{
		Clients:      repository.NewMemoryClientRepository(),
		Notifier:     &fakeNotifier{},
		Provisioner:  &fakeProvisioner{},
		PhoneNumbers: fakePhones{},
		Workflows:    prompts.NewWorkflowBuilder("", ""),
	})
	assert.Error(t, err)
}

func TestNewServiceDefaultsToRetryUnprovisioned(t *testing.T) {
	h := newHarness(t, "")
	assert.Equal(t, config.ReconfirmRetryUnprovisioned, h.svc.ReconfirmPolicy())
}

func TestInitiateValidation(t *testing.T) {
	h := newHarness(t, "")

	_, err := h.svc.Initiate(context.Background(), domain.ClientProfile{}, 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Equal(t, "Missing required fields: clientName, clientPhone, amount", err.Error())

	_, err = h.svc.Initiate(context.Background(), domain.ClientProfile{ClientName: "Dana"}, 10)
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"clientPhone"}, verr.Fields)

	_, err = h.svc.Initiate(context.Background(), domain.ClientProfile{ClientName: "Dana", ClientPhone: "+1"}, -5)
	assert.ErrorIs(t, err, domain.ErrValidation)

	for _, amount := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		_, err = h.svc.Initiate(context.Background(), domain.ClientProfile{ClientName: "Dana", ClientPhone: "+1"}, domain.Amount(amount))
		assert.ErrorIs(t, err, domain.ErrValidation, "amount %v", amount)
	}

	assert.Zero(t, h.clients.Len())
	assert.Empty(t, h.notifier.bodies())
}

func TestInitiateCreatesPendingRecordAndSendsLink(t *testing.T) {
	h := newHarness(t, "")

	res, err := h.svc.Initiate(context.Background(), domain.ClientProfile{
		ClientName:   "Dana",
		ClientPhone:  "+15550100",
		BusinessName: "Glow Co",
	}, 299)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(res.ClientID, "client_"))
	assert.Equal(t, "https://pay.example.com/mock-"+res.ClientID, res.PaymentLink)
	assert.Equal(t, "SM1", res.NoticeSID)
	assert.NoError(t, res.NoticeError)

	record, err := h.svc.Get(context.Background(), res.ClientID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusPending, record.PaymentStatus)
	assert.Equal(t, domain.StatePaymentPending, record.State())
	assert.Equal(t, res.PaymentLink, record.PaymentLink)
	assert.Nil(t, record.PaidAt)

	bodies := h.notifier.bodies()
	require.Len(t, bodies, 1)
	assert.Contains(t, bodies[0], "Hi Dana!")
	assert.Contains(t, bodies[0], "Your payment link: "+res.PaymentLink)
	assert.Contains(t, bodies[0], "Amount: $299")
	assert.Contains(t, bodies[0], "Business: Glow Co")

	assert.Equal(t, []string{EventOnboardingInitiated}, h.events.types())
}

func TestInitiateNotificationFailureDoesNotFail(t *testing.T) {
	h := newHarness(t, "")
	h.notifier.failOn = func(string) error { return errors.New("carrier down") }

	res, err := h.svc.Initiate(context.Background(), domain.ClientProfile{ClientName: "Dana", ClientPhone: "+15550100"}, 50)
	require.NoError(t, err)

	assert.ErrorIs(t, res.NoticeError, domain.ErrCollaborator)
	assert.Equal(t, "carrier down", res.NoticeError.Error())
	assert.True(t, res.NoticeQueued)

	record, err := h.svc.Get(context.Background(), res.ClientID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusPending, record.PaymentStatus)

	pending, err := h.outbox.Pending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), pending)
	assert.Equal(t, []string{EventOnboardingInitiated, EventNotificationFailed}, h.events.types())
}

func TestInitiateGeneratesUniqueIDs(t *testing.T) {
	h := newHarness(t, "")
	h.svc.events = nil

	seen := make(map[string]struct{}, 10000)
	for i := 0; i < 10000; i++ {
		res, err := h.svc.Initiate(context.Background(), domain.ClientProfile{ClientName: "Dana", ClientPhone: "+15550100"}, 1)
		require.NoError(t, err)
		_, dup := seen[res.ClientID]
		require.False(t, dup, "duplicate client id %s", res.ClientID)
		seen[res.ClientID] = struct{}{}
	}
	assert.Equal(t, 10000, h.clients.Len())
}

func TestConfirmPaymentValidationAndNotFound(t *testing.T) {
	h := newHarness(t, "")

	_, err := h.svc.ConfirmPayment(context.Background(), "", "pi_1")
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = h.svc.ConfirmPayment(context.Background(), "client_missing", "pi_1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestConfirmPaymentProvisionsAndNotifies(t *testing.T) {
	h := newHarness(t, "")
	clientID := h.initiate(t)

	res, err := h.svc.ConfirmPayment(context.Background(), clientID, "pi_1")
	require.NoError(t, err)

	assert.False(t, res.AlreadyConfirmed)
	assert.True(t, res.ProvisioningAttempted)
	assert.NoError(t, res.ProvisioningError)
	assert.NoError(t, res.NoticeError)
	assert.Equal(t, domain.StateWorkflowActive, res.State())

	record := res.Record
	assert.Equal(t, domain.PaymentStatusCompleted, record.PaymentStatus)
	assert.Equal(t, "pi_1", record.PaymentIntentID)
	require.NotNil(t, record.PaidAt)
	assert.Equal(t, "wf_1", record.WorkflowID)
	assert.Equal(t, "+18551234567", record.AssignedPhoneNumber)
	assert.NotNil(t, record.ActivationNotifiedAt)
	assert.Empty(t, record.WorkflowStatus)

	bodies := h.notifier.bodies()
	require.Len(t, bodies, 2)
	assert.Contains(t, bodies[1], "Your AI assistant is now LIVE!")
	assert.Contains(t, bodies[1], "Business: Glow Co")
	assert.Contains(t, bodies[1], "Your AI Phone: +18551234567")

	assert.Equal(t, []string{EventOnboardingInitiated, EventPaymentConfirmed, EventWorkflowActivated}, h.events.types())
}

func TestConfirmPaymentProvisioningFailureKeepsPayment(t *testing.T) {
	h := newHarness(t, "")
	clientID := h.initiate(t)
	h.provisioner.err = errors.New("Workflow creation failed: Unauthorized")

	res, err := h.svc.ConfirmPayment(context.Background(), clientID, "pi_1")
	require.NoError(t, err)

	assert.ErrorIs(t, res.ProvisioningError, domain.ErrCollaborator)
	assert.Equal(t, domain.StateWorkflowFailed, res.State())

	record, err := h.svc.Get(context.Background(), clientID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusCompleted, record.PaymentStatus)
	assert.Equal(t, domain.WorkflowStatusFailed, record.WorkflowStatus)
	assert.Equal(t, "Workflow creation failed: Unauthorized", record.WorkflowError)
	assert.Empty(t, record.WorkflowID)
	assert.Empty(t, record.AssignedPhoneNumber)
	assert.NotNil(t, record.PaidAt)

	assert.Len(t, h.notifier.bodies(), 1, "no activation SMS after a failed provisioning")
	assert.Contains(t, h.events.types(), EventWorkflowFailed)
}

func TestConfirmPaymentProvisioningTimeout(t *testing.T) {
	h := newHarness(t, "")
	h.svc.timeout = 20 * time.Millisecond
	clientID := h.initiate(t)
	h.provisioner.block = true

	res, err := h.svc.ConfirmPayment(context.Background(), clientID, "pi_1")
	require.NoError(t, err)
	assert.ErrorIs(t, res.ProvisioningError, context.DeadlineExceeded)
	assert.Equal(t, domain.PaymentStatusCompleted, res.Record.PaymentStatus)
	assert.Equal(t, domain.WorkflowStatusFailed, res.Record.WorkflowStatus)
}

func TestReconfirmRetryUnprovisioned(t *testing.T) {
	h := newHarness(t, config.ReconfirmRetryUnprovisioned)
	clientID := h.initiate(t)

	first, err := h.svc.ConfirmPayment(context.Background(), clientID, "pi_1")
	require.NoError(t, err)
	paidAt := *first.Record.PaidAt

	second, err := h.svc.ConfirmPayment(context.Background(), clientID, "pi_2")
	require.NoError(t, err)
	assert.True(t, second.AlreadyConfirmed)
	assert.False(t, second.ProvisioningAttempted)
	assert.Equal(t, 1, h.provisioner.callCount())

	record, err := h.svc.Get(context.Background(), clientID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusCompleted, record.PaymentStatus)
	assert.Equal(t, "pi_1", record.PaymentIntentID)
	assert.True(t, paidAt.Equal(*record.PaidAt))
}

func TestReconfirmRetryUnprovisionedRecoversFailedWorkflow(t *testing.T) {
	h := newHarness(t, config.ReconfirmRetryUnprovisioned)
	clientID := h.initiate(t)

	h.provisioner.err = errors.New("boom")
	_, err := h.svc.ConfirmPayment(context.Background(), clientID, "pi_1")
	require.NoError(t, err)

	h.provisioner.err = nil
	res, err := h.svc.ConfirmPayment(context.Background(), clientID, "pi_1")
	require.NoError(t, err)
	assert.True(t, res.AlreadyConfirmed)
	assert.True(t, res.ProvisioningAttempted)
	assert.Equal(t, domain.StateWorkflowActive, res.State())
	assert.Empty(t, res.Record.WorkflowStatus)
	assert.Empty(t, res.Record.WorkflowError)
}

func TestReconfirmRerun(t *testing.T) {
	h := newHarness(t, config.ReconfirmRerun)
	clientID := h.initiate(t)

	_, err := h.svc.ConfirmPayment(context.Background(), clientID, "pi_1")
	require.NoError(t, err)
	res, err := h.svc.ConfirmPayment(context.Background(), clientID, "pi_1")
	require.NoError(t, err)

	assert.True(t, res.AlreadyConfirmed)
	assert.Equal(t, 2, h.provisioner.callCount())
	assert.Equal(t, "wf_2", res.Record.WorkflowID)
	assert.Equal(t, domain.PaymentStatusCompleted, res.Record.PaymentStatus)
}

func TestReconfirmRerunFailureClearsPreviousWorkflow(t *testing.T) {
	h := newHarness(t, config.ReconfirmRerun)
	clientID := h.initiate(t)

	first, err := h.svc.ConfirmPayment(context.Background(), clientID, "pi_1")
	require.NoError(t, err)
	require.Equal(t, domain.StateWorkflowActive, first.State())

	h.provisioner.mu.Lock()
	h.provisioner.err = errors.New("platform unavailable")
	h.provisioner.mu.Unlock()

	res, err := h.svc.ConfirmPayment(context.Background(), clientID, "pi_1")
	require.NoError(t, err)
	require.Error(t, res.ProvisioningError)

	record, err := h.svc.Get(context.Background(), clientID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateWorkflowFailed, record.State())
	assert.Empty(t, record.WorkflowID)
	assert.Empty(t, record.AssignedPhoneNumber)
	assert.Equal(t, "platform unavailable", record.WorkflowError)
	assert.Equal(t, domain.PaymentStatusCompleted, record.PaymentStatus)
	assert.Equal(t, "pi_1", record.PaymentIntentID)
}

func TestReconfirmReject(t *testing.T) {
	h := newHarness(t, config.ReconfirmReject)
	clientID := h.initiate(t)

	_, err := h.svc.ConfirmPayment(context.Background(), clientID, "pi_1")
	require.NoError(t, err)
	_, err = h.svc.ConfirmPayment(context.Background(), clientID, "pi_1")
	assert.ErrorIs(t, err, domain.ErrAlreadyConfirmed)

	record, err := h.svc.Get(context.Background(), clientID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusCompleted, record.PaymentStatus)
	assert.Equal(t, 1, h.provisioner.callCount())
}

func TestActivationNoticeFailureIsQueuedAndRedelivered(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, "")
	clientID := h.initiate(t)

	h.notifier.failOn = func(body string) error {
		if strings.Contains(body, "LIVE") {
			return errors.New("carrier down")
		}
		return nil
	}

	res, err := h.svc.ConfirmPayment(ctx, clientID, "pi_1")
	require.NoError(t, err)
	assert.Equal(t, domain.StateWorkflowActive, res.State())
	assert.ErrorIs(t, res.NoticeError, domain.ErrCollaborator)
	assert.True(t, res.NoticeQueued)
	assert.Nil(t, res.Record.ActivationNotifiedAt)
	assert.Contains(t, h.events.types(), EventNotificationFailed)

	h.notifier.failOn = nil
	report, err := h.outbox.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Delivered)

	record, err := h.svc.Get(ctx, clientID)
	require.NoError(t, err)
	assert.NotNil(t, record.ActivationNotifiedAt)
}

func TestConcurrentConfirmationsOnDifferentClients(t *testing.T) {
	h := newHarness(t, "")
	ids := make([]string, 20)
	for i := range ids {
		ids[i] = h.initiate(t)
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := h.svc.ConfirmPayment(context.Background(), id, "pi_"+id)
			assert.NoError(t, err)
		}(id)
	}
	wg.Wait()

	for _, id := range ids {
		record, err := h.svc.Get(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, domain.PaymentStatusCompleted, record.PaymentStatus)
		assert.Equal(t, "pi_"+id, record.PaymentIntentID)
		assert.NotEmpty(t, record.WorkflowID)
	}
}
