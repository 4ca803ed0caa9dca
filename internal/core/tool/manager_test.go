package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ClareAI/astra-voice-tools/internal/calendarlink"
	"github.com/ClareAI/astra-voice-tools/internal/domain"
	"github.com/ClareAI/astra-voice-tools/internal/repository"
	"github.com/ClareAI/astra-voice-tools/internal/services/onboarding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCalendar struct {
	link   string
	err    error
	events []domain.CalendarEvent
}

func (f *fakeCalendar) InsertEvent(ctx context.Context, event domain.CalendarEvent) (string, error) {
	f.events = append(f.events, event)
	return f.link, f.err
}

type sentSMS struct {
	to   string
	body string
}

type fakeSMS struct {
	mu     sync.Mutex
	sent   []sentSMS
	failTo map[string]error
}

func (f *fakeSMS) Send(ctx context.Context, to, body string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failTo[to]; err != nil {
		return "", err
	}
	f.sent = append(f.sent, sentSMS{to: to, body: body})
	return fmt.Sprintf("SM%d", len(f.sent)), nil
}

type fakeOnboarding struct {
	initiateErr error
	confirmErr  error
	profile     domain.ClientProfile
	amount      domain.Amount
}

func (f *fakeOnboarding) Initiate(ctx context.Context, profile domain.ClientProfile, amount domain.Amount) (*onboarding.InitiationResult, error) {
	if f.initiateErr != nil {
		return nil, f.initiateErr
	}
	f.profile, f.amount = profile, amount
	return &onboarding.InitiationResult{
		ClientID:    "client_123",
		PaymentLink: "https://pay.example.com/mock-client_123",
	}, nil
}

func (f *fakeOnboarding) ConfirmPayment(ctx context.Context, clientID, paymentIntentID string) (*onboarding.ConfirmationResult, error) {
	if f.confirmErr != nil {
		return nil, f.confirmErr
	}
	return &onboarding.ConfirmationResult{
		Record: &domain.ClientRecord{
			ClientID:      clientID,
			PaymentStatus: domain.PaymentStatusCompleted,
			WorkflowID:    "wf_1",
		},
	}, nil
}

type fixture struct {
	manager   *ToolManager
	calendar  *fakeCalendar
	sms       *fakeSMS
	onboard   *fakeOnboarding
	summaries *repository.MemoryCallSummaryRepository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		calendar:  &fakeCalendar{link: "https://calendar.google.com/event?eid=abc"},
		sms:       &fakeSMS{failTo: map[string]error{}},
		onboard:   &fakeOnboarding{},
		summaries: repository.NewMemoryCallSummaryRepository(),
	}
	manager, err := NewToolManager(Dependencies{
		Calendar:      f.calendar,
		SMS:           f.sms,
		Onboarding:    f.onboard,
		CallSummaries: f.summaries,
		Links: &calendarlink.Codec{
			Now:      func() time.Time { return time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC) },
			Location: time.UTC,
		},
		Business: BusinessProfile{
			Name:          "Green Glow Gardens",
			OwnerPhone:    "+19736661635",
			AssistantName: "Jane",
		},
	})
	require.NoError(t, err)
	manager.now = func() time.Time { return time.UnixMilli(1717000000000) }
	f.manager = manager
	return f
}

func call(name string, params interface{}) domain.FunctionCall {
	raw, _ := json.Marshal(params)
	return domain.FunctionCall{ID: "call_1", Name: name, Parameters: raw}
}

func singleResult(t *testing.T, resp domain.ToolCallResponse) domain.ToolResult {
	t.Helper()
	require.Len(t, resp.Results, 1)
	return resp.Results[0]
}

func TestNewToolManager_RegistersEveryKind(t *testing.T) {
	f := newFixture(t)
	for _, kind := range domain.AllToolKinds {
		assert.Contains(t, f.manager.registry, kind)
	}

	defs := f.manager.GetToolDefinitions()
	assert.Len(t, defs, len(domain.AllToolKinds))
	fn := defs[0]["function"].(map[string]interface{})
	assert.Equal(t, "confirmPayment", fn["name"])
}

func TestValidateRegistry_MissingExecutor(t *testing.T) {
	m := &ToolManager{registry: map[domain.ToolKind]*ToolDefinition{}}
	require.NoError(t, m.RegisterTool(&ToolDefinition{
		Kind:     domain.ToolSendSMS,
		Executor: func(context.Context, json.RawMessage) (string, error) { return "", nil },
	}))

	err := m.validateRegistry()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scheduleAppointment")
	assert.NotContains(t, err.Error(), "sendSMS")
}

func TestRegisterTool_Rejects(t *testing.T) {
	f := newFixture(t)
	noop := func(context.Context, json.RawMessage) (string, error) { return "", nil }

	assert.Error(t, f.manager.RegisterTool(&ToolDefinition{Kind: "bogus", Executor: noop}))
	assert.Error(t, f.manager.RegisterTool(&ToolDefinition{Kind: domain.ToolSendSMS, Executor: noop}))
	assert.Error(t, (&ToolManager{registry: map[domain.ToolKind]*ToolDefinition{}}).RegisterTool(&ToolDefinition{Kind: domain.ToolSendSMS}))
}

func TestExecute_UnknownTool(t *testing.T) {
	f := newFixture(t)

	res := singleResult(t, f.manager.Execute(context.Background(), domain.FunctionCall{ID: "abc", Name: "launchRocket"}))
	require.NotNil(t, res.ToolCallID)
	assert.Equal(t, "abc", *res.ToolCallID)
	assert.Equal(t, "No handler for function: launchRocket", res.Result)
}

func TestExecute_AutoToolCallID(t *testing.T) {
	f := newFixture(t)

	res := singleResult(t, f.manager.Execute(context.Background(), domain.FunctionCall{Name: "launchRocket"}))
	require.NotNil(t, res.ToolCallID)
	assert.Regexp(t, `^auto_\d+$`, *res.ToolCallID)
	assert.Equal(t, "auto_1717000000000", *res.ToolCallID)
}

func TestExecute_ErrorHasNullToolCallID(t *testing.T) {
	f := newFixture(t)
	f.calendar.err = errors.New("Invalid Credentials")

	resp := f.manager.Execute(context.Background(), call("scheduleAppointment", map[string]string{
		"startTime": "2025-06-05T14:00:00-04:00",
		"endTime":   "2025-06-05T15:00:00-04:00",
	}))
	res := singleResult(t, resp)
	assert.Nil(t, res.ToolCallID)
	assert.Equal(t, "Error: Could not schedule appointment: Invalid Credentials", res.Result)

	body, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.JSONEq(t, `{"results":[{"toolCallId":null,"result":"Error: Could not schedule appointment: Invalid Credentials"}]}`, string(body))
}

func TestExecute_RecoversPanic(t *testing.T) {
	f := newFixture(t)
	f.manager.registry[domain.ToolSendSMS].Executor = func(context.Context, json.RawMessage) (string, error) {
		panic("boom")
	}

	res := singleResult(t, f.manager.Execute(context.Background(), call("sendSMS", map[string]string{"to": "+1555"})))
	assert.Nil(t, res.ToolCallID)
	assert.Equal(t, "Error: boom", res.Result)
}

func TestScheduleAppointment(t *testing.T) {
	f := newFixture(t)

	res := singleResult(t, f.manager.Execute(context.Background(), call("scheduleAppointment", map[string]string{
		"startTime": "2025-06-05T14:00:00-04:00",
		"endTime":   "2025-06-05T15:00:00-04:00",
	})))
	assert.Equal(t, "Appointment scheduled successfully! See details: https://calendar.google.com/event?eid=abc", res.Result)
	require.Len(t, f.calendar.events, 1)
	assert.Equal(t, "New Appointment", f.calendar.events[0].Summary)
	assert.Equal(t, "America/New_York", f.calendar.events[0].TimeZone)

	f.calendar.link = ""
	res = singleResult(t, f.manager.Execute(context.Background(), call("scheduleAppointment", map[string]string{
		"summary": "Lawn care",
	})))
	assert.Equal(t, "Appointment scheduled, but no event link available.", res.Result)
	assert.Equal(t, "Lawn care", f.calendar.events[1].Summary)
}

func TestSendSMS_Plain(t *testing.T) {
	f := newFixture(t)

	res := singleResult(t, f.manager.Execute(context.Background(), call("sendSMS", map[string]string{
		"to":   "+15550001111",
		"body": "See you soon",
	})))
	assert.Equal(t, "SMS sent successfully! SID: SM1", res.Result)
	require.Len(t, f.sms.sent, 1)
	assert.Equal(t, "See you soon", f.sms.sent[0].body)
}

func TestSendSMS_MissingTo(t *testing.T) {
	f := newFixture(t)

	res := singleResult(t, f.manager.Execute(context.Background(), call("sendSMS", map[string]string{"body": "hi"})))
	assert.Nil(t, res.ToolCallID)
	assert.Equal(t, `Error: Missing SMS "to" parameter.`, res.Result)
	assert.Empty(t, f.sms.sent)
}

func TestSendSMS_MissingBody(t *testing.T) {
	f := newFixture(t)

	res := singleResult(t, f.manager.Execute(context.Background(), call("sendSMS", map[string]string{
		"to":           "+15550001111",
		"customerName": "Ana",
	})))
	assert.Equal(t, `Error: Could not send SMS: Missing SMS parameters. Need either "body" or appointment details.`, res.Result)
}

func TestSendSMS_AppointmentConfirmation(t *testing.T) {
	f := newFixture(t)

	res := singleResult(t, f.manager.Execute(context.Background(), call("sendSMS", map[string]string{
		"to":              "+15550001111",
		"customerName":    "Ana",
		"appointmentType": "Lawn Consultation",
		"selectedDate":    "June 5th, 2025",
		"selectedTime":    "2:30 PM",
	})))
	assert.Equal(t, "Appointment SMS sent to Ana! Customer SID: SM1. Owner notified: SM2", res.Result)

	require.Len(t, f.sms.sent, 2)
	customer, owner := f.sms.sent[0], f.sms.sent[1]
	assert.Equal(t, "+15550001111", customer.to)
	assert.True(t, strings.HasPrefix(customer.body, "Green Glow Gardens Confirmation!\n\nHi Ana! Your Lawn Consultation is confirmed for June 5th, 2025 at 2:30 PM."))
	assert.Contains(t, customer.body, "Add to Calendar: https://calendar.google.com/calendar/render?")
	assert.Contains(t, customer.body, "20250605T143000%2F20250605T153000")
	assert.True(t, strings.HasSuffix(customer.body, "- Jane at Green Glow Gardens"))

	assert.Equal(t, "+19736661635", owner.to)
	assert.Contains(t, owner.body, "New Appointment Scheduled!")
	assert.Contains(t, owner.body, "Address: Customer Property")
	assert.True(t, strings.HasSuffix(owner.body, "- Green Glow Gardens Scheduling System"))
}

func TestSendSMS_OwnerFailureTolerated(t *testing.T) {
	f := newFixture(t)
	f.sms.failTo["+19736661635"] = errors.New("carrier rejected")

	res := singleResult(t, f.manager.Execute(context.Background(), call("sendSMS", map[string]string{
		"to":              "+15550001111",
		"customerName":    "Ana",
		"appointmentType": "Lawn Consultation",
		"selectedDate":    "June 5th, 2025",
		"selectedTime":    "2:30 PM",
		"propertyAddress": "12 Elm St",
	})))
	require.NotNil(t, res.ToolCallID)
	assert.Equal(t, "Appointment SMS sent to Ana! Customer SID: SM1. (Owner notification failed)", res.Result)
	assert.Contains(t, f.sms.sent[0].body, "confirmed for June 5th, 2025 at 2:30 PM")
}

func TestSendSMS_CustomerFailure(t *testing.T) {
	f := newFixture(t)
	f.sms.failTo["+15550001111"] = errors.New("The 'To' number is not a valid phone number.")

	res := singleResult(t, f.manager.Execute(context.Background(), call("sendSMS", map[string]string{
		"to":   "+15550001111",
		"body": "hi",
	})))
	assert.Equal(t, "Error: Could not send SMS: The 'To' number is not a valid phone number.", res.Result)
}

func TestCreatePaymentLink(t *testing.T) {
	f := newFixture(t)

	raw := json.RawMessage(`{"clientName":"Bob","clientPhone":"+15550002222","amount":"299","businessName":"Bob's Plumbing"}`)
	res := singleResult(t, f.manager.Execute(context.Background(), domain.FunctionCall{ID: "c1", Name: "createPaymentLink", Parameters: raw}))
	assert.Equal(t, "Payment link created and sent to Bob at +15550002222. Client ID: client_123. Amount: $299", res.Result)
	assert.Equal(t, "Bob's Plumbing", f.onboard.profile.BusinessName)
	assert.Equal(t, domain.Amount(299), f.onboard.amount)

	f.onboard.initiateErr = domain.NewValidationError("clientPhone")
	res = singleResult(t, f.manager.Execute(context.Background(), domain.FunctionCall{Name: "createPaymentLink", Parameters: raw}))
	assert.Equal(t, "Error: Could not create payment link: Missing required fields: clientPhone", res.Result)
}

func TestInitiateOnboarding(t *testing.T) {
	f := newFixture(t)

	res := singleResult(t, f.manager.Execute(context.Background(), call("initiateOnboarding", map[string]interface{}{
		"clientName":  "Bob",
		"clientPhone": "+15550002222",
		"amount":      299,
	})))
	assert.Equal(t, "Onboarding started for Bob. Client ID: client_123. Payment link: https://pay.example.com/mock-client_123", res.Result)
}

func TestConfirmPayment(t *testing.T) {
	f := newFixture(t)

	res := singleResult(t, f.manager.Execute(context.Background(), call("confirmPayment", map[string]string{"clientId": "client_123"})))
	assert.Equal(t, "Payment confirmed for client_123. Status: completed. Workflow: workflow_active", res.Result)

	res = singleResult(t, f.manager.Execute(context.Background(), call("confirmPayment", map[string]string{})))
	assert.Equal(t, "Error: Could not confirm payment: Missing required fields: clientId", res.Result)

	f.onboard.confirmErr = fmt.Errorf("client client_x: %w", domain.ErrNotFound)
	res = singleResult(t, f.manager.Execute(context.Background(), call("confirmPayment", map[string]string{"clientId": "client_x"})))
	assert.Equal(t, "Error: Could not confirm payment: client client_x: not found", res.Result)
}

func TestSummarizeClientCall(t *testing.T) {
	f := newFixture(t)

	res := singleResult(t, f.manager.Execute(context.Background(), call("summarizeClientCall", map[string]interface{}{
		"clientName": "Dana",
		"services":   []string{"lawn", "hedges"},
	})))
	assert.Regexp(t, `^Call summary created for Dana\. Summary ID: summary_[0-9a-f-]{36}\. Business: Dana's Business, Type: general$`, res.Result)

	id := strings.SplitN(strings.SplitN(res.Result, "Summary ID: ", 2)[1], ".", 2)[0]
	stored, err := f.summaries.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "not specified", stored.Budget)
	assert.Equal(t, "flexible", stored.Timeline)
	assert.Equal(t, domain.StringList{"lawn", "hedges"}, stored.Services)
}

func TestDecodeParams(t *testing.T) {
	var p domain.SendSMSParams
	require.NoError(t, decodeParams(nil, &p))
	require.NoError(t, decodeParams(json.RawMessage(`null`), &p))
	require.NoError(t, decodeParams(json.RawMessage(`"{\"to\":\"+1555\"}"`), &p))
	assert.Equal(t, "+1555", p.To)
	assert.Error(t, decodeParams(json.RawMessage(`{"to":`), &p))
}
