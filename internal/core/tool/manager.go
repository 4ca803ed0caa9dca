package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ClareAI/astra-voice-tools/internal/calendarlink"
	"github.com/ClareAI/astra-voice-tools/internal/domain"
	"github.com/ClareAI/astra-voice-tools/internal/repository"
	"github.com/ClareAI/astra-voice-tools/internal/services/onboarding"
	"github.com/ClareAI/astra-voice-tools/pkg/logger"
	"go.uber.org/zap"
)

/*
Tool Manager - Closed Registry Pattern

Architecture:
- manager.go (this file): registry, routing, result envelope, registration
- schemas.go: parameter schemas published to the voice assistant
- tool_*.go: individual tool executors

Every domain.ToolKind must have exactly one executor; NewToolManager fails otherwise.

To add a new tool:

1. Add the kind to domain.AllToolKinds.
2. Register it in registerBuiltInTools() below with its schema and executor.
3. Create tool_<name>.go with the Execute method.
*/

// ToolExecutorFunc executes one tool call and returns the text handed back to the assistant
type ToolExecutorFunc func(ctx context.Context, params json.RawMessage) (string, error)

// ToolDefinition defines a tool with its metadata and execution logic
type ToolDefinition struct {
	Kind        domain.ToolKind
	Description string
	Parameters  map[string]interface{}
	Executor    ToolExecutorFunc
}

// CalendarService creates calendar events
type CalendarService interface {
	InsertEvent(ctx context.Context, event domain.CalendarEvent) (string, error)
}

// SMSSender sends a text message and returns the provider message id
type SMSSender interface {
	Send(ctx context.Context, to, body string) (string, error)
}

// OnboardingService runs the client onboarding lifecycle
type OnboardingService interface {
	Initiate(ctx context.Context, profile domain.ClientProfile, amount domain.Amount) (*onboarding.InitiationResult, error)
	ConfirmPayment(ctx context.Context, clientID, paymentIntentID string) (*onboarding.ConfirmationResult, error)
}

// BusinessProfile describes the business the scheduling assistant works for
type BusinessProfile struct {
	Name          string
	OwnerPhone    string
	AssistantName string
}

// Dependencies are the collaborators used by the built-in tools
type Dependencies struct {
	Calendar      CalendarService
	SMS           SMSSender
	Onboarding    OnboardingService
	CallSummaries repository.CallSummaryRepository
	Links         *calendarlink.Codec
	Business      BusinessProfile
	TimeZone      string
	Timeout       time.Duration
}

// ToolManager manages tool definitions, routing, and execution
type ToolManager struct {
	registry map[domain.ToolKind]*ToolDefinition
	deps     Dependencies
	now      func() time.Time
}

// NewToolManager creates a tool manager with every built-in tool registered
func NewToolManager(deps Dependencies) (*ToolManager, error) {
	if deps.Links == nil {
		deps.Links = calendarlink.New()
	}
	if deps.Timeout <= 0 {
		deps.Timeout = 20 * time.Second
	}
	if deps.TimeZone == "" {
		deps.TimeZone = "America/New_York"
	}

	m := &ToolManager{
		registry: make(map[domain.ToolKind]*ToolDefinition),
		deps:     deps,
		now:      time.Now,
	}
	if err := m.registerBuiltInTools(); err != nil {
		return nil, err
	}
	if err := m.validateRegistry(); err != nil {
		return nil, err
	}
	return m, nil
}

// registerBuiltInTools registers all built-in tools
func (m *ToolManager) registerBuiltInTools() error {
	defs := []*ToolDefinition{
		{
			Kind:        domain.ToolScheduleAppointment,
			Description: "Create an appointment in the business calendar.",
			Parameters:  ScheduleAppointmentSchema,
			Executor:    m.ExecuteScheduleAppointment,
		},
		{
			Kind:        domain.ToolSendSMS,
			Description: "Send a text message. With customerName, appointmentType, selectedDate and selectedTime it sends an appointment confirmation with an add-to-calendar link and notifies the business owner.",
			Parameters:  SendSMSSchema,
			Executor:    m.ExecuteSendSMS,
		},
		{
			Kind:        domain.ToolCreatePaymentLink,
			Description: "Create a payment link for a new client and text it to them.",
			Parameters:  CreatePaymentLinkSchema,
			Executor:    m.ExecuteCreatePaymentLink,
		},
		{
			Kind:        domain.ToolSummarizeClientCall,
			Description: "Store a summary of what the prospective client needs.",
			Parameters:  SummarizeClientCallSchema,
			Executor:    m.ExecuteSummarizeClientCall,
		},
		{
			Kind:        domain.ToolInitiateOnboarding,
			Description: "Start onboarding for a new client: create their record and text them the payment link.",
			Parameters:  CreatePaymentLinkSchema,
			Executor:    m.ExecuteInitiateOnboarding,
		},
		{
			Kind:        domain.ToolConfirmPayment,
			Description: "Confirm a client's payment and activate their AI phone line.",
			Parameters:  ConfirmPaymentSchema,
			Executor:    m.ExecuteConfirmPayment,
		},
	}

	for _, def := range defs {
		if err := m.RegisterTool(def); err != nil {
			return err
		}
	}
	return nil
}

// RegisterTool registers an executor for a known tool kind
func (m *ToolManager) RegisterTool(tool *ToolDefinition) error {
	if _, ok := domain.ParseToolKind(string(tool.Kind)); !ok {
		return fmt.Errorf("unknown tool kind %q", tool.Kind)
	}
	if tool.Executor == nil {
		return fmt.Errorf("tool %s has no executor", tool.Kind)
	}
	if _, exists := m.registry[tool.Kind]; exists {
		return fmt.Errorf("tool %s registered twice", tool.Kind)
	}
	m.registry[tool.Kind] = tool
	logger.Base().Debug("Registered tool", zap.String("name", string(tool.Kind)))
	return nil
}

func (m *ToolManager) validateRegistry() error {
	var missing []string
	for _, kind := range domain.AllToolKinds {
		if _, ok := m.registry[kind]; !ok {
			missing = append(missing, string(kind))
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("no executor registered for tools: %s", strings.Join(missing, ", "))
	}
	return nil
}

// GetToolDefinitions returns the function definitions to configure on the voice assistant
func (m *ToolManager) GetToolDefinitions() []map[string]interface{} {
	kinds := make([]string, 0, len(m.registry))
	for kind := range m.registry {
		kinds = append(kinds, string(kind))
	}
	sort.Strings(kinds)

	tools := make([]map[string]interface{}, 0, len(kinds))
	for _, name := range kinds {
		def := m.registry[domain.ToolKind(name)]
		tools = append(tools, map[string]interface{}{
			"type": "function",
			"function": map[string]interface{}{
				"name":        name,
				"description": def.Description,
				"parameters":  def.Parameters,
			},
		})
	}
	return tools
}

// Execute routes a function call to its executor and wraps the outcome in the response envelope.
// Unknown tools are answered with text; executor errors and panics become "Error: <message>"
// with a null toolCallId.
func (m *ToolManager) Execute(ctx context.Context, call domain.FunctionCall) domain.ToolCallResponse {
	toolCallID := call.ID
	if toolCallID == "" {
		toolCallID = "auto_" + strconv.FormatInt(m.now().UnixMilli(), 10)
	}
	ctx = logger.WithFields(ctx, zap.String("tool", call.Name), zap.String("tool_call_id", toolCallID))

	kind, ok := domain.ParseToolKind(call.Name)
	if !ok {
		logger.Warn(ctx, "No handler for function", zap.Error(domain.ErrUnhandledTool))
		return resultEnvelope(&toolCallID, "No handler for function: "+call.Name)
	}

	result, err := m.run(ctx, m.registry[kind], call.Parameters)
	if err != nil {
		logger.Error(ctx, "Tool call failed", zap.Error(err))
		return ErrorResponse(err)
	}

	logger.Info(ctx, "Tool call completed")
	return resultEnvelope(&toolCallID, result)
}

func (m *ToolManager) run(ctx context.Context, def *ToolDefinition, params json.RawMessage) (result string, err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error(ctx, "Tool executor panicked", zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
			err = fmt.Errorf("%v", r)
		}
	}()
	return def.Executor(ctx, params)
}

// ErrorResponse builds the failure envelope: a single result with a null toolCallId
func ErrorResponse(err error) domain.ToolCallResponse {
	return resultEnvelope(nil, "Error: "+err.Error())
}

func resultEnvelope(toolCallID *string, result string) domain.ToolCallResponse {
	return domain.ToolCallResponse{
		Results: []domain.ToolResult{{ToolCallID: toolCallID, Result: result}},
	}
}

// decodeParams unmarshals tool parameters; missing or null parameters decode to the zero value.
// Parameters sent as a JSON-encoded string are unwrapped first.
func decodeParams(raw json.RawMessage, out interface{}) error {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return nil
	}
	if strings.HasPrefix(trimmed, `"`) {
		var inner string
		if err := json.Unmarshal(raw, &inner); err != nil {
			return fmt.Errorf("invalid parameters: %w", err)
		}
		if strings.TrimSpace(inner) == "" {
			return nil
		}
		raw = json.RawMessage(inner)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("invalid parameters: %w", err)
	}
	return nil
}

func (m *ToolManager) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, m.deps.Timeout)
}
