package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ClareAI/astra-voice-tools/internal/config"
	"github.com/ClareAI/astra-voice-tools/internal/prompts"
	"github.com/ClareAI/astra-voice-tools/pkg/logger"
	"go.uber.org/zap"
)

// VapiClient handles communication with the Vapi provisioning API
type VapiClient struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// VapiWorkflowResponse is the subset of the workflow resource we read back
type VapiWorkflowResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// VapiPhoneNumberRequest is the body of POST /phone-number
type VapiPhoneNumberRequest struct {
	Provider   string `json:"provider"`
	Name       string `json:"name,omitempty"`
	WorkflowID string `json:"workflowId,omitempty"`
}

// VapiPhoneNumberResponse is the subset of the phone-number resource we read back
type VapiPhoneNumberResponse struct {
	ID     string `json:"id"`
	Number string `json:"number"`
}

// NewVapiClient creates a new Vapi API client
func NewVapiClient(cfg config.VapiConfig, timeout time.Duration) *VapiClient {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &VapiClient{
		BaseURL: strings.TrimRight(cfg.BaseURL, "/"),
		APIKey:  cfg.APIKey,
		HTTPClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// CreateWorkflow submits a workflow spec and returns the provider's workflow id
func (c *VapiClient) CreateWorkflow(ctx context.Context, spec *prompts.WorkflowSpec) (string, error) {
	var workflow VapiWorkflowResponse
	status, err := c.post(ctx, "/workflow", spec, &workflow)
	if err != nil {
		return "", err
	}
	if status < 200 || status >= 300 {
		return "", fmt.Errorf("Workflow creation failed: %s", http.StatusText(status))
	}
	if workflow.ID == "" {
		return "", fmt.Errorf("workflow response missing id")
	}

	logger.Base().Info("Workflow created via Vapi API", zap.String("workflow_id", workflow.ID), zap.String("name", spec.Name))
	return workflow.ID, nil
}

// AssignPhoneNumber buys a Vapi number and attaches it to the workflow
func (c *VapiClient) AssignPhoneNumber(ctx context.Context, workflowID, businessName string) (string, error) {
	request := VapiPhoneNumberRequest{
		Provider:   "vapi",
		Name:       businessName,
		WorkflowID: workflowID,
	}

	var phone VapiPhoneNumberResponse
	status, err := c.post(ctx, "/phone-number", request, &phone)
	if err != nil {
		return "", err
	}
	if status < 200 || status >= 300 {
		return "", fmt.Errorf("Phone number assignment failed: %s", http.StatusText(status))
	}
	if phone.Number == "" {
		return "", fmt.Errorf("phone number response missing number")
	}

	logger.Base().Info("Phone number assigned via Vapi API", zap.String("workflow_id", workflowID), zap.String("phone_number_id", phone.ID))
	return phone.Number, nil
}

// post sends body as JSON and decodes a 2xx response into out; the status is returned for the caller to judge
func (c *VapiClient) post(ctx context.Context, path string, body interface{}, out interface{}) (int, error) {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewBuffer(jsonData))
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		logger.Base().Warn("Vapi API returned an error",
			zap.String("path", path),
			zap.Int("status_code", resp.StatusCode),
			zap.String("body", string(bodyBytes)))
		return resp.StatusCode, nil
	}

	if err := json.Unmarshal(bodyBytes, out); err != nil {
		return resp.StatusCode, fmt.Errorf("failed to decode response: %w", err)
	}
	return resp.StatusCode, nil
}
