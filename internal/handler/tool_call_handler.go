package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/ClareAI/astra-voice-tools/internal/core/tool"
	"github.com/ClareAI/astra-voice-tools/internal/domain"
	"github.com/ClareAI/astra-voice-tools/pkg/logger"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

const maxToolCallBody = 1 << 20

// ToolExecutor dispatches one function call from the voice assistant
type ToolExecutor interface {
	Execute(ctx context.Context, call domain.FunctionCall) domain.ToolCallResponse
}

// ToolCallHandler serves the voice assistant's function-call webhook
type ToolCallHandler struct {
	tools ToolExecutor
}

// NewToolCallHandler creates a new tool call handler
func NewToolCallHandler(tools ToolExecutor) *ToolCallHandler {
	return &ToolCallHandler{tools: tools}
}

// SetupToolCallRoutes registers the tool-call route
func (h *ToolCallHandler) SetupToolCallRoutes(router *mux.Router) {
	router.HandleFunc("/tool-call", h.HandleToolCall).Methods(http.MethodPost)
}

// HandleToolCall always answers 200 with a results envelope; failures are reported inside it
func (h *ToolCallHandler) HandleToolCall(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxToolCallBody))
	if err != nil {
		writeJSON(w, http.StatusOK, tool.ErrorResponse(fmt.Errorf("failed to read request body: %w", err)))
		return
	}
	logger.Debug(r.Context(), "Incoming /tool-call data", zap.ByteString("body", body))

	var req domain.ToolCallRequest
	if err := json.Unmarshal(body, &req); err != nil {
		logger.Warn(r.Context(), "malformed tool call", zap.Error(err))
		writeJSON(w, http.StatusOK, tool.ErrorResponse(fmt.Errorf("malformed request body: %w", err)))
		return
	}

	writeJSON(w, http.StatusOK, h.tools.Execute(r.Context(), req.Message.FunctionCall))
}
