package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ClareAI/astra-voice-tools/internal/domain"
	"github.com/google/uuid"
)

// ExecuteSummarizeClientCall stores what a prospective client asked for
func (m *ToolManager) ExecuteSummarizeClientCall(ctx context.Context, params json.RawMessage) (string, error) {
	var p domain.SummarizeCallParams
	if err := decodeParams(params, &p); err != nil {
		return "", fmt.Errorf("Could not create call summary: %w", err)
	}
	if m.deps.CallSummaries == nil {
		return "", fmt.Errorf("Could not create call summary: %w", errors.New("call summary storage is not configured"))
	}

	summary := domain.NewCallSummary("summary_"+uuid.NewString(), p, m.now().UTC())
	if err := m.deps.CallSummaries.Create(ctx, summary); err != nil {
		return "", fmt.Errorf("Could not create call summary: %w", err)
	}
	return fmt.Sprintf("Call summary created for %s. Summary ID: %s. Business: %s, Type: %s",
		summary.ClientName, summary.SummaryID, summary.BusinessName, summary.BusinessType), nil
}
