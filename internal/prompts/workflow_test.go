package prompts

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkflowBuilderBuild(t *testing.T) {
	b := NewWorkflowBuilder("tool-123", "")

	spec, err := b.Build("Glow Co")
	require.NoError(t, err)

	assert.Equal(t, "Glow Co - AI Assistant", spec.Name)
	assert.Equal(t, []string{"start", "general_assistance", "collect_contact", "sendSMS", "hangup_final"}, spec.NodeNames())
	assert.Len(t, spec.Edges, 5)
	assert.Contains(t, spec.GlobalPrompt, "professional AI assistant for Glow Co")

	start := spec.Nodes[0]
	assert.True(t, start.IsStart)
	require.NotNil(t, start.Model)
	assert.Equal(t, "gpt-4o", start.Model.Model)
	assert.Equal(t, 0.7, start.Model.Temperature)
	assert.Equal(t, "Hello! Thank you for calling Glow Co. How can I assist you today?", start.MessagePlan.FirstMessage)
	assert.Contains(t, start.Prompt, `"America/New_York"`)
	assert.Contains(t, start.Prompt, `{{"now" | date:`)

	assert.Equal(t, "tool-123", spec.Nodes[3].ToolID)

	hangup := spec.Nodes[4]
	require.NotNil(t, hangup.Tool)
	assert.Equal(t, "endCall", hangup.Tool.Type)
	assert.Equal(t, "Thank you for calling Glow Co. Have a wonderful day!", hangup.Tool.Messages[0].Content)
}

func TestWorkflowBuilderBuildsIndependentSpecs(t *testing.T) {
	b := NewWorkflowBuilder("tool-123", "America/Chicago")

	first, err := b.Build("First Biz")
	require.NoError(t, err)
	second, err := b.Build("Second Biz")
	require.NoError(t, err)

	assert.Contains(t, first.Name, "First Biz")
	assert.Contains(t, second.Name, "Second Biz")
	assert.Contains(t, second.Nodes[0].Prompt, "America/Chicago")
}

func TestWorkflowBuilderRejectsEmptyName(t *testing.T) {
	_, err := NewWorkflowBuilder("tool", "").Build("  ")
	assert.Error(t, err)
}

func TestWorkflowSpecJSONShape(t *testing.T) {
	spec, err := NewWorkflowBuilder("tool-123", "").Build("Dana's Business")
	require.NoError(t, err)

	data, err := json.Marshal(spec)
	require.NoError(t, err)
	body := string(data)

	assert.True(t, strings.Contains(body, `"enum":[]`), "empty enums are sent as arrays")
	assert.True(t, strings.Contains(body, `"required":[]`))
	assert.True(t, strings.Contains(body, `"properties":{}`))
	assert.True(t, strings.Contains(body, `"firstMessage":""`))
	assert.False(t, strings.Contains(body, "${"), "all placeholders are substituted")
}
