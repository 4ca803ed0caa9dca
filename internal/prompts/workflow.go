package prompts

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed workflow_template.yaml
var workflowTemplate []byte

// WorkflowSpec is the call-flow document submitted to the provisioning API
type WorkflowSpec struct {
	Name         string         `yaml:"name" json:"name"`
	Nodes        []WorkflowNode `yaml:"nodes" json:"nodes"`
	Edges        []WorkflowEdge `yaml:"edges" json:"edges"`
	GlobalPrompt string         `yaml:"globalPrompt" json:"globalPrompt"`
}

// WorkflowNode is a conversation or tool step of the call flow
type WorkflowNode struct {
	Name                   string                  `yaml:"name" json:"name"`
	Type                   string                  `yaml:"type" json:"type"`
	IsStart                bool                    `yaml:"isStart,omitempty" json:"isStart,omitempty"`
	Model                  *NodeModel              `yaml:"model,omitempty" json:"model,omitempty"`
	Voice                  *NodeVoice              `yaml:"voice,omitempty" json:"voice,omitempty"`
	Prompt                 string                  `yaml:"prompt,omitempty" json:"prompt,omitempty"`
	ToolID                 string                  `yaml:"toolId,omitempty" json:"toolId,omitempty"`
	Tool                   *NodeTool               `yaml:"tool,omitempty" json:"tool,omitempty"`
	Metadata               NodeMetadata            `yaml:"metadata" json:"metadata"`
	MessagePlan            *MessagePlan            `yaml:"messagePlan,omitempty" json:"messagePlan,omitempty"`
	VariableExtractionPlan *VariableExtractionPlan `yaml:"variableExtractionPlan,omitempty" json:"variableExtractionPlan,omitempty"`
}

type NodeModel struct {
	Model       string  `yaml:"model" json:"model"`
	Provider    string  `yaml:"provider" json:"provider"`
	MaxTokens   int     `yaml:"maxTokens" json:"maxTokens"`
	Temperature float64 `yaml:"temperature" json:"temperature"`
}

type NodeVoice struct {
	VoiceID  string `yaml:"voiceId" json:"voiceId"`
	Provider string `yaml:"provider" json:"provider"`
}

type NodeMetadata struct {
	Position struct {
		X int `yaml:"x" json:"x"`
		Y int `yaml:"y" json:"y"`
	} `yaml:"position" json:"position"`
}

type MessagePlan struct {
	FirstMessage string `yaml:"firstMessage" json:"firstMessage"`
}

type VariableExtractionPlan struct {
	Output []ExtractedVariable `yaml:"output" json:"output"`
}

type ExtractedVariable struct {
	Enum        []string `yaml:"enum" json:"enum"`
	Type        string   `yaml:"type" json:"type"`
	Title       string   `yaml:"title" json:"title"`
	Description string   `yaml:"description" json:"description"`
}

// NodeTool is an inline tool definition, used for the end-of-call node
type NodeTool struct {
	Type     string        `yaml:"type" json:"type"`
	Function ToolFunction  `yaml:"function" json:"function"`
	Messages []ToolMessage `yaml:"messages" json:"messages"`
}

type ToolFunction struct {
	Name       string         `yaml:"name" json:"name"`
	Parameters ToolParameters `yaml:"parameters" json:"parameters"`
}

type ToolParameters struct {
	Type       string                 `yaml:"type" json:"type"`
	Required   []string               `yaml:"required" json:"required"`
	Properties map[string]interface{} `yaml:"properties" json:"properties"`
}

type ToolMessage struct {
	Type     string `yaml:"type" json:"type"`
	Content  string `yaml:"content" json:"content"`
	Blocking bool   `yaml:"blocking" json:"blocking"`
}

// WorkflowEdge connects two nodes under an AI-evaluated condition
type WorkflowEdge struct {
	From      string `yaml:"from" json:"from"`
	To        string `yaml:"to" json:"to"`
	Condition struct {
		Type   string `yaml:"type" json:"type"`
		Prompt string `yaml:"prompt" json:"prompt"`
	} `yaml:"condition" json:"condition"`
}

// WorkflowBuilder renders the embedded call-flow template for one business
type WorkflowBuilder struct {
	SMSToolID string
	TimeZone  string
}

// NewWorkflowBuilder creates a builder; timeZone is used in the start node's date expression
func NewWorkflowBuilder(smsToolID, timeZone string) *WorkflowBuilder {
	if timeZone == "" {
		timeZone = "America/New_York"
	}
	return &WorkflowBuilder{SMSToolID: smsToolID, TimeZone: timeZone}
}

// Build returns a fresh workflow spec for businessName
func (b *WorkflowBuilder) Build(businessName string) (*WorkflowSpec, error) {
	if strings.TrimSpace(businessName) == "" {
		return nil, fmt.Errorf("business name is required")
	}

	var spec WorkflowSpec
	if err := yaml.Unmarshal(workflowTemplate, &spec); err != nil {
		return nil, fmt.Errorf("failed to parse workflow template: %w", err)
	}

	r := strings.NewReplacer(
		"${businessName}", businessName,
		"${smsToolId}", b.SMSToolID,
		"${timeZone}", b.TimeZone,
	)
	spec.render(r)
	return &spec, nil
}

func (s *WorkflowSpec) render(r *strings.Replacer) {
	s.Name = r.Replace(s.Name)
	s.GlobalPrompt = r.Replace(s.GlobalPrompt)

	for i := range s.Nodes {
		n := &s.Nodes[i]
		n.Prompt = r.Replace(n.Prompt)
		n.ToolID = r.Replace(n.ToolID)
		if n.MessagePlan != nil {
			n.MessagePlan.FirstMessage = r.Replace(n.MessagePlan.FirstMessage)
		}
		if n.VariableExtractionPlan != nil {
			for j := range n.VariableExtractionPlan.Output {
				if n.VariableExtractionPlan.Output[j].Enum == nil {
					n.VariableExtractionPlan.Output[j].Enum = []string{}
				}
			}
		}
		if n.Tool != nil {
			params := &n.Tool.Function.Parameters
			if params.Required == nil {
				params.Required = []string{}
			}
			if params.Properties == nil {
				params.Properties = map[string]interface{}{}
			}
			for j := range n.Tool.Messages {
				n.Tool.Messages[j].Content = r.Replace(n.Tool.Messages[j].Content)
			}
		}
	}
}

// NodeNames lists node names in template order
func (s *WorkflowSpec) NodeNames() []string {
	names := make([]string, 0, len(s.Nodes))
	for _, n := range s.Nodes {
		names = append(names, n.Name)
	}
	return names
}
