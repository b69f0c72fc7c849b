package models

import "encoding/json"

// Roles understood by the unified chat schema.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
	RoleData      = "data"
)

// ChatMessage represents a single conversational message in the unified schema
// sent to an LLM backend.
type ChatMessage struct {
	Role       string
	Content    string
	ToolCalls  []ToolCall
	ToolCallID string
}

// ToolCall is a finalized function call requested by the model.
type ToolCall struct {
	ID        string
	Name      string
	Arguments json.RawMessage
}

// ToolDefinition describes a callable tool exposed to the model.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// ChatRequest is the canonical representation of one generation step.
type ChatRequest struct {
	Model    string
	System   string
	Messages []ChatMessage
	Tools    []ToolDefinition
}

// ChatResponse captures a finished generation step in the unified schema.
type ChatResponse struct {
	ID           string
	Message      ChatMessage
	FinishReason string
	Usage        Usage
}

// Finish reasons reported by backends.
const (
	FinishStop      = "stop"
	FinishToolCalls = "tool-calls"
	FinishLength    = "length"
	FinishFiltered  = "content-filter"
	FinishError     = "error"
	FinishOther     = "other"
	FinishUnknown   = "unknown"
)

// Usage records token accounting information.
type Usage struct {
	PromptTokens     int `json:"promptTokens"`
	CompletionTokens int `json:"completionTokens"`
}

// Add accumulates token counts across steps.
func (u Usage) Add(other Usage) Usage {
	return Usage{
		PromptTokens:     u.PromptTokens + other.PromptTokens,
		CompletionTokens: u.CompletionTokens + other.CompletionTokens,
	}
}

// Model identifies a routable model with provider metadata.
type Model struct {
	ID          string `json:"id"`
	Provider    string `json:"provider"`
	DisplayName string `json:"name,omitempty"`
}
