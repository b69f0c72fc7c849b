package models

import "encoding/json"

// EventType identifies the kind of incremental output produced during a turn.
type EventType string

const (
	EventStepStart     EventType = "step-start"
	EventTextDelta     EventType = "text-delta"
	EventToolCallStart EventType = "tool-call-start"
	EventToolCallDelta EventType = "tool-call-delta"
	EventToolCall      EventType = "tool-call"
	EventToolResult    EventType = "tool-result"
	EventStepFinish    EventType = "step-finish"
	EventFinish        EventType = "finish"
	EventData          EventType = "data"
	EventError         EventType = "error"
)

// StreamEvent is one unit of streamed output. Only the fields relevant to
// Type are populated.
type StreamEvent struct {
	Type         EventType
	MessageID    string
	Text         string
	ToolCallID   string
	ToolName     string
	Args         json.RawMessage
	ArgsDelta    string
	Result       any
	FinishReason string
	Usage        Usage
	IsContinued  bool
	Data         any
}

// EmitFunc receives stream events in order. Returning an error aborts the turn.
type EmitFunc func(StreamEvent) error
