// Package stream encodes turn events in the AI SDK data stream protocol:
// one "<code>:<json>\n" frame per event.
package stream

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"chefmate/internal/models"
)

// Response headers for data stream responses.
const (
	HeaderName  = "X-Vercel-AI-Data-Stream"
	HeaderValue = "v1"
	ContentType = "text/plain; charset=utf-8"
)

// Frame codes.
const (
	codeText          = '0'
	codeData          = '2'
	codeError         = '3'
	codeToolCall      = '9'
	codeToolResult    = 'a'
	codeToolCallStart = 'b'
	codeToolCallDelta = 'c'
	codeFinishMessage = 'd'
	codeFinishStep    = 'e'
	codeStartStep     = 'f'
)

// Writer writes frames and flushes after each one when the destination
// supports it.
type Writer struct {
	w       io.Writer
	flusher http.Flusher
}

// NewWriter wraps w.
func NewWriter(w io.Writer) *Writer {
	flusher, _ := w.(http.Flusher)
	return &Writer{w: w, flusher: flusher}
}

type toolCallFrame struct {
	ToolCallID string          `json:"toolCallId"`
	ToolName   string          `json:"toolName"`
	Args       json.RawMessage `json:"args"`
}

type toolResultFrame struct {
	ToolCallID string `json:"toolCallId"`
	Result     any    `json:"result"`
}

type toolCallStartFrame struct {
	ToolCallID string `json:"toolCallId"`
	ToolName   string `json:"toolName"`
}

type toolCallDeltaFrame struct {
	ToolCallID    string `json:"toolCallId"`
	ArgsTextDelta string `json:"argsTextDelta"`
}

type finishMessageFrame struct {
	FinishReason string       `json:"finishReason"`
	Usage        models.Usage `json:"usage"`
}

type finishStepFrame struct {
	FinishReason string       `json:"finishReason"`
	Usage        models.Usage `json:"usage"`
	IsContinued  bool         `json:"isContinued"`
}

type startStepFrame struct {
	MessageID string `json:"messageId"`
}

// Write encodes one event.
func (s *Writer) Write(ev models.StreamEvent) error {
	code, payload, err := frameFor(ev)
	if err != nil {
		return err
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s frame: %w", ev.Type, err)
	}
	if _, err := fmt.Fprintf(s.w, "%c:%s\n", code, data); err != nil {
		return fmt.Errorf("write %s frame: %w", ev.Type, err)
	}
	if s.flusher != nil {
		s.flusher.Flush()
	}
	return nil
}

func frameFor(ev models.StreamEvent) (rune, any, error) {
	switch ev.Type {
	case models.EventTextDelta:
		return codeText, ev.Text, nil
	case models.EventData:
		if values, ok := ev.Data.([]any); ok {
			return codeData, values, nil
		}
		return codeData, []any{ev.Data}, nil
	case models.EventError:
		return codeError, ev.Text, nil
	case models.EventToolCall:
		args := ev.Args
		if len(args) == 0 {
			args = json.RawMessage("{}")
		}
		return codeToolCall, toolCallFrame{ToolCallID: ev.ToolCallID, ToolName: ev.ToolName, Args: args}, nil
	case models.EventToolResult:
		return codeToolResult, toolResultFrame{ToolCallID: ev.ToolCallID, Result: ev.Result}, nil
	case models.EventToolCallStart:
		return codeToolCallStart, toolCallStartFrame{ToolCallID: ev.ToolCallID, ToolName: ev.ToolName}, nil
	case models.EventToolCallDelta:
		return codeToolCallDelta, toolCallDeltaFrame{ToolCallID: ev.ToolCallID, ArgsTextDelta: ev.ArgsDelta}, nil
	case models.EventFinish:
		return codeFinishMessage, finishMessageFrame{FinishReason: ev.FinishReason, Usage: ev.Usage}, nil
	case models.EventStepFinish:
		return codeFinishStep, finishStepFrame{FinishReason: ev.FinishReason, Usage: ev.Usage, IsContinued: ev.IsContinued}, nil
	case models.EventStepStart:
		return codeStartStep, startStepFrame{MessageID: ev.MessageID}, nil
	default:
		return 0, nil, fmt.Errorf("unsupported stream event %q", ev.Type)
	}
}
