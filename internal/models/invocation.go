package models

import (
	"encoding/json"
	"fmt"
)

// InvocationState names the lifecycle state of a tool invocation.
type InvocationState string

const (
	StatePartialCall InvocationState = "partial-call"
	StateCall        InvocationState = "call"
	StateResult      InvocationState = "result"
)

// CancelledToolMessage is the result content recorded for a call that was
// still pending when generation stopped.
const CancelledToolMessage = "Tool execution was cancelled"

// ToolInvocation is a tool call in one of three states: PartialCall (args
// still streaming), PendingCall (args final, no result yet) or ResolvedCall.
// Transitions only move forward: partial-call -> call -> result.
type ToolInvocation interface {
	State() InvocationState
	Header() InvocationHeader
	isToolInvocation()
}

// InvocationHeader holds the fields shared by every invocation state.
type InvocationHeader struct {
	ToolCallID string
	ToolName   string
	Args       json.RawMessage
	Step       int
}

// PartialCall is an invocation whose arguments are still streaming.
type PartialCall struct {
	InvocationHeader
}

// PendingCall is an invocation whose arguments are final and whose execution
// has not produced a result.
type PendingCall struct {
	InvocationHeader
}

// ResolvedCall is a finished invocation.
type ResolvedCall struct {
	InvocationHeader
	Result    json.RawMessage
	Cancelled bool
}

func (PartialCall) State() InvocationState  { return StatePartialCall }
func (PendingCall) State() InvocationState  { return StateCall }
func (ResolvedCall) State() InvocationState { return StateResult }

func (c PartialCall) Header() InvocationHeader  { return c.InvocationHeader }
func (c PendingCall) Header() InvocationHeader  { return c.InvocationHeader }
func (c ResolvedCall) Header() InvocationHeader { return c.InvocationHeader }

func (PartialCall) isToolInvocation()  {}
func (PendingCall) isToolInvocation()  {}
func (ResolvedCall) isToolInvocation() {}

// Resolve moves a pending call to the result state.
func (c PendingCall) Resolve(result json.RawMessage) ResolvedCall {
	return ResolvedCall{InvocationHeader: c.InvocationHeader, Result: result}
}

// Cancel moves a pending call to the result state with the cancellation marker.
func (c PendingCall) Cancel() ResolvedCall {
	payload, _ := json.Marshal(cancelledResult{Content: CancelledToolMessage, Cancelled: true})
	return ResolvedCall{InvocationHeader: c.InvocationHeader, Result: payload, Cancelled: true}
}

type cancelledResult struct {
	Content   string `json:"content"`
	Cancelled bool   `json:"cancelled"`
}

type toolInvocationWire struct {
	State      InvocationState `json:"state"`
	Step       int             `json:"step"`
	ToolCallID string          `json:"toolCallId"`
	ToolName   string          `json:"toolName"`
	Args       json.RawMessage `json:"args,omitempty"`
	Result     json.RawMessage `json:"result,omitempty"`
}

func decodeToolInvocation(data json.RawMessage) (ToolInvocation, error) {
	var raw toolInvocationWire
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode tool invocation: %w", err)
	}
	header := InvocationHeader{
		ToolCallID: raw.ToolCallID,
		ToolName:   raw.ToolName,
		Args:       raw.Args,
		Step:       raw.Step,
	}

	switch raw.State {
	case StatePartialCall:
		return PartialCall{InvocationHeader: header}, nil
	case StateCall:
		return PendingCall{InvocationHeader: header}, nil
	case StateResult:
		return ResolvedCall{
			InvocationHeader: header,
			Result:           raw.Result,
			Cancelled:        isCancelledResult(raw.Result),
		}, nil
	default:
		return nil, fmt.Errorf("%w: %q", errUnknownInvocationState, raw.State)
	}
}

func encodeToolInvocation(inv ToolInvocation) (json.RawMessage, error) {
	if inv == nil {
		return nil, fmt.Errorf("%w: nil", errUnknownInvocationState)
	}
	header := inv.Header()
	out := toolInvocationWire{
		State:      inv.State(),
		Step:       header.Step,
		ToolCallID: header.ToolCallID,
		ToolName:   header.ToolName,
		Args:       header.Args,
	}
	if resolved, ok := inv.(ResolvedCall); ok {
		out.Result = resolved.Result
		if len(out.Result) == 0 {
			out.Result = json.RawMessage("null")
		}
	}
	return json.Marshal(out)
}

// isCancelledResult recognises both the current marker and the double
// underscore variant older clients wrote.
func isCancelledResult(result json.RawMessage) bool {
	if len(result) == 0 {
		return false
	}
	var marker struct {
		Cancelled       bool `json:"cancelled"`
		LegacyCancelled bool `json:"__cancelled"`
	}
	if err := json.Unmarshal(result, &marker); err != nil {
		return false
	}
	return marker.Cancelled || marker.LegacyCancelled
}
