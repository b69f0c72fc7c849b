package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	errUnknownInvocationState = errors.New("unknown tool invocation state")
	errMissingPartType        = errors.New("message part type is required")
)

// Message is a chat message as held by the client session. Its content is an
// ordered sequence of parts.
type Message struct {
	ID      string
	Role    string
	Content string
	Parts   []Part
	// ToolInvocations mirrors the tool-invocation parts for clients that still
	// send the flat representation.
	ToolInvocations []ToolInvocation
}

// Text returns the message's plain text, preferring the flattened content and
// falling back to the concatenated text parts.
func (m Message) Text() string {
	if m.Content != "" {
		return m.Content
	}
	var builder strings.Builder
	for _, part := range m.Parts {
		if text, ok := part.(TextPart); ok {
			builder.WriteString(text.Text)
		}
	}
	return builder.String()
}

// Clone returns a copy whose part and invocation slices can be modified
// without touching the receiver.
func (m Message) Clone() Message {
	out := m
	if m.Parts != nil {
		out.Parts = append([]Part(nil), m.Parts...)
	}
	if m.ToolInvocations != nil {
		out.ToolInvocations = append([]ToolInvocation(nil), m.ToolInvocations...)
	}
	return out
}

type messageWire struct {
	ID              string            `json:"id,omitempty"`
	Role            string            `json:"role"`
	Content         json.RawMessage   `json:"content,omitempty"`
	Parts           []json.RawMessage `json:"parts,omitempty"`
	ToolInvocations []json.RawMessage `json:"toolInvocations,omitempty"`
}

// UnmarshalJSON accepts string content, arrays of text segments, and typed parts.
func (m *Message) UnmarshalJSON(data []byte) error {
	var raw messageWire
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode message: %w", err)
	}

	content, err := extractContent(raw.Content)
	if err != nil {
		return err
	}

	parts := make([]Part, 0, len(raw.Parts))
	for i, rawPart := range raw.Parts {
		part, err := decodePart(rawPart)
		if err != nil {
			return fmt.Errorf("part[%d]: %w", i, err)
		}
		parts = append(parts, part)
	}

	var invocations []ToolInvocation
	for i, rawInv := range raw.ToolInvocations {
		inv, err := decodeToolInvocation(rawInv)
		if err != nil {
			return fmt.Errorf("toolInvocations[%d]: %w", i, err)
		}
		invocations = append(invocations, inv)
	}

	m.ID = raw.ID
	m.Role = strings.TrimSpace(raw.Role)
	m.Content = content
	m.Parts = parts
	m.ToolInvocations = invocations
	return nil
}

// MarshalJSON emits the chat UI wire shape.
func (m Message) MarshalJSON() ([]byte, error) {
	out := messageWire{
		ID:   m.ID,
		Role: m.Role,
	}
	content, err := json.Marshal(m.Content)
	if err != nil {
		return nil, err
	}
	out.Content = content

	for _, part := range m.Parts {
		encoded, err := encodePart(part)
		if err != nil {
			return nil, err
		}
		out.Parts = append(out.Parts, encoded)
	}
	for _, inv := range m.ToolInvocations {
		encoded, err := encodeToolInvocation(inv)
		if err != nil {
			return nil, err
		}
		out.ToolInvocations = append(out.ToolInvocations, encoded)
	}
	return json.Marshal(out)
}

func extractContent(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}

	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return text, nil
	}

	var segments []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	if err := json.Unmarshal(raw, &segments); err == nil {
		var builder strings.Builder
		for _, segment := range segments {
			if segment.Type == "text" {
				builder.WriteString(segment.Text)
			}
		}
		return builder.String(), nil
	}

	return "", errors.New("unsupported message content structure")
}

// Part is one element of a message's content. The set of implementations is
// closed to this package.
type Part interface {
	PartType() string
	isPart()
}

// Part type discriminators.
const (
	PartText           = "text"
	PartReasoning      = "reasoning"
	PartToolInvocation = "tool-invocation"
	PartFile           = "file"
	PartStepStart      = "step-start"
	PartSource         = "source"
)

// TextPart carries assistant or user text.
type TextPart struct {
	Text string
}

// ReasoningPart carries model reasoning output.
type ReasoningPart struct {
	Reasoning string
	Details   json.RawMessage
}

// ToolInvocationPart wraps a tool invocation in one of its states.
type ToolInvocationPart struct {
	Invocation ToolInvocation
}

// FilePart carries an attachment.
type FilePart struct {
	MimeType string
	Data     string
}

// StepStartPart marks the beginning of a generation step.
type StepStartPart struct{}

// SourcePart carries a citation; its payload is passed through untouched.
type SourcePart struct {
	Raw json.RawMessage
}

func (TextPart) PartType() string           { return PartText }
func (ReasoningPart) PartType() string      { return PartReasoning }
func (ToolInvocationPart) PartType() string { return PartToolInvocation }
func (FilePart) PartType() string           { return PartFile }
func (StepStartPart) PartType() string      { return PartStepStart }
func (SourcePart) PartType() string         { return PartSource }

func (TextPart) isPart()           {}
func (ReasoningPart) isPart()      {}
func (ToolInvocationPart) isPart() {}
func (FilePart) isPart()           {}
func (StepStartPart) isPart()      {}
func (SourcePart) isPart()         {}

type partWire struct {
	Type           string          `json:"type"`
	Text           string          `json:"text,omitempty"`
	Reasoning      string          `json:"reasoning,omitempty"`
	Details        json.RawMessage `json:"details,omitempty"`
	ToolInvocation json.RawMessage `json:"toolInvocation,omitempty"`
	MimeType       string          `json:"mimeType,omitempty"`
	Data           string          `json:"data,omitempty"`
}

func decodePart(data json.RawMessage) (Part, error) {
	var raw partWire
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode part: %w", err)
	}

	switch raw.Type {
	case PartText:
		return TextPart{Text: raw.Text}, nil
	case PartReasoning:
		return ReasoningPart{Reasoning: raw.Reasoning, Details: raw.Details}, nil
	case PartToolInvocation:
		inv, err := decodeToolInvocation(raw.ToolInvocation)
		if err != nil {
			return nil, err
		}
		return ToolInvocationPart{Invocation: inv}, nil
	case PartFile:
		return FilePart{MimeType: raw.MimeType, Data: raw.Data}, nil
	case PartStepStart:
		return StepStartPart{}, nil
	case PartSource:
		return SourcePart{Raw: append(json.RawMessage(nil), data...)}, nil
	case "":
		return nil, errMissingPartType
	default:
		return nil, fmt.Errorf("unsupported part type %q", raw.Type)
	}
}

func encodePart(part Part) (json.RawMessage, error) {
	switch p := part.(type) {
	case TextPart:
		return json.Marshal(struct {
			Type string `json:"type"`
			Text string `json:"text"`
		}{PartText, p.Text})
	case ReasoningPart:
		return json.Marshal(partWire{Type: PartReasoning, Reasoning: p.Reasoning, Details: p.Details})
	case ToolInvocationPart:
		inv, err := encodeToolInvocation(p.Invocation)
		if err != nil {
			return nil, err
		}
		return json.Marshal(partWire{Type: PartToolInvocation, ToolInvocation: inv})
	case FilePart:
		return json.Marshal(partWire{Type: PartFile, MimeType: p.MimeType, Data: p.Data})
	case StepStartPart:
		return json.Marshal(partWire{Type: PartStepStart})
	case SourcePart:
		return p.Raw, nil
	default:
		return nil, fmt.Errorf("unsupported part %T", part)
	}
}
