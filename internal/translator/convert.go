package translator

import (
	"encoding/json"
	"sort"

	"chefmate/internal/models"
)

// ToChatMessages flattens UI messages into the unified schema. Assistant
// messages are split into one assistant/tool exchange per step; resolved
// tool invocations become tool messages. Invocations without a result and
// data messages are dropped.
func ToChatMessages(messages []models.Message) []models.ChatMessage {
	out := make([]models.ChatMessage, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case models.RoleUser, models.RoleSystem:
			out = append(out, models.ChatMessage{Role: msg.Role, Content: msg.Text()})
		case models.RoleAssistant:
			if len(msg.Parts) > 0 {
				out = append(out, assistantFromParts(msg.Parts)...)
			} else {
				out = append(out, assistantFromInvocations(msg.Content, msg.ToolInvocations)...)
			}
		}
	}
	return out
}

// step accumulates the text and tool invocations of one generation step.
type step struct {
	text        string
	invocations []models.ResolvedCall
}

func (s step) empty() bool {
	return s.text == "" && len(s.invocations) == 0
}

func (s step) messages() []models.ChatMessage {
	if s.empty() {
		return nil
	}

	assistant := models.ChatMessage{Role: models.RoleAssistant, Content: s.text}
	results := make([]models.ChatMessage, 0, len(s.invocations))
	for _, inv := range s.invocations {
		assistant.ToolCalls = append(assistant.ToolCalls, models.ToolCall{
			ID:        inv.ToolCallID,
			Name:      inv.ToolName,
			Arguments: inv.Args,
		})
		results = append(results, models.ChatMessage{
			Role:       models.RoleTool,
			ToolCallID: inv.ToolCallID,
			Content:    resultContent(inv.Result),
		})
	}
	return append([]models.ChatMessage{assistant}, results...)
}

func assistantFromParts(parts []models.Part) []models.ChatMessage {
	var (
		out     []models.ChatMessage
		current step
	)
	flush := func() {
		out = append(out, current.messages()...)
		current = step{}
	}

	for _, part := range parts {
		switch p := part.(type) {
		case models.StepStartPart:
			flush()
		case models.TextPart:
			if len(current.invocations) > 0 {
				flush()
			}
			current.text += p.Text
		case models.ToolInvocationPart:
			if resolved, ok := p.Invocation.(models.ResolvedCall); ok {
				current.invocations = append(current.invocations, resolved)
			}
		case models.ReasoningPart, models.FilePart, models.SourcePart:
		}
	}
	flush()
	return out
}

func assistantFromInvocations(content string, invocations []models.ToolInvocation) []models.ChatMessage {
	bySteps := make(map[int][]models.ResolvedCall)
	for _, inv := range invocations {
		if resolved, ok := inv.(models.ResolvedCall); ok {
			bySteps[resolved.Step] = append(bySteps[resolved.Step], resolved)
		}
	}

	steps := make([]int, 0, len(bySteps))
	for s := range bySteps {
		steps = append(steps, s)
	}
	sort.Ints(steps)

	var out []models.ChatMessage
	for _, s := range steps {
		out = append(out, step{invocations: bySteps[s]}.messages()...)
	}
	return append(out, step{text: content}.messages()...)
}

func resultContent(result json.RawMessage) string {
	if len(result) == 0 {
		return "null"
	}
	return string(result)
}
