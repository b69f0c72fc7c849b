package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageUnmarshalParts(t *testing.T) {
	data := []byte(`{
		"id": "m1",
		"role": "assistant",
		"content": "Here you go",
		"parts": [
			{"type": "step-start"},
			{"type": "text", "text": "Here you go"},
			{"type": "tool-invocation", "toolInvocation": {"state": "call", "step": 0, "toolCallId": "c1", "toolName": "findRecipes", "args": {"cuisine": "Italian"}}},
			{"type": "tool-invocation", "toolInvocation": {"state": "result", "step": 0, "toolCallId": "c2", "toolName": "getRecipeDetails", "args": {"recipeId": 1}, "result": {"title": "Soup"}}},
			{"type": "reasoning", "reasoning": "thinking"},
			{"type": "file", "mimeType": "image/png", "data": "AAAA"}
		]
	}`)

	var msg Message
	require.NoError(t, json.Unmarshal(data, &msg))

	assert.Equal(t, "m1", msg.ID)
	assert.Equal(t, RoleAssistant, msg.Role)
	require.Len(t, msg.Parts, 6)
	assert.IsType(t, StepStartPart{}, msg.Parts[0])
	assert.Equal(t, TextPart{Text: "Here you go"}, msg.Parts[1])

	pending, ok := msg.Parts[2].(ToolInvocationPart).Invocation.(PendingCall)
	require.True(t, ok)
	assert.Equal(t, "c1", pending.ToolCallID)
	assert.JSONEq(t, `{"cuisine":"Italian"}`, string(pending.Args))

	resolved, ok := msg.Parts[3].(ToolInvocationPart).Invocation.(ResolvedCall)
	require.True(t, ok)
	assert.False(t, resolved.Cancelled)
	assert.JSONEq(t, `{"title":"Soup"}`, string(resolved.Result))

	assert.Equal(t, ReasoningPart{Reasoning: "thinking"}, msg.Parts[4])
	assert.Equal(t, FilePart{MimeType: "image/png", Data: "AAAA"}, msg.Parts[5])
}

func TestMessageUnmarshalContentSegments(t *testing.T) {
	var msg Message
	require.NoError(t, json.Unmarshal([]byte(`{"role":"user","content":[{"type":"text","text":"Suggest "},{"type":"text","text":"pasta"}]}`), &msg))
	assert.Equal(t, "Suggest pasta", msg.Content)
	assert.Equal(t, "Suggest pasta", msg.Text())
}

func TestMessageUnmarshalRejectsUnknownState(t *testing.T) {
	var msg Message
	err := json.Unmarshal([]byte(`{"role":"assistant","toolInvocations":[{"state":"running","toolCallId":"x"}]}`), &msg)
	require.Error(t, err)
	assert.ErrorIs(t, err, errUnknownInvocationState)
}

func TestMessageUnmarshalRejectsUnknownPart(t *testing.T) {
	var msg Message
	err := json.Unmarshal([]byte(`{"role":"assistant","parts":[{"type":"hologram"}]}`), &msg)
	require.Error(t, err)
}

func TestMessageTextFallsBackToParts(t *testing.T) {
	msg := Message{Role: RoleAssistant, Parts: []Part{TextPart{Text: "1. Tiramisu\n"}, StepStartPart{}, TextPart{Text: "2. Cannoli"}}}
	assert.Equal(t, "1. Tiramisu\n2. Cannoli", msg.Text())
}

func TestPendingCallCancel(t *testing.T) {
	pending := PendingCall{InvocationHeader{ToolCallID: "c1", ToolName: "findRecipes"}}
	resolved := pending.Cancel()

	assert.Equal(t, StateResult, resolved.State())
	assert.True(t, resolved.Cancelled)
	assert.JSONEq(t, `{"content":"Tool execution was cancelled","cancelled":true}`, string(resolved.Result))
	assert.Equal(t, "c1", resolved.ToolCallID)
}

func TestMessageRoundTripKeepsCancellation(t *testing.T) {
	msg := Message{
		ID:   "a1",
		Role: RoleAssistant,
		Parts: []Part{
			ToolInvocationPart{Invocation: PendingCall{InvocationHeader{ToolCallID: "c1", ToolName: "findRecipes", Args: json.RawMessage(`{}`)}}.Cancel()},
		},
	}

	encoded, err := json.Marshal(msg)
	require.NoError(t, err)

	var decoded Message
	require.NoError(t, json.Unmarshal(encoded, &decoded))
	require.Len(t, decoded.Parts, 1)
	resolved, ok := decoded.Parts[0].(ToolInvocationPart).Invocation.(ResolvedCall)
	require.True(t, ok)
	assert.True(t, resolved.Cancelled)
}

func TestLegacyCancelledMarker(t *testing.T) {
	assert.True(t, isCancelledResult(json.RawMessage(`{"content":"x","__cancelled":true}`)))
	assert.False(t, isCancelledResult(json.RawMessage(`[1,2]`)))
	assert.False(t, isCancelledResult(nil))
}
