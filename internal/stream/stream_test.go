package stream

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chefmate/internal/models"
)

func TestWriterFrames(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	events := []models.StreamEvent{
		{Type: models.EventStepStart, MessageID: "msg-1"},
		{Type: models.EventTextDelta, Text: "Hello \"chef\"\n"},
		{Type: models.EventToolCallStart, ToolCallID: "c1", ToolName: "findRecipes"},
		{Type: models.EventToolCallDelta, ToolCallID: "c1", ArgsDelta: `{"cuisine":`},
		{Type: models.EventToolCall, ToolCallID: "c1", ToolName: "findRecipes", Args: json.RawMessage(`{"cuisine":"Italian"}`)},
		{Type: models.EventToolResult, ToolCallID: "c1", Result: []map[string]any{{"id": 1, "title": "Tiramisu"}}},
		{Type: models.EventStepFinish, FinishReason: models.FinishToolCalls, Usage: models.Usage{PromptTokens: 3, CompletionTokens: 2}, IsContinued: true},
		{Type: models.EventFinish, FinishReason: models.FinishStop, Usage: models.Usage{PromptTokens: 5, CompletionTokens: 4}},
		{Type: models.EventData, Data: map[string]any{"type": "quick-replies", "suggestions": []string{"Find another recipe"}}},
		{Type: models.EventError, Text: "request timed out"},
	}
	for _, ev := range events {
		require.NoError(t, w.Write(ev))
	}

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Len(t, lines, len(events))

	assert.Equal(t, `f:{"messageId":"msg-1"}`, lines[0])
	assert.Equal(t, `0:"Hello \"chef\"\n"`, lines[1])
	assert.Equal(t, `b:{"toolCallId":"c1","toolName":"findRecipes"}`, lines[2])
	assert.Equal(t, `c:{"toolCallId":"c1","argsTextDelta":"{\"cuisine\":"}`, lines[3])
	assert.Equal(t, `9:{"toolCallId":"c1","toolName":"findRecipes","args":{"cuisine":"Italian"}}`, lines[4])
	assert.Equal(t, `a:{"toolCallId":"c1","result":[{"id":1,"title":"Tiramisu"}]}`, lines[5])
	assert.Equal(t, `e:{"finishReason":"tool-calls","usage":{"promptTokens":3,"completionTokens":2},"isContinued":true}`, lines[6])
	assert.Equal(t, `d:{"finishReason":"stop","usage":{"promptTokens":5,"completionTokens":4}}`, lines[7])
	assert.Equal(t, `2:[{"suggestions":["Find another recipe"],"type":"quick-replies"}]`, lines[8])
	assert.Equal(t, `3:"request timed out"`, lines[9])
}

func TestWriterFlushes(t *testing.T) {
	rec := httptest.NewRecorder()
	w := NewWriter(rec)

	require.NoError(t, w.Write(models.StreamEvent{Type: models.EventTextDelta, Text: "hi"}))

	assert.True(t, rec.Flushed)
	assert.Equal(t, "0:\"hi\"\n", rec.Body.String())
}

func TestWriterDefaults(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	require.NoError(t, w.Write(models.StreamEvent{Type: models.EventToolCall, ToolCallID: "x", ToolName: "getNutritionById"}))
	require.NoError(t, w.Write(models.StreamEvent{Type: models.EventData, Data: []any{1, 2}}))

	assert.Equal(t, "9:{\"toolCallId\":\"x\",\"toolName\":\"getNutritionById\",\"args\":{}}\n2:[1,2]\n", buf.String())
	require.Error(t, w.Write(models.StreamEvent{Type: "bogus"}))
}
