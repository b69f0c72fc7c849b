package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chefmate/internal/config"
	"chefmate/internal/models"
	"chefmate/internal/provider"
)

func chunk(body string) string {
	return `{"id":"chatcmpl-1","object":"chat.completion.chunk","created":1,"model":"test",` + body + `}`
}

func sseServer(t *testing.T, capture *map[string]any, frames ...string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"), r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		if capture != nil {
			raw, err := io.ReadAll(r.Body)
			require.NoError(t, err)
			require.NoError(t, json.Unmarshal(raw, capture))
		}

		w.Header().Set("Content-Type", "text/event-stream")
		for _, frame := range frames {
			fmt.Fprintf(w, "data: %s\n\n", frame)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	t.Cleanup(server.Close)
	return server
}

func newTestProvider(t *testing.T, baseURL string) *Provider {
	t.Helper()
	p, err := New("groq", config.ProviderConfig{
		APIKey:  "test-key",
		BaseURL: baseURL + "/openai/v1",
		Models:  []config.ModelConfig{{ID: "llama-3.3-70b-versatile", Name: "Llama 3.3 70B"}},
	}, &http.Client{Timeout: 5 * time.Second})
	require.NoError(t, err)
	return p
}

func collect(events *[]models.StreamEvent) models.EmitFunc {
	return func(ev models.StreamEvent) error {
		*events = append(*events, ev)
		return nil
	}
}

func TestStreamChatText(t *testing.T) {
	var body map[string]any
	server := sseServer(t, &body,
		chunk(`"choices":[{"index":0,"delta":{"role":"assistant","content":"1. Tira"},"finish_reason":null}]`),
		chunk(`"choices":[{"index":0,"delta":{"content":"misu"},"finish_reason":"stop"}]`),
		chunk(`"choices":[],"usage":{"prompt_tokens":12,"completion_tokens":4,"total_tokens":16}`),
	)
	p := newTestProvider(t, server.URL)

	var events []models.StreamEvent
	resp, err := p.StreamChat(context.Background(), models.ChatRequest{
		Model:    "llama-3.3-70b-versatile",
		System:   "You are a chef.",
		Messages: []models.ChatMessage{{Role: models.RoleUser, Content: "Suggest a dessert"}},
	}, collect(&events))
	require.NoError(t, err)

	assert.Equal(t, "chatcmpl-1", resp.ID)
	assert.Equal(t, "1. Tiramisu", resp.Message.Content)
	assert.Equal(t, models.FinishStop, resp.FinishReason)
	assert.Equal(t, models.Usage{PromptTokens: 12, CompletionTokens: 4}, resp.Usage)
	assert.Empty(t, resp.Message.ToolCalls)

	require.Len(t, events, 2)
	assert.Equal(t, models.EventTextDelta, events[0].Type)
	assert.Equal(t, "1. Tira", events[0].Text)

	assert.Equal(t, "llama-3.3-70b-versatile", body["model"])
	assert.Equal(t, true, body["stream"])
	messages := body["messages"].([]any)
	require.Len(t, messages, 2)
	assert.Equal(t, "system", messages[0].(map[string]any)["role"])
	assert.Equal(t, "You are a chef.", messages[0].(map[string]any)["content"])
	_, hasTools := body["tools"]
	assert.False(t, hasTools)
}

func TestStreamChatToolCalls(t *testing.T) {
	var body map[string]any
	server := sseServer(t, &body,
		chunk(`"choices":[{"index":0,"delta":{"role":"assistant","tool_calls":[{"index":0,"id":"call_a","type":"function","function":{"name":"findRecipes","arguments":""}}]},"finish_reason":null}]`),
		chunk(`"choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"function":{"arguments":"{\"cuisine\":"}}]},"finish_reason":null}]`),
		chunk(`"choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"function":{"arguments":"\"Italian\"}"}}]},"finish_reason":null}]`),
		chunk(`"choices":[{"index":0,"delta":{"tool_calls":[{"index":1,"function":{"name":"getNutritionById","arguments":"{\"recipeId\":7}"}}]},"finish_reason":"tool_calls"}]`),
	)
	p := newTestProvider(t, server.URL)

	var events []models.StreamEvent
	resp, err := p.StreamChat(context.Background(), models.ChatRequest{
		Model: "gemini-2.5-flash",
		Messages: []models.ChatMessage{
			{Role: models.RoleUser, Content: "Italian please"},
			{Role: models.RoleAssistant, ToolCalls: []models.ToolCall{{ID: "prev", Name: "findRecipes", Arguments: json.RawMessage(`{}`)}}},
			{Role: models.RoleTool, ToolCallID: "prev", Content: `[]`},
		},
		Tools: []models.ToolDefinition{{
			Name:        "findRecipes",
			Description: "Finds recipes.",
			Parameters:  map[string]any{"type": "object"},
		}},
	}, collect(&events))
	require.NoError(t, err)

	assert.Equal(t, models.FinishToolCalls, resp.FinishReason)
	require.Len(t, resp.Message.ToolCalls, 2)

	first := resp.Message.ToolCalls[0]
	assert.Equal(t, "call_a", first.ID)
	assert.Equal(t, "findRecipes", first.Name)
	assert.JSONEq(t, `{"cuisine":"Italian"}`, string(first.Arguments))

	second := resp.Message.ToolCalls[1]
	assert.True(t, strings.HasPrefix(second.ID, "call_"), "missing ids are generated")
	assert.Equal(t, "getNutritionById", second.Name)

	var starts, deltas int
	var streamedArgs strings.Builder
	for _, ev := range events {
		switch ev.Type {
		case models.EventToolCallStart:
			starts++
		case models.EventToolCallDelta:
			deltas++
			if ev.ToolCallID == "call_a" {
				streamedArgs.WriteString(ev.ArgsDelta)
			}
		}
	}
	assert.Equal(t, 2, starts)
	assert.Equal(t, 3, deltas)
	assert.Equal(t, `{"cuisine":"Italian"}`, streamedArgs.String())

	tools := body["tools"].([]any)
	require.Len(t, tools, 1)
	fn := tools[0].(map[string]any)["function"].(map[string]any)
	assert.Equal(t, "findRecipes", fn["name"])

	messages := body["messages"].([]any)
	require.Len(t, messages, 3)
	assistant := messages[1].(map[string]any)
	toolCalls := assistant["tool_calls"].([]any)
	require.Len(t, toolCalls, 1)
	assert.Equal(t, "prev", toolCalls[0].(map[string]any)["id"])
	toolMsg := messages[2].(map[string]any)
	assert.Equal(t, "tool", toolMsg["role"])
	assert.Equal(t, "prev", toolMsg["tool_call_id"])
}

func TestStreamChatBackendError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"error":{"message":"The model does not exist","type":"invalid_request_error","code":"model_not_found"}}`)
	}))
	t.Cleanup(server.Close)
	p := newTestProvider(t, server.URL)

	_, err := p.StreamChat(context.Background(), models.ChatRequest{
		Model:    "nope",
		Messages: []models.ChatMessage{{Role: models.RoleUser, Content: "hi"}},
	}, nil)
	require.Error(t, err)

	var backendErr *provider.BackendError
	require.True(t, errors.As(err, &backendErr))
	assert.Equal(t, "groq", backendErr.Provider)
	assert.Equal(t, http.StatusNotFound, backendErr.StatusCode)
	assert.Equal(t, "The model does not exist", backendErr.Message)
}

func TestStreamChatEmitErrorAborts(t *testing.T) {
	server := sseServer(t, nil,
		chunk(`"choices":[{"index":0,"delta":{"content":"a"},"finish_reason":null}]`),
		chunk(`"choices":[{"index":0,"delta":{"content":"b"},"finish_reason":"stop"}]`),
	)
	p := newTestProvider(t, server.URL)

	stop := errors.New("client went away")
	_, err := p.StreamChat(context.Background(), models.ChatRequest{
		Model:    "m",
		Messages: []models.ChatMessage{{Role: models.RoleUser, Content: "hi"}},
	}, func(models.StreamEvent) error { return stop })
	require.ErrorIs(t, err, stop)
}

func TestBuildChatParamsRejectsUnknownRole(t *testing.T) {
	_, err := buildChatParams(models.ChatRequest{
		Model:    "m",
		Messages: []models.ChatMessage{{Role: "narrator", Content: "x"}},
	})
	require.Error(t, err)

	_, err = buildChatParams(models.ChatRequest{Messages: []models.ChatMessage{{Role: models.RoleUser}}})
	require.Error(t, err)
}

func TestNormaliseArguments(t *testing.T) {
	assert.JSONEq(t, `{}`, string(normaliseArguments("  ")))
	assert.JSONEq(t, `{"a":1}`, string(normaliseArguments(`{"a":1}`)))
	assert.JSONEq(t, `"{\"a\":"`, string(normaliseArguments(`{"a":`)))
}

func TestMapFinishReason(t *testing.T) {
	assert.Equal(t, models.FinishToolCalls, mapFinishReason("stop", true))
	assert.Equal(t, models.FinishStop, mapFinishReason("stop", false))
	assert.Equal(t, models.FinishLength, mapFinishReason("length", false))
	assert.Equal(t, models.FinishFiltered, mapFinishReason("content_filter", false))
	assert.Equal(t, models.FinishUnknown, mapFinishReason("", false))
	assert.Equal(t, models.FinishOther, mapFinishReason("recitation", false))
}

func TestModels(t *testing.T) {
	p := newTestProvider(t, "http://localhost")
	assert.Equal(t, []models.Model{{ID: "llama-3.3-70b-versatile", Provider: "groq", DisplayName: "Llama 3.3 70B"}}, p.Models())
}
