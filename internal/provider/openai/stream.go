package openai

import (
	"encoding/json"
	"strings"

	"github.com/google/uuid"
	oai "github.com/openai/openai-go/v3"

	"chefmate/internal/models"
)

// toolCallBuilder assembles one streamed tool call.
type toolCallBuilder struct {
	id      string
	name    string
	args    strings.Builder
	emitted int
	started bool
}

// accumulator folds chunks into a ChatResponse. Tool calls are keyed by the
// backend's index; a new id on an occupied index starts a separate call.
type accumulator struct {
	id     string
	text   strings.Builder
	calls  map[int64]*toolCallBuilder
	order  []int64
	finish string
	usage  models.Usage
}

func newAccumulator() *accumulator {
	return &accumulator{calls: make(map[int64]*toolCallBuilder)}
}

func (a *accumulator) add(chunk oai.ChatCompletionChunk, emit models.EmitFunc) error {
	if a.id == "" {
		a.id = chunk.ID
	}
	if chunk.Usage.PromptTokens > 0 || chunk.Usage.CompletionTokens > 0 {
		a.usage = models.Usage{
			PromptTokens:     int(chunk.Usage.PromptTokens),
			CompletionTokens: int(chunk.Usage.CompletionTokens),
		}
	}

	for _, choice := range chunk.Choices {
		if choice.Index != 0 {
			continue
		}

		if choice.Delta.Content != "" {
			a.text.WriteString(choice.Delta.Content)
			if err := emit(models.StreamEvent{Type: models.EventTextDelta, Text: choice.Delta.Content}); err != nil {
				return err
			}
		}

		for _, delta := range choice.Delta.ToolCalls {
			builder := a.builderFor(delta)
			if delta.ID != "" {
				builder.id = delta.ID
			}
			if builder.name == "" {
				builder.name = delta.Function.Name
			}
			builder.args.WriteString(delta.Function.Arguments)

			if err := a.flush(builder, emit); err != nil {
				return err
			}
		}

		if choice.FinishReason != "" {
			a.finish = choice.FinishReason
		}
	}
	return nil
}

func (a *accumulator) builderFor(delta oai.ChatCompletionChunkChoiceDeltaToolCall) *toolCallBuilder {
	key := delta.Index
	if existing, ok := a.calls[key]; ok {
		if delta.ID == "" || existing.id == "" || existing.id == delta.ID {
			return existing
		}
		key = -int64(len(a.order)) - 1
	}

	builder := &toolCallBuilder{}
	a.calls[key] = builder
	a.order = append(a.order, key)
	return builder
}

// flush announces a call once its name is known and forwards argument text
// that has not been emitted yet.
func (a *accumulator) flush(builder *toolCallBuilder, emit models.EmitFunc) error {
	if builder.name == "" {
		return nil
	}
	if !builder.started {
		if builder.id == "" {
			builder.id = "call_" + uuid.NewString()
		}
		builder.started = true
		if err := emit(models.StreamEvent{
			Type:       models.EventToolCallStart,
			ToolCallID: builder.id,
			ToolName:   builder.name,
		}); err != nil {
			return err
		}
	}

	args := builder.args.String()
	if len(args) == builder.emitted {
		return nil
	}
	delta := args[builder.emitted:]
	builder.emitted = len(args)
	return emit(models.StreamEvent{
		Type:       models.EventToolCallDelta,
		ToolCallID: builder.id,
		ToolName:   builder.name,
		ArgsDelta:  delta,
	})
}

func (a *accumulator) response() *models.ChatResponse {
	calls := make([]models.ToolCall, 0, len(a.order))
	for _, key := range a.order {
		builder := a.calls[key]
		if builder.name == "" {
			continue
		}
		if builder.id == "" {
			builder.id = "call_" + uuid.NewString()
		}
		calls = append(calls, models.ToolCall{
			ID:        builder.id,
			Name:      builder.name,
			Arguments: normaliseArguments(builder.args.String()),
		})
	}

	return &models.ChatResponse{
		ID: a.id,
		Message: models.ChatMessage{
			Role:      models.RoleAssistant,
			Content:   a.text.String(),
			ToolCalls: calls,
		},
		FinishReason: mapFinishReason(a.finish, len(calls) > 0),
		Usage:        a.usage,
	}
}

// normaliseArguments guarantees valid JSON. Malformed text is kept as a JSON
// string so argument validation can report it.
func normaliseArguments(raw string) json.RawMessage {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return json.RawMessage("{}")
	}
	if json.Valid([]byte(trimmed)) {
		return json.RawMessage(trimmed)
	}
	encoded, _ := json.Marshal(trimmed)
	return encoded
}

func mapFinishReason(reason string, hasToolCalls bool) string {
	if hasToolCalls {
		return models.FinishToolCalls
	}
	switch reason {
	case "stop":
		return models.FinishStop
	case "length":
		return models.FinishLength
	case "content_filter":
		return models.FinishFiltered
	case "tool_calls", "function_call":
		return models.FinishToolCalls
	case "":
		return models.FinishUnknown
	default:
		return models.FinishOther
	}
}
