// Package openai adapts OpenAI-compatible chat-completions backends (Gemini
// and Groq both expose one) to the unified provider interface.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	oai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"chefmate/internal/config"
	"chefmate/internal/models"
	"chefmate/internal/provider"
)

const userAgent = "chefmate/0.1"

// Provider implements provider.Provider on top of the openai-go client.
type Provider struct {
	name   string
	client oai.Client
	models []models.Model
}

// New creates a provider for an OpenAI-compatible endpoint.
func New(name string, cfg config.ProviderConfig, client *http.Client) (*Provider, error) {
	if client == nil {
		return nil, errors.New("http client must not be nil")
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		return nil, errors.New("base url must not be empty")
	}

	opts := []option.RequestOption{
		option.WithBaseURL(baseURL),
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(client),
		option.WithMaxRetries(0),
		option.WithHeader("User-Agent", userAgent),
	}
	for k, v := range cfg.Headers {
		opts = append(opts, option.WithHeader(k, v))
	}

	modelsList := make([]models.Model, 0, len(cfg.Models))
	for _, model := range cfg.Models {
		modelsList = append(modelsList, models.Model{
			ID:          model.ID,
			Provider:    name,
			DisplayName: model.Name,
		})
	}

	return &Provider{
		name:   name,
		client: oai.NewClient(opts...),
		models: modelsList,
	}, nil
}

func (p *Provider) Name() string {
	return p.name
}

// Models returns the allow-listed models configured for this provider.
func (p *Provider) Models() []models.Model {
	result := make([]models.Model, len(p.models))
	copy(result, p.models)
	return result
}

// StreamChat runs one streamed chat-completions request.
func (p *Provider) StreamChat(ctx context.Context, req models.ChatRequest, emit models.EmitFunc) (*models.ChatResponse, error) {
	if emit == nil {
		emit = func(models.StreamEvent) error { return nil }
	}

	params, err := buildChatParams(req)
	if err != nil {
		return nil, err
	}

	stream := p.client.Chat.Completions.NewStreaming(ctx, params)
	defer stream.Close()

	acc := newAccumulator()
	for stream.Next() {
		if err := acc.add(stream.Current(), emit); err != nil {
			return nil, err
		}
	}
	if err := stream.Err(); err != nil {
		return nil, p.wrapError(err)
	}

	return acc.response(), nil
}

func (p *Provider) wrapError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var apiErr *oai.Error
	if errors.As(err, &apiErr) {
		return &provider.BackendError{
			Provider:   p.name,
			StatusCode: apiErr.StatusCode,
			Message:    apiErr.Message,
			Err:        err,
		}
	}
	return &provider.BackendError{
		Provider: p.name,
		Message:  fmt.Sprintf("stream failed: %v", err),
		Err:      err,
	}
}

func buildChatParams(req models.ChatRequest) (oai.ChatCompletionNewParams, error) {
	if strings.TrimSpace(req.Model) == "" {
		return oai.ChatCompletionNewParams{}, errors.New("model must not be empty")
	}

	messages := make([]oai.ChatCompletionMessageParamUnion, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, oai.SystemMessage(req.System))
	}
	for _, msg := range req.Messages {
		converted, err := toMessageParam(msg)
		if err != nil {
			return oai.ChatCompletionNewParams{}, err
		}
		messages = append(messages, converted)
	}

	params := oai.ChatCompletionNewParams{
		Model:    req.Model,
		Messages: messages,
		StreamOptions: oai.ChatCompletionStreamOptionsParam{
			IncludeUsage: oai.Bool(true),
		},
	}

	if len(req.Tools) > 0 {
		tools := make([]oai.ChatCompletionToolUnionParam, 0, len(req.Tools))
		for _, def := range req.Tools {
			fn := oai.FunctionDefinitionParam{
				Name:       def.Name,
				Parameters: oai.FunctionParameters(def.Parameters),
			}
			if def.Description != "" {
				fn.Description = oai.String(def.Description)
			}
			tools = append(tools, oai.ChatCompletionFunctionTool(fn))
		}
		params.Tools = tools
	}

	return params, nil
}

func toMessageParam(msg models.ChatMessage) (oai.ChatCompletionMessageParamUnion, error) {
	switch msg.Role {
	case models.RoleSystem:
		return oai.SystemMessage(msg.Content), nil
	case models.RoleUser:
		return oai.UserMessage(msg.Content), nil
	case models.RoleTool:
		if msg.ToolCallID == "" {
			return oai.ChatCompletionMessageParamUnion{}, errors.New("tool message must reference a tool call id")
		}
		return oai.ToolMessage(msg.Content, msg.ToolCallID), nil
	case models.RoleAssistant:
		if len(msg.ToolCalls) == 0 {
			return oai.AssistantMessage(msg.Content), nil
		}
		assistant := oai.ChatCompletionAssistantMessageParam{
			ToolCalls: make([]oai.ChatCompletionMessageToolCallUnionParam, 0, len(msg.ToolCalls)),
		}
		if msg.Content != "" {
			assistant.Content = oai.ChatCompletionAssistantMessageParamContentUnion{OfString: oai.String(msg.Content)}
		}
		for _, call := range msg.ToolCalls {
			args := string(call.Arguments)
			if args == "" {
				args = "{}"
			}
			assistant.ToolCalls = append(assistant.ToolCalls, oai.ChatCompletionMessageToolCallUnionParam{
				OfFunction: &oai.ChatCompletionMessageFunctionToolCallParam{
					ID: call.ID,
					Function: oai.ChatCompletionMessageFunctionToolCallFunctionParam{
						Name:      call.Name,
						Arguments: args,
					},
				},
			})
		}
		return oai.ChatCompletionMessageParamUnion{OfAssistant: &assistant}, nil
	default:
		return oai.ChatCompletionMessageParamUnion{}, fmt.Errorf("unsupported message role %q", msg.Role)
	}
}
