// Package chat drives one conversation turn: it streams model output, runs
// the requested recipe tools and feeds their results back until the model
// answers in text or the step limit is reached.
package chat

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"chefmate/internal/models"
	"chefmate/internal/quickreply"
	"chefmate/internal/tools"
	"chefmate/internal/translator"
)

//go:embed prompt.md
var systemPrompt string

// SystemPrompt returns the built-in chef persona prompt.
func SystemPrompt() string {
	return systemPrompt
}

const (
	DefaultMaxSteps = 10
	DefaultTimeout  = 30 * time.Second

	toolConcurrency = 4
)

var (
	// ErrTimeout is returned when a turn exceeds its time limit.
	ErrTimeout = errors.New("chat turn timed out")
	// ErrNoMessages is returned for a turn without any model-visible history.
	ErrNoMessages = errors.New("conversation has no messages")
)

// Streamer streams one generation step from the model selected by req.Model.
type Streamer interface {
	StreamChat(ctx context.Context, req models.ChatRequest, emit models.EmitFunc) (*models.ChatResponse, models.Model, error)
}

// ToolRunner exposes tool schemas and executes tool calls.
type ToolRunner interface {
	Definitions() []models.ToolDefinition
	Execute(ctx context.Context, call models.ToolCall) any
}

// Options tunes an Orchestrator. Zero values fall back to the defaults.
type Options struct {
	MaxSteps     int
	Timeout      time.Duration
	SystemPrompt string
}

// Orchestrator runs conversation turns.
type Orchestrator struct {
	streamer Streamer
	tools    ToolRunner
	opts     Options
	newID    func() string
}

// New constructs an Orchestrator.
func New(streamer Streamer, runner ToolRunner, opts Options) *Orchestrator {
	if opts.MaxSteps <= 0 {
		opts.MaxSteps = DefaultMaxSteps
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if strings.TrimSpace(opts.SystemPrompt) == "" {
		opts.SystemPrompt = systemPrompt
	}
	return &Orchestrator{
		streamer: streamer,
		tools:    runner,
		opts:     opts,
		newID:    func() string { return "msg-" + uuid.NewString() },
	}
}

// ConverseRequest is one turn: the full client-side history plus the
// requested model id.
type ConverseRequest struct {
	Messages []models.Message
	Model    string
}

// Result summarises a completed turn.
type Result struct {
	MessageID    string
	Model        models.Model
	Text         string
	Steps        int
	FinishReason string
	Usage        models.Usage
	Suggestions  []string
}

// Converse runs one turn and reports its progress through emit. Nothing is
// emitted before the model produces its first output, so an error returned
// without any event means the turn never started.
func (o *Orchestrator) Converse(ctx context.Context, req ConverseRequest, emit models.EmitFunc) (*Result, error) {
	messages, cancelled := CancelPendingToolCalls(req.Messages)
	if cancelled > 0 {
		slog.Info("cancelled dangling tool calls", "count", cancelled)
	}

	history := translator.ToChatMessages(messages)
	if len(history) == 0 {
		return nil, ErrNoMessages
	}

	ctx = tools.WithLedger(ctx, tools.NewLedger(SurfacedRecipeIDs(messages)...))
	ctx, cancel := context.WithTimeout(ctx, o.opts.Timeout)
	defer cancel()

	result := &Result{MessageID: o.newID()}
	definitions := o.tools.Definitions()
	var texts []string

	for step := 0; step < o.opts.MaxSteps; step++ {
		started := false
		startStep := func() error {
			if started {
				return nil
			}
			started = true
			return emit(models.StreamEvent{Type: models.EventStepStart, MessageID: result.MessageID})
		}
		stepEmit := func(ev models.StreamEvent) error {
			if err := startStep(); err != nil {
				return err
			}
			return emit(ev)
		}

		resp, model, err := o.streamer.StreamChat(ctx, models.ChatRequest{
			Model:    req.Model,
			System:   o.opts.SystemPrompt,
			Messages: history,
			Tools:    definitions,
		}, stepEmit)
		if err != nil {
			return result, o.turnError(ctx, err)
		}
		if resp == nil {
			return result, fmt.Errorf("model %s returned an empty response", model.ID)
		}
		if err := startStep(); err != nil {
			return result, err
		}

		result.Model = model
		result.Steps = step + 1
		result.Usage = result.Usage.Add(resp.Usage)
		result.FinishReason = resp.FinishReason
		if resp.Message.Content != "" {
			texts = append(texts, resp.Message.Content)
		}

		calls := resp.Message.ToolCalls
		slog.Info("chat step finished",
			"model", model.ID,
			"provider", model.Provider,
			"step", step+1,
			"finish_reason", resp.FinishReason,
			"tool_calls", len(calls),
			"prompt_tokens", resp.Usage.PromptTokens,
			"completion_tokens", resp.Usage.CompletionTokens,
		)

		history = append(history, resp.Message)
		if len(calls) == 0 {
			if err := emit(models.StreamEvent{Type: models.EventStepFinish, FinishReason: resp.FinishReason, Usage: resp.Usage}); err != nil {
				return result, err
			}
			break
		}

		for _, call := range calls {
			if err := emit(models.StreamEvent{Type: models.EventToolCall, ToolCallID: call.ID, ToolName: call.Name, Args: call.Arguments}); err != nil {
				return result, err
			}
		}

		outputs, err := o.runTools(ctx, calls)
		if err != nil {
			return result, o.turnError(ctx, err)
		}

		for i, call := range calls {
			if err := emit(models.StreamEvent{Type: models.EventToolResult, ToolCallID: call.ID, Result: outputs[i]}); err != nil {
				return result, err
			}
			content, err := json.Marshal(outputs[i])
			if err != nil {
				return result, fmt.Errorf("encode %s result: %w", call.Name, err)
			}
			history = append(history, models.ChatMessage{Role: models.RoleTool, ToolCallID: call.ID, Content: string(content)})
		}

		if err := emit(models.StreamEvent{Type: models.EventStepFinish, FinishReason: resp.FinishReason, Usage: resp.Usage, IsContinued: true}); err != nil {
			return result, err
		}
	}

	if result.Steps == o.opts.MaxSteps && result.FinishReason == models.FinishToolCalls {
		slog.Warn("chat step limit reached", "steps", result.Steps)
	}

	if err := emit(models.StreamEvent{Type: models.EventFinish, FinishReason: result.FinishReason, Usage: result.Usage}); err != nil {
		return result, err
	}

	result.Text = strings.Join(texts, "\n")
	result.Suggestions = quickreply.Infer(result.Text)
	if err := emit(models.StreamEvent{Type: models.EventData, Data: map[string]any{
		"type":        "quick-replies",
		"suggestions": result.Suggestions,
	}}); err != nil {
		return result, err
	}
	return result, nil
}

// runTools executes calls concurrently and returns their outputs in call
// order. Tool failures are values, so only context errors are reported.
func (o *Orchestrator) runTools(ctx context.Context, calls []models.ToolCall) ([]any, error) {
	outputs := make([]any, len(calls))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(toolConcurrency)
	for i, call := range calls {
		g.Go(func() error {
			outputs[i] = o.tools.Execute(gctx, call)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return outputs, nil
}

func (o *Orchestrator) turnError(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w after %s", ErrTimeout, o.opts.Timeout)
	}
	return err
}
