// Package tools exposes the recipe catalog to the model as named functions
// with typed, validated parameters.
package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"chefmate/internal/models"
)

// ErrorResult is the only failure shape a tool hands back to the model.
type ErrorResult struct {
	Error string `json:"error"`
}

// errorf builds an ErrorResult.
func errorf(format string, args ...any) ErrorResult {
	return ErrorResult{Error: fmt.Sprintf(format, args...)}
}

// Tool is a callable capability.
type Tool struct {
	Name        string
	Description string
	Parameters  map[string]any
	// Execute receives the raw JSON arguments produced by the model and
	// returns either a success payload or an ErrorResult.
	Execute func(ctx context.Context, args json.RawMessage) any
}

// Registry maps tool names to tools. It is populated at startup and
// read-only afterwards.
type Registry struct {
	tools map[string]Tool
	order []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register inserts a tool when its name is not in use.
func (r *Registry) Register(tool Tool) error {
	if tool.Name == "" {
		return errors.New("tool name is empty")
	}
	if tool.Execute == nil {
		return fmt.Errorf("tool %s has no execute function", tool.Name)
	}
	if _, exists := r.tools[tool.Name]; exists {
		return fmt.Errorf("tool %s already registered", tool.Name)
	}

	r.tools[tool.Name] = tool
	r.order = append(r.order, tool.Name)
	return nil
}

// Get fetches a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	tool, ok := r.tools[name]
	return tool, ok
}

// Names lists tool names in registration order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// Definitions returns the model-facing declarations in registration order.
func (r *Registry) Definitions() []models.ToolDefinition {
	defs := make([]models.ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		tool := r.tools[name]
		defs = append(defs, models.ToolDefinition{
			Name:        tool.Name,
			Description: tool.Description,
			Parameters:  tool.Parameters,
		})
	}
	return defs
}

// Execute dispatches a call by name. Unknown tools and argument problems are
// reported as ErrorResult values, never as Go errors.
func (r *Registry) Execute(ctx context.Context, call models.ToolCall) any {
	tool, ok := r.tools[call.Name]
	if !ok {
		slog.Warn("model requested unknown tool", "tool", call.Name, "tool_call_id", call.ID)
		return errorf("Unknown tool %q.", call.Name)
	}

	start := time.Now()
	result := tool.Execute(ctx, call.Arguments)

	attrs := []any{
		"tool", call.Name,
		"tool_call_id", call.ID,
		"duration", time.Since(start),
	}
	if failed, isErr := result.(ErrorResult); isErr {
		slog.Warn("tool returned error", append(attrs, "error", failed.Error)...)
	} else {
		slog.Info("tool executed", attrs...)
	}
	return result
}

// decodeArgs strictly decodes model arguments into P. Empty input and JSON
// null decode to the zero value.
func decodeArgs[P any](raw json.RawMessage) (P, error) {
	var params P

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return params, nil
	}

	decoder := json.NewDecoder(bytes.NewReader(trimmed))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&params); err != nil {
		return params, err
	}
	if decoder.More() {
		return params, errors.New("arguments must contain a single JSON object")
	}
	return params, nil
}

// typed adapts a validated, typed handler to the raw Execute signature.
func typed[P any](name string, validate func(*P) error, run func(context.Context, P) any) func(context.Context, json.RawMessage) any {
	return func(ctx context.Context, raw json.RawMessage) any {
		params, err := decodeArgs[P](raw)
		if err != nil {
			return errorf("Invalid arguments for %s: %v", name, err)
		}
		if validate != nil {
			if err := validate(&params); err != nil {
				return errorf("Invalid arguments for %s: %v", name, err)
			}
		}
		return run(ctx, params)
	}
}
