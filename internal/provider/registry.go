package provider

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"chefmate/internal/models"
)

// ErrUnknownModel indicates the requested model is not allow-listed and no
// default provider is configured.
var ErrUnknownModel = errors.New("unknown model")

// ErrDuplicateModel indicates an attempt to register the same model twice.
var ErrDuplicateModel = errors.New("model already registered")

// ErrUnknownProvider indicates a provider name that was never registered.
var ErrUnknownProvider = errors.New("unknown provider")

// Provider streams one generation step from an LLM backend.
type Provider interface {
	Name() string
	// StreamChat emits text and tool-call deltas as they arrive and returns
	// the assembled step once the backend finishes.
	StreamChat(ctx context.Context, req models.ChatRequest, emit models.EmitFunc) (*models.ChatResponse, error)
}

type modelEntry struct {
	model    models.Model
	provider Provider
}

// Registry maps allow-listed model IDs to providers. Every other ID is routed
// to the default provider.
type Registry struct {
	mu         sync.RWMutex
	models     map[string]modelEntry
	order      []string
	byName     map[string]Provider
	defaultFor Provider
}

// NewRegistry constructs an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{
		models: make(map[string]modelEntry),
		byName: make(map[string]Provider),
	}
}

// RegisterProvider adds the provider and its allow-listed models.
func (r *Registry) RegisterProvider(p Provider, allowList []models.Model) error {
	if p == nil {
		return errors.New("provider must not be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byName[p.Name()]; exists {
		return fmt.Errorf("provider %q already registered", p.Name())
	}

	for _, model := range allowList {
		if _, exists := r.models[model.ID]; exists {
			return fmt.Errorf("%w: %s", ErrDuplicateModel, model.ID)
		}
	}

	r.byName[p.Name()] = p
	for _, model := range allowList {
		model.Provider = p.Name()
		r.models[model.ID] = modelEntry{
			model:    model,
			provider: p,
		}
		r.order = append(r.order, model.ID)
	}

	return nil
}

// SetDefault selects the provider that serves non-allow-listed model IDs.
func (r *Registry) SetDefault(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.byName[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownProvider, name)
	}
	r.defaultFor = p
	return nil
}

// LookupModel returns the provider and metadata for a given model ID. IDs
// outside the allow-list pass through unchanged to the default provider.
func (r *Registry) LookupModel(modelID string) (models.Model, Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if entry, ok := r.models[modelID]; ok {
		return entry.model, entry.provider, nil
	}
	if r.defaultFor == nil {
		return models.Model{}, nil, fmt.Errorf("%w: %s", ErrUnknownModel, modelID)
	}
	return models.Model{ID: modelID, Provider: r.defaultFor.Name()}, r.defaultFor, nil
}

// Models lists allow-listed models in registration order.
func (r *Registry) Models() []models.Model {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.Model, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.models[id].model)
	}
	return out
}

// DefaultProvider returns the name of the default provider, if any.
func (r *Registry) DefaultProvider() string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.defaultFor == nil {
		return ""
	}
	return r.defaultFor.Name()
}
