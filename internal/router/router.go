package router

import (
	"context"
	"fmt"

	"chefmate/internal/models"
	"chefmate/internal/provider"
)

// Router dispatches unified requests to the appropriate provider.
type Router struct {
	registry *provider.Registry
}

// New constructs a router backed by the provided registry.
func New(registry *provider.Registry) *Router {
	return &Router{
		registry: registry,
	}
}

// Select resolves a model ID to its provider. It performs no I/O; IDs
// outside the allow-list resolve to the default provider.
func (r *Router) Select(modelID string) (models.Model, provider.Provider, error) {
	return r.registry.LookupModel(modelID)
}

// Models lists the selectable models.
func (r *Router) Models() []models.Model {
	return r.registry.Models()
}

// DefaultProvider names the provider serving non-allow-listed IDs.
func (r *Router) DefaultProvider() string {
	return r.registry.DefaultProvider()
}

// StreamChat routes one generation step to the configured provider.
func (r *Router) StreamChat(ctx context.Context, req models.ChatRequest, emit models.EmitFunc) (*models.ChatResponse, models.Model, error) {
	modelInfo, providerImpl, err := r.Select(req.Model)
	if err != nil {
		return nil, models.Model{}, err
	}

	sanitisedReq := req
	sanitisedReq.Model = modelInfo.ID
	sanitisedReq.Messages = append([]models.ChatMessage(nil), req.Messages...)
	sanitisedReq.Tools = append([]models.ToolDefinition(nil), req.Tools...)

	resp, err := providerImpl.StreamChat(ctx, sanitisedReq, emit)
	if err != nil {
		return nil, modelInfo, fmt.Errorf("provider %s chat request: %w", providerImpl.Name(), err)
	}
	return resp, modelInfo, nil
}
