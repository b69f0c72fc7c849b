package provider

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chefmate/internal/models"
)

type stubProvider struct{ name string }

func (s stubProvider) Name() string { return s.name }

func (s stubProvider) StreamChat(context.Context, models.ChatRequest, models.EmitFunc) (*models.ChatResponse, error) {
	return &models.ChatResponse{FinishReason: models.FinishStop}, nil
}

func TestRegistryLookup(t *testing.T) {
	registry := NewRegistry()
	google := stubProvider{name: "google"}
	groq := stubProvider{name: "groq"}

	require.NoError(t, registry.RegisterProvider(google, []models.Model{{ID: "gemini-2.5-flash", DisplayName: "Gemini 2.5 Flash"}}))
	require.NoError(t, registry.RegisterProvider(groq, []models.Model{{ID: "llama-3.3-70b-versatile"}}))

	_, _, err := registry.LookupModel("something-else")
	require.ErrorIs(t, err, ErrUnknownModel)

	require.NoError(t, registry.SetDefault("groq"))

	model, p, err := registry.LookupModel("gemini-2.5-flash")
	require.NoError(t, err)
	assert.Equal(t, "google", p.Name())
	assert.Equal(t, models.Model{ID: "gemini-2.5-flash", Provider: "google", DisplayName: "Gemini 2.5 Flash"}, model)

	for _, id := range []string{"llama-3.3-70b-versatile", "mistral-saba-24b", "not-a-model", ""} {
		model, p, err := registry.LookupModel(id)
		require.NoError(t, err)
		assert.Equal(t, "groq", p.Name(), id)
		assert.Equal(t, id, model.ID, "unknown ids pass through unchanged")
	}
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	registry := NewRegistry()
	require.NoError(t, registry.RegisterProvider(stubProvider{name: "a"}, []models.Model{{ID: "m"}}))

	err := registry.RegisterProvider(stubProvider{name: "b"}, []models.Model{{ID: "m"}})
	require.ErrorIs(t, err, ErrDuplicateModel)

	require.Error(t, registry.RegisterProvider(stubProvider{name: "a"}, nil))
	require.Error(t, registry.RegisterProvider(nil, nil))
	require.ErrorIs(t, registry.SetDefault("b"), ErrUnknownProvider, "failed registration must not leave b behind")
}

func TestRegistryModelsOrder(t *testing.T) {
	registry := NewRegistry()
	require.NoError(t, registry.RegisterProvider(stubProvider{name: "google"}, []models.Model{{ID: "g1"}}))
	require.NoError(t, registry.RegisterProvider(stubProvider{name: "groq"}, []models.Model{{ID: "q1"}, {ID: "q2"}}))
	require.NoError(t, registry.SetDefault("groq"))

	list := registry.Models()
	require.Len(t, list, 3)
	assert.Equal(t, []string{"g1", "q1", "q2"}, []string{list[0].ID, list[1].ID, list[2].ID})
	assert.Equal(t, "groq", list[2].Provider)
	assert.Equal(t, "groq", registry.DefaultProvider())
}
