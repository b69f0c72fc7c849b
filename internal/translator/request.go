// Package translator validates inbound chat payloads and converts chat UI
// messages into the unified schema sent to LLM backends.
package translator

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"chefmate/internal/models"
)

var (
	errEmptyModel    = errors.New("data.model must be provided")
	errEmptyMessages = errors.New("at least one message is required")
	errInvalidRole   = errors.New("invalid role")
)

var allowedRoles = map[string]struct{}{
	models.RoleSystem:    {},
	models.RoleUser:      {},
	models.RoleAssistant: {},
	models.RoleData:      {},
}

// ChatRequest is the body of POST /api/chat.
type ChatRequest struct {
	Messages []models.Message
	Model    string
}

// UnmarshalJSON implements custom parsing to enforce validation. The model id
// is read from data.model; a top-level model field is accepted as fallback.
func (r *ChatRequest) UnmarshalJSON(data []byte) error {
	type alias struct {
		Messages []models.Message `json:"messages"`
		Data     *struct {
			Model string `json:"model"`
		} `json:"data"`
		Model string `json:"model"`
	}

	var raw alias
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode chat request: %w", err)
	}

	model := ""
	if raw.Data != nil {
		model = strings.TrimSpace(raw.Data.Model)
	}
	if model == "" {
		model = strings.TrimSpace(raw.Model)
	}

	r.Messages = raw.Messages
	r.Model = model
	return r.validate()
}

func (r *ChatRequest) validate() error {
	if r.Model == "" {
		return errEmptyModel
	}
	return validateMessages(r.Messages)
}

// CancelRequest is the body of POST /api/chat/cancel.
type CancelRequest struct {
	Messages []models.Message `json:"messages"`
}

// Validate checks the message history.
func (r CancelRequest) Validate() error {
	return validateMessages(r.Messages)
}

// QuickRepliesRequest is the body of POST /api/quick-replies.
type QuickRepliesRequest struct {
	Messages   []models.Message `json:"messages"`
	Generating bool             `json:"generating"`
}

// Validate checks the roles present in the history. An empty history is allowed.
func (r QuickRepliesRequest) Validate() error {
	for i, msg := range r.Messages {
		if err := validateRole(i, msg.Role); err != nil {
			return err
		}
	}
	return nil
}

func validateMessages(messages []models.Message) error {
	if len(messages) == 0 {
		return errEmptyMessages
	}
	for i, msg := range messages {
		if err := validateRole(i, msg.Role); err != nil {
			return err
		}
	}
	return nil
}

func validateRole(index int, role string) error {
	if _, ok := allowedRoles[role]; !ok {
		return fmt.Errorf("messages[%d]: %w %q", index, errInvalidRole, role)
	}
	return nil
}
