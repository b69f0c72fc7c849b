package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"chefmate/internal/chat"
	"chefmate/internal/provider"
)

// statusClientClosedRequest is logged when the caller disconnects mid-turn.
const statusClientClosedRequest = 499

const (
	genericStreamError = "Something went wrong in the kitchen. Please try again."
	timeoutStreamError = "That took too long to prepare. Please try again."
)

func decodeRequestBody[T any](c echo.Context, limit int64, target *T) error {
	req := c.Request()
	defer req.Body.Close()

	req.Body = http.MaxBytesReader(c.Response(), req.Body, limit)

	decoder := json.NewDecoder(req.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, io.EOF) {
			return invalidRequest("request body is required")
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return requestError{
				Status:  http.StatusRequestEntityTooLarge,
				Message: fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit),
				Type:    "invalid_request_error",
			}
		}
		return invalidRequest(fmt.Sprintf("invalid JSON payload: %v", err))
	}

	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return invalidRequest("request body must contain a single JSON object")
	}
	return nil
}

type requestError struct {
	Status  int
	Message string
	Type    string
	Code    string
}

func (e requestError) Error() string {
	return e.Message
}

func invalidRequest(message string) requestError {
	return requestError{
		Status:  http.StatusBadRequest,
		Message: message,
		Type:    "invalid_request_error",
	}
}

type errorBody struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code,omitempty"`
	} `json:"error"`
}

func writeError(c echo.Context, status int, message, errType, code string) error {
	var payload errorBody
	payload.Error.Message = message
	payload.Error.Type = errType
	payload.Error.Code = code
	return c.JSON(status, payload)
}

func jsonErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var reqErr requestError
	if errors.As(err, &reqErr) {
		_ = writeError(c, reqErr.Status, reqErr.Message, reqErr.Type, reqErr.Code)
		return
	}

	type httpError interface {
		Code() int
		Error() string
	}

	if he, ok := err.(httpError); ok {
		_ = writeError(c, he.Code(), he.Error(), "invalid_request_error", "")
		return
	}

	var echoErr *echo.HTTPError
	if errors.As(err, &echoErr) {
		_ = writeError(c, echoErr.Code, fmt.Sprint(echoErr.Message), "invalid_request_error", "")
		return
	}

	_ = writeError(c, http.StatusInternalServerError, "internal server error", "server_error", "")
}

func toHTTPError(err error) error {
	var reqErr requestError
	if errors.As(err, &reqErr) {
		return reqErr
	}

	switch {
	case errors.Is(err, provider.ErrUnknownModel), errors.Is(err, provider.ErrUnknownProvider):
		return invalidRequest(err.Error())
	case errors.Is(err, chat.ErrNoMessages):
		return invalidRequest(err.Error())
	case errors.Is(err, chat.ErrTimeout):
		return requestError{
			Status:  http.StatusGatewayTimeout,
			Message: err.Error(),
			Type:    "timeout_error",
		}
	case errors.Is(err, context.Canceled):
		return requestError{
			Status:  statusClientClosedRequest,
			Message: "client closed request",
			Type:    "invalid_request_error",
		}
	}

	var backendErr *provider.BackendError
	if errors.As(err, &backendErr) {
		return requestError{
			Status:  http.StatusBadGateway,
			Message: fmt.Sprintf("upstream provider %s error", backendErr.Provider),
			Type:    "upstream_error",
			Code:    upstreamCode(backendErr.StatusCode),
		}
	}

	return requestError{
		Status:  http.StatusBadGateway,
		Message: "upstream provider error",
		Type:    "upstream_error",
	}
}

func upstreamCode(status int) string {
	if status == 0 {
		return ""
	}
	return fmt.Sprintf("upstream_status_%d", status)
}

func streamErrorMessage(err error) string {
	if errors.Is(err, chat.ErrTimeout) {
		return timeoutStreamError
	}
	return genericStreamError
}
