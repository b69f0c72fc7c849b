package provider

import (
	"fmt"
	"net/http"
)

// BackendError reports a request the LLM backend rejected or failed.
type BackendError struct {
	Provider   string
	StatusCode int
	Message    string
	Err        error
}

func (e *BackendError) Error() string {
	msg := e.Message
	if msg == "" && e.StatusCode != 0 {
		msg = http.StatusText(e.StatusCode)
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("provider %s: status %d: %s", e.Provider, e.StatusCode, msg)
	}
	return fmt.Sprintf("provider %s: %s", e.Provider, msg)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}
