// Package recipes wraps the Spoonacular recipe catalog. Remote failures are
// reported as data, never as Go errors, so callers can hand them to the model.
package recipes

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

const (
	apiKeyParam      = "apiKey"
	userAgent        = "chefmate/0.1"
	maxErrorBodySize = 64 * 1024
)

// ErrMissingAPIKey is returned by New when no credential is configured.
var ErrMissingAPIKey = errors.New("recipes: missing Spoonacular API key")

// ErrorKind classifies where a fetch failed.
type ErrorKind int

const (
	// ErrorStatus is a non-2xx response from the catalog.
	ErrorStatus ErrorKind = iota
	// ErrorNetwork means the catalog could not be reached.
	ErrorNetwork
	// ErrorDecode means a 2xx body could not be decoded.
	ErrorDecode
)

// Error is the uniform failure shape returned for upstream problems.
type Error struct {
	Kind    ErrorKind `json:"-"`
	Message string    `json:"message"`
	Details any       `json:"details,omitempty"`
}

// Result holds exactly one of Data or Err.
type Result[T any] struct {
	Data *T
	Err  *Error
}

// OK reports whether the result carries data.
func (r Result[T]) OK() bool {
	return r.Err == nil && r.Data != nil
}

// Options configures a Client.
type Options struct {
	APIKey  string
	BaseURL string
}

// Client performs authenticated GET requests against the recipe catalog.
type Client struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// New constructs a client. A blank API key is a configuration error.
func New(opts Options, client *http.Client) (*Client, error) {
	apiKey := strings.TrimSpace(opts.APIKey)
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	if client == nil {
		return nil, errors.New("http client must not be nil")
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		return nil, errors.New("base url must not be empty")
	}

	return &Client{
		apiKey:  apiKey,
		baseURL: baseURL,
		client:  client,
	}, nil
}

// Fetch issues GET baseURL+path with params plus the API key and decodes the
// JSON response into T. It never returns both data and error, and never
// returns neither.
func Fetch[T any](ctx context.Context, c *Client, path string, params url.Values) Result[T] {
	query := url.Values{}
	for key, values := range params {
		query[key] = append([]string(nil), values...)
	}
	query.Set(apiKeyParam, c.apiKey)

	endpoint := c.baseURL + path + "?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		slog.Error("recipe api request construction failed", "path", path, "err", err)
		return failure[T](ErrorStatus, fmt.Sprintf("Failed to fetch from %s.", path), nil)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		slog.Error("recipe api network error", "path", path, "err", err)
		return failure[T](ErrorNetwork, "Failed to connect to the recipe service.", nil)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		details := readErrorBody(resp.Body)
		slog.Error("recipe api error", "path", path, "status", resp.StatusCode, "details", details)
		return failure[T](ErrorStatus, fmt.Sprintf("Failed to fetch from %s.", path), details)
	}

	var data T
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		slog.Error("recipe api returned undecodable body", "path", path, "err", err)
		return failure[T](ErrorDecode, fmt.Sprintf("Failed to read the response from %s.", path), nil)
	}
	return Result[T]{Data: &data}
}

func failure[T any](kind ErrorKind, message string, details any) Result[T] {
	return Result[T]{Err: &Error{Kind: kind, Message: message, Details: details}}
}

// readErrorBody returns the decoded JSON error envelope, or the raw text when
// the body is not JSON.
func readErrorBody(body io.Reader) any {
	raw, err := io.ReadAll(io.LimitReader(body, maxErrorBodySize))
	if err != nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err == nil {
		return decoded
	}
	return strings.TrimSpace(string(raw))
}
