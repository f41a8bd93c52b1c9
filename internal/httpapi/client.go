package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/colonyops/linglenz/internal/core/mistake"
	"github.com/colonyops/linglenz/internal/correction"
)

// APIError is a non-2xx response from a linglenz server.
type APIError struct {
	Status   int
	Message  string
	Kind     correction.Kind
	LastKind correction.Kind
}

func (e *APIError) Error() string {
	if e.Kind != "" {
		return fmt.Sprintf("server returned %d (%s): %s", e.Status, e.Kind, e.Message)
	}
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

// Client talks to the entry operations of a running server. Unresolved
// entries only exist in the memory of the process running the class, so
// operations on them must go through that process.
type Client struct {
	base string
	http *http.Client
}

// NewClient creates a client for the server at base, e.g. http://127.0.0.1:8484.
// A bare host:port is accepted.
func NewClient(base string) *Client {
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}
	return &Client{
		base: strings.TrimRight(base, "/"),
		http: &http.Client{Timeout: 30 * time.Second},
	}
}

// RetryEntry manually retries an entry in error.
func (c *Client) RetryEntry(ctx context.Context, sessionID, entryID string) (mistake.Entry, error) {
	var out mistake.Entry
	path := "/v1/sessions/" + url.PathEscape(sessionID) + "/entries/" + url.PathEscape(entryID) + "/retry"
	err := c.do(ctx, http.MethodPost, path, &out)
	return out, err
}

// Entries lists a class's entries as seen by the server.
func (c *Client) Entries(ctx context.Context, sessionID string) ([]mistake.Entry, error) {
	var out []mistake.Entry
	err := c.do(ctx, http.MethodGet, "/v1/sessions/"+url.PathEscape(sessionID)+"/entries", &out)
	return out, err
}

func (c *Client) do(ctx context.Context, method, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var eb errorBody
		apiErr := &APIError{Status: resp.StatusCode, Message: strings.TrimSpace(string(body))}
		if json.Unmarshal(body, &eb) == nil && eb.Error != "" {
			apiErr.Message = eb.Error
			apiErr.Kind = eb.Kind
			apiErr.LastKind = eb.LastKind
		}
		return apiErr
	}

	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
