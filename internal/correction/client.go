package correction

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const maxResponseBytes = 1 << 20

// Client calls a remote check-sentence service.
type Client struct {
	endpoint        string
	httpClient      *http.Client
	defaultLanguage string
	headers         http.Header
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(cl *Client) { cl.httpClient = c }
}

// WithHeader adds a header to every request, e.g. an authorization token.
func WithHeader(key, value string) ClientOption {
	return func(cl *Client) { cl.headers.Add(key, value) }
}

// WithClientLanguage sets the language sent when a request omits one.
func WithClientLanguage(lang string) ClientOption {
	return func(cl *Client) { cl.defaultLanguage = lang }
}

// NewClient creates a client posting to endpoint.
func NewClient(endpoint string, opts ...ClientOption) *Client {
	c := &Client{
		endpoint:        endpoint,
		httpClient:      &http.Client{Timeout: 60 * time.Second},
		defaultLanguage: "English",
		headers:         http.Header{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Check sends the request to the service. Transport failures, reported
// errors and unparseable bodies map to distinct kinds.
func (c *Client) Check(ctx context.Context, req Request) (Result, error) {
	if strings.TrimSpace(req.Sentence) == "" {
		return Result{}, invalidInput("sentence is required")
	}

	req.Sentence = strings.TrimSpace(req.Sentence)
	if strings.TrimSpace(req.Language) == "" {
		req.Language = c.defaultLanguage
	}

	body, err := json.Marshal(req)
	if err != nil {
		return Result{}, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return Result{}, &Error{Kind: KindTransport, Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	for k, vs := range c.headers {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Result{}, &Error{Kind: KindTransport, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return Result{}, &Error{Kind: KindTransport, Err: err}
	}

	if resp.StatusCode >= 300 {
		return Result{}, responseError(resp.StatusCode, data)
	}

	res, err := ParseResult(string(data))
	if err != nil {
		return Result{}, err
	}
	return res, nil
}

// responseError interprets a non-2xx response. A body in the error shape is
// a backend logic error (or the kind the service reports); anything else is
// a transport failure.
func responseError(status int, data []byte) error {
	var er ErrorResponse
	if err := json.Unmarshal(data, &er); err != nil || er.Error == "" {
		return &Error{Kind: KindTransport, Message: fmt.Sprintf("unexpected status %d", status)}
	}

	kind := KindBackendLogic
	switch er.Kind {
	case KindInvalidInput, KindAllBackendsUnavailable, KindMalformedResponse, KindTransport:
		kind = er.Kind
	}

	ce := &Error{Kind: kind, Message: er.Error}
	if kind == KindAllBackendsUnavailable {
		last := er.LastKind
		if last == "" {
			last = KindBackendLogic
		}
		ce.Err = &Error{Kind: last, Message: er.Error}
	}
	return ce
}

// IsRetryable reports whether err may succeed on a later attempt.
// Invalid input never does.
func IsRetryable(err error) bool {
	return err != nil && !errors.Is(err, ErrInvalidInput)
}
