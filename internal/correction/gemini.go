package correction

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"
)

// GeminiConfig configures the Gemini API client.
type GeminiConfig struct {
	APIKey     string
	BaseURL    string // optional, for tests and proxies
	HTTPClient *http.Client
}

// NewGeminiClient creates a Gemini API client.
func NewGeminiClient(ctx context.Context, cfg GeminiConfig) (*genai.Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini: api key is required")
	}

	cc := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: cfg.HTTPClient,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	return client, nil
}

// GeminiBackend generates corrections with one Gemini model.
type GeminiBackend struct {
	client *genai.Client
	model  string
}

// NewGeminiBackend creates a backend for model.
func NewGeminiBackend(client *genai.Client, model string) *GeminiBackend {
	return &GeminiBackend{client: client, model: model}
}

// NewGeminiBackends creates one backend per model, preserving order.
func NewGeminiBackends(client *genai.Client, models []string) []Backend {
	out := make([]Backend, 0, len(models))
	for _, m := range models {
		out = append(out, NewGeminiBackend(client, m))
	}
	return out
}

func (b *GeminiBackend) Name() string { return b.model }

// Generate sends prompt to the model and returns its text.
func (b *GeminiBackend) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := b.client.Models.GenerateContent(ctx, b.model, genai.Text(prompt), &genai.GenerateContentConfig{
		Temperature:      genai.Ptr[float32](0),
		ResponseMIMEType: "application/json",
	})
	if err != nil {
		return "", geminiError(b.model, err)
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", &Error{Kind: KindBackendLogic, Model: b.model, Message: "empty response"}
	}
	return text, nil
}

// geminiError maps SDK failures onto correction kinds. An API error means the
// service answered, so it is a backend logic error; everything else is a
// transport failure.
func geminiError(model string, err error) *Error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		msg := apiErr.Message
		if apiErr.Status != "" {
			msg = fmt.Sprintf("%s: %s", apiErr.Status, apiErr.Message)
		}
		return &Error{Kind: KindBackendLogic, Model: model, Message: msg, Err: err}
	}
	return &Error{Kind: KindTransport, Model: model, Err: err}
}
