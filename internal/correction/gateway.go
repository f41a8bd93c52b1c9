package correction

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog"

	"github.com/colonyops/linglenz/internal/core/validate"
	"github.com/colonyops/linglenz/internal/metrics"
)

// Checker produces a correction for an utterance.
type Checker interface {
	Check(ctx context.Context, req Request) (Result, error)
}

// Backend is one correction model. Generate returns the model's raw text.
// Failures should be *Error values; anything else is treated as a transport
// failure.
type Backend interface {
	Name() string
	Generate(ctx context.Context, prompt string) (string, error)
}

type cacheKey struct {
	language string
	sentence string
}

// Gateway tries an ordered list of backends until one yields a valid Result.
type Gateway struct {
	backends        []Backend
	defaultLanguage string
	timeout         time.Duration
	cache           *expirable.LRU[cacheKey, Result]
	metrics         *metrics.Metrics
	log             zerolog.Logger
}

// GatewayOption configures a Gateway.
type GatewayOption func(*Gateway)

// WithDefaultLanguage sets the language used when a request omits one.
func WithDefaultLanguage(lang string) GatewayOption {
	return func(g *Gateway) { g.defaultLanguage = lang }
}

// WithPerModelTimeout bounds every backend attempt.
func WithPerModelTimeout(d time.Duration) GatewayOption {
	return func(g *Gateway) { g.timeout = d }
}

// WithCache enables an expiring result cache. size <= 0 disables it.
func WithCache(size int, ttl time.Duration) GatewayOption {
	return func(g *Gateway) {
		if size <= 0 {
			g.cache = nil
			return
		}
		g.cache = expirable.NewLRU[cacheKey, Result](size, nil, ttl)
	}
}

// WithMetrics records attempt outcomes.
func WithMetrics(m *metrics.Metrics) GatewayOption {
	return func(g *Gateway) { g.metrics = m }
}

// WithLogger sets the gateway logger.
func WithLogger(l zerolog.Logger) GatewayOption {
	return func(g *Gateway) { g.log = l }
}

// NewGateway creates a gateway over backends, tried in order.
func NewGateway(backends []Backend, opts ...GatewayOption) *Gateway {
	g := &Gateway{
		backends:        backends,
		defaultLanguage: "English",
		timeout:         20 * time.Second,
		log:             zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Models returns the backend names in waterfall order.
func (g *Gateway) Models() []string {
	out := make([]string, len(g.backends))
	for i, b := range g.backends {
		out[i] = b.Name()
	}
	return out
}

// Check runs the waterfall. Invalid input fails without contacting any
// backend. When every backend fails the error is KindAllBackendsUnavailable
// wrapping the last failure.
func (g *Gateway) Check(ctx context.Context, req Request) (Result, error) {
	if err := validate.Sentence(req.Sentence); err != nil {
		return Result{}, invalidInput(err.Error())
	}

	sentence := strings.TrimSpace(req.Sentence)
	language := strings.TrimSpace(req.Language)
	if language == "" {
		language = g.defaultLanguage
	}

	key := cacheKey{language: language, sentence: sentence}
	if g.cache != nil {
		if res, ok := g.cache.Get(key); ok {
			g.metrics.RecordCacheLookup(true)
			return res.Clone(), nil
		}
		g.metrics.RecordCacheLookup(false)
	}

	prompt := Prompt(sentence, language)

	var last *Error
	for _, b := range g.backends {
		if err := ctx.Err(); err != nil {
			last = &Error{Kind: KindTransport, Model: b.Name(), Err: err}
			break
		}

		res, err := g.attempt(ctx, b, prompt)
		if err == nil {
			if g.cache != nil {
				g.cache.Add(key, res.Clone())
			}
			return res, nil
		}

		last = err
		g.log.Warn().
			Str("model", b.Name()).
			Str("kind", string(err.Kind)).
			Err(err).
			Msg("correction backend failed")
	}

	g.metrics.RecordExhausted()
	if last == nil {
		last = &Error{Kind: KindTransport, Message: "no backends configured"}
	}
	return Result{}, &Error{
		Kind:    KindAllBackendsUnavailable,
		Message: "every correction model failed; last error: " + last.Error(),
		Err:     last,
	}
}

func (g *Gateway) attempt(ctx context.Context, b Backend, prompt string) (Result, *Error) {
	start := time.Now()

	attemptCtx := ctx
	if g.timeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	raw, err := b.Generate(attemptCtx, prompt)
	if err == nil {
		var res Result
		res, err = ParseResult(raw)
		if err == nil {
			g.metrics.RecordAttempt(b.Name(), "ok", time.Since(start))
			return res, nil
		}
	}

	ce := classify(b.Name(), err)
	g.metrics.RecordAttempt(b.Name(), string(ce.Kind), time.Since(start))
	return Result{}, ce
}

// classify converts a backend failure into an *Error tagged with model.
func classify(model string, err error) *Error {
	var ce *Error
	if errors.As(err, &ce) {
		out := *ce
		if out.Model == "" {
			out.Model = model
		}
		return &out
	}
	return &Error{Kind: KindTransport, Model: model, Err: err}
}
