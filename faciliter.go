// Package faciliter provides a top-level convenience entry point for the
// provider facades with minimal boilerplate.
//
// Usage:
//
//	import faciliter "github.com/Aiuj/faciliter-lib-go"
//
//	c, err := faciliter.New(faciliter.WithGemini("gemini-2.0-flash"))
//	c, err := faciliter.New(faciliter.WithOllama("llama3.2"))
//	c, err := faciliter.New(faciliter.WithProvider(myProvider), faciliter.WithModel("custom"))
//
//	answer, err := c.ChatText(ctx, "one-line question")
//
// With no options, New selects the provider from LLM_PROVIDER (default
// "ollama") and fills credentials from the matching vendor environment
// variables (GEMINI_API_KEY, OPENAI_API_KEY, OLLAMA_BASE_URL, ...).
//
// This is a thin wrapper around [factory.NewClient]; both produce identical
// results. Use this package when you prefer the shorter import path.
package faciliter

import (
	"time"

	"go.uber.org/zap"

	"github.com/Aiuj/faciliter-lib-go/cache"
	"github.com/Aiuj/faciliter-lib-go/internal/envutil"
	"github.com/Aiuj/faciliter-lib-go/llm"
	"github.com/Aiuj/faciliter-lib-go/llm/factory"
	"github.com/Aiuj/faciliter-lib-go/tracing"
)

// Message is re-exported so quickstart callers never need to import llm/.
type Message = llm.Message

// Option configures the client created by [New].
type Option func(*options)

type options struct {
	provider llm.Provider
	cfg      factory.Config
	logger   *zap.Logger
}

// WithProvider sets a pre-built LLM provider, bypassing the factory.
func WithProvider(p llm.Provider) Option {
	return func(o *options) { o.provider = p }
}

// WithGemini selects the Gemini adapter with the given model.
// API key comes from GEMINI_API_KEY (alias GOOGLE_API_KEY) unless
// overridden with [WithAPIKey].
func WithGemini(model string) Option {
	return func(o *options) {
		o.cfg.Provider = "gemini"
		o.cfg.Model = model
	}
}

// WithOllama selects the Ollama adapter with the given model.
// Endpoint comes from OLLAMA_BASE_URL (default http://localhost:11434)
// unless overridden with [WithBaseURL].
func WithOllama(model string) Option {
	return func(o *options) {
		o.cfg.Provider = "ollama"
		o.cfg.Model = model
	}
}

// WithOpenAI selects the OpenAI adapter with the given model.
// API key comes from OPENAI_API_KEY unless overridden with [WithAPIKey].
func WithOpenAI(model string) Option {
	return func(o *options) {
		o.cfg.Provider = "openai"
		o.cfg.Model = model
	}
}

// WithModel overrides the model name set by provider shortcuts.
func WithModel(model string) Option {
	return func(o *options) { o.cfg.Model = model }
}

// WithAPIKey overrides the API key for provider shortcuts.
func WithAPIKey(key string) Option {
	return func(o *options) { o.cfg.APIKey = key }
}

// WithBaseURL points the provider at a custom endpoint: a self-hosted
// gateway, a proxy, or any OpenAI-compatible service. Combined with an
// unknown provider name it selects the generic OpenAI-compatible adapter.
func WithBaseURL(url string) Option {
	return func(o *options) { o.cfg.BaseURL = url }
}

// WithTimeout bounds each provider HTTP request.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.cfg.Timeout = d }
}

// WithLogger sets a custom zap logger. Defaults to zap.NewNop().
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// New creates an [llm.Client] with minimal configuration.
func New(opts ...Option) (*llm.Client, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}

	if o.provider != nil {
		return llm.NewClient(o.provider, llm.WithLogger(o.logger)), nil
	}

	cfg := o.cfg
	if cfg.Provider == "" && cfg.BaseURL == "" {
		cfg.Provider = envutil.String(factory.DefaultProvider, "LLM_PROVIDER")
	}
	return factory.NewClient(cfg, o.logger)
}

// NewCache connects the Redis cache facade from environment configuration
// (REDIS_HOST, REDIS_PORT, REDIS_PREFIX, REDIS_TENANT_ID, ...).
// When REDIS_ENABLED=false it returns (nil, nil); the nil *cache.Cache is
// safe to use and behaves as an always-miss cache.
func NewCache(logger *zap.Logger) (*cache.Cache, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	return cache.NewOrNil(cache.FromEnv(), logger)
}

// SetupTracing initializes OTLP trace/metric export from environment
// configuration (LANGFUSE_HOST, LANGFUSE_PUBLIC_KEY, LANGFUSE_SECRET_KEY,
// OTEL_EXPORTER_OTLP_ENDPOINT, ...). It never fails: on misconfiguration a
// no-op pipeline is installed and the problem is logged. Shut the returned
// providers down on exit to flush buffered spans.
func SetupTracing(logger *zap.Logger) *tracing.Providers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return tracing.Setup(tracing.FromEnv(), logger)
}
