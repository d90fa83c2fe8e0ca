// =============================================================================
// OpenAI-Compatible Provider Base
// =============================================================================
// Shared implementation for every endpoint speaking the OpenAI Chat
// Completions dialect: OpenAI proper, Azure-style gateways, OpenRouter,
// vLLM, llama.cpp server, and friends. Instead of duplicating HTTP handling,
// message conversion, and error mapping per vendor, callers configure one
// Provider and only override what differs (name, base URL, default model,
// auth header).
// =============================================================================

package openaicompat

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Aiuj/faciliter-lib-go/internal/envutil"
	"github.com/Aiuj/faciliter-lib-go/internal/tlsutil"
	"github.com/Aiuj/faciliter-lib-go/llm"
	"github.com/Aiuj/faciliter-lib-go/llm/providers"
)

const (
	// OpenAIBaseURL is the base URL of OpenAI proper.
	OpenAIBaseURL = "https://api.openai.com"
	// OpenAIDefaultModel is the default model when serving OpenAI proper.
	OpenAIDefaultModel = "gpt-4o-mini"

	defaultEndpointPath   = "/v1/chat/completions"
	defaultModelsEndpoint = "/v1/models"
	defaultTimeout        = 60 * time.Second
)

// Config holds the configuration for an OpenAI-compatible provider.
type Config struct {
	// ProviderName is the unique identifier for this provider (e.g., "openai", "openrouter").
	ProviderName string

	// APIKey is the authentication key for the provider's API.
	APIKey string

	// BaseURL is the base URL for the provider's API (e.g., "https://api.openai.com").
	BaseURL string

	// DefaultModel is the model to use when none is specified in the request.
	DefaultModel string

	// FallbackModel is used when both request and DefaultModel are empty.
	FallbackModel string

	// Timeout is the HTTP client timeout. Defaults to 60s if zero.
	Timeout time.Duration

	// EndpointPath is the chat completions endpoint path. Defaults to "/v1/chat/completions".
	EndpointPath string

	// ModelsEndpoint is the models list endpoint path. Defaults to "/v1/models".
	ModelsEndpoint string

	// AuthHeaderName overrides the auth header. Empty means
	// "Authorization: Bearer <key>"; a custom name (e.g. "api-key" for
	// Azure-style gateways) carries the raw key without the Bearer prefix.
	AuthHeaderName string

	// ExtraHeaders are set verbatim on every request (e.g. OpenRouter's
	// HTTP-Referer, Azure api-version via header-carrying proxies).
	ExtraHeaders map[string]string

	// SupportsTools indicates whether this provider supports native function calling.
	// Defaults to true if not set.
	SupportsTools *bool
}

// OpenAIConfigFromEnv reads the configuration for OpenAI proper from the
// environment: OPENAI_API_KEY, OPENAI_MODEL, OPENAI_BASE_URL,
// OPENAI_TIMEOUT_SECONDS.
func OpenAIConfigFromEnv() Config {
	return Config{
		ProviderName: "openai",
		APIKey:       envutil.String("", "OPENAI_API_KEY"),
		BaseURL:      envutil.String(OpenAIBaseURL, "OPENAI_BASE_URL"),
		DefaultModel: envutil.String(OpenAIDefaultModel, "OPENAI_MODEL"),
		Timeout:      envutil.Duration(defaultTimeout, "OPENAI_TIMEOUT_SECONDS"),
	}
}

// Provider is the base implementation for all OpenAI-compatible LLM providers.
type Provider struct {
	cfg    Config
	client *http.Client
	logger *zap.Logger
}

// New creates a new OpenAI-compatible provider with the given config.
func New(cfg Config, logger *zap.Logger) *Provider {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.EndpointPath == "" {
		cfg.EndpointPath = defaultEndpointPath
	}
	if cfg.ModelsEndpoint == "" {
		cfg.ModelsEndpoint = defaultModelsEndpoint
	}
	if cfg.ProviderName == "" {
		cfg.ProviderName = "openai-compatible"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provider{
		cfg:    cfg,
		client: tlsutil.NewHTTPClient(cfg.Timeout),
		logger: logger,
	}
}

// Name returns the provider name.
func (p *Provider) Name() string { return p.cfg.ProviderName }

// SupportsNativeFunctionCalling returns whether this provider supports tool calling.
func (p *Provider) SupportsNativeFunctionCalling() bool {
	if p.cfg.SupportsTools != nil {
		return *p.cfg.SupportsTools
	}
	return true
}

// SupportsSearchGrounding is always false for the OpenAI-compatible dialect.
func (p *Provider) SupportsSearchGrounding() bool { return false }

// buildHeaders applies auth and extra headers to the HTTP request.
func (p *Provider) buildHeaders(req *http.Request) {
	switch {
	case p.cfg.AuthHeaderName != "":
		if p.cfg.APIKey != "" {
			req.Header.Set(p.cfg.AuthHeaderName, p.cfg.APIKey)
		}
	default:
		if p.cfg.APIKey != "" {
			req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
		}
	}
	for k, v := range p.cfg.ExtraHeaders {
		req.Header.Set(k, v)
	}
	req.Header.Set("Content-Type", "application/json")
}

// endpoint builds the full URL for a given path.
func (p *Provider) endpoint(path string) string {
	return fmt.Sprintf("%s%s", strings.TrimRight(p.cfg.BaseURL, "/"), path)
}

// HealthCheck verifies the provider is reachable via the models endpoint.
func (p *Provider) HealthCheck(ctx context.Context) (*llm.HealthStatus, error) {
	start := time.Now()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoint(p.cfg.ModelsEndpoint), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	p.buildHeaders(httpReq)

	resp, err := p.client.Do(httpReq)
	latency := time.Since(start)
	if err != nil {
		return &llm.HealthStatus{Healthy: false, Latency: latency}, err
	}
	defer providers.SafeCloseBody(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return &llm.HealthStatus{Healthy: false, Latency: latency},
			fmt.Errorf("%s health check failed: status=%d", p.cfg.ProviderName, resp.StatusCode)
	}
	return &llm.HealthStatus{Healthy: true, Latency: latency}, nil
}

// ListModels returns the list of available models via GET /v1/models.
func (p *Provider) ListModels(ctx context.Context) ([]llm.Model, error) {
	return providers.ListModelsOpenAICompat(
		ctx, p.client, p.cfg.BaseURL, p.cfg.APIKey, p.cfg.ProviderName,
		p.cfg.ModelsEndpoint,
		func(r *http.Request, _ string) { p.buildHeaders(r) },
	)
}

// Completion performs a non-streaming chat completion.
func (p *Provider) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResult, error) {
	if req.UseSearchGrounding {
		// No retrieval grounding in the Chat Completions dialect.
		p.logger.Debug("search grounding not supported, ignoring flag",
			zap.String("provider", p.cfg.ProviderName))
	}

	body := providers.OpenAIChatRequest{
		Model:       providers.ChooseModel(req, p.cfg.DefaultModel, p.cfg.FallbackModel),
		Messages:    providers.ConvertMessagesToOpenAI(req.Messages),
		Tools:       providers.ConvertToolsToOpenAI(req.Tools),
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		Stop:        req.Stop,
	}
	if req.ToolChoice != "" {
		body.ToolChoice = req.ToolChoice
	}
	if so := req.StructuredOutput; so != nil {
		body.ResponseFormat = &providers.OpenAIResponseFormat{
			Type: "json_schema",
			JSONSchema: &providers.OpenAIJSONSchema{
				Name:   so.Name,
				Schema: so.Schema,
				Strict: so.Strict,
			},
		}
	}

	var oaResp providers.OpenAIChatResponse
	if err := providers.DoJSONRequest(ctx, p.client, http.MethodPost, p.endpoint(p.cfg.EndpointPath), func(r *http.Request) { p.buildHeaders(r) }, body, &oaResp, p.Name()); err != nil {
		return nil, err
	}

	res := providers.ToChatResult(oaResp, p.Name())
	res.RequestID = oaResp.ID
	providers.ParseStructured(res, req)
	return res, nil
}
