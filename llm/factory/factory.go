package factory

import (
	"fmt"
	"strings"
	"time"

	"github.com/Aiuj/faciliter-lib-go/internal/envutil"
	"github.com/Aiuj/faciliter-lib-go/llm"
	"github.com/Aiuj/faciliter-lib-go/llm/providers"
	"github.com/Aiuj/faciliter-lib-go/llm/providers/gemini"
	"github.com/Aiuj/faciliter-lib-go/llm/providers/ollama"
	"github.com/Aiuj/faciliter-lib-go/llm/providers/openaicompat"
	"go.uber.org/zap"
)

// DefaultProvider is used by FromEnv when LLM_PROVIDER is unset.
const DefaultProvider = "ollama"

// Config is the generic configuration accepted by New. Fields left at their
// zero value are filled from the provider's environment block, then from
// built-in defaults; explicit values always win.
type Config struct {
	// Provider selects the adapter: "gemini", "ollama", "openai", or any
	// other name combined with BaseURL for a generic OpenAI-compatible
	// endpoint (Groq, Fireworks, OpenRouter, vLLM, ...).
	Provider string         `json:"provider" yaml:"provider" env:"LLM_PROVIDER"`
	APIKey   string         `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	BaseURL  string         `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	Model    string         `json:"model,omitempty" yaml:"model,omitempty"`
	Timeout  time.Duration  `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	Extra    map[string]any `json:"extra,omitempty" yaml:"extra,omitempty"`
}

// New creates a Provider from the given Config. Unset fields are resolved
// from the provider's environment variables, so New(Config{Provider:
// "gemini"}, nil) and a fully explicit Config behave consistently.
//
// Unknown provider names are treated as generic OpenAI-compatible endpoints
// and require BaseURL; without it New returns a configuration error.
func New(cfg Config, logger *zap.Logger) (llm.Provider, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	name := strings.ToLower(strings.TrimSpace(cfg.Provider))

	switch name {
	case "gemini":
		gcfg := gemini.ConfigFromEnv()
		overlayBase(&gcfg.BaseProviderConfig, cfg)
		return gemini.New(gcfg, logger), nil

	case "ollama":
		ocfg := ollama.ConfigFromEnv()
		overlayBase(&ocfg.BaseProviderConfig, cfg)
		return ollama.New(ocfg, logger), nil

	case "openai":
		occfg := openaicompat.OpenAIConfigFromEnv()
		if cfg.APIKey != "" {
			occfg.APIKey = cfg.APIKey
		}
		if cfg.BaseURL != "" {
			occfg.BaseURL = cfg.BaseURL
		}
		if cfg.Model != "" {
			occfg.DefaultModel = cfg.Model
		}
		if cfg.Timeout > 0 {
			occfg.Timeout = cfg.Timeout
		}
		applyCompatExtra(&occfg, cfg.Extra)
		return openaicompat.New(occfg, logger), nil

	default:
		// 通用 OpenAI 兼容提供商：任意名称 + base_url 即可接入。
		if cfg.BaseURL == "" {
			return nil, fmt.Errorf("unknown provider %q: built-in provider not found, and base_url is required for generic OpenAI-compatible provider (built-ins: %s)",
				name, strings.Join(SupportedProviders(), ", "))
		}
		occfg := openaicompat.Config{
			ProviderName: name,
			APIKey:       cfg.APIKey,
			BaseURL:      cfg.BaseURL,
			DefaultModel: cfg.Model,
			Timeout:      cfg.Timeout,
		}
		applyCompatExtra(&occfg, cfg.Extra)
		logger.Info("creating generic OpenAI-compatible provider",
			zap.String("provider", occfg.ProviderName),
			zap.String("base_url", cfg.BaseURL))
		return openaicompat.New(occfg, logger), nil
	}
}

// FromEnv builds a Provider entirely from the environment. LLM_PROVIDER
// selects the adapter (default "ollama"); the per-vendor env block supplies
// the rest.
func FromEnv(logger *zap.Logger) (llm.Provider, error) {
	return New(Config{Provider: envutil.String(DefaultProvider, "LLM_PROVIDER")}, logger)
}

// NewClient creates a ready-to-use Client from a Config in one call.
func NewClient(cfg Config, logger *zap.Logger) (*llm.Client, error) {
	p, err := New(cfg, logger)
	if err != nil {
		return nil, err
	}
	return llm.NewClient(p, llm.WithLogger(logger)), nil
}

// NewClientFromEnv is the one-call bootstrap: environment-driven provider
// selection wrapped in a Client.
func NewClientFromEnv(logger *zap.Logger) (*llm.Client, error) {
	p, err := FromEnv(logger)
	if err != nil {
		return nil, err
	}
	return llm.NewClient(p, llm.WithLogger(logger)), nil
}

// SupportedProviders returns the built-in provider names. Any other name is
// treated as a generic OpenAI-compatible provider and requires base_url.
func SupportedProviders() []string {
	return []string{"gemini", "ollama", "openai"}
}

// overlayBase copies the explicitly set Config fields over an env-derived
// base config, preserving the explicit > env > default precedence.
func overlayBase(dst *providers.BaseProviderConfig, cfg Config) {
	if cfg.APIKey != "" {
		dst.APIKey = cfg.APIKey
	}
	if cfg.BaseURL != "" {
		dst.BaseURL = cfg.BaseURL
	}
	if cfg.Model != "" {
		dst.Model = cfg.Model
	}
	if cfg.Timeout > 0 {
		dst.Timeout = cfg.Timeout
	}
}

// applyCompatExtra maps the documented Extra keys onto an openaicompat
// Config. Unknown keys are ignored.
func applyCompatExtra(occfg *openaicompat.Config, extra map[string]any) {
	if extra == nil {
		return
	}
	if v, ok := extra["endpoint_path"].(string); ok {
		occfg.EndpointPath = v
	}
	if v, ok := extra["models_endpoint"].(string); ok {
		occfg.ModelsEndpoint = v
	}
	if v, ok := extra["auth_header"].(string); ok {
		occfg.AuthHeaderName = v
	}
	if v, ok := extra["supports_tools"].(bool); ok {
		occfg.SupportsTools = &v
	}
	if v, ok := extra["fallback_model"].(string); ok {
		occfg.FallbackModel = v
	}
	switch hs := extra["headers"].(type) {
	case map[string]string:
		occfg.ExtraHeaders = hs
	case map[string]any:
		m := make(map[string]string, len(hs))
		for k, v := range hs {
			if s, ok := v.(string); ok {
				m[k] = s
			}
		}
		occfg.ExtraHeaders = m
	}
}

// RegistryConfig describes multiple providers and which one is the default.
// Use it with NewRegistryFromConfig to build a Registry in one call.
type RegistryConfig struct {
	// Default is the name of the default provider (must match a key in Providers).
	Default string `json:"default" yaml:"default"`
	// Providers maps provider names to their configurations. The map key is
	// used as the registry name and, when Config.Provider is empty, as the
	// provider selector too.
	Providers map[string]Config `json:"providers" yaml:"providers"`
}

// NewRegistryFromConfig creates a Registry populated with all providers
// defined in the RegistryConfig and sets the default if specified. Providers
// that fail to initialize are logged as warnings and skipped.
func NewRegistryFromConfig(cfg RegistryConfig, logger *zap.Logger) (*llm.Registry, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	reg := llm.NewRegistry()

	for name, pcfg := range cfg.Providers {
		if pcfg.Provider == "" {
			pcfg.Provider = name
		}
		p, err := New(pcfg, logger)
		if err != nil {
			logger.Warn("skipping provider: initialization failed",
				zap.String("provider", name),
				zap.Error(err))
			continue
		}
		reg.Register(name, p)
		logger.Info("provider registered", zap.String("provider", name))
	}

	if cfg.Default != "" {
		if err := reg.SetDefault(cfg.Default); err != nil {
			return reg, fmt.Errorf("failed to set default provider %q: %w", cfg.Default, err)
		}
	}

	return reg, nil
}
