package factory

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/Aiuj/faciliter-lib-go/llm"
	"github.com/Aiuj/faciliter-lib-go/llm/providers/openaicompat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// =============================================================================
// Factory Tests
// =============================================================================

func TestNew_BuiltinProviders(t *testing.T) {
	logger := zap.NewNop()

	tests := []struct {
		name     string
		cfg      Config
		wantName string
	}{
		{
			name:     "gemini",
			cfg:      Config{Provider: "gemini", APIKey: "test-key"},
			wantName: "gemini",
		},
		{
			name:     "ollama",
			cfg:      Config{Provider: "ollama"},
			wantName: "ollama",
		},
		{
			name:     "openai",
			cfg:      Config{Provider: "openai", APIKey: "sk-test"},
			wantName: "openai",
		},
		{
			name:     "name normalization",
			cfg:      Config{Provider: "  Gemini ", APIKey: "test-key"},
			wantName: "gemini",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := New(tt.cfg, logger)
			require.NoError(t, err)
			require.NotNil(t, p)
			assert.Equal(t, tt.wantName, p.Name())
		})
	}
}

func TestNew_GenericOpenAICompat(t *testing.T) {
	p, err := New(Config{
		Provider: "groq",
		APIKey:   "gsk-test",
		BaseURL:  "https://api.groq.com/openai",
		Model:    "llama-3.1-70b-versatile",
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "groq", p.Name())
}

func TestNew_UnknownProviderWithoutBaseURL(t *testing.T) {
	_, err := New(Config{Provider: "nonexistent"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown provider")
	assert.Contains(t, err.Error(), "base_url is required")
}

func TestNew_EmptyProviderWithBaseURL(t *testing.T) {
	p, err := New(Config{BaseURL: "http://localhost:8000/v1"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "openai-compatible", p.Name())
}

func TestNew_NilLogger(t *testing.T) {
	p, err := New(Config{Provider: "ollama"}, nil)
	require.NoError(t, err)
	require.NotNil(t, p)
}

// geminiStub returns a handler serving a minimal valid generateContent
// response and records each hit in *hits.
func geminiStub(hits *int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		*hits++
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{
				{
					"content":      map[string]any{"role": "model", "parts": []map[string]any{{"text": "ok"}}},
					"finishReason": "STOP",
				},
			},
		})
	}
}

func TestNew_ExplicitConfigBeatsEnv(t *testing.T) {
	var envHits, explicitHits int
	envServer := httptest.NewServer(geminiStub(&envHits))
	defer envServer.Close()
	explicitServer := httptest.NewServer(geminiStub(&explicitHits))
	defer explicitServer.Close()

	os.Setenv("GEMINI_API_KEY", "env-key")
	os.Setenv("GEMINI_BASE_URL", envServer.URL)
	defer os.Unsetenv("GEMINI_API_KEY")
	defer os.Unsetenv("GEMINI_BASE_URL")

	p, err := New(Config{Provider: "gemini", BaseURL: explicitServer.URL}, zap.NewNop())
	require.NoError(t, err)

	_, err = p.Completion(context.Background(), &llm.ChatRequest{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "hi"}},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, explicitHits, "explicit base URL must win over env")
	assert.Equal(t, 0, envHits)
}

func TestNew_EnvFillsUnsetFields(t *testing.T) {
	var envHits int
	envServer := httptest.NewServer(geminiStub(&envHits))
	defer envServer.Close()

	os.Setenv("GEMINI_API_KEY", "env-key")
	os.Setenv("GEMINI_BASE_URL", envServer.URL)
	defer os.Unsetenv("GEMINI_API_KEY")
	defer os.Unsetenv("GEMINI_BASE_URL")

	p, err := New(Config{Provider: "gemini"}, zap.NewNop())
	require.NoError(t, err)

	_, err = p.Completion(context.Background(), &llm.ChatRequest{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "hi"}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, envHits)
}

func TestNew_CompatExtrasReachTheWire(t *testing.T) {
	var gotAuth, gotReferer, gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("api-key")
		gotReferer = r.Header.Get("HTTP-Referer")
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id":    "chatcmpl-1",
			"model": "m",
			"choices": []map[string]any{
				{"index": 0, "finish_reason": "stop", "message": map[string]any{"role": "assistant", "content": "ok"}},
			},
		})
	}))
	defer server.Close()

	p, err := New(Config{
		Provider: "gateway",
		APIKey:   "secret",
		BaseURL:  server.URL,
		Model:    "m",
		Extra: map[string]any{
			"endpoint_path": "/custom/chat",
			"auth_header":   "api-key",
			"headers":       map[string]any{"HTTP-Referer": "https://example.com"},
		},
	}, zap.NewNop())
	require.NoError(t, err)

	_, err = p.Completion(context.Background(), &llm.ChatRequest{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "hi"}},
	})
	require.NoError(t, err)

	assert.Equal(t, "secret", gotAuth)
	assert.Equal(t, "https://example.com", gotReferer)
	assert.Equal(t, "/custom/chat", gotPath)
}

func TestApplyCompatExtra(t *testing.T) {
	var cfg openaicompat.Config
	applyCompatExtra(&cfg, map[string]any{
		"endpoint_path":   "/v1/custom",
		"models_endpoint": "/v1/list",
		"auth_header":     "x-api-key",
		"supports_tools":  false,
		"fallback_model":  "backup",
		"headers":         map[string]string{"X-Title": "demo"},
	})

	assert.Equal(t, "/v1/custom", cfg.EndpointPath)
	assert.Equal(t, "/v1/list", cfg.ModelsEndpoint)
	assert.Equal(t, "x-api-key", cfg.AuthHeaderName)
	require.NotNil(t, cfg.SupportsTools)
	assert.False(t, *cfg.SupportsTools)
	assert.Equal(t, "backup", cfg.FallbackModel)
	assert.Equal(t, map[string]string{"X-Title": "demo"}, cfg.ExtraHeaders)
}

func TestApplyCompatExtra_NilAndUnknownKeys(t *testing.T) {
	var cfg openaicompat.Config
	applyCompatExtra(&cfg, nil)
	applyCompatExtra(&cfg, map[string]any{"unrelated": 42})
	assert.Empty(t, cfg.EndpointPath)
	assert.Nil(t, cfg.SupportsTools)
}

// =============================================================================
// Environment Bootstrap Tests
// =============================================================================

func TestFromEnv_DefaultsToOllama(t *testing.T) {
	os.Unsetenv("LLM_PROVIDER")

	p, err := FromEnv(zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "ollama", p.Name())
}

func TestFromEnv_ReadsLLMProvider(t *testing.T) {
	os.Setenv("LLM_PROVIDER", "gemini")
	os.Setenv("GEMINI_API_KEY", "env-key")
	defer os.Unsetenv("LLM_PROVIDER")
	defer os.Unsetenv("GEMINI_API_KEY")

	p, err := FromEnv(zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "gemini", p.Name())
}

func TestNewClient_FromConfig(t *testing.T) {
	client, err := NewClient(Config{Provider: "ollama"}, zap.NewNop())
	require.NoError(t, err)
	require.NotNil(t, client)
	assert.Equal(t, "ollama", client.Provider().Name())
}

func TestNewClientFromEnv(t *testing.T) {
	os.Unsetenv("LLM_PROVIDER")

	client, err := NewClientFromEnv(zap.NewNop())
	require.NoError(t, err)
	require.NotNil(t, client)
	assert.Equal(t, "ollama", client.Provider().Name())
}

func TestNewClientFromEnv_UnknownProvider(t *testing.T) {
	os.Setenv("LLM_PROVIDER", "mystery")
	defer os.Unsetenv("LLM_PROVIDER")

	_, err := NewClientFromEnv(zap.NewNop())
	require.Error(t, err)
}

func TestSupportedProviders(t *testing.T) {
	names := SupportedProviders()
	assert.Len(t, names, 3)
	assert.Contains(t, names, "gemini")
	assert.Contains(t, names, "ollama")
	assert.Contains(t, names, "openai")
}

// =============================================================================
// Registry Bootstrap Tests
// =============================================================================

func TestNewRegistryFromConfig(t *testing.T) {
	reg, err := NewRegistryFromConfig(RegistryConfig{
		Default: "local",
		Providers: map[string]Config{
			"local": {Provider: "ollama"},
			"cloud": {Provider: "gemini", APIKey: "test-key"},
		},
	}, zap.NewNop())
	require.NoError(t, err)
	require.NotNil(t, reg)

	assert.Equal(t, 2, reg.Len())
	assert.Equal(t, []string{"cloud", "local"}, reg.List())

	def, err := reg.Default()
	require.NoError(t, err)
	assert.Equal(t, "ollama", def.Name())
}

func TestNewRegistryFromConfig_KeyIsProviderName(t *testing.T) {
	// Map key doubles as the provider selector when Config.Provider is empty.
	reg, err := NewRegistryFromConfig(RegistryConfig{
		Providers: map[string]Config{
			"ollama": {},
		},
	}, zap.NewNop())
	require.NoError(t, err)

	p, ok := reg.Get("ollama")
	require.True(t, ok)
	assert.Equal(t, "ollama", p.Name())
}

func TestNewRegistryFromConfig_SkipsFailedProviders(t *testing.T) {
	reg, err := NewRegistryFromConfig(RegistryConfig{
		Providers: map[string]Config{
			"local":  {Provider: "ollama"},
			"broken": {Provider: "mystery"}, // no base_url: cannot initialize
		},
	}, zap.NewNop())
	require.NoError(t, err)

	assert.Equal(t, 1, reg.Len())
	_, ok := reg.Get("broken")
	assert.False(t, ok)
}

func TestNewRegistryFromConfig_BadDefault(t *testing.T) {
	_, err := NewRegistryFromConfig(RegistryConfig{
		Default: "missing",
		Providers: map[string]Config{
			"local": {Provider: "ollama"},
		},
	}, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "default provider")
}

func TestNew_TimeoutOverride(t *testing.T) {
	// Timeout flows through to the HTTP client; a sub-request-latency timeout
	// must surface as an upstream timeout error.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	p, err := New(Config{
		Provider: "speedy",
		BaseURL:  server.URL,
		Model:    "m",
		Timeout:  30 * time.Millisecond,
	}, zap.NewNop())
	require.NoError(t, err)

	_, err = p.Completion(context.Background(), &llm.ChatRequest{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "hi"}},
	})
	require.Error(t, err)
	llmErr, ok := llm.AsError(err)
	require.True(t, ok)
	assert.Equal(t, llm.ErrUpstreamTimeout, llmErr.Code)
}
