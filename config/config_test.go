// 聚合配置加载与校验测试。
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aiuj/faciliter-lib-go/llm/embedding"
)

// --- 默认配置测试 ---

func TestDefault(t *testing.T) {
	cfg := Default()

	// 验证应用默认值
	assert.Equal(t, "faciliter-app", cfg.App.Name)
	assert.Equal(t, "development", cfg.App.Environment)

	// 验证日志默认值
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "stdout", cfg.Log.OutputPath)

	// 验证提供者默认值
	assert.Equal(t, "ollama", cfg.LLM.Provider)
	assert.Equal(t, "ollama", cfg.Embedding.Provider)

	// 验证缓存默认值
	assert.Equal(t, "localhost", cfg.Cache.Host)
	assert.Equal(t, 6379, cfg.Cache.Port)
	assert.Equal(t, time.Hour, cfg.Cache.DefaultTTL)
	assert.True(t, cfg.Cache.Enabled)

	// 验证追踪默认值
	assert.False(t, cfg.Tracing.Enabled)
	assert.Equal(t, 1.0, cfg.Tracing.SampleRate)

	require.NoError(t, cfg.Validate())
}

// --- 加载测试 ---

func TestLoad_EmptyPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "ollama", cfg.LLM.Provider)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "ollama", cfg.LLM.Provider)
}

func TestLoad_FromYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	yamlContent := `
app:
  name: "orders-service"
  environment: "production"

log:
  level: "debug"
  format: "console"

llm:
  provider: "gemini"
  model: "gemini-2.0-flash"
  timeout: 90s

embedding:
  provider: "openai"
  model: "text-embedding-3-small"
  dimensions: "1536"

cache:
  host: "redis.internal"
  port: 6380
  prefix: "orders"
  tenant_id: "acme"
  default_ttl: 30m

tracing:
  enabled: true
  service_name: "orders-service"
  sample_rate: 0.25
`
	err := os.WriteFile(configPath, []byte(yamlContent), 0644)
	require.NoError(t, err)

	cfg, err := Load(configPath)
	require.NoError(t, err)

	// 验证 YAML 值覆盖了默认值
	assert.Equal(t, "orders-service", cfg.App.Name)
	assert.Equal(t, "production", cfg.App.Environment)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)

	assert.Equal(t, "gemini", cfg.LLM.Provider)
	assert.Equal(t, "gemini-2.0-flash", cfg.LLM.Model)
	assert.Equal(t, 90*time.Second, cfg.LLM.Timeout)

	assert.Equal(t, "openai", cfg.Embedding.Provider)
	assert.Equal(t, embedding.Dimension(1536), cfg.Embedding.Dimensions)

	assert.Equal(t, "redis.internal", cfg.Cache.Host)
	assert.Equal(t, 6380, cfg.Cache.Port)
	assert.Equal(t, "orders", cfg.Cache.Prefix)
	assert.Equal(t, "acme", cfg.Cache.TenantID)
	assert.Equal(t, 30*time.Minute, cfg.Cache.DefaultTTL)

	assert.True(t, cfg.Tracing.Enabled)
	assert.Equal(t, 0.25, cfg.Tracing.SampleRate)

	// 未出现在文件里的字段保持默认值
	assert.Equal(t, "stdout", cfg.Log.OutputPath)
	assert.True(t, cfg.Cache.Enabled)
}

func TestLoad_FromEnv(t *testing.T) {
	envVars := map[string]string{
		"APP_NAME":            "env-app",
		"APP_ENVIRONMENT":     "staging",
		"LOG_LEVEL":           "warn",
		"LLM_PROVIDER":        "openai",
		"EMBEDDING_PROVIDER":  "gemini",
		"EMBEDDING_DIMENSION": "768",
		"REDIS_HOST":          "env-redis",
		"REDIS_PORT":          "6390",
		"REDIS_ENABLED":       "no",
		"REDIS_TTL_SECONDS":   "120",
		"TRACING_SAMPLE_RATE": "0.5",
	}
	for k, v := range envVars {
		os.Setenv(k, v)
	}
	defer func() {
		for k := range envVars {
			os.Unsetenv(k)
		}
	}()

	cfg, err := Load("")
	require.NoError(t, err)

	// 验证环境变量覆盖了默认值
	assert.Equal(t, "env-app", cfg.App.Name)
	assert.Equal(t, "staging", cfg.App.Environment)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, "gemini", cfg.Embedding.Provider)
	assert.Equal(t, embedding.Dimension(768), cfg.Embedding.Dimensions)
	assert.Equal(t, "env-redis", cfg.Cache.Host)
	assert.Equal(t, 6390, cfg.Cache.Port)
	assert.False(t, cfg.Cache.Enabled)
	assert.Equal(t, 2*time.Minute, cfg.Cache.DefaultTTL)
	assert.Equal(t, 0.5, cfg.Tracing.SampleRate)
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	yamlContent := `
llm:
  provider: "gemini"
log:
  level: "debug"
`
	err := os.WriteFile(configPath, []byte(yamlContent), 0644)
	require.NoError(t, err)

	os.Setenv("LLM_PROVIDER", "openai")
	defer os.Unsetenv("LLM_PROVIDER")

	cfg, err := Load(configPath)
	require.NoError(t, err)

	// 环境变量覆盖 YAML，未设置的保持 YAML 值
	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_EmbeddingDimensionForms(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		want    embedding.Dimension
		wantErr bool
	}{
		{name: "numeric", value: "1024", want: 1024},
		{name: "quoted", value: `"1536"`, want: 1536},
		{name: "textual null", value: "null", want: 0},
		{name: "invalid", value: "large", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Setenv("EMBEDDING_DIMENSION", tt.value)
			defer os.Unsetenv("EMBEDDING_DIMENSION")

			cfg, err := Load("")
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "EMBEDDING_DIMENSION")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, cfg.Embedding.Dimensions)
		})
	}
}

func TestLoad_BadYAML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	err := os.WriteFile(configPath, []byte("llm: [unclosed"), 0644)
	require.NoError(t, err)

	_, err = Load(configPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse")
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read")
}

func TestMustLoad(t *testing.T) {
	cfg := MustLoad("")
	require.NotNil(t, cfg)

	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("cache: [broken"), 0644))

	assert.Panics(t, func() { MustLoad(configPath) })
}

// --- 校验测试 ---

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "default is valid",
			mutate: func(*Config) {},
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Log.Level = "verbose" },
			wantErr: "log.level",
		},
		{
			name:    "bad log format",
			mutate:  func(c *Config) { c.Log.Format = "xml" },
			wantErr: "log.format",
		},
		{
			name:    "missing llm provider",
			mutate:  func(c *Config) { c.LLM.Provider = "" },
			wantErr: "llm.provider",
		},
		{
			name: "unknown llm provider with base url is fine",
			mutate: func(c *Config) {
				c.LLM.Provider = ""
				c.LLM.BaseURL = "https://api.groq.com/openai"
			},
		},
		{
			name:    "negative embedding dimensions",
			mutate:  func(c *Config) { c.Embedding.Dimensions = -1 },
			wantErr: "embedding.dimensions",
		},
		{
			name:    "cache enabled without host",
			mutate:  func(c *Config) { c.Cache.Host = "" },
			wantErr: "cache.host",
		},
		{
			name:    "cache port out of range",
			mutate:  func(c *Config) { c.Cache.Port = 70000 },
			wantErr: "cache.port",
		},
		{
			name: "disabled cache skips cache checks",
			mutate: func(c *Config) {
				c.Cache.Enabled = false
				c.Cache.Host = ""
				c.Cache.Port = 0
			},
		},
		{
			name:    "sample rate above one",
			mutate:  func(c *Config) { c.Tracing.SampleRate = 1.5 },
			wantErr: "tracing.sample_rate",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := Default()
	cfg.Log.Level = "verbose"
	cfg.LLM.Provider = ""
	cfg.Tracing.SampleRate = -0.1

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log.level")
	assert.Contains(t, err.Error(), "llm.provider")
	assert.Contains(t, err.Error(), "tracing.sample_rate")
}
