// =============================================================================
// 📦 聚合配置加载
// =============================================================================
// 统一配置入口，支持 YAML 文件 + 环境变量覆盖
//
// 配置优先级: 默认值 → YAML 文件 → 环境变量
// =============================================================================
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Aiuj/faciliter-lib-go/cache"
	"github.com/Aiuj/faciliter-lib-go/internal/envutil"
	"github.com/Aiuj/faciliter-lib-go/llm/embedding"
	"github.com/Aiuj/faciliter-lib-go/llm/factory"
	"github.com/Aiuj/faciliter-lib-go/tracing"
)

// =============================================================================
// 🎯 核心配置结构
// =============================================================================

// Config 是库的完整配置结构
type Config struct {
	// App 应用标识
	App AppConfig `json:"app" yaml:"app"`

	// Log 日志配置
	Log LogConfig `json:"log" yaml:"log"`

	// LLM 聊天提供者配置
	LLM factory.Config `json:"llm" yaml:"llm"`

	// Embedding 嵌入提供者配置
	Embedding embedding.Config `json:"embedding" yaml:"embedding"`

	// Cache Redis 缓存配置
	Cache cache.Config `json:"cache" yaml:"cache"`

	// Tracing 追踪导出配置
	Tracing tracing.Config `json:"tracing" yaml:"tracing"`
}

// AppConfig 应用标识配置
type AppConfig struct {
	// 应用名称
	Name string `json:"name" yaml:"name" env:"APP_NAME"`
	// 版本号
	Version string `json:"version,omitempty" yaml:"version,omitempty" env:"APP_VERSION"`
	// 部署环境: development, staging, production
	Environment string `json:"environment" yaml:"environment" env:"APP_ENVIRONMENT,ENVIRONMENT"`
}

// Default 返回默认配置
func Default() *Config {
	return &Config{
		App: AppConfig{
			Name:        "faciliter-app",
			Environment: "development",
		},
		Log:       DefaultLogConfig(),
		LLM:       factory.Config{Provider: factory.DefaultProvider},
		Embedding: embedding.Config{Provider: embedding.DefaultProvider},
		Cache:     cache.DefaultConfig(),
		Tracing:   *tracing.DefaultConfig(),
	}
}

// =============================================================================
// 🔧 配置加载
// =============================================================================

// Load 加载配置
// 优先级: 默认值 → YAML 文件 → 环境变量
//
// path 为空或文件不存在时跳过文件阶段，部分配置是合法的。
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			// 配置文件可选，缺失时直接使用默认值
		case err != nil:
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("config: parse %s: %w", path, err)
			}
		}
	}

	if err := envutil.Apply(cfg); err != nil {
		return nil, fmt.Errorf("config: environment: %w", err)
	}
	return cfg, nil
}

// LoadFile 从 YAML 文件加载配置（默认值打底），文件缺失视为错误。
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	if err := envutil.Apply(cfg); err != nil {
		return nil, fmt.Errorf("config: environment: %w", err)
	}
	return cfg, nil
}

// FromEnv 仅用默认值和环境变量构建配置。
func FromEnv() (*Config, error) {
	return Load("")
}

// MustLoad 加载配置，失败时 panic
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}

// =============================================================================
// 🔍 校验
// =============================================================================

// Validate 验证配置
func (c *Config) Validate() error {
	var errs []string

	if err := c.Log.validate(); err != nil {
		errs = append(errs, err.Error())
	}

	if c.LLM.Provider == "" && c.LLM.BaseURL == "" {
		errs = append(errs, "llm.provider is required (or llm.base_url for an OpenAI-compatible endpoint)")
	}
	if c.Embedding.Provider == "" && c.Embedding.BaseURL == "" {
		errs = append(errs, "embedding.provider is required (or embedding.base_url)")
	}
	if c.Embedding.Dimensions < 0 {
		errs = append(errs, "embedding.dimensions must not be negative")
	}

	if c.Cache.Enabled {
		if c.Cache.Host == "" {
			errs = append(errs, "cache.host is required when the cache is enabled")
		}
		if c.Cache.Port <= 0 || c.Cache.Port > 65535 {
			errs = append(errs, fmt.Sprintf("cache.port %d is out of range", c.Cache.Port))
		}
	}

	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		errs = append(errs, fmt.Sprintf("tracing.sample_rate %v must be within [0, 1]", c.Tracing.SampleRate))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors: %s", strings.Join(errs, "; "))
	}
	return nil
}
