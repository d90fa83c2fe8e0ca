package embedding

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Aiuj/faciliter-lib-go/internal/envutil"
	"github.com/Aiuj/faciliter-lib-go/internal/metrics"
	"github.com/Aiuj/faciliter-lib-go/llm"
	"github.com/Aiuj/faciliter-lib-go/tracing"
	"go.uber.org/zap"
)

// DefaultProvider 是 ConfigFromEnv 在 EMBEDDING_PROVIDER 未设置时的选择。
const DefaultProvider = "ollama"

// Config 是所有嵌入提供者共用的配置。
type Config struct {
	// Provider 选择实现：gemini、ollama、openai，或任意名称 + BaseURL
	// 表示 OpenAI 兼容网关。
	Provider   string        `json:"provider" yaml:"provider" env:"EMBEDDING_PROVIDER"`
	Model      string        `json:"model,omitempty" yaml:"model,omitempty" env:"EMBEDDING_MODEL"`
	APIKey     string        `json:"api_key,omitempty" yaml:"api_key,omitempty" env:"EMBEDDING_API_KEY"`
	BaseURL    string        `json:"base_url,omitempty" yaml:"base_url,omitempty" env:"EMBEDDING_BASE_URL"`
	Dimensions Dimension     `json:"dimensions,omitempty" yaml:"dimensions,omitempty" env:"EMBEDDING_DIMENSION"`
	Timeout    time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty" env:"EMBEDDING_TIMEOUT_SECONDS"`
}

// ConfigFromEnv 从环境变量读取嵌入配置。EMBEDDING_DIMENSION 接受
// 数字文本（如 "1024"），非法取值返回构造错误而不是静默忽略。
func ConfigFromEnv() (Config, error) {
	cfg := Config{
		Provider: envutil.String(DefaultProvider, "EMBEDDING_PROVIDER"),
		Model:    envutil.String("", "EMBEDDING_MODEL"),
		APIKey:   envutil.String("", "EMBEDDING_API_KEY"),
		BaseURL:  envutil.String("", "EMBEDDING_BASE_URL"),
		Timeout:  envutil.Duration(0, "EMBEDDING_TIMEOUT_SECONDS"),
	}

	if raw := envutil.String("", "EMBEDDING_DIMENSION"); raw != "" {
		var d Dimension
		if err := d.parse(raw); err != nil {
			return Config{}, err
		}
		cfg.Dimensions = d
	}
	return cfg, nil
}

// New 按 Config.Provider 创建嵌入提供者，并附加观测装饰。
// 未知名称在给出 BaseURL 时按 OpenAI 兼容网关接入，否则返回配置错误。
func New(cfg Config, logger *zap.Logger) (Provider, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var p Provider
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "gemini":
		p = NewGemini(cfg)
	case "ollama":
		p = NewOllama(cfg)
	case "openai":
		p = NewOpenAI(cfg)
	default:
		if cfg.BaseURL == "" {
			return nil, fmt.Errorf("unknown embedding provider %q: base_url is required for generic OpenAI-compatible provider", cfg.Provider)
		}
		p = NewOpenAI(cfg)
	}
	return Instrument(p, logger), nil
}

// NewFromEnv 从环境变量一键装配嵌入提供者。
func NewFromEnv(logger *zap.Logger) (Provider, error) {
	cfg, err := ConfigFromEnv()
	if err != nil {
		return nil, err
	}
	return New(cfg, logger)
}

// Instrument 为 Provider 附加追踪与指标。嵌入实现保持纯净，
// 观测全部在装饰器中完成且受保护，绝不影响请求成败。
// 重复包装是无害的空操作。
func Instrument(p Provider, logger *zap.Logger) Provider {
	if _, ok := p.(*instrumentedProvider); ok {
		return p
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &instrumentedProvider{
		inner:     p,
		collector: metrics.Default(),
		logger:    logger,
	}
}

type instrumentedProvider struct {
	inner     Provider
	collector *metrics.Collector
	logger    *zap.Logger
}

func (ip *instrumentedProvider) Name() string    { return ip.inner.Name() }
func (ip *instrumentedProvider) Dimensions() int { return ip.inner.Dimensions() }

func (ip *instrumentedProvider) Embed(ctx context.Context, texts []string) (*Result, error) {
	sctx, end := tracing.StartSpan(ctx, "embedding.embed")
	start := time.Now()

	res, err := ip.inner.Embed(sctx, texts)
	latency := time.Since(start)

	status := "success"
	md := tracing.Metadata{
		Provider: ip.inner.Name(),
		Latency:  latency,
	}
	if res != nil {
		md.Model = res.Model
		md.PromptTokens = res.Usage.PromptTokens
		md.TotalTokens = res.Usage.TotalTokens
	}
	if err != nil {
		status = "error"
		md.ErrorCode = string(llm.CodeOf(err))
	}
	tracing.AddMetadata(sctx, md)
	end(err)

	ip.collector.RecordEmbeddingRequest(md.Provider, md.Model, status, latency)

	if err != nil {
		ip.logger.Warn("embedding request failed",
			zap.String("provider", md.Provider),
			zap.Int("input_count", len(texts)),
			zap.Duration("latency", latency),
			zap.Error(err))
		return nil, err
	}

	ip.logger.Debug("embedding request",
		zap.String("provider", md.Provider),
		zap.String("model", md.Model),
		zap.Int("input_count", len(texts)),
		zap.Int("total_tokens", md.TotalTokens),
		zap.Duration("latency", latency))
	return res, nil
}
