package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Aiuj/faciliter-lib-go/internal/envutil"
	"github.com/Aiuj/faciliter-lib-go/llm"
	"github.com/Aiuj/faciliter-lib-go/llm/providers"
)

const (
	// DefaultBaseURL 本地 Ollama 服务默认地址
	DefaultBaseURL = "http://localhost:11434"
	// DefaultModel 默认模型
	DefaultModel = "llama3.1:8b"

	// 本地推理比云端慢得多，超时放宽
	defaultTimeout = 120 * time.Second
)

// Config Ollama Provider 配置。本地服务无需 APIKey。
type Config struct {
	providers.BaseProviderConfig `yaml:",inline"`
}

// ConfigFromEnv 从环境变量读取 Ollama 配置。
// OLLAMA_HOST 优先（与 ollama CLI 一致，允许省略 scheme），OLLAMA_BASE_URL 为别名。
func ConfigFromEnv() Config {
	return Config{
		BaseProviderConfig: providers.BaseProviderConfig{
			BaseURL: normalizeBaseURL(envutil.String(DefaultBaseURL, "OLLAMA_HOST", "OLLAMA_BASE_URL")),
			Model:   envutil.String(DefaultModel, "OLLAMA_MODEL"),
			Timeout: envutil.Duration(defaultTimeout, "OLLAMA_TIMEOUT_SECONDS"),
		},
	}
}

// normalizeBaseURL 允许 OLLAMA_HOST 形如 "127.0.0.1:11434"（ollama CLI 约定）。
func normalizeBaseURL(raw string) string {
	if raw == "" {
		return DefaultBaseURL
	}
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	return strings.TrimRight(raw, "/")
}

// Provider 实现本地/自托管 Ollama 服务的 LLM Provider
// Ollama API 特点：
// 1. 无认证（本地服务）
// 2. /api/chat 原生端点，stream:false 时返回单个 JSON 对象
// 3. 工具调用的 arguments 在线格式上是 JSON 对象而非字符串
// 4. format 字段既接受 "json" 也接受完整 JSON Schema 对象
type Provider struct {
	cfg    Config
	client *http.Client
	logger *zap.Logger
}

// New 创建 Ollama Provider
func New(cfg Config, logger *zap.Logger) *Provider {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	cfg.BaseURL = normalizeBaseURL(cfg.BaseURL)
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Provider{
		cfg: cfg,
		// 本地 HTTP 服务，无需 TLS 加固传输层
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

func (p *Provider) Name() string { return "ollama" }

func (p *Provider) SupportsNativeFunctionCalling() bool { return true }

func (p *Provider) SupportsSearchGrounding() bool { return false }

// HealthCheck 通过 /api/tags 探活。
func (p *Provider) HealthCheck(ctx context.Context) (*llm.HealthStatus, error) {
	start := time.Now()
	endpoint := p.cfg.BaseURL + "/api/tags"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := p.client.Do(httpReq)
	latency := time.Since(start)
	if err != nil {
		return &llm.HealthStatus{Healthy: false, Latency: latency}, err
	}
	defer providers.SafeCloseBody(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return &llm.HealthStatus{Healthy: false, Latency: latency},
			fmt.Errorf("ollama health check failed: status=%d", resp.StatusCode)
	}
	return &llm.HealthStatus{Healthy: true, Latency: latency}, nil
}

// ListModels 列出本地已拉取的模型（/api/tags）。
func (p *Provider) ListModels(ctx context.Context) ([]llm.Model, error) {
	var tagsResp struct {
		Models []struct {
			Name       string    `json:"name"`
			ModifiedAt time.Time `json:"modified_at"`
		} `json:"models"`
	}
	endpoint := p.cfg.BaseURL + "/api/tags"
	if err := providers.DoJSONRequest(ctx, p.client, http.MethodGet, endpoint, nil, nil, &tagsResp, p.Name()); err != nil {
		return nil, err
	}

	models := make([]llm.Model, 0, len(tagsResp.Models))
	for _, m := range tagsResp.Models {
		models = append(models, llm.Model{
			ID:      m.Name,
			Object:  "model",
			OwnedBy: "library",
		})
	}
	return models, nil
}

// Ollama 在线格式结构

type ollamaMessage struct {
	Role      string           `json:"role"`
	Content   string           `json:"content"`
	ToolCalls []ollamaToolCall `json:"tool_calls,omitempty"`
}

type ollamaToolCall struct {
	Function ollamaFunctionCall `json:"function"`
}

// ollamaFunctionCall 的 Arguments 在线格式上是 JSON 对象而非字符串，
// 用 RawMessage 双向透传。
type ollamaFunctionCall struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

type ollamaOptions struct {
	Temperature float32  `json:"temperature,omitempty"`
	TopP        float32  `json:"top_p,omitempty"`
	NumPredict  int      `json:"num_predict,omitempty"`
	Stop        []string `json:"stop,omitempty"`
}

type ollamaChatRequest struct {
	Model    string                 `json:"model"`
	Messages []ollamaMessage        `json:"messages"`
	Stream   bool                   `json:"stream"`
	Tools    []providers.OpenAITool `json:"tools,omitempty"`
	Format   json.RawMessage        `json:"format,omitempty"`
	Options  *ollamaOptions         `json:"options,omitempty"`
}

type ollamaChatResponse struct {
	Model           string        `json:"model"`
	CreatedAt       time.Time     `json:"created_at"`
	Message         ollamaMessage `json:"message"`
	Done            bool          `json:"done"`
	DoneReason      string        `json:"done_reason,omitempty"`
	PromptEvalCount int           `json:"prompt_eval_count,omitempty"`
	EvalCount       int           `json:"eval_count,omitempty"`
}

// convertMessages 将统一格式转换为 Ollama 消息。
func convertMessages(msgs []llm.Message) []ollamaMessage {
	out := make([]ollamaMessage, 0, len(msgs))
	for _, m := range msgs {
		om := ollamaMessage{
			Role:    string(m.Role),
			Content: m.Content,
		}
		for _, tc := range m.ToolCalls {
			om.ToolCalls = append(om.ToolCalls, ollamaToolCall{
				Function: ollamaFunctionCall{
					Name:      tc.Name,
					Arguments: tc.Arguments,
				},
			})
		}
		out = append(out, om)
	}
	return out
}

// Completion 执行一次同步聊天补全（stream:false）。
func (p *Provider) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResult, error) {
	if req.UseSearchGrounding {
		// Ollama 没有检索 grounding，静默忽略
		p.logger.Debug("ollama: search grounding not supported, ignoring flag")
	}

	body := ollamaChatRequest{
		Model:    providers.ChooseModel(req, p.cfg.Model, DefaultModel),
		Messages: convertMessages(req.Messages),
		Stream:   false,
		Tools:    providers.ConvertToolsToOpenAI(req.Tools),
	}

	if so := req.StructuredOutput; so != nil {
		if len(so.Schema) > 0 {
			body.Format = so.Schema
		} else {
			body.Format = json.RawMessage(`"json"`)
		}
	}

	if req.Temperature > 0 || req.TopP > 0 || req.MaxTokens > 0 || len(req.Stop) > 0 {
		body.Options = &ollamaOptions{
			Temperature: req.Temperature,
			TopP:        req.TopP,
			NumPredict:  req.MaxTokens,
			Stop:        req.Stop,
		}
	}

	endpoint := p.cfg.BaseURL + "/api/chat"
	var ollamaResp ollamaChatResponse
	if err := providers.DoJSONRequest(ctx, p.client, http.MethodPost, endpoint, nil, body, &ollamaResp, p.Name()); err != nil {
		return nil, err
	}

	res := toChatResult(ollamaResp, p.Name(), body.Model)
	providers.ParseStructured(res, req)
	return res, nil
}

// toChatResult 归并 Ollama 响应到统一结果。
// 工具调用没有 ID，按 call_<name>_<i> 合成。
func toChatResult(or ollamaChatResponse, provider, model string) *llm.ChatResult {
	res := &llm.ChatResult{
		Provider:     provider,
		Model:        model,
		Content:      or.Message.Content,
		FinishReason: or.DoneReason,
		CreatedAt:    or.CreatedAt,
		ToolCalls:    []llm.ToolCall{},
	}
	if or.Model != "" {
		res.Model = or.Model
	}

	for i, tc := range or.Message.ToolCalls {
		res.ToolCalls = append(res.ToolCalls, llm.ToolCall{
			ID:        fmt.Sprintf("call_%s_%d", tc.Function.Name, i),
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}

	if or.PromptEvalCount > 0 || or.EvalCount > 0 {
		res.Usage = llm.ChatUsage{
			PromptTokens:     or.PromptEvalCount,
			CompletionTokens: or.EvalCount,
			TotalTokens:      or.PromptEvalCount + or.EvalCount,
		}
	}
	return res
}
