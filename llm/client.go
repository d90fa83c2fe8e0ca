package llm

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/Aiuj/faciliter-lib-go/internal/ctxkeys"
	"github.com/Aiuj/faciliter-lib-go/internal/metrics"
	"github.com/Aiuj/faciliter-lib-go/llm/tokenizer"
	"github.com/Aiuj/faciliter-lib-go/tracing"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Client 是 Provider 之上的统一门面，承担请求校验、观测与结果归一化。
// 适配层只做协议翻译；追踪、指标与用量估算等横切关注点全部集中在这里，
// 因此任何 Provider 实现接入后即自动获得完整观测能力。
//
// 观测路径全程受保护：追踪体系未初始化或中途损坏时退化为空操作，
// 绝不影响请求本身的成败。
type Client struct {
	provider  Provider
	logger    *zap.Logger
	collector *metrics.Collector
}

// ClientOption 配置 Client 的可选项。
type ClientOption func(*Client)

// WithLogger 指定 Client 使用的日志器。传 nil 等效于不设置。
func WithLogger(logger *zap.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetricsCollector 替换默认的指标收集器。传 nil 则禁用指标
// （Collector 对 nil 接收者安全）。
func WithMetricsCollector(collector *metrics.Collector) ClientOption {
	return func(c *Client) {
		c.collector = collector
	}
}

// NewClient 基于给定 Provider 构造 Client。
func NewClient(p Provider, opts ...ClientOption) *Client {
	c := &Client{
		provider:  p,
		logger:    zap.NewNop(),
		collector: metrics.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Provider 返回底层的 Provider 实现。
func (c *Client) Provider() Provider { return c.provider }

// Chat 以消息列表发起一次聊天补全。
func (c *Client) Chat(ctx context.Context, messages []Message, opts ...RequestOption) (*ChatResult, error) {
	req := &ChatRequest{Messages: messages}
	for _, opt := range opts {
		opt(req)
	}
	return c.Completion(ctx, req)
}

// ChatText 是单轮纯文本会话的快捷方式：prompt 以 user 角色发出，
// 返回结果文本。
func (c *Client) ChatText(ctx context.Context, prompt string, opts ...RequestOption) (string, error) {
	res, err := c.Chat(ctx, []Message{{Role: RoleUser, Content: prompt}}, opts...)
	if err != nil {
		return "", err
	}
	return res.Text(), nil
}

// Completion 执行完整的请求管线：
//
//  1. 本地校验（消息非空、角色合法），失败即返回，不发起网络调用；
//  2. 生成本次调用的请求标识；
//  3. 打开追踪 span 并计时；
//  4. 委托给 Provider；
//  5. 归一化结果（ToolCalls 永不为 nil、用量缺失时本地估算、
//     结构化输出兜底解析）；
//  6. 写入追踪元数据与指标——只含服务商、模型、token 计数与完成原因，
//     永不包含消息或补全内容。
func (c *Client) Completion(ctx context.Context, req *ChatRequest) (*ChatResult, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	requestID := uuid.NewString()

	sctx, end := tracing.StartSpan(ctx, "llm.completion")
	start := time.Now()

	res, err := c.provider.Completion(sctx, req)
	latency := time.Since(start)

	if res != nil {
		c.normalize(req, res, requestID)
	}

	status := "success"
	errorCode := ""
	if err != nil {
		status = "error"
		errorCode = string(CodeOf(err))
	}

	md := tracing.Metadata{
		Provider:  c.provider.Name(),
		Model:     req.Model,
		Latency:   latency,
		ErrorCode: errorCode,
	}
	if res != nil {
		md.Provider = res.Provider
		md.Model = res.Model
		md.PromptTokens = res.Usage.PromptTokens
		md.CompletionTokens = res.Usage.CompletionTokens
		md.TotalTokens = res.Usage.TotalTokens
	}
	if sid, ok := ctxkeys.SessionID(ctx); ok {
		md.SessionID = sid
	}
	if tid, ok := ctxkeys.TenantID(ctx); ok {
		md.TenantID = tid
	}
	tracing.AddMetadata(sctx, md)
	end(err)

	c.collector.RecordLLMRequest(md.Provider, md.Model, status, latency,
		md.PromptTokens, md.CompletionTokens)

	if err != nil {
		c.logger.Warn("llm completion failed",
			zap.String("provider", md.Provider),
			zap.String("request_id", requestID),
			zap.String("code", errorCode),
			zap.Duration("latency", latency),
			zap.Error(err))
		return nil, err
	}

	c.logger.Debug("llm completion",
		zap.String("provider", md.Provider),
		zap.String("model", md.Model),
		zap.String("request_id", res.RequestID),
		zap.String("finish_reason", res.FinishReason),
		zap.Int("total_tokens", res.Usage.TotalTokens),
		zap.Bool("usage_estimated", res.Usage.Estimated),
		zap.Duration("latency", latency))
	return res, nil
}

// HealthCheck 委托底层 Provider 的健康检查。
func (c *Client) HealthCheck(ctx context.Context) (*HealthStatus, error) {
	return c.provider.HealthCheck(ctx)
}

// validateRequest 做不触网的本地校验。
func validateRequest(req *ChatRequest) error {
	if req == nil || len(req.Messages) == 0 {
		return NewError(ErrInvalidRequest, "", "messages must not be empty")
	}
	for i, m := range req.Messages {
		if !ValidRole(m.Role) {
			return NewError(ErrInvalidRequest, "", "message %d: unknown role %q", i, m.Role)
		}
	}
	return nil
}

// normalize 把 Provider 返回的结果整理成统一契约：
// ToolCalls 永不为 nil；服务商未给请求标识时回填本地生成的 UUID
// （服务商标识优先）；用量缺失时用本地分词器估算并标记 Estimated；
// 请求了结构化输出而适配层未解析时兜底解析一次。
func (c *Client) normalize(req *ChatRequest, res *ChatResult, requestID string) {
	if res.Provider == "" {
		res.Provider = c.provider.Name()
	}
	if res.Model == "" {
		res.Model = req.Model
	}
	if res.ToolCalls == nil {
		res.ToolCalls = []ToolCall{}
	}
	if res.RequestID == "" {
		res.RequestID = requestID
	}

	if res.Usage.PromptTokens == 0 && res.Usage.CompletionTokens == 0 && res.Usage.TotalTokens == 0 {
		c.estimateUsage(req, res)
	} else if res.Usage.TotalTokens == 0 {
		res.Usage.TotalTokens = res.Usage.PromptTokens + res.Usage.CompletionTokens
	}

	if req.StructuredOutput != nil && res.Structured == nil && res.Content != "" {
		var m map[string]any
		if err := json.Unmarshal([]byte(stripJSONFences(res.Content)), &m); err == nil {
			res.Structured = m
		}
	}
}

// estimateUsage 在服务商未返回 token 计数时用本地分词器估算。
// 估算失败时保持零值，不报错。
func (c *Client) estimateUsage(req *ChatRequest, res *ChatResult) {
	model := res.Model
	if model == "" {
		model = req.Model
	}
	tok := tokenizer.ForModel(model)

	msgs := make([]tokenizer.Message, 0, len(req.Messages))
	for _, m := range req.Messages {
		msgs = append(msgs, tokenizer.Message{Role: string(m.Role), Content: m.Content})
	}

	promptTokens, err := tok.CountMessages(msgs)
	if err != nil {
		return
	}
	completionTokens, err := tok.CountTokens(res.Content)
	if err != nil {
		return
	}

	res.Usage = ChatUsage{
		PromptTokens:     promptTokens,
		CompletionTokens: completionTokens,
		TotalTokens:      promptTokens + completionTokens,
		Estimated:        true,
	}
}

// stripJSONFences 剥掉 Markdown 代码围栏，便于解析包裹在
// ```json ... ``` 中的结构化输出。
func stripJSONFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}
