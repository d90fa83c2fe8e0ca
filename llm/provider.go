package llm

import (
	"context"
	"encoding/json"
	"time"
)

// Role 标识消息在会话中的角色。
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ValidRole 判断角色是否为本库认可的取值。
func ValidRole(r Role) bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant, RoleTool:
		return true
	default:
		return false
	}
}

// ToolCall 表示模型在响应中请求的一次工具调用。
// Arguments 为工具参数的原始 JSON，由调用方自行解码。
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// Message 是 OpenAI 风格的会话消息。消息顺序即对话轮次，
// 适配层必须端到端保持原有顺序。
type Message struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content,omitempty"`
	Name       string     `json:"name,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"` // 工具返回时标识对应调用
}

// ToolSchema 描述一个可供模型调用的函数工具。
// Parameters 为 JSON Schema 原文，原样透传给服务商。
type ToolSchema struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters"`
}

// StructuredSchema 请求结构化输出：模型响应被约束为符合 Schema 的 JSON。
type StructuredSchema struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Schema      json.RawMessage `json:"schema"`
	Strict      bool            `json:"strict,omitempty"`
}

// ChatRequest 是统一的聊天补全请求。
type ChatRequest struct {
	Model       string       `json:"model,omitempty"`
	Messages    []Message    `json:"messages"`
	Temperature float32      `json:"temperature,omitempty"`
	TopP        float32      `json:"top_p,omitempty"`
	MaxTokens   int          `json:"max_tokens,omitempty"`
	Stop        []string     `json:"stop,omitempty"`
	Tools       []ToolSchema `json:"tools,omitempty"`
	ToolChoice  string       `json:"tool_choice,omitempty"` // auto/none/<tool name>

	// StructuredOutput 非空时请求 Schema 约束输出，
	// 适配层负责翻译为各服务商的等价参数。
	StructuredOutput *StructuredSchema `json:"structured_output,omitempty"`

	// UseSearchGrounding 启用服务商侧的检索增强（如 Google Search）。
	// 不支持的服务商静默忽略该标记。
	UseSearchGrounding bool `json:"use_search_grounding,omitempty"`

	Metadata map[string]string `json:"metadata,omitempty"`
}

// ChatUsage 记录一次请求的 token 用量。
// Estimated 表示上游未返回计数，数值由本地分词器估算得出。
type ChatUsage struct {
	PromptTokens     int  `json:"prompt_tokens"`
	CompletionTokens int  `json:"completion_tokens"`
	TotalTokens      int  `json:"total_tokens"`
	Estimated        bool `json:"estimated,omitempty"`
}

// ChatResult 是跨服务商统一的聊天补全结果。
//
// 文本内容始终在 Content 中；请求了结构化输出且上游返回合法 JSON 时，
// Structured 持有解码后的键值结构，且与 Content 可无损互转
// （json.Unmarshal(Content) == Structured）。ToolCalls 在成功结果中
// 永不为 nil，无调用时为空切片。
type ChatResult struct {
	Provider     string         `json:"provider"`
	Model        string         `json:"model"`
	Content      string         `json:"content"`
	Structured   map[string]any `json:"structured,omitempty"`
	ToolCalls    []ToolCall     `json:"tool_calls"`
	Usage        ChatUsage      `json:"usage"`
	FinishReason string         `json:"finish_reason,omitempty"`
	RequestID    string         `json:"request_id,omitempty"`
	CreatedAt    time.Time      `json:"created_at,omitempty"`
}

// Text 返回结果的文本序列化形式（即 Content）。
func (r *ChatResult) Text() string { return r.Content }

// ContentJSON 返回结构化输出的通用键值形式；未请求结构化输出
// 或上游未返回合法 JSON 时为 nil。
func (r *ChatResult) ContentJSON() map[string]any { return r.Structured }

// HasToolCalls 判断结果中是否包含工具调用。
func (r *ChatResult) HasToolCalls() bool { return len(r.ToolCalls) > 0 }

// HealthStatus 表示 Provider 健康检查结果。
type HealthStatus struct {
	Healthy   bool          `json:"healthy"`
	Provider  string        `json:"provider,omitempty"`
	Latency   time.Duration `json:"latency"`
	Timestamp time.Time     `json:"timestamp,omitempty"`
	Details   string        `json:"details,omitempty"`
}

// Model 是服务商模型清单中的一个条目。
type Model struct {
	ID      string `json:"id"`
	Object  string `json:"object,omitempty"`
	OwnedBy string `json:"owned_by,omitempty"`
}

// Provider 定义统一的 LLM 适配接口。每个服务商一个实现，
// 负责统一请求与服务商调用形态之间的双向翻译。
//
// 适配层不做重试、不做限流、不接触观测组件；这些横切关注点
// 全部由上层 Client 承担。
type Provider interface {
	// Completion 发起同步聊天请求，返回统一结果。
	Completion(ctx context.Context, req *ChatRequest) (*ChatResult, error)

	// HealthCheck 执行轻量级可达性探测。
	HealthCheck(ctx context.Context) (*HealthStatus, error)

	// Name 返回 Provider 的唯一标识。
	Name() string

	// SupportsNativeFunctionCalling 返回是否支持原生 Function Calling。
	SupportsNativeFunctionCalling() bool

	// SupportsSearchGrounding 返回是否支持服务商侧检索增强。
	// 返回 false 的实现会静默忽略 ChatRequest.UseSearchGrounding。
	SupportsSearchGrounding() bool
}
