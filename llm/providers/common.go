package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/Aiuj/faciliter-lib-go/llm"
)

// MapHTTPError 将 HTTP 状态码映射为带有合适重试标记的 llm.Error。
// 这是所有提供者使用的通用错误映射函数。
func MapHTTPError(provider string, status int, body []byte) *llm.Error {
	msg := ReadErrorMessage(body)
	if msg == "" {
		msg = http.StatusText(status)
	}

	switch status {
	case http.StatusUnauthorized:
		return &llm.Error{
			Code:       llm.ErrUnauthorized,
			Message:    msg,
			HTTPStatus: status,
			Provider:   provider,
		}
	case http.StatusForbidden:
		return &llm.Error{
			Code:       llm.ErrForbidden,
			Message:    msg,
			HTTPStatus: status,
			Provider:   provider,
		}
	case http.StatusNotFound:
		// 模型名或路径错误属于调用方问题
		return &llm.Error{
			Code:       llm.ErrInvalidRequest,
			Message:    msg,
			HTTPStatus: status,
			Provider:   provider,
		}
	case http.StatusPaymentRequired:
		return &llm.Error{
			Code:       llm.ErrQuotaExceeded,
			Message:    msg,
			HTTPStatus: status,
			Provider:   provider,
		}
	case http.StatusTooManyRequests:
		// OpenAI 在额度用尽时同样返回 429
		if isQuotaMessage(msg) {
			return &llm.Error{
				Code:       llm.ErrQuotaExceeded,
				Message:    msg,
				HTTPStatus: status,
				Provider:   provider,
			}
		}
		return &llm.Error{
			Code:       llm.ErrRateLimited,
			Message:    msg,
			HTTPStatus: status,
			Retryable:  true,
			Provider:   provider,
		}
	case http.StatusBadRequest:
		if isQuotaMessage(msg) {
			return &llm.Error{
				Code:       llm.ErrQuotaExceeded,
				Message:    msg,
				HTTPStatus: status,
				Provider:   provider,
			}
		}
		return &llm.Error{
			Code:       llm.ErrInvalidRequest,
			Message:    msg,
			HTTPStatus: status,
			Provider:   provider,
		}
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return &llm.Error{
			Code:       llm.ErrUpstreamTimeout,
			Message:    msg,
			HTTPStatus: status,
			Retryable:  true,
			Provider:   provider,
		}
	case http.StatusServiceUnavailable, http.StatusBadGateway:
		return &llm.Error{
			Code:       llm.ErrUpstreamError,
			Message:    msg,
			HTTPStatus: status,
			Retryable:  true,
			Provider:   provider,
		}
	case 529: // Model overloaded (used by some providers)
		return &llm.Error{
			Code:       llm.ErrModelOverloaded,
			Message:    msg,
			HTTPStatus: status,
			Retryable:  true,
			Provider:   provider,
		}
	default:
		return &llm.Error{
			Code:       llm.ErrUpstreamError,
			Message:    msg,
			HTTPStatus: status,
			Retryable:  status >= 500,
			Provider:   provider,
		}
	}
}

// isQuotaMessage 检查错误消息中的配额/信用关键字。
func isQuotaMessage(msg string) bool {
	msgLower := strings.ToLower(msg)
	return strings.Contains(msgLower, "quota") ||
		strings.Contains(msgLower, "credit") ||
		strings.Contains(msgLower, "billing") ||
		strings.Contains(msgLower, "insufficient")
}

// ReadErrorMessage 提取响应体中的错误消息。
// 依次尝试 OpenAI/Gemini 的 {"error":{...}} 包络、Ollama 的
// {"error":"..."} 包络与通用 {"message":"..."}，失败则回退到原始文本。
func ReadErrorMessage(body []byte) string {
	if len(body) == 0 {
		return ""
	}

	// OpenAI / Gemini 风格: {"error": {"message": ..., "type"/"status": ...}}
	var errResp struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
			Status  string `json:"status"`
			Code    any    `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		switch {
		case errResp.Error.Type != "":
			return fmt.Sprintf("%s (type: %s)", errResp.Error.Message, errResp.Error.Type)
		case errResp.Error.Status != "":
			return fmt.Sprintf("%s (status: %s)", errResp.Error.Message, errResp.Error.Status)
		default:
			return errResp.Error.Message
		}
	}

	// Ollama 风格: {"error": "model not found"}
	var flatErr struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &flatErr); err == nil && flatErr.Error != "" {
		return flatErr.Error
	}

	// 通用: {"message": "..."}
	var msgErr struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &msgErr); err == nil && msgErr.Message != "" {
		return msgErr.Message
	}

	// 回退到原始文本
	return strings.TrimSpace(string(body))
}

// DoJSONRequest 发送 JSON 请求并将 JSON 响应解码到 out，统一完成错误映射：
//
//   - 传输错误: 上下文取消/超时 → LLM_UPSTREAM_TIMEOUT，其余 → LLM_PROVIDER_UNAVAILABLE；
//   - HTTP >= 400 → MapHTTPError；
//   - 响应解码失败 → LLM_RESPONSE_MALFORMED。
//
// 单次调用，不含任何重试。
func DoJSONRequest(ctx context.Context, client *http.Client, method, endpoint string, setHeaders func(*http.Request), body, out any, provider string) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return llm.NewError(llm.ErrInvalidRequest, provider, "encode request: %v", err)
		}
		reader = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return llm.NewError(llm.ErrInvalidRequest, provider, "build request: %v", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if setHeaders != nil {
		setHeaders(httpReq)
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil || isTimeout(err) {
			return &llm.Error{
				Code:       llm.ErrUpstreamTimeout,
				Message:    err.Error(),
				HTTPStatus: http.StatusGatewayTimeout,
				Retryable:  true,
				Provider:   provider,
			}
		}
		return &llm.Error{
			Code:       llm.ErrProviderUnavailable,
			Message:    err.Error(),
			HTTPStatus: http.StatusBadGateway,
			Retryable:  true,
			Provider:   provider,
		}
	}
	defer SafeCloseBody(resp.Body)

	if resp.StatusCode >= 400 {
		data, _ := io.ReadAll(resp.Body)
		return MapHTTPError(provider, resp.StatusCode, data)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &llm.Error{
			Code:       llm.ErrResponseMalformed,
			Message:    fmt.Sprintf("decode response: %v", err),
			HTTPStatus: resp.StatusCode,
			Provider:   provider,
		}
	}
	return nil
}

// isTimeout 判断传输错误是否为超时/取消。
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// OpenAI 兼容 API 通用类型
// 这些类型被 openaicompat 适配器使用，Ollama 的 tools 字段也复用同一格式.

// OpenAIMessage 表示 OpenAI 兼容的消息格式.
type OpenAIMessage struct {
	Role       string           `json:"role"`
	Content    string           `json:"content,omitempty"`
	Name       string           `json:"name,omitempty"`
	ToolCalls  []OpenAIToolCall `json:"tool_calls,omitempty"`
	ToolCallID string           `json:"tool_call_id,omitempty"`
}

// OpenAIToolCall 表示响应中的一次工具调用.
type OpenAIToolCall struct {
	ID       string             `json:"id"`
	Type     string             `json:"type"`
	Function OpenAIFunctionCall `json:"function"`
}

// OpenAIFunctionCall 是工具调用的函数体。
// 注意 Arguments 在线格式上是 JSON 字符串而非对象.
type OpenAIFunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// OpenAIFunctionDef 是工具定义的函数体 (parameters 为 JSON Schema 对象).
type OpenAIFunctionDef struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

// OpenAITool 表示 OpenAI 兼容的工具定义.
type OpenAITool struct {
	Type     string            `json:"type"`
	Function OpenAIFunctionDef `json:"function"`
}

// OpenAIJSONSchema 是 response_format 中的 json_schema 载荷.
type OpenAIJSONSchema struct {
	Name   string          `json:"name"`
	Schema json.RawMessage `json:"schema"`
	Strict bool            `json:"strict,omitempty"`
}

// OpenAIResponseFormat 控制结构化输出.
// Type 为 "json_schema" 时带 JSONSchema，为 "json_object" 时只约束合法 JSON.
type OpenAIResponseFormat struct {
	Type       string            `json:"type"`
	JSONSchema *OpenAIJSONSchema `json:"json_schema,omitempty"`
}

// OpenAIChatRequest 表示 OpenAI 兼容的聊天完成请求.
type OpenAIChatRequest struct {
	Model          string                `json:"model"`
	Messages       []OpenAIMessage       `json:"messages"`
	Tools          []OpenAITool          `json:"tools,omitempty"`
	ToolChoice     any                   `json:"tool_choice,omitempty"`
	MaxTokens      int                   `json:"max_tokens,omitempty"`
	Temperature    float32               `json:"temperature,omitempty"`
	TopP           float32               `json:"top_p,omitempty"`
	Stop           []string              `json:"stop,omitempty"`
	Stream         bool                  `json:"stream,omitempty"`
	ResponseFormat *OpenAIResponseFormat `json:"response_format,omitempty"`
}

// OpenAIChoice 表示 OpenAI 兼容响应中的单个选项.
type OpenAIChoice struct {
	Index        int           `json:"index"`
	FinishReason string        `json:"finish_reason"`
	Message      OpenAIMessage `json:"message"`
}

// OpenAIUsage 表示 OpenAI 兼容响应中的 token 用量.
type OpenAIUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// OpenAIChatResponse 表示 OpenAI 兼容的聊天完成响应.
type OpenAIChatResponse struct {
	ID      string         `json:"id"`
	Model   string         `json:"model"`
	Choices []OpenAIChoice `json:"choices"`
	Usage   *OpenAIUsage   `json:"usage,omitempty"`
	Created int64          `json:"created,omitempty"`
}

// ConvertMessagesToOpenAI 将 llm.Message 切片转换为 OpenAI 兼容格式.
func ConvertMessagesToOpenAI(msgs []llm.Message) []OpenAIMessage {
	out := make([]OpenAIMessage, 0, len(msgs))
	for _, m := range msgs {
		oa := OpenAIMessage{
			Role:       string(m.Role),
			Name:       m.Name,
			Content:    m.Content,
			ToolCallID: m.ToolCallID,
		}
		if len(m.ToolCalls) > 0 {
			oa.ToolCalls = make([]OpenAIToolCall, 0, len(m.ToolCalls))
			for _, tc := range m.ToolCalls {
				oa.ToolCalls = append(oa.ToolCalls, OpenAIToolCall{
					ID:   tc.ID,
					Type: "function",
					Function: OpenAIFunctionCall{
						Name:      tc.Name,
						Arguments: string(tc.Arguments),
					},
				})
			}
		}
		out = append(out, oa)
	}
	return out
}

// ConvertToolsToOpenAI 将 llm.ToolSchema 切片转换为 OpenAI 兼容格式.
func ConvertToolsToOpenAI(tools []llm.ToolSchema) []OpenAITool {
	if len(tools) == 0 {
		return nil
	}
	out := make([]OpenAITool, 0, len(tools))
	for _, t := range tools {
		out = append(out, OpenAITool{
			Type: "function",
			Function: OpenAIFunctionDef{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}
	return out
}

// ToChatResult 将 OpenAI 兼容响应归并为统一结果（取第一个 choice）。
func ToChatResult(oa OpenAIChatResponse, provider string) *llm.ChatResult {
	res := &llm.ChatResult{
		Provider:  provider,
		Model:     oa.Model,
		ToolCalls: []llm.ToolCall{},
	}

	if len(oa.Choices) > 0 {
		c := oa.Choices[0]
		res.Content = c.Message.Content
		res.FinishReason = c.FinishReason
		for _, tc := range c.Message.ToolCalls {
			res.ToolCalls = append(res.ToolCalls, llm.ToolCall{
				ID:        tc.ID,
				Name:      tc.Function.Name,
				Arguments: json.RawMessage(tc.Function.Arguments),
			})
		}
	}

	if oa.Usage != nil {
		res.Usage = llm.ChatUsage{
			PromptTokens:     oa.Usage.PromptTokens,
			CompletionTokens: oa.Usage.CompletionTokens,
			TotalTokens:      oa.Usage.TotalTokens,
		}
	}
	if oa.Created > 0 {
		res.CreatedAt = time.Unix(oa.Created, 0)
	}
	return res
}

// ParseStructured 在请求了结构化输出时尝试将 Content 解析进 Structured。
// 解析失败不是错误：Content 原样保留，Structured 维持 nil，由调用方决定。
func ParseStructured(res *llm.ChatResult, req *llm.ChatRequest) {
	if res == nil || req == nil || req.StructuredOutput == nil || res.Content == "" {
		return
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(StripJSONFences(res.Content)), &m); err == nil {
		res.Structured = m
	}
}

// StripJSONFences 去掉包裹 JSON 的 Markdown 代码栅栏（```json ... ```）。
// 部分模型无视 responseMimeType 仍返回栅栏包裹的 JSON。
func StripJSONFences(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return content
	}

	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}

// ChooseModel 根据请求和默认值选择模型
func ChooseModel(req *llm.ChatRequest, defaultModel, fallbackModel string) string {
	if req != nil && req.Model != "" {
		return req.Model
	}
	if defaultModel != "" {
		return defaultModel
	}
	return fallbackModel
}

// BearerTokenHeaders 是标准的 Bearer token 认证 header 构建函数。
func BearerTokenHeaders(r *http.Request, apiKey string) {
	if apiKey != "" {
		r.Header.Set("Authorization", "Bearer "+apiKey)
	}
	r.Header.Set("Content-Type", "application/json")
}

// SafeCloseBody 安全关闭 HTTP 响应体并忽略错误
func SafeCloseBody(body io.ReadCloser) {
	if body != nil {
		_ = body.Close()
	}
}

// ListModelsOpenAICompat 通用的 OpenAI 兼容 Provider 模型列表获取函数
func ListModelsOpenAICompat(ctx context.Context, client *http.Client, baseURL, apiKey, providerName, modelsEndpoint string, buildHeadersFunc func(*http.Request, string)) ([]llm.Model, error) {
	endpoint := fmt.Sprintf("%s%s", strings.TrimRight(baseURL, "/"), modelsEndpoint)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	buildHeadersFunc(httpReq, apiKey)

	resp, err := client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil || isTimeout(err) {
			return nil, &llm.Error{
				Code:       llm.ErrUpstreamTimeout,
				Message:    err.Error(),
				HTTPStatus: http.StatusGatewayTimeout,
				Retryable:  true,
				Provider:   providerName,
			}
		}
		return nil, &llm.Error{
			Code:       llm.ErrProviderUnavailable,
			Message:    err.Error(),
			HTTPStatus: http.StatusBadGateway,
			Retryable:  true,
			Provider:   providerName,
		}
	}
	defer SafeCloseBody(resp.Body)

	if resp.StatusCode >= 400 {
		data, _ := io.ReadAll(resp.Body)
		return nil, MapHTTPError(providerName, resp.StatusCode, data)
	}

	var modelsResp struct {
		Object string      `json:"object"`
		Data   []llm.Model `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&modelsResp); err != nil {
		return nil, &llm.Error{
			Code:       llm.ErrResponseMalformed,
			Message:    err.Error(),
			HTTPStatus: resp.StatusCode,
			Provider:   providerName,
		}
	}

	return modelsResp.Data, nil
}
