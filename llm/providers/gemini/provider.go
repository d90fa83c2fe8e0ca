package gemini

import (
	"context"
	"encoding/json"
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
	// DefaultBaseURL Gemini REST API 默认地址
	DefaultBaseURL = "https://generativelanguage.googleapis.com"
	// DefaultModel 默认模型
	DefaultModel = "gemini-2.0-flash"

	defaultTimeout = 60 * time.Second
)

// Config Gemini Provider 配置
type Config struct {
	providers.BaseProviderConfig `yaml:",inline"`
}

// ConfigFromEnv 从环境变量读取 Gemini 配置。
// GEMINI_API_KEY 优先，GOOGLE_API_KEY 作为别名兜底。
func ConfigFromEnv() Config {
	return Config{
		BaseProviderConfig: providers.BaseProviderConfig{
			APIKey:  envutil.String("", "GEMINI_API_KEY", "GOOGLE_API_KEY"),
			BaseURL: envutil.String(DefaultBaseURL, "GEMINI_BASE_URL"),
			Model:   envutil.String(DefaultModel, "GEMINI_MODEL"),
			Timeout: envutil.Duration(defaultTimeout, "GEMINI_TIMEOUT_SECONDS"),
		},
	}
}

// Provider 实现 Google Gemini 的 LLM Provider
// Gemini API 特点：
// 1. 使用 x-goog-api-key 请求头认证
// 2. system 消息单独放在 systemInstruction 字段
// 3. assistant 角色在线格式上叫 "model"
// 4. 原生工具调用支持，functionCall 部件不带 ID（需本地合成）
type Provider struct {
	cfg    Config
	client *http.Client
	logger *zap.Logger
}

// New 创建 Gemini Provider
func New(cfg Config, logger *zap.Logger) *Provider {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
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

func (p *Provider) Name() string { return "gemini" }

func (p *Provider) SupportsNativeFunctionCalling() bool { return true }

func (p *Provider) SupportsSearchGrounding() bool { return true }

// HealthCheck 通过模型列表端点探活。
func (p *Provider) HealthCheck(ctx context.Context) (*llm.HealthStatus, error) {
	start := time.Now()
	endpoint := fmt.Sprintf("%s/v1beta/models", strings.TrimRight(p.cfg.BaseURL, "/"))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
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
			fmt.Errorf("gemini health check failed: status=%d", resp.StatusCode)
	}
	return &llm.HealthStatus{Healthy: true, Latency: latency}, nil
}

// ListModels 获取 Gemini 支持的模型列表
func (p *Provider) ListModels(ctx context.Context) ([]llm.Model, error) {
	endpoint := fmt.Sprintf("%s/v1beta/models", strings.TrimRight(p.cfg.BaseURL, "/"))

	var modelsResp struct {
		Models []struct {
			Name        string `json:"name"`
			DisplayName string `json:"displayName"`
		} `json:"models"`
	}
	if err := providers.DoJSONRequest(ctx, p.client, http.MethodGet, endpoint, p.buildHeaders, nil, &modelsResp, p.Name()); err != nil {
		return nil, err
	}

	models := make([]llm.Model, 0, len(modelsResp.Models))
	for _, m := range modelsResp.Models {
		// 去掉 "models/" 前缀
		models = append(models, llm.Model{
			ID:      strings.TrimPrefix(m.Name, "models/"),
			Object:  "model",
			OwnedBy: "google",
		})
	}
	return models, nil
}

// Gemini 在线格式结构

type geminiContent struct {
	Role  string       `json:"role,omitempty"` // user, model
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text             string                  `json:"text,omitempty"`
	FunctionCall     *geminiFunctionCall     `json:"functionCall,omitempty"`
	FunctionResponse *geminiFunctionResponse `json:"functionResponse,omitempty"`
}

type geminiFunctionCall struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

type geminiFunctionResponse struct {
	Name     string         `json:"name"`
	Response map[string]any `json:"response"`
}

type geminiTool struct {
	FunctionDeclarations []geminiFunctionDeclaration `json:"functionDeclarations,omitempty"`
	GoogleSearch         *struct{}                   `json:"google_search,omitempty"`
}

type geminiFunctionDeclaration struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"` // JSON Schema
}

type geminiGenerationConfig struct {
	Temperature      float32        `json:"temperature,omitempty"`
	TopP             float32        `json:"topP,omitempty"`
	MaxOutputTokens  int            `json:"maxOutputTokens,omitempty"`
	StopSequences    []string       `json:"stopSequences,omitempty"`
	ResponseMIMEType string         `json:"responseMimeType,omitempty"`
	ResponseSchema   map[string]any `json:"responseSchema,omitempty"`
}

type geminiRequest struct {
	Contents          []geminiContent         `json:"contents"`
	Tools             []geminiTool            `json:"tools,omitempty"`
	GenerationConfig  *geminiGenerationConfig `json:"generationConfig,omitempty"`
	SystemInstruction *geminiContent          `json:"systemInstruction,omitempty"`
}

type geminiCandidate struct {
	Content      geminiContent `json:"content"`
	FinishReason string        `json:"finishReason,omitempty"`
	Index        int           `json:"index"`
}

type geminiUsageMetadata struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}

type geminiResponse struct {
	Candidates    []geminiCandidate    `json:"candidates"`
	UsageMetadata *geminiUsageMetadata `json:"usageMetadata,omitempty"`
	ModelVersion  string               `json:"modelVersion,omitempty"`
	ResponseID    string               `json:"responseId,omitempty"`
}

func (p *Provider) buildHeaders(req *http.Request) {
	// Gemini 使用 x-goog-api-key 认证
	req.Header.Set("x-goog-api-key", p.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
}

// convertContents 将统一格式转换为 Gemini 格式。
// 多条 system 消息会被拼接进同一个 systemInstruction。
func convertContents(msgs []llm.Message) (*geminiContent, []geminiContent) {
	var systemParts []geminiPart
	var contents []geminiContent

	for _, m := range msgs {
		if m.Role == llm.RoleSystem {
			systemParts = append(systemParts, geminiPart{Text: m.Content})
			continue
		}

		role := string(m.Role)
		if role == "assistant" {
			role = "model" // Gemini 使用 "model" 而不是 "assistant"
		}
		if role == "tool" {
			// 工具结果在 Gemini 里作为 user 轮次的 functionResponse 部件
			role = "user"
		}

		content := geminiContent{Role: role}

		if m.Role == llm.RoleTool {
			content.Parts = append(content.Parts, toolResponsePart(m))
			contents = append(contents, content)
			continue
		}

		if m.Content != "" {
			content.Parts = append(content.Parts, geminiPart{Text: m.Content})
		}

		for _, tc := range m.ToolCalls {
			var args map[string]any
			if err := json.Unmarshal(tc.Arguments, &args); err != nil {
				args = map[string]any{}
			}
			content.Parts = append(content.Parts, geminiPart{
				FunctionCall: &geminiFunctionCall{Name: tc.Name, Args: args},
			})
		}

		if len(content.Parts) > 0 {
			contents = append(contents, content)
		}
	}

	var systemInstruction *geminiContent
	if len(systemParts) > 0 {
		systemInstruction = &geminiContent{Parts: systemParts}
	}
	return systemInstruction, contents
}

// toolResponsePart 将工具结果消息包装为 functionResponse 部件。
// 非 JSON 内容包装成 {"result": ...}。
func toolResponsePart(m llm.Message) geminiPart {
	name := m.Name
	if name == "" {
		name = m.ToolCallID
	}

	var response map[string]any
	if err := json.Unmarshal([]byte(m.Content), &response); err != nil {
		response = map[string]any{"result": m.Content}
	}
	return geminiPart{
		FunctionResponse: &geminiFunctionResponse{Name: name, Response: response},
	}
}

func convertTools(tools []llm.ToolSchema) []geminiTool {
	if len(tools) == 0 {
		return nil
	}

	declarations := make([]geminiFunctionDeclaration, 0, len(tools))
	for _, t := range tools {
		var params map[string]any
		if len(t.Parameters) > 0 {
			if err := json.Unmarshal(t.Parameters, &params); err != nil {
				params = nil
			}
		}
		declarations = append(declarations, geminiFunctionDeclaration{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  sanitizeSchema(params),
		})
	}

	return []geminiTool{{FunctionDeclarations: declarations}}
}

// sanitizeSchema 去掉 Gemini 不接受的顶层 JSON Schema 关键字。
func sanitizeSchema(schema map[string]any) map[string]any {
	if schema == nil {
		return nil
	}
	delete(schema, "$schema")
	delete(schema, "additionalProperties")
	return schema
}

// Completion 执行一次同步聊天补全。
func (p *Provider) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResult, error) {
	systemInstruction, contents := convertContents(req.Messages)

	body := geminiRequest{
		Contents:          contents,
		SystemInstruction: systemInstruction,
	}

	// 函数工具与搜索 grounding 互斥：同时出现时函数工具优先
	switch {
	case len(req.Tools) > 0:
		body.Tools = convertTools(req.Tools)
		if req.UseSearchGrounding {
			p.logger.Warn("gemini: search grounding dropped, function tools take precedence",
				zap.Int("tool_count", len(req.Tools)))
		}
	case req.UseSearchGrounding:
		body.Tools = []geminiTool{{GoogleSearch: &struct{}{}}}
	}

	if gc := buildGenerationConfig(req); gc != nil {
		body.GenerationConfig = gc
	}

	model := providers.ChooseModel(req, p.cfg.Model, DefaultModel)
	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent", strings.TrimRight(p.cfg.BaseURL, "/"), model)

	var geminiResp geminiResponse
	if err := providers.DoJSONRequest(ctx, p.client, http.MethodPost, endpoint, p.buildHeaders, body, &geminiResp, p.Name()); err != nil {
		return nil, err
	}

	res := toChatResult(geminiResp, p.Name(), model)
	providers.ParseStructured(res, req)
	return res, nil
}

// buildGenerationConfig 组装生成配置；没有任何可带字段时返回 nil。
func buildGenerationConfig(req *llm.ChatRequest) *geminiGenerationConfig {
	if req.Temperature <= 0 && req.TopP <= 0 && req.MaxTokens <= 0 &&
		len(req.Stop) == 0 && req.StructuredOutput == nil {
		return nil
	}

	gc := &geminiGenerationConfig{
		Temperature:     req.Temperature,
		TopP:            req.TopP,
		MaxOutputTokens: req.MaxTokens,
		StopSequences:   req.Stop,
	}

	if so := req.StructuredOutput; so != nil {
		gc.ResponseMIMEType = "application/json"
		if len(so.Schema) > 0 {
			var schema map[string]any
			if err := json.Unmarshal(so.Schema, &schema); err == nil {
				gc.ResponseSchema = sanitizeSchema(schema)
			}
		}
	}
	return gc
}

// toChatResult 归并首个候选到统一结果。
// Gemini 的 functionCall 部件没有调用 ID，按 call_<name>_<i> 合成。
func toChatResult(gr geminiResponse, provider, model string) *llm.ChatResult {
	res := &llm.ChatResult{
		Provider:  provider,
		Model:     model,
		RequestID: gr.ResponseID,
		ToolCalls: []llm.ToolCall{},
	}
	if gr.ModelVersion != "" {
		res.Model = gr.ModelVersion
	}

	if len(gr.Candidates) > 0 {
		candidate := gr.Candidates[0]
		res.FinishReason = strings.ToLower(candidate.FinishReason)

		var text strings.Builder
		toolCallIndex := 0
		for _, part := range candidate.Content.Parts {
			if part.Text != "" {
				text.WriteString(part.Text)
			}
			if part.FunctionCall != nil {
				argsJSON, _ := json.Marshal(part.FunctionCall.Args)
				res.ToolCalls = append(res.ToolCalls, llm.ToolCall{
					ID:        fmt.Sprintf("call_%s_%d", part.FunctionCall.Name, toolCallIndex),
					Name:      part.FunctionCall.Name,
					Arguments: argsJSON,
				})
				toolCallIndex++
			}
		}
		res.Content = text.String()
	}

	if gr.UsageMetadata != nil {
		res.Usage = llm.ChatUsage{
			PromptTokens:     gr.UsageMetadata.PromptTokenCount,
			CompletionTokens: gr.UsageMetadata.CandidatesTokenCount,
			TotalTokens:      gr.UsageMetadata.TotalTokenCount,
		}
	}
	return res
}
