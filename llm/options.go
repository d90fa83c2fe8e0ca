package llm

// RequestOption 在 Chat / ChatText 构造请求时修改 ChatRequest。
type RequestOption func(*ChatRequest)

// WithModel 覆盖本次请求使用的模型。
func WithModel(model string) RequestOption {
	return func(req *ChatRequest) { req.Model = model }
}

// WithTemperature 设置采样温度。
func WithTemperature(temperature float32) RequestOption {
	return func(req *ChatRequest) { req.Temperature = temperature }
}

// WithTopP 设置核采样阈值。
func WithTopP(topP float32) RequestOption {
	return func(req *ChatRequest) { req.TopP = topP }
}

// WithMaxTokens 限制补全的最大 token 数。
func WithMaxTokens(maxTokens int) RequestOption {
	return func(req *ChatRequest) { req.MaxTokens = maxTokens }
}

// WithStop 追加停止序列。
func WithStop(stop ...string) RequestOption {
	return func(req *ChatRequest) { req.Stop = append(req.Stop, stop...) }
}

// WithTools 声明本次请求可用的函数工具。
func WithTools(tools ...ToolSchema) RequestOption {
	return func(req *ChatRequest) { req.Tools = append(req.Tools, tools...) }
}

// WithToolChoice 设置工具选择策略：auto、none 或具体工具名。
func WithToolChoice(choice string) RequestOption {
	return func(req *ChatRequest) { req.ToolChoice = choice }
}

// WithStructuredOutput 请求 Schema 约束的结构化输出。
func WithStructuredOutput(schema *StructuredSchema) RequestOption {
	return func(req *ChatRequest) { req.StructuredOutput = schema }
}

// WithSearchGrounding 启用服务商侧检索增强；不支持的服务商静默忽略。
func WithSearchGrounding() RequestOption {
	return func(req *ChatRequest) { req.UseSearchGrounding = true }
}

// WithMetadata 附加一条请求元数据。
func WithMetadata(key, value string) RequestOption {
	return func(req *ChatRequest) {
		if req.Metadata == nil {
			req.Metadata = make(map[string]string)
		}
		req.Metadata[key] = value
	}
}
