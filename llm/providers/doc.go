// 版权所有 2025 faciliter-lib-go Authors. 版权所有。
// 此源代码的使用受项目许可证约束。

/*
# 概述

包 providers 提供跨模型服务商的通用适配与辅助能力，是所有具体 Provider
实现的公共基础层。各服务商子包（gemini、ollama、openaicompat）依赖本包
完成请求/响应转换、错误映射与统一的 HTTP 执行。

# 核心类型

  - BaseProviderConfig — 所有 Provider 共享的基础配置（APIKey、BaseURL、Model、Timeout）
  - OpenAI* 系列 — OpenAI 兼容 API 的通用请求/响应/工具调用结构体

# 核心函数

  - MapHTTPError — 将 HTTP 状态码映射为语义化的 llm.Error（含 Retryable 标记）
  - DoJSONRequest — 统一的 JSON 请求执行与错误归一化（单次调用，无重试）
  - ConvertMessagesToOpenAI / ConvertToolsToOpenAI — 统一消息与工具格式转换
  - ToChatResult — OpenAI 兼容响应到 llm.ChatResult 的归并
  - ParseStructured / StripJSONFences — 结构化输出的尽力解析
  - ChooseModel — 按优先级选择模型（请求 > 默认 > 兜底）
  - ListModelsOpenAICompat — 通用模型列表获取

# 支持能力

  - 统一错误语义映射（401/403/429/5xx/529 等，配额关键词识别）
  - OpenAI 兼容格式的请求/响应序列化（tool_calls 的 arguments 为 JSON 字符串）
  - Bearer Token 标准认证 header 构建
*/
package providers
