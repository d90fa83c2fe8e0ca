// 版权所有 2025 faciliter-lib-go Authors. 版权所有。
// 此源代码的使用受项目许可证约束。

/*
# 概述

包 ollama 提供本地/自托管 Ollama 服务的 Provider 适配实现。该包直接
对接 Ollama 原生 API（/api/chat），不走 OpenAI 兼容层，因此能使用
format 字段的完整 JSON Schema 约束能力。

# 核心结构体

  - Provider — 持有 http.Client 与 Config；本地服务无需认证
  - ollamaChatRequest / ollamaChatResponse — Ollama 原生请求/响应结构

# 构造函数

  - New(cfg, logger) — 创建实例，默认地址 http://localhost:11434，
    默认模型 llama3.1:8b
  - ConfigFromEnv() — 读取 OLLAMA_HOST（别名 OLLAMA_BASE_URL，允许
    省略 scheme）、OLLAMA_MODEL、OLLAMA_TIMEOUT_SECONDS

# 支持能力

  - Chat Completions（/api/chat，stream:false）
  - 原生 Function Calling（arguments 为 JSON 对象，ID 本地合成）
  - 结构化输出（format = JSON Schema 对象，或退化为 "json" 模式）
  - ListModels / HealthCheck（/api/tags）

# 不支持能力

  - 搜索 grounding（标志被静默忽略）、流式输出
*/
package ollama
