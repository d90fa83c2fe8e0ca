// 版权所有 2025 faciliter-lib-go Authors. 版权所有。
// 此源代码的使用受项目许可证约束。

/*
# 概述

包 gemini 提供 Google Gemini 模型的 Provider 适配实现。该包直接对接
Gemini REST API（generativelanguage.googleapis.com），自行处理请求构建
与响应解析，不依赖 openaicompat 兼容层。

# 核心结构体

  - Provider — 独立实现，持有 http.Client 与 Config；使用 x-goog-api-key
    请求头认证
  - geminiRequest / geminiResponse — Gemini 原生请求/响应结构
  - geminiContent / geminiPart — 内容与分片（文本、函数调用、函数响应）

# 构造函数

  - New(cfg, logger) — 创建实例，默认模型 gemini-2.0-flash
  - ConfigFromEnv() — 读取 GEMINI_API_KEY（别名 GOOGLE_API_KEY）、
    GEMINI_MODEL、GEMINI_BASE_URL、GEMINI_TIMEOUT_SECONDS

# 支持能力

  - Chat Completions（/v1beta/models/{model}:generateContent）
  - 原生 Function Calling（functionCall/functionResponse 部件，ID 本地合成）
  - 结构化输出（responseMimeType + responseSchema）
  - Google Search grounding（与函数工具互斥，函数工具优先）
  - ListModels / HealthCheck

# 不支持能力

  - 流式输出、图像/视频/音频生成、微调任务管理
*/
package gemini
