// 版权所有 2025 faciliter-lib-go Authors. 版权所有。
// 此源代码的使用受项目许可证约束。

/*
包 embedding 提供统一的文本嵌入接入层。

# 概述

与聊天补全一样，本包用单一 [Provider] 接口屏蔽服务商差异：
输入文本列表，输出顺序一致的向量列表。实现包括：

  - [OpenAIProvider]：OpenAI 兼容的 POST /v1/embeddings，
    支持 dimensions 透传，配合 BaseURL 可接入任意兼容网关；
  - [OllamaProvider]：Ollama 原生 POST /api/embed；
  - [GeminiProvider]：Google Gemini 的 embedContent /
    batchEmbedContents，支持 outputDimensionality。

# 装配

[New] 按名称创建提供者并自动附加观测装饰（追踪 span、请求指标）；
[NewFromEnv] 从 EMBEDDING_PROVIDER、EMBEDDING_MODEL、EMBEDDING_API_KEY、
EMBEDDING_BASE_URL、EMBEDDING_DIMENSION 环境变量一键装配。
EMBEDDING_DIMENSION 非法时返回构造错误。

# 批量

[EmbedBatch] 将大输入切批并以有界并发并行嵌入，向量保持输入顺序，
用量逐批累加。
*/
package embedding
