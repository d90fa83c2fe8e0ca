// 版权所有 2025 faciliter-lib-go Authors. 版权所有。
// 此源代码的使用受项目许可证约束。

/*
包 llm 提供统一的大语言模型接入层，包括 Provider 抽象、统一的
请求/响应模型、错误分类以及承担观测与归一化的 Client 门面。

# 概述

本包目标是屏蔽不同模型服务商在接口、鉴权、错误语义上的差异，
对上层业务暴露一致的请求与响应模型，降低多模型接入和切换成本。
业务代码只面向 [Client] 与 [ChatResult]，更换服务商无需改动调用方。

典型用法：

	provider := ollama.New(ollama.ConfigFromEnv(), logger)
	client := llm.NewClient(provider, llm.WithLogger(logger))

	res, err := client.Chat(ctx,
		[]llm.Message{{Role: llm.RoleUser, Content: "你好"}},
		llm.WithTemperature(0.2),
	)

单轮文本会话可直接用 [Client.ChatText]；环境驱动的一键装配见
llm/factory 的 NewClientFromEnv。

# Provider 抽象

核心接口是 [Provider]，包含同步补全、健康检查与能力声明。
适配层不做重试、不做限流、不接触观测组件；这些横切关注点全部由
[Client] 承担，因此任何实现接入后即自动获得完整观测能力。

# 核心类型

  - [Message] / [Role]：OpenAI 风格的会话消息与角色
  - [ChatRequest] / [ChatResult]：统一的请求与结果模型
  - [ToolSchema] / [ToolCall]：函数工具声明与模型发起的调用
  - [StructuredSchema]：Schema 约束的结构化输出请求
  - [ChatUsage]：token 用量，Estimated 标记本地估算值
  - [Error] / [ErrorCode]：统一错误载体与错误码分类
  - [Registry]：多 Provider 注册表，支持默认项选择

# 行为约定

  - 成功结果中 ToolCalls 永不为 nil，无调用时为空切片。
  - 服务商未返回 token 计数时，Client 用本地分词器估算并置
    Usage.Estimated。
  - 请求了结构化输出且上游返回合法 JSON 时，Structured 与 Content
    可无损互转；上游返回非 JSON 时保留 Content、Structured 为 nil，
    不报错。
  - 本库不在内部重试；[Error.Retryable] 仅作为给调用方的建议标记。
  - 空消息列表在发起网络调用前即返回 LLM_INVALID_REQUEST。

# 相关子包

- llm/providers：各模型服务商适配实现（gemini、ollama、openaicompat）。
- llm/factory：按名称与环境变量装配 Provider 与 Client。
- llm/embedding：文本嵌入 Provider 接口与实现。
- llm/tokenizer：token 计数与本地估算。
*/
package llm
