// 版权所有 2025 faciliter-lib-go Authors. 版权所有。
// 此源代码的使用受项目许可证约束。

/*
包 config 提供库级聚合配置。

# 概述

Config 把各子系统的配置（LLM、嵌入、缓存、追踪、日志）装进一个
结构体，按固定优先级构建：

	默认值 → YAML 文件（可选）→ 环境变量

	cfg, err := config.Load("config.yaml")
	if err != nil {
	    return err
	}
	if err := cfg.Validate(); err != nil {
	    return err
	}
	logger := config.NewLogger(cfg.Log)

每一级只覆盖被显式设置的字段，部分配置是合法的；校验集中在
Validate 而非加载阶段。环境变量名由各子配置的 env 标签给出
（LLM_PROVIDER、EMBEDDING_DIMENSION、REDIS_HOST、LANGFUSE_HOST 等），
数值型或带引号的文本值在加载边界归一化。
*/
package config
