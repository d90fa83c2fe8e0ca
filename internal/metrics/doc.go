// 版权所有 2025 faciliter-lib-go Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 metrics 提供基于 Prometheus 的指标采集能力，覆盖
LLM、Embedding 与缓存三大维度。

# 概述

本包通过 Collector 统一注册和记录 Prometheus 指标，使用 promauto
工厂绑定到指定 Registerer，避免手动管理 Registry。所有指标按
namespace 隔离，支持多维度 label 分组，便于 Grafana 等工具进行
可视化与告警。库内各组件通过 Default() 共享注册在默认 Registerer
上的单例。

# 核心类型

  - Collector：指标收集器，持有 Counter、Histogram 等
    Prometheus 向量指标，按业务域分组管理，nil 接收者安全。

# 主要能力

  - LLM 指标：请求总数、请求耗时、Token 用量（prompt/completion），
    按 provider/model/status 分组。
  - Embedding 指标：请求总数、请求耗时，按 provider/model/status 分组。
  - 缓存指标：命中、未命中与错误计数，按 prefix 分组。
*/
package metrics
