// 版权所有 2024 Mukoko Weather Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 metrics 提供基于 Prometheus 的指标采集能力，覆盖 HTTP、LLM、
天气获取、熔断器、聊天工具调用、缓存与文档存储。

# 概述

本包通过 Collector 统一注册和记录 Prometheus 指标，使用 promauto
自动注册机制，避免手动管理 Registry。所有指标按 namespace 隔离，
支持多维度 label 分组，便于 Grafana 等工具进行可视化与告警。

# 核心类型

  - Collector：指标收集器，持有 Counter、Histogram、Gauge 等
    Prometheus 向量指标，按业务域分组管理。

# 主要能力

  - HTTP 指标：请求总数、请求耗时、请求/响应体大小，按 method/path
    分组；请求总数另按 status 分组，状态码归类为 2xx/3xx/4xx/5xx。
  - LLM 指标：请求总数（按 model/status）、请求耗时（按 model）、
    Token 用量（按 model 与 prompt/completion 类型）。不记录调用成本。
  - 天气获取指标：获取次数与耗时，按 provider 分组。
  - 熔断器指标：状态转换计数（按 provider/from_state/to_state）
    与当前状态 Gauge（按 provider）。
  - 聊天工具指标：每次请求的 LLM 轮数（按 outcome）与工具调用次数
    （按 tool/status）。
  - 缓存指标：命中与未命中计数，按 cache_type 分组。
  - 文档存储指标：查询耗时 Histogram，按 collection/operation 分组。
    不记录连接数。
*/
package metrics
