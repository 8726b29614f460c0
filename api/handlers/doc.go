// Copyright (c) Mukoko Weather Authors.
// Licensed under the MIT License.

/*
Package handlers 提供 mukoko-weather HTTP API 的请求处理器实现。

# 概述

handlers 包实现了天气智能服务所有 HTTP 端点的请求处理逻辑，
包括天气获取、AI 摘要、聊天助手、社区举报、历史分析、适宜度评估、
位置目录、地图瓦片代理、状态仪表盘以及健康检查。
所有 Handler 均遵循标准 net/http 接口，通过 Swagger 注解生成 API 文档。

# 核心类型

  - WeatherHandler, AIHandler, ChatHandler, ExploreHandler — 核心天气与
    AI 能力处理器
  - ReportsHandler, HistoryHandler, SuitabilityHandler      — 社区与分析处理器
  - LocationsHandler, TilesHandler, StatusHandler           — 位置、地图与状态处理器
  - HealthHandler    — 服务健康检查（/health, /healthz, /ready）
  - Response         — 统一 JSON 响应结构（success + data + error + timestamp）
  - ErrorInfo        — 结构化错误信息，含 code、message、retryable 标记
  - ResponseWriter   — 包装 http.ResponseWriter 以捕获状态码

# 主要能力

  - 统一响应格式：WriteSuccess / WriteError / WriteJSON 辅助函数
  - 请求验证：DecodeJSONBody（1 MB 限制 + 严格模式）、ValidateContentType
  - ErrorCode → HTTP 状态码自动映射（4xx/5xx）
  - 客户端身份解析：clientip 包配合速率限制中间件
*/
package handlers
