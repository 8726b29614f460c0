// Copyright (c) Mukoko Weather Authors.
// Licensed under the MIT License.

/*
Package main 提供 mukoko-weather 服务端程序入口。

# 概述

cmd/mukoko-weather 是天气智能服务的可执行入口，提供 HTTP API 服务、
健康检查和版本查询等子命令。程序支持 YAML 配置文件加载、结构化日志
（zap）以及 Prometheus 指标采集。

# 核心类型

  - Server           — 主服务器，连接文档存储与缓存，管理 HTTP、Metrics
    双端口及优雅关闭
  - Middleware        — HTTP 中间件函数签名 func(http.Handler) http.Handler
  - responseWriter    — 包装 http.ResponseWriter 以捕获状态码

# 主要能力

  - 子命令：serve（启动服务）、version、health
  - 中间件链：Recovery、RequestID、RequestLogger、MetricsMiddleware、
    OTelTracing、SecurityHeaders、CORS、RateLimiter（基于 IP）
  - 领域路由：天气获取、AI 摘要与追问、聊天助手、探索搜索、历史分析、
    适宜度规则、社区举报、位置目录、地图瓦片代理、状态仪表盘
  - Metrics 服务器：独立端口暴露 /metrics（Prometheus）
  - 优雅关闭：信号监听 → 关闭 HTTP → 关闭 Metrics → 关闭缓存 → 关闭存储
    → 关闭遥测 → Wait
  - 构建注入：Version、BuildTime、GitCommit 通过 ldflags 设置
*/
package main
