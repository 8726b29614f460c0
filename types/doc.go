// Copyright (c) Mukoko Weather Authors.
// Licensed under the MIT License.

/*
Package types 提供 mukoko-weather 服务的全局共享类型定义。

# 概述

types 是服务最底层的公共包，不依赖任何内部包，为 weather、chat、store、
api 等上层模块提供统一的类型契约。所有跨包共享的接口、结构体、枚举和
错误码均定义于此，以避免循环依赖。

# 核心接口与类型

  - Tokenizer         — Token 计数接口（Message / ToolSchema 感知）
  - TokenUsage        — Token 用量与成本统计
  - Message           — 对话消息（Role、Content、ToolCalls、Images）
  - ToolSchema        — 工具定义（name + description + JSON Schema parameters）
  - ToolResult        — 工具执行结果
  - Error / ErrorCode — 结构化错误体系，含 HTTP 状态码、Retryable、Provider 标记
  - JSONSchema        — JSON Schema 定义与构建器（NewObjectSchema 等）

# 主要能力

  - Context 传播：WithTraceID / WithTenantID / WithUserID / WithRunID 等
  - 错误工具链：NewError 与 WithCause / WithHTTPStatus / WithRetryable /
    WithProvider 链式设置，IsRetryable / GetErrorCode 读取
  - Token 估算：EstimateTokenizer（中英文字符分别计算）
*/
package types
