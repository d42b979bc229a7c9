// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package types 提供 StructFlow 的全局共享错误类型。

# 概述

types 是最底层的公共包，不依赖任何内部包。补全器、解析器、解码流水线
与上游适配器都通过 [Error] 报告失败，调用方按 [ErrorCode] 判断类别。

# 核心类型

  - Error / ErrorCode：结构化错误，含 Cause、字节偏移、Retryable 与 Provider 标记
  - 解码错误码：DEPTH_EXCEEDED、PARSE_FAILED、NO_CONTENT、NOT_COMPLETABLE、
    MALFORMED_JSON、SHAPE_MISMATCH
  - 上游错误码：INVALID_REQUEST、UPSTREAM_ERROR、CANCELLED

# 主要能力

  - 按错误码匹配：errors.Is 只比较 Code，哨兵错误经 WithCause 等方法
    派生出的副本仍可匹配原哨兵
  - 辅助函数：AsError、GetErrorCode、IsErrorCode、IsRetryable
*/
package types
