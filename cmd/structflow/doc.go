// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package main 提供 StructFlow 命令行工具入口。

# 概述

cmd/structflow 从标准输入读取（可能被截断的）JSON 文本，提供补全、
解析与流式解码子命令。程序支持 YAML 配置文件与 STRUCTFLOW_ 环境变量、
结构化日志（zap）、Prometheus 指标端点以及 OpenTelemetry 导出。

# 主要能力

  - complete：输出补全后的文档，可通过 --policy 选择保守或修复策略
  - repair：等同于 complete --policy repair
  - parse：补全后解析并按原始键顺序重新编码，支持缩进与非有限数输出方式
  - decode：按 --chunk 字节分块喂给解码器，每块输出一行快照，最后输出终值；
    --schema 指定最终校验用的 JSON Schema，--metrics-addr 暴露 /metrics
  - 构建注入：Version、BuildTime、GitCommit 通过 ldflags 设置
*/
package main
