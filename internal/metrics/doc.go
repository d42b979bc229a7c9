// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 metrics 提供基于 Prometheus 的结构化解码指标采集能力。

# 概述

Collector 实现 structured.Observer，可直接通过 structured.WithObserver
挂到 Decoder 上。使用 promauto 自动注册到默认 Registry，所有指标按
namespace 隔离。

# 主要指标

  - completions_total：每个增量的补全结果，按 outcome 分组。
  - snapshots_total：快照数量，按 complete 分组。
  - decode_streams_total：结束的解码流，按 status 分组。
  - decode_stream_duration_seconds / decode_stream_size_bytes /
    decode_stream_deltas：流耗时、累计字节数与增量数分布。
*/
package metrics
