// Copyright 2026 AgentFlow Authors
// Use of this source code is governed by the project license.

/*
# 概述

包 structured 把 LLM 的流式 JSON 输出解码为 Go 类型。每收到一个增量片段，
解码器都会对整个缓冲区重新补全、解析并按 Schema 投影，产出一个越来越完整的
快照；上游结束后再做一次严格的终态解码。

数据单向流动：增量文本 → jsoncomplete 补全 → content 解析 → Schema 投影 → 调用方。

# 核心接口

  - SchemaValidator：对 content.Value 做结构校验（类型、必填、数组项、联合类型、$ref）
  - ContentDecoder：目标类型可自行实现的投影钩子，替代默认的 JSON 映射
  - Observer：补全结果、快照与流终止事件的观测点
  - StructuredOutputProvider：扩展 llm.Provider，声明是否支持原生结构化输出

# 主要类型

  - Decoder[T]：不可变的解码器，可并发启动多个流
  - Stream[T]：单个流的会话状态，单生产者单消费者，只能迭代一次
  - Snapshot[T] / Partial[T]：快照及其部分投影，IsComplete 表示必填字段已齐
  - StructuredOutput[T]：驱动 Provider 的同步与流式结构化生成
  - JSONSchema / SchemaGenerator：Schema 建模与反射生成

# 典型用法

	dec, _ := structured.NewDecoder[User](structured.WithLogger(logger))
	stream := dec.Decode(ctx, streaming.FromChunks(ctx, chunks))
	for snap, err := range stream.Snapshots() {
		if err != nil {
			return err
		}
		render(snap.Value(), snap.Complete)
	}
	user, err := stream.Final()

不需要中间快照时直接使用 Collect；没有任何输出不算错误时使用 CollectOptional。

# 错误

  - ErrNoContent：流结束时一个快照都没有产生
  - content.ErrParseFailed：终态文本补全后仍不是合法 JSON
  - jsoncomplete.ErrDepthExceeded：嵌套超过配置的深度
  - *ValidationErrors：终态值的结构不符合 Schema

中间增量无法安全补全时不会报错，流会重复上一个快照并标记 Stale。
*/
package structured
