// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 llm 定义结构化输出解码所依赖的模型服务边界类型。

# 概述

本包只描述 Provider 的调用契约与消息模型，不包含任何具体服务商实现。
网络传输、鉴权与 SSE 解帧属于外部协作者；解码流水线只消费
[Provider.Stream] 返回的、已经按分片拆好的 [StreamChunk]。

# 核心接口

  - [Provider]：LLM 提供者接口，提供 Completion / Stream / HealthCheck /
    Name / SupportsNativeFunctionCalling

# 核心类型

  - [ChatRequest] / [ChatResponse]：聊天请求与响应
  - [ResponseFormat]：请求 JSON / JSON Schema 输出
  - [StreamChunk]：流式输出分片，[StreamChunk.Text] 返回增量文本
  - [ToolCall]：工具调用，Arguments 在流式过程中可能是截断的 JSON
  - [Error]：分片内携带的上游错误

# 相关子包

- llm/streaming：把分片通道、字符串序列或 io.Reader 适配为解码输入源。
*/
package llm
