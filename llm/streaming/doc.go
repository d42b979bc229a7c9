// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 streaming 提供结构化输出解码所需的流式输入原语：增量缓冲与上游适配。

# 概述

解码流水线以拉取方式消费上游：[Source] 是 iter.Seq2[string, error]，
消费方停止迭代时生产方随之停止，无需额外的背压或缓冲队列。

# 核心类型

  - [Source]：文本增量序列，错误作为终止元素出现。
  - [DeltaBuffer]：只追加的增量缓冲，[DeltaBuffer.String] 为零拷贝视图。
  - [ChunkReader]：对连续字节切片进行零拷贝分块读取。

# 适配器

  - [FromStrings]：固定片段序列，常用于测试。
  - [FromBytes]：按固定字节数切分一段完整文本。
  - [FromChunks]：适配 llm.Provider.Stream 返回的分片通道。
  - [FromReader]：从 io.Reader 分块读取。
*/
package streaming
