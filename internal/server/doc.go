// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 server 管理命令行工具附带的指标 HTTP 服务器。

# 概述

Manager 封装 net/http.Server，统一管理监听、服务、关闭与错误传播。
NewMetricsManager 在 /metrics 上暴露 Prometheus 指标，在 /healthz
上提供存活探针。

# 主要能力

  - 非阻塞启动：Start 在后台 goroutine 中运行服务。
  - 优雅关闭：Shutdown 在配置的超时内完成请求排空，重复调用无副作用。
  - 错误传播：Errors() 返回异步错误通道。
*/
package server
