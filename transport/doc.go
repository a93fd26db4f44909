// Copyright (c) FlowEdit Authors.
// Licensed under the MIT License.

/*
包 transport 实现编辑器前端与后端之间基于 WebSocket 的消息协议。

# 协议

所有消息均为 JSON 文本帧：

  - 请求：{"id": "<n>", "method": "<命令>", "params": <任意>}
  - 响应：{"id": "<n>", "result": {"status": "success"|"error", "payload": <任意>}}
  - 事件：{"type": "<事件>", "payload": <任意>}

错误响应的 payload 为 {"code", "message"}，code 取自 types.ErrorCode。

# 核心类型

  - Conn：包装 coder/websocket 连接，写操作加锁串行化。
  - Router：按方法名分发请求，每次分发创建 OpenTelemetry Span
    "rpc <方法>" 并上报耗时与状态。未知方法返回 METHOD_NOT_FOUND。
  - Client：Go 侧客户端，按 id 关联响应，支持事件订阅，供
    flowedit inspect 与测试使用。
  - Hub：跟踪在线连接，通过 pubsub.Bus 广播事件，多实例部署时
    所有实例的客户端都能收到。
*/
package transport
