// Copyright (c) FlowEdit Authors.
// Licensed under the MIT License.

/*
Package handlers 提供 FlowEdit 的 HTTP 与 RPC 处理器实现。

# 概述

handlers 包含三部分：统一的 JSON 响应与错误处理、健康检查，以及
工作流编辑器的后端契约。后端契约既以 websocket 命令的形式注册到
transport.Router，也以 REST 接口的形式挂载到 http.ServeMux。

# 核心类型

  - Commands         - listWorkflows、saveAgent、executeWorkflow 等 RPC 命令
  - WorkflowHandler  - /api/v1/workflows 的 REST 镜像
  - WebSocketHandler - 升级连接，为每个连接创建 session.Session
  - HealthHandler    - /healthz、/ready 与 /version
  - ToolCatalog      - 可供 Agent 选择的工具清单
  - Response         - 统一 JSON 响应结构（success + data + error + timestamp）

# 主要能力

  - ErrorCode → HTTP 状态码映射，存储层哨兵错误映射为 NOT_FOUND
  - DecodeJSONBody：4 MB 限制 + 严格模式
  - 执行进度通过 transport.Hub 广播给所有连接
*/
package handlers
