// Copyright (c) FlowEdit Authors.
// Licensed under the MIT License.

/*
Package types 提供 FlowEdit 的全局共享类型定义。

# 概述

types 是最底层的公共包，不依赖任何内部包，为 editor、store、transport、
api 等上层模块提供统一的数据契约，以避免循环依赖。

# 核心类型

  - Workflow           - 持久化的工作流文档（orchestration_graph + view_state + agents）
  - OrchestrationGraph - 节点与连线的持久化投影
  - ViewState          - 视口与 ID 计数器的持久化状态
  - Agent              - 节点引用的外部 Agent 记录及其输出 schema
  - ToolInfo           - 可用工具描述
  - Error / ErrorCode  - 结构化错误体系，含 HTTP 状态码
*/
package types
