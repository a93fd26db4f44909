// Copyright (c) FlowEdit Authors.
// Licensed under the MIT License.

/*
包 workflow 执行编辑器保存的编排图，并通过事件向客户端汇报进度。

# 执行计划

Plan 从没有入边的节点开始做广度优先遍历，按层划分阶段；不可达的
节点（无入口的环）随后以剩余最小 id 为起点继续遍历并追加。每个节点
恰好出现一次，不做环检测。

# 核心类型

  - Executor：逐阶段运行任务，同一阶段的任务经 errgroup 并发执行，
    任一任务失败即终止。整体受超时约束，发布 workflowExecutionStatus
    与 logMessage 事件。
  - History / TaskExecution：记录一次执行与其中每个任务的状态。
  - TaskFunc：任务函数，默认实现按 TaskDelay 模拟耗时并回显输入。
*/
package workflow
