// Copyright (c) FlowEdit Authors.
// Licensed under the MIT License.

/*
Package editor 实现可视化工作流编辑器的无头（headless）图编辑引擎。

# 概述

editor 包维护内存中的节点/连线模型，并通过只写的 Renderer 接口把模型
投影到视觉层。模型中的数值坐标是唯一可信来源，socket 位置由 Layout
从节点坐标推导，从不回读视觉层。

# 核心类型

  - Viewport    - 平移/缩放变换，屏幕坐标与工作区坐标互转，锚点缩放
  - Graph       - 节点与连线集合，维护 socket 连线列表的双向一致性
  - ComputePath - 纯函数，按各端节点朝向计算三次贝塞尔曲线
  - Controller  - 手势状态机（Idle / Panning / DraggingNode / Linking / Reconnecting）
  - Sequence    - ui-node-N / ui-link-N 临时 ID 生成器，支持 RestoreFrom
  - Editor      - 组合以上组件，并负责工作流文档的加载与快照

# 一致性

  - 同一 (fromNode, fromSocket, toNode, toSocket) 最多一条连线
  - 拒绝自连接
  - ReconcileLink 在端点缺失时移除悬空连线（reconcile-or-evict）
  - 手势失败只记录日志并执行清理，不向上传播错误
*/
package editor
