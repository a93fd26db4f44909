// Copyright (c) FlowEdit Authors.
// Licensed under the MIT License.

/*
包 session 为每个 websocket 连接维护一个编辑会话。

Session 持有一个绑定 scene.Scene 的 editor.Editor，所有编辑器调用都在
Run 所在的单个 goroutine 中串行执行，保证核心的单线程约束。每次调用结束后，
场景中积累的渲染指令以 editor.render 事件推送给客户端。

# 方法

通过 Register 注册到 transport.Router 的方法包括 editor.open、editor.new、
editor.pointer、editor.wheel、editor.addNode、editor.toggleOrientation、
editor.setFlowDirection、editor.resetView、editor.clear、editor.resize、
editor.save、editor.deleteAgent、editor.snapshot 与 editor.sync。

# 视图

Views 记录当前可见的顶层视图（workflows、editor、agent），并在进入视图时
运行注册的钩子。双击节点标题会切换到 agent 视图并推送 editor.editAgent 事件。
*/
package session
