// Copyright (c) FlowEdit Authors.
// Licensed under the MIT License.

/*
包 metrics 提供基于 Prometheus 的指标采集。

Collector 按 namespace 注册 HTTP、websocket RPC、编辑器手势、
工作流执行、缓存与数据库连接等指标。EditorObserver 把编辑器的
手势与连线事件转换为计数器，测试中使用独立 Registry 避免重复注册。
*/
package metrics
