// Copyright (c) FlowEdit Authors.
// Licensed under the MIT License.

// Package telemetry 封装 OpenTelemetry SDK 初始化。
//
// Init 在启用时创建 OTLP gRPC 的 trace 与 metric 导出器并注册为全局
// Provider；禁用时保持 noop。Tracer 为各组件返回命名的 tracer，
// transport 的 RPC 分发与 HTTP 中间件通过它创建 span。
package telemetry
