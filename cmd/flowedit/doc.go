// Copyright (c) FlowEdit Authors.
// Licensed under the MIT License.

/*
Package main 提供 FlowEdit 服务端程序入口。

# 概述

cmd/flowedit 启动工作流编辑器服务：同一端口上提供 /ws 编辑会话、
/api/v1/workflows REST 接口、健康检查与内嵌的浏览器页面，
独立端口暴露 Prometheus 指标。

# 核心类型

  - Server      - 组装存储、事件总线、Hub、执行器与路由，errgroup 管理生命周期
  - Middleware  - HTTP 中间件函数签名 func(http.Handler) http.Handler

# 主要能力

  - 子命令：serve、inspect（连接运行中的服务并列出工作流）、migrate、version、health
  - 存储后端：memory、database（GORM：sqlite/postgres/mysql）、mongo，可叠加 Redis 缓存
  - 中间件链：Recovery、RequestID、SecurityHeaders、CORS、OTelTracing、
    MetricsMiddleware、RequestLogger、Auth（JWT / API Key）、RateLimiter
  - 优雅关闭：SIGINT/SIGTERM → 关闭 HTTP 与 websocket → 等待执行 → 刷新遥测
  - 构建注入：Version、BuildTime、GitCommit 通过 ldflags 设置
*/
package main
