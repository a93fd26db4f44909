// Copyright (c) FlowEdit Authors.
// Licensed under the MIT License.

/*
包 server 管理 HTTP 服务器的生命周期。

Manager 封装 net/http.Server：Start 非阻塞监听，Run 阻塞到 context
结束后优雅关闭，适合放进 errgroup。flowedit serve 为 API 与 metrics
各创建一个 Manager，RegisterOnShutdown 用于在关闭时断开 websocket。
*/
package server
