// Copyright (c) FlowEdit Authors.
// Licensed under the MIT License.

// Package tlsutil 提供集中式 TLS 配置（TLS 1.2+，仅 AEAD 密码套件），
// 供 CLI 的健康检查请求与 wss:// websocket 握手使用。
package tlsutil
