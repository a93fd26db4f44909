// Copyright (c) FlowEdit Authors.
// Licensed under the MIT License.

// Package config 提供 FlowEdit 的配置管理。
//
// 加载顺序为默认值、配置文件（.yaml/.yml 使用 yaml.v3，.toml 使用
// BurntSushi/toml）、FLOWEDIT_ 前缀的环境变量，最后运行验证器。
// Sanitized 返回脱敏后的配置视图，供 inspect 命令与调试接口输出。
package config
