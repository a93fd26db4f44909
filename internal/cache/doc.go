// Copyright (c) FlowEdit Authors.
// Licensed under the MIT License.

/*
包 cache 封装 go-redis 客户端，为工作流存储提供读穿缓存，并把同一个
Redis 连接共享给 pubsub.RedisBus 用于多实例事件扇出。

# 核心类型

  - Manager：持有 Redis 客户端，所有键自动加上配置的前缀；
    提供 Get/Set/Delete 与 GetJSON/SetJSON，后台定时 Ping 并在 Close 时停止。
  - Config：地址、密码、连接池、默认 TTL、键前缀与健康检查间隔。

# 错误语义

未命中返回哨兵错误 ErrCacheMiss，可用 IsCacheMiss 判断。
*/
package cache
