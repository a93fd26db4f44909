// Copyright (c) FlowEdit Authors.
// Licensed under the MIT License.

/*
包 pubsub 提供按主题分发的事件总线，供 transport.Hub 向所有已连接的
编辑器客户端广播事件。

# 实现

  - MemoryBus：进程内实现，单实例部署与测试使用。
  - RedisBus：基于 go-redis Pub/Sub，多实例部署时事件可跨进程扇出。

两种实现均满足 Bus 接口；订阅返回的取消函数是幂等的。
*/
package pubsub
