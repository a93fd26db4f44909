// Copyright (c) FlowEdit Authors.
// Licensed under the MIT License.

/*
包 store 定义工作流文档的持久化契约 Store，并提供多种实现。

# 实现

  - MemoryStore：进程内存储，开发与测试使用。
  - GormStore：基于 gorm，支持 sqlite（glebarez 纯 Go 驱动或 cgo 驱动）、
    postgres 与 mysql；整份工作流以 JSON 文档形式存放在 workflows 表中。
  - MongoStore：基于 mongo-driver v2，每个工作流一个文档，_id 即工作流 ID。
  - Cached：以 Redis 缓存包装任意 Store，读穿缓存，写入与删除时失效。

# 约定

  - SaveWorkflow 在 ID 为空时分配 UUID，并刷新 updated_at。
  - 找不到工作流时返回 ErrWorkflowNotFound。
  - 所有实现返回的文档都是副本，调用方可以自由修改。
*/
package store
