// Copyright (c) FlowEdit Authors.
// Licensed under the MIT License.

/*
包 database 负责打开工作流存储使用的关系数据库，并以 PoolManager
统一管理连接池、健康检查与事务重试。

# 核心类型

  - Dialector / Open：按驱动名（sqlite、sqlite3、postgres、mysql）
    选择 GORM 方言并打开连接。
  - PoolManager：持有 GORM 实例与底层 sql.DB，提供 DB()、Ping()、
    GetStats()、Close()。
  - WithTransaction / WithTransactionRetry：store.GormStore 的写入
    在事务中执行，遇到死锁或 database is locked 时指数退避重试。
*/
package database
