// Copyright (c) FlowEdit Authors.
// Licensed under the MIT License.

/*
包 migration 管理工作流存储的数据库 Schema，支持 PostgreSQL、MySQL
与 SQLite 三种方言，基于 golang-migrate 实现。

# 概述

各方言的 SQL 文件通过 embed 内嵌在 migrations/<方言>/ 目录下，
当前包含 workflows 表及其名称索引。store 包的 GormStore 在
AutoMigrate 之外也可以依赖这里的版本化迁移。

# 核心类型

  - Migrator / DefaultMigrator：Up/Down/DownAll/Steps/Goto/Force/
    Version/Status/Info/Close。
  - Config：方言、连接串、迁移表名与锁超时。
  - CLI：带颜色的终端输出，供 flowedit migrate 子命令使用。
  - NewMigratorFromDatabaseConfig：从 config.DatabaseConfig 构造迁移器。
*/
package migration
