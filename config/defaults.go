// =============================================================================
// 📦 FlowEdit 默认配置
// =============================================================================
package config

import "time"

// DefaultConfig 返回默认配置：单机、SQLite 存储、不启用 Redis 与遥测
func DefaultConfig() *Config {
	return &Config{
		Server:    DefaultServerConfig(),
		Editor:    DefaultEditorConfig(),
		Store:     DefaultStoreConfig(),
		Database:  DefaultDatabaseConfig(),
		Redis:     DefaultRedisConfig(),
		Log:       DefaultLogConfig(),
		Telemetry: DefaultTelemetryConfig(),
		Auth:      DefaultAuthConfig(),
	}
}

// DefaultServerConfig 返回默认服务器配置
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPPort:         8080,
		MetricsPort:      9091,
		ReadTimeout:      30 * time.Second,
		WriteTimeout:     30 * time.Second,
		ShutdownTimeout:  15 * time.Second,
		AllowedOrigins:   []string{"*"},
		ExecutionTimeout: 2 * time.Minute,
		TaskDelay:        500 * time.Millisecond,
	}
}

// DefaultEditorConfig 返回默认编辑器参数
func DefaultEditorConfig() EditorConfig {
	return EditorConfig{
		MinZoom:         0.2,
		MaxZoom:         5.0,
		ZoomSensitivity: 0.001,
		FlowDirection:   "horizontal",
	}
}

// DefaultStoreConfig 返回默认存储配置
func DefaultStoreConfig() StoreConfig {
	return StoreConfig{
		Backend:       "database",
		AutoMigrate:   true,
		MongoDatabase: "flowedit",
	}
}

// DefaultDatabaseConfig 返回默认数据库配置
func DefaultDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Driver:          "sqlite",
		Host:            "localhost",
		Name:            "flowedit.db",
		SSLMode:         "disable",
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
	}
}

// DefaultRedisConfig 返回默认 Redis 配置
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Enabled:       false,
		Addr:          "localhost:6379",
		PoolSize:      10,
		MinIdleConns:  2,
		KeyPrefix:     "flowedit:",
		ChannelPrefix: "flowedit:events:",
	}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:        "info",
		Format:       "json",
		OutputPaths:  []string{"stdout"},
		EnableCaller: true,
	}
}

// DefaultTelemetryConfig 返回默认遥测配置
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "flowedit",
		SampleRate:   0.1,
	}
}

// DefaultAuthConfig 返回默认认证配置，未设置密钥时不启用认证
func DefaultAuthConfig() AuthConfig {
	return AuthConfig{
		RateLimitRPS:   100,
		RateLimitBurst: 200,
	}
}
