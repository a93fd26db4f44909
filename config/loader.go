// =============================================================================
// 📦 FlowEdit 配置加载器
// =============================================================================
// 统一配置加载，支持 YAML / TOML 文件 + 环境变量覆盖
//
// 使用方法:
//
//	cfg, err := config.NewLoader().
//	    WithConfigPath("flowedit.yaml").
//	    WithEnvPrefix("FLOWEDIT").
//	    Load()
//
// 配置优先级: 默认值 → 配置文件 → 环境变量
// =============================================================================
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// 🎯 核心配置结构
// =============================================================================

// Config 是 FlowEdit 的完整配置
type Config struct {
	Server    ServerConfig    `yaml:"server" toml:"server" json:"server" env:"SERVER"`
	Editor    EditorConfig    `yaml:"editor" toml:"editor" json:"editor" env:"EDITOR"`
	Store     StoreConfig     `yaml:"store" toml:"store" json:"store" env:"STORE"`
	Database  DatabaseConfig  `yaml:"database" toml:"database" json:"database" env:"DATABASE"`
	Redis     RedisConfig     `yaml:"redis" toml:"redis" json:"redis" env:"REDIS"`
	Log       LogConfig       `yaml:"log" toml:"log" json:"log" env:"LOG"`
	Telemetry TelemetryConfig `yaml:"telemetry" toml:"telemetry" json:"telemetry" env:"TELEMETRY"`
	Auth      AuthConfig      `yaml:"auth" toml:"auth" json:"auth" env:"AUTH"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	// HTTP 端口（REST、websocket 与静态页面）
	HTTPPort int `yaml:"http_port" toml:"http_port" json:"http_port" env:"HTTP_PORT"`
	// Metrics 端口，0 表示不单独启动
	MetricsPort int `yaml:"metrics_port" toml:"metrics_port" json:"metrics_port" env:"METRICS_PORT"`
	ReadTimeout     time.Duration `yaml:"read_timeout" toml:"read_timeout" json:"read_timeout" env:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" toml:"write_timeout" json:"write_timeout" env:"WRITE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" toml:"shutdown_timeout" json:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
	// 允许的 CORS 来源，逗号分隔
	AllowedOrigins []string `yaml:"allowed_origins" toml:"allowed_origins" json:"allowed_origins" env:"ALLOWED_ORIGINS"`
	// executeWorkflow 的最长运行时间
	ExecutionTimeout time.Duration `yaml:"execution_timeout" toml:"execution_timeout" json:"execution_timeout" env:"EXECUTION_TIMEOUT"`
	// 每个模拟任务的耗时
	TaskDelay time.Duration `yaml:"task_delay" toml:"task_delay" json:"task_delay" env:"TASK_DELAY"`
}

// EditorConfig 编辑器交互参数
type EditorConfig struct {
	MinZoom         float64 `yaml:"min_zoom" toml:"min_zoom" json:"min_zoom" env:"MIN_ZOOM"`
	MaxZoom         float64 `yaml:"max_zoom" toml:"max_zoom" json:"max_zoom" env:"MAX_ZOOM"`
	ZoomSensitivity float64 `yaml:"zoom_sensitivity" toml:"zoom_sensitivity" json:"zoom_sensitivity" env:"ZOOM_SENSITIVITY"`
	// 新节点的默认方向: horizontal, vertical
	FlowDirection string `yaml:"flow_direction" toml:"flow_direction" json:"flow_direction" env:"FLOW_DIRECTION"`
}

// StoreConfig 工作流存储选择
type StoreConfig struct {
	// 后端: memory, database, mongo
	Backend string `yaml:"backend" toml:"backend" json:"backend" env:"BACKEND"`
	// 启动时对 database 后端执行 AutoMigrate
	AutoMigrate   bool   `yaml:"auto_migrate" toml:"auto_migrate" json:"auto_migrate" env:"AUTO_MIGRATE"`
	MongoURI      string `yaml:"mongo_uri" toml:"mongo_uri" json:"mongo_uri" env:"MONGO_URI"`
	MongoDatabase string `yaml:"mongo_database" toml:"mongo_database" json:"mongo_database" env:"MONGO_DATABASE"`
	// 通过 Redis 缓存 GetWorkflow，需 redis.enabled
	CacheTTL time.Duration `yaml:"cache_ttl" toml:"cache_ttl" json:"cache_ttl" env:"CACHE_TTL"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	// 驱动: sqlite（纯 Go）, sqlite3（cgo）, postgres, mysql
	Driver   string `yaml:"driver" toml:"driver" json:"driver" env:"DRIVER"`
	Host     string `yaml:"host" toml:"host" json:"host" env:"HOST"`
	Port     int    `yaml:"port" toml:"port" json:"port" env:"PORT"`
	User     string `yaml:"user" toml:"user" json:"user" env:"USER"`
	Password string `yaml:"password" toml:"password" json:"password" env:"PASSWORD"`
	// 数据库名；sqlite 为文件路径
	Name            string        `yaml:"name" toml:"name" json:"name" env:"NAME"`
	SSLMode         string        `yaml:"ssl_mode" toml:"ssl_mode" json:"ssl_mode" env:"SSL_MODE"`
	MaxOpenConns    int           `yaml:"max_open_conns" toml:"max_open_conns" json:"max_open_conns" env:"MAX_OPEN_CONNS"`
	MaxIdleConns    int           `yaml:"max_idle_conns" toml:"max_idle_conns" json:"max_idle_conns" env:"MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" toml:"conn_max_lifetime" json:"conn_max_lifetime" env:"CONN_MAX_LIFETIME"`
}

// RedisConfig Redis 配置，用于事件总线与工作流缓存
type RedisConfig struct {
	Enabled      bool   `yaml:"enabled" toml:"enabled" json:"enabled" env:"ENABLED"`
	Addr         string `yaml:"addr" toml:"addr" json:"addr" env:"ADDR"`
	Password     string `yaml:"password" toml:"password" json:"password" env:"PASSWORD"`
	DB           int    `yaml:"db" toml:"db" json:"db" env:"DB"`
	PoolSize     int    `yaml:"pool_size" toml:"pool_size" json:"pool_size" env:"POOL_SIZE"`
	MinIdleConns int    `yaml:"min_idle_conns" toml:"min_idle_conns" json:"min_idle_conns" env:"MIN_IDLE_CONNS"`
	KeyPrefix    string `yaml:"key_prefix" toml:"key_prefix" json:"key_prefix" env:"KEY_PREFIX"`
	// 事件频道前缀
	ChannelPrefix string `yaml:"channel_prefix" toml:"channel_prefix" json:"channel_prefix" env:"CHANNEL_PREFIX"`
}

// LogConfig 日志配置
type LogConfig struct {
	// 日志级别: debug, info, warn, error
	Level string `yaml:"level" toml:"level" json:"level" env:"LEVEL"`
	// 输出格式: json, console
	Format           string   `yaml:"format" toml:"format" json:"format" env:"FORMAT"`
	OutputPaths      []string `yaml:"output_paths" toml:"output_paths" json:"output_paths" env:"OUTPUT_PATHS"`
	EnableCaller     bool     `yaml:"enable_caller" toml:"enable_caller" json:"enable_caller" env:"ENABLE_CALLER"`
	EnableStacktrace bool     `yaml:"enable_stacktrace" toml:"enable_stacktrace" json:"enable_stacktrace" env:"ENABLE_STACKTRACE"`
}

// TelemetryConfig 遥测配置
type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled" toml:"enabled" json:"enabled" env:"ENABLED"`
	OTLPEndpoint string  `yaml:"otlp_endpoint" toml:"otlp_endpoint" json:"otlp_endpoint" env:"OTLP_ENDPOINT"`
	ServiceName  string  `yaml:"service_name" toml:"service_name" json:"service_name" env:"SERVICE_NAME"`
	SampleRate   float64 `yaml:"sample_rate" toml:"sample_rate" json:"sample_rate" env:"SAMPLE_RATE"`
}

// AuthConfig 认证与限流
type AuthConfig struct {
	// JWT HMAC 密钥，为空时不校验 JWT
	JWTSecret string `yaml:"jwt_secret" toml:"jwt_secret" json:"jwt_secret" env:"JWT_SECRET"`
	// 允许的 API Key，逗号分隔
	APIKeys        []string `yaml:"api_keys" toml:"api_keys" json:"api_keys" env:"API_KEYS"`
	RateLimitRPS   float64  `yaml:"rate_limit_rps" toml:"rate_limit_rps" json:"rate_limit_rps" env:"RATE_LIMIT_RPS"`
	RateLimitBurst int      `yaml:"rate_limit_burst" toml:"rate_limit_burst" json:"rate_limit_burst" env:"RATE_LIMIT_BURST"`
}

// Enabled 是否配置了任一认证方式
func (a AuthConfig) Enabled() bool {
	return a.JWTSecret != "" || len(a.APIKeys) > 0
}

// =============================================================================
// 🔧 配置加载器
// =============================================================================

// Loader 配置加载器（Builder 模式）
type Loader struct {
	configPath string
	envPrefix  string
	validators []func(*Config) error
}

// NewLoader 创建加载器，默认环境变量前缀 FLOWEDIT
func NewLoader() *Loader {
	return &Loader{envPrefix: "FLOWEDIT"}
}

// WithConfigPath 设置配置文件路径
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithEnvPrefix 设置环境变量前缀
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// WithValidator 添加验证器
func (l *Loader) WithValidator(v func(*Config) error) *Loader {
	l.validators = append(l.validators, v)
	return l
}

// Load 依次应用默认值、配置文件、环境变量与验证器
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	if l.configPath != "" {
		if err := l.loadFromFile(cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := l.setFieldsFromEnv(reflect.ValueOf(cfg).Elem(), l.envPrefix); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	for _, v := range l.validators {
		if err := v(cfg); err != nil {
			return nil, fmt.Errorf("config validation failed: %w", err)
		}
	}
	return cfg, nil
}

// loadFromFile 按扩展名选择 TOML 或 YAML；文件不存在时保留默认值
func (l *Loader) loadFromFile(cfg *Config) error {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(l.configPath)) {
	case ".toml":
		err = toml.Unmarshal(data, cfg)
	default:
		err = yaml.Unmarshal(data, cfg)
	}
	if err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

// setFieldsFromEnv 递归设置带 env tag 的字段
func (l *Loader) setFieldsFromEnv(v reflect.Value, prefix string) error {
	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		envTag := t.Field(i).Tag.Get("env")
		if envTag == "" || envTag == "-" {
			continue
		}
		envKey := prefix + "_" + envTag

		if field.Kind() == reflect.Struct {
			if err := l.setFieldsFromEnv(field, envKey); err != nil {
				return err
			}
			continue
		}

		envValue := os.Getenv(envKey)
		if envValue == "" {
			continue
		}
		if err := setFieldValue(field, envValue); err != nil {
			return fmt.Errorf("failed to set %s: %w", envKey, err)
		}
	}
	return nil
}

var durationType = reflect.TypeOf(time.Duration(0))

func setFieldValue(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if field.Type() == durationType {
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(d))
			return nil
		}
		i, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetInt(i)

	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)

	case reflect.Slice:
		// 逗号分隔的字符串切片
		if field.Type().Elem().Kind() == reflect.String {
			parts := strings.Split(value, ",")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			field.Set(reflect.ValueOf(parts))
		}
	}
	return nil
}

// =============================================================================
// 🔍 辅助函数
// =============================================================================

// MustLoad 加载配置，失败时 panic
func MustLoad(path string) *Config {
	cfg, err := NewLoader().WithConfigPath(path).WithValidator((*Config).Validate).Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}

var (
	validBackends = map[string]bool{"memory": true, "database": true, "mongo": true}
	validDrivers  = map[string]bool{"sqlite": true, "sqlite3": true, "postgres": true, "mysql": true}
)

// Validate 校验配置
func (c *Config) Validate() error {
	var errs []string

	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		errs = append(errs, "invalid HTTP port")
	}
	if c.Server.MetricsPort < 0 || c.Server.MetricsPort > 65535 {
		errs = append(errs, "invalid metrics port")
	}

	if c.Editor.MinZoom <= 0 || c.Editor.MaxZoom < c.Editor.MinZoom {
		errs = append(errs, "editor zoom bounds must satisfy 0 < min_zoom <= max_zoom")
	}
	if c.Editor.ZoomSensitivity <= 0 {
		errs = append(errs, "editor zoom_sensitivity must be positive")
	}
	if fd := c.Editor.FlowDirection; fd != "horizontal" && fd != "vertical" {
		errs = append(errs, fmt.Sprintf("unknown flow_direction %q", fd))
	}

	if !validBackends[c.Store.Backend] {
		errs = append(errs, fmt.Sprintf("unknown store backend %q", c.Store.Backend))
	}
	if c.Store.Backend == "database" && !validDrivers[c.Database.Driver] {
		errs = append(errs, fmt.Sprintf("unsupported database driver %q", c.Database.Driver))
	}
	if c.Store.Backend == "mongo" && c.Store.MongoURI == "" {
		errs = append(errs, "store.mongo_uri is required for the mongo backend")
	}
	if c.Store.CacheTTL > 0 && !c.Redis.Enabled {
		errs = append(errs, "store.cache_ttl requires redis.enabled")
	}

	if c.Auth.RateLimitRPS < 0 {
		errs = append(errs, "rate_limit_rps must not be negative")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// DSN 返回 GORM 使用的连接串
func (d *DatabaseConfig) DSN() string {
	switch d.Driver {
	case "postgres":
		return fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
		)
	case "mysql":
		return fmt.Sprintf(
			"%s:%s@tcp(%s:%d)/%s?parseTime=true",
			d.User, d.Password, d.Host, d.Port, d.Name,
		)
	case "sqlite", "sqlite3":
		return d.Name
	default:
		return ""
	}
}

// =============================================================================
// 🔒 脱敏视图
// =============================================================================

var sensitiveKeys = []string{"password", "api_key", "secret", "token", "credential", "uri"}

// Sanitized 返回敏感字段被替换为 [REDACTED] 的配置视图
func (c *Config) Sanitized() map[string]any {
	data, err := json.Marshal(c)
	if err != nil {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil
	}
	redactSensitiveFields(out)
	return out
}

func redactSensitiveFields(data map[string]any) {
	for key, value := range data {
		lower := strings.ToLower(key)
		for _, s := range sensitiveKeys {
			if !strings.Contains(lower, s) {
				continue
			}
			switch v := value.(type) {
			case string:
				if v != "" {
					data[key] = "[REDACTED]"
				}
			case []any:
				if len(v) > 0 {
					data[key] = "[REDACTED]"
				}
			}
			break
		}
		if nested, ok := value.(map[string]any); ok {
			redactSensitiveFields(nested)
		}
	}
}
