// =============================================================================
// 📦 FlowMesh 配置加载器
// =============================================================================
// 统一配置加载，支持 YAML 文件 + 环境变量覆盖
//
// 使用方法:
//
//	cfg, err := config.NewLoader().
//	    WithConfigPath("flowmesh.yaml").
//	    WithEnvPrefix("FLOWMESH").
//	    Load()
//
// 配置优先级: 默认值 → YAML 文件 → 环境变量
// =============================================================================
package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// 🎯 核心配置结构
// =============================================================================

// Config 是 FlowMesh 的完整配置结构
type Config struct {
	// Engine 工作流执行引擎配置
	Engine EngineConfig `yaml:"engine" env:"ENGINE"`

	// Orchestrator Agent 池编排配置
	Orchestrator OrchestratorConfig `yaml:"orchestrator" env:"ORCHESTRATOR"`

	// Memory 会话记忆存储配置
	Memory MemoryConfig `yaml:"memory" env:"MEMORY"`

	// LLM 大语言模型路由配置
	LLM LLMConfig `yaml:"llm" env:"LLM"`

	// Blockchain 链上查询配置
	Blockchain BlockchainConfig `yaml:"blockchain" env:"BLOCKCHAIN"`

	// Server 守护进程 HTTP 服务配置
	Server ServerConfig `yaml:"server" env:"SERVER"`

	// Log 日志配置
	Log LogConfig `yaml:"log" env:"LOG"`
}

// EngineConfig 执行引擎配置
type EngineConfig struct {
	// 执行请求队列容量
	QueueCapacity int `yaml:"queue_capacity" env:"QUEUE_CAPACITY"`
	// 工作协程数
	Workers int `yaml:"workers" env:"WORKERS"`
	// 节点缺省超时
	DefaultNodeTimeout time.Duration `yaml:"default_node_timeout" env:"DEFAULT_NODE_TIMEOUT"`
}

// OrchestratorConfig Agent 池配置
type OrchestratorConfig struct {
	// 池内最大 Agent 数
	MaxAgents int `yaml:"max_agents" env:"MAX_AGENTS"`
	// 单任务超时
	TaskTimeout time.Duration `yaml:"task_timeout" env:"TASK_TIMEOUT"`
	// 缺省协同策略
	Strategy string `yaml:"strategy" env:"STRATEGY"`
	// 健康统计滑动窗口
	HealthWindow time.Duration `yaml:"health_window" env:"HEALTH_WINDOW"`
}

// MemoryConfig 记忆存储配置
type MemoryConfig struct {
	// 后端类型: memory | redis
	Backend string `yaml:"backend" env:"BACKEND"`
	// Redis 地址
	RedisAddr string `yaml:"redis_addr" env:"REDIS_ADDR"`
	// Redis 密码
	RedisPassword string `yaml:"redis_password" env:"REDIS_PASSWORD"`
	// Redis 数据库编号
	RedisDB int `yaml:"redis_db" env:"REDIS_DB"`
	// 条目过期时间（0 为不过期）
	TTL time.Duration `yaml:"ttl" env:"TTL"`
}

// LLMConfig LLM 路由配置
type LLMConfig struct {
	// 路由策略: priority | round_robin | least_cost
	Strategy string `yaml:"strategy" env:"STRATEGY"`
	// 缺省模型
	DefaultModel string `yaml:"default_model" env:"DEFAULT_MODEL"`
	// 缺省最大 token 数
	MaxTokens int `yaml:"max_tokens" env:"MAX_TOKENS"`
	// 每秒请求速率上限（按供应商）
	RateLimit float64 `yaml:"rate_limit" env:"RATE_LIMIT"`
}

// BlockchainConfig 链上查询配置
type BlockchainConfig struct {
	// RPC 端点（空则使用内置模拟链）
	RPCURL string `yaml:"rpc_url" env:"RPC_URL"`
	// RPC 调用超时
	RequestTimeout time.Duration `yaml:"request_timeout" env:"REQUEST_TIMEOUT"`
}

// ServerConfig 守护进程 HTTP 服务配置
type ServerConfig struct {
	// API 监听地址
	APIAddr string `yaml:"api_addr" env:"API_ADDR"`
	// Prometheus 指标监听地址
	MetricsAddr string `yaml:"metrics_addr" env:"METRICS_ADDR"`
	// 优雅关闭超时
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
}

// LogConfig 日志配置
type LogConfig struct {
	// 日志级别: debug | info | warn | error
	Level string `yaml:"level" env:"LEVEL"`
	// 输出格式: json | console
	Format string `yaml:"format" env:"FORMAT"`
	// 是否输出调用位置
	EnableCaller bool `yaml:"enable_caller" env:"ENABLE_CALLER"`
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

// NewLoader 创建新的配置加载器
func NewLoader() *Loader {
	return &Loader{
		envPrefix:  "FLOWMESH",
		validators: make([]func(*Config) error, 0),
	}
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

// WithValidator 添加配置验证器
func (l *Loader) WithValidator(v func(*Config) error) *Loader {
	l.validators = append(l.validators, v)
	return l
}

// Load 加载配置
// 优先级: 默认值 → YAML 文件 → 环境变量
func (l *Loader) Load() (*Config, error) {
	// 1. 从默认值开始
	cfg := DefaultConfig()

	// 2. 如果指定了配置文件，从文件加载
	if l.configPath != "" {
		if err := l.loadFromFile(cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	// 3. 从环境变量覆盖
	if err := l.loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	// 4. 运行验证器
	for _, v := range l.validators {
		if err := v(cfg); err != nil {
			return nil, fmt.Errorf("config validation failed: %w", err)
		}
	}

	return cfg, nil
}

// loadFromFile 从 YAML 文件加载配置
func (l *Loader) loadFromFile(cfg *Config) error {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			// 文件不存在，使用默认值
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// loadFromEnv 从环境变量加载配置
func (l *Loader) loadFromEnv(cfg *Config) error {
	return l.setFieldsFromEnv(reflect.ValueOf(cfg).Elem(), l.envPrefix)
}

// setFieldsFromEnv 递归设置结构体字段
func (l *Loader) setFieldsFromEnv(v reflect.Value, prefix string) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		envTag := fieldType.Tag.Get("env")
		if envTag == "" || envTag == "-" {
			continue
		}

		envKey := prefix + "_" + envTag

		// 如果是结构体，递归处理
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

// setFieldValue 设置字段值
func setFieldValue(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		// 特殊处理 time.Duration
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return err
			}
			field.SetInt(i)
		}

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetUint(u)

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
		// 支持逗号分隔的字符串切片
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
	cfg, err := NewLoader().WithConfigPath(path).Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}

// LoadFromEnv 仅从环境变量加载配置
func LoadFromEnv() (*Config, error) {
	return NewLoader().Load()
}

// Validate 验证配置
func (c *Config) Validate() error {
	var errs []string

	if c.Engine.QueueCapacity <= 0 {
		errs = append(errs, "engine.queue_capacity must be positive")
	}
	if c.Engine.Workers <= 0 {
		errs = append(errs, "engine.workers must be positive")
	}
	if c.Orchestrator.MaxAgents <= 0 {
		errs = append(errs, "orchestrator.max_agents must be positive")
	}
	switch c.Orchestrator.Strategy {
	case "sequential", "parallel", "pipeline", "adaptive", "load_balanced":
	default:
		errs = append(errs, "orchestrator.strategy must be one of sequential, parallel, pipeline, adaptive, load_balanced")
	}
	switch c.Memory.Backend {
	case "memory", "redis":
	default:
		errs = append(errs, "memory.backend must be memory or redis")
	}
	if c.Memory.Backend == "redis" && c.Memory.RedisAddr == "" {
		errs = append(errs, "memory.redis_addr required for redis backend")
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, "log.level must be one of debug, info, warn, error")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors: %s", strings.Join(errs, "; "))
	}

	return nil
}
