// Package flowmesh provides a top-level convenience entry point for creating
// a fully wired workflow engine with minimal boilerplate.
//
// Usage:
//
//	import "github.com/BaSui01/flowmesh"
//
//	mesh, err := flowmesh.New()
//	mesh, err := flowmesh.New(flowmesh.WithConfigFile("flowmesh.yaml"))
//	mesh, err := flowmesh.New(flowmesh.WithLogger(logger))
//
// The returned Mesh bundles the workflow store, node registry (with all
// built-in node types registered) and the execution engine.
package flowmesh

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/BaSui01/flowmesh/config"
	"github.com/BaSui01/flowmesh/internal/metrics"
	"github.com/BaSui01/flowmesh/orchestrator"
	"github.com/BaSui01/flowmesh/workflow"
	"github.com/BaSui01/flowmesh/workflow/nodes"
)

// Version 是 FlowMesh 的当前版本号
const Version = "0.3.0"

// Mesh 聚合一套完整的工作流运行时
type Mesh struct {
	Config   *config.Config
	Store    *workflow.Store
	Registry *workflow.Registry
	Engine   *workflow.Engine
	Logger   *zap.Logger
}

// Option 配置 New 创建的 Mesh
type Option func(*options)

type options struct {
	cfg        *config.Config
	configPath string
	logger     *zap.Logger
	collector  *metrics.Collector
}

// WithConfig 直接注入配置，跳过文件与环境变量加载
func WithConfig(cfg *config.Config) Option {
	return func(o *options) { o.cfg = cfg }
}

// WithConfigFile 指定 YAML 配置文件路径
func WithConfigFile(path string) Option {
	return func(o *options) { o.configPath = path }
}

// WithLogger 注入自定义 zap logger
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithCollector 注入自定义指标收集器
func WithCollector(c *metrics.Collector) Option {
	return func(o *options) { o.collector = c }
}

// New 创建并装配 Mesh：加载配置、构建日志、注册内置节点、初始化引擎。
// 返回的引擎尚未启动，调用方需自行 Start / Shutdown。
func New(opts ...Option) (*Mesh, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	cfg := o.cfg
	if cfg == nil {
		loaded, err := config.NewLoader().
			WithConfigPath(o.configPath).
			WithValidator(func(c *config.Config) error { return c.Validate() }).
			Load()
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	logger := o.logger
	if logger == nil {
		logger = initLogger(cfg.Log)
	}

	collector := o.collector
	if collector == nil {
		collector = metrics.NewCollector("flowmesh", nil, logger)
	}

	deps, err := builtinDeps(cfg)
	if err != nil {
		return nil, err
	}

	store := workflow.NewStore(logger)
	registry := workflow.NewRegistry()
	nodes.RegisterBuiltinsWith(registry, deps, logger)

	engine := workflow.NewEngine(store, registry, workflow.EngineConfig{
		QueueCapacity:      cfg.Engine.QueueCapacity,
		Workers:            cfg.Engine.Workers,
		DefaultNodeTimeout: cfg.Engine.DefaultNodeTimeout,
	}, collector, logger)

	return &Mesh{
		Config:   cfg,
		Store:    store,
		Registry: registry,
		Engine:   engine,
		Logger:   logger,
	}, nil
}

// builtinDeps 依据配置装配内置节点的外部协作对象：
// redis 后端的记忆存储、链上 RPC 读取器、LLM 路由缺省值与 Agent 池配置。
func builtinDeps(cfg *config.Config) (nodes.BuiltinDeps, error) {
	deps := nodes.BuiltinDeps{
		LLMDefaults: nodes.LLMDefaults{
			Strategy:  cfg.LLM.Strategy,
			Model:     cfg.LLM.DefaultModel,
			MaxTokens: cfg.LLM.MaxTokens,
			RateLimit: cfg.LLM.RateLimit,
		},
		PoolConfig: orchestrator.PoolConfig{
			MaxAgents:    cfg.Orchestrator.MaxAgents,
			TaskTimeout:  cfg.Orchestrator.TaskTimeout,
			Strategy:     orchestrator.CoordinationStrategy(cfg.Orchestrator.Strategy),
			HealthWindow: cfg.Orchestrator.HealthWindow,
		},
	}

	if cfg.Memory.Backend == "redis" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Memory.RedisAddr,
			Password: cfg.Memory.RedisPassword,
			DB:       cfg.Memory.RedisDB,
		})
		deps.MemoryStore = nodes.NewRedisContextStore(client, "", cfg.Memory.TTL)
	}

	if cfg.Blockchain.RPCURL != "" {
		dialCtx := context.Background()
		if cfg.Blockchain.RequestTimeout > 0 {
			var cancel context.CancelFunc
			dialCtx, cancel = context.WithTimeout(dialCtx, cfg.Blockchain.RequestTimeout)
			defer cancel()
		}
		reader, err := nodes.NewEthChainReader(dialCtx, cfg.Blockchain.RPCURL)
		if err != nil {
			return nodes.BuiltinDeps{}, fmt.Errorf("dial blockchain rpc: %w", err)
		}
		deps.ChainReader = reader
	}

	return deps, nil
}

// initLogger 按配置构建 zap logger
func initLogger(cfg config.LogConfig) *zap.Logger {
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "info":
		level = zapcore.InfoLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	var encoderConfig zapcore.EncoderConfig
	encoding := "json"
	if cfg.Format == "console" {
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoding = "console"
	} else {
		encoderConfig = zap.NewProductionEncoderConfig()
		encoderConfig.TimeKey = "timestamp"
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	zapConfig := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Development:      cfg.Format == "console",
		Encoding:         encoding,
		EncoderConfig:    encoderConfig,
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	buildOpts := []zap.Option{zap.AddStacktrace(zapcore.ErrorLevel)}
	if cfg.EnableCaller {
		buildOpts = append(buildOpts, zap.AddCaller())
	}

	logger, err := zapConfig.Build(buildOpts...)
	if err != nil {
		logger, _ = zap.NewProduction()
	}
	return logger
}
