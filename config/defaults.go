package config

import "time"

// DefaultConfig 返回带缺省值的完整配置
func DefaultConfig() *Config {
	return &Config{
		Engine: EngineConfig{
			QueueCapacity:      256,
			Workers:            4,
			DefaultNodeTimeout: 2 * time.Minute,
		},
		Orchestrator: OrchestratorConfig{
			MaxAgents:    10,
			TaskTimeout:  5 * time.Minute,
			Strategy:     "adaptive",
			HealthWindow: 10 * time.Minute,
		},
		Memory: MemoryConfig{
			Backend:   "memory",
			RedisAddr: "localhost:6379",
			RedisDB:   0,
			TTL:       24 * time.Hour,
		},
		LLM: LLMConfig{
			Strategy:     "priority",
			DefaultModel: "gpt-4o-mini",
			MaxTokens:    2048,
			RateLimit:    10,
		},
		Blockchain: BlockchainConfig{
			RequestTimeout: 15 * time.Second,
		},
		Server: ServerConfig{
			APIAddr:         ":8080",
			MetricsAddr:     ":9090",
			ShutdownTimeout: 30 * time.Second,
		},
		Log: LogConfig{
			Level:        "info",
			Format:       "json",
			EnableCaller: false,
		},
	}
}
