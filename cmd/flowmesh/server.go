package main

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/BaSui01/flowmesh"
	"github.com/BaSui01/flowmesh/internal/server"
)

// =============================================================================
// 🖥️ Server 结构
// =============================================================================

// Server 托管 FlowMesh 守护进程的两个监听端口：
// API（健康检查 + 工作流管理/执行）与 Prometheus metrics。
type Server struct {
	mesh   *flowmesh.Mesh
	logger *zap.Logger

	apiManager     *server.Manager
	metricsManager *server.Manager
}

// NewServer 创建新的服务器实例
func NewServer(mesh *flowmesh.Mesh, logger *zap.Logger) *Server {
	return &Server{
		mesh:   mesh,
		logger: logger,
	}
}

// =============================================================================
// 🚀 启动流程
// =============================================================================

// Start 启动执行引擎、API 服务器与 metrics 服务器
func (s *Server) Start() error {
	s.mesh.Engine.Start()

	if err := s.startAPIServer(); err != nil {
		return err
	}
	if err := s.startMetricsServer(); err != nil {
		return err
	}

	s.logger.Info("All servers started",
		zap.String("api_addr", s.apiManager.Addr()),
		zap.String("metrics_addr", s.metricsManager.Addr()),
	)
	return nil
}

// apiRoutes 注册 API 路由
func apiRoutes(api *workflowAPI) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", api.handleHealth)
	mux.HandleFunc("GET /healthz", api.handleHealth)
	mux.HandleFunc("GET /version", api.handleVersion)

	mux.HandleFunc("POST /api/v1/workflows", api.handleCreate)
	mux.HandleFunc("GET /api/v1/workflows", api.handleList)
	mux.HandleFunc("GET /api/v1/workflows/{id}", api.handleGet)
	mux.HandleFunc("PUT /api/v1/workflows/{id}", api.handleUpdate)
	mux.HandleFunc("DELETE /api/v1/workflows/{id}", api.handleDelete)
	mux.HandleFunc("POST /api/v1/workflows/{id}/execute", api.handleExecute)
	mux.HandleFunc("GET /api/v1/nodes", api.handleNodeTypes)
	return mux
}

func (s *Server) startAPIServer() error {
	api := newWorkflowAPI(s.mesh, s.logger)

	handler := Chain(apiRoutes(api),
		Recovery(s.logger),
		RequestID(),
		RequestLogger(s.logger),
	)

	cfg := server.DefaultConfig()
	cfg.Addr = s.mesh.Config.Server.APIAddr
	cfg.ShutdownTimeout = s.mesh.Config.Server.ShutdownTimeout

	s.apiManager = server.NewManager(handler, cfg, s.logger)
	return s.apiManager.Start()
}

func (s *Server) startMetricsServer() error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	cfg := server.DefaultConfig()
	cfg.Addr = s.mesh.Config.Server.MetricsAddr
	cfg.ShutdownTimeout = s.mesh.Config.Server.ShutdownTimeout

	s.metricsManager = server.NewManager(mux, cfg, s.logger)
	return s.metricsManager.Start()
}

// =============================================================================
// 🛑 关闭流程
// =============================================================================

// WaitForShutdown 等待关闭信号并优雅关闭
func (s *Server) WaitForShutdown() {
	s.apiManager.WaitForShutdown()
	s.Shutdown()
}

// Shutdown 优雅关闭所有服务
// 先停接入层再停引擎，保证在途请求拿到终态结果。
func (s *Server) Shutdown() {
	s.logger.Info("Starting graceful shutdown...")

	ctx := context.Background()
	if s.apiManager != nil {
		if err := s.apiManager.Shutdown(ctx); err != nil {
			s.logger.Error("API server shutdown error", zap.Error(err))
		}
	}
	if s.metricsManager != nil {
		if err := s.metricsManager.Shutdown(ctx); err != nil {
			s.logger.Error("Metrics server shutdown error", zap.Error(err))
		}
	}
	s.mesh.Engine.Shutdown()

	s.logger.Info("Graceful shutdown completed")
}
