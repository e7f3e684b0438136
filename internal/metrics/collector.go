// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// =============================================================================
// 📊 指标收集器
// =============================================================================

// Collector 指标收集器
type Collector struct {
	// 工作流执行指标
	executionsTotal   *prometheus.CounterVec
	executionDuration *prometheus.HistogramVec

	// 节点执行指标
	nodeExecutionsTotal   *prometheus.CounterVec
	nodeExecutionDuration *prometheus.HistogramVec

	// 队列指标
	queueDepth    prometheus.Gauge
	queueRejected prometheus.Counter

	// Agent 协调指标
	agentTasksTotal *prometheus.CounterVec
	agentsActive    prometheus.Gauge

	logger *zap.Logger
}

// NewCollector 创建指标收集器
// reg 为 nil 时使用 prometheus.DefaultRegisterer
func NewCollector(namespace string, reg prometheus.Registerer, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	c.executionsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workflow_executions_total",
			Help:      "Total number of workflow executions",
		},
		[]string{"status", "mode"},
	)

	c.executionDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "workflow_execution_duration_seconds",
			Help:      "Workflow execution duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"status"},
	)

	c.nodeExecutionsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "node_executions_total",
			Help:      "Total number of node executions",
		},
		[]string{"node_type", "status"},
	)

	c.nodeExecutionDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "node_execution_duration_seconds",
			Help:      "Node execution duration in seconds",
			Buckets:   []float64{.005, .01, .05, .1, .5, 1, 5, 10, 30, 60},
		},
		[]string{"node_type", "status"},
	)

	c.queueDepth = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "execution_queue_depth",
			Help:      "Number of execution requests waiting in the queue",
		},
	)

	c.queueRejected = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "execution_queue_rejected_total",
			Help:      "Execution requests rejected because the queue was closed or full",
		},
	)

	c.agentTasksTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "agent_tasks_total",
			Help:      "Total number of agent task executions",
		},
		[]string{"agent_type", "status"},
	)

	c.agentsActive = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "agents_active",
			Help:      "Number of currently managed agents",
		},
	)

	return c
}

// RecordExecution 记录一次工作流执行
func (c *Collector) RecordExecution(status, mode string, duration time.Duration) {
	c.executionsTotal.WithLabelValues(status, mode).Inc()
	c.executionDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// RecordNodeExecution 记录一次节点执行
func (c *Collector) RecordNodeExecution(nodeType, status string, duration time.Duration) {
	c.nodeExecutionsTotal.WithLabelValues(nodeType, status).Inc()
	c.nodeExecutionDuration.WithLabelValues(nodeType, status).Observe(duration.Seconds())
}

// RecordNodeExecutionResult 记录节点执行并自动换算状态标签
func (c *Collector) RecordNodeExecutionResult(nodeType string, err error, duration time.Duration) {
	status := "success"
	if err != nil {
		status = "error"
	}
	c.RecordNodeExecution(nodeType, status, duration)
}

// SetQueueDepth 更新队列深度
func (c *Collector) SetQueueDepth(depth int) {
	c.queueDepth.Set(float64(depth))
}

// RecordQueueRejection 记录一次队列拒绝
func (c *Collector) RecordQueueRejection() {
	c.queueRejected.Inc()
}

// RecordAgentTask 记录一次 Agent 任务
func (c *Collector) RecordAgentTask(agentType, status string) {
	c.agentTasksTotal.WithLabelValues(agentType, status).Inc()
}

// SetActiveAgents 更新活跃 Agent 数量
func (c *Collector) SetActiveAgents(count int) {
	c.agentsActive.Set(float64(count))
}
