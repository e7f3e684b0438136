package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestCollector(t *testing.T) (*Collector, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	return NewCollector("flowmesh_test", reg, zaptest.NewLogger(t)), reg
}

func TestCollector_RecordExecution(t *testing.T) {
	t.Parallel()
	c, _ := newTestCollector(t)

	c.RecordExecution("success", "async", 120*time.Millisecond)
	c.RecordExecution("success", "async", 80*time.Millisecond)
	c.RecordExecution("error", "sync", 10*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.executionsTotal.WithLabelValues("success", "async")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.executionsTotal.WithLabelValues("error", "sync")))
}

func TestCollector_RecordNodeExecutionResult(t *testing.T) {
	t.Parallel()
	c, _ := newTestCollector(t)

	c.RecordNodeExecutionResult("http_request", nil, 5*time.Millisecond)
	c.RecordNodeExecutionResult("http_request", errors.New("boom"), 5*time.Millisecond)
	c.RecordNodeExecutionResult("function", nil, time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.nodeExecutionsTotal.WithLabelValues("http_request", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.nodeExecutionsTotal.WithLabelValues("http_request", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.nodeExecutionsTotal.WithLabelValues("function", "success")))
}

func TestCollector_QueueMetrics(t *testing.T) {
	t.Parallel()
	c, _ := newTestCollector(t)

	c.SetQueueDepth(7)
	assert.Equal(t, 7.0, testutil.ToFloat64(c.queueDepth))
	c.SetQueueDepth(0)
	assert.Equal(t, 0.0, testutil.ToFloat64(c.queueDepth))

	c.RecordQueueRejection()
	c.RecordQueueRejection()
	assert.Equal(t, 2.0, testutil.ToFloat64(c.queueRejected))
}

func TestCollector_AgentMetrics(t *testing.T) {
	t.Parallel()
	c, _ := newTestCollector(t)

	c.RecordAgentTask("llm_router", "success")
	c.RecordAgentTask("llm_router", "error")
	c.SetActiveAgents(3)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.agentTasksTotal.WithLabelValues("llm_router", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.agentTasksTotal.WithLabelValues("llm_router", "error")))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.agentsActive))
}

func TestCollector_MetricsRegistered(t *testing.T) {
	t.Parallel()
	c, reg := newTestCollector(t)

	c.RecordExecution("success", "async", time.Millisecond)
	c.RecordNodeExecution("start", "success", time.Millisecond)
	c.SetQueueDepth(1)
	c.RecordQueueRejection()
	c.RecordAgentTask("memory_manager", "success")
	c.SetActiveAgents(1)

	families, err := reg.Gather()
	require.NoError(t, err)

	names := make(map[string]bool, len(families))
	for _, fam := range families {
		names[fam.GetName()] = true
	}
	for _, want := range []string{
		"flowmesh_test_workflow_executions_total",
		"flowmesh_test_workflow_execution_duration_seconds",
		"flowmesh_test_node_executions_total",
		"flowmesh_test_node_execution_duration_seconds",
		"flowmesh_test_execution_queue_depth",
		"flowmesh_test_execution_queue_rejected_total",
		"flowmesh_test_agent_tasks_total",
		"flowmesh_test_agents_active",
	} {
		assert.True(t, names[want], "missing metric family %s", want)
	}
}

func TestCollector_NilRegistererAndLogger(t *testing.T) {
	// DefaultRegisterer path: use a unique namespace so repeated test runs
	// in the same process do not collide.
	c := NewCollector("flowmesh_default_test", nil, nil)
	require.NotNil(t, c)
	c.RecordExecution("success", "sync", time.Millisecond)
}
