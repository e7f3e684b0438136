package orchestrator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHealthTracker_Escalation(t *testing.T) {
	t.Parallel()
	h := NewHealthTracker(time.Minute)

	assert.Equal(t, HealthUnknown, h.Snapshot().Status)

	h.Record(true)
	assert.Equal(t, HealthHealthy, h.Snapshot().Status)

	h.Record(false)
	assert.Equal(t, HealthWarning, h.Snapshot().Status)
	h.Record(false)
	assert.Equal(t, HealthWarning, h.Snapshot().Status)

	h.Record(false)
	snap := h.Snapshot()
	assert.Equal(t, HealthCritical, snap.Status)
	assert.Equal(t, 3, snap.ErrorCount)
}

func TestHealthTracker_SuccessRate(t *testing.T) {
	t.Parallel()
	h := NewHealthTracker(time.Minute)

	for i := 0; i < 3; i++ {
		h.Record(true)
	}
	h.Record(false)

	snap := h.Snapshot()
	assert.InDelta(t, 0.75, snap.SuccessRate, 0.001)
	assert.False(t, snap.LastExecution.IsZero())
}

func TestHealthTracker_WindowedRecovery(t *testing.T) {
	t.Parallel()
	// 极短窗口：错误很快滑出统计范围
	h := NewHealthTracker(30 * time.Millisecond)

	for i := 0; i < 3; i++ {
		h.Record(false)
	}
	assert.Equal(t, HealthCritical, h.Snapshot().Status)

	time.Sleep(60 * time.Millisecond)

	// 错误过期后不再计数，节点恢复为健康而不是永久 Critical
	snap := h.Snapshot()
	assert.Equal(t, HealthHealthy, snap.Status)
	assert.Zero(t, snap.ErrorCount)
}

func TestMetricsTracker_RunningAverage(t *testing.T) {
	t.Parallel()
	tr := newMetricsTracker()

	// (old+new)/2 的两点近似，而不是真正的平均值
	tr.taskFinished(100*time.Millisecond, false)
	assert.InDelta(t, 100, tr.snapshot().AverageTaskDurationMs, 0.001)

	tr.taskFinished(200*time.Millisecond, false)
	assert.InDelta(t, 150, tr.snapshot().AverageTaskDurationMs, 0.001)

	tr.taskFinished(50*time.Millisecond, true)
	m := tr.snapshot()
	assert.InDelta(t, 100, m.AverageTaskDurationMs, 0.001)
	assert.Equal(t, 2, m.CompletedTasks)
	assert.Equal(t, 1, m.FailedTasks)
}

func TestMetricsTracker_AgentCounters(t *testing.T) {
	t.Parallel()
	tr := newMetricsTracker()

	tr.agentSpawned()
	tr.agentSpawned()
	tr.agentKilled()

	m := tr.snapshot()
	assert.Equal(t, 2, m.TotalAgents)
	assert.Equal(t, 1, m.ActiveAgents)

	// 多余的 kill 不把活跃数打成负数
	tr.agentKilled()
	tr.agentKilled()
	assert.Equal(t, 0, tr.snapshot().ActiveAgents)
}

func TestCompatible(t *testing.T) {
	t.Parallel()
	tests := []struct {
		task  TaskType
		agent AgentType
		want  bool
	}{
		{TaskLLMGeneration, AgentLLMRouter, true},
		{TaskLLMGeneration, AgentMemoryManager, false},
		{TaskBlockchainAnalysis, AgentBlockchainMonitor, true},
		{TaskMemoryManagement, AgentMemoryManager, true},
		{TaskNetworkOptimization, AgentNetworkOptimizer, true},
		{TaskDataProcessing, AgentTaskOrchestrator, true},
		{TaskDataProcessing, AgentLLMRouter, false},
		{TaskCustom, AgentLLMRouter, true},
		{TaskCustom, AgentNetworkOptimizer, true},
		{TaskType("unknown"), AgentLLMRouter, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Compatible(tt.task, tt.agent),
			"task %s agent %s", tt.task, tt.agent)
	}
}
