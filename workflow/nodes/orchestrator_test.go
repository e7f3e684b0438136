package nodes

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/BaSui01/flowmesh/orchestrator"
	"github.com/BaSui01/flowmesh/workflow"
)

func runOrchestratorAction(t *testing.T, def *OrchestratorDefinition, params string) orchestratorOutput {
	t.Helper()
	inst, err := def.CreateInstance()
	require.NoError(t, err)
	require.NoError(t, inst.Configure(json.RawMessage(params)))

	out, err := inst.Execute(context.Background(), testContext(`{}`))
	require.NoError(t, err)

	var result orchestratorOutput
	require.NoError(t, json.Unmarshal(out.Data, &result))
	return result
}

func TestOrchestratorNode_ConfigureValidation(t *testing.T) {
	t.Parallel()
	def := NewOrchestratorDefinition(zaptest.NewLogger(t))

	tests := []struct {
		name   string
		params string
	}{
		{"empty", ``},
		{"unknown action", `{"action":"teleport"}`},
		{"spawn without configs", `{"action":"spawn_agents"}`},
		{"kill without id", `{"action":"kill_agent"}`},
		{"execute without task", `{"action":"execute_task"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inst, err := def.CreateInstance()
			require.NoError(t, err)
			err = inst.Configure(json.RawMessage(tt.params))
			require.Error(t, err)
			var cfgErr *workflow.ConfigError
			assert.ErrorAs(t, err, &cfgErr)
		})
	}
}

func TestOrchestratorNode_SpawnAgentsPartialSuccess(t *testing.T) {
	t.Parallel()
	def := NewOrchestratorDefinition(zaptest.NewLogger(t))

	result := runOrchestratorAction(t, def, `{
		"action": "spawn_agents",
		"agent_configs": [
			{"agent_type": "llm_router"},
			{"agent_type": "fortune_teller"},
			{"agent_type": "memory_manager", "priority": 5}
		]
	}`)

	assert.Equal(t, "spawn_agents", result.ActionPerformed)
	// 有配置失败时整体 success=false，但合法的仍然生成
	assert.False(t, result.Success)
	assert.Len(t, result.AgentStates, 2)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "unknown agent type")
	assert.Equal(t, 2, def.Pool().Size())
}

func TestOrchestratorNode_SpawnAllValid(t *testing.T) {
	t.Parallel()
	def := NewOrchestratorDefinition(zaptest.NewLogger(t))

	result := runOrchestratorAction(t, def, `{
		"action": "spawn_agents",
		"agent_configs": [{"agent_type": "blockchain_monitor"}]
	}`)

	assert.True(t, result.Success)
	require.Len(t, result.AgentStates, 1)
	assert.Equal(t, orchestrator.StatusIdle, result.AgentStates[0].Status)
	assert.Empty(t, result.Errors)
}

func TestOrchestratorNode_ExecuteTask(t *testing.T) {
	t.Parallel()
	def := NewOrchestratorDefinition(zaptest.NewLogger(t))

	spawn := runOrchestratorAction(t, def, `{
		"action": "spawn_agents",
		"agent_configs": [{"agent_type": "llm_router"}]
	}`)
	require.True(t, spawn.Success)

	result := runOrchestratorAction(t, def, `{
		"action": "execute_task",
		"task_definition": {"task_id": "t1", "task_type": "llm_generation"}
	}`)

	assert.Equal(t, "execute_task", result.ActionPerformed)
	assert.True(t, result.Success)
	assert.Len(t, result.TaskResults, 1)
	assert.Empty(t, result.Errors)
	require.Len(t, result.AgentStates, 1)
	assert.Equal(t, orchestrator.StatusCompleted, result.AgentStates[0].Status)
	assert.Equal(t, 1, result.Metrics.CompletedTasks)
}

func TestOrchestratorNode_ExecuteTaskNoSuitableAgents(t *testing.T) {
	t.Parallel()
	def := NewOrchestratorDefinition(zaptest.NewLogger(t))

	result := runOrchestratorAction(t, def, `{
		"action": "execute_task",
		"task_definition": {"task_id": "t1", "task_type": "llm_generation"}
	}`)

	// 无可用 Agent 是动作失败，不是节点崩溃
	assert.False(t, result.Success)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "no suitable agents")
	assert.Empty(t, result.TaskResults)
}

func TestOrchestratorNode_StrategyOverride(t *testing.T) {
	t.Parallel()
	def := NewOrchestratorDefinition(zaptest.NewLogger(t))

	spawn := runOrchestratorAction(t, def, `{
		"action": "spawn_agents",
		"agent_configs": [
			{"agent_type": "llm_router"},
			{"agent_type": "llm_router"}
		]
	}`)
	require.True(t, spawn.Success)

	result := runOrchestratorAction(t, def, `{
		"action": "execute_task",
		"coordination_strategy": "parallel",
		"task_definition": {"task_id": "t1", "task_type": "llm_generation"}
	}`)

	assert.True(t, result.Success)
	assert.Len(t, result.TaskResults, 2)
}

func TestOrchestratorNode_GetStatusAndMetrics(t *testing.T) {
	t.Parallel()
	def := NewOrchestratorDefinition(zaptest.NewLogger(t))

	runOrchestratorAction(t, def, `{
		"action": "spawn_agents",
		"agent_configs": [{"agent_type": "network_optimizer"}]
	}`)

	status := runOrchestratorAction(t, def, `{"action":"get_status"}`)
	assert.True(t, status.Success)
	assert.Len(t, status.AgentStates, 1)
	assert.Equal(t, 1, status.Metrics.TotalAgents)
	assert.Equal(t, 1, status.Metrics.ActiveAgents)

	metrics := runOrchestratorAction(t, def, `{"action":"get_metrics"}`)
	assert.True(t, metrics.Success)
	assert.Equal(t, 1, metrics.Metrics.TotalAgents)
}

func TestOrchestratorNode_KillAgent(t *testing.T) {
	t.Parallel()
	def := NewOrchestratorDefinition(zaptest.NewLogger(t))

	spawn := runOrchestratorAction(t, def, `{
		"action": "spawn_agents",
		"agent_configs": [{"agent_type": "task_orchestrator"}]
	}`)
	require.Len(t, spawn.AgentStates, 1)
	agentID := spawn.AgentStates[0].AgentID

	kill := runOrchestratorAction(t, def, `{"action":"kill_agent","agent_id":"`+agentID+`"}`)
	assert.True(t, kill.Success)
	assert.Empty(t, kill.AgentStates)
	assert.Equal(t, 0, def.Pool().Size())

	// 再杀一次：动作失败但节点不报错
	again := runOrchestratorAction(t, def, `{"action":"kill_agent","agent_id":"`+agentID+`"}`)
	assert.False(t, again.Success)
	require.Len(t, again.Errors, 1)
	assert.Contains(t, again.Errors[0], "agent not found")
}

func TestOrchestratorNode_AgentsPersistAcrossRuns(t *testing.T) {
	t.Parallel()
	def := NewOrchestratorDefinition(zaptest.NewLogger(t))

	runOrchestratorAction(t, def, `{
		"action": "spawn_agents",
		"agent_configs": [{"agent_type": "llm_router"}]
	}`)

	// 同一定义的新实例（模拟下一次工作流运行）仍看到已有 Agent
	status := runOrchestratorAction(t, def, `{"action":"get_status"}`)
	assert.Len(t, status.AgentStates, 1)
}

func TestOrchestratorNode_HealthFollowsOutcomes(t *testing.T) {
	t.Parallel()
	def := NewOrchestratorDefinition(zaptest.NewLogger(t))

	runOrchestratorAction(t, def, `{
		"action": "spawn_agents",
		"agent_configs": [{"agent_type": "llm_router"}]
	}`)
	assert.Equal(t, orchestrator.HealthHealthy, def.Health().Status)

	// 连续失败的动作推动健康降级
	for i := 0; i < 3; i++ {
		runOrchestratorAction(t, def, `{
			"action": "execute_task",
			"task_definition": {"task_id": "t", "task_type": "blockchain_analysis"}
		}`)
	}
	assert.Equal(t, orchestrator.HealthCritical, def.Health().Status)
}
