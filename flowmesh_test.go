package flowmesh

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/BaSui01/flowmesh/config"
	"github.com/BaSui01/flowmesh/internal/metrics"
	"github.com/BaSui01/flowmesh/workflow"
)

func newTestMesh(t *testing.T) *Mesh {
	t.Helper()
	return newTestMeshWithConfig(t, config.DefaultConfig())
}

func newTestMeshWithConfig(t *testing.T, cfg *config.Config) *Mesh {
	t.Helper()
	logger := zaptest.NewLogger(t)
	mesh, err := New(
		WithConfig(cfg),
		WithLogger(logger),
		WithCollector(metrics.NewCollector("flowmesh_root_test", prometheus.NewRegistry(), logger)),
	)
	require.NoError(t, err)
	return mesh
}

func TestNew_WiresEverything(t *testing.T) {
	mesh := newTestMesh(t)

	require.NotNil(t, mesh.Config)
	require.NotNil(t, mesh.Store)
	require.NotNil(t, mesh.Registry)
	require.NotNil(t, mesh.Engine)
	require.NotNil(t, mesh.Logger)

	// 内置节点已注册
	infos := mesh.Registry.List()
	types := make([]string, 0, len(infos))
	for _, info := range infos {
		types = append(types, info.Type)
	}
	assert.Contains(t, types, "start")
	assert.Contains(t, types, "function")
	assert.Contains(t, types, "orchestrator")
}

func TestNew_InvalidConfigRejected(t *testing.T) {
	// 非法配置要经由加载器才会被校验拒绝
	t.Setenv("FLOWMESH_ENGINE_WORKERS", "-1")
	_, err := New(WithLogger(zaptest.NewLogger(t)))
	require.Error(t, err)
}

func TestMesh_EndToEndExecution(t *testing.T) {
	mesh := newTestMesh(t)
	mesh.Engine.Start()
	defer mesh.Engine.Shutdown()

	wf := &workflow.Workflow{
		Name:  "root smoke",
		State: workflow.StateActive,
		Nodes: map[string]*workflow.WorkflowNode{
			"s": {ID: "s", NodeType: "start"},
			"f": {ID: "f", NodeType: "function",
				Parameters: json.RawMessage(`{"operation":"uppercase","field":"greeting"}`)},
		},
		Connections: []workflow.Connection{
			{SourceNode: "s", TargetNode: "f"},
		},
	}
	id, err := mesh.Store.Create(wf)
	require.NoError(t, err)

	result, err := mesh.Engine.ExecuteWorkflow(context.Background(), id,
		json.RawMessage(`{"greeting":"hi"}`), workflow.ModeManual)
	require.NoError(t, err)

	assert.Equal(t, workflow.StatusSuccess, result.Status)
	assert.Contains(t, string(result.Data), `"HI"`)
}

func TestNew_RedisMemoryBackendFromConfig(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := config.DefaultConfig()
	cfg.Memory.Backend = "redis"
	cfg.Memory.RedisAddr = mr.Addr()

	mesh := newTestMeshWithConfig(t, cfg)
	mesh.Engine.Start()
	defer mesh.Engine.Shutdown()

	wf := &workflow.Workflow{
		Name:  "memory backend smoke",
		State: workflow.StateActive,
		Nodes: map[string]*workflow.WorkflowNode{
			"m": {ID: "m", NodeType: "memory",
				Parameters: json.RawMessage(`{"action":"store","session_id":"cfg-session","content":"remember me"}`)},
		},
	}
	id, err := mesh.Store.Create(wf)
	require.NoError(t, err)

	result, err := mesh.Engine.ExecuteWorkflow(context.Background(), id, nil, workflow.ModeManual)
	require.NoError(t, err)
	require.Equal(t, workflow.StatusSuccess, result.Status)

	// The entry landed in redis, not in the default in-memory store.
	assert.True(t, mr.Exists("flowmesh:memory:cfg-session"))
}

func TestNew_OrchestratorPoolConfigFromConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Orchestrator.MaxAgents = 1

	mesh := newTestMeshWithConfig(t, cfg)
	mesh.Engine.Start()
	defer mesh.Engine.Shutdown()

	wf := &workflow.Workflow{
		Name:  "pool limit smoke",
		State: workflow.StateActive,
		Nodes: map[string]*workflow.WorkflowNode{
			"o": {ID: "o", NodeType: "orchestrator",
				Parameters: json.RawMessage(`{"action":"spawn_agents","agent_configs":[{"agent_type":"llm_router"},{"agent_type":"llm_router"}]}`)},
		},
	}
	id, err := mesh.Store.Create(wf)
	require.NoError(t, err)

	result, err := mesh.Engine.ExecuteWorkflow(context.Background(), id, nil, workflow.ModeManual)
	require.NoError(t, err)
	require.Equal(t, workflow.StatusSuccess, result.Status)

	var outputs map[string]struct {
		Success     bool              `json:"success"`
		AgentStates []json.RawMessage `json:"agent_states"`
		Errors      []string          `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(result.Data, &outputs))
	out := outputs["o"]

	// max_agents from the config caps the pool at one agent.
	assert.False(t, out.Success)
	assert.Len(t, out.AgentStates, 1)
	require.Len(t, out.Errors, 1)
	assert.Contains(t, out.Errors[0], "agent pool is full")
}
