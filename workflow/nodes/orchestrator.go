package nodes

import (
	"context"
	"encoding/json"
	"errors"

	"go.uber.org/zap"

	"github.com/BaSui01/flowmesh/orchestrator"
	"github.com/BaSui01/flowmesh/workflow"
)

// OrchestratorDefinition exposes an agent pool as a workflow node. The pool
// lives on the definition so agents persist across executions until an
// explicit kill_agent action.
type OrchestratorDefinition struct {
	pool   *orchestrator.Pool
	health *orchestrator.HealthTracker
	logger *zap.Logger
}

// NewOrchestratorDefinition creates the node with a default pool.
func NewOrchestratorDefinition(logger *zap.Logger, opts ...orchestrator.PoolOption) *OrchestratorDefinition {
	return NewOrchestratorDefinitionWithConfig(orchestrator.DefaultPoolConfig(), logger, opts...)
}

// NewOrchestratorDefinitionWithConfig creates the node with an explicit
// pool configuration, typically from the orchestrator section of the
// daemon config.
func NewOrchestratorDefinitionWithConfig(cfg orchestrator.PoolConfig, logger *zap.Logger, opts ...orchestrator.PoolOption) *OrchestratorDefinition {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrchestratorDefinition{
		pool:   orchestrator.NewPool(cfg, logger, opts...),
		health: orchestrator.NewHealthTracker(cfg.HealthWindow),
		logger: logger.With(zap.String("component", "orchestrator_node")),
	}
}

// NewOrchestratorDefinitionWithPool reuses an existing pool.
func NewOrchestratorDefinitionWithPool(pool *orchestrator.Pool, logger *zap.Logger) *OrchestratorDefinition {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrchestratorDefinition{
		pool:   pool,
		health: orchestrator.NewHealthTracker(0),
		logger: logger.With(zap.String("component", "orchestrator_node")),
	}
}

func (*OrchestratorDefinition) Type() string        { return "orchestrator" }
func (*OrchestratorDefinition) DisplayName() string { return "Agent Orchestrator" }
func (*OrchestratorDefinition) Description() string {
	return "Coordinates a pool of autonomous agents with selectable strategies"
}

// Pool exposes the underlying agent pool, mostly for wiring and tests.
func (d *OrchestratorDefinition) Pool() *orchestrator.Pool { return d.pool }

// Health reports node-level health fed by action outcomes.
func (d *OrchestratorDefinition) Health() orchestrator.Health { return d.health.Snapshot() }

func (d *OrchestratorDefinition) CreateInstance() (workflow.Instance, error) {
	return &orchestratorInstance{def: d}, nil
}

// orchestratorInput mirrors the node's input schema.
type orchestratorInput struct {
	Action       string                            `json:"action"`
	AgentConfigs []orchestrator.AgentConfig        `json:"agent_configs,omitempty"`
	AgentID      string                            `json:"agent_id,omitempty"`
	Task         *orchestrator.TaskDefinition      `json:"task_definition,omitempty"`
	Strategy     orchestrator.CoordinationStrategy `json:"coordination_strategy,omitempty"`
}

// orchestratorOutput mirrors the node's output schema.
type orchestratorOutput struct {
	ActionPerformed string                       `json:"action_performed"`
	Success         bool                         `json:"success"`
	AgentStates     []orchestrator.AgentSnapshot `json:"agent_states"`
	TaskResults     map[string]json.RawMessage   `json:"task_results"`
	Metrics         orchestrator.Metrics         `json:"coordination_metrics"`
	ResourceUsage   resourceUsage                `json:"resource_usage"`
	Errors          []string                     `json:"errors"`
}

// resourceUsage is a coarse estimate derived from pool size and task
// counters, matching the upstream report shape.
type resourceUsage struct {
	CPUTimeMs       uint64 `json:"cpu_time_ms"`
	MemoryMB        uint64 `json:"memory_mb"`
	NetworkRequests uint64 `json:"network_requests"`
}

type orchestratorInstance struct {
	def   *OrchestratorDefinition
	input orchestratorInput
}

func (o *orchestratorInstance) Configure(params json.RawMessage) error {
	if len(params) == 0 {
		return &workflow.ConfigError{Field: "orchestrator", Reason: "parameters required"}
	}
	if err := json.Unmarshal(params, &o.input); err != nil {
		return &workflow.ConfigError{Field: "orchestrator", Reason: err.Error()}
	}
	switch o.input.Action {
	case "spawn_agents":
		if len(o.input.AgentConfigs) == 0 {
			return &workflow.ConfigError{Field: "orchestrator.agent_configs", Reason: "agent_configs required for spawn_agents"}
		}
	case "kill_agent":
		if o.input.AgentID == "" {
			return &workflow.ConfigError{Field: "orchestrator.agent_id", Reason: "agent_id required for kill_agent"}
		}
	case "execute_task":
		if o.input.Task == nil {
			return &workflow.ConfigError{Field: "orchestrator.task_definition", Reason: "task_definition required for execute_task"}
		}
	case "get_status", "get_metrics":
	default:
		return &workflow.ConfigError{Field: "orchestrator.action", Reason: "unknown action: " + o.input.Action}
	}
	return nil
}

func (o *orchestratorInstance) Execute(ctx context.Context, _ *workflow.ExecutionContext) (*workflow.NodeOutput, error) {
	pool := o.def.pool
	output := orchestratorOutput{
		ActionPerformed: o.input.Action,
		TaskResults:     map[string]json.RawMessage{},
		Errors:          []string{},
	}

	switch o.input.Action {
	case "spawn_agents":
		spawned, errs := pool.SpawnAgents(o.input.AgentConfigs)
		output.AgentStates = spawned
		output.Errors = append(output.Errors, errs...)
		output.Success = len(errs) == 0

	case "kill_agent":
		if err := pool.KillAgent(o.input.AgentID); err != nil {
			output.Errors = append(output.Errors, err.Error())
		}
		states, _ := pool.Snapshot()
		output.AgentStates = states
		output.Success = len(output.Errors) == 0

	case "execute_task":
		results, errs, err := pool.ExecuteTask(ctx, *o.input.Task, o.input.Strategy)
		if err != nil {
			// No eligible agents is an action failure, not a panic for
			// the pool: it is reported in the node output.
			if errors.Is(err, orchestrator.ErrNoSuitableAgents) {
				output.Errors = append(output.Errors, err.Error())
				break
			}
			o.def.health.Record(false)
			return nil, err
		}
		output.TaskResults = results
		output.Errors = append(output.Errors, errs...)
		states, _ := pool.Snapshot()
		output.AgentStates = states
		output.Success = len(errs) == 0

	case "get_status":
		states, metrics := pool.Snapshot()
		output.AgentStates = states
		output.Metrics = metrics
		output.Success = true

	case "get_metrics":
		output.Metrics = pool.Metrics()
		output.Success = true
	}

	if output.Metrics == (orchestrator.Metrics{}) {
		output.Metrics = pool.Metrics()
	}
	output.ResourceUsage = estimateResources(pool.Size(), output.Metrics)
	if output.AgentStates == nil {
		output.AgentStates = []orchestrator.AgentSnapshot{}
	}

	o.def.health.Record(output.Success)

	data, err := json.Marshal(output)
	if err != nil {
		return nil, err
	}
	return &workflow.NodeOutput{Data: data}, nil
}

func estimateResources(agents int, m orchestrator.Metrics) resourceUsage {
	return resourceUsage{
		CPUTimeMs:       uint64(agents) * 10,
		MemoryMB:        uint64(agents) * 50,
		NetworkRequests: uint64(m.CompletedTasks),
	}
}
