package nodes

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/flowmesh/orchestrator"
	"github.com/BaSui01/flowmesh/workflow"
)

// BuiltinDeps carries externally configured collaborators for the built-in
// nodes. The zero value wires the in-memory context store, the simulated
// chain reader and default pool settings.
type BuiltinDeps struct {
	// MemoryStore backs the memory node. Nil selects the in-memory store.
	MemoryStore ContextStore
	// ChainReader backs the blockchain_monitor node. Nil selects the
	// simulated chain.
	ChainReader ChainReader
	// Providers are the LLM adapters available to the llm_router node.
	Providers map[string]LLMProvider
	// LLMDefaults seed the router's definition-level fallbacks.
	LLMDefaults LLMDefaults
	// PoolConfig configures the orchestrator node's agent pool. The zero
	// value selects the pool defaults.
	PoolConfig orchestrator.PoolConfig
	// PoolOptions customize the pool beyond its config.
	PoolOptions []orchestrator.PoolOption
}

// RegisterBuiltins installs every built-in node type into the registry
// with default collaborators.
func RegisterBuiltins(reg *workflow.Registry, logger *zap.Logger) {
	RegisterBuiltinsWith(reg, BuiltinDeps{}, logger)
}

// RegisterBuiltinsWith installs every built-in node type, wiring the given
// collaborators into the nodes that take them.
func RegisterBuiltinsWith(reg *workflow.Registry, deps BuiltinDeps, logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.MemoryStore == nil {
		deps.MemoryStore = NewInMemoryContextStore()
	}
	if deps.PoolConfig == (orchestrator.PoolConfig{}) {
		deps.PoolConfig = orchestrator.DefaultPoolConfig()
	}
	reg.Register(StartDefinition{})
	reg.Register(MergeDefinition{})
	reg.Register(SplitDefinition{})
	reg.Register(WebhookDefinition{})
	reg.Register(ScheduleTriggerDefinition{})
	reg.Register(FunctionDefinition{})
	reg.Register(NewHTTPRequestDefinition(nil))
	reg.Register(NewLLMRouterDefinitionWithDefaults(deps.Providers, deps.LLMDefaults, logger))
	reg.Register(NewMemoryDefinition(deps.MemoryStore, logger))
	reg.Register(NewBlockchainMonitorDefinition(deps.ChainReader, logger))
	reg.Register(NewOrchestratorDefinitionWithConfig(deps.PoolConfig, logger, deps.PoolOptions...))
}

// ---------------------------------------------------------------------------
// start — entry point, emits the trigger payload
// ---------------------------------------------------------------------------

type StartDefinition struct{}

func (StartDefinition) Type() string        { return "start" }
func (StartDefinition) DisplayName() string { return "Start" }
func (StartDefinition) Description() string {
	return "Workflow entry point, passes trigger data through"
}

func (StartDefinition) CreateInstance() (workflow.Instance, error) {
	return &startInstance{}, nil
}

type startInstance struct{}

func (*startInstance) Configure(json.RawMessage) error { return nil }

func (*startInstance) Execute(_ context.Context, ec *workflow.ExecutionContext) (*workflow.NodeOutput, error) {
	return &workflow.NodeOutput{Data: triggerOrEmpty(ec)}, nil
}

// ---------------------------------------------------------------------------
// merge — combines all outputs produced so far
// ---------------------------------------------------------------------------

type MergeDefinition struct{}

func (MergeDefinition) Type() string        { return "merge" }
func (MergeDefinition) DisplayName() string { return "Merge" }
func (MergeDefinition) Description() string { return "Combines the outputs of all upstream nodes" }

func (MergeDefinition) CreateInstance() (workflow.Instance, error) {
	return &mergeInstance{}, nil
}

type mergeInstance struct{}

func (*mergeInstance) Configure(json.RawMessage) error { return nil }

func (*mergeInstance) Execute(_ context.Context, ec *workflow.ExecutionContext) (*workflow.NodeOutput, error) {
	merged, err := ec.MarshalOutputs()
	if err != nil {
		return nil, err
	}
	return &workflow.NodeOutput{Data: merged}, nil
}

// ---------------------------------------------------------------------------
// split — fans the trigger payload out to multiple downstream branches
// ---------------------------------------------------------------------------

type SplitDefinition struct{}

func (SplitDefinition) Type() string        { return "split" }
func (SplitDefinition) DisplayName() string { return "Split" }
func (SplitDefinition) Description() string { return "Passes input through to multiple outputs" }

func (SplitDefinition) CreateInstance() (workflow.Instance, error) {
	return &splitInstance{}, nil
}

type splitInstance struct{}

func (*splitInstance) Configure(json.RawMessage) error { return nil }

func (*splitInstance) Execute(_ context.Context, ec *workflow.ExecutionContext) (*workflow.NodeOutput, error) {
	return &workflow.NodeOutput{Data: triggerOrEmpty(ec)}, nil
}

// ---------------------------------------------------------------------------
// webhook — trigger node, passthrough
// ---------------------------------------------------------------------------

type WebhookDefinition struct{}

func (WebhookDefinition) Type() string        { return "webhook" }
func (WebhookDefinition) DisplayName() string { return "Webhook" }
func (WebhookDefinition) Description() string {
	return "Webhook trigger, passes the received payload through"
}

func (WebhookDefinition) CreateInstance() (workflow.Instance, error) {
	return &webhookInstance{}, nil
}

type webhookInstance struct{}

func (*webhookInstance) Configure(json.RawMessage) error { return nil }

func (*webhookInstance) Execute(_ context.Context, ec *workflow.ExecutionContext) (*workflow.NodeOutput, error) {
	return &workflow.NodeOutput{Data: triggerOrEmpty(ec)}, nil
}

// ---------------------------------------------------------------------------
// schedule_trigger — emits trigger timing alongside the payload
// ---------------------------------------------------------------------------

type ScheduleTriggerDefinition struct{}

func (ScheduleTriggerDefinition) Type() string        { return "schedule_trigger" }
func (ScheduleTriggerDefinition) DisplayName() string { return "Schedule Trigger" }
func (ScheduleTriggerDefinition) Description() string {
	return "Scheduled trigger, emits trigger time with the payload"
}

func (ScheduleTriggerDefinition) CreateInstance() (workflow.Instance, error) {
	return &scheduleTriggerInstance{}, nil
}

type scheduleTriggerInstance struct{}

func (*scheduleTriggerInstance) Configure(json.RawMessage) error { return nil }

func (*scheduleTriggerInstance) Execute(_ context.Context, ec *workflow.ExecutionContext) (*workflow.NodeOutput, error) {
	out, err := json.Marshal(map[string]any{
		"trigger_time": time.Now().UTC().Format(time.RFC3339Nano),
		"data":         triggerOrEmpty(ec),
	})
	if err != nil {
		return nil, err
	}
	return &workflow.NodeOutput{Data: out}, nil
}

func triggerOrEmpty(ec *workflow.ExecutionContext) json.RawMessage {
	if len(ec.TriggerData) == 0 {
		return json.RawMessage(`{}`)
	}
	return ec.TriggerData
}
