package workflow

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
)

// Definition is the stateless factory side of the node plugin contract.
// A Definition is registered once per node type and may be asked for any
// number of instances concurrently.
type Definition interface {
	// Type returns the node-type identifier used in workflow definitions.
	Type() string
	// CreateInstance returns a fresh, unconfigured instance. Instances are
	// single-use: the engine creates one per node execution.
	CreateInstance() (Instance, error)
}

// Instance is one configured occurrence of a node inside a run.
// Configure is always called exactly once before Execute.
type Instance interface {
	// Configure applies the node's stored parameter blob. A *ConfigError
	// return aborts the run before Execute is invoked.
	Configure(params json.RawMessage) error
	// Execute performs the node's work against the shared run context.
	// Implementations must honor ctx cancellation on blocking I/O.
	Execute(ctx context.Context, ec *ExecutionContext) (*NodeOutput, error)
}

// Describer is optionally implemented by definitions that want to appear
// with human-readable metadata in node listings.
type Describer interface {
	DisplayName() string
	Description() string
}

// Info 节点类型的展示信息
type Info struct {
	Type        string `json:"type"`
	DisplayName string `json:"display_name,omitempty"`
	Description string `json:"description,omitempty"`
}

// NodeOutput is the value a node contributes to the run's output map.
type NodeOutput struct {
	Data json.RawMessage `json:"data"`
}

// ExecutionContext 单次运行的共享上下文
// 保存触发数据与已完成节点的输出；输出表只增不改
type ExecutionContext struct {
	WorkflowID  uuid.UUID
	ExecutionID uuid.UUID
	TriggerData json.RawMessage

	mu      sync.RWMutex
	outputs map[string]*NodeOutput
}

// NewExecutionContext creates the per-run context seeded with trigger data.
func NewExecutionContext(workflowID, executionID uuid.UUID, trigger json.RawMessage) *ExecutionContext {
	return &ExecutionContext{
		WorkflowID:  workflowID,
		ExecutionID: executionID,
		TriggerData: trigger,
		outputs:     make(map[string]*NodeOutput),
	}
}

// Output returns the recorded output of a finished node.
func (ec *ExecutionContext) Output(nodeID string) (*NodeOutput, bool) {
	ec.mu.RLock()
	defer ec.mu.RUnlock()
	out, ok := ec.outputs[nodeID]
	return out, ok
}

// Outputs returns a copy of the output map.
func (ec *ExecutionContext) Outputs() map[string]*NodeOutput {
	ec.mu.RLock()
	defer ec.mu.RUnlock()
	cp := make(map[string]*NodeOutput, len(ec.outputs))
	for id, out := range ec.outputs {
		cp[id] = out
	}
	return cp
}

// SetOutput records a node's output. The map is append-only: recording a
// second output for the same node id fails with ErrOutputExists.
func (ec *ExecutionContext) SetOutput(nodeID string, out *NodeOutput) error {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	if _, exists := ec.outputs[nodeID]; exists {
		return ErrOutputExists
	}
	ec.outputs[nodeID] = out
	return nil
}

// MarshalOutputs serializes the accumulated output map, keyed by node id.
func (ec *ExecutionContext) MarshalOutputs() (json.RawMessage, error) {
	ec.mu.RLock()
	defer ec.mu.RUnlock()
	return json.Marshal(ec.outputs)
}
