package workflow

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// State describes whether a workflow may be executed.
type State string

const (
	// StateActive allows executions to be scheduled.
	StateActive State = "active"
	// StatePaused temporarily blocks executions.
	StatePaused State = "paused"
	// StateInactive blocks executions until reactivated.
	StateInactive State = "inactive"
	// StateError marks a workflow whose last run left it unusable.
	StateError State = "error"
)

// Mode records how an execution was triggered. It is metadata only and
// never changes scheduling behavior.
type Mode string

const (
	ModeManual      Mode = "manual"
	ModeTrigger     Mode = "trigger"
	ModeWebhook     Mode = "webhook"
	ModeScheduled   Mode = "scheduled"
	ModeIntegration Mode = "integration"
)

// ExecutionStatus is the lifecycle state of a run or of a single node.
type ExecutionStatus string

const (
	StatusRunning  ExecutionStatus = "running"
	StatusSuccess  ExecutionStatus = "success"
	StatusError    ExecutionStatus = "error"
	StatusCanceled ExecutionStatus = "canceled"
	StatusWaiting  ExecutionStatus = "waiting"
)

// Workflow 工作流定义
// nodes 以节点 ID 为键，插入顺序无关；connections 定义 DAG 边
type Workflow struct {
	ID          uuid.UUID                `json:"id"`
	Name        string                   `json:"name"`
	Description string                   `json:"description,omitempty"`
	Version     string                   `json:"version,omitempty"`
	Nodes       map[string]*WorkflowNode `json:"nodes"`
	Connections []Connection             `json:"connections"`
	Settings    Settings                 `json:"settings"`
	State       State                    `json:"state"`
	CreatedAt   time.Time                `json:"created_at"`
	UpdatedAt   time.Time                `json:"updated_at"`
}

// WorkflowNode 工作流中的单个节点
type WorkflowNode struct {
	ID             string          `json:"id"`
	NodeType       string          `json:"node_type"`
	Parameters     json.RawMessage `json:"parameters,omitempty"`
	Disabled       bool            `json:"disabled,omitempty"`
	RetryOnFail    bool            `json:"retry_on_fail,omitempty"`
	RetryCount     int             `json:"retry_count,omitempty"`
	TimeoutSeconds int             `json:"timeout_seconds,omitempty"`
}

// Connection is a directed edge from one node's output to another node's input.
type Connection struct {
	SourceNode   string `json:"source_node"`
	SourceOutput string `json:"source_output"`
	TargetNode   string `json:"target_node"`
	TargetInput  string `json:"target_input"`
}

// Settings 工作流级运行设置
type Settings struct {
	// TimeoutSeconds is the per-node timeout applied when a node does not
	// declare its own. Zero disables the engine timeout.
	TimeoutSeconds int `json:"timeout_seconds,omitempty"`
}

// ExecutionRequest is a queued request to run a workflow.
type ExecutionRequest struct {
	WorkflowID  uuid.UUID
	TriggerData json.RawMessage
	Mode        Mode
	// Response receives exactly one terminal ExecutionResult. May be nil
	// for fire-and-forget callers; an abandoned receiver is tolerated.
	Response chan *ExecutionResult
}

// ExecutionResult is the terminal outcome of one workflow run.
type ExecutionResult struct {
	ExecutionID    uuid.UUID       `json:"execution_id"`
	WorkflowID     uuid.UUID       `json:"workflow_id"`
	Status         ExecutionStatus `json:"status"`
	StartTime      time.Time       `json:"start_time"`
	EndTime        time.Time       `json:"end_time"`
	Duration       time.Duration   `json:"duration_ms"`
	Data           json.RawMessage `json:"data,omitempty"`
	Error          string          `json:"error,omitempty"`
	NodeExecutions []NodeExecution `json:"node_executions"`
}

// NodeExecution records one node's run inside an execution, success or not.
type NodeExecution struct {
	NodeID    string          `json:"node_id"`
	NodeType  string          `json:"node_type"`
	Status    ExecutionStatus `json:"status"`
	StartTime time.Time       `json:"start_time"`
	EndTime   time.Time       `json:"end_time"`
	Duration  time.Duration   `json:"duration_ms"`
	Input     json.RawMessage `json:"input,omitempty"`
	Output    json.RawMessage `json:"output,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// Clone returns a deep copy of the workflow. The engine snapshots the
// definition at dequeue time so a running execution never observes
// concurrent mutation through the store.
func (w *Workflow) Clone() *Workflow {
	if w == nil {
		return nil
	}
	cp := *w
	cp.Nodes = make(map[string]*WorkflowNode, len(w.Nodes))
	for id, n := range w.Nodes {
		nc := *n
		if n.Parameters != nil {
			nc.Parameters = append(json.RawMessage(nil), n.Parameters...)
		}
		cp.Nodes[id] = &nc
	}
	cp.Connections = append([]Connection(nil), w.Connections...)
	return &cp
}

// Validate checks structural invariants that do not require graph traversal:
// every connection endpoint must reference an existing node.
func (w *Workflow) Validate() error {
	for _, c := range w.Connections {
		if _, ok := w.Nodes[c.SourceNode]; !ok {
			return &ConfigError{Field: "connections", Reason: "unknown source node: " + c.SourceNode}
		}
		if _, ok := w.Nodes[c.TargetNode]; !ok {
			return &ConfigError{Field: "connections", Reason: "unknown target node: " + c.TargetNode}
		}
	}
	return nil
}
