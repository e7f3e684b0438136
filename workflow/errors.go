package workflow

import (
	"errors"
	"fmt"
)

var (
	// ErrWorkflowNotFound 工作流不存在
	ErrWorkflowNotFound = errors.New("workflow not found")

	// ErrWorkflowNotActive 工作流未激活
	ErrWorkflowNotActive = errors.New("workflow is not active")

	// ErrWorkflowExists 工作流已存在
	ErrWorkflowExists = errors.New("workflow already exists")

	// ErrCyclicWorkflow 工作流连接存在环
	ErrCyclicWorkflow = errors.New("circular dependency detected in workflow")

	// ErrNodeTypeUnknown 节点类型未注册
	ErrNodeTypeUnknown = errors.New("unknown node type")

	// ErrNodeTimeout 节点执行超时
	ErrNodeTimeout = errors.New("node execution timed out")

	// ErrOutputExists 节点输出键已存在（输出表只增不改）
	ErrOutputExists = errors.New("node output already recorded")

	// ErrQueueClosed 执行队列已关闭
	ErrQueueClosed = errors.New("execution queue closed")

	// ErrQueueFull 执行队列已满
	ErrQueueFull = errors.New("execution queue full")
)

// ConfigError reports invalid node parameters or workflow structure. It is
// raised during Configure or pre-flight validation, before any node runs.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return "invalid configuration: " + e.Reason
	}
	return fmt.Sprintf("invalid configuration for %q: %s", e.Field, e.Reason)
}

// NodeError wraps a node's own failure with its identity so the engine can
// report which node broke the run.
type NodeError struct {
	NodeID   string
	NodeType string
	Err      error
}

func (e *NodeError) Error() string {
	return fmt.Sprintf("node %s (%s) failed: %v", e.NodeID, e.NodeType, e.Err)
}

func (e *NodeError) Unwrap() error { return e.Err }
