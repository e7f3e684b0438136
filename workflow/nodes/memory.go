package nodes

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/BaSui01/flowmesh/workflow"
)

// MemoryDefinition 上下文记忆节点
// 对 ContextStore 执行 store / retrieve / search / clear 操作，
// 让工作流在多次运行之间共享上下文。
type MemoryDefinition struct {
	store  ContextStore
	logger *zap.Logger
}

// NewMemoryDefinition wires a context store into the memory node.
func NewMemoryDefinition(store ContextStore, logger *zap.Logger) MemoryDefinition {
	if store == nil {
		store = NewInMemoryContextStore()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return MemoryDefinition{
		store:  store,
		logger: logger.With(zap.String("component", "memory_node")),
	}
}

func (MemoryDefinition) Type() string        { return "memory" }
func (MemoryDefinition) DisplayName() string { return "Context Memory" }
func (MemoryDefinition) Description() string {
	return "Stores and retrieves context entries across workflow runs"
}

func (d MemoryDefinition) CreateInstance() (workflow.Instance, error) {
	return &memoryInstance{store: d.store}, nil
}

type memoryParams struct {
	Action    string   `json:"action"`
	SessionID string   `json:"session_id,omitempty"`
	Content   string   `json:"content,omitempty"`
	Tags      []string `json:"tags,omitempty"`
	Query     string   `json:"query,omitempty"`
	Limit     int      `json:"limit,omitempty"`
}

type memoryInstance struct {
	store  ContextStore
	params memoryParams
}

func (m *memoryInstance) Configure(params json.RawMessage) error {
	if len(params) == 0 {
		return &workflow.ConfigError{Field: "memory", Reason: "parameters required"}
	}
	if err := json.Unmarshal(params, &m.params); err != nil {
		return &workflow.ConfigError{Field: "memory", Reason: err.Error()}
	}
	switch m.params.Action {
	case "store":
		if m.params.Content == "" {
			return &workflow.ConfigError{Field: "memory.content", Reason: "content required for store action"}
		}
	case "retrieve", "clear":
	case "search":
		if m.params.Query == "" {
			return &workflow.ConfigError{Field: "memory.query", Reason: "query required for search action"}
		}
	default:
		return &workflow.ConfigError{Field: "memory.action", Reason: "unknown action: " + m.params.Action}
	}
	if m.params.Limit < 0 {
		return &workflow.ConfigError{Field: "memory.limit", Reason: "limit must not be negative"}
	}
	return nil
}

func (m *memoryInstance) Execute(ctx context.Context, ec *workflow.ExecutionContext) (*workflow.NodeOutput, error) {
	sessionID := m.params.SessionID
	if sessionID == "" {
		// Scope memory to the workflow unless the caller names a session.
		sessionID = ec.WorkflowID.String()
	}

	result := map[string]any{
		"action_performed": m.params.Action,
		"session_id":       sessionID,
	}

	switch m.params.Action {
	case "store":
		entry := ContextEntry{Content: m.params.Content, Tags: m.params.Tags}
		if err := m.store.Store(ctx, sessionID, entry); err != nil {
			return nil, err
		}
		result["stored"] = true
	case "retrieve":
		entries, err := m.store.Retrieve(ctx, sessionID, m.params.Limit)
		if err != nil {
			return nil, err
		}
		result["entries"] = entries
		result["count"] = len(entries)
	case "search":
		entries, err := m.store.Search(ctx, sessionID, m.params.Query, m.params.Limit)
		if err != nil {
			return nil, err
		}
		result["entries"] = entries
		result["count"] = len(entries)
	case "clear":
		if err := m.store.Clear(ctx, sessionID); err != nil {
			return nil, err
		}
		result["cleared"] = true
	}

	out, err := json.Marshal(result)
	if err != nil {
		return nil, err
	}
	return &workflow.NodeOutput{Data: out}, nil
}
