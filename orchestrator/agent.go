package orchestrator

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// AgentType identifies the capability class of a managed agent.
type AgentType string

const (
	AgentLLMRouter         AgentType = "llm_router"
	AgentMemoryManager     AgentType = "memory_manager"
	AgentBlockchainMonitor AgentType = "blockchain_monitor"
	AgentNetworkOptimizer  AgentType = "network_optimizer"
	AgentTaskOrchestrator  AgentType = "task_orchestrator"
)

// AgentStatus 受管 Agent 的运行状态
// 单个任务内的状态迁移是单调的：Idle→Running→{Completed|Failed}，
// 不会跳过 Running。
type AgentStatus string

const (
	StatusIdle      AgentStatus = "idle"
	StatusRunning   AgentStatus = "running"
	StatusCompleted AgentStatus = "completed"
	StatusFailed    AgentStatus = "failed"
)

// TaskType declares the capability a task requires.
type TaskType string

const (
	TaskLLMGeneration       TaskType = "llm_generation"
	TaskBlockchainAnalysis  TaskType = "blockchain_analysis"
	TaskMemoryManagement    TaskType = "memory_management"
	TaskNetworkOptimization TaskType = "network_optimization"
	TaskDataProcessing      TaskType = "data_processing"
	TaskCustom              TaskType = "custom"
)

// capabilityTable maps task types to the agent type allowed to serve them.
// Custom tasks match any agent and data_processing maps to the generic
// task orchestrator.
var capabilityTable = map[TaskType]AgentType{
	TaskLLMGeneration:       AgentLLMRouter,
	TaskBlockchainAnalysis:  AgentBlockchainMonitor,
	TaskMemoryManagement:    AgentMemoryManager,
	TaskNetworkOptimization: AgentNetworkOptimizer,
	TaskDataProcessing:      AgentTaskOrchestrator,
}

// Compatible reports whether an agent of the given type may serve the task.
func Compatible(task TaskType, agent AgentType) bool {
	if task == TaskCustom {
		return true
	}
	want, ok := capabilityTable[task]
	return ok && want == agent
}

var validAgentTypes = map[AgentType]struct{}{
	AgentLLMRouter:         {},
	AgentMemoryManager:     {},
	AgentBlockchainMonitor: {},
	AgentNetworkOptimizer:  {},
	AgentTaskOrchestrator:  {},
}

// AgentConfig describes one agent to spawn.
type AgentConfig struct {
	Type     AgentType       `json:"agent_type"`
	Priority int             `json:"priority,omitempty"`
	Config   json.RawMessage `json:"config,omitempty"`
}

// Validate rejects malformed configs. A failing config is collected into
// the spawn batch's errors list without aborting its siblings.
func (c AgentConfig) Validate() error {
	if c.Type == "" {
		return fmt.Errorf("agent config missing agent_type")
	}
	if _, ok := validAgentTypes[c.Type]; !ok {
		return fmt.Errorf("unknown agent type: %s", c.Type)
	}
	if c.Priority < 0 || c.Priority > 10 {
		return fmt.Errorf("agent priority out of range [0,10]: %d", c.Priority)
	}
	return nil
}

// TaskDefinition is one unit of work dispatched across the pool.
type TaskDefinition struct {
	TaskID       string          `json:"task_id"`
	Type         TaskType        `json:"task_type"`
	Input        json.RawMessage `json:"input_data,omitempty"`
	Dependencies []string        `json:"dependencies,omitempty"`
	Parallel     bool            `json:"parallel,omitempty"`
}

// AgentMessage is delivered on an agent's dedicated channel.
type AgentMessage struct {
	TaskID  string          `json:"task_id"`
	Payload json.RawMessage `json:"payload,omitempty"`
	SentAt  time.Time       `json:"sent_at"`
}

// ManagedAgent is one autonomous worker owned by a Pool. All mutable state
// is guarded by its own lock so the pool never holds its map lock across a
// task execution.
type ManagedAgent struct {
	ID   string
	Type AgentType

	mu          sync.Mutex
	status      AgentStatus
	currentTask string
	progress    float64
	lastError   string
	executions  uint64
	createdAt   time.Time
	updatedAt   time.Time

	// inbox is the agent's dedicated message channel, closed on kill.
	// killed guards both the close and every send: a dispatch racing a
	// kill must never send on the closed channel.
	inbox  chan AgentMessage
	killed bool
}

// AgentSnapshot is a point-in-time copy of an agent's state.
type AgentSnapshot struct {
	AgentID     string      `json:"agent_id"`
	Type        AgentType   `json:"agent_type"`
	Status      AgentStatus `json:"status"`
	CurrentTask string      `json:"current_task,omitempty"`
	Progress    float64     `json:"progress"`
	Error       string      `json:"error_message,omitempty"`
	Executions  uint64      `json:"execution_count"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// Snapshot copies the agent's current state.
func (a *ManagedAgent) Snapshot() AgentSnapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return AgentSnapshot{
		AgentID:     a.ID,
		Type:        a.Type,
		Status:      a.status,
		CurrentTask: a.currentTask,
		Progress:    a.progress,
		Error:       a.lastError,
		Executions:  a.executions,
		CreatedAt:   a.createdAt,
		UpdatedAt:   a.updatedAt,
	}
}

// Status returns the agent's current status.
func (a *ManagedAgent) Status() AgentStatus {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.status
}

// kill closes the inbox exactly once. Holding the agent lock keeps the
// close ordered against any in-flight post.
func (a *ManagedAgent) kill() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.killed {
		return
	}
	a.killed = true
	close(a.inbox)
}

// post records a message in the inbox without blocking. Messages to a
// killed agent are dropped.
func (a *ManagedAgent) post(msg AgentMessage) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.killed {
		return
	}
	select {
	case a.inbox <- msg:
	default:
	}
}

// begin moves the agent into Running. Only idle agents accept work;
// an agent whose previous task completed counts as idle again, while a
// running or failed agent does not.
func (a *ManagedAgent) begin(taskID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.killed {
		return fmt.Errorf("agent %s has been killed", a.ID)
	}
	if !assignable(a.status) {
		return fmt.Errorf("agent %s is %s, not assignable", a.ID, a.status)
	}
	a.status = StatusRunning
	a.currentTask = taskID
	a.progress = 0
	a.lastError = ""
	a.updatedAt = time.Now()
	return nil
}

// complete moves Running→Completed. Completed agents become assignable
// again on the next dispatch, so the pool is reusable across tasks.
func (a *ManagedAgent) complete() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.status = StatusCompleted
	a.progress = 100
	a.currentTask = ""
	a.executions++
	a.updatedAt = time.Now()
}

// assignable reports whether an agent in this status may accept a task.
func assignable(s AgentStatus) bool {
	return s == StatusIdle || s == StatusCompleted
}

// fail moves Running→Failed. A failed agent stays failed until killed.
func (a *ManagedAgent) fail(reason string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.status = StatusFailed
	a.currentTask = ""
	a.lastError = reason
	a.updatedAt = time.Now()
}
