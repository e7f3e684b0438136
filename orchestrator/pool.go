package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BaSui01/flowmesh/internal/metrics"
)

var (
	// ErrNoSuitableAgents 没有空闲且能力匹配的 Agent
	ErrNoSuitableAgents = errors.New("no suitable agents available for task")

	// ErrAgentNotFound Agent 不存在
	ErrAgentNotFound = errors.New("agent not found")

	// ErrPoolFull Agent 数量已达上限
	ErrPoolFull = errors.New("agent pool is full")
)

// TaskExecutor performs one agent's share of a task. The default executor
// simulates work; production deployments inject an executor that talks to
// the real agent runtime.
type TaskExecutor func(ctx context.Context, agent AgentSnapshot, task TaskDefinition, input json.RawMessage) (json.RawMessage, error)

// PoolConfig configures an agent pool.
type PoolConfig struct {
	// MaxAgents bounds the pool size. Zero means 10.
	MaxAgents int `json:"max_agents" yaml:"max_agents"`
	// TaskTimeout bounds each agent's share of a task. Zero disables it.
	TaskTimeout time.Duration `json:"task_timeout" yaml:"task_timeout"`
	// Strategy selects how tasks fan out across eligible agents.
	Strategy CoordinationStrategy `json:"strategy" yaml:"strategy"`
	// HealthWindow is the sliding window for error-rate health escalation.
	HealthWindow time.Duration `json:"health_window" yaml:"health_window"`
	// InboxSize is the buffer of each agent's message channel.
	InboxSize int `json:"inbox_size" yaml:"inbox_size"`
	// EventBuffer is the internal event bus buffer.
	EventBuffer int `json:"event_buffer" yaml:"event_buffer"`
}

// DefaultPoolConfig returns sensible defaults.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxAgents:    10,
		TaskTimeout:  5 * time.Minute,
		Strategy:     StrategyAdaptive,
		HealthWindow: 10 * time.Minute,
		InboxSize:    64,
		EventBuffer:  64,
	}
}

// Pool 多 Agent 协调池
// 管理受管 Agent 的生命周期并按协调策略分发任务。
// 池锁只保护 Agent 映射表；任务执行期间持有的是单个 Agent 自己的锁，
// 因此同池 Agent 可以真正并行工作。
type Pool struct {
	config PoolConfig

	mu     sync.RWMutex
	agents map[string]*ManagedAgent

	tracker  *metricsTracker
	events   *EventBus
	health   *HealthTracker
	executor TaskExecutor

	collector *metrics.Collector
	logger    *zap.Logger
}

// PoolOption customizes pool construction.
type PoolOption func(*Pool)

// WithExecutor injects a task executor.
func WithExecutor(exec TaskExecutor) PoolOption {
	return func(p *Pool) { p.executor = exec }
}

// WithCollector wires prometheus metrics.
func WithCollector(c *metrics.Collector) PoolOption {
	return func(p *Pool) { p.collector = c }
}

// NewPool creates an agent pool.
func NewPool(config PoolConfig, logger *zap.Logger, opts ...PoolOption) *Pool {
	if logger == nil {
		logger = zap.NewNop()
	}
	def := DefaultPoolConfig()
	if config.MaxAgents <= 0 {
		config.MaxAgents = def.MaxAgents
	}
	if config.Strategy == "" {
		config.Strategy = def.Strategy
	}
	if config.InboxSize <= 0 {
		config.InboxSize = def.InboxSize
	}
	logger = logger.With(zap.String("component", "agent_pool"))

	p := &Pool{
		config:   config,
		agents:   make(map[string]*ManagedAgent),
		tracker:  newMetricsTracker(),
		events:   NewEventBus(config.EventBuffer, logger),
		health:   NewHealthTracker(config.HealthWindow),
		executor: simulatedExecutor,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Events exposes the pool's event bus for a single subscriber.
func (p *Pool) Events() <-chan Event { return p.events.Events() }

// Health reports pool-level health, fed by task outcomes.
func (p *Pool) Health() Health { return p.health.Snapshot() }

// SpawnAgents creates one agent per config. A malformed config fails
// individually and is collected into errs without aborting the batch.
func (p *Pool) SpawnAgents(configs []AgentConfig) (spawned []AgentSnapshot, errs []string) {
	for _, cfg := range configs {
		snap, err := p.spawnOne(cfg)
		if err != nil {
			errs = append(errs, err.Error())
			continue
		}
		spawned = append(spawned, snap)
	}
	if p.collector != nil {
		p.collector.SetActiveAgents(p.Size())
	}
	return spawned, errs
}

func (p *Pool) spawnOne(cfg AgentConfig) (AgentSnapshot, error) {
	if err := cfg.Validate(); err != nil {
		return AgentSnapshot{}, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.agents) >= p.config.MaxAgents {
		return AgentSnapshot{}, fmt.Errorf("%w: limit %d", ErrPoolFull, p.config.MaxAgents)
	}

	now := time.Now()
	agent := &ManagedAgent{
		ID:        uuid.New().String(),
		Type:      cfg.Type,
		status:    StatusIdle,
		createdAt: now,
		updatedAt: now,
		inbox:     make(chan AgentMessage, p.config.InboxSize),
	}
	p.agents[agent.ID] = agent
	p.tracker.agentSpawned()
	p.events.Publish(Event{Type: EventAgentSpawned, AgentID: agent.ID})

	p.logger.Info("spawned agent",
		zap.String("agent_id", agent.ID),
		zap.String("agent_type", string(cfg.Type)),
	)
	return agent.Snapshot(), nil
}

// KillAgent removes an agent and closes its message channel.
func (p *Pool) KillAgent(id string) error {
	p.mu.Lock()
	agent, ok := p.agents[id]
	if ok {
		delete(p.agents, id)
	}
	p.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrAgentNotFound, id)
	}
	agent.kill()
	p.tracker.agentKilled()
	p.events.Publish(Event{Type: EventAgentKilled, AgentID: id})
	if p.collector != nil {
		p.collector.SetActiveAgents(p.Size())
	}
	p.logger.Info("killed agent", zap.String("agent_id", id))
	return nil
}

// Mailbox returns the agent's dedicated message channel.
func (p *Pool) Mailbox(id string) (<-chan AgentMessage, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	agent, ok := p.agents[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAgentNotFound, id)
	}
	return agent.inbox, nil
}

// Size returns the number of managed agents.
func (p *Pool) Size() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.agents)
}

// Snapshot copies the state of all agents, ordered by id, plus the
// coordination metrics.
func (p *Pool) Snapshot() ([]AgentSnapshot, Metrics) {
	p.mu.RLock()
	agents := make([]*ManagedAgent, 0, len(p.agents))
	for _, a := range p.agents {
		agents = append(agents, a)
	}
	p.mu.RUnlock()

	snaps := make([]AgentSnapshot, 0, len(agents))
	for _, a := range agents {
		snaps = append(snaps, a.Snapshot())
	}
	sort.Slice(snaps, func(i, j int) bool { return snaps[i].AgentID < snaps[j].AgentID })
	return snaps, p.tracker.snapshot()
}

// Metrics returns the coordination counters alone.
func (p *Pool) Metrics() Metrics { return p.tracker.snapshot() }

// ExecuteTask fans the task out across eligible agents according to the
// pool's coordination strategy (or the per-task override). Results and
// errors are collected per agent: a failing agent never aborts its
// siblings. When no eligible agent exists the task fails with
// ErrNoSuitableAgents and the metrics stay untouched.
func (p *Pool) ExecuteTask(ctx context.Context, task TaskDefinition, override CoordinationStrategy) (map[string]json.RawMessage, []string, error) {
	eligible := p.eligibleAgents(task.Type)
	if len(eligible) == 0 {
		return nil, nil, fmt.Errorf("%w: task %s (%s)", ErrNoSuitableAgents, task.TaskID, task.Type)
	}

	strategy := p.config.Strategy
	if override != "" {
		strategy = override
	}

	start := time.Now()
	results, errs := p.dispatch(ctx, strategy, eligible, task)
	duration := time.Since(start)

	failed := len(errs) > 0
	p.tracker.taskFinished(duration, failed)
	p.health.Record(!failed)
	if failed {
		p.events.Publish(Event{Type: EventTaskFailed, TaskID: task.TaskID})
	} else {
		p.events.Publish(Event{Type: EventTaskCompleted, TaskID: task.TaskID})
	}

	p.logger.Info("task dispatched",
		zap.String("task_id", task.TaskID),
		zap.String("strategy", string(strategy)),
		zap.Int("agents", len(eligible)),
		zap.Int("errors", len(errs)),
		zap.Duration("duration", duration),
	)
	return results, errs, nil
}

// eligibleAgents collects assignable agents compatible with the task type,
// copied out under the read lock and sorted by id for determinism.
func (p *Pool) eligibleAgents(taskType TaskType) []*ManagedAgent {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var eligible []*ManagedAgent
	for _, a := range p.agents {
		if assignable(a.Status()) && Compatible(taskType, a.Type) {
			eligible = append(eligible, a)
		}
	}
	sort.Slice(eligible, func(i, j int) bool { return eligible[i].ID < eligible[j].ID })
	return eligible
}

// runAgentTask walks one agent through a full task cycle. The agent's
// message channel receives the assignment; the executor does the work.
func (p *Pool) runAgentTask(ctx context.Context, agent *ManagedAgent, task TaskDefinition, input json.RawMessage) (json.RawMessage, error) {
	if err := agent.begin(task.TaskID); err != nil {
		return nil, err
	}
	p.events.Publish(Event{Type: EventAgentStarted, AgentID: agent.ID, TaskID: task.TaskID})

	// Record the assignment in the agent's mailbox; external observers may
	// consume it, nobody is required to.
	agent.post(AgentMessage{TaskID: task.TaskID, Payload: input, SentAt: time.Now()})

	if p.config.TaskTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.config.TaskTimeout)
		defer cancel()
	}

	result, err := p.executor(ctx, agent.Snapshot(), task, input)
	if err != nil {
		agent.fail(err.Error())
		p.events.Publish(Event{Type: EventAgentFailed, AgentID: agent.ID, TaskID: task.TaskID, Error: err.Error()})
		if p.collector != nil {
			p.collector.RecordAgentTask(string(agent.Type), "error")
		}
		return nil, fmt.Errorf("agent %s failed: %w", agent.ID, err)
	}

	agent.complete()
	p.events.Publish(Event{Type: EventAgentCompleted, AgentID: agent.ID, TaskID: task.TaskID, Payload: result})
	if p.collector != nil {
		p.collector.RecordAgentTask(string(agent.Type), "success")
	}
	return result, nil
}

// simulatedExecutor stands in for the real agent runtime: it idles briefly
// and reports success, honoring cancellation.
func simulatedExecutor(ctx context.Context, agent AgentSnapshot, task TaskDefinition, input json.RawMessage) (json.RawMessage, error) {
	select {
	case <-time.After(10 * time.Millisecond):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	out := map[string]any{
		"task_id":  task.TaskID,
		"agent_id": agent.AgentID,
		"result":   "task completed",
	}
	return json.Marshal(out)
}
