package orchestrator

import (
	"encoding/json"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// EventType 协调事件类型
type EventType string

const (
	EventAgentSpawned   EventType = "agent_spawned"
	EventAgentKilled    EventType = "agent_killed"
	EventAgentStarted   EventType = "agent_started"
	EventAgentCompleted EventType = "agent_completed"
	EventAgentFailed    EventType = "agent_failed"
	EventTaskCompleted  EventType = "task_completed"
	EventTaskFailed     EventType = "task_failed"
)

// Event is one occurrence on the pool's internal bus.
type Event struct {
	Type      EventType       `json:"type"`
	AgentID   string          `json:"agent_id,omitempty"`
	TaskID    string          `json:"task_id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Error     string          `json:"error,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// EventBus 池内事件总线
// 单消费者语义：Events() 返回的通道由一个订阅方消费。
// 无人消费或缓冲已满时事件被丢弃，发布方永不阻塞。
type EventBus struct {
	ch      chan Event
	dropped atomic.Uint64
	logger  *zap.Logger
}

// NewEventBus creates a bus with the given buffer size.
func NewEventBus(buffer int, logger *zap.Logger) *EventBus {
	if buffer <= 0 {
		buffer = 64
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventBus{
		ch:     make(chan Event, buffer),
		logger: logger.With(zap.String("component", "orchestrator_events")),
	}
}

// Publish emits an event without blocking.
func (b *EventBus) Publish(evt Event) {
	evt.Timestamp = time.Now()
	select {
	case b.ch <- evt:
	default:
		b.dropped.Add(1)
		b.logger.Debug("event dropped, bus full",
			zap.String("type", string(evt.Type)),
			zap.String("agent_id", evt.AgentID),
		)
	}
}

// Events exposes the consumption side of the bus.
func (b *EventBus) Events() <-chan Event {
	return b.ch
}

// Dropped returns the number of events discarded because nobody consumed
// the bus fast enough.
func (b *EventBus) Dropped() uint64 {
	return b.dropped.Load()
}
