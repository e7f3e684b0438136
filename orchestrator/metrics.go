package orchestrator

import (
	"sync"
	"time"
)

// Metrics are the pool's aggregate coordination counters.
//
// AverageTaskDurationMs is a two-point running average, (old+new)/2: recent
// tasks weigh far more than a true mean would allow. It is an approximation
// kept for cheapness, not an EMA.
type Metrics struct {
	TotalAgents           int     `json:"total_agents"`
	ActiveAgents          int     `json:"active_agents"`
	CompletedTasks        int     `json:"completed_tasks"`
	FailedTasks           int     `json:"failed_tasks"`
	AverageTaskDurationMs float64 `json:"average_task_duration_ms"`
	ThroughputPerMinute   float64 `json:"throughput_tasks_per_minute"`
}

// metricsTracker maintains Metrics under its own lock so the pool's agent
// map lock is never required to read counters.
type metricsTracker struct {
	mu        sync.Mutex
	m         Metrics
	startedAt time.Time
}

func newMetricsTracker() *metricsTracker {
	return &metricsTracker{startedAt: time.Now()}
}

func (t *metricsTracker) agentSpawned() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.m.TotalAgents++
	t.m.ActiveAgents++
}

func (t *metricsTracker) agentKilled() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.m.ActiveAgents > 0 {
		t.m.ActiveAgents--
	}
}

// taskFinished folds one coordinated task into the counters. A task counts
// as failed when any participating agent reported an error.
func (t *metricsTracker) taskFinished(duration time.Duration, failed bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if failed {
		t.m.FailedTasks++
	} else {
		t.m.CompletedTasks++
	}
	elapsed := duration.Seconds() * 1000
	if t.m.AverageTaskDurationMs == 0 {
		t.m.AverageTaskDurationMs = elapsed
	} else {
		t.m.AverageTaskDurationMs = (t.m.AverageTaskDurationMs + elapsed) / 2
	}

	total := t.m.CompletedTasks + t.m.FailedTasks
	if minutes := time.Since(t.startedAt).Minutes(); minutes > 0 {
		t.m.ThroughputPerMinute = float64(total) / minutes
	}
}

func (t *metricsTracker) snapshot() Metrics {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.m
}
