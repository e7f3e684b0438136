package orchestrator

import (
	"sync"
	"time"
)

// HealthStatus 节点健康等级
type HealthStatus string

const (
	HealthHealthy  HealthStatus = "healthy"
	HealthWarning  HealthStatus = "warning"
	HealthCritical HealthStatus = "critical"
	HealthUnknown  HealthStatus = "unknown"
)

// Health is a point-in-time health report.
type Health struct {
	Status        HealthStatus `json:"status"`
	ErrorCount    int          `json:"error_count"`
	LastExecution time.Time    `json:"last_execution,omitempty"`
	SuccessRate   float64      `json:"success_rate"`
}

// HealthTracker escalates Healthy→Warning (1–2 errors)→Critical (≥3) over
// a sliding window. Errors older than the window stop counting, so a node
// that has recovered drops back to Healthy instead of staying Critical
// forever.
type HealthTracker struct {
	mu        sync.Mutex
	window    time.Duration
	errors    []time.Time
	successes int
	total     int
	lastExec  time.Time
}

// NewHealthTracker creates a tracker; window <= 0 means a 10 minute window.
func NewHealthTracker(window time.Duration) *HealthTracker {
	if window <= 0 {
		window = 10 * time.Minute
	}
	return &HealthTracker{window: window}
}

// Record folds one execution outcome into the tracker.
func (h *HealthTracker) Record(success bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	now := time.Now()
	h.lastExec = now
	h.total++
	if success {
		h.successes++
	} else {
		h.errors = append(h.errors, now)
	}
	h.prune(now)
}

// Snapshot evaluates the current health.
func (h *HealthTracker) Snapshot() Health {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.prune(time.Now())

	status := HealthUnknown
	count := len(h.errors)
	switch {
	case h.total == 0:
		status = HealthUnknown
	case count == 0:
		status = HealthHealthy
	case count < 3:
		status = HealthWarning
	default:
		status = HealthCritical
	}

	rate := 0.0
	if h.total > 0 {
		rate = float64(h.successes) / float64(h.total)
	}
	return Health{
		Status:        status,
		ErrorCount:    count,
		LastExecution: h.lastExec,
		SuccessRate:   rate,
	}
}

// prune drops errors that fell out of the window. Caller holds the lock.
func (h *HealthTracker) prune(now time.Time) {
	cutoff := now.Add(-h.window)
	kept := h.errors[:0]
	for _, ts := range h.errors {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	h.errors = kept
}
