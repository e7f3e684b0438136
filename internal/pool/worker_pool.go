// Package pool provides a worker pool for controlled concurrency.
// This package is internal and should not be imported by external projects.
package pool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

var (
	ErrPoolClosed = errors.New("pool is closed")
	ErrPoolFull   = errors.New("pool is full")
)

// Task represents a unit of work.
type Task func(ctx context.Context)

// WorkerPool runs tasks on a fixed set of worker goroutines with a bounded
// submission queue. The engine uses it to fan the execution queue out
// across concurrent runs.
type WorkerPool struct {
	taskQueue chan taskWrapper
	closed    atomic.Bool
	wg        sync.WaitGroup

	// Metrics
	submitted atomic.Int64
	completed atomic.Int64
	rejected  atomic.Int64
	active    atomic.Int32
}

type taskWrapper struct {
	task Task
	ctx  context.Context
}

// Config configures the pool.
type Config struct {
	Workers   int `json:"workers"`
	QueueSize int `json:"queue_size"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{Workers: 4, QueueSize: 256}
}

// New creates a pool and starts its workers immediately.
func New(config Config) *WorkerPool {
	if config.Workers <= 0 {
		config.Workers = DefaultConfig().Workers
	}
	if config.QueueSize <= 0 {
		config.QueueSize = DefaultConfig().QueueSize
	}
	p := &WorkerPool{taskQueue: make(chan taskWrapper, config.QueueSize)}
	for i := 0; i < config.Workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

// Submit queues a task for execution. It blocks while the queue is full
// unless ctx is canceled first. An accepted task always runs, even if ctx
// is canceled before a worker picks it up; cancellation handling belongs
// to the task itself.
func (p *WorkerPool) Submit(ctx context.Context, task Task) error {
	if p.closed.Load() {
		return ErrPoolClosed
	}
	p.submitted.Add(1)
	select {
	case p.taskQueue <- taskWrapper{task: task, ctx: ctx}:
		return nil
	case <-ctx.Done():
		p.rejected.Add(1)
		return ctx.Err()
	}
}

// TrySubmit queues a task without blocking.
func (p *WorkerPool) TrySubmit(ctx context.Context, task Task) error {
	if p.closed.Load() {
		return ErrPoolClosed
	}
	select {
	case p.taskQueue <- taskWrapper{task: task, ctx: ctx}:
		p.submitted.Add(1)
		return nil
	default:
		p.rejected.Add(1)
		return ErrPoolFull
	}
}

// Close stops accepting tasks and waits for in-flight tasks to finish.
func (p *WorkerPool) Close() {
	if !p.closed.CompareAndSwap(false, true) {
		return
	}
	close(p.taskQueue)
	p.wg.Wait()
}

// Active returns the number of tasks currently running.
func (p *WorkerPool) Active() int { return int(p.active.Load()) }

// Pending returns the number of queued tasks not yet started.
func (p *WorkerPool) Pending() int { return len(p.taskQueue) }

// Stats returns cumulative submission counters.
func (p *WorkerPool) Stats() (submitted, completed, rejected int64) {
	return p.submitted.Load(), p.completed.Load(), p.rejected.Load()
}

func (p *WorkerPool) worker() {
	defer p.wg.Done()
	// Every accepted task runs, even when its context was canceled while
	// queued: the task observes ctx.Err() and reports its own terminal
	// outcome. Skipping here would leave submitters waiting forever.
	for wrapper := range p.taskQueue {
		p.active.Add(1)
		p.runTask(wrapper)
		p.active.Add(-1)
		p.completed.Add(1)
	}
}

func (p *WorkerPool) runTask(wrapper taskWrapper) {
	defer func() {
		// A panicking task must not take a worker down with it.
		_ = recover()
	}()
	wrapper.task(wrapper.ctx)
}
