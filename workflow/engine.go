package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BaSui01/flowmesh/internal/metrics"
	"github.com/BaSui01/flowmesh/internal/pool"
)

// EngineConfig configures the execution engine.
type EngineConfig struct {
	// QueueCapacity bounds the execution request queue.
	QueueCapacity int `json:"queue_capacity" yaml:"queue_capacity"`
	// Workers is the number of concurrent executions. Nodes within a single
	// execution still run strictly sequentially in topological order.
	Workers int `json:"workers" yaml:"workers"`
	// DefaultNodeTimeout applies to nodes that declare no timeout of their
	// own and whose workflow settings declare none either. Zero disables it.
	DefaultNodeTimeout time.Duration `json:"default_node_timeout" yaml:"default_node_timeout"`
}

// DefaultEngineConfig returns sensible defaults.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		QueueCapacity:      256,
		Workers:            4,
		DefaultNodeTimeout: 0,
	}
}

// Engine resolves execution order, dispatches nodes respecting dependencies
// and assembles terminal ExecutionResults. Requests are decoupled from the
// run loop by a queue consumed by a worker pool, so concurrency exists
// across executions, never within one.
type Engine struct {
	store    *Store
	registry *Registry
	config   EngineConfig

	queue   chan *ExecutionRequest
	workers *pool.WorkerPool

	collector *metrics.Collector
	logger    *zap.Logger

	mu        sync.RWMutex
	closed    bool
	baseCtx   context.Context
	cancelAll context.CancelFunc
	startOnce sync.Once
	wg        sync.WaitGroup
}

// NewEngine creates an engine. collector may be nil to disable metrics.
func NewEngine(store *Store, registry *Registry, config EngineConfig, collector *metrics.Collector, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	def := DefaultEngineConfig()
	if config.QueueCapacity <= 0 {
		config.QueueCapacity = def.QueueCapacity
	}
	if config.Workers <= 0 {
		config.Workers = def.Workers
	}
	baseCtx, cancel := context.WithCancel(context.Background())
	return &Engine{
		store:     store,
		registry:  registry,
		config:    config,
		queue:     make(chan *ExecutionRequest, config.QueueCapacity),
		collector: collector,
		logger:    logger.With(zap.String("component", "workflow_engine")),
		baseCtx:   baseCtx,
		cancelAll: cancel,
	}
}

// Start launches the queue consumer. Safe to call once; subsequent calls
// are no-ops.
func (e *Engine) Start() {
	e.startOnce.Do(func() {
		e.workers = pool.New(pool.Config{
			Workers:   e.config.Workers,
			QueueSize: e.config.QueueCapacity,
		})
		e.wg.Add(1)
		go e.consumeLoop()
		e.logger.Info("workflow engine started",
			zap.Int("workers", e.config.Workers),
			zap.Int("queue_capacity", e.config.QueueCapacity),
		)
	})
}

// Shutdown stops accepting requests, cancels in-flight executions and waits
// for the consumer to drain.
func (e *Engine) Shutdown() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	close(e.queue)
	e.mu.Unlock()

	e.cancelAll()
	e.wg.Wait()
	if e.workers != nil {
		e.workers.Close()
	}
	e.logger.Info("workflow engine stopped")
}

// Enqueue submits a request for asynchronous execution. The caller's
// Response channel, if any, receives exactly one terminal result.
func (e *Engine) Enqueue(req *ExecutionRequest) error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		if e.collector != nil {
			e.collector.RecordQueueRejection()
		}
		return ErrQueueClosed
	}
	select {
	case e.queue <- req:
		if e.collector != nil {
			e.collector.SetQueueDepth(len(e.queue))
		}
		return nil
	default:
		if e.collector != nil {
			e.collector.RecordQueueRejection()
		}
		return fmt.Errorf("%w: capacity %d", ErrQueueFull, cap(e.queue))
	}
}

// ExecuteWorkflow is the single synchronous entry point: it queues the
// request and waits for the terminal result. mode is metadata only.
// Lookup, validation and node failures are reported inside the returned
// ExecutionResult; the error covers queue and context failures only.
func (e *Engine) ExecuteWorkflow(ctx context.Context, workflowID uuid.UUID, trigger json.RawMessage, mode Mode) (*ExecutionResult, error) {
	resp := make(chan *ExecutionResult, 1)
	req := &ExecutionRequest{
		WorkflowID:  workflowID,
		TriggerData: trigger,
		Mode:        mode,
		Response:    resp,
	}
	if err := e.Enqueue(req); err != nil {
		return nil, err
	}
	select {
	case result := <-resp:
		return result, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (e *Engine) consumeLoop() {
	defer e.wg.Done()
	for req := range e.queue {
		if e.collector != nil {
			e.collector.SetQueueDepth(len(e.queue))
		}
		request := req
		// Shutdown cancels baseCtx before the drain finishes. Requests
		// still queued at that point are failed directly so every caller
		// receives a terminal result.
		if e.baseCtx.Err() != nil {
			e.deliver(request, e.failedResult(uuid.New(), request, time.Now(), context.Canceled))
			continue
		}
		if err := e.workers.Submit(e.baseCtx, func(ctx context.Context) {
			e.process(ctx, request)
		}); err != nil {
			// Shutdown raced the submit; still deliver a terminal result.
			e.deliver(request, e.failedResult(uuid.New(), request, time.Now(), err))
		}
	}
}

// process runs one request end to end and delivers the terminal result.
// Callers never see a result with status running.
func (e *Engine) process(ctx context.Context, req *ExecutionRequest) {
	executionID := uuid.New()
	start := time.Now()

	e.logger.Debug("processing execution request",
		zap.String("execution_id", executionID.String()),
		zap.String("workflow_id", req.WorkflowID.String()),
	)

	result := e.run(ctx, executionID, req, start)
	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(start)

	if e.collector != nil {
		e.collector.RecordExecution(string(result.Status), string(req.Mode), result.Duration)
	}
	e.deliver(req, result)
}

func (e *Engine) deliver(req *ExecutionRequest, result *ExecutionResult) {
	if req.Response == nil {
		return
	}
	select {
	case req.Response <- result:
	default:
		// The caller abandoned its channel. Non-fatal.
		e.logger.Warn("execution result dropped, receiver gone",
			zap.String("execution_id", result.ExecutionID.String()),
			zap.String("workflow_id", result.WorkflowID.String()),
		)
	}
}

func (e *Engine) failedResult(executionID uuid.UUID, req *ExecutionRequest, start time.Time, err error) *ExecutionResult {
	now := time.Now()
	status := StatusError
	if errors.Is(err, context.Canceled) {
		status = StatusCanceled
	}
	return &ExecutionResult{
		ExecutionID:    executionID,
		WorkflowID:     req.WorkflowID,
		Status:         status,
		StartTime:      start,
		EndTime:        now,
		Duration:       now.Sub(start),
		Data:           json.RawMessage(`{}`),
		Error:          err.Error(),
		NodeExecutions: []NodeExecution{},
	}
}

// run executes the workflow body. It snapshots the definition at dequeue
// time, resolves the topological order once and never recomputes it, and
// stops at the first node failure with the partial trail intact.
func (e *Engine) run(ctx context.Context, executionID uuid.UUID, req *ExecutionRequest, start time.Time) *ExecutionResult {
	wf, err := e.store.Get(req.WorkflowID)
	if err != nil {
		return e.failedResult(executionID, req, start, err)
	}
	if wf.State != StateActive {
		return e.failedResult(executionID, req, start,
			fmt.Errorf("%w: %s is %s", ErrWorkflowNotActive, wf.ID, wf.State))
	}

	order, err := ResolveOrder(wf)
	if err != nil {
		return e.failedResult(executionID, req, start, err)
	}

	result := &ExecutionResult{
		ExecutionID:    executionID,
		WorkflowID:     req.WorkflowID,
		Status:         StatusRunning,
		StartTime:      start,
		Data:           json.RawMessage(`{}`),
		NodeExecutions: []NodeExecution{},
	}
	ec := NewExecutionContext(wf.ID, executionID, req.TriggerData)

	for _, nodeID := range order {
		node := wf.Nodes[nodeID]
		if node.Disabled {
			e.logger.Debug("skipping disabled node",
				zap.String("execution_id", executionID.String()),
				zap.String("node_id", nodeID),
			)
			continue
		}

		nodeStart := time.Now()
		output, nodeErr := e.executeNode(ctx, wf, node, ec)
		nodeEnd := time.Now()

		ne := NodeExecution{
			NodeID:    nodeID,
			NodeType:  node.NodeType,
			StartTime: nodeStart,
			EndTime:   nodeEnd,
			Duration:  nodeEnd.Sub(nodeStart),
			Input:     node.Parameters,
		}

		if nodeErr == nil {
			nodeErr = ec.SetOutput(nodeID, output)
		}
		if e.collector != nil {
			e.collector.RecordNodeExecutionResult(node.NodeType, nodeErr, ne.Duration)
		}

		if nodeErr != nil {
			wrapped := &NodeError{NodeID: nodeID, NodeType: node.NodeType, Err: nodeErr}
			e.logger.Error("node execution failed",
				zap.String("execution_id", executionID.String()),
				zap.String("node_id", nodeID),
				zap.String("node_type", node.NodeType),
				zap.Error(nodeErr),
			)
			ne.Status = StatusError
			if errors.Is(nodeErr, context.Canceled) {
				ne.Status = StatusCanceled
			}
			ne.Error = nodeErr.Error()
			result.NodeExecutions = append(result.NodeExecutions, ne)
			result.Status = ne.Status
			result.Error = wrapped.Error()
			return result
		}

		ne.Status = StatusSuccess
		ne.Output = output.Data
		result.NodeExecutions = append(result.NodeExecutions, ne)
	}

	data, err := ec.MarshalOutputs()
	if err != nil {
		return e.failedResult(executionID, req, start, fmt.Errorf("serialize outputs: %w", err))
	}
	result.Status = StatusSuccess
	result.Data = data

	e.logger.Info("workflow execution completed",
		zap.String("execution_id", executionID.String()),
		zap.String("workflow_id", wf.ID.String()),
		zap.Int("nodes_executed", len(result.NodeExecutions)),
	)
	return result
}

// executeNode instantiates, configures and runs a single node, enforcing
// the effective timeout. The registry lock is released before Execute so no
// lock is held across node I/O.
func (e *Engine) executeNode(ctx context.Context, wf *Workflow, node *WorkflowNode, ec *ExecutionContext) (*NodeOutput, error) {
	instance, err := e.registry.Instantiate(node.NodeType)
	if err != nil {
		return nil, err
	}
	if err := instance.Configure(node.Parameters); err != nil {
		return nil, fmt.Errorf("configure: %w", err)
	}

	timeout := e.effectiveTimeout(wf, node)
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	e.logger.Debug("executing node",
		zap.String("node_id", node.ID),
		zap.String("node_type", node.NodeType),
		zap.Duration("timeout", timeout),
	)

	type nodeResult struct {
		output *NodeOutput
		err    error
	}
	done := make(chan nodeResult, 1)
	go func() {
		output, execErr := instance.Execute(ctx, ec)
		done <- nodeResult{output: output, err: execErr}
	}()

	select {
	case r := <-done:
		return r.output, r.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w after %s", ErrNodeTimeout, timeout)
		}
		return nil, ctx.Err()
	}
}

func (e *Engine) effectiveTimeout(wf *Workflow, node *WorkflowNode) time.Duration {
	if node.TimeoutSeconds > 0 {
		return time.Duration(node.TimeoutSeconds) * time.Second
	}
	if wf.Settings.TimeoutSeconds > 0 {
		return time.Duration(wf.Settings.TimeoutSeconds) * time.Second
	}
	return e.config.DefaultNodeTimeout
}
