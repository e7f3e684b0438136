package workflow

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Store 内存工作流存储
// 显式服务对象，由引擎注入使用；所有读取都返回深拷贝，
// 因此调用方永远不会与正在运行的执行共享可变状态。
type Store struct {
	mu        sync.RWMutex
	workflows map[uuid.UUID]*Workflow
	logger    *zap.Logger
}

// NewStore creates an empty in-memory workflow store.
func NewStore(logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		workflows: make(map[uuid.UUID]*Workflow),
		logger:    logger.With(zap.String("component", "workflow_store")),
	}
}

// Create adds a new workflow. A zero ID is assigned a fresh one.
func (s *Store) Create(w *Workflow) (uuid.UUID, error) {
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	now := time.Now()
	w.CreatedAt = now
	w.UpdatedAt = now

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.workflows[w.ID]; exists {
		return uuid.Nil, fmt.Errorf("%w: %s", ErrWorkflowExists, w.ID)
	}
	s.workflows[w.ID] = w.Clone()

	s.logger.Info("created workflow",
		zap.String("workflow_id", w.ID.String()),
		zap.String("name", w.Name),
	)
	return w.ID, nil
}

// Get returns a deep copy of the workflow.
func (s *Store) Get(id uuid.UUID) (*Workflow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.workflows[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrWorkflowNotFound, id)
	}
	return w.Clone(), nil
}

// List returns copies of all workflows, sorted by name for stable output.
func (s *Store) List() []*Workflow {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Workflow, 0, len(s.workflows))
	for _, w := range s.workflows {
		out = append(out, w.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Update replaces an existing workflow definition.
func (s *Store) Update(w *Workflow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.workflows[w.ID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrWorkflowNotFound, w.ID)
	}
	cp := w.Clone()
	cp.CreatedAt = existing.CreatedAt
	cp.UpdatedAt = time.Now()
	s.workflows[w.ID] = cp

	s.logger.Info("updated workflow", zap.String("workflow_id", w.ID.String()))
	return nil
}

// Delete removes a workflow.
func (s *Store) Delete(id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.workflows[id]; !ok {
		return fmt.Errorf("%w: %s", ErrWorkflowNotFound, id)
	}
	delete(s.workflows, id)

	s.logger.Info("deleted workflow", zap.String("workflow_id", id.String()))
	return nil
}
