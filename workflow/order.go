package workflow

import (
	"container/heap"
	"fmt"
)

// ResolveOrder computes a topological execution order over the workflow's
// nodes using Kahn's algorithm. Simultaneously-ready nodes are emitted in
// lexicographic id order so the result is deterministic and test fixtures
// are reproducible.
//
// A cycle fails the entire resolution with ErrCyclicWorkflow before any
// node has a chance to run.
func ResolveOrder(w *Workflow) ([]string, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}

	inDegree := make(map[string]int, len(w.Nodes))
	adjacency := make(map[string][]string, len(w.Nodes))
	for id := range w.Nodes {
		inDegree[id] = 0
	}
	for _, conn := range w.Connections {
		adjacency[conn.SourceNode] = append(adjacency[conn.SourceNode], conn.TargetNode)
		inDegree[conn.TargetNode]++
	}

	ready := &idHeap{}
	heap.Init(ready)
	for id, degree := range inDegree {
		if degree == 0 {
			heap.Push(ready, id)
		}
	}

	order := make([]string, 0, len(w.Nodes))
	for ready.Len() > 0 {
		id := heap.Pop(ready).(string)
		order = append(order, id)
		for _, next := range adjacency[id] {
			inDegree[next]--
			if inDegree[next] == 0 {
				heap.Push(ready, next)
			}
		}
	}

	if len(order) != len(w.Nodes) {
		return nil, fmt.Errorf("%w: resolved %d of %d nodes", ErrCyclicWorkflow, len(order), len(w.Nodes))
	}
	return order, nil
}

// idHeap is a min-heap of node ids used as the ready queue.
type idHeap []string

func (h idHeap) Len() int           { return len(h) }
func (h idHeap) Less(i, j int) bool { return h[i] < h[j] }
func (h idHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *idHeap) Push(x any)        { *h = append(*h, x.(string)) }
func (h *idHeap) Pop() any {
	old := *h
	n := len(old)
	id := old[n-1]
	*h = old[:n-1]
	return id
}
