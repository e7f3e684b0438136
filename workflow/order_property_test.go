package workflow

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// randomDAG builds a workflow over n nodes whose edges only ever point from a
// lower to a higher position of a random permutation, so the graph is acyclic
// by construction.
func randomDAG(n int, edgeDensity float64, rng *rand.Rand) *Workflow {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("node_%02d", i)
	}
	perm := rng.Perm(n)

	w := &Workflow{
		Name:  "property-dag",
		Nodes: make(map[string]*WorkflowNode, n),
		State: StateActive,
	}
	for _, id := range ids {
		w.Nodes[id] = &WorkflowNode{ID: id, NodeType: "noop"}
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if rng.Float64() < edgeDensity {
				w.Connections = append(w.Connections, Connection{
					SourceNode: ids[perm[i]], SourceOutput: "main",
					TargetNode: ids[perm[j]], TargetInput: "main",
				})
			}
		}
	}
	return w
}

func TestProperty_TopologicalOrderRespectsEdges(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("every edge points forward in the resolved order", prop.ForAll(
		func(n int, seed int64) bool {
			rng := rand.New(rand.NewSource(seed))
			w := randomDAG(n, 0.3, rng)

			order, err := ResolveOrder(w)
			if err != nil {
				t.Logf("ResolveOrder failed on acyclic graph: %v", err)
				return false
			}
			if len(order) != len(w.Nodes) {
				t.Logf("order has %d nodes, want %d", len(order), len(w.Nodes))
				return false
			}

			position := make(map[string]int, len(order))
			for i, id := range order {
				position[id] = i
			}
			for _, c := range w.Connections {
				if position[c.SourceNode] >= position[c.TargetNode] {
					t.Logf("edge %s→%s violated at positions %d,%d",
						c.SourceNode, c.TargetNode, position[c.SourceNode], position[c.TargetNode])
					return false
				}
			}
			return true
		},
		gen.IntRange(1, 25),
		gen.Int64(),
	))

	properties.Property("resolution is deterministic across repeated calls", prop.ForAll(
		func(n int, seed int64) bool {
			rng := rand.New(rand.NewSource(seed))
			w := randomDAG(n, 0.3, rng)

			first, err := ResolveOrder(w)
			if err != nil {
				return false
			}
			for i := 0; i < 5; i++ {
				again, err := ResolveOrder(w)
				if err != nil {
					return false
				}
				for k := range first {
					if first[k] != again[k] {
						return false
					}
				}
			}
			return true
		},
		gen.IntRange(1, 25),
		gen.Int64(),
	))

	properties.Property("adding a back edge over a chain is always rejected", prop.ForAll(
		func(n int) bool {
			ids := make([]string, n)
			w := &Workflow{Nodes: make(map[string]*WorkflowNode, n), State: StateActive}
			for i := range ids {
				ids[i] = fmt.Sprintf("node_%02d", i)
				w.Nodes[ids[i]] = &WorkflowNode{ID: ids[i], NodeType: "noop"}
			}
			for i := 0; i < n-1; i++ {
				w.Connections = append(w.Connections, Connection{SourceNode: ids[i], TargetNode: ids[i+1]})
			}
			// 回边闭环
			w.Connections = append(w.Connections, Connection{SourceNode: ids[n-1], TargetNode: ids[0]})

			_, err := ResolveOrder(w)
			return err != nil
		},
		gen.IntRange(2, 25),
	))

	properties.TestingRun(t)
}
