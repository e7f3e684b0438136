package orchestrator

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"
)

// CoordinationStrategy 协调策略
// 决定一个任务如何在符合条件的 Agent 之间分发。
type CoordinationStrategy string

const (
	// StrategySequential runs agents one at a time in id order.
	StrategySequential CoordinationStrategy = "sequential"
	// StrategyParallel fans the task out to all agents concurrently and
	// joins their results and errors.
	StrategyParallel CoordinationStrategy = "parallel"
	// StrategyPipeline chains agents: each receives the previous agent's
	// output as its input.
	StrategyPipeline CoordinationStrategy = "pipeline"
	// StrategyAdaptive picks Parallel for parallel-safe tasks with more
	// than one agent and Sequential otherwise.
	StrategyAdaptive CoordinationStrategy = "adaptive"
	// StrategyLoadBalanced assigns the single least-used eligible agent.
	StrategyLoadBalanced CoordinationStrategy = "load_balanced"
)

// maxParallelAgents bounds concurrent agent fan-out per task.
const maxParallelAgents = 16

// dispatch routes to the strategy implementation. Every strategy is
// fail-soft: per-agent errors are collected, siblings keep running.
func (p *Pool) dispatch(ctx context.Context, strategy CoordinationStrategy, agents []*ManagedAgent, task TaskDefinition) (map[string]json.RawMessage, []string) {
	switch strategy {
	case StrategyParallel:
		return p.runParallel(ctx, agents, task)
	case StrategyPipeline:
		return p.runPipeline(ctx, agents, task)
	case StrategyLoadBalanced:
		return p.runLoadBalanced(ctx, agents, task)
	case StrategyAdaptive:
		if task.Parallel && len(agents) > 1 {
			return p.runParallel(ctx, agents, task)
		}
		return p.runSequential(ctx, agents, task)
	default:
		return p.runSequential(ctx, agents, task)
	}
}

func (p *Pool) runSequential(ctx context.Context, agents []*ManagedAgent, task TaskDefinition) (map[string]json.RawMessage, []string) {
	results := make(map[string]json.RawMessage, len(agents))
	var errs []string
	for _, agent := range agents {
		result, err := p.runAgentTask(ctx, agent, task, task.Input)
		if err != nil {
			errs = append(errs, err.Error())
			continue
		}
		results[agent.ID] = result
	}
	return results, errs
}

// runParallel fans the task out onto concurrent workers and joins results
// and errors. Group errors are never returned from the closures: a failing
// agent must not cancel its siblings.
func (p *Pool) runParallel(ctx context.Context, agents []*ManagedAgent, task TaskDefinition) (map[string]json.RawMessage, []string) {
	results := make(map[string]json.RawMessage, len(agents))
	var errs []string
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelAgents)
	for _, agent := range agents {
		a := agent
		g.Go(func() error {
			result, err := p.runAgentTask(gctx, a, task, task.Input)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err.Error())
				return nil
			}
			results[a.ID] = result
			return nil
		})
	}
	_ = g.Wait()

	sort.Strings(errs)
	return results, errs
}

// runPipeline threads the task through agents in id order, feeding each
// agent the previous agent's output. A stage failure stops the pipeline;
// upstream results are kept.
func (p *Pool) runPipeline(ctx context.Context, agents []*ManagedAgent, task TaskDefinition) (map[string]json.RawMessage, []string) {
	results := make(map[string]json.RawMessage, len(agents))
	var errs []string
	input := task.Input
	for _, agent := range agents {
		result, err := p.runAgentTask(ctx, agent, task, input)
		if err != nil {
			errs = append(errs, err.Error())
			break
		}
		results[agent.ID] = result
		input = result
	}
	return results, errs
}

// runLoadBalanced picks the least-executed agent only.
func (p *Pool) runLoadBalanced(ctx context.Context, agents []*ManagedAgent, task TaskDefinition) (map[string]json.RawMessage, []string) {
	least := agents[0]
	leastCount := least.Snapshot().Executions
	for _, agent := range agents[1:] {
		if count := agent.Snapshot().Executions; count < leastCount {
			least = agent
			leastCount = count
		}
	}
	return p.runSequential(ctx, []*ManagedAgent{least}, task)
}
