package nodes

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/BaSui01/flowmesh/workflow"
)

// LLMProvider is the narrow surface the router needs from an LLM adapter.
// Real provider clients live outside the engine and plug in here.
type LLMProvider interface {
	Name() string
	Generate(ctx context.Context, model, prompt string, maxTokens int) (string, error)
}

// LLMRouterDefinition 智能 LLM 路由节点
// 按策略（priority / round_robin / least_cost）从候选 Provider 中选路，
// 失败自动切换到下一候选；每个 Provider 有独立的速率限制。
type LLMRouterDefinition struct {
	providers map[string]LLMProvider
	defaults  LLMDefaults
	logger    *zap.Logger

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rrIndex  int
}

// LLMDefaults supplies definition-level fallbacks for per-node routing
// parameters. Node parameters always win; zero fields keep the built-in
// fallbacks.
type LLMDefaults struct {
	// Strategy applies when the node declares none.
	Strategy string
	// Model applies to candidates that declare none.
	Model string
	// MaxTokens applies when the node declares none.
	MaxTokens int
	// RateLimit caps requests per second for candidates without their own
	// rate_per_minute. Zero disables the fallback limiter.
	RateLimit float64
}

// NewLLMRouterDefinition wires provider adapters into the router. A nil or
// incomplete map falls back to a simulated provider per candidate.
func NewLLMRouterDefinition(providers map[string]LLMProvider, logger *zap.Logger) *LLMRouterDefinition {
	return NewLLMRouterDefinitionWithDefaults(providers, LLMDefaults{}, logger)
}

// NewLLMRouterDefinitionWithDefaults additionally seeds routing fallbacks,
// typically from the llm section of the daemon config.
func NewLLMRouterDefinitionWithDefaults(providers map[string]LLMProvider, defaults LLMDefaults, logger *zap.Logger) *LLMRouterDefinition {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LLMRouterDefinition{
		providers: providers,
		defaults:  defaults,
		logger:    logger.With(zap.String("component", "llm_router")),
		limiters:  make(map[string]*rate.Limiter),
	}
}

func (*LLMRouterDefinition) Type() string        { return "llm_router" }
func (*LLMRouterDefinition) DisplayName() string { return "Smart LLM Router" }
func (*LLMRouterDefinition) Description() string {
	return "Routes prompts to the best LLM provider with failover"
}

func (d *LLMRouterDefinition) CreateInstance() (workflow.Instance, error) {
	return &llmRouterInstance{def: d}, nil
}

// llmCandidate is one routable provider/model pair.
type llmCandidate struct {
	Provider      string  `json:"provider"`
	Model         string  `json:"model"`
	Priority      int     `json:"priority,omitempty"`
	CostPer1K     float64 `json:"cost_per_1k_tokens,omitempty"`
	RatePerMinute int     `json:"rate_per_minute,omitempty"`
}

type llmRouterParams struct {
	Prompt     string         `json:"prompt"`
	MaxTokens  int            `json:"max_tokens,omitempty"`
	Strategy   string         `json:"strategy,omitempty"`
	Candidates []llmCandidate `json:"candidates"`
}

type llmAttempt struct {
	Provider  string `json:"provider"`
	Model     string `json:"model"`
	Success   bool   `json:"success"`
	Error     string `json:"error,omitempty"`
	LatencyMs int64  `json:"latency_ms"`
}

type llmRouterInstance struct {
	def    *LLMRouterDefinition
	params llmRouterParams
}

func (n *llmRouterInstance) Configure(params json.RawMessage) error {
	if len(params) == 0 {
		return &workflow.ConfigError{Field: "llm_router", Reason: "parameters required"}
	}
	if err := json.Unmarshal(params, &n.params); err != nil {
		return &workflow.ConfigError{Field: "llm_router", Reason: err.Error()}
	}
	if n.params.Prompt == "" {
		return &workflow.ConfigError{Field: "llm_router.prompt", Reason: "prompt required"}
	}
	if len(n.params.Candidates) == 0 {
		return &workflow.ConfigError{Field: "llm_router.candidates", Reason: "at least one candidate required"}
	}
	if n.params.Strategy == "" {
		n.params.Strategy = n.def.defaults.Strategy
	}
	switch n.params.Strategy {
	case "", "priority", "round_robin", "least_cost":
	default:
		return &workflow.ConfigError{Field: "llm_router.strategy", Reason: "unknown strategy: " + n.params.Strategy}
	}
	if n.params.MaxTokens <= 0 {
		n.params.MaxTokens = n.def.defaults.MaxTokens
	}
	if n.params.MaxTokens <= 0 {
		n.params.MaxTokens = 1024
	}
	for i := range n.params.Candidates {
		if n.params.Candidates[i].Model == "" {
			n.params.Candidates[i].Model = n.def.defaults.Model
		}
	}
	return nil
}

func (n *llmRouterInstance) Execute(ctx context.Context, _ *workflow.ExecutionContext) (*workflow.NodeOutput, error) {
	candidates := n.orderedCandidates()
	attempts := make([]llmAttempt, 0, len(candidates))

	for _, cand := range candidates {
		if !n.def.allow(cand) {
			attempts = append(attempts, llmAttempt{
				Provider: cand.Provider,
				Model:    cand.Model,
				Error:    "rate limited",
			})
			continue
		}

		start := time.Now()
		response, err := n.def.generate(ctx, cand, n.params.Prompt, n.params.MaxTokens)
		latency := time.Since(start).Milliseconds()

		if err != nil {
			n.def.logger.Warn("provider failed, trying next candidate",
				zap.String("provider", cand.Provider),
				zap.String("model", cand.Model),
				zap.Error(err),
			)
			attempts = append(attempts, llmAttempt{
				Provider:  cand.Provider,
				Model:     cand.Model,
				Error:     err.Error(),
				LatencyMs: latency,
			})
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue
		}

		attempts = append(attempts, llmAttempt{
			Provider:  cand.Provider,
			Model:     cand.Model,
			Success:   true,
			LatencyMs: latency,
		})

		tokens := estimateTokens(n.params.Prompt) + estimateTokens(response)
		out, merr := json.Marshal(map[string]any{
			"response":      response,
			"provider_used": cand.Provider,
			"model_used":    cand.Model,
			"tokens_used":   tokens,
			"cost_estimate": float64(tokens) / 1000 * cand.CostPer1K,
			"latency_ms":    latency,
			"attempts":      attempts,
		})
		if merr != nil {
			return nil, merr
		}
		return &workflow.NodeOutput{Data: out}, nil
	}

	return nil, fmt.Errorf("all %d candidates failed", len(candidates))
}

// orderedCandidates applies the routing strategy.
func (n *llmRouterInstance) orderedCandidates() []llmCandidate {
	candidates := append([]llmCandidate(nil), n.params.Candidates...)
	switch n.params.Strategy {
	case "least_cost":
		sort.SliceStable(candidates, func(i, j int) bool {
			return candidates[i].CostPer1K < candidates[j].CostPer1K
		})
	case "round_robin":
		offset := n.def.nextRoundRobin(len(candidates))
		rotated := make([]llmCandidate, 0, len(candidates))
		for i := range candidates {
			rotated = append(rotated, candidates[(offset+i)%len(candidates)])
		}
		candidates = rotated
	default: // priority
		sort.SliceStable(candidates, func(i, j int) bool {
			return candidates[i].Priority > candidates[j].Priority
		})
	}
	return candidates
}

func (d *LLMRouterDefinition) nextRoundRobin(n int) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	offset := d.rrIndex % n
	d.rrIndex++
	return offset
}

// allow consults the per-provider rate limiter. Candidates without their
// own rate fall back to the definition-level requests-per-second cap.
func (d *LLMRouterDefinition) allow(cand llmCandidate) bool {
	perSec := float64(cand.RatePerMinute) / 60
	burst := cand.RatePerMinute
	if cand.RatePerMinute <= 0 {
		if d.defaults.RateLimit <= 0 {
			return true
		}
		perSec = d.defaults.RateLimit
		burst = int(d.defaults.RateLimit) + 1
	}
	d.mu.Lock()
	limiter, ok := d.limiters[cand.Provider]
	if !ok {
		limiter = rate.NewLimiter(rate.Limit(perSec), burst)
		d.limiters[cand.Provider] = limiter
	}
	d.mu.Unlock()
	return limiter.Allow()
}

func (d *LLMRouterDefinition) generate(ctx context.Context, cand llmCandidate, prompt string, maxTokens int) (string, error) {
	if provider, ok := d.providers[cand.Provider]; ok {
		return provider.Generate(ctx, cand.Model, prompt, maxTokens)
	}
	// Simulated fallback keeps workflows runnable without real adapters.
	select {
	case <-time.After(5 * time.Millisecond):
	case <-ctx.Done():
		return "", ctx.Err()
	}
	return fmt.Sprintf("[%s/%s] simulated response", cand.Provider, cand.Model), nil
}

// estimateTokens approximates at four characters per token.
func estimateTokens(text string) int {
	return len(text)/4 + 1
}
