// Package task implements the agent sub-task protocol: every task runs its
// phases in a fixed order (rules, retrieval, analytics, optional LLM
// narration) and returns a TaskResult the calling agent aggregates. Tasks
// never mutate case state.
package task

import (
	"context"
	"fmt"
	"time"

	"sourcepilot/internal/llm"
	"sourcepilot/internal/logging"
	"sourcepilot/internal/types"
)

// =============================================================================
// TASK CONTEXT
// =============================================================================

// Context is the keyed store an agent threads through its task pipeline.
// Each task's result data is merged in before the next task runs, so later
// tasks see earlier tasks' writes.
type Context struct {
	values map[string]any
}

// NewContext returns an empty task context.
func NewContext() *Context {
	return &Context{values: make(map[string]any)}
}

// Set stores a value under key, replacing any previous value.
func (c *Context) Set(key string, v any) {
	c.values[key] = v
}

// Value returns the raw value for key.
func (c *Context) Value(key string) (any, bool) {
	v, ok := c.values[key]
	return v, ok
}

// Has reports whether key is present.
func (c *Context) Has(key string) bool {
	_, ok := c.values[key]
	return ok
}

// MergeData copies every entry of data into the context.
func (c *Context) MergeData(data map[string]any) {
	for k, v := range data {
		c.values[k] = v
	}
}

// Snapshot returns a shallow copy of the stored values.
func (c *Context) Snapshot() map[string]any {
	out := make(map[string]any, len(c.values))
	for k, v := range c.values {
		out[k] = v
	}
	return out
}

// Get returns the value under key when it has the requested type.
func Get[T any](c *Context, key string) (T, bool) {
	var zero T
	raw, ok := c.values[key]
	if !ok {
		return zero, false
	}
	v, ok := raw.(T)
	if !ok {
		return zero, false
	}
	return v, true
}

// GetOr returns the typed value under key, or fallback when the key is
// absent or holds a different type.
func GetOr[T any](c *Context, key string, fallback T) T {
	if v, ok := Get[T](c, key); ok {
		return v
	}
	return fallback
}

// =============================================================================
// PHASE RESULTS
// =============================================================================

// PhaseResult carries one phase's contribution to the task result. Stop set
// by the rules phase short-circuits the remaining phases without failing the
// task.
type PhaseResult struct {
	Data       map[string]any
	GroundedIn []types.GroundingReference
	Stop       bool
	StopReason string
}

// NarrationResult carries the optional LLM phase output plus its token cost.
type NarrationResult struct {
	Data       map[string]any
	TokensUsed int
}

// =============================================================================
// TASK INTERFACE
// =============================================================================

// Task is one unit of agent work. Implementations override the phases they
// need; the zero behavior of every phase is a no-op.
type Task interface {
	Name() string

	// Rules runs deterministic policy checks. May stop the pipeline.
	Rules(ctx context.Context, tc *Context) (PhaseResult, error)

	// Retrieve pulls data from the document store and structured records.
	Retrieve(ctx context.Context, tc *Context, rules PhaseResult) (PhaseResult, error)

	// Analyze computes scores, normalizations, and comparisons.
	Analyze(ctx context.Context, tc *Context, rules, retrieval PhaseResult) (PhaseResult, error)

	// NeedsNarration reports whether the LLM phase should run.
	NeedsNarration(tc *Context, analytics PhaseResult) bool

	// Narrate generates the optional LLM summary. Only called when
	// NeedsNarration returns true.
	Narrate(ctx context.Context, tc *Context, rules, retrieval, analytics PhaseResult) (NarrationResult, error)
}

// Deps are the collaborators a task may call during its phases.
type Deps struct {
	Retriever types.Retriever
	LLM       types.LLMClient
}

// base provides the no-op phase defaults and the shared collaborator
// plumbing. Every concrete task embeds it.
type base struct {
	name string
	deps Deps
}

func newBase(name string, deps Deps) base {
	return base{name: name, deps: deps}
}

func (b *base) Name() string { return b.name }

func (b *base) Rules(ctx context.Context, tc *Context) (PhaseResult, error) {
	return PhaseResult{}, nil
}

func (b *base) Retrieve(ctx context.Context, tc *Context, rules PhaseResult) (PhaseResult, error) {
	return PhaseResult{}, nil
}

func (b *base) Analyze(ctx context.Context, tc *Context, rules, retrieval PhaseResult) (PhaseResult, error) {
	return PhaseResult{}, nil
}

func (b *base) NeedsNarration(tc *Context, analytics PhaseResult) bool {
	return false
}

func (b *base) Narrate(ctx context.Context, tc *Context, rules, retrieval, analytics PhaseResult) (NarrationResult, error) {
	return NarrationResult{}, nil
}

// narrate calls the LLM and returns the response text with its token count.
// A missing client or a failed call degrades to an empty response; every
// caller substitutes its deterministic fallback for that case, so narration
// never fails a task.
func (b *base) narrate(ctx context.Context, prompt string) (string, int) {
	if b.deps.LLM == nil {
		return "", 0
	}
	text, usage, err := b.deps.LLM.Complete(ctx, prompt)
	if err != nil {
		logging.LLM("task=%s narration failed, falling back: %v", b.name, err)
		return "", usage.Total()
	}
	logging.LLM("task=%s narration tokens=%d", b.name, usage.Total())

	// Models sometimes wrap the answer in a JSON object even when asked for
	// prose. Unwrap the conventional field names; otherwise keep the raw text.
	if pr := llm.Parse(text); pr.Parsed {
		for _, key := range []string{"summary", "narrative", "text", "response"} {
			if s, ok := pr.Data[key].(string); ok && s != "" {
				return s, usage.Total()
			}
		}
	}
	return text, usage.Total()
}

// =============================================================================
// EXECUTION DRIVER
// =============================================================================

// Execute runs a task through its phases in order and assembles the result.
// A phase error marks the result failed and skips the remaining phases; a
// rules stop records where and why execution halted while still counting as
// success. Execution time is measured in all cases.
func Execute(ctx context.Context, t Task, tc *Context) *types.TaskResult {
	start := time.Now()
	result := &types.TaskResult{
		TaskName: t.Name(),
		Success:  true,
		Data:     make(map[string]any),
	}
	defer func() {
		result.ExecutionTime = time.Since(start)
		logging.Task("task=%s success=%v dur=%s tokens=%d",
			result.TaskName, result.Success, result.ExecutionTime, result.TokensUsed)
	}()

	rules, err := t.Rules(ctx, tc)
	mergePhase(result, rules)
	if err != nil {
		fail(result, "rules", err)
		return result
	}
	if rules.Stop {
		result.Data["stopped_at"] = "rules"
		result.Data["stop_reason"] = rules.StopReason
		return result
	}

	retrieval, err := t.Retrieve(ctx, tc, rules)
	mergePhase(result, retrieval)
	if err != nil {
		fail(result, "retrieval", err)
		return result
	}

	analytics, err := t.Analyze(ctx, tc, rules, retrieval)
	mergePhase(result, analytics)
	if err != nil {
		fail(result, "analytics", err)
		return result
	}

	if t.NeedsNarration(tc, analytics) {
		narration, err := t.Narrate(ctx, tc, rules, retrieval, analytics)
		for k, v := range narration.Data {
			result.Data[k] = v
		}
		result.TokensUsed = narration.TokensUsed
		if err != nil {
			fail(result, "narration", err)
			return result
		}
	}

	return result
}

func mergePhase(result *types.TaskResult, phase PhaseResult) {
	for k, v := range phase.Data {
		result.Data[k] = v
	}
	result.GroundedIn = append(result.GroundedIn, phase.GroundedIn...)
}

func fail(result *types.TaskResult, phase string, err error) {
	result.Success = false
	result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", phase, err))
	logging.Task("task=%s phase=%s failed: %v", result.TaskName, phase, err)
}

// =============================================================================
// RECORD HELPERS
// =============================================================================
// Structured-record lookups return loosely typed rows; these accessors keep
// the field plumbing in one place.

func recordString(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

func recordFloat(m map[string]any, key string) float64 {
	switch v := m[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return 0
}
