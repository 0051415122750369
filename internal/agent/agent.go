// Package agent implements the agent execution loop. An agent pulls its
// ordered task plan from the playbook, runs each task through the shared
// context, and packages the accumulated results into an artifact pack.
// Agents never write case state; the chat service does that after receiving
// the agent's result.
package agent

import (
	"context"
	"fmt"
	"time"

	"sourcepilot/internal/artifact"
	"sourcepilot/internal/logging"
	"sourcepilot/internal/playbook"
	"sourcepilot/internal/task"
	"sourcepilot/internal/types"
)

// Result is the outward contract of one agent invocation.
type Result struct {
	Success    bool               `json:"success"`
	AgentName  types.AgentName    `json:"agent_name"`
	Pack       types.ArtifactPack `json:"artifact_pack"`
	TokensUsed int                `json:"tokens_used"`
	Output     map[string]any     `json:"output"`
	Error      string             `json:"error,omitempty"`
}

// packParts is what a per-agent pack builder derives from the final context.
type packParts struct {
	artifacts   []types.Artifact
	nextActions []types.NextAction
	risks       []types.RiskItem
	notes       []string
	output      map[string]any
}

// packFunc builds the agent's artifacts, advisory actions, and risks from
// the fully merged task context and the accumulated grounding.
type packFunc func(tc *task.Context, grounding []types.GroundingReference) packParts

// packFuncs maps each worker agent to its pack builder.
var packFuncs = map[types.AgentName]packFunc{
	types.AgentSourcingSignal:     buildSignalPack,
	types.AgentSupplierScoring:    buildScoringPack,
	types.AgentRfxDraft:           buildRfxPack,
	types.AgentNegotiationSupport: buildNegotiationPack,
	types.AgentContractSupport:    buildContractPack,
	types.AgentImplementation:     buildImplementationPack,
}

// Agent runs one worker agent's task pipeline.
type Agent struct {
	name     types.AgentName
	registry *task.Registry
	playbook *playbook.Playbook
	build    packFunc
}

// New constructs the agent for the given name. Returns an error for names
// without a pack builder (the supervisor is not a worker agent).
func New(name types.AgentName, registry *task.Registry, pb *playbook.Playbook) (*Agent, error) {
	build, ok := packFuncs[name]
	if !ok {
		return nil, fmt.Errorf("agent: no pack builder for %s", name)
	}
	return &Agent{name: name, registry: registry, playbook: pb, build: build}, nil
}

// Name returns the agent's identity.
func (a *Agent) Name() types.AgentName { return a.name }

// Roster constructs all six worker agents keyed by name.
func Roster(registry *task.Registry, pb *playbook.Playbook) map[types.AgentName]*Agent {
	roster := make(map[types.AgentName]*Agent, len(packFuncs))
	for name := range packFuncs {
		agent, err := New(name, registry, pb)
		if err != nil {
			continue
		}
		roster[name] = agent
	}
	return roster
}

// Execute runs the agent's task plan for the classified goal over a copy of
// the case context. Tasks run strictly in plan order; each task sees the
// merged data of all tasks before it. A failing task contributes nothing and
// the pipeline continues. The case context itself is never mutated.
func (a *Agent) Execute(ctx context.Context, caseContext map[string]any, goal types.UserGoal, userIntent string) *Result {
	start := time.Now()

	taskNames := a.playbook.TasksForAgent(a.name, goal)
	logging.Agent("%s: starting plan goal=%s tasks=%d", a.name, goal, len(taskNames))

	tc := task.NewContext()
	tc.MergeData(caseContext)

	var grounding []types.GroundingReference
	tokens := 0
	executed := make([]string, 0, len(taskNames))
	meta := &types.ExecutionMetadata{TaskTimings: map[string]int{}}

	for _, name := range taskNames {
		if ctx.Err() != nil {
			logging.Agent("%s: canceled after %d tasks", a.name, len(executed))
			break
		}
		t := a.registry.Get(name)
		if t == nil {
			logging.Agent("%s: unknown task %q skipped", a.name, name)
			continue
		}

		result := task.Execute(ctx, t, tc)
		meta.TaskTimings[name] = int(result.ExecutionTime.Milliseconds())
		if !result.Success {
			meta.FailedTasks = append(meta.FailedTasks, name)
			logging.Agent("%s: task %s failed: %v", a.name, name, result.Errors)
			continue
		}

		tc.MergeData(result.Data)
		grounding = append(grounding, result.GroundedIn...)
		tokens += result.TokensUsed
		executed = append(executed, name)
	}

	parts := a.build(tc, grounding)
	meta.DurationMS = time.Since(start).Milliseconds()

	pack := artifact.BuildPack(
		a.name, parts.artifacts, parts.nextActions, parts.risks,
		parts.notes, executed, meta,
	)

	logging.Agent("%s: done artifacts=%d tokens=%d duration=%dms failed=%d",
		a.name, len(parts.artifacts), tokens, meta.DurationMS, len(meta.FailedTasks))

	res := &Result{
		Success:    true,
		AgentName:  a.name,
		Pack:       pack,
		TokensUsed: tokens,
		Output:     parts.output,
	}
	if len(executed) == 0 && len(taskNames) > 0 {
		// Every planned task failed; the pack is still valid but empty.
		res.Error = fmt.Sprintf("all %d planned tasks failed", len(taskNames))
	}
	return res
}

// headGrounding returns at most n references from the front of refs.
// Several artifacts intentionally cite only the leading references.
func headGrounding(refs []types.GroundingReference, n int) []types.GroundingReference {
	if len(refs) <= n {
		return refs
	}
	return refs[:n]
}
