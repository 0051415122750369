// Package supervisor implements the orchestration layer: classify the
// user's message, gate it against the case's stage, check required inputs,
// and resolve which agent runs which tasks. The supervisor plans; it never
// executes downstream agents itself and never persists state. The chat
// service carries the plan out and is the single writer of case state.
package supervisor

import (
	"fmt"

	"sourcepilot/internal/artifact"
	"sourcepilot/internal/intent"
	"sourcepilot/internal/logging"
	"sourcepilot/internal/playbook"
	"sourcepilot/internal/state"
	"sourcepilot/internal/types"
)

// Pathway labels the sourcing route chosen for a case.
type Pathway string

const (
	PathwayStrategic   Pathway = "strategic_sourcing"
	PathwayCompetitive Pathway = "competitive_bid"
	PathwaySimplified  Pathway = "simplified"
)

// PlanResult is the supervisor's per-message verdict. When Blocked is set no
// agent may run and Reason explains why to the human.
type PlanResult struct {
	Success       bool               `json:"success"`
	Blocked       bool               `json:"blocked,omitempty"`
	Reason        string             `json:"reason,omitempty"`
	Intent        types.IntentResult `json:"intent"`
	Plan          *types.ActionPlan  `json:"action_plan,omitempty"`
	MissingInputs []string           `json:"missing_inputs,omitempty"`
	RequiresHuman bool               `json:"requires_human"`
}

// Supervisor plans agent execution for classified messages.
type Supervisor struct {
	state    *state.Manager
	playbook *playbook.Playbook
}

// New constructs a supervisor over the injected state manager and playbook.
func New(sm *state.Manager, pb *playbook.Playbook) *Supervisor {
	return &Supervisor{state: sm, playbook: pb}
}

// Execute runs the fixed planning sequence: classify, gate DECIDE against
// the stage machine, report missing inputs, route. The sequence order is a
// governance guarantee and must not change.
func (s *Supervisor) Execute(cs *types.CaseState, userMessage string) *PlanResult {
	result := intent.ClassifyTwoLevel(userMessage)
	logging.Supervisor("case %s: goal=%s work=%s stage=%s",
		cs.CaseID, result.UserGoal, result.WorkType, cs.Stage)

	if result.UserGoal == types.GoalDecide {
		if reason := s.decideBlockReason(cs.Stage); reason != "" {
			logging.Supervisor("case %s: DECIDE blocked: %s", cs.CaseID, reason)
			return &PlanResult{Blocked: true, Reason: reason, Intent: result}
		}
	}

	missing := s.missingInputs(cs, result)
	plan := s.route(result, cs.Stage)

	return &PlanResult{
		Success:       true,
		Intent:        result,
		Plan:          plan,
		MissingInputs: missing,
		RequiresHuman: plan.ApprovalRequired,
	}
}

// decideBlockReason returns a human-readable reason when the stage does not
// accept decision-class work, or "" when a DECIDE is permitted. Execution
// self-loops in the transition map, so the stage permission table is the
// authority here, not the outgoing-transition count.
func (s *Supervisor) decideBlockReason(stage types.Stage) string {
	if err := s.state.ValidateIntentForStage(stage, types.IntentDecide); err != nil {
		return "Case is in execution phase. No further stage transitions available."
	}
	return ""
}

// missingInputs lists advisory gaps for the (intent, stage) pair. These do
// not block planning; the agent runs in degraded mode without them.
func (s *Supervisor) missingInputs(cs *types.CaseState, result types.IntentResult) []string {
	var missing []string

	if cs.CategoryID == "" {
		missing = append(missing, "Category must be specified")
	}

	switch cs.Stage {
	case types.StageSourcing, types.StageNegotiation:
		if cs.SupplierID == "" &&
			(result.UserGoal == types.GoalCreate || result.UserGoal == types.GoalDecide) {
			missing = append(missing, "Supplier must be identified for this stage")
		}
	case types.StageContracting:
		if cs.ContractID == "" {
			missing = append(missing, "Contract reference required for contracting stage")
		}
	}

	// Stage prerequisites from the lifecycle table: recorded decisions and
	// context fields. Gaps the advisories above already phrase are skipped.
	rephrased := map[string]bool{
		"case field category_id": true,
		"case field supplier_id": true,
		"case field contract_id": true,
	}
	for _, gap := range state.MissingInputs(cs, cs.Stage) {
		if rephrased[gap] {
			continue
		}
		missing = append(missing, gap)
	}

	return missing
}

// uiModes maps the routed agent to the front-end panel it drives.
var uiModes = map[types.AgentName]string{
	types.AgentSourcingSignal:     "signals",
	types.AgentSupplierScoring:    "scoring",
	types.AgentRfxDraft:           "rfx",
	types.AgentNegotiationSupport: "negotiation",
	types.AgentContractSupport:    "contract",
	types.AgentImplementation:     "implementation",
}

// route resolves the agent and task list for the classified intent.
func (s *Supervisor) route(result types.IntentResult, stage types.Stage) *types.ActionPlan {
	agent := s.playbook.AgentForIntent(result.UserGoal, result.WorkType, stage)
	if agent == "" {
		agent = playbook.StageDefaultAgent[stage]
		if agent == "" {
			agent = types.AgentSourcingSignal
		}
	}

	uiMode := uiModes[agent]
	if uiMode == "" {
		uiMode = "default"
	}

	return &types.ActionPlan{
		AgentName:        agent,
		Tasks:            s.playbook.TasksForAgent(agent, result.UserGoal),
		ApprovalRequired: intent.RequiresApprovalForPlan(result.UserGoal, result.WorkType, stage),
		UIMode:           uiMode,
	}
}

// SelectPathway picks the sourcing route for a case from its estimated
// value and strategic flag.
func (s *Supervisor) SelectPathway(cs *types.CaseState) Pathway {
	estimatedValue := 0.0
	isStrategic := false
	if cs.ContextFields != nil {
		if v, ok := cs.ContextFields["estimated_value"].(float64); ok {
			estimatedValue = v
		}
		if v, ok := cs.ContextFields["is_strategic"].(bool); ok {
			isStrategic = v
		}
	}

	switch {
	case isStrategic || estimatedValue > 500000:
		return PathwayStrategic
	case estimatedValue > 50000:
		return PathwayCompetitive
	default:
		return PathwaySimplified
	}
}

// stageNextActions lists the recommended next step per stage.
var stageNextActions = map[types.Stage][][2]string{
	types.StageStrategy: {
		{"Scan signals", "Identify sourcing opportunities and risks"},
		{"Score suppliers", "Evaluate potential suppliers"},
	},
	types.StagePlanning: {
		{"Draft RFx", "Create request for proposal/quote"},
	},
	types.StageSourcing: {
		{"Evaluate responses", "Score and rank supplier responses"},
	},
	types.StageNegotiation: {
		{"Support negotiation", "Get negotiation insights and targets"},
	},
	types.StageContracting: {
		{"Extract key terms", "Review and validate contract terms"},
	},
	types.StageExecution: {
		{"Generate implementation plan", "Create rollout checklist and KPIs"},
	},
}

// BuildStatusSummary assembles the status pack for STATUS-class messages:
// where the case is, plus the recommended next moves for its stage.
func (s *Supervisor) BuildStatusSummary(cs *types.CaseState) types.ArtifactPack {
	content := map[string]any{
		"dtp_stage": cs.Stage,
		"status":    cs.Status,
		"category":  cs.CategoryID,
		"supplier":  cs.SupplierID,
		"contract":  cs.ContractID,
	}
	if p, ok := state.PrereqsFor(cs.Stage); ok {
		content["stage_description"] = p.Description
		content["required_decisions"] = state.AllPriorDecisions(cs.Stage)
		content["readiness_gaps"] = state.MissingInputs(cs, cs.Stage)
	}

	statusArtifact := artifact.NewBuilder(types.ArtifactStatusSummary, types.AgentSupervisor).
		WithTitle("Case Status Summary").
		WithContent(content).
		WithContentText(fmt.Sprintf("Case is at %s stage with status: %s", cs.Stage, cs.Status)).
		Build()

	var nextActions []types.NextAction
	var labels []string
	for _, pair := range stageNextActions[cs.Stage] {
		nextActions = append(nextActions, artifact.BuildNextAction(
			pair[0], pair[1], types.AgentSupervisor, "", "", nil))
		labels = append(labels, pair[0])
	}

	artifacts := []types.Artifact{statusArtifact}
	if len(labels) > 0 {
		artifacts = append(artifacts,
			artifact.NewBuilder(types.ArtifactNextBestActions, types.AgentSupervisor).
				WithTitle("Next Best Actions").
				WithContent(map[string]any{"actions": labels}).
				WithContentText(fmt.Sprintf("%d recommended next steps for %s.",
					len(labels), cs.Stage.Name())).
				Build())
	}

	return artifact.BuildPack(types.AgentSupervisor, artifacts, nextActions,
		nil, nil, []string{"build_status_summary"}, nil)
}
