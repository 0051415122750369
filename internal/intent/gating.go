package intent

import (
	"strings"

	"sourcepilot/internal/types"
)

// =============================================================================
// STAGE-GATED AGENT ROSTERS
// =============================================================================

// stageAgents lists which agents each stage may reach. Execution reaches
// none: DTP-06 is read-only.
var stageAgents = map[types.Stage][]types.AgentName{
	types.StageStrategy:    {types.AgentSourcingSignal},
	types.StagePlanning:    {types.AgentSourcingSignal, types.AgentSupplierScoring},
	types.StageSourcing:    {types.AgentRfxDraft, types.AgentSupplierScoring},
	types.StageNegotiation: {types.AgentNegotiationSupport, types.AgentSupplierScoring},
	types.StageContracting: {types.AgentContractSupport},
	types.StageExecution:   {},
}

// AllowedAgents returns the agents reachable for an intent at a stage.
// STATUS and EXPLAIN never call agents; they answer from cached case data.
func AllowedAgents(intent types.UserIntent, stage types.Stage) []types.AgentName {
	switch intent {
	case types.IntentStatus, types.IntentExplain:
		return nil
	case types.IntentExplore, types.IntentDecide:
		return append([]types.AgentName(nil), stageAgents[stage]...)
	}
	return nil
}

// =============================================================================
// APPROVAL RULES
// =============================================================================

// RequiresApproval applies the single-axis approval rule: DECIDE always needs
// a human, and the strategy and negotiation agents need one regardless of
// intent.
func RequiresApproval(intent types.UserIntent, agent types.AgentName) bool {
	if intent == types.IntentDecide {
		return true
	}
	switch agent {
	case types.AgentSourcingSignal, types.AgentNegotiationSupport:
		return true
	}
	return false
}

// RequiresApprovalForPlan applies the two-axis approval rule: a decision
// goal, approval work, or a high-stakes stage (negotiation, contracting) all
// gate on a human.
func RequiresApprovalForPlan(goal types.UserGoal, work types.WorkType, stage types.Stage) bool {
	if goal == types.GoalDecide || work == types.WorkApproval {
		return true
	}
	return stage == types.StageNegotiation || stage == types.StageContracting
}

// =============================================================================
// APPROVAL / REJECTION PHRASE DETECTION
// =============================================================================

// approvalPatterns catch natural-language approvals while a case is waiting
// for a decision.
var approvalPatterns = compile(
	`\bapprove\b`, `\bconfirm\b`, `\bproceed\b`, `\bgo ahead\b`,
	`\byes\b`, `\bok\b`, `\bokay\b`, `\baccept\b`, `\bagree\b`,
	`let's do it`, `sounds good`, `looks good`, `move forward`,
)

var rejectionPatterns = compile(
	`\breject\b`, `\bcancel\b`, `\bstop\b`, `\bdon't\b`,
	`\bdecline\b`, `\brefuse\b`, `\bwait\b`, `\bhold\b`,
	`not yet`, `not ready`, `no\b`, `\brevise\b`, `\bchange\b`,
)

// IsApproval reports whether the message reads as an approval.
func IsApproval(message string) bool {
	return matchesAny(approvalPatterns, strings.ToLower(strings.TrimSpace(message)))
}

// IsRejection reports whether the message reads as a rejection. Checked
// before approval: "no, don't proceed" must not read as an approval.
func IsRejection(message string) bool {
	return matchesAny(rejectionPatterns, strings.ToLower(strings.TrimSpace(message)))
}

// IsDecisionAttempt reports whether the message looks like a decision at all.
func IsDecisionAttempt(message string) bool {
	return IsApproval(message) || IsRejection(message)
}
