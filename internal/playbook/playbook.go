// Package playbook holds the deterministic task plans: which ordered task
// sequence each agent runs for a given user goal, and which agent handles a
// given (goal, work type, stage) combination. Everything here is table-driven;
// no state, no randomness.
package playbook

import (
	"strings"

	"sourcepilot/internal/types"
)

// =============================================================================
// PER-AGENT PLAYBOOKS
// =============================================================================

// playbooks maps each agent to its named task sequences. Keys are lowercase
// user goals; "default" is the fallback for goals without a specific plan.
var playbooks = map[types.AgentName]map[string][]string{
	types.AgentSourcingSignal: {
		"default": {
			"detect_contract_expiry_signals",
			"detect_performance_degradation_signals",
			"detect_spend_anomalies",
			"apply_relevance_filters",
			"semantic_grounded_summary",
			"produce_autoprep_recommendations",
		},
		// Quick status check
		"track": {
			"detect_contract_expiry_signals",
			"apply_relevance_filters",
		},
		// Full analysis without the autoprep tail
		"understand": {
			"detect_contract_expiry_signals",
			"detect_performance_degradation_signals",
			"detect_spend_anomalies",
			"apply_relevance_filters",
			"semantic_grounded_summary",
		},
	},

	types.AgentSupplierScoring: {
		"default": {
			"build_evaluation_criteria",
			"pull_supplier_performance",
			"pull_risk_indicators",
			"normalize_metrics",
			"compute_scores_and_rank",
			"eligibility_checks",
			"generate_explanations",
		},
		"track": {
			"pull_supplier_performance",
			"compute_scores_and_rank",
		},
		"check": {
			"pull_supplier_performance",
			"pull_risk_indicators",
			"eligibility_checks",
		},
	},

	types.AgentRfxDraft: {
		"default": {
			"determine_rfx_path",
			"retrieve_templates_and_past_examples",
			"assemble_rfx_sections",
			"completeness_checks",
			"draft_questions_and_requirements",
			"create_qa_tracker",
		},
		"create": {
			"determine_rfx_path",
			"retrieve_templates_and_past_examples",
			"assemble_rfx_sections",
			"draft_questions_and_requirements",
			"create_qa_tracker",
		},
		"check": {
			"completeness_checks",
		},
	},

	types.AgentNegotiationSupport: {
		"default": {
			"compare_bids",
			"leverage_point_extraction",
			"benchmark_retrieval",
			"price_anomaly_detection",
			"propose_targets_and_fallbacks",
			"negotiation_playbook",
		},
		"understand": {
			"compare_bids",
			"benchmark_retrieval",
		},
		"create": {
			"compare_bids",
			"leverage_point_extraction",
			"propose_targets_and_fallbacks",
			"negotiation_playbook",
		},
	},

	types.AgentContractSupport: {
		"default": {
			"extract_key_terms",
			"term_validation",
			"term_alignment_summary",
			"implementation_handoff_packet",
		},
		"check": {
			"extract_key_terms",
			"term_validation",
		},
		"create": {
			"extract_key_terms",
			"term_alignment_summary",
			"implementation_handoff_packet",
		},
	},

	types.AgentImplementation: {
		"default": {
			"build_rollout_checklist",
			"compute_expected_savings",
			"define_early_indicators",
			"reporting_templates",
		},
		"create": {
			"build_rollout_checklist",
			"define_early_indicators",
			"reporting_templates",
		},
		"track": {
			"compute_expected_savings",
			"define_early_indicators",
		},
	},
}

// Playbook resolves agents and task sequences for classified intents.
type Playbook struct{}

// New returns a playbook.
func New() *Playbook {
	return &Playbook{}
}

// TasksForAgent returns the ordered task sequence for an agent under the
// given goal. An unknown goal falls back to the agent's "default" plan; an
// unknown agent yields nil. Callers must not mutate the returned slice.
func (p *Playbook) TasksForAgent(agent types.AgentName, goal types.UserGoal) []string {
	plans, ok := playbooks[agent]
	if !ok {
		return nil
	}
	if goal != "" {
		if tasks, ok := plans[strings.ToLower(string(goal))]; ok {
			return tasks
		}
	}
	return plans["default"]
}

// =============================================================================
// INTENT -> AGENT ROUTING
// =============================================================================

// decideStageAgents routes DECIDE goals by stage.
var decideStageAgents = map[types.Stage]types.AgentName{
	types.StageStrategy:    types.AgentSourcingSignal,
	types.StagePlanning:    types.AgentSupplierScoring,
	types.StageSourcing:    types.AgentRfxDraft,
	types.StageNegotiation: types.AgentNegotiationSupport,
	types.StageContracting: types.AgentContractSupport,
	types.StageExecution:   types.AgentImplementation,
}

// AgentForIntent picks the agent for a (goal, work type, stage) combination.
// Precedence: DECIDE routes by stage; CREATE routes to the drafting agent for
// the stage; CHECK routes to validators; TRACK and UNDERSTAND route to the
// stage's reporting agent. Returns "" when no rule applies, in which case the
// caller falls back to StageDefaultAgent.
func (p *Playbook) AgentForIntent(goal types.UserGoal, work types.WorkType, stage types.Stage) types.AgentName {
	if goal == types.GoalDecide {
		return decideStageAgents[stage]
	}

	if goal == types.GoalCreate && work == types.WorkArtifact {
		switch stage {
		case types.StageStrategy, types.StagePlanning, types.StageSourcing:
			return types.AgentRfxDraft
		case types.StageNegotiation:
			return types.AgentNegotiationSupport
		case types.StageContracting:
			return types.AgentContractSupport
		case types.StageExecution:
			return types.AgentImplementation
		}
	}

	if goal == types.GoalCheck {
		if work == types.WorkCompliance && (stage == types.StageContracting || stage == types.StageExecution) {
			return types.AgentContractSupport
		}
		return types.AgentSupplierScoring
	}

	if goal == types.GoalTrack || goal == types.GoalUnderstand {
		switch stage {
		case types.StageStrategy:
			return types.AgentSourcingSignal
		case types.StagePlanning, types.StageSourcing:
			return types.AgentSupplierScoring
		case types.StageNegotiation:
			return types.AgentNegotiationSupport
		case types.StageContracting:
			return types.AgentContractSupport
		case types.StageExecution:
			return types.AgentImplementation
		}
	}

	return ""
}

// StageDefaultAgent is the fallback agent per stage when routing yields none.
var StageDefaultAgent = map[types.Stage]types.AgentName{
	types.StageStrategy:    types.AgentSourcingSignal,
	types.StagePlanning:    types.AgentSupplierScoring,
	types.StageSourcing:    types.AgentRfxDraft,
	types.StageNegotiation: types.AgentNegotiationSupport,
	types.StageContracting: types.AgentContractSupport,
	types.StageExecution:   types.AgentImplementation,
}
