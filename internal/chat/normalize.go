package chat

import (
	"fmt"

	"sourcepilot/internal/contradiction"
	"sourcepilot/internal/types"
)

// normalizeOutput folds one agent's output map into the shape the
// contradiction detector inspects. Outputs that carry none of the inspected
// fields normalize to an untyped output, which matches no detector rule.
func normalizeOutput(agentName types.AgentName, out map[string]any) contradiction.Output {
	if out == nil {
		return contradiction.Output{}
	}

	if s, ok := out["recommended_strategy"].(string); ok && s != "" {
		confidence, _ := asFloat(out["confidence"])
		return contradiction.Output{
			Type:                "StrategyRecommendation",
			RecommendedStrategy: s,
			Confidence:          confidence,
		}
	}

	if ids, ok := asStringSlice(out["shortlisted_supplier_ids"]); ok {
		top, _ := out["top_choice_supplier_id"].(string)
		return contradiction.Output{
			Type:                 "SupplierShortlist",
			ShortlistedSuppliers: ids,
			TopChoiceSupplierID:  top,
		}
	}

	if agentName == types.AgentNegotiationSupport {
		supplier, _ := out["supplier_id"].(string)
		return contradiction.Output{
			Type:       "NegotiationPlan",
			SupplierID: supplier,
		}
	}

	return contradiction.Output{}
}

// priorOutputs builds the comparison set from the case's latest output.
func priorOutputs(cs *types.CaseState) []contradiction.AgentOutput {
	if cs.LatestAgentOutput == nil {
		return nil
	}
	prior := normalizeOutput(cs.LatestAgentName, cs.LatestAgentOutput)
	if prior.Type == "" {
		return nil
	}
	return []contradiction.AgentOutput{{
		AgentName: string(cs.LatestAgentName),
		Output:    prior,
	}}
}

// outputType names the output shape for memory recording.
func outputType(agentName types.AgentName, out map[string]any) string {
	normalized := normalizeOutput(agentName, out)
	if normalized.Type != "" {
		return normalized.Type
	}
	return string(agentName)
}

// outputSummary derives a one-line summary from the best available field.
func outputSummary(out map[string]any) string {
	for _, key := range []string{"summary", "recommendation", "alignment_summary"} {
		if s, ok := out[key].(string); ok && s != "" {
			return s
		}
	}
	if rfxType, ok := out["rfx_type"].(string); ok {
		score, _ := asInt(out["completeness_score"])
		return fmt.Sprintf("%s draft at %d%% completeness", rfxType, score)
	}
	if annual, ok := asFloat(out["annual_savings"]); ok {
		return fmt.Sprintf("Implementation plan projecting $%.0f annual savings", annual)
	}
	if targets, ok := out["target_terms"]; ok && targets != nil {
		return "Negotiation plan with targets and fallbacks prepared"
	}
	return "Analysis complete"
}

// memoryDetails extracts the fields case memory keys its summarized state on.
func memoryDetails(out map[string]any) map[string]any {
	details := map[string]any{}
	if s, ok := out["recommended_strategy"].(string); ok {
		details["recommended_strategy"] = s
	}
	if s, ok := out["top_choice_supplier_id"].(string); ok {
		details["top_choice_supplier_id"] = s
	}
	if len(details) == 0 {
		return nil
	}
	return details
}

// asStringSlice accepts both in-process []string values and the []any shape
// the same field has after a JSON round trip through the store.
func asStringSlice(v any) ([]string, bool) {
	switch vv := v.(type) {
	case []string:
		return vv, true
	case []any:
		out := make([]string, 0, len(vv))
		for _, item := range vv {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	}
	return nil, false
}

func asInt(v any) (int, bool) {
	switch vv := v.(type) {
	case int:
		return vv, true
	case float64:
		return int(vv), true
	}
	return 0, false
}

func asFloat(v any) (float64, bool) {
	switch vv := v.(type) {
	case float64:
		return vv, true
	case int:
		return float64(vv), true
	}
	return 0, false
}
