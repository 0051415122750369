package agent

import (
	"fmt"

	"sourcepilot/internal/artifact"
	"sourcepilot/internal/task"
	"sourcepilot/internal/types"
)

// insightsOnlyNote is attached to every negotiation pack. The agent surfaces
// insights; the award decision stays with the human.
const insightsOnlyNote = "This analysis provides insights only - award decision requires human approval."

// buildNegotiationPack packages the negotiation analysis into the plan, the
// leverage summary, and the target terms.
func buildNegotiationPack(tc *task.Context, grounding []types.GroundingReference) packParts {
	targets := task.GetOr(tc, "targets", task.NegotiationTargets{})
	fallbacks := task.GetOr(tc, "fallbacks", task.NegotiationFallbacks{})
	plan := task.GetOr(tc, "playbook", task.NegotiationPlan{})
	leverage := task.GetOr[[]task.LeveragePoint](tc, "leverage_points", nil)
	comparison := task.GetOr(tc, "comparison", task.BidComparison{})
	anomalies := task.GetOr[[]task.PriceAnomaly](tc, "price_anomalies", nil)

	summary := plan.Summary
	if len(summary) > 200 {
		summary = summary[:200]
	}

	leverageText := fmt.Sprintf("%d leverage points identified.", len(leverage))
	if len(leverage) > 0 {
		leverageText += fmt.Sprintf(" Strongest: %s", leverage[0].Description)
	}

	artifacts := []types.Artifact{
		artifact.NewBuilder(types.ArtifactNegotiationPlan, types.AgentNegotiationSupport).
			WithTitle("Negotiation Plan").
			WithContent(map[string]any{
				"targets":   targets,
				"fallbacks": fallbacks,
				"playbook":  plan,
			}).
			WithContentText(fmt.Sprintf("Target price: $%.0f. %s", targets.PriceTarget, summary)).
			WithGrounding(grounding).
			Build(),
		artifact.NewBuilder(types.ArtifactLeverageSummary, types.AgentNegotiationSupport).
			WithTitle("Leverage Points").
			WithContent(map[string]any{"leverage_points": leverage}).
			WithContentText(leverageText).
			Build(),
		artifact.NewBuilder(types.ArtifactTargetTerms, types.AgentNegotiationSupport).
			WithTitle("Target Terms & Fallbacks").
			WithContent(map[string]any{
				"targets":          targets,
				"fallbacks":        fallbacks,
				"bid_comparison":   comparison,
				"price_spread_pct": comparison.PriceSpreadPct,
			}).
			WithContentText(fmt.Sprintf(
				"Price target: $%.0f. Fallback: $%.0f. Walk-away: $%.0f",
				targets.PriceTarget, fallbacks.PriceFallback, fallbacks.WalkawayPrice)).
			WithGrounding(grounding).
			Build(),
	}

	nextActions := []types.NextAction{
		artifact.BuildNextAction("Schedule negotiation",
			"Plan in place - ready to engage supplier",
			types.AgentNegotiationSupport, "", "", nil),
	}
	if len(leverage) > 0 {
		nextActions = append(nextActions, artifact.BuildNextAction(
			"Validate benchmarks",
			"Confirm market rate data before negotiation",
			types.AgentNegotiationSupport, "", "", nil))
	}
	nextActions = append(nextActions, artifact.BuildNextAction(
		"Prepare alternatives",
		"Have backup suppliers ready to strengthen position",
		types.AgentNegotiationSupport, "", "", nil))

	var risks []types.RiskItem
	for _, a := range anomalies {
		risks = append(risks, artifact.BuildRisk(types.RiskMedium,
			fmt.Sprintf("%s: %s", a.Supplier, a.Concern),
			"Verify scope alignment before proceeding"))
	}
	if comparison.PriceSpreadPct > 30 {
		risks = append(risks, artifact.BuildRisk(types.RiskHigh,
			fmt.Sprintf("Large price spread (%.0f%%) may indicate scope differences",
				comparison.PriceSpreadPct),
			"Ensure all bidders understood requirements consistently"))
	}

	return packParts{
		artifacts:   artifacts,
		nextActions: nextActions,
		risks:       risks,
		notes:       []string{insightsOnlyNote},
		output: map[string]any{
			"negotiation_objectives": targets.AdditionalAsks,
			"supplier_id":            task.GetOr(tc, "supplier_id", ""),
			"target_terms":           targets,
			"leverage_points":        leverage,
		},
	}
}
