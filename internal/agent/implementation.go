package agent

import (
	"fmt"

	"sourcepilot/internal/artifact"
	"sourcepilot/internal/task"
	"sourcepilot/internal/types"
)

// buildImplementationPack packages rollout planning into the checklist, the
// early indicators report, and the value capture template.
func buildImplementationPack(tc *task.Context, grounding []types.GroundingReference) packParts {
	checklist := task.GetOr[[]task.ChecklistPhase](tc, "checklist", nil)
	totalItems := task.GetOr(tc, "total_items", 0)
	duration := task.GetOr(tc, "estimated_duration_days", 90)
	indicators := task.GetOr[[]task.EarlyIndicator](tc, "early_indicators", nil)
	triggers := task.GetOr[[]task.RiskTrigger](tc, "risk_triggers", nil)
	annual := task.GetOr(tc, "annual_savings", 0.0)
	total := task.GetOr(tc, "total_savings", 0.0)
	pct := task.GetOr(tc, "savings_percentage", 0.0)

	artifacts := []types.Artifact{
		artifact.NewBuilder(types.ArtifactImplChecklist, types.AgentImplementation).
			WithTitle("Implementation Checklist").
			WithContent(map[string]any{
				"checklist":               checklist,
				"total_items":             totalItems,
				"estimated_duration_days": duration,
			}).
			WithContentText(fmt.Sprintf(
				"Rollout checklist with %d items across %d phases. Estimated duration: %d days.",
				totalItems, len(checklist), duration)).
			WithGrounding(grounding).
			Build(),
		artifact.NewBuilder(types.ArtifactEarlyIndicators, types.AgentImplementation).
			WithTitle("Early Success Indicators").
			WithContent(map[string]any{
				"indicators":    indicators,
				"risk_triggers": triggers,
			}).
			WithContentText(fmt.Sprintf(
				"%d KPIs defined for early monitoring. %d risk triggers configured.",
				len(indicators), len(triggers))).
			Build(),
		artifact.NewBuilder(types.ArtifactValueCapture, types.AgentImplementation).
			WithTitle("Value Capture Template").
			WithContent(map[string]any{
				"annual_savings":      annual,
				"total_savings":       total,
				"savings_percentage":  pct,
				"savings_breakdown":   task.GetOr(tc, "savings_breakdown", task.SavingsBreakdown{}),
				"reporting_templates": task.GetOr(tc, "reporting_templates", task.ReportingTemplates{}),
			}).
			WithContentText(fmt.Sprintf(
				"Projected annual savings: $%.0f (%.1f%%). Total over term: $%.0f",
				annual, pct, total)).
			WithGrounding(grounding).
			Build(),
	}

	var nextActions []types.NextAction
	if len(checklist) > 0 && len(checklist[0].Items) > 0 {
		first := checklist[0].Items[0]
		owner := first.Owner
		if owner == "" {
			owner = "Project Manager"
		}
		nextActions = append(nextActions, artifact.BuildNextAction(
			first.Name,
			fmt.Sprintf("First step in %s phase", checklist[0].Phase),
			types.AgentImplementation, "", owner, nil))
	}
	nextActions = append(nextActions,
		artifact.BuildNextAction("Schedule kick-off meeting",
			"Align stakeholders and confirm timeline",
			types.AgentImplementation, "", "", nil),
		artifact.BuildNextAction("Set up dashboards",
			"Enable KPI tracking from day one",
			types.AgentImplementation, "", "", nil))

	var risks []types.RiskItem
	for i, trigger := range triggers {
		if i >= 3 {
			break
		}
		mitigation := trigger.Action
		if mitigation == "" {
			mitigation = "Monitor and escalate"
		}
		risks = append(risks, artifact.BuildRisk(types.RiskMedium,
			fmt.Sprintf("%s: %s", trigger.Indicator, trigger.Threshold), mitigation))
	}

	return packParts{
		artifacts:   artifacts,
		nextActions: nextActions,
		risks:       risks,
		output: map[string]any{
			"checklist":        checklist,
			"annual_savings":   annual,
			"total_savings":    total,
			"early_indicators": indicators,
		},
	}
}
