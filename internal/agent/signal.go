package agent

import (
	"fmt"
	"strings"

	"sourcepilot/internal/artifact"
	"sourcepilot/internal/task"
	"sourcepilot/internal/types"
)

// buildSignalPack packages the signal scan into a signal report plus, when
// recommendations exist, an autoprep bundle.
func buildSignalPack(tc *task.Context, grounding []types.GroundingReference) packParts {
	signals := task.GetOr[[]task.Signal](tc, "filtered_signals", nil)
	urgency := task.GetOr(tc, "urgency_score", 5)
	summary := task.GetOr(tc, "summary", "Signal scan complete.")
	if summary == "" {
		summary = "Signal scan complete."
	}

	highSeverity := 0
	for _, s := range signals {
		if s.Severity == "high" || s.Severity == "critical" {
			highSeverity++
		}
	}

	artifacts := []types.Artifact{
		artifact.NewBuilder(types.ArtifactSignalReport, types.AgentSourcingSignal).
			WithTitle("Sourcing Signal Report").
			WithContent(map[string]any{
				"signals":             signals,
				"urgency_score":       urgency,
				"total_signals":       len(signals),
				"high_severity_count": highSeverity,
			}).
			WithContentText(summary).
			WithGrounding(grounding).
			Build(),
	}

	recommendations := task.GetOr[[]task.Recommendation](tc, "recommendations", nil)
	requiredInputs := task.GetOr[[]string](tc, "required_inputs", nil)

	if len(recommendations) > 0 {
		inputsText := "None"
		if len(requiredInputs) > 0 {
			inputsText = strings.Join(requiredInputs, ", ")
		}
		artifacts = append(artifacts,
			artifact.NewBuilder(types.ArtifactAutoprep, types.AgentSourcingSignal).
				WithTitle("Autoprep Recommendations").
				WithContent(map[string]any{
					"recommendations": recommendations,
					"required_inputs": requiredInputs,
				}).
				WithContentText(fmt.Sprintf(
					"Identified %d recommended actions. Required inputs: %s",
					len(recommendations), inputsText)).
				Build())
	}

	var nextActions []types.NextAction
	for i, rec := range recommendations {
		if i >= 3 {
			break
		}
		label := rec.Action
		if label == "" {
			label = "Review signal"
		}
		nextActions = append(nextActions, artifact.BuildNextAction(
			label, rec.Reason, types.AgentSourcingSignal,
			"produce_autoprep_recommendations", "", nil))
	}
	if urgency >= 7 {
		nextActions = append(nextActions, artifact.BuildNextAction(
			"Score suppliers",
			"High urgency signals detected - evaluate alternatives",
			types.AgentSourcingSignal, "", "", nil))
	}

	var risks []types.RiskItem
	for _, s := range signals {
		if s.SignalType != "contract_expiry" {
			continue
		}
		if s.DaysUntilExpiry < 30 {
			risks = append(risks, artifact.BuildRisk(types.RiskHigh,
				fmt.Sprintf("Contract expires in %d days", s.DaysUntilExpiry),
				"Initiate renewal or sourcing process immediately"))
		}
		break
	}

	return packParts{
		artifacts:   artifacts,
		nextActions: nextActions,
		risks:       risks,
		output: map[string]any{
			"signals":       signals,
			"urgency_score": urgency,
			"summary":       task.GetOr(tc, "summary", ""),
		},
	}
}
