package agent

import (
	"fmt"

	"sourcepilot/internal/artifact"
	"sourcepilot/internal/task"
	"sourcepilot/internal/types"
)

// buildRfxPack packages the drafting run into the path determination, the
// draft document, and the question tracker.
func buildRfxPack(tc *task.Context, grounding []types.GroundingReference) packParts {
	rfxType := task.GetOr(tc, "rfx_type", "RFP")
	rationale := task.GetOr[[]string](tc, "rationale", nil)
	sections := task.GetOr[[]task.RfxSection](tc, "sections", nil)
	completeness := task.GetOr(tc, "completeness_score", 0)
	isComplete := task.GetOr(tc, "is_complete", false)
	missingSections := task.GetOr[[]string](tc, "missing_sections", nil)
	tracker := task.GetOr[[]task.QAItem](tc, "qa_tracker", nil)

	pathText := fmt.Sprintf("Recommended path: %s.", rfxType)
	if len(rationale) > 0 {
		pathText += " " + rationale[0]
	}

	artifacts := []types.Artifact{
		artifact.NewBuilder(types.ArtifactRfxPath, types.AgentRfxDraft).
			WithTitle(fmt.Sprintf("RFx Path: %s", rfxType)).
			WithContent(map[string]any{
				"rfx_type":     rfxType,
				"rationale":    rationale,
				"missing_info": task.GetOr[[]string](tc, "missing_info", nil),
			}).
			WithContentText(pathText).
			WithGrounding(headGrounding(grounding, 2)).
			Build(),
		artifact.NewBuilder(types.ArtifactRfxDraftPack, types.AgentRfxDraft).
			WithTitle(fmt.Sprintf("%s Draft Document", rfxType)).
			WithContent(map[string]any{
				"rfx_type":            rfxType,
				"sections":            sections,
				"completeness_score":  completeness,
				"is_complete":         isComplete,
				"missing_sections":    missingSections,
				"incomplete_sections": task.GetOr[[]string](tc, "incomplete_sections", nil),
			}).
			WithContentText(fmt.Sprintf("%s draft with %d sections. Completeness: %d%%",
				rfxType, len(sections), completeness)).
			WithGrounding(grounding).
			Build(),
		artifact.NewBuilder(types.ArtifactRfxQaTracker, types.AgentRfxDraft).
			WithTitle("RFx Q&A Tracker").
			WithContent(map[string]any{
				"tracker":         tracker,
				"questions":       task.GetOr[[]task.DraftQuestion](tc, "draft_questions", nil),
				"total_questions": len(tracker),
			}).
			WithContentText(fmt.Sprintf(
				"Q&A tracker with %d questions ready for supplier responses.", len(tracker))).
			Build(),
	}

	var nextActions []types.NextAction
	if !isComplete {
		label := "Complete draft sections"
		if len(missingSections) > 0 {
			label = fmt.Sprintf("Complete %s", missingSections[0])
		}
		nextActions = append(nextActions, artifact.BuildNextAction(label,
			"Required sections need content before distribution",
			types.AgentRfxDraft, "", "", nil))
	} else {
		nextActions = append(nextActions, artifact.BuildNextAction(
			"Review and approve draft",
			"Draft is complete and ready for review",
			types.AgentRfxDraft, "", "", nil))
	}
	nextActions = append(nextActions,
		artifact.BuildNextAction("Add evaluation criteria",
			"Define scoring methodology for responses",
			types.AgentRfxDraft, "", "", nil),
		artifact.BuildNextAction("Set submission deadline",
			"Establish timeline for supplier responses",
			types.AgentRfxDraft, "", "", nil))

	var risks []types.RiskItem
	if completeness < 70 {
		risks = append(risks, artifact.BuildRisk(types.RiskMedium,
			fmt.Sprintf("RFx only %d%% complete", completeness),
			"Complete remaining sections before distribution"))
	}

	return packParts{
		artifacts:   artifacts,
		nextActions: nextActions,
		risks:       risks,
		output: map[string]any{
			"rfx_type":           rfxType,
			"sections":           sections,
			"completeness_score": completeness,
		},
	}
}
