package agent

import (
	"fmt"
	"strings"

	"sourcepilot/internal/artifact"
	"sourcepilot/internal/task"
	"sourcepilot/internal/types"
)

// shortlistEntry is a scored supplier annotated with its explanation.
type shortlistEntry struct {
	task.ScoredSupplier
	Explanation string `json:"explanation"`
}

// buildScoringPack packages the scoring run into the evaluation scorecard,
// the full supplier scorecard, and the recommended shortlist.
func buildScoringPack(tc *task.Context, grounding []types.GroundingReference) packParts {
	criteria := task.GetOr[[]task.Criterion](tc, "criteria", nil)
	eligible := task.GetOr[[]task.ScoredSupplier](tc, "eligible_suppliers", nil)
	ineligible := task.GetOr[[]task.ScoredSupplier](tc, "ineligible_suppliers", nil)
	explanations := task.GetOr(tc, "explanations", map[string]string{})

	names := make([]string, 0, len(criteria))
	for _, c := range criteria {
		names = append(names, c.Name)
	}

	allSuppliers := make([]task.ScoredSupplier, 0, len(eligible)+len(ineligible))
	allSuppliers = append(allSuppliers, eligible...)
	allSuppliers = append(allSuppliers, ineligible...)

	shortlist := make([]shortlistEntry, 0, 3)
	for i, s := range eligible {
		if i >= 3 {
			break
		}
		shortlist = append(shortlist, shortlistEntry{
			ScoredSupplier: s,
			Explanation:    explanations[s.SupplierID],
		})
	}

	var topChoice any
	topChoiceID := ""
	shortlistText := "No eligible suppliers found."
	shortlistIDs := make([]string, 0, len(shortlist))
	for _, s := range shortlist {
		shortlistIDs = append(shortlistIDs, s.SupplierID)
	}
	if len(shortlist) > 0 {
		topChoice = shortlist[0]
		topChoiceID = shortlist[0].SupplierID
		shortlistText = fmt.Sprintf("Top %d suppliers recommended. Leader: %s (%.1f/10)",
			len(shortlist), shortlist[0].SupplierName, shortlist[0].TotalScore)
	}

	artifacts := []types.Artifact{
		artifact.NewBuilder(types.ArtifactEvaluationScorecard, types.AgentSupplierScoring).
			WithTitle("Evaluation Criteria").
			WithContent(map[string]any{"criteria": criteria}).
			WithContentText(fmt.Sprintf("Evaluation based on %d criteria: %s",
				len(criteria), strings.Join(names, ", "))).
			WithGrounding(headGrounding(grounding, 2)).
			Build(),
		artifact.NewBuilder(types.ArtifactSupplierScorecard, types.AgentSupplierScoring).
			WithTitle("Supplier Scorecard").
			WithContent(map[string]any{
				"suppliers":        allSuppliers,
				"eligible_count":   len(eligible),
				"ineligible_count": len(ineligible),
			}).
			WithContentText(fmt.Sprintf("Evaluated %d suppliers. %d eligible, %d ineligible.",
				len(allSuppliers), len(eligible), len(ineligible))).
			WithGrounding(grounding).
			Build(),
		artifact.NewBuilder(types.ArtifactSupplierShortlist, types.AgentSupplierScoring).
			WithTitle("Recommended Shortlist").
			WithContent(map[string]any{
				"shortlist":  shortlist,
				"top_choice": topChoice,
			}).
			WithContentText(shortlistText).
			WithGrounding(grounding).
			Build(),
	}

	var nextActions []types.NextAction
	if len(eligible) > 0 {
		nextActions = append(nextActions,
			artifact.BuildNextAction("Proceed to RFx",
				fmt.Sprintf("Shortlist of %d suppliers ready for sourcing", len(eligible)),
				types.AgentSupplierScoring, "", "", nil),
			artifact.BuildNextAction("Request additional data",
				"Gather more information for higher confidence scoring",
				types.AgentSupplierScoring, "", "", nil))
	} else {
		nextActions = append(nextActions,
			artifact.BuildNextAction("Expand supplier search",
				"No eligible suppliers found - broaden criteria",
				types.AgentSupplierScoring, "", "", nil))
	}

	var risks []types.RiskItem
	for _, s := range ineligible {
		if len(risks) >= 3 {
			break
		}
		if len(s.EligibilityIssues) == 0 {
			continue
		}
		risks = append(risks, artifact.BuildRisk(types.RiskMedium,
			fmt.Sprintf("%s: %s", s.SupplierName, s.EligibilityIssues[0]),
			"Address eligibility issues or remove from consideration"))
	}

	return packParts{
		artifacts:   artifacts,
		nextActions: nextActions,
		risks:       risks,
		output: map[string]any{
			"shortlisted_suppliers":    shortlist,
			"shortlisted_supplier_ids": shortlistIDs,
			"top_choice_supplier_id":   topChoiceID,
			"evaluation_criteria":      criteria,
			"recommendation":           shortlistText,
		},
	}
}
