package agent

import (
	"fmt"

	"sourcepilot/internal/artifact"
	"sourcepilot/internal/task"
	"sourcepilot/internal/types"
)

// buildContractPack packages term extraction into the key terms extract, the
// validation report, and the implementation handoff packet.
func buildContractPack(tc *task.Context, grounding []types.GroundingReference) packParts {
	keyTerms := task.GetOr(tc, "key_terms", task.KeyTerms{})
	validations := task.GetOr[[]task.TermValidation](tc, "validation_results", nil)
	issues := task.GetOr[[]task.TermIssue](tc, "issues", nil)
	isCompliant := task.GetOr(tc, "is_compliant", true)
	handoff := task.GetOr(tc, "handoff_packet", task.HandoffPacket{})
	alignment := task.GetOr(tc, "alignment_summary", "")

	sla := keyTerms.SLA.ResponseTime
	if sla == "" {
		sla = "N/A"
	}

	validationText := "All terms compliant."
	if len(issues) > 0 {
		validationText = fmt.Sprintf("Validation found issues. %d issues identified.", len(issues))
	}

	handoffText := alignment
	if handoffText == "" {
		handoffText = "Handoff packet ready for implementation team."
	}

	artifacts := []types.Artifact{
		artifact.NewBuilder(types.ArtifactKeyTermsExtract, types.AgentContractSupport).
			WithTitle("Key Contract Terms").
			WithContent(map[string]any{
				"pricing":     keyTerms.Pricing,
				"term":        keyTerms.Term,
				"sla":         keyTerms.SLA,
				"liability":   keyTerms.Liability,
				"termination": keyTerms.Termination,
			}).
			WithContentText(fmt.Sprintf(
				"Contract value: $%.0f. Term: %d months. SLA: %s response.",
				keyTerms.Pricing.AnnualValue, keyTerms.Term.DurationMonths, sla)).
			WithGrounding(grounding).
			Build(),
		artifact.NewBuilder(types.ArtifactTermValidation, types.AgentContractSupport).
			WithTitle("Term Validation Report").
			WithContent(map[string]any{
				"validation_results": validations,
				"issues":             issues,
				"is_compliant":       isCompliant,
			}).
			WithContentText(validationText).
			WithGrounding(headGrounding(grounding, 3)).
			Build(),
		artifact.NewBuilder(types.ArtifactHandoffPacket, types.AgentContractSupport).
			WithTitle("Implementation Handoff Packet").
			WithContent(map[string]any{
				"contract_summary": handoff.Contract,
				"key_contacts":     handoff.KeyContacts,
				"sla_summary":      handoff.SLASummary,
				"payment_schedule": handoff.PaymentSchedule,
				"critical_dates":   handoff.CriticalDates,
				"risk_items":       handoff.RiskItems,
			}).
			WithContentText(handoffText).
			WithGrounding(grounding).
			Build(),
	}

	var nextActions []types.NextAction
	if !isCompliant {
		for i, issue := range issues {
			if i >= 2 {
				break
			}
			field := issue.Field
			if field == "" {
				field = "term issue"
			}
			why := issue.Issue
			if why == "" {
				why = "Compliance issue needs resolution"
			}
			nextActions = append(nextActions, artifact.BuildNextAction(
				fmt.Sprintf("Resolve: %s", field), why,
				types.AgentContractSupport, "", "", nil))
		}
	} else {
		nextActions = append(nextActions, artifact.BuildNextAction(
			"Approve contract terms",
			"All terms validated and compliant",
			types.AgentContractSupport, "", "", nil))
	}
	nextActions = append(nextActions,
		artifact.BuildNextAction("Schedule contract signing",
			"Coordinate with legal and supplier",
			types.AgentContractSupport, "", "", nil),
		artifact.BuildNextAction("Initiate implementation planning",
			"Prepare for rollout after contract execution",
			types.AgentContractSupport, "", "", nil))

	var risks []types.RiskItem
	for _, issue := range issues {
		severity := types.RiskSeverity(issue.Severity)
		if severity == "" {
			severity = types.RiskMedium
		}
		risks = append(risks, artifact.BuildRisk(severity, issue.Issue,
			"Negotiate correction before contract execution"))
	}

	return packParts{
		artifacts:   artifacts,
		nextActions: nextActions,
		risks:       risks,
		output: map[string]any{
			"key_terms":      keyTerms,
			"is_compliant":   isCompliant,
			"handoff_packet": handoff,
		},
	}
}
