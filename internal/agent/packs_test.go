package agent

import (
	"context"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"sourcepilot/internal/task"
	"sourcepilot/internal/types"
)

func TestScoringAgentRanksAndShortlists(t *testing.T) {
	retriever := &stubRetriever{
		performance: map[string][]map[string]any{
			"SUP-001": {{
				"record_id": "p1", "supplier_id": "SUP-001", "supplier_name": "TechCorp",
				"overall_score": 8.8, "quality_score": 9.0, "delivery_score": 8.5,
				"cost_variance": -2.0, "responsiveness_score": 8.0,
				"trend": "stable", "risk_level": "low",
			}},
			"SUP-002": {{
				"record_id": "p2", "supplier_id": "SUP-002", "supplier_name": "Global IT",
				"overall_score": 6.0, "quality_score": 6.0, "delivery_score": 5.5,
				"cost_variance": 4.0, "responsiveness_score": 6.0,
				"trend": "declining", "risk_level": "high",
			}},
		},
		slaEvents: map[string][]map[string]any{
			"SUP-002": {
				{"event_id": "e1", "event_type": "breach", "severity": "high"},
				{"event_id": "e2", "event_type": "breach", "severity": "high"},
				{"event_id": "e3", "event_type": "breach", "severity": "critical"},
				{"event_id": "e4", "event_type": "breach", "severity": "high"},
				{"event_id": "e5", "event_type": "breach", "severity": "high"},
				{"event_id": "e6", "event_type": "breach", "severity": "high"},
			},
		},
	}
	llm := &stubLLM{response: "Strong performance across all criteria.", tokens: 30}
	a := newTestAgent(t, types.AgentSupplierScoring, task.Deps{Retriever: retriever, LLM: llm})

	res := a.Execute(context.Background(), map[string]any{"category_id": "IT_SERVICES"},
		"", "score the suppliers")
	if !res.Success {
		t.Fatalf("Success = false, error = %q", res.Error)
	}
	if len(res.Pack.Artifacts) != 3 {
		t.Fatalf("artifacts = %d, want criteria + scorecard + shortlist", len(res.Pack.Artifacts))
	}

	scorecard := res.Pack.Artifacts[1]
	if scorecard.Type != types.ArtifactSupplierScorecard {
		t.Errorf("artifact[1] type = %s", scorecard.Type)
	}
	if n, _ := scorecard.Content["eligible_count"].(int); n != 1 {
		t.Errorf("eligible_count = %d, want TechCorp only", n)
	}
	if n, _ := scorecard.Content["ineligible_count"].(int); n != 1 {
		t.Errorf("ineligible_count = %d, want Global IT excluded by breaches", n)
	}

	shortlist := res.Pack.Artifacts[2]
	if !strings.Contains(shortlist.ContentText, "TechCorp") {
		t.Errorf("shortlist text = %q, want TechCorp as leader", shortlist.ContentText)
	}
	entries, ok := shortlist.Content["shortlist"].([]shortlistEntry)
	if !ok || len(entries) != 1 {
		t.Fatalf("shortlist entries = %#v", shortlist.Content["shortlist"])
	}
	if entries[0].Explanation != "Strong performance across all criteria." {
		t.Errorf("explanation = %q", entries[0].Explanation)
	}

	if len(res.Pack.NextActions) == 0 || res.Pack.NextActions[0].Label != "Proceed to RFx" {
		t.Errorf("next actions = %v, want Proceed to RFx first", res.Pack.NextActions)
	}
	if len(res.Pack.Risks) != 1 || !strings.Contains(res.Pack.Risks[0].Description, "Global IT") {
		t.Errorf("risks = %v, want one for Global IT's eligibility issue", res.Pack.Risks)
	}

	if res.Output["recommendation"] != shortlist.ContentText {
		t.Error("output recommendation should mirror the shortlist text")
	}
}

func TestRfxAgentDraftsDocument(t *testing.T) {
	llm := &stubLLM{
		response: "Q1: What is your implementation timeline?\nPurpose: Assess delivery capability\n" +
			"Q2: Describe your support model.\nPurpose: Understand SLA coverage",
		tokens: 50,
	}
	a := newTestAgent(t, types.AgentRfxDraft,
		task.Deps{Retriever: &stubRetriever{}, LLM: llm})

	caseContext := map[string]any{
		"category_id":          "IT_SERVICES",
		"requirements_defined": true,
		"estimated_value":      200000.0,
	}
	res := a.Execute(context.Background(), caseContext, "", "draft the rfx")
	if !res.Success {
		t.Fatalf("Success = false, error = %q", res.Error)
	}
	if len(res.Pack.Artifacts) != 3 {
		t.Fatalf("artifacts = %d", len(res.Pack.Artifacts))
	}

	path := res.Pack.Artifacts[0]
	if path.Title != "RFx Path: RFP" {
		t.Errorf("path title = %q", path.Title)
	}

	draft := res.Pack.Artifacts[1]
	if score, _ := draft.Content["completeness_score"].(int); score != 80 {
		t.Errorf("completeness = %d, want 80 (4 required sections still in draft)", score)
	}
	if complete, _ := draft.Content["is_complete"].(bool); !complete {
		t.Error("is_complete = false, want true: no required section missing")
	}

	tracker := res.Pack.Artifacts[2]
	if n, _ := tracker.Content["total_questions"].(int); n != 2 {
		t.Errorf("total_questions = %d, want 2 parsed from narration", n)
	}

	if res.Pack.NextActions[0].Label != "Review and approve draft" {
		t.Errorf("first next action = %q", res.Pack.NextActions[0].Label)
	}
	if len(res.Pack.Risks) != 0 {
		t.Errorf("risks = %v, want none at 80%% completeness", res.Pack.Risks)
	}
}

func TestNegotiationAgentBuildsPlanFromSampleBids(t *testing.T) {
	llm := &stubLLM{response: "Open with the competitive spread and ask for 5% off.", tokens: 80}
	a := newTestAgent(t, types.AgentNegotiationSupport, task.Deps{LLM: llm})

	res := a.Execute(context.Background(), map[string]any{"category_id": "IT_SERVICES"},
		"", "prepare the negotiation")
	if !res.Success {
		t.Fatalf("Success = false, error = %q", res.Error)
	}
	if len(res.Pack.Artifacts) != 3 {
		t.Fatalf("artifacts = %d", len(res.Pack.Artifacts))
	}
	if res.Pack.Artifacts[0].Type != types.ArtifactNegotiationPlan {
		t.Errorf("artifact[0] type = %s", res.Pack.Artifacts[0].Type)
	}

	// Sample bids bottom out at 425000: target is 5% below, walk-away 10% above.
	terms := res.Pack.Artifacts[2]
	targets, ok := terms.Content["targets"].(task.NegotiationTargets)
	if !ok {
		t.Fatalf("targets content = %#v", terms.Content["targets"])
	}
	approx := cmpopts.EquateApprox(0, 0.01)
	if diff := cmp.Diff(425000*0.95, targets.PriceTarget, approx); diff != "" {
		t.Errorf("price target = %.0f", targets.PriceTarget)
	}
	fallbacks := terms.Content["fallbacks"].(task.NegotiationFallbacks)
	if diff := cmp.Diff(425000*1.10, fallbacks.WalkawayPrice, approx); diff != "" {
		t.Errorf("walkaway = %.0f", fallbacks.WalkawayPrice)
	}

	if len(res.Pack.Notes) != 1 || !strings.Contains(res.Pack.Notes[0], "insights only") {
		t.Errorf("notes = %v, want the insights-only disclaimer", res.Pack.Notes)
	}
	if len(res.Pack.Risks) != 0 {
		t.Errorf("risks = %v, want none for a tight two-bid spread", res.Pack.Risks)
	}
}

func TestContractAgentExtractsAndHandsOff(t *testing.T) {
	retriever := &stubRetriever{
		chunks: []types.RetrievedChunk{{
			Content:  "Master services agreement. Annual fees of $480,000 payable Net 30. Uptime guarantee 99.5%.",
			Metadata: types.ChunkMetadata{DocumentID: "DOC-CTR-1", Filename: "msa.pdf", DocumentType: "Contract"},
		}},
	}
	llm := &stubLLM{response: "Terms align with policy across all checked clauses.", tokens: 35}
	a := newTestAgent(t, types.AgentContractSupport, task.Deps{Retriever: retriever, LLM: llm})

	caseContext := map[string]any{
		"supplier_id":     "SUP-001",
		"estimated_value": 480000.0,
	}
	res := a.Execute(context.Background(), caseContext, "", "extract the contract terms")
	if !res.Success {
		t.Fatalf("Success = false, error = %q", res.Error)
	}
	if len(res.Pack.Artifacts) != 3 {
		t.Fatalf("artifacts = %d", len(res.Pack.Artifacts))
	}

	keyTerms := res.Pack.Artifacts[0]
	if keyTerms.ContentText != "Contract value: $480000. Term: 36 months. SLA: 4 hours response." {
		t.Errorf("key terms text = %q", keyTerms.ContentText)
	}

	validation := res.Pack.Artifacts[1]
	if compliant, _ := validation.Content["is_compliant"].(bool); !compliant {
		t.Error("standard terms should validate as compliant")
	}
	if validation.ContentText != "All terms compliant." {
		t.Errorf("validation text = %q", validation.ContentText)
	}

	handoff := res.Pack.Artifacts[2]
	if handoff.ContentText != "Terms align with policy across all checked clauses." {
		t.Errorf("handoff text = %q", handoff.ContentText)
	}

	if res.Pack.NextActions[0].Label != "Approve contract terms" {
		t.Errorf("first next action = %q", res.Pack.NextActions[0].Label)
	}
	if len(res.Pack.Risks) != 0 {
		t.Errorf("risks = %v, want none when compliant", res.Pack.Risks)
	}
}

func TestImplementationAgentPlansRollout(t *testing.T) {
	llm := &stubLLM{response: "We secured $150,000 of value over three years.", tokens: 60}
	a := newTestAgent(t, types.AgentImplementation, task.Deps{LLM: llm})

	caseContext := map[string]any{
		"category_id":        "IT_SERVICES",
		"new_contract_value": 450000.0,
		"old_contract_value": 500000.0,
		"term_years":         3,
	}
	res := a.Execute(context.Background(), caseContext, "", "plan the rollout")
	if !res.Success {
		t.Fatalf("Success = false, error = %q", res.Error)
	}

	checklist := res.Pack.Artifacts[0]
	if n, _ := checklist.Content["total_items"].(int); n != 11 {
		t.Errorf("total_items = %d, want 11", n)
	}
	if !strings.Contains(checklist.ContentText, "4 phases") {
		t.Errorf("checklist text = %q", checklist.ContentText)
	}

	value := res.Pack.Artifacts[2]
	if annual, _ := value.Content["annual_savings"].(float64); annual != 50000 {
		t.Errorf("annual savings = %.0f", annual)
	}
	if total, _ := value.Content["total_savings"].(float64); total != 150000 {
		t.Errorf("total savings = %.0f", total)
	}

	first := res.Pack.NextActions[0]
	if first.Label != "Finalize contract execution" || first.Owner != "Legal" {
		t.Errorf("first next action = %q owner %q", first.Label, first.Owner)
	}

	if len(res.Pack.Risks) != 3 {
		t.Errorf("risks = %d, want the 3 configured triggers", len(res.Pack.Risks))
	}
}
