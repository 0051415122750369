package artifact

import (
	"strings"
	"testing"

	"sourcepilot/internal/types"
)

func ref(id string) types.GroundingReference {
	return types.GroundingReference{
		RefID:      id,
		RefType:    types.RefDocument,
		SourceName: "doc-" + id,
	}
}

func TestMergeGroundingDedupesByRefID(t *testing.T) {
	a := []types.GroundingReference{ref("r1"), ref("r2")}
	b := []types.GroundingReference{ref("r2"), ref("r3")}

	merged := MergeGrounding(a, b)
	if len(merged) != 3 {
		t.Fatalf("expected 3 refs, got %d", len(merged))
	}
	want := []string{"r1", "r2", "r3"}
	for i, w := range want {
		if merged[i].RefID != w {
			t.Errorf("merged[%d] = %s, want %s", i, merged[i].RefID, w)
		}
	}
}

func TestMergeGroundingFirstOccurrenceWins(t *testing.T) {
	first := types.GroundingReference{RefID: "r1", SourceName: "original"}
	second := types.GroundingReference{RefID: "r1", SourceName: "duplicate"}

	merged := MergeGrounding(
		[]types.GroundingReference{first},
		[]types.GroundingReference{second},
	)
	if len(merged) != 1 {
		t.Fatalf("expected 1 ref, got %d", len(merged))
	}
	if merged[0].SourceName != "original" {
		t.Errorf("first occurrence should win, got %s", merged[0].SourceName)
	}
}

func TestMergeGroundingEmpty(t *testing.T) {
	merged := MergeGrounding()
	if merged == nil || len(merged) != 0 {
		t.Errorf("expected empty non-nil slice, got %v", merged)
	}
}

func TestVerificationStatusFor(t *testing.T) {
	if got := VerificationStatusFor(nil); got != types.Unverified {
		t.Errorf("0 refs = %s, want UNVERIFIED", got)
	}
	if got := VerificationStatusFor([]types.GroundingReference{ref("r1")}); got != types.Partial {
		t.Errorf("1 ref = %s, want PARTIAL", got)
	}
	if got := VerificationStatusFor([]types.GroundingReference{ref("r1"), ref("r2")}); got != types.Verified {
		t.Errorf("2 refs = %s, want VERIFIED", got)
	}
}

func TestBuilderDerivesVerification(t *testing.T) {
	result := &types.TaskResult{TaskName: "compare_bids", Success: true}
	result.AddGrounding("bid-1", types.RefBid, "Bid: supplier 1", "")
	result.AddGrounding("bid-2", types.RefBid, "Bid: supplier 2", "")

	art := NewBuilder(types.ArtifactNegotiationPlan, types.AgentNegotiationSupport).
		WithTitle("Negotiation Plan").
		WithContent(map[string]any{"targets": []string{"price", "sla"}}).
		FromTaskResult(result).
		Build()

	if art.VerificationStatus != types.Verified {
		t.Errorf("status = %s, want VERIFIED", art.VerificationStatus)
	}
	if art.CreatedByTask != "compare_bids" {
		t.Errorf("created_by_task = %s", art.CreatedByTask)
	}
	if art.CreatedByAgent != types.AgentNegotiationSupport {
		t.Errorf("created_by_agent = %s", art.CreatedByAgent)
	}
	if !strings.HasPrefix(art.ArtifactID, "ART-NEGO-") {
		t.Errorf("artifact id should carry type prefix, got %s", art.ArtifactID)
	}
}

func TestBuilderUngroundedIsUnverified(t *testing.T) {
	art := NewBuilder(types.ArtifactStatusSummary, types.AgentSupervisor).
		WithTitle("Status").
		Build()
	if art.VerificationStatus != types.Unverified {
		t.Errorf("status = %s, want UNVERIFIED", art.VerificationStatus)
	}
}

func TestBuildPackMergesGrounding(t *testing.T) {
	a1 := NewBuilder(types.ArtifactSignalReport, types.AgentSourcingSignal).
		WithGrounding([]types.GroundingReference{ref("r1"), ref("r2")}).
		Build()
	a2 := NewBuilder(types.ArtifactSignalSummary, types.AgentSourcingSignal).
		WithGrounding([]types.GroundingReference{ref("r2"), ref("r3")}).
		Build()

	pack := BuildPack(types.AgentSourcingSignal,
		[]types.Artifact{a1, a2}, nil, nil, nil,
		[]string{"detect_contract_expiry_signals"}, nil)

	if len(pack.GroundedIn) != 3 {
		t.Errorf("pack grounding should dedupe to 3, got %d", len(pack.GroundedIn))
	}
	if pack.PackID == "" || !strings.HasPrefix(pack.PackID, "PACK-") {
		t.Errorf("pack id = %q", pack.PackID)
	}
	if pack.NextActions == nil || pack.Risks == nil {
		t.Errorf("nil slices should be normalized to empty")
	}
}

func TestBuildNextActionDefaults(t *testing.T) {
	na := BuildNextAction("Confirm shortlist", "Scores are ready", types.AgentSupplierScoring, "compute_scores_and_rank", "", nil)
	if na.Owner != "user" {
		t.Errorf("owner should default to user, got %s", na.Owner)
	}
	if !strings.HasPrefix(na.ActionID, "ACT-") {
		t.Errorf("action id = %q", na.ActionID)
	}
	if na.RecommendedByAgent != types.AgentSupplierScoring {
		t.Errorf("recommended_by_agent = %s", na.RecommendedByAgent)
	}
}

func TestArtifactIDsUnique(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		id := GenerateArtifactID(types.ArtifactRfxDraftPack)
		if seen[id] {
			t.Fatalf("duplicate artifact id %s", id)
		}
		seen[id] = true
	}
}
