package memory

import (
	"fmt"
	"strings"
	"testing"

	"sourcepilot/internal/types"
)

func TestEntriesBounded(t *testing.T) {
	m := New("case-1")
	for i := 0; i < 30; i++ {
		m.RecordAgentOutput(types.AgentSourcingSignal, "SignalReport", fmt.Sprintf("scan %d", i), nil)
	}

	if len(m.Entries) != DefaultMaxEntries {
		t.Errorf("entries = %d, want %d", len(m.Entries), DefaultMaxEntries)
	}
	// Oldest dropped, newest kept.
	last := m.Entries[len(m.Entries)-1]
	if !strings.Contains(last.Summary, "scan 29") {
		t.Errorf("newest entry should survive, got %q", last.Summary)
	}
	if m.TotalAgentCalls != 30 {
		t.Errorf("counter should not be bounded, got %d", m.TotalAgentCalls)
	}
}

func TestHumanDecisionsBounded(t *testing.T) {
	m := New("case-1")
	for i := 0; i < 15; i++ {
		m.RecordHumanDecision(types.DecisionApprove, "", fmt.Sprintf("step %d", i))
	}
	if len(m.HumanDecisions) != DefaultMaxDecisions {
		t.Errorf("decisions = %d, want %d", len(m.HumanDecisions), DefaultMaxDecisions)
	}
	if m.TotalHumanDecisions != 15 {
		t.Errorf("counter = %d, want 15", m.TotalHumanDecisions)
	}
}

func TestUserIntentsBounded(t *testing.T) {
	m := New("case-1")
	for i := 0; i < 8; i++ {
		m.RecordUserIntent(fmt.Sprintf("please evaluate option %d", i))
	}
	if len(m.KeyUserIntents) != DefaultMaxIntents {
		t.Errorf("intents = %d, want %d", len(m.KeyUserIntents), DefaultMaxIntents)
	}
	if !strings.Contains(m.KeyUserIntents[len(m.KeyUserIntents)-1], "option 7") {
		t.Errorf("newest intent should survive")
	}
}

func TestTrivialIntentIgnored(t *testing.T) {
	m := New("case-1")
	m.RecordUserIntent("ok")
	m.RecordUserIntent("  hi  ")
	if len(m.KeyUserIntents) != 0 || len(m.Entries) != 0 {
		t.Errorf("trivial intents should be ignored")
	}
}

func TestStrategyOutputUpdatesSummary(t *testing.T) {
	m := New("case-1")
	m.RecordAgentOutput(types.AgentSourcingSignal, "StrategyRecommendation",
		"Recommends RFx", map[string]any{"recommended_strategy": "RFx"})
	if m.CurrentStrategy != "RFx" {
		t.Errorf("current strategy = %q", m.CurrentStrategy)
	}

	m.RecordAgentOutput(types.AgentSupplierScoring, "SupplierShortlist",
		"Shortlisted 3 suppliers", map[string]any{"top_choice_supplier_id": "sup-7"})
	if m.CurrentSupplierChoice != "sup-7" {
		t.Errorf("current supplier = %q", m.CurrentSupplierChoice)
	}
}

func TestContradictionLifecycle(t *testing.T) {
	m := New("case-1")
	desc := "Strategy conflict: Renew vs Terminate"
	m.RecordContradiction(desc, []string{"SOURCING_SIGNAL", "NEGOTIATION_SUPPORT"}, nil)

	if len(m.ActiveContradictions) != 1 {
		t.Fatalf("expected 1 active contradiction")
	}

	// Only an explicit resolution removes it.
	m.RecordAgentOutput(types.AgentSourcingSignal, "SignalReport", "another scan", nil)
	if len(m.ActiveContradictions) != 1 {
		t.Errorf("contradiction should persist until resolved")
	}

	m.ResolveContradiction("not this one")
	if len(m.ActiveContradictions) != 1 {
		t.Errorf("unknown description should not resolve anything")
	}

	m.ResolveContradiction(desc)
	if len(m.ActiveContradictions) != 0 {
		t.Errorf("contradiction should be resolved")
	}
}

func TestPromptContextContents(t *testing.T) {
	m := New("case-1")
	m.RecordAgentOutput(types.AgentSourcingSignal, "StrategyRecommendation",
		"Recommends Renew", map[string]any{"recommended_strategy": "Renew"})
	m.RecordHumanDecision(types.DecisionApprove, "looks right", "strategy")
	m.RecordUserIntent("compare the top two suppliers")
	m.RecordContradiction("diverging strategies", []string{"A", "B"}, nil)

	ctx := m.PromptContext()
	for _, want := range []string{
		"CASE MEMORY",
		"Current recommended strategy: Renew",
		"Human decisions so far",
		"compare the top two suppliers",
		"UNRESOLVED CONFLICTS: diverging strategies",
		"Recent activity:",
		"END CASE MEMORY",
	} {
		if !strings.Contains(ctx, want) {
			t.Errorf("prompt context missing %q:\n%s", want, ctx)
		}
	}
}

func TestPromptContextEmptyMemory(t *testing.T) {
	m := New("case-1")
	ctx := m.PromptContext()
	if !strings.HasPrefix(ctx, "=== CASE MEMORY") || !strings.HasSuffix(ctx, "=== END CASE MEMORY ===") {
		t.Errorf("empty memory should still render frame:\n%s", ctx)
	}
}

func TestCustomBounds(t *testing.T) {
	m := NewWithBounds("case-1", 3, 2, 1)
	for i := 0; i < 5; i++ {
		m.RecordAgentOutput(types.AgentSourcingSignal, "SignalReport", fmt.Sprintf("scan %d", i), nil)
	}
	if len(m.Entries) != 3 {
		t.Errorf("entries = %d, want 3", len(m.Entries))
	}
}

func TestUISummary(t *testing.T) {
	m := New("case-1")
	m.RecordAgentOutput(types.AgentSourcingSignal, "SignalReport", "scan", nil)
	m.RecordHumanDecision(types.DecisionReject, "", "shortlist")

	got := m.UISummary()
	if got["total_agent_calls"] != 1 {
		t.Errorf("total_agent_calls = %v", got["total_agent_calls"])
	}
	if got["total_human_decisions"] != 1 {
		t.Errorf("total_human_decisions = %v", got["total_human_decisions"])
	}
}
