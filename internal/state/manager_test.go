package state

import (
	"testing"

	"sourcepilot/internal/types"
)

func newTestState(stage types.Stage) *types.CaseState {
	m := NewManager()
	s := m.CreateInitialState("case-1", "cat-it-hardware", types.TriggerUser, "", "")
	s.Stage = stage
	return s
}

func TestCreateInitialState(t *testing.T) {
	m := NewManager()
	s := m.CreateInitialState("case-1", "cat-it-hardware", types.TriggerSignal, "ctr-9", "sup-3")

	if s.Stage != types.StageStrategy {
		t.Errorf("new case should start at DTP-01, got %s", s.Stage)
	}
	if s.Status != types.StatusInProgress {
		t.Errorf("status = %s", s.Status)
	}
	if s.TriggerSource != types.TriggerSignal {
		t.Errorf("trigger = %s", s.TriggerSource)
	}
	if s.WaitingForHuman {
		t.Errorf("new case should not be waiting for human")
	}
	if len(s.ActivityLog) != 0 {
		t.Errorf("new case should have empty activity log")
	}
}

func TestValidateTransition(t *testing.T) {
	m := NewManager()
	tests := []struct {
		from, to types.Stage
		ok       bool
	}{
		{types.StageStrategy, types.StagePlanning, true},
		{types.StageStrategy, types.StageSourcing, false},
		{types.StagePlanning, types.StageSourcing, true},
		{types.StagePlanning, types.StageNegotiation, true},
		{types.StageSourcing, types.StageNegotiation, true},
		{types.StageSourcing, types.StagePlanning, false},
		{types.StageNegotiation, types.StageContracting, true},
		{types.StageContracting, types.StageExecution, true},
		{types.StageExecution, types.StageExecution, true},
		{types.StageExecution, types.StageStrategy, false},
		{"DTP-99", types.StagePlanning, false},
		{types.StageStrategy, "DTP-99", false},
	}
	for _, tc := range tests {
		err := m.ValidateTransition(tc.from, tc.to)
		if tc.ok && err != nil {
			t.Errorf("%s -> %s should be valid: %v", tc.from, tc.to, err)
		}
		if !tc.ok && err == nil {
			t.Errorf("%s -> %s should be rejected", tc.from, tc.to)
		}
	}
}

func TestValidateIntentForStage(t *testing.T) {
	m := NewManager()

	// Every intent allowed through DTP-05.
	for _, stage := range types.Stages[:5] {
		for _, intent := range []types.UserIntent{types.IntentExplain, types.IntentExplore, types.IntentDecide, types.IntentStatus} {
			if err := m.ValidateIntentForStage(stage, intent); err != nil {
				t.Errorf("%s at %s should be allowed: %v", intent, stage, err)
			}
		}
	}

	// DTP-06 is read-only.
	if err := m.ValidateIntentForStage(types.StageExecution, types.IntentExplain); err != nil {
		t.Errorf("EXPLAIN should be allowed at DTP-06: %v", err)
	}
	if err := m.ValidateIntentForStage(types.StageExecution, types.IntentStatus); err != nil {
		t.Errorf("STATUS should be allowed at DTP-06: %v", err)
	}
	if err := m.ValidateIntentForStage(types.StageExecution, types.IntentDecide); err == nil {
		t.Errorf("DECIDE should be blocked at DTP-06")
	}
	if err := m.ValidateIntentForStage(types.StageExecution, types.IntentExplore); err == nil {
		t.Errorf("EXPLORE should be blocked at DTP-06")
	}
}

func TestCanAdvanceStageRequiresApproval(t *testing.T) {
	m := NewManager()
	s := newTestState(types.StageStrategy)

	if err := m.CanAdvanceStage(s, false); err == nil {
		t.Errorf("advance without approval should be rejected")
	}
	if err := m.CanAdvanceStage(s, true); err != nil {
		t.Errorf("advance with approval should pass: %v", err)
	}

	s.ErrorState = "retrieval backend down"
	if err := m.CanAdvanceStage(s, true); err == nil {
		t.Errorf("advance in error state should be rejected")
	}
}

func TestAdvanceStageDefaultTakesFirstListed(t *testing.T) {
	m := NewManager()
	s := newTestState(types.StagePlanning)

	out, err := m.AdvanceStage(s, "")
	if err != nil {
		t.Fatalf("AdvanceStage failed: %v", err)
	}
	if out.Stage != types.StageSourcing {
		t.Errorf("default advance from DTP-02 should land on DTP-03, got %s", out.Stage)
	}
}

func TestAdvanceStageExplicitTarget(t *testing.T) {
	m := NewManager()
	s := newTestState(types.StagePlanning)

	out, err := m.AdvanceStage(s, types.StageNegotiation)
	if err != nil {
		t.Fatalf("AdvanceStage failed: %v", err)
	}
	if out.Stage != types.StageNegotiation {
		t.Errorf("explicit advance should land on DTP-04, got %s", out.Stage)
	}

	if _, err := m.AdvanceStage(s, types.StageContracting); err == nil {
		t.Errorf("DTP-02 -> DTP-05 should be rejected")
	}
}

func TestAdvanceStageClearsDecisionGate(t *testing.T) {
	m := NewManager()
	s := newTestState(types.StageStrategy)
	s.WaitingForHuman = true
	s.HumanDecision = &types.HumanDecision{Decision: types.DecisionApprove}
	s.BlockedReason = "waiting"

	out, err := m.AdvanceStage(s, "")
	if err != nil {
		t.Fatalf("AdvanceStage failed: %v", err)
	}
	if out.WaitingForHuman {
		t.Errorf("gate should be cleared on advance")
	}
	if out.HumanDecision != nil {
		t.Errorf("recorded decision should be cleared on advance")
	}
	if out.BlockedReason != "" {
		t.Errorf("blocked reason should be cleared on advance")
	}

	// Input state is untouched.
	if s.Stage != types.StageStrategy || !s.WaitingForHuman {
		t.Errorf("input state was mutated")
	}
}

func TestAdvanceStageAppendsLogEntry(t *testing.T) {
	m := NewManager()
	s := newTestState(types.StageSourcing)

	out, err := m.AdvanceStage(s, "")
	if err != nil {
		t.Fatalf("AdvanceStage failed: %v", err)
	}
	if len(out.ActivityLog) != 1 {
		t.Fatalf("expected 1 log entry, got %d", len(out.ActivityLog))
	}
	entry := out.ActivityLog[0]
	if entry.Action != "stage_advance" {
		t.Errorf("action = %s", entry.Action)
	}
	if entry.FromStage != types.StageSourcing || entry.ToStage != types.StageNegotiation {
		t.Errorf("log entry stages = %s -> %s", entry.FromStage, entry.ToStage)
	}
}

func TestExecutionStageIsFixedPoint(t *testing.T) {
	m := NewManager()
	s := newTestState(types.StageExecution)

	out, err := m.AdvanceStage(s, "")
	if err != nil {
		t.Fatalf("AdvanceStage failed: %v", err)
	}
	if out.Stage != types.StageExecution {
		t.Errorf("DTP-06 should self-loop, got %s", out.Stage)
	}
}
