// Package state owns the DTP stage machine: which stage transitions exist,
// which intents each stage permits, and the approval-gated advance that is the
// only way a case changes stage. All functions are pure over CaseState values;
// persistence is the chat service's job.
package state

import (
	"fmt"
	"time"

	"sourcepilot/internal/logging"
	"sourcepilot/internal/types"
)

// =============================================================================
// TRANSITION AND PERMISSION TABLES
// =============================================================================

// AllowedTransitions is the stage adjacency map. DTP-06 self-loops: it is the
// terminal fixed point of the lifecycle.
var AllowedTransitions = map[types.Stage][]types.Stage{
	types.StageStrategy:    {types.StagePlanning},
	types.StagePlanning:    {types.StageSourcing, types.StageNegotiation},
	types.StageSourcing:    {types.StageNegotiation},
	types.StageNegotiation: {types.StageContracting},
	types.StageContracting: {types.StageExecution},
	types.StageExecution:   {types.StageExecution},
}

// StageIntentPermissions lists which intents each stage accepts. Execution is
// read-only: only explanations and status checks.
var StageIntentPermissions = map[types.Stage][]types.UserIntent{
	types.StageStrategy:    {types.IntentExplain, types.IntentExplore, types.IntentDecide, types.IntentStatus},
	types.StagePlanning:    {types.IntentExplain, types.IntentExplore, types.IntentDecide, types.IntentStatus},
	types.StageSourcing:    {types.IntentExplain, types.IntentExplore, types.IntentDecide, types.IntentStatus},
	types.StageNegotiation: {types.IntentExplain, types.IntentExplore, types.IntentDecide, types.IntentStatus},
	types.StageContracting: {types.IntentExplain, types.IntentExplore, types.IntentDecide, types.IntentStatus},
	types.StageExecution:   {types.IntentExplain, types.IntentStatus},
}

// =============================================================================
// MANAGER
// =============================================================================

// Manager enforces stage governance over case state values.
type Manager struct{}

// NewManager returns a stage manager.
func NewManager() *Manager {
	return &Manager{}
}

// CreateInitialState builds the state for a new case at DTP-01.
func (m *Manager) CreateInitialState(caseID, categoryID string, trigger types.TriggerSource, contractID, supplierID string) *types.CaseState {
	now := time.Now()
	return &types.CaseState{
		CaseID:        caseID,
		CategoryID:    categoryID,
		ContractID:    contractID,
		SupplierID:    supplierID,
		TriggerSource: trigger,
		Stage:         types.StageStrategy,
		Status:        types.StatusInProgress,
		CreatedAt:     now,
		UpdatedAt:     now,
		IntentClass:   types.IntentUnknown,
		ActivityLog:   []types.LogEntry{},
	}
}

// ValidateTransition reports whether current → target is a legal stage move.
func (m *Manager) ValidateTransition(current, target types.Stage) error {
	allowed, ok := AllowedTransitions[current]
	if !ok {
		return fmt.Errorf("unknown current stage: %s", current)
	}
	if !target.IsValid() {
		return fmt.Errorf("unknown target stage: %s", target)
	}
	for _, s := range allowed {
		if s == target {
			return nil
		}
	}
	return fmt.Errorf("cannot transition from %s to %s (allowed: %v)", current, target, allowed)
}

// ValidateIntentForStage reports whether the intent may act at the stage.
func (m *Manager) ValidateIntentForStage(stage types.Stage, intent types.UserIntent) error {
	allowed, ok := StageIntentPermissions[stage]
	if !ok {
		return fmt.Errorf("unknown stage: %s", stage)
	}
	for _, i := range allowed {
		if i == intent {
			return nil
		}
	}
	return fmt.Errorf("intent %s is not allowed at stage %s", intent, stage)
}

// CanAdvanceStage checks whether the case may move forward. Advancing always
// needs an explicit human approval, a clean error state, and at least one
// outgoing transition.
func (m *Manager) CanAdvanceStage(s *types.CaseState, hasHumanApproval bool) error {
	if !hasHumanApproval {
		return fmt.Errorf("human approval required to advance DTP stage")
	}
	if s.ErrorState != "" {
		return fmt.Errorf("cannot advance stage while in error state: %s", s.ErrorState)
	}
	if len(AllowedTransitions[s.Stage]) == 0 {
		return fmt.Errorf("no valid transitions from %s", s.Stage)
	}
	return nil
}

// AdvanceStage moves the case to the target stage, or to the first listed
// transition when target is empty. It returns a new state value: the stage is
// updated, the decision gate is cleared, and a stage_advance log entry is
// appended in the same step. The input state is not modified.
func (m *Manager) AdvanceStage(s *types.CaseState, target types.Stage) (*types.CaseState, error) {
	allowed := AllowedTransitions[s.Stage]
	if len(allowed) == 0 {
		return s, fmt.Errorf("no valid transitions from %s", s.Stage)
	}

	next := allowed[0]
	if target != "" {
		if err := m.ValidateTransition(s.Stage, target); err != nil {
			return s, err
		}
		next = target
	}

	out := s.Clone()
	from := out.Stage
	out.Stage = next
	out.HumanDecision = nil
	out.WaitingForHuman = false
	out.BlockedReason = ""
	out.UpdatedAt = time.Now()
	out.ActivityLog = append(out.ActivityLog, types.LogEntry{
		Timestamp: time.Now(),
		Action:    "stage_advance",
		AgentName: string(types.AgentSupervisor),
		FromStage: from,
		ToStage:   next,
	})

	logging.Supervisor("case %s advanced %s -> %s", s.CaseID, from, next)
	return out, nil
}

// NextStages returns the legal targets from the given stage.
func (m *Manager) NextStages(stage types.Stage) []types.Stage {
	return append([]types.Stage(nil), AllowedTransitions[stage]...)
}
