package chat

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"sourcepilot/internal/agent"
	"sourcepilot/internal/playbook"
	"sourcepilot/internal/state"
	"sourcepilot/internal/supervisor"
	"sourcepilot/internal/task"
	"sourcepilot/internal/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		// opencensus starts a background worker at package init via a
		// transitive dependency; it is not a leak in code under test.
		goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"),
	)
}

// memStore is an in-memory CaseStore for service tests.
type memStore struct {
	mu       sync.Mutex
	cases    map[string]*types.CaseState
	packs    map[string][]*types.ArtifactPack
	failSave bool
}

func newMemStore() *memStore {
	return &memStore{
		cases: make(map[string]*types.CaseState),
		packs: make(map[string][]*types.ArtifactPack),
	}
}

func (m *memStore) LoadCase(_ context.Context, caseID string) (*types.CaseState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cases[caseID].Clone(), nil
}

func (m *memStore) SaveCase(_ context.Context, cs *types.CaseState) error {
	if m.failSave {
		return errors.New("disk full")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cases[cs.CaseID] = cs.Clone()
	return nil
}

func (m *memStore) ListCases(_ context.Context, _ types.CaseFilter) ([]*types.CaseState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*types.CaseState, 0, len(m.cases))
	for _, cs := range m.cases {
		out = append(out, cs.Clone())
	}
	return out, nil
}

func (m *memStore) SaveArtifactPack(_ context.Context, caseID string, pack *types.ArtifactPack) error {
	if m.failSave {
		return errors.New("disk full")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.packs[caseID] = append(m.packs[caseID], pack)
	return nil
}

type stubRetriever struct{}

func (stubRetriever) RetrieveDocuments(_ context.Context, _ types.RetrievalQuery) (*types.RetrievalResult, error) {
	return &types.RetrievalResult{}, nil
}

func (stubRetriever) SupplierPerformance(_ context.Context, _, _ string) (*types.RecordSet, error) {
	return &types.RecordSet{}, nil
}

func (stubRetriever) SupplierSpend(_ context.Context, _, _ string) (*types.RecordSet, error) {
	return &types.RecordSet{}, nil
}

func (stubRetriever) SLAEvents(_ context.Context, _, _ string) (*types.RecordSet, error) {
	return &types.RecordSet{}, nil
}

type stubLLM struct{}

func (stubLLM) Complete(_ context.Context, _ string) (string, types.Usage, error) {
	return "Narrative summary of the analysis.", types.Usage{InputTokens: 20, OutputTokens: 20}, nil
}

func newTestService(store types.CaseStore) *Service {
	registry := task.NewRegistry(task.Deps{Retriever: stubRetriever{}, LLM: stubLLM{}})
	pb := playbook.New()
	sm := state.NewManager()
	return NewService(store, sm, supervisor.New(sm, pb), agent.Roster(registry, pb))
}

func TestProcessMessageCaseNotFound(t *testing.T) {
	svc := newTestService(newMemStore())

	resp, err := svc.ProcessMessage(context.Background(), "CASE-MISSING", "what's the status?")
	require.NoError(t, err)
	require.Equal(t, "Case not found.", resp.AssistantMessage)
}

func TestStatusMessageRunsNoAgent(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)
	ctx := context.Background()

	_, err := svc.CreateCase(ctx, "CASE-100", "IT_SERVICES", types.TriggerUser, "CTR-1", "SUP-001")
	require.NoError(t, err)

	resp, err := svc.ProcessMessage(ctx, "CASE-100", "What is the current status?")
	require.NoError(t, err)
	require.Equal(t, types.IntentStatus, resp.IntentClassified)
	require.Contains(t, resp.AssistantMessage, "Current Status")
	require.Zero(t, resp.TokensUsed)
	require.Empty(t, store.packs["CASE-100"])

	cs, err := store.LoadCase(ctx, "CASE-100")
	require.NoError(t, err)
	require.False(t, cs.WaitingForHuman, "status check must not set the decision gate")
}

func TestDecisionFlowEndToEnd(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)
	ctx := context.Background()

	_, err := svc.CreateCase(ctx, "CASE-100", "IT_SERVICES", types.TriggerUser, "CTR-1", "SUP-001")
	require.NoError(t, err)

	// A decision-class request runs the stage agent and sets the gate.
	resp, err := svc.ProcessMessage(ctx, "CASE-100", "Select the sourcing strategy to pursue")
	require.NoError(t, err)
	require.True(t, resp.WaitingForHuman)
	require.Equal(t, []string{string(types.AgentSourcingSignal)}, resp.AgentsCalled)
	require.NotEmpty(t, store.packs["CASE-100"], "artifact pack must be persisted")

	cs, err := store.LoadCase(ctx, "CASE-100")
	require.NoError(t, err)
	require.True(t, cs.WaitingForHuman)
	require.Equal(t, types.StatusWaitingHuman, cs.Status)
	require.Equal(t, types.AgentSourcingSignal, cs.LatestAgentName)

	// Further decision-class input is rejected until the gate clears.
	resp, err = svc.ProcessMessage(ctx, "CASE-100", "Please evaluate the supplier options")
	require.NoError(t, err)
	require.Contains(t, resp.AssistantMessage, "awaiting your decision")

	cs, err = store.LoadCase(ctx, "CASE-100")
	require.NoError(t, err)
	require.True(t, cs.WaitingForHuman, "blocked message must not change state")

	// Approval advances along the first legal transition.
	dr, err := svc.ProcessDecision(ctx, "CASE-100", types.DecisionApprove, "", nil)
	require.NoError(t, err)
	require.True(t, dr.Success)
	require.Equal(t, types.StagePlanning, dr.NewStage)

	cs, err = store.LoadCase(ctx, "CASE-100")
	require.NoError(t, err)
	require.Equal(t, types.StagePlanning, cs.Stage)
	require.False(t, cs.WaitingForHuman)
	require.Equal(t, types.StatusInProgress, cs.Status)
	require.Nil(t, cs.HumanDecision, "the gate must clear with the transition")

	advances := 0
	for _, e := range cs.ActivityLog {
		if e.Action == "stage_advance" {
			advances++
		}
	}
	require.Equal(t, 1, advances)
}

func TestNaturalLanguageApproval(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)
	ctx := context.Background()

	cs := state.NewManager().CreateInitialState("CASE-200", "IT_SERVICES", types.TriggerUser, "", "")
	cs.WaitingForHuman = true
	cs.Status = types.StatusWaitingHuman
	require.NoError(t, store.SaveCase(ctx, cs))

	resp, err := svc.ProcessMessage(ctx, "CASE-200", "Yes, go ahead")
	require.NoError(t, err)
	require.Contains(t, resp.AssistantMessage, "DTP-02")
	require.False(t, resp.WaitingForHuman)

	saved, err := store.LoadCase(ctx, "CASE-200")
	require.NoError(t, err)
	require.Equal(t, types.StagePlanning, saved.Stage)
}

func TestNaturalLanguageRejectionStaysPut(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)
	ctx := context.Background()

	cs := state.NewManager().CreateInitialState("CASE-201", "IT_SERVICES", types.TriggerUser, "", "")
	cs.WaitingForHuman = true
	cs.Status = types.StatusWaitingHuman
	require.NoError(t, store.SaveCase(ctx, cs))

	// Matches both pattern sets; rejection must win.
	resp, err := svc.ProcessMessage(ctx, "CASE-201", "No, hold off and revise the plan")
	require.NoError(t, err)
	require.Contains(t, resp.AssistantMessage, "rejected")

	saved, err := store.LoadCase(ctx, "CASE-201")
	require.NoError(t, err)
	require.Equal(t, types.StageStrategy, saved.Stage, "rejection must not advance the stage")
	require.False(t, saved.WaitingForHuman)
}

func TestNegotiationOutsideShortlistRaisesConflict(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)
	ctx := context.Background()

	cs := state.NewManager().CreateInitialState("CASE-300", "IT_SERVICES", types.TriggerUser, "", "SUP-X")
	cs.Stage = types.StageNegotiation
	cs.LatestAgentName = types.AgentSupplierScoring
	cs.LatestAgentOutput = map[string]any{
		"shortlisted_supplier_ids": []string{"SUP-001", "SUP-002"},
		"top_choice_supplier_id":   "SUP-001",
	}
	require.NoError(t, store.SaveCase(ctx, cs))

	resp, err := svc.ProcessMessage(ctx, "CASE-300", "Prepare the negotiation plan")
	require.NoError(t, err)
	require.True(t, resp.WaitingForHuman, "negotiation stage always gates on a human")
	require.Contains(t, resp.AssistantMessage, "[CONFLICT]")
	require.Contains(t, resp.AssistantMessage, "SUP-X")

	mem := svc.Memory("CASE-300")
	require.Len(t, mem.ActiveContradictions, 1)
	require.Contains(t, mem.ActiveContradictions[0], "not in the shortlist")

	// The prior output is untouched until the new result replaces it wholesale.
	saved, err := store.LoadCase(ctx, "CASE-300")
	require.NoError(t, err)
	require.Equal(t, types.AgentNegotiationSupport, saved.LatestAgentName)
}

func TestConflictResolvedByAcknowledgingDecision(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)
	ctx := context.Background()

	cs := state.NewManager().CreateInitialState("CASE-301", "IT_SERVICES", types.TriggerUser, "", "SUP-X")
	cs.Stage = types.StageNegotiation
	cs.LatestAgentName = types.AgentSupplierScoring
	cs.LatestAgentOutput = map[string]any{
		"shortlisted_supplier_ids": []string{"SUP-001"},
		"top_choice_supplier_id":   "SUP-001",
	}
	require.NoError(t, store.SaveCase(ctx, cs))

	_, err := svc.ProcessMessage(ctx, "CASE-301", "Prepare the negotiation plan")
	require.NoError(t, err)
	require.Len(t, svc.Memory("CASE-301").ActiveContradictions, 1)

	dr, err := svc.ProcessDecision(ctx, "CASE-301", types.DecisionApprove,
		"Acknowledging the conflict: SUP-X is an intentional strategic choice", nil)
	require.NoError(t, err)
	require.True(t, dr.Success)
	require.Empty(t, svc.Memory("CASE-301").ActiveContradictions)
}

func TestExplainRendersObjectivesAfterJSONRoundTrip(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)
	ctx := context.Background()

	cs := state.NewManager().CreateInitialState("CASE-320", "IT_SERVICES", types.TriggerUser, "", "SUP-001")
	cs.Stage = types.StageNegotiation
	cs.LatestAgentName = types.AgentNegotiationSupport
	// Slices come back from the store as []any after the JSON round trip.
	cs.LatestAgentOutput = map[string]any{
		"negotiation_objectives": []any{"Reduce unit price", "Extend payment terms"},
	}
	require.NoError(t, store.SaveCase(ctx, cs))

	resp, err := svc.ProcessMessage(ctx, "CASE-320", "Explain the negotiation objectives")
	require.NoError(t, err)
	require.Contains(t, resp.AssistantMessage, "Objectives:")
	require.Contains(t, resp.AssistantMessage, "Reduce unit price")
	require.Contains(t, resp.AssistantMessage, "Extend payment terms")
}

func TestExecutionStageReachesNoAgents(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)
	ctx := context.Background()

	cs := state.NewManager().CreateInitialState("CASE-310", "IT_SERVICES", types.TriggerUser, "", "SUP-001")
	cs.Stage = types.StageExecution
	require.NoError(t, store.SaveCase(ctx, cs))

	resp, err := svc.ProcessMessage(ctx, "CASE-310", "Generate the implementation plan")
	require.NoError(t, err)
	require.Contains(t, resp.AssistantMessage, "not available")
	require.Empty(t, resp.AgentsCalled)
	require.Empty(t, store.packs["CASE-310"], "a blocked request must not produce artifacts")

	saved, err := store.LoadCase(ctx, "CASE-310")
	require.NoError(t, err)
	require.False(t, saved.WaitingForHuman)
	require.Equal(t, types.StageExecution, saved.Stage)
}

func TestSignalScanGatesOnHumanRegardlessOfIntent(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)
	ctx := context.Background()

	_, err := svc.CreateCase(ctx, "CASE-311", "IT_SERVICES", types.TriggerUser, "", "SUP-001")
	require.NoError(t, err)

	// Not a decision-class message, but the signal agent always gates.
	resp, err := svc.ProcessMessage(ctx, "CASE-311", "Scan the market for supply risk signals")
	require.NoError(t, err)
	require.Equal(t, []string{string(types.AgentSourcingSignal)}, resp.AgentsCalled)
	require.True(t, resp.WaitingForHuman)

	saved, err := store.LoadCase(ctx, "CASE-311")
	require.NoError(t, err)
	require.True(t, saved.WaitingForHuman)
	require.Equal(t, types.StatusWaitingHuman, saved.Status)
}

func TestSaveFailureIsFatal(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)
	ctx := context.Background()

	_, err := svc.CreateCase(ctx, "CASE-400", "IT_SERVICES", types.TriggerUser, "", "SUP-001")
	require.NoError(t, err)

	store.failSave = true
	_, err = svc.ProcessMessage(ctx, "CASE-400", "Select the sourcing strategy to pursue")
	require.Error(t, err, "an un-persisted state change must propagate as a failure")
}

func TestProcessDecisionWithoutPendingGate(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)
	ctx := context.Background()

	_, err := svc.CreateCase(ctx, "CASE-500", "IT_SERVICES", types.TriggerUser, "", "")
	require.NoError(t, err)

	dr, err := svc.ProcessDecision(ctx, "CASE-500", types.DecisionApprove, "", nil)
	require.NoError(t, err)
	require.False(t, dr.Success)
	require.Equal(t, "Case is not waiting for a decision", dr.Message)
}

func TestConcurrentMessagesAcrossCases(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)
	ctx := context.Background()

	ids := []string{"CASE-600", "CASE-601", "CASE-602"}
	for _, id := range ids {
		_, err := svc.CreateCase(ctx, id, "IT_SERVICES", types.TriggerUser, "", "SUP-001")
		require.NoError(t, err)
	}

	var wg sync.WaitGroup
	errs := make([]error, len(ids))
	for i, id := range ids {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			_, errs[i] = svc.ProcessMessage(ctx, id, "Select the sourcing strategy to pursue")
		}(i, id)
	}
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err, "case %s", ids[i])
	}
}
