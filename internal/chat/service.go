// Package chat is the conversational entry point and the single writer of
// case state. Every message goes through the supervisor's planning sequence;
// agent execution, contradiction checks, memory updates, and persistence all
// happen here so that no other component ever saves a case.
package chat

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"sourcepilot/internal/agent"
	"sourcepilot/internal/contradiction"
	"sourcepilot/internal/intent"
	"sourcepilot/internal/logging"
	"sourcepilot/internal/memory"
	"sourcepilot/internal/state"
	"sourcepilot/internal/supervisor"
	"sourcepilot/internal/types"
)

// Service processes user messages and human decisions for sourcing cases.
// At most one request runs per case at a time; requests for different cases
// run independently.
type Service struct {
	store      types.CaseStore
	state      *state.Manager
	supervisor *supervisor.Supervisor
	agents     map[types.AgentName]*agent.Agent
	detector   *contradiction.Detector

	mu        sync.Mutex
	caseLocks map[string]*sync.Mutex
	memories  map[string]*memory.CaseMemory
	memStore  MemoryStore

	memMaxEntries   int
	memMaxDecisions int
	memMaxIntents   int
}

// MemoryStore persists case memory across restarts. LoadMemory returns
// (nil, nil) when no memory has been saved for the case yet.
type MemoryStore interface {
	LoadMemory(ctx context.Context, caseID string) (*memory.CaseMemory, error)
	SaveMemory(ctx context.Context, m *memory.CaseMemory) error
}

// NewService wires the chat service over its injected collaborators.
func NewService(store types.CaseStore, sm *state.Manager, sup *supervisor.Supervisor,
	agents map[types.AgentName]*agent.Agent) *Service {
	return &Service{
		store:      store,
		state:      sm,
		supervisor: sup,
		agents:     agents,
		detector:   contradiction.NewDetector(),
		caseLocks:  make(map[string]*sync.Mutex),
		memories:   make(map[string]*memory.CaseMemory),
	}
}

func (s *Service) lockCase(caseID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.caseLocks[caseID]
	if !ok {
		l = &sync.Mutex{}
		s.caseLocks[caseID] = l
	}
	return l
}

// WithMemoryStore enables durable case memory. Without it, memory lives only
// for the process lifetime.
func (s *Service) WithMemoryStore(ms MemoryStore) *Service {
	s.memStore = ms
	return s
}

// WithMemoryBounds overrides the rolling memory bounds for new and loaded
// case memories.
func (s *Service) WithMemoryBounds(maxEntries, maxDecisions, maxIntents int) *Service {
	s.memMaxEntries = maxEntries
	s.memMaxDecisions = maxDecisions
	s.memMaxIntents = maxIntents
	return s
}

func (s *Service) memoryFor(caseID string) *memory.CaseMemory {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.memories[caseID]
	if !ok {
		if s.memStore != nil {
			loaded, err := s.memStore.LoadMemory(context.Background(), caseID)
			if err != nil {
				logging.Memory("load failed for case %s: %v", caseID, err)
			}
			m = loaded
		}
		if m == nil {
			m = memory.New(caseID)
		}
		if s.memMaxEntries > 0 {
			m.RestoreBounds(s.memMaxEntries, s.memMaxDecisions, s.memMaxIntents)
		}
		s.memories[caseID] = m
	}
	return m
}

// persistMemory writes memory through to the durable store when one is
// configured. Memory is advisory context; a write failure is logged, not
// propagated.
func (s *Service) persistMemory(ctx context.Context, m *memory.CaseMemory) {
	if s.memStore == nil {
		return
	}
	if err := s.memStore.SaveMemory(ctx, m); err != nil {
		logging.Memory("save failed for case %s: %v", m.CaseID, err)
	}
}

// Memory exposes the case memory for status views. Callers must treat it as
// read-only.
func (s *Service) Memory(caseID string) *memory.CaseMemory {
	return s.memoryFor(caseID)
}

// CreateCase opens a new case at DTP-01 and persists it.
func (s *Service) CreateCase(ctx context.Context, caseID, categoryID string,
	trigger types.TriggerSource, contractID, supplierID string) (*types.CaseState, error) {
	cs := s.state.CreateInitialState(caseID, categoryID, trigger, contractID, supplierID)
	if err := s.store.SaveCase(ctx, cs); err != nil {
		return nil, fmt.Errorf("chat: create case %s: %w", caseID, err)
	}
	logging.AuditFor(caseID).Log(logging.AuditEvent{
		EventType: logging.AuditCaseCreated,
		Success:   true,
		Fields:    map[string]any{"category": categoryID, "trigger": string(trigger)},
	})
	return cs, nil
}

// ProcessMessage handles one user message for a case. The returned error is
// reserved for persistence failures; everything else degrades to an
// explanatory assistant message.
func (s *Service) ProcessMessage(ctx context.Context, caseID, userMessage string) (*types.ChatResponse, error) {
	lock := s.lockCase(caseID)
	lock.Lock()
	defer lock.Unlock()

	cs, err := s.store.LoadCase(ctx, caseID)
	if err != nil {
		return nil, fmt.Errorf("chat: load case %s: %w", caseID, err)
	}
	if cs == nil {
		return s.respond(caseID, "", userMessage, "Case not found.", types.IntentUnknown, false), nil
	}

	mem := s.memoryFor(caseID)
	audit := logging.AuditFor(caseID)

	// Natural-language approval or rejection while a decision is pending.
	// Rejection phrasing wins when a message matches both pattern sets
	// ("no, don't approve" is a rejection).
	if cs.WaitingForHuman {
		if intent.IsRejection(userMessage) {
			return s.decisionReply(ctx, cs, mem, types.DecisionReject, userMessage)
		}
		if intent.IsApproval(userMessage) {
			return s.decisionReply(ctx, cs, mem, types.DecisionApprove, userMessage)
		}
	}

	uiIntent := intent.Classify(userMessage)
	mem.RecordUserIntent(userMessage)
	audit.IntentClassified(string(uiIntent), "", "", 1.0)
	logging.Supervisor("case %s: message classified %s", caseID, uiIntent)

	// A pending decision gate blocks all further DECIDE-class input.
	if cs.WaitingForHuman && (uiIntent == types.IntentDecide || intent.IsDecisionAttempt(userMessage)) {
		msg := "The case is awaiting your decision. Approve or reject the current " +
			"recommendation before requesting new work. You can say 'yes, approve' " +
			"or 'reject the recommendation'."
		return s.respond(caseID, cs.Stage, userMessage, msg, types.IntentDecide, true), nil
	}

	switch uiIntent {
	case types.IntentStatus:
		return s.statusReply(cs, mem, userMessage), nil
	case types.IntentExplain:
		if isActionRequest(userMessage) {
			return s.runAgent(ctx, cs, mem, userMessage, uiIntent)
		}
		return s.explainReply(cs, userMessage), nil
	case types.IntentExplore:
		return s.exploreReply(cs, userMessage), nil
	case types.IntentDecide:
		return s.runAgent(ctx, cs, mem, userMessage, uiIntent)
	default:
		return s.generalReply(cs, userMessage), nil
	}
}

// actionVerbs flags messages that ask for work product even when the
// classifier read them as a question.
var actionVerbs = []string{
	"scan", "score", "draft", "extract", "generate", "create", "recommend",
	"evaluate", "analyze", "prepare", "compare", "validate", "build",
}

func isActionRequest(message string) bool {
	lower := strings.ToLower(message)
	for _, v := range actionVerbs {
		if strings.Contains(lower, v) {
			return true
		}
	}
	return false
}

func rosterAllows(roster []types.AgentName, agent types.AgentName) bool {
	for _, a := range roster {
		if a == agent {
			return true
		}
	}
	return false
}

// runAgent plans via the supervisor, executes the routed agent, runs the
// contradiction check, persists the pack and the updated state, and formats
// the reply. Persistence failure is the one fatal path.
func (s *Service) runAgent(ctx context.Context, cs *types.CaseState,
	mem *memory.CaseMemory, userMessage string, uiIntent types.UserIntent) (*types.ChatResponse, error) {
	audit := logging.AuditFor(cs.CaseID)

	plan := s.supervisor.Execute(cs, userMessage)
	if plan.Blocked {
		audit.ActionBlocked(string(plan.Intent.UserGoal), plan.Reason)
		return s.respond(cs.CaseID, cs.Stage, userMessage, plan.Reason,
			mapGoalToIntent(plan.Intent.UserGoal), cs.WaitingForHuman), nil
	}

	// Stage-gated roster check. An EXPLAIN that carried an action verb runs
	// with explore-level access; the roster itself is what the stage gates.
	gateIntent := uiIntent
	if gateIntent == types.IntentExplain {
		gateIntent = types.IntentExplore
	}
	if !rosterAllows(intent.AllowedAgents(gateIntent, cs.Stage), plan.Plan.AgentName) {
		reason := fmt.Sprintf("The %s agent is not available while the case is at "+
			"stage %s. Ask for status or an explanation of the latest analysis.",
			plan.Plan.AgentName, cs.Stage)
		audit.ActionBlocked(string(gateIntent), reason)
		return s.respond(cs.CaseID, cs.Stage, userMessage, reason,
			mapGoalToIntent(plan.Intent.UserGoal), cs.WaitingForHuman), nil
	}

	// The single-axis rule can gate an agent the two-axis plan would let
	// through; either one is enough to require a human.
	requiresHuman := plan.RequiresHuman ||
		intent.RequiresApproval(gateIntent, plan.Plan.AgentName)

	audit.ActionRouted(string(plan.Plan.AgentName), plan.Plan.Tasks, requiresHuman)

	ag, ok := s.agents[plan.Plan.AgentName]
	if !ok {
		msg := fmt.Sprintf("No analysis available at stage %s.", cs.Stage)
		return s.respond(cs.CaseID, cs.Stage, userMessage, msg,
			mapGoalToIntent(plan.Intent.UserGoal), cs.WaitingForHuman), nil
	}

	caseContext := map[string]any{
		"case_id":        cs.CaseID,
		"category_id":    cs.CategoryID,
		"supplier_id":    cs.SupplierID,
		"contract_id":    cs.ContractID,
		"dtp_stage":      string(cs.Stage),
		"memory_context": mem.PromptContext(),
	}
	for k, v := range cs.ContextFields {
		caseContext[k] = v
	}

	start := time.Now()
	result := ag.Execute(ctx, caseContext, plan.Intent.UserGoal, userMessage)
	audit.AgentExecute(string(result.AgentName), len(result.Pack.TasksExecuted),
		result.TokensUsed, time.Since(start).Milliseconds(), result.Success, result.Error)

	if !result.Success {
		return s.respond(cs.CaseID, cs.Stage, userMessage,
			"Analysis could not be completed. Please try again.",
			mapGoalToIntent(plan.Intent.UserGoal), cs.WaitingForHuman), nil
	}

	conflicts := s.detector.Check(
		normalizeOutput(result.AgentName, result.Output),
		string(result.AgentName), priorOutputs(cs), mem)
	for _, c := range conflicts {
		mem.RecordContradiction(c.Description, c.AgentsInvolved, c.Details)
		audit.ContradictionDetected(c.Description, string(c.Severity), c.AgentsInvolved)
	}

	if err := s.store.SaveArtifactPack(ctx, cs.CaseID, &result.Pack); err != nil {
		return nil, fmt.Errorf("chat: save artifact pack for %s: %w", cs.CaseID, err)
	}

	ns := cs.Clone()
	ns.LatestAgentOutput = result.Output
	ns.LatestAgentName = result.AgentName
	ns.UserIntent = userMessage
	ns.IntentClass = mapGoalToIntent(plan.Intent.UserGoal)
	ns.WaitingForHuman = requiresHuman
	if requiresHuman {
		ns.Status = types.StatusWaitingHuman
	}
	ns.UpdatedAt = time.Now()
	ns = ns.AppendLog(types.LogEntry{
		Timestamp: time.Now(),
		Action:    "agent_executed",
		AgentName: string(result.AgentName),
		Details: map[string]any{
			"tasks_executed": len(result.Pack.TasksExecuted),
			"tokens_used":    result.TokensUsed,
		},
	})
	if err := s.store.SaveCase(ctx, ns); err != nil {
		return nil, fmt.Errorf("chat: save case %s: %w", cs.CaseID, err)
	}

	mem.RecordAgentOutput(result.AgentName, outputType(result.AgentName, result.Output),
		outputSummary(result.Output), memoryDetails(result.Output))
	s.persistMemory(ctx, mem)

	reply := formatPack(&result.Pack, contradiction.FormatForChat(conflicts), requiresHuman)
	resp := s.respond(cs.CaseID, ns.Stage, userMessage, reply,
		mapGoalToIntent(plan.Intent.UserGoal), requiresHuman)
	resp.AgentsCalled = []string{string(result.AgentName)}
	resp.TokensUsed = result.TokensUsed
	resp.WorkflowSummary = map[string]any{
		"artifact_pack_id":  result.Pack.PackID,
		"artifacts_created": len(result.Pack.Artifacts),
		"next_actions":      len(result.Pack.NextActions),
	}
	return resp, nil
}

// decisionReply processes a natural-language approval or rejection and
// phrases the outcome.
func (s *Service) decisionReply(ctx context.Context, cs *types.CaseState,
	mem *memory.CaseMemory, decision types.Decision, userMessage string) (*types.ChatResponse, error) {
	dr, err := s.processDecision(ctx, cs, mem, decision, "", nil)
	if err != nil {
		return nil, err
	}
	if !dr.Success {
		return s.respond(cs.CaseID, cs.Stage, userMessage, dr.Message,
			types.IntentDecide, cs.WaitingForHuman), nil
	}

	var msg string
	if decision == types.DecisionApprove {
		msg = fmt.Sprintf("Decision approved. The case has advanced to **%s - %s**.\n\n"+
			"You can now proceed with the next phase of the sourcing process.",
			dr.NewStage, dr.NewStage.Name())
	} else {
		msg = "Decision noted. The recommendation has been rejected.\n\n" +
			"The case remains at the current stage. You can ask for alternative " +
			"strategies or request a revised analysis."
	}
	return s.respond(cs.CaseID, dr.NewStage, userMessage, msg, types.IntentDecide, false), nil
}

// ProcessDecision records an explicit human approval or rejection. Approval
// advances the stage along the first legal transition unless the decision is
// blocked by the state machine.
func (s *Service) ProcessDecision(ctx context.Context, caseID string, decision types.Decision,
	reason string, editedFields map[string]any) (*types.DecisionResult, error) {
	lock := s.lockCase(caseID)
	lock.Lock()
	defer lock.Unlock()

	cs, err := s.store.LoadCase(ctx, caseID)
	if err != nil {
		return nil, fmt.Errorf("chat: load case %s: %w", caseID, err)
	}
	if cs == nil {
		return &types.DecisionResult{Success: false, Message: "Case not found"}, nil
	}
	return s.processDecision(ctx, cs, s.memoryFor(caseID), decision, reason, editedFields)
}

func (s *Service) processDecision(ctx context.Context, cs *types.CaseState,
	mem *memory.CaseMemory, decision types.Decision, reason string,
	editedFields map[string]any) (*types.DecisionResult, error) {
	if !cs.WaitingForHuman {
		return &types.DecisionResult{Success: false, Message: "Case is not waiting for a decision"}, nil
	}

	audit := logging.AuditFor(cs.CaseID)
	ns := cs.Clone()
	ns.HumanDecision = &types.HumanDecision{
		Decision:     decision,
		Reason:       reason,
		EditedFields: editedFields,
		Timestamp:    time.Now(),
	}
	ns = ns.AppendLog(types.LogEntry{
		Timestamp: time.Now(),
		Action:    "decision_recorded",
		AgentName: "Human",
		Details:   map[string]any{"decision": string(decision), "reason": reason},
	})

	if decision == types.DecisionApprove {
		if err := s.state.CanAdvanceStage(ns, true); err == nil {
			advanced, err := s.state.AdvanceStage(ns, "")
			if err != nil {
				return nil, fmt.Errorf("chat: advance stage for %s: %w", cs.CaseID, err)
			}
			ns = advanced
			audit.StageAdvance(string(cs.Stage), string(ns.Stage))
		}
	}
	ns.Status = types.StatusInProgress
	ns.WaitingForHuman = false
	ns.UpdatedAt = time.Now()

	if err := s.store.SaveCase(ctx, ns); err != nil {
		return nil, fmt.Errorf("chat: save case %s: %w", cs.CaseID, err)
	}

	mem.RecordHumanDecision(decision, reason, mem.CurrentStrategy)
	audit.DecisionRecorded(string(decision), reason)
	s.resolveAcknowledged(mem, reason)
	s.persistMemory(ctx, mem)

	return &types.DecisionResult{
		Success:  true,
		Decision: decision,
		NewStage: ns.Stage,
		Message:  fmt.Sprintf("Decision %q processed successfully", decision),
	}, nil
}

// resolveAcknowledged clears active contradictions that the decision reason
// explicitly references, either by quoting the description or by
// acknowledging the conflict wholesale. Nothing expires on its own.
func (s *Service) resolveAcknowledged(mem *memory.CaseMemory, reason string) {
	if reason == "" {
		return
	}
	lower := strings.ToLower(reason)
	wholesale := strings.Contains(lower, "conflict") || strings.Contains(lower, "contradiction")

	audit := logging.AuditFor(mem.CaseID)
	for _, d := range append([]string(nil), mem.ActiveContradictions...) {
		if wholesale || strings.Contains(lower, strings.ToLower(d)) {
			mem.ResolveContradiction(d)
			audit.ContradictionResolved(d)
		}
	}
}

func (s *Service) respond(caseID string, stage types.Stage, userMessage, assistantMessage string,
	classified types.UserIntent, waiting bool) *types.ChatResponse {
	return &types.ChatResponse{
		CaseID:           caseID,
		UserMessage:      userMessage,
		AssistantMessage: assistantMessage,
		IntentClassified: classified,
		Stage:            stage,
		WaitingForHuman:  waiting,
	}
}

// mapGoalToIntent folds the two-level goal back onto the single-axis intent
// the response schema reports.
func mapGoalToIntent(goal types.UserGoal) types.UserIntent {
	switch goal {
	case types.GoalTrack:
		return types.IntentStatus
	case types.GoalUnderstand:
		return types.IntentExplain
	case types.GoalCreate, types.GoalCheck, types.GoalDecide:
		return types.IntentDecide
	default:
		return types.IntentDecide
	}
}
