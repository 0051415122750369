// Package types provides shared type definitions used across sourcepilot packages.
// This package exists to break import cycles between the supervisor, agents, and
// task packages. Types in this package should be foundational data structures
// with no complex dependencies.
package types

import (
	"time"
)

// =============================================================================
// DTP STAGES
// =============================================================================

// Stage identifies one of the six fixed lifecycle phases of a sourcing case.
type Stage string

const (
	StageStrategy    Stage = "DTP-01"
	StagePlanning    Stage = "DTP-02"
	StageSourcing    Stage = "DTP-03"
	StageNegotiation Stage = "DTP-04"
	StageContracting Stage = "DTP-05"
	StageExecution   Stage = "DTP-06"
)

// Stages lists all DTP stages in lifecycle order.
var Stages = []Stage{
	StageStrategy, StagePlanning, StageSourcing,
	StageNegotiation, StageContracting, StageExecution,
}

// StageNames maps a stage code to its human-readable name.
var StageNames = map[Stage]string{
	StageStrategy:    "Strategy",
	StagePlanning:    "Planning",
	StageSourcing:    "Sourcing",
	StageNegotiation: "Negotiation",
	StageContracting: "Contracting",
	StageExecution:   "Execution",
}

// IsValid reports whether s is one of the six known DTP stages.
func (s Stage) IsValid() bool {
	_, ok := StageNames[s]
	return ok
}

// Name returns the human-readable stage name, or the raw code if unknown.
func (s Stage) Name() string {
	if n, ok := StageNames[s]; ok {
		return n
	}
	return string(s)
}

// =============================================================================
// CASE STATUS AND TRIGGERS
// =============================================================================

// CaseStatus is the lifecycle status of a case.
type CaseStatus string

const (
	StatusOpen         CaseStatus = "Open"
	StatusInProgress   CaseStatus = "In Progress"
	StatusWaitingHuman CaseStatus = "Waiting for Human Decision"
	StatusCompleted    CaseStatus = "Completed"
	StatusRejected     CaseStatus = "Rejected"
)

// TriggerSource records what opened the case.
type TriggerSource string

const (
	TriggerUser   TriggerSource = "User"
	TriggerSignal TriggerSource = "Signal"
	TriggerSystem TriggerSource = "System"
)

// =============================================================================
// AGENTS
// =============================================================================

// AgentName identifies one of the first-class agents.
type AgentName string

const (
	AgentSupervisor         AgentName = "SUPERVISOR"
	AgentSourcingSignal     AgentName = "SOURCING_SIGNAL"
	AgentSupplierScoring    AgentName = "SUPPLIER_SCORING"
	AgentRfxDraft           AgentName = "RFX_DRAFT"
	AgentNegotiationSupport AgentName = "NEGOTIATION_SUPPORT"
	AgentContractSupport    AgentName = "CONTRACT_SUPPORT"
	AgentImplementation     AgentName = "IMPLEMENTATION"
)

// =============================================================================
// INTENT TAXONOMIES
// =============================================================================

// UserIntent is the single-axis intent classification.
type UserIntent string

const (
	IntentExplain UserIntent = "EXPLAIN"
	IntentExplore UserIntent = "EXPLORE"
	IntentDecide  UserIntent = "DECIDE"
	IntentStatus  UserIntent = "STATUS"
	IntentUnknown UserIntent = "UNKNOWN"
)

// UserGoal is the primary axis of the two-level classification: what outcome
// the user is looking for.
type UserGoal string

const (
	GoalTrack      UserGoal = "TRACK"
	GoalUnderstand UserGoal = "UNDERSTAND"
	GoalCreate     UserGoal = "CREATE"
	GoalCheck      UserGoal = "CHECK"
	GoalDecide     UserGoal = "DECIDE"
)

// WorkType is the secondary axis: what kind of work is needed.
type WorkType string

const (
	WorkArtifact   WorkType = "ARTIFACT"
	WorkData       WorkType = "DATA"
	WorkApproval   WorkType = "APPROVAL"
	WorkCompliance WorkType = "COMPLIANCE"
	WorkValue      WorkType = "VALUE"
)

// IntentResult is the transient product of one two-level classification.
type IntentResult struct {
	UserGoal   UserGoal `json:"user_goal"`
	WorkType   WorkType `json:"work_type"`
	Confidence float64  `json:"confidence"`
	Rationale  string   `json:"rationale"`
}

// ActionPlan is the transient routing decision for one message.
type ActionPlan struct {
	AgentName        AgentName `json:"agent_name"`
	Tasks            []string  `json:"tasks"`
	ApprovalRequired bool      `json:"approval_required"`
	UIMode           string    `json:"ui_mode"`
}

// =============================================================================
// GROUNDING
// =============================================================================

// RefType categorizes what kind of evidence a grounding reference points at.
type RefType string

const (
	RefDocument    RefType = "document"
	RefPolicy      RefType = "policy"
	RefBid         RefType = "bid"
	RefCalculation RefType = "calculation"
)

// GroundingReference points at the evidence backing part of an artifact.
// Immutable once created; identity is RefID.
type GroundingReference struct {
	RefID      string  `json:"ref_id"`
	RefType    RefType `json:"ref_type"`
	SourceName string  `json:"source_name"`
	Excerpt    string  `json:"excerpt,omitempty"`
}

// =============================================================================
// ARTIFACTS
// =============================================================================

// VerificationStatus is derived from the grounding reference count.
type VerificationStatus string

const (
	Verified   VerificationStatus = "VERIFIED"
	Partial    VerificationStatus = "PARTIAL"
	Unverified VerificationStatus = "UNVERIFIED"
)

// ArtifactType enumerates the known work-product kinds, aligned to DTP stages.
type ArtifactType string

const (
	// Sourcing signal outputs
	ArtifactSignalReport  ArtifactType = "SIGNAL_REPORT"
	ArtifactSignalSummary ArtifactType = "SIGNAL_SUMMARY"
	ArtifactAutoprep      ArtifactType = "AUTOPREP_BUNDLE"

	// Supplier scoring outputs
	ArtifactEvaluationScorecard ArtifactType = "EVALUATION_SCORECARD"
	ArtifactSupplierScorecard   ArtifactType = "SUPPLIER_SCORECARD"
	ArtifactSupplierShortlist   ArtifactType = "SUPPLIER_SHORTLIST"

	// RFx draft outputs
	ArtifactRfxPath      ArtifactType = "RFX_PATH"
	ArtifactRfxDraftPack ArtifactType = "RFX_DRAFT_PACK"
	ArtifactRfxQaTracker ArtifactType = "RFX_QA_TRACKER"

	// Negotiation support outputs
	ArtifactNegotiationPlan ArtifactType = "NEGOTIATION_PLAN"
	ArtifactLeverageSummary ArtifactType = "LEVERAGE_SUMMARY"
	ArtifactTargetTerms     ArtifactType = "TARGET_TERMS"

	// Contract support outputs
	ArtifactKeyTermsExtract ArtifactType = "KEY_TERMS_EXTRACT"
	ArtifactTermValidation  ArtifactType = "TERM_VALIDATION_REPORT"
	ArtifactHandoffPacket   ArtifactType = "CONTRACT_HANDOFF_PACKET"

	// Implementation outputs
	ArtifactImplChecklist   ArtifactType = "IMPLEMENTATION_CHECKLIST"
	ArtifactEarlyIndicators ArtifactType = "EARLY_INDICATORS_REPORT"
	ArtifactValueCapture    ArtifactType = "VALUE_CAPTURE_TEMPLATE"

	// Supervisor outputs
	ArtifactStatusSummary   ArtifactType = "STATUS_SUMMARY"
	ArtifactNextBestActions ArtifactType = "NEXT_BEST_ACTIONS"
)

// Artifact is a titled, typed, grounded unit of work product. Created once at
// the end of a task-execution cycle and never mutated afterward; a re-run
// produces a replacement artifact.
type Artifact struct {
	ArtifactID         string               `json:"artifact_id"`
	Type               ArtifactType         `json:"type"`
	Title              string               `json:"title"`
	Content            map[string]any       `json:"content"`
	ContentText        string               `json:"content_text"`
	GroundedIn         []GroundingReference `json:"grounded_in"`
	CreatedAt          time.Time            `json:"created_at"`
	CreatedByAgent     AgentName            `json:"created_by_agent"`
	CreatedByTask      string               `json:"created_by_task"`
	VerificationStatus VerificationStatus   `json:"verification_status"`
}

// NextAction is an advisory recommendation; never auto-executed.
type NextAction struct {
	ActionID           string    `json:"action_id"`
	Label              string    `json:"label"`
	Why                string    `json:"why"`
	Owner              string    `json:"owner"`
	DependsOn          []string  `json:"depends_on,omitempty"`
	RecommendedByAgent AgentName `json:"recommended_by_agent"`
	RecommendedByTask  string    `json:"recommended_by_task,omitempty"`
}

// RiskSeverity orders risk items for display: critical first.
type RiskSeverity string

const (
	RiskLow      RiskSeverity = "low"
	RiskMedium   RiskSeverity = "medium"
	RiskHigh     RiskSeverity = "high"
	RiskCritical RiskSeverity = "critical"
)

// Rank returns the ascending display rank (critical < high < medium < low).
func (s RiskSeverity) Rank() int {
	switch s {
	case RiskCritical:
		return 0
	case RiskHigh:
		return 1
	case RiskMedium:
		return 2
	case RiskLow:
		return 3
	}
	return 4
}

// RiskItem flags a risk surfaced during agent execution.
type RiskItem struct {
	Severity    RiskSeverity `json:"severity"`
	Description string       `json:"description"`
	Mitigation  string       `json:"mitigation,omitempty"`
}

// ExecutionMetadata captures audit details of one agent invocation.
type ExecutionMetadata struct {
	DurationMS  int64          `json:"duration_ms"`
	TaskTimings map[string]int `json:"task_timings,omitempty"`
	FailedTasks []string       `json:"failed_tasks,omitempty"`
}

// ArtifactPack bundles the result of one agent invocation.
type ArtifactPack struct {
	PackID            string               `json:"pack_id"`
	Artifacts         []Artifact           `json:"artifacts"`
	NextActions       []NextAction         `json:"next_actions"`
	Risks             []RiskItem           `json:"risks"`
	Notes             []string             `json:"notes,omitempty"`
	GroundedIn        []GroundingReference `json:"grounded_in"`
	AgentName         AgentName            `json:"agent_name"`
	TasksExecuted     []string             `json:"tasks_executed"`
	CreatedAt         time.Time            `json:"created_at"`
	ExecutionMetadata *ExecutionMetadata   `json:"execution_metadata,omitempty"`
}

// =============================================================================
// TASK EXCHANGE TYPES
// =============================================================================

// TaskResult is the internal exchange type between a task and its agent.
// Not persisted; consumed immediately to update the shared context.
type TaskResult struct {
	TaskName      string
	Success       bool
	Data          map[string]any
	GroundedIn    []GroundingReference
	Errors        []string
	TokensUsed    int
	ExecutionTime time.Duration
}

// AddGrounding appends a grounding reference to the result.
func (r *TaskResult) AddGrounding(refID string, refType RefType, sourceName, excerpt string) {
	r.GroundedIn = append(r.GroundedIn, GroundingReference{
		RefID:      refID,
		RefType:    refType,
		SourceName: sourceName,
		Excerpt:    excerpt,
	})
}

// =============================================================================
// CONTRADICTIONS
// =============================================================================

// ConflictSeverity grades a detected contradiction.
type ConflictSeverity string

const (
	ConflictLow    ConflictSeverity = "low"
	ConflictMedium ConflictSeverity = "medium"
	ConflictHigh   ConflictSeverity = "high"
)

// Contradiction records a disagreement between agent outputs, or between a
// new output and an already-approved decision. Append-only once detected;
// removed from the active list only by an explicit human decision.
type Contradiction struct {
	Description    string           `json:"description"`
	AgentsInvolved []string         `json:"agents_involved"`
	Severity       ConflictSeverity `json:"severity"`
	Details        map[string]any   `json:"details,omitempty"`
	Suggestion     string           `json:"suggestion,omitempty"`
}

// =============================================================================
// CASE STATE
// =============================================================================

// LogEntry is one append-only activity log record on a case.
type LogEntry struct {
	Timestamp time.Time      `json:"timestamp"`
	Action    string         `json:"action"`
	AgentName string         `json:"agent_name,omitempty"`
	FromStage Stage          `json:"from_stage,omitempty"`
	ToStage   Stage          `json:"to_stage,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
}

// Decision is a recorded human verdict.
type Decision string

const (
	DecisionApprove Decision = "Approve"
	DecisionReject  Decision = "Reject"
)

// HumanDecision captures an explicit human approval or rejection.
type HumanDecision struct {
	Decision     Decision       `json:"decision"`
	Reason       string         `json:"reason,omitempty"`
	EditedFields map[string]any `json:"edited_fields,omitempty"`
	Timestamp    time.Time      `json:"timestamp"`
}

// CaseState is the root aggregate for a sourcing case. It is owned
// exclusively by the chat service acting for the Supervisor; every other
// component receives a read view or returns a proposed delta.
type CaseState struct {
	CaseID        string        `json:"case_id"`
	CategoryID    string        `json:"category_id"`
	ContractID    string        `json:"contract_id,omitempty"`
	SupplierID    string        `json:"supplier_id,omitempty"`
	TriggerSource TriggerSource `json:"trigger_source"`
	Stage         Stage         `json:"dtp_stage"`
	Status        CaseStatus    `json:"status"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`

	// Current interaction
	UserIntent  string     `json:"user_intent,omitempty"`
	IntentClass UserIntent `json:"intent_classification,omitempty"`

	// Agent outputs (read-only for agents)
	LatestAgentOutput map[string]any `json:"latest_agent_output,omitempty"`
	LatestAgentName   AgentName      `json:"latest_agent_name,omitempty"`

	// Activity tracking
	ActivityLog []LogEntry `json:"activity_log"`

	// Decision gate
	HumanDecision   *HumanDecision `json:"human_decision,omitempty"`
	WaitingForHuman bool           `json:"waiting_for_human"`

	// Governance
	BlockedReason string `json:"blocked_reason,omitempty"`
	ErrorState    string `json:"error_state,omitempty"`

	// Extra context accumulated across turns (candidate suppliers, finalists,
	// estimated values). Consulted by the stage prerequisite checks.
	ContextFields map[string]any `json:"context_fields,omitempty"`
}

// Clone returns a copy safe to hand to a reader. Slices and maps are copied
// one level deep, which is enough because log entries and outputs are treated
// as immutable once recorded.
func (s *CaseState) Clone() *CaseState {
	if s == nil {
		return nil
	}
	out := *s
	out.ActivityLog = append([]LogEntry(nil), s.ActivityLog...)
	if s.LatestAgentOutput != nil {
		out.LatestAgentOutput = make(map[string]any, len(s.LatestAgentOutput))
		for k, v := range s.LatestAgentOutput {
			out.LatestAgentOutput[k] = v
		}
	}
	if s.ContextFields != nil {
		out.ContextFields = make(map[string]any, len(s.ContextFields))
		for k, v := range s.ContextFields {
			out.ContextFields[k] = v
		}
	}
	if s.HumanDecision != nil {
		d := *s.HumanDecision
		out.HumanDecision = &d
	}
	return &out
}

// AppendLog returns the state with one more activity log entry. The receiver
// is not modified.
func (s *CaseState) AppendLog(entry LogEntry) *CaseState {
	out := s.Clone()
	out.ActivityLog = append(out.ActivityLog, entry)
	return out
}

// =============================================================================
// OUTWARD-FACING RESULTS
// =============================================================================

// ChatResponse is returned from the message-processing entry point.
type ChatResponse struct {
	CaseID           string           `json:"case_id"`
	UserMessage      string           `json:"user_message"`
	AssistantMessage string           `json:"assistant_message"`
	IntentClassified UserIntent       `json:"intent_classified"`
	AgentsCalled     []string         `json:"agents_called,omitempty"`
	TokensUsed       int              `json:"tokens_used"`
	Stage            Stage            `json:"dtp_stage"`
	WaitingForHuman  bool             `json:"waiting_for_human"`
	RetrievalContext *RetrievalResult `json:"retrieval_context,omitempty"`
	WorkflowSummary  map[string]any   `json:"workflow_summary,omitempty"`
}

// DecisionResult is returned from the decision-processing entry point.
type DecisionResult struct {
	Success  bool     `json:"success"`
	Decision Decision `json:"decision,omitempty"`
	NewStage Stage    `json:"new_dtp_stage,omitempty"`
	Message  string   `json:"message"`
}
