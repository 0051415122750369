package task

import (
	"sort"

	"sourcepilot/internal/types"
)

// =============================================================================
// TASK REGISTRY
// =============================================================================

// Metadata describes a registered task.
type Metadata struct {
	TaskName          string
	AgentName         types.AgentName
	Description       string
	RequiresLLM       bool
	RequiresRetrieval bool

	factory func(name string, deps Deps) Task
}

// Registry maps task names to constructors. Get returns a fresh instance per
// call so no execution state leaks between runs. The registry is a plain
// struct built in cmd and injected wherever tasks are executed.
type Registry struct {
	deps  Deps
	tasks map[string]Metadata
}

// NewRegistry builds a registry with the full task library registered
// against the given collaborators.
func NewRegistry(deps Deps) *Registry {
	r := &Registry{
		deps:  deps,
		tasks: make(map[string]Metadata),
	}
	registerSignalTasks(r)
	registerScoringTasks(r)
	registerRfxTasks(r)
	registerNegotiationTasks(r)
	registerContractTasks(r)
	registerImplementationTasks(r)
	return r
}

type registerOption func(*Metadata)

func withLLM() registerOption {
	return func(m *Metadata) { m.RequiresLLM = true }
}

func (r *Registry) register(name string, agent types.AgentName, description string,
	factory func(name string, deps Deps) Task, opts ...registerOption) {
	meta := Metadata{
		TaskName:          name,
		AgentName:         agent,
		Description:       description,
		RequiresRetrieval: true,
		factory:           factory,
	}
	for _, opt := range opts {
		opt(&meta)
	}
	r.tasks[name] = meta
}

// Get returns a fresh task instance for name, or nil when unregistered.
func (r *Registry) Get(name string) Task {
	meta, ok := r.tasks[name]
	if !ok {
		return nil
	}
	return meta.factory(name, r.deps)
}

// Lookup returns the metadata for name.
func (r *Registry) Lookup(name string) (Metadata, bool) {
	meta, ok := r.tasks[name]
	return meta, ok
}

// TasksForAgent returns the sorted names of every task registered for agent.
func (r *Registry) TasksForAgent(agent types.AgentName) []string {
	var names []string
	for name, meta := range r.tasks {
		if meta.AgentName == agent {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// List returns metadata for every registered task, sorted by name.
func (r *Registry) List() []Metadata {
	out := make([]Metadata, 0, len(r.tasks))
	for _, meta := range r.tasks {
		out = append(out, meta)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TaskName < out[j].TaskName })
	return out
}

func registerSignalTasks(r *Registry) {
	r.register("detect_contract_expiry_signals", types.AgentSourcingSignal,
		"Detect contracts expiring soon",
		func(name string, deps Deps) Task { return &DetectContractExpiryTask{base: newBase(name, deps)} })
	r.register("detect_performance_degradation_signals", types.AgentSourcingSignal,
		"Detect supplier performance issues",
		func(name string, deps Deps) Task { return &DetectPerformanceDegradationTask{base: newBase(name, deps)} })
	r.register("detect_spend_anomalies", types.AgentSourcingSignal,
		"Detect spend pattern anomalies",
		func(name string, deps Deps) Task { return &DetectSpendAnomaliesTask{base: newBase(name, deps)} })
	r.register("apply_relevance_filters", types.AgentSourcingSignal,
		"Filter signals by relevance",
		func(name string, deps Deps) Task { return &ApplyRelevanceFiltersTask{base: newBase(name, deps)} })
	r.register("semantic_grounded_summary", types.AgentSourcingSignal,
		"Generate grounded signal summary",
		func(name string, deps Deps) Task { return &SemanticGroundedSummaryTask{base: newBase(name, deps)} },
		withLLM())
	r.register("produce_autoprep_recommendations", types.AgentSourcingSignal,
		"Generate autoprep recommendations",
		func(name string, deps Deps) Task {
			return &ProduceAutoprepRecommendationsTask{base: newBase(name, deps)}
		})
}

func registerScoringTasks(r *Registry) {
	r.register("build_evaluation_criteria", types.AgentSupplierScoring,
		"Build evaluation criteria from inputs",
		func(name string, deps Deps) Task { return &BuildEvaluationCriteriaTask{base: newBase(name, deps)} })
	r.register("pull_supplier_performance", types.AgentSupplierScoring,
		"Pull supplier performance data",
		func(name string, deps Deps) Task { return &PullSupplierPerformanceTask{base: newBase(name, deps)} })
	r.register("pull_risk_indicators", types.AgentSupplierScoring,
		"Pull risk indicator data",
		func(name string, deps Deps) Task { return &PullRiskIndicatorsTask{base: newBase(name, deps)} })
	r.register("normalize_metrics", types.AgentSupplierScoring,
		"Normalize metrics for comparison",
		func(name string, deps Deps) Task { return &NormalizeMetricsTask{base: newBase(name, deps)} })
	r.register("compute_scores_and_rank", types.AgentSupplierScoring,
		"Compute final scores and ranking",
		func(name string, deps Deps) Task { return &ComputeScoresAndRankTask{base: newBase(name, deps)} })
	r.register("eligibility_checks", types.AgentSupplierScoring,
		"Check supplier eligibility rules",
		func(name string, deps Deps) Task { return &EligibilityChecksTask{base: newBase(name, deps)} })
	r.register("generate_explanations", types.AgentSupplierScoring,
		"Generate score explanations",
		func(name string, deps Deps) Task { return &GenerateExplanationsTask{base: newBase(name, deps)} },
		withLLM())
}

func registerRfxTasks(r *Registry) {
	r.register("determine_rfx_path", types.AgentRfxDraft,
		"Determine RFI/RFP/RFQ path",
		func(name string, deps Deps) Task { return &DetermineRfxPathTask{base: newBase(name, deps)} })
	r.register("retrieve_templates_and_past_examples", types.AgentRfxDraft,
		"Retrieve RFx templates and examples",
		func(name string, deps Deps) Task { return &RetrieveTemplatesTask{base: newBase(name, deps)} })
	r.register("assemble_rfx_sections", types.AgentRfxDraft,
		"Assemble RFx document sections",
		func(name string, deps Deps) Task { return &AssembleRfxSectionsTask{base: newBase(name, deps)} })
	r.register("completeness_checks", types.AgentRfxDraft,
		"Check RFx completeness",
		func(name string, deps Deps) Task { return &CompletenessChecksTask{base: newBase(name, deps)} })
	r.register("draft_questions_and_requirements", types.AgentRfxDraft,
		"Draft questions and requirements",
		func(name string, deps Deps) Task { return &DraftQuestionsTask{base: newBase(name, deps)} },
		withLLM())
	r.register("create_qa_tracker", types.AgentRfxDraft,
		"Create Q&A tracking table",
		func(name string, deps Deps) Task { return &CreateQaTrackerTask{base: newBase(name, deps)} })
}

func registerNegotiationTasks(r *Registry) {
	r.register("compare_bids", types.AgentNegotiationSupport,
		"Compare supplier bids",
		func(name string, deps Deps) Task { return &CompareBidsTask{base: newBase(name, deps)} })
	r.register("leverage_point_extraction", types.AgentNegotiationSupport,
		"Extract negotiation leverage points",
		func(name string, deps Deps) Task { return &LeveragePointExtractionTask{base: newBase(name, deps)} })
	r.register("benchmark_retrieval", types.AgentNegotiationSupport,
		"Retrieve market benchmarks",
		func(name string, deps Deps) Task { return &BenchmarkRetrievalTask{base: newBase(name, deps)} })
	r.register("price_anomaly_detection", types.AgentNegotiationSupport,
		"Detect pricing anomalies",
		func(name string, deps Deps) Task { return &PriceAnomalyDetectionTask{base: newBase(name, deps)} })
	r.register("propose_targets_and_fallbacks", types.AgentNegotiationSupport,
		"Propose target terms and fallbacks",
		func(name string, deps Deps) Task { return &ProposeTargetsAndFallbacksTask{base: newBase(name, deps)} })
	r.register("negotiation_playbook", types.AgentNegotiationSupport,
		"Generate negotiation playbook",
		func(name string, deps Deps) Task { return &NegotiationPlaybookTask{base: newBase(name, deps)} },
		withLLM())
}

func registerContractTasks(r *Registry) {
	r.register("extract_key_terms", types.AgentContractSupport,
		"Extract key contract terms",
		func(name string, deps Deps) Task { return &ExtractKeyTermsTask{base: newBase(name, deps)} })
	r.register("term_validation", types.AgentContractSupport,
		"Validate contract terms",
		func(name string, deps Deps) Task { return &TermValidationTask{base: newBase(name, deps)} })
	r.register("term_alignment_summary", types.AgentContractSupport,
		"Summarize term alignment",
		func(name string, deps Deps) Task { return &TermAlignmentSummaryTask{base: newBase(name, deps)} },
		withLLM())
	r.register("implementation_handoff_packet", types.AgentContractSupport,
		"Create implementation handoff packet",
		func(name string, deps Deps) Task { return &ImplementationHandoffPacketTask{base: newBase(name, deps)} })
}

func registerImplementationTasks(r *Registry) {
	r.register("build_rollout_checklist", types.AgentImplementation,
		"Build rollout checklist",
		func(name string, deps Deps) Task { return &BuildRolloutChecklistTask{base: newBase(name, deps)} })
	r.register("compute_expected_savings", types.AgentImplementation,
		"Compute expected savings",
		func(name string, deps Deps) Task { return &ComputeExpectedSavingsTask{base: newBase(name, deps)} })
	r.register("define_early_indicators", types.AgentImplementation,
		"Define early success indicators",
		func(name string, deps Deps) Task { return &DefineEarlyIndicatorsTask{base: newBase(name, deps)} })
	r.register("reporting_templates", types.AgentImplementation,
		"Generate reporting templates",
		func(name string, deps Deps) Task { return &ReportingTemplatesTask{base: newBase(name, deps)} })
}
