package state

import (
	"fmt"

	"sourcepilot/internal/types"
)

// StagePrereqs describes what a stage needs before work there can proceed.
// Used by the chat service preflight check and readiness reports; never used
// to advance a stage automatically.
type StagePrereqs struct {
	Description string

	// Case fields that must be non-empty.
	CaseFields []string

	// Decisions that must already be recorded, as "<stage>.<key>".
	HumanDecisions []string

	// Context fields that must all be present.
	ContextFields []string

	// Context fields where at least one must be present.
	ContextFieldsOr []string
}

var stagePrereqs = map[types.Stage]StagePrereqs{
	types.StageStrategy: {
		Description: "Strategy & Triage",
		CaseFields:  []string{"category_id", "trigger_source"},
	},
	types.StagePlanning: {
		Description:    "Supplier Identification",
		HumanDecisions: []string{"DTP-01.sourcing_required"},
		ContextFields:  []string{"candidate_suppliers"},
	},
	types.StageSourcing: {
		Description:    "RFx & Evaluation",
		HumanDecisions: []string{"DTP-02.supplier_list_confirmed"},
	},
	types.StageNegotiation: {
		Description:     "Negotiation & Award",
		HumanDecisions:  []string{"DTP-03.evaluation_complete"},
		ContextFieldsOr: []string{"finalist_suppliers", "selected_supplier_id"},
	},
	types.StageContracting: {
		Description:    "Internal Approval",
		HumanDecisions: []string{"DTP-04.award_supplier_id"},
	},
	types.StageExecution: {
		Description:    "Implementation",
		HumanDecisions: []string{"DTP-05.stakeholder_signoff"},
	},
}

// PrereqsFor returns the prerequisites for a stage.
func PrereqsFor(stage types.Stage) (StagePrereqs, bool) {
	p, ok := stagePrereqs[stage]
	return p, ok
}

// StageDescription returns the human-readable description for a stage, or the
// raw code when unknown.
func StageDescription(stage types.Stage) string {
	if p, ok := stagePrereqs[stage]; ok {
		return p.Description
	}
	return string(stage)
}

// AllPriorDecisions returns every decision required by the stage and all the
// stages before it, in lifecycle order.
func AllPriorDecisions(stage types.Stage) []string {
	var out []string
	for _, s := range types.Stages {
		if p, ok := stagePrereqs[s]; ok {
			out = append(out, p.HumanDecisions...)
		}
		if s == stage {
			return out
		}
	}
	return nil
}

// MissingInputs reports which prerequisites of the given stage the case does
// not yet satisfy. Recorded decisions are looked up in the case's context
// fields under "decision.<stage>.<key>". An empty slice means ready.
func MissingInputs(s *types.CaseState, stage types.Stage) []string {
	p, ok := stagePrereqs[stage]
	if !ok {
		return []string{fmt.Sprintf("unknown stage %s", stage)}
	}

	var missing []string

	for _, field := range p.CaseFields {
		switch field {
		case "category_id":
			if s.CategoryID == "" {
				missing = append(missing, "case field category_id")
			}
		case "trigger_source":
			if s.TriggerSource == "" {
				missing = append(missing, "case field trigger_source")
			}
		case "contract_id":
			if s.ContractID == "" {
				missing = append(missing, "case field contract_id")
			}
		case "supplier_id":
			if s.SupplierID == "" {
				missing = append(missing, "case field supplier_id")
			}
		}
	}

	for _, dec := range p.HumanDecisions {
		if !hasContextField(s, "decision."+dec) {
			missing = append(missing, fmt.Sprintf("prior decision %s", dec))
		}
	}

	for _, field := range p.ContextFields {
		if !hasContextField(s, field) {
			missing = append(missing, fmt.Sprintf("context field %s", field))
		}
	}

	if len(p.ContextFieldsOr) > 0 {
		found := false
		for _, field := range p.ContextFieldsOr {
			if hasContextField(s, field) {
				found = true
				break
			}
		}
		if !found {
			missing = append(missing, fmt.Sprintf("one of context fields %v", p.ContextFieldsOr))
		}
	}

	return missing
}

func hasContextField(s *types.CaseState, key string) bool {
	if s.ContextFields == nil {
		return false
	}
	v, ok := s.ContextFields[key]
	if !ok || v == nil {
		return false
	}
	switch t := v.(type) {
	case string:
		return t != ""
	case []any:
		return len(t) > 0
	case []string:
		return len(t) > 0
	}
	return true
}
