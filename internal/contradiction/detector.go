// Package contradiction detects conflicts between agent outputs and surfaces
// them for human adjudication. Nothing here resolves anything: transparency
// over automation, the human decides.
package contradiction

import (
	"fmt"
	"strings"

	"sourcepilot/internal/logging"
	"sourcepilot/internal/memory"
	"sourcepilot/internal/types"
)

// Output is the normalized view of one agent output that the detector rules
// inspect. Agents publish these alongside their artifact packs.
type Output struct {
	// Type names the output shape: StrategyRecommendation, SupplierShortlist,
	// NegotiationPlan.
	Type string

	// StrategyRecommendation fields
	RecommendedStrategy string
	Confidence          float64

	// SupplierShortlist fields
	ShortlistedSuppliers []string
	TopChoiceSupplierID  string

	// NegotiationPlan fields
	SupplierID string
}

// AgentOutput pairs an output with the agent that produced it.
type AgentOutput struct {
	AgentName string
	Output    Output
}

// Detector runs the conflict rules.
type Detector struct{}

// NewDetector returns a detector.
func NewDetector() *Detector {
	return &Detector{}
}

// Check compares a new output against prior outputs and the case memory, and
// returns every detected conflict. A nil memory skips the memory rule.
func (d *Detector) Check(newOutput Output, newAgent string, previous []AgentOutput, mem *memory.CaseMemory) []types.Contradiction {
	var found []types.Contradiction

	for _, prev := range previous {
		if newOutput.Type == "StrategyRecommendation" && prev.Output.Type == "StrategyRecommendation" {
			if c := d.checkStrategyConflict(newOutput, newAgent, prev.Output, prev.AgentName); c != nil {
				found = append(found, *c)
			}
		}
		if newOutput.Type == "StrategyRecommendation" && prev.Output.Type == "SupplierShortlist" {
			if c := d.checkStrategySupplierMismatch(newOutput, newAgent, prev.Output, prev.AgentName); c != nil {
				found = append(found, *c)
			}
		}
		if newOutput.Type == "NegotiationPlan" && prev.Output.Type == "SupplierShortlist" {
			if c := d.checkSupplierNegotiationMismatch(newOutput, newAgent, prev.Output, prev.AgentName); c != nil {
				found = append(found, *c)
			}
		}
	}

	if mem != nil {
		found = append(found, d.checkAgainstMemory(newOutput, newAgent, mem)...)
	}

	for _, c := range found {
		logging.Get(logging.CategoryContradiction).Warnf("case conflict (%s): %s", c.Severity, c.Description)
	}
	return found
}

// majorShifts lists strategy pairs whose reversal is a high-severity change.
var majorShifts = map[[2]string]bool{
	{"Renew", "Terminate"}: true,
	{"Terminate", "Renew"}: true,
	{"RFx", "Renew"}:       true,
	{"Renew", "RFx"}:       true,
}

func (d *Detector) checkStrategyConflict(newOut Output, newAgent string, prevOut Output, prevAgent string) *types.Contradiction {
	if newOut.RecommendedStrategy == "" || prevOut.RecommendedStrategy == "" {
		return nil
	}
	if newOut.RecommendedStrategy == prevOut.RecommendedStrategy {
		return nil
	}

	severity := types.ConflictMedium
	if majorShifts[[2]string{newOut.RecommendedStrategy, prevOut.RecommendedStrategy}] {
		severity = types.ConflictHigh
	}

	return &types.Contradiction{
		Description:    fmt.Sprintf("Strategy changed from %q to %q", prevOut.RecommendedStrategy, newOut.RecommendedStrategy),
		AgentsInvolved: []string{prevAgent, newAgent},
		Severity:       severity,
		Details: map[string]any{
			"previous_strategy":   prevOut.RecommendedStrategy,
			"new_strategy":        newOut.RecommendedStrategy,
			"previous_confidence": prevOut.Confidence,
			"new_confidence":      newOut.Confidence,
		},
		Suggestion: "Please confirm which strategy direction to pursue.",
	}
}

func (d *Detector) checkStrategySupplierMismatch(strategy Output, strategyAgent string, shortlist Output, shortlistAgent string) *types.Contradiction {
	if strategy.RecommendedStrategy == "Terminate" && len(shortlist.ShortlistedSuppliers) > 0 {
		return &types.Contradiction{
			Description:    fmt.Sprintf("Strategy recommends Terminate but %d suppliers were shortlisted", len(shortlist.ShortlistedSuppliers)),
			AgentsInvolved: []string{strategyAgent, shortlistAgent},
			Severity:       types.ConflictMedium,
			Details: map[string]any{
				"strategy":       strategy.RecommendedStrategy,
				"supplier_count": len(shortlist.ShortlistedSuppliers),
			},
			Suggestion: "If terminating, supplier evaluation may not be needed. Please clarify direction.",
		}
	}

	if strategy.RecommendedStrategy == "Renew" && shortlist.TopChoiceSupplierID != "" && len(shortlist.ShortlistedSuppliers) > 1 {
		return &types.Contradiction{
			Description:    "Strategy recommends Renew but multiple suppliers were evaluated",
			AgentsInvolved: []string{strategyAgent, shortlistAgent},
			Severity:       types.ConflictLow,
			Details: map[string]any{
				"strategy":           strategy.RecommendedStrategy,
				"top_choice":         shortlist.TopChoiceSupplierID,
				"alternatives_count": len(shortlist.ShortlistedSuppliers) - 1,
			},
			Suggestion: "Renewal typically stays with the current supplier. Confirm if alternatives should be considered.",
		}
	}

	return nil
}

func (d *Detector) checkSupplierNegotiationMismatch(negotiation Output, negotiationAgent string, shortlist Output, shortlistAgent string) *types.Contradiction {
	if negotiation.SupplierID == "" {
		return nil
	}

	inShortlist := false
	for _, s := range shortlist.ShortlistedSuppliers {
		if s == negotiation.SupplierID {
			inShortlist = true
			break
		}
	}

	if !inShortlist {
		return &types.Contradiction{
			Description:    fmt.Sprintf("Negotiating with %q who was not in the shortlist", negotiation.SupplierID),
			AgentsInvolved: []string{shortlistAgent, negotiationAgent},
			Severity:       types.ConflictHigh,
			Details: map[string]any{
				"negotiation_supplier":  negotiation.SupplierID,
				"shortlisted_suppliers": shortlist.ShortlistedSuppliers,
			},
			Suggestion: "Negotiation should typically be with a shortlisted supplier. Please verify.",
		}
	}

	if shortlist.TopChoiceSupplierID != "" && negotiation.SupplierID != shortlist.TopChoiceSupplierID {
		return &types.Contradiction{
			Description:    fmt.Sprintf("Negotiating with %q instead of top choice %q", negotiation.SupplierID, shortlist.TopChoiceSupplierID),
			AgentsInvolved: []string{shortlistAgent, negotiationAgent},
			Severity:       types.ConflictLow,
			Details: map[string]any{
				"negotiation_supplier": negotiation.SupplierID,
				"top_choice":           shortlist.TopChoiceSupplierID,
			},
			Suggestion: "This may be intentional. Just confirming you want to proceed with this supplier.",
		}
	}

	return nil
}

// checkAgainstMemory flags a new strategy that diverges from one the human
// already approved. An unapproved memory strategy is not a conflict.
func (d *Detector) checkAgainstMemory(newOut Output, newAgent string, mem *memory.CaseMemory) []types.Contradiction {
	if newOut.Type != "StrategyRecommendation" || newOut.RecommendedStrategy == "" {
		return nil
	}
	if mem.CurrentStrategy == "" || mem.CurrentStrategy == newOut.RecommendedStrategy {
		return nil
	}

	approved := false
	for _, dec := range mem.HumanDecisions {
		if strings.Contains(dec, "Approve") && strings.Contains(dec, mem.CurrentStrategy) {
			approved = true
			break
		}
	}
	if !approved {
		return nil
	}

	return []types.Contradiction{{
		Description:    fmt.Sprintf("New recommendation %q contradicts previously approved strategy %q", newOut.RecommendedStrategy, mem.CurrentStrategy),
		AgentsInvolved: []string{"Memory", newAgent},
		Severity:       types.ConflictHigh,
		Details: map[string]any{
			"approved_strategy": mem.CurrentStrategy,
			"new_strategy":      newOut.RecommendedStrategy,
		},
		Suggestion: "You previously approved a different strategy. Please confirm if you want to change direction.",
	}}
}

// FormatForChat renders contradictions as chat lines.
func FormatForChat(contradictions []types.Contradiction) []string {
	out := make([]string, 0, len(contradictions))
	for _, c := range contradictions {
		marker := "NOTE"
		if c.Severity == types.ConflictMedium || c.Severity == types.ConflictHigh {
			marker = "CONFLICT"
		}
		line := fmt.Sprintf("[%s] %s", marker, c.Description)
		if c.Suggestion != "" {
			line += " " + c.Suggestion
		}
		out = append(out, line)
	}
	return out
}
