package chat

import (
	"fmt"
	"strings"

	"sourcepilot/internal/memory"
	"sourcepilot/internal/types"
)

// formatPack renders an artifact pack as the assistant message: headline
// artifacts, recommended steps, risks, notes, and any detected conflicts.
func formatPack(pack *types.ArtifactPack, conflictLines []string, waiting bool) string {
	var b strings.Builder

	for i, a := range pack.Artifacts {
		if i >= 3 {
			break
		}
		fmt.Fprintf(&b, "**%s**\n", a.Title)
		if a.ContentText != "" {
			b.WriteString(clip(a.ContentText, 300))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	if len(pack.NextActions) > 0 {
		b.WriteString("**Recommended Next Steps:**\n")
		for i, action := range pack.NextActions {
			if i >= 3 {
				break
			}
			fmt.Fprintf(&b, "- %s\n", action.Label)
		}
		b.WriteString("\n")
	}

	if len(pack.Risks) > 0 {
		b.WriteString("**Risks Identified:**\n")
		for i, risk := range pack.Risks {
			if i >= 2 {
				break
			}
			fmt.Fprintf(&b, "- [%s] %s\n", strings.ToUpper(string(risk.Severity)), risk.Description)
		}
		b.WriteString("\n")
	}

	for _, line := range conflictLines {
		b.WriteString(line)
		b.WriteString("\n")
	}

	for _, note := range pack.Notes {
		fmt.Fprintf(&b, "*%s*\n", note)
	}

	if waiting {
		b.WriteString("---\n")
		b.WriteString("Review the artifacts above and approve to proceed, or request changes.")
	}

	return strings.TrimRight(b.String(), "\n")
}

// statusReply summarizes the case without running any agent.
func (s *Service) statusReply(cs *types.CaseState, mem *memory.CaseMemory, userMessage string) *types.ChatResponse {
	pack := s.supervisor.BuildStatusSummary(cs)

	var b strings.Builder
	fmt.Fprintf(&b, "**Current Status: %s**\n\n", cs.Status)
	fmt.Fprintf(&b, "**Stage:** %s - %s\n", cs.Stage, cs.Stage.Name())
	category := cs.CategoryID
	if category == "" {
		category = "N/A"
	}
	fmt.Fprintf(&b, "**Category:** %s\n", category)
	if cs.SupplierID != "" {
		fmt.Fprintf(&b, "**Supplier:** %s\n", cs.SupplierID)
	}
	if mem.CurrentStrategy != "" {
		fmt.Fprintf(&b, "\n**Current Recommendation:** %s\n", mem.CurrentStrategy)
	}

	if len(pack.NextActions) > 0 {
		b.WriteString("\n**Next Best Actions:**\n")
		for _, a := range pack.NextActions {
			fmt.Fprintf(&b, "- %s: %s\n", a.Label, a.Why)
		}
	}

	if cs.WaitingForHuman {
		b.WriteString("\n**Action Required:** This case is awaiting your approval to proceed. " +
			"You can approve the recommendation or request changes.")
	}

	resp := s.respond(cs.CaseID, cs.Stage, userMessage, b.String(),
		types.IntentStatus, cs.WaitingForHuman)
	resp.AgentsCalled = []string{string(types.AgentSupervisor)}
	return resp
}

// explainReply explains the latest agent output without new analysis.
func (s *Service) explainReply(cs *types.CaseState, userMessage string) *types.ChatResponse {
	if cs.LatestAgentOutput == nil {
		msg := "No recommendation has been generated yet for this case.\n\n" +
			"Would you like me to analyze this case? Ask me to scan signals, score " +
			"suppliers, or draft a document for the current stage."
		return s.respond(cs.CaseID, cs.Stage, userMessage, msg, types.IntentExplain, cs.WaitingForHuman)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "**Analysis from %s**\n\n", cs.LatestAgentName)

	out := cs.LatestAgentOutput
	switch cs.LatestAgentName {
	case types.AgentSourcingSignal:
		if summary, ok := out["summary"].(string); ok && summary != "" {
			b.WriteString(summary)
			b.WriteString("\n\n")
		}
		if urgency, ok := asInt(out["urgency_score"]); ok {
			fmt.Fprintf(&b, "Urgency: %d/10\n", urgency)
		}
	case types.AgentSupplierScoring:
		if rec, ok := out["recommendation"].(string); ok && rec != "" {
			b.WriteString(rec)
			b.WriteString("\n")
		}
	case types.AgentRfxDraft:
		if rfxType, ok := out["rfx_type"].(string); ok {
			score, _ := asInt(out["completeness_score"])
			fmt.Fprintf(&b, "**%s Draft** - %d%% complete\n", rfxType, score)
		}
	case types.AgentNegotiationSupport:
		if objectives, ok := asStringSlice(out["negotiation_objectives"]); ok && len(objectives) > 0 {
			b.WriteString("**Objectives:**\n")
			for _, o := range objectives {
				fmt.Fprintf(&b, "- %s\n", o)
			}
		}
	case types.AgentContractSupport:
		compliant, _ := out["is_compliant"].(bool)
		status := "Issues Found"
		if compliant {
			status = "Compliant"
		}
		fmt.Fprintf(&b, "**Compliance Status:** %s\n", status)
	case types.AgentImplementation:
		if annual, ok := asFloat(out["annual_savings"]); ok {
			total, _ := asFloat(out["total_savings"])
			fmt.Fprintf(&b, "**Projected Savings**\n- Annual: $%.0f\n- Total: $%.0f\n", annual, total)
		}
	default:
		b.WriteString("The latest output is available in the case artifacts.\n")
	}

	b.WriteString("\nWould you like me to explain any specific aspect in more detail?")
	return s.respond(cs.CaseID, cs.Stage, userMessage, b.String(),
		types.IntentExplain, cs.WaitingForHuman)
}

// exploreReply discusses alternatives without changing case state.
func (s *Service) exploreReply(cs *types.CaseState, userMessage string) *types.ChatResponse {
	var b strings.Builder
	b.WriteString("**Alternative Strategies to Consider:**\n\n")
	b.WriteString("- **Renew:** Extend the current contract with existing terms\n")
	b.WriteString("- **Renegotiate:** Modify terms with the current supplier\n")
	b.WriteString("- **RFx:** Open competitive bidding to the market\n")
	b.WriteString("- **Monitor:** Delay decision and continue monitoring\n")
	b.WriteString("- **Terminate:** End the relationship with the current supplier\n")
	b.WriteString("\nExploring alternatives does not change the current recommendation. " +
		"Request a new analysis to change it.")
	return s.respond(cs.CaseID, cs.Stage, userMessage, b.String(),
		types.IntentExplore, cs.WaitingForHuman)
}

// generalReply orients the user when the intent is unclear.
func (s *Service) generalReply(cs *types.CaseState, userMessage string) *types.ChatResponse {
	var b strings.Builder
	fmt.Fprintf(&b, "I'm here to help with case %s, currently at **%s - %s**.\n\n",
		cs.CaseID, cs.Stage, cs.Stage.Name())
	b.WriteString("I can help you:\n")
	b.WriteString("- **Get status:** 'What is the current status?'\n")
	b.WriteString("- **Understand:** 'Why is this recommended?'\n")
	b.WriteString("- **Explore:** 'What are the alternatives?'\n")
	b.WriteString("- **Act:** 'Scan signals' or 'Score suppliers'\n")
	if cs.WaitingForHuman {
		b.WriteString("\n**Note:** This case is awaiting your approval decision.")
	}
	return s.respond(cs.CaseID, cs.Stage, userMessage, b.String(),
		types.IntentUnknown, cs.WaitingForHuman)
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
