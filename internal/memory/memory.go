// Package memory provides the rolling, bounded case memory that carries
// continuity across turns. Memory is a summary of significant events, never a
// raw chat transcript, and every list in it has a hard cap.
package memory

import (
	"fmt"
	"strings"
	"time"

	"sourcepilot/internal/logging"
	"sourcepilot/internal/types"
)

// Default bounds. Overridable through NewWithBounds for tests and config.
const (
	DefaultMaxEntries   = 20
	DefaultMaxDecisions = 10
	DefaultMaxIntents   = 5
)

// EntryType labels what kind of event a memory entry records.
type EntryType string

const (
	EntryAgentOutput   EntryType = "agent_output"
	EntryApproval      EntryType = "approval"
	EntryRejection     EntryType = "rejection"
	EntryUserIntent    EntryType = "user_intent"
	EntryContradiction EntryType = "contradiction"
)

// Entry is one significant case event, summarized.
type Entry struct {
	Timestamp time.Time      `json:"timestamp"`
	Type      EntryType      `json:"entry_type"`
	AgentName string         `json:"agent_name,omitempty"`
	Summary   string         `json:"summary"`
	Details   map[string]any `json:"details,omitempty"`
}

// CaseMemory is the structured memory for one sourcing case. Not safe for
// concurrent use; the chat service serializes access per case.
type CaseMemory struct {
	CaseID string `json:"case_id"`

	// Rolling entries, oldest dropped first.
	Entries []Entry `json:"entries"`

	// Summarized state, always current.
	CurrentStrategy       string   `json:"current_strategy,omitempty"`
	CurrentSupplierChoice string   `json:"current_supplier_choice,omitempty"`
	HumanDecisions        []string `json:"human_decisions"`
	KeyUserIntents        []string `json:"key_user_intents"`
	ActiveContradictions  []string `json:"active_contradictions"`

	// Counters
	TotalAgentCalls     int `json:"total_agent_calls"`
	TotalHumanDecisions int `json:"total_human_decisions"`

	maxEntries   int
	maxDecisions int
	maxIntents   int
}

// New creates a case memory with default bounds.
func New(caseID string) *CaseMemory {
	return NewWithBounds(caseID, DefaultMaxEntries, DefaultMaxDecisions, DefaultMaxIntents)
}

// NewWithBounds creates a case memory with explicit bounds.
func NewWithBounds(caseID string, maxEntries, maxDecisions, maxIntents int) *CaseMemory {
	return &CaseMemory{
		CaseID:               caseID,
		Entries:              []Entry{},
		HumanDecisions:       []string{},
		KeyUserIntents:       []string{},
		ActiveContradictions: []string{},
		maxEntries:           maxEntries,
		maxDecisions:         maxDecisions,
		maxIntents:           maxIntents,
	}
}

// RestoreBounds reapplies bounds after deserialization.
func (m *CaseMemory) RestoreBounds(maxEntries, maxDecisions, maxIntents int) {
	m.maxEntries = maxEntries
	m.maxDecisions = maxDecisions
	m.maxIntents = maxIntents
}

func (m *CaseMemory) addEntry(e Entry) {
	m.Entries = append(m.Entries, e)
	if max := m.bound(m.maxEntries, DefaultMaxEntries); len(m.Entries) > max {
		m.Entries = m.Entries[len(m.Entries)-max:]
	}
}

func (m *CaseMemory) bound(v, fallback int) int {
	if v <= 0 {
		return fallback
	}
	return v
}

// RecordAgentOutput records one agent's output summary. Strategy and
// shortlist outputs also refresh the corresponding summarized state.
func (m *CaseMemory) RecordAgentOutput(agent types.AgentName, outputType, summary string, details map[string]any) {
	m.TotalAgentCalls++
	m.addEntry(Entry{
		Timestamp: time.Now(),
		Type:      EntryAgentOutput,
		AgentName: string(agent),
		Summary:   clip(fmt.Sprintf("%s: %s", agent, summary), 100),
		Details:   details,
	})

	switch outputType {
	case "StrategyRecommendation":
		if s, ok := details["recommended_strategy"].(string); ok {
			m.CurrentStrategy = s
		}
	case "SupplierShortlist":
		if s, ok := details["top_choice_supplier_id"].(string); ok {
			m.CurrentSupplierChoice = s
		}
	}
	logging.Memory("case %s: recorded %s output (%s)", m.CaseID, agent, outputType)
}

// RecordHumanDecision records an approval or rejection.
func (m *CaseMemory) RecordHumanDecision(decision types.Decision, reason, context string) {
	m.TotalHumanDecisions++

	summary := "Human " + string(decision)
	if context != "" {
		summary += " (" + context + ")"
	}

	entryType := EntryApproval
	if decision == types.DecisionReject {
		entryType = EntryRejection
	}
	m.addEntry(Entry{
		Timestamp: time.Now(),
		Type:      entryType,
		AgentName: "Human",
		Summary:   clip(summary, 100),
		Details:   map[string]any{"decision": string(decision), "reason": reason},
	})

	text := string(decision) + ": "
	if context != "" {
		text += context
	} else {
		text += "unspecified"
	}
	if reason != "" {
		text += " - " + clip(reason, 50)
	}
	m.HumanDecisions = append(m.HumanDecisions, text)
	if max := m.bound(m.maxDecisions, DefaultMaxDecisions); len(m.HumanDecisions) > max {
		m.HumanDecisions = m.HumanDecisions[len(m.HumanDecisions)-max:]
	}
}

// RecordUserIntent records a significant user request. Trivially short
// messages are ignored.
func (m *CaseMemory) RecordUserIntent(intent string) {
	if len(strings.TrimSpace(intent)) <= 5 {
		return
	}
	m.addEntry(Entry{
		Timestamp: time.Now(),
		Type:      EntryUserIntent,
		Summary:   clip("User: "+intent, 100),
		Details:   map[string]any{"full_intent": intent},
	})

	m.KeyUserIntents = append(m.KeyUserIntents, clip(intent, 100))
	if max := m.bound(m.maxIntents, DefaultMaxIntents); len(m.KeyUserIntents) > max {
		m.KeyUserIntents = m.KeyUserIntents[len(m.KeyUserIntents)-max:]
	}
}

// RecordContradiction adds an unresolved conflict. Contradictions stay active
// until a human resolves them; nothing here expires them.
func (m *CaseMemory) RecordContradiction(description string, agentsInvolved []string, details map[string]any) {
	m.addEntry(Entry{
		Timestamp: time.Now(),
		Type:      EntryContradiction,
		AgentName: strings.Join(agentsInvolved, ", "),
		Summary:   clip("CONFLICT: "+description, 100),
		Details:   details,
	})
	m.ActiveContradictions = append(m.ActiveContradictions, description)
}

// ResolveContradiction removes a conflict after an explicit human decision.
func (m *CaseMemory) ResolveContradiction(description string) {
	for i, c := range m.ActiveContradictions {
		if c == description {
			m.ActiveContradictions = append(m.ActiveContradictions[:i], m.ActiveContradictions[i+1:]...)
			logging.Memory("case %s: contradiction resolved: %s", m.CaseID, clip(description, 60))
			return
		}
	}
}

// PromptContext renders the bounded context block injected into agent
// prompts. This is how agents see case history without raw transcripts.
func (m *CaseMemory) PromptContext() string {
	var b strings.Builder
	b.WriteString("=== CASE MEMORY (for context only, not for decision-making) ===\n")

	if m.CurrentStrategy != "" {
		fmt.Fprintf(&b, "- Current recommended strategy: %s\n", m.CurrentStrategy)
	}
	if m.CurrentSupplierChoice != "" {
		fmt.Fprintf(&b, "- Current top supplier: %s\n", m.CurrentSupplierChoice)
	}
	if len(m.HumanDecisions) > 0 {
		fmt.Fprintf(&b, "- Human decisions so far: %s\n", strings.Join(tail(m.HumanDecisions, 3), "; "))
	}
	if len(m.KeyUserIntents) > 0 {
		fmt.Fprintf(&b, "- Recent user requests: %s\n", strings.Join(tail(m.KeyUserIntents, 2), "; "))
	}
	if len(m.ActiveContradictions) > 0 {
		fmt.Fprintf(&b, "! UNRESOLVED CONFLICTS: %s\n", strings.Join(m.ActiveContradictions, "; "))
	}
	if len(m.Entries) > 0 {
		b.WriteString("- Recent activity:\n")
		for _, e := range tailEntries(m.Entries, 5) {
			fmt.Fprintf(&b, "  - %s\n", e.Summary)
		}
	}

	b.WriteString("=== END CASE MEMORY ===")
	return b.String()
}

// UISummary returns counters and headline state for display surfaces.
func (m *CaseMemory) UISummary() map[string]any {
	return map[string]any{
		"total_agent_calls":     m.TotalAgentCalls,
		"total_human_decisions": m.TotalHumanDecisions,
		"current_strategy":      m.CurrentStrategy,
		"current_supplier":      m.CurrentSupplierChoice,
		"active_contradictions": len(m.ActiveContradictions),
		"memory_entries_count":  len(m.Entries),
	}
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func tail(s []string, n int) []string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

func tailEntries(s []Entry, n int) []Entry {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
