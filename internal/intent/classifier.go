package intent

import (
	"strings"

	"sourcepilot/internal/logging"
	"sourcepilot/internal/types"
)

// =============================================================================
// SINGLE-AXIS CLASSIFIER
// =============================================================================

// Greetings and acknowledgments map to a friendly status response rather
// than an agent call.
var greetingPatterns = compile(
	`^hi\b`, `^hello\b`, `^hey\b`, `^good (morning|afternoon|evening)`,
	`^thanks\b`, `^thank you`, `^ok\b`, `^okay\b`, `^got it`,
	`^understood`, `^i see`, `^makes sense`, `^cool\b`, `^great\b`,
	`^perfect\b`, `^nice\b`, `^alright\b`,
)

// singleAxis is the ordered rule set for the coarse intent taxonomy.
// Priority: STATUS beats DECIDE beats EXPLORE beats EXPLAIN.
var singleAxis = &ruleSet{
	defaultLabel: string(types.IntentExplain),
	rules: []labeledRule{
		{
			label: string(types.IntentStatus),
			patterns: compile(
				`status`, `progress`, `update\b`, `where are we`, `current state`,
				`what's happening`, `how far`, `timeline`, `next step`,
				`what stage`, `which stage`, `current status`, `case status`,
				`tell me about (this|the) case`, `update me`, `brief me`,
				`summary`, `overview`, `catch me up`,
			),
		},
		{
			label: string(types.IntentDecide),
			patterns: compile(
				`\brun\b`, `\banalyze\b`, `\bevaluate\b`, `\brecommend\b`,
				`\bexecute\b`, `\bstart\b`, `\bbegin\b`, `\blaunch\b`,
				`\binitiate\b`, `\bfinalize\b`, `\bselect\b`, `\bchoose\b`,
				`give me a (strategy|recommendation|plan)`,
				`create a (strategy|recommendation|plan)`,
				`what (should|do) (we|i) do`,
				`suggest a (strategy|approach|plan)`,
				`(need|want) (a )?(strategy|recommendation|analysis)`,
			),
		},
		{
			label: string(types.IntentExplore),
			patterns: compile(
				`what if`, `alternative`, `options`, `could we`, `would it be possible`,
				`\bexplore\b`, `\bconsider\b`, `\bcompare\b`, `\bother\b`, `different\b`,
				`scenario`, `hypothetical`, `suppose`, `imagine`,
				`what would happen`, `pros and cons`, `trade-?off`,
			),
		},
		{
			label: string(types.IntentExplain),
			patterns: compile(
				`what is`, `explain\b`, `describe`, `tell me about`,
				`how does`, `\bwhy\b`, `what does`, `meaning`, `definition`,
				`clarify`, `help me understand`, `can you explain`, `what's the`,
				`reason\b`, `rationale`, `basis`, `justify`, `grounds`,
				`confidence`, `evidence`, `how did you`, `what led to`,
			),
		},
	},
}

// Classify maps a raw user message to the single-axis intent taxonomy.
func Classify(message string) types.UserIntent {
	lower := strings.ToLower(strings.TrimSpace(message))

	// Short greetings get a status response.
	if matchesAny(greetingPatterns, lower) && len(strings.Fields(lower)) <= 5 {
		return types.IntentStatus
	}

	if label, ok := singleAxis.classify(lower); ok {
		intent := types.UserIntent(label)
		logging.Intent("classified %q as %s", truncate(message, 60), intent)
		return intent
	}

	// Questions about existing data default to explanation.
	if strings.Contains(message, "?") {
		return types.IntentExplain
	}

	// Short messages without clear intent read as a status check.
	if len(strings.Fields(lower)) <= 3 {
		return types.IntentStatus
	}

	// EXPLAIN is the safe default: no agent call needed.
	return types.IntentExplain
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
