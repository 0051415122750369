package intent

import (
	"regexp"
	"strings"

	"sourcepilot/internal/types"
)

// =============================================================================
// TWO-AXIS CLASSIFIER (user goal x work type)
// =============================================================================

// keywords builds substring patterns from plain keyword lists.
func keywords(words ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(words))
	for _, w := range words {
		out = append(out, regexp.MustCompile(regexp.QuoteMeta(w)))
	}
	return out
}

// goalRules orders the goal axis. TRACK wins over CREATE wins over CHECK wins
// over DECIDE wins over UNDERSTAND; domain verbs that imply producing work
// product (scoring, negotiation, contracts, implementation) read as CREATE.
var goalRules = &ruleSet{
	defaultLabel: string(types.GoalUnderstand),
	rules: []labeledRule{
		{label: string(types.GoalTrack), patterns: keywords("status", "progress", "where are we", "update me", "current")},
		{label: string(types.GoalCreate), patterns: keywords("create", "draft", "generate", "build", "make", "prepare")},
		{label: string(types.GoalCheck), patterns: keywords("check", "validate", "verify", "compliant", "review")},
		{label: string(types.GoalDecide), patterns: keywords("decide", "approve", "select", "choose", "finalize", "award")},
		{label: string(types.GoalUnderstand), patterns: keywords("explain", "why", "how", "what", "understand", "tell me")},
		{label: string(types.GoalTrack), patterns: keywords("scan", "signal", "monitor", "detect")},
		{label: string(types.GoalCreate), patterns: keywords("score", "evaluate", "rank", "compare supplier")},
		{label: string(types.GoalCreate), patterns: keywords("negotiat", "bid", "leverage")},
		{label: string(types.GoalCreate), patterns: keywords("contract", "terms", "extract")},
		{label: string(types.GoalCreate), patterns: keywords("implement", "rollout", "checklist", "savings")},
	},
}

// workRules orders the work-type axis; DATA is the default.
var workRules = &ruleSet{
	defaultLabel: string(types.WorkData),
	rules: []labeledRule{
		{label: string(types.WorkArtifact), patterns: keywords("draft", "document", "template", "report", "plan")},
		{label: string(types.WorkApproval), patterns: keywords("approve", "decide", "select")},
		{label: string(types.WorkCompliance), patterns: keywords("compliant", "policy", "rule", "valid")},
		{label: string(types.WorkValue), patterns: keywords("saving", "value", "cost", "roi")},
	},
}

// ClassifyTwoLevel maps a raw user message to (user goal, work type).
func ClassifyTwoLevel(message string) types.IntentResult {
	lower := strings.ToLower(message)

	goal, _ := goalRules.classify(lower)
	work, _ := workRules.classify(lower)

	return types.IntentResult{
		UserGoal:   types.UserGoal(goal),
		WorkType:   types.WorkType(work),
		Confidence: 0.85,
		Rationale:  "classified from message patterns",
	}
}
