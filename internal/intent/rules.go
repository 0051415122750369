// Package intent classifies raw user text into the two intent taxonomies and
// gates what each intent may reach at each stage. Classification is pure:
// keyword rules only, no model calls, same input same output.
package intent

import "regexp"

// =============================================================================
// ORDERED RULES ENGINE
// =============================================================================

// labeledRule maps a set of patterns to one label.
type labeledRule struct {
	label    string
	patterns []*regexp.Regexp
}

// ruleSet is an ordered first-match-wins classifier over lowercase text. Both
// intent taxonomies are instances of this engine with different label spaces.
type ruleSet struct {
	rules        []labeledRule
	defaultLabel string
}

func compile(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		out = append(out, regexp.MustCompile(p))
	}
	return out
}

// classify returns the label of the first rule with a matching pattern, or
// the default label when nothing matches.
func (rs *ruleSet) classify(message string) (string, bool) {
	for _, r := range rs.rules {
		for _, p := range r.patterns {
			if p.MatchString(message) {
				return r.label, true
			}
		}
	}
	return rs.defaultLabel, false
}

// matches reports whether any pattern in the list matches.
func matchesAny(patterns []*regexp.Regexp, message string) bool {
	for _, p := range patterns {
		if p.MatchString(message) {
			return true
		}
	}
	return false
}
