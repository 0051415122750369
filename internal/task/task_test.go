package task

import (
	"context"
	"errors"
	"strings"
	"testing"
)

// scriptedTask lets tests drive each phase individually.
type scriptedTask struct {
	base
	rules     func(tc *Context) (PhaseResult, error)
	retrieve  func(tc *Context) (PhaseResult, error)
	analyze   func(tc *Context) (PhaseResult, error)
	narration bool
	narrate   func(tc *Context) (NarrationResult, error)
}

func (t *scriptedTask) Rules(ctx context.Context, tc *Context) (PhaseResult, error) {
	if t.rules == nil {
		return PhaseResult{}, nil
	}
	return t.rules(tc)
}

func (t *scriptedTask) Retrieve(ctx context.Context, tc *Context, rules PhaseResult) (PhaseResult, error) {
	if t.retrieve == nil {
		return PhaseResult{}, nil
	}
	return t.retrieve(tc)
}

func (t *scriptedTask) Analyze(ctx context.Context, tc *Context, rules, retrieval PhaseResult) (PhaseResult, error) {
	if t.analyze == nil {
		return PhaseResult{}, nil
	}
	return t.analyze(tc)
}

func (t *scriptedTask) NeedsNarration(tc *Context, analytics PhaseResult) bool {
	return t.narration
}

func (t *scriptedTask) Narrate(ctx context.Context, tc *Context, rules, retrieval, analytics PhaseResult) (NarrationResult, error) {
	if t.narrate == nil {
		return NarrationResult{}, nil
	}
	return t.narrate(tc)
}

func TestExecuteMergesPhaseData(t *testing.T) {
	task := &scriptedTask{
		base: newBase("merge_test", Deps{}),
		rules: func(tc *Context) (PhaseResult, error) {
			return PhaseResult{Data: map[string]any{"threshold": 30}}, nil
		},
		retrieve: func(tc *Context) (PhaseResult, error) {
			return PhaseResult{Data: map[string]any{"records": 3}}, nil
		},
		analyze: func(tc *Context) (PhaseResult, error) {
			return PhaseResult{Data: map[string]any{"signals": 1}}, nil
		},
	}

	result := Execute(context.Background(), task, NewContext())
	if !result.Success {
		t.Fatalf("expected success, got errors %v", result.Errors)
	}
	for _, key := range []string{"threshold", "records", "signals"} {
		if _, ok := result.Data[key]; !ok {
			t.Errorf("missing %q in result data", key)
		}
	}
	if result.ExecutionTime < 0 {
		t.Errorf("execution time not measured")
	}
}

func TestExecuteRulesStopShortCircuits(t *testing.T) {
	retrieved := false
	task := &scriptedTask{
		base: newBase("stop_test", Deps{}),
		rules: func(tc *Context) (PhaseResult, error) {
			return PhaseResult{Stop: true, StopReason: "policy forbids"}, nil
		},
		retrieve: func(tc *Context) (PhaseResult, error) {
			retrieved = true
			return PhaseResult{}, nil
		},
	}

	result := Execute(context.Background(), task, NewContext())
	if !result.Success {
		t.Fatalf("a rules stop is not a failure")
	}
	if retrieved {
		t.Errorf("retrieval ran after rules stop")
	}
	if result.Data["stopped_at"] != "rules" {
		t.Errorf("stopped_at = %v, want rules", result.Data["stopped_at"])
	}
	if result.Data["stop_reason"] != "policy forbids" {
		t.Errorf("stop_reason = %v", result.Data["stop_reason"])
	}
}

func TestExecutePhaseErrorFailsTask(t *testing.T) {
	analyzed := false
	task := &scriptedTask{
		base: newBase("fail_test", Deps{}),
		rules: func(tc *Context) (PhaseResult, error) {
			return PhaseResult{Data: map[string]any{"partial": true}}, nil
		},
		retrieve: func(tc *Context) (PhaseResult, error) {
			return PhaseResult{}, errors.New("store unavailable")
		},
		analyze: func(tc *Context) (PhaseResult, error) {
			analyzed = true
			return PhaseResult{}, nil
		},
	}

	result := Execute(context.Background(), task, NewContext())
	if result.Success {
		t.Fatalf("expected failure")
	}
	if analyzed {
		t.Errorf("analytics ran after retrieval failure")
	}
	if len(result.Errors) != 1 || !strings.Contains(result.Errors[0], "retrieval") {
		t.Errorf("errors = %v, want one retrieval error", result.Errors)
	}
	// Data accumulated before the failure stays on the result.
	if result.Data["partial"] != true {
		t.Errorf("pre-failure data dropped")
	}
}

func TestExecuteNarrationTokens(t *testing.T) {
	task := &scriptedTask{
		base:      newBase("narration_test", Deps{}),
		narration: true,
		narrate: func(tc *Context) (NarrationResult, error) {
			return NarrationResult{
				Data:       map[string]any{"summary": "two sentences"},
				TokensUsed: 42,
			}, nil
		},
	}

	result := Execute(context.Background(), task, NewContext())
	if !result.Success {
		t.Fatalf("unexpected failure: %v", result.Errors)
	}
	if result.TokensUsed != 42 {
		t.Errorf("tokens = %d, want 42", result.TokensUsed)
	}
	if result.Data["summary"] != "two sentences" {
		t.Errorf("narration data missing")
	}
}

func TestContextTypedAccessors(t *testing.T) {
	tc := NewContext()
	tc.Set("category_id", "IT_SERVICES")
	tc.Set("urgency_score", 7)
	tc.Set("signals", []Signal{{SignalType: "contract_expiry"}})

	if got := GetOr(tc, "category_id", ""); got != "IT_SERVICES" {
		t.Errorf("GetOr string = %q", got)
	}
	if got := GetOr(tc, "urgency_score", 0); got != 7 {
		t.Errorf("GetOr int = %d", got)
	}
	if got := GetOr(tc, "missing", "fallback"); got != "fallback" {
		t.Errorf("GetOr fallback = %q", got)
	}
	// Wrong type falls back rather than panicking.
	if got := GetOr(tc, "urgency_score", "default"); got != "default" {
		t.Errorf("GetOr wrong type = %q", got)
	}
	signals, ok := Get[[]Signal](tc, "signals")
	if !ok || len(signals) != 1 {
		t.Errorf("Get slice = %v %v", signals, ok)
	}
}

func TestContextMergeDataVisibleToLaterReads(t *testing.T) {
	tc := NewContext()
	tc.MergeData(map[string]any{"expiry_signals": []Signal{{Severity: "high"}}})
	tc.MergeData(map[string]any{"urgency_score": 9})

	if !tc.Has("expiry_signals") || !tc.Has("urgency_score") {
		t.Fatalf("merged keys missing")
	}
	snap := tc.Snapshot()
	if len(snap) != 2 {
		t.Errorf("snapshot size = %d, want 2", len(snap))
	}
}
