package task

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"sourcepilot/internal/types"
)

// =============================================================================
// SOURCING SIGNAL TASKS
// =============================================================================
// Monitor contract metadata, spend patterns, and supplier performance to
// proactively surface sourcing cases.

// Signal is one detected sourcing trigger.
type Signal struct {
	SignalType      string  `json:"signal_type"`
	Severity        string  `json:"severity"`
	Message         string  `json:"message"`
	ContractID      string  `json:"contract_id,omitempty"`
	SupplierID      string  `json:"supplier_id,omitempty"`
	DaysUntilExpiry int     `json:"days_until_expiry,omitempty"`
	AnnualValue     float64 `json:"annual_value,omitempty"`
	Metric          string  `json:"metric,omitempty"`
	CurrentValue    float64 `json:"current_value,omitempty"`
	RiskLevel       string  `json:"risk_level,omitempty"`
	Period          string  `json:"period,omitempty"`
	SpendAmount     float64 `json:"spend_amount,omitempty"`
	ExpectedRange   string  `json:"expected_range,omitempty"`
}

// Contract is the contract metadata the expiry scan runs over.
type Contract struct {
	ContractID  string    `json:"contract_id"`
	SupplierID  string    `json:"supplier_id"`
	CategoryID  string    `json:"category_id"`
	EndDate     time.Time `json:"end_date"`
	AnnualValue float64   `json:"annual_value"`
}

// Recommendation is one suggested preparation step.
type Recommendation struct {
	Action   string `json:"action"`
	Priority string `json:"priority"`
	Reason   string `json:"reason"`
}

// DetectContractExpiryTask flags contracts approaching their end date.
type DetectContractExpiryTask struct {
	base
}

func (t *DetectContractExpiryTask) Rules(ctx context.Context, tc *Context) (PhaseResult, error) {
	return PhaseResult{
		Data: map[string]any{
			"urgent_threshold_days":  30,
			"warning_threshold_days": 90,
		},
	}, nil
}

func (t *DetectContractExpiryTask) Retrieve(ctx context.Context, tc *Context, rules PhaseResult) (PhaseResult, error) {
	contracts := GetOr[[]Contract](tc, "contracts", nil)

	// Without a contract list in context, fall back to the case's own
	// contract so the scan still produces a signal for the active supplier.
	if len(contracts) == 0 {
		contractID := GetOr(tc, "contract_id", "CTR-001")
		supplierID := GetOr(tc, "supplier_id", "SUP-001")
		categoryID := GetOr(tc, "category_id", "IT_SERVICES")
		contracts = []Contract{{
			ContractID:  contractID,
			SupplierID:  supplierID,
			CategoryID:  categoryID,
			EndDate:     time.Now().AddDate(0, 0, 35),
			AnnualValue: 500000,
		}}
	}

	return PhaseResult{Data: map[string]any{"contracts": contracts}}, nil
}

func (t *DetectContractExpiryTask) Analyze(ctx context.Context, tc *Context, rules, retrieval PhaseResult) (PhaseResult, error) {
	contracts, _ := retrieval.Data["contracts"].([]Contract)
	urgentDays, _ := rules.Data["urgent_threshold_days"].(int)
	warningDays, _ := rules.Data["warning_threshold_days"].(int)

	var signals []Signal
	var grounded []types.GroundingReference
	now := time.Now()

	for _, contract := range contracts {
		if contract.EndDate.IsZero() {
			continue
		}
		daysUntil := int(contract.EndDate.Sub(now).Hours() / 24)

		severity := ""
		switch {
		case daysUntil <= urgentDays:
			severity = "high"
		case daysUntil <= warningDays:
			severity = "medium"
		}
		if severity == "" {
			continue
		}

		signals = append(signals, Signal{
			SignalType:      "contract_expiry",
			Severity:        severity,
			ContractID:      contract.ContractID,
			DaysUntilExpiry: daysUntil,
			AnnualValue:     contract.AnnualValue,
			Message:         fmt.Sprintf("Contract expires in %d days", daysUntil),
		})
		grounded = append(grounded, types.GroundingReference{
			RefID:      contract.ContractID,
			RefType:    types.RefDocument,
			SourceName: fmt.Sprintf("Contract %s", contract.ContractID),
		})
	}

	return PhaseResult{
		Data:       map[string]any{"expiry_signals": signals},
		GroundedIn: grounded,
	}, nil
}

// DetectPerformanceDegradationTask scans recent performance records for
// declining trends and elevated risk levels.
type DetectPerformanceDegradationTask struct {
	base
}

func (t *DetectPerformanceDegradationTask) Retrieve(ctx context.Context, tc *Context, rules PhaseResult) (PhaseResult, error) {
	supplierID := GetOr(tc, "supplier_id", "")
	if supplierID == "" || t.deps.Retriever == nil {
		return PhaseResult{Data: map[string]any{"performance_records": []map[string]any{}}}, nil
	}

	rs, err := t.deps.Retriever.SupplierPerformance(ctx, supplierID, GetOr(tc, "category_id", ""))
	if err != nil {
		return PhaseResult{}, err
	}

	records := rs.Records
	if len(records) > 10 {
		records = records[:10]
	}

	var grounded []types.GroundingReference
	for _, r := range records {
		grounded = append(grounded, types.GroundingReference{
			RefID:      recordString(r, "record_id"),
			RefType:    types.RefDocument,
			SourceName: "supplier_performance",
		})
	}

	return PhaseResult{
		Data:       map[string]any{"performance_records": records},
		GroundedIn: grounded,
	}, nil
}

func (t *DetectPerformanceDegradationTask) Analyze(ctx context.Context, tc *Context, rules, retrieval PhaseResult) (PhaseResult, error) {
	records, _ := retrieval.Data["performance_records"].([]map[string]any)
	supplierID := GetOr(tc, "supplier_id", "")

	var signals []Signal
	for _, record := range records {
		if recordString(record, "trend") == "declining" {
			score := recordFloat(record, "overall_score")
			signals = append(signals, Signal{
				SignalType:   "performance_degradation",
				Severity:     "medium",
				SupplierID:   supplierID,
				Metric:       "overall_score",
				CurrentValue: score,
				Message:      fmt.Sprintf("Supplier performance declining (score: %.1f)", score),
			})
		}

		if level := recordString(record, "risk_level"); level == "high" || level == "critical" {
			signals = append(signals, Signal{
				SignalType: "risk_alert",
				Severity:   "high",
				SupplierID: supplierID,
				RiskLevel:  level,
				Message:    fmt.Sprintf("Supplier at %s risk level", level),
			})
		}
	}

	return PhaseResult{Data: map[string]any{"performance_signals": signals}}, nil
}

// DetectSpendAnomaliesTask flags spend records more than two standard
// deviations from the mean.
type DetectSpendAnomaliesTask struct {
	base
}

func (t *DetectSpendAnomaliesTask) Retrieve(ctx context.Context, tc *Context, rules PhaseResult) (PhaseResult, error) {
	if t.deps.Retriever == nil {
		return PhaseResult{Data: map[string]any{"spend_records": []map[string]any{}}}, nil
	}

	rs, err := t.deps.Retriever.SupplierSpend(ctx, GetOr(tc, "supplier_id", ""), GetOr(tc, "category_id", ""))
	if err != nil {
		return PhaseResult{}, err
	}

	var grounded []types.GroundingReference
	for _, r := range rs.Records {
		grounded = append(grounded, types.GroundingReference{
			RefID:      recordString(r, "record_id"),
			RefType:    types.RefDocument,
			SourceName: "spend_metrics",
		})
	}

	return PhaseResult{
		Data:       map[string]any{"spend_records": rs.Records},
		GroundedIn: grounded,
	}, nil
}

func (t *DetectSpendAnomaliesTask) Analyze(ctx context.Context, tc *Context, rules, retrieval PhaseResult) (PhaseResult, error) {
	records, _ := retrieval.Data["spend_records"].([]map[string]any)

	var amounts []float64
	for _, r := range records {
		if amount := recordFloat(r, "spend_amount"); amount != 0 {
			amounts = append(amounts, amount)
		}
	}

	var signals []Signal
	if len(amounts) >= 2 {
		var sum float64
		for _, a := range amounts {
			sum += a
		}
		mean := sum / float64(len(amounts))

		var variance float64
		for _, a := range amounts {
			variance += (a - mean) * (a - mean)
		}
		variance /= float64(len(amounts))
		stdDev := math.Sqrt(variance)

		if stdDev > 0 {
			for _, record := range records {
				spend := recordFloat(record, "spend_amount")
				if math.Abs(spend-mean) > 2*stdDev {
					signals = append(signals, Signal{
						SignalType:    "spend_anomaly",
						Severity:      "medium",
						Period:        recordString(record, "period"),
						SpendAmount:   spend,
						ExpectedRange: fmt.Sprintf("$%.0f - $%.0f", mean-2*stdDev, mean+2*stdDev),
						Message:       fmt.Sprintf("Spend anomaly detected: $%.0f vs expected $%.0f", spend, mean),
					})
				}
			}
		}
	}

	return PhaseResult{Data: map[string]any{"spend_signals": signals}}, nil
}

// ApplyRelevanceFiltersTask merges the detected signals, orders them by
// severity, and derives an urgency score for the case.
type ApplyRelevanceFiltersTask struct {
	base
}

var severityPriority = map[string]int{
	"critical": 4,
	"high":     3,
	"medium":   2,
	"low":      1,
}

func (t *ApplyRelevanceFiltersTask) Rules(ctx context.Context, tc *Context) (PhaseResult, error) {
	return PhaseResult{
		Data: map[string]any{
			"category_filter": GetOr(tc, "category_id", ""),
			"stage_filter":    GetOr(tc, "dtp_stage", ""),
			"min_severity":    "low",
		},
	}, nil
}

func (t *ApplyRelevanceFiltersTask) Analyze(ctx context.Context, tc *Context, rules, retrieval PhaseResult) (PhaseResult, error) {
	var all []Signal
	all = append(all, GetOr[[]Signal](tc, "expiry_signals", nil)...)
	all = append(all, GetOr[[]Signal](tc, "performance_signals", nil)...)
	all = append(all, GetOr[[]Signal](tc, "spend_signals", nil)...)

	sort.SliceStable(all, func(i, j int) bool {
		return severityPriority[all[i].Severity] > severityPriority[all[j].Severity]
	})

	urgency := 5
	if len(all) > 0 {
		highCount := 0
		for _, s := range all {
			if s.Severity == "high" || s.Severity == "critical" {
				highCount++
			}
		}
		switch {
		case highCount >= 2:
			urgency = 9
		case highCount == 1:
			urgency = 7
		case all[0].Severity == "medium":
			urgency = 5
		default:
			urgency = 3
		}
	}

	filtered := all
	if len(filtered) > 10 {
		filtered = filtered[:10]
	}

	return PhaseResult{
		Data: map[string]any{
			"filtered_signals": filtered,
			"urgency_score":    urgency,
			"total_signals":    len(all),
		},
	}, nil
}

// SemanticGroundedSummaryTask narrates the filtered signals for the
// procurement manager.
type SemanticGroundedSummaryTask struct {
	base
}

func (t *SemanticGroundedSummaryTask) NeedsNarration(tc *Context, analytics PhaseResult) bool {
	return true
}

func (t *SemanticGroundedSummaryTask) Narrate(ctx context.Context, tc *Context, rules, retrieval, analytics PhaseResult) (NarrationResult, error) {
	signals := GetOr[[]Signal](tc, "filtered_signals", nil)
	urgency := GetOr(tc, "urgency_score", 5)

	if len(signals) == 0 {
		return NarrationResult{
			Data: map[string]any{"summary": "No significant signals detected at this time."},
		}, nil
	}

	var lines []string
	for i, s := range signals {
		if i >= 5 {
			break
		}
		lines = append(lines, "- "+s.Message)
	}

	prompt := fmt.Sprintf(`Summarize these sourcing signals in 2-3 sentences for a procurement manager.
Be specific and actionable. Reference the data.

Signals:
%s

Urgency Score: %d/10

Summary:`, strings.Join(lines, "\n"), urgency)

	summary, tokens := t.narrate(ctx, prompt)
	if strings.TrimSpace(summary) == "" {
		summary = "Signal analysis complete."
	}

	return NarrationResult{
		Data:       map[string]any{"summary": strings.TrimSpace(summary)},
		TokensUsed: tokens,
	}, nil
}

// ProduceAutoprepRecommendationsTask turns the filtered signals into next
// actions and the inputs the case will need.
type ProduceAutoprepRecommendationsTask struct {
	base
}

func (t *ProduceAutoprepRecommendationsTask) Analyze(ctx context.Context, tc *Context, rules, retrieval PhaseResult) (PhaseResult, error) {
	signals := GetOr[[]Signal](tc, "filtered_signals", nil)

	var recommendations []Recommendation
	var requiredInputs []string

	var expiry []Signal
	perfCount := 0
	for _, s := range signals {
		switch s.SignalType {
		case "contract_expiry":
			expiry = append(expiry, s)
		case "performance_degradation", "risk_alert":
			perfCount++
		}
	}

	if len(expiry) > 0 {
		recommendations = append(recommendations, Recommendation{
			Action:   "Review contract terms",
			Priority: "high",
			Reason:   fmt.Sprintf("Contract expiring in %d days", expiry[0].DaysUntilExpiry),
		})
		requiredInputs = append(requiredInputs, "Current contract document", "Supplier performance history")
	}

	if perfCount > 0 {
		recommendations = append(recommendations, Recommendation{
			Action:   "Evaluate alternative suppliers",
			Priority: "medium",
			Reason:   "Current supplier showing performance issues",
		})
		requiredInputs = append(requiredInputs, "Approved supplier list")
	}

	if len(recommendations) == 0 {
		recommendations = append(recommendations, Recommendation{
			Action:   "Continue monitoring",
			Priority: "low",
			Reason:   "No immediate action required",
		})
	}

	return PhaseResult{
		Data: map[string]any{
			"recommendations": recommendations,
			"required_inputs": dedupeStrings(requiredInputs),
		},
	}, nil
}

func dedupeStrings(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
