package task

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"sourcepilot/internal/types"
)

// =============================================================================
// SUPPLIER SCORING TASKS
// =============================================================================
// Convert evaluation criteria into structured score inputs and process
// historical performance and risk data into a ranked shortlist.

// Criterion is one weighted evaluation dimension.
type Criterion struct {
	Name        string  `json:"name"`
	Weight      float64 `json:"weight"`
	Description string  `json:"description"`
}

// PerformanceRecord is the latest performance snapshot for one supplier.
type PerformanceRecord struct {
	SupplierID          string  `json:"supplier_id"`
	SupplierName        string  `json:"supplier_name"`
	OverallScore        float64 `json:"overall_score"`
	QualityScore        float64 `json:"quality_score"`
	DeliveryScore       float64 `json:"delivery_score"`
	CostVariance        float64 `json:"cost_variance"`
	ResponsivenessScore float64 `json:"responsiveness_score"`
	Trend               string  `json:"trend"`
	RiskLevel           string  `json:"risk_level"`
}

// RiskIndicator aggregates recent SLA events for one supplier.
type RiskIndicator struct {
	SupplierID         string  `json:"supplier_id"`
	SLABreachCount     int     `json:"sla_breach_count"`
	HighSeverityEvents int     `json:"high_severity_events"`
	TotalEvents        int     `json:"total_events"`
	RiskScore          float64 `json:"risk_score"`
}

// NormalizedMetrics holds one supplier's metrics on a common 0-10 scale.
type NormalizedMetrics struct {
	SupplierID     string            `json:"supplier_id"`
	SupplierName   string            `json:"supplier_name"`
	Quality        float64           `json:"quality_normalized"`
	Delivery       float64           `json:"delivery_normalized"`
	Responsiveness float64           `json:"responsiveness_normalized"`
	Risk           float64           `json:"risk_normalized"`
	Cost           float64           `json:"cost_normalized"`
	Raw            PerformanceRecord `json:"raw_data"`
	RiskData       RiskIndicator     `json:"risk_data"`
}

// ScorePart is one criterion's contribution to a total score.
type ScorePart struct {
	Raw      float64 `json:"raw"`
	Weight   float64 `json:"weight"`
	Weighted float64 `json:"weighted"`
}

// ScoredSupplier is a ranked, scored supplier with its eligibility verdict.
type ScoredSupplier struct {
	SupplierID        string               `json:"supplier_id"`
	SupplierName      string               `json:"supplier_name"`
	TotalScore        float64              `json:"total_score"`
	Rank              int                  `json:"rank"`
	Breakdown         map[string]ScorePart `json:"score_breakdown"`
	Raw               PerformanceRecord    `json:"raw_data"`
	RiskData          RiskIndicator        `json:"risk_data"`
	EligibilityIssues []string             `json:"eligibility_issues"`
	IsEligible        bool                 `json:"is_eligible"`
}

// BuildEvaluationCriteriaTask defines the weighted criteria the scoring run
// uses, defaulting to the standard template when none are provided.
type BuildEvaluationCriteriaTask struct {
	base
}

func defaultCriteria() []Criterion {
	return []Criterion{
		{Name: "Quality", Weight: 0.25, Description: "Product/service quality"},
		{Name: "Delivery", Weight: 0.20, Description: "On-time delivery performance"},
		{Name: "Price", Weight: 0.25, Description: "Cost competitiveness"},
		{Name: "Responsiveness", Weight: 0.15, Description: "Communication and support"},
		{Name: "Risk", Weight: 0.15, Description: "Financial and operational risk"},
	}
}

func (t *BuildEvaluationCriteriaTask) Rules(ctx context.Context, tc *Context) (PhaseResult, error) {
	criteria := GetOr(tc, "evaluation_criteria", defaultCriteria())
	return PhaseResult{
		Data: map[string]any{"criteria": criteria},
		GroundedIn: []types.GroundingReference{{
			RefID:      "criteria-template-001",
			RefType:    types.RefPolicy,
			SourceName: "Default Evaluation Template",
		}},
	}, nil
}

// PullSupplierPerformanceTask pulls the latest performance record per
// supplier for the case's category.
type PullSupplierPerformanceTask struct {
	base
}

func (t *PullSupplierPerformanceTask) Retrieve(ctx context.Context, tc *Context, rules PhaseResult) (PhaseResult, error) {
	if t.deps.Retriever == nil {
		return PhaseResult{Data: map[string]any{"supplier_performance": []PerformanceRecord{}}}, nil
	}

	categoryID := GetOr(tc, "category_id", "")
	supplierIDs := GetOr[[]string](tc, "supplier_ids", nil)

	rs, err := t.deps.Retriever.SupplierPerformance(ctx, "", categoryID)
	if err != nil {
		return PhaseResult{}, err
	}

	wanted := make(map[string]bool, len(supplierIDs))
	for _, id := range supplierIDs {
		wanted[id] = true
	}

	// Records come back newest first; keep the latest per supplier.
	var performance []PerformanceRecord
	var grounded []types.GroundingReference
	seen := make(map[string]bool)
	for _, r := range rs.Records {
		supplierID := recordString(r, "supplier_id")
		if supplierID == "" || seen[supplierID] {
			continue
		}
		if len(wanted) > 0 && !wanted[supplierID] {
			continue
		}
		seen[supplierID] = true

		name := recordString(r, "supplier_name")
		if name == "" {
			name = supplierID
		}
		performance = append(performance, PerformanceRecord{
			SupplierID:          supplierID,
			SupplierName:        name,
			OverallScore:        recordFloat(r, "overall_score"),
			QualityScore:        recordFloat(r, "quality_score"),
			DeliveryScore:       recordFloat(r, "delivery_score"),
			CostVariance:        recordFloat(r, "cost_variance"),
			ResponsivenessScore: recordFloat(r, "responsiveness_score"),
			Trend:               recordString(r, "trend"),
			RiskLevel:           recordString(r, "risk_level"),
		})
		grounded = append(grounded, types.GroundingReference{
			RefID:      recordString(r, "record_id"),
			RefType:    types.RefDocument,
			SourceName: fmt.Sprintf("Performance: %s", supplierID),
		})
	}

	return PhaseResult{
		Data:       map[string]any{"supplier_performance": performance},
		GroundedIn: grounded,
	}, nil
}

// PullRiskIndicatorsTask aggregates each shortlisted supplier's recent SLA
// events into a risk score. The per-supplier lookups run concurrently; the
// output keeps shortlist order.
type PullRiskIndicatorsTask struct {
	base
}

func (t *PullRiskIndicatorsTask) Retrieve(ctx context.Context, tc *Context, rules PhaseResult) (PhaseResult, error) {
	performance := GetOr[[]PerformanceRecord](tc, "supplier_performance", nil)
	if len(performance) == 0 || t.deps.Retriever == nil {
		return PhaseResult{Data: map[string]any{"risk_indicators": []RiskIndicator{}}}, nil
	}

	indicators := make([]RiskIndicator, len(performance))
	groundedPer := make([][]types.GroundingReference, len(performance))

	g, gctx := errgroup.WithContext(ctx)
	for i, p := range performance {
		g.Go(func() error {
			rs, err := t.deps.Retriever.SLAEvents(gctx, p.SupplierID, "")
			if err != nil {
				return err
			}

			events := rs.Records
			if len(events) > 20 {
				events = events[:20]
			}

			breaches := 0
			highSeverity := 0
			for _, e := range events {
				if recordString(e, "event_type") == "breach" {
					breaches++
				}
				if sev := recordString(e, "severity"); sev == "high" || sev == "critical" {
					highSeverity++
				}
			}

			indicators[i] = RiskIndicator{
				SupplierID:         p.SupplierID,
				SLABreachCount:     breaches,
				HighSeverityEvents: highSeverity,
				TotalEvents:        len(events),
				RiskScore:          math.Min(10, float64(breaches*2+highSeverity)),
			}

			for j, e := range events {
				if j >= 3 {
					break
				}
				groundedPer[i] = append(groundedPer[i], types.GroundingReference{
					RefID:      recordString(e, "event_id"),
					RefType:    types.RefDocument,
					SourceName: fmt.Sprintf("SLA Event: %s", recordString(e, "event_type")),
				})
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return PhaseResult{}, err
	}

	var grounded []types.GroundingReference
	for _, refs := range groundedPer {
		grounded = append(grounded, refs...)
	}

	return PhaseResult{
		Data:       map[string]any{"risk_indicators": indicators},
		GroundedIn: grounded,
	}, nil
}

// NormalizeMetricsTask puts every supplier's metrics on a 0-10 scale so the
// weighted scoring can compare them.
type NormalizeMetricsTask struct {
	base
}

func (t *NormalizeMetricsTask) Analyze(ctx context.Context, tc *Context, rules, retrieval PhaseResult) (PhaseResult, error) {
	performance := GetOr[[]PerformanceRecord](tc, "supplier_performance", nil)
	riskBySupplier := make(map[string]RiskIndicator)
	for _, r := range GetOr[[]RiskIndicator](tc, "risk_indicators", nil) {
		riskBySupplier[r.SupplierID] = r
	}

	clamp := func(v float64) float64 { return math.Min(10, math.Max(0, v)) }

	normalized := make([]NormalizedMetrics, 0, len(performance))
	for _, p := range performance {
		risk := riskBySupplier[p.SupplierID]
		normalized = append(normalized, NormalizedMetrics{
			SupplierID:     p.SupplierID,
			SupplierName:   p.SupplierName,
			Quality:        clamp(p.QualityScore),
			Delivery:       clamp(p.DeliveryScore),
			Responsiveness: clamp(p.ResponsivenessScore),
			// Risk and cost variance both invert: lower is better.
			Risk:     10 - math.Min(10, risk.RiskScore),
			Cost:     10 - math.Min(10, math.Abs(p.CostVariance)/5),
			Raw:      p,
			RiskData: risk,
		})
	}

	return PhaseResult{Data: map[string]any{"normalized_metrics": normalized}}, nil
}

// ComputeScoresAndRankTask applies the criterion weights and ranks the
// suppliers by total score.
type ComputeScoresAndRankTask struct {
	base
}

var criterionField = map[string]func(NormalizedMetrics) float64{
	"Quality":        func(n NormalizedMetrics) float64 { return n.Quality },
	"Delivery":       func(n NormalizedMetrics) float64 { return n.Delivery },
	"Price":          func(n NormalizedMetrics) float64 { return n.Cost },
	"Responsiveness": func(n NormalizedMetrics) float64 { return n.Responsiveness },
	"Risk":           func(n NormalizedMetrics) float64 { return n.Risk },
}

func (t *ComputeScoresAndRankTask) Analyze(ctx context.Context, tc *Context, rules, retrieval PhaseResult) (PhaseResult, error) {
	criteria := GetOr[[]Criterion](tc, "criteria", nil)
	normalized := GetOr[[]NormalizedMetrics](tc, "normalized_metrics", nil)

	scored := make([]ScoredSupplier, 0, len(normalized))
	for _, supplier := range normalized {
		total := 0.0
		breakdown := make(map[string]ScorePart)

		for _, criterion := range criteria {
			field, ok := criterionField[criterion.Name]
			if !ok {
				continue
			}
			weight := criterion.Weight
			if weight == 0 {
				weight = 0.2
			}
			value := field(supplier)
			weighted := value * weight
			total += weighted
			breakdown[criterion.Name] = ScorePart{Raw: value, Weight: weight, Weighted: weighted}
		}

		scored = append(scored, ScoredSupplier{
			SupplierID:   supplier.SupplierID,
			SupplierName: supplier.SupplierName,
			TotalScore:   math.Round(total*100) / 100,
			Breakdown:    breakdown,
			Raw:          supplier.Raw,
			RiskData:     supplier.RiskData,
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].TotalScore > scored[j].TotalScore
	})
	for i := range scored {
		scored[i].Rank = i + 1
	}

	return PhaseResult{Data: map[string]any{"ranked_suppliers": scored}}, nil
}

// EligibilityChecksTask splits the ranked suppliers into eligible and
// ineligible based on score and SLA breach thresholds.
type EligibilityChecksTask struct {
	base
}

func (t *EligibilityChecksTask) Rules(ctx context.Context, tc *Context) (PhaseResult, error) {
	return PhaseResult{
		Data: map[string]any{
			"min_score":             4.0,
			"max_breaches":          5,
			"required_capabilities": GetOr[[]string](tc, "required_capabilities", nil),
		},
		GroundedIn: []types.GroundingReference{{
			RefID:      "policy-eligibility-001",
			RefType:    types.RefPolicy,
			SourceName: "Supplier Eligibility Policy",
		}},
	}, nil
}

func (t *EligibilityChecksTask) Analyze(ctx context.Context, tc *Context, rules, retrieval PhaseResult) (PhaseResult, error) {
	minScore, _ := rules.Data["min_score"].(float64)
	maxBreaches, _ := rules.Data["max_breaches"].(int)
	ranked := GetOr[[]ScoredSupplier](tc, "ranked_suppliers", nil)

	var eligible, ineligible []ScoredSupplier
	for _, supplier := range ranked {
		var issues []string

		if supplier.TotalScore < minScore {
			issues = append(issues, fmt.Sprintf("Score %.1f below minimum %.1f", supplier.TotalScore, minScore))
		}
		if breaches := supplier.RiskData.SLABreachCount; breaches > maxBreaches {
			issues = append(issues, fmt.Sprintf("%d SLA breaches exceeds limit of %d", breaches, maxBreaches))
		}

		supplier.EligibilityIssues = issues
		supplier.IsEligible = len(issues) == 0
		if supplier.IsEligible {
			eligible = append(eligible, supplier)
		} else {
			ineligible = append(ineligible, supplier)
		}
	}

	return PhaseResult{
		Data: map[string]any{
			"eligible_suppliers":   eligible,
			"ineligible_suppliers": ineligible,
		},
	}, nil
}

// GenerateExplanationsTask narrates why the top suppliers scored the way
// they did.
type GenerateExplanationsTask struct {
	base
}

func (t *GenerateExplanationsTask) NeedsNarration(tc *Context, analytics PhaseResult) bool {
	return true
}

func (t *GenerateExplanationsTask) Narrate(ctx context.Context, tc *Context, rules, retrieval, analytics PhaseResult) (NarrationResult, error) {
	eligible := GetOr[[]ScoredSupplier](tc, "eligible_suppliers", nil)
	if len(eligible) > 3 {
		eligible = eligible[:3]
	}
	if len(eligible) == 0 {
		return NarrationResult{Data: map[string]any{"explanations": map[string]string{}}}, nil
	}

	explanations := make(map[string]string, len(eligible))
	totalTokens := 0

	for _, supplier := range eligible {
		names := make([]string, 0, len(supplier.Breakdown))
		for name := range supplier.Breakdown {
			names = append(names, name)
		}
		sort.Strings(names)
		parts := make([]string, 0, len(names))
		for _, name := range names {
			parts = append(parts, fmt.Sprintf("%s: %.1f", name, supplier.Breakdown[name].Raw))
		}

		prompt := fmt.Sprintf(`Write a 2-sentence explanation for why %s
scored %.1f/10 in supplier evaluation.
Score breakdown: %s
Be specific and factual.`, supplier.SupplierName, supplier.TotalScore, strings.Join(parts, ", "))

		explanation, tokens := t.narrate(ctx, prompt)
		totalTokens += tokens
		if strings.TrimSpace(explanation) == "" {
			explanation = fmt.Sprintf("%s scored %.1f/10 across %d weighted criteria.",
				supplier.SupplierName, supplier.TotalScore, len(supplier.Breakdown))
		}
		explanations[supplier.SupplierID] = strings.TrimSpace(explanation)
	}

	return NarrationResult{
		Data:       map[string]any{"explanations": explanations},
		TokensUsed: totalTokens,
	}, nil
}
