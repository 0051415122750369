package store

import (
	"context"
	"fmt"

	"sourcepilot/internal/logging"
)

// SeedDemoData loads a small procurement corpus: contracts and policies for
// the document search, plus performance, spend, and SLA records for three
// suppliers in the IT services category.
func (s *Store) SeedDemoData(ctx context.Context) error {
	docs := []Document{
		{
			DocumentID:   "DOC-CONTRACT-001",
			Filename:     "msa_supplier_001.txt",
			DocumentType: "contract",
			SupplierID:   "SUP-001",
			CategoryID:   "IT_SERVICES",
			Content: "Master services agreement with Meridian Systems for managed IT services. " +
				"Term: 36 months, expiring 2026-12-31. Annual value 480,000 USD. " +
				"Payment terms Net 45. Termination for convenience with 90 days notice. " +
				"Service credits apply after two consecutive months below 99.5 percent availability.",
		},
		{
			DocumentID:   "DOC-CONTRACT-002",
			Filename:     "msa_supplier_002.txt",
			DocumentType: "contract",
			SupplierID:   "SUP-002",
			CategoryID:   "IT_SERVICES",
			Content: "Services agreement with Northgate Digital for application support. " +
				"Term: 24 months, auto-renews unless notice given 60 days before expiry. " +
				"Annual value 310,000 USD. Payment terms Net 30. Liability cap at 12 months fees.",
		},
		{
			DocumentID:   "DOC-POLICY-001",
			Filename:     "sourcing_policy.txt",
			DocumentType: "policy",
			CategoryID:   "",
			Content: "Sourcing policy: engagements above 500,000 USD annual value require a " +
				"strategic sourcing process with executive approval. Engagements between " +
				"100,000 and 500,000 USD require competitive bidding with at least three " +
				"suppliers. Single-source awards need documented justification.",
		},
		{
			DocumentID:   "DOC-MARKET-001",
			Filename:     "it_services_market_brief.txt",
			DocumentType: "market_report",
			CategoryID:   "IT_SERVICES",
			Content: "IT services market brief: rates for managed infrastructure services have " +
				"declined 4 to 6 percent year over year as nearshore capacity expands. " +
				"Benchmark availability commitments now start at 99.7 percent for tier-one " +
				"providers. Multi-year terms commonly include annual rate reduction clauses.",
		},
	}
	for _, d := range docs {
		if err := s.AddDocument(ctx, d); err != nil {
			return fmt.Errorf("seeding documents: %w", err)
		}
	}

	perf := []PerformanceRecord{
		{SupplierID: "SUP-001", CategoryID: "IT_SERVICES", Metric: "availability_pct", Value: 99.2, Period: "2026-Q2", Trend: "declining"},
		{SupplierID: "SUP-001", CategoryID: "IT_SERVICES", Metric: "ticket_resolution_hours", Value: 18.5, Period: "2026-Q2", Trend: "stable"},
		{SupplierID: "SUP-002", CategoryID: "IT_SERVICES", Metric: "availability_pct", Value: 99.8, Period: "2026-Q2", Trend: "stable"},
		{SupplierID: "SUP-003", CategoryID: "IT_SERVICES", Metric: "availability_pct", Value: 99.6, Period: "2026-Q2", Trend: "improving"},
	}
	for _, r := range perf {
		if err := s.AddPerformanceRecord(ctx, r); err != nil {
			return fmt.Errorf("seeding performance: %w", err)
		}
	}

	spend := []SpendRecord{
		{SupplierID: "SUP-001", CategoryID: "IT_SERVICES", Period: "2026-Q1", Amount: 121500},
		{SupplierID: "SUP-001", CategoryID: "IT_SERVICES", Period: "2026-Q2", Amount: 124800},
		{SupplierID: "SUP-002", CategoryID: "IT_SERVICES", Period: "2026-Q2", Amount: 77300},
		{SupplierID: "SUP-003", CategoryID: "IT_SERVICES", Period: "2026-Q2", Amount: 52100},
	}
	for _, r := range spend {
		if err := s.AddSpendRecord(ctx, r); err != nil {
			return fmt.Errorf("seeding spend: %w", err)
		}
	}

	events := []SLAEvent{
		{SupplierID: "SUP-001", Severity: "high", EventType: "outage", Description: "Four-hour unplanned outage of the managed hosting environment.", OccurredAt: "2026-05-14"},
		{SupplierID: "SUP-001", Severity: "medium", EventType: "missed_sla", Description: "Availability below 99.5 percent for the second consecutive month.", OccurredAt: "2026-06-30"},
		{SupplierID: "SUP-002", Severity: "low", EventType: "late_report", Description: "Monthly service report delivered five days late.", OccurredAt: "2026-04-08"},
	}
	for _, e := range events {
		if err := s.AddSLAEvent(ctx, e); err != nil {
			return fmt.Errorf("seeding SLA events: %w", err)
		}
	}

	logging.Store("seeded demo corpus: %d documents, %d performance, %d spend, %d SLA events",
		len(docs), len(perf), len(spend), len(events))
	return nil
}
