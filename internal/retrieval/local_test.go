package retrieval

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"sourcepilot/internal/store"
	"sourcepilot/internal/types"
)

func newSeededRetriever(t *testing.T) *Local {
	t.Helper()
	s, err := store.NewStore(filepath.Join(t.TempDir(), "retrieval.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	if err := s.SeedDemoData(context.Background()); err != nil {
		t.Fatalf("SeedDemoData: %v", err)
	}
	return NewLocal(s)
}

func TestRetrieveDocumentsRanksRelevantFirst(t *testing.T) {
	r := newSeededRetriever(t)

	result, err := r.RetrieveDocuments(context.Background(), types.RetrievalQuery{
		Query:      "contract termination notice period",
		SupplierID: "SUP-001",
		CategoryID: "IT_SERVICES",
		TopK:       3,
	})
	if err != nil {
		t.Fatalf("RetrieveDocuments: %v", err)
	}
	if len(result.Chunks) == 0 {
		t.Fatal("expected chunks, got none")
	}
	top := result.Chunks[0]
	if top.Metadata.DocumentID != "DOC-CONTRACT-001" {
		t.Errorf("top chunk from %s, want DOC-CONTRACT-001", top.Metadata.DocumentID)
	}
	if !strings.Contains(strings.ToLower(top.Content), "termination") {
		t.Errorf("top chunk does not mention termination: %q", top.Content)
	}
}

func TestRetrieveDocumentsScopedToSupplier(t *testing.T) {
	r := newSeededRetriever(t)

	result, err := r.RetrieveDocuments(context.Background(), types.RetrievalQuery{
		Query:      "agreement services annual value",
		SupplierID: "SUP-002",
	})
	if err != nil {
		t.Fatalf("RetrieveDocuments: %v", err)
	}
	for _, c := range result.Chunks {
		if c.Metadata.DocumentID == "DOC-CONTRACT-001" {
			t.Errorf("chunk from another supplier's contract leaked: %s", c.Metadata.DocumentID)
		}
	}
}

func TestRetrieveDocumentsEmptyCorpusIsNotAnError(t *testing.T) {
	s, err := store.NewStore(filepath.Join(t.TempDir(), "empty.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	r := NewLocal(s)

	result, err := r.RetrieveDocuments(context.Background(), types.RetrievalQuery{
		Query: "anything at all",
	})
	if err != nil {
		t.Fatalf("RetrieveDocuments: %v", err)
	}
	if len(result.Chunks) != 0 {
		t.Errorf("expected no chunks, got %d", len(result.Chunks))
	}
}

func TestRetrieveDocumentsHonorsTopK(t *testing.T) {
	r := newSeededRetriever(t)

	result, err := r.RetrieveDocuments(context.Background(), types.RetrievalQuery{
		Query: "services supplier contract value",
		TopK:  1,
	})
	if err != nil {
		t.Fatalf("RetrieveDocuments: %v", err)
	}
	if len(result.Chunks) > 1 {
		t.Errorf("TopK=1 returned %d chunks", len(result.Chunks))
	}
}

func TestSupplierPerformanceSummary(t *testing.T) {
	r := newSeededRetriever(t)

	rs, err := r.SupplierPerformance(context.Background(), "SUP-001", "IT_SERVICES")
	if err != nil {
		t.Fatalf("SupplierPerformance: %v", err)
	}
	if len(rs.Records) != 2 {
		t.Errorf("expected 2 records, got %d", len(rs.Records))
	}
	if !strings.Contains(rs.Summary, "1 declining") {
		t.Errorf("summary missing declining count: %q", rs.Summary)
	}
}

func TestSupplierSpendTotals(t *testing.T) {
	r := newSeededRetriever(t)

	rs, err := r.SupplierSpend(context.Background(), "SUP-001", "IT_SERVICES")
	if err != nil {
		t.Fatalf("SupplierSpend: %v", err)
	}
	if len(rs.Records) != 2 {
		t.Errorf("expected 2 records, got %d", len(rs.Records))
	}
	if !strings.Contains(rs.Summary, "246300") {
		t.Errorf("summary missing total: %q", rs.Summary)
	}
}

func TestSLAEventsSeverityFilter(t *testing.T) {
	r := newSeededRetriever(t)

	all, err := r.SLAEvents(context.Background(), "SUP-001", "")
	if err != nil {
		t.Fatalf("SLAEvents: %v", err)
	}
	if len(all.Records) != 2 {
		t.Errorf("expected 2 events, got %d", len(all.Records))
	}
	if !strings.Contains(all.Summary, "1 high severity") {
		t.Errorf("summary missing high count: %q", all.Summary)
	}

	high, err := r.SLAEvents(context.Background(), "SUP-001", "high")
	if err != nil {
		t.Fatalf("SLAEvents high: %v", err)
	}
	if len(high.Records) != 1 {
		t.Errorf("severity filter returned %d events", len(high.Records))
	}

	none, err := r.SLAEvents(context.Background(), "SUP-999", "")
	if err != nil {
		t.Fatalf("SLAEvents missing supplier: %v", err)
	}
	if len(none.Records) != 0 || !strings.Contains(none.Summary, "No SLA events") {
		t.Errorf("unexpected result for unknown supplier: %+v", none)
	}
}

func TestExtractTermsDropsStopwordsAndShortTokens(t *testing.T) {
	terms := extractTerms("What is the contract termination notice for SUP-001?")
	if _, ok := terms.weights["the"]; ok {
		t.Error("stopword survived extraction")
	}
	if _, ok := terms.weights["is"]; ok {
		t.Error("short token survived extraction")
	}
	if w := terms.weights["termination"]; w != 1.0 {
		t.Errorf("long term weight = %v, want 1.0", w)
	}
}

func TestChunkContentSplitsLongDocuments(t *testing.T) {
	long := strings.Repeat("This is a sentence about supplier performance. ", 30)
	chunks := chunkContent(long)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if len(c) > maxChunkSize {
			t.Errorf("chunk %d exceeds max size: %d", i, len(c))
		}
	}
}
